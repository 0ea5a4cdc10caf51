/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/revocation"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
	anoncredsstore "github.com/andrewwhitehead/anoncreds-rs/pkg/store/anoncreds"
)

// CreateSchemaArgs model
//
// This is used to create a credential schema.
type CreateSchemaArgs struct {
	// IssuerDID of the schema publisher
	IssuerDID string `json:"issuer_did"`
	// Name of the schema
	Name string `json:"name"`
	// Version of the schema
	Version string `json:"version"`
	// AttrNames lists the attributes credentials under this schema carry
	AttrNames []string `json:"attr_names"`
}

// CreateSchemaResponse model
//
// Represents response message of create schema.
type CreateSchemaResponse struct {
	Schema *anoncreds.Schema `json:"schema"`
}

// CreateCredentialDefinitionArgs model
//
// This is used to create issuer signing keys for a schema.
type CreateCredentialDefinitionArgs struct {
	// IssuerDID of the definition publisher
	IssuerDID string `json:"issuer_did"`
	// Schema document the definition signs over
	Schema json.RawMessage `json:"schema"`
	// Tag distinguishes definitions of one issuer over one schema
	Tag string `json:"tag"`
	// SignatureType of the definition, defaults to CL
	SignatureType string `json:"signature_type,omitempty"`
	// SupportRevocation adds the revocation component to the keys
	SupportRevocation bool `json:"support_revocation,omitempty"`
}

// CreateCredentialDefinitionResponse model
//
// Represents response message of create credential definition.
type CreateCredentialDefinitionResponse struct {
	CredentialDefinition        *anoncreds.CredentialDefinition        `json:"credential_definition"`
	CredentialDefinitionPrivate *anoncreds.CredentialDefinitionPrivate `json:"credential_definition_private"`
	KeyCorrectnessProof         *anoncreds.KeyCorrectnessProof         `json:"key_correctness_proof"`
}

// CreateCredentialOfferArgs model
//
// This is used to start an issuance exchange.
type CreateCredentialOfferArgs struct {
	CredentialDefinition json.RawMessage `json:"credential_definition"`
	KeyCorrectnessProof  json.RawMessage `json:"key_correctness_proof"`
}

// CreateCredentialOfferResponse model
//
// Represents response message of create credential offer.
type CreateCredentialOfferResponse struct {
	CredentialOffer *anoncreds.CredentialOffer `json:"credential_offer"`
}

// CreateMasterSecretArgs model
//
// This is used to create and store a master secret. A name is generated
// when none is given.
type CreateMasterSecretArgs struct {
	Name string `json:"name,omitempty"`
}

// CreateMasterSecretResponse model
//
// Represents response message of create master secret. The secret itself
// never leaves the store.
type CreateMasterSecretResponse struct {
	Name string `json:"name"`
}

// CreateCredentialRequestArgs model
//
// This is used to answer a credential offer with a blinded link secret.
type CreateCredentialRequestArgs struct {
	ProverDID            string          `json:"prover_did,omitempty"`
	CredentialDefinition json.RawMessage `json:"credential_definition"`
	MasterSecretName     string          `json:"master_secret_name"`
	CredentialOffer      json.RawMessage `json:"credential_offer"`
}

// CreateCredentialRequestResponse model
//
// Represents response message of create credential request.
type CreateCredentialRequestResponse struct {
	CredentialRequest         *anoncreds.CredentialRequest         `json:"credential_request"`
	CredentialRequestMetadata *anoncreds.CredentialRequestMetadata `json:"credential_request_metadata"`
}

// CredentialRevocationArgs carries the registry material for issuing one
// revocable credential.
type CredentialRevocationArgs struct {
	RevocationRegistryDefinition        json.RawMessage `json:"revocation_registry_definition"`
	RevocationRegistryDefinitionPrivate json.RawMessage `json:"revocation_registry_definition_private"`
	RegistryState                       json.RawMessage `json:"registry_state"`
	CredentialRevocationIndex           uint32          `json:"credential_revocation_index"`
	TailsLocation                       string          `json:"tails_location,omitempty"`
}

// CreateCredentialArgs model
//
// This is used to sign a credential over a credential request.
type CreateCredentialArgs struct {
	CredentialDefinition        json.RawMessage `json:"credential_definition"`
	CredentialDefinitionPrivate json.RawMessage `json:"credential_definition_private"`
	CredentialOffer             json.RawMessage `json:"credential_offer"`
	CredentialRequest           json.RawMessage `json:"credential_request"`
	// Values maps attribute names to raw values; encoded forms are derived
	Values map[string]string `json:"values"`
	// Revocation is set when the credential is issued against a registry
	Revocation *CredentialRevocationArgs `json:"revocation,omitempty"`
}

// CreateCredentialResponse model
//
// Represents response message of create credential. RegistryState and
// RegistryDelta are only present for revocable credentials.
type CreateCredentialResponse struct {
	Credential    *anoncreds.Credential              `json:"credential"`
	RegistryState *revocation.State                  `json:"registry_state,omitempty"`
	RegistryDelta *anoncreds.RevocationRegistryDelta `json:"registry_delta,omitempty"`
}

// ProcessCredentialArgs model
//
// This is used to finish issuance on the holder side and store the result.
type ProcessCredentialArgs struct {
	Credential                   json.RawMessage `json:"credential"`
	CredentialRequestMetadata    json.RawMessage `json:"credential_request_metadata"`
	MasterSecretName             string          `json:"master_secret_name"`
	CredentialDefinition         json.RawMessage `json:"credential_definition"`
	RevocationRegistryDefinition json.RawMessage `json:"revocation_registry_definition,omitempty"`
	// CredentialID names the stored record; one is generated when empty
	CredentialID string `json:"credential_id,omitempty"`
}

// ProcessCredentialResponse model
//
// Represents response message of process credential.
type ProcessCredentialResponse struct {
	CredentialID string                `json:"credential_id"`
	Credential   *anoncreds.Credential `json:"credential"`
}

// GetCredentialArgs model
//
// This is used to retrieve a stored credential.
type GetCredentialArgs struct {
	// ID of the credential record
	ID string `json:"id"`
}

// GetCredentialResponse model
//
// Represents response message of get credential.
type GetCredentialResponse struct {
	Credential *anoncreds.Credential `json:"credential"`
}

// GetCredentialsArgs model
//
// This is used to list stored credential records, optionally filtered by
// exactly one of the identifier tags.
type GetCredentialsArgs struct {
	SchemaID               string `json:"schema_id,omitempty"`
	CredentialDefinitionID string `json:"cred_def_id,omitempty"`
	RevocationRegistryID   string `json:"rev_reg_id,omitempty"`
}

// GetCredentialsResponse model
//
// Represents response message of get credentials.
type GetCredentialsResponse struct {
	Records []*anoncredsstore.CredentialRecord `json:"records"`
}

// RemoveCredentialArgs model
//
// This is used to remove a stored credential.
type RemoveCredentialArgs struct {
	// ID of the credential record
	ID string `json:"id"`
}

// PresentationCredential is one stored or inline credential entering a
// presentation. Credential and CredentialID are mutually exclusive, as are
// RevocationState and RevocationStateID.
type PresentationCredential struct {
	CredentialID      string          `json:"credential_id,omitempty"`
	Credential        json.RawMessage `json:"credential,omitempty"`
	Timestamp         uint64          `json:"timestamp,omitempty"`
	RevocationState   json.RawMessage `json:"revocation_state,omitempty"`
	RevocationStateID string          `json:"revocation_state_id,omitempty"`
}

// PresentationProve maps one referent of the presentation request onto a
// credential by position in the credentials list.
type PresentationProve struct {
	CredentialIndex int32  `json:"credential_index"`
	Referent        string `json:"referent"`
	Reveal          bool   `json:"reveal"`
	IsPredicate     bool   `json:"is_predicate,omitempty"`
}

// CreatePresentationArgs model
//
// This is used to build a presentation answering a presentation request.
// Schemas and CredentialDefinitions map identifiers onto their documents.
type CreatePresentationArgs struct {
	PresentationRequest   json.RawMessage            `json:"presentation_request"`
	Credentials           []*PresentationCredential  `json:"credentials,omitempty"`
	Proves                []*PresentationProve       `json:"proves,omitempty"`
	SelfAttested          map[string]string          `json:"self_attested,omitempty"`
	MasterSecretName      string                     `json:"master_secret_name"`
	Schemas               map[string]json.RawMessage `json:"schemas"`
	CredentialDefinitions map[string]json.RawMessage `json:"credential_definitions"`
}

// CreatePresentationResponse model
//
// Represents response message of create presentation.
type CreatePresentationResponse struct {
	Presentation *anoncreds.Presentation `json:"presentation"`
}

// RevocationRegistryEntry is one published registry value a presentation's
// non-revocation proofs are checked against.
type RevocationRegistryEntry struct {
	RevocationRegistryID string          `json:"rev_reg_id"`
	Timestamp            uint64          `json:"timestamp"`
	Entry                json.RawMessage `json:"entry"`
}

// VerifyPresentationArgs model
//
// This is used to verify a presentation against its request and the public
// material its identifiers reference.
type VerifyPresentationArgs struct {
	Presentation                  json.RawMessage            `json:"presentation"`
	PresentationRequest           json.RawMessage            `json:"presentation_request"`
	Schemas                       map[string]json.RawMessage `json:"schemas"`
	CredentialDefinitions         map[string]json.RawMessage `json:"credential_definitions"`
	RevocationRegistryDefinitions map[string]json.RawMessage `json:"revocation_registry_definitions,omitempty"`
	RevocationEntries             []*RevocationRegistryEntry `json:"revocation_entries,omitempty"`
}

// VerifyPresentationResponse model
//
// Represents response message of verify presentation.
type VerifyPresentationResponse struct {
	Verified bool `json:"verified"`
}

// CreateRevocationRegistryArgs model
//
// This is used to create a revocation registry under a credential
// definition. The tails file is written into the controller's tails
// directory.
type CreateRevocationRegistryArgs struct {
	IssuerDID            string          `json:"issuer_did"`
	CredentialDefinition json.RawMessage `json:"credential_definition"`
	Tag                  string          `json:"tag"`
	RevocationType       string          `json:"revoc_def_type,omitempty"`
	IssuanceType         string          `json:"issuance_type,omitempty"`
	MaxCredNum           uint32          `json:"max_cred_num"`
}

// CreateRevocationRegistryResponse model
//
// Represents response message of create revocation registry. The tails
// hash and location are carried inside the definition value.
type CreateRevocationRegistryResponse struct {
	RevocationRegistryDefinition        *anoncreds.RevocationRegistryDefinition        `json:"revocation_registry_definition"`
	RevocationRegistryDefinitionPrivate *anoncreds.RevocationRegistryDefinitionPrivate `json:"revocation_registry_definition_private"`
	RegistryState                       *revocation.State                              `json:"registry_state"`
	RegistryDelta                       *anoncreds.RevocationRegistryDelta             `json:"registry_delta"`
}

// UpdateRevocationRegistryArgs model
//
// This is used to move a registry by issued and revoked index sets.
type UpdateRevocationRegistryArgs struct {
	RevocationRegistryDefinition json.RawMessage `json:"revocation_registry_definition"`
	RegistryState                json.RawMessage `json:"registry_state"`
	Issued                       []uint32        `json:"issued,omitempty"`
	Revoked                      []uint32        `json:"revoked,omitempty"`
	TailsLocation                string          `json:"tails_location,omitempty"`
}

// UpdateRevocationRegistryResponse model
//
// Represents response message of update revocation registry.
type UpdateRevocationRegistryResponse struct {
	RegistryState *revocation.State                  `json:"registry_state"`
	RegistryDelta *anoncreds.RevocationRegistryDelta `json:"registry_delta"`
}

// RevokeCredentialArgs model
//
// This is used to revoke one credential by its registry index.
type RevokeCredentialArgs struct {
	RevocationRegistryDefinition json.RawMessage `json:"revocation_registry_definition"`
	RegistryState                json.RawMessage `json:"registry_state"`
	CredentialRevocationIndex    uint32          `json:"credential_revocation_index"`
	TailsLocation                string          `json:"tails_location,omitempty"`
}

// RevokeCredentialResponse model
//
// Represents response message of revoke credential.
type RevokeCredentialResponse struct {
	RegistryState *revocation.State                  `json:"registry_state"`
	RegistryDelta *anoncreds.RevocationRegistryDelta `json:"registry_delta"`
}

// CreateRevocationStateArgs model
//
// This is used to compute and store the revocation state a holder presents
// non-revocation proofs from. The witness comes from the credential, given
// inline or by stored record id; StateID selects a stored prior state to
// advance incrementally, paired with the registry state it was computed
// against.
type CreateRevocationStateArgs struct {
	RevocationRegistryDefinition json.RawMessage `json:"revocation_registry_definition"`
	RegistryState                json.RawMessage `json:"registry_state"`
	CredentialRevocationIndex    uint32          `json:"credential_revocation_index"`
	Timestamp                    uint64          `json:"timestamp"`
	TailsLocation                string          `json:"tails_location,omitempty"`
	Credential                   json.RawMessage `json:"credential,omitempty"`
	CredentialID                 string          `json:"credential_id,omitempty"`
	StateID                      string          `json:"state_id,omitempty"`
	PriorRegistryState           json.RawMessage `json:"prior_registry_state,omitempty"`
}

// CreateRevocationStateResponse model
//
// Represents response message of create revocation state.
type CreateRevocationStateResponse struct {
	StateID         string                     `json:"state_id"`
	RevocationState *anoncreds.RevocationState `json:"revocation_state"`
}
