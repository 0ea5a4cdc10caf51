/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package issuer implements the issuing half of the credential exchange:
// schemas, credential definitions, offers and signed credentials, including
// the registry advance a revocable issuance entails.
package issuer

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/revocation"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/accumulator"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/bbsplus"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

var logger = log.New("anoncreds/issuer")

const objectVersion = "1.0"

// Issuer signs credentials under credential definitions it owns. The zero
// value is not usable; construct with New.
type Issuer struct {
	signer   api.Signer
	accum    api.Accumulator
	registry *revocation.Engine
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithSigner overrides the signature backend.
func WithSigner(signer api.Signer) Option {
	return func(i *Issuer) {
		i.signer = signer
	}
}

// WithAccumulator overrides the accumulator backend used for revocable
// issuance.
func WithAccumulator(acc api.Accumulator) Option {
	return func(i *Issuer) {
		i.accum = acc
	}
}

// New returns an issuer over the default backends.
func New(opts ...Option) *Issuer {
	issuer := &Issuer{
		signer: bbsplus.New(),
		accum:  accumulator.New(),
	}

	for _, opt := range opts {
		opt(issuer)
	}

	issuer.registry = revocation.New(revocation.WithAccumulator(issuer.accum))

	return issuer
}

// CreateSchema assembles and validates a new schema.
func (i *Issuer) CreateSchema(originDID, name, version string, attrNames []string) (*anoncreds.Schema, error) {
	schema, err := anoncreds.NewSchema(originDID, name, version, attrNames)
	if err != nil {
		return nil, err
	}

	logger.Debugf("created schema %s with %d attributes", schema.ID, len(attrNames))

	return schema, nil
}

// CredentialDefinitionResult is the three-object bundle of a new credential
// definition: the published definition, the issuer-held private key and the
// key correctness proof that travels in offers.
type CredentialDefinitionResult struct {
	Definition *anoncreds.CredentialDefinition
	Private    *anoncreds.CredentialDefinitionPrivate
	Proof      *anoncreds.KeyCorrectnessProof
}

// CreateCredentialDefinition generates the signing keys for a schema. With
// supportRevocation the key material carries the extra revocation generator
// credentials need to be issued against a revocation registry.
func (i *Issuer) CreateCredentialDefinition(originDID string, schema *anoncreds.Schema, tag,
	signatureType string, supportRevocation bool) (*CredentialDefinitionResult, error) {
	if schema == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing schema")
	}

	if err := schema.Validate(); err != nil {
		return nil, err
	}

	if err := anoncreds.ValidateIdentifier(originDID); err != nil {
		return nil, fmt.Errorf("credential definition origin: %w", err)
	}

	if tag == "" {
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential definition tag")
	}

	if signatureType == "" {
		signatureType = anoncreds.SignatureTypeCL
	}

	if signatureType != anoncreds.SignatureTypeCL {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "unsupported signature type %q", signatureType)
	}

	keys, err := i.signer.CreateCredentialKeys(schema.AttrNames, supportRevocation)
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "create credential keys: %w", err)
	}

	revocationValue, err := revocationComponent(keys.Public, supportRevocation)
	if err != nil {
		return nil, err
	}

	schemaRef := schema.ID
	if schema.SeqNo != 0 {
		schemaRef = strconv.FormatUint(uint64(schema.SeqNo), 10)
	}

	definition := &anoncreds.CredentialDefinition{
		Ver:      objectVersion,
		ID:       fmt.Sprintf("%s:3:%s:%s:%s", originDID, signatureType, schemaRef, tag),
		SchemaID: schema.ID,
		Type:     signatureType,
		Tag:      tag,
		Value: anoncreds.CredentialDefinitionData{
			Primary:    keys.Public,
			Revocation: revocationValue,
		},
	}

	logger.Debugf("created credential definition %s (revocation: %t)", definition.ID, supportRevocation)

	return &CredentialDefinitionResult{
		Definition: definition,
		Private:    &anoncreds.CredentialDefinitionPrivate{Value: keys.Private},
		Proof:      &anoncreds.KeyCorrectnessProof{Value: keys.CorrectnessProof},
	}, nil
}

// revocationComponent projects the revocation generator out of the signing
// public key into the definition's revocation slot, so published definitions
// advertise revocation support on their own.
func revocationComponent(pub json.RawMessage, supportRevocation bool) (json.RawMessage, error) {
	if !supportRevocation {
		return nil, nil
	}

	component := struct {
		HRev string `json:"h_rev"`
	}{}

	if err := json.Unmarshal(pub, &component); err != nil || component.HRev == "" {
		return nil, anoncreds.NewError(anoncreds.Unexpected, "signing key carries no revocation generator")
	}

	raw, err := json.Marshal(component)
	if err != nil {
		return nil, fmt.Errorf("marshal revocation component: %w", err)
	}

	return raw, nil
}

// CreateCredentialOffer starts an issuance exchange for a credential
// definition. The returned offer carries a fresh nonce the request's
// blinding proof must answer.
func (i *Issuer) CreateCredentialOffer(def *anoncreds.CredentialDefinition,
	proof *anoncreds.KeyCorrectnessProof) (*anoncreds.CredentialOffer, error) {
	if def == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential definition")
	}

	if proof == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing key correctness proof")
	}

	if err := proof.Validate(); err != nil {
		return nil, err
	}

	nonce, err := anoncreds.GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("generate offer nonce: %w", err)
	}

	offer := &anoncreds.CredentialOffer{
		SchemaID:            def.SchemaID,
		CredDefID:           def.ID,
		KeyCorrectnessProof: proof,
		Nonce:               nonce,
	}

	if err := offer.Validate(); err != nil {
		return nil, err
	}

	return offer, nil
}

// RevocationInfo names the registry a credential is issued into. A zero
// Index asks the issuer to take the next free one.
type RevocationInfo struct {
	Definition *anoncreds.RevocationRegistryDefinition
	Private    *anoncreds.RevocationRegistryDefinitionPrivate
	State      *revocation.State
	Index      uint32
	Tails      api.TailsReader
}

// CreateCredentialRequest carries the issuer inputs for signing one
// credential. Values holds the attribute raw/encoded pairs to sign;
// Revocation is nil for non-revocable credentials.
type CreateCredentialRequest struct {
	CredDef        *anoncreds.CredentialDefinition
	CredDefPrivate *anoncreds.CredentialDefinitionPrivate
	Offer          *anoncreds.CredentialOffer
	Request        *anoncreds.CredentialRequest
	Values         anoncreds.CredentialValues
	Revocation     *RevocationInfo
}

// CreateCredentialResult bundles the signed credential with the advanced
// registry state. RegistryState and Delta are nil for non-revocable
// credentials; for by-default registries the delta records no accumulator
// movement.
type CreateCredentialResult struct {
	Credential    *anoncreds.Credential
	RegistryState *revocation.State
	Delta         *anoncreds.RevocationRegistryDelta
}

// CreateCredential signs a credential over the blinded link secret of a
// credential request. Revocable issuance advances the registry state and
// embeds the issuance-time witness in the credential; all outputs are
// computed on copies, so a failure anywhere leaves the caller's registry
// state untouched.
func (i *Issuer) CreateCredential(req *CreateCredentialRequest) (*CreateCredentialResult, error) {
	if req == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing create credential request")
	}

	if req.CredDef == nil || req.CredDefPrivate == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential definition material")
	}

	if req.Offer == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential offer")
	}

	if req.Request == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential request")
	}

	if req.Request.CredDefID != req.CredDef.ID {
		return nil, anoncreds.NewError(anoncreds.Input, "request was built for a different credential definition")
	}

	if req.Offer.CredDefID != req.CredDef.ID {
		return nil, anoncreds.NewError(anoncreds.Input, "offer was built for a different credential definition")
	}

	if req.Offer.SchemaID != req.CredDef.SchemaID {
		return nil, anoncreds.NewError(anoncreds.Input, "offer schema does not match the credential definition")
	}

	if err := req.Values.Validate(); err != nil {
		return nil, err
	}

	if err := i.signer.VerifyBlindedSecret(req.CredDef.Value.Primary, req.Request.BlindedMS,
		req.Request.BlindedMSCorrectnessProof, req.Offer.Nonce); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "verify blinded link secret: %w", err)
	}

	result := &CreateCredentialResult{}

	var (
		witness  json.RawMessage
		revReg   json.RawMessage
		revRegID string
		revIndex uint32
	)

	if req.Revocation != nil {
		advanced, err := i.advanceRegistry(req)
		if err != nil {
			return nil, err
		}

		result.RegistryState = advanced.state
		result.Delta = advanced.delta
		witness = advanced.witness
		revReg = advanced.registry
		revRegID = req.Revocation.Definition.ID
		revIndex = advanced.index
	}

	encoded := make(map[string]string, len(req.Values))
	for name, value := range req.Values {
		encoded[name] = value.Encoded
	}

	signature, err := i.signer.SignCredential(&api.SignRequest{
		Public:          req.CredDef.Value.Primary,
		Private:         req.CredDefPrivate.Value,
		BlindedSecret:   req.Request.BlindedMS,
		BlindedProof:    req.Request.BlindedMSCorrectnessProof,
		Values:          encoded,
		RevocationIndex: revIndex,
		OfferNonce:      req.Offer.Nonce,
		RequestNonce:    req.Request.Nonce,
	})
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "sign credential: %w", err)
	}

	result.Credential = &anoncreds.Credential{
		SchemaID:  req.CredDef.SchemaID,
		CredDefID: req.CredDef.ID,
		RevRegID:  revRegID,
		Values:    req.Values,
		Signature: signature,
		RevReg:    revReg,
		Witness:   witness,
	}

	logger.Debugf("issued credential under %s (revocation index %d)", req.CredDef.ID, revIndex)

	return result, nil
}

type advancedRegistry struct {
	state    *revocation.State
	delta    *anoncreds.RevocationRegistryDelta
	witness  json.RawMessage
	registry json.RawMessage
	index    uint32
}

// advanceRegistry assigns a registry index, moves the registry state and
// issues the holder witness for it.
func (i *Issuer) advanceRegistry(req *CreateCredentialRequest) (*advancedRegistry, error) {
	rev := req.Revocation

	if rev.Definition == nil || rev.Private == nil || rev.State == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing revocation registry material")
	}

	if !req.CredDef.SupportsRevocation() {
		return nil, anoncreds.NewError(anoncreds.Input, "credential definition does not support revocation")
	}

	if rev.Definition.CredDefID != req.CredDef.ID {
		return nil, anoncreds.NewError(anoncreds.Input,
			"revocation registry belongs to a different credential definition")
	}

	index := rev.Index
	if index == 0 {
		index = rev.State.NextIndex(rev.Definition)
		if index == 0 {
			return nil, anoncreds.NewErrorf(anoncreds.RevocationRegistryFull,
				"revocation registry %s has no free index", rev.Definition.ID)
		}
	}

	state, delta, err := i.registry.UpdateRegistry(rev.Definition, rev.State, []uint32{index}, nil, rev.Tails)
	if err != nil {
		return nil, err
	}

	witness, err := i.accum.IssueRevocation(rev.Definition.Value.PublicKeys, rev.Private.Value, rev.Tails,
		index, rev.Definition.Value.MaxCredNum, state.ActiveIndexes(rev.Definition))
	if err != nil {
		return nil, fmt.Errorf("issue revocation witness: %w", err)
	}

	registry, err := json.Marshal(state.Registry())
	if err != nil {
		return nil, fmt.Errorf("marshal registry entry: %w", err)
	}

	return &advancedRegistry{
		state:    state,
		delta:    delta,
		witness:  witness,
		registry: registry,
		index:    index,
	}, nil
}
