/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/multiformats/go-multibase"
	"github.com/piprate/json-gold/ld"
)

// Contexts and type names of the W3C verifiable-credential view.
const (
	W3CCredentialsContext = "https://www.w3.org/2018/credentials/v1"
	W3CAnoncredsContext   = "https://raw.githubusercontent.com/hyperledger/anoncreds-spec/main/data/anoncreds-w3c-context.json"
	W3CCredentialType     = "VerifiableCredential"
	W3CSchemaType         = "AnonCredsDefinition"
	W3CProofType          = "DataIntegrityProof"
	W3CCryptosuite        = "anoncreds-2023"
)

// W3CCredential is the W3C JSON-LD view of an anoncreds credential. It is a
// projection: the signature stays anoncreds-native, carried inside the proof
// value.
type W3CCredential struct {
	Context           []string             `json:"@context"`
	Type              []string             `json:"type"`
	Issuer            string               `json:"issuer"`
	IssuanceDate      string               `json:"issuanceDate"`
	CredentialSchema  *W3CCredentialSchema `json:"credentialSchema"`
	CredentialSubject map[string]string    `json:"credentialSubject"`
	Proof             *W3CProof            `json:"proof"`
}

// W3CCredentialSchema names the anoncreds definitions behind the credential.
type W3CCredentialSchema struct {
	Type       string `json:"type"`
	Definition string `json:"definition"`
	Schema     string `json:"schema"`
}

// W3CProof is a data-integrity-shaped proof whose multibase value carries
// the anoncreds signature material.
type W3CProof struct {
	Type        string `json:"type"`
	Cryptosuite string `json:"cryptosuite"`
	ProofValue  string `json:"proofValue"`
}

type w3cProofPayload struct {
	Signature                 json.RawMessage `json:"signature"`
	SignatureCorrectnessProof json.RawMessage `json:"signature_correctness_proof,omitempty"`
	RevRegID                  string          `json:"rev_reg_id,omitempty"`
	RevReg                    json.RawMessage `json:"rev_reg,omitempty"`
	Witness                   json.RawMessage `json:"witness,omitempty"`
}

// w3cOpts collects rendering options.
type w3cOpts struct {
	documentLoader ld.DocumentLoader
}

// W3COption configures the W3C rendering.
type W3COption func(*w3cOpts)

// WithDocumentLoader enables JSON-LD compaction of the rendered view using
// the given loader, validating the context chain without network access.
func WithDocumentLoader(loader ld.DocumentLoader) W3COption {
	return func(o *w3cOpts) {
		o.documentLoader = loader
	}
}

// ToW3C renders the W3C verifiable-credential view of the credential.
func (c *Credential) ToW3C(opts ...W3COption) (*W3CCredential, error) {
	options := &w3cOpts{}
	for _, opt := range opts {
		opt(options)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	subject := make(map[string]string, len(c.Values))
	for name, value := range c.Values {
		subject[name] = value.Raw
	}

	payload, err := json.Marshal(&w3cProofPayload{
		Signature:                 c.Signature,
		SignatureCorrectnessProof: c.SignatureCorrectnessProof,
		RevRegID:                  c.RevRegID,
		RevReg:                    c.RevReg,
		Witness:                   c.Witness,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal proof payload: %w", err)
	}

	proofValue, err := multibase.Encode(multibase.Base58BTC, payload)
	if err != nil {
		return nil, fmt.Errorf("encode proof value: %w", err)
	}

	issuer := c.CredDefID
	if doc := c.restrictionDocument(); doc["issuer_did"] != nil {
		issuer, _ = doc["issuer_did"].(string)
	}

	w3c := &W3CCredential{
		Context:      []string{W3CCredentialsContext, W3CAnoncredsContext},
		Type:         []string{W3CCredentialType},
		Issuer:       issuer,
		IssuanceDate: time.Now().UTC().Format(time.RFC3339),
		CredentialSchema: &W3CCredentialSchema{
			Type:       W3CSchemaType,
			Definition: c.CredDefID,
			Schema:     c.SchemaID,
		},
		CredentialSubject: subject,
		Proof: &W3CProof{
			Type:        W3CProofType,
			Cryptosuite: W3CCryptosuite,
			ProofValue:  proofValue,
		},
	}

	if options.documentLoader != nil {
		if err := compactW3C(w3c, options.documentLoader); err != nil {
			return nil, err
		}
	}

	return w3c, nil
}

// ParseW3CCredential decodes a W3C credential document and recovers the
// canonical credential from it. JSON-LD leaves single-element arrays free to
// appear as scalars and the issuer free to appear as an expanded object, so
// the document is normalized as a map before being decoded into the typed
// view.
func ParseW3CCredential(raw []byte) (*Credential, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, NewErrorf(Input, "parse w3c credential: %w", err)
	}

	for _, key := range []string{"@context", "type"} {
		if value, ok := doc[key].(string); ok {
			doc[key] = []string{value}
		}
	}

	if issuer, ok := doc["issuer"].(map[string]interface{}); ok {
		doc["issuer"] = issuer["id"]
	}

	w3c := &W3CCredential{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: w3c})
	if err != nil {
		return nil, fmt.Errorf("initialize w3c decoder: %w", err)
	}

	if err := decoder.Decode(doc); err != nil {
		return nil, NewErrorf(Input, "decode w3c credential: %w", err)
	}

	return FromW3C(w3c)
}

// FromW3C recovers the canonical credential from its W3C view.
func FromW3C(w3c *W3CCredential) (*Credential, error) {
	if w3c == nil || w3c.Proof == nil {
		return nil, NewError(Input, "w3c credential has no proof")
	}

	if w3c.Proof.Cryptosuite != W3CCryptosuite {
		return nil, NewErrorf(Input, "unsupported cryptosuite %q", w3c.Proof.Cryptosuite)
	}

	if w3c.CredentialSchema == nil || w3c.CredentialSchema.Type != W3CSchemaType {
		return nil, NewError(Input, "w3c credential has no anoncreds schema reference")
	}

	_, payloadRaw, err := multibase.Decode(w3c.Proof.ProofValue)
	if err != nil {
		return nil, NewErrorf(Input, "decode proof value: %w", err)
	}

	payload := &w3cProofPayload{}
	if err := json.Unmarshal(payloadRaw, payload); err != nil {
		return nil, NewErrorf(Input, "parse proof payload: %w", err)
	}

	values, err := NewCredentialValues(w3c.CredentialSubject)
	if err != nil {
		return nil, fmt.Errorf("w3c credential subject: %w", err)
	}

	cred := &Credential{
		SchemaID:                  w3c.CredentialSchema.Schema,
		CredDefID:                 w3c.CredentialSchema.Definition,
		RevRegID:                  payload.RevRegID,
		Values:                    values,
		Signature:                 payload.Signature,
		SignatureCorrectnessProof: payload.SignatureCorrectnessProof,
		RevReg:                    payload.RevReg,
		Witness:                   payload.Witness,
	}

	if err := cred.Validate(); err != nil {
		return nil, err
	}

	return cred, nil
}

// compactW3C runs JSON-LD compaction over the rendered view, which resolves
// and validates the context chain.
func compactW3C(w3c *W3CCredential, loader ld.DocumentLoader) error {
	raw, err := json.Marshal(w3c)
	if err != nil {
		return fmt.Errorf("marshal w3c credential: %w", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("reparse w3c credential: %w", err)
	}

	processor := ld.NewJsonLdProcessor()

	options := ld.NewJsonLdOptions("")
	options.DocumentLoader = loader
	options.ProcessingMode = ld.JsonLd_1_1

	context := map[string]interface{}{"@context": doc["@context"]}

	if _, err := processor.Compact(doc, context, options); err != nil {
		return NewErrorf(Input, "compact w3c credential: %w", err)
	}

	return nil
}
