/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
)

// SignatureTypeCL is the only credential signature type the engine issues.
const SignatureTypeCL = "CL"

// CredentialDefinition is the public half of an issuer's signing key for one
// schema, published under its own identifier. The primary key material and
// the optional revocation key material are backend-specific documents.
type CredentialDefinition struct {
	Ver      string                   `json:"ver"`
	ID       string                   `json:"id"`
	SchemaID string                   `json:"schemaId"`
	Type     string                   `json:"type"`
	Tag      string                   `json:"tag"`
	Value    CredentialDefinitionData `json:"value"`
}

// CredentialDefinitionData carries the key material of a credential
// definition.
type CredentialDefinitionData struct {
	Primary    json.RawMessage `json:"primary"`
	Revocation json.RawMessage `json:"revocation,omitempty"`
}

// SupportsRevocation reports whether credentials under this definition can
// be revoked.
func (d *CredentialDefinition) SupportsRevocation() bool {
	return len(d.Value.Revocation) > 0
}

// ParseCredentialDefinition builds a credential definition from its
// canonical JSON.
func ParseCredentialDefinition(raw []byte) (*CredentialDefinition, error) {
	def := &CredentialDefinition{}
	if err := json.Unmarshal(raw, def); err != nil {
		return nil, NewErrorf(Input, "parse credential definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// Validate checks identifiers, the signature type and the presence of key
// material.
func (d *CredentialDefinition) Validate() error {
	if err := ValidateIdentifier(d.ID); err != nil {
		return fmt.Errorf("credential definition id: %w", err)
	}

	if err := ValidateIdentifier(d.SchemaID); err != nil {
		return fmt.Errorf("credential definition schema id: %w", err)
	}

	if d.Type != SignatureTypeCL {
		return NewErrorf(Input, "unsupported signature type %q", d.Type)
	}

	if d.Tag == "" {
		return NewError(Input, "credential definition tag is empty")
	}

	if len(d.Value.Primary) == 0 {
		return NewError(Input, "credential definition has no primary key material")
	}

	return nil
}

// CredentialDefinitionPrivate is the issuer's private key for a credential
// definition. It never leaves the issuer.
type CredentialDefinitionPrivate struct {
	Value json.RawMessage `json:"value"`
}

// ParseCredentialDefinitionPrivate builds the private key object from its
// canonical JSON.
func ParseCredentialDefinitionPrivate(raw []byte) (*CredentialDefinitionPrivate, error) {
	private := &CredentialDefinitionPrivate{}
	if err := json.Unmarshal(raw, private); err != nil {
		return nil, NewErrorf(Input, "parse credential definition private key: %w", err)
	}

	if err := private.Validate(); err != nil {
		return nil, err
	}

	return private, nil
}

// Validate checks that key material is present.
func (p *CredentialDefinitionPrivate) Validate() error {
	if len(p.Value) == 0 {
		return NewError(Input, "credential definition private key is empty")
	}

	return nil
}

// KeyCorrectnessProof attests that the published credential definition keys
// are well formed. It travels inside credential offers.
type KeyCorrectnessProof struct {
	Value json.RawMessage
}

// MarshalJSON writes the proof document as-is.
func (p *KeyCorrectnessProof) MarshalJSON() ([]byte, error) {
	if len(p.Value) == 0 {
		return []byte("null"), nil
	}

	return p.Value, nil
}

// UnmarshalJSON keeps the proof document as-is.
func (p *KeyCorrectnessProof) UnmarshalJSON(raw []byte) error {
	p.Value = append(p.Value[:0], raw...)

	return nil
}

// ParseKeyCorrectnessProof builds the proof object from its canonical JSON.
func ParseKeyCorrectnessProof(raw []byte) (*KeyCorrectnessProof, error) {
	proof := &KeyCorrectnessProof{}
	if err := json.Unmarshal(raw, proof); err != nil {
		return nil, NewErrorf(Input, "parse key correctness proof: %w", err)
	}

	if err := proof.Validate(); err != nil {
		return nil, err
	}

	return proof, nil
}

// Validate checks that the proof document is present.
func (p *KeyCorrectnessProof) Validate() error {
	if len(p.Value) == 0 || string(p.Value) == "null" {
		return NewError(Input, "key correctness proof is empty")
	}

	return nil
}
