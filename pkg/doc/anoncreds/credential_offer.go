/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
)

// CredentialOffer starts the issuance exchange: it binds the coming
// credential to a schema and credential definition, proves key correctness
// and fixes the nonce the request proof must answer.
type CredentialOffer struct {
	SchemaID            string               `json:"schema_id"`
	CredDefID           string               `json:"cred_def_id"`
	KeyCorrectnessProof *KeyCorrectnessProof `json:"key_correctness_proof"`
	Nonce               string               `json:"nonce"`
	MethodName          string               `json:"method_name,omitempty"`
}

// ParseCredentialOffer builds an offer from its canonical JSON.
func ParseCredentialOffer(raw []byte) (*CredentialOffer, error) {
	offer := &CredentialOffer{}
	if err := json.Unmarshal(raw, offer); err != nil {
		return nil, NewErrorf(Input, "parse credential offer: %w", err)
	}

	if err := offer.Validate(); err != nil {
		return nil, err
	}

	return offer, nil
}

// Validate checks identifiers, the correctness proof and the nonce.
func (o *CredentialOffer) Validate() error {
	if err := ValidateIdentifier(o.SchemaID); err != nil {
		return fmt.Errorf("offer schema id: %w", err)
	}

	if err := ValidateIdentifier(o.CredDefID); err != nil {
		return fmt.Errorf("offer credential definition id: %w", err)
	}

	if o.KeyCorrectnessProof == nil {
		return NewError(Input, "offer has no key correctness proof")
	}

	if err := o.KeyCorrectnessProof.Validate(); err != nil {
		return fmt.Errorf("offer: %w", err)
	}

	if o.Nonce == "" {
		return NewError(Input, "offer nonce is empty")
	}

	return nil
}
