/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
)

// CredentialRequest answers a credential offer. It carries the holder's
// blinded link secret, the proof that the blinding is well formed bound to
// the offer nonce, and a fresh nonce for the issuer's signature correctness
// proof.
type CredentialRequest struct {
	ProverDID                 string          `json:"prover_did,omitempty"`
	CredDefID                 string          `json:"cred_def_id"`
	BlindedMS                 json.RawMessage `json:"blinded_ms"`
	BlindedMSCorrectnessProof json.RawMessage `json:"blinded_ms_correctness_proof"`
	Nonce                     string          `json:"nonce"`
}

// ParseCredentialRequest builds a request from its canonical JSON.
func ParseCredentialRequest(raw []byte) (*CredentialRequest, error) {
	request := &CredentialRequest{}
	if err := json.Unmarshal(raw, request); err != nil {
		return nil, NewErrorf(Input, "parse credential request: %w", err)
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	return request, nil
}

// Validate checks identifiers and the blinded secret material.
func (r *CredentialRequest) Validate() error {
	if r.ProverDID != "" {
		if err := ValidateIdentifier(r.ProverDID); err != nil {
			return fmt.Errorf("request prover did: %w", err)
		}
	}

	if err := ValidateIdentifier(r.CredDefID); err != nil {
		return fmt.Errorf("request credential definition id: %w", err)
	}

	if len(r.BlindedMS) == 0 {
		return NewError(Input, "request has no blinded link secret")
	}

	if len(r.BlindedMSCorrectnessProof) == 0 {
		return NewError(Input, "request has no blinded link secret correctness proof")
	}

	if r.Nonce == "" {
		return NewError(Input, "request nonce is empty")
	}

	return nil
}

// CredentialRequestMetadata is the holder-private counterpart of a
// credential request: the blinding factor needed to unblind the issued
// credential and the link-secret reference it was built from.
type CredentialRequestMetadata struct {
	MasterSecretBlindingData json.RawMessage `json:"master_secret_blinding_data"`
	Nonce                    string          `json:"nonce"`
	MasterSecretName         string          `json:"master_secret_name"`
}

// ParseCredentialRequestMetadata builds request metadata from its canonical
// JSON.
func ParseCredentialRequestMetadata(raw []byte) (*CredentialRequestMetadata, error) {
	metadata := &CredentialRequestMetadata{}
	if err := json.Unmarshal(raw, metadata); err != nil {
		return nil, NewErrorf(Input, "parse credential request metadata: %w", err)
	}

	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	return metadata, nil
}

// Validate checks the blinding material is present.
func (m *CredentialRequestMetadata) Validate() error {
	if len(m.MasterSecretBlindingData) == 0 {
		return NewError(Input, "request metadata has no blinding data")
	}

	if m.Nonce == "" {
		return NewError(Input, "request metadata nonce is empty")
	}

	return nil
}
