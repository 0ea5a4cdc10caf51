/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
)

// RevocationState is the holder-side non-revocation material for one
// credential at one registry timestamp: the membership witness against the
// accumulator value that was current then, plus the registry public key the
// presentation proof is built against. The witness and registry documents
// are backend-specific.
type RevocationState struct {
	Witness   json.RawMessage          `json:"witness"`
	RevReg    *RevocationRegistryValue `json:"rev_reg"`
	Registry  json.RawMessage          `json:"registry,omitempty"`
	Timestamp uint64                   `json:"timestamp"`
}

// ParseRevocationState builds a revocation state from its canonical JSON.
func ParseRevocationState(raw []byte) (*RevocationState, error) {
	state := &RevocationState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, NewErrorf(Input, "parse revocation state: %w", err)
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}

	return state, nil
}

// Validate checks witness and accumulator presence.
func (s *RevocationState) Validate() error {
	if len(s.Witness) == 0 {
		return NewError(Input, "revocation state has no witness")
	}

	if s.RevReg == nil || s.RevReg.Accum == "" {
		return NewError(Input, "revocation state has no registry value")
	}

	return nil
}
