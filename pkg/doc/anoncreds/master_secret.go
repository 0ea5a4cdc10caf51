/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
)

// MasterSecret is the holder's link secret. The same secret is blinded into
// every credential request, which is what lets a verifier check that the
// credentials behind a presentation share one holder without learning the
// secret. The value document is backend-specific.
type MasterSecret struct {
	Value json.RawMessage `json:"value"`
}

// ParseMasterSecret builds a master secret from its canonical JSON.
func ParseMasterSecret(raw []byte) (*MasterSecret, error) {
	secret := &MasterSecret{}
	if err := json.Unmarshal(raw, secret); err != nil {
		return nil, NewErrorf(Input, "parse master secret: %w", err)
	}

	if err := secret.Validate(); err != nil {
		return nil, err
	}

	return secret, nil
}

// Validate checks the secret material is present.
func (s *MasterSecret) Validate() error {
	if len(s.Value) == 0 {
		return NewError(Input, "master secret is empty")
	}

	return nil
}
