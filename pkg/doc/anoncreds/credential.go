/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Credential is an issued credential: the signed attribute values plus the
// signature material. Between issuance and processing the signature still
// contains the issuer's blinding term; ProcessCredential on the holder side
// rewrites it into its final form.
type Credential struct {
	SchemaID                  string           `json:"schema_id"`
	CredDefID                 string           `json:"cred_def_id"`
	RevRegID                  string           `json:"rev_reg_id,omitempty"`
	Values                    CredentialValues `json:"values"`
	Signature                 json.RawMessage  `json:"signature"`
	SignatureCorrectnessProof json.RawMessage  `json:"signature_correctness_proof,omitempty"`
	RevReg                    json.RawMessage  `json:"rev_reg,omitempty"`
	Witness                   json.RawMessage  `json:"witness,omitempty"`
}

// ParseCredential builds a credential from its canonical JSON.
func ParseCredential(raw []byte) (*Credential, error) {
	cred := &Credential{}
	if err := json.Unmarshal(raw, cred); err != nil {
		return nil, NewErrorf(Input, "parse credential: %w", err)
	}

	if err := cred.Validate(); err != nil {
		return nil, err
	}

	return cred, nil
}

// Validate checks identifiers, values and signature presence.
func (c *Credential) Validate() error {
	if err := ValidateIdentifier(c.SchemaID); err != nil {
		return fmt.Errorf("credential schema id: %w", err)
	}

	if err := ValidateIdentifier(c.CredDefID); err != nil {
		return fmt.Errorf("credential definition id: %w", err)
	}

	if c.RevRegID != "" {
		if err := ValidateIdentifier(c.RevRegID); err != nil {
			return fmt.Errorf("credential revocation registry id: %w", err)
		}
	}

	if err := c.Values.Validate(); err != nil {
		return fmt.Errorf("credential values: %w", err)
	}

	if len(c.Signature) == 0 {
		return NewError(Input, "credential has no signature")
	}

	return nil
}

// RevocationIndex returns the registry index the credential was issued
// under, or 0 when the credential is not revocable.
func (c *Credential) RevocationIndex() uint32 {
	if len(c.Signature) == 0 {
		return 0
	}

	sig := struct {
		RevIndex uint32 `json:"rev_index"`
	}{}

	if err := json.Unmarshal(c.Signature, &sig); err != nil {
		return 0
	}

	return sig.RevIndex
}

// Attribute returns credential metadata by name: "schema_id", "cred_def_id",
// "rev_reg_id" or "rev_reg_index". A credential without revocation answers
// the revocation names with the empty string. Any other name is looked up
// among the signed values and answers with the raw value.
func (c *Credential) Attribute(name string) (string, error) {
	switch name {
	case "schema_id":
		return c.SchemaID, nil
	case "cred_def_id":
		return c.CredDefID, nil
	case "rev_reg_id":
		return c.RevRegID, nil
	case "rev_reg_index":
		if c.RevRegID == "" {
			return "", nil
		}

		return strconv.FormatUint(uint64(c.RevocationIndex()), 10), nil
	default:
		if value := c.Values[name]; value != nil {
			return value.Raw, nil
		}

		return "", NewErrorf(Input, "unsupported attribute %q", name)
	}
}
