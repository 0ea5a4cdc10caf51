/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"crypto/sha256"
	"math/big"
	"strconv"
)

// MaxAttributes caps the attribute count of a schema and of the values
// signed into a credential.
const MaxAttributes = 125

// EncodeCredentialAttribute maps a raw attribute value to its canonical
// integer encoding: a decimal integer within int32 range encodes as itself,
// anything else as the big-endian SHA-256 integer of the UTF-8 value in
// decimal. The mapping is the ecosystem-standard one, so encoded values
// interoperate with credentials produced elsewhere.
func EncodeCredentialAttribute(raw string) string {
	if i, err := strconv.ParseInt(raw, 10, 32); err == nil && strconv.FormatInt(i, 10) == raw {
		return raw
	}

	digest := sha256.Sum256([]byte(raw))

	return new(big.Int).SetBytes(digest[:]).String()
}

// EncodeCredentialAttributes encodes a list of raw values in order.
func EncodeCredentialAttributes(raws []string) []string {
	encoded := make([]string, len(raws))
	for i, raw := range raws {
		encoded[i] = EncodeCredentialAttribute(raw)
	}

	return encoded
}

// AttributeValue is a raw attribute value together with its canonical
// integer encoding.
type AttributeValue struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
}

// CredentialValues maps attribute names to their raw/encoded value pairs.
type CredentialValues map[string]*AttributeValue

// NewCredentialValues encodes each raw value. It rejects empty attribute
// names and value sets outside the 1..MaxAttributes range.
func NewCredentialValues(raw map[string]string) (CredentialValues, error) {
	if len(raw) == 0 {
		return nil, NewError(Input, "no credential values given")
	}

	if len(raw) > MaxAttributes {
		return nil, NewErrorf(Input, "%d credential values given, maximum is %d", len(raw), MaxAttributes)
	}

	values := make(CredentialValues, len(raw))

	for name, value := range raw {
		if name == "" {
			return nil, NewError(Input, "credential value with empty attribute name")
		}

		values[name] = &AttributeValue{Raw: value, Encoded: EncodeCredentialAttribute(value)}
	}

	return values, nil
}

// Validate checks the structural shape of the value set. Whether an encoding
// is the canonical one is checked at verification time against revealed
// values, so credentials minted with legacy encodings still parse.
func (v CredentialValues) Validate() error {
	if len(v) == 0 {
		return NewError(Input, "no credential values")
	}

	if len(v) > MaxAttributes {
		return NewErrorf(Input, "%d credential values, maximum is %d", len(v), MaxAttributes)
	}

	for name, value := range v {
		if name == "" {
			return NewError(Input, "credential value with empty attribute name")
		}

		if value == nil {
			return NewErrorf(Input, "credential value %q is null", name)
		}

		if value.Encoded == "" {
			return NewErrorf(Input, "credential value %q has no encoded form", name)
		}
	}

	return nil
}
