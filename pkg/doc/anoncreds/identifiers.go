/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"crypto/sha256"
	"regexp"

	"github.com/btcsuite/btcutil/base58"
)

// Identifiers are either URIs or legacy base58 strings of 21-22 characters,
// the two grammars accepted by the established credential exchange formats.
var (
	uriIdentifierRegex    = regexp.MustCompile(`^[a-zA-Z0-9+.-]+:.+$`)
	legacyIdentifierRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{21,22}$`)
)

// Validatable is implemented by every object that crosses the engine
// boundary as JSON.
type Validatable interface {
	Validate() error
}

// ValidateIdentifier checks that id matches one of the accepted identifier
// grammars. The empty string is rejected.
func ValidateIdentifier(id string) error {
	if id == "" {
		return NewError(Input, "identifier is empty")
	}

	if !uriIdentifierRegex.MatchString(id) && !legacyIdentifierRegex.MatchString(id) {
		return NewErrorf(Input, "invalid identifier %q", id)
	}

	return nil
}

// IsURIIdentifier reports whether id uses the URI grammar rather than the
// legacy base58 one.
func IsURIIdentifier(id string) bool {
	return uriIdentifierRegex.MatchString(id)
}

// NewLegacyIdentifier derives a legacy-style identifier from seed material:
// base58 over the first 16 bytes of its SHA-256 digest, which always falls
// in the accepted 21-22 character range.
func NewLegacyIdentifier(seed []byte) string {
	digest := sha256.Sum256(seed)

	return base58.Encode(digest[:16])
}
