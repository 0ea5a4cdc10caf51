/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"math/big"

	"github.com/google/tink/go/subtle/random"
)

// nonceSize is the byte length of the 80-bit nonces used by offers, requests
// and presentation requests.
const nonceSize = 10

// GenerateNonce returns a fresh 80-bit nonce rendered as a decimal string.
func GenerateNonce() (string, error) {
	raw := random.GetRandomBytes(nonceSize)

	return new(big.Int).SetBytes(raw).String(), nil
}
