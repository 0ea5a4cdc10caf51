/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateNonce(t *testing.T) {
	seen := map[string]struct{}{}

	for i := 0; i < 64; i++ {
		nonce, err := GenerateNonce()
		require.NoError(t, err)

		value, ok := new(big.Int).SetString(nonce, 10)
		require.True(t, ok, "nonce must be decimal: %s", nonce)
		require.True(t, value.Sign() >= 0)
		require.True(t, value.BitLen() <= 80, "nonce must fit 80 bits")

		seen[nonce] = struct{}{}
	}

	require.Len(t, seen, 64, "nonces must not repeat")
}
