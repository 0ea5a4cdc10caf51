/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func hashEncoded(raw string) string {
	digest := sha256.Sum256([]byte(raw))

	return new(big.Int).SetBytes(digest[:]).String()
}

func TestEncodeCredentialAttribute(t *testing.T) {
	t.Run("int32 values pass through", func(t *testing.T) {
		for _, raw := range []string{"0", "3", "-5", "2147483647", "-2147483648"} {
			require.Equal(t, raw, EncodeCredentialAttribute(raw))
		}
	})

	t.Run("everything else hashes", func(t *testing.T) {
		for _, raw := range []string{
			"Alice",
			"3.9",
			"",
			"2147483648",  // one past int32 max
			"-2147483649", // one past int32 min
			"007",         // not the canonical decimal form
			"+3",
			" 3",
		} {
			encoded := EncodeCredentialAttribute(raw)
			require.Equal(t, hashEncoded(raw), encoded, "raw=%q", raw)
			require.NotEqual(t, raw, encoded)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t, EncodeCredentialAttribute("Alice"), EncodeCredentialAttribute("Alice"))
	})
}

func TestEncodeCredentialAttributes(t *testing.T) {
	encoded := EncodeCredentialAttributes([]string{"Alice", "3"})

	require.Len(t, encoded, 2)
	require.Equal(t, hashEncoded("Alice"), encoded[0])
	require.Equal(t, "3", encoded[1])
}

func TestNewCredentialValues(t *testing.T) {
	values, err := NewCredentialValues(map[string]string{"name": "Alice", "gpa": "3.9"})
	require.NoError(t, err)
	require.NoError(t, values.Validate())

	require.Equal(t, "Alice", values["name"].Raw)
	require.Equal(t, hashEncoded("Alice"), values["name"].Encoded)
	require.Equal(t, hashEncoded("3.9"), values["gpa"].Encoded)

	t.Run("empty set rejected", func(t *testing.T) {
		_, err := NewCredentialValues(nil)
		require.True(t, errors.Is(err, Input))
	})

	t.Run("empty attribute name rejected", func(t *testing.T) {
		_, err := NewCredentialValues(map[string]string{"": "x"})
		require.True(t, errors.Is(err, Input))
	})

	t.Run("attribute cap enforced", func(t *testing.T) {
		raw := make(map[string]string, MaxAttributes+1)
		for i := 0; i <= MaxAttributes; i++ {
			raw[fmt.Sprintf("attr%d", i)] = "v"
		}

		_, err := NewCredentialValues(raw)
		require.True(t, errors.Is(err, Input))
	})
}
