/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRegistryDefinition(t *testing.T) *RevocationRegistryDefinition {
	t.Helper()

	return &RevocationRegistryDefinition{
		Ver:          "1.0",
		ID:           testRevRegID,
		RevocDefType: RevocationMethodCLAccum,
		Tag:          "reg0",
		CredDefID:    testCredDefID,
		Value: RevocationRegistryDefinitionData{
			IssuanceType:  IssuanceByDefault,
			MaxCredNum:    16,
			PublicKeys:    json.RawMessage(`{"accumKey":{"z":"pt"}}`),
			TailsHash:     "GmanuTu6SGamMZyoDtDNZhDRcpSvMrAGQ9BTrNCjkKAU",
			TailsLocation: "/tmp/tails",
		},
	}
}

func TestRevocationRegistryDefinition(t *testing.T) {
	def := testRegistryDefinition(t)
	require.NoError(t, def.Validate())

	raw, err := json.Marshal(def)
	require.NoError(t, err)

	parsed, err := ParseRevocationRegistryDefinition(raw)
	require.NoError(t, err)
	require.Equal(t, def, parsed)

	t.Run("bad method", func(t *testing.T) {
		def := testRegistryDefinition(t)
		def.RevocDefType = "MERKLE"
		require.True(t, errors.Is(def.Validate(), Input))
	})

	t.Run("bad issuance type", func(t *testing.T) {
		def := testRegistryDefinition(t)
		def.Value.IssuanceType = "SOMETIMES"
		require.True(t, errors.Is(def.Validate(), Input))
	})

	t.Run("zero capacity", func(t *testing.T) {
		def := testRegistryDefinition(t)
		def.Value.MaxCredNum = 0
		require.True(t, errors.Is(def.Validate(), Input))
	})
}

func TestRevocationRegistryDefinitionAttribute(t *testing.T) {
	def := testRegistryDefinition(t)

	for name, want := range map[string]string{
		"id":             testRevRegID,
		"max_cred_num":   "16",
		"tails_hash":     def.Value.TailsHash,
		"tails_location": "/tmp/tails",
	} {
		got, err := def.Attribute(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := def.Attribute("gamma")
	require.True(t, errors.Is(err, Input))
}

func TestRevocationRegistryRoundTrip(t *testing.T) {
	registry := &RevocationRegistry{Ver: "1.0", Value: RevocationRegistryValue{Accum: "acc1"}}

	raw, err := json.Marshal(registry)
	require.NoError(t, err)

	parsed, err := ParseRevocationRegistry(raw)
	require.NoError(t, err)
	require.Equal(t, registry, parsed)

	_, err = ParseRevocationRegistry([]byte(`{"ver":"1.0","value":{}}`))
	require.True(t, errors.Is(err, Input))
}

func delta(prev, accum string, issued, revoked []uint32) *RevocationRegistryDelta {
	return &RevocationRegistryDelta{
		Ver: "1.0",
		Value: RevocationRegistryDeltaValue{
			PrevAccum: prev,
			Accum:     accum,
			Issued:    issued,
			Revoked:   revoked,
		},
	}
}

func TestRevocationRegistryDeltaValidate(t *testing.T) {
	require.NoError(t, delta("", "a1", []uint32{1, 2}, []uint32{3}).Validate())

	t.Run("overlapping sets rejected", func(t *testing.T) {
		err := delta("", "a1", []uint32{1, 2}, []uint32{2}).Validate()
		require.True(t, errors.Is(err, Input))
	})

	t.Run("missing accumulator rejected", func(t *testing.T) {
		err := delta("", "", []uint32{1}, nil).Validate()
		require.True(t, errors.Is(err, Input))
	})
}

func TestRevocationRegistryDeltaMerge(t *testing.T) {
	t.Run("later delta wins per index", func(t *testing.T) {
		a := delta("", "a1", []uint32{1, 2, 3}, nil)
		b := delta("a1", "a2", []uint32{4}, []uint32{2})

		require.NoError(t, a.Merge(b))
		require.Equal(t, "a2", a.Value.Accum)
		require.Empty(t, a.Value.PrevAccum)
		require.Equal(t, []uint32{1, 3, 4}, a.Value.Issued)
		require.Equal(t, []uint32{2}, a.Value.Revoked)
	})

	t.Run("re-issue clears revocation", func(t *testing.T) {
		a := delta("", "a1", nil, []uint32{5})
		b := delta("a1", "a2", []uint32{5}, nil)

		require.NoError(t, a.Merge(b))
		require.Equal(t, []uint32{5}, a.Value.Issued)
		require.Empty(t, a.Value.Revoked)
	})

	t.Run("broken chain rejected", func(t *testing.T) {
		a := delta("", "a1", []uint32{1}, nil)
		b := delta("other", "a2", []uint32{2}, nil)

		err := a.Merge(b)
		require.True(t, errors.Is(err, Unexpected))
	})

	t.Run("missing prev accum rejected", func(t *testing.T) {
		a := delta("", "a1", []uint32{1}, nil)
		b := delta("", "a2", []uint32{2}, nil)

		require.True(t, errors.Is(a.Merge(b), Unexpected))
	})

	t.Run("associative", func(t *testing.T) {
		mk := func() (*RevocationRegistryDelta, *RevocationRegistryDelta, *RevocationRegistryDelta) {
			return delta("", "a1", []uint32{1, 2}, nil),
				delta("a1", "a2", []uint32{3}, []uint32{1}),
				delta("a2", "a3", []uint32{1}, []uint32{3})
		}

		// (a+b)+c
		a1, b1, c1 := mk()
		require.NoError(t, a1.Merge(b1))
		require.NoError(t, a1.Merge(c1))

		// a+(b+c)
		a2, b2, c2 := mk()
		require.NoError(t, b2.Merge(c2))
		require.NoError(t, a2.Merge(b2))

		require.Equal(t, a1, a2)
	})
}

func TestRevocationStateRoundTrip(t *testing.T) {
	state := &RevocationState{
		Witness:   json.RawMessage(`{"omega":"w1"}`),
		RevReg:    &RevocationRegistryValue{Accum: "acc1"},
		Timestamp: 42,
	}

	raw, err := json.Marshal(state)
	require.NoError(t, err)

	parsed, err := ParseRevocationState(raw)
	require.NoError(t, err)
	require.Equal(t, state, parsed)

	t.Run("witness required", func(t *testing.T) {
		_, err := ParseRevocationState([]byte(`{"rev_reg":{"accum":"a"},"timestamp":1}`))
		require.True(t, errors.Is(err, Input))
	})
}
