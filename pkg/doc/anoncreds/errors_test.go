/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKindCodes(t *testing.T) {
	kinds := []ErrorKind{
		Success, Input, IOError, InvalidState, Unexpected,
		CredentialRevoked, InvalidUserRevocID, ProofRejected, RevocationRegistryFull,
	}

	for i, kind := range kinds {
		require.Equal(t, int32(i), kind.Code())
	}
}

func TestErrorKindString(t *testing.T) {
	require.Equal(t, "input error", Input.String())
	require.Equal(t, "revocation registry full", RevocationRegistryFull.String())
	require.Contains(t, ErrorKind(99).String(), "unknown error kind")
}

func TestNewError(t *testing.T) {
	err := NewError(Input, "attribute count exceeds maximum")

	require.Equal(t, Input, err.Kind())
	require.EqualError(t, err, "attribute count exceeds maximum")
	require.Nil(t, err.Unwrap())
}

func TestNewErrorEmptyMessage(t *testing.T) {
	err := NewError(InvalidState, "")

	require.EqualError(t, err, "invalid state")
}

func TestNewErrorfWrapsCause(t *testing.T) {
	cause := errors.New("read failed")
	err := NewErrorf(IOError, "open tails file: %w", cause)

	require.EqualError(t, err, "open tails file: read failed")
	require.Equal(t, cause, errors.Unwrap(err))
	require.True(t, errors.Is(err, cause))
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := NewError(ProofRejected, "aggregate challenge mismatch")

	require.True(t, errors.Is(err, ProofRejected))
	require.False(t, errors.Is(err, Input))

	t.Run("through fmt.Errorf chain", func(t *testing.T) {
		wrapped := fmt.Errorf("verify presentation: %w", err)

		require.True(t, errors.Is(wrapped, ProofRejected))
	})
}

func TestKindOf(t *testing.T) {
	t.Run("nil is success", func(t *testing.T) {
		require.Equal(t, Success, KindOf(nil))
	})

	t.Run("engine error", func(t *testing.T) {
		require.Equal(t, RevocationRegistryFull, KindOf(NewError(RevocationRegistryFull, "all indexes issued")))
	})

	t.Run("wrapped engine error", func(t *testing.T) {
		err := fmt.Errorf("create credential: %w", NewError(CredentialRevoked, "index 3 revoked"))

		require.Equal(t, CredentialRevoked, KindOf(err))
	})

	t.Run("bare kind", func(t *testing.T) {
		err := fmt.Errorf("update state: %w", InvalidUserRevocID)

		require.Equal(t, InvalidUserRevocID, KindOf(err))
	})

	t.Run("foreign error is unexpected", func(t *testing.T) {
		require.Equal(t, Unexpected, KindOf(errors.New("boom")))
	})
}
