/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bindings

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

func TestHandleTable(t *testing.T) {
	table := newHandleTable()

	first := table.allocate("one")
	second := table.allocate("two")
	require.NotZero(t, first)
	require.NotEqual(t, first, second)

	value, err := table.resolve(first)
	require.NoError(t, err)
	require.Equal(t, "one", value)

	require.NoError(t, table.release(first))

	_, err = table.resolve(first)
	require.True(t, errors.Is(err, anoncreds.InvalidState))
	require.True(t, errors.Is(table.release(first), anoncreds.InvalidState))

	t.Run("freed slot is reused under a new generation", func(t *testing.T) {
		third := table.allocate("three")
		require.NotEqual(t, first, third)

		genFirst, idxFirst, ok := splitHandle(first)
		require.True(t, ok)

		genThird, idxThird, ok := splitHandle(third)
		require.True(t, ok)

		require.Equal(t, idxFirst, idxThird)
		require.Equal(t, genFirst+1, genThird)

		_, err := table.resolve(first)
		require.True(t, errors.Is(err, anoncreds.InvalidState))

		value, err := table.resolve(third)
		require.NoError(t, err)
		require.Equal(t, "three", value)
	})

	t.Run("zero handle", func(t *testing.T) {
		_, err := table.resolve(0)
		require.True(t, errors.Is(err, anoncreds.Input))
		require.True(t, errors.Is(table.release(0), anoncreds.Input))
	})

	t.Run("out of range index", func(t *testing.T) {
		_, err := table.resolve(makeHandle(0, 9999))
		require.True(t, errors.Is(err, anoncreds.InvalidState))
	})
}

func TestHandleTableConcurrency(t *testing.T) {
	table := newHandleTable()

	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < 50; i++ {
				handle := table.allocate(i)

				if _, err := table.resolve(handle); err != nil {
					t.Error(err)

					return
				}

				if err := table.release(handle); err != nil {
					t.Error(err)

					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestTypeName(t *testing.T) {
	require.Equal(t, "Schema", typeName(&anoncreds.Schema{}))
	require.Equal(t, "Credential", typeName(&anoncreds.Credential{}))
	require.Equal(t, "Unknown", typeName(42))
}
