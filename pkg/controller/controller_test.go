/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	mockstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mock/storage"
	"github.com/stretchr/testify/require"

	mockprovider "github.com/andrewwhitehead/anoncreds-rs/pkg/mock/provider"
)

func TestGetRESTHandlers(t *testing.T) {
	handlers, err := GetRESTHandlers(&mockprovider.Provider{
		StorageProviderValue: mem.NewProvider(),
		TailsDirValue:        t.TempDir(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, handlers)

	for _, h := range handlers {
		require.NotEmpty(t, h.Path())
		require.NotEmpty(t, h.Method())
		require.NotNil(t, h.Handle())
	}
}

func TestGetRESTHandlersFailure(t *testing.T) {
	_, err := GetRESTHandlers(&mockprovider.Provider{
		StorageProviderValue: &mockstorage.MockStoreProvider{ErrOpenStoreHandle: errors.New("open store failed")},
		TailsDirValue:        t.TempDir(),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "create anoncreds rest operation")
}

func TestGetCommandHandlers(t *testing.T) {
	handlers, err := GetCommandHandlers(&mockprovider.Provider{
		StorageProviderValue: mem.NewProvider(),
		TailsDirValue:        t.TempDir(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, handlers)

	for _, h := range handlers {
		require.Equal(t, "anoncreds", h.Name())
		require.NotEmpty(t, h.Method())
		require.NotNil(t, h.Handle())
	}
}
