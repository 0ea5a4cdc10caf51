/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package provider

import (
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

// Provider mocks the context needed to initialize stores and commands.
type Provider struct {
	StorageProviderValue storage.Provider
	TailsDirValue        string
}

// StorageProvider returns the mock storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.StorageProviderValue
}

// TailsDir returns the mock tails directory path.
func (p *Provider) TailsDir() string {
	return p.TailsDirValue
}
