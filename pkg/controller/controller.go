/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package controller aggregates the credential engine's controller API
// handlers, for embedders that mount the operation set onto their own
// transport.
package controller

import (
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller/command"
	anoncredscmd "github.com/andrewwhitehead/anoncreds-rs/pkg/controller/command/anoncreds"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller/rest"
	anoncredsrest "github.com/andrewwhitehead/anoncreds-rs/pkg/controller/rest/anoncreds"
)

// Provider contains the dependencies of the controller operations.
type Provider interface {
	// StorageProvider backs the holder-side object store.
	StorageProvider() storage.Provider
	// TailsDir is the directory registry tails files are written to and
	// fetched into.
	TailsDir() string
}

// GetRESTHandlers returns all REST API handlers provided by the controller.
func GetRESTHandlers(ctx Provider) ([]rest.Handler, error) {
	anoncredsOp, err := anoncredsrest.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create anoncreds rest operation : %w", err)
	}

	return anoncredsOp.GetRESTHandlers(), nil
}

// GetCommandHandlers returns all controller command handlers.
func GetCommandHandlers(ctx Provider) ([]command.Handler, error) {
	anoncredsCmd, err := anoncredscmd.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create anoncreds command : %w", err)
	}

	return anoncredsCmd.GetHandlers(), nil
}
