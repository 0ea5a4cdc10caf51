/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main (anoncreds-rest) starts the anonymous credential engine's
// controller API as an HTTP service.
//
//	Schemes: https
//	Version: 0.1.0
//	License: SPDX-License-Identifier: Apache-2.0
//
//	Consumes:
//	- application/json
//
//	Produces:
//	- application/json
//
// swagger:meta
package main

import (
	"github.com/spf13/cobra"

	"github.com/andrewwhitehead/anoncreds-rs/cmd/anoncreds-rest/startcmd"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use: "anoncreds-rest",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	logger := log.New("anoncreds/rest-server")

	startCmd, err := startcmd.Cmd(&startcmd.HTTPServer{})
	if err != nil {
		logger.Fatalf(err.Error())
	}

	rootCmd.AddCommand(startCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run anoncreds-rest: %s", err)
	}
}
