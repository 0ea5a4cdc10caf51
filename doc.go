/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package anoncreds provides an engine for issuing, holding and verifying
// anonymous credentials with selective attribute disclosure, integer
// predicates and credential revocation.
//
// Packages for end developer usage
//
// pkg/anoncreds/issuer, pkg/anoncreds/holder, pkg/anoncreds/verifier: The
// issuance and presentation workflows. An issuer creates schemas, credential
// definitions and credentials; a holder blinds its master secret, processes
// received credentials and builds presentations; a verifier checks
// presentations against a presentation request.
//
// pkg/anoncreds/revocation, pkg/anoncreds/tails: Revocation registries backed
// by a cryptographic accumulator, including tails file generation, caching
// and remote fetch.
//
// pkg/anoncreds/bindings: A handle-based facade over the packages above, for
// embedding the engine behind a flat function surface.
//
// pkg/controller: The controller command and REST operations, exposing the
// engine over HTTP. The cmd/anoncreds-rest binary serves them.
//
// Basic workflow
//
//	1) Issuer: CreateSchema, CreateCredentialDefinition, CreateCredentialOffer.
//	2) Holder: CreateMasterSecret, CreateCredentialRequest.
//	3) Issuer: CreateCredential against the request.
//	4) Holder: ProcessCredential, then CreatePresentation for a proof request.
//	5) Verifier: VerifyPresentation.
package anoncreds
