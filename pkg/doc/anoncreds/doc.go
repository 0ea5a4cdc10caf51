/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package anoncreds provides the shared vocabulary of the anonymous
// credential engine: the object model exchanged between issuers, holders and
// verifiers (schemas, credential definitions, offers, requests, credentials,
// revocation registries, presentation requests and presentations), the
// canonical JSON forms of those objects, identifier and attribute-value
// validation, and the categorical error type every engine operation returns.
//
// Objects round-trip through their canonical JSON: each type parses from the
// wire form it marshals to, so holders can persist objects between calls.
// Cryptographic payloads inside the model (keys, signatures, proofs) are
// carried opaquely and interpreted by the crypto backends under
// pkg/crypto/cl.
package anoncreds
