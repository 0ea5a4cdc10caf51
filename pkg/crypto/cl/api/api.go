/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package api defines the primitive interfaces the credential engine expects
// from a CL-style signature backend. Key material, signatures and proofs
// cross this boundary as opaque JSON documents so that backends with
// different internal representations stay interchangeable.
package api

import (
	"encoding/json"
	"strings"

	"golang.org/x/exp/slices"
)

// Predicate operation names accepted in proof requests.
const (
	PredicateGE = "GE"
	PredicateGT = "GT"
	PredicateLE = "LE"
	PredicateLT = "LT"
)

// CredentialKeys is the key material backing a credential definition.
type CredentialKeys struct {
	Public           json.RawMessage
	Private          json.RawMessage
	CorrectnessProof json.RawMessage
}

// BlindedSecret is the holder-side blinding of the link secret. Blinded and
// CorrectnessProof travel to the issuer inside the credential request,
// BlindingData never leaves the holder.
type BlindedSecret struct {
	Blinded          json.RawMessage
	CorrectnessProof json.RawMessage
	BlindingData     json.RawMessage
}

// SignRequest carries the issuer inputs for signing one credential.
// Values maps attribute names to encoded values. RevocationIndex is the
// 1-based registry position of the credential, zero for non-revocable
// credentials. OfferNonce and RequestNonce are the exchange nonces;
// nonce-binding backends fold them into the signature correctness proof,
// the default backend binds the exchange through the blinding commitment
// instead and ignores them.
type SignRequest struct {
	Public          json.RawMessage
	Private         json.RawMessage
	BlindedSecret   json.RawMessage
	BlindedProof    json.RawMessage
	Values          map[string]string
	RevocationIndex uint32
	OfferNonce      string
	RequestNonce    string
}

// ProcessRequest carries the holder inputs for finalizing a received
// signature.
type ProcessRequest struct {
	Public          json.RawMessage
	Signature       json.RawMessage
	BlindingData    json.RawMessage
	MasterSecret    json.RawMessage
	Values          map[string]string
	RevocationIndex uint32
	RequestNonce    string
}

// Predicate asserts an integer comparison over a credential attribute.
type Predicate struct {
	Attr  string
	Op    string
	Value int32
}

// SortPredicates puts a predicate list into its canonical order. Proof
// documents carry predicate components positionally, so prover and verifier
// must build their lists in the same order.
func SortPredicates(preds []*Predicate) {
	slices.SortFunc(preds, func(a, b *Predicate) int {
		if c := strings.Compare(a.Attr, b.Attr); c != 0 {
			return c
		}

		if c := strings.Compare(a.Op, b.Op); c != 0 {
			return c
		}

		return int(a.Value) - int(b.Value)
	})
}

// NonRevocationInput is the prover material for one non-revocation claim.
type NonRevocationInput struct {
	RegistryPublic json.RawMessage
	Accumulator    string
	Witness        json.RawMessage
}

// NonRevocationPublic is the verifier view of one non-revocation claim.
type NonRevocationPublic struct {
	RegistryPublic json.RawMessage
	Accumulator    string
}

// SubProof describes one credential entering a proof.
type SubProof struct {
	Public        json.RawMessage
	Signature     json.RawMessage
	MasterSecret  json.RawMessage
	Values        map[string]string
	Revealed      []string
	Predicates    []*Predicate
	NonRevocation *NonRevocationInput
}

// ProofRequest carries the prover inputs for building a presentation proof.
// The nonce is the decimal nonce of the presentation request.
type ProofRequest struct {
	Nonce     string
	SubProofs []*SubProof
}

// SubProofPublic describes the public inputs for verifying one sub proof.
type SubProofPublic struct {
	Public        json.RawMessage
	Revealed      map[string]string
	Predicates    []*Predicate
	NonRevocation *NonRevocationPublic
}

// VerifyRequest carries the verifier inputs for checking a presentation
// proof. SubProofs is positional and must align with the proof document.
type VerifyRequest struct {
	Nonce     string
	Proof     json.RawMessage
	SubProofs []*SubProofPublic
}

// Signer is the issuer-side signing primitive.
type Signer interface {
	CreateCredentialKeys(attrNames []string, supportRevocation bool) (*CredentialKeys, error)
	VerifyBlindedSecret(pub, blinded, proof json.RawMessage, offerNonce string) error
	SignCredential(req *SignRequest) (json.RawMessage, error)
}

// Blinder is the holder-side blinding primitive.
type Blinder interface {
	CreateMasterSecret() (json.RawMessage, error)
	VerifyKeyCorrectnessProof(pub, proof json.RawMessage, attrNames []string) error
	BlindMasterSecret(pub, keyProof, masterSecret json.RawMessage, offerNonce string) (*BlindedSecret, error)
	ProcessSignature(req *ProcessRequest) (json.RawMessage, error)
}

// Prover builds presentation proofs over one or more credentials.
type Prover interface {
	CreateProof(req *ProofRequest) (json.RawMessage, error)
}

// Verifier checks presentation proofs. A proof that parses but does not
// hold reports false with a nil error.
type Verifier interface {
	VerifyProof(req *VerifyRequest) (bool, error)
}

// RegistryKeys is the key material backing a revocation registry.
type RegistryKeys struct {
	Public  json.RawMessage
	Private json.RawMessage
}

// TailsEntry is one precomputed registry point pair in compressed form.
type TailsEntry struct {
	G1 []byte
	G2 []byte
}

// TailsReader yields tails entries by 1-based index. Indexes run from 1 to
// twice the registry capacity, the index capacity+1 is never requested.
type TailsReader interface {
	Entry(index uint32) (*TailsEntry, error)
}

// Accumulator is the registry-side revocation primitive.
type Accumulator interface {
	CreateRegistryKeys(maxCredNum uint32) (*RegistryKeys, error)
	GenerateTails(private json.RawMessage, maxCredNum uint32, emit func(index uint32, entry *TailsEntry) error) error
	ComputeAccumulator(tails TailsReader, maxCredNum uint32, active []uint32) (string, error)
	UpdateAccumulator(accum string, tails TailsReader, maxCredNum uint32, issued, revoked []uint32) (string, error)
	IssueRevocation(pub, priv json.RawMessage, tails TailsReader, index, maxCredNum uint32, active []uint32) (json.RawMessage, error)
	ComputeWitness(witness json.RawMessage, tails TailsReader, maxCredNum uint32, active []uint32) (json.RawMessage, error)
	UpdateWitness(witness json.RawMessage, tails TailsReader, maxCredNum uint32, issued, revoked []uint32) (json.RawMessage, error)
}
