/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package revocation drives the registry side of credential revocation: it
// creates registries, hands out and revokes indexes, publishes deltas and
// computes holder revocation states. Registry states are immutable values;
// every mutation returns a new state plus the delta between the two, so a
// failed operation leaves the caller's state untouched.
package revocation

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/exp/slices"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/tails"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/accumulator"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

var logger = log.New("anoncreds/revocation")

// Engine is the revocation registry state machine. The zero value is not
// usable; construct with New.
type Engine struct {
	accum api.Accumulator
}

// Option customizes an Engine.
type Option func(*Engine)

// WithAccumulator overrides the accumulator backend.
func WithAccumulator(acc api.Accumulator) Option {
	return func(e *Engine) {
		e.accum = acc
	}
}

// New returns a revocation engine over the default accumulator backend.
func New(opts ...Option) *Engine {
	engine := &Engine{accum: accumulator.New()}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// CreateRegistryRequest carries the inputs for creating a revocation
// registry under a credential definition. TailsDir names the directory the
// tails file is written into; the file itself is named after its hash.
type CreateRegistryRequest struct {
	OriginDID    string
	CredDef      *anoncreds.CredentialDefinition
	Tag          string
	RevocDefType string
	IssuanceType string
	MaxCredNum   uint32
	TailsDir     string
}

// CreateRegistryResult bundles the outputs of registry creation: the
// published definition, the issuer's private key, the initial registry
// state with its delta, and the open tails file.
type CreateRegistryResult struct {
	Definition *anoncreds.RevocationRegistryDefinition
	Private    *anoncreds.RevocationRegistryDefinitionPrivate
	State      *State
	Delta      *anoncreds.RevocationRegistryDelta
	Tails      *tails.File
}

// CreateRegistry creates a revocation registry: fresh accumulator keys, the
// tails file holding the per-index points, and the initial accumulator. A
// by-default registry starts with every index in the accumulator and an
// initial delta listing all of them; an on-demand registry starts empty.
func (e *Engine) CreateRegistry(req *CreateRegistryRequest) (*CreateRegistryResult, error) {
	if req == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing create registry request")
	}

	if req.CredDef == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential definition")
	}

	if !req.CredDef.SupportsRevocation() {
		return nil, anoncreds.NewError(anoncreds.Input, "credential definition does not support revocation")
	}

	if req.OriginDID == "" {
		return nil, anoncreds.NewError(anoncreds.Input, "missing origin DID")
	}

	if req.Tag == "" {
		return nil, anoncreds.NewError(anoncreds.Input, "missing revocation registry tag")
	}

	if req.RevocDefType != "" && req.RevocDefType != anoncreds.RevocationMethodCLAccum {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "unsupported revocation method %q", req.RevocDefType)
	}

	issuanceType := req.IssuanceType
	if issuanceType == "" {
		issuanceType = anoncreds.IssuanceByDefault
	}

	if issuanceType != anoncreds.IssuanceByDefault && issuanceType != anoncreds.IssuanceOnDemand {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "unsupported issuance type %q", issuanceType)
	}

	if req.MaxCredNum == 0 {
		return nil, anoncreds.NewError(anoncreds.Input, "revocation registry capacity is zero")
	}

	keys, err := e.accum.CreateRegistryKeys(req.MaxCredNum)
	if err != nil {
		return nil, fmt.Errorf("create registry keys: %w", err)
	}

	file, err := tails.Create(req.TailsDir, req.MaxCredNum, func(emit func(uint32, *api.TailsEntry) error) error {
		return e.accum.GenerateTails(keys.Private, req.MaxCredNum, emit)
	})
	if err != nil {
		return nil, err
	}

	var active []uint32

	if issuanceType == anoncreds.IssuanceByDefault {
		active = make([]uint32, 0, req.MaxCredNum)
		for index := uint32(1); index <= req.MaxCredNum; index++ {
			active = append(active, index)
		}
	}

	accum, err := e.accum.ComputeAccumulator(file, req.MaxCredNum, active)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(file.Path())

		return nil, fmt.Errorf("compute initial accumulator: %w", err)
	}

	id := fmt.Sprintf("%s:4:%s:%s:%s", req.OriginDID, req.CredDef.ID, anoncreds.RevocationMethodCLAccum, req.Tag)

	definition := &anoncreds.RevocationRegistryDefinition{
		Ver:          objectVersion,
		ID:           id,
		RevocDefType: anoncreds.RevocationMethodCLAccum,
		Tag:          req.Tag,
		CredDefID:    req.CredDef.ID,
		Value: anoncreds.RevocationRegistryDefinitionData{
			IssuanceType:  issuanceType,
			MaxCredNum:    req.MaxCredNum,
			PublicKeys:    keys.Public,
			TailsHash:     file.Hash(),
			TailsLocation: file.Path(),
		},
	}

	state := &State{
		Ver:   objectVersion,
		Value: anoncreds.RevocationRegistryValue{Accum: accum},
	}

	delta := &anoncreds.RevocationRegistryDelta{
		Ver: objectVersion,
		Value: anoncreds.RevocationRegistryDeltaValue{
			Accum:  accum,
			Issued: active,
		},
	}

	logger.Debugf("created revocation registry %s with capacity %d", id, req.MaxCredNum)

	return &CreateRegistryResult{
		Definition: definition,
		Private:    &anoncreds.RevocationRegistryDefinitionPrivate{Value: keys.Private},
		State:      state,
		Delta:      delta,
		Tails:      file,
	}, nil
}

// UpdateRegistry applies issued and revoked index sets to a registry state
// and returns the successor state with the delta between the two. Issuing
// an index assigns it; for on-demand registries it also enters the
// accumulator, while by-default registries carry every index from creation
// and only revocations change the accumulator. Re-issuing or re-revoking an
// index fails rather than passing silently.
func (e *Engine) UpdateRegistry(def *anoncreds.RevocationRegistryDefinition, state *State,
	issued, revoked []uint32, tr api.TailsReader) (*State, *anoncreds.RevocationRegistryDelta, error) {
	if def == nil {
		return nil, nil, anoncreds.NewError(anoncreds.Input, "missing revocation registry definition")
	}

	if state == nil {
		return nil, nil, anoncreds.NewError(anoncreds.Input, "missing revocation registry state")
	}

	if len(issued) == 0 && len(revoked) == 0 {
		return nil, nil, anoncreds.NewError(anoncreds.Input, "revocation registry update lists no indexes")
	}

	for _, index := range issued {
		if slices.Contains(revoked, index) {
			return nil, nil, anoncreds.NewErrorf(anoncreds.Input,
				"revocation registry update lists index %d as both issued and revoked", index)
		}
	}

	maxCredNum := def.Value.MaxCredNum
	next := state.clone()

	for _, index := range issued {
		switch {
		case index == 0:
			return nil, nil, anoncreds.NewError(anoncreds.Input, "revocation registry indexes start at 1")
		case index > maxCredNum:
			return nil, nil, anoncreds.NewErrorf(anoncreds.RevocationRegistryFull,
				"index %d exceeds registry capacity %d", index, maxCredNum)
		case next.isRevoked(index):
			return nil, nil, anoncreds.NewErrorf(anoncreds.Input, "index %d was revoked and cannot be issued again", index)
		case next.isIssued(index):
			return nil, nil, anoncreds.NewErrorf(anoncreds.Input, "index %d is already issued", index)
		}

		next.Issued = append(next.Issued, index)
	}

	for _, index := range revoked {
		switch {
		case index == 0:
			return nil, nil, anoncreds.NewError(anoncreds.Input, "revocation registry indexes start at 1")
		case index > maxCredNum:
			return nil, nil, anoncreds.NewErrorf(anoncreds.InvalidUserRevocID,
				"index %d exceeds registry capacity %d", index, maxCredNum)
		case next.isRevoked(index):
			return nil, nil, anoncreds.NewErrorf(anoncreds.Input, "index %d is already revoked", index)
		case !next.isIssued(index):
			return nil, nil, anoncreds.NewErrorf(anoncreds.InvalidUserRevocID, "index %d was never issued", index)
		}

		next.Revoked = append(next.Revoked, index)
	}

	next.Issued = sortedClone(subtract(next.Issued, revoked))
	next.Revoked = sortedClone(next.Revoked)

	accumIssued := issued
	if def.Value.IssuanceType == anoncreds.IssuanceByDefault {
		accumIssued = nil
	}

	accum := state.Value.Accum

	if len(accumIssued) > 0 || len(revoked) > 0 {
		var err error

		accum, err = e.accum.UpdateAccumulator(state.Value.Accum, tr, maxCredNum, accumIssued, revoked)
		if err != nil {
			return nil, nil, fmt.Errorf("update accumulator: %w", err)
		}
	}

	next.Ver = objectVersion
	next.Value.Accum = accum

	delta := &anoncreds.RevocationRegistryDelta{
		Ver: objectVersion,
		Value: anoncreds.RevocationRegistryDeltaValue{
			PrevAccum: state.Value.Accum,
			Accum:     accum,
			Issued:    sortedClone(accumIssued),
			Revoked:   sortedClone(revoked),
		},
	}

	logger.Debugf("updated revocation registry %s: %d issued, %d revoked", def.ID, len(issued), len(revoked))

	return next, delta, nil
}

// Revoke removes a single issued index from the registry. Unlike
// UpdateRegistry, every way the index can be unusable reports
// InvalidUserRevocID, since the index names a credential the caller
// believes exists.
func (e *Engine) Revoke(def *anoncreds.RevocationRegistryDefinition, state *State,
	index uint32, tr api.TailsReader) (*State, *anoncreds.RevocationRegistryDelta, error) {
	if def == nil {
		return nil, nil, anoncreds.NewError(anoncreds.Input, "missing revocation registry definition")
	}

	if state == nil {
		return nil, nil, anoncreds.NewError(anoncreds.Input, "missing revocation registry state")
	}

	if index == 0 || index > def.Value.MaxCredNum {
		return nil, nil, anoncreds.NewErrorf(anoncreds.InvalidUserRevocID,
			"index %d is out of range [1,%d]", index, def.Value.MaxCredNum)
	}

	if !state.isIssued(index) {
		return nil, nil, anoncreds.NewErrorf(anoncreds.InvalidUserRevocID, "index %d is not currently issued", index)
	}

	return e.UpdateRegistry(def, state, nil, []uint32{index}, tr)
}

// MergeDeltas folds two causally ordered registry deltas into one without
// touching either input. The second delta must continue the first delta's
// accumulator chain.
func MergeDeltas(first, second *anoncreds.RevocationRegistryDelta) (*anoncreds.RevocationRegistryDelta, error) {
	if first == nil || second == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "no delta to merge")
	}

	merged := &anoncreds.RevocationRegistryDelta{
		Ver: first.Ver,
		Value: anoncreds.RevocationRegistryDeltaValue{
			PrevAccum: first.Value.PrevAccum,
			Accum:     first.Value.Accum,
			Issued:    sortedClone(first.Value.Issued),
			Revoked:   sortedClone(first.Value.Revoked),
		},
	}

	if err := merged.Merge(second); err != nil {
		return nil, err
	}

	return merged, nil
}

// StateRequest carries the inputs for computing a holder revocation state.
// Witness is the issuance-time witness and backs the from-scratch path.
// Prior and PriorState together select the incremental path: Prior is a
// previously computed revocation state and PriorState the registry state it
// was computed against.
type StateRequest struct {
	Definition *anoncreds.RevocationRegistryDefinition
	State      *State
	Index      uint32
	Tails      api.TailsReader
	Witness    json.RawMessage
	Prior      *anoncreds.RevocationState
	PriorState *State
	Timestamp  uint64
}

// CreateOrUpdateState computes the revocation state a holder presents
// non-revocation proofs from. With a prior state the witness is advanced by
// the index sets that changed between the two registry states; without one
// it is rebuilt from the issuance witness against the full active set.
func (e *Engine) CreateOrUpdateState(req *StateRequest) (*anoncreds.RevocationState, error) {
	if req == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing revocation state request")
	}

	if req.Definition == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing revocation registry definition")
	}

	if req.State == nil {
		return nil, anoncreds.NewError(anoncreds.Input, "missing revocation registry state")
	}

	maxCredNum := req.Definition.Value.MaxCredNum
	if req.Index == 0 || req.Index > maxCredNum {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "index %d is out of range [1,%d]", req.Index, maxCredNum)
	}

	var (
		witness json.RawMessage
		err     error
	)

	switch {
	case req.Prior != nil || req.PriorState != nil:
		witness, err = e.updateStateWitness(req)
	default:
		witness, err = e.createStateWitness(req)
	}

	if err != nil {
		return nil, err
	}

	accum := req.State.Value
	state := &anoncreds.RevocationState{
		Witness:   witness,
		RevReg:    &accum,
		Registry:  req.Definition.Value.PublicKeys,
		Timestamp: req.Timestamp,
	}

	logger.Debugf("computed revocation state for index %d of %s at timestamp %d",
		req.Index, req.Definition.ID, req.Timestamp)

	return state, nil
}

func (e *Engine) createStateWitness(req *StateRequest) (json.RawMessage, error) {
	if len(req.Witness) == 0 {
		return nil, anoncreds.NewError(anoncreds.Input, "no witness to build the revocation state from")
	}

	if err := checkWitnessIndex(req.Witness, req.Index); err != nil {
		return nil, err
	}

	active := req.State.ActiveIndexes(req.Definition)

	witness, err := e.accum.ComputeWitness(req.Witness, req.Tails, req.Definition.Value.MaxCredNum, active)
	if err != nil {
		return nil, fmt.Errorf("compute witness: %w", err)
	}

	return witness, nil
}

func (e *Engine) updateStateWitness(req *StateRequest) (json.RawMessage, error) {
	if req.Prior == nil || req.PriorState == nil {
		return nil, anoncreds.NewError(anoncreds.Input,
			"incremental update needs both the prior revocation state and the registry state it was computed against")
	}

	if req.Prior.RevReg == nil || req.Prior.RevReg.Accum != req.PriorState.Value.Accum {
		return nil, anoncreds.NewError(anoncreds.Input,
			"prior revocation state does not match the prior registry state")
	}

	if err := checkWitnessIndex(req.Prior.Witness, req.Index); err != nil {
		return nil, err
	}

	activePrior := req.PriorState.ActiveIndexes(req.Definition)
	activeTarget := req.State.ActiveIndexes(req.Definition)

	issued := subtract(activeTarget, activePrior)
	revoked := subtract(activePrior, activeTarget)

	if len(issued) == 0 && len(revoked) == 0 {
		return append(json.RawMessage(nil), req.Prior.Witness...), nil
	}

	witness, err := e.accum.UpdateWitness(req.Prior.Witness, req.Tails, req.Definition.Value.MaxCredNum, issued, revoked)
	if err != nil {
		return nil, fmt.Errorf("update witness: %w", err)
	}

	return witness, nil
}

// checkWitnessIndex peeks at the registry index recorded inside a witness
// document and rejects a mismatch with the requested index.
func checkWitnessIndex(witness json.RawMessage, index uint32) error {
	doc := struct {
		Index uint32 `json:"index"`
	}{}

	if err := json.Unmarshal(witness, &doc); err != nil {
		return anoncreds.NewErrorf(anoncreds.Input, "parse witness: %w", err)
	}

	if doc.Index != index {
		return anoncreds.NewErrorf(anoncreds.Input, "witness belongs to registry index %d, not %d", doc.Index, index)
	}

	return nil
}
