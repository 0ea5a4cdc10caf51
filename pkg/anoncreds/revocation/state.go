/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package revocation

import (
	"encoding/json"

	"golang.org/x/exp/slices"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

// objectVersion tags registry states the same way the published documents
// are tagged.
const objectVersion = "1.0"

// State is the issuer-side view of a revocation registry at one point in
// time: the current accumulator plus the index bookkeeping the registry
// needs to hand out indexes and validate updates. Issued tracks the indexes
// handed to credentials and Revoked the indexes revoked since creation.
// For by-default registries the accumulator contains every index from the
// start, so Issued only records assignment there and does not mirror the
// accumulator content.
type State struct {
	Ver     string                            `json:"ver"`
	Value   anoncreds.RevocationRegistryValue `json:"value"`
	Issued  []uint32                          `json:"issued,omitempty"`
	Revoked []uint32                          `json:"revoked,omitempty"`
}

// ParseState builds a registry state from its canonical JSON.
func ParseState(raw []byte) (*State, error) {
	state := &State{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "parse revocation registry state: %w", err)
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}

	return state, nil
}

// Validate checks the accumulator presence and the index sets.
func (s *State) Validate() error {
	if s.Value.Accum == "" {
		return anoncreds.NewError(anoncreds.Input, "revocation registry state has no accumulator")
	}

	for _, index := range s.Issued {
		if index == 0 {
			return anoncreds.NewError(anoncreds.Input, "revocation registry state lists index zero")
		}

		if slices.Contains(s.Revoked, index) {
			return anoncreds.NewErrorf(anoncreds.Input,
				"revocation registry state lists index %d as both issued and revoked", index)
		}
	}

	for _, index := range s.Revoked {
		if index == 0 {
			return anoncreds.NewError(anoncreds.Input, "revocation registry state lists index zero")
		}
	}

	return nil
}

// Registry returns the public registry entry for this state, the document
// published alongside deltas.
func (s *State) Registry() *anoncreds.RevocationRegistry {
	return &anoncreds.RevocationRegistry{
		Ver:   objectVersion,
		Value: s.Value,
	}
}

// ActiveIndexes returns the indexes currently present in the accumulator,
// sorted ascending. By-default registries start with every index active and
// lose them on revocation; on-demand registries gain them as credentials
// are issued.
func (s *State) ActiveIndexes(def *anoncreds.RevocationRegistryDefinition) []uint32 {
	if def.Value.IssuanceType == anoncreds.IssuanceByDefault {
		active := make([]uint32, 0, def.Value.MaxCredNum)

		for index := uint32(1); index <= def.Value.MaxCredNum; index++ {
			if !slices.Contains(s.Revoked, index) {
				active = append(active, index)
			}
		}

		return active
	}

	active := slices.Clone(s.Issued)
	slices.Sort(active)

	return active
}

// NextIndex returns the lowest registry index not yet handed out, or 0 when
// every index is taken. Revoked indexes stay taken.
func (s *State) NextIndex(def *anoncreds.RevocationRegistryDefinition) uint32 {
	for index := uint32(1); index <= def.Value.MaxCredNum; index++ {
		if !s.isIssued(index) && !s.isRevoked(index) {
			return index
		}
	}

	return 0
}

func (s *State) isIssued(index uint32) bool {
	return slices.Contains(s.Issued, index)
}

func (s *State) isRevoked(index uint32) bool {
	return slices.Contains(s.Revoked, index)
}

func (s *State) clone() *State {
	return &State{
		Ver:     s.Ver,
		Value:   s.Value,
		Issued:  slices.Clone(s.Issued),
		Revoked: slices.Clone(s.Revoked),
	}
}

// sortedClone returns a sorted copy of the index list, or nil when the list
// is empty.
func sortedClone(indexes []uint32) []uint32 {
	if len(indexes) == 0 {
		return nil
	}

	out := slices.Clone(indexes)
	slices.Sort(out)

	return out
}

// subtract returns the members of a that are not members of b, preserving
// the order of a.
func subtract(a, b []uint32) []uint32 {
	if len(a) == 0 {
		return nil
	}

	exclude := make(map[uint32]struct{}, len(b))
	for _, index := range b {
		exclude[index] = struct{}{}
	}

	var out []uint32

	for _, index := range a {
		if _, ok := exclude[index]; !ok {
			out = append(out, index)
		}
	}

	return out
}
