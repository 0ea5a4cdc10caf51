/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/exp/slices"
)

// RevocationMethodCLAccum is the only revocation method the engine issues.
const RevocationMethodCLAccum = "CL_ACCUM"

// Issuance strategies for revocation registries. By-default registries treat
// every index as issued from the start; on-demand registries accumulate
// indexes as credentials are issued.
const (
	IssuanceByDefault = "ISSUANCE_BY_DEFAULT"
	IssuanceOnDemand  = "ISSUANCE_ON_DEMAND"
)

// RevocationRegistryDefinition is the public, published half of a revocation
// registry: capacity, issuance strategy, accumulator public keys and the
// location of the tails file holding the per-index points.
type RevocationRegistryDefinition struct {
	Ver          string                           `json:"ver"`
	ID           string                           `json:"id"`
	RevocDefType string                           `json:"revocDefType"`
	Tag          string                           `json:"tag"`
	CredDefID    string                           `json:"credDefId"`
	Value        RevocationRegistryDefinitionData `json:"value"`
}

// RevocationRegistryDefinitionData carries the registry parameters.
type RevocationRegistryDefinitionData struct {
	IssuanceType  string          `json:"issuanceType"`
	MaxCredNum    uint32          `json:"maxCredNum"`
	PublicKeys    json.RawMessage `json:"publicKeys"`
	TailsHash     string          `json:"tailsHash"`
	TailsLocation string          `json:"tailsLocation"`
}

// ParseRevocationRegistryDefinition builds a registry definition from its
// canonical JSON.
func ParseRevocationRegistryDefinition(raw []byte) (*RevocationRegistryDefinition, error) {
	def := &RevocationRegistryDefinition{}
	if err := json.Unmarshal(raw, def); err != nil {
		return nil, NewErrorf(Input, "parse revocation registry definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// Validate checks identifiers, method, issuance type and capacity.
func (d *RevocationRegistryDefinition) Validate() error {
	if err := ValidateIdentifier(d.ID); err != nil {
		return fmt.Errorf("revocation registry id: %w", err)
	}

	if err := ValidateIdentifier(d.CredDefID); err != nil {
		return fmt.Errorf("revocation registry credential definition id: %w", err)
	}

	if d.RevocDefType != RevocationMethodCLAccum {
		return NewErrorf(Input, "unsupported revocation method %q", d.RevocDefType)
	}

	if d.Value.IssuanceType != IssuanceByDefault && d.Value.IssuanceType != IssuanceOnDemand {
		return NewErrorf(Input, "unsupported issuance type %q", d.Value.IssuanceType)
	}

	if d.Value.MaxCredNum == 0 {
		return NewError(Input, "revocation registry capacity is zero")
	}

	if len(d.Value.PublicKeys) == 0 {
		return NewError(Input, "revocation registry has no public keys")
	}

	return nil
}

// Attribute returns registry metadata by name: "id", "max_cred_num",
// "tails_hash" or "tails_location".
func (d *RevocationRegistryDefinition) Attribute(name string) (string, error) {
	switch name {
	case "id":
		return d.ID, nil
	case "max_cred_num":
		return strconv.FormatUint(uint64(d.Value.MaxCredNum), 10), nil
	case "tails_hash":
		return d.Value.TailsHash, nil
	case "tails_location":
		return d.Value.TailsLocation, nil
	default:
		return "", NewErrorf(Input, "unsupported attribute %q", name)
	}
}

// RevocationRegistryDefinitionPrivate is the issuer's accumulator trapdoor.
// It never leaves the issuer.
type RevocationRegistryDefinitionPrivate struct {
	Value json.RawMessage `json:"value"`
}

// ParseRevocationRegistryDefinitionPrivate builds the private key object
// from its canonical JSON.
func ParseRevocationRegistryDefinitionPrivate(raw []byte) (*RevocationRegistryDefinitionPrivate, error) {
	private := &RevocationRegistryDefinitionPrivate{}
	if err := json.Unmarshal(raw, private); err != nil {
		return nil, NewErrorf(Input, "parse revocation registry private key: %w", err)
	}

	if err := private.Validate(); err != nil {
		return nil, err
	}

	return private, nil
}

// Validate checks the key material is present.
func (p *RevocationRegistryDefinitionPrivate) Validate() error {
	if len(p.Value) == 0 {
		return NewError(Input, "revocation registry private key is empty")
	}

	return nil
}

// RevocationRegistry is the public accumulator value at one point in time.
type RevocationRegistry struct {
	Ver   string                  `json:"ver"`
	Value RevocationRegistryValue `json:"value"`
}

// RevocationRegistryValue holds the accumulator.
type RevocationRegistryValue struct {
	Accum string `json:"accum"`
}

// ParseRevocationRegistry builds a registry value from its canonical JSON.
func ParseRevocationRegistry(raw []byte) (*RevocationRegistry, error) {
	registry := &RevocationRegistry{}
	if err := json.Unmarshal(raw, registry); err != nil {
		return nil, NewErrorf(Input, "parse revocation registry: %w", err)
	}

	if err := registry.Validate(); err != nil {
		return nil, err
	}

	return registry, nil
}

// Validate checks the accumulator is present.
func (r *RevocationRegistry) Validate() error {
	if r.Value.Accum == "" {
		return NewError(Input, "revocation registry accumulator is empty")
	}

	return nil
}

// RevocationRegistryDelta is the difference between two registry states: the
// accumulator chain endpoints plus the index sets that changed. Issued and
// revoked are disjoint, sorted and deduplicated.
type RevocationRegistryDelta struct {
	Ver   string                       `json:"ver"`
	Value RevocationRegistryDeltaValue `json:"value"`
}

// RevocationRegistryDeltaValue holds the delta payload.
type RevocationRegistryDeltaValue struct {
	PrevAccum string   `json:"prevAccum,omitempty"`
	Accum     string   `json:"accum"`
	Issued    []uint32 `json:"issued,omitempty"`
	Revoked   []uint32 `json:"revoked,omitempty"`
}

// ParseRevocationRegistryDelta builds a delta from its canonical JSON.
func ParseRevocationRegistryDelta(raw []byte) (*RevocationRegistryDelta, error) {
	delta := &RevocationRegistryDelta{}
	if err := json.Unmarshal(raw, delta); err != nil {
		return nil, NewErrorf(Input, "parse revocation registry delta: %w", err)
	}

	if err := delta.Validate(); err != nil {
		return nil, err
	}

	return delta, nil
}

// Validate checks the accumulator endpoints and that the index sets are
// disjoint.
func (d *RevocationRegistryDelta) Validate() error {
	if d.Value.Accum == "" {
		return NewError(Input, "revocation registry delta has no accumulator")
	}

	for _, index := range d.Value.Issued {
		if slices.Contains(d.Value.Revoked, index) {
			return NewErrorf(Input, "revocation registry delta lists index %d as both issued and revoked", index)
		}
	}

	return nil
}

// Merge folds a later delta into this one. The later delta must continue
// this delta's accumulator chain; per index, the later delta wins, so an
// index issued here and revoked later ends up revoked only.
func (d *RevocationRegistryDelta) Merge(other *RevocationRegistryDelta) error {
	if other == nil {
		return NewError(Input, "no delta to merge")
	}

	if other.Value.PrevAccum == "" || other.Value.PrevAccum != d.Value.Accum {
		return NewError(Unexpected, "revocation registry deltas do not form a chain")
	}

	issued := indexSet(d.Value.Issued)
	revoked := indexSet(d.Value.Revoked)

	for _, index := range other.Value.Issued {
		delete(revoked, index)
		issued[index] = struct{}{}
	}

	for _, index := range other.Value.Revoked {
		delete(issued, index)
		revoked[index] = struct{}{}
	}

	d.Value.Accum = other.Value.Accum
	d.Value.Issued = sortedIndexes(issued)
	d.Value.Revoked = sortedIndexes(revoked)

	return nil
}

func indexSet(indexes []uint32) map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(indexes))
	for _, index := range indexes {
		set[index] = struct{}{}
	}

	return set
}

func sortedIndexes(set map[uint32]struct{}) []uint32 {
	if len(set) == 0 {
		return nil
	}

	indexes := make([]uint32, 0, len(set))
	for index := range set {
		indexes = append(indexes, index)
	}

	slices.Sort(indexes)

	return indexes
}
