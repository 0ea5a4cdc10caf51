/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bindings

import (
	"sync"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/revocation"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/tails"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

// ObjectHandle is an opaque reference to an engine object held in the
// process-wide registry. The zero handle never refers to an object.
type ObjectHandle uint64

// slot is one registry cell. Its generation counter advances on every free,
// so handles minted for an earlier occupant stop resolving.
type slot struct {
	generation uint32
	live       bool
	value      interface{}
}

// handleTable is the object registry behind the boundary. A handle encodes
// the slot index together with the generation the object was stored under,
// which makes stale handle and double free detection a table lookup.
type handleTable struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
}

func newHandleTable() *handleTable {
	return &handleTable{}
}

func makeHandle(generation, index uint32) ObjectHandle {
	return ObjectHandle(uint64(generation)<<32 | (uint64(index) + 1))
}

func splitHandle(handle ObjectHandle) (generation, index uint32, ok bool) {
	low := uint64(handle) & 0xffffffff
	if low == 0 {
		return 0, 0, false
	}

	return uint32(uint64(handle) >> 32), uint32(low - 1), true
}

func (t *handleTable) allocate(value interface{}) ObjectHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32

	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot{})
		index = uint32(len(t.slots) - 1)
	}

	cell := &t.slots[index]
	cell.value = value
	cell.live = true

	return makeHandle(cell.generation, index)
}

func (t *handleTable) resolve(handle ObjectHandle) (interface{}, error) {
	generation, index, ok := splitHandle(handle)
	if !ok {
		return nil, anoncreds.NewError(anoncreds.Input, "null object handle")
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(index) >= len(t.slots) {
		return nil, staleHandle(handle)
	}

	cell := &t.slots[index]
	if !cell.live || cell.generation != generation {
		return nil, staleHandle(handle)
	}

	return cell.value, nil
}

// release removes the object behind a handle. The slot generation advances,
// so the handle and any copy of it stop resolving.
func (t *handleTable) release(handle ObjectHandle) error {
	generation, index, ok := splitHandle(handle)
	if !ok {
		return anoncreds.NewError(anoncreds.Input, "null object handle")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(index) >= len(t.slots) {
		return staleHandle(handle)
	}

	cell := &t.slots[index]
	if !cell.live || cell.generation != generation {
		return staleHandle(handle)
	}

	cell.live = false
	cell.value = nil
	cell.generation++
	t.free = append(t.free, index)

	return nil
}

func staleHandle(handle ObjectHandle) error {
	return anoncreds.NewErrorf(anoncreds.InvalidState, "object handle %d is not live", handle)
}

// resolveAs resolves a handle and asserts the type of the object behind it.
func resolveAs[T any](handle ObjectHandle) (T, error) {
	var zero T

	value, err := objects.resolve(handle)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, anoncreds.NewErrorf(anoncreds.InvalidState,
			"object handle %d holds a %s, not a %s", handle, typeName(value), typeName(zero))
	}

	return typed, nil
}

// resolveOptional treats the zero handle as an absent object.
func resolveOptional[T any](handle ObjectHandle) (T, error) {
	var zero T

	if handle == 0 {
		return zero, nil
	}

	return resolveAs[T](handle)
}

// resolveList resolves a list of handles of one type.
func resolveList[T any](refs []ObjectHandle) ([]T, error) {
	out := make([]T, len(refs))

	for i, ref := range refs {
		value, err := resolveAs[T](ref)
		if err != nil {
			return nil, err
		}

		out[i] = value
	}

	return out, nil
}

// typeName names the object behind a handle in the credential exchange
// vocabulary the boundary reports types in.
func typeName(value interface{}) string {
	switch value.(type) {
	case *anoncreds.Schema:
		return "Schema"
	case *anoncreds.CredentialDefinition:
		return "CredentialDefinition"
	case *anoncreds.CredentialDefinitionPrivate:
		return "CredentialDefinitionPrivate"
	case *anoncreds.KeyCorrectnessProof:
		return "KeyCorrectnessProof"
	case *anoncreds.CredentialOffer:
		return "CredentialOffer"
	case *anoncreds.CredentialRequest:
		return "CredentialRequest"
	case *anoncreds.CredentialRequestMetadata:
		return "CredentialRequestMetadata"
	case *anoncreds.MasterSecret:
		return "MasterSecret"
	case *anoncreds.Credential:
		return "Credential"
	case *anoncreds.RevocationRegistryDefinition:
		return "RevocationRegistryDefinition"
	case *anoncreds.RevocationRegistryDefinitionPrivate:
		return "RevocationRegistryDefinitionPrivate"
	case *revocation.State:
		return "RevocationRegistryState"
	case *anoncreds.RevocationRegistry:
		return "RevocationRegistry"
	case *anoncreds.RevocationRegistryDelta:
		return "RevocationRegistryDelta"
	case *anoncreds.RevocationState:
		return "RevocationState"
	case *anoncreds.PresentationRequest:
		return "PresentationRequest"
	case *anoncreds.Presentation:
		return "Presentation"
	case *tails.File:
		return "TailsFile"
	default:
		return "Unknown"
	}
}
