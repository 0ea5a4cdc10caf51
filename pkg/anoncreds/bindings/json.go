/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bindings

import (
	"encoding/json"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/revocation"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/tails"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

// ObjectGetJSON serializes the object behind a handle into a fresh buffer
// owned by the caller. Objects without a JSON form, such as an open tails
// file, fail with Unexpected.
func ObjectGetJSON(handle ObjectHandle) (buffer *ByteBuffer, err error) {
	defer remember(&err)

	value, err := objects.resolve(handle)
	if err != nil {
		return nil, err
	}

	if _, ok := value.(*tails.File); ok {
		return nil, anoncreds.NewErrorf(anoncreds.Unexpected, "%s has no JSON form", typeName(value))
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Unexpected, "serialize %s: %w", typeName(value), err)
	}

	return &ByteBuffer{data: raw}, nil
}

// ObjectGetTypeName reports the type of the object behind a handle.
func ObjectGetTypeName(handle ObjectHandle) (name string, err error) {
	defer remember(&err)

	value, err := objects.resolve(handle)
	if err != nil {
		return "", err
	}

	return typeName(value), nil
}

// ObjectFree removes the object behind a handle from the registry. The
// handle never resolves again and freeing it twice fails with InvalidState.
// Freeing a tails file handle also closes the underlying file.
func ObjectFree(handle ObjectHandle) (err error) {
	defer remember(&err)

	value, err := objects.resolve(handle)
	if err != nil {
		return err
	}

	if file, ok := value.(*tails.File); ok {
		if cerr := file.Close(); cerr != nil {
			logger.Warnf("close tails file behind freed handle: %v", cerr)
		}
	}

	return objects.release(handle)
}

// importObject parses a JSON document and stores the result in the registry.
func importObject[T any](raw []byte, parse func([]byte) (T, error)) (handle ObjectHandle, err error) {
	defer remember(&err)

	object, err := parse(raw)
	if err != nil {
		return 0, err
	}

	return objects.allocate(object), nil
}

// SchemaFromJSON imports a schema document.
func SchemaFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseSchema)
}

// CredentialDefinitionFromJSON imports a credential definition document.
func CredentialDefinitionFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseCredentialDefinition)
}

// CredentialDefinitionPrivateFromJSON imports an issuer signing key document.
func CredentialDefinitionPrivateFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseCredentialDefinitionPrivate)
}

// KeyCorrectnessProofFromJSON imports a key correctness proof document.
func KeyCorrectnessProofFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseKeyCorrectnessProof)
}

// CredentialOfferFromJSON imports a credential offer document.
func CredentialOfferFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseCredentialOffer)
}

// CredentialRequestFromJSON imports a credential request document.
func CredentialRequestFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseCredentialRequest)
}

// CredentialRequestMetadataFromJSON imports a credential request metadata
// document.
func CredentialRequestMetadataFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseCredentialRequestMetadata)
}

// MasterSecretFromJSON imports a link secret document.
func MasterSecretFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseMasterSecret)
}

// CredentialFromJSON imports a credential document.
func CredentialFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseCredential)
}

// RevocationRegistryDefinitionFromJSON imports a revocation registry
// definition document.
func RevocationRegistryDefinitionFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseRevocationRegistryDefinition)
}

// RevocationRegistryDefinitionPrivateFromJSON imports a registry private key
// document.
func RevocationRegistryDefinitionPrivateFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseRevocationRegistryDefinitionPrivate)
}

// RevocationRegistryStateFromJSON imports an issuer registry state document.
func RevocationRegistryStateFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, revocation.ParseState)
}

// RevocationRegistryFromJSON imports a public registry snapshot document.
func RevocationRegistryFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseRevocationRegistry)
}

// RevocationRegistryDeltaFromJSON imports a registry delta document.
func RevocationRegistryDeltaFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseRevocationRegistryDelta)
}

// RevocationStateFromJSON imports a holder revocation state document.
func RevocationStateFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParseRevocationState)
}

// PresentationRequestFromJSON imports a presentation request document.
func PresentationRequestFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParsePresentationRequest)
}

// PresentationFromJSON imports a presentation document.
func PresentationFromJSON(raw []byte) (ObjectHandle, error) {
	return importObject(raw, anoncreds.ParsePresentation)
}
