/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package bindings flattens the credential engine into a handle-based
// surface for embedding in foreign runtimes. Objects live in a process-wide
// registry and cross the boundary as opaque handles; every fallible call
// reports its outcome as an explicit error and mirrors it into a
// per-goroutine channel readable with GetCurrentError.
package bindings

import (
	"encoding/json"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/holder"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/issuer"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/revocation"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/tails"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/verifier"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

var logger = log.New("anoncreds/bindings")

// The boundary keeps one object registry and one engine of each role.
//
//nolint:gochecknoglobals
var (
	objects = newHandleTable()

	defaultIssuer   = issuer.New()
	defaultHolder   = holder.New()
	defaultVerifier = verifier.New()
	defaultRegistry = revocation.New()
)

// Version reports the library version.
func Version() string {
	return "0.1.0"
}

// SetDefaultLogger installs the logging provider the engine writes through.
// It must be called before the first log line.
func SetDefaultLogger(provider log.Provider) {
	log.Initialize(provider)
}

// GenerateNonce draws a fresh presentation nonce.
func GenerateNonce() (nonce string, err error) {
	defer remember(&err)

	return anoncreds.GenerateNonce()
}

// EncodeCredentialAttributes maps raw attribute values to their canonical
// integer encodings, in order.
func EncodeCredentialAttributes(raws []string) []string {
	return anoncreds.EncodeCredentialAttributes(raws)
}

// CreateSchema builds a published schema document for a new credential
// shape.
func CreateSchema(originDID, name, version string, attrNames []string) (handle ObjectHandle, err error) {
	defer remember(&err)

	schema, err := defaultIssuer.CreateSchema(originDID, name, version, attrNames)
	if err != nil {
		return 0, err
	}

	return objects.allocate(schema), nil
}

// CredentialDefinitionResult carries the three objects minted by
// CreateCredentialDefinition.
type CredentialDefinitionResult struct {
	CredDef        ObjectHandle
	CredDefPrivate ObjectHandle
	KeyProof       ObjectHandle
}

// CreateCredentialDefinition generates issuer keys for a schema and returns
// the public definition, the private key and the key correctness proof.
func CreateCredentialDefinition(originDID string, schema ObjectHandle, tag, signatureType string,
	supportRevocation bool) (result *CredentialDefinitionResult, err error) {
	defer remember(&err)

	sch, err := resolveAs[*anoncreds.Schema](schema)
	if err != nil {
		return nil, err
	}

	created, err := defaultIssuer.CreateCredentialDefinition(originDID, sch, tag, signatureType, supportRevocation)
	if err != nil {
		return nil, err
	}

	return &CredentialDefinitionResult{
		CredDef:        objects.allocate(created.Definition),
		CredDefPrivate: objects.allocate(created.Private),
		KeyProof:       objects.allocate(created.Proof),
	}, nil
}

// CreateCredentialOffer starts a credential exchange for a credential
// definition.
func CreateCredentialOffer(credDef, keyProof ObjectHandle) (handle ObjectHandle, err error) {
	defer remember(&err)

	def, err := resolveAs[*anoncreds.CredentialDefinition](credDef)
	if err != nil {
		return 0, err
	}

	proof, err := resolveAs[*anoncreds.KeyCorrectnessProof](keyProof)
	if err != nil {
		return 0, err
	}

	offer, err := defaultIssuer.CreateCredentialOffer(def, proof)
	if err != nil {
		return 0, err
	}

	return objects.allocate(offer), nil
}

// CreateMasterSecret draws a fresh link secret.
func CreateMasterSecret() (handle ObjectHandle, err error) {
	defer remember(&err)

	secret, err := defaultHolder.CreateMasterSecret()
	if err != nil {
		return 0, err
	}

	return objects.allocate(secret), nil
}

// CredentialRequestResult carries the request to return to the issuer and
// the metadata the holder keeps for processing the issued credential.
type CredentialRequestResult struct {
	Request  ObjectHandle
	Metadata ObjectHandle
}

// CreateCredentialRequest answers a credential offer with a blinded link
// secret.
func CreateCredentialRequest(proverDID string, credDef, masterSecret ObjectHandle, masterSecretID string,
	offer ObjectHandle) (result *CredentialRequestResult, err error) {
	defer remember(&err)

	def, err := resolveAs[*anoncreds.CredentialDefinition](credDef)
	if err != nil {
		return nil, err
	}

	secret, err := resolveAs[*anoncreds.MasterSecret](masterSecret)
	if err != nil {
		return nil, err
	}

	off, err := resolveAs[*anoncreds.CredentialOffer](offer)
	if err != nil {
		return nil, err
	}

	created, err := defaultHolder.CreateCredentialRequest(proverDID, def, secret, masterSecretID, off)
	if err != nil {
		return nil, err
	}

	return &CredentialRequestResult{
		Request:  objects.allocate(created.Request),
		Metadata: objects.allocate(created.Metadata),
	}, nil
}

// CredentialRevocationInfo carries the registry material for issuing one
// revocable credential: the registry definition and private key, the current
// registry state, the open tails file and the registry index to issue under.
type CredentialRevocationInfo struct {
	RegDef        ObjectHandle
	RegDefPrivate ObjectHandle
	RegState      ObjectHandle
	TailsFile     ObjectHandle
	RegIdx        uint32
}

// CreateCredentialResult carries the issued credential and, for revocable
// issuance, the advanced registry state with the delta covering the
// movement.
type CreateCredentialResult struct {
	Credential    ObjectHandle
	RegistryState ObjectHandle
	Delta         ObjectHandle
}

// CreateCredential signs a credential over the attribute values answering a
// credential request. The encoded list may be empty, in which case the
// canonical encoding is derived from the raw values. revocationInfo is nil
// for non-revocable issuance.
func CreateCredential(credDef, credDefPrivate, offer, request ObjectHandle,
	attrNames, attrRawValues, attrEncValues []string,
	revocationInfo *CredentialRevocationInfo) (result *CreateCredentialResult, err error) {
	defer remember(&err)

	def, err := resolveAs[*anoncreds.CredentialDefinition](credDef)
	if err != nil {
		return nil, err
	}

	private, err := resolveAs[*anoncreds.CredentialDefinitionPrivate](credDefPrivate)
	if err != nil {
		return nil, err
	}

	off, err := resolveAs[*anoncreds.CredentialOffer](offer)
	if err != nil {
		return nil, err
	}

	credReq, err := resolveAs[*anoncreds.CredentialRequest](request)
	if err != nil {
		return nil, err
	}

	values, err := credentialValues(attrNames, attrRawValues, attrEncValues)
	if err != nil {
		return nil, err
	}

	rev, err := revocationMaterial(revocationInfo)
	if err != nil {
		return nil, err
	}

	created, err := defaultIssuer.CreateCredential(&issuer.CreateCredentialRequest{
		CredDef:        def,
		CredDefPrivate: private,
		Offer:          off,
		Request:        credReq,
		Values:         values,
		Revocation:     rev,
	})
	if err != nil {
		return nil, err
	}

	result = &CreateCredentialResult{Credential: objects.allocate(created.Credential)}

	if created.RegistryState != nil {
		result.RegistryState = objects.allocate(created.RegistryState)
	}

	if created.Delta != nil {
		result.Delta = objects.allocate(created.Delta)
	}

	return result, nil
}

// credentialValues zips the positional attribute lists into a value map.
func credentialValues(names, raws, encoded []string) (anoncreds.CredentialValues, error) {
	if len(raws) != len(names) {
		return nil, anoncreds.NewErrorf(anoncreds.Input,
			"%d attribute names with %d raw values", len(names), len(raws))
	}

	if len(encoded) != 0 && len(encoded) != len(names) {
		return nil, anoncreds.NewErrorf(anoncreds.Input,
			"%d attribute names with %d encoded values", len(names), len(encoded))
	}

	if len(encoded) == 0 {
		raw := make(map[string]string, len(names))

		for i, name := range names {
			if _, dup := raw[name]; dup {
				return nil, anoncreds.NewErrorf(anoncreds.Input, "duplicate attribute %q", name)
			}

			raw[name] = raws[i]
		}

		return anoncreds.NewCredentialValues(raw)
	}

	values := make(anoncreds.CredentialValues, len(names))

	for i, name := range names {
		if _, dup := values[name]; dup {
			return nil, anoncreds.NewErrorf(anoncreds.Input, "duplicate attribute %q", name)
		}

		values[name] = &anoncreds.AttributeValue{Raw: raws[i], Encoded: encoded[i]}
	}

	if err := values.Validate(); err != nil {
		return nil, err
	}

	return values, nil
}

// revocationMaterial resolves the handles of a revocation info block into
// the issuer's registry material.
func revocationMaterial(info *CredentialRevocationInfo) (*issuer.RevocationInfo, error) {
	if info == nil {
		return nil, nil
	}

	def, err := resolveAs[*anoncreds.RevocationRegistryDefinition](info.RegDef)
	if err != nil {
		return nil, err
	}

	private, err := resolveAs[*anoncreds.RevocationRegistryDefinitionPrivate](info.RegDefPrivate)
	if err != nil {
		return nil, err
	}

	state, err := resolveAs[*revocation.State](info.RegState)
	if err != nil {
		return nil, err
	}

	file, err := resolveAs[*tails.File](info.TailsFile)
	if err != nil {
		return nil, err
	}

	return &issuer.RevocationInfo{
		Definition: def,
		Private:    private,
		State:      state,
		Index:      info.RegIdx,
		Tails:      file,
	}, nil
}

// ProcessCredential finalizes an issued credential for storage, folding the
// blinding factor into the signature and checking the result against the
// credential values. revRegDef is zero for credentials issued without
// revocation.
func ProcessCredential(cred, metadata, masterSecret, credDef,
	revRegDef ObjectHandle) (handle ObjectHandle, err error) {
	defer remember(&err)

	issued, err := resolveAs[*anoncreds.Credential](cred)
	if err != nil {
		return 0, err
	}

	meta, err := resolveAs[*anoncreds.CredentialRequestMetadata](metadata)
	if err != nil {
		return 0, err
	}

	secret, err := resolveAs[*anoncreds.MasterSecret](masterSecret)
	if err != nil {
		return 0, err
	}

	def, err := resolveAs[*anoncreds.CredentialDefinition](credDef)
	if err != nil {
		return 0, err
	}

	regDef, err := resolveOptional[*anoncreds.RevocationRegistryDefinition](revRegDef)
	if err != nil {
		return 0, err
	}

	processed, err := defaultHolder.ProcessCredential(issued, meta, secret, def, regDef)
	if err != nil {
		return 0, err
	}

	return objects.allocate(processed), nil
}

// CredentialGetAttribute answers credential metadata names and raw
// attribute values by name.
func CredentialGetAttribute(cred ObjectHandle, name string) (value string, err error) {
	defer remember(&err)

	credential, err := resolveAs[*anoncreds.Credential](cred)
	if err != nil {
		return "", err
	}

	return credential.Attribute(name)
}

// RevocationRegistryDefinitionGetAttribute answers registry definition
// metadata by name.
func RevocationRegistryDefinitionGetAttribute(revRegDef ObjectHandle, name string) (value string, err error) {
	defer remember(&err)

	def, err := resolveAs[*anoncreds.RevocationRegistryDefinition](revRegDef)
	if err != nil {
		return "", err
	}

	return def.Attribute(name)
}

// CreateRevocationRegistryResult carries the five objects minted by
// CreateRevocationRegistry, including the handle of the open tails file.
type CreateRevocationRegistryResult struct {
	RegDef        ObjectHandle
	RegDefPrivate ObjectHandle
	RegState      ObjectHandle
	Delta         ObjectHandle
	TailsFile     ObjectHandle
}

// CreateRevocationRegistry creates a revocation registry under a credential
// definition and writes its tails file into tailsDirPath. Empty
// revRegDefType and issuanceType select the defaults.
func CreateRevocationRegistry(originDID string, credDef ObjectHandle, tag, revRegDefType, issuanceType string,
	maxCredNum uint32, tailsDirPath string) (result *CreateRevocationRegistryResult, err error) {
	defer remember(&err)

	def, err := resolveAs[*anoncreds.CredentialDefinition](credDef)
	if err != nil {
		return nil, err
	}

	created, err := defaultRegistry.CreateRegistry(&revocation.CreateRegistryRequest{
		OriginDID:    originDID,
		CredDef:      def,
		Tag:          tag,
		RevocDefType: revRegDefType,
		IssuanceType: issuanceType,
		MaxCredNum:   maxCredNum,
		TailsDir:     tailsDirPath,
	})
	if err != nil {
		return nil, err
	}

	return &CreateRevocationRegistryResult{
		RegDef:        objects.allocate(created.Definition),
		RegDefPrivate: objects.allocate(created.Private),
		RegState:      objects.allocate(created.State),
		Delta:         objects.allocate(created.Delta),
		TailsFile:     objects.allocate(created.Tails),
	}, nil
}

// UpdateRevocationRegistryResult carries the advanced registry state and
// the delta covering the movement.
type UpdateRevocationRegistryResult struct {
	RegState ObjectHandle
	Delta    ObjectHandle
}

// UpdateRevocationRegistry moves credentials into and out of the registry
// accumulator by index.
func UpdateRevocationRegistry(revRegDef, revRegState ObjectHandle, issued, revoked []uint32,
	tailsFile ObjectHandle) (result *UpdateRevocationRegistryResult, err error) {
	defer remember(&err)

	def, err := resolveAs[*anoncreds.RevocationRegistryDefinition](revRegDef)
	if err != nil {
		return nil, err
	}

	state, err := resolveAs[*revocation.State](revRegState)
	if err != nil {
		return nil, err
	}

	file, err := resolveAs[*tails.File](tailsFile)
	if err != nil {
		return nil, err
	}

	next, delta, err := defaultRegistry.UpdateRegistry(def, state, issued, revoked, file)
	if err != nil {
		return nil, err
	}

	return &UpdateRevocationRegistryResult{
		RegState: objects.allocate(next),
		Delta:    objects.allocate(delta),
	}, nil
}

// RevokeCredential revokes one credential by registry index.
func RevokeCredential(revRegDef, revRegState ObjectHandle, credRevIdx uint32,
	tailsFile ObjectHandle) (result *UpdateRevocationRegistryResult, err error) {
	defer remember(&err)

	def, err := resolveAs[*anoncreds.RevocationRegistryDefinition](revRegDef)
	if err != nil {
		return nil, err
	}

	state, err := resolveAs[*revocation.State](revRegState)
	if err != nil {
		return nil, err
	}

	file, err := resolveAs[*tails.File](tailsFile)
	if err != nil {
		return nil, err
	}

	next, delta, err := defaultRegistry.Revoke(def, state, credRevIdx, file)
	if err != nil {
		return nil, err
	}

	return &UpdateRevocationRegistryResult{
		RegState: objects.allocate(next),
		Delta:    objects.allocate(delta),
	}, nil
}

// MergeRevocationRegistryDeltas folds two causally ordered registry deltas
// into one covering both updates.
func MergeRevocationRegistryDeltas(delta, other ObjectHandle) (handle ObjectHandle, err error) {
	defer remember(&err)

	first, err := resolveAs[*anoncreds.RevocationRegistryDelta](delta)
	if err != nil {
		return 0, err
	}

	second, err := resolveAs[*anoncreds.RevocationRegistryDelta](other)
	if err != nil {
		return 0, err
	}

	merged, err := revocation.MergeDeltas(first, second)
	if err != nil {
		return 0, err
	}

	return objects.allocate(merged), nil
}

// CreateOrUpdateRevocationState computes the revocation state a holder
// builds non-revocation proofs from. credential supplies the issuance-time
// witness on the first build; prior and priorRegState carry a previously
// computed state and the registry state it was computed against, selecting
// the incremental update path.
func CreateOrUpdateRevocationState(revRegDef, revRegState ObjectHandle, credRevIdx uint32,
	tailsFile, credential, prior, priorRegState ObjectHandle,
	timestamp uint64) (handle ObjectHandle, err error) {
	defer remember(&err)

	def, err := resolveAs[*anoncreds.RevocationRegistryDefinition](revRegDef)
	if err != nil {
		return 0, err
	}

	state, err := resolveAs[*revocation.State](revRegState)
	if err != nil {
		return 0, err
	}

	file, err := resolveAs[*tails.File](tailsFile)
	if err != nil {
		return 0, err
	}

	var witness json.RawMessage

	if credential != 0 {
		cred, err := resolveAs[*anoncreds.Credential](credential)
		if err != nil {
			return 0, err
		}

		witness = cred.Witness
	}

	prev, err := resolveOptional[*anoncreds.RevocationState](prior)
	if err != nil {
		return 0, err
	}

	prevState, err := resolveOptional[*revocation.State](priorRegState)
	if err != nil {
		return 0, err
	}

	created, err := defaultRegistry.CreateOrUpdateState(&revocation.StateRequest{
		Definition: def,
		State:      state,
		Index:      credRevIdx,
		Tails:      file,
		Witness:    witness,
		Prior:      prev,
		PriorState: prevState,
		Timestamp:  timestamp,
	})
	if err != nil {
		return 0, err
	}

	return objects.allocate(created), nil
}

// CredentialEntry selects one held credential for presentation, with the
// timestamp and revocation state to prove non-revocation under. Timestamp
// and RevState are zero for non-revocable credentials.
type CredentialEntry struct {
	Credential ObjectHandle
	Timestamp  uint64
	RevState   ObjectHandle
}

// CredentialProve maps one requested referent onto a credential entry.
// EntryIdx indexes the Entries list of the presentation inputs.
type CredentialProve struct {
	EntryIdx    int32
	Referent    string
	Reveal      bool
	IsPredicate bool
}

// CreatePresentationRequest carries the inputs for building a presentation.
// Schemas and CredDefs are position-aligned with their id lists.
type CreatePresentationRequest struct {
	Request          ObjectHandle
	Entries          []*CredentialEntry
	Proves           []*CredentialProve
	SelfAttestNames  []string
	SelfAttestValues []string
	MasterSecret     ObjectHandle
	Schemas          []ObjectHandle
	SchemaIDs        []string
	CredDefs         []ObjectHandle
	CredDefIDs       []string
}

// CreatePresentation proves a presentation request from held credentials.
func CreatePresentation(req *CreatePresentationRequest) (handle ObjectHandle, err error) {
	defer remember(&err)

	if req == nil {
		return 0, anoncreds.NewError(anoncreds.Input, "missing create presentation request")
	}

	request, err := resolveAs[*anoncreds.PresentationRequest](req.Request)
	if err != nil {
		return 0, err
	}

	secret, err := resolveAs[*anoncreds.MasterSecret](req.MasterSecret)
	if err != nil {
		return 0, err
	}

	schemas, err := resolveList[*anoncreds.Schema](req.Schemas)
	if err != nil {
		return 0, err
	}

	credDefs, err := resolveList[*anoncreds.CredentialDefinition](req.CredDefs)
	if err != nil {
		return 0, err
	}

	entries := make([]*holder.CredentialEntry, len(req.Entries))

	for i, entry := range req.Entries {
		if entry == nil {
			return 0, anoncreds.NewErrorf(anoncreds.Input, "credential entry %d is missing", i)
		}

		cred, err := resolveAs[*anoncreds.Credential](entry.Credential)
		if err != nil {
			return 0, err
		}

		state, err := resolveOptional[*anoncreds.RevocationState](entry.RevState)
		if err != nil {
			return 0, err
		}

		entries[i] = &holder.CredentialEntry{
			Credential: cred,
			Timestamp:  entry.Timestamp,
			State:      state,
		}
	}

	proves := make([]*holder.CredentialProve, len(req.Proves))

	for i, prove := range req.Proves {
		if prove == nil {
			return 0, anoncreds.NewErrorf(anoncreds.Input, "credential prove row %d is missing", i)
		}

		proves[i] = &holder.CredentialProve{
			EntryIdx:    prove.EntryIdx,
			Referent:    prove.Referent,
			Reveal:      prove.Reveal,
			IsPredicate: prove.IsPredicate,
		}
	}

	presentation, err := defaultHolder.CreatePresentation(&holder.CreatePresentationRequest{
		Request:          request,
		Entries:          entries,
		Proves:           proves,
		SelfAttestNames:  req.SelfAttestNames,
		SelfAttestValues: req.SelfAttestValues,
		MasterSecret:     secret,
		Schemas:          schemas,
		SchemaIDs:        req.SchemaIDs,
		CredDefs:         credDefs,
		CredDefIDs:       req.CredDefIDs,
	})
	if err != nil {
		return 0, err
	}

	return objects.allocate(presentation), nil
}

// RevocationEntry supplies one registry snapshot for verification.
// DefEntryIdx indexes the RevRegDefs list; Entry resolves to a public
// registry snapshot or to an issuer registry state, whose public document
// is used.
type RevocationEntry struct {
	DefEntryIdx int32
	Entry       ObjectHandle
	Timestamp   uint64
}

// VerifyPresentationRequest carries a presentation with the public material
// to verify it against. Object lists are position-aligned with their id
// lists.
type VerifyPresentationRequest struct {
	Presentation  ObjectHandle
	Request       ObjectHandle
	Schemas       []ObjectHandle
	SchemaIDs     []string
	CredDefs      []ObjectHandle
	CredDefIDs    []string
	RevRegDefs    []ObjectHandle
	RevRegDefIDs  []string
	RevRegEntries []*RevocationEntry
}

// VerifyPresentation checks a presentation against its request. A sound
// presentation that fails to verify reports false without an error.
func VerifyPresentation(req *VerifyPresentationRequest) (verified bool, err error) {
	defer remember(&err)

	if req == nil {
		return false, anoncreds.NewError(anoncreds.Input, "missing verify presentation request")
	}

	presentation, err := resolveAs[*anoncreds.Presentation](req.Presentation)
	if err != nil {
		return false, err
	}

	request, err := resolveAs[*anoncreds.PresentationRequest](req.Request)
	if err != nil {
		return false, err
	}

	schemas, err := resolveList[*anoncreds.Schema](req.Schemas)
	if err != nil {
		return false, err
	}

	credDefs, err := resolveList[*anoncreds.CredentialDefinition](req.CredDefs)
	if err != nil {
		return false, err
	}

	revRegDefs, err := resolveList[*anoncreds.RevocationRegistryDefinition](req.RevRegDefs)
	if err != nil {
		return false, err
	}

	entries := make([]*verifier.RevocationEntry, len(req.RevRegEntries))

	for i, entry := range req.RevRegEntries {
		if entry == nil {
			return false, anoncreds.NewErrorf(anoncreds.Input, "revocation registry entry %d is missing", i)
		}

		snapshot, err := registrySnapshot(entry.Entry)
		if err != nil {
			return false, err
		}

		entries[i] = &verifier.RevocationEntry{
			DefEntryIdx: entry.DefEntryIdx,
			Entry:       snapshot,
			Timestamp:   entry.Timestamp,
		}
	}

	return defaultVerifier.VerifyPresentation(&verifier.VerifyPresentationRequest{
		Presentation:  presentation,
		Request:       request,
		Schemas:       schemas,
		SchemaIDs:     req.SchemaIDs,
		CredDefs:      credDefs,
		CredDefIDs:    req.CredDefIDs,
		RevRegDefs:    revRegDefs,
		RevRegDefIDs:  req.RevRegDefIDs,
		RevRegEntries: entries,
	})
}

// registrySnapshot reads a public registry document from a handle holding
// either the document itself or an issuer registry state.
func registrySnapshot(handle ObjectHandle) (*anoncreds.RevocationRegistry, error) {
	value, err := objects.resolve(handle)
	if err != nil {
		return nil, err
	}

	switch typed := value.(type) {
	case *anoncreds.RevocationRegistry:
		return typed, nil
	case *revocation.State:
		return typed.Registry(), nil
	}

	return nil, anoncreds.NewErrorf(anoncreds.InvalidState,
		"object handle %d holds a %s, not a registry snapshot", handle, typeName(value))
}
