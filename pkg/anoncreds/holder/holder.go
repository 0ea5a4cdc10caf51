/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package holder implements the receiving half of the credential exchange:
// creating link secrets, requesting credentials against an issuer offer,
// storing received credentials and proving them inside presentations.
// Credentials and presentations are plain documents from pkg/doc/anoncreds,
// the cryptography is delegated to a CL backend behind pkg/crypto/cl/api.
package holder

import (
	"errors"
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/accumulator"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/bbsplus"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

var logger = log.New("anoncreds/holder")

// Holder drives the prover side of the protocol.
type Holder struct {
	blinder api.Blinder
	prover  api.Prover
}

// Option configures a Holder.
type Option func(*Holder)

// WithBlinder overrides the blinding backend.
func WithBlinder(blinder api.Blinder) Option {
	return func(h *Holder) {
		h.blinder = blinder
	}
}

// WithProver overrides the proof backend.
func WithProver(prover api.Prover) Option {
	return func(h *Holder) {
		h.prover = prover
	}
}

// New returns a Holder backed by the default BBS+ scheme.
func New(opts ...Option) *Holder {
	scheme := bbsplus.New()

	holder := &Holder{
		blinder: scheme,
		prover:  scheme,
	}

	for _, opt := range opts {
		opt(holder)
	}

	return holder
}

// CreateMasterSecret generates a fresh link secret. The secret never leaves
// the holder; only blinded commitments to it appear in credential requests.
func (h *Holder) CreateMasterSecret() (*anoncreds.MasterSecret, error) {
	value, err := h.blinder.CreateMasterSecret()
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Unexpected, "create master secret: %w", err)
	}

	return &anoncreds.MasterSecret{Value: value}, nil
}

// CredentialRequestResult pairs the request sent to the issuer with the
// metadata the holder keeps for processing the returned credential.
type CredentialRequestResult struct {
	Request  *anoncreds.CredentialRequest
	Metadata *anoncreds.CredentialRequestMetadata
}

// CreateCredentialRequest answers a credential offer. It checks the issuer's
// key correctness proof, blinds the link secret against the offer nonce and
// binds the result to a fresh nonce of its own.
func (h *Holder) CreateCredentialRequest(proverDID string, credDef *anoncreds.CredentialDefinition,
	masterSecret *anoncreds.MasterSecret, masterSecretID string,
	offer *anoncreds.CredentialOffer) (*CredentialRequestResult, error) {
	switch {
	case credDef == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential definition")
	case masterSecret == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing master secret")
	case offer == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential offer")
	}

	if err := masterSecret.Validate(); err != nil {
		return nil, err
	}

	if err := offer.Validate(); err != nil {
		return nil, err
	}

	if offer.CredDefID != credDef.ID {
		return nil, anoncreds.NewErrorf(anoncreds.Input,
			"offer was built for a different credential definition %q", offer.CredDefID)
	}

	if masterSecretID == "" {
		return nil, anoncreds.NewError(anoncreds.Input, "missing master secret id")
	}

	err := h.blinder.VerifyKeyCorrectnessProof(credDef.Value.Primary, offer.KeyCorrectnessProof.Value, nil)
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "verify key correctness proof: %w", err)
	}

	blinded, err := h.blinder.BlindMasterSecret(credDef.Value.Primary, offer.KeyCorrectnessProof.Value,
		masterSecret.Value, offer.Nonce)
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "blind master secret: %w", err)
	}

	nonce, err := anoncreds.GenerateNonce()
	if err != nil {
		return nil, err
	}

	request := &anoncreds.CredentialRequest{
		ProverDID:                 proverDID,
		CredDefID:                 credDef.ID,
		BlindedMS:                 blinded.Blinded,
		BlindedMSCorrectnessProof: blinded.CorrectnessProof,
		Nonce:                     nonce,
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	logger.Debugf("created credential request for credential definition %q", credDef.ID)

	return &CredentialRequestResult{
		Request: request,
		Metadata: &anoncreds.CredentialRequestMetadata{
			MasterSecretBlindingData: blinded.BlindingData,
			Nonce:                    nonce,
			MasterSecretName:         masterSecretID,
		},
	}, nil
}

// ProcessCredential finalizes a credential received from an issuer: it folds
// the blinding data kept in the request metadata into the signature and
// verifies the result against the credential values. The returned credential
// is a new document, the input is left untouched. revRegDef may be nil for
// credentials issued without revocation.
func (h *Holder) ProcessCredential(cred *anoncreds.Credential, metadata *anoncreds.CredentialRequestMetadata,
	masterSecret *anoncreds.MasterSecret, credDef *anoncreds.CredentialDefinition,
	revRegDef *anoncreds.RevocationRegistryDefinition) (*anoncreds.Credential, error) {
	switch {
	case cred == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential")
	case metadata == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential request metadata")
	case masterSecret == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing master secret")
	case credDef == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing credential definition")
	}

	if err := cred.Validate(); err != nil {
		return nil, err
	}

	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	if err := masterSecret.Validate(); err != nil {
		return nil, err
	}

	if cred.CredDefID != credDef.ID {
		return nil, anoncreds.NewErrorf(anoncreds.Input,
			"credential was issued under a different credential definition %q", cred.CredDefID)
	}

	if revRegDef != nil && cred.RevRegID != revRegDef.ID {
		return nil, anoncreds.NewErrorf(anoncreds.Input,
			"credential belongs to a different revocation registry %q", cred.RevRegID)
	}

	processed, err := h.blinder.ProcessSignature(&api.ProcessRequest{
		Public:          credDef.Value.Primary,
		Signature:       cred.Signature,
		BlindingData:    metadata.MasterSecretBlindingData,
		MasterSecret:    masterSecret.Value,
		Values:          encodedValues(cred.Values),
		RevocationIndex: cred.RevocationIndex(),
		RequestNonce:    metadata.Nonce,
	})
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "process credential signature: %w", err)
	}

	out := *cred
	out.Signature = processed

	logger.Debugf("processed credential under credential definition %q", credDef.ID)

	return &out, nil
}

// CredentialEntry is one stored credential entering a presentation, together
// with the revocation state proving its membership at Timestamp. State may be
// nil when the presentation request asks for no non-revocation proof.
type CredentialEntry struct {
	Credential *anoncreds.Credential
	Timestamp  uint64
	State      *anoncreds.RevocationState
}

// CredentialProve maps one referent of the presentation request onto a
// credential entry. EntryIdx indexes into the entry list of the request.
type CredentialProve struct {
	EntryIdx    int32
	Referent    string
	Reveal      bool
	IsPredicate bool
}

// CreatePresentationRequest carries the inputs for building one presentation.
// Schemas and CredDefs are positionally paired with SchemaIDs and CredDefIDs,
// SelfAttestNames pairs with SelfAttestValues.
type CreatePresentationRequest struct {
	Request          *anoncreds.PresentationRequest
	Entries          []*CredentialEntry
	Proves           []*CredentialProve
	SelfAttestNames  []string
	SelfAttestValues []string
	MasterSecret     *anoncreds.MasterSecret
	Schemas          []*anoncreds.Schema
	SchemaIDs        []string
	CredDefs         []*anoncreds.CredentialDefinition
	CredDefIDs       []string
}

// CreatePresentation builds a presentation answering every referent of the
// request exactly once, either from a credential entry or by self-attestation.
// Each entry becomes one sub proof; all sub proofs share the same blinded
// link secret, which is what ties the credentials to a single holder.
func (h *Holder) CreatePresentation(req *CreatePresentationRequest) (*anoncreds.Presentation, error) {
	switch {
	case req == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing presentation input")
	case req.Request == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing presentation request")
	case req.MasterSecret == nil:
		return nil, anoncreds.NewError(anoncreds.Input, "missing master secret")
	case len(req.Entries) == 0:
		return nil, anoncreds.NewError(anoncreds.Input, "presentation needs at least one credential entry")
	}

	if err := req.MasterSecret.Validate(); err != nil {
		return nil, err
	}

	schemas, err := lookupTable(req.Schemas, req.SchemaIDs, "schema")
	if err != nil {
		return nil, err
	}

	credDefs, err := lookupTable(req.CredDefs, req.CredDefIDs, "credential definition")
	if err != nil {
		return nil, err
	}

	answers := newReferentAnswers(req.Request)

	selfAttested, err := answers.recordSelfAttested(req.SelfAttestNames, req.SelfAttestValues)
	if err != nil {
		return nil, err
	}

	entryProves, err := answers.recordProves(req.Proves, len(req.Entries))
	if err != nil {
		return nil, err
	}

	if err := answers.complete(); err != nil {
		return nil, err
	}

	requested := &anoncreds.RequestedProof{
		RevealedAttrs:     map[string]*anoncreds.RevealedAttribute{},
		SelfAttestedAttrs: selfAttested,
		UnrevealedAttrs:   map[string]*anoncreds.SubProofReferent{},
		Predicates:        map[string]*anoncreds.SubProofReferent{},
	}

	subProofs := make([]*api.SubProof, 0, len(req.Entries))
	identifiers := make([]*anoncreds.Identifier, 0, len(req.Entries))

	for idx, entry := range req.Entries {
		subProof, identifier, err := h.buildSubProof(req, entry, idx, entryProves[idx], schemas, credDefs, requested)
		if err != nil {
			return nil, err
		}

		subProofs = append(subProofs, subProof)
		identifiers = append(identifiers, identifier)
	}

	proof, err := h.prover.CreateProof(&api.ProofRequest{
		Nonce:     req.Request.Nonce,
		SubProofs: subProofs,
	})
	if err != nil {
		if errors.Is(err, accumulator.ErrRevoked) {
			return nil, anoncreds.NewErrorf(anoncreds.CredentialRevoked, "create presentation: %w", err)
		}

		return nil, anoncreds.NewErrorf(anoncreds.Input, "create presentation: %w", err)
	}

	logger.Debugf("created presentation over %d credentials for request %q",
		len(subProofs), req.Request.Name)

	return &anoncreds.Presentation{
		Proof:          proof,
		RequestedProof: requested,
		Identifiers:    identifiers,
	}, nil
}

// buildSubProof assembles the prover inputs for one credential entry and
// fills in the requested-proof rows the entry answers.
func (h *Holder) buildSubProof(req *CreatePresentationRequest, entry *CredentialEntry, idx int,
	rows []*CredentialProve, schemas map[string]*anoncreds.Schema,
	credDefs map[string]*anoncreds.CredentialDefinition,
	requested *anoncreds.RequestedProof) (*api.SubProof, *anoncreds.Identifier, error) {
	if entry == nil || entry.Credential == nil {
		return nil, nil, anoncreds.NewErrorf(anoncreds.Input, "credential entry %d has no credential", idx)
	}

	if len(rows) == 0 {
		return nil, nil, anoncreds.NewErrorf(anoncreds.Input,
			"credential entry %d is not referenced by any proves row", idx)
	}

	cred := entry.Credential

	if _, ok := schemas[cred.SchemaID]; !ok {
		return nil, nil, anoncreds.NewErrorf(anoncreds.Input, "no schema %q supplied", cred.SchemaID)
	}

	credDef, ok := credDefs[cred.CredDefID]
	if !ok {
		return nil, nil, anoncreds.NewErrorf(anoncreds.Input,
			"no credential definition %q supplied", cred.CredDefID)
	}

	subProofIndex := int32(idx)
	revealed := map[string]struct{}{}
	needNonRevocation := false

	var predicates []*api.Predicate

	for _, row := range rows {
		if row.IsPredicate {
			predReq := req.Request.RequestedPredicates[row.Referent]

			if err := checkRestrictions(row.Referent, predReq.Restrictions, cred); err != nil {
				return nil, nil, err
			}

			predicate, err := buildPredicate(predReq, cred)
			if err != nil {
				return nil, nil, err
			}

			predicates = append(predicates, predicate)
			requested.Predicates[row.Referent] = &anoncreds.SubProofReferent{SubProofIndex: subProofIndex}

			if req.Request.PredicateInterval(row.Referent) != nil {
				needNonRevocation = true
			}

			continue
		}

		attrReq := req.Request.RequestedAttributes[row.Referent]

		if err := checkRestrictions(row.Referent, attrReq.Restrictions, cred); err != nil {
			return nil, nil, err
		}

		err := recordAttribute(attrReq, row, cred, subProofIndex, revealed, requested)
		if err != nil {
			return nil, nil, err
		}

		if req.Request.AttributeInterval(row.Referent) != nil {
			needNonRevocation = true
		}
	}

	var (
		nonRevocation *api.NonRevocationInput
		timestamp     *uint64
	)

	if needNonRevocation && cred.RevRegID != "" {
		state := entry.State
		if state == nil {
			return nil, nil, anoncreds.NewErrorf(anoncreds.Input,
				"credential entry %d needs a revocation state", idx)
		}

		if err := state.Validate(); err != nil {
			return nil, nil, err
		}

		if len(state.Registry) == 0 {
			return nil, nil, anoncreds.NewErrorf(anoncreds.Input,
				"revocation state for entry %d carries no registry key", idx)
		}

		nonRevocation = &api.NonRevocationInput{
			RegistryPublic: state.Registry,
			Accumulator:    state.RevReg.Accum,
			Witness:        state.Witness,
		}

		ts := entry.Timestamp
		if ts == 0 {
			ts = state.Timestamp
		}

		timestamp = &ts
	}

	api.SortPredicates(predicates)

	subProof := &api.SubProof{
		Public:        credDef.Value.Primary,
		Signature:     cred.Signature,
		MasterSecret:  req.MasterSecret.Value,
		Values:        encodedValues(cred.Values),
		Revealed:      sortedNames(revealed),
		Predicates:    predicates,
		NonRevocation: nonRevocation,
	}

	identifier := &anoncreds.Identifier{
		SchemaID:  cred.SchemaID,
		CredDefID: cred.CredDefID,
		RevRegID:  cred.RevRegID,
		Timestamp: timestamp,
	}

	return subProof, identifier, nil
}

// buildPredicate checks the credential can actually satisfy a requested
// predicate before any proving starts. An unsatisfiable predicate would only
// surface as an opaque proof failure later.
func buildPredicate(predReq *anoncreds.PredicateRequest, cred *anoncreds.Credential) (*api.Predicate, error) {
	value, ok := cred.Values[predReq.Name]
	if !ok {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "credential has no attribute %q", predReq.Name)
	}

	parsed, err := strconv.ParseInt(value.Encoded, 10, 32)
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "attribute %q is not an integer", predReq.Name)
	}

	if !predicateSatisfied(int32(parsed), predReq.PValue, predReq.PType) {
		return nil, anoncreds.NewErrorf(anoncreds.Input,
			"attribute %q does not satisfy the predicate %s %d", predReq.Name, predReq.PType, predReq.PValue)
	}

	op, err := predicateOp(predReq.PType)
	if err != nil {
		return nil, err
	}

	return &api.Predicate{Attr: predReq.Name, Op: op, Value: predReq.PValue}, nil
}

func checkRestrictions(referent string, restrictions []map[string]string, cred *anoncreds.Credential) error {
	ok, err := anoncreds.MatchesRestrictions(cred, restrictions)
	if err != nil {
		return err
	}

	if !ok {
		return anoncreds.NewErrorf(anoncreds.Input,
			"credential does not satisfy the restrictions for %q", referent)
	}

	return nil
}

// recordAttribute resolves one attribute proves row against the credential
// and files it under the right requested-proof section.
func recordAttribute(attrReq *anoncreds.AttributeRequest, row *CredentialProve, cred *anoncreds.Credential,
	subProofIndex int32, revealed map[string]struct{}, requested *anoncreds.RequestedProof) error {
	if len(attrReq.Names) > 0 {
		if !row.Reveal {
			return anoncreds.NewErrorf(anoncreds.Input,
				"attribute group referent %q must be revealed", row.Referent)
		}

		group := &anoncreds.RevealedAttributeGroup{
			SubProofIndex: subProofIndex,
			Values:        map[string]*anoncreds.AttributeValue{},
		}

		for _, name := range attrReq.Names {
			value, ok := cred.Values[name]
			if !ok {
				return anoncreds.NewErrorf(anoncreds.Input, "credential has no attribute %q", name)
			}

			group.Values[name] = value
			revealed[name] = struct{}{}
		}

		if requested.RevealedAttrGroups == nil {
			requested.RevealedAttrGroups = map[string]*anoncreds.RevealedAttributeGroup{}
		}

		requested.RevealedAttrGroups[row.Referent] = group

		return nil
	}

	value, ok := cred.Values[attrReq.Name]
	if !ok {
		return anoncreds.NewErrorf(anoncreds.Input, "credential has no attribute %q", attrReq.Name)
	}

	if row.Reveal {
		requested.RevealedAttrs[row.Referent] = &anoncreds.RevealedAttribute{
			SubProofIndex: subProofIndex,
			Raw:           value.Raw,
			Encoded:       value.Encoded,
		}
		revealed[attrReq.Name] = struct{}{}

		return nil
	}

	requested.UnrevealedAttrs[row.Referent] = &anoncreds.SubProofReferent{SubProofIndex: subProofIndex}

	return nil
}

// referentAnswers tracks which referents of a presentation request have been
// answered. Attribute and predicate referents live in separate namespaces.
type referentAnswers struct {
	request  *anoncreds.PresentationRequest
	answered map[string]struct{}
}

func newReferentAnswers(request *anoncreds.PresentationRequest) *referentAnswers {
	return &referentAnswers{
		request:  request,
		answered: map[string]struct{}{},
	}
}

func (a *referentAnswers) record(key string) error {
	if _, dup := a.answered[key]; dup {
		return anoncreds.NewErrorf(anoncreds.Input, "referent %q is answered more than once", key[5:])
	}

	a.answered[key] = struct{}{}

	return nil
}

func (a *referentAnswers) recordSelfAttested(names, values []string) (map[string]string, error) {
	if len(names) != len(values) {
		return nil, anoncreds.NewError(anoncreds.Input, "self-attested names and values are not aligned")
	}

	selfAttested := make(map[string]string, len(names))

	for i, referent := range names {
		attrReq, ok := a.request.RequestedAttributes[referent]
		if !ok {
			return nil, anoncreds.NewErrorf(anoncreds.Input,
				"self-attested referent %q is not requested", referent)
		}

		if len(attrReq.Names) > 0 {
			return nil, anoncreds.NewErrorf(anoncreds.Input,
				"attribute group referent %q cannot be self-attested", referent)
		}

		if len(attrReq.Restrictions) > 0 {
			return nil, anoncreds.NewErrorf(anoncreds.Input,
				"restricted referent %q cannot be self-attested", referent)
		}

		if values[i] == "" {
			return nil, anoncreds.NewErrorf(anoncreds.Input,
				"self-attested value for %q is empty", referent)
		}

		if err := a.record("attr:" + referent); err != nil {
			return nil, err
		}

		selfAttested[referent] = values[i]
	}

	return selfAttested, nil
}

func (a *referentAnswers) recordProves(proves []*CredentialProve, entries int) ([][]*CredentialProve, error) {
	perEntry := make([][]*CredentialProve, entries)

	for _, prove := range proves {
		if prove == nil {
			return nil, anoncreds.NewError(anoncreds.Input, "missing proves row")
		}

		if prove.EntryIdx < 0 || int(prove.EntryIdx) >= entries {
			return nil, anoncreds.NewErrorf(anoncreds.Input,
				"proves row for %q references credential entry %d of %d", prove.Referent, prove.EntryIdx, entries)
		}

		key := "attr:" + prove.Referent

		if prove.IsPredicate {
			if _, ok := a.request.RequestedPredicates[prove.Referent]; !ok {
				return nil, anoncreds.NewErrorf(anoncreds.Input,
					"unknown predicate referent %q", prove.Referent)
			}

			if prove.Reveal {
				return nil, anoncreds.NewErrorf(anoncreds.Input,
					"predicate referent %q cannot be revealed", prove.Referent)
			}

			key = "pred:" + prove.Referent
		} else if _, ok := a.request.RequestedAttributes[prove.Referent]; !ok {
			return nil, anoncreds.NewErrorf(anoncreds.Input, "unknown attribute referent %q", prove.Referent)
		}

		if err := a.record(key); err != nil {
			return nil, err
		}

		perEntry[prove.EntryIdx] = append(perEntry[prove.EntryIdx], prove)
	}

	return perEntry, nil
}

func (a *referentAnswers) complete() error {
	for _, referent := range a.request.AttributeReferents() {
		if _, ok := a.answered["attr:"+referent]; !ok {
			return anoncreds.NewErrorf(anoncreds.Input, "attribute referent %q is not answered", referent)
		}
	}

	for _, referent := range a.request.PredicateReferents() {
		if _, ok := a.answered["pred:"+referent]; !ok {
			return anoncreds.NewErrorf(anoncreds.Input, "predicate referent %q is not answered", referent)
		}
	}

	return nil
}

func lookupTable[T any](objects []*T, ids []string, what string) (map[string]*T, error) {
	if len(objects) != len(ids) {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "%s list and id list are not aligned", what)
	}

	table := make(map[string]*T, len(objects))

	for i, object := range objects {
		if object == nil {
			return nil, anoncreds.NewErrorf(anoncreds.Input, "%s %q is missing", what, ids[i])
		}

		table[ids[i]] = object
	}

	return table, nil
}

func predicateSatisfied(value, bound int32, ptype string) bool {
	switch ptype {
	case anoncreds.PredicateGE:
		return value >= bound
	case anoncreds.PredicateGT:
		return value > bound
	case anoncreds.PredicateLE:
		return value <= bound
	case anoncreds.PredicateLT:
		return value < bound
	}

	return false
}

func predicateOp(ptype string) (string, error) {
	switch ptype {
	case anoncreds.PredicateGE:
		return api.PredicateGE, nil
	case anoncreds.PredicateGT:
		return api.PredicateGT, nil
	case anoncreds.PredicateLE:
		return api.PredicateLE, nil
	case anoncreds.PredicateLT:
		return api.PredicateLT, nil
	}

	return "", anoncreds.NewErrorf(anoncreds.Input, "unsupported predicate type %q", ptype)
}

func encodedValues(values anoncreds.CredentialValues) map[string]string {
	encoded := make(map[string]string, len(values))

	for name, value := range values {
		encoded[name] = value.Encoded
	}

	return encoded
}

func sortedNames(set map[string]struct{}) []string {
	names := maps.Keys(set)
	slices.Sort(names)

	return names
}
