/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package verifier checks presentations against the request they answer.
// Verification is two-layered: the requested-proof section must account for
// every referent with values and identifiers that hold up structurally, and
// the proof itself must verify against the public material the identifiers
// name. Structural failures surface as ProofRejected errors, a sound but
// untrue proof verifies to false.
package verifier

import (
	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/bbsplus"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

var logger = log.New("anoncreds/verifier")

// Verifier drives the verifying side of the protocol.
type Verifier struct {
	backend api.Verifier
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithBackend overrides the proof verification backend.
func WithBackend(backend api.Verifier) Option {
	return func(v *Verifier) {
		v.backend = backend
	}
}

// New returns a Verifier backed by the default BBS+ scheme.
func New(opts ...Option) *Verifier {
	verifier := &Verifier{backend: bbsplus.New()}

	for _, opt := range opts {
		opt(verifier)
	}

	return verifier
}

// RevocationEntry is one published accumulator snapshot a sub-proof may prove
// non-revocation against. DefEntryIdx indexes the revocation registry
// definition list of the verify request.
type RevocationEntry struct {
	DefEntryIdx int32
	Entry       *anoncreds.RevocationRegistry
	Timestamp   uint64
}

// VerifyPresentationRequest carries a presentation plus the public material
// its identifiers reference. Schemas pair positionally with SchemaIDs,
// CredDefs with CredDefIDs and RevRegDefs with RevRegDefIDs.
type VerifyPresentationRequest struct {
	Presentation  *anoncreds.Presentation
	Request       *anoncreds.PresentationRequest
	Schemas       []*anoncreds.Schema
	SchemaIDs     []string
	CredDefs      []*anoncreds.CredentialDefinition
	CredDefIDs    []string
	RevRegDefs    []*anoncreds.RevocationRegistryDefinition
	RevRegDefIDs  []string
	RevRegEntries []*RevocationEntry
}

// VerifyPresentation checks a presentation against its request. It returns
// false without an error when the proof is well-formed but does not hold,
// and an error when the presentation or the supplied material cannot be
// accepted at all.
func (v *Verifier) VerifyPresentation(req *VerifyPresentationRequest) (bool, error) {
	switch {
	case req == nil:
		return false, anoncreds.NewError(anoncreds.Input, "missing verify input")
	case req.Presentation == nil:
		return false, anoncreds.NewError(anoncreds.Input, "missing presentation")
	case req.Request == nil:
		return false, anoncreds.NewError(anoncreds.Input, "missing presentation request")
	}

	if err := req.Presentation.Validate(); err != nil {
		return false, err
	}

	schemas, err := lookupTable(req.Schemas, req.SchemaIDs, "schema")
	if err != nil {
		return false, err
	}

	credDefs, err := lookupTable(req.CredDefs, req.CredDefIDs, "credential definition")
	if err != nil {
		return false, err
	}

	revRegDefs, err := lookupTable(req.RevRegDefs, req.RevRegDefIDs, "revocation registry definition")
	if err != nil {
		return false, err
	}

	entries, err := entryTable(req.RevRegEntries, req.RevRegDefs)
	if err != nil {
		return false, err
	}

	answers, ok, err := collectAnswers(req.Request, req.Presentation)
	if err != nil || !ok {
		return false, err
	}

	subProofs := make([]*api.SubProofPublic, len(req.Presentation.Identifiers))

	for i, identifier := range req.Presentation.Identifiers {
		subProof, err := buildSubProofPublic(identifier, i, answers[i], schemas, credDefs, revRegDefs, entries)
		if err != nil {
			return false, err
		}

		subProofs[i] = subProof
	}

	verified, err := v.backend.VerifyProof(&api.VerifyRequest{
		Nonce:     req.Request.Nonce,
		Proof:     req.Presentation.Proof,
		SubProofs: subProofs,
	})
	if err != nil {
		return false, anoncreds.NewErrorf(anoncreds.ProofRejected, "verify presentation: %w", err)
	}

	logger.Debugf("verified presentation over %d credentials for request %q: %v",
		len(subProofs), req.Request.Name, verified)

	return verified, nil
}

// referentCheck defers the restriction and non-revocation window checks of
// one referent until the sub-proof answering it is fully assembled.
type referentCheck struct {
	referent     string
	restrictions []map[string]string
	interval     *anoncreds.NonRevokedInterval
}

// subProofAnswers is everything the requested-proof section discloses about
// one sub-proof.
type subProofAnswers struct {
	revealed   map[string]string
	raws       map[string]string
	predicates []*api.Predicate
	checks     []*referentCheck
}

func newSubProofAnswers() *subProofAnswers {
	return &subProofAnswers{
		revealed: map[string]string{},
		raws:     map[string]string{},
	}
}

func (a *subProofAnswers) reveal(name, raw, encoded string) {
	a.revealed[name] = encoded
	a.raws[name] = raw
}

// collectAnswers sweeps the requested-proof section against the request. It
// enforces that every referent is answered exactly once and in the requested
// shape, and groups the disclosed values per sub-proof. A false result means
// a revealed value disagrees with its canonical encoding.
func collectAnswers(request *anoncreds.PresentationRequest,
	presentation *anoncreds.Presentation) ([]*subProofAnswers, bool, error) {
	answers := make([]*subProofAnswers, len(presentation.Identifiers))
	for i := range answers {
		answers[i] = newSubProofAnswers()
	}

	proof := presentation.RequestedProof
	answered := map[string]struct{}{}

	record := func(key, referent string) error {
		if _, dup := answered[key]; dup {
			return anoncreds.NewErrorf(anoncreds.ProofRejected, "referent %q is answered more than once", referent)
		}

		answered[key] = struct{}{}

		return nil
	}

	for referent, row := range proof.RevealedAttrs {
		attrReq, ok := request.RequestedAttributes[referent]
		if !ok {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute referent %q is not requested", referent)
		}

		if len(attrReq.Names) > 0 {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute group referent %q is answered as a single attribute", referent)
		}

		if err := record("attr:"+referent, referent); err != nil {
			return nil, false, err
		}

		if anoncreds.EncodeCredentialAttribute(row.Raw) != row.Encoded {
			return nil, false, nil
		}

		entry := answers[row.SubProofIndex]
		entry.reveal(attrReq.Name, row.Raw, row.Encoded)
		entry.checks = append(entry.checks, &referentCheck{
			referent:     referent,
			restrictions: attrReq.Restrictions,
			interval:     request.AttributeInterval(referent),
		})
	}

	for referent, group := range proof.RevealedAttrGroups {
		attrReq, ok := request.RequestedAttributes[referent]
		if !ok {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute referent %q is not requested", referent)
		}

		if len(attrReq.Names) == 0 {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute referent %q is answered as a group", referent)
		}

		if err := record("attr:"+referent, referent); err != nil {
			return nil, false, err
		}

		if len(group.Values) != len(attrReq.Names) {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute group %q does not disclose the requested attributes", referent)
		}

		entry := answers[group.SubProofIndex]

		for _, name := range attrReq.Names {
			value, ok := group.Values[name]
			if !ok || value == nil {
				return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
					"attribute group %q does not disclose %q", referent, name)
			}

			if anoncreds.EncodeCredentialAttribute(value.Raw) != value.Encoded {
				return nil, false, nil
			}

			entry.reveal(name, value.Raw, value.Encoded)
		}

		entry.checks = append(entry.checks, &referentCheck{
			referent:     referent,
			restrictions: attrReq.Restrictions,
			interval:     request.AttributeInterval(referent),
		})
	}

	for referent, value := range proof.SelfAttestedAttrs {
		attrReq, ok := request.RequestedAttributes[referent]
		if !ok {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute referent %q is not requested", referent)
		}

		if len(attrReq.Names) > 0 {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute group referent %q cannot be self-attested", referent)
		}

		if len(attrReq.Restrictions) > 0 {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"restricted referent %q cannot be self-attested", referent)
		}

		if value == "" {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"self-attested value for %q is empty", referent)
		}

		if err := record("attr:"+referent, referent); err != nil {
			return nil, false, err
		}
	}

	for referent, row := range proof.UnrevealedAttrs {
		attrReq, ok := request.RequestedAttributes[referent]
		if !ok {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute referent %q is not requested", referent)
		}

		if len(attrReq.Names) > 0 {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute group referent %q must be revealed", referent)
		}

		if err := record("attr:"+referent, referent); err != nil {
			return nil, false, err
		}

		entry := answers[row.SubProofIndex]
		entry.checks = append(entry.checks, &referentCheck{
			referent:     referent,
			restrictions: attrReq.Restrictions,
			interval:     request.AttributeInterval(referent),
		})
	}

	for referent, row := range proof.Predicates {
		predReq, ok := request.RequestedPredicates[referent]
		if !ok {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"predicate referent %q is not requested", referent)
		}

		if err := record("pred:"+referent, referent); err != nil {
			return nil, false, err
		}

		op, err := predicateOp(predReq.PType)
		if err != nil {
			return nil, false, err
		}

		entry := answers[row.SubProofIndex]
		entry.predicates = append(entry.predicates, &api.Predicate{
			Attr:  predReq.Name,
			Op:    op,
			Value: predReq.PValue,
		})
		entry.checks = append(entry.checks, &referentCheck{
			referent:     referent,
			restrictions: predReq.Restrictions,
			interval:     request.PredicateInterval(referent),
		})
	}

	for _, referent := range request.AttributeReferents() {
		if _, ok := answered["attr:"+referent]; !ok {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"attribute referent %q is not answered", referent)
		}
	}

	for _, referent := range request.PredicateReferents() {
		if _, ok := answered["pred:"+referent]; !ok {
			return nil, false, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"predicate referent %q is not answered", referent)
		}
	}

	return answers, true, nil
}

// buildSubProofPublic resolves the public material for one sub-proof and runs
// the restriction and non-revocation window checks deferred during the sweep.
func buildSubProofPublic(identifier *anoncreds.Identifier, idx int, answers *subProofAnswers,
	schemas map[string]*anoncreds.Schema, credDefs map[string]*anoncreds.CredentialDefinition,
	revRegDefs map[string]*anoncreds.RevocationRegistryDefinition,
	entries map[string]map[uint64]*anoncreds.RevocationRegistry) (*api.SubProofPublic, error) {
	if _, ok := schemas[identifier.SchemaID]; !ok {
		return nil, anoncreds.NewErrorf(anoncreds.Input, "no schema %q supplied", identifier.SchemaID)
	}

	credDef, ok := credDefs[identifier.CredDefID]
	if !ok {
		return nil, anoncreds.NewErrorf(anoncreds.Input,
			"no credential definition %q supplied", identifier.CredDefID)
	}

	needNonRevocation := false

	for _, check := range answers.checks {
		matched, err := anoncreds.MatchesIdentifierRestrictions(identifier, answers.raws, check.restrictions)
		if err != nil {
			return nil, err
		}

		if !matched {
			return nil, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"presented credential does not satisfy the restrictions for %q", check.referent)
		}

		if check.interval != nil {
			needNonRevocation = true
		}
	}

	var nonRevocation *api.NonRevocationPublic

	if needNonRevocation && identifier.RevRegID != "" {
		if identifier.Timestamp == nil {
			return nil, anoncreds.NewErrorf(anoncreds.ProofRejected,
				"sub-proof %d discloses no non-revocation timestamp", idx)
		}

		timestamp := *identifier.Timestamp

		for _, check := range answers.checks {
			if check.interval != nil && !check.interval.Covers(timestamp) {
				return nil, anoncreds.NewErrorf(anoncreds.ProofRejected,
					"timestamp %d is outside the non-revocation window requested for %q",
					timestamp, check.referent)
			}
		}

		revRegDef, ok := revRegDefs[identifier.RevRegID]
		if !ok {
			return nil, anoncreds.NewErrorf(anoncreds.Input,
				"no revocation registry definition %q supplied", identifier.RevRegID)
		}

		entry, ok := entries[identifier.RevRegID][timestamp]
		if !ok {
			return nil, anoncreds.NewErrorf(anoncreds.Input,
				"no revocation registry entry for %q at timestamp %d", identifier.RevRegID, timestamp)
		}

		nonRevocation = &api.NonRevocationPublic{
			RegistryPublic: revRegDef.Value.PublicKeys,
			Accumulator:    entry.Value.Accum,
		}
	}

	api.SortPredicates(answers.predicates)

	return &api.SubProofPublic{
		Public:        credDef.Value.Primary,
		Revealed:      answers.revealed,
		Predicates:    answers.predicates,
		NonRevocation: nonRevocation,
	}, nil
}

// entryTable indexes the published registry snapshots by registry id and
// timestamp. Entries reference their definition by position.
func entryTable(entries []*RevocationEntry,
	defs []*anoncreds.RevocationRegistryDefinition) (map[string]map[uint64]*anoncreds.RevocationRegistry, error) {
	table := map[string]map[uint64]*anoncreds.RevocationRegistry{}

	for i, entry := range entries {
		if entry == nil || entry.Entry == nil {
			return nil, anoncreds.NewErrorf(anoncreds.Input, "revocation registry entry %d is missing", i)
		}

		if entry.DefEntryIdx < 0 || int(entry.DefEntryIdx) >= len(defs) {
			return nil, anoncreds.NewErrorf(anoncreds.Input,
				"revocation registry entry %d references definition %d of %d",
				i, entry.DefEntryIdx, len(defs))
		}

		id := defs[entry.DefEntryIdx].ID

		byTimestamp, ok := table[id]
		if !ok {
			byTimestamp = map[uint64]*anoncreds.RevocationRegistry{}
			table[id] = byTimestamp
		}

		byTimestamp[entry.Timestamp] = entry.Entry
	}

	return table, nil
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
