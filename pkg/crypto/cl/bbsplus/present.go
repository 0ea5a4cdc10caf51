/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bbsplus

import (
	"encoding/json"
	"errors"
	"fmt"

	ml "github.com/IBM/mathlib"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/accumulator"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
)

// The presentation is one Fiat-Shamir transcript over every requested
// credential: each signature proof, predicate proof and non-revocation proof
// contributes its commitment bytes, the challenge is hashed over all of them
// plus the verifier nonce, and only the challenge is carried in the
// aggregate. The link secret uses one shared blinder across credentials, so
// equal responses prove the same holder behind every signature.

type aggregatedProofDoc struct {
	CHash string `json:"c_hash"`
}

type primaryProofDoc struct {
	EqProof  *eqProofDoc   `json:"eq_proof"`
	GeProofs []*geProofDoc `json:"ge_proofs,omitempty"`
}

type subProofDoc struct {
	PrimaryProof  primaryProofDoc `json:"primary_proof"`
	NonRevocProof json.RawMessage `json:"non_revoc_proof,omitempty"`
}

type proofContainerDoc struct {
	Proofs          []subProofDoc      `json:"proofs"`
	AggregatedProof aggregatedProofDoc `json:"aggregated_proof"`
}

// invalidProofError rejects the proof itself, as opposed to a malformed
// verification request.
type invalidProofError struct {
	msg string
}

func (e *invalidProofError) Error() string {
	return e.msg
}

func invalidProof(format string, args ...interface{}) error {
	return &invalidProofError{msg: fmt.Sprintf(format, args...)}
}

func isInvalidProof(err error) bool {
	var ipe *invalidProofError

	return errors.As(err, &ipe)
}

type subProofBuilders struct {
	eq  *eqProofBuilder
	ges []*geProofBuilder
	nr  *accumulator.ProofBuilder
}

// CreateProof builds a presentation over one or more credentials against the
// verifier nonce.
func (s *Scheme) CreateProof(req *api.ProofRequest) (json.RawMessage, error) {
	if len(req.SubProofs) == 0 {
		return nil, fmt.Errorf("proof request names no credentials")
	}

	nonce, err := nonceBytes(req.Nonce)
	if err != nil {
		return nil, err
	}

	msTilde := createRandSignatureFr()

	builders := make([]*subProofBuilders, 0, len(req.SubProofs))

	for i, sub := range req.SubProofs {
		b, err := newSubProofBuilders(sub, msTilde)
		if err != nil {
			return nil, fmt.Errorf("credential %d: %w", i, err)
		}

		builders = append(builders, b)
	}

	var transcript []byte

	for _, b := range builders {
		transcript = append(transcript, b.eq.contribution()...)

		for _, ge := range b.ges {
			transcript = append(transcript, ge.contribution()...)
		}

		if b.nr != nil {
			transcript = append(transcript, b.nr.Contribution()...)
		}
	}

	transcript = append(transcript, nonce...)

	challenge := frFromOKM(transcript)

	container := proofContainerDoc{
		Proofs:          make([]subProofDoc, 0, len(builders)),
		AggregatedProof: aggregatedProofDoc{CHash: frToDecimal(challenge)},
	}

	for i, b := range builders {
		doc := subProofDoc{
			PrimaryProof: primaryProofDoc{
				EqProof:  b.eq.finish(challenge),
				GeProofs: make([]*geProofDoc, 0, len(b.ges)),
			},
		}

		for _, ge := range b.ges {
			doc.PrimaryProof.GeProofs = append(doc.PrimaryProof.GeProofs, ge.finish(challenge))
		}

		if b.nr != nil {
			nrDoc, err := b.nr.Finish(challenge)
			if err != nil {
				return nil, fmt.Errorf("credential %d: %w", i, err)
			}

			doc.NonRevocProof = nrDoc
		}

		container.Proofs = append(container.Proofs, doc)
	}

	out, err := json.Marshal(container)
	if err != nil {
		return nil, fmt.Errorf("marshal proof: %w", err)
	}

	return out, nil
}

func newSubProofBuilders(sub *api.SubProof, msTilde *ml.Zr) (*subProofBuilders, error) {
	pk, err := parsePublicKey(sub.Public)
	if err != nil {
		return nil, err
	}

	sig, err := parseSignature(sub.Signature)
	if err != nil {
		return nil, err
	}

	ms, err := parseMasterSecret(sub.MasterSecret)
	if err != nil {
		return nil, err
	}

	revealedSet := make(map[string]bool, len(sub.Revealed))
	for _, name := range sub.Revealed {
		revealedSet[name] = true
	}

	for _, pred := range sub.Predicates {
		if revealedSet[pred.Attr] {
			return nil, fmt.Errorf("attribute %q cannot be both revealed and bound by a predicate", pred.Attr)
		}
	}

	tildes := mTildes{msAttrName: msTilde}

	eq, err := newEqProofBuilder(pk, sig, ms, sub.Values, sub.Revealed, tildes)
	if err != nil {
		return nil, err
	}

	b := &subProofBuilders{eq: eq}

	for _, pred := range sub.Predicates {
		encoded, ok := sub.Values[pred.Attr]
		if !ok {
			return nil, fmt.Errorf("no value for predicate attribute %q", pred.Attr)
		}

		ge, err := newGeProofBuilder(pk, pred, encoded, tildes)
		if err != nil {
			return nil, err
		}

		b.ges = append(b.ges, ge)
	}

	if sub.NonRevocation != nil {
		if !pk.supportsRevocation() {
			return nil, fmt.Errorf("credential key does not support revocation")
		}

		if sig.revIndex == 0 {
			return nil, fmt.Errorf("signature carries no registry index")
		}

		nr, err := accumulator.NewProofBuilder(sub.NonRevocation.RegistryPublic, sub.NonRevocation.Witness,
			sub.NonRevocation.Accumulator, tildes.get(revAttrName))
		if err != nil {
			return nil, err
		}

		if nr.Index() != sig.revIndex {
			return nil, fmt.Errorf("witness index %d does not match the credential registry index %d",
				nr.Index(), sig.revIndex)
		}

		b.nr = nr
	}

	return b, nil
}

// VerifyProof checks a presentation against the request it was built for.
// It returns false without an error when a well-formed proof does not hold;
// errors report requests or proofs that could not be processed at all.
func (s *Scheme) VerifyProof(req *api.VerifyRequest) (bool, error) {
	var container proofContainerDoc
	if err := json.Unmarshal(req.Proof, &container); err != nil {
		return false, fmt.Errorf("parse proof: %w", err)
	}

	if len(container.Proofs) != len(req.SubProofs) {
		return false, fmt.Errorf("proof carries %d credentials, request names %d",
			len(container.Proofs), len(req.SubProofs))
	}

	nonce, err := nonceBytes(req.Nonce)
	if err != nil {
		return false, err
	}

	challenge, err := frFromDecimal(container.AggregatedProof.CHash)
	if err != nil {
		return false, fmt.Errorf("parse c_hash: %w", err)
	}

	var (
		transcript []byte
		linkHat    *ml.Zr
	)

	for i := range req.SubProofs {
		sub := req.SubProofs[i]
		doc := &container.Proofs[i]

		if doc.PrimaryProof.EqProof == nil {
			return false, fmt.Errorf("sub-proof %d is missing the signature proof", i)
		}

		pk, err := parsePublicKey(sub.Public)
		if err != nil {
			return false, fmt.Errorf("sub-proof %d: %w", i, err)
		}

		ok, err := checkAgainstRequest(sub, doc)
		if err != nil {
			return false, fmt.Errorf("sub-proof %d: %w", i, err)
		}

		if !ok {
			return false, nil
		}

		mHat, _, err := parseMHat(pk, doc.PrimaryProof.EqProof)
		if err != nil {
			return false, fmt.Errorf("sub-proof %d: %w", i, err)
		}

		// equal link secret responses tie the credentials to one holder
		if linkHat == nil {
			linkHat = mHat[msAttrName]
		} else if !linkHat.Equals(mHat[msAttrName]) {
			return false, nil
		}

		eqBytes, err := eqProofContribution(pk, doc.PrimaryProof.EqProof, challenge)
		if err != nil {
			if isInvalidProof(err) {
				return false, nil
			}

			return false, fmt.Errorf("sub-proof %d: %w", i, err)
		}

		transcript = append(transcript, eqBytes...)

		for _, geDoc := range doc.PrimaryProof.GeProofs {
			attrHat, ok := mHat[geDoc.AttrName]
			if !ok {
				return false, fmt.Errorf("sub-proof %d: predicate attribute %q is not hidden", i, geDoc.AttrName)
			}

			geBytes, err := geProofContribution(pk, geDoc, attrHat, challenge)
			if err != nil {
				return false, fmt.Errorf("sub-proof %d: %w", i, err)
			}

			transcript = append(transcript, geBytes...)
		}

		if sub.NonRevocation != nil {
			revHat, ok := mHat[revAttrName]
			if !ok {
				return false, fmt.Errorf("sub-proof %d: credential key does not support revocation", i)
			}

			nrBytes, err := accumulator.VerifyContribution(sub.NonRevocation.RegistryPublic, doc.NonRevocProof,
				sub.NonRevocation.Accumulator, revHat, challenge)
			if err != nil {
				return false, fmt.Errorf("sub-proof %d: %w", i, err)
			}

			transcript = append(transcript, nrBytes...)
		}
	}

	transcript = append(transcript, nonce...)

	if !frFromOKM(transcript).Equals(challenge) {
		return false, nil
	}

	return true, nil
}

// checkAgainstRequest matches the revealed attributes, predicates and
// non-revocation parts of one sub-proof against what the request asks for.
func checkAgainstRequest(sub *api.SubProofPublic, doc *subProofDoc) (bool, error) {
	revealed := doc.PrimaryProof.EqProof.RevealedAttrs

	if len(revealed) != len(sub.Revealed) {
		return false, nil
	}

	for name, want := range sub.Revealed {
		got, ok := revealed[name]
		if !ok || got != want {
			return false, nil
		}
	}

	if len(doc.PrimaryProof.GeProofs) != len(sub.Predicates) {
		return false, nil
	}

	for j, pred := range sub.Predicates {
		geDoc := doc.PrimaryProof.GeProofs[j]

		if geDoc.AttrName != pred.Attr || geDoc.PType != pred.Op || geDoc.Value != pred.Value {
			return false, nil
		}
	}

	if sub.NonRevocation != nil && doc.NonRevocProof == nil {
		return false, nil
	}

	if sub.NonRevocation == nil && doc.NonRevocProof != nil {
		return false, fmt.Errorf("unexpected non-revocation proof")
	}

	return true, nil
}
