/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bbsplus

import (
	"fmt"
	"sort"

	ml "github.com/IBM/mathlib"
)

// proverCommitting collects the bases of one Schnorr relation together with
// a blinding factor per base.
type proverCommitting struct {
	bases           []*ml.G1
	blindingFactors []*ml.Zr
}

func newProverCommitting() *proverCommitting {
	return &proverCommitting{
		bases:           make([]*ml.G1, 0),
		blindingFactors: make([]*ml.Zr, 0),
	}
}

// commit appends a base with a fresh blinding factor and returns the factor.
func (pc *proverCommitting) commit(base *ml.G1) *ml.Zr {
	r := createRandSignatureFr()
	pc.commitWith(base, r)

	return r
}

// commitWith appends a base with a caller-held blinding factor. Sharing one
// factor between relations links their hidden values.
func (pc *proverCommitting) commitWith(base *ml.G1, blindingFactor *ml.Zr) {
	pc.bases = append(pc.bases, base)
	pc.blindingFactors = append(pc.blindingFactors, blindingFactor)
}

func (pc *proverCommitting) finish() *proverCommitted {
	return &proverCommitted{
		bases:           pc.bases,
		blindingFactors: pc.blindingFactors,
		commitment:      sumOfG1Products(pc.bases, pc.blindingFactors),
	}
}

// proverCommitted is the committed form of one Schnorr relation.
type proverCommitted struct {
	bases           []*ml.G1
	blindingFactors []*ml.Zr
	commitment      *ml.G1
}

// generateProof folds the challenge into the blinding factors, one response
// per secret.
func (pc *proverCommitted) generateProof(challenge *ml.Zr, secrets []*ml.Zr) []*ml.Zr {
	responses := make([]*ml.Zr, len(pc.bases))

	for i := range pc.blindingFactors {
		c := curve.ModMul(challenge, secrets[i], curve.GroupOrder)
		responses[i] = curve.ModAdd(pc.blindingFactors[i], c, curve.GroupOrder)
	}

	return responses
}

// recomputeCommitment reverses generateProof on the verifier side. For a
// valid proof of prod(base_i^secret_i) == constant it returns the prover
// commitment.
func recomputeCommitment(bases []*ml.G1, responses []*ml.Zr, constant *ml.G1, challenge *ml.Zr) (*ml.G1, error) {
	if len(bases) != len(responses) {
		return nil, fmt.Errorf("proof carries %d responses for %d bases", len(responses), len(bases))
	}

	commitment := sumOfG1Products(bases, responses)
	commitment.Add(constant.Mul(negFr(challenge)))

	return commitment, nil
}

type eqProofDoc struct {
	APrime        string            `json:"a_prime"`
	ABar          string            `json:"a_bar"`
	D             string            `json:"d"`
	EHat          string            `json:"e_hat"`
	R2Hat         string            `json:"r2_hat"`
	R3Hat         string            `json:"r3_hat"`
	SHat          string            `json:"s_hat"`
	MHat          map[string]string `json:"m_hat"`
	RevealedAttrs map[string]string `json:"revealed_attrs"`
}

// eqProofBuilder carries the committed state of one signature proof between
// the commitment and response phases of the shared transcript.
type eqProofBuilder struct {
	pk       *publicKey
	aPrime   *ml.G1
	aBar     *ml.G1
	d        *ml.G1
	vc1      *proverCommitted
	secrets1 []*ml.Zr
	vc2      *proverCommitted
	secrets2 []*ml.Zr
	hidden   []string
	revealed map[string]string
}

// mTildes is the set of blinding factors for hidden messages, keyed by
// message name. Factors placed here before building link the message across
// relations.
type mTildes map[string]*ml.Zr

func (mt mTildes) get(name string) *ml.Zr {
	if r, ok := mt[name]; ok {
		return r
	}

	r := createRandSignatureFr()
	mt[name] = r

	return r
}

// newEqProofBuilder commits to a proof of knowledge of the signature with
// the given messages hidden. Hidden message blinders come from tildes.
func newEqProofBuilder(pk *publicKey, sig *signature, ms *ml.Zr, values map[string]string,
	revealed []string, tildes mTildes) (*eqProofBuilder, error) {
	messages, err := attrScalars(pk, values)
	if err != nil {
		return nil, err
	}

	b := computeB(pk, sig.s, ms, messages, sig.revIndex)

	wE := pk.w.Copy()
	wE.Add(curve.GenG2.Mul(sig.e))

	if !compareTwoPairings(sig.a, wE, negG1(b), curve.GenG2) {
		return nil, fmt.Errorf("verify input signature: signature does not verify against the public key")
	}

	revealedSet := make(map[string]bool, len(revealed))

	for _, name := range revealed {
		if _, ok := pk.r[name]; !ok {
			return nil, fmt.Errorf("revealed attribute %q is not in the key", name)
		}

		revealedSet[name] = true
	}

	r1, r2 := createRandSignatureFr(), createRandSignatureFr()

	r3 := r1.Copy()
	r3.InvModP(curve.GroupOrder)

	aPrime := sig.a.Mul(r1)

	aBar := b.Mul(r1)
	aBar.Add(aPrime.Mul(negFr(sig.e)))

	cbD := newCommitmentBuilder(2) //nolint:gomnd
	cbD.add(b, r1)
	cbD.add(pk.h0, r2)
	d := cbD.build()

	sPrime := curve.ModAdd(sig.s, curve.ModMul(r2, r3, curve.GroupOrder), curve.GroupOrder)

	committing1 := newProverCommitting()
	committing1.commit(aPrime)
	committing1.commit(pk.h0)
	secrets1 := []*ml.Zr{sig.e, r2}

	committing2 := newProverCommitting()
	committing2.commit(d)
	committing2.commit(negG1(pk.h0))
	committing2.commitWith(negG1(pk.hMS), tildes.get(msAttrName))
	secrets2 := []*ml.Zr{r3, sPrime, ms}

	hidden := make([]string, 0, len(pk.attrs))

	for i, name := range pk.attrs {
		if revealedSet[name] {
			continue
		}

		committing2.commitWith(negG1(pk.r[name]), tildes.get(name))
		secrets2 = append(secrets2, messages[i])

		hidden = append(hidden, name)
	}

	if sig.revIndex > 0 {
		committing2.commitWith(negG1(pk.hRev), tildes.get(revAttrName))
		secrets2 = append(secrets2, curve.NewZrFromInt(int64(sig.revIndex)))
	}

	revealedValues := make(map[string]string, len(revealed))
	for _, name := range revealed {
		revealedValues[name] = values[name]
	}

	return &eqProofBuilder{
		pk:       pk,
		aPrime:   aPrime,
		aBar:     aBar,
		d:        d,
		vc1:      committing1.finish(),
		secrets1: secrets1,
		vc2:      committing2.finish(),
		secrets2: secrets2,
		hidden:   hidden,
		revealed: revealedValues,
	}, nil
}

// contribution returns the transcript bytes of the commitment phase.
func (eb *eqProofBuilder) contribution() []byte {
	out := eb.aPrime.Bytes()
	out = append(out, eb.aBar.Bytes()...)
	out = append(out, eb.d.Bytes()...)
	out = append(out, eb.vc1.commitment.Bytes()...)
	out = append(out, eb.vc2.commitment.Bytes()...)

	return append(out, revealedContribution(eb.revealed)...)
}

// revealedContribution binds the disclosed values into the transcript.
func revealedContribution(revealed map[string]string) []byte {
	names := make([]string, 0, len(revealed))
	for name := range revealed {
		names = append(names, name)
	}

	sort.Strings(names)

	var out []byte

	for _, name := range names {
		out = append(out, name...)
		out = append(out, 0)
		out = append(out, revealed[name]...)
		out = append(out, 0)
	}

	return out
}

// finish folds the challenge into responses and emits the wire document.
func (eb *eqProofBuilder) finish(challenge *ml.Zr) *eqProofDoc {
	responses1 := eb.vc1.generateProof(challenge, eb.secrets1)
	responses2 := eb.vc2.generateProof(challenge, eb.secrets2)

	mHat := map[string]string{
		msAttrName: frToDecimal(responses2[2]),
	}

	for i, name := range eb.hidden {
		mHat[name] = frToDecimal(responses2[3+i])
	}

	if len(responses2) > 3+len(eb.hidden) {
		mHat[revAttrName] = frToDecimal(responses2[3+len(eb.hidden)])
	}

	return &eqProofDoc{
		APrime:        g1ToB64(eb.aPrime),
		ABar:          g1ToB64(eb.aBar),
		D:             g1ToB64(eb.d),
		EHat:          frToDecimal(responses1[0]),
		R2Hat:         frToDecimal(responses1[1]),
		R3Hat:         frToDecimal(responses2[0]),
		SHat:          frToDecimal(responses2[1]),
		MHat:          mHat,
		RevealedAttrs: eb.revealed,
	}
}

// eqProofContribution reverifies one signature proof and returns its
// transcript bytes for the challenge check.
func eqProofContribution(pk *publicKey, doc *eqProofDoc, challenge *ml.Zr) ([]byte, error) {
	aPrime, err := g1FromB64(doc.APrime)
	if err != nil {
		return nil, fmt.Errorf("parse a_prime: %w", err)
	}

	if aPrime.IsInfinity() {
		return nil, invalidProof("a_prime is the unit point")
	}

	aBar, err := g1FromB64(doc.ABar)
	if err != nil {
		return nil, fmt.Errorf("parse a_bar: %w", err)
	}

	d, err := g1FromB64(doc.D)
	if err != nil {
		return nil, fmt.Errorf("parse d: %w", err)
	}

	// e(a', w) == e(a_bar, g2) ties the randomized signature to the key.
	if !compareTwoPairings(aPrime, pk.w, negG1(aBar), curve.GenG2) {
		return nil, invalidProof("randomized signature does not match the public key")
	}

	eHat, err := frFromDecimal(doc.EHat)
	if err != nil {
		return nil, fmt.Errorf("parse e_hat: %w", err)
	}

	r2Hat, err := frFromDecimal(doc.R2Hat)
	if err != nil {
		return nil, fmt.Errorf("parse r2_hat: %w", err)
	}

	r3Hat, err := frFromDecimal(doc.R3Hat)
	if err != nil {
		return nil, fmt.Errorf("parse r3_hat: %w", err)
	}

	sHat, err := frFromDecimal(doc.SHat)
	if err != nil {
		return nil, fmt.Errorf("parse s_hat: %w", err)
	}

	mHat, hidden, err := parseMHat(pk, doc)
	if err != nil {
		return nil, err
	}

	// vc1: a_prime^e * h0^r2 == d - a_bar
	k1 := d.Copy()
	k1.Add(negG1(aBar))

	c1, err := recomputeCommitment([]*ml.G1{aPrime, pk.h0}, []*ml.Zr{eHat, r2Hat}, k1, challenge)
	if err != nil {
		return nil, err
	}

	// vc2: d^r3 * h0^-s' * h_ms^-ms * prod(r_j^-m_j) == g1 * prod(revealed r_k^m_k)
	bases := []*ml.G1{d, negG1(pk.h0), negG1(pk.hMS)}
	responses := []*ml.Zr{r3Hat, sHat, mHat[msAttrName]}

	for _, name := range hidden {
		bases = append(bases, negG1(pk.r[name]))
		responses = append(responses, mHat[name])
	}

	if pk.supportsRevocation() {
		bases = append(bases, negG1(pk.hRev))
		responses = append(responses, mHat[revAttrName])
	}

	k2 := curve.GenG1.Mul(curve.NewZrFromInt(1))

	for name, encoded := range doc.RevealedAttrs {
		base, ok := pk.r[name]
		if !ok {
			return nil, fmt.Errorf("revealed attribute %q is not in the key", name)
		}

		m, err := frFromDecimal(encoded)
		if err != nil {
			return nil, fmt.Errorf("parse revealed value of %q: %w", name, err)
		}

		k2.Add(base.Mul(m))
	}

	c2, err := recomputeCommitment(bases, responses, k2, challenge)
	if err != nil {
		return nil, err
	}

	out := aPrime.Bytes()
	out = append(out, aBar.Bytes()...)
	out = append(out, d.Bytes()...)
	out = append(out, c1.Bytes()...)
	out = append(out, c2.Bytes()...)

	return append(out, revealedContribution(doc.RevealedAttrs)...), nil
}

// parseMHat checks the hidden message responses cover exactly the undisclosed
// part of the key and returns them with the hidden attribute order.
func parseMHat(pk *publicKey, doc *eqProofDoc) (map[string]*ml.Zr, []string, error) {
	expected := 1 // master_secret

	hidden := make([]string, 0, len(pk.attrs))

	for _, name := range pk.attrs {
		if _, ok := doc.RevealedAttrs[name]; ok {
			continue
		}

		hidden = append(hidden, name)
		expected++
	}

	if pk.supportsRevocation() {
		expected++
	}

	if len(doc.MHat) != expected {
		return nil, nil, fmt.Errorf("proof carries %d hidden responses, expected %d", len(doc.MHat), expected)
	}

	mHat := make(map[string]*ml.Zr, len(doc.MHat))

	for name, dec := range doc.MHat {
		v, err := frFromDecimal(dec)
		if err != nil {
			return nil, nil, fmt.Errorf("parse m_hat of %q: %w", name, err)
		}

		mHat[name] = v
	}

	if _, ok := mHat[msAttrName]; !ok {
		return nil, nil, fmt.Errorf("proof is missing the link secret response")
	}

	if pk.supportsRevocation() {
		if _, ok := mHat[revAttrName]; !ok {
			return nil, nil, fmt.Errorf("proof is missing the registry index response")
		}
	}

	for _, name := range hidden {
		if _, ok := mHat[name]; !ok {
			return nil, nil, fmt.Errorf("proof is missing the response for attribute %q", name)
		}
	}

	return mHat, hidden, nil
}
