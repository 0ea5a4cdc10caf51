/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bbsplus

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	ml "github.com/IBM/mathlib"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
)

const squareCount = 4

type geProofDoc struct {
	AttrName string            `json:"attr_name"`
	PType    string            `json:"p_type"`
	Value    int32             `json:"value"`
	TDelta   string            `json:"t_delta"`
	T        [squareCount]string `json:"t"`
	UHat     [squareCount]string `json:"u_hat"`
	RHat     string            `json:"r_hat"`
	RiHat    [squareCount]string `json:"ri_hat"`
	AlphaHat string            `json:"alpha_hat"`
}

// predicateBound normalizes the four comparison operators onto the two
// proof directions: value - bound >= 0 or bound - value >= 0.
func predicateBound(op string, value int32) (bound int64, flipped bool, err error) {
	switch op {
	case api.PredicateGE:
		return int64(value), false, nil
	case api.PredicateGT:
		return int64(value) + 1, false, nil
	case api.PredicateLE:
		return int64(value), true, nil
	case api.PredicateLT:
		return int64(value) - 1, true, nil
	default:
		return 0, false, fmt.Errorf("unknown predicate type %q", op)
	}
}

// geProofBuilder carries the committed state of one predicate proof.
type geProofBuilder struct {
	doc      geProofDoc
	tDelta   *ml.G1
	t        [squareCount]*ml.G1
	p1       *proverCommitted
	secrets1 []*ml.Zr
	p2       [squareCount]*proverCommitted
	secrets2 [squareCount][]*ml.Zr
	p3       *proverCommitted
	secrets3 []*ml.Zr
}

// newGeProofBuilder commits to a proof that the named integer attribute
// satisfies the predicate. The attribute blinder comes from tildes so the
// proven value is the one hidden in the signature proof.
func newGeProofBuilder(pk *publicKey, pred *api.Predicate, encoded string, tildes mTildes) (*geProofBuilder, error) {
	value, err := strconv.ParseInt(encoded, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("attribute %q is not an integer", pred.Attr)
	}

	bound, flipped, err := predicateBound(pred.Op, pred.Value)
	if err != nil {
		return nil, err
	}

	delta := value - bound
	if flipped {
		delta = bound - value
	}

	if delta < 0 {
		return nil, fmt.Errorf("attribute %q does not satisfy the predicate %s %d", pred.Attr, pred.Op, pred.Value)
	}

	u, err := fourSquares(uint64(delta))
	if err != nil {
		return nil, err
	}

	m, err := frFromDecimal(encoded)
	if err != nil {
		return nil, fmt.Errorf("encode attribute %q: %w", pred.Attr, err)
	}

	r := createRandSignatureFr()

	deltaFr := curve.NewZrFromInt(delta)

	tDelta := pk.hc.Mul(deltaFr)
	tDelta.Add(pk.h0.Mul(r))

	b := &geProofBuilder{
		doc: geProofDoc{
			AttrName: pred.Attr,
			PType:    pred.Op,
			Value:    pred.Value,
		},
		tDelta: tDelta,
	}

	var (
		uFr [squareCount]*ml.Zr
		ri  [squareCount]*ml.Zr
	)

	// alpha = r - sum(u_i * r_i) opens the quadratic relation below.
	alpha := r.Copy()

	for i := 0; i < squareCount; i++ {
		uFr[i] = curve.NewZrFromInt(int64(u[i]))
		ri[i] = createRandSignatureFr()

		t := pk.hc.Mul(uFr[i])
		t.Add(pk.h0.Mul(ri[i]))
		b.t[i] = t

		alpha = curve.ModSub(alpha, curve.ModMul(uFr[i], ri[i], curve.GroupOrder), curve.GroupOrder)
	}

	// p1: attrBase^m * h0^r == t_delta * hc^bound, with attrBase negated for
	// upper bounds.
	attrBase := pk.hc
	if flipped {
		attrBase = negG1(pk.hc)
	}

	committing1 := newProverCommitting()
	committing1.commitWith(attrBase, tildes.get(pred.Attr))
	committing1.commit(pk.h0)
	b.p1 = committing1.finish()
	b.secrets1 = []*ml.Zr{m, r}

	// p2, one per square: hc^u_i * h0^r_i == t_i.
	uTilde := make([]*ml.Zr, squareCount)

	for i := 0; i < squareCount; i++ {
		committing2 := newProverCommitting()
		uTilde[i] = committing2.commit(pk.hc)
		committing2.commit(pk.h0)
		b.p2[i] = committing2.finish()
		b.secrets2[i] = []*ml.Zr{uFr[i], ri[i]}
	}

	// p3: prod(t_i^u_i) * h0^alpha == t_delta proves sum(u_i^2) == delta.
	committing3 := newProverCommitting()

	secrets3 := make([]*ml.Zr, 0, squareCount+1)

	for i := 0; i < squareCount; i++ {
		committing3.commitWith(b.t[i], uTilde[i])
		secrets3 = append(secrets3, uFr[i])
	}

	committing3.commit(pk.h0)
	secrets3 = append(secrets3, alpha)

	b.p3 = committing3.finish()
	b.secrets3 = secrets3

	return b, nil
}

func predicateDescriptor(attr, op string, value int32) []byte {
	out := make([]byte, 0, len(attr)+len(op)+10)
	out = append(out, attr...)
	out = append(out, 0)
	out = append(out, op...)
	out = append(out, 0)

	return binary.BigEndian.AppendUint64(out, uint64(int64(value)))
}

func (b *geProofBuilder) contribution() []byte {
	out := b.tDelta.Bytes()

	for i := 0; i < squareCount; i++ {
		out = append(out, b.t[i].Bytes()...)
	}

	out = append(out, b.p1.commitment.Bytes()...)

	for i := 0; i < squareCount; i++ {
		out = append(out, b.p2[i].commitment.Bytes()...)
	}

	out = append(out, b.p3.commitment.Bytes()...)

	return append(out, predicateDescriptor(b.doc.AttrName, b.doc.PType, b.doc.Value)...)
}

func (b *geProofBuilder) finish(challenge *ml.Zr) *geProofDoc {
	responses1 := b.p1.generateProof(challenge, b.secrets1)
	responses3 := b.p3.generateProof(challenge, b.secrets3)

	doc := b.doc
	doc.TDelta = g1ToB64(b.tDelta)
	doc.RHat = frToDecimal(responses1[1])
	doc.AlphaHat = frToDecimal(responses3[squareCount])

	for i := 0; i < squareCount; i++ {
		responses2 := b.p2[i].generateProof(challenge, b.secrets2[i])

		doc.T[i] = g1ToB64(b.t[i])
		doc.UHat[i] = frToDecimal(responses2[0])
		doc.RiHat[i] = frToDecimal(responses2[1])
	}

	return &doc
}

// geProofContribution reverifies one predicate proof and returns its
// transcript bytes. mHat is the attribute response from the signature proof,
// linking the proven value to the signed one.
func geProofContribution(pk *publicKey, doc *geProofDoc, mHat *ml.Zr, challenge *ml.Zr) ([]byte, error) {
	bound, flipped, err := predicateBound(doc.PType, doc.Value)
	if err != nil {
		return nil, err
	}

	tDelta, err := g1FromB64(doc.TDelta)
	if err != nil {
		return nil, fmt.Errorf("parse t_delta: %w", err)
	}

	var t [squareCount]*ml.G1

	for i := 0; i < squareCount; i++ {
		t[i], err = g1FromB64(doc.T[i])
		if err != nil {
			return nil, fmt.Errorf("parse t[%d]: %w", i, err)
		}
	}

	rHat, err := frFromDecimal(doc.RHat)
	if err != nil {
		return nil, fmt.Errorf("parse r_hat: %w", err)
	}

	alphaHat, err := frFromDecimal(doc.AlphaHat)
	if err != nil {
		return nil, fmt.Errorf("parse alpha_hat: %w", err)
	}

	var uHat, riHat [squareCount]*ml.Zr

	for i := 0; i < squareCount; i++ {
		uHat[i], err = frFromDecimal(doc.UHat[i])
		if err != nil {
			return nil, fmt.Errorf("parse u_hat[%d]: %w", i, err)
		}

		riHat[i], err = frFromDecimal(doc.RiHat[i])
		if err != nil {
			return nil, fmt.Errorf("parse ri_hat[%d]: %w", i, err)
		}
	}

	attrBase := pk.hc
	boundFr := frFromInt64(bound)

	if flipped {
		attrBase = negG1(pk.hc)
		boundFr = negFr(boundFr)
	}

	k1 := tDelta.Copy()
	k1.Add(pk.hc.Mul(boundFr))

	c1, err := recomputeCommitment([]*ml.G1{attrBase, pk.h0}, []*ml.Zr{mHat, rHat}, k1, challenge)
	if err != nil {
		return nil, err
	}

	c3Bases := make([]*ml.G1, 0, squareCount+1)
	c3Responses := make([]*ml.Zr, 0, squareCount+1)

	out := tDelta.Bytes()

	for i := 0; i < squareCount; i++ {
		out = append(out, t[i].Bytes()...)

		c3Bases = append(c3Bases, t[i])
		c3Responses = append(c3Responses, uHat[i])
	}

	out = append(out, c1.Bytes()...)

	for i := 0; i < squareCount; i++ {
		c2, err := recomputeCommitment([]*ml.G1{pk.hc, pk.h0}, []*ml.Zr{uHat[i], riHat[i]}, t[i], challenge)
		if err != nil {
			return nil, err
		}

		out = append(out, c2.Bytes()...)
	}

	c3Bases = append(c3Bases, pk.h0)
	c3Responses = append(c3Responses, alphaHat)

	c3, err := recomputeCommitment(c3Bases, c3Responses, tDelta, challenge)
	if err != nil {
		return nil, err
	}

	out = append(out, c3.Bytes()...)

	return append(out, predicateDescriptor(doc.AttrName, doc.PType, doc.Value)...), nil
}

// fourSquares decomposes delta into four integer squares. Lagrange
// guarantees the descent below terminates.
func fourSquares(delta uint64) ([squareCount]uint64, error) {
	var out [squareCount]uint64

	if delta == 0 {
		return out, nil
	}

	for u1 := isqrt(delta); ; u1-- {
		u2, u3, u4, ok := threeSquares(delta - u1*u1)
		if ok {
			out[0], out[1], out[2], out[3] = u1, u2, u3, u4

			return out, nil
		}

		if u1 == 0 {
			break
		}
	}

	return out, fmt.Errorf("no four-square decomposition for %d", delta)
}

func threeSquares(n uint64) (uint64, uint64, uint64, bool) {
	if n == 0 {
		return 0, 0, 0, true
	}

	// Numbers of the form 4^a(8b+7) have no three-square decomposition.
	m := n
	for m%4 == 0 {
		m /= 4
	}

	if m%8 == 7 { //nolint:gomnd
		return 0, 0, 0, false
	}

	for u2 := isqrt(n); ; u2-- {
		u3, u4, ok := twoSquares(n - u2*u2)
		if ok {
			return u2, u3, u4, true
		}

		if u2 == 0 {
			break
		}
	}

	return 0, 0, 0, false
}

func twoSquares(n uint64) (uint64, uint64, bool) {
	if n == 0 {
		return 0, 0, true
	}

	for u3 := isqrt(n); u3*u3*2 >= n; u3-- {
		rem := n - u3*u3

		u4 := isqrt(rem)
		if u4*u4 == rem {
			return u3, u4, true
		}
	}

	return 0, 0, false
}

func isqrt(n uint64) uint64 {
	r := uint64(math.Sqrt(float64(n)))

	for r > 0 && r*r > n {
		r--
	}

	for (r+1)*(r+1) <= n {
		r++
	}

	return r
}
