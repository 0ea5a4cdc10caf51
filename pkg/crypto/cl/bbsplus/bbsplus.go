/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package bbsplus implements the default credential signature backend on the
// BLS12-381 pairing curve. Credentials are BBS+ signatures (as defined in
// https://eprint.iacr.org/2016/663.pdf, section 4.3) over the encoded
// attribute values, the holder link secret and, for revocable credentials,
// the registry index. Presentation proofs are Schnorr proofs of knowledge of
// a signature with selective disclosure and integer predicates.
//
// All key material, signatures and proofs cross the package boundary as JSON
// documents with decimal scalars and base64 compressed points.
package bbsplus

import (
	ml "github.com/IBM/mathlib"
)

// nolint:gochecknoglobals
var curve = ml.Curves[ml.BLS12_381_BBS]

// Number of bytes in scalar compressed form.
const frCompressedSize = 32

// Reserved m-value names that cannot appear as credential attributes.
const (
	msAttrName  = "master_secret"
	revAttrName = "rev_index"
)

// Scheme is the engine entry point. It implements the signer, blinder,
// prover and verifier primitives.
type Scheme struct{}

// New creates a new Scheme.
func New() *Scheme {
	return &Scheme{}
}

type commitmentBuilder struct {
	bases   []*ml.G1
	scalars []*ml.Zr
}

func newCommitmentBuilder(expectedSize int) *commitmentBuilder {
	return &commitmentBuilder{
		bases:   make([]*ml.G1, 0, expectedSize),
		scalars: make([]*ml.Zr, 0, expectedSize),
	}
}

func (cb *commitmentBuilder) add(base *ml.G1, scalar *ml.Zr) {
	cb.bases = append(cb.bases, base)
	cb.scalars = append(cb.scalars, scalar)
}

func (cb *commitmentBuilder) build() *ml.G1 {
	return sumOfG1Products(cb.bases, cb.scalars)
}

func sumOfG1Products(bases []*ml.G1, scalars []*ml.Zr) *ml.G1 {
	var res *ml.G1

	for i := 0; i < len(bases); i++ {
		b := bases[i]
		s := scalars[i]

		g := b.Mul(s)
		if res == nil {
			res = g
		} else {
			res.Add(g)
		}
	}

	return res
}

func compareTwoPairings(p1 *ml.G1, q1 *ml.G2,
	p2 *ml.G1, q2 *ml.G2) bool {
	p := curve.Pairing2(q1, p1, q2, p2)
	p = curve.FExp(p)

	return p.IsUnity()
}

// pairing computes a single reduced pairing, safe to multiply and compare.
func pairing(p *ml.G1, q *ml.G2) *ml.Gt {
	return curve.FExp(curve.Pairing(q, p))
}
