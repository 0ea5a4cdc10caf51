/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bbsplus

import (
	"encoding/json"
	"fmt"

	ml "github.com/IBM/mathlib"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
)

type signature struct {
	a        *ml.G1
	e        *ml.Zr
	s        *ml.Zr
	revIndex uint32
}

type signatureDoc struct {
	A        string `json:"a"`
	E        string `json:"e"`
	S        string `json:"s"`
	RevIndex uint32 `json:"rev_index,omitempty"`
}

func parseSignature(raw json.RawMessage) (*signature, error) {
	var doc signatureDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}

	a, err := g1FromB64(doc.A)
	if err != nil {
		return nil, fmt.Errorf("parse signature a: %w", err)
	}

	e, err := frFromDecimal(doc.E)
	if err != nil {
		return nil, fmt.Errorf("parse signature e: %w", err)
	}

	s, err := frFromDecimal(doc.S)
	if err != nil {
		return nil, fmt.Errorf("parse signature s: %w", err)
	}

	return &signature{a: a, e: e, s: s, revIndex: doc.RevIndex}, nil
}

func marshalSignature(sig *signature) (json.RawMessage, error) {
	return json.Marshal(signatureDoc{
		A:        g1ToB64(sig.a),
		E:        frToDecimal(sig.e),
		S:        frToDecimal(sig.s),
		RevIndex: sig.revIndex,
	})
}

// attrScalars maps encoded values into field scalars in the deterministic
// attribute order of the key. The value set must cover the key attributes
// exactly.
func attrScalars(pk *publicKey, values map[string]string) ([]*ml.Zr, error) {
	if len(values) != len(pk.attrs) {
		return nil, fmt.Errorf("value set has %d attributes, key has %d", len(values), len(pk.attrs))
	}

	scalars := make([]*ml.Zr, len(pk.attrs))

	for i, name := range pk.attrs {
		encoded, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("missing value for attribute %q", name)
		}

		m, err := frFromDecimal(encoded)
		if err != nil {
			return nil, fmt.Errorf("encode attribute %q: %w", name, err)
		}

		scalars[i] = m
	}

	return scalars, nil
}

// computeB builds the message commitment the signature closes over:
// g1 * h0^s * h_ms^ms * prod(r_i^m_i) * h_rev^idx.
func computeB(pk *publicKey, s, ms *ml.Zr, messages []*ml.Zr, revIndex uint32) *ml.G1 {
	const basesOffset = 3

	cb := newCommitmentBuilder(len(messages) + basesOffset + 1)

	cb.add(curve.GenG1, curve.NewZrFromInt(1))
	cb.add(pk.h0, s)
	cb.add(pk.hMS, ms)

	for i := 0; i < len(messages); i++ {
		cb.add(pk.r[pk.attrs[i]], messages[i])
	}

	if revIndex > 0 {
		cb.add(pk.hRev, curve.NewZrFromInt(int64(revIndex)))
	}

	return cb.build()
}

// SignCredential issues a blind signature over the blinded link secret and
// the encoded attribute values. The holder completes the signature with
// ProcessSignature.
func (s *Scheme) SignCredential(req *api.SignRequest) (json.RawMessage, error) {
	pk, err := parsePublicKey(req.Public)
	if err != nil {
		return nil, err
	}

	x, err := parsePrivateKey(req.Private)
	if err != nil {
		return nil, err
	}

	u, err := parseBlindedSecret(req.BlindedSecret)
	if err != nil {
		return nil, err
	}

	if pk.supportsRevocation() && req.RevocationIndex == 0 {
		return nil, fmt.Errorf("revocable credential needs a registry index")
	}

	if !pk.supportsRevocation() && req.RevocationIndex != 0 {
		return nil, fmt.Errorf("key does not support revocation")
	}

	messages, err := attrScalars(pk, req.Values)
	if err != nil {
		return nil, err
	}

	e, sPrime := createRandSignatureFr(), createRandSignatureFr()

	// The blinded commitment u stands in for the h0 and h_ms terms the
	// holder withheld.
	b := u.Copy()
	b.Add(curve.GenG1.Mul(curve.NewZrFromInt(1)))
	b.Add(pk.h0.Mul(sPrime))

	for i := 0; i < len(messages); i++ {
		b.Add(pk.r[pk.attrs[i]].Mul(messages[i]))
	}

	if req.RevocationIndex > 0 {
		b.Add(pk.hRev.Mul(curve.NewZrFromInt(int64(req.RevocationIndex))))
	}

	exp := x.Copy()
	exp = exp.Plus(e)
	exp.InvModP(curve.GroupOrder)

	a := b.Mul(exp)

	return marshalSignature(&signature{a: a, e: e, s: sPrime, revIndex: req.RevocationIndex})
}
