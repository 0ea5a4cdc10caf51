/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bbsplus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	ml "github.com/IBM/mathlib"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
)

type publicKeyDoc struct {
	W    string            `json:"w"`
	H0   string            `json:"h0"`
	HC   string            `json:"hc"`
	HMS  string            `json:"h_ms"`
	HRev string            `json:"h_rev,omitempty"`
	R    map[string]string `json:"r"`
}

type privateKeyDoc struct {
	X string `json:"x"`
}

type keyProofDoc struct {
	C    string `json:"c"`
	XHat string `json:"x_hat"`
}

// publicKey is the parsed form of a credential public key. The generator for
// each credential attribute is looked up by name, attrs keeps the names in
// sorted order for deterministic transcripts.
type publicKey struct {
	w     *ml.G2
	h0    *ml.G1
	hc    *ml.G1
	hMS   *ml.G1
	hRev  *ml.G1
	r     map[string]*ml.G1
	attrs []string
}

func (pk *publicKey) supportsRevocation() bool {
	return pk.hRev != nil
}

// attrBase resolves the signing base for one attribute name.
func (pk *publicKey) attrBase(name string) (*ml.G1, error) {
	base, ok := pk.r[name]
	if !ok {
		return nil, fmt.Errorf("no generator for attribute %q", name)
	}

	return base, nil
}

func parsePublicKey(raw json.RawMessage) (*publicKey, error) {
	var doc publicKeyDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	w, err := g2FromB64(doc.W)
	if err != nil {
		return nil, fmt.Errorf("parse public key w: %w", err)
	}

	h0, err := g1FromB64(doc.H0)
	if err != nil {
		return nil, fmt.Errorf("parse public key h0: %w", err)
	}

	hc, err := g1FromB64(doc.HC)
	if err != nil {
		return nil, fmt.Errorf("parse public key hc: %w", err)
	}

	hMS, err := g1FromB64(doc.HMS)
	if err != nil {
		return nil, fmt.Errorf("parse public key h_ms: %w", err)
	}

	var hRev *ml.G1

	if doc.HRev != "" {
		hRev, err = g1FromB64(doc.HRev)
		if err != nil {
			return nil, fmt.Errorf("parse public key h_rev: %w", err)
		}
	}

	r := make(map[string]*ml.G1, len(doc.R))
	attrs := make([]string, 0, len(doc.R))

	for name, enc := range doc.R {
		base, err := g1FromB64(enc)
		if err != nil {
			return nil, fmt.Errorf("parse public key generator %q: %w", name, err)
		}

		r[name] = base

		attrs = append(attrs, name)
	}

	if len(attrs) == 0 {
		return nil, fmt.Errorf("public key carries no attribute generators")
	}

	sort.Strings(attrs)

	return &publicKey{w: w, h0: h0, hc: hc, hMS: hMS, hRev: hRev, r: r, attrs: attrs}, nil
}

func parsePrivateKey(raw json.RawMessage) (*ml.Zr, error) {
	var doc privateKeyDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	x, err := frFromDecimal(doc.X)
	if err != nil {
		return nil, fmt.Errorf("parse private key x: %w", err)
	}

	return x, nil
}

// deriveGenerators maps the signing public key to the generator set. Each
// generator is hashed to the curve from the key bytes with a distinct index
// spliced in, so any party can recompute and audit the set.
func deriveGenerators(w *ml.G2, attrNames []string, supportRevocation bool) (*publicKey, error) {
	if len(attrNames) == 0 {
		return nil, fmt.Errorf("attribute list is empty")
	}

	attrs := make([]string, len(attrNames))
	copy(attrs, attrNames)
	sort.Strings(attrs)

	for i, name := range attrs {
		if name == msAttrName || name == revAttrName {
			return nil, fmt.Errorf("attribute name %q is reserved", name)
		}

		if i > 0 && attrs[i-1] == name {
			return nil, fmt.Errorf("duplicate attribute name %q", name)
		}
	}

	slotCount := len(attrs) + 3
	if supportRevocation {
		slotCount++
	}

	wBytes := w.Bytes()
	offset := len(wBytes) + 1

	data := make([]byte, 0, len(wBytes)+10)
	data = append(data, wBytes...)
	data = append(data, 0, 0, 0, 0, 0, 0)
	data = binary.BigEndian.AppendUint32(data, uint32(slotCount))

	pk := &publicKey{
		w:     w,
		h0:    hashToG1Indexed(data, 0, offset),
		hc:    hashToG1Indexed(data, 1, offset),
		hMS:   hashToG1Indexed(data, 2, offset),
		r:     make(map[string]*ml.G1, len(attrs)),
		attrs: attrs,
	}

	for i, name := range attrs {
		pk.r[name] = hashToG1Indexed(data, uint32(i+3), offset) //nolint:gomnd
	}

	if supportRevocation {
		pk.hRev = hashToG1Indexed(data, uint32(len(attrs)+3), offset) //nolint:gomnd
	}

	return pk, nil
}

func hashToG1Indexed(data []byte, index uint32, offset int) *ml.G1 {
	if index == 0 {
		return curve.HashToG1(data)
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	binary.BigEndian.PutUint32(dataCopy[offset:], index)

	return curve.HashToG1(dataCopy)
}

func marshalPublicKey(pk *publicKey) (json.RawMessage, error) {
	doc := publicKeyDoc{
		W:   g2ToB64(pk.w),
		H0:  g1ToB64(pk.h0),
		HC:  g1ToB64(pk.hc),
		HMS: g1ToB64(pk.hMS),
		R:   make(map[string]string, len(pk.r)),
	}

	if pk.hRev != nil {
		doc.HRev = g1ToB64(pk.hRev)
	}

	for name, base := range pk.r {
		doc.R[name] = g1ToB64(base)
	}

	return json.Marshal(doc)
}

// CreateCredentialKeys generates the signing key pair for one credential
// definition together with a proof of knowledge of the private key.
func (s *Scheme) CreateCredentialKeys(attrNames []string, supportRevocation bool) (*api.CredentialKeys, error) {
	x := createRandSignatureFr()
	w := curve.GenG2.Mul(x)

	pk, err := deriveGenerators(w, attrNames, supportRevocation)
	if err != nil {
		return nil, err
	}

	pubDoc, err := marshalPublicKey(pk)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	privDoc, err := json.Marshal(privateKeyDoc{X: frToDecimal(x)})
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	xTilde := createRandSignatureFr()
	commitment := curve.GenG2.Mul(xTilde)

	c := keyProofChallenge(pk.w, commitment)

	xHat := curve.ModAdd(xTilde, curve.ModMul(c, x, curve.GroupOrder), curve.GroupOrder)

	proofDoc, err := json.Marshal(keyProofDoc{C: frToDecimal(c), XHat: frToDecimal(xHat)})
	if err != nil {
		return nil, fmt.Errorf("marshal key correctness proof: %w", err)
	}

	return &api.CredentialKeys{
		Public:           pubDoc,
		Private:          privDoc,
		CorrectnessProof: proofDoc,
	}, nil
}

func keyProofChallenge(w, commitment *ml.G2) *ml.Zr {
	transcript := curve.GenG2.Bytes()
	transcript = append(transcript, w.Bytes()...)
	transcript = append(transcript, commitment.Bytes()...)

	return frFromOKM(transcript)
}

// VerifyKeyCorrectnessProof checks the issuer key proof and that the
// generator set in the public key matches the audited derivation for the
// given schema attributes. A nil attrNames audits the key against the
// attribute names it declares itself, which still catches tampered
// generators since those no longer match the hash derivation.
func (s *Scheme) VerifyKeyCorrectnessProof(pub, proof json.RawMessage, attrNames []string) error {
	pk, err := parsePublicKey(pub)
	if err != nil {
		return err
	}

	if attrNames == nil {
		attrNames = pk.attrs
	}

	var proofDoc keyProofDoc
	if err := json.Unmarshal(proof, &proofDoc); err != nil {
		return fmt.Errorf("parse key correctness proof: %w", err)
	}

	c, err := frFromDecimal(proofDoc.C)
	if err != nil {
		return fmt.Errorf("parse key correctness proof c: %w", err)
	}

	xHat, err := frFromDecimal(proofDoc.XHat)
	if err != nil {
		return fmt.Errorf("parse key correctness proof x_hat: %w", err)
	}

	derived, err := deriveGenerators(pk.w, attrNames, pk.supportsRevocation())
	if err != nil {
		return err
	}

	if len(derived.attrs) != len(pk.attrs) {
		return fmt.Errorf("public key carries %d attribute generators, schema has %d attributes",
			len(pk.attrs), len(derived.attrs))
	}

	for _, name := range derived.attrs {
		base, ok := pk.r[name]
		if !ok || !base.Equals(derived.r[name]) {
			return fmt.Errorf("generator for attribute %q does not match key derivation", name)
		}
	}

	if !pk.h0.Equals(derived.h0) || !pk.hc.Equals(derived.hc) || !pk.hMS.Equals(derived.hMS) {
		return fmt.Errorf("base generators do not match key derivation")
	}

	if pk.supportsRevocation() && !pk.hRev.Equals(derived.hRev) {
		return fmt.Errorf("revocation generator does not match key derivation")
	}

	// commitment' = g2^x_hat * w^-c
	commitment := curve.GenG2.Mul(xHat)
	commitment.Add(pk.w.Mul(negFr(c)))

	if !keyProofChallenge(pk.w, commitment).Equals(c) {
		return fmt.Errorf("key correctness proof does not verify")
	}

	return nil
}
