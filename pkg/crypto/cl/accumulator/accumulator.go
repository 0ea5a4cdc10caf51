/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package accumulator implements the revocation side of the credential
// engine: a pairing-based accumulator over BLS12-381 in the style of
// Camenisch-Kohlweiss-Soriente, with precomputed tails points so that
// accumulator and witness updates cost one point operation per registry
// change.
//
// A registry of capacity L publishes tails entries T_j = g1^(gamma^j) and
// TT_j = g2^(gamma^j) for j in [1, 2L] without L+1. The accumulator over the
// active index set V is prod(TT_(L+1-i)) for i in V, and the witness of
// index i is omega = prod(TT_(L+1-j+i)) for j in V, j != i. Membership holds
// iff e(T_i, acc) == z * e(g1, omega) with z = e(g1, g2)^(gamma^(L+1)),
// recomputed from the published pair (T_1, TT_L). The missing tails index
// L+1 is exactly the preimage that would forge membership, which is why it
// is never emitted.
package accumulator

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math/big"

	math "github.com/IBM/mathlib"
	"github.com/pkg/errors"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
)

// nolint:gochecknoglobals
var curve = math.Curves[math.BLS12_381_BBS]

// ErrRevoked reports that the credential index is no longer in the
// registry accumulator.
var ErrRevoked = errors.New("credential is revoked")

const frSize = 32

// Accumulator implements the registry primitive.
type Accumulator struct{}

// New creates a new Accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

type registryCredKeyDoc struct {
	Y      string `json:"y"`
	H0     string `json:"h0"`
	H1     string `json:"h1"`
	H2     string `json:"h2"`
	HTilde string `json:"htilde"`
	HA     string `json:"ha"`
	HB     string `json:"hb"`
}

type registryAccumKeyDoc struct {
	T1 string `json:"t1"`
	TL string `json:"tl"`
}

type registryPublicDoc struct {
	CredKey  registryCredKeyDoc  `json:"credKey"`
	AccumKey registryAccumKeyDoc `json:"accumKey"`
}

type registryPrivateDoc struct {
	Gamma string `json:"gamma"`
	X     string `json:"x"`
}

type witnessDoc struct {
	Sigma string `json:"sigma"`
	C     string `json:"c"`
	V     string `json:"v"`
	Index uint32 `json:"index"`
	Point string `json:"point"`
	Omega string `json:"omega"`
}

// registryPublic is the parsed registry key. The credential part signs the
// tails point of an index to the registry index attribute, the accumulator
// part carries the pair recomputing z.
type registryPublic struct {
	y      *math.G2
	h0     *math.G1
	h1     *math.G1
	h2     *math.G1
	hTilde *math.G1
	hA     *math.G1
	hB     *math.G1
	t1     *math.G1
	tl     *math.G2
}

func (pub *registryPublic) z() *math.Gt {
	return pairing(pub.t1, pub.tl)
}

type witness struct {
	sigma *math.G1
	c     *math.Zr
	v     *math.Zr
	index uint32
	point *math.G1
	omega *math.G2
}

func decimalToFr(dec string) (*math.Zr, error) {
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("invalid decimal scalar %q", dec)
	}

	v.Mod(v, orderInt())

	return curve.NewZrFromBytes(v.FillBytes(make([]byte, frSize))), nil
}

func frToDecimal(z *math.Zr) string {
	return new(big.Int).SetBytes(z.Bytes()).String()
}

func orderInt() *big.Int {
	return new(big.Int).SetBytes(curve.GroupOrder.Bytes())
}

func negFr(z *math.Zr) *math.Zr {
	return curve.ModNeg(z, curve.GroupOrder)
}

func negG1(p *math.G1) *math.G1 {
	return p.Mul(negFr(curve.NewZrFromInt(1)))
}

func g1ToB64(p *math.G1) string {
	return base64.StdEncoding.EncodeToString(p.Compressed())
}

func g1FromB64(s string) (*math.G1, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode G1 point")
	}

	p, err := curve.NewG1FromCompressed(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse G1 point")
	}

	return p, nil
}

func g2ToB64(p *math.G2) string {
	return base64.StdEncoding.EncodeToString(p.Compressed())
}

func g2FromB64(s string) (*math.G2, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode G2 point")
	}

	p, err := curve.NewG2FromCompressed(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse G2 point")
	}

	return p, nil
}

func pairing(p *math.G1, q *math.G2) *math.Gt {
	return curve.FExp(curve.Pairing(q, p))
}

func parseRegistryPublic(raw json.RawMessage) (*registryPublic, error) {
	var doc registryPublicDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "parse registry public key")
	}

	pub := &registryPublic{}

	var err error

	if pub.y, err = g2FromB64(doc.CredKey.Y); err != nil {
		return nil, errors.Wrap(err, "registry key y")
	}

	points := []struct {
		dst **math.G1
		enc string
		tag string
	}{
		{&pub.h0, doc.CredKey.H0, "h0"},
		{&pub.h1, doc.CredKey.H1, "h1"},
		{&pub.h2, doc.CredKey.H2, "h2"},
		{&pub.hTilde, doc.CredKey.HTilde, "htilde"},
		{&pub.hA, doc.CredKey.HA, "ha"},
		{&pub.hB, doc.CredKey.HB, "hb"},
		{&pub.t1, doc.AccumKey.T1, "t1"},
	}

	for _, pt := range points {
		if *pt.dst, err = g1FromB64(pt.enc); err != nil {
			return nil, errors.Wrapf(err, "registry key %s", pt.tag)
		}
	}

	if pub.tl, err = g2FromB64(doc.AccumKey.TL); err != nil {
		return nil, errors.Wrap(err, "registry key tl")
	}

	return pub, nil
}

func parseWitness(raw json.RawMessage) (*witness, error) {
	var doc witnessDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "parse witness")
	}

	if doc.Index == 0 {
		return nil, errors.New("witness carries no registry index")
	}

	sigma, err := g1FromB64(doc.Sigma)
	if err != nil {
		return nil, errors.Wrap(err, "witness sigma")
	}

	c, err := decimalToFr(doc.C)
	if err != nil {
		return nil, errors.Wrap(err, "witness c")
	}

	v, err := decimalToFr(doc.V)
	if err != nil {
		return nil, errors.Wrap(err, "witness v")
	}

	point, err := g1FromB64(doc.Point)
	if err != nil {
		return nil, errors.Wrap(err, "witness tails point")
	}

	omega, err := g2FromB64(doc.Omega)
	if err != nil {
		return nil, errors.Wrap(err, "witness omega")
	}

	return &witness{sigma: sigma, c: c, v: v, index: doc.Index, point: point, omega: omega}, nil
}

func marshalWitness(w *witness) (json.RawMessage, error) {
	return json.Marshal(witnessDoc{
		Sigma: g1ToB64(w.sigma),
		C:     frToDecimal(w.c),
		V:     frToDecimal(w.v),
		Index: w.index,
		Point: g1ToB64(w.point),
		Omega: g2ToB64(w.omega),
	})
}

// deriveBases hashes the registry signing key to its base points, index by
// index, so the set can be recomputed and audited from y alone.
func deriveBases(y *math.G2) [6]*math.G1 {
	yBytes := y.Bytes()
	offset := len(yBytes) + 1

	data := make([]byte, 0, len(yBytes)+10)
	data = append(data, yBytes...)
	data = append(data, 0, 0, 0, 0, 0, 0)
	data = binary.BigEndian.AppendUint32(data, 6)

	var bases [6]*math.G1

	for i := range bases {
		if i == 0 {
			bases[i] = curve.HashToG1(data)
			continue
		}

		dataCopy := make([]byte, len(data))
		copy(dataCopy, data)
		binary.BigEndian.PutUint32(dataCopy[offset:], uint32(i))

		bases[i] = curve.HashToG1(dataCopy)
	}

	return bases
}

// CreateRegistryKeys generates the accumulator secret and the registry
// signing key for a registry of the given capacity.
func (a *Accumulator) CreateRegistryKeys(maxCredNum uint32) (*api.RegistryKeys, error) {
	if maxCredNum == 0 {
		return nil, errors.New("registry capacity is zero")
	}

	gamma := curve.NewRandomZr(rand.Reader)
	x := curve.NewRandomZr(rand.Reader)

	y := curve.GenG2.Mul(x)
	bases := deriveBases(y)

	gammaInt := new(big.Int).SetBytes(gamma.Bytes())
	gammaL := new(big.Int).Exp(gammaInt, big.NewInt(int64(maxCredNum)), orderInt())

	t1 := curve.GenG1.Mul(gamma)
	tl := curve.GenG2.Mul(curve.NewZrFromBytes(gammaL.FillBytes(make([]byte, frSize))))

	pub, err := json.Marshal(registryPublicDoc{
		CredKey: registryCredKeyDoc{
			Y:      g2ToB64(y),
			H0:     g1ToB64(bases[0]),
			H1:     g1ToB64(bases[1]),
			H2:     g1ToB64(bases[2]),
			HTilde: g1ToB64(bases[3]),
			HA:     g1ToB64(bases[4]),
			HB:     g1ToB64(bases[5]),
		},
		AccumKey: registryAccumKeyDoc{
			T1: g1ToB64(t1),
			TL: g2ToB64(tl),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal registry public key")
	}

	priv, err := json.Marshal(registryPrivateDoc{
		Gamma: frToDecimal(gamma),
		X:     frToDecimal(x),
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal registry private key")
	}

	return &api.RegistryKeys{Public: pub, Private: priv}, nil
}

// GenerateTails streams the tails entries of a registry in index order.
// The entry at capacity+1 is skipped.
func (a *Accumulator) GenerateTails(private json.RawMessage, maxCredNum uint32,
	emit func(index uint32, entry *api.TailsEntry) error) error {
	var doc registryPrivateDoc
	if err := json.Unmarshal(private, &doc); err != nil {
		return errors.Wrap(err, "parse registry private key")
	}

	gamma, err := decimalToFr(doc.Gamma)
	if err != nil {
		return errors.Wrap(err, "parse registry gamma")
	}

	power := curve.NewZrFromInt(1)

	for j := uint32(1); j <= 2*maxCredNum; j++ {
		power = curve.ModMul(power, gamma, curve.GroupOrder)

		if j == maxCredNum+1 {
			continue
		}

		entry := &api.TailsEntry{
			G1: curve.GenG1.Mul(power).Compressed(),
			G2: curve.GenG2.Mul(power).Compressed(),
		}

		if err := emit(j, entry); err != nil {
			return err
		}
	}

	return nil
}

func tailsG1(tails api.TailsReader, index uint32) (*math.G1, error) {
	entry, err := tails.Entry(index)
	if err != nil {
		return nil, errors.Wrapf(err, "read tails entry %d", index)
	}

	p, err := curve.NewG1FromCompressed(entry.G1)
	if err != nil {
		return nil, errors.Wrapf(err, "parse tails entry %d", index)
	}

	return p, nil
}

func tailsG2(tails api.TailsReader, index uint32) (*math.G2, error) {
	entry, err := tails.Entry(index)
	if err != nil {
		return nil, errors.Wrapf(err, "read tails entry %d", index)
	}

	p, err := curve.NewG2FromCompressed(entry.G2)
	if err != nil {
		return nil, errors.Wrapf(err, "parse tails entry %d", index)
	}

	return p, nil
}

func checkIndex(index, maxCredNum uint32) error {
	if index == 0 || index > maxCredNum {
		return errors.Errorf("registry index %d out of range [1, %d]", index, maxCredNum)
	}

	return nil
}

// ComputeAccumulator folds the tails points of every active index into a
// fresh accumulator value.
func (a *Accumulator) ComputeAccumulator(tails api.TailsReader, maxCredNum uint32, active []uint32) (string, error) {
	acc := curve.NewG2()

	for _, i := range active {
		if err := checkIndex(i, maxCredNum); err != nil {
			return "", err
		}

		p, err := tailsG2(tails, maxCredNum+1-i)
		if err != nil {
			return "", err
		}

		acc.Add(p)
	}

	return g2ToB64(acc), nil
}

// UpdateAccumulator applies issued and revoked index sets to an existing
// accumulator value, one point operation per index.
func (a *Accumulator) UpdateAccumulator(accum string, tails api.TailsReader, maxCredNum uint32,
	issued, revoked []uint32) (string, error) {
	acc, err := g2FromB64(accum)
	if err != nil {
		return "", errors.Wrap(err, "parse accumulator")
	}

	for _, i := range issued {
		if err := checkIndex(i, maxCredNum); err != nil {
			return "", err
		}

		p, err := tailsG2(tails, maxCredNum+1-i)
		if err != nil {
			return "", err
		}

		acc.Add(p)
	}

	for _, i := range revoked {
		if err := checkIndex(i, maxCredNum); err != nil {
			return "", err
		}

		p, err := tailsG2(tails, maxCredNum+1-i)
		if err != nil {
			return "", err
		}

		acc.Sub(p)
	}

	return g2ToB64(acc), nil
}

func computeOmega(tails api.TailsReader, maxCredNum, index uint32, active []uint32) (*math.G2, error) {
	omega := curve.NewG2()

	for _, j := range active {
		if j == index {
			continue
		}

		if err := checkIndex(j, maxCredNum); err != nil {
			return nil, err
		}

		p, err := tailsG2(tails, maxCredNum+1-j+index)
		if err != nil {
			return nil, err
		}

		omega.Add(p)
	}

	return omega, nil
}

// IssueRevocation builds the witness material for a newly issued credential:
// a signature binding the index tails point to the registry index attribute,
// and the membership witness against the active set.
func (a *Accumulator) IssueRevocation(pub, priv json.RawMessage, tails api.TailsReader,
	index, maxCredNum uint32, active []uint32) (json.RawMessage, error) {
	if err := checkIndex(index, maxCredNum); err != nil {
		return nil, err
	}

	rp, err := parseRegistryPublic(pub)
	if err != nil {
		return nil, err
	}

	var privDoc registryPrivateDoc
	if err := json.Unmarshal(priv, &privDoc); err != nil {
		return nil, errors.Wrap(err, "parse registry private key")
	}

	x, err := decimalToFr(privDoc.X)
	if err != nil {
		return nil, errors.Wrap(err, "parse registry x")
	}

	ti, err := tailsG1(tails, index)
	if err != nil {
		return nil, err
	}

	c := curve.NewRandomZr(rand.Reader)
	v := curve.NewRandomZr(rand.Reader)
	m := curve.NewZrFromInt(int64(index))

	// sigma = (h0 * h1^m * h2^v * T_index)^(1/(x+c))
	base := rp.h0.Copy()
	base.Add(rp.h1.Mul(m))
	base.Add(rp.h2.Mul(v))
	base.Add(ti)

	exp := x.Copy()
	exp = exp.Plus(c)
	exp.InvModP(curve.GroupOrder)

	sigma := base.Mul(exp)

	omega, err := computeOmega(tails, maxCredNum, index, active)
	if err != nil {
		return nil, err
	}

	return marshalWitness(&witness{sigma: sigma, c: c, v: v, index: index, point: ti, omega: omega})
}

// ComputeWitness rebuilds the membership part of a witness against the full
// active index set, keeping the issuance signature. The cost is one point
// operation per active index.
func (a *Accumulator) ComputeWitness(raw json.RawMessage, tails api.TailsReader, maxCredNum uint32,
	active []uint32) (json.RawMessage, error) {
	w, err := parseWitness(raw)
	if err != nil {
		return nil, err
	}

	omega, err := computeOmega(tails, maxCredNum, w.index, active)
	if err != nil {
		return nil, err
	}

	w.omega = omega

	return marshalWitness(w)
}

// UpdateWitness advances a witness across a registry delta. The cost is one
// point operation per changed index.
func (a *Accumulator) UpdateWitness(raw json.RawMessage, tails api.TailsReader, maxCredNum uint32,
	issued, revoked []uint32) (json.RawMessage, error) {
	w, err := parseWitness(raw)
	if err != nil {
		return nil, err
	}

	for _, j := range issued {
		if j == w.index {
			continue
		}

		if err := checkIndex(j, maxCredNum); err != nil {
			return nil, err
		}

		p, err := tailsG2(tails, maxCredNum+1-j+w.index)
		if err != nil {
			return nil, err
		}

		w.omega.Add(p)
	}

	for _, j := range revoked {
		if j == w.index {
			continue
		}

		if err := checkIndex(j, maxCredNum); err != nil {
			return nil, err
		}

		p, err := tailsG2(tails, maxCredNum+1-j+w.index)
		if err != nil {
			return nil, err
		}

		w.omega.Sub(p)
	}

	return marshalWitness(w)
}
