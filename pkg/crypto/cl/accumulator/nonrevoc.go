/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package accumulator

import (
	"crypto/rand"
	"encoding/json"

	math "github.com/IBM/mathlib"
	"github.com/pkg/errors"
)

// The non-revocation proof shows, without revealing the registry index i,
// that the prover holds a witness signature sigma on (i, T_i) and that the
// current accumulator contains i. Four relations share one challenge:
//
//	1. pairing: sigma verifies against the registry key, over the blinded
//	   A = sigma * htilde^rho and G = T_i * htilde^r
//	2. E = ha^rho * hb^o opens the blinding factors
//	3. E^c * ha^-(rho*c) * hb^-(o*c) is the unit, linearizing the rho*c and
//	   o*c cross terms of relation 1
//	4. membership: e(T_i, acc) == z * e(g1, omega), over G and the blinded
//	   W = omega * g2^r'
//
// The index exponent uses a blinder supplied by the caller so that the same
// response also answers for the rev_index attribute of the primary proof.

type proofCListDoc struct {
	E string `json:"e"`
	A string `json:"a"`
	G string `json:"g"`
	W string `json:"w"`
}

type proofXListDoc struct {
	CHat      string `json:"c_hat"`
	RhoHat    string `json:"rho_hat"`
	OHat      string `json:"o_hat"`
	RHat      string `json:"r_hat"`
	RPrimeHat string `json:"r_prime_hat"`
	VHat      string `json:"v_hat"`
	MDHat     string `json:"md_hat"`
	TDHat     string `json:"td_hat"`
}

type proofDoc struct {
	XList proofXListDoc `json:"x_list"`
	CList proofCListDoc `json:"c_list"`
}

// pairingTerm is one factor e(p, q)^exp of a product in Gt. The exponent is
// applied on the G1 side before pairing. A nil exponent means one.
type pairingTerm struct {
	p   *math.G1
	q   *math.G2
	exp *math.Zr
}

func gtProduct(terms ...pairingTerm) *math.Gt {
	var acc *math.Gt

	for _, t := range terms {
		p := t.p
		if t.exp != nil {
			p = p.Mul(t.exp)
		}

		e := pairing(p, t.q)

		if acc == nil {
			acc = e
		} else {
			acc.Mul(e)
		}
	}

	return acc
}

func response(tilde, secret, challenge *math.Zr) *math.Zr {
	return curve.ModAdd(tilde, curve.ModMul(challenge, secret, curve.GroupOrder), curve.GroupOrder)
}

// ProofBuilder carries the state of a non-revocation proof between the
// commitment phase and the shared challenge.
type ProofBuilder struct {
	pub   *registryPublic
	wit   *witness
	accum *math.G2

	e *math.G1
	a *math.G1
	g *math.G1
	w *math.G2

	rho, o, r, rPrime, md, td *math.Zr

	cT, rhoT, oT, rT, rpT, vT, mdT, tdT *math.Zr

	tau1 *math.Gt
	tau2 *math.G1
	tau3 *math.G1
	tau4 *math.Gt
}

// NewProofBuilder checks the witness against the registry key and the
// accumulator, then commits to the proof randomness. The indexTilde blinder
// is owned by the caller, which uses it to bind the registry index to the
// credential attribute carrying it.
func NewProofBuilder(pub, witnessRaw json.RawMessage, accum string,
	indexTilde *math.Zr) (*ProofBuilder, error) {
	rp, err := parseRegistryPublic(pub)
	if err != nil {
		return nil, err
	}

	wit, err := parseWitness(witnessRaw)
	if err != nil {
		return nil, err
	}

	acc, err := g2FromB64(accum)
	if err != nil {
		return nil, errors.Wrap(err, "parse accumulator")
	}

	m := curve.NewZrFromInt(int64(wit.index))

	// e(sigma, y * g2^c) == e(h0 * h1^m * h2^v * T_i, g2)
	yC := rp.y.Copy()
	yC.Add(curve.GenG2.Mul(wit.c))

	base := rp.h0.Copy()
	base.Add(rp.h1.Mul(m))
	base.Add(rp.h2.Mul(wit.v))
	base.Add(wit.point)

	if !pairing(wit.sigma, yC).Equals(pairing(base, curve.GenG2)) {
		return nil, errors.New("witness signature does not verify against the registry key")
	}

	membership := rp.z()
	membership.Mul(pairing(curve.GenG1, wit.omega))

	if !pairing(wit.point, acc).Equals(membership) {
		return nil, errors.Wrapf(ErrRevoked, "index %d is not in the registry accumulator", wit.index)
	}

	pb := &ProofBuilder{pub: rp, wit: wit, accum: acc}

	pb.rho = curve.NewRandomZr(rand.Reader)
	pb.o = curve.NewRandomZr(rand.Reader)
	pb.r = curve.NewRandomZr(rand.Reader)
	pb.rPrime = curve.NewRandomZr(rand.Reader)
	pb.md = curve.ModMul(pb.rho, wit.c, curve.GroupOrder)
	pb.td = curve.ModMul(pb.o, wit.c, curve.GroupOrder)

	pb.e = rp.hA.Mul2(pb.rho, rp.hB, pb.o)

	pb.a = wit.sigma.Copy()
	pb.a.Add(rp.hTilde.Mul(pb.rho))

	pb.g = wit.point.Copy()
	pb.g.Add(rp.hTilde.Mul(pb.r))

	pb.w = wit.omega.Copy()
	pb.w.Add(curve.GenG2.Mul(pb.rPrime))

	pb.cT = curve.NewRandomZr(rand.Reader)
	pb.rhoT = curve.NewRandomZr(rand.Reader)
	pb.oT = curve.NewRandomZr(rand.Reader)
	pb.rT = curve.NewRandomZr(rand.Reader)
	pb.rpT = curve.NewRandomZr(rand.Reader)
	pb.vT = curve.NewRandomZr(rand.Reader)
	pb.mdT = curve.NewRandomZr(rand.Reader)
	pb.tdT = curve.NewRandomZr(rand.Reader)

	negHTilde := negG1(rp.hTilde)

	pb.tau1 = gtProduct(
		pairingTerm{pb.a, curve.GenG2, pb.cT},
		pairingTerm{negHTilde, rp.y, pb.rhoT},
		pairingTerm{negHTilde, curve.GenG2, pb.mdT},
		pairingTerm{negG1(rp.h1), curve.GenG2, indexTilde},
		pairingTerm{negG1(rp.h2), curve.GenG2, pb.vT},
		pairingTerm{rp.hTilde, curve.GenG2, pb.rT},
	)

	pb.tau2 = rp.hA.Mul2(pb.rhoT, rp.hB, pb.oT)

	pb.tau3 = pb.e.Mul(pb.cT)
	pb.tau3.Add(negG1(rp.hA).Mul2(pb.mdT, negG1(rp.hB), pb.tdT))

	pb.tau4 = gtProduct(
		pairingTerm{negHTilde, acc, pb.rT},
		pairingTerm{curve.GenG1, curve.GenG2, pb.rpT},
	)

	return pb, nil
}

// Index reports the registry index the witness was issued for.
func (pb *ProofBuilder) Index() uint32 {
	return pb.wit.index
}

// Contribution returns the byte contribution of this proof to the shared
// challenge transcript.
func (pb *ProofBuilder) Contribution() []byte {
	var out []byte

	out = append(out, pb.e.Bytes()...)
	out = append(out, pb.a.Bytes()...)
	out = append(out, pb.g.Bytes()...)
	out = append(out, pb.w.Bytes()...)
	out = append(out, pb.tau1.Bytes()...)
	out = append(out, pb.tau2.Bytes()...)
	out = append(out, pb.tau3.Bytes()...)
	out = append(out, pb.tau4.Bytes()...)
	out = append(out, pb.accum.Bytes()...)

	return out
}

// Finish closes the proof over the shared challenge.
func (pb *ProofBuilder) Finish(challenge *math.Zr) (json.RawMessage, error) {
	doc := proofDoc{
		XList: proofXListDoc{
			CHat:      frToDecimal(response(pb.cT, pb.wit.c, challenge)),
			RhoHat:    frToDecimal(response(pb.rhoT, pb.rho, challenge)),
			OHat:      frToDecimal(response(pb.oT, pb.o, challenge)),
			RHat:      frToDecimal(response(pb.rT, pb.r, challenge)),
			RPrimeHat: frToDecimal(response(pb.rpT, pb.rPrime, challenge)),
			VHat:      frToDecimal(response(pb.vT, pb.wit.v, challenge)),
			MDHat:     frToDecimal(response(pb.mdT, pb.md, challenge)),
			TDHat:     frToDecimal(response(pb.tdT, pb.td, challenge)),
		},
		CList: proofCListDoc{
			E: g1ToB64(pb.e),
			A: g1ToB64(pb.a),
			G: g1ToB64(pb.g),
			W: g2ToB64(pb.w),
		},
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshal non-revocation proof")
	}

	return out, nil
}

// VerifyContribution recomputes the transcript contribution of a
// non-revocation proof from its responses. The indexHat response comes from
// the primary proof, which ties the hidden registry index to the credential
// attribute carrying it.
func VerifyContribution(pub, proofRaw json.RawMessage, accum string,
	indexHat, challenge *math.Zr) ([]byte, error) {
	rp, err := parseRegistryPublic(pub)
	if err != nil {
		return nil, err
	}

	var doc proofDoc
	if err := json.Unmarshal(proofRaw, &doc); err != nil {
		return nil, errors.Wrap(err, "parse non-revocation proof")
	}

	acc, err := g2FromB64(accum)
	if err != nil {
		return nil, errors.Wrap(err, "parse accumulator")
	}

	e, err := g1FromB64(doc.CList.E)
	if err != nil {
		return nil, errors.Wrap(err, "proof point e")
	}

	a, err := g1FromB64(doc.CList.A)
	if err != nil {
		return nil, errors.Wrap(err, "proof point a")
	}

	g, err := g1FromB64(doc.CList.G)
	if err != nil {
		return nil, errors.Wrap(err, "proof point g")
	}

	w, err := g2FromB64(doc.CList.W)
	if err != nil {
		return nil, errors.Wrap(err, "proof point w")
	}

	hats := make(map[string]*math.Zr, 8)

	for _, h := range []struct {
		tag string
		enc string
	}{
		{"c_hat", doc.XList.CHat},
		{"rho_hat", doc.XList.RhoHat},
		{"o_hat", doc.XList.OHat},
		{"r_hat", doc.XList.RHat},
		{"r_prime_hat", doc.XList.RPrimeHat},
		{"v_hat", doc.XList.VHat},
		{"md_hat", doc.XList.MDHat},
		{"td_hat", doc.XList.TDHat},
	} {
		z, err := decimalToFr(h.enc)
		if err != nil {
			return nil, errors.Wrapf(err, "proof response %s", h.tag)
		}

		hats[h.tag] = z
	}

	negChal := negFr(challenge)
	negHTilde := negG1(rp.hTilde)

	tau1 := gtProduct(
		pairingTerm{a, curve.GenG2, hats["c_hat"]},
		pairingTerm{negHTilde, rp.y, hats["rho_hat"]},
		pairingTerm{negHTilde, curve.GenG2, hats["md_hat"]},
		pairingTerm{negG1(rp.h1), curve.GenG2, indexHat},
		pairingTerm{negG1(rp.h2), curve.GenG2, hats["v_hat"]},
		pairingTerm{rp.hTilde, curve.GenG2, hats["r_hat"]},
		pairingTerm{rp.h0, curve.GenG2, negChal},
		pairingTerm{g, curve.GenG2, negChal},
		pairingTerm{negG1(a), rp.y, negChal},
	)

	tau2 := rp.hA.Mul2(hats["rho_hat"], rp.hB, hats["o_hat"])
	tau2.Add(e.Mul(negChal))

	tau3 := e.Mul(hats["c_hat"])
	tau3.Add(negG1(rp.hA).Mul2(hats["md_hat"], negG1(rp.hB), hats["td_hat"]))

	tau4 := gtProduct(
		pairingTerm{negHTilde, acc, hats["r_hat"]},
		pairingTerm{curve.GenG1, curve.GenG2, hats["r_prime_hat"]},
		pairingTerm{rp.t1, rp.tl, negChal},
		pairingTerm{curve.GenG1, w, negChal},
		pairingTerm{negG1(g), acc, negChal},
	)

	var out []byte

	out = append(out, e.Bytes()...)
	out = append(out, a.Bytes()...)
	out = append(out, g.Bytes()...)
	out = append(out, w.Bytes()...)
	out = append(out, tau1.Bytes()...)
	out = append(out, tau2.Bytes()...)
	out = append(out, tau3.Bytes()...)
	out = append(out, tau4.Bytes()...)
	out = append(out, acc.Bytes()...)

	return out, nil
}
