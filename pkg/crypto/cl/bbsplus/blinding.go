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

type masterSecretDoc struct {
	MS string `json:"ms"`
}

type blindedSecretDoc struct {
	U string `json:"u"`
}

type blindedProofDoc struct {
	C     string `json:"c"`
	SHat  string `json:"s_hat"`
	MSHat string `json:"ms_hat"`
}

type blindingDataDoc struct {
	SB string `json:"s_b"`
}

// CreateMasterSecret generates a fresh link secret.
func (s *Scheme) CreateMasterSecret() (json.RawMessage, error) {
	ms := createRandSignatureFr()

	return json.Marshal(masterSecretDoc{MS: frToDecimal(ms)})
}

func parseMasterSecret(raw json.RawMessage) (*ml.Zr, error) {
	var doc masterSecretDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse master secret: %w", err)
	}

	ms, err := frFromDecimal(doc.MS)
	if err != nil {
		return nil, fmt.Errorf("parse master secret value: %w", err)
	}

	return ms, nil
}

// BlindMasterSecret commits to the link secret under the issuer key and
// proves the commitment opens to it. The proof answers the offer nonce so a
// credential request cannot be replayed against another offer. keyProof is
// unused here: this scheme checks it separately in
// VerifyKeyCorrectnessProof, while nonce-binding backends consume it during
// blinding.
func (s *Scheme) BlindMasterSecret(pub, keyProof, masterSecret json.RawMessage, offerNonce string) (*api.BlindedSecret, error) {
	pk, err := parsePublicKey(pub)
	if err != nil {
		return nil, err
	}

	ms, err := parseMasterSecret(masterSecret)
	if err != nil {
		return nil, err
	}

	nonce, err := nonceBytes(offerNonce)
	if err != nil {
		return nil, err
	}

	sB := createRandSignatureFr()

	u := pk.h0.Mul(sB)
	u.Add(pk.hMS.Mul(ms))

	sTilde, msTilde := createRandSignatureFr(), createRandSignatureFr()

	commitment := pk.h0.Mul(sTilde)
	commitment.Add(pk.hMS.Mul(msTilde))

	transcript := u.Bytes()
	transcript = append(transcript, commitment.Bytes()...)
	transcript = append(transcript, nonce...)
	c := frFromOKM(transcript)

	sHat := curve.ModAdd(sTilde, curve.ModMul(c, sB, curve.GroupOrder), curve.GroupOrder)
	msHat := curve.ModAdd(msTilde, curve.ModMul(c, ms, curve.GroupOrder), curve.GroupOrder)

	blinded, err := json.Marshal(blindedSecretDoc{U: g1ToB64(u)})
	if err != nil {
		return nil, fmt.Errorf("marshal blinded secret: %w", err)
	}

	proof, err := json.Marshal(blindedProofDoc{
		C:     frToDecimal(c),
		SHat:  frToDecimal(sHat),
		MSHat: frToDecimal(msHat),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal blinded secret proof: %w", err)
	}

	blindingData, err := json.Marshal(blindingDataDoc{SB: frToDecimal(sB)})
	if err != nil {
		return nil, fmt.Errorf("marshal blinding data: %w", err)
	}

	return &api.BlindedSecret{
		Blinded:          blinded,
		CorrectnessProof: proof,
		BlindingData:     blindingData,
	}, nil
}

// VerifyBlindedSecret is the issuer-side check of the blinded link secret
// before signing.
func (s *Scheme) VerifyBlindedSecret(pub, blinded, proof json.RawMessage, offerNonce string) error {
	pk, err := parsePublicKey(pub)
	if err != nil {
		return err
	}

	u, err := parseBlindedSecret(blinded)
	if err != nil {
		return err
	}

	var proofDoc blindedProofDoc
	if err := json.Unmarshal(proof, &proofDoc); err != nil {
		return fmt.Errorf("parse blinded secret proof: %w", err)
	}

	c, err := frFromDecimal(proofDoc.C)
	if err != nil {
		return fmt.Errorf("parse blinded secret proof c: %w", err)
	}

	sHat, err := frFromDecimal(proofDoc.SHat)
	if err != nil {
		return fmt.Errorf("parse blinded secret proof s_hat: %w", err)
	}

	msHat, err := frFromDecimal(proofDoc.MSHat)
	if err != nil {
		return fmt.Errorf("parse blinded secret proof ms_hat: %w", err)
	}

	nonce, err := nonceBytes(offerNonce)
	if err != nil {
		return err
	}

	// commitment' = h0^s_hat * h_ms^ms_hat * u^-c
	commitment := pk.h0.Mul(sHat)
	commitment.Add(pk.hMS.Mul(msHat))
	commitment.Add(u.Mul(negFr(c)))

	transcript := u.Bytes()
	transcript = append(transcript, commitment.Bytes()...)
	transcript = append(transcript, nonce...)

	if !frFromOKM(transcript).Equals(c) {
		return fmt.Errorf("blinded secret proof does not verify")
	}

	return nil
}

func parseBlindedSecret(raw json.RawMessage) (*ml.G1, error) {
	var doc blindedSecretDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse blinded secret: %w", err)
	}

	u, err := g1FromB64(doc.U)
	if err != nil {
		return nil, fmt.Errorf("parse blinded secret u: %w", err)
	}

	return u, nil
}

// ProcessSignature folds the holder blinding factor into a received
// signature and verifies the result against the public key. The returned
// document is the final credential signature.
func (s *Scheme) ProcessSignature(req *api.ProcessRequest) (json.RawMessage, error) {
	pk, err := parsePublicKey(req.Public)
	if err != nil {
		return nil, err
	}

	sig, err := parseSignature(req.Signature)
	if err != nil {
		return nil, err
	}

	var blinding blindingDataDoc
	if err := json.Unmarshal(req.BlindingData, &blinding); err != nil {
		return nil, fmt.Errorf("parse blinding data: %w", err)
	}

	sB, err := frFromDecimal(blinding.SB)
	if err != nil {
		return nil, fmt.Errorf("parse blinding data s_b: %w", err)
	}

	ms, err := parseMasterSecret(req.MasterSecret)
	if err != nil {
		return nil, err
	}

	if pk.supportsRevocation() {
		if req.RevocationIndex == 0 {
			return nil, fmt.Errorf("revocable credential needs a registry index")
		}

		if sig.revIndex != req.RevocationIndex {
			return nil, fmt.Errorf("signature binds registry index %d, expected %d", sig.revIndex, req.RevocationIndex)
		}
	} else if sig.revIndex != 0 {
		return nil, fmt.Errorf("signature binds a registry index but the key does not support revocation")
	}

	sFinal := curve.ModAdd(sig.s, sB, curve.GroupOrder)

	messages, err := attrScalars(pk, req.Values)
	if err != nil {
		return nil, err
	}

	b := computeB(pk, sFinal, ms, messages, sig.revIndex)

	// e(a, w * g2^e) == e(b, g2)
	wE := pk.w.Copy()
	wE.Add(curve.GenG2.Mul(sig.e))

	if !compareTwoPairings(sig.a, wE, negG1(b), curve.GenG2) {
		return nil, fmt.Errorf("signature does not verify against the public key")
	}

	return marshalSignature(&signature{a: sig.a, e: sig.e, s: sFinal, revIndex: sig.revIndex})
}
