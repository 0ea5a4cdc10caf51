/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bbsplus

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"

	ml "github.com/IBM/mathlib"
	"golang.org/x/crypto/blake2b"
)

func frFromOKM(message []byte) *ml.Zr {
	const (
		eightBytes = 8
		okmMiddle  = 24
	)

	// We pass a null key so error is impossible here.
	h, _ := blake2b.New384(nil) //nolint:errcheck

	// blake2b.digest() does not return an error.
	_, _ = h.Write(message)
	okm := h.Sum(nil)
	emptyEightBytes := make([]byte, eightBytes)

	elm := curve.NewZrFromBytes(append(emptyEightBytes, okm[:okmMiddle]...))
	elm = curve.ModMul(elm, f2192(), curve.GroupOrder)

	fr := curve.NewZrFromBytes(append(emptyEightBytes, okm[okmMiddle:]...))

	return curve.ModAdd(elm, fr, curve.GroupOrder)
}

func f2192() *ml.Zr {
	shift := new(big.Int).Lsh(big.NewInt(1), 192)

	return curve.NewZrFromBytes(shift.FillBytes(make([]byte, frCompressedSize)))
}

func groupOrderInt() *big.Int {
	return new(big.Int).SetBytes(curve.GroupOrder.Bytes())
}

// frFromDecimal maps a decimal string into the scalar field. Values outside
// [0, order) are reduced, negatives wrap.
func frFromDecimal(dec string) (*ml.Zr, error) {
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal scalar %q", dec)
	}

	v.Mod(v, groupOrderInt())

	return curve.NewZrFromBytes(v.FillBytes(make([]byte, frCompressedSize))), nil
}

// frFromInt64 maps a signed integer into the scalar field.
func frFromInt64(v int64) *ml.Zr {
	if v < 0 {
		return negFr(curve.NewZrFromInt(-v))
	}

	return curve.NewZrFromInt(v)
}

func frToDecimal(z *ml.Zr) string {
	return new(big.Int).SetBytes(z.Bytes()).String()
}

func createRandSignatureFr() *ml.Zr {
	return curve.NewRandomZr(rand.Reader)
}

func negFr(z *ml.Zr) *ml.Zr {
	return curve.ModNeg(z, curve.GroupOrder)
}

// negG1 returns the additive inverse of a point, leaving the input intact.
func negG1(p *ml.G1) *ml.G1 {
	return p.Mul(negFr(curve.NewZrFromInt(1)))
}

func negG2(p *ml.G2) *ml.G2 {
	return p.Mul(negFr(curve.NewZrFromInt(1)))
}

func g1ToB64(p *ml.G1) string {
	return base64.StdEncoding.EncodeToString(p.Compressed())
}

func g1FromB64(s string) (*ml.G1, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode G1 point: %w", err)
	}

	p, err := curve.NewG1FromCompressed(raw)
	if err != nil {
		return nil, fmt.Errorf("parse G1 point: %w", err)
	}

	return p, nil
}

func g2ToB64(p *ml.G2) string {
	return base64.StdEncoding.EncodeToString(p.Compressed())
}

func g2FromB64(s string) (*ml.G2, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode G2 point: %w", err)
	}

	p, err := curve.NewG2FromCompressed(raw)
	if err != nil {
		return nil, fmt.Errorf("parse G2 point: %w", err)
	}

	return p, nil
}

// nonceBytes canonicalizes a decimal protocol nonce for transcript hashing.
func nonceBytes(nonce string) ([]byte, error) {
	v, ok := new(big.Int).SetString(nonce, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid nonce %q", nonce)
	}

	return v.Bytes(), nil
}
