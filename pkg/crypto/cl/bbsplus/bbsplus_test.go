/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bbsplus_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/accumulator"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/bbsplus"
)

const (
	offerNonce = "411729786441557439963086436569386219552"
	proofNonce = "817215727974535839252846781151282498317"
)

type issuedCredential struct {
	keys   *api.CredentialKeys
	ms     json.RawMessage
	sig    json.RawMessage
	values map[string]string
}

// issueCredential runs the complete offer, request, sign and process
// exchange for one credential.
func issueCredential(t *testing.T, scheme *bbsplus.Scheme, attrNames []string,
	values map[string]string, revocable bool, revIndex uint32) *issuedCredential {
	t.Helper()

	keys, err := scheme.CreateCredentialKeys(attrNames, revocable)
	require.NoError(t, err)

	require.NoError(t, scheme.VerifyKeyCorrectnessProof(keys.Public, keys.CorrectnessProof, attrNames))

	ms, err := scheme.CreateMasterSecret()
	require.NoError(t, err)

	return issueWithSecret(t, scheme, keys, ms, values, revIndex)
}

func issueWithSecret(t *testing.T, scheme *bbsplus.Scheme, keys *api.CredentialKeys,
	ms json.RawMessage, values map[string]string, revIndex uint32) *issuedCredential {
	t.Helper()

	blinded, err := scheme.BlindMasterSecret(keys.Public, keys.CorrectnessProof, ms, offerNonce)
	require.NoError(t, err)

	require.NoError(t, scheme.VerifyBlindedSecret(keys.Public, blinded.Blinded, blinded.CorrectnessProof, offerNonce))

	rawSig, err := scheme.SignCredential(&api.SignRequest{
		Public:          keys.Public,
		Private:         keys.Private,
		BlindedSecret:   blinded.Blinded,
		Values:          values,
		RevocationIndex: revIndex,
	})
	require.NoError(t, err)

	sig, err := scheme.ProcessSignature(&api.ProcessRequest{
		Public:          keys.Public,
		Signature:       rawSig,
		BlindingData:    blinded.BlindingData,
		MasterSecret:    ms,
		Values:          values,
		RevocationIndex: revIndex,
	})
	require.NoError(t, err)

	return &issuedCredential{keys: keys, ms: ms, sig: sig, values: values}
}

func personAttrs() ([]string, map[string]string) {
	return []string{"name", "age", "height", "sex"},
		map[string]string{
			"name":   "71328428816553116327132842881655311632",
			"age":    "28",
			"height": "175",
			"sex":    "1",
		}
}

func TestCreateCredentialKeys(t *testing.T) {
	scheme := bbsplus.New()

	t.Run("key correctness proof verifies", func(t *testing.T) {
		keys, err := scheme.CreateCredentialKeys([]string{"name", "age"}, false)
		require.NoError(t, err)

		require.NoError(t, scheme.VerifyKeyCorrectnessProof(keys.Public, keys.CorrectnessProof, []string{"name", "age"}))
	})

	t.Run("attribute order does not matter", func(t *testing.T) {
		keys, err := scheme.CreateCredentialKeys([]string{"b", "a", "c"}, false)
		require.NoError(t, err)

		require.NoError(t, scheme.VerifyKeyCorrectnessProof(keys.Public, keys.CorrectnessProof, []string{"c", "a", "b"}))
	})

	t.Run("no attributes", func(t *testing.T) {
		keys, err := scheme.CreateCredentialKeys(nil, false)
		require.NoError(t, err)

		require.NoError(t, scheme.VerifyKeyCorrectnessProof(keys.Public, keys.CorrectnessProof, nil))
	})

	t.Run("wrong attribute set fails", func(t *testing.T) {
		keys, err := scheme.CreateCredentialKeys([]string{"name", "age"}, false)
		require.NoError(t, err)

		err = scheme.VerifyKeyCorrectnessProof(keys.Public, keys.CorrectnessProof, []string{"name", "email"})
		require.Error(t, err)
	})

	t.Run("proof from another key fails", func(t *testing.T) {
		keys1, err := scheme.CreateCredentialKeys([]string{"name"}, false)
		require.NoError(t, err)

		keys2, err := scheme.CreateCredentialKeys([]string{"name"}, false)
		require.NoError(t, err)

		err = scheme.VerifyKeyCorrectnessProof(keys1.Public, keys2.CorrectnessProof, []string{"name"})
		require.Error(t, err)
	})

	t.Run("reserved attribute names rejected", func(t *testing.T) {
		_, err := scheme.CreateCredentialKeys([]string{"master_secret"}, false)
		require.Error(t, err)

		_, err = scheme.CreateCredentialKeys([]string{"rev_index"}, true)
		require.Error(t, err)
	})

	t.Run("duplicate attribute names rejected", func(t *testing.T) {
		_, err := scheme.CreateCredentialKeys([]string{"age", "age"}, false)
		require.Error(t, err)
	})
}

func TestBlindIssuance(t *testing.T) {
	scheme := bbsplus.New()
	attrNames, values := personAttrs()

	t.Run("round trip", func(t *testing.T) {
		issueCredential(t, scheme, attrNames, values, false, 0)
	})

	t.Run("blinded secret fails on wrong nonce", func(t *testing.T) {
		keys, err := scheme.CreateCredentialKeys(attrNames, false)
		require.NoError(t, err)

		ms, err := scheme.CreateMasterSecret()
		require.NoError(t, err)

		blinded, err := scheme.BlindMasterSecret(keys.Public, keys.CorrectnessProof, ms, offerNonce)
		require.NoError(t, err)

		err = scheme.VerifyBlindedSecret(keys.Public, blinded.Blinded, blinded.CorrectnessProof, proofNonce)
		require.Error(t, err)
		require.Contains(t, err.Error(), "does not verify")
	})

	t.Run("signing fails on missing value", func(t *testing.T) {
		keys, err := scheme.CreateCredentialKeys(attrNames, false)
		require.NoError(t, err)

		ms, err := scheme.CreateMasterSecret()
		require.NoError(t, err)

		blinded, err := scheme.BlindMasterSecret(keys.Public, keys.CorrectnessProof, ms, offerNonce)
		require.NoError(t, err)

		_, err = scheme.SignCredential(&api.SignRequest{
			Public:        keys.Public,
			Private:       keys.Private,
			BlindedSecret: blinded.Blinded,
			Values:        map[string]string{"age": "28"},
		})
		require.Error(t, err)
	})

	t.Run("processing fails on altered values", func(t *testing.T) {
		keys, err := scheme.CreateCredentialKeys(attrNames, false)
		require.NoError(t, err)

		ms, err := scheme.CreateMasterSecret()
		require.NoError(t, err)

		blinded, err := scheme.BlindMasterSecret(keys.Public, keys.CorrectnessProof, ms, offerNonce)
		require.NoError(t, err)

		rawSig, err := scheme.SignCredential(&api.SignRequest{
			Public:        keys.Public,
			Private:       keys.Private,
			BlindedSecret: blinded.Blinded,
			Values:        values,
		})
		require.NoError(t, err)

		altered := map[string]string{}
		for k, v := range values {
			altered[k] = v
		}
		altered["age"] = "29"

		_, err = scheme.ProcessSignature(&api.ProcessRequest{
			Public:       keys.Public,
			Signature:    rawSig,
			BlindingData: blinded.BlindingData,
			MasterSecret: ms,
			Values:       altered,
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "does not verify")
	})
}

func TestPresentation(t *testing.T) {
	scheme := bbsplus.New()
	attrNames, values := personAttrs()
	cred := issueCredential(t, scheme, attrNames, values, false, 0)

	prove := func(t *testing.T, revealed []string, predicates []*api.Predicate) json.RawMessage {
		t.Helper()

		proof, err := scheme.CreateProof(&api.ProofRequest{
			Nonce: proofNonce,
			SubProofs: []*api.SubProof{{
				Public:       cred.keys.Public,
				Signature:    cred.sig,
				MasterSecret: cred.ms,
				Values:       cred.values,
				Revealed:     revealed,
				Predicates:   predicates,
			}},
		})
		require.NoError(t, err)

		return proof
	}

	verify := func(t *testing.T, proof json.RawMessage, nonce string,
		revealed map[string]string, predicates []*api.Predicate) bool {
		t.Helper()

		ok, err := scheme.VerifyProof(&api.VerifyRequest{
			Nonce: nonce,
			Proof: proof,
			SubProofs: []*api.SubProofPublic{{
				Public:     cred.keys.Public,
				Revealed:   revealed,
				Predicates: predicates,
			}},
		})
		require.NoError(t, err)

		return ok
	}

	t.Run("all attributes hidden", func(t *testing.T) {
		proof := prove(t, nil, nil)
		require.True(t, verify(t, proof, proofNonce, nil, nil))
	})

	t.Run("revealed subset", func(t *testing.T) {
		proof := prove(t, []string{"name", "sex"}, nil)

		require.True(t, verify(t, proof, proofNonce, map[string]string{
			"name": values["name"],
			"sex":  values["sex"],
		}, nil))
	})

	t.Run("revealed value mismatch rejects", func(t *testing.T) {
		proof := prove(t, []string{"sex"}, nil)

		require.False(t, verify(t, proof, proofNonce, map[string]string{"sex": "2"}, nil))
	})

	t.Run("missing expected attribute rejects", func(t *testing.T) {
		proof := prove(t, []string{"sex"}, nil)

		require.False(t, verify(t, proof, proofNonce, map[string]string{
			"sex":  values["sex"],
			"name": values["name"],
		}, nil))
	})

	t.Run("wrong nonce rejects", func(t *testing.T) {
		proof := prove(t, nil, nil)
		require.False(t, verify(t, proof, offerNonce, nil, nil))
	})

	t.Run("predicates", func(t *testing.T) {
		cases := []struct {
			name string
			pred *api.Predicate
		}{
			{"GE below value", &api.Predicate{Attr: "age", Op: api.PredicateGE, Value: 18}},
			{"GE at value", &api.Predicate{Attr: "age", Op: api.PredicateGE, Value: 28}},
			{"GT below value", &api.Predicate{Attr: "age", Op: api.PredicateGT, Value: 27}},
			{"LE above value", &api.Predicate{Attr: "age", Op: api.PredicateLE, Value: 30}},
			{"LE at value", &api.Predicate{Attr: "age", Op: api.PredicateLE, Value: 28}},
			{"LT above value", &api.Predicate{Attr: "age", Op: api.PredicateLT, Value: 29}},
			{"GE negative bound", &api.Predicate{Attr: "age", Op: api.PredicateGE, Value: -5}},
		}

		for _, tc := range cases {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				preds := []*api.Predicate{tc.pred}
				proof := prove(t, nil, preds)
				require.True(t, verify(t, proof, proofNonce, nil, preds))
			})
		}
	})

	t.Run("predicate combined with revealed attributes", func(t *testing.T) {
		preds := []*api.Predicate{{Attr: "age", Op: api.PredicateGE, Value: 21}}
		proof := prove(t, []string{"name"}, preds)

		require.True(t, verify(t, proof, proofNonce, map[string]string{"name": values["name"]}, preds))
	})

	t.Run("unsatisfied predicate fails at proving", func(t *testing.T) {
		_, err := scheme.CreateProof(&api.ProofRequest{
			Nonce: proofNonce,
			SubProofs: []*api.SubProof{{
				Public:       cred.keys.Public,
				Signature:    cred.sig,
				MasterSecret: cred.ms,
				Values:       cred.values,
				Predicates:   []*api.Predicate{{Attr: "age", Op: api.PredicateGE, Value: 30}},
			}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "does not satisfy")
	})

	t.Run("predicate on revealed attribute fails", func(t *testing.T) {
		_, err := scheme.CreateProof(&api.ProofRequest{
			Nonce: proofNonce,
			SubProofs: []*api.SubProof{{
				Public:       cred.keys.Public,
				Signature:    cred.sig,
				MasterSecret: cred.ms,
				Values:       cred.values,
				Revealed:     []string{"age"},
				Predicates:   []*api.Predicate{{Attr: "age", Op: api.PredicateGE, Value: 18}},
			}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "cannot be both revealed and bound")
	})

	t.Run("proof does not satisfy a different predicate", func(t *testing.T) {
		proof := prove(t, nil, []*api.Predicate{{Attr: "age", Op: api.PredicateGE, Value: 18}})

		require.False(t, verify(t, proof, proofNonce, nil,
			[]*api.Predicate{{Attr: "age", Op: api.PredicateGE, Value: 21}}))
	})
}

func TestPresentationNoAttributes(t *testing.T) {
	scheme := bbsplus.New()
	cred := issueCredential(t, scheme, nil, nil, false, 0)

	proof, err := scheme.CreateProof(&api.ProofRequest{
		Nonce: proofNonce,
		SubProofs: []*api.SubProof{{
			Public:       cred.keys.Public,
			Signature:    cred.sig,
			MasterSecret: cred.ms,
		}},
	})
	require.NoError(t, err)

	ok, err := scheme.VerifyProof(&api.VerifyRequest{
		Nonce:     proofNonce,
		Proof:     proof,
		SubProofs: []*api.SubProofPublic{{Public: cred.keys.Public}},
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMultiCredentialPresentation(t *testing.T) {
	scheme := bbsplus.New()

	ms, err := scheme.CreateMasterSecret()
	require.NoError(t, err)

	keys1, err := scheme.CreateCredentialKeys([]string{"name", "age"}, false)
	require.NoError(t, err)

	keys2, err := scheme.CreateCredentialKeys([]string{"degree", "year"}, false)
	require.NoError(t, err)

	values1 := map[string]string{"name": "1234567890", "age": "28"}
	values2 := map[string]string{"degree": "42", "year": "2015"}

	cred1 := issueWithSecret(t, scheme, keys1, ms, values1, 0)
	cred2 := issueWithSecret(t, scheme, keys2, ms, values2, 0)

	t.Run("one holder behind two credentials", func(t *testing.T) {
		proof, err := scheme.CreateProof(&api.ProofRequest{
			Nonce: proofNonce,
			SubProofs: []*api.SubProof{
				{
					Public:       cred1.keys.Public,
					Signature:    cred1.sig,
					MasterSecret: cred1.ms,
					Values:       cred1.values,
					Revealed:     []string{"name"},
				},
				{
					Public:       cred2.keys.Public,
					Signature:    cred2.sig,
					MasterSecret: cred2.ms,
					Values:       cred2.values,
					Predicates:   []*api.Predicate{{Attr: "year", Op: api.PredicateGE, Value: 2010}},
				},
			},
		})
		require.NoError(t, err)

		ok, err := scheme.VerifyProof(&api.VerifyRequest{
			Nonce: proofNonce,
			Proof: proof,
			SubProofs: []*api.SubProofPublic{
				{
					Public:   keys1.Public,
					Revealed: map[string]string{"name": values1["name"]},
				},
				{
					Public:     keys2.Public,
					Predicates: []*api.Predicate{{Attr: "year", Op: api.PredicateGE, Value: 2010}},
				},
			},
		})
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("different link secrets reject", func(t *testing.T) {
		otherMS, err := scheme.CreateMasterSecret()
		require.NoError(t, err)

		other := issueWithSecret(t, scheme, keys2, otherMS, values2, 0)

		proof, err := scheme.CreateProof(&api.ProofRequest{
			Nonce: proofNonce,
			SubProofs: []*api.SubProof{
				{
					Public:       cred1.keys.Public,
					Signature:    cred1.sig,
					MasterSecret: cred1.ms,
					Values:       cred1.values,
				},
				{
					Public:       other.keys.Public,
					Signature:    other.sig,
					MasterSecret: other.ms,
					Values:       other.values,
				},
			},
		})
		require.NoError(t, err)

		ok, err := scheme.VerifyProof(&api.VerifyRequest{
			Nonce: proofNonce,
			Proof: proof,
			SubProofs: []*api.SubProofPublic{
				{Public: keys1.Public},
				{Public: keys2.Public},
			},
		})
		require.NoError(t, err)
		require.False(t, ok)
	})
}

type memTails struct {
	entries map[uint32]*api.TailsEntry
}

func (m *memTails) Entry(index uint32) (*api.TailsEntry, error) {
	entry, ok := m.entries[index]
	if !ok {
		return nil, errors.New("no such tails entry")
	}

	return entry, nil
}

func TestPresentationWithRevocation(t *testing.T) {
	const (
		maxCredNum = 8
		revIndex   = uint32(1)
	)

	scheme := bbsplus.New()
	acc := accumulator.New()
	attrNames, values := personAttrs()

	regKeys, err := acc.CreateRegistryKeys(maxCredNum)
	require.NoError(t, err)

	tails := &memTails{entries: map[uint32]*api.TailsEntry{}}
	require.NoError(t, acc.GenerateTails(regKeys.Private, maxCredNum,
		func(index uint32, entry *api.TailsEntry) error {
			tails.entries[index] = entry
			return nil
		}))

	accum, err := acc.ComputeAccumulator(tails, maxCredNum, []uint32{revIndex})
	require.NoError(t, err)

	witness, err := acc.IssueRevocation(regKeys.Public, regKeys.Private, tails, revIndex, maxCredNum, []uint32{revIndex})
	require.NoError(t, err)

	cred := issueCredential(t, scheme, attrNames, values, true, revIndex)

	proof, err := scheme.CreateProof(&api.ProofRequest{
		Nonce: proofNonce,
		SubProofs: []*api.SubProof{{
			Public:       cred.keys.Public,
			Signature:    cred.sig,
			MasterSecret: cred.ms,
			Values:       cred.values,
			Revealed:     []string{"sex"},
			NonRevocation: &api.NonRevocationInput{
				RegistryPublic: regKeys.Public,
				Accumulator:    accum,
				Witness:        witness,
			},
		}},
	})
	require.NoError(t, err)

	verify := func(t *testing.T, proof json.RawMessage, accum string) (bool, error) {
		t.Helper()

		return scheme.VerifyProof(&api.VerifyRequest{
			Nonce: proofNonce,
			Proof: proof,
			SubProofs: []*api.SubProofPublic{{
				Public:   cred.keys.Public,
				Revealed: map[string]string{"sex": values["sex"]},
				NonRevocation: &api.NonRevocationPublic{
					RegistryPublic: regKeys.Public,
					Accumulator:    accum,
				},
			}},
		})
	}

	t.Run("valid non-revocation proof", func(t *testing.T) {
		ok, err := verify(t, proof, accum)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("proof against a moved accumulator rejects", func(t *testing.T) {
		moved, err := acc.UpdateAccumulator(accum, tails, maxCredNum, []uint32{3}, nil)
		require.NoError(t, err)

		ok, err := verify(t, proof, moved)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("revoked credential cannot prove", func(t *testing.T) {
		revokedAccum, err := acc.UpdateAccumulator(accum, tails, maxCredNum, nil, []uint32{revIndex})
		require.NoError(t, err)

		staleWitness, err := acc.UpdateWitness(witness, tails, maxCredNum, nil, []uint32{revIndex})
		require.NoError(t, err)

		_, err = scheme.CreateProof(&api.ProofRequest{
			Nonce: proofNonce,
			SubProofs: []*api.SubProof{{
				Public:       cred.keys.Public,
				Signature:    cred.sig,
				MasterSecret: cred.ms,
				Values:       cred.values,
				NonRevocation: &api.NonRevocationInput{
					RegistryPublic: regKeys.Public,
					Accumulator:    revokedAccum,
					Witness:        staleWitness,
				},
			}},
		})
		require.Error(t, err)
		require.True(t, errors.Is(err, accumulator.ErrRevoked))
	})

	t.Run("missing non-revocation proof rejects", func(t *testing.T) {
		bare, err := scheme.CreateProof(&api.ProofRequest{
			Nonce: proofNonce,
			SubProofs: []*api.SubProof{{
				Public:       cred.keys.Public,
				Signature:    cred.sig,
				MasterSecret: cred.ms,
				Values:       cred.values,
				Revealed:     []string{"sex"},
			}},
		})
		require.NoError(t, err)

		ok, err := verify(t, bare, accum)
		require.NoError(t, err)
		require.False(t, ok)
	})
}
