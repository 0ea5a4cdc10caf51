/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestW3CRoundTrip(t *testing.T) {
	cred := testCredential(t)
	cred.SignatureCorrectnessProof = json.RawMessage(`{"se":"1","c":"2"}`)

	w3c, err := cred.ToW3C()
	require.NoError(t, err)

	require.Equal(t, []string{W3CCredentialsContext, W3CAnoncredsContext}, w3c.Context)
	require.Equal(t, []string{W3CCredentialType}, w3c.Type)
	require.Equal(t, "NcYxiDXkpYi6ov5FcYDi1e", w3c.Issuer)
	require.Equal(t, testSchemaID, w3c.CredentialSchema.Schema)
	require.Equal(t, testCredDefID, w3c.CredentialSchema.Definition)
	require.Equal(t, "Alice", w3c.CredentialSubject["name"])
	require.Equal(t, W3CCryptosuite, w3c.Proof.Cryptosuite)
	require.NotEmpty(t, w3c.Proof.ProofValue)
	require.Equal(t, byte('z'), w3c.Proof.ProofValue[0], "base58btc multibase prefix")

	back, err := FromW3C(w3c)
	require.NoError(t, err)

	require.Equal(t, cred.SchemaID, back.SchemaID)
	require.Equal(t, cred.CredDefID, back.CredDefID)
	require.Equal(t, cred.Values, back.Values)
	require.Equal(t, cred.Signature, back.Signature)
	require.Equal(t, cred.SignatureCorrectnessProof, back.SignatureCorrectnessProof)
}

func TestW3CRoundTripWithRevocation(t *testing.T) {
	cred := testCredential(t)
	cred.RevRegID = testRevRegID
	cred.RevReg = json.RawMessage(`{"accum":"a1"}`)
	cred.Witness = json.RawMessage(`{"omega":"w1"}`)

	w3c, err := cred.ToW3C()
	require.NoError(t, err)

	back, err := FromW3C(w3c)
	require.NoError(t, err)

	require.Equal(t, cred.RevRegID, back.RevRegID)
	require.Equal(t, cred.RevReg, back.RevReg)
	require.Equal(t, cred.Witness, back.Witness)
}

func TestParseW3CCredential(t *testing.T) {
	cred := testCredential(t)

	w3c, err := cred.ToW3C()
	require.NoError(t, err)

	raw, err := json.Marshal(w3c)
	require.NoError(t, err)

	back, err := ParseW3CCredential(raw)
	require.NoError(t, err)
	require.Equal(t, cred.Values, back.Values)
	require.Equal(t, cred.Signature, back.Signature)

	t.Run("scalar type and expanded issuer", func(t *testing.T) {
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &doc))

		doc["type"] = W3CCredentialType
		doc["issuer"] = map[string]interface{}{"id": w3c.Issuer}

		loose, err := json.Marshal(doc)
		require.NoError(t, err)

		back, err := ParseW3CCredential(loose)
		require.NoError(t, err)
		require.Equal(t, cred.Values, back.Values)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseW3CCredential([]byte("not json"))
		require.True(t, errors.Is(err, Input))
	})
}

func TestFromW3CRejects(t *testing.T) {
	cred := testCredential(t)

	w3c, err := cred.ToW3C()
	require.NoError(t, err)

	t.Run("no proof", func(t *testing.T) {
		_, err := FromW3C(&W3CCredential{})
		require.True(t, errors.Is(err, Input))
	})

	t.Run("foreign cryptosuite", func(t *testing.T) {
		broken := *w3c
		proof := *w3c.Proof
		proof.Cryptosuite = "ecdsa-2019"
		broken.Proof = &proof

		_, err := FromW3C(&broken)
		require.True(t, errors.Is(err, Input))
	})

	t.Run("bad proof value", func(t *testing.T) {
		broken := *w3c
		proof := *w3c.Proof
		proof.ProofValue = "zzzzz###"
		broken.Proof = &proof

		_, err := FromW3C(&broken)
		require.True(t, errors.Is(err, Input))
	})
}
