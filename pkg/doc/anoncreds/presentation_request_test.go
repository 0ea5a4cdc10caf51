/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPresentationRequestJSON = `{
  "name": "proof of degree",
  "version": "1.0",
  "nonce": "1177620373384011771268103",
  "requested_attributes": {
    "attr1_referent": {"name": "name"},
    "attr2_referent": {
      "names": ["name", "gpa"],
      "restrictions": [{"cred_def_id": "NcYxiDXkpYi6ov5FcYDi1e:3:CL:12:tag"}]
    }
  },
  "requested_predicates": {
    "pred1_referent": {"name": "gpa_int", "p_type": ">=", "p_value": 3}
  }
}`

func TestParsePresentationRequest(t *testing.T) {
	request, err := ParsePresentationRequest([]byte(testPresentationRequestJSON))
	require.NoError(t, err)

	require.Equal(t, "proof of degree", request.Name)
	require.Equal(t, "1177620373384011771268103", request.Nonce)
	require.Len(t, request.RequestedAttributes, 2)
	require.Len(t, request.RequestedPredicates, 1)
	require.Equal(t, []string{"attr1_referent", "attr2_referent"}, request.AttributeReferents())
	require.Equal(t, []string{"pred1_referent"}, request.PredicateReferents())

	pred := request.RequestedPredicates["pred1_referent"]
	require.Equal(t, PredicateGE, pred.PType)
	require.Equal(t, int32(3), pred.PValue)
}

func TestParsePresentationRequestRejects(t *testing.T) {
	cases := map[string]string{
		"missing nonce":        `{"name":"p","version":"1.0"}`,
		"non decimal nonce":    `{"name":"p","version":"1.0","nonce":"0x12"}`,
		"unknown field":        `{"name":"p","version":"1.0","nonce":"1","requested_attributes":{"r":{"name":"a","reveal":true}}}`,
		"bad predicate type":   `{"name":"p","version":"1.0","nonce":"1","requested_predicates":{"r":{"name":"a","p_type":"!=","p_value":1}}}`,
		"missing p_value":      `{"name":"p","version":"1.0","nonce":"1","requested_predicates":{"r":{"name":"a","p_type":">="}}}`,
		"name and names both":  `{"name":"p","version":"1.0","nonce":"1","requested_attributes":{"r":{"name":"a","names":["b"]}}}`,
		"name and names empty": `{"name":"p","version":"1.0","nonce":"1","requested_attributes":{"r":{}}}`,
		"empty names list":     `{"name":"p","version":"1.0","nonce":"1","requested_attributes":{"r":{"names":[]}}}`,
	}

	for label, raw := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := ParsePresentationRequest([]byte(raw))
			require.Error(t, err)
			require.True(t, errors.Is(err, Input), "kind of %v", err)
		})
	}
}

func TestNonRevokedIntervalCovers(t *testing.T) {
	require.True(t, (*NonRevokedInterval)(nil).Covers(5))
	require.True(t, (&NonRevokedInterval{From: 3, To: 9}).Covers(5))
	require.False(t, (&NonRevokedInterval{From: 6}).Covers(5))
	require.False(t, (&NonRevokedInterval{To: 4}).Covers(5))
	require.True(t, (&NonRevokedInterval{}).Covers(5))
}

func TestMatchesRestrictions(t *testing.T) {
	cred := testCredential(t)
	cred.RevRegID = testRevRegID

	t.Run("no restrictions match everything", func(t *testing.T) {
		ok, err := MatchesRestrictions(cred, nil)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("exact field match", func(t *testing.T) {
		ok, err := MatchesRestrictions(cred, []map[string]string{{"cred_def_id": testCredDefID}})
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("derived schema parts match", func(t *testing.T) {
		ok, err := MatchesRestrictions(cred, []map[string]string{{
			"schema_name":       "degree",
			"schema_version":    "1.0",
			"schema_issuer_did": "NcYxiDXkpYi6ov5FcYDi1e",
			"issuer_did":        "NcYxiDXkpYi6ov5FcYDi1e",
		}})
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("alternative clauses", func(t *testing.T) {
		ok, err := MatchesRestrictions(cred, []map[string]string{
			{"cred_def_id": "OtherDid:3:CL:9:tag"},
			{"schema_id": testSchemaID},
		})
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("all clauses miss", func(t *testing.T) {
		ok, err := MatchesRestrictions(cred, []map[string]string{
			{"cred_def_id": "OtherDid:3:CL:9:tag"},
			{"schema_name": "employment"},
		})
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("unknown field never matches", func(t *testing.T) {
		ok, err := MatchesRestrictions(cred, []map[string]string{{"vault_id": "x"}})
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("attribute value and marker", func(t *testing.T) {
		ok, err := MatchesRestrictions(cred, []map[string]string{{
			"attr::name::value": "Alice",
			"attr::gpa::marker": "1",
		}})
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = MatchesRestrictions(cred, []map[string]string{{"attr::name::value": "Bob"}})
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestMatchesIdentifierRestrictions(t *testing.T) {
	identifier := &Identifier{
		SchemaID:  testSchemaID,
		CredDefID: testCredDefID,
		RevRegID:  testRevRegID,
	}
	revealed := map[string]string{"name": "Alice"}

	t.Run("identifier fields and revealed values", func(t *testing.T) {
		ok, err := MatchesIdentifierRestrictions(identifier, revealed, []map[string]string{{
			"rev_reg_id":        testRevRegID,
			"attr::name::value": "Alice",
		}})
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("unrevealed attribute cannot match", func(t *testing.T) {
		ok, err := MatchesIdentifierRestrictions(identifier, revealed,
			[]map[string]string{{"attr::gpa::value": "3.9"}})
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("no restrictions", func(t *testing.T) {
		ok, err := MatchesIdentifierRestrictions(identifier, nil, nil)
		require.NoError(t, err)
		require.True(t, ok)
	})
}
