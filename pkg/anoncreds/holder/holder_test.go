/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package holder_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/holder"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/issuer"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/revocation"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

const testDID = "55GkHamhTU1ZbTbV2ab9DE"

// exchange wires an issuer and a holder around one credential definition.
type exchange struct {
	iss       *issuer.Issuer
	hld       *holder.Holder
	schema    *anoncreds.Schema
	defResult *issuer.CredentialDefinitionResult
	ms        *anoncreds.MasterSecret
	values    anoncreds.CredentialValues
}

func newExchange(t *testing.T, attrs []string, raw map[string]string, supportRevocation bool) *exchange {
	t.Helper()

	iss := issuer.New()
	hld := holder.New()

	schema, err := iss.CreateSchema(testDID, "degree", "1.0", attrs)
	require.NoError(t, err)

	defResult, err := iss.CreateCredentialDefinition(testDID, schema, "tag1", "", supportRevocation)
	require.NoError(t, err)

	ms, err := hld.CreateMasterSecret()
	require.NoError(t, err)

	values, err := anoncreds.NewCredentialValues(raw)
	require.NoError(t, err)

	return &exchange{
		iss:       iss,
		hld:       hld,
		schema:    schema,
		defResult: defResult,
		ms:        ms,
		values:    values,
	}
}

// issueRaw runs the exchange up to the issuer's signature, before the holder
// folds in the blinding data.
func (x *exchange) issueRaw(t *testing.T,
	rev *issuer.RevocationInfo) (*anoncreds.Credential, *anoncreds.CredentialRequestMetadata, *issuer.CreateCredentialResult) {
	t.Helper()

	offer, err := x.iss.CreateCredentialOffer(x.defResult.Definition, x.defResult.Proof)
	require.NoError(t, err)

	reqResult, err := x.hld.CreateCredentialRequest("", x.defResult.Definition, x.ms, "default", offer)
	require.NoError(t, err)

	result, err := x.iss.CreateCredential(&issuer.CreateCredentialRequest{
		CredDef:        x.defResult.Definition,
		CredDefPrivate: x.defResult.Private,
		Offer:          offer,
		Request:        reqResult.Request,
		Values:         x.values,
		Revocation:     rev,
	})
	require.NoError(t, err)

	return result.Credential, reqResult.Metadata, result
}

// issue runs the full exchange and returns the processed credential.
func (x *exchange) issue(t *testing.T, rev *issuer.RevocationInfo,
	revRegDef *anoncreds.RevocationRegistryDefinition) (*anoncreds.Credential, *issuer.CreateCredentialResult) {
	t.Helper()

	cred, metadata, result := x.issueRaw(t, rev)

	processed, err := x.hld.ProcessCredential(cred, metadata, x.ms, x.defResult.Definition, revRegDef)
	require.NoError(t, err)

	return processed, result
}

func newPresentationRequest(t *testing.T, attrs map[string]*anoncreds.AttributeRequest,
	preds map[string]*anoncreds.PredicateRequest, nr *anoncreds.NonRevokedInterval) *anoncreds.PresentationRequest {
	t.Helper()

	nonce, err := anoncreds.GenerateNonce()
	require.NoError(t, err)

	return &anoncreds.PresentationRequest{
		Name:                "proof1",
		Version:             "1.0",
		Nonce:               nonce,
		RequestedAttributes: attrs,
		RequestedPredicates: preds,
		NonRevoked:          nr,
	}
}

func TestCreateMasterSecret(t *testing.T) {
	hld := holder.New()

	first, err := hld.CreateMasterSecret()
	require.NoError(t, err)
	require.NotEmpty(t, first.Value)
	require.NoError(t, first.Validate())

	second, err := hld.CreateMasterSecret()
	require.NoError(t, err)
	require.NotEqual(t, string(first.Value), string(second.Value))
}

func TestCreateCredentialRequest(t *testing.T) {
	x := newExchange(t, []string{"name", "gpa"}, map[string]string{"name": "Alice", "gpa": "3.9"}, false)

	offer, err := x.iss.CreateCredentialOffer(x.defResult.Definition, x.defResult.Proof)
	require.NoError(t, err)

	t.Run("creates request and metadata", func(t *testing.T) {
		result, err := x.hld.CreateCredentialRequest(testDID, x.defResult.Definition, x.ms, "secret1", offer)
		require.NoError(t, err)

		request := result.Request
		require.Equal(t, testDID, request.ProverDID)
		require.Equal(t, x.defResult.Definition.ID, request.CredDefID)
		require.NotEmpty(t, request.BlindedMS)
		require.NotEmpty(t, request.BlindedMSCorrectnessProof)
		require.NotEmpty(t, request.Nonce)
		require.NoError(t, request.Validate())

		metadata := result.Metadata
		require.NotEmpty(t, metadata.MasterSecretBlindingData)
		require.Equal(t, request.Nonce, metadata.Nonce)
		require.Equal(t, "secret1", metadata.MasterSecretName)

		second, err := x.hld.CreateCredentialRequest(testDID, x.defResult.Definition, x.ms, "secret1", offer)
		require.NoError(t, err)
		require.NotEqual(t, request.Nonce, second.Request.Nonce)
	})

	t.Run("rejects foreign key correctness proof", func(t *testing.T) {
		other, err := x.iss.CreateCredentialDefinition(testDID, x.schema, "other", "", false)
		require.NoError(t, err)

		forged := *offer
		forged.KeyCorrectnessProof = other.Proof

		_, err = x.hld.CreateCredentialRequest("", x.defResult.Definition, x.ms, "secret1", &forged)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := x.hld.CreateCredentialRequest("", nil, x.ms, "secret1", offer)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		_, err = x.hld.CreateCredentialRequest("", x.defResult.Definition, nil, "secret1", offer)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		_, err = x.hld.CreateCredentialRequest("", x.defResult.Definition, x.ms, "secret1", nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		_, err = x.hld.CreateCredentialRequest("", x.defResult.Definition, x.ms, "", offer)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		mismatched := *offer
		mismatched.CredDefID = testDID + ":3:CL:99:other"

		_, err = x.hld.CreateCredentialRequest("", x.defResult.Definition, x.ms, "secret1", &mismatched)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})
}

func TestProcessCredential(t *testing.T) {
	x := newExchange(t, []string{"name", "gpa"}, map[string]string{"name": "Alice", "gpa": "3.9"}, false)

	t.Run("finalizes received credential", func(t *testing.T) {
		cred, metadata, _ := x.issueRaw(t, nil)
		before := string(cred.Signature)

		processed, err := x.hld.ProcessCredential(cred, metadata, x.ms, x.defResult.Definition, nil)
		require.NoError(t, err)

		require.NotEqual(t, before, string(processed.Signature))
		require.Equal(t, before, string(cred.Signature))
		require.NoError(t, processed.Validate())

		require.Equal(t, "Alice", processed.Values["name"].Raw)
		require.Equal(t, "3.9", processed.Values["gpa"].Raw)

		schemaID, err := processed.Attribute("schema_id")
		require.NoError(t, err)
		require.Equal(t, x.schema.ID, schemaID)

		credDefID, err := processed.Attribute("cred_def_id")
		require.NoError(t, err)
		require.Equal(t, x.defResult.Definition.ID, credDefID)

		revRegID, err := processed.Attribute("rev_reg_id")
		require.NoError(t, err)
		require.Empty(t, revRegID)

		_, err = processed.Attribute("value")
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})

	t.Run("rejects wrong master secret", func(t *testing.T) {
		cred, metadata, _ := x.issueRaw(t, nil)

		other, err := x.hld.CreateMasterSecret()
		require.NoError(t, err)

		_, err = x.hld.ProcessCredential(cred, metadata, other, x.defResult.Definition, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})

	t.Run("rejects foreign blinding data", func(t *testing.T) {
		cred, _, _ := x.issueRaw(t, nil)
		_, foreignMetadata, _ := x.issueRaw(t, nil)

		_, err := x.hld.ProcessCredential(cred, foreignMetadata, x.ms, x.defResult.Definition, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})

	t.Run("rejects mismatched definitions", func(t *testing.T) {
		cred, metadata, _ := x.issueRaw(t, nil)

		otherDef := *x.defResult.Definition
		otherDef.ID = testDID + ":3:CL:99:other"

		_, err := x.hld.ProcessCredential(cred, metadata, x.ms, &otherDef, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		_, err = x.hld.ProcessCredential(cred, metadata, x.ms, x.defResult.Definition,
			&anoncreds.RevocationRegistryDefinition{ID: testDID + ":4:cd:CL_ACCUM:tag1"})
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})

	t.Run("rejects missing input", func(t *testing.T) {
		cred, metadata, _ := x.issueRaw(t, nil)

		_, err := x.hld.ProcessCredential(nil, metadata, x.ms, x.defResult.Definition, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		_, err = x.hld.ProcessCredential(cred, nil, x.ms, x.defResult.Definition, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		_, err = x.hld.ProcessCredential(cred, metadata, nil, x.defResult.Definition, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		_, err = x.hld.ProcessCredential(cred, metadata, x.ms, nil, nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})
}

func TestCreatePresentation(t *testing.T) {
	x := newExchange(t, []string{"name", "age", "gpa"},
		map[string]string{"name": "Alice", "age": "28", "gpa": "3.9"}, false)

	cred, _ := x.issue(t, nil, nil)

	input := func(request *anoncreds.PresentationRequest, proves []*holder.CredentialProve) *holder.CreatePresentationRequest {
		return &holder.CreatePresentationRequest{
			Request:      request,
			Entries:      []*holder.CredentialEntry{{Credential: cred}},
			Proves:       proves,
			MasterSecret: x.ms,
			Schemas:      []*anoncreds.Schema{x.schema},
			SchemaIDs:    []string{x.schema.ID},
			CredDefs:     []*anoncreds.CredentialDefinition{x.defResult.Definition},
			CredDefIDs:   []string{x.defResult.Definition.ID},
		}
	}

	t.Run("proves attributes and predicates", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{
				"attr1_referent": {Name: "name"},
				"attr2_referent": {Name: "gpa"},
			},
			map[string]*anoncreds.PredicateRequest{
				"predicate1_referent": {Name: "age", PType: anoncreds.PredicateGE, PValue: 18},
			}, nil)

		presentation, err := x.hld.CreatePresentation(input(request, []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "attr1_referent", Reveal: true},
			{EntryIdx: 0, Referent: "attr2_referent"},
			{EntryIdx: 0, Referent: "predicate1_referent", IsPredicate: true},
		}))
		require.NoError(t, err)
		require.NoError(t, presentation.Validate())
		require.NotEmpty(t, presentation.Proof)

		revealed := presentation.RequestedProof.RevealedAttrs["attr1_referent"]
		require.NotNil(t, revealed)
		require.Equal(t, int32(0), revealed.SubProofIndex)
		require.Equal(t, "Alice", revealed.Raw)
		require.Equal(t, cred.Values["name"].Encoded, revealed.Encoded)

		require.Contains(t, presentation.RequestedProof.UnrevealedAttrs, "attr2_referent")
		require.Contains(t, presentation.RequestedProof.Predicates, "predicate1_referent")
		require.Empty(t, presentation.RequestedProof.SelfAttestedAttrs)

		require.Len(t, presentation.Identifiers, 1)
		require.Equal(t, x.schema.ID, presentation.Identifiers[0].SchemaID)
		require.Equal(t, x.defResult.Definition.ID, presentation.Identifiers[0].CredDefID)
		require.Empty(t, presentation.Identifiers[0].RevRegID)
		require.Nil(t, presentation.Identifiers[0].Timestamp)
	})

	t.Run("reveals attribute groups", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{
				"group1_referent": {Names: []string{"name", "gpa"}},
			}, nil, nil)

		presentation, err := x.hld.CreatePresentation(input(request, []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "group1_referent", Reveal: true},
		}))
		require.NoError(t, err)

		group := presentation.RequestedProof.RevealedAttrGroups["group1_referent"]
		require.NotNil(t, group)
		require.Equal(t, int32(0), group.SubProofIndex)
		require.Equal(t, cred.Values["name"], group.Values["name"])
		require.Equal(t, cred.Values["gpa"], group.Values["gpa"])

		_, err = x.hld.CreatePresentation(input(request, []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "group1_referent", Reveal: false},
		}))
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})

	t.Run("carries self-attested attributes", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{
				"attr1_referent": {Name: "name"},
				"attr9_referent": {Name: "email"},
			}, nil, nil)

		in := input(request, []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "attr1_referent", Reveal: true},
		})
		in.SelfAttestNames = []string{"attr9_referent"}
		in.SelfAttestValues = []string{"alice@example.com"}

		presentation, err := x.hld.CreatePresentation(in)
		require.NoError(t, err)

		require.Equal(t, map[string]string{"attr9_referent": "alice@example.com"},
			presentation.RequestedProof.SelfAttestedAttrs)
		require.NotContains(t, presentation.RequestedProof.RevealedAttrs, "attr9_referent")
	})

	t.Run("rejects unprovable predicates", func(t *testing.T) {
		cases := []struct {
			name string
			pred *anoncreds.PredicateRequest
		}{
			{"unsatisfied bound", &anoncreds.PredicateRequest{Name: "age", PType: anoncreds.PredicateGE, PValue: 30}},
			{"non-integer attribute", &anoncreds.PredicateRequest{Name: "gpa", PType: anoncreds.PredicateGE, PValue: 1}},
			{"missing attribute", &anoncreds.PredicateRequest{Name: "height", PType: anoncreds.PredicateGE, PValue: 1}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				request := newPresentationRequest(t, nil,
					map[string]*anoncreds.PredicateRequest{"predicate1_referent": tc.pred}, nil)

				_, err := x.hld.CreatePresentation(input(request, []*holder.CredentialProve{
					{EntryIdx: 0, Referent: "predicate1_referent", IsPredicate: true},
				}))
				require.Error(t, err)
				require.True(t, errors.Is(err, anoncreds.Input))
			})
		}
	})

	t.Run("rejects referent accounting failures", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{
				"attr1_referent": {Name: "name"},
				"attr2_referent": {Name: "gpa"},
			},
			map[string]*anoncreds.PredicateRequest{
				"predicate1_referent": {Name: "age", PType: anoncreds.PredicateGE, PValue: 18},
			}, nil)

		full := []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "attr1_referent", Reveal: true},
			{EntryIdx: 0, Referent: "attr2_referent"},
			{EntryIdx: 0, Referent: "predicate1_referent", IsPredicate: true},
		}

		cases := []struct {
			name   string
			modify func(in *holder.CreatePresentationRequest)
		}{
			{"unanswered referent", func(in *holder.CreatePresentationRequest) {
				in.Proves = full[:2]
			}},
			{"duplicate answer", func(in *holder.CreatePresentationRequest) {
				in.Proves = append(append([]*holder.CredentialProve{}, full...), full[0])
			}},
			{"unknown attribute referent", func(in *holder.CreatePresentationRequest) {
				in.Proves = append(append([]*holder.CredentialProve{}, full...),
					&holder.CredentialProve{EntryIdx: 0, Referent: "bogus_referent"})
			}},
			{"unknown predicate referent", func(in *holder.CreatePresentationRequest) {
				in.Proves = append(append([]*holder.CredentialProve{}, full...),
					&holder.CredentialProve{EntryIdx: 0, Referent: "bogus_referent", IsPredicate: true})
			}},
			{"revealed predicate", func(in *holder.CreatePresentationRequest) {
				in.Proves = append(append([]*holder.CredentialProve{}, full[:2]...),
					&holder.CredentialProve{EntryIdx: 0, Referent: "predicate1_referent", IsPredicate: true, Reveal: true})
			}},
			{"entry index out of range", func(in *holder.CreatePresentationRequest) {
				in.Proves = append(append([]*holder.CredentialProve{}, full[:2]...),
					&holder.CredentialProve{EntryIdx: 5, Referent: "predicate1_referent", IsPredicate: true})
			}},
			{"negative entry index", func(in *holder.CreatePresentationRequest) {
				in.Proves = append(append([]*holder.CredentialProve{}, full[:2]...),
					&holder.CredentialProve{EntryIdx: -1, Referent: "predicate1_referent", IsPredicate: true})
			}},
			{"unreferenced entry", func(in *holder.CreatePresentationRequest) {
				in.Entries = append(in.Entries, &holder.CredentialEntry{Credential: cred})
			}},
			{"self-attested unknown referent", func(in *holder.CreatePresentationRequest) {
				in.SelfAttestNames = []string{"bogus_referent"}
				in.SelfAttestValues = []string{"value"}
			}},
			{"self-attested predicate referent", func(in *holder.CreatePresentationRequest) {
				in.SelfAttestNames = []string{"predicate1_referent"}
				in.SelfAttestValues = []string{"value"}
			}},
			{"self-attested duplicate of proves row", func(in *holder.CreatePresentationRequest) {
				in.SelfAttestNames = []string{"attr1_referent"}
				in.SelfAttestValues = []string{"Alice"}
			}},
			{"misaligned self-attested lists", func(in *holder.CreatePresentationRequest) {
				in.SelfAttestNames = []string{"attr1_referent"}
			}},
			{"empty self-attested value", func(in *holder.CreatePresentationRequest) {
				in.Proves = full[1:]
				in.SelfAttestNames = []string{"attr1_referent"}
				in.SelfAttestValues = []string{""}
			}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				in := input(request, full)
				tc.modify(in)

				_, err := x.hld.CreatePresentation(in)
				require.Error(t, err)
				require.True(t, errors.Is(err, anoncreds.Input))
			})
		}
	})

	t.Run("rejects incomplete lookup tables", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{"attr1_referent": {Name: "name"}}, nil, nil)

		proves := []*holder.CredentialProve{{EntryIdx: 0, Referent: "attr1_referent", Reveal: true}}

		cases := []struct {
			name   string
			modify func(in *holder.CreatePresentationRequest)
		}{
			{"misaligned schema lists", func(in *holder.CreatePresentationRequest) {
				in.SchemaIDs = nil
			}},
			{"missing schema", func(in *holder.CreatePresentationRequest) {
				in.SchemaIDs = []string{testDID + ":2:other:1.0"}
			}},
			{"missing credential definition", func(in *holder.CreatePresentationRequest) {
				in.CredDefIDs = []string{testDID + ":3:CL:99:other"}
			}},
			{"null schema", func(in *holder.CreatePresentationRequest) {
				in.Schemas = []*anoncreds.Schema{nil}
			}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				in := input(request, proves)
				tc.modify(in)

				_, err := x.hld.CreatePresentation(in)
				require.Error(t, err)
				require.True(t, errors.Is(err, anoncreds.Input))
			})
		}
	})

	t.Run("rejects missing input", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{"attr1_referent": {Name: "name"}}, nil, nil)

		proves := []*holder.CredentialProve{{EntryIdx: 0, Referent: "attr1_referent", Reveal: true}}

		_, err := x.hld.CreatePresentation(nil)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		in := input(request, proves)
		in.Request = nil
		_, err = x.hld.CreatePresentation(in)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		in = input(request, proves)
		in.MasterSecret = nil
		_, err = x.hld.CreatePresentation(in)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		in = input(request, proves)
		in.Entries = nil
		_, err = x.hld.CreatePresentation(in)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))

		in = input(request, proves)
		in.Entries = []*holder.CredentialEntry{{}}
		_, err = x.hld.CreatePresentation(in)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})
}

func TestCreatePresentationRestrictions(t *testing.T) {
	x := newExchange(t, []string{"name", "age"}, map[string]string{"name": "Alice", "age": "28"}, false)

	cred, _ := x.issue(t, nil, nil)

	input := func(request *anoncreds.PresentationRequest, proves []*holder.CredentialProve) *holder.CreatePresentationRequest {
		return &holder.CreatePresentationRequest{
			Request:      request,
			Entries:      []*holder.CredentialEntry{{Credential: cred}},
			Proves:       proves,
			MasterSecret: x.ms,
			Schemas:      []*anoncreds.Schema{x.schema},
			SchemaIDs:    []string{x.schema.ID},
			CredDefs:     []*anoncreds.CredentialDefinition{x.defResult.Definition},
			CredDefIDs:   []string{x.defResult.Definition.ID},
		}
	}

	t.Run("credential satisfying restrictions proves", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{
				"attr1_referent": {Name: "name", Restrictions: []map[string]string{{
					"cred_def_id":       x.defResult.Definition.ID,
					"attr::name::value": "Alice",
				}}},
			},
			map[string]*anoncreds.PredicateRequest{
				"predicate1_referent": {
					Name: "age", PType: anoncreds.PredicateGE, PValue: 18,
					Restrictions: []map[string]string{{"schema_id": x.schema.ID}},
				},
			}, nil)

		presentation, err := x.hld.CreatePresentation(input(request, []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "attr1_referent", Reveal: true},
			{EntryIdx: 0, Referent: "predicate1_referent", IsPredicate: true},
		}))
		require.NoError(t, err)
		require.NoError(t, presentation.Validate())
	})

	t.Run("rejects attribute restriction miss", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{
				"attr1_referent": {Name: "name", Restrictions: []map[string]string{{
					"cred_def_id": testDID + ":3:CL:99:other",
				}}},
			}, nil, nil)

		_, err := x.hld.CreatePresentation(input(request, []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "attr1_referent", Reveal: true},
		}))
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
		require.Contains(t, err.Error(), "restrictions")
	})

	t.Run("rejects predicate restriction miss", func(t *testing.T) {
		request := newPresentationRequest(t, nil,
			map[string]*anoncreds.PredicateRequest{
				"predicate1_referent": {
					Name: "age", PType: anoncreds.PredicateGE, PValue: 18,
					Restrictions: []map[string]string{{"attr::name::value": "Bob"}},
				},
			}, nil)

		_, err := x.hld.CreatePresentation(input(request, []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "predicate1_referent", IsPredicate: true},
		}))
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})

	t.Run("rejects self-attestation of restricted referent", func(t *testing.T) {
		request := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{
				"attr1_referent": {Name: "name"},
				"attr2_referent": {Name: "email", Restrictions: []map[string]string{{
					"schema_id": x.schema.ID,
				}}},
			}, nil, nil)

		in := input(request, []*holder.CredentialProve{
			{EntryIdx: 0, Referent: "attr1_referent", Reveal: true},
		})
		in.SelfAttestNames = []string{"attr2_referent"}
		in.SelfAttestValues = []string{"alice@example.com"}

		_, err := x.hld.CreatePresentation(in)
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})
}

func TestCreatePresentationRevocable(t *testing.T) {
	x := newExchange(t, []string{"name", "age"}, map[string]string{"name": "Alice", "age": "28"}, true)
	eng := revocation.New()

	registry, err := eng.CreateRegistry(&revocation.CreateRegistryRequest{
		OriginDID:  testDID,
		CredDef:    x.defResult.Definition,
		Tag:        "tag1",
		MaxCredNum: 3,
		TailsDir:   t.TempDir(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = registry.Tails.Close()
	})

	cred, issueResult := x.issue(t, &issuer.RevocationInfo{
		Definition: registry.Definition,
		Private:    registry.Private,
		State:      registry.State,
		Tails:      registry.Tails,
	}, registry.Definition)

	state, err := eng.CreateOrUpdateState(&revocation.StateRequest{
		Definition: registry.Definition,
		State:      issueResult.RegistryState,
		Index:      cred.RevocationIndex(),
		Tails:      registry.Tails,
		Witness:    cred.Witness,
		Timestamp:  100,
	})
	require.NoError(t, err)

	request := newPresentationRequest(t,
		map[string]*anoncreds.AttributeRequest{"attr1_referent": {Name: "name"}}, nil,
		&anoncreds.NonRevokedInterval{To: 200})

	proves := []*holder.CredentialProve{{EntryIdx: 0, Referent: "attr1_referent", Reveal: true}}

	input := func(entry *holder.CredentialEntry, request *anoncreds.PresentationRequest) *holder.CreatePresentationRequest {
		return &holder.CreatePresentationRequest{
			Request:      request,
			Entries:      []*holder.CredentialEntry{entry},
			Proves:       proves,
			MasterSecret: x.ms,
			Schemas:      []*anoncreds.Schema{x.schema},
			SchemaIDs:    []string{x.schema.ID},
			CredDefs:     []*anoncreds.CredentialDefinition{x.defResult.Definition},
			CredDefIDs:   []string{x.defResult.Definition.ID},
		}
	}

	t.Run("proves non-revocation", func(t *testing.T) {
		presentation, err := x.hld.CreatePresentation(
			input(&holder.CredentialEntry{Credential: cred, Timestamp: 100, State: state}, request))
		require.NoError(t, err)
		require.NoError(t, presentation.Validate())

		require.Len(t, presentation.Identifiers, 1)
		require.Equal(t, registry.Definition.ID, presentation.Identifiers[0].RevRegID)
		require.NotNil(t, presentation.Identifiers[0].Timestamp)
		require.Equal(t, uint64(100), *presentation.Identifiers[0].Timestamp)
	})

	t.Run("falls back to the state timestamp", func(t *testing.T) {
		presentation, err := x.hld.CreatePresentation(
			input(&holder.CredentialEntry{Credential: cred, State: state}, request))
		require.NoError(t, err)

		require.NotNil(t, presentation.Identifiers[0].Timestamp)
		require.Equal(t, uint64(100), *presentation.Identifiers[0].Timestamp)
	})

	t.Run("uses the referent interval when the request has none", func(t *testing.T) {
		scoped := newPresentationRequest(t,
			map[string]*anoncreds.AttributeRequest{
				"attr1_referent": {Name: "name", NonRevoked: &anoncreds.NonRevokedInterval{To: 200}},
			}, nil, nil)

		presentation, err := x.hld.CreatePresentation(
			input(&holder.CredentialEntry{Credential: cred, State: state}, scoped))
		require.NoError(t, err)

		require.NotNil(t, presentation.Identifiers[0].Timestamp)
	})

	t.Run("requires a revocation state", func(t *testing.T) {
		_, err := x.hld.CreatePresentation(
			input(&holder.CredentialEntry{Credential: cred, Timestamp: 100}, request))
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.Input))
	})

	t.Run("skips non-revocation for non-revocable credentials", func(t *testing.T) {
		plain := newExchange(t, []string{"name", "age"}, map[string]string{"name": "Bob", "age": "30"}, false)
		plainCred, _ := plain.issue(t, nil, nil)

		presentation, err := plain.hld.CreatePresentation(&holder.CreatePresentationRequest{
			Request:      request,
			Entries:      []*holder.CredentialEntry{{Credential: plainCred}},
			Proves:       proves,
			MasterSecret: plain.ms,
			Schemas:      []*anoncreds.Schema{plain.schema},
			SchemaIDs:    []string{plain.schema.ID},
			CredDefs:     []*anoncreds.CredentialDefinition{plain.defResult.Definition},
			CredDefIDs:   []string{plain.defResult.Definition.ID},
		})
		require.NoError(t, err)

		require.Empty(t, presentation.Identifiers[0].RevRegID)
		require.Nil(t, presentation.Identifiers[0].Timestamp)
	})

	t.Run("reports a revoked credential", func(t *testing.T) {
		revokedState, _, err := eng.Revoke(registry.Definition, issueResult.RegistryState,
			cred.RevocationIndex(), registry.Tails)
		require.NoError(t, err)

		holderState, err := eng.CreateOrUpdateState(&revocation.StateRequest{
			Definition: registry.Definition,
			State:      revokedState,
			Index:      cred.RevocationIndex(),
			Tails:      registry.Tails,
			Witness:    cred.Witness,
			Timestamp:  200,
		})
		require.NoError(t, err)

		_, err = x.hld.CreatePresentation(
			input(&holder.CredentialEntry{Credential: cred, Timestamp: 200, State: holderState}, request))
		require.Error(t, err)
		require.True(t, errors.Is(err, anoncreds.CredentialRevoked))
	})
}
