/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package bindings_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/bindings"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/revocation"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

const testDID = "55GkHamhTU1ZbTbV2ab9DE"

// exchangeHandles carries the boundary objects of one credential exchange.
type exchangeHandles struct {
	schema  bindings.ObjectHandle
	defs    *bindings.CredentialDefinitionResult
	offer   bindings.ObjectHandle
	secret  bindings.ObjectHandle
	request *bindings.CredentialRequestResult
}

func newExchange(t *testing.T, attrs []string, supportRevocation bool) *exchangeHandles {
	t.Helper()

	schema, err := bindings.CreateSchema(testDID, "degree", "1.0", attrs)
	require.NoError(t, err)

	defs, err := bindings.CreateCredentialDefinition(testDID, schema, "tag1", "", supportRevocation)
	require.NoError(t, err)

	offer, err := bindings.CreateCredentialOffer(defs.CredDef, defs.KeyProof)
	require.NoError(t, err)

	secret, err := bindings.CreateMasterSecret()
	require.NoError(t, err)

	request, err := bindings.CreateCredentialRequest("", defs.CredDef, secret, "default", offer)
	require.NoError(t, err)

	return &exchangeHandles{schema: schema, defs: defs, offer: offer, secret: secret, request: request}
}

// issueCredential runs the exchange end to end and returns the processed
// credential handle.
func issueCredential(t *testing.T, x *exchangeHandles, names, raws []string,
	revocationInfo *bindings.CredentialRevocationInfo) (bindings.ObjectHandle, *bindings.CreateCredentialResult) {
	t.Helper()

	result, err := bindings.CreateCredential(x.defs.CredDef, x.defs.CredDefPrivate, x.offer, x.request.Request,
		names, raws, nil, revocationInfo)
	require.NoError(t, err)

	var revRegDef bindings.ObjectHandle
	if revocationInfo != nil {
		revRegDef = revocationInfo.RegDef
	}

	processed, err := bindings.ProcessCredential(result.Credential, x.request.Metadata, x.secret,
		x.defs.CredDef, revRegDef)
	require.NoError(t, err)

	return processed, result
}

func attributeOf(t *testing.T, cred bindings.ObjectHandle, name string) string {
	t.Helper()

	value, err := bindings.CredentialGetAttribute(cred, name)
	require.NoError(t, err)

	return value
}

func requestFromJSON(t *testing.T, request *anoncreds.PresentationRequest) bindings.ObjectHandle {
	t.Helper()

	raw, err := json.Marshal(request)
	require.NoError(t, err)

	handle, err := bindings.PresentationRequestFromJSON(raw)
	require.NoError(t, err)

	return handle
}

func TestVersion(t *testing.T) {
	require.Equal(t, "0.1.0", bindings.Version())
}

func TestEncodeCredentialAttributes(t *testing.T) {
	encoded := bindings.EncodeCredentialAttributes([]string{"28", "Alice"})
	require.Equal(t, []string{"28", anoncreds.EncodeCredentialAttribute("Alice")}, encoded)
}

func TestObjectRegistry(t *testing.T) {
	schema, err := bindings.CreateSchema(testDID, "degree", "1.0", []string{"name", "age"})
	require.NoError(t, err)
	require.NotZero(t, schema)

	name, err := bindings.ObjectGetTypeName(schema)
	require.NoError(t, err)
	require.Equal(t, "Schema", name)

	buffer, err := bindings.ObjectGetJSON(schema)
	require.NoError(t, err)
	require.NotZero(t, buffer.Len())

	imported, err := bindings.SchemaFromJSON(buffer.Bytes())
	require.NoError(t, err)
	require.NotEqual(t, schema, imported)

	again, err := bindings.ObjectGetJSON(imported)
	require.NoError(t, err)
	require.JSONEq(t, buffer.String(), again.String())

	buffer.Free()
	require.Nil(t, buffer.Bytes())
	require.Zero(t, buffer.Len())
	buffer.Free()
	bindings.FreeByteBuffer(again)

	t.Run("free invalidates the handle", func(t *testing.T) {
		require.NoError(t, bindings.ObjectFree(imported))

		_, err := bindings.ObjectGetJSON(imported)
		require.True(t, errors.Is(err, anoncreds.InvalidState))

		_, err = bindings.ObjectGetTypeName(imported)
		require.True(t, errors.Is(err, anoncreds.InvalidState))

		require.True(t, errors.Is(bindings.ObjectFree(imported), anoncreds.InvalidState))
	})

	t.Run("freed slots are not resurrected", func(t *testing.T) {
		first, err := bindings.CreateSchema(testDID, "degree", "2.0", []string{"name"})
		require.NoError(t, err)
		require.NoError(t, bindings.ObjectFree(first))

		second, err := bindings.CreateSchema(testDID, "degree", "3.0", []string{"name"})
		require.NoError(t, err)
		require.NotEqual(t, first, second)

		_, err = bindings.ObjectGetTypeName(first)
		require.True(t, errors.Is(err, anoncreds.InvalidState))
	})

	t.Run("zero handle", func(t *testing.T) {
		_, err := bindings.ObjectGetTypeName(0)
		require.True(t, errors.Is(err, anoncreds.Input))
		require.True(t, errors.Is(bindings.ObjectFree(0), anoncreds.Input))
	})

	t.Run("wrong object type", func(t *testing.T) {
		_, err := bindings.CredentialGetAttribute(schema, "name")
		require.True(t, errors.Is(err, anoncreds.InvalidState))
		require.ErrorContains(t, err, "Schema")
	})
}

func TestGetCurrentError(t *testing.T) {
	report := struct {
		Code    int32  `json:"code"`
		Message string `json:"message"`
	}{}

	_, err := bindings.CreateSchema(testDID, "", "1.0", []string{"name"})
	require.True(t, errors.Is(err, anoncreds.Input))

	require.NoError(t, json.Unmarshal([]byte(bindings.GetCurrentError()), &report))
	require.Equal(t, anoncreds.Input.Code(), report.Code)
	require.NotEmpty(t, report.Message)

	_, err = bindings.CreateSchema(testDID, "degree", "1.0", []string{"name"})
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal([]byte(bindings.GetCurrentError()), &report))
	require.Zero(t, report.Code)
	require.Empty(t, report.Message)

	t.Run("latest failure wins", func(t *testing.T) {
		_, err := bindings.CreateSchema("", "degree", "1.0", []string{"name"})
		require.Error(t, err)

		_, err = bindings.ObjectGetJSON(0)
		require.Error(t, err)

		require.NoError(t, json.Unmarshal([]byte(bindings.GetCurrentError()), &report))
		require.Equal(t, anoncreds.Input.Code(), report.Code)
		require.Contains(t, report.Message, "handle")
	})

	t.Run("per goroutine", func(t *testing.T) {
		_, err := bindings.ObjectGetJSON(0)
		require.Error(t, err)

		fresh := make(chan string, 1)

		go func() {
			fresh <- bindings.GetCurrentError()
		}()

		require.NoError(t, json.Unmarshal([]byte(<-fresh), &report))
		require.Zero(t, report.Code)

		require.NoError(t, json.Unmarshal([]byte(bindings.GetCurrentError()), &report))
		require.Equal(t, anoncreds.Input.Code(), report.Code)
	})
}

func TestGenerateNonce(t *testing.T) {
	first, err := bindings.GenerateNonce()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := bindings.GenerateNonce()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestPresentationRoundTrip(t *testing.T) {
	x := newExchange(t, []string{"name", "age"}, false)

	cred, _ := issueCredential(t, x, []string{"name", "age"}, []string{"Alice", "28"}, nil)

	require.Equal(t, "Alice", attributeOf(t, cred, "name"))
	require.Equal(t, "28", attributeOf(t, cred, "age"))
	require.NotEmpty(t, attributeOf(t, cred, "schema_id"))

	_, err := bindings.CredentialGetAttribute(cred, "email")
	require.True(t, errors.Is(err, anoncreds.Input))

	nonce, err := bindings.GenerateNonce()
	require.NoError(t, err)

	request := requestFromJSON(t, &anoncreds.PresentationRequest{
		Name:    "proof1",
		Version: "1.0",
		Nonce:   nonce,
		RequestedAttributes: map[string]*anoncreds.AttributeRequest{
			"attr1_referent": {Name: "name"},
		},
		RequestedPredicates: map[string]*anoncreds.PredicateRequest{
			"predicate1_referent": {Name: "age", PType: anoncreds.PredicateGE, PValue: 18},
		},
	})

	schemaID := attributeOf(t, cred, "schema_id")
	credDefID := attributeOf(t, cred, "cred_def_id")

	presentation, err := bindings.CreatePresentation(&bindings.CreatePresentationRequest{
		Request: request,
		Entries: []*bindings.CredentialEntry{{Credential: cred}},
		Proves: []*bindings.CredentialProve{
			{EntryIdx: 0, Referent: "attr1_referent", Reveal: true},
			{EntryIdx: 0, Referent: "predicate1_referent", IsPredicate: true},
		},
		MasterSecret: x.secret,
		Schemas:      []bindings.ObjectHandle{x.schema},
		SchemaIDs:    []string{schemaID},
		CredDefs:     []bindings.ObjectHandle{x.defs.CredDef},
		CredDefIDs:   []string{credDefID},
	})
	require.NoError(t, err)

	verify := func(p bindings.ObjectHandle) (bool, error) {
		return bindings.VerifyPresentation(&bindings.VerifyPresentationRequest{
			Presentation: p,
			Request:      request,
			Schemas:      []bindings.ObjectHandle{x.schema},
			SchemaIDs:    []string{schemaID},
			CredDefs:     []bindings.ObjectHandle{x.defs.CredDef},
			CredDefIDs:   []string{credDefID},
		})
	}

	verified, err := verify(presentation)
	require.NoError(t, err)
	require.True(t, verified)

	t.Run("presentation survives the JSON boundary", func(t *testing.T) {
		buffer, err := bindings.ObjectGetJSON(presentation)
		require.NoError(t, err)

		imported, err := bindings.PresentationFromJSON(buffer.Bytes())
		require.NoError(t, err)

		verified, err := verify(imported)
		require.NoError(t, err)
		require.True(t, verified)
	})

	t.Run("credential survives the JSON boundary", func(t *testing.T) {
		buffer, err := bindings.ObjectGetJSON(cred)
		require.NoError(t, err)

		imported, err := bindings.CredentialFromJSON(buffer.Bytes())
		require.NoError(t, err)
		require.Equal(t, "Alice", attributeOf(t, imported, "name"))
	})

	t.Run("freed credential cannot present", func(t *testing.T) {
		doomed, _ := issueCredential(t, x, []string{"name", "age"}, []string{"Bob", "41"}, nil)
		require.NoError(t, bindings.ObjectFree(doomed))

		_, err := bindings.CreatePresentation(&bindings.CreatePresentationRequest{
			Request:      request,
			Entries:      []*bindings.CredentialEntry{{Credential: doomed}},
			Proves:       []*bindings.CredentialProve{{EntryIdx: 0, Referent: "attr1_referent", Reveal: true}},
			MasterSecret: x.secret,
			Schemas:      []bindings.ObjectHandle{x.schema},
			SchemaIDs:    []string{schemaID},
			CredDefs:     []bindings.ObjectHandle{x.defs.CredDef},
			CredDefIDs:   []string{credDefID},
		})
		require.True(t, errors.Is(err, anoncreds.InvalidState))
	})
}

func TestRevocationLifecycle(t *testing.T) {
	x := newExchange(t, []string{"name"}, true)

	registry, err := bindings.CreateRevocationRegistry(testDID, x.defs.CredDef, "tag1", "", "", 3, t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, bindings.ObjectFree(registry.TailsFile))
	})

	name, err := bindings.ObjectGetTypeName(registry.TailsFile)
	require.NoError(t, err)
	require.Equal(t, "TailsFile", name)

	_, err = bindings.ObjectGetJSON(registry.TailsFile)
	require.True(t, errors.Is(err, anoncreds.Unexpected))

	revRegID, err := bindings.RevocationRegistryDefinitionGetAttribute(registry.RegDef, "id")
	require.NoError(t, err)
	require.NotEmpty(t, revRegID)

	maxCredNum, err := bindings.RevocationRegistryDefinitionGetAttribute(registry.RegDef, "max_cred_num")
	require.NoError(t, err)
	require.Equal(t, "3", maxCredNum)

	tailsHash, err := bindings.RevocationRegistryDefinitionGetAttribute(registry.RegDef, "tails_hash")
	require.NoError(t, err)
	require.NotEmpty(t, tailsHash)

	_, err = bindings.RevocationRegistryDefinitionGetAttribute(registry.RegDef, "gamma")
	require.True(t, errors.Is(err, anoncreds.Input))

	cred, issueResult := issueCredential(t, x, []string{"name"}, []string{"Alice"},
		&bindings.CredentialRevocationInfo{
			RegDef:        registry.RegDef,
			RegDefPrivate: registry.RegDefPrivate,
			RegState:      registry.RegState,
			TailsFile:     registry.TailsFile,
			RegIdx:        1,
		})
	require.NotZero(t, issueResult.RegistryState)
	require.NotZero(t, issueResult.Delta)
	require.Equal(t, "1", attributeOf(t, cred, "rev_reg_index"))
	require.Equal(t, revRegID, attributeOf(t, cred, "rev_reg_id"))

	state, err := bindings.CreateOrUpdateRevocationState(registry.RegDef, issueResult.RegistryState, 1,
		registry.TailsFile, cred, 0, 0, 100)
	require.NoError(t, err)

	name, err = bindings.ObjectGetTypeName(state)
	require.NoError(t, err)
	require.Equal(t, "RevocationState", name)

	nonce, err := bindings.GenerateNonce()
	require.NoError(t, err)

	request := requestFromJSON(t, &anoncreds.PresentationRequest{
		Name:    "proof1",
		Version: "1.0",
		Nonce:   nonce,
		RequestedAttributes: map[string]*anoncreds.AttributeRequest{
			"attr1_referent": {Name: "name"},
		},
		NonRevoked: &anoncreds.NonRevokedInterval{To: 200},
	})

	schemaID := attributeOf(t, cred, "schema_id")
	credDefID := attributeOf(t, cred, "cred_def_id")

	presentation, err := bindings.CreatePresentation(&bindings.CreatePresentationRequest{
		Request:      request,
		Entries:      []*bindings.CredentialEntry{{Credential: cred, Timestamp: 100, RevState: state}},
		Proves:       []*bindings.CredentialProve{{EntryIdx: 0, Referent: "attr1_referent", Reveal: true}},
		MasterSecret: x.secret,
		Schemas:      []bindings.ObjectHandle{x.schema},
		SchemaIDs:    []string{schemaID},
		CredDefs:     []bindings.ObjectHandle{x.defs.CredDef},
		CredDefIDs:   []string{credDefID},
	})
	require.NoError(t, err)

	verify := func(entry bindings.ObjectHandle) (bool, error) {
		return bindings.VerifyPresentation(&bindings.VerifyPresentationRequest{
			Presentation:  presentation,
			Request:       request,
			Schemas:       []bindings.ObjectHandle{x.schema},
			SchemaIDs:     []string{schemaID},
			CredDefs:      []bindings.ObjectHandle{x.defs.CredDef},
			CredDefIDs:    []string{credDefID},
			RevRegDefs:    []bindings.ObjectHandle{registry.RegDef},
			RevRegDefIDs:  []string{revRegID},
			RevRegEntries: []*bindings.RevocationEntry{{DefEntryIdx: 0, Entry: entry, Timestamp: 100}},
		})
	}

	verified, err := verify(issueResult.RegistryState)
	require.NoError(t, err)
	require.True(t, verified)

	t.Run("registry snapshot forms", func(t *testing.T) {
		buffer, err := bindings.ObjectGetJSON(issueResult.RegistryState)
		require.NoError(t, err)

		stateHandle, err := bindings.RevocationRegistryStateFromJSON(buffer.Bytes())
		require.NoError(t, err)

		verified, err := verify(stateHandle)
		require.NoError(t, err)
		require.True(t, verified)

		parsed, err := revocation.ParseState(buffer.Bytes())
		require.NoError(t, err)

		snapshotRaw, err := json.Marshal(parsed.Registry())
		require.NoError(t, err)

		snapshot, err := bindings.RevocationRegistryFromJSON(snapshotRaw)
		require.NoError(t, err)

		verified, err = verify(snapshot)
		require.NoError(t, err)
		require.True(t, verified)

		_, err = verify(x.schema)
		require.True(t, errors.Is(err, anoncreds.InvalidState))
	})

	revokeResult, err := bindings.RevokeCredential(registry.RegDef, issueResult.RegistryState, 1,
		registry.TailsFile)
	require.NoError(t, err)

	t.Run("merged deltas record the net movement", func(t *testing.T) {
		merged, err := bindings.MergeRevocationRegistryDeltas(issueResult.Delta, revokeResult.Delta)
		require.NoError(t, err)

		buffer, err := bindings.ObjectGetJSON(merged)
		require.NoError(t, err)

		delta, err := anoncreds.ParseRevocationRegistryDelta(buffer.Bytes())
		require.NoError(t, err)
		require.Equal(t, []uint32{1}, delta.Value.Revoked)
		require.Empty(t, delta.Value.Issued)
		require.NotEqual(t, delta.Value.PrevAccum, delta.Value.Accum)

		_, err = bindings.MergeRevocationRegistryDeltas(revokeResult.Delta, issueResult.Delta)
		require.True(t, errors.Is(err, anoncreds.Unexpected))
	})

	t.Run("revoking twice fails", func(t *testing.T) {
		_, err := bindings.RevokeCredential(registry.RegDef, revokeResult.RegState, 1, registry.TailsFile)
		require.True(t, errors.Is(err, anoncreds.InvalidUserRevocID))
	})

	t.Run("operations on freed handles fail", func(t *testing.T) {
		require.NoError(t, bindings.ObjectFree(issueResult.Delta))

		_, err := bindings.MergeRevocationRegistryDeltas(issueResult.Delta, revokeResult.Delta)
		require.True(t, errors.Is(err, anoncreds.InvalidState))
	})
}
