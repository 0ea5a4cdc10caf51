/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"context"
	"fmt"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
)

var restrictionLang = gval.Full(jsonpath.PlaceholderExtension()) //nolint:gochecknoglobals

// MatchesRestrictions reports whether the credential satisfies one of the
// restriction clauses. Clauses are alternatives; within a clause every
// field must match. An empty restriction list matches everything.
func MatchesRestrictions(cred *Credential, restrictions []map[string]string) (bool, error) {
	if len(restrictions) == 0 {
		return true, nil
	}

	return matchRestrictions(cred.restrictionDocument(), restrictions)
}

// MatchesIdentifierRestrictions is the verifier-side check: it evaluates the
// clauses against a sub-proof identifier and the attribute values revealed
// from it, the only credential facets a presentation discloses.
func MatchesIdentifierRestrictions(identifier *Identifier, revealed map[string]string,
	restrictions []map[string]string) (bool, error) {
	if len(restrictions) == 0 {
		return true, nil
	}

	doc := restrictionDocument(identifier.SchemaID, identifier.CredDefID, identifier.RevRegID, revealed)

	return matchRestrictions(doc, restrictions)
}

func matchRestrictions(doc map[string]interface{}, restrictions []map[string]string) (bool, error) {
	for _, clause := range restrictions {
		matched, err := matchClause(doc, clause)
		if err != nil {
			return false, err
		}

		if matched {
			return true, nil
		}
	}

	return false, nil
}

func matchClause(doc map[string]interface{}, clause map[string]string) (bool, error) {
	for field, want := range clause {
		eval, err := restrictionLang.NewEvaluable(fmt.Sprintf("$[%q]", field))
		if err != nil {
			return false, NewErrorf(Input, "restriction field %q: %w", field, err)
		}

		got, err := eval(context.Background(), doc)
		if err != nil {
			// the credential has no such field
			return false, nil
		}

		if value, ok := got.(string); !ok || value != want {
			return false, nil
		}
	}

	return true, nil
}

// restrictionDocument projects the credential facets restrictions can match
// on: the identifier fields, the origin/name/version parts embedded in
// legacy-format identifiers, and the attr::<name>::value / attr::<name>::marker
// keys for the known attribute values.
func restrictionDocument(schemaID, credDefID, revRegID string, values map[string]string) map[string]interface{} {
	doc := map[string]interface{}{
		"schema_id":   schemaID,
		"cred_def_id": credDefID,
	}

	if revRegID != "" {
		doc["rev_reg_id"] = revRegID
	}

	if parts := strings.Split(schemaID, ":"); len(parts) == 4 && parts[1] == "2" {
		doc["schema_issuer_did"] = parts[0]
		doc["schema_name"] = parts[2]
		doc["schema_version"] = parts[3]
	}

	if parts := strings.Split(credDefID, ":"); len(parts) >= 3 && parts[1] == "3" {
		doc["issuer_did"] = parts[0]
	}

	for name, raw := range values {
		doc["attr::"+name+"::value"] = raw
		doc["attr::"+name+"::marker"] = "1"
	}

	return doc
}

func (c *Credential) restrictionDocument() map[string]interface{} {
	values := make(map[string]string, len(c.Values))
	for name, value := range c.Values {
		values[name] = value.Raw
	}

	return restrictionDocument(c.SchemaID, c.CredDefID, c.RevRegID, values)
}
