/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const basePresentationRequestSchema = `
{
  "type": "object",
  "required": ["name", "version", "nonce"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "nonce": {"type": "string", "pattern": "^[0-9]+$"},
    "requested_attributes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "names": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
          "restrictions": {"$ref": "#/definitions/restrictions"},
          "non_revoked": {"$ref": "#/definitions/nonRevoked"}
        },
        "additionalProperties": false
      }
    },
    "requested_predicates": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["name", "p_type", "p_value"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "p_type": {"enum": [">=", ">", "<=", "<"]},
          "p_value": {"type": "integer"},
          "restrictions": {"$ref": "#/definitions/restrictions"},
          "non_revoked": {"$ref": "#/definitions/nonRevoked"}
        },
        "additionalProperties": false
      }
    },
    "non_revoked": {"$ref": "#/definitions/nonRevoked"}
  },
  "definitions": {
    "restrictions": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": {"type": "string"}
      }
    },
    "nonRevoked": {
      "type": "object",
      "properties": {
        "from": {"type": "integer", "minimum": 0},
        "to": {"type": "integer", "minimum": 0}
      },
      "additionalProperties": false
    }
  }
}`

var basePresentationRequestSchemaLoader = gojsonschema.NewStringLoader(basePresentationRequestSchema) //nolint:gochecknoglobals

// Predicate comparison operators.
const (
	PredicateGE = ">="
	PredicateGT = ">"
	PredicateLE = "<="
	PredicateLT = "<"
)

// PresentationRequest asks a holder to reveal attributes and prove
// predicates, keyed by referent. Each referent must be answered by exactly
// one presentation row.
type PresentationRequest struct {
	Name                string                       `json:"name"`
	Version             string                       `json:"version"`
	Nonce               string                       `json:"nonce"`
	RequestedAttributes map[string]*AttributeRequest `json:"requested_attributes,omitempty"`
	RequestedPredicates map[string]*PredicateRequest `json:"requested_predicates,omitempty"`
	NonRevoked          *NonRevokedInterval          `json:"non_revoked,omitempty"`
}

// AttributeRequest asks for one attribute (Name) or an attribute group
// (Names) from a single credential, optionally restricted to credentials
// matching one of the restriction clauses.
type AttributeRequest struct {
	Name         string              `json:"name,omitempty"`
	Names        []string            `json:"names,omitempty"`
	Restrictions []map[string]string `json:"restrictions,omitempty"`
	NonRevoked   *NonRevokedInterval `json:"non_revoked,omitempty"`
}

// PredicateRequest asks for a comparison proof over one integer-encoded
// attribute without revealing its value.
type PredicateRequest struct {
	Name         string              `json:"name"`
	PType        string              `json:"p_type"`
	PValue       int32               `json:"p_value"`
	Restrictions []map[string]string `json:"restrictions,omitempty"`
	NonRevoked   *NonRevokedInterval `json:"non_revoked,omitempty"`
}

// NonRevokedInterval bounds the registry timestamps a non-revocation proof
// may be anchored to.
type NonRevokedInterval struct {
	From uint64 `json:"from,omitempty"`
	To   uint64 `json:"to,omitempty"`
}

// Covers reports whether timestamp falls inside the interval. A zero bound
// is open.
func (i *NonRevokedInterval) Covers(timestamp uint64) bool {
	if i == nil {
		return true
	}

	if i.From > 0 && timestamp < i.From {
		return false
	}

	if i.To > 0 && timestamp > i.To {
		return false
	}

	return true
}

// ParsePresentationRequest validates raw against the embedded JSON schema
// and builds the typed request.
func ParsePresentationRequest(raw []byte) (*PresentationRequest, error) {
	docLoader := gojsonschema.NewStringLoader(string(raw))

	result, err := gojsonschema.Validate(basePresentationRequestSchemaLoader, docLoader)
	if err != nil {
		return nil, NewErrorf(Input, "validation of presentation request: %w", err)
	}

	if !result.Valid() {
		return nil, NewError(Input, describeSchemaValidationError(result, "presentation request"))
	}

	request := &PresentationRequest{}
	if err := json.Unmarshal(raw, request); err != nil {
		return nil, NewErrorf(Input, "parse presentation request: %w", err)
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	return request, nil
}

// Validate checks the semantic rules the JSON schema cannot express.
func (r *PresentationRequest) Validate() error {
	if r.Name == "" || r.Version == "" {
		return NewError(Input, "presentation request needs name and version")
	}

	if r.Nonce == "" {
		return NewError(Input, "presentation request nonce is empty")
	}

	for referent, attr := range r.RequestedAttributes {
		if referent == "" {
			return NewError(Input, "requested attribute with empty referent")
		}

		if attr == nil {
			return NewErrorf(Input, "requested attribute %q is null", referent)
		}

		hasName := attr.Name != ""
		hasNames := len(attr.Names) > 0

		if hasName == hasNames {
			return NewErrorf(Input, "requested attribute %q needs exactly one of name or names", referent)
		}
	}

	for referent, pred := range r.RequestedPredicates {
		if referent == "" {
			return NewError(Input, "requested predicate with empty referent")
		}

		if pred == nil {
			return NewErrorf(Input, "requested predicate %q is null", referent)
		}

		if pred.Name == "" {
			return NewErrorf(Input, "requested predicate %q has no attribute name", referent)
		}

		switch pred.PType {
		case PredicateGE, PredicateGT, PredicateLE, PredicateLT:
		default:
			return NewErrorf(Input, "requested predicate %q has unsupported type %q", referent, pred.PType)
		}
	}

	return nil
}

// AttributeInterval returns the non-revocation interval in force for an
// attribute referent: the referent's own interval when set, otherwise the
// request-level one. Nil means no non-revocation proof is asked for.
func (r *PresentationRequest) AttributeInterval(referent string) *NonRevokedInterval {
	if attr, ok := r.RequestedAttributes[referent]; ok && attr.NonRevoked != nil {
		return attr.NonRevoked
	}

	return r.NonRevoked
}

// PredicateInterval returns the non-revocation interval in force for a
// predicate referent.
func (r *PresentationRequest) PredicateInterval(referent string) *NonRevokedInterval {
	if pred, ok := r.RequestedPredicates[referent]; ok && pred.NonRevoked != nil {
		return pred.NonRevoked
	}

	return r.NonRevoked
}

// AttributeReferents returns the attribute referents in sorted order, fixing
// the transcript order of presentation building and verification.
func (r *PresentationRequest) AttributeReferents() []string {
	referents := maps.Keys(r.RequestedAttributes)
	slices.Sort(referents)

	return referents
}

// PredicateReferents returns the predicate referents in sorted order.
func (r *PresentationRequest) PredicateReferents() []string {
	referents := maps.Keys(r.RequestedPredicates)
	slices.Sort(referents)

	return referents
}

func describeSchemaValidationError(result *gojsonschema.Result, what string) string {
	msg := what + " is not valid:\n"
	for _, desc := range result.Errors() {
		msg += fmt.Sprintf("- %s\n", desc)
	}

	return msg
}
