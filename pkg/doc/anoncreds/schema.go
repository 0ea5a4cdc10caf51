/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
)

// objectVersion tags every canonical JSON document for ledger compatibility.
const objectVersion = "1.0"

// Schema names the attributes a credential of this schema carries. AttrNames
// keeps the order given at creation; that order fixes the position of each
// attribute in the credential signature.
type Schema struct {
	Ver       string   `json:"ver"`
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	AttrNames []string `json:"attrNames"`
	SeqNo     uint32   `json:"seqNo,omitempty"`
}

// NewSchema assembles a schema with a legacy-style identifier derived from
// the origin DID.
func NewSchema(originDID, name, version string, attrNames []string) (*Schema, error) {
	schema := &Schema{
		Ver:       objectVersion,
		ID:        fmt.Sprintf("%s:2:%s:%s", originDID, name, version),
		Name:      name,
		Version:   version,
		AttrNames: attrNames,
	}

	if err := ValidateIdentifier(originDID); err != nil {
		return nil, fmt.Errorf("schema origin: %w", err)
	}

	if err := schema.Validate(); err != nil {
		return nil, err
	}

	return schema, nil
}

// ParseSchema builds a schema from its canonical JSON.
func ParseSchema(raw []byte) (*Schema, error) {
	schema := &Schema{}
	if err := json.Unmarshal(raw, schema); err != nil {
		return nil, NewErrorf(Input, "parse schema: %w", err)
	}

	if err := schema.Validate(); err != nil {
		return nil, err
	}

	return schema, nil
}

// Validate checks identifier grammar and the attribute list bounds.
func (s *Schema) Validate() error {
	if err := ValidateIdentifier(s.ID); err != nil {
		return fmt.Errorf("schema id: %w", err)
	}

	if s.Name == "" {
		return NewError(Input, "schema name is empty")
	}

	if s.Version == "" {
		return NewError(Input, "schema version is empty")
	}

	if len(s.AttrNames) == 0 {
		return NewError(Input, "schema has no attributes")
	}

	if len(s.AttrNames) > MaxAttributes {
		return NewErrorf(Input, "schema has %d attributes, maximum is %d", len(s.AttrNames), MaxAttributes)
	}

	seen := make(map[string]struct{}, len(s.AttrNames))

	for _, name := range s.AttrNames {
		if name == "" {
			return NewError(Input, "schema attribute with empty name")
		}

		if _, ok := seen[name]; ok {
			return NewErrorf(Input, "duplicate schema attribute %q", name)
		}

		seen[name] = struct{}{}
	}

	return nil
}
