/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package anoncreds

import (
	"encoding/json"
	"fmt"
)

// Presentation is a zero-knowledge proof over one or more credentials,
// answering every referent of a presentation request. The proof document is
// backend-specific; the requested-proof section maps referents to their
// answers and the identifiers array names the credential definitions behind
// each sub-proof by position.
type Presentation struct {
	Proof          json.RawMessage `json:"proof"`
	RequestedProof *RequestedProof `json:"requested_proof"`
	Identifiers    []*Identifier   `json:"identifiers"`
}

// RequestedProof maps request referents to how they were answered.
type RequestedProof struct {
	RevealedAttrs      map[string]*RevealedAttribute      `json:"revealed_attrs"`
	RevealedAttrGroups map[string]*RevealedAttributeGroup `json:"revealed_attr_groups,omitempty"`
	SelfAttestedAttrs  map[string]string                  `json:"self_attested_attrs"`
	UnrevealedAttrs    map[string]*SubProofReferent       `json:"unrevealed_attrs"`
	Predicates         map[string]*SubProofReferent       `json:"predicates"`
}

// RevealedAttribute is a disclosed attribute value tied to the sub-proof it
// was disclosed from.
type RevealedAttribute struct {
	SubProofIndex int32  `json:"sub_proof_index"`
	Raw           string `json:"raw"`
	Encoded       string `json:"encoded"`
}

// RevealedAttributeGroup discloses several attributes of one credential
// under a single referent.
type RevealedAttributeGroup struct {
	SubProofIndex int32                      `json:"sub_proof_index"`
	Values        map[string]*AttributeValue `json:"values"`
}

// SubProofReferent points a referent at the sub-proof answering it.
type SubProofReferent struct {
	SubProofIndex int32 `json:"sub_proof_index"`
}

// Identifier names the public material behind one sub-proof.
type Identifier struct {
	SchemaID  string  `json:"schema_id"`
	CredDefID string  `json:"cred_def_id"`
	RevRegID  string  `json:"rev_reg_id,omitempty"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
}

// ParsePresentation builds a presentation from its canonical JSON.
func ParsePresentation(raw []byte) (*Presentation, error) {
	presentation := &Presentation{}
	if err := json.Unmarshal(raw, presentation); err != nil {
		return nil, NewErrorf(Input, "parse presentation: %w", err)
	}

	if err := presentation.Validate(); err != nil {
		return nil, err
	}

	return presentation, nil
}

// Validate checks structural consistency: proof material present, every
// referent row pointing at an existing identifier.
func (p *Presentation) Validate() error {
	if len(p.Proof) == 0 {
		return NewError(Input, "presentation has no proof")
	}

	if p.RequestedProof == nil {
		return NewError(Input, "presentation has no requested proof section")
	}

	count := int32(len(p.Identifiers))

	for i, identifier := range p.Identifiers {
		if identifier == nil {
			return NewErrorf(Input, "presentation identifier %d is null", i)
		}

		if err := ValidateIdentifier(identifier.SchemaID); err != nil {
			return fmt.Errorf("presentation identifier %d schema id: %w", i, err)
		}

		if err := ValidateIdentifier(identifier.CredDefID); err != nil {
			return fmt.Errorf("presentation identifier %d credential definition id: %w", i, err)
		}

		if identifier.RevRegID != "" {
			if err := ValidateIdentifier(identifier.RevRegID); err != nil {
				return fmt.Errorf("presentation identifier %d revocation registry id: %w", i, err)
			}
		}
	}

	for referent, attr := range p.RequestedProof.RevealedAttrs {
		if attr == nil || attr.SubProofIndex < 0 || attr.SubProofIndex >= count {
			return NewErrorf(Input, "revealed attribute %q points outside the sub-proofs", referent)
		}
	}

	for referent, group := range p.RequestedProof.RevealedAttrGroups {
		if group == nil || group.SubProofIndex < 0 || group.SubProofIndex >= count {
			return NewErrorf(Input, "revealed attribute group %q points outside the sub-proofs", referent)
		}
	}

	for referent, row := range p.RequestedProof.UnrevealedAttrs {
		if row == nil || row.SubProofIndex < 0 || row.SubProofIndex >= count {
			return NewErrorf(Input, "unrevealed attribute %q points outside the sub-proofs", referent)
		}
	}

	for referent, row := range p.RequestedProof.Predicates {
		if row == nil || row.SubProofIndex < 0 || row.SubProofIndex >= count {
			return NewErrorf(Input, "predicate %q points outside the sub-proofs", referent)
		}
	}

	return nil
}
