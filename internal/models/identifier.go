package models

// IdentifierField names one of the student identifier fields.
type IdentifierField string

const (
	FieldPrimaryID   IdentifierField = "id"
	FieldSecondaryID IdentifierField = "secondaryId"
	FieldExternalID  IdentifierField = "externalId"
)

// ResolutionOrder is the order in which identifiers are resolved. Anything
// that writes a Vote must use CanonicalIdentifier so that exact matching
// succeeds during reconciliation.
var ResolutionOrder = []IdentifierField{FieldPrimaryID, FieldSecondaryID, FieldExternalID}

// Identifier returns the value of field f.
func (s *Student) Identifier(f IdentifierField) string {
	switch f {
	case FieldPrimaryID:
		return s.ID
	case FieldSecondaryID:
		return s.SecondaryID
	case FieldExternalID:
		return s.ExternalID
	}
	return ""
}

// CanonicalIdentifier returns primaryId ?? secondaryId ?? externalId, or ""
// when the student has no identifier at all.
func CanonicalIdentifier(s *Student) string {
	for _, f := range ResolutionOrder {
		if v := s.Identifier(f); v != "" {
			return v
		}
	}
	return ""
}

// HasIdentifier reports whether any identifier field is populated.
func (s *Student) HasIdentifier() bool {
	return CanonicalIdentifier(s) != ""
}
