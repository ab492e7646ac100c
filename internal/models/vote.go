package models

import "time"

// BlankSelection is the selection id of a blank ballot.
const BlankSelection = "blank"

// Vote is an append-only ballot record. StudentIdentifier may hold any of
// the student's known identifiers.
type Vote struct {
	Meta
	StudentIdentifier string    `json:"studentIdentifier"`
	SelectionID       string    `json:"selectionId"`
	CastAt            time.Time `json:"castAt"`
	SessionID         string    `json:"sessionId,omitempty"`
}

func (v *Vote) DocType() DocType { return TypeVote }

func (v *Vote) IDHint() string { return v.StudentIdentifier }

func (v *Vote) ApplyDefaults(now time.Time) {
	if v.CastAt.IsZero() {
		v.CastAt = now
	}
}

func (v *Vote) Validate() error {
	if err := validateMeta(&v.Meta, TypeVote); err != nil {
		return err
	}
	if err := requireField("studentIdentifier", v.StudentIdentifier); err != nil {
		return err
	}
	return requireField("selectionId", v.SelectionID)
}
