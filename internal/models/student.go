package models

import (
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

// VotingStatus is the derived participation state of a student.
type VotingStatus string

const (
	StatusPending VotingStatus = "pending"
	StatusVoted   VotingStatus = "voted"
	StatusAbsent  VotingStatus = "absent"
)

// Valid reports whether s is a known status. The empty status reads as pending.
func (s VotingStatus) Valid() bool {
	switch s {
	case "", StatusPending, StatusVoted, StatusAbsent:
		return true
	}
	return false
}

// Student is a voter roll record. VotingStatus, VotedAt and AbsentAt are a
// cached summary; the vote log is authoritative.
type Student struct {
	Meta
	SecondaryID    string       `json:"secondaryId,omitempty"`
	ExternalID     string       `json:"externalId,omitempty"`
	GivenNames     string       `json:"givenNames"`
	FamilyNames    string       `json:"familyNames"`
	Course         string       `json:"course,omitempty"`
	EducationLevel string       `json:"educationLevel,omitempty"`
	Year           int          `json:"year,omitempty"`
	VotingStatus   VotingStatus `json:"votingStatus,omitempty"`
	VotedAt        *time.Time   `json:"votedAt,omitempty"`
	AbsentAt       *time.Time   `json:"absentAt,omitempty"`
}

func (s *Student) DocType() DocType { return TypeStudent }

func (s *Student) IDHint() string {
	if s.ExternalID != "" {
		return s.ExternalID
	}
	if s.SecondaryID != "" {
		return s.SecondaryID
	}
	return Slug(s.FamilyNames + " " + s.GivenNames)
}

func (s *Student) ApplyDefaults(time.Time) {
	if s.VotingStatus == "" {
		s.VotingStatus = StatusPending
	}
}

func (s *Student) Validate() error {
	if err := validateMeta(&s.Meta, TypeStudent); err != nil {
		return err
	}
	if err := requireField("givenNames", s.GivenNames); err != nil {
		return err
	}
	if err := requireField("familyNames", s.FamilyNames); err != nil {
		return err
	}
	if s.Year < 0 {
		return common.Validationf("year %d is negative", s.Year)
	}
	if !s.VotingStatus.Valid() {
		return common.Validationf("unknown votingStatus %q", s.VotingStatus)
	}
	if s.VotedAt != nil && s.AbsentAt != nil {
		return common.Validationf("votedAt and absentAt are mutually exclusive")
	}
	return nil
}

// FullName returns "given family".
func (s *Student) FullName() string {
	return s.GivenNames + " " + s.FamilyNames
}

// Status returns the cached status, treating empty as pending.
func (s *Student) Status() VotingStatus {
	if s.VotingStatus == "" {
		return StatusPending
	}
	return s.VotingStatus
}

// MarkVoted sets the voted summary and clears any absence mark.
func (s *Student) MarkVoted(at time.Time) {
	s.VotingStatus = StatusVoted
	s.VotedAt = &at
	s.AbsentAt = nil
}

// MarkAbsent sets the absence summary and clears votedAt. Callers must not
// mark a voted student absent; see services.VotingService.MarkAbsent.
func (s *Student) MarkAbsent(at time.Time) {
	s.VotingStatus = StatusAbsent
	s.AbsentAt = &at
	s.VotedAt = nil
}

// StatusPatch returns a merge patch that writes the status summary of s.
// Cleared timestamps are sent as null so the stored field is removed.
func (s *Student) StatusPatch() map[string]any {
	patch := map[string]any{
		"votingStatus": string(s.Status()),
		"votedAt":      nil,
		"absentAt":     nil,
	}
	if s.VotedAt != nil {
		patch["votedAt"] = s.VotedAt.UTC().Format(time.RFC3339Nano)
	}
	if s.AbsentAt != nil {
		patch["absentAt"] = s.AbsentAt.UTC().Format(time.RFC3339Nano)
	}
	return patch
}
