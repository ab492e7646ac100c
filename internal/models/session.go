package models

import (
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

// Session is a polling period; votes may reference the session they were
// cast in.
type Session struct {
	Meta
	Name     string     `json:"name"`
	Year     int        `json:"year,omitempty"`
	OpenedAt time.Time  `json:"openedAt"`
	ClosedAt *time.Time `json:"closedAt,omitempty"`
}

func (s *Session) DocType() DocType { return TypeSession }

func (s *Session) IDHint() string { return Slug(s.Name) }

func (s *Session) ApplyDefaults(now time.Time) {
	if s.OpenedAt.IsZero() {
		s.OpenedAt = now
	}
}

// Open reports whether the session has not been closed.
func (s *Session) Open() bool { return s.ClosedAt == nil }

func (s *Session) Validate() error {
	if err := validateMeta(&s.Meta, TypeSession); err != nil {
		return err
	}
	if err := requireField("name", s.Name); err != nil {
		return err
	}
	if s.ClosedAt != nil && s.ClosedAt.Before(s.OpenedAt) {
		return common.Validationf("session closes before it opens")
	}
	return nil
}
