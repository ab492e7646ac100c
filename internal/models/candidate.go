package models

import "github.com/dmitrijs2005/ballotkeeper/internal/common"

// Candidate is a selectable option on the ballot.
type Candidate struct {
	Meta
	Name     string `json:"name"`
	List     string `json:"list,omitempty"`
	Position string `json:"position,omitempty"`
	Course   string `json:"course,omitempty"`
	Year     int    `json:"year,omitempty"`
}

func (c *Candidate) DocType() DocType { return TypeCandidate }

func (c *Candidate) IDHint() string { return Slug(c.Name) }

func (c *Candidate) Validate() error {
	if err := validateMeta(&c.Meta, TypeCandidate); err != nil {
		return err
	}
	if c.ID == BlankSelection {
		return common.Validationf("candidate id %q is reserved", BlankSelection)
	}
	return requireField("name", c.Name)
}
