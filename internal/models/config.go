package models

import (
	"fmt"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

// ElectionConfig is the singleton settings document of one election year.
type ElectionConfig struct {
	Meta
	Year           int    `json:"year"`
	Title          string `json:"title"`
	Institution    string `json:"institution,omitempty"`
	AllowBlankVote bool   `json:"allowBlankVote"`
}

// ConfigID returns the id of the settings document for year.
func ConfigID(year int) string { return fmt.Sprintf("config_%d", year) }

func (c *ElectionConfig) DocType() DocType { return TypeConfig }

func (c *ElectionConfig) IDHint() string { return fmt.Sprint(c.Year) }

func (c *ElectionConfig) FixedID() string { return ConfigID(c.Year) }

func (c *ElectionConfig) Validate() error {
	if err := validateMeta(&c.Meta, TypeConfig); err != nil {
		return err
	}
	if c.Year <= 0 {
		return common.Validationf("year is required")
	}
	if c.ID != "" && c.ID != ConfigID(c.Year) {
		return common.Validationf("config id %q does not match year %d", c.ID, c.Year)
	}
	return requireField("title", c.Title)
}
