// Package models defines the typed documents stored by BallotKeeper: one
// variant per collection, each validating its own required fields.
package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

// Collection names a set of documents of one type.
type Collection string

const (
	CollectionStudents   Collection = "students"
	CollectionCandidates Collection = "candidates"
	CollectionVotes      Collection = "votes"
	CollectionSessions   Collection = "sessions"
	CollectionConfig     Collection = "config"
)

// DocType is the discriminator stored in every document.
type DocType string

const (
	TypeStudent   DocType = "student"
	TypeCandidate DocType = "candidate"
	TypeVote      DocType = "vote"
	TypeSession   DocType = "session"
	TypeConfig    DocType = "config"
)

// Meta is the envelope shared by every document.
type Meta struct {
	ID        string    `json:"id"`
	Rev       string    `json:"rev,omitempty"`
	Type      DocType   `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Meta) GetMeta() *Meta { return m }

// Document is implemented by every stored variant.
type Document interface {
	GetMeta() *Meta
	DocType() DocType
	// IDHint returns the disambiguating part used to compose generated ids.
	IDHint() string
	Validate() error
}

// Defaulter is implemented by documents that fill fields on creation.
type Defaulter interface {
	ApplyDefaults(now time.Time)
}

// FixedIDer is implemented by singleton documents whose id is derived
// entirely from their content.
type FixedIDer interface {
	FixedID() string
}

var registry = map[Collection]struct {
	typ DocType
	new func() Document
}{
	CollectionStudents:   {TypeStudent, func() Document { return &Student{} }},
	CollectionCandidates: {TypeCandidate, func() Document { return &Candidate{} }},
	CollectionVotes:      {TypeVote, func() Document { return &Vote{} }},
	CollectionSessions:   {TypeSession, func() Document { return &Session{} }},
	CollectionConfig:     {TypeConfig, func() Document { return &ElectionConfig{} }},
}

// Collections returns every known collection in a stable order.
func Collections() []Collection {
	out := make([]Collection, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseCollection validates a collection name.
func ParseCollection(name string) (Collection, error) {
	c := Collection(strings.TrimSpace(name))
	if _, ok := registry[c]; !ok {
		return "", common.Validationf("unknown collection %q", name)
	}
	return c, nil
}

// TypeOf returns the document type stored in collection c.
func TypeOf(c Collection) (DocType, error) {
	r, ok := registry[c]
	if !ok {
		return "", common.Validationf("unknown collection %q", c)
	}
	return r.typ, nil
}

// New returns an empty document of the variant stored in c.
func New(c Collection) (Document, error) {
	r, ok := registry[c]
	if !ok {
		return nil, common.Validationf("unknown collection %q", c)
	}
	return r.new(), nil
}

// Decode parses raw JSON into the variant stored in c. A "type" field, when
// present, must match the collection's type. Decode does not validate.
func Decode(c Collection, raw []byte) (Document, error) {
	doc, err := New(c)
	if err != nil {
		return nil, err
	}

	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(doc); err != nil {
		return nil, common.Validationf("decode %s document: %v", c, err)
	}

	m := doc.GetMeta()
	switch m.Type {
	case "":
		m.Type = doc.DocType()
	case doc.DocType():
	default:
		return nil, common.Validationf("document type %q does not belong to collection %s", m.Type, c)
	}
	return doc, nil
}

// DecodeValid is Decode followed by Validate.
func DecodeValid(c Collection, raw []byte) (Document, error) {
	doc, err := Decode(c, raw)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return common.Validationf("%s is required", name)
	}
	return nil
}

func validateMeta(m *Meta, want DocType) error {
	if m.Type != "" && m.Type != want {
		return common.Validationf("type %q, want %q", m.Type, want)
	}
	if strings.ContainsAny(m.ID, " \t\n") {
		return common.Validationf("id %q contains whitespace", m.ID)
	}
	return nil
}

// Slug lowercases s and replaces runs of non-alphanumerics with "-".
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
