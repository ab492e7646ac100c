package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_StudentSetsTypeFromCollection(t *testing.T) {
	doc, err := Decode(CollectionStudents, []byte(`{"externalId":"12345","givenNames":"Ana","familyNames":"Rojas","year":2024}`))
	require.NoError(t, err)

	s, ok := doc.(*Student)
	require.True(t, ok)
	assert.Equal(t, TypeStudent, s.Type)
	assert.Equal(t, "12345", s.ExternalID)
	assert.Equal(t, 2024, s.Year)
}

func TestDecode_RejectsForeignType(t *testing.T) {
	_, err := Decode(CollectionVotes, []byte(`{"type":"student","studentIdentifier":"x","selectionId":"y"}`))
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	_, err := Decode(CollectionStudents, []byte(`{"givenNames": 42}`))
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDecode_UnknownCollection(t *testing.T) {
	_, err := Decode("ballots", []byte(`{}`))
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDecodeValid(t *testing.T) {
	tests := []struct {
		name    string
		c       Collection
		raw     string
		wantErr bool
	}{
		{"student ok", CollectionStudents, `{"givenNames":"A","familyNames":"B"}`, false},
		{"student missing names", CollectionStudents, `{"externalId":"1"}`, true},
		{"student both timestamps", CollectionStudents, `{"givenNames":"A","familyNames":"B","votedAt":"2024-01-01T00:00:00Z","absentAt":"2024-01-01T00:00:00Z"}`, true},
		{"student bad status", CollectionStudents, `{"givenNames":"A","familyNames":"B","votingStatus":"maybe"}`, true},
		{"vote ok", CollectionVotes, `{"studentIdentifier":"s1","selectionId":"c1"}`, false},
		{"vote without selection", CollectionVotes, `{"studentIdentifier":"s1"}`, true},
		{"candidate ok", CollectionCandidates, `{"name":"List A"}`, false},
		{"candidate reserved id", CollectionCandidates, `{"id":"blank","name":"x"}`, true},
		{"session closes early", CollectionSessions, `{"name":"m","openedAt":"2024-01-02T00:00:00Z","closedAt":"2024-01-01T00:00:00Z"}`, true},
		{"config ok", CollectionConfig, `{"year":2024,"title":"Council"}`, false},
		{"config id mismatch", CollectionConfig, `{"id":"config_1999","year":2024,"title":"Council"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeValid(tt.c, []byte(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrValidation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStudent_MarkVotedAndAbsentAreExclusive(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := &Student{GivenNames: "A", FamilyNames: "B"}

	s.MarkAbsent(now)
	assert.Equal(t, StatusAbsent, s.Status())
	require.NotNil(t, s.AbsentAt)
	assert.Nil(t, s.VotedAt)

	s.MarkVoted(now.Add(time.Hour))
	assert.Equal(t, StatusVoted, s.Status())
	require.NotNil(t, s.VotedAt)
	assert.Nil(t, s.AbsentAt)
	require.NoError(t, s.Validate())
}

func TestStudent_StatusPatchClearsOtherTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := &Student{}
	s.MarkVoted(now)

	p := s.StatusPatch()
	assert.Equal(t, "voted", p["votingStatus"])
	assert.Equal(t, "2024-05-01T10:00:00Z", p["votedAt"])
	v, ok := p["absentAt"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestCanonicalIdentifier_ResolutionOrder(t *testing.T) {
	tests := []struct {
		name string
		s    Student
		want string
	}{
		{"primary wins", Student{Meta: Meta{ID: "p"}, SecondaryID: "s", ExternalID: "e"}, "p"},
		{"secondary next", Student{SecondaryID: "s", ExternalID: "e"}, "s"},
		{"external last", Student{ExternalID: "e"}, "e"},
		{"none", Student{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalIdentifier(&tt.s))
			assert.Equal(t, tt.want != "", tt.s.HasIdentifier())
		})
	}
}

func TestStudent_JSONKeepsEnvelopeFlat(t *testing.T) {
	s := Student{Meta: Meta{ID: "s1", Rev: "1-ab", Type: TypeStudent}, GivenNames: "A", FamilyNames: "B"}
	b, err := json.Marshal(&s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "s1", m["id"])
	assert.Equal(t, "1-ab", m["rev"])
	assert.Equal(t, "student", m["type"])
	assert.NotContains(t, m, "votedAt")
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "lista-azul-2024", Slug("  Lista Azul -- 2024! "))
	assert.Equal(t, "", Slug("***"))
}

func TestCollections_Stable(t *testing.T) {
	assert.Equal(t, []Collection{CollectionCandidates, CollectionConfig, CollectionSessions, CollectionStudents, CollectionVotes}, Collections())

	_, err := ParseCollection("students")
	require.NoError(t, err)
	_, err = ParseCollection("nope")
	require.Error(t, err)
}
