package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, q Query)
	}{
		{
			name: "scalar and or",
			raw:  `{"selector":{"course":"4A","year":{"$or":[2023,2024]}},"limit":5,"sort":["-year"]}`,
			check: func(t *testing.T, q Query) {
				assert.Equal(t, "4A", q.Selector["course"])
				require.IsType(t, Or{}, q.Selector["year"])
				assert.Len(t, q.Selector["year"], 2)
				assert.Equal(t, 5, q.Limit)
			},
		},
		{name: "empty selector", raw: `{"selector":{}}`},
		{name: "unknown top-level field", raw: `{"selector":{},"skip":1}`, wantErr: true},
		{name: "bare array", raw: `{"selector":{"course":["4A","4B"]}}`, wantErr: true},
		{name: "unsupported operator", raw: `{"selector":{"year":{"$gt":2020}}}`, wantErr: true},
		{name: "empty or", raw: `{"selector":{"year":{"$or":[]}}}`, wantErr: true},
		{name: "negative limit", raw: `{"limit":-1}`, wantErr: true},
		{name: "empty sort field", raw: `{"sort":["-"]}`, wantErr: true},
		{name: "not json", raw: `selector`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuery([]byte(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, q)
			}
		})
	}
}

func TestSelectorMatch(t *testing.T) {
	doc := map[string]any{
		"course":       "4A",
		"year":         float64(2024),
		"votingStatus": "voted",
		"homeroom":     map[string]any{"teacher": "Vera"},
		"absentAt":     nil,
	}

	tests := []struct {
		name string
		sel  Selector
		want bool
	}{
		{"empty", Selector{}, true},
		{"case and space insensitive", Selector{"course": " 4a"}, true},
		{"int against float", Selector{"year": 2024}, true},
		{"named string type", Selector{"votingStatus": models.StatusVoted}, true},
		{"nested path", Selector{"homeroom.teacher": "vera"}, true},
		{"or hit", Selector{"course": Or{"4B", "4A"}}, true},
		{"or miss", Selector{"course": Or{"4B", "4C"}}, false},
		{"conjunction miss", Selector{"course": "4A", "year": 2023}, false},
		{"missing field equals nil", Selector{"secondaryId": nil}, true},
		{"explicit null", Selector{"absentAt": nil}, true},
		{"missing field", Selector{"secondaryId": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sel.Match(doc))
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, `"4a"`, FormatValue(" 4A "))
	assert.Equal(t, "2024", FormatValue(2024))
	assert.Equal(t, "2024", FormatValue(float64(2024)))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "null", FormatValue(nil))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, `"voted"`, FormatValue(models.StatusVoted))
}

func TestSortMatches(t *testing.T) {
	items := []matched{
		{id: "c", body: map[string]any{"year": float64(2023)}},
		{id: "a", body: map[string]any{"year": float64(2024)}},
		{id: "b", body: map[string]any{}},
		{id: "d", body: map[string]any{"year": float64(2024)}},
	}

	sortMatches(items, []string{"-year"})
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.id)
	}
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids)

	sortMatches(items, nil)
	assert.Equal(t, "a", items[0].id)
	assert.Equal(t, "d", items[3].id)
}
