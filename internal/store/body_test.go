package store

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

func TestKnownFields(t *testing.T) {
	fields := knownFields(&models.Candidate{})
	for _, f := range []string{"id", "rev", "type", "createdAt", "updatedAt", "name", "list", "position", "course", "year"} {
		assert.Contains(t, fields, f)
	}
	assert.NotContains(t, fields, "Meta")
}

func TestEncodeBodyKeepsExtraFields(t *testing.T) {
	doc := &models.Candidate{Name: "Lista Azul"}
	doc.ID = "candidate_1"

	body, err := encodeBody(doc, map[string]any{
		"name":   "ignored, typed value wins",
		"slogan": "Juntos",
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Lista Azul", got["name"])
	assert.Equal(t, "Juntos", got["slogan"])
}

func TestMergePatch(t *testing.T) {
	target := map[string]any{
		"a": "keep",
		"b": "drop",
		"n": map[string]any{"x": 1.0, "y": 2.0},
	}
	mergePatch(target, map[string]any{
		"b": nil,
		"c": "new",
		"n": Patch{"y": nil, "z": 3.0},
	})

	want := map[string]any{
		"a": "keep",
		"c": "new",
		"n": map[string]any{"x": 1.0, "z": 3.0},
	}
	if diff := cmp.Diff(want, target); diff != "" {
		t.Errorf("mergePatch mismatch (-want +got):\n%s", diff)
	}
}
