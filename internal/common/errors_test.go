package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentError_UnwrapsToSentinel(t *testing.T) {
	err := NewDocumentError("update", "students", "s1", ErrConflict)

	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "update students/s1: revision conflict", err.Error())

	var de *DocumentError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "s1", de.ID)
}

func TestDocumentError_WithoutID(t *testing.T) {
	err := NewDocumentError("find", "votes", "", ErrStorage)
	assert.Equal(t, "find votes: storage error", err.Error())
}

func TestImmutableIsValidation(t *testing.T) {
	require.ErrorIs(t, ErrImmutable, ErrValidation)
}

func TestStoragef_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storagef(cause, "insert %s", "x")

	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insert x")
}

func TestDescribe_DistinguishesKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", fmt.Errorf("wrap: %w", ErrNotFound), "Nothing matched"},
		{"conflict", NewDocumentError("update", "students", "a", ErrConflict), "stale"},
		{"storage", Storagef(errors.New("io"), "write"), "storage engine failed"},
		{"validation", Validationf("missing %s", "externalId"), "invalid"},
		{"immutable", ErrImmutable, "permanent"},
		{"voted", ErrAlreadyVoted, "already voted"},
		{"other", errors.New("boom"), "Unexpected"},
	}

	seen := map[string]string{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.err)
			assert.Contains(t, got, tt.want)
			if tt.err != nil {
				for other, msg := range seen {
					assert.NotEqual(t, msg, got, "message of %s equals %s", tt.name, other)
				}
				seen[tt.name] = got
			}
		})
	}
}
