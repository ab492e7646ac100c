package store

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewRevision returns the revision that follows prev ("" for a new
// document). The format is "<generation>-<16 hex>"; callers must treat it
// as opaque.
func NewRevision(prev string) string {
	return strconv.Itoa(RevisionGeneration(prev)+1) + "-" + randomHex(16)
}

// RevisionGeneration returns the numeric prefix of rev, or 0 if rev is
// empty or malformed.
func RevisionGeneration(rev string) int {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func randomHex(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}
