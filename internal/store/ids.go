package store

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

// GenerateID composes "<type>_<hint>_<unixMillis>" so ids stay traceable to
// the record they were created for.
func GenerateID(doc models.Document, now time.Time) string {
	parts := []string{string(doc.DocType())}
	if hint := sanitizeHint(doc.IDHint()); hint != "" {
		parts = append(parts, hint)
	}
	parts = append(parts, strconv.FormatInt(now.UnixMilli(), 10))
	return strings.Join(parts, "_")
}

// disambiguate appends a short random suffix after an id collision.
func disambiguate(id string) string {
	return id + "_" + randomHex(6)
}

func sanitizeHint(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', r == '.':
			return r
		case unicode.IsSpace(r):
			return '-'
		}
		return -1
	}, strings.TrimSpace(s))
}
