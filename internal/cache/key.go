package cache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

// Key returns the canonical cache key of q over collection c:
//
//	students:"course"="4a";"year"=$or[2023,2024]|limit=5|sort="-year"
//
// Predicates are sorted by field and values normalized the same way Find
// compares them, so equal queries always map to one key. Field names are
// quoted so they cannot forge separators. An $or with a single distinct
// alternative is written as the plain value.
func Key(c models.Collection, q store.Query) string {
	var b strings.Builder
	b.WriteString(string(c))
	b.WriteByte(':')

	fields := make([]string, 0, len(q.Selector))
	for f := range q.Selector {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for i, f := range fields {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Quote(f))
		b.WriteByte('=')
		if alts, ok := alternatives(q.Selector[f]); ok {
			if len(alts) == 1 {
				b.WriteString(alts[0])
				continue
			}
			b.WriteString("$or[")
			b.WriteString(strings.Join(alts, ","))
			b.WriteByte(']')
			continue
		}
		b.WriteString(store.FormatValue(q.Selector[f]))
	}

	if q.Limit > 0 {
		b.WriteString("|limit=")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	if len(q.Sort) > 0 {
		b.WriteString("|sort=")
		for i, f := range q.Sort {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(f))
		}
	}
	return b.String()
}

// alternatives returns the normalized, de-duplicated and sorted values of
// an $or predicate.
func alternatives(v any) ([]string, bool) {
	var list []any
	switch x := v.(type) {
	case store.Or:
		list = x
	case map[string]any:
		l, ok := x["$or"].([]any)
		if !ok {
			return nil, false
		}
		list = l
	default:
		return nil, false
	}

	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, a := range list {
		s := store.FormatValue(a)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, true
}

// Prefix returns the invalidation pattern covering every key of c.
func Prefix(c models.Collection) string {
	return string(c) + ":"
}
