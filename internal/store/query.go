package store

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

// Or matches when the field equals any of the listed values.
type Or []any

// Selector is a conjunction of field predicates. A value is either a
// scalar compared for equality or an Or. Field names may use dots to reach
// nested objects. String comparisons ignore case and surrounding space.
type Selector map[string]any

// Query is the query object accepted by Find.
type Query struct {
	Selector Selector `json:"selector"`
	Limit    int      `json:"limit,omitempty"`
	// Sort lists field names; a leading "-" sorts descending.
	Sort []string `json:"sort,omitempty"`
}

// Patch is a JSON merge patch: keys set fields, nil values remove them.
type Patch map[string]any

// ParseQuery decodes the JSON query shape
// {"selector": {field: value | {"$or": [...]}}, "limit": n, "sort": [...]}.
func ParseQuery(raw []byte) (Query, error) {
	var q Query
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		return Query{}, common.Validationf("decode query: %v", err)
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate normalizes JSON-decoded {"$or": [...]} objects into Or and checks
// the query is well formed.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return common.Validationf("limit %d is negative", q.Limit)
	}
	for _, s := range q.Sort {
		if strings.TrimPrefix(s, "-") == "" {
			return common.Validationf("empty sort field")
		}
	}
	for field, v := range q.Selector {
		if field == "" {
			return common.Validationf("empty selector field")
		}
		switch pv := v.(type) {
		case Or:
			if len(pv) == 0 {
				return common.Validationf("$or on %q has no alternatives", field)
			}
		case []any:
			return common.Validationf("selector %q: use {\"$or\": [...]} for alternatives", field)
		case map[string]any:
			alts, ok := pv["$or"]
			if !ok || len(pv) != 1 {
				return common.Validationf("selector %q: only $or is supported", field)
			}
			list, ok := alts.([]any)
			if !ok || len(list) == 0 {
				return common.Validationf("selector %q: $or needs a non-empty list", field)
			}
			q.Selector[field] = Or(list)
		}
	}
	return nil
}

// NormalizeValue maps a predicate or document value to its comparable form:
// strings are trimmed and case-folded, numbers become float64.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case nil, bool, float64, map[string]any, []any:
		return v
	}
	// named types such as models.VotingStatus
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return strings.ToLower(strings.TrimSpace(rv.String()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

// FormatValue renders a normalized value for canonical keys.
func FormatValue(v any) string {
	switch x := NormalizeValue(v).(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// Match reports whether a decoded JSON document satisfies every predicate.
func (s Selector) Match(doc map[string]any) bool {
	for field, want := range s {
		got, _ := lookup(doc, field)
		if alts, ok := want.(Or); ok {
			if !matchAny(got, alts) {
				return false
			}
			continue
		}
		if !equalValues(got, want) {
			return false
		}
	}
	return true
}

func matchAny(got any, alts Or) bool {
	for _, a := range alts {
		if equalValues(got, a) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	na, nb := NormalizeValue(a), NormalizeValue(b)
	switch x := na.(type) {
	case string, float64, bool, nil:
		return na == nb
	default:
		return FormatValue(x) == FormatValue(nb)
	}
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

type matched struct {
	id   string
	body map[string]any
	rec  Record
}

// sortMatches orders by the query's sort fields, then by id. Missing
// values sort first.
func sortMatches(items []matched, fields []string) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, f := range fields {
			desc := strings.HasPrefix(f, "-")
			name := strings.TrimPrefix(f, "-")
			a, _ := lookup(items[i].body, name)
			b, _ := lookup(items[j].body, name)
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return items[i].id < items[j].id
	})
}

func compareValues(a, b any) int {
	na, nb := NormalizeValue(a), NormalizeValue(b)
	switch {
	case na == nil && nb == nil:
		return 0
	case na == nil:
		return -1
	case nb == nil:
		return 1
	}
	fa, aNum := na.(float64)
	fb, bNum := nb.(float64)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(FormatValue(na), FormatValue(nb))
}
