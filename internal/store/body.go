package store

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

// envelope fields are owned by the store and cannot be patched.
var envelopeFields = map[string]struct{}{
	"id": {}, "rev": {}, "type": {}, "createdAt": {}, "updatedAt": {},
}

var knownFieldsCache sync.Map // reflect.Type -> map[string]struct{}

// knownFields returns the JSON field names declared by the document type,
// embedded structs included.
func knownFields(doc models.Document) map[string]struct{} {
	t := reflect.TypeOf(doc)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v, ok := knownFieldsCache.Load(t); ok {
		return v.(map[string]struct{})
	}
	fields := make(map[string]struct{})
	collectFields(t, fields)
	knownFieldsCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, into map[string]struct{}) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if f.Anonymous && tag == "" && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, into)
			continue
		}
		if !f.IsExported() || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		into[name] = struct{}{}
	}
}

// encodeBody serializes doc and carries over the fields of extra that the
// typed model does not know, so newer fields survive a round trip.
func encodeBody(doc models.Document, extra map[string]any) ([]byte, error) {
	typed, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return typed, nil
	}

	known := knownFields(doc)
	var out map[string]any
	if err := json.Unmarshal(typed, &out); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := known[k]; ok {
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func decodeMap(raw []byte) (map[string]any, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// mergePatch applies an RFC 7386 merge patch to target in place.
func mergePatch(target map[string]any, patch map[string]any) {
	for k, v := range patch {
		if v == nil {
			delete(target, k)
			continue
		}
		if pm, ok := asMap(v); ok {
			tm, ok := target[k].(map[string]any)
			if !ok {
				tm = make(map[string]any)
			}
			mergePatch(tm, pm)
			target[k] = tm
			continue
		}
		target[k] = v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Patch:
		return m, true
	}
	return nil, false
}
