// Package record holds the in-memory representation of uploaded source
// records and the field-discovery / path-resolution helpers the mapping layer
// is built on.
//
// A Raw record is one element of the uploaded file: a JSON object, a parsed
// CSV row keyed by its headers, or a harvested HTML record. Values keep the
// loose typing of the source; coercion happens later, driven by the target
// schema.
package record

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Raw is one loosely-typed source record.
type Raw map[string]any

// Fields discovers the addressable field paths of a single representative
// record, for the mapping UI and for mapping auto-seeding.
//
// Rules:
//   - plain top-level keys are returned as-is
//   - nested plain objects are descended via dot-joined paths ("a.b.c")
//   - arrays of objects are descended through their first element, with the
//     element keys exposed under the array's own dot path
//   - arrays of scalars (and empty arrays) are returned as a single path
//
// Fields never fails: a nil record yields an empty list.
func Fields(rec Raw) []string {
	if rec == nil {
		return nil
	}
	var out []string
	walkFields(map[string]any(rec), "", &out)
	sort.Strings(out)
	return out
}

func walkFields(obj map[string]any, prefix string, out *[]string) {
	for key, value := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			if len(v) == 0 {
				*out = append(*out, path)
				continue
			}
			walkFields(v, path, out)
		case []any:
			if first, ok := firstObject(v); ok {
				walkFields(first, path, out)
				continue
			}
			*out = append(*out, path)
		default:
			*out = append(*out, path)
		}
	}
}

func firstObject(arr []any) (map[string]any, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	m, ok := arr[0].(map[string]any)
	return m, ok
}

// ValueAtPath resolves a dot-notated path against a record.
//
// The boolean result distinguishes "path missing" (false) from "present but
// null" (true, nil): the mapper omits missing values but keeps explicit nulls.
//
// Paths starting with '$' are treated as full JSONPath expressions and
// resolved with ojg; a single match is returned as a scalar, multiple matches
// as a slice.
//
// Dot segments walk nested objects. A numeric segment indexes into an array;
// a non-numeric segment applied to an array of objects collects that field
// from every element (so "items.name" over [{name:a},{name:b}] yields [a b]).
func ValueAtPath(rec Raw, path string) (any, bool) {
	if rec == nil || path == "" {
		return nil, false
	}

	if strings.HasPrefix(path, "$") {
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, false
		}
		results := x.Get(map[string]any(rec))
		switch len(results) {
		case 0:
			return nil, false
		case 1:
			return results[0], true
		default:
			return results, true
		}
	}

	var cur any = map[string]any(rec)
	for _, seg := range strings.Split(path, ".") {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case map[string]any:
		val, ok := v[seg]
		return val, ok
	case []any:
		if ix, err := strconv.Atoi(seg); err == nil {
			if ix < 0 || ix >= len(v) {
				return nil, false
			}
			return v[ix], true
		}
		var collected []any
		for _, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				continue
			}
			if val, ok := obj[seg]; ok {
				collected = append(collected, val)
			}
		}
		if collected == nil {
			return nil, false
		}
		return collected, true
	default:
		return nil, false
	}
}
