// Package mapping turns raw uploaded records into normalized, type-coerced
// entries ready for transformation, according to a user-declared field
// mapping and the target content type's property definitions.
package mapping

import (
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/smonier/importContentFromJson/internal/record"
)

// Reserved mapping targets that are not schema properties but are handled
// specially throughout the pipeline.
const (
	ReservedTagList         = "j:tagList"
	ReservedDefaultCategory = "j:defaultCategory"
)

// ReservedTargets lists the pseudo-properties in a stable order.
var ReservedTargets = []string{ReservedTagList, ReservedDefaultCategory}

// FieldMappings maps a target property name to a source field path.
//
// Three states are meaningful and must stay distinguishable:
//   - key absent: no mapping declared yet
//   - key present with nil value: explicitly "do not map"
//   - key present with a path: map from that source field
type FieldMappings map[string]*string

// Resolution says how a target's source was decided.
type Resolution int

const (
	// ResolutionExplicitSource maps from a user-chosen source path.
	ResolutionExplicitSource Resolution = iota
	// ResolutionExplicitlyUnmapped suppresses the target even when a
	// same-named source field exists.
	ResolutionExplicitlyUnmapped
	// ResolutionFallbackToOwnName resolves from a source field named like
	// the target itself. Only the reserved pseudo-properties use this.
	ResolutionFallbackToOwnName
)

// Resolve reports the source path and resolution state for a target.
func (m FieldMappings) Resolve(target string) (string, Resolution) {
	src, present := m[target]
	if present {
		if src == nil {
			return "", ResolutionExplicitlyUnmapped
		}
		if *src != "" {
			return *src, ResolutionExplicitSource
		}
	}
	return target, ResolutionFallbackToOwnName
}

// AutoSeed fills in mappings by exact name match between target property
// names and discovered source fields. An existing choice, including an
// explicit nil, is never overwritten.
func AutoSeed(m FieldMappings, targets []string, fields []string) {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}
	for _, name := range targets {
		if !known[name] {
			continue
		}
		if _, present := m[name]; present {
			continue
		}
		src := name
		m[name] = &src
	}
}

// SplitList splits a delimited string on ';' or ',', trimming tokens and
// dropping empty ones.
func SplitList(s string) []any {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// coerceMultiString applies the non-image multi-value string rule: a JSON
// array literal is parsed as-is; otherwise the outer brackets (if any) are
// stripped and the remainder split on ';'/','.
func coerceMultiString(s string) []any {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		if parsed, err := oj.Parse([]byte(trimmed)); err == nil {
			if arr, ok := parsed.([]any); ok {
				return arr
			}
		}
		return SplitList(trimmed[1 : len(trimmed)-1])
	}
	return SplitList(trimmed)
}

// normalizeToList forces any already-resolved value into array form:
// arrays pass through, scalars are wrapped, nil/absent becomes empty.
func normalizeToList(v any, found bool) []any {
	if !found || v == nil {
		return []any{}
	}
	if s, ok := v.(string); ok {
		return coerceMultiString(s)
	}
	if arr, ok := v.([]any); ok {
		return arr
	}
	return []any{v}
}

// reservedValue resolves a reserved target's value per its resolution state.
func reservedValue(rec record.Raw, m FieldMappings, target string) []any {
	src, res := m.Resolve(target)
	if res == ResolutionExplicitlyUnmapped {
		return []any{}
	}
	v, found := record.ValueAtPath(rec, src)
	return normalizeToList(v, found)
}
