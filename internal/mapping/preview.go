package mapping

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/smonier/importContentFromJson/internal/record"
	"github.com/smonier/importContentFromJson/internal/schema"
)

// Entry is one normalized record: keys are target property names plus the two
// reserved pseudo-properties, values are coerced per the target's kind.
//
// Invariant: ReservedTagList and ReservedDefaultCategory are always present
// as []any, even when unmapped. Consumers rely on this and do no nil checks.
type Entry map[string]any

// Tags returns the entry's tag list.
func (e Entry) Tags() []any { return e[ReservedTagList].([]any) }

// Categories returns the entry's category name list.
func (e Entry) Categories() []any { return e[ReservedDefaultCategory].([]any) }

// GeneratePreview maps every raw record into an Entry, preserving input
// order. It never fails: unresolvable mappings simply leave the target out of
// the produced entry.
func GeneratePreview(records []record.Raw, m FieldMappings, defs []schema.PropertyDefinition) []Entry {
	props := schema.Index(defs)
	out := make([]Entry, 0, len(records))
	for _, rec := range records {
		out = append(out, mapRecord(rec, m, props))
	}
	return out
}

func mapRecord(rec record.Raw, m FieldMappings, props map[string]schema.Property) Entry {
	entry := Entry{}

	for target, src := range m {
		if target == ReservedTagList || target == ReservedDefaultCategory {
			continue
		}
		if src == nil || *src == "" {
			// Explicit suppression wins over any same-named source field.
			continue
		}
		v, found := record.ValueAtPath(rec, *src)
		if !found {
			// Missing path means "no value"; the property is omitted so
			// downstream can tell it apart from an empty value.
			continue
		}
		entry[target] = coerce(v, props[target])
	}

	for _, target := range ReservedTargets {
		entry[target] = reservedValue(rec, m, target)
	}

	return entry
}

// coerce applies the kind-driven type coercion rules. Targets with no schema
// definition get the zero Property, whose plain-single kind passes values
// through untouched.
func coerce(v any, prop schema.Property) any {
	switch prop.Kind {
	case schema.KindImageMultiple:
		if s, ok := v.(string); ok {
			v = SplitList(s)
		}
		if arr, ok := v.([]any); ok {
			wrapped := make([]any, len(arr))
			for i, el := range arr {
				if s, ok := el.(string); ok {
					wrapped[i] = map[string]any{"url": s}
				} else {
					wrapped[i] = el
				}
			}
			return wrapped
		}
		return v

	case schema.KindImageSingle:
		if s, ok := v.(string); ok {
			return map[string]any{"url": s}
		}
		return v

	case schema.KindPlainMultiple:
		switch t := v.(type) {
		case string:
			return coerceMultiString(t)
		case []any:
			return t
		case nil:
			return []any{}
		default:
			return []any{t}
		}

	default:
		return v
	}
}

// WriteJSON writes the preview entries as a downloadable JSON document.
// Feeding this document back in as a generated-file import reproduces the
// same content names and property sets.
func WriteJSON(w io.Writer, entries []Entry) error {
	b, err := oj.Marshal(entries, 2)
	if err != nil {
		return fmt.Errorf("mapping: marshal preview: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("mapping: write preview: %w", err)
	}
	return nil
}

// WriteCSV writes the preview entries as a delimited document with the given
// header order. Non-scalar values are JSON-encoded into their cell.
func WriteCSV(w io.Writer, entries []Entry, headers []string, sep rune) error {
	cw := csv.NewWriter(w)
	if sep != 0 {
		cw.Comma = sep
	}

	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("mapping: write csv header: %w", err)
	}

	row := make([]string, len(headers))
	for _, e := range entries {
		for i, h := range headers {
			row[i] = cellString(e[h])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("mapping: write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("mapping: flush csv: %w", err)
	}
	return nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := oj.Marshal(t)
		if err != nil {
			return strings.TrimSpace(fmt.Sprint(t))
		}
		return string(b)
	}
}
