// Package transform converts coerced entry values into the wire-format
// property items the content repository accepts.
package transform

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/smonier/importContentFromJson/internal/images"
	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/schema"
)

// Transformer carries the per-run context needed to build property payloads.
type Transformer struct {
	// Language is the active import language, applied only to
	// internationalized properties.
	Language string
	// Images resolves image references for image-constrained properties.
	Images *images.Resolver
}

// Property converts one entry value into a repository property item.
//
// A nil input means the property is omitted from the outgoing set; image
// resolution failures degrade to omission rather than failing the record.
// The returned image results feed the run report, one per attempted image.
func (t *Transformer) Property(ctx context.Context, prop schema.Property, value any) (*repository.PropertyInput, []images.Result) {
	lang := ""
	if prop.Internationalized {
		lang = t.Language
	}

	switch prop.Kind {
	case schema.KindDate:
		return &repository.PropertyInput{Name: prop.Name, Value: normalizeDate(value), Language: lang}, nil

	case schema.KindImageMultiple:
		list, ok := value.([]any)
		if !ok {
			return nil, nil
		}
		results := t.Images.ResolveAll(ctx, list)
		values := make([]any, 0, len(results))
		for _, res := range results {
			if res.UUID != "" {
				values = append(values, res.UUID)
			}
		}
		return &repository.PropertyInput{Name: prop.Name, Values: values, Language: lang}, results

	case schema.KindImageSingle:
		res := t.Images.ResolveOne(ctx, value, 1)
		if res.UUID == "" {
			// Resolution failed; drop the property, keep the record.
			return nil, []images.Result{res}
		}
		return &repository.PropertyInput{Name: prop.Name, Value: res.UUID, Language: lang}, []images.Result{res}

	case schema.KindPlainMultiple:
		return &repository.PropertyInput{Name: prop.Name, Values: FlattenValues(value), Language: lang}, nil

	default:
		return &repository.PropertyInput{Name: prop.Name, Value: value, Language: lang}, nil
	}
}

// FlattenValues normalizes a multi-value payload into trimmed strings.
// Elements may be raw strings, {value: string} wrappers, or scalars; empty
// tokens and unusable elements are dropped.
func FlattenValues(value any) []any {
	list, ok := value.([]any)
	if !ok {
		if value == nil {
			return []any{}
		}
		list = []any{value}
	}

	out := make([]any, 0, len(list))
	for _, el := range list {
		switch v := el.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			if s, ok := v["value"].(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		case nil:
			// dropped
		case bool:
			out = append(out, strconv.FormatBool(v))
		case int64:
			out = append(out, strconv.FormatInt(v, 10))
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// normalizeDate parses a timestamp-ish value and re-emits it as RFC 3339
// UTC. Unparseable values pass through unchanged; date handling is
// best-effort by design.
func normalizeDate(value any) any {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return value
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC().Format(time.RFC3339)
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochToRFC3339(n)
		}
		return value
	case int64:
		return epochToRFC3339(v)
	case float64:
		return epochToRFC3339(int64(v))
	default:
		return value
	}
}

// epochToRFC3339 interprets n as epoch seconds, or epoch milliseconds for
// magnitudes that cannot be plausible second counts.
func epochToRFC3339(n int64) string {
	const msThreshold = int64(1) << 40
	if n >= msThreshold || n <= -msThreshold {
		return time.UnixMilli(n).UTC().Format(time.RFC3339)
	}
	return time.Unix(n, 0).UTC().Format(time.RFC3339)
}
