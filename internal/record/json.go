package record

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
)

// ParseJSON parses an uploaded JSON document into records.
//
// Accepted roots:
//   - an array of objects (nil elements are skipped)
//   - a single object, treated as one record
//
// Anything else is a structural error and blocks the upload.
func ParseJSON(data []byte) ([]Raw, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("record: parse json: %w", err)
	}

	switch v := root.(type) {
	case []any:
		records := make([]Raw, 0, len(v))
		for i, el := range v {
			if el == nil {
				continue
			}
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record: element %d is not an object (got %T)", i, el)
			}
			records = append(records, Raw(obj))
		}
		return records, nil

	case map[string]any:
		return []Raw{Raw(v)}, nil

	default:
		return nil, fmt.Errorf("record: unsupported json root %T (want object or array)", root)
	}
}
