package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVOptions tunes CSV parsing. The zero value selects a comma separator with
// whitespace trimming, matching the browser upload path.
type CSVOptions struct {
	Comma     rune // field separator; 0 means ','
	TrimSpace bool
	LazyQuote bool
}

// ParseCSV reads a delimited file with a header row into records keyed by the
// header names, plus the header order for field discovery.
//
// Cells are kept as strings; an empty cell becomes nil so "no value" and
// "value present" stay distinguishable downstream. Short rows leave trailing
// fields nil; extra cells beyond the header are dropped.
func ParseCSV(r io.Reader, opt CSVOptions) ([]Raw, []string, error) {
	comma := opt.Comma
	if comma == 0 {
		comma = ','
	}

	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.LazyQuote
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("record: csv is empty")
		}
		return nil, nil, fmt.Errorf("record: read csv header: %w", err)
	}

	headers := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = strings.TrimSpace(h)
	}

	var records []Raw
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return records, headers, nil
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("record: csv line %d: %w", line, err)
		}

		row := make(Raw, len(headers))
		for i, name := range headers {
			if name == "" {
				continue
			}
			var v any
			if i < len(rec) {
				s := rec[i]
				if opt.TrimSpace {
					s = strings.TrimSpace(s)
				}
				if s != "" {
					v = s
				}
			}
			row[name] = v
		}
		records = append(records, row)
	}
}
