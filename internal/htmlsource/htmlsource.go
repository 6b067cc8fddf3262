// Package htmlsource harvests importable records from HTML listings, a third
// input format next to JSON and CSV. A table becomes one record per data row
// keyed by the header cells; arbitrary repeated markup becomes one record per
// container element via per-field selectors.
package htmlsource

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/smonier/importContentFromJson/internal/record"
)

// ParseTable extracts records from the first table matched by selector.
// Header cells (th, or the first row's td when the table has no th) become
// the field names; each following row becomes one record. Empty cells map to
// nil so missing and empty values stay distinguishable downstream.
func ParseTable(r io.Reader, selector string) ([]record.Raw, error) {
	if selector == "" {
		selector = "table"
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("htmlsource: parse html: %w", err)
	}

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("htmlsource: no element matches selector %q", selector)
	}

	var headers []string
	table.Find("th").Each(func(_ int, s *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(s.Text()))
	})

	rows := table.Find("tr")
	start := 0
	if len(headers) == 0 {
		// Headerless tables use the first row as the header row.
		rows.First().Find("td").Each(func(_ int, s *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(s.Text()))
		})
		start = 1
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("htmlsource: table has no header cells")
	}

	var records []record.Raw
	rows.Each(func(i int, row *goquery.Selection) {
		if i < start {
			return
		}
		cells := row.Find("td")
		if cells.Length() == 0 {
			return // header or spacer row
		}
		rec := record.Raw{}
		cells.Each(func(j int, cell *goquery.Selection) {
			if j >= len(headers) || headers[j] == "" {
				return
			}
			text := strings.TrimSpace(cell.Text())
			if text == "" {
				rec[headers[j]] = nil
				return
			}
			rec[headers[j]] = text
		})
		if len(rec) > 0 {
			records = append(records, rec)
		}
	})
	return records, nil
}

// ParseListing extracts one record per element matched by recordSelector.
// Each field selector is evaluated relative to the container; a "@attr"
// suffix reads an attribute instead of the text content ("a@href"). Fields
// with no match are omitted from the record, preserving DOM order of the
// containers.
func ParseListing(r io.Reader, recordSelector string, fields map[string]string) ([]record.Raw, error) {
	if recordSelector == "" {
		return nil, fmt.Errorf("htmlsource: record selector is required")
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("htmlsource: parse html: %w", err)
	}

	var records []record.Raw
	doc.Find(recordSelector).Each(func(_ int, container *goquery.Selection) {
		rec := record.Raw{}
		for name, sel := range fields {
			if v, ok := extractField(container, sel); ok {
				rec[name] = v
			}
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	})
	return records, nil
}

func extractField(container *goquery.Selection, sel string) (string, bool) {
	attr := ""
	if at := strings.LastIndex(sel, "@"); at >= 0 {
		attr = sel[at+1:]
		sel = sel[:at]
	}

	match := container.Find(sel).First()
	if match.Length() == 0 {
		return "", false
	}
	if attr != "" {
		v, ok := match.Attr(attr)
		return strings.TrimSpace(v), ok
	}
	return strings.TrimSpace(match.Text()), true
}
