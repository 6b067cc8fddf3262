package importer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/smonier/importContentFromJson/internal/mapping"
)

// TitleProperty is the preferred source for content names.
const TitleProperty = "jcr:title"

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName turns an arbitrary title into a repository-safe node name:
// diacritics are stripped, anything that is not a letter, digit or space is
// removed, runs of whitespace become a single underscore, and the result is
// lowercased.
func NormalizeName(s string) string {
	decomposed, _, err := transform.String(stripMarks, s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder
	for _, r := range decomposed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	fields := strings.Fields(b.String())
	return strings.ToLower(strings.Join(fields, "_"))
}

// DeriveName picks the node name for one mapped entry: a normalized title
// first, a generic "name" field second, and a timestamp fallback when the
// entry carries neither.
func DeriveName(e mapping.Entry, now func() time.Time) string {
	if s, ok := e[TitleProperty].(string); ok {
		if n := NormalizeName(s); n != "" {
			return n
		}
	}
	if s, ok := e["name"].(string); ok {
		if n := NormalizeName(s); n != "" {
			return n
		}
	}
	if now == nil {
		now = time.Now
	}
	return fmt.Sprintf("content_%d", now().UnixMilli())
}

// VanityURL derives the alias path attached to a created node. Underscores in
// the node name become dashes to keep the URL readable.
func VanityURL(pathSuffix, name string) string {
	return "/" + strings.Trim(pathSuffix, "/") + "/" + strings.ReplaceAll(name, "_", "-")
}
