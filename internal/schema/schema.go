// Package schema models the target content type: the property definitions
// fetched from the repository and their resolved value kinds.
package schema

import "strings"

// Required-type names as reported by the repository schema service.
const (
	TypeString  = "STRING"
	TypeDate    = "DATE"
	TypeBoolean = "BOOLEAN"
	TypeLong    = "LONG"
	TypeDouble  = "DOUBLE"
)

// ImageConstraint marks a property whose values are image references.
const ImageConstraint = "{http://www.jahia.org/jahia/mix/1.0}image"

// PropertyDefinition describes one property of the selected content type.
// Definitions are immutable for the duration of an import session and are
// refetched whenever the selected content type changes.
type PropertyDefinition struct {
	Name              string   `json:"name"`
	DisplayName       string   `json:"displayName"`
	RequiredType      string   `json:"requiredType"`
	Multiple          bool     `json:"multiple"`
	Internationalized bool     `json:"internationalized"`
	Constraints       []string `json:"constraints,omitempty"`
	Mandatory         bool     `json:"mandatory"`
}

// Kind is the closed classification of a property definition. Classification
// happens once per definition so the per-record hot path branches on a tag
// instead of re-scanning constraint strings.
type Kind int

const (
	KindPlainSingle Kind = iota
	KindPlainMultiple
	KindDate
	KindImageSingle
	KindImageMultiple
)

func (k Kind) String() string {
	switch k {
	case KindPlainSingle:
		return "plain"
	case KindPlainMultiple:
		return "plain-multiple"
	case KindDate:
		return "date"
	case KindImageSingle:
		return "image"
	case KindImageMultiple:
		return "image-multiple"
	default:
		return "unknown"
	}
}

// Classify resolves a definition into exactly one Kind.
//
// Precedence: image beats date beats multiple. A multi-valued DATE property
// classifies as plain-multiple; per-element date normalization is not
// attempted, matching the single-value-only date handling of the importer.
func Classify(def PropertyDefinition) Kind {
	if isImage(def) {
		if def.Multiple {
			return KindImageMultiple
		}
		return KindImageSingle
	}
	if def.Multiple {
		return KindPlainMultiple
	}
	if def.RequiredType == TypeDate {
		return KindDate
	}
	return KindPlainSingle
}

func isImage(def PropertyDefinition) bool {
	for _, c := range def.Constraints {
		if strings.Contains(c, "image") {
			return true
		}
	}
	return false
}

// Property is a definition with its pre-resolved kind.
type Property struct {
	PropertyDefinition
	Kind Kind
}

// Index builds a name-keyed lookup with pre-resolved kinds.
func Index(defs []PropertyDefinition) map[string]Property {
	out := make(map[string]Property, len(defs))
	for _, def := range defs {
		out[def.Name] = Property{PropertyDefinition: def, Kind: Classify(def)}
	}
	return out
}

// ContentType is one importable type offered by the repository.
type ContentType struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Icon        string `json:"icon,omitempty"`
}

// Language is one language configured on a site.
type Language struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}
