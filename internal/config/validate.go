package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/smonier/importContentFromJson/internal/mapping"
	"github.com/smonier/importContentFromJson/internal/schema"
)

// Severity classifies a validation finding. Errors block the run; warnings
// are printed and the run proceeds.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one validation finding.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func errf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)}
}

func warnf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityWarn, Path: path, Message: fmt.Sprintf(format, a...)}
}

var structValidator = validator.New()

// Validate checks the structural shape of a run configuration. Mapping
// consistency against the actual schema and discovered fields is a separate
// step (ValidateMappings) because it needs data fetched at run time.
func Validate(r Run) []Issue {
	var issues []Issue

	if err := structValidator.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				issues = append(issues, errf(issuePath(fe), "violates %q constraint", fe.Tag()))
			}
		} else {
			issues = append(issues, errf("", "%v", err))
		}
	}

	if r.Language == "" {
		issues = append(issues, warnf("language", "no language set; defaulting to %q", "en"))
	}
	if r.Source.RecordSelector != "" && len(r.Source.Fields) == 0 {
		issues = append(issues, errf("source.fields", "listing harvesting needs at least one field selector"))
	}
	for target := range r.Mappings {
		if strings.TrimSpace(target) == "" {
			issues = append(issues, errf("mappings", "empty mapping target"))
		}
	}

	return issues
}

// issuePath turns a validator namespace like "Run.Source.Kind" into the
// config file path "source.kind".
func issuePath(fe validator.FieldError) string {
	segs := strings.Split(fe.StructNamespace(), ".")
	if len(segs) > 1 {
		segs = segs[1:]
	}
	for i, s := range segs {
		segs[i] = strings.ToLower(s[:1]) + s[1:]
	}
	return strings.Join(segs, ".")
}

// ValidateMappings cross-checks mappings against the fetched property
// definitions and the fields discovered in the uploaded records. Findings are
// warnings only: unknown keys are dropped during transformation, and unmapped
// targets simply produce no property.
func ValidateMappings(m mapping.FieldMappings, defs []schema.PropertyDefinition, fields []string) []Issue {
	var issues []Issue

	known := map[string]bool{}
	for _, d := range defs {
		known[d.Name] = true
	}
	for _, r := range mapping.ReservedTargets {
		known[r] = true
	}

	haveField := map[string]bool{}
	for _, f := range fields {
		haveField[f] = true
	}

	for target, src := range m {
		if !known[target] {
			issues = append(issues, warnf("mappings."+target, "no property of this name in the selected content type; values will be dropped"))
		}
		if src == nil {
			continue
		}
		// JSONPath sources are resolved per record and cannot be checked
		// against the flat field list.
		if strings.HasPrefix(*src, "$") {
			continue
		}
		if !haveField[*src] {
			issues = append(issues, warnf("mappings."+target, "source field %q not found in the uploaded records", *src))
		}
	}

	for _, d := range defs {
		// Absent and explicitly-null mappings both leave the property unset.
		if d.Mandatory && m[d.Name] == nil {
			issues = append(issues, warnf("mappings."+d.Name, "mandatory property is not mapped"))
		}
	}

	return issues
}

// HasError reports whether any finding blocks the run.
func HasError(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
