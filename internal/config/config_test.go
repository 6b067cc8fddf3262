package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smonier/importContentFromJson/internal/mapping"
	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/schema"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"site": "digitall",
		"language": "en",
		"contentType": "jnt:news",
		"pathSuffix": "news",
		"source": {"kind": "json", "file": "records.json"},
		"mappings": {"jcr:title": "title", "body": null},
		"repository": {"kind": "sqlite", "dsn": ":memory:"}
	}`)

	r, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.Site != "digitall" || r.ContentType != "jnt:news" || r.Source.Kind != "json" {
		t.Fatalf("run=%+v", r)
	}
	if src := r.Mappings["jcr:title"]; src == nil || *src != "title" {
		t.Fatalf("title mapping=%v", src)
	}
	if src, ok := r.Mappings["body"]; !ok || src != nil {
		t.Fatalf("explicit null mapping lost: ok=%v src=%v", ok, src)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `{"site": "digitall", "bogus": true}`)
	if _, err := Load(path); err == nil {
		t.Fatal("unknown config field should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Run)
		wantError bool
	}{
		{name: "valid", mutate: func(r *Run) {}, wantError: false},
		{name: "missing_site", mutate: func(r *Run) { r.Site = "" }, wantError: true},
		{name: "missing_content_type", mutate: func(r *Run) { r.ContentType = "" }, wantError: true},
		{name: "bad_source_kind", mutate: func(r *Run) { r.Source.Kind = "xml" }, wantError: true},
		{name: "missing_file", mutate: func(r *Run) { r.Source.File = "" }, wantError: true},
		{name: "long_separator", mutate: func(r *Run) { r.Source.Separator = ";;" }, wantError: true},
		{name: "missing_repo_kind", mutate: func(r *Run) { r.Repository.Kind = "" }, wantError: true},
		{name: "listing_without_fields", mutate: func(r *Run) { r.Source.RecordSelector = "div.item" }, wantError: true},
		{name: "listing_with_fields", mutate: func(r *Run) {
			r.Source.RecordSelector = "div.item"
			r.Source.Fields = map[string]string{"title": "h2"}
		}, wantError: false},
		{name: "missing_language_warns_only", mutate: func(r *Run) { r.Language = "" }, wantError: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Run{
				Site:        "digitall",
				Language:    "en",
				ContentType: "jnt:news",
				Source:      Source{Kind: "csv", File: "x.csv"},
				Repository:  repository.Config{Kind: "sqlite"},
			}
			tc.mutate(&r)
			if got := HasError(Validate(r)); got != tc.wantError {
				t.Fatalf("HasError=%v, want %v; issues=%+v", got, tc.wantError, Validate(r))
			}
		})
	}
}

func TestValidateMappings(t *testing.T) {
	defs := []schema.PropertyDefinition{
		{Name: "jcr:title", Mandatory: true},
		{Name: "body"},
	}
	title := "title"
	missing := "nope"
	jsonPath := "$.items[0].name"

	m := mapping.FieldMappings{
		"jcr:title":  &title,
		"body":       &missing,
		"ghost":      &title,
		"jsonpathed": &jsonPath,
	}

	issues := ValidateMappings(m, defs, []string{"title", "tags"})
	if HasError(issues) {
		t.Fatalf("mapping findings must be warnings: %+v", issues)
	}

	byPath := map[string]string{}
	for _, i := range issues {
		byPath[i.Path] = i.Message
	}
	if _, ok := byPath["mappings.ghost"]; !ok {
		t.Fatalf("missing unknown-target warning; issues=%+v", issues)
	}
	if _, ok := byPath["mappings.body"]; !ok {
		t.Fatalf("missing unknown-source warning; issues=%+v", issues)
	}
	if msg, ok := byPath["mappings.jsonpathed"]; ok {
		// "jsonpathed" warns as an unknown target, but its JSONPath source
		// must not be field-checked.
		if !strings.Contains(msg, "no property") {
			t.Fatalf("jsonpath source should not be field-checked: %q", msg)
		}
	}
}

func TestValidateMandatoryUnmapped(t *testing.T) {
	defs := []schema.PropertyDefinition{{Name: "jcr:title", Mandatory: true}}
	issues := ValidateMappings(mapping.FieldMappings{}, defs, nil)
	if len(issues) != 1 || issues[0].Path != "mappings.jcr:title" {
		t.Fatalf("issues=%+v", issues)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("IMPORT_ADDR", "")
	t.Setenv("IMPORT_REPOSITORY", "")

	env := FromEnv()
	if env.Addr != ":8085" {
		t.Fatalf("addr=%q", env.Addr)
	}
	if env.Repository.Kind != "sqlite" {
		t.Fatalf("repository kind=%q", env.Repository.Kind)
	}
}
