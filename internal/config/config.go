// Package config loads and validates run configuration: a JSON file for the
// CLI, environment variables (optionally via a .env file) for the service.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/smonier/importContentFromJson/internal/repository"
)

// Source describes the input file of a run.
type Source struct {
	// Kind is "json", "csv" or "html".
	Kind string `json:"kind" validate:"required,oneof=json csv html"`
	File string `json:"file" validate:"required"`

	// Separator is the CSV delimiter; defaults to ",".
	Separator string `json:"separator,omitempty" validate:"max=1"`

	// Selector is the goquery selector for html sources; defaults to "table".
	Selector string `json:"selector,omitempty"`

	// RecordSelector switches an html source from table extraction to
	// listing harvesting: one record per matched container element.
	RecordSelector string `json:"recordSelector,omitempty"`

	// Fields maps field names to selectors evaluated relative to each
	// record container, with an optional "@attr" suffix ("a@href").
	Fields map[string]string `json:"fields,omitempty"`
}

// Run is the CLI run configuration.
type Run struct {
	// Job names the run for metrics tagging.
	Job string `json:"job,omitempty"`

	Site        string `json:"site" validate:"required"`
	Language    string `json:"language"`
	ContentType string `json:"contentType" validate:"required"`
	PathSuffix  string `json:"pathSuffix"`
	Override    bool   `json:"override"`

	Source Source `json:"source"`

	// Mappings maps schema property names to source field paths. A null
	// value suppresses the property explicitly; an absent key lets the
	// reserved pseudo-properties fall back to their own name.
	Mappings map[string]*string `json:"mappings"`

	Repository repository.Config `json:"repository"`
}

// Load reads a run configuration from a JSON file.
func Load(path string) (Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return Run{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var r Run
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return Run{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return r, nil
}

// Env is the service configuration, read from the environment.
type Env struct {
	Addr string

	Repository repository.Config

	MetricsBackend string
	MetricsTags    string
}

// FromEnv loads a .env file when present and reads the service settings.
// Every variable has a workable default except the repository kind.
func FromEnv() Env {
	// A missing .env file is fine; real environments set variables directly.
	_ = godotenv.Load()

	return Env{
		Addr: getenv("IMPORT_ADDR", ":8085"),
		Repository: repository.Config{
			Kind:        getenv("IMPORT_REPOSITORY", "sqlite"),
			DSN:         os.Getenv("IMPORT_DSN"),
			BaseURL:     os.Getenv("IMPORT_BASE_URL"),
			BearerToken: os.Getenv("IMPORT_BEARER_TOKEN"),
		},
		MetricsBackend: os.Getenv("METRICS_BACKEND"),
		MetricsTags:    os.Getenv("METRICS_TAGS"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
