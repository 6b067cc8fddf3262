package transform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/smonier/importContentFromJson/internal/images"
	"github.com/smonier/importContentFromJson/internal/report"
	"github.com/smonier/importContentFromJson/internal/repository/repositorytest"
	"github.com/smonier/importContentFromJson/internal/schema"
)

func prop(def schema.PropertyDefinition) schema.Property {
	return schema.Property{PropertyDefinition: def, Kind: schema.Classify(def)}
}

func TestDateNormalization(t *testing.T) {
	tr := &Transformer{Language: "en"}
	def := prop(schema.PropertyDefinition{Name: "startDate", RequiredType: schema.TypeDate})

	cases := []struct {
		in   any
		want any
	}{
		{"2024-03-01", "2024-03-01T00:00:00Z"},
		{"2024-03-01T10:30:00+01:00", "2024-03-01T09:30:00Z"},
		{"2024-03-01 10:30:00", "2024-03-01T10:30:00Z"},
		{int64(1709287800), "2024-03-01T10:10:00Z"},
		{int64(1709287800000), "2024-03-01T10:10:00Z"}, // milliseconds
		{"not a date", "not a date"},                   // best-effort passthrough
		{"", ""},
	}
	for _, tc := range cases {
		in, _ := tr.Property(context.Background(), def, tc.in)
		if in.Value != tc.want {
			t.Errorf("date(%v) = %v, want %v", tc.in, in.Value, tc.want)
		}
	}
}

func TestLanguageOnlyWhenInternationalized(t *testing.T) {
	tr := &Transformer{Language: "fr"}

	plain := prop(schema.PropertyDefinition{Name: "slug", RequiredType: schema.TypeString})
	in, _ := tr.Property(context.Background(), plain, "x")
	if in.Language != "" {
		t.Fatalf("plain language = %q", in.Language)
	}

	i18n := prop(schema.PropertyDefinition{Name: "jcr:title", RequiredType: schema.TypeString, Internationalized: true})
	in, _ = tr.Property(context.Background(), i18n, "x")
	if in.Language != "fr" {
		t.Fatalf("i18n language = %q", in.Language)
	}
}

func TestFlattenValues(t *testing.T) {
	in := []any{"  a ", map[string]any{"value": " b"}, "", map[string]any{"other": 1}, nil, int64(3), true}
	got := FlattenValues(in)
	want := []any{"a", "b", "3", "true"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FlattenValues = %v, want %v", got, want)
	}

	if got := FlattenValues(nil); len(got) != 0 {
		t.Fatalf("FlattenValues(nil) = %v", got)
	}
	if got := FlattenValues("solo"); !reflect.DeepEqual(got, []any{"solo"}) {
		t.Fatalf("FlattenValues(scalar) = %v", got)
	}
}

func TestImageProperties(t *testing.T) {
	repo := repositorytest.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/broken.png" {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	tr := &Transformer{
		Language: "en",
		Images: &images.Resolver{
			Repo:         repo,
			Fetch:        &images.HTTPFetcher{Client: srv.Client()},
			FileBasePath: "/sites/demo/files",
		},
	}

	multi := prop(schema.PropertyDefinition{Name: "gallery", Multiple: true, Constraints: []string{schema.ImageConstraint}})
	value := []any{
		map[string]any{"url": srv.URL + "/a.png"},
		map[string]any{"url": srv.URL + "/broken.png"},
	}

	in, results := tr.Property(context.Background(), multi, value)
	if len(in.Values) != 1 {
		t.Fatalf("values = %v (failed uuids must be filtered)", in.Values)
	}
	if len(results) != 2 || results[1].Status != report.StatusFailed {
		t.Fatalf("results = %+v", results)
	}

	single := prop(schema.PropertyDefinition{Name: "visual", Constraints: []string{schema.ImageConstraint}})
	in, results = tr.Property(context.Background(), single, map[string]any{"url": srv.URL + "/broken.png"})
	if in != nil {
		t.Fatalf("failed single image must omit the property, got %+v", in)
	}
	if len(results) != 1 || results[0].Status != report.StatusFailed {
		t.Fatalf("results = %+v", results)
	}
}
