package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/smonier/importContentFromJson/internal/category"
	"github.com/smonier/importContentFromJson/internal/config"
	"github.com/smonier/importContentFromJson/internal/htmlsource"
	"github.com/smonier/importContentFromJson/internal/images"
	"github.com/smonier/importContentFromJson/internal/importer"
	"github.com/smonier/importContentFromJson/internal/mapping"
	"github.com/smonier/importContentFromJson/internal/metrics"
	"github.com/smonier/importContentFromJson/internal/metrics/datadog"
	"github.com/smonier/importContentFromJson/internal/record"
	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/schema"

	// register all backends with the repository factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "github.com/smonier/importContentFromJson/internal/repository/all"
)

// main is the entry point for the one-shot import runner. It loads the run
// config, optionally initializes a metrics backend, and executes
// upload -> map -> preview -> import non-interactively.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		seedPath          string
		previewOut        string
		reportOut         string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/runs/sample.json", "run config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (e.g. datadog, none)")
	flag.StringVar(&seedPath, "seed", "", "schema seed JSON for embedded backends (optional)")
	flag.StringVar(&previewOut, "preview-out", "preview.json", "where to write the mapped preview")
	flag.StringVar(&reportOut, "report-out", "import-report.json", "where to write the import report")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	run, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.Validate(run)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			fatalf("init logger: %v", err)
		}
	}
	defer logger.Sync() //nolint:errcheck

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		// Buffers metrics and submits periodically, with one final submit
		// at shutdown (Close()). Long runs produce a real time series
		// instead of a single spike at the end.
		jobName := run.Job
		if jobName == "" {
			jobName = "content-import"
		}
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
		metrics.SetBackend(b)
		// Close() stops the flush loop and performs the final Flush().
		defer func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}()

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	repo, err := repository.New(ctx, run.Repository)
	if err != nil {
		fatalf("%v", err)
	}
	defer repo.Close()

	if seedPath != "" {
		if err := seedRepository(ctx, repo, seedPath); err != nil {
			fatalf("%v", err)
		}
	}

	records, fields, err := readRecords(run.Source)
	if err != nil {
		fatalf("%v", err)
	}
	if len(records) == 0 {
		fatalf("source %s: no records", run.Source.File)
	}
	if *verbose {
		log.Printf("source: kind=%s file=%s records=%d fields=%d",
			run.Source.Kind, run.Source.File, len(records), len(fields))
	}

	defs, err := repo.ContentTypeProperties(ctx, run.ContentType, run.Language)
	if err != nil {
		fatalf("%v", err)
	}
	if len(defs) == 0 {
		fatalf("content type %s: no property definitions", run.ContentType)
	}

	for _, iss := range config.ValidateMappings(run.Mappings, defs, fields) {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}

	m := mapping.FieldMappings{}
	for k, v := range run.Mappings {
		m[k] = v
	}
	targets := make([]string, 0, len(defs)+len(mapping.ReservedTargets))
	for _, def := range defs {
		targets = append(targets, def.Name)
	}
	targets = append(targets, mapping.ReservedTargets...)
	mapping.AutoSeed(m, targets, fields)

	entries := mapping.GeneratePreview(records, m, defs)
	if err := writeJSONFile(previewOut, entries); err != nil {
		fatalf("%v", err)
	}
	if *verbose {
		log.Printf("preview: %d entries written to %s", len(entries), previewOut)
	}

	runner := &importer.Runner{
		Repo:       repo,
		Categories: category.NewIndex(repo),
		Log:        logger,
	}
	rep := runner.Run(ctx, importer.Job{
		SiteKey:     run.Site,
		ContentType: run.ContentType,
		Language:    run.Language,
		PathSuffix:  run.PathSuffix,
		Override:    run.Override,
		Defs:        defs,
		Entries:     entries,
		Fetcher:     &images.HTTPFetcher{},
	})
	if err := writeJSONFile(reportOut, rep); err != nil {
		fatalf("%v", err)
	}

	n := rep.Summary.Nodes
	log.Printf("import: created=%d updated=%d skipped=%d failed=%d errors=%d in %s",
		n.Created, n.Updated, n.Skipped, n.Failed, len(rep.Errors),
		time.Since(start).Truncate(time.Millisecond))

	if n.Created+n.Updated+n.Skipped == 0 && len(rep.Errors) > 0 {
		os.Exit(1)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// readRecords parses the configured source file into raw records plus the
// discovered field order.
func readRecords(src config.Source) ([]record.Raw, []string, error) {
	f, err := os.Open(src.File)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	switch src.Kind {
	case "json":
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, nil, fmt.Errorf("read source: %w", err)
		}
		records, err := record.ParseJSON(data)
		if err != nil {
			return nil, nil, err
		}
		var fields []string
		if len(records) > 0 {
			fields = record.Fields(records[0])
		}
		return records, fields, nil

	case "csv":
		opt := record.CSVOptions{TrimSpace: true}
		if src.Separator != "" {
			opt.Comma = []rune(src.Separator)[0]
		}
		return record.ParseCSV(f, opt)

	case "html":
		var records []record.Raw
		if src.RecordSelector != "" {
			records, err = htmlsource.ParseListing(f, src.RecordSelector, src.Fields)
		} else {
			records, err = htmlsource.ParseTable(f, src.Selector)
		}
		if err != nil {
			return nil, nil, err
		}
		var fields []string
		if len(records) > 0 {
			fields = record.Fields(records[0])
		}
		return records, fields, nil

	default:
		return nil, nil, fmt.Errorf("source: unsupported kind %q", src.Kind)
	}
}

// seedFile pre-populates an embedded backend with schema metadata so a local
// run does not need a live schema service.
type seedFile struct {
	Site        string                      `json:"site"`
	ContentType schema.ContentType          `json:"contentType"`
	Definitions []schema.PropertyDefinition `json:"definitions"`
	Languages   []schema.Language           `json:"languages,omitempty"`
}

func seedRepository(ctx context.Context, repo repository.Service, path string) error {
	seeder, ok := repo.(repository.Seeder)
	if !ok {
		return fmt.Errorf("seed: backend does not support seeding")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", path, err)
	}
	var sf seedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("seed: decode %s: %w", path, err)
	}

	if err := seeder.SeedContentType(ctx, sf.Site, sf.ContentType, sf.Definitions); err != nil {
		return err
	}
	if len(sf.Languages) > 0 {
		if err := seeder.SeedLanguages(ctx, sf.Site, sf.Languages); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
