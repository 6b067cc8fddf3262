// Package importer drives the two-phase import: a pre-run phase resolving
// content and file paths, then a strictly sequential per-record loop that
// creates or updates one node per mapped entry.
//
// Failure isolation is per side-effect step, not per record: a record whose
// mutation fails is marked failed and the loop continues; tag, category and
// vanity URL attachment failures after a successful mutation are recorded as
// secondary errors and never revert the node.
package importer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/smonier/importContentFromJson/internal/category"
	"github.com/smonier/importContentFromJson/internal/images"
	"github.com/smonier/importContentFromJson/internal/mapping"
	"github.com/smonier/importContentFromJson/internal/metrics"
	"github.com/smonier/importContentFromJson/internal/report"
	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/schema"
	"github.com/smonier/importContentFromJson/internal/transform"
)

// Error reasons recorded in the run report.
const (
	ReasonPathCheck  = "Error checking existing content"
	ReasonCreate     = "Error creating content"
	ReasonUpdate     = "Error updating content"
	ReasonImage      = "Error processing image"
	ReasonTags       = "Error adding tags"
	ReasonCategories = "Error adding categories"
	ReasonNoCategory = "No matching category UUID found"
	ReasonVanity     = "Error adding vanity URL"
	ReasonUnhandled  = "Unhandled error during import"
)

// Job describes one import run.
type Job struct {
	SiteKey     string
	ContentType string
	Language    string
	// PathSuffix is appended to the site's content and file roots.
	PathSuffix string
	// Override updates pre-existing nodes instead of skipping them.
	Override bool

	Defs    []schema.PropertyDefinition
	Entries []mapping.Entry

	// Fetcher retrieves image binaries. Nil means a default HTTP fetcher.
	Fetcher images.Fetcher
}

// Runner executes import jobs against one repository backend.
type Runner struct {
	Repo       repository.Service
	Categories *category.Index
	Log        *zap.Logger

	// Now is a clock seam for deterministic names in tests.
	Now func() time.Time
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Runner) clock() func() time.Time {
	if r.Now == nil {
		return time.Now
	}
	return r.Now
}

// Run executes the job and returns the finalized report. Run never returns an
// error: every failure, including a panic inside the loop, becomes a report
// entry so partial progress is surfaced rather than discarded.
func (r *Runner) Run(ctx context.Context, job Job) *report.Report {
	started := r.clock()()

	contentPath := JoinSuffix(ContentBasePath(job.SiteKey), job.PathSuffix)
	rep := report.New(job.ContentType, contentPath)

	r.run(ctx, job, rep, contentPath)

	rep.Finalize(len(job.Entries))
	r.emitMetrics(rep, r.clock()().Sub(started))
	return rep
}

func (r *Runner) run(ctx context.Context, job Job, rep *report.Report, contentPath string) {
	log := r.logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error("import loop aborted", zap.Any("panic", p))
			rep.AddNode(contentPath, report.StatusFailed)
			rep.AddError(contentPath, ReasonUnhandled, fmt.Sprint(p))
		}
	}()

	if _, err := EnsurePath(ctx, r.Repo, ContentBasePath(job.SiteKey), job.PathSuffix, FolderTypeContent); err != nil {
		rep.AddError(contentPath, ReasonCreate, err.Error())
		return
	}
	if _, err := EnsurePath(ctx, r.Repo, FileBasePath(job.SiteKey), job.PathSuffix, FolderTypeFile); err != nil {
		rep.AddError(contentPath, ReasonCreate, err.Error())
		return
	}

	fetcher := job.Fetcher
	if fetcher == nil {
		fetcher = &images.HTTPFetcher{}
	}
	tr := &transform.Transformer{
		Language: job.Language,
		Images: &images.Resolver{
			Repo:         r.Repo,
			Fetch:        fetcher,
			FileBasePath: FileBasePath(job.SiteKey),
			PathSuffix:   job.PathSuffix,
			Log:          log,
		},
	}
	props := schema.Index(job.Defs)

	for _, entry := range job.Entries {
		r.importEntry(ctx, job, rep, tr, props, contentPath, entry)
	}
}

func (r *Runner) importEntry(ctx context.Context, job Job, rep *report.Report, tr *transform.Transformer, props map[string]schema.Property, contentPath string, entry mapping.Entry) {
	log := r.logger()

	name := DeriveName(entry, r.clock())
	full := contentPath + "/" + name

	info, err := repository.NodeExists(ctx, r.Repo, full)
	if err != nil {
		rep.AddNode(full, report.StatusFailed)
		rep.AddError(full, ReasonPathCheck, err.Error())
		return
	}

	if info.Exists && !job.Override {
		// Skip the whole record: no transformation, no images, no mutation.
		rep.AddNode(full, report.StatusExists)
		return
	}

	// Deterministic property order keeps mutations and reports reproducible.
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var inputs []repository.PropertyInput
	for _, k := range keys {
		if k == mapping.ReservedTagList || k == mapping.ReservedDefaultCategory {
			continue
		}
		prop, ok := props[k]
		if !ok {
			log.Debug("dropping key without schema property", zap.String("key", k))
			continue
		}
		in, results := tr.Property(ctx, prop, entry[k])
		for _, res := range results {
			rep.AddImage(res.FileName, res.Status, full)
			if res.Err != nil {
				rep.AddError(full, ReasonImage, res.Err.Error())
			}
		}
		if in != nil {
			inputs = append(inputs, *in)
		}
	}

	var id, status string
	if info.Exists {
		id, err = r.Repo.UpdateContent(ctx, info.UUID, inputs)
		status = report.StatusUpdated
		if err != nil {
			rep.AddNode(full, report.StatusFailed)
			rep.AddError(full, ReasonUpdate, err.Error())
			return
		}
	} else {
		id, err = r.Repo.CreateContent(ctx, contentPath, name, job.ContentType, inputs)
		status = report.StatusCreated
		if err != nil {
			rep.AddNode(full, report.StatusFailed)
			rep.AddError(full, ReasonCreate, err.Error())
			return
		}
	}
	rep.AddNode(full, status)

	if tags := stringValues(entry[mapping.ReservedTagList]); len(tags) > 0 {
		if err := r.Repo.AddTags(ctx, id, tags); err != nil {
			rep.AddError(full, ReasonTags, err.Error())
		}
	}

	if cats := stringValues(entry[mapping.ReservedDefaultCategory]); len(cats) > 0 {
		r.attachCategories(ctx, rep, id, full, cats)
	}

	if job.PathSuffix != "" {
		if err := r.Repo.AddVanityURL(ctx, id, job.Language, VanityURL(job.PathSuffix, name)); err != nil {
			rep.AddError(full, ReasonVanity, err.Error())
		}
	}
}

// attachCategories resolves names through the category index and submits the
// matched identifiers as one batched call. A failing batch marks every
// category in it failed; per-category splitting is not attempted.
func (r *Runner) attachCategories(ctx context.Context, rep *report.Report, id, node string, names []string) {
	var matchedIDs, matchedNames []string
	for _, name := range names {
		uuid, ok, err := r.Categories.Lookup(ctx, name)
		if err != nil {
			rep.AddCategory(name, report.StatusFailed, node)
			rep.AddError(node, ReasonCategories, err.Error())
			continue
		}
		if !ok {
			rep.AddCategory(name, report.StatusFailed, node)
			rep.AddError(node, ReasonNoCategory, name)
			continue
		}
		matchedIDs = append(matchedIDs, uuid)
		matchedNames = append(matchedNames, name)
	}

	if len(matchedIDs) == 0 {
		return
	}
	if err := r.Repo.AddCategories(ctx, id, matchedIDs); err != nil {
		for _, name := range matchedNames {
			rep.AddCategory(name, report.StatusFailed, node)
		}
		rep.AddError(node, ReasonCategories, err.Error())
		return
	}
	for _, name := range matchedNames {
		rep.AddCategory(name, report.StatusCreated, node)
	}
}

func (r *Runner) emitMetrics(rep *report.Report, elapsed time.Duration) {
	metrics.IncCounter(metrics.RunsTotal, 1, nil)
	for _, n := range rep.Nodes {
		metrics.IncCounter(metrics.NodesTotal, 1, metrics.Labels{"status": n.Status})
	}
	for _, img := range rep.Images {
		metrics.IncCounter(metrics.ImagesTotal, 1, metrics.Labels{"status": img.Status})
	}
	for _, c := range rep.Categories {
		metrics.IncCounter(metrics.CategoriesTotal, 1, metrics.Labels{"status": c.Status})
	}
	metrics.ObserveHistogram(metrics.RunDuration, elapsed.Seconds(), nil)
}

func stringValues(v any) []string {
	flat := transform.FlattenValues(v)
	out := make([]string, 0, len(flat))
	for _, e := range flat {
		if s, ok := e.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
