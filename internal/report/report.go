// Package report accumulates per-record, per-image and per-category outcomes
// of one import run and aggregates them into summary counts.
//
// The outcome lists are the source of truth; the summary is informational
// display data and must never drive pass/fail decisions.
package report

import "time"

// Outcome statuses. "already exists" is the skip status of the
// override-disabled policy; summaries count it as skipped.
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusExists  = "already exists"
	StatusFailed  = "failed"
)

// NodeOutcome is one row of the node list: the full candidate path and the
// terminal status of that record.
type NodeOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ImageOutcome is one resolved image: file name, status, and the content
// node it belongs to.
type ImageOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Node   string `json:"node"`
}

// CategoryOutcome is one attempted category attachment.
type CategoryOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Node   string `json:"node"`
}

// Error is one recorded failure, primary or secondary.
type Error struct {
	Node    string `json:"node"`
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

// Counts aggregates one outcome kind.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// CategoryCounts aggregates category outcomes with a per-name breakdown of
// successful attachments.
type CategoryCounts struct {
	Created   int            `json:"created"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Breakdown map[string]int `json:"breakdown"`
}

// Summary is the aggregate view shown after a run.
type Summary struct {
	ContentType string         `json:"contentType"`
	Path        string         `json:"path"`
	Nodes       Counts         `json:"nodes"`
	Images      Counts         `json:"images"`
	Categories  CategoryCounts `json:"categories"`
}

// Report is the run artifact. It is appended to monotonically while one
// import is in flight and immutable once finalized.
type Report struct {
	ContentType string            `json:"contentType"`
	Path        string            `json:"path"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt,omitempty"`
	Nodes       []NodeOutcome     `json:"nodes"`
	Images      []ImageOutcome    `json:"images"`
	Categories  []CategoryOutcome `json:"categories"`
	Errors      []Error           `json:"errors"`
	Summary     Summary           `json:"summary"`
}

// New starts an empty report for one run.
func New(contentType, path string) *Report {
	return &Report{
		ContentType: contentType,
		Path:        path,
		StartedAt:   time.Now().UTC(),
		Nodes:       []NodeOutcome{},
		Images:      []ImageOutcome{},
		Categories:  []CategoryOutcome{},
		Errors:      []Error{},
	}
}

func (r *Report) AddNode(name, status string) {
	r.Nodes = append(r.Nodes, NodeOutcome{Name: name, Status: status})
}

func (r *Report) AddImage(name, status, node string) {
	r.Images = append(r.Images, ImageOutcome{Name: name, Status: status, Node: node})
}

func (r *Report) AddCategory(name, status, node string) {
	r.Categories = append(r.Categories, CategoryOutcome{Name: name, Status: status, Node: node})
}

func (r *Report) AddError(node, reason, details string) {
	r.Errors = append(r.Errors, Error{Node: node, Reason: reason, Details: details})
}

// Finalize computes the summary. totalRecords is the size of the input record
// set; it can exceed the processed count when the run aborted early.
func (r *Report) Finalize(totalRecords int) {
	r.FinishedAt = time.Now().UTC()

	nodes := Counts{Processed: len(r.Nodes), Total: totalRecords}
	for _, n := range r.Nodes {
		switch n.Status {
		case StatusCreated:
			nodes.Created++
		case StatusUpdated:
			nodes.Updated++
		case StatusFailed:
			nodes.Failed++
		case StatusExists:
			nodes.Skipped++
		}
	}

	images := Counts{Processed: len(r.Images), Total: len(r.Images)}
	for _, img := range r.Images {
		switch img.Status {
		case StatusCreated:
			images.Created++
		case StatusFailed:
			images.Failed++
		case StatusExists:
			images.Skipped++
		}
	}

	cats := CategoryCounts{Breakdown: map[string]int{}}
	for _, c := range r.Categories {
		switch c.Status {
		case StatusCreated:
			cats.Created++
			cats.Breakdown[c.Name]++
		case StatusFailed:
			cats.Failed++
		case StatusExists:
			cats.Skipped++
		}
	}

	r.Summary = Summary{
		ContentType: r.ContentType,
		Path:        r.Path,
		Nodes:       nodes,
		Images:      images,
		Categories:  cats,
	}
}
