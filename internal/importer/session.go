package importer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smonier/importContentFromJson/internal/mapping"
	"github.com/smonier/importContentFromJson/internal/record"
	"github.com/smonier/importContentFromJson/internal/report"
	"github.com/smonier/importContentFromJson/internal/schema"
)

// State is the lifecycle position of an import session.
//
// Idle -> MappingReady -> PreviewGenerated -> Importing -> Completed | Failed.
// Editing mappings or re-uploading from PreviewGenerated loops back to
// MappingReady; terminal states accept edits too, starting a fresh cycle.
type State int

const (
	StateIdle State = iota
	StateMappingReady
	StatePreviewGenerated
	StateImporting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMappingReady:
		return "mapping_ready"
	case StatePreviewGenerated:
		return "preview_generated"
	case StateImporting:
		return "importing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session holds the mutable state of one import flow: uploaded records,
// selected content type, field mappings, the generated preview and the final
// report. All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time
	state     State

	siteKey  string
	language string

	contentType string
	defs        []schema.PropertyDefinition

	records []record.Raw
	fields  []string

	mappings mapping.FieldMappings
	entries  []mapping.Entry
	report   *report.Report
}

// NewSession starts an idle session bound to a site and language.
func NewSession(siteKey, language string) *Session {
	return &Session{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
		siteKey:   siteKey,
		language:  language,
		mappings:  mapping.FieldMappings{},
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) SiteKey() string      { return s.siteKey }
func (s *Session) Language() string     { return s.language }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ContentType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentType
}

func (s *Session) Defs() []schema.PropertyDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defs
}

func (s *Session) Records() []record.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

func (s *Session) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields
}

func (s *Session) Mappings() mapping.FieldMappings {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(mapping.FieldMappings, len(s.mappings))
	for k, v := range s.mappings {
		out[k] = v
	}
	return out
}

func (s *Session) Entries() []mapping.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

func (s *Session) Report() *report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// SetSource installs uploaded records and their discovered fields, discarding
// any previous preview or report.
func (s *Session) SetSource(records []record.Raw, fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateImporting {
		return fmt.Errorf("importer: session %s: cannot replace source while importing", s.id)
	}

	s.records = records
	s.fields = fields
	s.entries = nil
	s.report = nil
	s.seedMappingsLocked()
	s.recomputeLocked()
	return nil
}

// SetContentType selects the target type and its property definitions.
// Mapping targets matching a discovered field by exact name are auto-seeded,
// never overwriting an explicit choice.
func (s *Session) SetContentType(name string, defs []schema.PropertyDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateImporting {
		return fmt.Errorf("importer: session %s: cannot change content type while importing", s.id)
	}

	if name != s.contentType {
		s.mappings = mapping.FieldMappings{}
	}
	s.contentType = name
	s.defs = defs
	s.entries = nil
	s.report = nil
	s.seedMappingsLocked()
	s.recomputeLocked()
	return nil
}

// SetMappings replaces the field mappings, looping the session back to
// MappingReady when a preview had already been generated.
func (s *Session) SetMappings(m mapping.FieldMappings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateImporting {
		return fmt.Errorf("importer: session %s: cannot edit mappings while importing", s.id)
	}
	if s.contentType == "" {
		return fmt.Errorf("importer: session %s: no content type selected", s.id)
	}

	s.mappings = m
	s.entries = nil
	s.report = nil
	s.recomputeLocked()
	return nil
}

// GeneratePreview produces the mapped entries for the current records and
// mappings and advances the session to PreviewGenerated.
func (s *Session) GeneratePreview() ([]mapping.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMappingReady && s.state != StatePreviewGenerated {
		return nil, fmt.Errorf("importer: session %s: preview requires records and a content type (state=%s)", s.id, s.state)
	}

	s.entries = mapping.GeneratePreview(s.records, s.mappings, s.defs)
	s.state = StatePreviewGenerated
	return s.entries, nil
}

// BeginImport transitions to Importing and returns the job to run. It fails
// unless a non-empty preview exists.
func (s *Session) BeginImport(pathSuffix string, override bool) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreviewGenerated {
		return Job{}, fmt.Errorf("importer: session %s: import requires a generated preview (state=%s)", s.id, s.state)
	}
	if len(s.entries) == 0 {
		return Job{}, fmt.Errorf("importer: session %s: nothing to import", s.id)
	}

	s.state = StateImporting
	return Job{
		SiteKey:     s.siteKey,
		ContentType: s.contentType,
		Language:    s.language,
		PathSuffix:  pathSuffix,
		Override:    override,
		Defs:        s.defs,
		Entries:     s.entries,
	}, nil
}

// FinishImport records the run report and settles the terminal state: Failed
// when nothing succeeded and errors were recorded, Completed otherwise.
func (s *Session) FinishImport(rep *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateImporting {
		return fmt.Errorf("importer: session %s: no import in flight (state=%s)", s.id, s.state)
	}

	s.report = rep
	nodes := rep.Summary.Nodes
	if nodes.Created+nodes.Updated+nodes.Skipped == 0 && len(rep.Errors) > 0 {
		s.state = StateFailed
	} else {
		s.state = StateCompleted
	}
	return nil
}

func (s *Session) seedMappingsLocked() {
	if s.contentType == "" || len(s.fields) == 0 {
		return
	}
	targets := make([]string, 0, len(s.defs)+len(mapping.ReservedTargets))
	for _, d := range s.defs {
		targets = append(targets, d.Name)
	}
	targets = append(targets, mapping.ReservedTargets...)
	mapping.AutoSeed(s.mappings, targets, s.fields)
}

func (s *Session) recomputeLocked() {
	if len(s.records) > 0 && s.contentType != "" {
		s.state = StateMappingReady
	} else {
		s.state = StateIdle
	}
}
