// Package metrics is a minimal facade decoupling the import pipeline from any
// concrete metrics vendor. The pipeline emits counters and histograms through
// package-level functions; binaries choose a backend at startup.
package metrics

import "sync"

// Labels attach low-cardinality dimensions to a metric.
type Labels map[string]string

// Backend is implemented by metric sinks (see metrics/datadog).
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names emitted by the import pipeline. Labels: status.
const (
	RunsTotal       = "import.runs.total"
	NodesTotal      = "import.nodes.total"
	ImagesTotal     = "import.images.total"
	CategoriesTotal = "import.categories.total"
	RunDuration     = "import.run.duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Call once at startup.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forces buffered metrics out. Deferred by binaries before exit.
func Flush() error {
	return current().Flush()
}
