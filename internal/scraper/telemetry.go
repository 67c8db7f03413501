package scraper

import (
	"sort"

	"hemnetscraper/logger"
)

// Telemetry accumulates exceptions and null field observations over one
// run. It is owned by a single crawler goroutine and never drives control
// flow; it exists only for the end-of-run summary.
type Telemetry struct {
	errs  []error
	nulls map[string]struct{}
}

// NewTelemetry creates an empty run accumulator.
func NewTelemetry() *Telemetry {
	return &Telemetry{nulls: make(map[string]struct{})}
}

// RecordError remembers an exception encountered during the run.
func (t *Telemetry) RecordError(err error) {
	if err == nil {
		return
	}
	t.errs = append(t.errs, err)
}

// RecordNull remembers that a field was observed null.
func (t *Telemetry) RecordNull(field string) {
	t.nulls[field] = struct{}{}
}

// ErrorCount returns the number of recorded exceptions.
func (t *Telemetry) ErrorCount() int {
	return len(t.errs)
}

// NullFields returns the sorted set of fields ever observed null.
func (t *Telemetry) NullFields() []string {
	fields := make([]string, 0, len(t.nulls))
	for f := range t.nulls {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// LogSummary writes the end-of-run report.
func (t *Telemetry) LogSummary(log *logger.Logger) {
	log.Info().
		Int("exceptions", t.ErrorCount()).
		Strs("null_fields", t.NullFields()).
		Msg("Run completed")
}
