package scan

import (
	"fmt"
	"sync"
)

// maxTopErrors caps the number of verbatim error details kept per plugin.
const maxTopErrors = 10

// Statistics is the frozen per-plugin snapshot of file counts and tier usage
// built once per plugin run. Rates are derived, never stored.
type Statistics struct {
	FilesDiscovered int            `json:"files_discovered"`
	FilesScanned    int            `json:"files_scanned"`
	Structural      int            `json:"structural"` // HIGH confidence files
	Fallback        int            `json:"fallback"`   // MEDIUM confidence files
	Failed          int            `json:"failed"`
	ErrorCounts     map[string]int `json:"error_counts,omitempty"`
	TopErrors       []string       `json:"top_errors,omitempty"`
}

// SuccessRate returns (HIGH + MEDIUM) / filesScanned in [0,1].
// Returns 0 when no files were scanned.
func (s Statistics) SuccessRate() float64 {
	if s.FilesScanned == 0 {
		return 0
	}
	return float64(s.Structural+s.Fallback) / float64(s.FilesScanned)
}

// OverallParseRate returns (HIGH + MEDIUM) / filesDiscovered in [0,1],
// accounting for files skipped by the pre-filter. Returns 0 when no files
// were discovered.
func (s Statistics) OverallParseRate() float64 {
	if s.FilesDiscovered == 0 {
		return 0
	}
	return float64(s.Structural+s.Fallback) / float64(s.FilesDiscovered)
}

// HasFailures reports whether at least one file failed every tier.
func (s Statistics) HasFailures() bool {
	return s.Failed > 0
}

// UsedFallback reports whether at least one file was parsed via Tier 2.
func (s Statistics) UsedFallback() bool {
	return s.Fallback > 0
}

// Summary returns a one-line human-readable report.
func (s Statistics) Summary() string {
	return fmt.Sprintf(
		"discovered %d, scanned %d, structural %d, fallback %d, failed %d (success %.0f%%)",
		s.FilesDiscovered, s.FilesScanned, s.Structural, s.Fallback, s.Failed,
		s.SuccessRate()*100,
	)
}

// StatsBuilder accumulates statistics incrementally across an unbounded
// stream of files. It is safe for concurrent writers: per-file pipeline
// invocations may run in parallel and record into the same builder. The
// final snapshot is invariant to file processing order.
type StatsBuilder struct {
	mu    sync.Mutex
	stats Statistics
}

// NewStatsBuilder returns an empty builder.
func NewStatsBuilder() *StatsBuilder {
	return &StatsBuilder{}
}

// FilesDiscovered adds n to the discovered-file count.
func (b *StatsBuilder) FilesDiscovered(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.FilesDiscovered += n
}

// IncrementFilesScanned counts one file that passed the pre-filter and was
// actually attempted.
func (b *StatsBuilder) IncrementFilesScanned() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.FilesScanned++
}

// RecordTier counts one file outcome against the tier that produced it.
func (b *StatsBuilder) RecordTier(c Confidence) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch c {
	case ConfidenceHigh:
		b.stats.Structural++
	case ConfidenceMedium:
		b.stats.Fallback++
	case ConfidenceFailed:
		b.stats.Failed++
	}
}

// AddError counts an error by kind and keeps up to maxTopErrors verbatim
// details for the diagnostics report.
func (b *StatsBuilder) AddError(kind, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stats.ErrorCounts == nil {
		b.stats.ErrorCounts = make(map[string]int)
	}
	b.stats.ErrorCounts[kind]++
	if len(b.stats.TopErrors) < maxTopErrors {
		b.stats.TopErrors = append(b.stats.TopErrors, detail)
	}
}

// Build returns a frozen snapshot. The builder may continue accumulating
// afterwards; the snapshot does not change.
func (b *StatsBuilder) Build() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.stats
	if len(b.stats.ErrorCounts) > 0 {
		out.ErrorCounts = make(map[string]int, len(b.stats.ErrorCounts))
		for k, v := range b.stats.ErrorCounts {
			out.ErrorCounts[k] = v
		}
	}
	out.TopErrors = append([]string(nil), b.stats.TopErrors...)
	return out
}
