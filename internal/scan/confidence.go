// Package scan implements the plugin orchestration core: the read-only scan
// context, the plugin registry, the tiered per-file parsing pipeline with
// confidence tracking, per-plugin statistics, and the merger that assembles
// every plugin's partial result into one ArchitectureModel.
package scan

// Confidence is the trust level attached to extracted facts, derived from
// which extraction tier produced them.
type Confidence string

const (
	// ConfidenceHigh marks facts extracted via a structural (AST) parse.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium marks facts extracted via pattern-based fallback.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceFailed marks a file that contributed zero facts because
	// every tier failed.
	ConfidenceFailed Confidence = "failed"
)

// Weight returns a numeric weight for filtering results by minimum
// confidence. High=1.0, Medium=0.7, Failed=0.
func (c Confidence) Weight() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.0
	case ConfidenceMedium:
		return 0.7
	default:
		return 0
	}
}

// Tier identifies one of the extraction strategies applied per file, in
// order of decreasing precision.
type Tier string

const (
	TierStructural Tier = "structural"
	TierFallback   Tier = "fallback"
	// TierNone marks failures that happen before any tier runs, such as
	// an unreadable file.
	TierNone Tier = "none"
)
