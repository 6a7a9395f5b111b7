// Package output renders a merged architecture model, its per-plugin scan
// statistics, and the merge warnings into the supported output formats.
package output

import (
	"fmt"
	"sort"
	"time"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

// Document is everything a formatter renders for one completed scan.
type Document struct {
	Model       *model.ArchitectureModel   `json:"model"`
	Statistics  map[string]scan.Statistics `json:"statistics,omitempty"`
	Warnings    []string                   `json:"warnings,omitempty"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// Formatter renders a Document into output bytes.
type Formatter interface {
	Format(doc *Document) ([]byte, error)
	Extension() string
}

// ByName returns the formatter for a format name.
func ByName(name string) (Formatter, error) {
	switch name {
	case "json":
		return NewJSONFormatter(), nil
	case "markdown", "md":
		return NewMarkdownFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", name)
	}
}

// pluginIDs returns the statistics keys in sorted order so rendered output
// is stable across runs.
func pluginIDs(stats map[string]scan.Statistics) []string {
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
