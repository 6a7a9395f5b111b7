package scan

import (
	"context"
	"sort"
)

// Plugin is a self-contained extractor for one architectural concern over
// one or more source ecosystems. Registration is static and explicit; there
// is no dynamic code loading at runtime.
type Plugin interface {
	// ID returns the stable kebab-case identifier of the plugin.
	ID() string
	// Name returns the human-readable display name.
	Name() string
	// Ecosystems returns the ecosystem tags the plugin understands
	// (e.g. "go", "python", "javascript").
	Ecosystems() []string
	// FilePatterns returns the glob patterns for files the plugin scans.
	FilePatterns() []string
	// Priority orders execution; lower runs first. Dependency scanners
	// use 1-49 so API/entity/messaging scanners can consume their
	// components through previous results.
	Priority() int
	// AppliesTo performs a cheap existence check before any expensive
	// parsing starts.
	AppliesTo(sc *Context) bool
	// Scan extracts facts from the context's files. Per-file failures
	// must be recovered into the result, never returned as an error;
	// an error from Scan marks the whole plugin run as failed.
	Scan(ctx context.Context, sc *Context) (*Result, error)
}

// Registry holds the ordered set of plugins for one scan invocation. It is
// constructed once, from an explicit compile-time table of plugins, and is
// read-only afterwards. Ordering is a stable sort by priority then
// registration order, so execution order is deterministic across runs.
type Registry struct {
	plugins []Plugin
}

// NewRegistry builds a registry from the available plugin table. When
// enabled is non-empty, only the listed plugin ids are kept, in the order
// the table registered them; an id that resolves to no registered plugin
// returns a RegistryLoadError, the only fatal registry condition.
func NewRegistry(available []Plugin, enabled []string) (*Registry, error) {
	selected := available
	if len(enabled) > 0 {
		byID := make(map[string]Plugin, len(available))
		for _, p := range available {
			byID[p.ID()] = p
		}
		want := make(map[string]bool, len(enabled))
		for _, id := range enabled {
			if _, ok := byID[id]; !ok {
				return nil, &RegistryLoadError{ID: id}
			}
			want[id] = true
		}
		selected = nil
		for _, p := range available {
			if want[p.ID()] {
				selected = append(selected, p)
			}
		}
	}

	ordered := append([]Plugin(nil), selected...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})
	return &Registry{plugins: ordered}, nil
}

// Plugins returns the plugins in execution order.
func (r *Registry) Plugins() []Plugin {
	return append([]Plugin(nil), r.plugins...)
}

// Lookup returns the plugin with the given id.
func (r *Registry) Lookup(id string) (Plugin, bool) {
	for _, p := range r.plugins {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}
