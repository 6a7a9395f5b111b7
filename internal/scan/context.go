package scan

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/julianshen/archscan/internal/model"
)

// skipDirs contains directory names excluded from file discovery.
var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"build":        true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
}

// Context is the read-only view over the file system for one scan: the root
// path, a pre-walked deterministic file index, per-plugin configuration
// overrides, and the results already produced by earlier-run plugins.
//
// The file index is walked once at construction and sorted by path, so
// FindFiles is restartable and reproducible for a fixed file-system
// snapshot. Only the Runner adds previous results, between plugin
// executions, never during one.
type Context struct {
	root     string
	files    []string // sorted, slash-separated, relative to root
	config   map[string]map[string]string
	previous map[string]*Result
}

// ContextOption customizes context construction.
type ContextOption func(*Context)

// WithPluginConfig sets per-plugin configuration overrides, keyed by plugin
// id then option name.
func WithPluginConfig(cfg map[string]map[string]string) ContextOption {
	return func(c *Context) { c.config = cfg }
}

// WithPreviousResults seeds the previous-results map, used for incremental
// scans that build on a stored run.
func WithPreviousResults(prev map[string]*Result) ContextOption {
	return func(c *Context) {
		for id, res := range prev {
			c.previous[id] = res
		}
	}
}

// NewContext walks root once and builds the file index. Returns
// ErrRootNotFound if root does not exist; any other per-path walk error is
// logged and skipped so one unreadable directory cannot abort discovery.
func NewContext(root string, opts ...ContextOption) (*Context, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, root)
	}

	c := &Context{
		root:     root,
		previous: make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(c)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("scan: skipping path %q: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		c.files = append(c.files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(c.files)
	return c, nil
}

// Root returns the scan root path.
func (c *Context) Root() string {
	return c.root
}

// FindFiles returns all indexed relative paths matching any of the given
// doublestar glob patterns, in sorted path order. The returned slice is a
// fresh copy; callers may not mutate the index through it.
func (c *Context) FindFiles(patterns ...string) []string {
	var out []string
	for _, f := range c.files {
		if matchAny(patterns, f) {
			out = append(out, f)
		}
	}
	return out
}

// HasFiles reports whether at least one indexed file matches any pattern.
// This is the cheap existence check plugins use in AppliesTo before any
// parsing starts.
func (c *Context) HasFiles(patterns ...string) bool {
	for _, f := range c.files {
		if matchAny(patterns, f) {
			return true
		}
	}
	return false
}

// ReadFile reads a file by its index-relative path.
func (c *Context) ReadFile(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(c.root, filepath.FromSlash(rel)))
}

// PreviousResult returns the result of an earlier-run plugin, if any.
// Plugins that consume previous results must declare a higher priority than
// their producers and degrade gracefully when the entry is absent.
func (c *Context) PreviousResult(pluginID string) (*Result, bool) {
	res, ok := c.previous[pluginID]
	return res, ok
}

// PreviousComponents returns every component produced by earlier-run
// plugins, in plugin-then-emission order.
func (c *Context) PreviousComponents() []model.Component {
	var out []model.Component
	for _, id := range c.previousIDs() {
		out = append(out, c.previous[id].Components...)
	}
	return out
}

// Config returns a per-plugin configuration override.
func (c *Context) Config(pluginID, key string) (string, bool) {
	opts, ok := c.config[pluginID]
	if !ok {
		return "", false
	}
	v, ok := opts[key]
	return v, ok
}

// addResult records a completed plugin result for consumption by later
// plugins. Called by the Runner only, between plugin executions.
func (c *Context) addResult(res *Result) {
	c.previous[res.PluginID] = res
}

func (c *Context) previousIDs() []string {
	ids := make([]string, 0, len(c.previous))
	for id := range c.previous {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
		// Bare filenames like "go.mod" should match at any depth.
		if !strings.ContainsAny(p, "*/") && filepath.Base(path) == p {
			return true
		}
	}
	return false
}
