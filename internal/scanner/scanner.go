// Package scanner contains the built-in scanner plugins: dependency-manifest
// scanners for Go, npm, Python, and Maven projects, API endpoint scanners
// for FastAPI, Spring, Express, and Go HTTP routers, a Go struct entity
// scanner, and a Kafka message-flow scanner. Every plugin runs its files through the
// tiered pipeline in internal/scan and reports per-tier statistics.
package scanner

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

// fileTimeout bounds one tier invocation on one file so a pathological
// input cannot stall the whole scan.
const fileTimeout = 10 * time.Second

// DefaultPlugins returns the static plugin table, the explicit compile-time
// replacement for service-provider discovery. Adding a plugin here is the
// only registration step; the orchestrator never changes.
func DefaultPlugins() []scan.Plugin {
	return []scan.Plugin{
		newGomodPlugin(),
		newNpmPlugin(),
		newPipPlugin(),
		newMavenPlugin(),
		newFastapiPlugin(),
		newSpringPlugin(),
		newExpressPlugin(),
		newGoHTTPPlugin(),
		newGoStructPlugin(),
		newKafkaPlugin(),
	}
}

// descriptor carries the static plugin metadata and implements the
// descriptor half of scan.Plugin. Concrete plugins embed it and add Scan.
type descriptor struct {
	id         string
	name       string
	ecosystems []string
	patterns   []string
	priority   int
}

func (d descriptor) ID() string           { return d.id }
func (d descriptor) Name() string         { return d.name }
func (d descriptor) Ecosystems() []string { return append([]string(nil), d.ecosystems...) }
func (d descriptor) FilePatterns() []string {
	return append([]string(nil), d.patterns...)
}
func (d descriptor) Priority() int { return d.priority }

// AppliesTo is the cheap existence check: at least one matching file exists.
func (d descriptor) AppliesTo(sc *scan.Context) bool {
	return sc.HasFiles(d.patterns...)
}

// concurrency is the per-file worker cap shared by all plugins.
func concurrency() int {
	return runtime.GOMAXPROCS(0)
}

// collect folds per-file pipeline outcomes into a plugin result, recording
// failures and handing each fact to add.
func collect[T any](res *scan.Result, frs []scan.FileResult[T], add func(T)) {
	for _, fr := range frs {
		if fr.Failure != nil {
			res.Failures = append(res.Failures, *fr.Failure)
		}
		for _, fact := range fr.Facts {
			add(fact)
		}
	}
}

// manifestFacts is the per-file fact type shared by the dependency-manifest
// plugins: at most one component plus the dependencies it declares.
type manifestFacts struct {
	component    *model.Component
	dependencies []model.Dependency
}

// slug converts a name into a stable component identifier: lowercase, with
// every run of non-alphanumeric characters collapsed to a single dash.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ownerComponent resolves the component owning a file: the previously
// scanned component whose manifest directory is the nearest ancestor of the
// file. When no dependency scanner ran (or none matched), it degrades to a
// component id derived from the scan root, so API and entity scanners keep
// working without their producers.
func ownerComponent(sc *scan.Context, relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." {
		dir = ""
	}

	bestLen := -1
	bestID := ""
	for _, comp := range sc.PreviousComponents() {
		cdir, ok := comp.Metadata["dir"]
		if !ok {
			continue
		}
		if cdir == "." {
			cdir = ""
		}
		if cdir != "" && dir != cdir && !strings.HasPrefix(dir+"/", cdir+"/") {
			continue
		}
		if len(cdir) > bestLen {
			bestLen = len(cdir)
			bestID = comp.ID
		}
	}
	if bestID != "" {
		return bestID
	}
	return rootComponentID(sc)
}

// rootComponentID derives a fallback component id from the scan root name.
func rootComponentID(sc *scan.Context) string {
	base := filepath.Base(sc.Root())
	if id := slug(base); id != "" {
		return id
	}
	return "project"
}

// cleanVersion normalizes a declared version to canonical semver where
// possible, stripping range operators and the v prefix. Unparseable
// versions are kept verbatim.
func cleanVersion(v string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(v), "^~=v<>! ")
	trimmed = strings.TrimSpace(trimmed)
	if sv, err := semver.NewVersion(trimmed); err == nil {
		return sv.String()
	}
	return strings.TrimSpace(v)
}

// hasMarker is the shared pre-filter heuristic: a cheap substring check for
// any of the marker tokens, run before any structural parse.
func hasMarker(content []byte, markers ...string) bool {
	s := string(content)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// balancedSpan returns the text from the opening bracket at start through
// its matching closing bracket, tracking nesting depth across lines so
// multi-line constructs are fully consumed before matching resumes. Returns
// "" when the bracket never closes. Quoted strings are honored so brackets
// inside literals do not affect the depth.
func balancedSpan(s string, start int) string {
	if start < 0 || start >= len(s) {
		return ""
	}
	open := s[start]
	var close byte
	switch open {
	case '(':
		close = ')'
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return ""
	}

	depth := 0
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// stringLiterals extracts the unquoted contents of every single- or
// double-quoted literal in s, in order.
func stringLiterals(s string) []string {
	var out []string
	var quote byte
	startIdx := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				out = append(out, s[startIdx:i])
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			startIdx = i + 1
		}
	}
	return out
}
