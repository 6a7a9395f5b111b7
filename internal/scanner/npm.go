package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

var errNoPackageName = errors.New("package.json declares no name")

// npmPlugin extracts a component per package.json plus its runtime and dev
// dependencies. Tier 1 is a strict JSON decode; Tier 2 pulls the name and
// dependency blocks out of a file with trailing commas or other damage the
// decoder rejects.
type npmPlugin struct {
	descriptor
}

func newNpmPlugin() *npmPlugin {
	return &npmPlugin{descriptor{
		id:         "npm",
		name:       "NPM Package Scanner",
		ecosystems: []string{"javascript", "typescript"},
		patterns:   []string{"**/package.json"},
		priority:   10,
	}}
}

func (p *npmPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[manifestFacts]{
		Structural:  p.extractJSON,
		Fallback:    p.extractPatterns,
		Timeout:     fileTimeout,
		Concurrency: concurrency(),
	}

	stats := scan.NewStatsBuilder()
	frs := pipe.Run(ctx, sc, sc.FindFiles(p.patterns...), stats)

	res := &scan.Result{PluginID: p.id, Success: true}
	collect(res, frs, func(f manifestFacts) {
		if f.component != nil {
			res.Components = append(res.Components, *f.component)
		}
		res.Dependencies = append(res.Dependencies, f.dependencies...)
	})
	res.Stats = stats.Build()
	return res, nil
}

type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Description     string            `json:"description"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (p *npmPlugin) extractJSON(file string, content []byte) ([]manifestFacts, error) {
	var pkg packageJSON
	if err := json.Unmarshal(content, &pkg); err != nil {
		return nil, err
	}
	if pkg.Name == "" {
		return nil, errNoPackageName
	}

	comp := p.packageComponent(pkg.Name, file)
	comp.Description = pkg.Description
	if pkg.Version != "" {
		comp.Metadata["version"] = pkg.Version
	}

	facts := manifestFacts{component: comp}
	facts.dependencies = append(facts.dependencies, npmDeps(comp.ID, pkg.Dependencies, "runtime")...)
	facts.dependencies = append(facts.dependencies, npmDeps(comp.ID, pkg.DevDependencies, "dev")...)
	return []manifestFacts{facts}, nil
}

var (
	npmNameField = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
	npmDepEntry  = regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"]+)"`)
)

func (p *npmPlugin) extractPatterns(file string, content []byte) ([]manifestFacts, error) {
	text := string(content)
	name := npmNameField.FindStringSubmatch(text)
	if name == nil {
		return nil, nil
	}

	comp := p.packageComponent(name[1], file)
	facts := manifestFacts{component: comp}
	for section, scope := range map[string]string{"dependencies": "runtime", "devDependencies": "dev"} {
		body := jsonSection(text, section)
		for _, m := range npmDepEntry.FindAllStringSubmatch(body, -1) {
			facts.dependencies = append(facts.dependencies, npmDependency(comp.ID, m[1], m[2], scope))
		}
	}
	sort.Slice(facts.dependencies, func(i, j int) bool {
		a, b := facts.dependencies[i], facts.dependencies[j]
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		return a.Artifact < b.Artifact
	})
	return []manifestFacts{facts}, nil
}

// jsonSection finds the brace-delimited object following a top-level key,
// tolerating the malformed JSON that sent us to this tier.
func jsonSection(text, key string) string {
	idx := strings.Index(text, `"`+key+`"`)
	if idx < 0 {
		return ""
	}
	open := strings.IndexByte(text[idx:], '{')
	if open < 0 {
		return ""
	}
	return balancedSpan(text, idx+open)
}

func npmDeps(componentID string, entries map[string]string, scope string) []model.Dependency {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]model.Dependency, 0, len(names))
	for _, name := range names {
		deps = append(deps, npmDependency(componentID, name, entries[name], scope))
	}
	return deps
}

func npmDependency(componentID, name, version, scope string) model.Dependency {
	group := ""
	artifact := name
	if strings.HasPrefix(name, "@") {
		if i := strings.IndexByte(name, '/'); i > 0 {
			group = name[:i]
			artifact = name[i+1:]
		}
	}
	return model.Dependency{
		SourceComponentID: componentID,
		Group:             group,
		Artifact:          artifact,
		Version:           cleanVersion(version),
		Scope:             scope,
		Direct:            true,
	}
}

func (p *npmPlugin) packageComponent(name, file string) *model.Component {
	return &model.Component{
		ID:         slug(name),
		Name:       name,
		Type:       model.ComponentService,
		Technology: "nodejs",
		Metadata:   map[string]string{"dir": path.Dir(file)},
	}
}
