package scanner

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

var errNoProjectTable = errors.New("pyproject.toml declares no project or poetry name")

// pipPlugin extracts Python components and dependencies from pyproject.toml
// (PEP 621 and poetry layouts) and requirements files. Tier 1 decodes TOML
// and parses requirement lines strictly; Tier 2 regex-matches whatever
// requirement-shaped lines survive in a damaged file.
type pipPlugin struct {
	descriptor
}

func newPipPlugin() *pipPlugin {
	return &pipPlugin{descriptor{
		id:         "pip",
		name:       "Python Package Scanner",
		ecosystems: []string{"python"},
		patterns:   []string{"**/pyproject.toml", "**/requirements*.txt"},
		priority:   10,
	}}
}

func (p *pipPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[manifestFacts]{
		Structural: func(file string, content []byte) ([]manifestFacts, error) {
			return p.extractStructural(sc, file, content)
		},
		Fallback: func(file string, content []byte) ([]manifestFacts, error) {
			return p.extractPatterns(sc, file, content)
		},
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

func (p *pipPlugin) extractStructural(sc *scan.Context, file string, content []byte) ([]manifestFacts, error) {
	if path.Base(file) == "pyproject.toml" {
		return p.extractPyproject(file, content)
	}
	return p.extractRequirements(sc, file, content, true)
}

func (p *pipPlugin) extractPatterns(sc *scan.Context, file string, content []byte) ([]manifestFacts, error) {
	if path.Base(file) == "pyproject.toml" {
		return p.pyprojectPatterns(file, content)
	}
	return p.extractRequirements(sc, file, content, false)
}

type pyprojectFile struct {
	Project struct {
		Name         string   `toml:"name"`
		Version      string   `toml:"version"`
		Description  string   `toml:"description"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name         string         `toml:"name"`
			Version      string         `toml:"version"`
			Description  string         `toml:"description"`
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (p *pipPlugin) extractPyproject(file string, content []byte) ([]manifestFacts, error) {
	var py pyprojectFile
	if err := toml.Unmarshal(content, &py); err != nil {
		return nil, err
	}

	name := py.Project.Name
	version := py.Project.Version
	description := py.Project.Description
	if name == "" {
		name = py.Tool.Poetry.Name
		version = py.Tool.Poetry.Version
		description = py.Tool.Poetry.Description
	}
	if name == "" {
		return nil, errNoProjectTable
	}

	comp := p.pythonComponent(name, file)
	comp.Description = description
	if version != "" {
		comp.Metadata["version"] = version
	}

	facts := manifestFacts{component: comp}
	for _, spec := range py.Project.Dependencies {
		if dep, ok := parseRequirement(comp.ID, spec); ok {
			facts.dependencies = append(facts.dependencies, dep)
		}
	}
	facts.dependencies = append(facts.dependencies, poetryDeps(comp.ID, py.Tool.Poetry.Dependencies)...)
	return []manifestFacts{facts}, nil
}

// poetryDeps flattens the poetry dependency table, whose values are either a
// constraint string or an inline table with a version key.
func poetryDeps(componentID string, entries map[string]any) []model.Dependency {
	names := make([]string, 0, len(entries))
	for name := range entries {
		if name != "python" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var deps []model.Dependency
	for _, name := range names {
		version := ""
		switch v := entries[name].(type) {
		case string:
			version = v
		case map[string]any:
			if s, ok := v["version"].(string); ok {
				version = s
			}
		}
		deps = append(deps, model.Dependency{
			SourceComponentID: componentID,
			Artifact:          name,
			Version:           cleanVersion(version),
			Scope:             "runtime",
			Direct:            true,
		})
	}
	return deps
}

var (
	tomlNameField = regexp.MustCompile(`(?m)^\s*name\s*=\s*"([^"]+)"`)
	// requirementLine covers PEP 508 name, optional extras, optional
	// constraint. Environment markers after ';' are ignored.
	requirementLine = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(\[[^\]]*\])?\s*([<>=!~]{1,2}=?\s*[^,;#\s]+)?`)
)

func (p *pipPlugin) pyprojectPatterns(file string, content []byte) ([]manifestFacts, error) {
	name := tomlNameField.FindSubmatch(content)
	if name == nil {
		return nil, nil
	}
	comp := p.pythonComponent(string(name[1]), file)
	facts := manifestFacts{component: comp}
	for _, lit := range stringLiterals(string(content)) {
		if dep, ok := parseRequirement(comp.ID, lit); ok && dep.Version != "" {
			facts.dependencies = append(facts.dependencies, dep)
		}
	}
	return []manifestFacts{facts}, nil
}

// extractRequirements parses a requirements file. In strict mode any line
// that is not a comment, an option, or a valid requirement fails the tier;
// tolerant mode keeps the lines that do parse.
func (p *pipPlugin) extractRequirements(sc *scan.Context, file string, content []byte, strict bool) ([]manifestFacts, error) {
	comp := p.requirementsComponent(sc, file)
	facts := manifestFacts{component: comp}

	for i, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		dep, ok := parseRequirement(comp.ID, line)
		if !ok {
			if strict {
				return nil, fmt.Errorf("line %d: unparseable requirement %q", i+1, line)
			}
			continue
		}
		facts.dependencies = append(facts.dependencies, dep)
	}
	return []manifestFacts{facts}, nil
}

func parseRequirement(componentID, spec string) (model.Dependency, bool) {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexByte(spec, ';'); i >= 0 {
		spec = strings.TrimSpace(spec[:i])
	}
	m := requirementLine.FindStringSubmatch(spec)
	if m == nil || m[1] == "" || len(m[0]) != len(spec) {
		return model.Dependency{}, false
	}
	version := strings.TrimSpace(m[3])
	version = strings.TrimLeft(version, "<>=!~ ")
	return model.Dependency{
		SourceComponentID: componentID,
		Artifact:          strings.ToLower(m[1]),
		Version:           cleanVersion(version),
		Scope:             "runtime",
		Direct:            true,
	}, true
}

func (p *pipPlugin) pythonComponent(name, file string) *model.Component {
	return &model.Component{
		ID:         slug(name),
		Name:       name,
		Type:       model.ComponentService,
		Technology: "python",
		Metadata:   map[string]string{"dir": path.Dir(file)},
	}
}

// requirementsComponent names the component for a bare requirements file
// after its directory, or after the scan root at the top level.
func (p *pipPlugin) requirementsComponent(sc *scan.Context, file string) *model.Component {
	dir := path.Dir(file)
	name := path.Base(dir)
	id := slug(name)
	if dir == "." || id == "" {
		id = rootComponentID(sc)
		name = id
	}
	return &model.Component{
		ID:         id,
		Name:       name,
		Type:       model.ComponentService,
		Technology: "python",
		Metadata:   map[string]string{"dir": dir},
	}
}
