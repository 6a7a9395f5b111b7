package scanner

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

var errNoModulePath = errors.New("go.mod declares no module path")

// gomodPlugin extracts one module component plus its require set from every
// go.mod in the tree. Tier 1 uses the official modfile parser; Tier 2 falls
// back to line patterns so a truncated or hand-mangled go.mod still yields
// the module identity.
type gomodPlugin struct {
	descriptor
}

func newGomodPlugin() *gomodPlugin {
	return &gomodPlugin{descriptor{
		id:         "go-modules",
		name:       "Go Module Scanner",
		ecosystems: []string{"go"},
		patterns:   []string{"**/go.mod"},
		priority:   10,
	}}
}

func (p *gomodPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[manifestFacts]{
		Structural:  p.extractModfile,
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

func (p *gomodPlugin) extractModfile(file string, content []byte) ([]manifestFacts, error) {
	mf, err := modfile.Parse(file, content, nil)
	if err != nil {
		return nil, err
	}
	if mf.Module == nil || mf.Module.Mod.Path == "" {
		return nil, errNoModulePath
	}

	comp := p.moduleComponent(mf.Module.Mod.Path, file)
	if mf.Go != nil {
		comp.Metadata["go_version"] = mf.Go.Version
	}

	facts := manifestFacts{component: comp}
	for _, req := range mf.Require {
		facts.dependencies = append(facts.dependencies, model.Dependency{
			SourceComponentID: comp.ID,
			Artifact:          req.Mod.Path,
			Version:           cleanVersion(req.Mod.Version),
			Scope:             "require",
			Direct:            !req.Indirect,
		})
	}
	return []manifestFacts{facts}, nil
}

var (
	goModuleLine  = regexp.MustCompile(`(?m)^module\s+(\S+)`)
	goRequireLine = regexp.MustCompile(`(?m)^require\s+(\S+)\s+(\S+)`)
	goRequireBloc = regexp.MustCompile(`(?s)require\s*\((.*?)\)`)
	goBlockEntry  = regexp.MustCompile(`(?m)^\s*(\S+)\s+(v\S+)(\s*//\s*indirect)?`)
)

// extractPatterns is the Tier 2 reading of a go.mod the modfile parser
// rejected: module line plus whatever require entries still look intact.
func (p *gomodPlugin) extractPatterns(file string, content []byte) ([]manifestFacts, error) {
	text := string(content)
	mod := goModuleLine.FindStringSubmatch(text)
	if mod == nil {
		return nil, nil
	}

	comp := p.moduleComponent(mod[1], file)
	facts := manifestFacts{component: comp}

	addDep := func(artifact, version string, indirect bool) {
		facts.dependencies = append(facts.dependencies, model.Dependency{
			SourceComponentID: comp.ID,
			Artifact:          artifact,
			Version:           cleanVersion(version),
			Scope:             "require",
			Direct:            !indirect,
		})
	}
	for _, m := range goRequireLine.FindAllStringSubmatch(text, -1) {
		if m[1] == "(" {
			continue
		}
		addDep(m[1], m[2], strings.Contains(m[0], "// indirect"))
	}
	for _, block := range goRequireBloc.FindAllStringSubmatch(text, -1) {
		for _, m := range goBlockEntry.FindAllStringSubmatch(block[1], -1) {
			addDep(m[1], m[2], m[3] != "")
		}
	}
	return []manifestFacts{facts}, nil
}

func (p *gomodPlugin) moduleComponent(modulePath, file string) *model.Component {
	return &model.Component{
		ID:         slug(modulePath),
		Name:       modulePath,
		Type:       model.ComponentModule,
		Technology: "go",
		Metadata:   map[string]string{"dir": path.Dir(file)},
	}
}
