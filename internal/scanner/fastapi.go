package scanner

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/parser"
	"github.com/julianshen/archscan/internal/scan"
)

// fastapiVerbs are the route-registering decorator methods. websocket is
// reported as its own API type; everything else is REST.
var fastapiVerbs = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "head": true, "options": true, "websocket": true,
}

var (
	fastapiDecorator = regexp.MustCompile(`@(\w+)\.(\w+)\s*\(`)
	pythonDefName    = regexp.MustCompile(`(?:async\s+)?def\s+(\w+)`)
)

// fastapiPlugin extracts REST and websocket endpoints from FastAPI route
// decorators. Tier 1 walks the python syntax tree so decorators spanning
// multiple lines and decorated async defs are handled exactly; Tier 2
// re-finds decorator starts by pattern and consumes the argument list with
// bracket matching, so a syntax error elsewhere in the file does not hide
// intact routes.
type fastapiPlugin struct {
	descriptor
}

func newFastapiPlugin() *fastapiPlugin {
	return &fastapiPlugin{descriptor{
		id:         "fastapi",
		name:       "FastAPI Endpoint Scanner",
		ecosystems: []string{"python"},
		patterns:   []string{"**/*.py"},
		priority:   50,
	}}
}

func (p *fastapiPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[model.ApiEndpoint]{
		PreFilter: func(file string, content []byte) bool {
			return hasMarker(content, "fastapi", "FastAPI", "APIRouter")
		},
		Structural: func(file string, content []byte) ([]model.ApiEndpoint, error) {
			return p.extractTree(sc, file, content)
		},
		Fallback: func(file string, content []byte) ([]model.ApiEndpoint, error) {
			return p.extractPatterns(sc, file, content)
		},
		Timeout:     fileTimeout,
		Concurrency: concurrency(),
	}

	stats := scan.NewStatsBuilder()
	frs := pipe.Run(ctx, sc, sc.FindFiles(p.patterns...), stats)

	res := &scan.Result{PluginID: p.id, Success: true}
	collect(res, frs, func(ep model.ApiEndpoint) {
		res.Endpoints = append(res.Endpoints, ep)
	})
	res.Stats = stats.Build()
	return res, nil
}

func (p *fastapiPlugin) extractTree(sc *scan.Context, file string, content []byte) ([]model.ApiEndpoint, error) {
	tree, err := parser.Parse(file, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	owner := ownerComponent(sc, file)
	var endpoints []model.ApiEndpoint
	for _, def := range tree.FindAll("decorated_definition") {
		handler := p.definitionName(tree, def)
		for i := 0; i < int(def.ChildCount()); i++ {
			child := def.Child(i)
			if child == nil || child.Type() != "decorator" {
				continue
			}
			if ep, ok := p.endpointFromDecorator(tree.Text(child), owner, handler); ok {
				endpoints = append(endpoints, ep)
			}
		}
	}
	return endpoints, nil
}

// definitionName returns the name of the function or class a decorator
// stack is attached to.
func (p *fastapiPlugin) definitionName(tree *parser.Tree, def *sitter.Node) string {
	for i := 0; i < int(def.ChildCount()); i++ {
		child := def.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_definition", "class_definition":
			return tree.FieldText(child, "name")
		}
	}
	return ""
}

// endpointFromDecorator parses one decorator's text, e.g.
// @router.get("/users/{id}", response_model=User).
func (p *fastapiPlugin) endpointFromDecorator(text, owner, handler string) (model.ApiEndpoint, bool) {
	m := fastapiDecorator.FindStringSubmatchIndex(text)
	if m == nil {
		return model.ApiEndpoint{}, false
	}
	verb := strings.ToLower(text[m[4]:m[5]])
	if !fastapiVerbs[verb] {
		return model.ApiEndpoint{}, false
	}
	args := balancedSpan(text, m[1]-1)
	lits := stringLiterals(args)
	if len(lits) == 0 || !strings.HasPrefix(lits[0], "/") {
		return model.ApiEndpoint{}, false
	}

	ep := model.ApiEndpoint{
		ComponentID: owner,
		Type:        model.ApiREST,
		Path:        lits[0],
		Method:      strings.ToUpper(verb),
		Handler:     handler,
	}
	if verb == "websocket" {
		ep.Type = model.ApiWebSocket
		ep.Method = ""
	}
	return ep, true
}

// extractPatterns scans raw text for decorator starts, then bracket-matches
// the argument list so arguments spread over several lines are consumed.
func (p *fastapiPlugin) extractPatterns(sc *scan.Context, file string, content []byte) ([]model.ApiEndpoint, error) {
	text := string(content)
	owner := ownerComponent(sc, file)

	var endpoints []model.ApiEndpoint
	for _, m := range fastapiDecorator.FindAllStringSubmatchIndex(text, -1) {
		verb := strings.ToLower(text[m[4]:m[5]])
		if !fastapiVerbs[verb] {
			continue
		}
		args := balancedSpan(text, m[1]-1)
		if args == "" {
			continue
		}
		lits := stringLiterals(args)
		if len(lits) == 0 || !strings.HasPrefix(lits[0], "/") {
			continue
		}

		handler := ""
		rest := text[m[1]-1+len(args):]
		if dm := pythonDefName.FindStringSubmatch(rest); dm != nil {
			handler = dm[1]
		}

		ep := model.ApiEndpoint{
			ComponentID: owner,
			Type:        model.ApiREST,
			Path:        lits[0],
			Method:      strings.ToUpper(verb),
			Handler:     handler,
		}
		if verb == "websocket" {
			ep.Type = model.ApiWebSocket
			ep.Method = ""
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}
