package scanner

import (
	"context"
	"regexp"
	"strings"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/parser"
	"github.com/julianshen/archscan/internal/scan"
)

// expressReceivers are the identifiers route registrations hang off. Express
// apps conventionally bind express() or express.Router() to one of these.
var expressReceivers = map[string]bool{
	"app": true, "router": true, "server": true, "api": true,
}

var expressVerbs = map[string]string{
	"get":    "GET",
	"post":   "POST",
	"put":    "PUT",
	"delete": "DELETE",
	"patch":  "PATCH",
	"all":    "ANY",
}

var expressRoute = regexp.MustCompile(`\b(\w+)\.(get|post|put|delete|patch|all)\s*\(`)

// expressPlugin extracts REST endpoints from Express route registrations in
// JavaScript and TypeScript sources. Tier 1 walks the syntax tree for
// app.get("/path", handler) call shapes; Tier 2 pattern-matches call starts
// and bracket-matches the argument list.
type expressPlugin struct {
	descriptor
}

func newExpressPlugin() *expressPlugin {
	return &expressPlugin{descriptor{
		id:         "express",
		name:       "Express Endpoint Scanner",
		ecosystems: []string{"javascript", "typescript"},
		patterns:   []string{"**/*.js", "**/*.mjs", "**/*.ts"},
		priority:   50,
	}}
}

func (p *expressPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[model.ApiEndpoint]{
		PreFilter: func(file string, content []byte) bool {
			return hasMarker(content, "express")
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

func (p *expressPlugin) extractTree(sc *scan.Context, file string, content []byte) ([]model.ApiEndpoint, error) {
	tree, err := parser.Parse(file, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	owner := ownerComponent(sc, file)
	var endpoints []model.ApiEndpoint
	for _, call := range tree.FindAll("call_expression") {
		fn := call.ChildByFieldName("function")
		if fn == nil || fn.Type() != "member_expression" {
			continue
		}
		receiver := tree.FieldText(fn, "object")
		method, ok := expressVerbs[tree.FieldText(fn, "property")]
		if !ok || !expressReceivers[receiver] {
			continue
		}

		args := call.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			continue
		}
		first := args.NamedChild(0)
		if first.Type() != "string" {
			continue
		}
		path := strings.Trim(tree.Text(first), `"'`+"`")
		if !strings.HasPrefix(path, "/") {
			continue
		}

		handler := ""
		if args.NamedChildCount() > 1 {
			last := args.NamedChild(int(args.NamedChildCount()) - 1)
			if last.Type() == "identifier" {
				handler = tree.Text(last)
			}
		}

		endpoints = append(endpoints, model.ApiEndpoint{
			ComponentID: owner,
			Type:        model.ApiREST,
			Path:        path,
			Method:      method,
			Handler:     handler,
		})
	}
	return endpoints, nil
}

func (p *expressPlugin) extractPatterns(sc *scan.Context, file string, content []byte) ([]model.ApiEndpoint, error) {
	text := string(content)
	owner := ownerComponent(sc, file)

	var endpoints []model.ApiEndpoint
	for _, m := range expressRoute.FindAllStringSubmatchIndex(text, -1) {
		if !expressReceivers[text[m[2]:m[3]]] {
			continue
		}
		args := balancedSpan(text, m[1]-1)
		lits := stringLiterals(args)
		if len(lits) == 0 || !strings.HasPrefix(lits[0], "/") {
			continue
		}
		endpoints = append(endpoints, model.ApiEndpoint{
			ComponentID: owner,
			Type:        model.ApiREST,
			Path:        lits[0],
			Method:      expressVerbs[text[m[4]:m[5]]],
			Handler:     "",
		})
	}
	return endpoints, nil
}
