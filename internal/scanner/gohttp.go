package scanner

import (
	"context"
	"regexp"
	"strings"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/parser"
	"github.com/julianshen/archscan/internal/scan"
)

// goRouteMethods maps route-registering method names to HTTP methods. The
// empty value marks net/http style registrations whose method, if any, is
// encoded in the pattern itself ("GET /users").
var goRouteMethods = map[string]string{
	"HandleFunc": "",
	"Handle":     "",
	"GET":        "GET",
	"POST":       "POST",
	"PUT":        "PUT",
	"DELETE":     "DELETE",
	"PATCH":      "PATCH",
	"Get":        "GET",
	"Post":       "POST",
	"Put":        "PUT",
	"Delete":     "DELETE",
	"Patch":      "PATCH",
}

var goHTTPVerbs = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

var goRouteCall = regexp.MustCompile(`\.(\w+)\s*\(`)

// goHTTPPlugin extracts REST endpoints from Go route registrations: net/http
// mux HandleFunc/Handle patterns including method-prefixed Go 1.22 patterns,
// and gin/echo/chi style verb methods. Tier 1 walks the go syntax tree;
// Tier 2 pattern-matches method calls with a string first argument.
type goHTTPPlugin struct {
	descriptor
}

func newGoHTTPPlugin() *goHTTPPlugin {
	return &goHTTPPlugin{descriptor{
		id:         "go-http",
		name:       "Go HTTP Endpoint Scanner",
		ecosystems: []string{"go"},
		patterns:   []string{"**/*.go"},
		priority:   50,
	}}
}

func (p *goHTTPPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[model.ApiEndpoint]{
		PreFilter: func(file string, content []byte) bool {
			if strings.HasSuffix(file, "_test.go") {
				return false
			}
			return hasMarker(content, "HandleFunc", ".Handle(",
				".GET(", ".POST(", ".PUT(", ".DELETE(", ".PATCH(",
				".Get(", ".Post(", ".Put(", ".Delete(", ".Patch(")
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

func (p *goHTTPPlugin) extractTree(sc *scan.Context, file string, content []byte) ([]model.ApiEndpoint, error) {
	tree, err := parser.Parse(file, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	owner := ownerComponent(sc, file)
	var endpoints []model.ApiEndpoint
	for _, call := range tree.FindAll("call_expression") {
		fn := call.ChildByFieldName("function")
		if fn == nil || fn.Type() != "selector_expression" {
			continue
		}
		method, ok := goRouteMethods[tree.FieldText(fn, "field")]
		if !ok {
			continue
		}

		args := call.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			continue
		}
		first := args.NamedChild(0)
		if first.Type() != "interpreted_string_literal" {
			continue
		}
		pattern := strings.Trim(tree.Text(first), `"`)

		handler := ""
		if args.NamedChildCount() > 1 {
			second := args.NamedChild(1)
			switch second.Type() {
			case "identifier", "selector_expression":
				handler = tree.Text(second)
			}
		}

		if ep, ok := goEndpoint(owner, pattern, method, handler); ok {
			endpoints = append(endpoints, ep)
		}
	}
	return endpoints, nil
}

func (p *goHTTPPlugin) extractPatterns(sc *scan.Context, file string, content []byte) ([]model.ApiEndpoint, error) {
	text := string(content)
	owner := ownerComponent(sc, file)

	var endpoints []model.ApiEndpoint
	for _, m := range goRouteCall.FindAllStringSubmatchIndex(text, -1) {
		method, ok := goRouteMethods[text[m[2]:m[3]]]
		if !ok {
			continue
		}
		args := balancedSpan(text, m[1]-1)
		lits := stringLiterals(args)
		if len(lits) == 0 {
			continue
		}
		if ep, ok := goEndpoint(owner, lits[0], method, ""); ok {
			endpoints = append(endpoints, ep)
		}
	}
	return endpoints, nil
}

// goEndpoint builds an endpoint from a route pattern, splitting the method
// out of Go 1.22 "VERB /path" patterns when present.
func goEndpoint(owner, pattern, method, handler string) (model.ApiEndpoint, bool) {
	if verb, rest, ok := strings.Cut(pattern, " "); ok && goHTTPVerbs[verb] {
		method = verb
		pattern = rest
	}
	if !strings.HasPrefix(pattern, "/") {
		return model.ApiEndpoint{}, false
	}
	return model.ApiEndpoint{
		ComponentID: owner,
		Type:        model.ApiREST,
		Path:        pattern,
		Method:      method,
		Handler:     handler,
	}, true
}
