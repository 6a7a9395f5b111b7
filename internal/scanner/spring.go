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

// springVerbs maps mapping annotations to HTTP methods. RequestMapping maps
// to "" and takes its method from a RequestMethod argument when present.
var springVerbs = map[string]string{
	"GetMapping":     "GET",
	"PostMapping":    "POST",
	"PutMapping":     "PUT",
	"DeleteMapping":  "DELETE",
	"PatchMapping":   "PATCH",
	"RequestMapping": "",
}

var (
	springMapping       = regexp.MustCompile(`@(Get|Post|Put|Delete|Patch|Request)Mapping\b`)
	springClassMapping  = regexp.MustCompile(`(?s)@RequestMapping\s*(\([^)]*\))?[^(){;]*\bclass\b`)
	springRequestMethod = regexp.MustCompile(`RequestMethod\.(\w+)`)
	javaMethodName      = regexp.MustCompile(`(\w+)\s*\(`)
)

// springPlugin extracts REST endpoints from Spring MVC mapping annotations,
// combining class-level RequestMapping base paths with per-method mappings.
// Tier 1 walks the java syntax tree; Tier 2 pattern-matches annotation
// starts and bracket-matches their argument lists so annotations formatted
// across several lines still resolve.
type springPlugin struct {
	descriptor
}

func newSpringPlugin() *springPlugin {
	return &springPlugin{descriptor{
		id:         "spring",
		name:       "Spring Endpoint Scanner",
		ecosystems: []string{"java"},
		patterns:   []string{"**/*.java"},
		priority:   50,
	}}
}

func (p *springPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[model.ApiEndpoint]{
		PreFilter: func(file string, content []byte) bool {
			return hasMarker(content, "Mapping", "RestController")
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

func (p *springPlugin) extractTree(sc *scan.Context, file string, content []byte) ([]model.ApiEndpoint, error) {
	tree, err := parser.Parse(file, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	owner := ownerComponent(sc, file)
	var endpoints []model.ApiEndpoint
	for _, class := range tree.FindAll("class_declaration") {
		className := tree.FieldText(class, "name")
		base := ""
		for _, ann := range annotationsOf(tree, class) {
			if ann.name == "RequestMapping" {
				if lits := stringLiterals(ann.args); len(lits) > 0 {
					base = lits[0]
				}
			}
		}

		descend(class, func(n *sitter.Node) {
			if n.Type() != "method_declaration" {
				return
			}
			for _, ann := range annotationsOf(tree, n) {
				verb, ok := springVerbs[ann.name]
				if !ok {
					continue
				}
				endpoints = append(endpoints, springEndpoint(
					owner, base, ann.args, verb,
					className+"."+tree.FieldText(n, "name"),
				))
			}
		})
	}
	return endpoints, nil
}

type javaAnnotation struct {
	name string
	args string
}

// annotationsOf returns the annotations attached to a class or method
// declaration through its modifiers child.
func annotationsOf(tree *parser.Tree, decl *sitter.Node) []javaAnnotation {
	var out []javaAnnotation
	for i := 0; i < int(decl.ChildCount()); i++ {
		mods := decl.Child(i)
		if mods == nil || mods.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(mods.ChildCount()); j++ {
			ann := mods.Child(j)
			if ann == nil {
				continue
			}
			switch ann.Type() {
			case "marker_annotation":
				out = append(out, javaAnnotation{name: tree.FieldText(ann, "name")})
			case "annotation":
				out = append(out, javaAnnotation{
					name: tree.FieldText(ann, "name"),
					args: tree.Text(ann.ChildByFieldName("arguments")),
				})
			}
		}
	}
	return out
}

// descend walks the subtree under n, calling fn for every node below it.
func descend(n *sitter.Node, fn func(*sitter.Node)) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		fn(child)
		descend(child, fn)
	}
}

func (p *springPlugin) extractPatterns(sc *scan.Context, file string, content []byte) ([]model.ApiEndpoint, error) {
	text := string(content)
	owner := ownerComponent(sc, file)

	base := ""
	baseStart := -1
	if m := springClassMapping.FindStringIndex(text); m != nil {
		if pi := strings.IndexByte(text[m[0]:m[1]], '('); pi >= 0 {
			span := balancedSpan(text, m[0]+pi)
			if lits := stringLiterals(span); len(lits) > 0 {
				base = lits[0]
			}
		}
		baseStart = m[0]
	}

	var endpoints []model.ApiEndpoint
	for _, m := range springMapping.FindAllStringSubmatchIndex(text, -1) {
		if m[0] == baseStart {
			continue
		}
		verb := springVerbs[text[m[2]:m[3]]+"Mapping"]

		args := ""
		rest := text[m[1]:]
		if i := strings.IndexFunc(rest, notSpace); i >= 0 && rest[i] == '(' {
			args = balancedSpan(text, m[1]+i)
			rest = rest[i+len(args):]
		}

		handler := ""
		rest = skipAnnotations(rest)
		if hm := javaMethodName.FindStringSubmatch(rest); hm != nil {
			handler = hm[1]
		}

		endpoints = append(endpoints, springEndpoint(owner, base, args, verb, handler))
	}
	return endpoints, nil
}

func springEndpoint(owner, base, args, verb, handler string) model.ApiEndpoint {
	path := base
	if lits := stringLiterals(args); len(lits) > 0 {
		path = joinPaths(base, lits[0])
	}
	if path == "" {
		path = "/"
	}
	if verb == "" {
		if rm := springRequestMethod.FindStringSubmatch(args); rm != nil {
			verb = strings.ToUpper(rm[1])
		}
	}
	return model.ApiEndpoint{
		ComponentID: owner,
		Type:        model.ApiREST,
		Path:        path,
		Method:      verb,
		Handler:     handler,
	}
}

func joinPaths(base, p string) string {
	if base == "" {
		return p
	}
	if p == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
}

func notSpace(r rune) bool {
	return r != ' ' && r != '\t' && r != '\n' && r != '\r'
}

// skipAnnotations consumes leading annotations and whitespace so the next
// identifier-with-parens match is the method name, not another annotation.
func skipAnnotations(s string) string {
	for {
		trimmed := strings.TrimLeft(s, " \t\r\n")
		if !strings.HasPrefix(trimmed, "@") {
			return trimmed
		}
		end := strings.IndexAny(trimmed, "(\n")
		if end < 0 {
			return ""
		}
		if trimmed[end] == '(' {
			span := balancedSpan(trimmed, end)
			if span == "" {
				return ""
			}
			s = trimmed[end+len(span):]
			continue
		}
		s = trimmed[end+1:]
	}
}
