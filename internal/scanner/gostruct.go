package scanner

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/parser"
	"github.com/julianshen/archscan/internal/scan"
)

var (
	goStructDecl  = regexp.MustCompile(`type\s+(\w+)\s+struct\s*\{`)
	goStructField = regexp.MustCompile("^\\s*(\\w+)\\s+([*\\[\\]\\w.]+)\\s+`([^`]*)`")
)

// goStructPlugin extracts data entities from Go structs carrying persistence
// tags (db, gorm, bson). A struct with no tagged field is plain data and is
// not an entity. Tier 1 walks the go syntax tree; Tier 2 brace-matches
// struct bodies out of the raw text.
type goStructPlugin struct {
	descriptor
}

func newGoStructPlugin() *goStructPlugin {
	return &goStructPlugin{descriptor{
		id:         "go-entities",
		name:       "Go Entity Scanner",
		ecosystems: []string{"go"},
		patterns:   []string{"**/*.go"},
		priority:   60,
	}}
}

func (p *goStructPlugin) Scan(ctx context.Context, sc *scan.Context) (*scan.Result, error) {
	pipe := scan.Pipeline[model.DataEntity]{
		PreFilter: func(file string, content []byte) bool {
			if strings.HasSuffix(file, "_test.go") {
				return false
			}
			return hasMarker(content, `db:"`, `gorm:"`, `bson:"`)
		},
		Structural: func(file string, content []byte) ([]model.DataEntity, error) {
			return p.extractTree(sc, file, content)
		},
		Fallback: func(file string, content []byte) ([]model.DataEntity, error) {
			return p.extractPatterns(sc, file, content)
		},
		Timeout:     fileTimeout,
		Concurrency: concurrency(),
	}

	stats := scan.NewStatsBuilder()
	frs := pipe.Run(ctx, sc, sc.FindFiles(p.patterns...), stats)

	res := &scan.Result{PluginID: p.id, Success: true}
	collect(res, frs, func(e model.DataEntity) {
		res.Entities = append(res.Entities, e)
	})
	res.Stats = stats.Build()
	return res, nil
}

func (p *goStructPlugin) extractTree(sc *scan.Context, file string, content []byte) ([]model.DataEntity, error) {
	tree, err := parser.Parse(file, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	owner := ownerComponent(sc, file)
	var entities []model.DataEntity
	for _, spec := range tree.FindAll("type_spec") {
		st := spec.ChildByFieldName("type")
		if st == nil || st.Type() != "struct_type" {
			continue
		}

		var rows []fieldRow
		descend(st, func(n *sitter.Node) {
			if n.Type() != "field_declaration" {
				return
			}
			tag := strings.Trim(tree.FieldText(n, "tag"), "`")
			typ := tree.FieldText(n, "type")
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() == "field_identifier" {
					rows = append(rows, fieldRow{name: tree.Text(c), typ: typ, tag: tag})
				}
			}
		})

		if e, ok := buildEntity(owner, tree.FieldText(spec, "name"), rows); ok {
			entities = append(entities, e)
		}
	}
	return entities, nil
}

func (p *goStructPlugin) extractPatterns(sc *scan.Context, file string, content []byte) ([]model.DataEntity, error) {
	text := string(content)
	owner := ownerComponent(sc, file)

	var entities []model.DataEntity
	for _, m := range goStructDecl.FindAllStringSubmatchIndex(text, -1) {
		body := balancedSpan(text, m[1]-1)
		if body == "" {
			continue
		}

		var rows []fieldRow
		for _, line := range strings.Split(body, "\n") {
			if fm := goStructField.FindStringSubmatch(line); fm != nil {
				rows = append(rows, fieldRow{name: fm[1], typ: fm[2], tag: fm[3]})
			}
		}
		if e, ok := buildEntity(owner, text[m[2]:m[3]], rows); ok {
			entities = append(entities, e)
		}
	}
	return entities, nil
}

type fieldRow struct {
	name string
	typ  string
	tag  string
}

// buildEntity turns tagged struct fields into a DataEntity. Returns false
// when no field carries a persistence tag.
func buildEntity(owner, name string, rows []fieldRow) (model.DataEntity, bool) {
	entity := model.DataEntity{
		ComponentID: owner,
		Name:        name,
		Kind:        "table",
	}
	tagged := false

	for _, row := range rows {
		tags := reflect.StructTag(row.tag)
		column := ""
		persisted := false
		if v := tags.Get("db"); v != "" && v != "-" {
			column = firstTagToken(v)
			persisted = true
		}
		if v := tags.Get("gorm"); v != "" && v != "-" {
			persisted = true
			if c := gormOption(v, "column"); c != "" {
				column = c
			}
			if strings.Contains(v, "primaryKey") || strings.Contains(v, "primary_key") {
				entity.PrimaryKey = pick(column, strings.ToLower(row.name))
			}
		}
		if v := tags.Get("bson"); v != "" && v != "-" {
			entity.Kind = "collection"
			persisted = true
			if column == "" {
				column = firstTagToken(v)
			}
		}
		if !persisted {
			continue
		}
		tagged = true

		entity.Fields = append(entity.Fields, model.Field{
			Name:     pick(column, strings.ToLower(row.name)),
			DataType: row.typ,
			Nullable: strings.HasPrefix(row.typ, "*") || strings.HasPrefix(row.typ, "sql.Null"),
		})
	}

	if !tagged {
		return model.DataEntity{}, false
	}
	if entity.PrimaryKey == "" {
		for _, f := range entity.Fields {
			if f.Name == "id" || f.Name == "_id" {
				entity.PrimaryKey = f.Name
				break
			}
		}
	}
	return entity, true
}

func firstTagToken(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return v
}

// gormOption extracts a key:value option from a gorm tag.
func gormOption(tag, key string) string {
	for _, part := range strings.Split(tag, ";") {
		if k, v, ok := strings.Cut(part, ":"); ok && strings.TrimSpace(k) == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func pick(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
