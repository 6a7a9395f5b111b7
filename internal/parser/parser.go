// Package parser wraps tree-sitter to give scanner plugins structural access
// to source files with automatic language detection from file extensions.
// Unlike a compiler front end, tree-sitter tolerates malformed input by
// inserting error nodes; Parse surfaces those as a SyntaxError so callers
// can fall back to pattern-based extraction.
package parser

import (
	"context"
	"fmt"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported source language.
type Language string

const (
	LangGo         Language = "go"
	LangJava       Language = "java"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
)

// registry maps file extensions to tree-sitter grammars.
var registry = map[string]struct {
	lang    Language
	grammar *sitter.Language
}{
	".go":   {LangGo, golang.GetLanguage()},
	".java": {LangJava, java.GetLanguage()},
	".js":   {LangJavaScript, javascript.GetLanguage()},
	".jsx":  {LangJavaScript, javascript.GetLanguage()},
	".mjs":  {LangJavaScript, javascript.GetLanguage()},
	".ts":   {LangTypeScript, typescript.GetLanguage()},
	".py":   {LangPython, python.GetLanguage()},
}

// Detect returns the language for a filename, based on its extension.
func Detect(filename string) (Language, bool) {
	info, ok := registry[filepath.Ext(filename)]
	if !ok {
		return "", false
	}
	return info.lang, true
}

// SyntaxError reports that a file parsed into a tree containing error nodes.
// The tree is discarded; callers should treat this as a structural parse
// failure and try their fallback tier.
type SyntaxError struct {
	File string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: source contains syntax errors", e.File)
}

// Parse parses source into a syntax tree, auto-detecting the language from
// the filename. Each call uses its own tree-sitter parser, so Parse is safe
// to call from concurrent per-file workers. Returns an error for unsupported
// extensions and a SyntaxError for malformed input.
func Parse(filename string, source []byte) (*Tree, error) {
	info, ok := registry[filepath.Ext(filename)]
	if !ok {
		return nil, fmt.Errorf("unsupported file extension %q: language not in registry", filepath.Ext(filename))
	}

	p := sitter.NewParser()
	p.SetLanguage(info.grammar)
	st, err := p.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	root := st.RootNode()
	if root == nil || root.HasError() {
		st.Close()
		return nil, &SyntaxError{File: filename}
	}

	return &Tree{tree: st, source: source, lang: info.lang}, nil
}

// Tree wraps a parsed syntax tree with traversal helpers.
type Tree struct {
	tree   *sitter.Tree
	source []byte
	lang   Language
}

// Close releases the underlying tree-sitter tree. Call it before the source
// buffer goes away when parsing in a loop.
func (t *Tree) Close() {
	t.tree.Close()
}

// Language returns the detected source language.
func (t *Tree) Language() Language {
	return t.lang
}

// Root returns the root node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Text returns the source text covered by a node.
func (t *Tree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(t.source)
}

// FieldText returns the text of a node's named field, or "" when absent.
func (t *Tree) FieldText(n *sitter.Node, field string) string {
	if n == nil {
		return ""
	}
	return t.Text(n.ChildByFieldName(field))
}

// Walk performs a depth-first traversal, calling fn for every node.
func (t *Tree) Walk(fn func(*sitter.Node)) {
	walk(t.Root(), fn)
}

// FindAll returns every node whose type matches one of the given node types,
// in document order.
func (t *Tree) FindAll(nodeTypes ...string) []*sitter.Node {
	want := make(map[string]bool, len(nodeTypes))
	for _, nt := range nodeTypes {
		want[nt] = true
	}
	var out []*sitter.Node
	t.Walk(func(n *sitter.Node) {
		if want[n.Type()] {
			out = append(out, n)
		}
	})
	return out
}

// Line returns the 1-indexed start line of a node.
func (t *Tree) Line(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.StartPoint().Row) + 1
}

func walk(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	fn(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			walk(child, fn)
		}
	}
}
