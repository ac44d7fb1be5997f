// SPDX-License-Identifier: MPL-2.0

package normalize

import (
	"errors"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

// awaitKind is the anonymous token kind for the await keyword. It covers both
// await expressions and for-await loops.
const awaitKind = "await"

var (
	javascript = sync.OnceValue(func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	})

	// functionBoundaries are the node kinds that start a new function scope.
	// An await below one of them is not a top-level suspension point.
	functionBoundaries = map[string]bool{
		"function_declaration":           true,
		"function_expression":            true,
		"function":                       true,
		"arrow_function":                 true,
		"method_definition":              true,
		"generator_function":             true,
		"generator_function_declaration": true,
		"class_static_block":             true,
	}
)

// SyntaxStrategy parses the file and wraps every top-level statement from the
// first one that suspends through the end of the program. Statements before
// it (requires, constants, helpers) stay at module scope. Files that do not
// parse cleanly, or whose earlier statements use a name declared in the
// wrapped part, are left to the next strategy.
type SyntaxStrategy struct {
	language *tree_sitter.Language
}

// NewSyntaxStrategy returns a SyntaxStrategy for JavaScript sources.
func NewSyntaxStrategy() *SyntaxStrategy {
	return &SyntaxStrategy{language: javascript()}
}

func (s *SyntaxStrategy) Name() string { return string(SuspensionSyntax) }

func (s *SyntaxStrategy) CanPatch(src []byte) bool {
	_, _, ok := s.suspendingRange(src)
	return ok
}

// Verify reports whether src parses cleanly and never awaits at top level.
func (s *SyntaxStrategy) Verify(src []byte) bool {
	clean := false
	s.inspect(src, func(root *tree_sitter.Node) {
		clean = !root.HasError() && !suspendsAtTopLevel(root)
	})
	return clean
}

func (s *SyntaxStrategy) Patch(src []byte) ([]byte, error) {
	start, end, ok := s.suspendingRange(src)
	if !ok {
		return nil, errors.New("no wrappable top-level await found")
	}
	return wrapRange(src, start, end), nil
}

// inspect parses src and hands the program node to fn. fn is not called
// when parsing is impossible.
func (s *SyntaxStrategy) inspect(src []byte, fn func(root *tree_sitter.Node)) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(s.language); err != nil {
		return
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return
	}
	defer tree.Close()

	fn(tree.RootNode())
}

// suspendingRange returns the byte range to wrap. It declines when a
// statement before the range refers to a name declared inside it, since
// that name would move out of the earlier statement's scope.
func (s *SyntaxStrategy) suspendingRange(src []byte) (start, end int, ok bool) {
	s.inspect(src, func(root *tree_sitter.Node) {
		if root.HasError() {
			return
		}
		var stmts []*tree_sitter.Node
		first := -1
		for i := range root.NamedChildCount() {
			stmt := root.NamedChild(i)
			if stmt == nil {
				continue
			}
			if first < 0 && suspendsAtTopLevel(stmt) {
				first = len(stmts)
			}
			stmts = append(stmts, stmt)
		}
		if first < 0 {
			return
		}

		declared := map[string]bool{}
		for _, stmt := range stmts[first:] {
			collectDeclared(stmt, src, declared)
		}
		for _, stmt := range stmts[:first] {
			if refersTo(stmt, src, declared) {
				return
			}
		}

		start = int(stmts[first].StartByte())
		end = int(stmts[len(stmts)-1].EndByte())
		ok = true
	})
	return start, end, ok
}

// collectDeclared adds the names that a top-level statement binds in module
// scope: function, generator and class names, and variable declarators.
func collectDeclared(stmt *tree_sitter.Node, src []byte, names map[string]bool) {
	switch stmt.Kind() {
	case "function_declaration", "generator_function_declaration", "class_declaration":
		if name := stmt.ChildByFieldName("name"); name != nil {
			names[name.Utf8Text(src)] = true
		}
	case "lexical_declaration", "variable_declaration":
		for i := range stmt.NamedChildCount() {
			decl := stmt.NamedChild(i)
			if decl == nil || decl.Kind() != "variable_declarator" {
				continue
			}
			if name := decl.ChildByFieldName("name"); name != nil {
				collectIdentifiers(name, src, names)
			}
		}
	}
}

func collectIdentifiers(n *tree_sitter.Node, src []byte, names map[string]bool) {
	switch n.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		names[n.Utf8Text(src)] = true
		return
	}
	for i := range n.NamedChildCount() {
		if child := n.NamedChild(i); child != nil {
			collectIdentifiers(child, src, names)
		}
	}
}

// refersTo reports whether any identifier below n is one of names.
func refersTo(n *tree_sitter.Node, src []byte, names map[string]bool) bool {
	switch n.Kind() {
	case "identifier", "shorthand_property_identifier":
		return names[n.Utf8Text(src)]
	}
	for i := range n.NamedChildCount() {
		if child := n.NamedChild(i); child != nil && refersTo(child, src, names) {
			return true
		}
	}
	return false
}

// suspendsAtTopLevel reports whether n contains an await that is not nested
// inside a function boundary.
func suspendsAtTopLevel(n *tree_sitter.Node) bool {
	kind := n.Kind()
	if functionBoundaries[kind] {
		return false
	}
	if kind == awaitKind {
		return true
	}
	for i := range n.ChildCount() {
		if child := n.Child(i); child != nil && suspendsAtTopLevel(child) {
			return true
		}
	}
	return false
}
