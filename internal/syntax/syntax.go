// Package syntax parses documents with tree-sitter, keyed by language id.
package syntax

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	tree_sitter_xml "github.com/tree-sitter-grammars/tree-sitter-xml/bindings/go"
	tree_sitter_yaml "github.com/tree-sitter-grammars/tree-sitter-yaml/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_json "github.com/tree-sitter/tree-sitter-json/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// ErrUnsupportedLanguage is returned for language ids without a grammar.
var ErrUnsupportedLanguage = errors.New("syntax: unsupported language")

// Registry maps language ids to grammars. Parsers are created per call, so
// a Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	languages map[string]*tree_sitter.Language
}

// NewRegistry returns a registry with the bundled grammars.
func NewRegistry() *Registry {
	r := &Registry{languages: make(map[string]*tree_sitter.Language)}

	php := tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	xml := tree_sitter.NewLanguage(tree_sitter_xml.LanguageXML())
	json := tree_sitter.NewLanguage(tree_sitter_json.Language())
	yaml := tree_sitter.NewLanguage(tree_sitter_yaml.Language())
	javascript := tree_sitter.NewLanguage(tree_sitter_javascript.Language())

	r.languages["php"] = php
	r.languages["xml"] = xml
	r.languages["json"] = json
	r.languages["jsonc"] = json
	r.languages["yaml"] = yaml
	r.languages["javascript"] = javascript

	return r
}

// Register adds or replaces the grammar for a language id.
func (r *Registry) Register(languageID string, lang *tree_sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languages[languageID] = lang
}

// Supports reports whether languageID has a grammar.
func (r *Registry) Supports(languageID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.languages[languageID]
	return ok
}

// Languages returns the supported language ids, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.languages))
	for id := range r.languages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Parse parses src as languageID. The caller closes the returned tree.
func (r *Registry) Parse(languageID string, src []byte) (*tree_sitter.Tree, error) {
	r.mu.RLock()
	lang, ok := r.languages[languageID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, languageID)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set %s grammar: %w", languageID, err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s document", languageID)
	}
	return tree, nil
}

// Walk visits node and its named descendants depth first. Returning false
// from visit skips the node's children.
func Walk(node *tree_sitter.Node, visit func(*tree_sitter.Node) bool) {
	if node == nil || !visit(node) {
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		Walk(node.NamedChild(i), visit)
	}
}

// NodeAt returns the smallest named node covering the 0-based row and
// column.
func NodeAt(tree *tree_sitter.Tree, row, column uint) *tree_sitter.Node {
	p := tree_sitter.Point{Row: row, Column: column}
	return tree.RootNode().NamedDescendantForPointRange(p, p)
}
