package snippets

import (
	"sort"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Snippet is one translation. Line is 0-based.
type Snippet struct {
	Key  string
	Text string
	URI  string
	Line int
}

// Index holds the snippets of every known snippet file.
type Index struct {
	mu     sync.RWMutex
	byFile map[string]map[string]Snippet
}

func NewIndex() *Index {
	return &Index{byFile: make(map[string]map[string]Snippet)}
}

// Update replaces the snippets of uri.
func (i *Index) Update(uri string, snippets map[string]Snippet) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byFile[uri] = snippets
}

func (i *Index) Remove(uri string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.byFile, uri)
}

// Files returns the indexed files, en_GB files first.
func (i *Index) Files() []string {
	i.mu.RLock()
	files := make([]string, 0, len(i.byFile))
	for uri := range i.byFile {
		files = append(files, uri)
	}
	i.mu.RUnlock()

	sort.Slice(files, func(a, b int) bool {
		ea, eb := isDefaultLocale(files[a]), isDefaultLocale(files[b])
		if ea != eb {
			return ea
		}
		return files[a] < files[b]
	})
	return files
}

// Lookup returns the snippet for key, preferring the files Files lists first.
func (i *Index) Lookup(key string) (Snippet, bool) {
	files := i.Files()
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, uri := range files {
		if s, ok := i.byFile[uri][key]; ok {
			return s, true
		}
	}
	return Snippet{}, false
}

// Keys returns every known key starting with prefix, sorted and unique.
func (i *Index) Keys(prefix string) []string {
	i.mu.RLock()
	seen := make(map[string]bool)
	for _, snippets := range i.byFile {
		for key := range snippets {
			if strings.HasPrefix(key, prefix) {
				seen[key] = true
			}
		}
	}
	i.mu.RUnlock()

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isDefaultLocale(uri string) bool {
	return strings.Contains(uri, "en_GB") || strings.Contains(uri, "en-GB")
}

// Parse flattens a snippet JSON document into dotted keys. Scalars other
// than strings keep their literal text.
func Parse(root *tree_sitter.Node, src []byte, uri string) map[string]Snippet {
	if root.Kind() == "document" && root.NamedChildCount() > 0 {
		root = root.NamedChild(0)
	}
	result := make(map[string]Snippet)
	collect("", root, src, uri, result)
	return result
}

func collect(prefix string, node *tree_sitter.Node, src []byte, uri string, result map[string]Snippet) {
	if node == nil || node.Kind() != "object" {
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		pair := node.NamedChild(i)
		if pair.Kind() != "pair" {
			continue
		}
		key, value := pair.ChildByFieldName("key"), pair.ChildByFieldName("value")
		if key == nil || value == nil || key.Kind() != "string" {
			continue
		}

		name := stringContent(key, src)
		if prefix != "" {
			name = prefix + "." + name
		}

		switch value.Kind() {
		case "object":
			collect(name, value, src, uri, result)
		case "string":
			result[name] = Snippet{Key: name, Text: stringContent(value, src), URI: uri, Line: int(value.StartPosition().Row)}
		case "number", "true", "false", "null":
			result[name] = Snippet{Key: name, Text: value.Utf8Text(src), URI: uri, Line: int(value.StartPosition().Row)}
		}
	}
}

func stringContent(node *tree_sitter.Node, src []byte) string {
	return strings.TrimSuffix(strings.TrimPrefix(node.Utf8Text(src), `"`), `"`)
}
