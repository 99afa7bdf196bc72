package syntax

import (
	"fmt"
	"io"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Dump writes the named node structure below node, one node per line with
// its 0-based start position. Leaf nodes include their text.
func Dump(w io.Writer, node *tree_sitter.Node, src []byte) error {
	var err error
	var dump func(n *tree_sitter.Node, depth int)
	dump = func(n *tree_sitter.Node, depth int) {
		if n == nil || err != nil {
			return
		}
		start := n.StartPosition()
		line := fmt.Sprintf("%s%s [%d:%d]", strings.Repeat("  ", depth), n.Kind(), start.Row, start.Column)
		if n.NamedChildCount() == 0 {
			line += " " + fmt.Sprintf("%q", n.Utf8Text(src))
		}
		if _, err = fmt.Fprintln(w, line); err != nil {
			return
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			dump(n.NamedChild(i), depth+1)
		}
	}
	dump(node, 0)
	return err
}
