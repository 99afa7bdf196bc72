// Package syntaxfold is a built-in extension that folds documents along
// their tree-sitter syntax tree.
package syntaxfold

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/exthost"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/selector"
	"github.com/shopware/exthost/internal/syntax"
	"github.com/shopware/exthost/internal/textmodel"
)

const (
	// ID identifies the extension.
	ID = "shopware.syntaxfold"
	// NodeKindCommand returns the kind of the syntax node at a position. It
	// takes the document URI and the 0-based line and character.
	NodeKindCommand = "syntaxfold.nodeKind"
)

// Extension provides folding ranges for every language the syntax registry
// has a grammar for.
type Extension struct {
	registry *syntax.Registry
	logger   *zap.Logger

	disposables []event.Disposable
}

// New returns the extension. A nil logger discards logs.
func New(registry *syntax.Registry, logger *zap.Logger) *Extension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extension{registry: registry, logger: logger.Named("syntaxfold")}
}

func (e *Extension) ID() string { return ID }

// Activate registers the folding provider and the node kind command.
func (e *Extension) Activate(ctx context.Context, s *exthost.Session) error {
	languages := e.registry.Languages()
	folding, err := s.Languages.RegisterFoldingRangeProvider(ctx, selector.Language(languages...), e)
	if err != nil {
		return fmt.Errorf("failed to register folding provider: %w", err)
	}
	command, err := s.Commands.RegisterCommand(ctx, NodeKindCommand, func(ctx context.Context, args ...any) (any, error) {
		return e.nodeKind(s, args)
	})
	if err != nil {
		folding.Dispose()
		return fmt.Errorf("failed to register %s: %w", NodeKindCommand, err)
	}

	e.disposables = append(e.disposables, folding, command)
	e.logger.Debug("activated", zap.Strings("languages", languages))
	return nil
}

// Dispose unregisters what Activate registered.
func (e *Extension) Dispose() {
	event.Combine(e.disposables...).Dispose()
	e.disposables = nil
}

// ProvideFoldingRanges folds every named node spanning more than one line.
// Closing lines stay visible, comments fold completely.
func (e *Extension) ProvideFoldingRanges(ctx context.Context, doc *exthost.Document, _ types.FoldingContext) ([]types.FoldingRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.registry.Supports(doc.LanguageID()) {
		return nil, nil
	}

	src := []byte(doc.Text())
	tree, err := e.registry.Parse(doc.LanguageID(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return Ranges(tree.RootNode()), nil
}

// Ranges computes the folding ranges below root. Ranges starting on the
// same line are merged into the longest one.
func Ranges(root *tree_sitter.Node) []types.FoldingRange {
	byStart := make(map[int]types.FoldingRange)
	visit := func(n *tree_sitter.Node) bool {
		r, ok := foldingRange(n)
		if !ok {
			return true
		}
		if prev, seen := byStart[r.Start]; !seen || r.End > prev.End {
			byStart[r.Start] = r
		}
		return true
	}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		syntax.Walk(root.NamedChild(i), visit)
	}

	out := make([]types.FoldingRange, 0, len(byStart))
	for _, r := range byStart {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func foldingRange(n *tree_sitter.Node) (types.FoldingRange, bool) {
	start, end := int(n.StartPosition().Row), int(n.EndPosition().Row)
	// A node ending at column 0 ends on the line before.
	if n.EndPosition().Column == 0 {
		end--
	}
	if end <= start {
		return types.FoldingRange{}, false
	}
	if isComment(n) {
		return types.FoldingRange{Start: start, End: end, Kind: types.FoldingComment}, true
	}
	if end-1 <= start {
		return types.FoldingRange{}, false
	}
	return types.FoldingRange{Start: start, End: end - 1}, true
}

func isComment(n *tree_sitter.Node) bool {
	return strings.Contains(n.Kind(), "comment")
}

func (e *Extension) nodeKind(s *exthost.Session, args []any) (any, error) {
	uri, err := exthost.DecodeArg[string](args, 0)
	if err != nil {
		return nil, err
	}
	line, err := exthost.DecodeArg[int](args, 1)
	if err != nil {
		return nil, err
	}
	character, err := exthost.DecodeArg[int](args, 2)
	if err != nil {
		return nil, err
	}
	if character < 0 {
		return nil, fmt.Errorf("%w: negative character", rpc.ErrInvalidArguments)
	}

	doc, ok := s.Documents.Get(uri)
	if !ok {
		return nil, fmt.Errorf("%w: document %s is not open", rpc.ErrNotFound, uri)
	}
	text, err := doc.LineAt(line)
	if err != nil {
		return nil, err
	}
	src := []byte(doc.Text())
	tree, err := e.registry.Parse(doc.LanguageID(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	// Tree-sitter columns count bytes, positions count UTF-16 code units.
	column := textmodel.ByteOffset(text.Text, character+1)
	node := syntax.NodeAt(tree, uint(line), uint(column))
	if node == nil {
		return "", nil
	}
	return node.Kind(), nil
}
