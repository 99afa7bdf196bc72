// Package typeconvert translates between the 0-based values extensions see
// and the 1-based protocol values that cross the boundary.
package typeconvert

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/protocol"
)

// ErrEmptyLabel is returned for completion items without a label.
var ErrEmptyLabel = errors.New("completion item has an empty label")

// ToPosition converts a protocol position to an extension position.
func ToPosition(p protocol.Position) types.Position {
	return types.Position{Line: p.LineNumber - 1, Character: p.Column - 1}
}

// FromPosition converts an extension position to a protocol position.
func FromPosition(p types.Position) protocol.Position {
	return protocol.Position{LineNumber: p.Line + 1, Column: p.Character + 1}
}

// ToRange converts a protocol range to an extension range.
func ToRange(r protocol.Range) types.Range {
	return types.NewRange(ToPosition(r.Start()), ToPosition(r.End()))
}

// FromRange converts an extension range to a protocol range.
func FromRange(r types.Range) protocol.Range {
	return protocol.Range{
		StartLineNumber: r.Start.Line + 1,
		StartColumn:     r.Start.Character + 1,
		EndLineNumber:   r.End.Line + 1,
		EndColumn:       r.End.Character + 1,
	}
}

func fromRangePtr(r *types.Range) *protocol.Range {
	if r == nil {
		return nil
	}
	out := FromRange(*r)
	return &out
}

func toRangePtr(r *protocol.Range) *types.Range {
	if r == nil {
		return nil
	}
	out := ToRange(*r)
	return &out
}

// ToSelection converts a protocol selection.
func ToSelection(s protocol.Selection) types.Selection {
	return types.Selection{
		Anchor: types.Position{Line: s.SelectionStartLineNumber - 1, Character: s.SelectionStartColumn - 1},
		Active: types.Position{Line: s.PositionLineNumber - 1, Character: s.PositionColumn - 1},
	}
}

// FromSelection converts an extension selection.
func FromSelection(s types.Selection) protocol.Selection {
	return protocol.Selection{
		SelectionStartLineNumber: s.Anchor.Line + 1,
		SelectionStartColumn:     s.Anchor.Character + 1,
		PositionLineNumber:       s.Active.Line + 1,
		PositionColumn:           s.Active.Character + 1,
	}
}

// ToSelections converts a list of protocol selections.
func ToSelections(in []protocol.Selection) []types.Selection {
	out := make([]types.Selection, len(in))
	for i, s := range in {
		out[i] = ToSelection(s)
	}
	return out
}

// ToRanges converts a list of protocol ranges.
func ToRanges(in []protocol.Range) []types.Range {
	out := make([]types.Range, len(in))
	for i, r := range in {
		out[i] = ToRange(r)
	}
	return out
}

// FromLocation converts an extension location.
func FromLocation(l types.Location) protocol.Location {
	return protocol.Location{URI: l.URI, Range: FromRange(l.Range)}
}

// ToLocation converts a protocol location.
func ToLocation(l protocol.Location) types.Location {
	return types.Location{URI: l.URI, Range: ToRange(l.Range)}
}

// FromLocations converts a list of extension locations.
func FromLocations(in []types.Location) []protocol.Location {
	if in == nil {
		return nil
	}
	out := make([]protocol.Location, len(in))
	for i, l := range in {
		out[i] = FromLocation(l)
	}
	return out
}

// FromMarkedString normalizes any marked string to markdown.
func FromMarkedString(m types.MarkedString) protocol.MarkdownString {
	switch v := m.(type) {
	case types.Text:
		return protocol.MarkdownString{Value: string(v)}
	case types.MarkdownString:
		return protocol.MarkdownString{Value: v.Value, IsTrusted: v.IsTrusted}
	case *types.MarkdownString:
		if v == nil {
			return protocol.MarkdownString{}
		}
		return protocol.MarkdownString{Value: v.Value, IsTrusted: v.IsTrusted}
	case types.CodeBlock:
		return protocol.MarkdownString{Value: "```" + v.Language + "\n" + v.Value + "\n```"}
	default:
		return protocol.MarkdownString{}
	}
}

// ToMarkdownString converts protocol markdown back to an extension value.
func ToMarkdownString(m protocol.MarkdownString) types.MarkdownString {
	return types.MarkdownString{Value: m.Value, IsTrusted: m.IsTrusted}
}

// FromMarkedStrings converts hover contents, dropping nil entries.
func FromMarkedStrings(in []types.MarkedString) []protocol.MarkdownString {
	out := make([]protocol.MarkdownString, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		out = append(out, FromMarkedString(m))
	}
	return out
}

// FromHover converts a hover.
func FromHover(h *types.Hover) *protocol.Hover {
	if h == nil {
		return nil
	}
	return &protocol.Hover{Contents: FromMarkedStrings(h.Contents), Range: fromRangePtr(h.Range)}
}

// ToHover converts a protocol hover.
func ToHover(h *protocol.Hover) *types.Hover {
	if h == nil {
		return nil
	}
	contents := make([]types.MarkedString, len(h.Contents))
	for i, c := range h.Contents {
		contents[i] = ToMarkdownString(c)
	}
	return &types.Hover{Contents: contents, Range: toRangePtr(h.Range)}
}

// FromEOL converts a line ending. The zero value converts to "".
func FromEOL(eol types.EndOfLine) string {
	switch eol {
	case types.LF:
		return protocol.EOLLF
	case types.CRLF:
		return protocol.EOLCRLF
	default:
		return ""
	}
}

// ToEOL converts a wire line ending.
func ToEOL(eol string) types.EndOfLine {
	if eol == protocol.EOLCRLF {
		return types.CRLF
	}
	return types.LF
}

// FromTextEdit converts a text edit.
func FromTextEdit(e types.TextEdit) protocol.TextEdit {
	return protocol.TextEdit{Range: FromRange(e.Range), Text: e.NewText, EOL: FromEOL(e.NewEOL)}
}

// ToTextEdit converts a protocol text edit.
func ToTextEdit(e protocol.TextEdit) types.TextEdit {
	out := types.TextEdit{Range: ToRange(e.Range), NewText: e.Text}
	if e.EOL != "" {
		out.NewEOL = ToEOL(e.EOL)
	}
	return out
}

// FromTextEdits converts a list of text edits.
func FromTextEdits(in []types.TextEdit) []protocol.TextEdit {
	if in == nil {
		return nil
	}
	out := make([]protocol.TextEdit, len(in))
	for i, e := range in {
		out[i] = FromTextEdit(e)
	}
	return out
}

// FromSingleEdit converts a text edit to an editor edit operation.
func FromSingleEdit(e types.TextEdit) protocol.SingleEditOperation {
	return protocol.SingleEditOperation{Range: FromRange(e.Range), Text: e.NewText}
}

// FromCommand converts a command whose arguments serialize to JSON.
func FromCommand(c *types.Command) (*protocol.Command, error) {
	if c == nil {
		return nil, nil
	}
	out := &protocol.Command{ID: c.Command, Title: c.Title, Tooltip: c.Tooltip}
	for i, arg := range c.Arguments {
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("command %q argument %d: %w", c.Command, i, err)
		}
		out.Arguments = append(out.Arguments, raw)
	}
	return out, nil
}

// ToCommand converts a protocol command. Arguments stay raw JSON.
func ToCommand(c *protocol.Command) *types.Command {
	if c == nil {
		return nil
	}
	out := &types.Command{Command: c.ID, Title: c.Title, Tooltip: c.Tooltip}
	for _, arg := range c.Arguments {
		out.Arguments = append(out.Arguments, arg)
	}
	return out
}

var completionKindsFrom = map[types.CompletionItemKind]protocol.CompletionItemKind{
	types.CompletionMethod:      protocol.KindMethod,
	types.CompletionFunction:    protocol.KindFunction,
	types.CompletionConstructor: protocol.KindConstructor,
	types.CompletionField:       protocol.KindField,
	types.CompletionVariable:    protocol.KindVariable,
	types.CompletionClass:       protocol.KindClass,
	types.CompletionInterface:   protocol.KindInterface,
	types.CompletionModule:      protocol.KindModule,
	types.CompletionProperty:    protocol.KindProperty,
	types.CompletionUnit:        protocol.KindUnit,
	types.CompletionValue:       protocol.KindValue,
	types.CompletionEnum:        protocol.KindEnum,
	types.CompletionKeyword:     protocol.KindKeyword,
	types.CompletionSnippet:     protocol.KindSnippet,
	types.CompletionText:        protocol.KindText,
	types.CompletionColor:       protocol.KindColor,
	types.CompletionFile:        protocol.KindFile,
	types.CompletionReference:   protocol.KindReference,
	types.CompletionFolder:      protocol.KindFolder,
}

var completionKindsTo = func() map[protocol.CompletionItemKind]types.CompletionItemKind {
	m := make(map[protocol.CompletionItemKind]types.CompletionItemKind, len(completionKindsFrom))
	for k, v := range completionKindsFrom {
		m[v] = k
	}
	return m
}()

// CompletionItemKindFrom names a completion kind. Unknown kinds become
// "property".
func CompletionItemKindFrom(k types.CompletionItemKind) protocol.CompletionItemKind {
	if v, ok := completionKindsFrom[k]; ok {
		return v
	}
	return protocol.KindProperty
}

// CompletionItemKindTo is the inverse of CompletionItemKindFrom. Unknown
// names become CompletionProperty.
func CompletionItemKindTo(k protocol.CompletionItemKind) types.CompletionItemKind {
	if v, ok := completionKindsTo[k]; ok {
		return v
	}
	return types.CompletionProperty
}

// FromCompletionItem converts a completion item. The insert text defaults to
// the label.
func FromCompletionItem(item *types.CompletionItem, cmd *protocol.Command) (protocol.Suggestion, error) {
	if item == nil || item.Label == "" {
		return protocol.Suggestion{}, ErrEmptyLabel
	}

	s := protocol.Suggestion{
		Label:            item.Label,
		Kind:             CompletionItemKindFrom(item.Kind),
		Detail:           item.Detail,
		SortText:         item.SortText,
		FilterText:       item.FilterText,
		Preselect:        item.Preselect,
		InsertText:       item.InsertText,
		Range:            fromRangePtr(item.Range),
		CommitCharacters: item.CommitCharacters,
		Command:          cmd,
	}
	if s.InsertText == "" {
		s.InsertText = item.Label
	}
	if item.InsertAsSnippet {
		s.InsertTextRules = protocol.InsertAsSnippet
	}
	if item.Documentation != nil {
		doc := FromMarkedString(item.Documentation)
		s.Documentation = &doc
	}
	for _, e := range item.AdditionalTextEdits {
		s.AdditionalTextEdits = append(s.AdditionalTextEdits, FromSingleEdit(e))
	}
	return s, nil
}

// ToCompletionContext converts a completion context.
func ToCompletionContext(c protocol.CompletionContext) types.CompletionContext {
	return types.CompletionContext{
		TriggerKind:      types.CompletionTriggerKind(c.TriggerKind),
		TriggerCharacter: c.TriggerCharacter,
	}
}

// FoldingRangeKindFrom names a folding kind. Unknown kinds become "".
func FoldingRangeKindFrom(k types.FoldingRangeKind) string {
	switch k {
	case types.FoldingComment:
		return protocol.FoldingComment
	case types.FoldingImports:
		return protocol.FoldingImports
	case types.FoldingRegion:
		return protocol.FoldingRegion
	default:
		return ""
	}
}

// FoldingRangeKindTo is the inverse of FoldingRangeKindFrom.
func FoldingRangeKindTo(k string) types.FoldingRangeKind {
	switch k {
	case protocol.FoldingComment:
		return types.FoldingComment
	case protocol.FoldingImports:
		return types.FoldingImports
	case protocol.FoldingRegion:
		return types.FoldingRegion
	default:
		return 0
	}
}

// FromFoldingRange converts a folding range to 1-based lines.
func FromFoldingRange(r types.FoldingRange) protocol.FoldingRange {
	return protocol.FoldingRange{Start: r.Start + 1, End: r.End + 1, Kind: FoldingRangeKindFrom(r.Kind)}
}

// FromDocumentHighlight converts a highlight.
func FromDocumentHighlight(h types.DocumentHighlight) protocol.DocumentHighlight {
	return protocol.DocumentHighlight{Range: FromRange(h.Range), Kind: int(h.Kind)}
}

// FromColor converts a color.
func FromColor(c types.Color) protocol.Color {
	return protocol.Color{Red: c.Red, Green: c.Green, Blue: c.Blue, Alpha: c.Alpha}
}

// ToColor converts a protocol color.
func ToColor(c protocol.Color) types.Color {
	return types.Color{Red: c.Red, Green: c.Green, Blue: c.Blue, Alpha: c.Alpha}
}

// FromColorInformation converts color information.
func FromColorInformation(c types.ColorInformation) protocol.ColorInformation {
	return protocol.ColorInformation{Range: FromRange(c.Range), Color: FromColor(c.Color)}
}

// ToColorInformation converts protocol color information.
func ToColorInformation(c protocol.ColorInformation) types.ColorInformation {
	return types.ColorInformation{Range: ToRange(c.Range), Color: ToColor(c.Color)}
}

// FromColorPresentation converts a color presentation.
func FromColorPresentation(p types.ColorPresentation) protocol.ColorPresentation {
	out := protocol.ColorPresentation{Label: p.Label, AdditionalTextEdits: FromTextEdits(p.AdditionalTextEdits)}
	if p.TextEdit != nil {
		e := FromTextEdit(*p.TextEdit)
		out.TextEdit = &e
	}
	return out
}

// FromDocumentLink converts a document link.
func FromDocumentLink(l types.DocumentLink) protocol.Link {
	return protocol.Link{Range: FromRange(l.Range), URL: l.Target, Tooltip: l.Tooltip}
}

// ToFormattingOptions converts formatting options.
func ToFormattingOptions(o protocol.FormattingOptions) types.FormattingOptions {
	return types.FormattingOptions{TabSize: o.TabSize, InsertSpaces: o.InsertSpaces}
}

// ToTextEditorOptions converts resolved editor options.
func ToTextEditorOptions(o protocol.ResolvedTextEditorOptions) types.TextEditorOptions {
	tabSize, insertSpaces := o.TabSize, o.InsertSpaces
	return types.TextEditorOptions{
		TabSize:      &tabSize,
		InsertSpaces: &insertSpaces,
		CursorStyle:  types.TextEditorCursorStyle(o.CursorStyle),
		LineNumbers:  types.TextEditorLineNumbersStyle(o.LineNumbers),
	}
}

// FromTextEditorOptions converts an options update. Zero cursor style leaves
// the cursor unchanged; line numbers are only sent with a cursor style or on
// their own when not off.
func FromTextEditorOptions(o types.TextEditorOptions) protocol.TextEditorOptionsUpdate {
	out := protocol.TextEditorOptionsUpdate{TabSize: o.TabSize, InsertSpaces: o.InsertSpaces}
	if o.CursorStyle != 0 {
		style := int(o.CursorStyle)
		out.CursorStyle = &style
	}
	if o.LineNumbers != types.LineNumbersOff {
		ln := int(o.LineNumbers)
		out.LineNumbers = &ln
	}
	return out
}

// FromViewColumn converts a view column to an editor group position: -1 is
// the active group, -2 the group beside it, otherwise a 0-based index.
func FromViewColumn(c types.ViewColumn) int {
	switch {
	case c == types.ViewColumnBeside:
		return -2
	case c > 0:
		return int(c) - 1
	default:
		return -1
	}
}

// ToViewColumn converts an editor group position. Negative positions have no
// column.
func ToViewColumn(position int) types.ViewColumn {
	if position < 0 {
		return 0
	}
	return types.ViewColumn(position + 1)
}

// FromDecorationOptions converts decoration placements.
func FromDecorationOptions(in []types.DecorationOptions) []protocol.DecorationOptions {
	out := make([]protocol.DecorationOptions, len(in))
	for i, d := range in {
		out[i] = protocol.DecorationOptions{Range: FromRange(d.Range)}
		if d.HoverMessage != nil {
			out[i].HoverMessage = []protocol.MarkdownString{FromMarkedString(d.HoverMessage)}
		}
	}
	return out
}
