package exthost

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/exthost/typeconvert"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/textmodel"
)

// UntitledScheme is the URI scheme of documents without a file.
const UntitledScheme = "untitled"

// TextLine is one line of a document.
type TextLine struct {
	LineNumber int
	Text       string
	// Range covers the text without the line ending.
	Range types.Range
	// RangeIncludingLineBreak also covers the line ending, except on the
	// last line.
	RangeIncludingLineBreak types.Range
	FirstNonWhitespaceCharacterIndex int
	IsEmptyOrWhitespace              bool
}

// ContentChange is one change of a document change event, 0-based.
type ContentChange struct {
	Range       types.Range
	RangeLength int
	Text        string
}

// DocumentChangeEvent is fired after a change batch was applied.
type DocumentChangeEvent struct {
	Document       *Document
	ContentChanges []ContentChange
}

// Document is the mirror of a document owned by the main side. Its content
// only changes through events from the main side; use TextEditor.Edit or a
// workspace edit to change it.
type Document struct {
	docs *Documents
	uri  string

	mu       sync.RWMutex
	model    *textmodel.Model
	language string
	dirty    bool
	closed   bool
}

// URI returns the document URI.
func (d *Document) URI() string { return d.uri }

// IsUntitled reports whether the document has no file.
func (d *Document) IsUntitled() bool { return strings.HasPrefix(d.uri, UntitledScheme+":") }

// LanguageID returns the document language.
func (d *Document) LanguageID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.language
}

// Version returns the version of the last change applied.
func (d *Document) Version() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model.Version()
}

// IsDirty reports whether the document has unsaved changes.
func (d *Document) IsDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// IsClosed reports whether the main side closed the document.
func (d *Document) IsClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// EOL returns the line ending of the document.
func (d *Document) EOL() types.EndOfLine {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return typeconvert.ToEOL(d.model.EOL())
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model.LineCount()
}

// LineAt returns the 0-based line. Out of range lines are an error.
func (d *Document) LineAt(line int) (TextLine, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := d.model.LineCount()
	if line < 0 || line >= count {
		return TextLine{}, fmt.Errorf("%w: line %d is out of range", rpc.ErrInvalidArguments, line)
	}
	text := d.model.Line(line + 1)
	length := textmodel.UTF16Len(text)

	tl := TextLine{
		LineNumber: line,
		Text:       text,
		Range:      types.NewRangeOf(line, 0, line, length),
	}
	tl.RangeIncludingLineBreak = tl.Range
	if line < count-1 {
		tl.RangeIncludingLineBreak = types.NewRangeOf(line, 0, line+1, 0)
	}
	trimmed := strings.TrimLeft(text, " \t")
	tl.FirstNonWhitespaceCharacterIndex = textmodel.UTF16Len(text[:len(text)-len(trimmed)])
	tl.IsEmptyOrWhitespace = strings.TrimSpace(text) == ""
	return tl, nil
}

// Text returns the whole document.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model.Text()
}

// TextInRange returns the text covered by r, clamped to the document.
func (d *Document) TextInRange(r types.Range) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model.ValueInRange(typeconvert.FromRange(r))
}

// OffsetAt returns the offset of p in UTF-16 code units.
func (d *Document) OffsetAt(p types.Position) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model.OffsetAt(typeconvert.FromPosition(p))
}

// PositionAt is the inverse of OffsetAt.
func (d *Document) PositionAt(offset int) types.Position {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return typeconvert.ToPosition(d.model.PositionAt(offset))
}

// ValidatePosition clamps p into the document.
func (d *Document) ValidatePosition(p types.Position) types.Position {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return typeconvert.ToPosition(d.model.ValidatePosition(typeconvert.FromPosition(p)))
}

// ValidateRange clamps r into the document.
func (d *Document) ValidateRange(r types.Range) types.Range {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return typeconvert.ToRange(d.model.ValidateRange(typeconvert.FromRange(r)))
}

// WordRangeAtPosition returns the range of the word at p. pattern may be nil
// for the default word definition.
func (d *Document) WordRangeAtPosition(p types.Position, pattern *regexp.Regexp) (types.Range, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.model.WordRangeAt(typeconvert.FromPosition(p), pattern)
	if !ok {
		return types.Range{}, false
	}
	return typeconvert.ToRange(r), true
}

// Save asks the main side to save the document. Untitled documents report
// false.
func (d *Document) Save(ctx context.Context) (bool, error) {
	if d.IsClosed() {
		return false, fmt.Errorf("%w: document %s is closed", rpc.ErrNotFound, d.uri)
	}
	return d.docs.main.TrySaveDocument(ctx, d.uri)
}

// Documents mirrors the documents open on the main side.
type Documents struct {
	logger *zap.Logger
	main   protocol.DocumentsProxy

	mu      sync.RWMutex
	docs    map[string]*Document
	changed *signal

	OnDidOpen   event.Emitter[*Document]
	OnDidClose  event.Emitter[*Document]
	OnDidChange event.Emitter[DocumentChangeEvent]
	OnDidSave   event.Emitter[*Document]
}

func newDocuments(s *Session) *Documents {
	return &Documents{
		logger:  s.logger.Named("documents"),
		main:    protocol.NewDocumentsProxy(s.proto),
		docs:    make(map[string]*Document),
		changed: s.mirrorChanged,
	}
}

func (ds *Documents) methods() rpc.Methods {
	return rpc.Methods{
		"$acceptModelModeChanged": rpc.Action3(func(_ context.Context, uri, _, language string) error {
			ds.acceptModeChanged(uri, language)
			return nil
		}),
		"$acceptModelSaved": rpc.Action1(func(_ context.Context, uri string) error {
			ds.acceptSaved(uri)
			return nil
		}),
		"$acceptDirtyStateChanged": rpc.Action2(func(_ context.Context, uri string, dirty bool) error {
			ds.acceptDirty(uri, dirty)
			return nil
		}),
		"$acceptModelChanged": rpc.Action3(func(_ context.Context, uri string, e protocol.ModelChangedEvent, dirty bool) error {
			ds.acceptChanged(uri, e, dirty)
			return nil
		}),
	}
}

// Get returns the mirrored document at uri.
func (ds *Documents) Get(uri string) (*Document, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	d, ok := ds.docs[uri]
	return d, ok
}

// All returns every mirrored document ordered by URI.
func (ds *Documents) All() []*Document {
	ds.mu.RLock()
	out := make([]*Document, 0, len(ds.docs))
	for _, d := range ds.docs {
		out = append(out, d)
	}
	ds.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].uri < out[j].uri })
	return out
}

func (ds *Documents) add(data protocol.ModelAddedData) {
	d := &Document{
		docs:     ds,
		uri:      data.URI,
		model:    textmodel.New(data.Lines, data.EOL, data.VersionID),
		language: data.LanguageID,
		dirty:    data.IsDirty,
	}

	ds.mu.Lock()
	if _, exists := ds.docs[data.URI]; exists {
		ds.mu.Unlock()
		ds.logger.Warn("document added twice", zap.String("uri", data.URI))
		return
	}
	ds.docs[data.URI] = d
	ds.mu.Unlock()
	ds.changed.broadcast()

	ds.OnDidOpen.Fire(d)
}

func (ds *Documents) remove(uri string) {
	ds.mu.Lock()
	d, ok := ds.docs[uri]
	if ok {
		delete(ds.docs, uri)
	}
	ds.mu.Unlock()
	ds.changed.broadcast()
	if !ok {
		ds.logger.Warn("removing unknown document", zap.String("uri", uri))
		return
	}

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	ds.OnDidClose.Fire(d)
}

// acceptModeChanged reports a language change as a close followed by an
// open, the way providers keyed on languages expect it.
func (ds *Documents) acceptModeChanged(uri, language string) {
	d, ok := ds.Get(uri)
	if !ok {
		ds.logger.Warn("language change for unknown document", zap.String("uri", uri))
		return
	}
	d.mu.Lock()
	d.language = language
	d.mu.Unlock()

	ds.OnDidClose.Fire(d)
	ds.OnDidOpen.Fire(d)
}

func (ds *Documents) acceptSaved(uri string) {
	d, ok := ds.Get(uri)
	if !ok {
		return
	}
	d.mu.Lock()
	d.dirty = false
	d.mu.Unlock()
	ds.OnDidSave.Fire(d)
}

func (ds *Documents) acceptDirty(uri string, dirty bool) {
	if d, ok := ds.Get(uri); ok {
		d.mu.Lock()
		d.dirty = dirty
		d.mu.Unlock()
	}
}

func (ds *Documents) acceptChanged(uri string, e protocol.ModelChangedEvent, dirty bool) {
	d, ok := ds.Get(uri)
	if !ok {
		ds.logger.Warn("change for unknown document", zap.String("uri", uri))
		return
	}

	d.mu.Lock()
	err := d.model.AcceptEvents(e)
	if err == nil {
		d.dirty = dirty
	}
	d.mu.Unlock()
	if err != nil {
		ds.logger.Warn("ignoring change batch", zap.String("uri", uri), zap.Error(err))
		return
	}

	changes := make([]ContentChange, len(e.Changes))
	for i, c := range e.Changes {
		changes[i] = ContentChange{Range: typeconvert.ToRange(c.Range), RangeLength: c.RangeLength, Text: c.Text}
	}

	ds.changed.broadcast()
	ds.OnDidChange.Fire(DocumentChangeEvent{Document: d, ContentChanges: changes})
}

// waitForDocument waits until uri is mirrored.
func (ds *Documents) waitForDocument(ctx context.Context, uri string) (*Document, error) {
	var doc *Document
	err := ds.changed.wait(ctx, func() bool {
		d, ok := ds.Get(uri)
		doc = d
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for document %s: %w", uri, err)
	}
	return doc, nil
}
