package mainthread

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/textmodel"
)

// PlainText is the language of documents without a better guess.
const PlainText = "plaintext"

var languagesByExtension = map[string]string{
	".php":  "php",
	".xml":  "xml",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".js":   "javascript",
	".mjs":  "javascript",
	".twig": "twig",
	".scss": "scss",
	".md":   "markdown",
}

// LanguageForPath guesses a language id from a file extension.
func LanguageForPath(path string) string {
	if lang, ok := languagesByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return PlainText
}

type model struct {
	uri        string
	languageID string
	text       *textmodel.Model
	dirty      bool
}

func (m *model) addedData() protocol.ModelAddedData {
	return protocol.ModelAddedData{
		URI:        m.uri,
		VersionID:  m.text.Version(),
		Lines:      m.text.Lines(),
		EOL:        m.text.EOL(),
		LanguageID: m.languageID,
		IsDirty:    m.dirty,
	}
}

// Document is a copy of a model's state.
type Document struct {
	URI        string
	LanguageID string
	Version    int
	Dirty      bool
	EOL        string
	Text       string
}

// ModelChange is fired after edits were applied to a model.
type ModelChange struct {
	URI   string
	Event protocol.ModelChangedEvent
}

// Models owns the authoritative document contents. Every mutation is
// replayed to the extension side.
type Models struct {
	s       *Session
	logger  *zap.Logger
	content ContentProvider

	// guarded by s.state
	models      map[string]*model
	untitledSeq int

	onDidChange event.Emitter[ModelChange]
}

func newModels(s *Session, content ContentProvider) *Models {
	return &Models{
		s:       s,
		logger:  s.logger.Named("models"),
		content: content,
		models:  make(map[string]*model),
	}
}

func (m *Models) methods() rpc.Methods {
	return rpc.Methods{
		"$tryCreateDocument": rpc.Func1(func(_ context.Context, opts protocol.CreateDocumentOptions) (string, error) {
			return m.CreateUntitled(opts.Language, opts.Content), nil
		}),
		"$tryOpenDocument": rpc.Func1(func(ctx context.Context, uri string) (string, error) {
			if _, err := m.Open(ctx, uri, ""); err != nil {
				return "", err
			}
			return uri, nil
		}),
		"$trySaveDocument": rpc.Func1(m.Save),
	}
}

// OnDidChange subscribes to applied edits. fn runs while the session state
// is locked and must not call back into Models or Editors.
func (m *Models) OnDidChange(fn func(ModelChange)) event.Disposable {
	return m.onDidChange.Subscribe(fn)
}

// Open returns the model for uri, resolving its content when it is not open
// yet. An empty languageID is guessed from the path.
func (m *Models) Open(ctx context.Context, uri, languageID string) (Document, error) {
	if doc, ok := m.Get(uri); ok {
		return doc, nil
	}

	text, err := m.content.ResolveContent(ctx, uri)
	if err != nil {
		return Document{}, fmt.Errorf("%w: cannot open %s: %v", rpc.ErrNotFound, uri, err)
	}
	return m.Add(uri, languageID, text), nil
}

// Add opens a model with the given text. An already open model is returned
// unchanged.
func (m *Models) Add(uri, languageID, text string) Document {
	if languageID == "" {
		languageID = LanguageForPath(uri)
	}
	m.s.Languages.RegisterLanguage(languageID)

	m.s.state.Lock()
	defer m.s.state.Unlock()

	if existing, ok := m.models[uri]; ok {
		return existing.document()
	}
	md := &model{
		uri:        uri,
		languageID: languageID,
		text:       textmodel.FromText(text, protocol.EOLLF, 1),
	}
	m.models[uri] = md
	m.logger.Debug("opened model", zap.String("uri", uri), zap.String("language", languageID))
	m.s.publishLocked()
	return md.document()
}

// CreateUntitled opens a new untitled model and returns its URI.
func (m *Models) CreateUntitled(languageID, content string) string {
	if languageID == "" {
		languageID = PlainText
	}
	m.s.Languages.RegisterLanguage(languageID)

	m.s.state.Lock()
	defer m.s.state.Unlock()

	var uri string
	for {
		m.untitledSeq++
		uri = fmt.Sprintf("untitled:Untitled-%d", m.untitledSeq)
		if _, taken := m.models[uri]; !taken {
			break
		}
	}
	m.models[uri] = &model{
		uri:        uri,
		languageID: languageID,
		text:       textmodel.FromText(content, protocol.EOLLF, 1),
		dirty:      content != "",
	}
	m.s.publishLocked()
	return uri
}

// Create writes a new file through the content provider and opens it.
func (m *Models) Create(ctx context.Context, uri, content string) (Document, error) {
	if err := m.content.CreateFile(ctx, uri, content); err != nil {
		return Document{}, err
	}
	return m.Add(uri, "", content), nil
}

// Get returns a copy of the model state.
func (m *Models) Get(uri string) (Document, bool) {
	m.s.state.Lock()
	defer m.s.state.Unlock()

	md, ok := m.models[uri]
	if !ok {
		return Document{}, false
	}
	return md.document(), true
}

// URIs returns the open model URIs, sorted.
func (m *Models) URIs() []string {
	m.s.state.Lock()
	defer m.s.state.Unlock()

	uris := make([]string, 0, len(m.models))
	for uri := range m.models {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// ApplyEdits applies edits as one change batch. eol, when set, changes the
// line ending afterwards.
func (m *Models) ApplyEdits(uri string, edits []protocol.SingleEditOperation, eol string) (protocol.ModelChangedEvent, error) {
	m.s.state.Lock()
	defer m.s.state.Unlock()
	return m.applyEditsLocked(uri, edits, eol)
}

func (m *Models) applyEditsLocked(uri string, edits []protocol.SingleEditOperation, eol string) (protocol.ModelChangedEvent, error) {
	md, ok := m.models[uri]
	if !ok {
		return protocol.ModelChangedEvent{}, fmt.Errorf("%w: document %s", rpc.ErrNotFound, uri)
	}

	ranges := make([]protocol.Range, len(edits))
	for i, e := range edits {
		ranges[i] = md.text.ValidateRange(e.Range)
	}
	order, err := textmodel.EditOrder(ranges)
	if err != nil {
		return protocol.ModelChangedEvent{}, fmt.Errorf("%w: %v", rpc.ErrInvalidArguments, err)
	}

	ev := protocol.ModelChangedEvent{EOL: md.text.EOL()}
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		change := protocol.ModelContentChange{
			Range:       ranges[i],
			RangeLength: textmodel.UTF16Len(md.text.ValueInRange(ranges[i])),
			Text:        edits[i].Text,
		}
		md.text.ApplyChange(change)
		ev.Changes = append(ev.Changes, change)
	}
	if eol != "" {
		md.text.SetEOL(eol)
		ev.EOL = md.text.EOL()
	}
	md.text.SetVersion(md.text.Version() + 1)
	ev.VersionID = md.text.Version()
	md.dirty = true

	if m.s.synced {
		m.s.notify("$acceptModelChanged", m.s.extDocuments.AcceptModelChanged(context.Background(), uri, ev, true))
	}
	m.onDidChange.Fire(ModelChange{URI: uri, Event: ev})
	return ev, nil
}

// SetLanguage changes the language of an open model.
func (m *Models) SetLanguage(uri, languageID string) error {
	m.s.Languages.RegisterLanguage(languageID)

	m.s.state.Lock()
	defer m.s.state.Unlock()

	md, ok := m.models[uri]
	if !ok {
		return fmt.Errorf("%w: document %s", rpc.ErrNotFound, uri)
	}
	if md.languageID == languageID {
		return nil
	}
	old := md.languageID
	md.languageID = languageID
	if m.s.synced {
		m.s.notify("$acceptModelModeChanged", m.s.extDocuments.AcceptModelModeChanged(context.Background(), uri, old, languageID))
	}
	return nil
}

// SetDirty overrides the dirty flag, for example after an undo back to the
// saved state.
func (m *Models) SetDirty(uri string, dirty bool) error {
	m.s.state.Lock()
	defer m.s.state.Unlock()

	md, ok := m.models[uri]
	if !ok {
		return fmt.Errorf("%w: document %s", rpc.ErrNotFound, uri)
	}
	if md.dirty == dirty {
		return nil
	}
	md.dirty = dirty
	if m.s.synced {
		m.s.notify("$acceptDirtyStateChanged", m.s.extDocuments.AcceptDirtyStateChanged(context.Background(), uri, dirty))
	}
	return nil
}

// Save writes the model through the content provider. Untitled models have
// no target and are not saved.
func (m *Models) Save(ctx context.Context, uri string) (bool, error) {
	m.s.state.Lock()
	md, ok := m.models[uri]
	if !ok {
		m.s.state.Unlock()
		return false, fmt.Errorf("%w: document %s", rpc.ErrNotFound, uri)
	}
	if Scheme(uri) == "untitled" {
		m.s.state.Unlock()
		return false, nil
	}
	text, version := md.text.Text(), md.text.Version()
	m.s.state.Unlock()

	if err := m.content.UpdateContent(ctx, uri, text); err != nil {
		return false, err
	}

	m.s.state.Lock()
	defer m.s.state.Unlock()
	md, ok = m.models[uri]
	if !ok || md.text.Version() != version {
		// Edited or closed while writing; the saved content is already stale.
		return false, nil
	}
	md.dirty = false
	if m.s.synced {
		m.s.notify("$acceptModelSaved", m.s.extDocuments.AcceptModelSaved(context.Background(), uri))
	}
	return true, nil
}

// Close removes the model and every editor showing it.
func (m *Models) Close(uri string) error {
	m.s.state.Lock()
	defer m.s.state.Unlock()

	if _, ok := m.models[uri]; !ok {
		return fmt.Errorf("%w: document %s", rpc.ErrNotFound, uri)
	}
	m.s.Editors.closeDocumentLocked(uri)
	delete(m.models, uri)
	m.s.publishLocked()
	return nil
}

func (md *model) document() Document {
	return Document{
		URI:        md.uri,
		LanguageID: md.languageID,
		Version:    md.text.Version(),
		Dirty:      md.dirty,
		EOL:        md.text.EOL(),
		Text:       md.text.Text(),
	}
}

func (m *Models) fullRange(uri string) (protocol.Range, bool) {
	m.s.state.Lock()
	defer m.s.state.Unlock()

	md, ok := m.models[uri]
	if !ok {
		return protocol.Range{}, false
	}
	last := md.text.LineCount()
	return protocol.Range{
		StartLineNumber: 1, StartColumn: 1,
		EndLineNumber: last, EndColumn: md.text.LineMaxColumn(last),
	}, true
}
