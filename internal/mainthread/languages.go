package mainthread

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/selector"
)

// Feature names a language feature.
type Feature string

const (
	FeatureHover            Feature = "hover"
	FeatureCompletion       Feature = "completion"
	FeatureDefinition       Feature = "definition"
	FeatureTypeDefinition   Feature = "typeDefinition"
	FeatureReferences       Feature = "references"
	FeatureCodeLens         Feature = "codeLens"
	FeatureFolding          Feature = "folding"
	FeatureHighlight        Feature = "documentHighlight"
	FeatureColor            Feature = "documentColor"
	FeatureLinks            Feature = "documentLink"
	FeatureOnTypeFormatting Feature = "onTypeFormatting"
	FeatureRangeFormatting  Feature = "rangeFormatting"
	FeatureFormatting       Feature = "formatting"
)

type registration struct {
	handle            int
	feature           Feature
	selector          selector.Selector
	seq               uint64
	triggerCharacters []string
	supportsResolve   bool
	eventHandle       *int
}

// LanguageFeatures keeps the providers registered by the extension side and
// forwards requests to them. A registration is hooked into every known
// language its selector can match, including languages that become known
// later.
type LanguageFeatures struct {
	s      *Session
	logger *zap.Logger
	ext    protocol.ExtLanguageFeaturesProxy

	mu            sync.RWMutex
	seq           uint64
	languages     map[string]bool
	registrations map[int]*registration
	hooks         map[string][]*registration

	onCodeLensChanged event.Emitter[int]
}

func newLanguageFeatures(s *Session, languages []string) *LanguageFeatures {
	l := &LanguageFeatures{
		s:             s,
		logger:        s.logger.Named("languages"),
		ext:           protocol.NewExtLanguageFeaturesProxy(s.proto),
		languages:     make(map[string]bool),
		registrations: make(map[int]*registration),
		hooks:         make(map[string][]*registration),
	}
	l.RegisterLanguage(PlainText)
	for _, lang := range languages {
		l.RegisterLanguage(lang)
	}
	return l
}

func (l *LanguageFeatures) methods() rpc.Methods {
	return rpc.Methods{
		"$unregister":                        rpc.Action1(l.unregister),
		"$registerHoverProvider":             rpc.Action2(l.registerWith(FeatureHover)),
		"$registerDefinitionSupport":         rpc.Action2(l.registerWith(FeatureDefinition)),
		"$registerTypeDefinitionSupport":     rpc.Action2(l.registerWith(FeatureTypeDefinition)),
		"$registerReferenceSupport":          rpc.Action2(l.registerWith(FeatureReferences)),
		"$registerFoldingRangeProvider":      rpc.Action2(l.registerWith(FeatureFolding)),
		"$registerDocumentHighlightProvider": rpc.Action2(l.registerWith(FeatureHighlight)),
		"$registerDocumentColorProvider":     rpc.Action2(l.registerWith(FeatureColor)),
		"$registerRangeFormattingSupport":    rpc.Action2(l.registerWith(FeatureRangeFormatting)),
		"$registerDocumentFormattingSupport": rpc.Action2(l.registerWith(FeatureFormatting)),
		"$registerCompletionSupport": rpc.Action4(func(_ context.Context, handle int, sel selector.Selector, triggers []string, supportsResolve bool) error {
			return l.add(&registration{handle: handle, feature: FeatureCompletion, selector: sel,
				triggerCharacters: triggers, supportsResolve: supportsResolve})
		}),
		"$registerCodeLensSupport": rpc.Action3(func(_ context.Context, handle int, sel selector.Selector, eventHandle *int) error {
			return l.add(&registration{handle: handle, feature: FeatureCodeLens, selector: sel,
				supportsResolve: true, eventHandle: eventHandle})
		}),
		"$registerDocumentLinkProvider": rpc.Action3(func(_ context.Context, handle int, sel selector.Selector, supportsResolve bool) error {
			return l.add(&registration{handle: handle, feature: FeatureLinks, selector: sel, supportsResolve: supportsResolve})
		}),
		"$registerOnTypeFormattingSupport": rpc.Action3(func(_ context.Context, handle int, sel selector.Selector, triggers []string) error {
			return l.add(&registration{handle: handle, feature: FeatureOnTypeFormatting, selector: sel, triggerCharacters: triggers})
		}),
		"$emitCodeLensEvent": rpc.Action1(func(_ context.Context, eventHandle int) error {
			l.onCodeLensChanged.Fire(eventHandle)
			return nil
		}),
	}
}

func (l *LanguageFeatures) registerWith(f Feature) func(context.Context, int, selector.Selector) error {
	return func(_ context.Context, handle int, sel selector.Selector) error {
		return l.add(&registration{handle: handle, feature: f, selector: sel})
	}
}

func (l *LanguageFeatures) add(reg *registration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.registrations[reg.handle]; dup {
		return fmt.Errorf("%w: handle %d is already registered", rpc.ErrInvalidArguments, reg.handle)
	}
	l.seq++
	reg.seq = l.seq
	l.registrations[reg.handle] = reg
	for lang := range l.languages {
		if selector.MatchesLanguage(reg.selector, lang) {
			l.hooks[lang] = append(l.hooks[lang], reg)
		}
	}
	l.logger.Debug("registered provider",
		zap.String("feature", string(reg.feature)),
		zap.Int("handle", reg.handle),
		zap.Stringer("selector", reg.selector))
	return nil
}

func (l *LanguageFeatures) unregister(_ context.Context, handle int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.registrations[handle]; !ok {
		return fmt.Errorf("%w: %d", rpc.ErrUnknownHandle, handle)
	}
	delete(l.registrations, handle)
	for lang, regs := range l.hooks {
		l.hooks[lang] = slices.DeleteFunc(regs, func(r *registration) bool { return r.handle == handle })
	}
	return nil
}

// RegisterLanguage makes a language known and hooks every matching provider
// into it.
func (l *LanguageFeatures) RegisterLanguage(languageID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if languageID == "" || l.languages[languageID] {
		return
	}
	l.languages[languageID] = true
	var hooked []*registration
	for _, reg := range l.registrations {
		if selector.MatchesLanguage(reg.selector, languageID) {
			hooked = append(hooked, reg)
		}
	}
	sort.Slice(hooked, func(i, j int) bool { return hooked[i].seq < hooked[j].seq })
	l.hooks[languageID] = hooked
}

// Languages returns the known language ids, sorted.
func (l *LanguageFeatures) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.languages))
	for lang := range l.languages {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Providers returns the handles hooked into languageID for a feature, in
// registration order.
func (l *LanguageFeatures) Providers(languageID string, f Feature) []int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var handles []int
	for _, reg := range l.hooks[languageID] {
		if reg.feature == f {
			handles = append(handles, reg.handle)
		}
	}
	return handles
}

// OnDidChangeCodeLenses subscribes to providers signalling new lenses. fn
// receives the event handle of the provider.
func (l *LanguageFeatures) OnDidChangeCodeLenses(fn func(eventHandle int)) event.Disposable {
	return l.onCodeLensChanged.Subscribe(fn)
}

// candidates returns the providers of f for the document at uri, best
// selector score first and newest first among equals.
func (l *LanguageFeatures) candidates(uri string, f Feature) ([]*registration, error) {
	doc, ok := l.s.Models.Get(uri)
	if !ok {
		return nil, fmt.Errorf("%w: document %s", rpc.ErrNotFound, uri)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	type scored struct {
		reg   *registration
		score int
	}
	var matches []scored
	for _, reg := range l.hooks[doc.LanguageID] {
		if reg.feature != f {
			continue
		}
		if score := selector.Score(reg.selector, uri, doc.LanguageID, true); score > 0 {
			matches = append(matches, scored{reg, score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].reg.seq > matches[j].reg.seq
	})

	out := make([]*registration, len(matches))
	for i, m := range matches {
		out[i] = m.reg
	}
	return out, nil
}

func (l *LanguageFeatures) registration(handle int, f Feature) (*registration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	reg, ok := l.registrations[handle]
	if !ok || reg.feature != f {
		return nil, fmt.Errorf("%w: %d", rpc.ErrUnknownHandle, handle)
	}
	return reg, nil
}

// fanOut calls every provider concurrently. A failing provider is logged and
// left out; the results keep the provider order.
func fanOut[R any](ctx context.Context, l *LanguageFeatures, f Feature, regs []*registration, call func(context.Context, *registration) (R, bool, error)) ([]R, error) {
	results := make([]R, len(regs))
	present := make([]bool, len(regs))

	g, gctx := errgroup.WithContext(ctx)
	for i, reg := range regs {
		g.Go(func() error {
			r, ok, err := call(gctx, reg)
			if err != nil {
				l.logger.Warn("provider failed",
					zap.String("feature", string(f)), zap.Int("handle", reg.handle), zap.Error(err))
				return nil
			}
			results[i], present[i] = r, ok
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]R, 0, len(regs))
	for i, r := range results {
		if present[i] {
			out = append(out, r)
		}
	}
	return out, nil
}

// first calls providers in order and returns the first non-empty result.
func first[R any](ctx context.Context, l *LanguageFeatures, f Feature, regs []*registration, call func(context.Context, *registration) ([]R, error)) ([]R, error) {
	for _, reg := range regs {
		r, err := call(ctx, reg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.Warn("provider failed",
				zap.String("feature", string(f)), zap.Int("handle", reg.handle), zap.Error(err))
			continue
		}
		if len(r) > 0 {
			return r, nil
		}
	}
	return nil, nil
}

func concat[R any](lists [][]R) []R {
	var out []R
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// ProvideHover returns the hovers of every matching provider.
func (l *LanguageFeatures) ProvideHover(ctx context.Context, uri string, pos protocol.Position) ([]protocol.Hover, error) {
	regs, err := l.candidates(uri, FeatureHover)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, l, FeatureHover, regs, func(ctx context.Context, reg *registration) (protocol.Hover, bool, error) {
		h, err := l.ext.ProvideHover(ctx, reg.handle, uri, pos)
		if err != nil || h == nil {
			return protocol.Hover{}, false, err
		}
		return *h, true, nil
	})
}

// CompletionResult is the answer of one completion provider. It must be
// released with ReleaseCompletionItems once the suggestions are gone.
type CompletionResult struct {
	Handle          int
	SupportsResolve bool
	protocol.SuggestResult
}

// ProvideCompletionItems asks every matching provider for suggestions. For
// character triggered completion only providers declaring the character
// are asked.
func (l *LanguageFeatures) ProvideCompletionItems(ctx context.Context, uri string, pos protocol.Position, cc protocol.CompletionContext) ([]CompletionResult, error) {
	regs, err := l.candidates(uri, FeatureCompletion)
	if err != nil {
		return nil, err
	}
	if cc.TriggerKind == protocol.TriggerCharacter {
		regs = slices.DeleteFunc(regs, func(r *registration) bool {
			return !slices.Contains(r.triggerCharacters, cc.TriggerCharacter)
		})
	}
	return fanOut(ctx, l, FeatureCompletion, regs, func(ctx context.Context, reg *registration) (CompletionResult, bool, error) {
		res, err := l.ext.ProvideCompletionItems(ctx, reg.handle, uri, pos, cc)
		if err != nil || res == nil {
			return CompletionResult{}, false, err
		}
		return CompletionResult{Handle: reg.handle, SupportsResolve: reg.supportsResolve, SuggestResult: *res}, true, nil
	})
}

// ResolveCompletionItem enriches a suggestion. The suggestion is returned
// unchanged when the provider cannot resolve or no longer has it cached.
func (l *LanguageFeatures) ResolveCompletionItem(ctx context.Context, handle int, uri string, pos protocol.Position, s protocol.Suggestion) (protocol.Suggestion, error) {
	reg, err := l.registration(handle, FeatureCompletion)
	if err != nil {
		return s, err
	}
	if !reg.supportsResolve || s.CacheID == nil {
		return s, nil
	}
	resolved, err := l.ext.ResolveCompletionItem(ctx, handle, uri, pos, *s.CacheID)
	if err != nil {
		return s, err
	}
	if resolved == nil {
		return s, nil
	}
	return *resolved, nil
}

// ReleaseCompletionItems frees the provider side cache of a result.
func (l *LanguageFeatures) ReleaseCompletionItems(ctx context.Context, r CompletionResult) error {
	if r.CacheID == 0 {
		return nil
	}
	return l.ext.ReleaseCompletionItems(ctx, r.Handle, r.CacheID)
}

func (l *LanguageFeatures) locations(ctx context.Context, f Feature, uri string, call func(context.Context, int) ([]protocol.Location, error)) ([]protocol.Location, error) {
	regs, err := l.candidates(uri, f)
	if err != nil {
		return nil, err
	}
	lists, err := fanOut(ctx, l, f, regs, func(ctx context.Context, reg *registration) ([]protocol.Location, bool, error) {
		locs, err := call(ctx, reg.handle)
		return locs, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return concat(lists), nil
}

// ProvideDefinition returns the definitions of every matching provider.
func (l *LanguageFeatures) ProvideDefinition(ctx context.Context, uri string, pos protocol.Position) ([]protocol.Location, error) {
	return l.locations(ctx, FeatureDefinition, uri, func(ctx context.Context, handle int) ([]protocol.Location, error) {
		return l.ext.ProvideDefinition(ctx, handle, uri, pos)
	})
}

// ProvideTypeDefinition returns the type definitions of every matching provider.
func (l *LanguageFeatures) ProvideTypeDefinition(ctx context.Context, uri string, pos protocol.Position) ([]protocol.Location, error) {
	return l.locations(ctx, FeatureTypeDefinition, uri, func(ctx context.Context, handle int) ([]protocol.Location, error) {
		return l.ext.ProvideTypeDefinition(ctx, handle, uri, pos)
	})
}

// ProvideReferences returns the references of every matching provider.
func (l *LanguageFeatures) ProvideReferences(ctx context.Context, uri string, pos protocol.Position, rc protocol.ReferenceContext) ([]protocol.Location, error) {
	return l.locations(ctx, FeatureReferences, uri, func(ctx context.Context, handle int) ([]protocol.Location, error) {
		return l.ext.ProvideReferences(ctx, handle, uri, pos, rc)
	})
}

// CodeLensResult is the answer of one code lens provider.
type CodeLensResult struct {
	Handle int
	protocol.CodeLensList
}

// ProvideCodeLenses asks every matching provider for lenses.
func (l *LanguageFeatures) ProvideCodeLenses(ctx context.Context, uri string) ([]CodeLensResult, error) {
	regs, err := l.candidates(uri, FeatureCodeLens)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, l, FeatureCodeLens, regs, func(ctx context.Context, reg *registration) (CodeLensResult, bool, error) {
		list, err := l.ext.ProvideCodeLenses(ctx, reg.handle, uri)
		if err != nil || list == nil {
			return CodeLensResult{}, false, err
		}
		return CodeLensResult{Handle: reg.handle, CodeLensList: *list}, true, nil
	})
}

// ResolveCodeLens fills in the command of a lens. Resolved lenses and lenses
// the provider no longer knows are returned unchanged.
func (l *LanguageFeatures) ResolveCodeLens(ctx context.Context, handle int, uri string, lens protocol.CodeLens) (protocol.CodeLens, error) {
	if lens.Command != nil {
		return lens, nil
	}
	if _, err := l.registration(handle, FeatureCodeLens); err != nil {
		return lens, err
	}
	resolved, err := l.ext.ResolveCodeLens(ctx, handle, uri, lens)
	if err != nil {
		return lens, err
	}
	if resolved == nil {
		return lens, nil
	}
	return *resolved, nil
}

// ReleaseCodeLenses frees the provider side cache of a result.
func (l *LanguageFeatures) ReleaseCodeLenses(ctx context.Context, r CodeLensResult) error {
	if r.CacheID == 0 {
		return nil
	}
	return l.ext.ReleaseCodeLenses(ctx, r.Handle, r.CacheID)
}

// ProvideFoldingRanges merges the ranges of every matching provider, sorted
// by start line.
func (l *LanguageFeatures) ProvideFoldingRanges(ctx context.Context, uri string) ([]protocol.FoldingRange, error) {
	regs, err := l.candidates(uri, FeatureFolding)
	if err != nil {
		return nil, err
	}
	lists, err := fanOut(ctx, l, FeatureFolding, regs, func(ctx context.Context, reg *registration) ([]protocol.FoldingRange, bool, error) {
		ranges, err := l.ext.ProvideFoldingRanges(ctx, reg.handle, uri, protocol.FoldingContext{})
		return ranges, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	ranges := concat(lists)
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	return ranges, nil
}

// ProvideDocumentHighlights returns the highlights of the best provider that
// has any.
func (l *LanguageFeatures) ProvideDocumentHighlights(ctx context.Context, uri string, pos protocol.Position) ([]protocol.DocumentHighlight, error) {
	regs, err := l.candidates(uri, FeatureHighlight)
	if err != nil {
		return nil, err
	}
	return first(ctx, l, FeatureHighlight, regs, func(ctx context.Context, reg *registration) ([]protocol.DocumentHighlight, error) {
		return l.ext.ProvideDocumentHighlights(ctx, reg.handle, uri, pos)
	})
}

// ColorResult is a color found by one provider.
type ColorResult struct {
	Handle int
	protocol.ColorInformation
}

// ProvideDocumentColors returns the colors of every matching provider.
func (l *LanguageFeatures) ProvideDocumentColors(ctx context.Context, uri string) ([]ColorResult, error) {
	regs, err := l.candidates(uri, FeatureColor)
	if err != nil {
		return nil, err
	}
	lists, err := fanOut(ctx, l, FeatureColor, regs, func(ctx context.Context, reg *registration) ([]ColorResult, bool, error) {
		infos, err := l.ext.ProvideDocumentColors(ctx, reg.handle, uri)
		if err != nil {
			return nil, false, err
		}
		out := make([]ColorResult, len(infos))
		for i, info := range infos {
			out[i] = ColorResult{Handle: reg.handle, ColorInformation: info}
		}
		return out, true, nil
	})
	if err != nil {
		return nil, err
	}
	return concat(lists), nil
}

// ProvideColorPresentations asks the provider that found a color how it can
// be written.
func (l *LanguageFeatures) ProvideColorPresentations(ctx context.Context, uri string, c ColorResult) ([]protocol.ColorPresentation, error) {
	if _, err := l.registration(c.Handle, FeatureColor); err != nil {
		return nil, err
	}
	return l.ext.ProvideColorPresentations(ctx, c.Handle, uri, c.ColorInformation)
}

// LinkResult is the answer of one link provider.
type LinkResult struct {
	Handle          int
	SupportsResolve bool
	protocol.LinksList
}

// ProvideDocumentLinks asks every matching provider for links.
func (l *LanguageFeatures) ProvideDocumentLinks(ctx context.Context, uri string) ([]LinkResult, error) {
	regs, err := l.candidates(uri, FeatureLinks)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, l, FeatureLinks, regs, func(ctx context.Context, reg *registration) (LinkResult, bool, error) {
		list, err := l.ext.ProvideDocumentLinks(ctx, reg.handle, uri)
		if err != nil || list == nil {
			return LinkResult{}, false, err
		}
		return LinkResult{Handle: reg.handle, SupportsResolve: reg.supportsResolve, LinksList: *list}, true, nil
	})
}

// ResolveDocumentLink fills in the target of a link. The link is returned
// unchanged when it has a target, or the provider cannot resolve it.
func (l *LanguageFeatures) ResolveDocumentLink(ctx context.Context, handle int, link protocol.Link) (protocol.Link, error) {
	reg, err := l.registration(handle, FeatureLinks)
	if err != nil {
		return link, err
	}
	if link.URL != "" || !reg.supportsResolve || link.CacheID == nil {
		return link, nil
	}
	resolved, err := l.ext.ResolveDocumentLink(ctx, handle, *link.CacheID)
	if err != nil {
		return link, err
	}
	if resolved == nil {
		return link, nil
	}
	return *resolved, nil
}

// ReleaseDocumentLinks frees the provider side cache of a result.
func (l *LanguageFeatures) ReleaseDocumentLinks(ctx context.Context, r LinkResult) error {
	if r.CacheID == 0 {
		return nil
	}
	return l.ext.ReleaseDocumentLinks(ctx, r.Handle, r.CacheID)
}

// ProvideOnTypeFormattingEdits asks the best provider declaring ch.
func (l *LanguageFeatures) ProvideOnTypeFormattingEdits(ctx context.Context, uri string, pos protocol.Position, ch string, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	regs, err := l.candidates(uri, FeatureOnTypeFormatting)
	if err != nil {
		return nil, err
	}
	regs = slices.DeleteFunc(regs, func(r *registration) bool { return !slices.Contains(r.triggerCharacters, ch) })
	return first(ctx, l, FeatureOnTypeFormatting, regs, func(ctx context.Context, reg *registration) ([]protocol.TextEdit, error) {
		return l.ext.ProvideOnTypeFormattingEdits(ctx, reg.handle, uri, pos, ch, options)
	})
}

// ProvideDocumentRangeFormattingEdits asks the best range formatter.
func (l *LanguageFeatures) ProvideDocumentRangeFormattingEdits(ctx context.Context, uri string, rng protocol.Range, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	regs, err := l.candidates(uri, FeatureRangeFormatting)
	if err != nil {
		return nil, err
	}
	return first(ctx, l, FeatureRangeFormatting, regs, func(ctx context.Context, reg *registration) ([]protocol.TextEdit, error) {
		return l.ext.ProvideDocumentRangeFormattingEdits(ctx, reg.handle, uri, rng, options)
	})
}

// ProvideDocumentFormattingEdits asks the best document formatter, falling
// back to formatting the whole document with a range formatter.
func (l *LanguageFeatures) ProvideDocumentFormattingEdits(ctx context.Context, uri string, options protocol.FormattingOptions) ([]protocol.TextEdit, error) {
	regs, err := l.candidates(uri, FeatureFormatting)
	if err != nil {
		return nil, err
	}
	if len(regs) > 0 {
		return first(ctx, l, FeatureFormatting, regs, func(ctx context.Context, reg *registration) ([]protocol.TextEdit, error) {
			return l.ext.ProvideDocumentFormattingEdits(ctx, reg.handle, uri, options)
		})
	}

	whole, ok := l.s.Models.fullRange(uri)
	if !ok {
		return nil, fmt.Errorf("%w: document %s", rpc.ErrNotFound, uri)
	}
	return l.ProvideDocumentRangeFormattingEdits(ctx, uri, whole, options)
}
