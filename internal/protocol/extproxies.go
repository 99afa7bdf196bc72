package protocol

import (
	"context"
	"encoding/json"

	"github.com/shopware/exthost/internal/rpc"
)

// ExtCommandsProxy calls ExtHostCommands.
type ExtCommandsProxy struct{ p *rpc.Proxy }

// NewExtCommandsProxy returns the ExtHostCommands proxy of p.
func NewExtCommandsProxy(p *rpc.Protocol) ExtCommandsProxy {
	return ExtCommandsProxy{p.GetProxy(ExtHostCommands)}
}

func (x ExtCommandsProxy) ExecuteContributedCommand(ctx context.Context, id string, args []json.RawMessage) (json.RawMessage, error) {
	var result json.RawMessage
	err := x.p.Call(ctx, "$executeContributedCommand", &result, id, args)
	return result, err
}

func (x ExtCommandsProxy) GetContributedCommandHandlerDescriptions(ctx context.Context) (map[string]CommandHandlerDescription, error) {
	var descriptions map[string]CommandHandlerDescription
	err := x.p.Call(ctx, "$getContributedCommandHandlerDescriptions", &descriptions)
	return descriptions, err
}

// ExtDocumentsAndEditorsProxy calls ExtHostDocumentsAndEditors.
type ExtDocumentsAndEditorsProxy struct{ p *rpc.Proxy }

// NewExtDocumentsAndEditorsProxy returns the ExtHostDocumentsAndEditors proxy of p.
func NewExtDocumentsAndEditorsProxy(p *rpc.Protocol) ExtDocumentsAndEditorsProxy {
	return ExtDocumentsAndEditorsProxy{p.GetProxy(ExtHostDocumentsAndEditors)}
}

func (x ExtDocumentsAndEditorsProxy) AcceptDocumentsAndEditorsDelta(ctx context.Context, delta DocumentsAndEditorsDelta) error {
	return x.p.Notify(ctx, "$acceptDocumentsAndEditorsDelta", delta)
}

// ExtDocumentsProxy calls ExtHostDocuments.
type ExtDocumentsProxy struct{ p *rpc.Proxy }

// NewExtDocumentsProxy returns the ExtHostDocuments proxy of p.
func NewExtDocumentsProxy(p *rpc.Protocol) ExtDocumentsProxy {
	return ExtDocumentsProxy{p.GetProxy(ExtHostDocuments)}
}

func (x ExtDocumentsProxy) AcceptModelModeChanged(ctx context.Context, uri, oldLanguageID, newLanguageID string) error {
	return x.p.Notify(ctx, "$acceptModelModeChanged", uri, oldLanguageID, newLanguageID)
}

func (x ExtDocumentsProxy) AcceptModelSaved(ctx context.Context, uri string) error {
	return x.p.Notify(ctx, "$acceptModelSaved", uri)
}

func (x ExtDocumentsProxy) AcceptDirtyStateChanged(ctx context.Context, uri string, isDirty bool) error {
	return x.p.Notify(ctx, "$acceptDirtyStateChanged", uri, isDirty)
}

func (x ExtDocumentsProxy) AcceptModelChanged(ctx context.Context, uri string, event ModelChangedEvent, isDirty bool) error {
	return x.p.Notify(ctx, "$acceptModelChanged", uri, event, isDirty)
}

// ExtEditorsProxy calls ExtHostEditors.
type ExtEditorsProxy struct{ p *rpc.Proxy }

// NewExtEditorsProxy returns the ExtHostEditors proxy of p.
func NewExtEditorsProxy(p *rpc.Protocol) ExtEditorsProxy {
	return ExtEditorsProxy{p.GetProxy(ExtHostEditors)}
}

func (x ExtEditorsProxy) AcceptEditorPropertiesChanged(ctx context.Context, id string, props EditorPropertiesChangeData) error {
	return x.p.Notify(ctx, "$acceptEditorPropertiesChanged", id, props)
}

func (x ExtEditorsProxy) AcceptEditorPositionData(ctx context.Context, data EditorPositionData) error {
	return x.p.Notify(ctx, "$acceptEditorPositionData", data)
}

// ExtLanguageFeaturesProxy calls ExtHostLanguageFeatures.
type ExtLanguageFeaturesProxy struct{ p *rpc.Proxy }

// NewExtLanguageFeaturesProxy returns the ExtHostLanguageFeatures proxy of p.
func NewExtLanguageFeaturesProxy(p *rpc.Protocol) ExtLanguageFeaturesProxy {
	return ExtLanguageFeaturesProxy{p.GetProxy(ExtHostLanguageFeatures)}
}

func (x ExtLanguageFeaturesProxy) ProvideHover(ctx context.Context, handle int, uri string, pos Position) (*Hover, error) {
	var hover *Hover
	err := x.p.Call(ctx, "$provideHover", &hover, handle, uri, pos)
	return hover, err
}

func (x ExtLanguageFeaturesProxy) ProvideCompletionItems(ctx context.Context, handle int, uri string, pos Position, cc CompletionContext) (*SuggestResult, error) {
	var result *SuggestResult
	err := x.p.Call(ctx, "$provideCompletionItems", &result, handle, uri, pos, cc)
	return result, err
}

func (x ExtLanguageFeaturesProxy) ResolveCompletionItem(ctx context.Context, handle int, uri string, pos Position, id CacheID) (*Suggestion, error) {
	var suggestion *Suggestion
	err := x.p.Call(ctx, "$resolveCompletionItem", &suggestion, handle, uri, pos, id)
	return suggestion, err
}

func (x ExtLanguageFeaturesProxy) ReleaseCompletionItems(ctx context.Context, handle, cacheID int) error {
	return x.p.Notify(ctx, "$releaseCompletionItems", handle, cacheID)
}

func (x ExtLanguageFeaturesProxy) ProvideDefinition(ctx context.Context, handle int, uri string, pos Position) ([]Location, error) {
	var locations []Location
	err := x.p.Call(ctx, "$provideDefinition", &locations, handle, uri, pos)
	return locations, err
}

func (x ExtLanguageFeaturesProxy) ProvideTypeDefinition(ctx context.Context, handle int, uri string, pos Position) ([]Location, error) {
	var locations []Location
	err := x.p.Call(ctx, "$provideTypeDefinition", &locations, handle, uri, pos)
	return locations, err
}

func (x ExtLanguageFeaturesProxy) ProvideReferences(ctx context.Context, handle int, uri string, pos Position, rc ReferenceContext) ([]Location, error) {
	var locations []Location
	err := x.p.Call(ctx, "$provideReferences", &locations, handle, uri, pos, rc)
	return locations, err
}

func (x ExtLanguageFeaturesProxy) ProvideCodeLenses(ctx context.Context, handle int, uri string) (*CodeLensList, error) {
	var list *CodeLensList
	err := x.p.Call(ctx, "$provideCodeLenses", &list, handle, uri)
	return list, err
}

func (x ExtLanguageFeaturesProxy) ResolveCodeLens(ctx context.Context, handle int, uri string, lens CodeLens) (*CodeLens, error) {
	var resolved *CodeLens
	err := x.p.Call(ctx, "$resolveCodeLens", &resolved, handle, uri, lens)
	return resolved, err
}

func (x ExtLanguageFeaturesProxy) ReleaseCodeLenses(ctx context.Context, handle, cacheID int) error {
	return x.p.Notify(ctx, "$releaseCodeLenses", handle, cacheID)
}

func (x ExtLanguageFeaturesProxy) ProvideFoldingRanges(ctx context.Context, handle int, uri string, fc FoldingContext) ([]FoldingRange, error) {
	var ranges []FoldingRange
	err := x.p.Call(ctx, "$provideFoldingRanges", &ranges, handle, uri, fc)
	return ranges, err
}

func (x ExtLanguageFeaturesProxy) ProvideDocumentHighlights(ctx context.Context, handle int, uri string, pos Position) ([]DocumentHighlight, error) {
	var highlights []DocumentHighlight
	err := x.p.Call(ctx, "$provideDocumentHighlights", &highlights, handle, uri, pos)
	return highlights, err
}

func (x ExtLanguageFeaturesProxy) ProvideDocumentColors(ctx context.Context, handle int, uri string) ([]ColorInformation, error) {
	var colors []ColorInformation
	err := x.p.Call(ctx, "$provideDocumentColors", &colors, handle, uri)
	return colors, err
}

func (x ExtLanguageFeaturesProxy) ProvideColorPresentations(ctx context.Context, handle int, uri string, info ColorInformation) ([]ColorPresentation, error) {
	var presentations []ColorPresentation
	err := x.p.Call(ctx, "$provideColorPresentations", &presentations, handle, uri, info)
	return presentations, err
}

func (x ExtLanguageFeaturesProxy) ProvideDocumentLinks(ctx context.Context, handle int, uri string) (*LinksList, error) {
	var list *LinksList
	err := x.p.Call(ctx, "$provideDocumentLinks", &list, handle, uri)
	return list, err
}

func (x ExtLanguageFeaturesProxy) ResolveDocumentLink(ctx context.Context, handle int, id CacheID) (*Link, error) {
	var link *Link
	err := x.p.Call(ctx, "$resolveDocumentLink", &link, handle, id)
	return link, err
}

func (x ExtLanguageFeaturesProxy) ReleaseDocumentLinks(ctx context.Context, handle, cacheID int) error {
	return x.p.Notify(ctx, "$releaseDocumentLinks", handle, cacheID)
}

func (x ExtLanguageFeaturesProxy) ProvideOnTypeFormattingEdits(ctx context.Context, handle int, uri string, pos Position, ch string, options FormattingOptions) ([]TextEdit, error) {
	var edits []TextEdit
	err := x.p.Call(ctx, "$provideOnTypeFormattingEdits", &edits, handle, uri, pos, ch, options)
	return edits, err
}

func (x ExtLanguageFeaturesProxy) ProvideDocumentRangeFormattingEdits(ctx context.Context, handle int, uri string, rng Range, options FormattingOptions) ([]TextEdit, error) {
	var edits []TextEdit
	err := x.p.Call(ctx, "$provideDocumentRangeFormattingEdits", &edits, handle, uri, rng, options)
	return edits, err
}

func (x ExtLanguageFeaturesProxy) ProvideDocumentFormattingEdits(ctx context.Context, handle int, uri string, options FormattingOptions) ([]TextEdit, error) {
	var edits []TextEdit
	err := x.p.Call(ctx, "$provideDocumentFormattingEdits", &edits, handle, uri, options)
	return edits, err
}

// ExtConfigurationProxy calls ExtHostConfiguration.
type ExtConfigurationProxy struct{ p *rpc.Proxy }

// NewExtConfigurationProxy returns the ExtHostConfiguration proxy of p.
func NewExtConfigurationProxy(p *rpc.Protocol) ExtConfigurationProxy {
	return ExtConfigurationProxy{p.GetProxy(ExtHostConfiguration)}
}

func (x ExtConfigurationProxy) AcceptConfigurationChanged(ctx context.Context, data ConfigurationData, change ConfigurationChange) error {
	return x.p.Notify(ctx, "$acceptConfigurationChanged", data, change)
}

// ExtFileSystemEventServiceProxy calls ExtHostFileSystemEventService.
type ExtFileSystemEventServiceProxy struct{ p *rpc.Proxy }

// NewExtFileSystemEventServiceProxy returns the ExtHostFileSystemEventService proxy of p.
func NewExtFileSystemEventServiceProxy(p *rpc.Protocol) ExtFileSystemEventServiceProxy {
	return ExtFileSystemEventServiceProxy{p.GetProxy(ExtHostFileSystemEventService)}
}

func (x ExtFileSystemEventServiceProxy) OnFileEvent(ctx context.Context, handle int, events FileSystemEvents) error {
	return x.p.Notify(ctx, "$onFileEvent", handle, events)
}
