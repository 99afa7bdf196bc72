package protocol

import (
	"context"
	"encoding/json"

	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/selector"
)

// CommandsProxy calls MainThreadCommands.
type CommandsProxy struct{ p *rpc.Proxy }

// NewCommandsProxy returns the MainThreadCommands proxy of p.
func NewCommandsProxy(p *rpc.Protocol) CommandsProxy {
	return CommandsProxy{p.GetProxy(MainThreadCommands)}
}

func (x CommandsProxy) RegisterCommand(ctx context.Context, id string) error {
	return x.p.Call(ctx, "$registerCommand", nil, id)
}

func (x CommandsProxy) UnregisterCommand(ctx context.Context, id string) error {
	return x.p.Call(ctx, "$unregisterCommand", nil, id)
}

func (x CommandsProxy) ExecuteCommand(ctx context.Context, id string, args []json.RawMessage) (json.RawMessage, error) {
	var result json.RawMessage
	err := x.p.Call(ctx, "$executeCommand", &result, id, args)
	return result, err
}

func (x CommandsProxy) GetCommands(ctx context.Context) ([]string, error) {
	var ids []string
	err := x.p.Call(ctx, "$getCommands", &ids)
	return ids, err
}

// ExtensionServiceProxy calls MainThreadExtensionService.
type ExtensionServiceProxy struct{ p *rpc.Proxy }

// NewExtensionServiceProxy returns the MainThreadExtensionService proxy of p.
func NewExtensionServiceProxy(p *rpc.Protocol) ExtensionServiceProxy {
	return ExtensionServiceProxy{p.GetProxy(MainThreadExtensionService)}
}

func (x ExtensionServiceProxy) OnExtensionHostReady(ctx context.Context) error {
	return x.p.Call(ctx, "$onExtensionHostReady", nil)
}

// DocumentsProxy calls MainThreadDocuments.
type DocumentsProxy struct{ p *rpc.Proxy }

// NewDocumentsProxy returns the MainThreadDocuments proxy of p.
func NewDocumentsProxy(p *rpc.Protocol) DocumentsProxy {
	return DocumentsProxy{p.GetProxy(MainThreadDocuments)}
}

func (x DocumentsProxy) TryCreateDocument(ctx context.Context, options CreateDocumentOptions) (string, error) {
	var uri string
	err := x.p.Call(ctx, "$tryCreateDocument", &uri, options)
	return uri, err
}

func (x DocumentsProxy) TryOpenDocument(ctx context.Context, uri string) (string, error) {
	var opened string
	err := x.p.Call(ctx, "$tryOpenDocument", &opened, uri)
	return opened, err
}

func (x DocumentsProxy) TrySaveDocument(ctx context.Context, uri string) (bool, error) {
	var saved bool
	err := x.p.Call(ctx, "$trySaveDocument", &saved, uri)
	return saved, err
}

// DocumentsAndEditorsProxy calls MainThreadDocumentsAndEditors.
type DocumentsAndEditorsProxy struct{ p *rpc.Proxy }

// NewDocumentsAndEditorsProxy returns the MainThreadDocumentsAndEditors proxy of p.
func NewDocumentsAndEditorsProxy(p *rpc.Protocol) DocumentsAndEditorsProxy {
	return DocumentsAndEditorsProxy{p.GetProxy(MainThreadDocumentsAndEditors)}
}

func (x DocumentsAndEditorsProxy) GetInitialState(ctx context.Context) (DocumentsAndEditorsDelta, error) {
	var delta DocumentsAndEditorsDelta
	err := x.p.Call(ctx, "$getInitialState", &delta)
	return delta, err
}

// EditorsProxy calls MainThreadEditors.
type EditorsProxy struct{ p *rpc.Proxy }

// NewEditorsProxy returns the MainThreadEditors proxy of p.
func NewEditorsProxy(p *rpc.Protocol) EditorsProxy {
	return EditorsProxy{p.GetProxy(MainThreadEditors)}
}

func (x EditorsProxy) TryShowTextDocument(ctx context.Context, uri string, options ShowTextDocumentOptions) (string, error) {
	var id string
	err := x.p.Call(ctx, "$tryShowTextDocument", &id, uri, options)
	return id, err
}

func (x EditorsProxy) TrySetSelections(ctx context.Context, id string, selections []Selection) error {
	return x.p.Call(ctx, "$trySetSelections", nil, id, selections)
}

func (x EditorsProxy) TryRevealRange(ctx context.Context, id string, rng Range, revealType int) error {
	return x.p.Call(ctx, "$tryRevealRange", nil, id, rng, revealType)
}

func (x EditorsProxy) TrySetOptions(ctx context.Context, id string, options TextEditorOptionsUpdate) error {
	return x.p.Call(ctx, "$trySetOptions", nil, id, options)
}

func (x EditorsProxy) TryApplyEdits(ctx context.Context, id string, versionID int, edits []SingleEditOperation, opts ApplyEditsOptions) (bool, error) {
	var applied bool
	err := x.p.Call(ctx, "$tryApplyEdits", &applied, id, versionID, edits, opts)
	return applied, err
}

func (x EditorsProxy) RegisterTextEditorDecorationType(ctx context.Context, key int, options DecorationRenderOptions) error {
	return x.p.Call(ctx, "$registerTextEditorDecorationType", nil, key, options)
}

func (x EditorsProxy) RemoveTextEditorDecorationType(ctx context.Context, key int) error {
	return x.p.Call(ctx, "$removeTextEditorDecorationType", nil, key)
}

func (x EditorsProxy) TrySetDecorations(ctx context.Context, id string, key int, decorations []DecorationOptions) error {
	return x.p.Call(ctx, "$trySetDecorations", nil, id, key, decorations)
}

// LanguageFeaturesProxy calls MainThreadLanguageFeatures.
type LanguageFeaturesProxy struct{ p *rpc.Proxy }

// NewLanguageFeaturesProxy returns the MainThreadLanguageFeatures proxy of p.
func NewLanguageFeaturesProxy(p *rpc.Protocol) LanguageFeaturesProxy {
	return LanguageFeaturesProxy{p.GetProxy(MainThreadLanguageFeatures)}
}

func (x LanguageFeaturesProxy) Unregister(ctx context.Context, handle int) error {
	return x.p.Call(ctx, "$unregister", nil, handle)
}

// Register announces a provider registered with only a selector, such as
// hover or definition providers. method is the $register method of the
// feature.
func (x LanguageFeaturesProxy) Register(ctx context.Context, method string, handle int, sel selector.Selector) error {
	return x.p.Call(ctx, method, nil, handle, sel)
}

func (x LanguageFeaturesProxy) RegisterCompletionSupport(ctx context.Context, handle int, sel selector.Selector, triggerCharacters []string, supportsResolve bool) error {
	return x.p.Call(ctx, "$registerCompletionSupport", nil, handle, sel, triggerCharacters, supportsResolve)
}

// RegisterCodeLensSupport announces a code lens provider. eventHandle is set
// when the provider can signal that its lenses changed.
func (x LanguageFeaturesProxy) RegisterCodeLensSupport(ctx context.Context, handle int, sel selector.Selector, eventHandle *int) error {
	return x.p.Call(ctx, "$registerCodeLensSupport", nil, handle, sel, eventHandle)
}

func (x LanguageFeaturesProxy) EmitCodeLensEvent(ctx context.Context, eventHandle int) error {
	return x.p.Notify(ctx, "$emitCodeLensEvent", eventHandle)
}

func (x LanguageFeaturesProxy) RegisterDocumentLinkProvider(ctx context.Context, handle int, sel selector.Selector, supportsResolve bool) error {
	return x.p.Call(ctx, "$registerDocumentLinkProvider", nil, handle, sel, supportsResolve)
}

func (x LanguageFeaturesProxy) RegisterOnTypeFormattingSupport(ctx context.Context, handle int, sel selector.Selector, triggerCharacters []string) error {
	return x.p.Call(ctx, "$registerOnTypeFormattingSupport", nil, handle, sel, triggerCharacters)
}

// StatusBarProxy calls MainThreadStatusBar.
type StatusBarProxy struct{ p *rpc.Proxy }

// NewStatusBarProxy returns the MainThreadStatusBar proxy of p.
func NewStatusBarProxy(p *rpc.Protocol) StatusBarProxy {
	return StatusBarProxy{p.GetProxy(MainThreadStatusBar)}
}

func (x StatusBarProxy) SetEntry(ctx context.Context, entry StatusBarEntry) error {
	return x.p.Call(ctx, "$setEntry", nil, entry)
}

func (x StatusBarProxy) Dispose(ctx context.Context, id int) error {
	return x.p.Call(ctx, "$dispose", nil, id)
}

// MessageServiceProxy calls MainThreadMessageService.
type MessageServiceProxy struct{ p *rpc.Proxy }

// NewMessageServiceProxy returns the MainThreadMessageService proxy of p.
func NewMessageServiceProxy(p *rpc.Protocol) MessageServiceProxy {
	return MessageServiceProxy{p.GetProxy(MainThreadMessageService)}
}

// ShowMessage returns the index of the chosen action, or nil when the
// message was dismissed.
func (x MessageServiceProxy) ShowMessage(ctx context.Context, severity int, message string, options MessageOptions, actions []string) (*int, error) {
	var chosen *int
	err := x.p.Call(ctx, "$showMessage", &chosen, severity, message, options, actions)
	return chosen, err
}

// QuickOpenProxy calls MainThreadQuickOpen.
type QuickOpenProxy struct{ p *rpc.Proxy }

// NewQuickOpenProxy returns the MainThreadQuickOpen proxy of p.
func NewQuickOpenProxy(p *rpc.Protocol) QuickOpenProxy {
	return QuickOpenProxy{p.GetProxy(MainThreadQuickOpen)}
}

// Show returns the handles of the picked items.
func (x QuickOpenProxy) Show(ctx context.Context, items []QuickPickItem, options QuickPickOptions) ([]int, error) {
	var picked []int
	err := x.p.Call(ctx, "$show", &picked, items, options)
	return picked, err
}

// StorageProxy calls MainThreadStorage.
type StorageProxy struct{ p *rpc.Proxy }

// NewStorageProxy returns the MainThreadStorage proxy of p.
func NewStorageProxy(p *rpc.Protocol) StorageProxy {
	return StorageProxy{p.GetProxy(MainThreadStorage)}
}

// GetValue returns nil when key is not set.
func (x StorageProxy) GetValue(ctx context.Context, shared bool, key string) (json.RawMessage, error) {
	var value json.RawMessage
	err := x.p.Call(ctx, "$getValue", &value, shared, key)
	return value, err
}

func (x StorageProxy) SetValue(ctx context.Context, shared bool, key string, value json.RawMessage) error {
	return x.p.Call(ctx, "$setValue", nil, shared, key, value)
}

// ConfigurationProxy calls MainThreadConfiguration.
type ConfigurationProxy struct{ p *rpc.Proxy }

// NewConfigurationProxy returns the MainThreadConfiguration proxy of p.
func NewConfigurationProxy(p *rpc.Protocol) ConfigurationProxy {
	return ConfigurationProxy{p.GetProxy(MainThreadConfiguration)}
}

func (x ConfigurationProxy) GetConfiguration(ctx context.Context) (ConfigurationData, error) {
	var data ConfigurationData
	err := x.p.Call(ctx, "$getConfiguration", &data)
	return data, err
}

func (x ConfigurationProxy) UpdateConfigurationOption(ctx context.Context, target int, key string, value json.RawMessage) error {
	return x.p.Call(ctx, "$updateConfigurationOption", nil, target, key, value)
}

func (x ConfigurationProxy) RemoveConfigurationOption(ctx context.Context, target int, key string) error {
	return x.p.Call(ctx, "$removeConfigurationOption", nil, target, key)
}

// FileSystemEventServiceProxy calls MainThreadFileSystemEventService.
type FileSystemEventServiceProxy struct{ p *rpc.Proxy }

// NewFileSystemEventServiceProxy returns the MainThreadFileSystemEventService proxy of p.
func NewFileSystemEventServiceProxy(p *rpc.Protocol) FileSystemEventServiceProxy {
	return FileSystemEventServiceProxy{p.GetProxy(MainThreadFileSystemEventService)}
}

func (x FileSystemEventServiceProxy) Watch(ctx context.Context, handle int, options WatchOptions) error {
	return x.p.Call(ctx, "$watch", nil, handle, options)
}

func (x FileSystemEventServiceProxy) Unwatch(ctx context.Context, handle int) error {
	return x.p.Call(ctx, "$unwatch", nil, handle)
}
