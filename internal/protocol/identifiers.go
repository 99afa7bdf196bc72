package protocol

import "github.com/shopware/exthost/internal/rpc"

var (
	// MainContext holds the identifiers implemented by the main side.
	MainContext = rpc.NewNamespace(rpc.SideMain)
	// ExtHostContext holds the identifiers implemented by the extension side.
	ExtHostContext = rpc.NewNamespace(rpc.SideExtension)
)

// Main side identifiers.
var (
	MainThreadCommands = MainContext.Declare("MainThreadCommands",
		rpc.Request("$registerCommand"),
		rpc.Request("$unregisterCommand"),
		rpc.Request("$executeCommand"),
		rpc.Request("$getCommands"),
	)

	MainThreadExtensionService = MainContext.Declare("MainThreadExtensionService",
		rpc.Request("$onExtensionHostReady"),
	)

	MainThreadDocuments = MainContext.Declare("MainThreadDocuments",
		rpc.Request("$tryCreateDocument"),
		rpc.Request("$tryOpenDocument"),
		rpc.Request("$trySaveDocument"),
	)

	MainThreadDocumentsAndEditors = MainContext.Declare("MainThreadDocumentsAndEditors",
		rpc.Request("$getInitialState"),
	)

	MainThreadEditors = MainContext.Declare("MainThreadEditors",
		rpc.Request("$tryShowTextDocument"),
		rpc.Request("$trySetSelections"),
		rpc.Request("$tryRevealRange"),
		rpc.Request("$trySetOptions"),
		rpc.Request("$tryApplyEdits"),
		rpc.Request("$registerTextEditorDecorationType"),
		rpc.Request("$removeTextEditorDecorationType"),
		rpc.Request("$trySetDecorations"),
	)

	MainThreadLanguageFeatures = MainContext.Declare("MainThreadLanguageFeatures",
		rpc.Request("$unregister"),
		rpc.Request("$registerHoverProvider"),
		rpc.Request("$registerCompletionSupport"),
		rpc.Request("$registerDefinitionSupport"),
		rpc.Request("$registerTypeDefinitionSupport"),
		rpc.Request("$registerReferenceSupport"),
		rpc.Request("$registerCodeLensSupport"),
		rpc.Event("$emitCodeLensEvent"),
		rpc.Request("$registerFoldingRangeProvider"),
		rpc.Request("$registerDocumentHighlightProvider"),
		rpc.Request("$registerDocumentColorProvider"),
		rpc.Request("$registerDocumentLinkProvider"),
		rpc.Request("$registerOnTypeFormattingSupport"),
		rpc.Request("$registerRangeFormattingSupport"),
		rpc.Request("$registerDocumentFormattingSupport"),
	)

	MainThreadStatusBar = MainContext.Declare("MainThreadStatusBar",
		rpc.Request("$setEntry"),
		rpc.Request("$dispose"),
	)

	MainThreadMessageService = MainContext.Declare("MainThreadMessageService",
		rpc.Request("$showMessage"),
	)

	MainThreadQuickOpen = MainContext.Declare("MainThreadQuickOpen",
		rpc.Request("$show"),
	)

	MainThreadStorage = MainContext.Declare("MainThreadStorage",
		rpc.Request("$getValue"),
		rpc.Request("$setValue"),
	)

	MainThreadConfiguration = MainContext.Declare("MainThreadConfiguration",
		rpc.Request("$getConfiguration"),
		rpc.Request("$updateConfigurationOption"),
		rpc.Request("$removeConfigurationOption"),
	)

	MainThreadFileSystemEventService = MainContext.Declare("MainThreadFileSystemEventService",
		rpc.Request("$watch"),
		rpc.Request("$unwatch"),
	)
)

// Extension side identifiers.
var (
	ExtHostCommands = ExtHostContext.Declare("ExtHostCommands",
		rpc.Request("$executeContributedCommand"),
		rpc.Request("$getContributedCommandHandlerDescriptions"),
	)

	ExtHostDocumentsAndEditors = ExtHostContext.Declare("ExtHostDocumentsAndEditors",
		rpc.Event("$acceptDocumentsAndEditorsDelta"),
	)

	ExtHostDocuments = ExtHostContext.Declare("ExtHostDocuments",
		rpc.Event("$acceptModelModeChanged"),
		rpc.Event("$acceptModelSaved"),
		rpc.Event("$acceptDirtyStateChanged"),
		rpc.Event("$acceptModelChanged"),
	)

	ExtHostEditors = ExtHostContext.Declare("ExtHostEditors",
		rpc.Event("$acceptEditorPropertiesChanged"),
		rpc.Event("$acceptEditorPositionData"),
	)

	ExtHostLanguageFeatures = ExtHostContext.Declare("ExtHostLanguageFeatures",
		rpc.Request("$provideHover"),
		rpc.Request("$provideCompletionItems"),
		rpc.Request("$resolveCompletionItem"),
		rpc.Event("$releaseCompletionItems"),
		rpc.Request("$provideDefinition"),
		rpc.Request("$provideTypeDefinition"),
		rpc.Request("$provideReferences"),
		rpc.Request("$provideCodeLenses"),
		rpc.Request("$resolveCodeLens"),
		rpc.Event("$releaseCodeLenses"),
		rpc.Request("$provideFoldingRanges"),
		rpc.Request("$provideDocumentHighlights"),
		rpc.Request("$provideDocumentColors"),
		rpc.Request("$provideColorPresentations"),
		rpc.Request("$provideDocumentLinks"),
		rpc.Request("$resolveDocumentLink"),
		rpc.Event("$releaseDocumentLinks"),
		rpc.Request("$provideOnTypeFormattingEdits"),
		rpc.Request("$provideDocumentRangeFormattingEdits"),
		rpc.Request("$provideDocumentFormattingEdits"),
	)

	ExtHostConfiguration = ExtHostContext.Declare("ExtHostConfiguration",
		rpc.Event("$acceptConfigurationChanged"),
	)

	ExtHostFileSystemEventService = ExtHostContext.Declare("ExtHostFileSystemEventService",
		rpc.Event("$onFileEvent"),
	)
)
