package exthost

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/exthost/typeconvert"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/handle"
	"github.com/shopware/exthost/internal/protocol"
)

// QuickPickItem is one entry of a quick pick.
type QuickPickItem struct {
	Label       string
	Description string
	Detail      string
}

// ShowOptions control where a document is shown.
type ShowOptions struct {
	ViewColumn    types.ViewColumn
	PreserveFocus bool
	Selection     *types.Range
}

// Window shows messages, pickers, status bar items and editors.
type Window struct {
	logger    *zap.Logger
	editors   *Editors
	messages  protocol.MessageServiceProxy
	quickOpen protocol.QuickOpenProxy
	statusBar protocol.StatusBarProxy
	items     *handle.Arena[*StatusBarItem]
}

func newWindow(s *Session) *Window {
	return &Window{
		logger:    s.logger.Named("window"),
		editors:   s.Editors,
		messages:  protocol.NewMessageServiceProxy(s.proto),
		quickOpen: protocol.NewQuickOpenProxy(s.proto),
		statusBar: protocol.NewStatusBarProxy(s.proto),
		items:     handle.New[*StatusBarItem](),
	}
}

// ActiveTextEditor returns the focused editor, or nil.
func (w *Window) ActiveTextEditor() *TextEditor { return w.editors.Active() }

// VisibleTextEditors returns the mirrored editors.
func (w *Window) VisibleTextEditors() []*TextEditor { return w.editors.Visible() }

// ShowInformationMessage shows message and returns the chosen action, or ""
// when it was dismissed.
func (w *Window) ShowInformationMessage(ctx context.Context, message string, actions ...string) (string, error) {
	return w.showMessage(ctx, protocol.SeverityInfo, message, actions)
}

// ShowWarningMessage is ShowInformationMessage for warnings.
func (w *Window) ShowWarningMessage(ctx context.Context, message string, actions ...string) (string, error) {
	return w.showMessage(ctx, protocol.SeverityWarning, message, actions)
}

// ShowErrorMessage is ShowInformationMessage for errors.
func (w *Window) ShowErrorMessage(ctx context.Context, message string, actions ...string) (string, error) {
	return w.showMessage(ctx, protocol.SeverityError, message, actions)
}

func (w *Window) showMessage(ctx context.Context, severity int, message string, actions []string) (string, error) {
	chosen, err := w.messages.ShowMessage(ctx, severity, message, protocol.MessageOptions{}, actions)
	if err != nil || chosen == nil || *chosen < 0 || *chosen >= len(actions) {
		return "", err
	}
	return actions[*chosen], nil
}

// ShowQuickPick lets the user pick from items. Nothing picked yields an
// empty slice.
func (w *Window) ShowQuickPick(ctx context.Context, items []QuickPickItem, options protocol.QuickPickOptions) ([]QuickPickItem, error) {
	wire := make([]protocol.QuickPickItem, len(items))
	for i, item := range items {
		wire[i] = protocol.QuickPickItem{Handle: i, Label: item.Label, Description: item.Description, Detail: item.Detail}
	}
	picked, err := w.quickOpen.Show(ctx, wire, options)
	if err != nil {
		return nil, err
	}
	out := make([]QuickPickItem, 0, len(picked))
	for _, h := range picked {
		if h >= 0 && h < len(items) {
			out = append(out, items[h])
		}
	}
	return out, nil
}

// ShowTextDocument shows doc and returns its editor once it is mirrored.
func (w *Window) ShowTextDocument(ctx context.Context, doc *Document, options ShowOptions) (*TextEditor, error) {
	opts := protocol.ShowTextDocumentOptions{
		ViewColumn:    typeconvert.FromViewColumn(options.ViewColumn),
		PreserveFocus: options.PreserveFocus,
	}
	if options.Selection != nil {
		r := typeconvert.FromRange(*options.Selection)
		opts.Selection = &r
	}
	return w.editors.showDocument(ctx, doc.URI(), opts)
}

// CreateTextEditorDecorationType registers a decoration style.
func (w *Window) CreateTextEditorDecorationType(ctx context.Context, options protocol.DecorationRenderOptions) (*TextEditorDecorationType, error) {
	return w.editors.createDecorationType(ctx, options)
}

// CreateStatusBarItem creates a hidden status bar item.
func (w *Window) CreateStatusBarItem(alignment, priority int) (*StatusBarItem, error) {
	item := &StatusBarItem{window: w, alignment: alignment, priority: priority}
	h, err := w.items.Alloc(item)
	if err != nil {
		return nil, err
	}
	item.id = h
	return item, nil
}

// StatusBarItem is an entry of the status bar. Changes to its fields take
// effect with the next Show.
type StatusBarItem struct {
	Text    string
	Tooltip string
	Command string
	Color   string

	window    *Window
	id        handle.Handle
	alignment int
	priority  int

	mu       sync.Mutex
	visible  bool
	disposed bool
}

// ID returns the id the main side knows the item by.
func (i *StatusBarItem) ID() int { return int(i.id) }

// Show displays the item or updates it when shown.
func (i *StatusBarItem) Show(ctx context.Context) error {
	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return nil
	}
	entry := protocol.StatusBarEntry{
		ID:        int(i.id),
		Text:      i.Text,
		Tooltip:   i.Tooltip,
		Command:   i.Command,
		Color:     i.Color,
		Alignment: i.alignment,
		Priority:  i.priority,
	}
	i.mu.Unlock()

	if err := i.window.statusBar.SetEntry(ctx, entry); err != nil {
		return err
	}
	i.mu.Lock()
	i.visible = true
	i.mu.Unlock()
	return nil
}

// Hide removes the item from the status bar. It can be shown again.
func (i *StatusBarItem) Hide(ctx context.Context) error {
	i.mu.Lock()
	visible := i.visible
	i.visible = false
	i.mu.Unlock()
	if !visible {
		return nil
	}
	return i.window.statusBar.Dispose(ctx, int(i.id))
}

// Dispose hides the item and releases it.
func (i *StatusBarItem) Dispose(ctx context.Context) error {
	err := i.Hide(ctx)
	i.mu.Lock()
	if !i.disposed {
		i.disposed = true
		_, _ = i.window.items.Release(i.id)
	}
	i.mu.Unlock()
	return err
}
