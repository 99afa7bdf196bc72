package mainthread

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

// Shell is the UI the main side renders into.
type Shell interface {
	// ShowMessage returns the index of the chosen action, or nil when the
	// message was dismissed.
	ShowMessage(ctx context.Context, severity int, message string, options protocol.MessageOptions, actions []string) (*int, error)
	// ShowQuickPick returns the handles of the picked items.
	ShowQuickPick(ctx context.Context, items []protocol.QuickPickItem, options protocol.QuickPickOptions) ([]int, error)
	SetStatusBarEntry(entry protocol.StatusBarEntry)
	RemoveStatusBarEntry(id int)
	RevealRange(ctx context.Context, editorID string, rng protocol.Range, revealType int) error
}

// Window serves the shell-facing identifiers.
type Window struct {
	shell Shell
}

func newWindow(_ *Session, shell Shell) *Window {
	return &Window{shell: shell}
}

// Shell returns the shell the session renders into.
func (w *Window) Shell() Shell { return w.shell }

func (w *Window) statusBarMethods() rpc.Methods {
	return rpc.Methods{
		"$setEntry": rpc.Action1(func(_ context.Context, entry protocol.StatusBarEntry) error {
			w.shell.SetStatusBarEntry(entry)
			return nil
		}),
		"$dispose": rpc.Action1(func(_ context.Context, id int) error {
			w.shell.RemoveStatusBarEntry(id)
			return nil
		}),
	}
}

func (w *Window) messageMethods() rpc.Methods {
	return rpc.Methods{
		"$showMessage": rpc.Func4(func(ctx context.Context, severity int, message string, options protocol.MessageOptions, actions []string) (*int, error) {
			return w.shell.ShowMessage(ctx, severity, message, options, actions)
		}),
	}
}

func (w *Window) quickOpenMethods() rpc.Methods {
	return rpc.Methods{
		"$show": rpc.Func2(w.shell.ShowQuickPick),
	}
}

// HeadlessShell is a Shell without UI. Messages are logged and dismissed,
// quick picks choose nothing unless Pick is set, status bar entries are
// kept for inspection.
type HeadlessShell struct {
	logger *zap.Logger

	// Pick chooses quick pick items. Nil picks nothing.
	Pick func(items []protocol.QuickPickItem) []int
	// Answer chooses a message action. Nil dismisses every message.
	Answer func(message string, actions []string) *int

	mu      sync.Mutex
	entries map[int]protocol.StatusBarEntry
}

// NewHeadlessShell returns a shell that logs to logger.
func NewHeadlessShell(logger *zap.Logger) *HeadlessShell {
	return &HeadlessShell{logger: logger.Named("shell"), entries: make(map[int]protocol.StatusBarEntry)}
}

func (h *HeadlessShell) ShowMessage(_ context.Context, severity int, message string, _ protocol.MessageOptions, actions []string) (*int, error) {
	switch severity {
	case protocol.SeverityError:
		h.logger.Error(message, zap.Strings("actions", actions))
	case protocol.SeverityWarning:
		h.logger.Warn(message, zap.Strings("actions", actions))
	default:
		h.logger.Info(message, zap.Strings("actions", actions))
	}
	if h.Answer == nil {
		return nil, nil
	}
	return h.Answer(message, actions), nil
}

func (h *HeadlessShell) ShowQuickPick(_ context.Context, items []protocol.QuickPickItem, _ protocol.QuickPickOptions) ([]int, error) {
	if h.Pick == nil {
		return nil, nil
	}
	return h.Pick(items), nil
}

func (h *HeadlessShell) SetStatusBarEntry(entry protocol.StatusBarEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[entry.ID] = entry
}

func (h *HeadlessShell) RemoveStatusBarEntry(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, id)
}

func (h *HeadlessShell) RevealRange(_ context.Context, editorID string, rng protocol.Range, _ int) error {
	h.logger.Debug("reveal range", zap.String("editor", editorID), zap.Int("line", rng.StartLineNumber))
	return nil
}

// StatusBar returns the visible entries ordered by alignment, then by
// descending priority.
func (h *HeadlessShell) StatusBar() []protocol.StatusBarEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]protocol.StatusBarEntry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Alignment != out[j].Alignment {
			return out[i].Alignment < out[j].Alignment
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
