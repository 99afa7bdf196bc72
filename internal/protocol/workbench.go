package protocol

import "encoding/json"

// Message severities.
const (
	SeverityInfo = iota + 1
	SeverityWarning
	SeverityError
)

// MessageOptions control how a message is shown.
type MessageOptions struct {
	Modal bool `json:"modal,omitempty"`
}

// QuickPickItem is one pickable entry. Handle identifies the item in the
// reply.
type QuickPickItem struct {
	Handle      int    `json:"handle"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// QuickPickOptions control a quick pick.
type QuickPickOptions struct {
	Placeholder        string `json:"placeholder,omitempty"`
	CanPickMany        bool   `json:"canPickMany,omitempty"`
	MatchOnDescription bool   `json:"matchOnDescription,omitempty"`
}

// Status bar alignments.
const (
	AlignLeft = iota
	AlignRight
)

// StatusBarEntry is the state of one status bar item.
type StatusBarEntry struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Tooltip   string `json:"tooltip,omitempty"`
	Command   string `json:"command,omitempty"`
	Color     string `json:"color,omitempty"`
	Alignment int    `json:"alignment"`
	Priority  int    `json:"priority"`
}

// Configuration targets.
const (
	TargetUser = iota + 1
	TargetWorkspace
)

// ConfigurationData is the configuration as seen by extensions: defaults
// overlaid by user and then workspace settings.
type ConfigurationData struct {
	Defaults  json.RawMessage `json:"defaults"`
	User      json.RawMessage `json:"user"`
	Workspace json.RawMessage `json:"workspace"`
}

// ConfigurationChange lists the dotted keys whose value changed.
type ConfigurationChange struct {
	Keys []string `json:"keys"`
}

// WatchOptions select which file events a watcher receives.
type WatchOptions struct {
	Pattern      string `json:"pattern"`
	IgnoreCreate bool   `json:"ignoreCreate,omitempty"`
	IgnoreChange bool   `json:"ignoreChange,omitempty"`
	IgnoreDelete bool   `json:"ignoreDelete,omitempty"`
}

// FileSystemEvents is a batch of file changes, as URIs.
type FileSystemEvents struct {
	Created []string `json:"created,omitempty"`
	Changed []string `json:"changed,omitempty"`
	Deleted []string `json:"deleted,omitempty"`
}

// IsEmpty reports whether the batch holds no events.
func (e FileSystemEvents) IsEmpty() bool {
	return len(e.Created) == 0 && len(e.Changed) == 0 && len(e.Deleted) == 0
}
