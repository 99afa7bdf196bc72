package exthost

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/settings"
)

// ConfigurationChangeEvent lists the dotted keys that changed.
type ConfigurationChangeEvent struct {
	Keys []string
}

// AffectsConfiguration reports whether section, or anything below or above
// it, changed.
func (e ConfigurationChangeEvent) AffectsConfiguration(section string) bool {
	for _, k := range e.Keys {
		if k == section || strings.HasPrefix(k, section+".") || strings.HasPrefix(section, k+".") {
			return true
		}
	}
	return false
}

// Configuration mirrors the configuration layers of the main side.
type Configuration struct {
	logger *zap.Logger
	main   protocol.ConfigurationProxy

	mu       sync.RWMutex
	data     protocol.ConfigurationData
	merged   json.RawMessage
	received bool

	OnDidChangeConfiguration event.Emitter[ConfigurationChangeEvent]
}

func newConfiguration(s *Session) *Configuration {
	return &Configuration{
		logger: s.logger.Named("configuration"),
		main:   protocol.NewConfigurationProxy(s.proto),
		merged: json.RawMessage("{}"),
	}
}

func (c *Configuration) methods() rpc.Methods {
	return rpc.Methods{
		"$acceptConfigurationChanged": rpc.Action2(func(_ context.Context, data protocol.ConfigurationData, change protocol.ConfigurationChange) error {
			c.accept(data)
			c.logger.Debug("configuration changed", zap.Strings("keys", change.Keys))
			c.OnDidChangeConfiguration.Fire(ConfigurationChangeEvent{Keys: change.Keys})
			return nil
		}),
	}
}

// init applies the configuration fetched at start. A change event that
// arrived first is newer and wins.
func (c *Configuration) init(data protocol.ConfigurationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.received {
		return
	}
	c.setLocked(data)
}

func (c *Configuration) accept(data protocol.ConfigurationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = true
	c.setLocked(data)
}

func (c *Configuration) setLocked(data protocol.ConfigurationData) {
	c.data = data
	c.merged = settings.Merge(data.Defaults, data.User, data.Workspace)
}

// Get returns the configuration below section. An empty section is the
// whole configuration.
func (c *Configuration) Get(section string) *WorkspaceConfiguration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &WorkspaceConfiguration{
		c:       c,
		section: section,
		merged:  c.merged,
		data:    c.data,
	}
}

// ConfigurationInspect shows the value of a key in every layer.
type ConfigurationInspect struct {
	Key            string
	DefaultValue   gjson.Result
	UserValue      gjson.Result
	WorkspaceValue gjson.Result
}

// WorkspaceConfiguration is a snapshot of one configuration section.
type WorkspaceConfiguration struct {
	c       *Configuration
	section string
	merged  json.RawMessage
	data    protocol.ConfigurationData
}

func (w *WorkspaceConfiguration) key(key string) string {
	switch {
	case w.section == "":
		return key
	case key == "":
		return w.section
	default:
		return w.section + "." + key
	}
}

// Get returns the effective value of key.
func (w *WorkspaceConfiguration) Get(key string) gjson.Result {
	return settings.Section(w.merged, w.key(key))
}

// Has reports whether key has a value in any layer.
func (w *WorkspaceConfiguration) Has(key string) bool {
	return w.Get(key).Exists()
}

// Decode unmarshals the value of key into v. It reports false when key has
// no value.
func (w *WorkspaceConfiguration) Decode(key string, v any) (bool, error) {
	r := w.Get(key)
	if !r.Exists() {
		return false, nil
	}
	if err := json.Unmarshal([]byte(r.Raw), v); err != nil {
		return true, fmt.Errorf("failed to decode configuration %s: %w", w.key(key), err)
	}
	return true, nil
}

// Inspect returns the value of key in each layer.
func (w *WorkspaceConfiguration) Inspect(key string) ConfigurationInspect {
	full := w.key(key)
	return ConfigurationInspect{
		Key:            full,
		DefaultValue:   settings.Section(w.data.Defaults, full),
		UserValue:      settings.Section(w.data.User, full),
		WorkspaceValue: settings.Section(w.data.Workspace, full),
	}
}

// Update writes value at key in target. A nil value removes the key. The
// snapshot is not refreshed; take a new one after the change event.
func (w *WorkspaceConfiguration) Update(ctx context.Context, key string, value any, target int) error {
	full := w.key(key)
	if value == nil {
		return w.c.main.RemoveConfigurationOption(ctx, target, full)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: configuration %s: %v", rpc.ErrInvalidArguments, full, err)
	}
	return w.c.main.UpdateConfigurationOption(ctx, target, full, raw)
}
