package mainthread

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/settings"
)

// Configuration serves the layered settings: defaults, then user settings,
// then workspace settings. Changes are pushed to the extension side with
// the keys that changed.
type Configuration struct {
	s      *Session
	logger *zap.Logger
	ext    protocol.ExtConfigurationProxy

	mu        sync.Mutex
	defaults  json.RawMessage
	user      *settings.File
	workspace *settings.File
}

func newConfiguration(s *Session, defaults json.RawMessage, userPath, workspacePath string) (*Configuration, error) {
	user, err := settings.Open(userPath)
	if err != nil {
		return nil, err
	}
	workspace, err := settings.Open(workspacePath)
	if err != nil {
		return nil, err
	}
	if len(defaults) == 0 {
		defaults = json.RawMessage("{}")
	}
	return &Configuration{
		s:         s,
		logger:    s.logger.Named("configuration"),
		ext:       protocol.NewExtConfigurationProxy(s.proto),
		defaults:  defaults,
		user:      user,
		workspace: workspace,
	}, nil
}

func (c *Configuration) methods() rpc.Methods {
	return rpc.Methods{
		"$getConfiguration": rpc.Func0(func(context.Context) (protocol.ConfigurationData, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.dataLocked(), nil
		}),
		"$updateConfigurationOption": rpc.Action3(c.Update),
		"$removeConfigurationOption": rpc.Action2(c.Remove),
	}
}

// Data returns the three configuration layers.
func (c *Configuration) Data() protocol.ConfigurationData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataLocked()
}

// Merged returns the effective configuration.
func (c *Configuration) Merged() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergedLocked()
}

func (c *Configuration) dataLocked() protocol.ConfigurationData {
	return protocol.ConfigurationData{
		Defaults:  append(json.RawMessage(nil), c.defaults...),
		User:      c.user.Contents(),
		Workspace: c.workspace.Contents(),
	}
}

func (c *Configuration) mergedLocked() json.RawMessage {
	return settings.Merge(c.defaults, c.user.Contents(), c.workspace.Contents())
}

func (c *Configuration) file(target int) (*settings.File, error) {
	switch target {
	case protocol.TargetUser:
		return c.user, nil
	case protocol.TargetWorkspace:
		return c.workspace, nil
	default:
		return nil, fmt.Errorf("%w: configuration target %d", rpc.ErrInvalidArguments, target)
	}
}

// Update writes value at the dotted key of target.
func (c *Configuration) Update(ctx context.Context, target int, key string, value json.RawMessage) error {
	return c.change(ctx, func() error {
		f, err := c.file(target)
		if err != nil {
			return err
		}
		return f.Set(key, value)
	})
}

// Remove deletes the dotted key from target.
func (c *Configuration) Remove(ctx context.Context, target int, key string) error {
	return c.change(ctx, func() error {
		f, err := c.file(target)
		if err != nil {
			return err
		}
		return f.Remove(key)
	})
}

// SetDefaults replaces the default layer.
func (c *Configuration) SetDefaults(ctx context.Context, defaults json.RawMessage) error {
	return c.change(ctx, func() error {
		if !json.Valid(defaults) {
			return settings.ErrInvalidJSON
		}
		c.defaults = append(json.RawMessage(nil), defaults...)
		return nil
	})
}

// Reload re-reads both settings files, for example after they changed on
// disk.
func (c *Configuration) Reload(ctx context.Context) error {
	return c.change(ctx, func() error {
		if err := c.user.Reload(); err != nil {
			return err
		}
		return c.workspace.Reload()
	})
}

func (c *Configuration) change(ctx context.Context, apply func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.mergedLocked()
	if err := apply(); err != nil {
		return err
	}
	keys := settings.ChangedKeys(before, c.mergedLocked())
	if len(keys) == 0 || !c.s.isSynced() {
		return nil
	}
	c.logger.Debug("configuration changed", zap.Strings("keys", keys))
	c.s.notify("$acceptConfigurationChanged",
		c.ext.AcceptConfigurationChanged(ctx, c.dataLocked(), protocol.ConfigurationChange{Keys: keys}))
	return nil
}

// watchesSettings reports whether path is one of the settings files.
func (c *Configuration) watchesSettings(path string) bool {
	return path == c.user.Path() || path == c.workspace.Path()
}
