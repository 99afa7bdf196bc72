package mainthread

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

// CommandHandler runs a command. Arguments arrive serialized.
type CommandHandler func(ctx context.Context, args []json.RawMessage) (any, error)

// Commands is the main side command registry. Commands registered by the
// extension side are installed as forwarders.
type Commands struct {
	logger *zap.Logger
	ext    protocol.ExtCommandsProxy

	mu        sync.RWMutex
	handlers  map[string]CommandHandler
	forwarded map[string]bool

	ready     chan struct{}
	readyOnce sync.Once
}

func newCommands(s *Session) *Commands {
	return &Commands{
		logger:    s.logger.Named("commands"),
		ext:       protocol.NewExtCommandsProxy(s.proto),
		handlers:  make(map[string]CommandHandler),
		forwarded: make(map[string]bool),
		ready:     make(chan struct{}),
	}
}

func (c *Commands) methods() rpc.Methods {
	return rpc.Methods{
		"$registerCommand":   rpc.Action1(c.registerForwarder),
		"$unregisterCommand": rpc.Action1(c.unregisterForwarder),
		"$executeCommand":    rpc.Func2(c.execute),
		"$getCommands":       rpc.Func0(func(context.Context) ([]string, error) { return c.List(), nil }),
	}
}

// RegisterCommand installs a main side command.
func (c *Commands) RegisterCommand(id string, handler CommandHandler) (event.Disposable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.handlers[id]; exists {
		return nil, fmt.Errorf("command '%s' already exists", id)
	}
	c.handlers[id] = handler
	return event.Once(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.forwarded[id] {
			delete(c.handlers, id)
		}
	}), nil
}

// ExecuteCommand runs id once the extension host is ready. Arguments are
// serialized before they reach the handler.
func (c *Commands) ExecuteCommand(ctx context.Context, id string, args ...any) (json.RawMessage, error) {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for the extension host to run '%s': %w", id, ctx.Err())
	}

	raw := make([]json.RawMessage, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("command '%s' argument %d: %w", id, i, err)
		}
		raw[i] = b
	}
	return c.execute(ctx, id, raw)
}

// List returns the registered command ids, sorted.
func (c *Commands) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ready is closed once the extension host announced its commands.
func (c *Commands) Ready() <-chan struct{} { return c.ready }

// Descriptions asks the extension side to describe its commands.
func (c *Commands) Descriptions(ctx context.Context) (map[string]protocol.CommandHandlerDescription, error) {
	return c.ext.GetContributedCommandHandlerDescriptions(ctx)
}

func (c *Commands) markReady() (first bool) {
	c.readyOnce.Do(func() {
		close(c.ready)
		first = true
	})
	return first
}

func (c *Commands) execute(ctx context.Context, id string, args []json.RawMessage) (json.RawMessage, error) {
	c.mu.RLock()
	handler, ok := c.handlers[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: command '%s' does not exist", rpc.ErrNotFound, id)
	}

	result, err := handler(ctx, args)
	if err != nil {
		return nil, err
	}
	if raw, ok := result.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("command '%s' returned an unserializable result: %w", id, err)
	}
	return raw, nil
}

func (c *Commands) registerForwarder(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.handlers[id]; exists {
		return fmt.Errorf("command '%s' already exists", id)
	}
	c.handlers[id] = func(ctx context.Context, args []json.RawMessage) (any, error) {
		return c.ext.ExecuteContributedCommand(ctx, id, args)
	}
	c.forwarded[id] = true
	c.logger.Debug("registered extension command", zap.String("command", id))
	return nil
}

func (c *Commands) unregisterForwarder(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.forwarded[id] {
		delete(c.handlers, id)
		delete(c.forwarded, id)
	}
	return nil
}
