package exthost

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/event"
	"github.com/shopware/exthost/internal/exthost/typeconvert"
	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

// DelegateCommand is the command the main side runs for commands whose
// arguments cannot be serialized. Its only argument names the original
// command kept on this side.
const DelegateCommand = "_exthost.delegate"

// CommandHandler runs a command. Arguments from the main side arrive as
// json.RawMessage values; use DecodeArg to read them.
type CommandHandler func(ctx context.Context, args ...any) (any, error)

type command struct {
	handler     CommandHandler
	description *protocol.CommandHandlerDescription
}

// Commands is the extension side command registry.
type Commands struct {
	logger *zap.Logger
	main   protocol.CommandsProxy

	mu        sync.RWMutex
	commands  map[string]command
	announced bool

	delegatesMu sync.Mutex
	delegates   map[string]*types.Command
	delegateSeq int
}

func newCommands(s *Session) *Commands {
	c := &Commands{
		logger:    s.logger.Named("commands"),
		main:      protocol.NewCommandsProxy(s.proto),
		commands:  make(map[string]command),
		delegates: make(map[string]*types.Command),
	}
	c.commands[DelegateCommand] = command{handler: c.runDelegate}
	return c
}

func (c *Commands) methods() rpc.Methods {
	return rpc.Methods{
		"$executeContributedCommand": rpc.Func2(c.executeContributed),
		"$getContributedCommandHandlerDescriptions": rpc.Func0(func(context.Context) (map[string]protocol.CommandHandlerDescription, error) {
			return c.Descriptions(), nil
		}),
	}
}

// RegisterCommand registers a command. Once the session has started the
// main side is told about it before RegisterCommand returns.
func (c *Commands) RegisterCommand(ctx context.Context, id string, handler CommandHandler) (event.Disposable, error) {
	return c.register(ctx, id, command{handler: handler})
}

// RegisterDescribedCommand registers a command together with its
// description.
func (c *Commands) RegisterDescribedCommand(ctx context.Context, id string, desc protocol.CommandHandlerDescription, handler CommandHandler) (event.Disposable, error) {
	return c.register(ctx, id, command{handler: handler, description: &desc})
}

func (c *Commands) register(ctx context.Context, id string, cmd command) (event.Disposable, error) {
	if id == "" || cmd.handler == nil {
		return nil, fmt.Errorf("%w: command needs an id and a handler", rpc.ErrInvalidArguments)
	}

	c.mu.Lock()
	if _, exists := c.commands[id]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("command '%s' already exists", id)
	}
	c.commands[id] = cmd
	announced := c.announced
	c.mu.Unlock()

	if announced {
		if err := c.main.RegisterCommand(ctx, id); err != nil {
			c.mu.Lock()
			delete(c.commands, id)
			c.mu.Unlock()
			return nil, fmt.Errorf("failed to register command '%s': %w", id, err)
		}
	}

	return event.Once(func() {
		c.mu.Lock()
		delete(c.commands, id)
		announced := c.announced
		c.mu.Unlock()
		if !announced {
			return
		}
		if err := c.main.UnregisterCommand(context.Background(), id); err != nil {
			c.logger.Warn("failed to unregister command", zap.String("command", id), zap.Error(err))
		}
	}), nil
}

// announce tells the main side about every command registered so far.
// Later registrations are announced as they happen.
func (c *Commands) announce(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.commands))
	for id := range c.commands {
		ids = append(ids, id)
	}
	c.announced = true
	c.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		if err := c.main.RegisterCommand(ctx, id); err != nil {
			return fmt.Errorf("failed to register command '%s': %w", id, err)
		}
	}
	return nil
}

// ExecuteCommand runs a command registered on this side, or asks the main
// side to run it. The result is returned as JSON either way.
func (c *Commands) ExecuteCommand(ctx context.Context, id string, args ...any) (json.RawMessage, error) {
	c.mu.RLock()
	cmd, local := c.commands[id]
	c.mu.RUnlock()

	if local {
		result, err := c.run(ctx, id, cmd, args)
		if err != nil {
			return nil, err
		}
		return marshalResult(id, result)
	}

	raw := make([]json.RawMessage, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("command '%s' argument %d: %w", id, i, err)
		}
		raw[i] = b
	}
	return c.main.ExecuteCommand(ctx, id, raw)
}

// GetCommands lists the commands known to the main side, which includes the
// ones registered here.
func (c *Commands) GetCommands(ctx context.Context) ([]string, error) {
	return c.main.GetCommands(ctx)
}

// Descriptions returns the descriptions of the commands registered with one.
func (c *Commands) Descriptions() map[string]protocol.CommandHandlerDescription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]protocol.CommandHandlerDescription)
	for id, cmd := range c.commands {
		if cmd.description != nil {
			out[id] = *cmd.description
		}
	}
	return out
}

func (c *Commands) executeContributed(ctx context.Context, id string, args []json.RawMessage) (json.RawMessage, error) {
	c.mu.RLock()
	cmd, ok := c.commands[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: command '%s' does not exist", rpc.ErrNotFound, id)
	}

	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a
	}
	result, err := c.run(ctx, id, cmd, values)
	if err != nil {
		return nil, err
	}
	return marshalResult(id, result)
}

// run calls the handler, turning panics and errors into one error naming the
// command.
func (c *Commands) run(ctx context.Context, id string, cmd command, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("running the contributed command '%s' failed: panic: %v", id, r)
			c.logger.Error("command panicked", zap.String("command", id), zap.Any("panic", r))
		}
	}()

	result, err = cmd.handler(ctx, args...)
	if err != nil {
		c.logger.Warn("command failed", zap.String("command", id), zap.Error(err))
		return nil, fmt.Errorf("running the contributed command '%s' failed: %w", id, err)
	}
	return result, nil
}

func marshalResult(id string, result any) (json.RawMessage, error) {
	if raw, ok := result.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("command '%s' returned an unserializable result: %w", id, err)
	}
	return raw, nil
}

// toProtocol converts a command for the main side. Commands whose arguments
// do not serialize are kept here and replaced by DelegateCommand; the keys
// of kept commands are appended to keys so the owner can release them.
func (c *Commands) toProtocol(cmd *types.Command, keys *[]string) *protocol.Command {
	if cmd == nil {
		return nil
	}
	out, err := typeconvert.FromCommand(cmd)
	if err == nil {
		return out
	}

	c.delegatesMu.Lock()
	c.delegateSeq++
	key := strconv.Itoa(c.delegateSeq)
	c.delegates[key] = cmd
	c.delegatesMu.Unlock()
	if keys != nil {
		*keys = append(*keys, key)
	}

	arg, _ := json.Marshal(key)
	return &protocol.Command{
		ID:        DelegateCommand,
		Title:     cmd.Title,
		Tooltip:   cmd.Tooltip,
		Arguments: []json.RawMessage{arg},
	}
}

// releaseDelegates forgets commands kept by toProtocol.
func (c *Commands) releaseDelegates(keys []string) {
	if len(keys) == 0 {
		return
	}
	c.delegatesMu.Lock()
	defer c.delegatesMu.Unlock()
	for _, k := range keys {
		delete(c.delegates, k)
	}
}

func (c *Commands) delegateCount() int {
	c.delegatesMu.Lock()
	defer c.delegatesMu.Unlock()
	return len(c.delegates)
}

func (c *Commands) runDelegate(ctx context.Context, args ...any) (any, error) {
	key, err := DecodeArg[string](args, 0)
	if err != nil {
		return nil, err
	}
	c.delegatesMu.Lock()
	cmd, ok := c.delegates[key]
	c.delegatesMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: the command behind %s is no longer available", rpc.ErrNotFound, key)
	}
	result, err := c.ExecuteCommand(ctx, cmd.Command, cmd.Arguments...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeArg returns argument i as T. Values of type T are returned as they
// are; JSON values, as sent by the main side, are decoded. A missing
// argument yields the zero value.
func DecodeArg[T any](args []any, i int) (T, error) {
	var v T
	if i >= len(args) || args[i] == nil {
		return v, nil
	}
	if typed, ok := args[i].(T); ok {
		return typed, nil
	}

	raw, ok := args[i].(json.RawMessage)
	if !ok {
		b, err := json.Marshal(args[i])
		if err != nil {
			return v, fmt.Errorf("%w: argument %d: %v", rpc.ErrInvalidArguments, i, err)
		}
		raw = b
	}
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: argument %d: %v", rpc.ErrInvalidArguments, i, err)
	}
	return v, nil
}
