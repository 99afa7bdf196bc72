package exthost

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/exthost/internal/exthost/types"
	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

func TestCommands_RegisterAfterStartAnnouncesImmediately(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	before := f.calledTimes("MainThreadCommands.$registerCommand")

	d, err := s.Commands.RegisterCommand(context.Background(), "late", func(context.Context, ...any) (any, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, before+1, f.calledTimes("MainThreadCommands.$registerCommand"))

	_, err = s.Commands.RegisterCommand(context.Background(), "late", func(context.Context, ...any) (any, error) { return nil, nil })
	require.EqualError(t, err, "command 'late' already exists")

	d.Dispose()
	d.Dispose()
	assert.Equal(t, 1, f.calledTimes("MainThreadCommands.$unregisterCommand"))
	assert.Equal(t, "late", arg[string](t, f.lastArgs("MainThreadCommands.$unregisterCommand"), 0))
}

func TestCommands_RegisterFailureRollsBack(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)
	f.handle("MainThreadCommands.$registerCommand", func(context.Context, []json.RawMessage) (any, error) {
		return nil, errors.New("no")
	})

	_, err := s.Commands.RegisterCommand(context.Background(), "x", func(context.Context, ...any) (any, error) { return nil, nil })
	require.Error(t, err)

	_, err = protocol.NewExtCommandsProxy(f.proto).ExecuteContributedCommand(context.Background(), "x", nil)
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

func TestCommands_ExecuteContributed(t *testing.T) {
	s, f := newTestSession(t, Options{})
	ctx := context.Background()

	_, err := s.Commands.RegisterCommand(ctx, "foo", func(_ context.Context, args ...any) (any, error) {
		n, err := DecodeArg[int](args, 0)
		return n * 2, err
	})
	require.NoError(t, err)
	_, err = s.Commands.RegisterCommand(ctx, "fails", func(context.Context, ...any) (any, error) {
		return nil, errors.New("nope")
	})
	require.NoError(t, err)
	_, err = s.Commands.RegisterCommand(ctx, "panics", func(context.Context, ...any) (any, error) {
		panic("oh no")
	})
	require.NoError(t, err)

	ext := protocol.NewExtCommandsProxy(f.proto)

	result, err := ext.ExecuteContributedCommand(ctx, "foo", []json.RawMessage{json.RawMessage("21")})
	require.NoError(t, err)
	assert.JSONEq(t, "42", string(result))

	_, err = ext.ExecuteContributedCommand(ctx, "bar", nil)
	require.ErrorIs(t, err, rpc.ErrNotFound)
	assert.Contains(t, err.Error(), "command 'bar' does not exist")

	_, err = ext.ExecuteContributedCommand(ctx, "fails", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running the contributed command 'fails' failed: nope")

	_, err = ext.ExecuteContributedCommand(ctx, "panics", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: oh no")
}

func TestCommands_Descriptions(t *testing.T) {
	s, f := newTestSession(t, Options{})
	_, err := s.Commands.RegisterDescribedCommand(context.Background(), "doc.me",
		protocol.CommandHandlerDescription{Description: "Does things", Args: []string{"uri"}},
		func(context.Context, ...any) (any, error) { return nil, nil })
	require.NoError(t, err)

	descriptions, err := protocol.NewExtCommandsProxy(f.proto).GetContributedCommandHandlerDescriptions(context.Background())
	require.NoError(t, err)
	require.Contains(t, descriptions, "doc.me")
	assert.Equal(t, "Does things", descriptions["doc.me"].Description)
	assert.Len(t, descriptions, 1)
}

func TestCommands_ExecuteLocalAndRemote(t *testing.T) {
	s, f := newTestSession(t, Options{})
	ctx := context.Background()

	type point struct{ X, Y int }
	_, err := s.Commands.RegisterCommand(ctx, "local", func(_ context.Context, args ...any) (any, error) {
		// Local callers pass values as they are.
		p, ok := args[0].(point)
		require.True(t, ok)
		return p.X + p.Y, nil
	})
	require.NoError(t, err)

	result, err := s.Commands.ExecuteCommand(ctx, "local", point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.JSONEq(t, "3", string(result))
	assert.Zero(t, f.calledTimes("MainThreadCommands.$executeCommand"))

	f.handle("MainThreadCommands.$executeCommand", func(context.Context, []json.RawMessage) (any, error) {
		return map[string]bool{"ok": true}, nil
	})
	result, err = s.Commands.ExecuteCommand(ctx, "editor.action.format", "a", 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))

	args := f.lastArgs("MainThreadCommands.$executeCommand")
	assert.Equal(t, "editor.action.format", arg[string](t, args, 0))
	assert.Equal(t, []json.RawMessage{json.RawMessage(`"a"`), json.RawMessage("1")}, arg[[]json.RawMessage](t, args, 1))
}

func TestCommands_DelegatesUnserializableArguments(t *testing.T) {
	s, f := newTestSession(t, Options{})
	ctx := context.Background()

	var got func() int
	_, err := s.Commands.RegisterCommand(ctx, "takes.func", func(_ context.Context, args ...any) (any, error) {
		fn, err := DecodeArg[func() int](args, 0)
		if err != nil {
			return nil, err
		}
		got = fn
		return fn(), nil
	})
	require.NoError(t, err)

	var keys []string
	cmd := s.Commands.toProtocol(&types.Command{
		Command:   "takes.func",
		Title:     "Run",
		Arguments: []any{func() int { return 7 }},
	}, &keys)
	require.NotNil(t, cmd)
	assert.Equal(t, DelegateCommand, cmd.ID)
	assert.Equal(t, "Run", cmd.Title)
	require.Len(t, keys, 1)
	assert.Equal(t, 1, s.Commands.delegateCount())

	// The main side runs the delegation command with the arguments it got.
	result, err := protocol.NewExtCommandsProxy(f.proto).ExecuteContributedCommand(ctx, cmd.ID, cmd.Arguments)
	require.NoError(t, err)
	assert.JSONEq(t, "7", string(result))
	require.NotNil(t, got)

	s.Commands.releaseDelegates(keys)
	assert.Zero(t, s.Commands.delegateCount())
	_, err = protocol.NewExtCommandsProxy(f.proto).ExecuteContributedCommand(ctx, cmd.ID, cmd.Arguments)
	assert.ErrorIs(t, err, rpc.ErrNotFound)

	// Serializable commands are sent as they are.
	plain := s.Commands.toProtocol(&types.Command{Command: "x", Arguments: []any{1}}, &keys)
	assert.Equal(t, "x", plain.ID)
	assert.Len(t, keys, 1)
}

func TestDecodeArg(t *testing.T) {
	args := []any{json.RawMessage(`{"a":1}`), 5, nil, json.RawMessage("null")}

	m, err := DecodeArg[map[string]int](args, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, m)

	n, err := DecodeArg[int](args, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// int64 goes through JSON.
	n64, err := DecodeArg[int64](args, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n64)

	for _, i := range []int{2, 3, 9} {
		s, err := DecodeArg[string](args, i)
		require.NoError(t, err)
		assert.Empty(t, s)
	}

	_, err = DecodeArg[string](args, 0)
	assert.ErrorIs(t, err, rpc.ErrInvalidArguments)
}
