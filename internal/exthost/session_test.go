package exthost

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/exthost/internal/protocol"
	"github.com/shopware/exthost/internal/rpc"
)

const testURI = "file:///project/src/a.php"

// fakeMain stands in for the main side. It records every call and answers
// with the handler set for the method, or nil.
type fakeMain struct {
	proto *rpc.Protocol

	mu       sync.Mutex
	calls    []string
	args     map[string][][]json.RawMessage
	handlers map[string]rpc.Handler

	initial protocol.DocumentsAndEditorsDelta
	config  protocol.ConfigurationData
}

func (f *fakeMain) handle(key string, h rpc.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[key] = h
}

func (f *fakeMain) serve(ctx context.Context, key string, args []json.RawMessage) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.args[key] = append(f.args[key], args)
	h := f.handlers[key]
	f.mu.Unlock()
	if h == nil {
		return nil, nil
	}
	return h(ctx, args)
}

func (f *fakeMain) calledTimes(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.args[key])
}

// lastArgs returns the arguments of the latest call of key.
func (f *fakeMain) lastArgs(key string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.args[key]
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (f *fakeMain) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func arg[T any](t *testing.T, args []json.RawMessage, i int) T {
	t.Helper()
	v, err := rpc.Arg[T](args, i)
	require.NoError(t, err)
	return v
}

func newTestSession(t *testing.T, opts Options) (*Session, *fakeMain) {
	t.Helper()

	extSide := rpc.New(rpc.SideExtension)
	s, err := NewSession(extSide, opts)
	require.NoError(t, err)

	f := &fakeMain{
		proto:    rpc.New(rpc.SideMain),
		args:     make(map[string][][]json.RawMessage),
		handlers: make(map[string]rpc.Handler),
		config: protocol.ConfigurationData{
			Defaults:  json.RawMessage(`{"editor":{"tabSize":4}}`),
			User:      json.RawMessage(`{}`),
			Workspace: json.RawMessage(`{}`),
		},
	}
	for _, id := range protocol.MainContext.Identifiers() {
		methods := rpc.Methods{}
		for _, name := range id.Methods() {
			key := id.Name() + "." + name
			methods[name] = func(ctx context.Context, args []json.RawMessage) (any, error) {
				return f.serve(ctx, key, args)
			}
		}
		rpc.Set(f.proto, id, f, methods)
	}

	f.handle("MainThreadDocumentsAndEditors.$getInitialState", func(ctx context.Context, _ []json.RawMessage) (any, error) {
		f.mu.Lock()
		initial := f.initial
		f.mu.Unlock()
		if err := protocol.NewExtDocumentsAndEditorsProxy(f.proto).AcceptDocumentsAndEditorsDelta(ctx, initial); err != nil {
			return nil, err
		}
		return initial, nil
	})
	f.handle("MainThreadConfiguration.$getConfiguration", func(context.Context, []json.RawMessage) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.config, nil
	})

	a, b := net.Pipe()
	extSide.Connect(rpc.NewStream(a))
	f.proto.Connect(rpc.NewStream(b))
	t.Cleanup(func() {
		_ = f.proto.Close()
		_ = s.Close()
	})
	return s, f
}

// testDelta opens testURI in one active editor.
func testDelta() protocol.DocumentsAndEditorsDelta {
	return protocol.DocumentsAndEditorsDelta{
		AddedDocuments: []protocol.ModelAddedData{{
			URI:        testURI,
			VersionID:  1,
			Lines:      []string{"<?php", "echo $foo;", ""},
			EOL:        "\n",
			LanguageID: "php",
		}},
		AddedEditors: []protocol.TextEditorAddData{{
			ID:          "0:" + testURI,
			DocumentURI: testURI,
			Options:     protocol.ResolvedTextEditorOptions{TabSize: 4, InsertSpaces: true, CursorStyle: 1, LineNumbers: 1},
			Selections: []protocol.Selection{{
				SelectionStartLineNumber: 1, SelectionStartColumn: 1, PositionLineNumber: 1, PositionColumn: 1,
			}},
			VisibleRanges: []protocol.Range{{StartLineNumber: 1, StartColumn: 1, EndLineNumber: 3, EndColumn: 1}},
		}},
		NewActiveEditor:     "0:" + testURI,
		ActiveEditorChanged: true,
	}
}

func startSession(t *testing.T, s *Session, f *fakeMain, exts ...Extension) {
	t.Helper()
	f.mu.Lock()
	if f.initial.IsEmpty() {
		f.initial = testDelta()
	}
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Start(ctx, exts...))
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

type testExtension struct {
	id       string
	activate func(ctx context.Context, s *Session) error
}

func (e testExtension) ID() string { return e.id }

func (e testExtension) Activate(ctx context.Context, s *Session) error { return e.activate(ctx, s) }

func TestNewSession_RejectsMainSide(t *testing.T) {
	_, err := NewSession(rpc.New(rpc.SideMain), Options{})
	require.Error(t, err)
}

func TestSession_StartSequence(t *testing.T) {
	s, f := newTestSession(t, Options{})

	var mirroredAtActivation bool
	good := testExtension{id: "good", activate: func(ctx context.Context, s *Session) error {
		_, mirroredAtActivation = s.Documents.Get(testURI)
		_, err := s.Commands.RegisterCommand(ctx, "good.hello", func(context.Context, ...any) (any, error) {
			return "hi", nil
		})
		return err
	}}
	failing := testExtension{id: "failing", activate: func(context.Context, *Session) error {
		return errors.New("boom")
	}}
	panicking := testExtension{id: "panicking", activate: func(context.Context, *Session) error {
		panic("kaputt")
	}}

	startSession(t, s, f, failing, panicking, good)

	assert.True(t, mirroredAtActivation)
	assert.Len(t, s.Extensions(), 3)
	assert.Equal(t, []string{
		"MainThreadDocumentsAndEditors.$getInitialState",
		"MainThreadConfiguration.$getConfiguration",
		"MainThreadCommands.$registerCommand",
		"MainThreadCommands.$registerCommand",
		"MainThreadExtensionService.$onExtensionHostReady",
	}, f.callOrder())
	// The delegation command sorts first.
	assert.Equal(t, "good.hello", arg[string](t, f.lastArgs("MainThreadCommands.$registerCommand"), 0))

	editor := s.Editors.Active()
	require.NotNil(t, editor)
	assert.Equal(t, testURI, editor.Document().URI())
	assert.Equal(t, int64(4), s.Workspace.GetConfiguration("editor").Get("tabSize").Int())

	assert.ErrorIs(t, s.Start(context.Background()), ErrStarted)
}

func TestSession_StartWaitsForInitialDelta(t *testing.T) {
	s, f := newTestSession(t, Options{})
	// The main side answers but never pushes the delta.
	f.handle("MainThreadDocumentsAndEditors.$getInitialState", func(context.Context, []json.RawMessage) (any, error) {
		return protocol.DocumentsAndEditorsDelta{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.calledTimes("MainThreadExtensionService.$onExtensionHostReady"))
}

func TestSession_DeltaRemovesEditorsBeforeDocuments(t *testing.T) {
	s, f := newTestSession(t, Options{})
	startSession(t, s, f)

	doc, ok := s.Documents.Get(testURI)
	require.True(t, ok)
	editor := s.Editors.Active()
	require.NotNil(t, editor)

	var activeChanges []*TextEditor
	s.Editors.OnDidChangeActiveTextEditor.Subscribe(func(e *TextEditor) { activeChanges = append(activeChanges, e) })

	err := protocol.NewExtDocumentsAndEditorsProxy(f.proto).AcceptDocumentsAndEditorsDelta(context.Background(), protocol.DocumentsAndEditorsDelta{
		RemovedDocuments:    []string{testURI},
		RemovedEditors:      []string{editor.ID()},
		ActiveEditorChanged: true,
	})
	require.NoError(t, err)

	eventually(t, doc.IsClosed)
	assert.Nil(t, s.Editors.Active())
	assert.Empty(t, s.Editors.Visible())
	require.Len(t, activeChanges, 1)
	assert.Nil(t, activeChanges[0])
	assert.ErrorIs(t, editor.SetSelections(context.Background(), editor.Selections()), ErrEditorDisposed)
}
