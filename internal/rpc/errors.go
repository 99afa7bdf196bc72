package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

// Wire error codes. The jsonrpc2 reserved codes are reused where they fit.
const (
	CodeUnknownMethod     int64 = jsonrpc2.CodeMethodNotFound
	CodeInvalidArguments  int64 = jsonrpc2.CodeInvalidParams
	CodeHandlerFailed     int64 = -32000
	CodeUnknownHandle     int64 = -32001
	CodeNotFound          int64 = -32002
	CodeUnknownIdentifier int64 = -32003
	CodeCanceled          int64 = -32800
)

// Error is an error that carries a wire code. Handlers wrap the sentinels
// below with %w; the code survives the trip to the caller.
type Error struct {
	Code    int64
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	// ErrUnknownIdentifier: the identifier was never set on the receiving side.
	ErrUnknownIdentifier = &Error{Code: CodeUnknownIdentifier, Message: "unknown identifier"}
	// ErrUnknownMethod: the method is not declared on the identifier.
	ErrUnknownMethod = &Error{Code: CodeUnknownMethod, Message: "unknown method"}
	// ErrInvalidArguments: arguments could not be decoded.
	ErrInvalidArguments = &Error{Code: CodeInvalidArguments, Message: "invalid arguments"}
	// ErrHandlerFailed: the handler returned an error or panicked.
	ErrHandlerFailed = &Error{Code: CodeHandlerFailed, Message: "handler failed"}
	// ErrUnknownHandle: no adapter, watcher or decoration is registered under the handle.
	ErrUnknownHandle = &Error{Code: CodeUnknownHandle, Message: "no adapter found"}
	// ErrNotFound: the addressed document, editor or command does not exist.
	ErrNotFound = &Error{Code: CodeNotFound, Message: "not found"}
	// ErrCanceled: the caller cancelled the call.
	ErrCanceled = &Error{Code: CodeCanceled, Message: "canceled"}

	// ErrNotConnected is returned by proxies used before Connect.
	ErrNotConnected = errors.New("rpc: protocol not connected")
	// ErrNotEvent is returned by Proxy.Notify for request methods.
	ErrNotEvent = errors.New("rpc: method is not an event")
)

// RemoteError is returned by Proxy.Call when the other side rejected the call.
type RemoteError struct {
	Identifier string
	Method     string
	Code       int64
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Identifier, e.Method, e.Message)
}

// Is matches the sentinel with the same code, so callers can write
// errors.Is(err, rpc.ErrUnknownHandle).
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// toWireError converts a handler error into the jsonrpc2 error sent back.
func toWireError(err error) *jsonrpc2.Error {
	code := CodeHandlerFailed
	var coded *Error
	switch {
	case errors.As(err, &coded):
		code = coded.Code
	case errors.Is(err, context.Canceled):
		code = CodeCanceled
	}
	return &jsonrpc2.Error{Code: code, Message: err.Error()}
}

func fromWireError(id *Identifier, method string, err error) error {
	var wire *jsonrpc2.Error
	if errors.As(err, &wire) {
		return &RemoteError{
			Identifier: id.Name(),
			Method:     method,
			Code:       wire.Code,
			Message:    wire.Message,
		}
	}
	return err
}
