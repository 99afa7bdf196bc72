package rpc

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"
	"go.uber.org/zap"
)

// NewStream frames messages on rwc with Content-Length headers.
func NewStream(rwc io.ReadWriteCloser) jsonrpc2.ObjectStream {
	return jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
}

// StdioStream returns a stream over a reader and writer pair such as the
// process's stdin and stdout.
func StdioStream(in io.Reader, out io.Writer) jsonrpc2.ObjectStream {
	return NewStream(rwc{in, out})
}

// rwc combines a reader and writer into a single ReadWriteCloser.
type rwc struct {
	io.Reader
	io.Writer
}

func (c rwc) Close() error {
	if closer, ok := c.Writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// DialWebSocket connects to an extension host listening on url.
func DialWebSocket(ctx context.Context, url string) (jsonrpc2.ObjectStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return wsstream.NewObjectStream(conn), nil
}

// WebSocketHandler upgrades every request and hands the resulting stream to
// accept. accept owns the stream; it is expected to block until the
// connection is done.
func WebSocketHandler(logger *zap.Logger, accept func(context.Context, jsonrpc2.ObjectStream)) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}
		logger.Info("websocket connection accepted", zap.String("remote", r.RemoteAddr))
		accept(r.Context(), wsstream.NewObjectStream(conn))
	})
}
