package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Proxy forwards calls to the service the other side registered under an
// identifier. Proxies hold no state of their own.
type Proxy struct {
	p  *Protocol
	id *Identifier
}

// GetProxy returns the proxy for a remote identifier. Asking for a proxy to
// an identifier implemented on this side panics.
func (p *Protocol) GetProxy(id *Identifier) *Proxy {
	if id.Side() == p.side {
		panic(fmt.Sprintf("rpc: %s is local to the %s side", id.Name(), p.side))
	}
	return &Proxy{p: p, id: id}
}

// Identifier returns the identifier the proxy addresses.
func (x *Proxy) Identifier() *Identifier { return x.id }

// Call invokes method with args and waits for the reply, decoding it into
// result when result is non-nil. If ctx ends first the callee is told to
// cancel the call.
func (x *Proxy) Call(ctx context.Context, method string, result any, args ...any) error {
	if _, ok := x.id.Method(method); !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownMethod, x.id.Name(), method)
	}
	conn := x.p.connection()
	if conn == nil {
		return ErrNotConnected
	}

	env, err := encodeArgs(args)
	if err != nil {
		return fmt.Errorf("rpc: encoding %s.%s arguments: %w", x.id.Name(), method, err)
	}
	env.CallID = uuid.NewString()

	start := time.Now()
	var raw json.RawMessage
	err = conn.Call(ctx, wireMethod(x.id, method), env, &raw)
	if err != nil && ctx.Err() != nil {
		x.p.sendCancel(env.CallID)
		err = fmt.Errorf("%w: %s.%s: %w", ErrCanceled, x.id.Name(), method, ctx.Err())
	}
	x.p.metrics.observe(directionOutbound, x.id.Name(), method, err, time.Since(start))
	if err != nil {
		return fromWireError(x.id, method, err)
	}

	if result == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("rpc: decoding %s.%s result: %w", x.id.Name(), method, err)
	}
	return nil
}

// Notify sends method without waiting for, or getting, a reply. Notifications
// keep their order relative to every other message on the connection.
func (x *Proxy) Notify(ctx context.Context, method string, args ...any) error {
	spec, ok := x.id.Method(method)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownMethod, x.id.Name(), method)
	}
	if spec.Kind != KindEvent {
		return fmt.Errorf("%w: %s.%s", ErrNotEvent, x.id.Name(), method)
	}
	conn := x.p.connection()
	if conn == nil {
		return ErrNotConnected
	}

	env, err := encodeArgs(args)
	if err != nil {
		return fmt.Errorf("rpc: encoding %s.%s arguments: %w", x.id.Name(), method, err)
	}

	err = conn.Notify(ctx, wireMethod(x.id, method), env)
	x.p.metrics.observe(directionOutbound, x.id.Name(), method, err, 0)
	return err
}

func encodeArgs(args []any) (envelope, error) {
	env := envelope{Args: make([]json.RawMessage, len(args))}
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return envelope{}, fmt.Errorf("argument %d: %w", i, err)
		}
		env.Args[i] = raw
	}
	return env, nil
}
