// Package rpc is the proxy layer both sides of the extension host bridge talk
// through.
//
// Each side owns one Protocol per connection. Services are registered with
// Set under an Identifier declared in a Namespace; the other side reaches them
// through a Proxy obtained with GetProxy. Every call is asynchronous from the
// caller's point of view and is carried by a sourcegraph/jsonrpc2 connection.
//
// Methods declared as events are executed one at a time, in arrival order, on
// a per-protocol queue. Requests are started from the same queue but run on
// their own goroutine, so a handler may itself await remote calls without
// stalling the connection.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/zap"
)

const cancelMethod = "rpc.$cancel"

// envelope is the params object of every call.
type envelope struct {
	CallID string            `json:"callId,omitempty"`
	Args   []json.RawMessage `json:"args"`
}

type cancelParams struct {
	CallID string `json:"callId"`
}

type local struct {
	id      *Identifier
	methods Methods
}

// Protocol is one side's view of a connection.
type Protocol struct {
	side     Side
	logger   *zap.Logger
	metrics  *Metrics
	connOpts []jsonrpc2.ConnOpt

	ctx    context.Context
	cancel context.CancelFunc
	events *eventQueue

	mu     sync.RWMutex
	locals map[string]*local
	conn   *jsonrpc2.Conn

	callsMu sync.Mutex
	calls   map[string]context.CancelFunc
}

// Option configures a Protocol.
type Option func(*protocolOptions)

type protocolOptions struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	wireTrace  bool
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *protocolOptions) { o.logger = logger }
}

// WithRegisterer sets where call metrics are registered. The default is a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *protocolOptions) { o.registerer = reg }
}

// WithWireTrace logs every message sent and received at debug level.
func WithWireTrace() Option {
	return func(o *protocolOptions) { o.wireTrace = true }
}

// New creates the protocol for side. Services are registered with Set before
// Connect is called.
func New(side Side, opts ...Option) *Protocol {
	o := protocolOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}

	logger := o.logger.Named("rpc").With(zap.Stringer("side", side))
	ctx, cancel := context.WithCancel(context.Background())

	p := &Protocol{
		side:    side,
		logger:  logger,
		metrics: NewMetrics(o.registerer, side),
		ctx:     ctx,
		cancel:  cancel,
		events:  newEventQueue(),
		locals:  make(map[string]*local),
		calls:   make(map[string]context.CancelFunc),
	}
	if o.wireTrace {
		p.connOpts = append(p.connOpts, jsonrpc2.LogMessages(zap.NewStdLog(logger.Named("wire"))))
	}
	return p
}

// Side returns the side this protocol runs on.
func (p *Protocol) Side() Side { return p.side }

// Logger returns the protocol logger.
func (p *Protocol) Logger() *zap.Logger { return p.logger }

// Set registers instance as the implementation of id on this side and
// returns it. methods must serve exactly the methods declared on id.
// Registering an identifier twice, or one that belongs to the other side, is
// a programming error and panics.
func Set[T any](p *Protocol, id *Identifier, instance T, methods Methods) T {
	if id.Side() != p.side {
		panic(fmt.Sprintf("rpc: %s is implemented by the %s side, not %s", id.Name(), id.Side(), p.side))
	}
	for _, name := range id.Methods() {
		if methods[name] == nil {
			panic(fmt.Sprintf("rpc: %s does not serve declared method %s", id.Name(), name))
		}
	}
	for name := range methods {
		if _, ok := id.Method(name); !ok {
			panic(fmt.Sprintf("rpc: %s serves undeclared method %s", id.Name(), name))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.locals[id.Name()]; dup {
		panic(fmt.Sprintf("rpc: identifier %s is already set", id.Name()))
	}
	p.locals[id.Name()] = &local{id: id, methods: methods}
	p.logger.Debug("identifier set", zap.String("identifier", id.Name()))
	return instance
}

// IsSet reports whether id has been registered locally.
func (p *Protocol) IsSet(id *Identifier) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.locals[id.Name()]
	return ok
}

// Connect starts serving stream. It must be called once.
func (p *Protocol) Connect(stream jsonrpc2.ObjectStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		panic("rpc: protocol already connected")
	}
	p.conn = jsonrpc2.NewConn(p.ctx, stream, p, p.connOpts...)
	go p.events.run(p.ctx)
}

// Done is closed when the connection has been closed by either side.
func (p *Protocol) Done() <-chan struct{} {
	conn := p.connection()
	if conn == nil {
		return p.ctx.Done()
	}
	return conn.DisconnectNotify()
}

// Close tears the connection down and cancels every running handler.
func (p *Protocol) Close() error {
	p.cancel()
	conn := p.connection()
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && err != jsonrpc2.ErrClosed {
		return err
	}
	return nil
}

func (p *Protocol) connection() *jsonrpc2.Conn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn
}

// Handle implements jsonrpc2.Handler.
func (p *Protocol) Handle(_ context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Method == cancelMethod {
		p.handleCancel(req)
		return
	}

	name, method, ok := splitWireMethod(req.Method)
	if !ok {
		p.reject(conn, req, fmt.Errorf("%w: %s", ErrUnknownMethod, req.Method))
		return
	}

	p.mu.RLock()
	l := p.locals[name]
	p.mu.RUnlock()
	if l == nil {
		p.reject(conn, req, fmt.Errorf("%w: %s", ErrUnknownIdentifier, name))
		return
	}

	spec, ok := l.id.Method(method)
	if !ok {
		p.reject(conn, req, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, name, method))
		return
	}

	h := l.methods[method]
	if spec.Kind == KindEvent {
		p.events.push(func() { p.serve(conn, req, l.id, method, h) })
		return
	}
	// Requests start behind every event received before them, so a handler
	// always observes the state those events established.
	p.events.push(func() { go p.serve(conn, req, l.id, method, h) })
}

func (p *Protocol) serve(conn *jsonrpc2.Conn, req *jsonrpc2.Request, id *Identifier, method string, h Handler) {
	start := time.Now()

	var env envelope
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &env); err != nil {
			p.reject(conn, req, fmt.Errorf("%w: %v", ErrInvalidArguments, err))
			return
		}
	}

	ctx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if env.CallID != "" && !req.Notif {
		p.trackCall(env.CallID, cancel)
		defer p.untrackCall(env.CallID)
	}

	result, err := p.invoke(ctx, id, method, h, env.Args)
	p.metrics.observe(directionInbound, id.Name(), method, err, time.Since(start))

	if req.Notif {
		if err != nil {
			p.logger.Warn("notification handler failed",
				zap.String("identifier", id.Name()),
				zap.String("method", method),
				zap.Error(err))
		}
		return
	}

	if err != nil {
		p.logger.Debug("call rejected",
			zap.String("identifier", id.Name()),
			zap.String("method", method),
			zap.Error(err))
		if werr := conn.ReplyWithError(p.ctx, req.ID, toWireError(err)); werr != nil {
			p.logger.Debug("reply failed", zap.Error(werr))
		}
		return
	}
	if werr := conn.Reply(p.ctx, req.ID, result); werr != nil {
		p.logger.Debug("reply failed", zap.Error(werr))
	}
}

func (p *Protocol) invoke(ctx context.Context, id *Identifier, method string, h Handler, args []json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked",
				zap.String("identifier", id.Name()),
				zap.String("method", method),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("%w: %s.%s panicked: %v", ErrHandlerFailed, id.Name(), method, r)
		}
	}()
	return h(ctx, args)
}

func (p *Protocol) reject(conn *jsonrpc2.Conn, req *jsonrpc2.Request, err error) {
	p.logger.Warn("rejecting call", zap.String("method", req.Method), zap.Error(err))
	if req.Notif {
		return
	}
	if werr := conn.ReplyWithError(p.ctx, req.ID, toWireError(err)); werr != nil {
		p.logger.Debug("reply failed", zap.Error(werr))
	}
}

func (p *Protocol) trackCall(callID string, cancel context.CancelFunc) {
	p.callsMu.Lock()
	defer p.callsMu.Unlock()
	p.calls[callID] = cancel
}

func (p *Protocol) untrackCall(callID string) {
	p.callsMu.Lock()
	defer p.callsMu.Unlock()
	delete(p.calls, callID)
}

func (p *Protocol) handleCancel(req *jsonrpc2.Request) {
	if req.Params == nil {
		return
	}
	var params cancelParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return
	}

	p.callsMu.Lock()
	cancel := p.calls[params.CallID]
	p.callsMu.Unlock()

	if cancel != nil {
		p.logger.Debug("call canceled by caller", zap.String("callId", params.CallID))
		cancel()
	}
}

func (p *Protocol) sendCancel(callID string) {
	conn := p.connection()
	if conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(p.ctx, time.Second)
	defer cancel()
	if err := conn.Notify(ctx, cancelMethod, cancelParams{CallID: callID}); err != nil {
		p.logger.Debug("sending cancel failed", zap.Error(err))
	}
}

// eventQueue runs state-sync handlers one at a time in arrival order. push
// never blocks so the connection's read loop keeps draining responses.
type eventQueue struct {
	mu    sync.Mutex
	items []func()
	wake  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	fn := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return fn, true
}

func (q *eventQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		for {
			fn, ok := q.pop()
			if !ok {
				break
			}
			fn()
		}
	}
}
