// Package bridge runs a main side and an extension side session in one
// process, connected over an in-memory pipe.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/exthost"
	"github.com/shopware/exthost/internal/mainthread"
	"github.com/shopware/exthost/internal/rpc"
)

// Options configure a Pair. Loggers left unset in Main and Ext default to
// Logger.
type Options struct {
	Logger *zap.Logger
	// Registerer receives the call metrics of both sides. A private
	// registry is used when nil.
	Registerer prometheus.Registerer
	WireTrace  bool

	Main mainthread.Options
	Ext  exthost.Options
}

// Pair is a connected main side and extension side.
type Pair struct {
	Main *mainthread.Session
	Ext  *exthost.Session

	logger *zap.Logger
}

// New creates both sessions and connects them. Neither side is started.
func New(opts Options) (*Pair, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	protoOpts := []rpc.Option{rpc.WithLogger(opts.Logger), rpc.WithRegisterer(opts.Registerer)}
	if opts.WireTrace {
		protoOpts = append(protoOpts, rpc.WithWireTrace())
	}

	mainProto := rpc.New(rpc.SideMain, protoOpts...)
	extProto := rpc.New(rpc.SideExtension, protoOpts...)

	if opts.Main.Logger == nil {
		opts.Main.Logger = opts.Logger.Named("main")
	}
	if opts.Ext.Logger == nil {
		opts.Ext.Logger = opts.Logger.Named("ext")
	}

	main, err := mainthread.NewSession(mainProto, opts.Main)
	if err != nil {
		return nil, fmt.Errorf("failed to create main side: %w", err)
	}
	ext, err := exthost.NewSession(extProto, opts.Ext)
	if err != nil {
		_ = main.Close()
		return nil, fmt.Errorf("failed to create extension side: %w", err)
	}

	a, b := net.Pipe()
	mainProto.Connect(rpc.NewStream(a))
	extProto.Connect(rpc.NewStream(b))

	return &Pair{Main: main, Ext: ext, logger: opts.Logger}, nil
}

// Start starts the extension side with exts and waits until the main side
// has seen it become ready.
func (p *Pair) Start(ctx context.Context, exts ...exthost.Extension) error {
	if err := p.Ext.Start(ctx, exts...); err != nil {
		return err
	}
	select {
	case <-p.Main.Commands.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes both sides.
func (p *Pair) Close() error {
	return errors.Join(p.Ext.Close(), p.Main.Close())
}

// Done is closed when the connection is gone.
func (p *Pair) Done() <-chan struct{} {
	return p.Main.Protocol().Done()
}
