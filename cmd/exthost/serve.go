package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/mainthread"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the main side and wait for an extension host to connect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		registry := prometheus.NewRegistry()
		switch cfg.Transport.Mode {
		case "websocket":
			return serveWebSocket(ctx, registry)
		default:
			return serveStream(ctx, rpc.StdioStream(os.Stdin, os.Stdout), registry)
		}
	},
}

func protocolOptions(reg prometheus.Registerer) []rpc.Option {
	opts := []rpc.Option{rpc.WithLogger(logger), rpc.WithRegisterer(reg)}
	if cfg.Log.WireTrace {
		opts = append(opts, rpc.WithWireTrace())
	}
	return opts
}

func mainOptions() (mainthread.Options, error) {
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return mainthread.Options{}, err
	}
	skip := make(map[string]bool, len(cfg.Watcher.SkipDirs))
	for _, dir := range cfg.Watcher.SkipDirs {
		skip[dir] = true
	}
	return mainthread.Options{
		Logger:    logger.Named("main"),
		Workspace: cfg.Workspace,
		DataDir:   dataDir,
		Watch:     !cfg.Watcher.Disabled,
		Watcher: watcher.Options{
			Debounce: cfg.Watcher.Debounce,
			SkipDirs: skip,
			Logger:   logger.Named("watcher"),
		},
	}, nil
}

// serveStream runs one main side session on stream until either end goes
// away.
func serveStream(ctx context.Context, stream jsonrpc2.ObjectStream, reg prometheus.Registerer) error {
	opts, err := mainOptions()
	if err != nil {
		return err
	}
	proto := rpc.New(rpc.SideMain, protocolOptions(reg)...)
	session, err := mainthread.NewSession(proto, opts)
	if err != nil {
		return err
	}
	defer session.Close()

	session.OnReady(func() {
		logger.Info("extension host is ready", zap.Strings("commands", session.Commands.List()))
	})
	proto.Connect(stream)

	select {
	case <-proto.Done():
		logger.Info("extension host disconnected")
	case <-ctx.Done():
	}
	return nil
}

func serveWebSocket(ctx context.Context, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", rpc.WebSocketHandler(logger, func(connCtx context.Context, stream jsonrpc2.ObjectStream) {
		if err := serveStream(connCtx, stream, reg); err != nil {
			logger.Error("session failed", zap.Error(err))
		}
	}))

	srv := &http.Server{Addr: cfg.Transport.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Transport.Listen))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
