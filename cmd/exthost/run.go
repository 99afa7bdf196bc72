package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/builtin/snippets"
	"github.com/shopware/exthost/internal/builtin/syntaxfold"
	"github.com/shopware/exthost/internal/exthost"
	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/syntax"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the extension side with the built-in extensions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var stream jsonrpc2.ObjectStream
		switch cfg.Transport.Mode {
		case "websocket":
			s, err := rpc.DialWebSocket(ctx, cfg.Transport.URL)
			if err != nil {
				return err
			}
			stream = s
		default:
			stream = rpc.StdioStream(os.Stdin, os.Stdout)
		}
		return runStream(ctx, stream)
	},
}

func extOptions() exthost.Options {
	return exthost.Options{
		Logger:              logger.Named("ext"),
		CompletionCacheSize: cfg.Caches.Completions,
		CodeLensCacheSize:   cfg.Caches.CodeLenses,
		LinkCacheSize:       cfg.Caches.Links,
	}
}

func builtinExtensions() []exthost.Extension {
	registry := syntax.NewRegistry()
	return []exthost.Extension{
		syntaxfold.New(registry, logger),
		snippets.New(registry, logger),
	}
}

func runStream(ctx context.Context, stream jsonrpc2.ObjectStream) error {
	proto := rpc.New(rpc.SideExtension, protocolOptions(prometheus.NewRegistry())...)
	session, err := exthost.NewSession(proto, extOptions())
	if err != nil {
		return err
	}
	defer session.Close()
	proto.Connect(stream)

	startCtx, cancel := withReadyTimeout(ctx)
	err = session.Start(startCtx, builtinExtensions()...)
	cancel()
	if err != nil {
		return err
	}

	select {
	case <-proto.Done():
		logger.Info("main side disconnected")
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
	return nil
}

// withReadyTimeout bounds startup by the configured ready timeout. Zero
// waits indefinitely.
func withReadyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if cfg.Transport.ReadyTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.Transport.ReadyTimeout)
}
