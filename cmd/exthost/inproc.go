package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/bridge"
	"github.com/shopware/exthost/internal/mainthread"
	"github.com/shopware/exthost/internal/protocol"
)

var inprocCmd = &cobra.Command{
	Use:   "inproc [files...]",
	Short: "Run both sides in one process and print the folding ranges of files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInproc(cmd.Context(), cmd.OutOrStdout(), args)
	},
}

type foldingReport struct {
	URI      string                  `json:"uri"`
	Language string                  `json:"language"`
	Ranges   []protocol.FoldingRange `json:"ranges"`
}

func runInproc(ctx context.Context, out io.Writer, files []string) error {
	mainOpts, err := mainOptions()
	if err != nil {
		return err
	}
	mainOpts.Watch = false

	pair, err := bridge.New(bridge.Options{
		Logger:     logger,
		Registerer: prometheus.NewRegistry(),
		WireTrace:  cfg.Log.WireTrace,
		Main:       mainOpts,
		Ext:        extOptions(),
	})
	if err != nil {
		return err
	}
	defer pair.Close()

	startCtx, cancel := withReadyTimeout(ctx)
	err = pair.Start(startCtx, builtinExtensions()...)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start extension host: %w", err)
	}

	reports := make([]foldingReport, 0, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		doc, err := pair.Main.Models.Open(ctx, mainthread.FileURI(abs), "")
		if err != nil {
			return err
		}
		ranges, err := pair.Main.Languages.ProvideFoldingRanges(ctx, doc.URI)
		if err != nil {
			logger.Warn("folding failed", zap.String("uri", doc.URI), zap.Error(err))
		}
		reports = append(reports, foldingReport{URI: doc.URI, Language: doc.LanguageID, Ranges: ranges})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
