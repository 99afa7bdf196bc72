// Command exthost runs either side of the extension host protocol, or both
// in one process for debugging.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopware/exthost/internal/config"
)

var (
	configPath string
	workspace  string

	cfg    config.Config
	logger *zap.Logger

	rootCmd = &cobra.Command{
		Use:           "exthost",
		Short:         "Isolated extension host for Shopware tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default <workspace>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace folder")

	rootCmd.AddCommand(serveCmd, runCmd, inprocCmd, astCmd)
}

func setup() error {
	root, err := filepath.Abs(workspace)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace: %w", err)
	}
	path := configPath
	if path == "" {
		path = filepath.Join(root, config.FileName)
	}

	cfg, err = config.Load(path, root)
	if err != nil {
		return err
	}
	logger, err = cfg.NewLogger()
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded", zap.String("path", path), zap.String("workspace", cfg.Workspace))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "exthost:", err)
		os.Exit(1)
	}
}
