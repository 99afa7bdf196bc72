package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopware/exthost/internal/mainthread"
	"github.com/shopware/exthost/internal/syntax"
)

var astLanguage string

var astCmd = &cobra.Command{
	Use:   "ast <file>",
	Short: "Print the syntax tree of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		lang := astLanguage
		if lang == "" {
			lang = mainthread.LanguageForPath(args[0])
		}
		tree, err := syntax.NewRegistry().Parse(lang, src)
		if err != nil {
			return err
		}
		defer tree.Close()
		return syntax.Dump(cmd.OutOrStdout(), tree.RootNode(), src)
	},
}

func init() {
	astCmd.Flags().StringVarP(&astLanguage, "language", "l", "", "language id (guessed from the extension by default)")
}
