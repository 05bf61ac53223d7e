package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importReplace bool

var importCmd = &cobra.Command{
	Use:   "import <content-dir> <output.db>",
	Short: "Load a content directory into a SQLite content database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, output := args[0], args[1]
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.ContentDir, cfg.SQLite = source, ""
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }() // safe to ignore

		store := content.NewFileStore(osfs.New(source))
		cols, err := store.Collections(ctx)
		if err != nil {
			return err
		}
		var entries []*content.Entry
		for _, c := range cols {
			list, err := store.ListEntries(ctx, c)
			if err != nil {
				return err
			}
			entries = append(entries, list...)
		}

		if importReplace {
			if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", output, err)
			}
		}
		start := time.Now()
		if err := content.WriteSQLite(ctx, output, entries); err != nil {
			return err
		}
		logger.Info("import complete",
			zap.Int("collections", len(cols)),
			zap.Int("entries", len(entries)),
			zap.Duration("took", time.Since(start)))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries from %d collections into %s\n", len(entries), len(cols), output)
		return err
	},
}

func init() {
	importCmd.Flags().BoolVar(&importReplace, "replace", true, "Remove an existing output database first")
	rootCmd.AddCommand(importCmd)
}
