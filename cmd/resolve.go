package cmd

import (
	"fmt"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <collection> <id>",
	Short: "Print an entry with its references resolved",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		entry, err := e.engine.Find(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%s:%s: %w", args[0], args[1], content.ErrNotFound)
		}
		data, _ := e.refs.ProcessData(cmd.Context(), entry.Data).(map[string]any)
		return writeJSON(cmd.OutOrStdout(), &content.Entry{
			Collection: entry.Collection,
			ID:         entry.ID,
			Data:       data,
		})
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
