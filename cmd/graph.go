package cmd

import (
	"github.com/spf13/cobra"
)

var (
	graphIndirect bool
	graphDepth    int
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build the relationship graph and print its statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		opts := e.cfg.Graph
		if cmd.Flags().Changed("indirect") {
			opts.IncludeIndirect = graphIndirect
		}
		if cmd.Flags().Changed("depth") {
			opts.MaxIndirectDepth = graphDepth
		}
		g, err := e.cache.Get(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), g.Stats())
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphIndirect, "indirect", false, "Compute indirect relations")
	graphCmd.Flags().IntVar(&graphDepth, "depth", 2, "Maximum indirect relation depth")
	rootCmd.AddCommand(graphCmd)
}
