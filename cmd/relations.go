package cmd

import (
	"fmt"
	"strings"

	"github.com/agentic-research/contentgraph/internal/graph"
	"github.com/agentic-research/contentgraph/internal/relations"
	"github.com/spf13/cobra"
)

var (
	relTypes   string
	relDepth   int
	relResolve bool
	relAll     bool
)

var relationsCmd = &cobra.Command{
	Use:   "relations <collection> <id>",
	Short: "Show how an entry relates to the rest of the content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		ctx := cmd.Context()
		collection, id := args[0], args[1]

		if relAll {
			rels, err := e.relations.GetAllRelatedEntries(ctx, collection, id, relations.RelatedOptions{
				IncludeIndirect: relDepth > 1,
				MaxDepth:        relDepth,
				Resolve:         relResolve,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rels)
		}

		var types []graph.RelationType
		for _, name := range strings.Split(relTypes, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			t, ok := graph.ParseType(name)
			if !ok {
				return fmt.Errorf("unknown relation type %q", name)
			}
			types = append(types, t)
		}

		m, err := e.relations.GetRelationsWith(ctx, e.relations.WithDepth(relDepth), collection, id, types...)
		if err != nil {
			return err
		}
		if relResolve {
			for _, rels := range [][]graph.Relation{m.References, m.ReferencedBy, m.Parent, m.Children, m.Siblings, m.Ancestors, m.Descendants, m.Indirect} {
				if err := e.relations.ResolveRelations(ctx, rels); err != nil {
					return err
				}
			}
		}
		return writeJSON(cmd.OutOrStdout(), m)
	},
}

func init() {
	relationsCmd.Flags().StringVarP(&relTypes, "types", "t", "", "Comma-separated relation types to keep")
	relationsCmd.Flags().IntVar(&relDepth, "depth", 1, "Indirect relation depth; above 1 includes indirect relations")
	relationsCmd.Flags().BoolVar(&relResolve, "resolve", false, "Hydrate related entries")
	relationsCmd.Flags().BoolVar(&relAll, "all", false, "Print the deduplicated union of related entries")
	rootCmd.AddCommand(relationsCmd)
}
