package cmd

import (
	"github.com/agentic-research/contentgraph/internal/query"
	"github.com/spf13/cobra"
)

var (
	queryWhere     string
	queryOrderBy   string
	queryDesc      bool
	queryLimit     int
	queryOffset    int
	queryRelations int
	queryCount     bool
)

var queryCmd = &cobra.Command{
	Use:   "query <collection> [collection...]",
	Short: "Query entries across collections",
	Example: `  contentgraph query blog --order-by date --desc --limit 10
  contentgraph query blog docs --where "$.tags[?(@ == 'go')]" --relations 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		b := e.engine.Query(args...)
		if queryWhere != "" {
			b.WherePath(queryWhere)
		}
		if queryOrderBy != "" {
			dir := query.Asc
			if queryDesc {
				dir = query.Desc
			}
			b.OrderByField(queryOrderBy, dir)
		}
		if cmd.Flags().Changed("limit") {
			b.Limit(queryLimit)
		}
		b.Offset(queryOffset)
		if queryRelations > 0 {
			b.WithRelations(true, queryRelations)
		}

		if queryCount {
			n, err := b.Count(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{"total": n})
		}
		res, err := b.Get(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryWhere, "where", "w", "", "JSONPath filter; entries yielding any value match")
	queryCmd.Flags().StringVarP(&queryOrderBy, "order-by", "o", "", "Field path to sort on")
	queryCmd.Flags().BoolVar(&queryDesc, "desc", false, "Sort descending")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "Page size")
	queryCmd.Flags().IntVar(&queryOffset, "offset", 0, "Entries to skip")
	queryCmd.Flags().IntVar(&queryRelations, "relations", 0, "Attach relations up to this depth")
	queryCmd.Flags().BoolVar(&queryCount, "count", false, "Print only the number of matches")
	rootCmd.AddCommand(queryCmd)
}
