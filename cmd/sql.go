package cmd

import (
	"database/sql"
	"fmt"

	"github.com/agentic-research/contentgraph/internal/refsvtab"
	"github.com/spf13/cobra"
)

var sqlTable string

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run SQL against the graph's reference edges",
	Example: `  contentgraph sql "SELECT source, field FROM refs WHERE target = 'authors:jane'"
  contentgraph sql "SELECT target, count(*) AS n FROM refs GROUP BY target ORDER BY n DESC LIMIT 10"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		ctx := cmd.Context()

		g, err := e.cache.Get(ctx, e.cfg.Graph)
		if err != nil {
			return err
		}
		db, err := refsvtab.Open(ctx, g, sqlTable)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }() // safe to ignore

		rows, err := db.QueryContext(ctx, args[0])
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer func() { _ = rows.Close() }() // safe to ignore

		out, err := scanRows(rows)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), out)
	},
}

// scanRows reads every row into a column-name keyed map.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func init() {
	sqlCmd.Flags().StringVar(&sqlTable, "table", "refs", "Name of the edge table")
	rootCmd.AddCommand(sqlCmd)
}
