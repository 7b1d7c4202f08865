package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/wirechart/internal/query"
)

var queryCmd = &cobra.Command{
	Use:   "query <snapshot>",
	Short: "Run a jq expression over a saved snapshot",
	Long: `Evaluate a jq expression against a JSON or YAML snapshot written by analyze.
Each result is printed as one line of JSON.

Examples:
  wirechart query output/shapes.json -e '.statistics[] | select(.count > 0)'
  wirechart query output/shapes.yaml -e '.nodes_edges | keys'
  wirechart query output/shapes.json -e '.statistics[].topic' --unique`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := query.Options{Deduplicate: queryFlags.unique, MaxResults: queryFlags.limit}
		return runQuery(cmd.Context(), args[0], queryFlags.expr, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var queryFlags struct {
	expr   string
	unique bool
	limit  int
}

func init() {
	queryCmd.Flags().StringVarP(&queryFlags.expr, "expr", "e", ".", "jq expression")
	queryCmd.Flags().BoolVarP(&queryFlags.unique, "unique", "u", false, "drop duplicate results")
	queryCmd.Flags().IntVarP(&queryFlags.limit, "limit", "l", 0, "maximum number of results (0 = unlimited)")
}

func runQuery(ctx context.Context, path, expr string, opts query.Options, w, errw io.Writer) error {
	res, err := query.NewEngine().QueryFile(ctx, path, expr, opts)
	if err != nil {
		return err
	}
	for _, v := range res.Values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("format result: %w", err)
		}
		fmt.Fprintln(w, string(b))
	}
	for _, msg := range res.Errors {
		fmt.Fprintf(errw, "warning: %s\n", msg)
	}
	return nil
}
