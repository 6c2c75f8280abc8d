package main

import (
	"fmt"
	"strings"

	"hybrid_copilot/internal/app"
	"hybrid_copilot/internal/nodes"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

var (
	searchQuery string
	searchK     int
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the tables and columns of the dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withToolbox(cmd, func(box *nodes.Toolbox) error {
			out, err := box.Run(cmd.Context(), nodes.ToolSchema, `{}`)
			if err != nil {
				return err
			}
			var result nodes.SchemaOutput
			if err := sonic.UnmarshalString(out, &result); err != nil {
				return fmt.Errorf("failed to decode schema: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), result.Summary)
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Print the passages ranked for a query",
	Long: `Ranks the document corpus for a free text query.

Examples:
  copilot search -q "return window beverages"
  copilot search -q "average order value" -k 2`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(searchQuery) == "" {
			return fmt.Errorf("--query is required")
		}
		return withToolbox(cmd, func(box *nodes.Toolbox) error {
			args, err := sonic.MarshalString(nodes.SearchDocsInput{Query: searchQuery, K: searchK})
			if err != nil {
				return err
			}
			out, err := box.Run(cmd.Context(), nodes.ToolSearchDocs, args)
			if err != nil {
				return err
			}
			var result nodes.SearchDocsOutput
			if err := sonic.UnmarshalString(out, &result); err != nil {
				return fmt.Errorf("failed to decode search results: %w", err)
			}
			if len(result.Passages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No passages found")
				return nil
			}
			for i, p := range result.Passages {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. [%s] score=%.3f\n%s\n\n", i+1, p.ID, p.Score, p.Content)
			}
			return nil
		})
	},
}

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a SQL statement against the dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToolbox(cmd, func(box *nodes.Toolbox) error {
			in, err := sonic.MarshalString(nodes.SQLQueryInput{Query: args[0]})
			if err != nil {
				return err
			}
			out, err := box.Run(cmd.Context(), nodes.ToolSQLQuery, in)
			if err != nil {
				return err
			}
			var result nodes.SQLQueryOutput
			if err := sonic.UnmarshalString(out, &result); err != nil {
				return fmt.Errorf("failed to decode query result: %w", err)
			}
			if result.Error != "" {
				return fmt.Errorf("query failed: %s", result.Error)
			}
			pretty, err := sonic.ConfigStd.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Search text")
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 4, "Number of passages")
}

// withToolbox opens the dataset and corpus for a one-shot tool command
func withToolbox(cmd *cobra.Command, fn func(*nodes.Toolbox) error) error {
	ctx := cmd.Context()

	env, settings, err := app.LoadSettings(configPath)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, env, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	box, err := a.Toolbox(ctx)
	if err != nil {
		return err
	}
	return fn(box)
}
