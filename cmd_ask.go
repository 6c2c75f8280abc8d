package main

import (
	"fmt"
	"strings"

	"hybrid_copilot/internal/app"

	"github.com/spf13/cobra"
)

var (
	askMaxRounds int
	askShowTools bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question interactively with a tool-calling model",
	Long: `Lets the chat model call the db_schema, sql_query and search_docs tools
until it can answer. The provider must support tool calling.

Examples:
  copilot ask "How many products are in the Beverages category?"
  copilot ask --show-tools --max-rounds 6 "What is the return window for beverages?"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(args[0]) == "" {
			return fmt.Errorf("question cannot be empty")
		}
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

		agent, err := a.Agent(ctx, askMaxRounds)
		if err != nil {
			return err
		}

		reply, err := agent.Ask(ctx, args[0])
		if err != nil {
			return err
		}

		if askShowTools && len(reply.ToolCalls) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "tools: %s\n\n", strings.Join(reply.ToolCalls, ", "))
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Answer)
		return nil
	},
}

func init() {
	askCmd.Flags().IntVar(&askMaxRounds, "max-rounds", 4, "Maximum model turns before giving up")
	askCmd.Flags().BoolVar(&askShowTools, "show-tools", false, "Print the tools the model called")
}
