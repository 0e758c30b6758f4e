package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memscope/internal/query"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [description]",
		Short: "Assemble relevant memories for a task",
		Long:  "Search and score memories, then greedily pack them into a token budget.",
		Run:   runContext,
	}

	addScopeFlags(cmd)
	cmd.Flags().String("type", "", "Filter by type")
	cmd.Flags().IntP("budget", "b", query.DefaultBudget, "Max tokens in output")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")

	svc := openService()
	defer svc.Close()

	result, err := svc.Context(cmd.Context(), query.ContextParams{
		Query:  strings.Join(args, " "),
		Scope:  scopeFromFlags(cmd),
		Type:   typeFromFlags(cmd),
		Budget: budget,
	})
	if err != nil {
		exitErr("context", err)
	}

	printOut(cmd, result)
}
