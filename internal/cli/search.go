package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memscope/internal/query"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by similarity",
		Long:  "Score every memory in scope against the query and print the best matches.",
		Run:   runSearch,
	}

	addScopeFlags(cmd)
	cmd.Flags().String("type", "", "Filter by type")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config)")
	cmd.Flags().Float64P("threshold", "t", 0, "Minimum score (default from config)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	threshold := thresholdFromFlags(cmd)

	svc := openService()
	defer svc.Close()

	results, err := svc.Search(cmd.Context(), query.SearchParams{
		Query:     strings.Join(args, " "),
		Scope:     scopeFromFlags(cmd),
		Type:      typeFromFlags(cmd),
		Limit:     limit,
		Threshold: threshold,
	})
	if err != nil {
		exitErr("search", err)
	}

	printOut(cmd, results)
}

// thresholdFromFlags returns 0 (the configured default) unless --threshold
// was given. An explicit 0 becomes -1 so it overrides the config.
func thresholdFromFlags(cmd *cobra.Command) float64 {
	if !cmd.Flags().Changed("threshold") {
		return 0
	}
	t, _ := cmd.Flags().GetFloat64("threshold")
	if t == 0 {
		return -1
	}
	return t
}
