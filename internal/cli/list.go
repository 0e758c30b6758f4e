package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memscope/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Run:   runList,
	}

	addScopeFlags(cmd)
	cmd.Flags().String("type", "", "Filter by type")
	cmd.Flags().IntP("limit", "l", 20, "Max results (0 for all)")
	cmd.Flags().Bool("ids-only", false, "Only output record IDs")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	svc := openService()
	defer svc.Close()

	records, err := svc.GetAll(cmd.Context(), store.ListParams{
		Scope: scopeFromFlags(cmd),
		Type:  typeFromFlags(cmd),
		Limit: limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, r := range records {
			fmt.Fprintln(cmd.OutOrStdout(), r.ID)
		}
		return
	}

	printOut(cmd, records)
}
