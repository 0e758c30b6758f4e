package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	svc := openService()
	defer svc.Close()

	stats, err := svc.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	printOut(cmd, stats)
}
