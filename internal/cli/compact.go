package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Summarise a scope now",
		Long:  "Write a summary record of the newest memories in a scope without waiting for the turn counter.",
		Run:   runCompact,
	}

	addScopeFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runCompact(cmd *cobra.Command, args []string) {
	svc := openService()
	defer svc.Close()

	scope := scopeFromFlags(cmd)
	summary, err := svc.Compact(cmd.Context(), scope)
	if err != nil {
		exitErr("compact", err)
	}
	if summary == nil {
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"scope":%q,"summary":null}`+"\n", scope.String())
		return
	}

	printOut(cmd, summary)
}
