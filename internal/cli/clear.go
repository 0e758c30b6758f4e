package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every memory in a scope",
		Long:  "Delete every memory matching the scope flags. Clearing without a scope needs --all.",
		Run:   runClear,
	}

	addScopeFlags(cmd)
	cmd.Flags().Bool("all", false, "Allow clearing the whole store")

	RootCmd.AddCommand(cmd)
}

func runClear(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")
	scope := scopeFromFlags(cmd)
	if scope.IsZero() && !all {
		exitErr("clear", fmt.Errorf("no scope given (use --agent, --user, --session or --all)"))
	}

	svc := openService()
	defer svc.Close()

	n, err := svc.Clear(cmd.Context(), scope)
	if err != nil {
		exitErr("clear", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"scope":%q,"deleted":%d}`+"\n", scope.String(), n)
}
