package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "User (tenant) management",
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a user, or return the existing one",
		Args:  cobra.ExactArgs(1),
		Run:   runUsersCreate,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Run:   runUsersList,
	}

	rmCmd := &cobra.Command{
		Use:   "rm <id-or-name>",
		Short: "Delete a user and all of their memories",
		Args:  cobra.ExactArgs(1),
		Run:   runUsersRm,
	}

	usersCmd.AddCommand(createCmd, listCmd, rmCmd)
	RootCmd.AddCommand(usersCmd)
}

func runUsersCreate(cmd *cobra.Command, args []string) {
	svc := openService()
	defer svc.Close()

	tn, err := svc.RegisterUser(cmd.Context(), args[0])
	if err != nil {
		exitErr("create user", err)
	}

	printOut(cmd, tn)
}

func runUsersList(cmd *cobra.Command, args []string) {
	svc := openService()
	defer svc.Close()

	users, err := svc.Users(cmd.Context())
	if err != nil {
		exitErr("list users", err)
	}

	printOut(cmd, users)
}

func runUsersRm(cmd *cobra.Command, args []string) {
	svc := openService()
	defer svc.Close()

	n, err := svc.DeleteUser(cmd.Context(), args[0])
	if err != nil {
		exitErr("delete user", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"user":%q,"deleted":%d}`+"\n", args[0], n)
}
