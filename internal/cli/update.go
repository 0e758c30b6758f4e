package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memscope/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a memory's content, importance or metadata",
		Long:  "Update a memory in place. Its ID, scope, type and creation time are kept.",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().String("content", "", "New content")
	cmd.Flags().Float64P("importance", "i", -1, "New importance in [0, 1]")
	cmd.Flags().String("meta", "", "New JSON metadata (replaces the old map)")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	var p store.UpdateParams
	if cmd.Flags().Changed("content") {
		content, _ := cmd.Flags().GetString("content")
		p.Content = &content
	}
	p.Importance = importanceFromFlags(cmd)
	p.Metadata = metaFromFlags(cmd)

	if p.Content == nil && p.Importance == nil && p.Metadata == nil {
		exitErr("update", fmt.Errorf("nothing to update (use --content, --importance or --meta)"))
	}

	svc := openService()
	defer svc.Close()

	rec, err := svc.Update(cmd.Context(), args[0], p)
	if err != nil {
		exitErr("update", err)
	}

	printOut(cmd, rec)
}
