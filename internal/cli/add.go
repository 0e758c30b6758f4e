package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memscope/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin. Long content is chunked.",
		Run:   runAdd,
	}

	addScopeFlags(cmd)
	cmd.Flags().String("type", "", "Type: episodic, semantic, procedural (default untyped)")
	cmd.Flags().Float64P("importance", "i", -1, "Importance in [0, 1] (default 0.5)")
	cmd.Flags().String("meta", "", "JSON metadata")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	content := strings.TrimSpace(readContent(args))
	if content == "" {
		exitErr("add", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	svc := openService()
	defer svc.Close()

	res, err := svc.Add(cmd.Context(), store.AddParams{
		Content:    content,
		Scope:      scopeFromFlags(cmd),
		Type:       typeFromFlags(cmd),
		Importance: importanceFromFlags(cmd),
		Metadata:   metaFromFlags(cmd),
	})
	if err != nil {
		exitErr("add", err)
	}

	printOut(cmd, res)
}

// importanceFromFlags returns nil unless --importance was given.
func importanceFromFlags(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("importance") {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64("importance")
	return &v
}
