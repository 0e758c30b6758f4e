package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memscope/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON or YAML",
		Long:  "Export memories oldest first in the --format encoding. Filter with the scope flags.",
		Run:   runExport,
	}

	addScopeFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")

	svc := openService()
	defer svc.Close()

	records, err := store.Export(cmd.Context(), svc.Store(), scopeFromFlags(cmd))
	if err != nil {
		exitErr("export", err)
	}

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			exitErr("create output", err)
		}
		defer f.Close()
		w = f
	}

	if err := store.Encode(w, records, formatFlag); err != nil {
		exitErr("export", err)
	}
}
