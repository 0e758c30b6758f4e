package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memscope/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON or YAML",
		Long:  "Import memories (stdin or --input file) in the --format encoding produced by export.",
		Run:   runImport,
	}

	cmd.Flags().StringP("input", "i", "", "Read from file instead of stdin")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	input, _ := cmd.Flags().GetString("input")

	var r io.Reader = os.Stdin
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			exitErr("open input", err)
		}
		defer f.Close()
		r = f
	}

	records, err := store.Decode(r, formatFlag)
	if err != nil {
		exitErr("parse input", err)
	}

	svc := openService()
	defer svc.Close()

	imported, err := store.Import(cmd.Context(), svc.Store(), records)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d}`+"\n", imported)
}
