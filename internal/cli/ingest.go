package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/memscope/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Chunk a document and store each chunk",
		Long:  "Read a document (or - for stdin), split it into overlapping chunks and store one memory per chunk.",
		Args:  cobra.ExactArgs(1),
		Run:   runIngest,
	}

	addScopeFlags(cmd)
	cmd.Flags().String("type", "semantic", "Type: episodic, semantic, procedural, untyped")
	cmd.Flags().Float64P("importance", "i", -1, "Importance in [0, 1] (default 0.5)")
	cmd.Flags().String("meta", "", "JSON metadata added to every chunk")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	path := args[0]

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		exitErr("read document", err)
	}

	meta := metaFromFlags(cmd)
	if path != "-" {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["source"] = filepath.Base(path)
	}

	svc := openService()
	defer svc.Close()

	res, err := svc.Add(cmd.Context(), store.AddParams{
		Content:    string(data),
		Scope:      scopeFromFlags(cmd),
		Type:       typeFromFlags(cmd),
		Importance: importanceFromFlags(cmd),
		Metadata:   meta,
	})
	if err != nil {
		exitErr("ingest", err)
	}

	printOut(cmd, res)
}
