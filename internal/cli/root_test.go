package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memscope/internal/model"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addScopeFlags(cmd)
	cmd.Flags().String("type", "", "")
	cmd.Flags().Float64P("importance", "i", -1, "")
	cmd.Flags().String("meta", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestScopeFromFlags(t *testing.T) {
	cmd := newFlagCmd(t, "--agent", "a1", "-u", "alice")
	assert.Equal(t, model.Scope{AgentID: "a1", UserID: "alice"}, scopeFromFlags(cmd))
}

func TestFlagHelpers(t *testing.T) {
	cmd := newFlagCmd(t, "--type", "episodic", "--meta", `{"source":"cli"}`)
	assert.Equal(t, model.Episodic, typeFromFlags(cmd))
	assert.Equal(t, map[string]any{"source": "cli"}, metaFromFlags(cmd))
	assert.Nil(t, importanceFromFlags(cmd), "unset importance keeps the store default")

	cmd = newFlagCmd(t, "-i", "0.9")
	require.NotNil(t, importanceFromFlags(cmd))
	assert.Equal(t, 0.9, *importanceFromFlags(cmd))
}

func TestPrintOut(t *testing.T) {
	rec := model.Record{ID: "01J", Content: "hi", Scope: model.Scope{UserID: "alice"}, Type: model.Semantic}

	t.Cleanup(func() { formatFlag = "json" })
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			formatFlag = format
			var buf bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&buf)

			printOut(cmd, rec)
			assert.Contains(t, buf.String(), "alice")
			assert.Contains(t, buf.String(), "semantic")
			if format == "json" {
				var parsed map[string]any
				require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
				assert.Equal(t, "alice", parsed["user_id"])
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"add", "ingest", "get", "update", "rm", "list", "search", "context",
		"clear", "compact", "users", "stats", "export", "import", "config"}
	for _, name := range want {
		cmd, _, err := RootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestThresholdFromFlags(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{Use: "search"}
		cmd.Flags().Float64P("threshold", "t", 0, "")
		require.NoError(t, cmd.ParseFlags(args))
		return cmd
	}

	assert.Equal(t, 0.0, thresholdFromFlags(newCmd()), "unset defers to config")
	assert.Equal(t, 0.3, thresholdFromFlags(newCmd("-t", "0.3")))
	assert.Equal(t, -1.0, thresholdFromFlags(newCmd("--threshold", "0")), "explicit zero keeps every score")
}
