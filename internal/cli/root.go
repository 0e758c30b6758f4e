// Package cli implements the memscope CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/memscope/internal/config"
	"github.com/rcliao/memscope/internal/logging"
	"github.com/rcliao/memscope/internal/memory"
	"github.com/rcliao/memscope/internal/model"
)

var (
	dbPath     string
	configPath string
	formatFlag string
	debugFlag  bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memscope",
	Short: "Scoped, multi-tenant memory for agents",
	Long: "A CLI over a scoped memory store. Records are filtered by agent, user and session,\n" +
		"ranked by similarity, chunked on ingestion and periodically compacted.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMSCOPE_DB_PATH or ~/.memscope/memscope.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.memscope/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or yaml")
	RootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if debugFlag {
		cfg.Log.Debug = true
	}
	return cfg
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(
		logging.WithWriter(os.Stderr),
		logging.WithDebug(cfg.Log.Debug),
		logging.WithPretty(cfg.Log.Format == "pretty"),
		logging.WithJSON(cfg.Log.Format == "json"),
	)
}

func openService() *memory.Service {
	cfg := loadConfig()
	svc, err := memory.Open(cfg, newLogger(cfg))
	if err != nil {
		exitErr("open store", err)
	}
	return svc
}

// addScopeFlags registers the scope axis flags shared by most commands.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("agent", "a", "", "Agent ID")
	cmd.Flags().StringP("user", "u", "", "User ID")
	cmd.Flags().StringP("session", "s", "", "Session ID")
}

func scopeFromFlags(cmd *cobra.Command) model.Scope {
	agent, _ := cmd.Flags().GetString("agent")
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	return model.Scope{AgentID: agent, UserID: user, SessionID: session}
}

func typeFromFlags(cmd *cobra.Command) model.MemoryType {
	s, _ := cmd.Flags().GetString("type")
	if s == "" {
		return ""
	}
	t, ok := model.ParseMemoryType(s)
	if !ok {
		exitErr("type", fmt.Errorf("unknown memory type %q (use episodic, semantic, procedural or untyped)", s))
	}
	return t
}

func metaFromFlags(cmd *cobra.Command) map[string]any {
	raw, _ := cmd.Flags().GetString("meta")
	if raw == "" {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		exitErr("parse --meta", err)
	}
	return meta
}

// readContent takes content from args, falling back to piped stdin.
func readContent(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func printOut(cmd *cobra.Command, v any) {
	w := cmd.OutOrStdout()
	switch formatFlag {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		if err := enc.Encode(v); err != nil {
			exitErr("encode output", err)
		}
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			exitErr("encode output", err)
		}
		fmt.Fprintln(w, string(b))
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
