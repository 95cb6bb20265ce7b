package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/api/client"
	"github.com/monobilisim/logagent/common/session"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/monobilisim/logagent/common/types"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Answer is the outcome of one ask: the assistant's reply and the feed it
// left behind.
type Answer struct {
	Reply  string           `json:"reply" yaml:"reply"`
	Query  string           `json:"query" yaml:"query"`
	Logs   []types.LogEntry `json:"logs" yaml:"logs"`
	Errors map[string]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant once and print the matching logs",
		Example: `  logagent ask "show me failed logins"
  logagent ask --local -o json "errors from sentry"`,
		Args: cobra.MinimumNArgs(1),
		Run:  AskMain,
	}
	cmd.Flags().Bool("local", false, "Use an in-memory store and the built-in assistant")
	cmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func AskMain(cmd *cobra.Command, args []string) {
	if err := common.Init(false); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	local, _ := cmd.Flags().GetBool("local")
	format, _ := cmd.Flags().GetString("output")
	if !validFormat(format) {
		fmt.Fprintf(os.Stderr, "Unknown output format %q (expected table, json or yaml)\n", format)
		os.Exit(1)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	flushShipper := client.InstallLogHook("ask")

	cfg := LoadConfig()
	backend, err := openBackend(ctx, local, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer backend.Close()

	counter := telemetry.NewCounter("ask")
	answer, err := Ask(ctx, NewSession(backend, cfg, counter), strings.Join(args, " "))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	answer.Errors = counter.Snapshot()

	if err := WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	flushShipper()
}

// Ask runs the initial fetch and one turn, then waits for the feed to settle.
func Ask(ctx context.Context, sess *session.Session, text string) (Answer, error) {
	sess.Start()
	if err := sess.Submit(ctx, text); err != nil {
		return Answer{}, err
	}
	sess.Feed().Wait()

	var reply string
	history := sess.Conversation().History()
	if n := len(history); n > 0 && history[n-1].Role == types.RoleAssistant {
		reply = history[n-1].Content
	}

	state := sess.Feed().State()
	log.Debug().
		Str("component", "chat").
		Str("operation", "ask").
		Str("query", state.Query.String()).
		Int("entries", len(state.Entries)).
		Msg("Ask finished")

	return Answer{Reply: reply, Query: state.Query.String(), Logs: state.Entries}, nil
}

func validFormat(format string) bool {
	switch format {
	case "table", "json", "yaml":
		return true
	}
	return false
}

// WriteAnswer prints a in the given format.
func WriteAnswer(w io.Writer, a Answer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(a); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		fmt.Fprintln(w, a.Reply)
		fmt.Fprintf(w, "\nQuery: %s (%d entries)\n", a.Query, len(a.Logs))
		return WriteTable(w, a.Logs)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteTable renders entries as a table, newest first as returned.
func WriteTable(w io.Writer, entries []types.LogEntry) error {
	table := tablewriter.NewWriter(w)
	table.Header("Time", "Level", "Source", "Message")
	for _, e := range entries {
		if err := table.Append([]string{
			e.Timestamp.Local().Format(time.DateTime),
			string(e.Level),
			e.Source,
			e.Message,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
