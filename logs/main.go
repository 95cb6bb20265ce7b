// Package logs is the command-line side of the log store: search it, import
// JSON-lines files into it and fill it with mock data.
package logs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/api/client"
	"github.com/monobilisim/logagent/common/api/ingest"
	"github.com/monobilisim/logagent/common/api/logstore"
	"github.com/monobilisim/logagent/common/api/server"
	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewLogsCmd() *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Search, import and seed stored logs",
	}
	logsCmd.AddCommand(newSearchCmd(), newImportCmd(), newSeedCmd())
	return logsCmd
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search stored logs",
		Long: `Search stored logs, newest first.

Keyword, level and time range are answered by the store. Source and
metadata filters support wildcards (* and ?); use a backslash to match
them literally.

Examples:
  logagent logs search --keyword login
  logagent logs search --level error --from 2025-01-15 --to "2025-01-16 12:00:00"
  logagent logs search -s "data*" -F request_id=req-1*
  logagent logs search --level error -o table
  logagent logs search --get timestamp --get message
  logagent logs search --remote --keyword payment --ugly`,
		Run: func(cmd *cobra.Command, args []string) {
			executeSearchCmd(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.keyword, "keyword", "k", "", "Case-insensitive substring of message or source")
	cmd.Flags().StringVarP(&flags.level, "level", "l", "", "Filter by level (error, warning, info, debug)")
	cmd.Flags().StringVarP(&flags.from, "from", "f", "", "Filter logs from this date (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)")
	cmd.Flags().StringVarP(&flags.to, "to", "t", "", "Filter logs to this date (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)")
	cmd.Flags().StringVarP(&flags.source, "source", "s", "", "Filter by source name")
	cmd.Flags().StringSliceVarP(&flags.fields, "field", "F", []string{}, "Filter by metadata field (key=value). Can be used multiple times.")
	cmd.Flags().StringSliceVarP(&flags.get, "get", "g", []string{}, "Extract specific field values. Can be used multiple times. Outputs tab-separated values.")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Maximum number of entries (default store.default_limit)")
	cmd.Flags().BoolVar(&flags.remote, "remote", false, "Search through the server at server.url instead of the store")
	cmd.Flags().BoolVarP(&flags.ugly, "ugly", "u", false, "Output raw JSON instead of pretty formatted logs")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output format: table")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 10*time.Second, "Search timeout")
	return cmd
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON-lines log file",
		Long: `Import a JSON-lines log file into the store.

Each line needs a message; level, timestamp and source (or service or
component) are optional and every other key is kept as metadata. With no
file the agent's own log is imported; "-" reads stdin.

With --publish the entries are sent to the AMQP ingest queue instead and
stored by a running server.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			executeImportCmd(cmd.Context(), path, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.publish, "publish", "p", false, "Publish to the ingest queue instead of writing to the store")
	cmd.Flags().IntVarP(&flags.batchSize, "batch-size", "b", 100, "Entries per store write")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert mock log entries",
		Run: func(cmd *cobra.Command, args []string) {
			executeSeedCmd(cmd.Context(), count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 100, "Number of entries")
	return cmd
}

func initCLI() {
	if err := common.Init(false); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func openStore() *logstore.Store {
	cfg := logstore.LoadConfig()
	db, err := logstore.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log store: %v\n", err)
		os.Exit(1)
	}
	return logstore.New(db, cfg.DefaultLimit)
}

// limitSearcher is satisfied by both the store and the server client.
type limitSearcher interface {
	SearchLimit(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error)
}

func executeSearchCmd(ctx context.Context, flags searchFlags) {
	initCLI()

	entries, err := runSearch(ctxOrBackground(ctx), flags, func() (limitSearcher, error) {
		if flags.remote {
			return client.New(server.LoadConfig().URL, client.LoadConfig())
		}
		return openStore(), nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	output, err := formatLogs(entries, OutputOptions{
		Ugly:      flags.ugly,
		Table:     flags.output == "table",
		GetFields: flags.get,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting logs: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(output)
}

func runSearch(ctx context.Context, flags searchFlags, open func() (limitSearcher, error)) ([]types.LogEntry, error) {
	q, err := buildQuery(flags)
	if err != nil {
		return nil, err
	}
	fields, err := parseFieldFilters(flags.fields)
	if err != nil {
		return nil, err
	}

	searcher, err := open()
	if err != nil {
		return nil, err
	}

	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	entries, err := searcher.SearchLimit(ctx, q, flags.limit)
	if err != nil {
		return nil, err
	}
	return filterLogs(entries, LogFilter{Source: flags.source, Fields: fields}), nil
}

func executeImportCmd(ctx context.Context, path string, flags importFlags) {
	initCLI()
	ctx = ctxOrBackground(ctx)

	in, name, err := openInput(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	var write func(context.Context, []types.LogEntry) error
	if flags.publish {
		pub, err := ingest.NewPublisher(ingest.LoadConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to ingest queue: %v\n", err)
			os.Exit(1)
		}
		defer pub.Close()
		write = publishWriter(pub)
	} else {
		write = storeWriter(openStore())
	}

	read, skipped, err := importEntries(ctx, in, flags.batchSize, write)

	log.Info().
		Str("component", "logs").
		Str("operation", "import").
		Str("input", name).
		Int("imported", read).
		Int("skipped", skipped).
		Bool("published", flags.publish).
		Msg("Import finished")

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error after %d entries: %v\n", read, err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d entries from %s (%d lines skipped)\n", read, name, skipped)
}

func executeSeedCmd(ctx context.Context, count int) {
	initCLI()

	n, err := openStore().Seed(ctxOrBackground(ctx), count)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding store: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Inserted %d mock entries\n", n)
}
