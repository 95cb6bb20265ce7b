package chat

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/api/client"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/monobilisim/logagent/common/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive log feed with a conversational assistant",
		Long: `Opens a terminal session with the log feed on the left and the assistant
on the right. Every answer that carries a filter refreshes the feed.

By default the session talks to the server at server.url. With --local it
runs against an in-memory store seeded with mock logs.`,
		Run: Main,
	}
	cmd.Flags().Bool("local", false, "Use an in-memory store and the built-in assistant")
	return cmd
}

func Main(cmd *cobra.Command, args []string) {
	// The TUI owns the terminal, so logs go to the file only.
	if err := common.Init(false); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	local, _ := cmd.Flags().GetBool("local")
	if err := run(local); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(local bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer client.InstallLogHook("chat")()

	cfg := LoadConfig()
	backend, err := openBackend(ctx, local, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	counter := telemetry.NewCounter("chat")
	sess := NewSession(backend, cfg, counter)
	m := newModel(ctx, sess, counter)

	go m.worker()

	var detach func()
	err = ui.RunApp(m, func(p *tea.Program) {
		detach = m.attach(p)
	})
	detach()
	cancel()

	log.Info().
		Str("component", "chat").
		Interface("errors", counter.Snapshot()).
		Msg("Chat session ended")
	return err
}
