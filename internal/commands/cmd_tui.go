package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mqview/internal/client"
	"github.com/hay-kot/mqview/internal/tui"
)

type TuiCmd struct {
	flags *Flags
	url   string
}

// NewTuiCmd creates a new tui command
func NewTuiCmd(flags *Flags) *TuiCmd {
	return &TuiCmd{
		flags: flags,
	}
}

// Flags returns the TUI-specific flags for registration on the root command
func (cmd *TuiCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "url",
			Usage:       "bridge WebSocket URL (overrides client.url)",
			Sources:     cli.EnvVars("MQVIEW_URL"),
			Destination: &cmd.url,
		},
	}
}

// Run executes the TUI. Exported for use as default command.
func (cmd *TuiCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *TuiCmd) run(ctx context.Context, _ *cli.Command) error {
	url := cmd.flags.bridgeURL(cmd.url)

	conn, err := client.Dial(ctx, log.With().Str("component", "client").Logger(), url)
	if err != nil {
		return fmt.Errorf("connect to bridge at %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	m := tui.New(conn, conn.Events(), tui.Options{})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	return nil
}
