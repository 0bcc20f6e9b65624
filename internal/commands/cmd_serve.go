package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mqview/internal/bridge"
	"github.com/hay-kot/mqview/internal/broker"
	"github.com/hay-kot/mqview/internal/metrics"
	"github.com/hay-kot/mqview/internal/server"
)

type ServeCmd struct {
	flags   *Flags
	listen  string
	static  string
	brokers []string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the MQTT bridge",
		UsageText: "mqview serve [options]",
		Description: `Connects to every configured and remembered broker and serves the
message stream to WebSocket peers at /ws.

Brokers passed with --broker are connected and remembered for the next run.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "listen",
				Aliases:     []string{"l"},
				Usage:       "address to listen on (overrides server.listen)",
				Sources:     cli.EnvVars("MQVIEW_LISTEN"),
				Destination: &cmd.listen,
			},
			&cli.StringFlag{
				Name:        "static",
				Usage:       "directory of static assets served at / (overrides server.static_dir)",
				Destination: &cmd.static,
			},
			&cli.StringSliceFlag{
				Name:        "broker",
				Aliases:     []string{"b"},
				Usage:       "broker host:port to connect on start (repeatable)",
				Destination: &cmd.brokers,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := *cmd.flags.Config
	if cmd.listen != "" {
		cfg.Server.Listen = cmd.listen
	}
	if cmd.static != "" {
		cfg.Server.StaticDir = cmd.static
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Server.Metrics {
		m = metrics.New()
	}

	var (
		brokerLog = log.With().Str("component", "broker").Logger()
		bridgeLog = log.With().Str("component", "bridge").Logger()
		serverLog = log.With().Str("component", "server").Logger()
	)

	manager := broker.NewManager(brokerLog, cfg.Bridge, broker.NewPahoDialer(brokerLog, cfg.Bridge), m)
	svc := bridge.NewFromConfig(bridgeLog, &cfg, manager)
	defer svc.Close()

	srv := server.New(serverLog, cfg.Server, svc, m)
	manager.SetListener(srv.Hub())

	if err := svc.Start(ctx, cfg.Brokers); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	for _, host := range cmd.brokers {
		if err := svc.Connect(ctx, host); err != nil {
			return fmt.Errorf("broker %s: %w", host, err)
		}
	}

	log.Info().Str("listen", cfg.Server.Listen).Msg("bridge listening")

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}
