package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mqview/internal/client"
	"github.com/hay-kot/mqview/internal/core/config"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/printer"
	"github.com/hay-kot/mqview/internal/store/jsonfile"
)

type BrokerCmd struct {
	flags  *Flags
	url    string
	bridge bool
}

// NewBrokerCmd creates a new broker command
func NewBrokerCmd(flags *Flags) *BrokerCmd {
	return &BrokerCmd{flags: flags}
}

// Register adds the broker command to the application
func (cmd *BrokerCmd) Register(app *cli.Command) *cli.Command {
	bridgeFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.BoolFlag{
				Name:        "bridge",
				Usage:       "send the change to a running bridge instead of editing the data directory",
				Destination: &cmd.bridge,
			},
			&cli.StringFlag{
				Name:        "url",
				Usage:       "bridge WebSocket URL (overrides client.url)",
				Sources:     cli.EnvVars("MQVIEW_URL"),
				Destination: &cmd.url,
			},
		}
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "broker",
		Usage: "Manage remembered brokers",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Remember a broker",
				UsageText: "mqview broker add <host:port>",
				Flags:     bridgeFlags(),
				Action:    cmd.runAdd,
			},
			{
				Name:      "rm",
				Usage:     "Forget a broker",
				UsageText: "mqview broker rm <host:port>",
				Flags:     bridgeFlags(),
				Action:    cmd.runRemove,
			},
			{
				Name:      "ls",
				Usage:     "List configured and remembered brokers",
				UsageText: "mqview broker ls",
				Action:    cmd.runList,
			},
		},
	})

	return app
}

func (cmd *BrokerCmd) store() *jsonfile.BrokerStore {
	return jsonfile.NewBrokerStore(cmd.flags.Config.BrokersFile())
}

func (cmd *BrokerCmd) runAdd(ctx context.Context, c *cli.Command) error {
	host := c.Args().First()
	if err := config.ValidateBrokerAddr(host); err != nil {
		return err
	}

	if cmd.bridge {
		if err := cmd.sendToBridge(ctx, jsonrpc.Connect(host)); err != nil {
			return err
		}
		printer.Ctx(ctx).Successf("Asked bridge to connect to %s", host)
		return nil
	}

	if err := cmd.store().Add(ctx, host); err != nil {
		return fmt.Errorf("add broker: %w", err)
	}

	printer.Ctx(ctx).Successf("Remembered %s", host)
	return nil
}

func (cmd *BrokerCmd) runRemove(ctx context.Context, c *cli.Command) error {
	host := c.Args().First()
	if host == "" {
		return errors.New("missing broker host")
	}

	if cmd.bridge {
		if err := cmd.sendToBridge(ctx, jsonrpc.Remove(host)); err != nil {
			return err
		}
		printer.Ctx(ctx).Successf("Asked bridge to remove %s", host)
		return nil
	}

	if err := cmd.store().Remove(ctx, host); err != nil {
		if errors.Is(err, jsonfile.ErrNotFound) {
			return fmt.Errorf("broker %s is not remembered", host)
		}
		return fmt.Errorf("remove broker: %w", err)
	}

	if slices.Contains(cmd.flags.Config.Brokers, host) {
		printer.Ctx(ctx).Warnf("%s is still listed in the config file", host)
	}

	printer.Ctx(ctx).Successf("Forgot %s", host)
	return nil
}

func (cmd *BrokerCmd) sendToBridge(ctx context.Context, frame []byte) error {
	url := cmd.flags.bridgeURL(cmd.url)
	conn, err := client.Dial(ctx, log.With().Str("component", "client").Logger(), url)
	if err != nil {
		return fmt.Errorf("connect to bridge at %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Send(frame)
}

func (cmd *BrokerCmd) runList(ctx context.Context, c *cli.Command) error {
	remembered, err := cmd.store().List(ctx)
	if err != nil {
		return fmt.Errorf("list brokers: %w", err)
	}

	configured := cmd.flags.Config.Brokers
	if len(remembered) == 0 && len(configured) == 0 {
		printer.Ctx(ctx).Infof("No brokers configured")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "HOST\tSOURCE")

	for _, host := range configured {
		source := "config"
		if slices.Contains(remembered, host) {
			source = "config, remembered"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", host, source)
	}
	for _, host := range remembered {
		if !slices.Contains(configured, host) {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", host, "remembered")
		}
	}

	return w.Flush()
}

// knownBrokers returns the configured brokers followed by the remembered
// ones, without duplicates.
func knownBrokers(ctx context.Context, cfg *config.Config) ([]string, error) {
	remembered, err := jsonfile.NewBrokerStore(cfg.BrokersFile()).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list brokers: %w", err)
	}

	hosts := slices.Clone(cfg.Brokers)
	for _, h := range remembered {
		if !slices.Contains(hosts, h) {
			hosts = append(hosts, h)
		}
	}
	return hosts, nil
}
