package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/mqview/internal/client"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/printer"
	"github.com/hay-kot/mqview/internal/store/jsonfile"
)

// ErrNoPayload is returned when pub has neither a payload argument nor piped
// input.
var ErrNoPayload = errors.New("no payload: pass it as an argument or pipe it on stdin")

type PubCmd struct {
	flags   *Flags
	url     string
	broker  string
	topic   string
	command string
	save    string
}

// NewPubCmd creates a new pub command
func NewPubCmd(flags *Flags) *PubCmd {
	return &PubCmd{flags: flags}
}

// Register adds the pub command to the application
func (cmd *PubCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "pub",
		Usage:     "Publish a message through the bridge",
		UsageText: "mqview pub --topic <topic> [options] [payload]",
		Description: `Publishes a payload on a broker held by the bridge. The payload is read
from the first argument, or from stdin when it is piped.

Use --command to replay a saved command and --save to store this publish as a
command for later use.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "bridge WebSocket URL (overrides client.url)",
				Sources:     cli.EnvVars("MQVIEW_URL"),
				Destination: &cmd.url,
			},
			&cli.StringFlag{
				Name:        "broker",
				Aliases:     []string{"b"},
				Usage:       "broker host:port (defaults to the only known broker)",
				Destination: &cmd.broker,
			},
			&cli.StringFlag{
				Name:        "topic",
				Aliases:     []string{"t"},
				Usage:       "topic to publish on",
				Destination: &cmd.topic,
			},
			&cli.StringFlag{
				Name:        "command",
				Usage:       "publish a saved command by name",
				Destination: &cmd.command,
			},
			&cli.StringFlag{
				Name:        "save",
				Usage:       "save this publish as a named command",
				Destination: &cmd.save,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *PubCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	topic, payload, err := cmd.resolve(ctx, c.Args().First(), os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
	if err != nil {
		return err
	}

	host, err := cmd.resolveBroker(ctx)
	if err != nil {
		return err
	}

	url := cmd.flags.bridgeURL(cmd.url)
	conn, err := client.Dial(ctx, log.With().Str("component", "client").Logger(), url)
	if err != nil {
		return fmt.Errorf("connect to bridge at %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Send(jsonrpc.Publish(host, topic, payload)); err != nil {
		return err
	}

	if cmd.save != "" {
		if err := jsonfile.ValidateName(cmd.save); err != nil {
			return err
		}
		if err := conn.Send(jsonrpc.SaveCommand(cmd.save, topic, payload)); err != nil {
			return err
		}
		p.Infof("Saved command %q", cmd.save)
	}

	p.Successf("Published %d bytes to %s on %s", len(payload), topic, host)
	return nil
}

// resolve picks the topic and payload from a saved command, the argument or
// piped input, in that order.
func (cmd *PubCmd) resolve(ctx context.Context, arg string, stdin io.Reader, tty bool) (topic, payload string, err error) {
	topic = cmd.topic

	if cmd.command != "" {
		saved, err := jsonfile.NewCommandStore(cmd.flags.Config.CommandsDir()).Get(ctx, cmd.command)
		if err != nil {
			return "", "", fmt.Errorf("load command: %w", err)
		}
		if topic == "" {
			topic = saved.Topic
		}
		payload = saved.Payload
	}

	switch {
	case arg != "":
		payload = arg
	case cmd.command == "" && !tty:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		payload = strings.TrimSuffix(string(data), "\n")
	case cmd.command == "":
		return "", "", ErrNoPayload
	}

	if topic == "" {
		return "", "", errors.New("missing --topic")
	}

	return topic, payload, nil
}

func (cmd *PubCmd) resolveBroker(ctx context.Context) (string, error) {
	if cmd.broker != "" {
		return cmd.broker, nil
	}

	hosts, err := knownBrokers(ctx, cmd.flags.Config)
	if err != nil {
		return "", err
	}

	switch len(hosts) {
	case 0:
		return "", errors.New("no brokers known: pass --broker")
	case 1:
		return hosts[0], nil
	default:
		return "", fmt.Errorf("%d brokers known: pass --broker", len(hosts))
	}
}
