package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mqview/internal/client"
	"github.com/hay-kot/mqview/internal/core/appstate"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/core/topictree"
	"github.com/hay-kot/mqview/internal/printer"
)

type TreeCmd struct {
	flags  *Flags
	url    string
	broker string
	filter string
	wait   time.Duration
	values bool
	format string
}

// NewTreeCmd creates a new tree command
func NewTreeCmd(flags *Flags) *TreeCmd {
	return &TreeCmd{flags: flags}
}

// Register adds the tree command to the application
func (cmd *TreeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "tree",
		Usage:     "Print the topic tree of every broker",
		UsageText: "mqview tree [options]",
		Description: `Connects to the bridge, collects messages for --wait, and prints the
topic tree of each broker. The bridge replays its recent history on connect,
so a short wait is usually enough.`,
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
				Usage:       "only print this broker",
				Destination: &cmd.broker,
			},
			&cli.StringFlag{
				Name:        "filter",
				Aliases:     []string{"f"},
				Usage:       "only print topics matching the filter (substring, or glob when it contains *)",
				Destination: &cmd.filter,
			},
			&cli.DurationFlag{
				Name:        "wait",
				Aliases:     []string{"w"},
				Usage:       "how long to collect messages",
				Value:       2 * time.Second,
				Destination: &cmd.wait,
			},
			&cli.BoolFlag{
				Name:        "values",
				Usage:       "show the latest payload of each topic",
				Destination: &cmd.values,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TreeCmd) run(ctx context.Context, c *cli.Command) error {
	url := cmd.flags.bridgeURL(cmd.url)

	conn, err := client.Dial(ctx, log.With().Str("component", "client").Logger(), url)
	if err != nil {
		return fmt.Errorf("connect to bridge at %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	state, err := collect(ctx, conn.Events(), cmd.wait)
	if err != nil {
		return err
	}

	keys := state.BrokerKeys()
	if cmd.broker != "" {
		if _, ok := state.Broker(cmd.broker); !ok {
			return fmt.Errorf("broker %q is not known to the bridge", cmd.broker)
		}
		keys = []string{cmd.broker}
	}

	if cmd.format == "json" {
		return cmd.outputJSON(c, state, keys)
	}

	return cmd.outputText(ctx, state, keys)
}

// collect folds notifications into a fresh state until wait elapses or the
// stream ends. Brokers removed in the meantime are dropped.
func collect(ctx context.Context, events <-chan jsonrpc.Notification, wait time.Duration) (*appstate.State, error) {
	state := appstate.New()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-timer.C:
			return appstate.EvictMarked(state), nil
		case n, ok := <-events:
			if !ok {
				return appstate.EvictMarked(state), nil
			}
			if err := appstate.Apply(state, n, nil); err != nil {
				log.Debug().Err(err).Str("method", n.Method).Msg("skipping frame")
			}
		}
	}
}

func (cmd *TreeCmd) outputText(ctx context.Context, state *appstate.State, keys []string) error {
	p := printer.Ctx(ctx)

	if len(keys) == 0 {
		p.Infof("No brokers connected to the bridge")
		return nil
	}

	for i, key := range keys {
		entry, _ := state.Broker(key)

		if i > 0 {
			p.Printf("")
		}

		status := printer.StatusFailed("disconnected")
		if entry.Connected {
			status = printer.StatusOK("connected")
		}
		p.Section(key)
		p.Printf("%s", status)

		branches := cmd.branches(entry.Topics)
		if len(branches) == 0 {
			p.Infof("No messages")
			continue
		}
		p.Tree(branches)
	}

	return nil
}

// branches converts a topic forest into printable branches, keeping only
// nodes that match the filter or have a matching descendant.
func (cmd *TreeCmd) branches(nodes []*topictree.Node) []printer.Branch {
	out := make([]printer.Branch, 0, len(nodes))
	for _, n := range nodes {
		children := cmd.branches(n.Children)
		if cmd.filter != "" && len(children) == 0 && !matchFilter(n.ID, cmd.filter) {
			continue
		}

		b := printer.Branch{Label: n.Label, Nodes: children}
		if cmd.values {
			if msg, ok := n.Latest(); ok {
				b.Detail = msg.Text
			}
		}
		out = append(out, b)
	}
	return out
}

func matchFilter(id, filter string) bool {
	if strings.Contains(filter, "*") {
		return topictree.MatchGlob(filter, id)
	}
	return topictree.Matches(id, filter)
}

type treeJSON struct {
	Broker    string            `json:"broker"`
	Connected bool              `json:"connected"`
	Topics    []*topictree.Node `json:"topics"`
}

func (cmd *TreeCmd) outputJSON(c *cli.Command, state *appstate.State, keys []string) error {
	out := make([]treeJSON, 0, len(keys))
	for _, key := range keys {
		entry, _ := state.Broker(key)
		topics := entry.Topics
		if topics == nil {
			topics = []*topictree.Node{}
		}
		out = append(out, treeJSON{Broker: key, Connected: entry.Connected, Topics: topics})
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
