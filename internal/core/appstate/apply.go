package appstate

import (
	"fmt"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
)

// Apply folds one bridge notification into the state. Removed brokers are only
// marked; the caller decides when to EvictMarked. A marked broker that shows up
// again in a broker list is evicted first so it starts fresh. Unknown methods
// and undecodable params return an error and leave the state untouched.
func Apply(state *State, n jsonrpc.Notification, decode Decoder) error {
	switch n.Method {
	case jsonrpc.MethodMQTTMessage:
		var p jsonrpc.MessageParams
		if err := n.Bind(&p); err != nil {
			return err
		}
		ProcessMessage(state, MessageEventFrom(p), decode)

	case jsonrpc.MethodConnectionStatus:
		var p jsonrpc.ConnectionStatusParams
		if err := n.Bind(&p); err != nil {
			return err
		}
		ProcessConnectionStatus(state, ConnectionStatus{Source: p.Source, Connected: p.Connected})

	case jsonrpc.MethodBrokers:
		var keys []string
		if err := n.Bind(&keys); err != nil {
			return err
		}
		for _, key := range keys {
			if entry, ok := state.Broker(key); ok && entry.MarkedForDeletion {
				EvictMarked(state)
				break
			}
		}
		ProcessBrokers(state, keys)

	case jsonrpc.MethodBrokerRemoval:
		var key string
		if err := n.Bind(&key); err != nil {
			return err
		}
		ProcessBrokerRemoval(state, key)

	case jsonrpc.MethodCommands:
		cmds, err := ProcessConfigs(n.Params)
		if err != nil {
			return err
		}
		state.Commands = cmds

	case jsonrpc.MethodPipelines:
		var p []jsonrpc.PipelineParams
		if err := n.Bind(&p); err != nil {
			return err
		}
		state.Pipelines = ProcessPipelines(p)

	default:
		return fmt.Errorf("unknown method %q: %w", n.Method, jsonrpc.ErrInvalidFrame)
	}
	return nil
}
