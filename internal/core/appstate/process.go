package appstate

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/core/pipeline"
	"github.com/hay-kot/mqview/internal/core/topictree"
)

// Decoder turns payload bytes into display text.
type Decoder func([]byte) string

// UTF8Decoder decodes payloads as UTF-8, replacing invalid sequences with
// U+FFFD.
func UTF8Decoder(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// MessageEvent is one message seen on a broker.
type MessageEvent struct {
	Source    string
	Topic     string
	Payload   []byte
	Timestamp string
}

// MessageEventFrom converts wire params into an event.
func MessageEventFrom(p jsonrpc.MessageParams) MessageEvent {
	return MessageEvent{Source: p.Source, Topic: p.Topic, Payload: p.Payload, Timestamp: p.Timestamp}
}

// ConnectionStatus reports whether a broker is connected.
type ConnectionStatus struct {
	Source    string
	Connected bool
}

// ProcessMessage folds one message into the state.
//
// Unknown sources get a fresh, connected entry, and the first source seen
// becomes the selected broker. The payload is inserted into the broker's tree,
// the selected topic is re-resolved by id and the broker's pipeline advanced.
func ProcessMessage(state *State, ev MessageEvent, decode Decoder) *State {
	entry, ok := state.Broker(ev.Source)
	if !ok {
		entry = state.add(ev.Source, &BrokerEntry{Connected: true})
	}
	entry.Connected = true

	if state.SelectedBroker == "" {
		state.SelectedBroker = ev.Source
	}

	if decode == nil {
		decode = UTF8Decoder
	}
	text := decode(ev.Payload)

	entry.Topics = topictree.InsertTopic(entry.Topics, ev.Topic, text, ev.Timestamp)

	if entry.SelectedTopic != "" {
		if n, ok := topictree.Find(entry.Topics, entry.SelectedTopic); ok {
			entry.SelectedTopic = n.ID
		}
	}

	pipeline.Advance(entry.Pipeline, ev.Topic, ev.Timestamp)

	return state
}

// ProcessBrokerRemoval soft-deletes the broker key. Unknown keys are ignored.
func ProcessBrokerRemoval(state *State, key string) *State {
	if entry, ok := state.Broker(key); ok {
		entry.MarkedForDeletion = true
	}
	return state
}

// ProcessConnectionStatus records a connection change for a known broker.
// Unknown sources are ignored.
func ProcessConnectionStatus(state *State, status ConnectionStatus) *State {
	if entry, ok := state.Broker(status.Source); ok {
		entry.Connected = status.Connected
	}
	return state
}

// ProcessBrokers ensures an entry exists for every key, leaving existing
// entries untouched. New entries start disconnected.
func ProcessBrokers(state *State, keys []string) *State {
	for _, key := range keys {
		if _, ok := state.Broker(key); !ok {
			state.add(key, &BrokerEntry{})
		}
	}
	return state
}
// ProcessConfigs parses a JSON array of saved commands. Ids in the input are
// discarded and replaced by the command's position.
func ProcessConfigs(data []byte) ([]Command, error) {
	var params []jsonrpc.CommandParams
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parse commands: %w", err)
	}
	return CommandsFrom(params), nil
}

// CommandsFrom numbers commands by position.
func CommandsFrom(params []jsonrpc.CommandParams) []Command {
	out := make([]Command, len(params))
	for i, p := range params {
		out[i] = Command{ID: strconv.Itoa(i), Name: p.Name, Topic: p.Topic, Payload: p.Payload}
	}
	return out
}

// ProcessPipelines numbers saved pipelines by position.
func ProcessPipelines(params []jsonrpc.PipelineParams) []SavedPipeline {
	out := make([]SavedPipeline, len(params))
	for i, p := range params {
		topics := make([]string, len(p.Pipeline))
		for j, e := range p.Pipeline {
			topics[j] = e.Topic
		}
		out[i] = SavedPipeline{ID: i, Name: p.Name, Topics: topics}
	}
	return out
}

// SelectBroker makes key the selected broker when it is known.
func SelectBroker(state *State, key string) *State {
	if _, ok := state.Broker(key); ok {
		state.SelectedBroker = key
	}
	return state
}

// SelectTopic selects the node id on the current broker. An id that is not
// in the tree clears the selection.
func SelectTopic(state *State, id string) *State {
	entry, ok := state.Current()
	if !ok {
		return state
	}
	if _, found := topictree.Find(entry.Topics, id); found {
		entry.SelectedTopic = id
	} else {
		entry.SelectedTopic = ""
	}
	return state
}

// SetPipeline replaces the current broker's pipeline.
func SetPipeline(state *State, steps []pipeline.Step) *State {
	if entry, ok := state.Current(); ok {
		entry.Pipeline = steps
	}
	return state
}

// EvictMarked drops every soft-deleted broker. If the selected broker is
// dropped, the first remaining broker becomes selected; any other selection,
// including none, is left alone.
func EvictMarked(state *State) *State {
	selectedEvicted := false
	state.order = slices.DeleteFunc(state.order, func(key string) bool {
		entry := state.Brokers[key]
		if entry != nil && entry.MarkedForDeletion {
			delete(state.Brokers, key)
			if key == state.SelectedBroker {
				selectedEvicted = true
			}
			return true
		}
		return false
	})

	if selectedEvicted {
		state.SelectedBroker = ""
		if len(state.order) > 0 {
			state.SelectedBroker = state.order[0]
		}
	}
	return state
}
