package appstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/core/pipeline"
)

const (
	t0 = "2024-05-01T10:00:00Z"
	t1 = "2024-05-01T10:00:00.300Z"
)

func msg(source, topic, payload, ts string) MessageEvent {
	return MessageEvent{Source: source, Topic: topic, Payload: []byte(payload), Timestamp: ts}
}

func TestProcessMessage_NewBroker(t *testing.T) {
	state := New()

	state = ProcessMessage(state, msg("h1:1883", "topic1", "Hello", t0), UTF8Decoder)

	assert.Equal(t, "h1:1883", state.SelectedBroker)
	entry, ok := state.Broker("h1:1883")
	require.True(t, ok)
	assert.True(t, entry.Connected)
	require.Len(t, entry.Topics, 1)

	n := entry.Topics[0]
	assert.Equal(t, "topic1", n.ID)
	assert.Equal(t, 1, n.MessageCount)
	assert.Nil(t, n.Children)
	require.Len(t, n.Messages, 1)
	assert.Equal(t, "Hello", n.Messages[0].Text)
	assert.Equal(t, int64(0), n.Messages[0].DeltaT)
}

func TestProcessMessage_KeepsFirstSelectedBroker(t *testing.T) {
	state := New()
	state = ProcessMessage(state, msg("a", "t", "1", t0), UTF8Decoder)
	state = ProcessMessage(state, msg("b", "t", "2", t1), UTF8Decoder)

	assert.Equal(t, "a", state.SelectedBroker)
	assert.Equal(t, []string{"a", "b"}, state.BrokerKeys())
}

func TestProcessMessage_MarksKnownBrokerConnected(t *testing.T) {
	state := ProcessBrokers(New(), []string{"a"})
	entry, _ := state.Broker("a")
	require.False(t, entry.Connected)

	state = ProcessMessage(state, msg("a", "t", "1", t0), UTF8Decoder)
	assert.True(t, entry.Connected)
}

func TestProcessMessage_UsesDecoder(t *testing.T) {
	upper := func(b []byte) string { return "decoded:" + string(b) }

	state := ProcessMessage(New(), msg("a", "t", "x", t0), upper)
	entry, _ := state.Broker("a")
	assert.Equal(t, "decoded:x", entry.Topics[0].Messages[0].Text)
}

func TestProcessMessage_ResolvesSelectedTopic(t *testing.T) {
	state := New()
	state = ProcessMessage(state, msg("a", "x/y", "1", t0), UTF8Decoder)
	state = SelectTopic(state, "x/y")

	state = ProcessMessage(state, msg("a", "x/y", "2", t1), UTF8Decoder)

	n, ok := state.SelectedNode("a")
	require.True(t, ok)
	assert.Equal(t, "x/y", n.ID)
	assert.Equal(t, 2, n.MessageCount)
	assert.Equal(t, int64(300), n.Messages[0].DeltaT)
}

func TestProcessMessage_AdvancesPipeline(t *testing.T) {
	state := ProcessMessage(New(), msg("a", "boot", "-", t0), UTF8Decoder)
	state = SetPipeline(state, pipeline.FromTopics([]string{"x", "y"}))

	state = ProcessMessage(state, msg("a", "y", "early", t0), UTF8Decoder)
	entry, _ := state.Broker("a")
	assert.Equal(t, 0, pipeline.Next(entry.Pipeline))

	state = ProcessMessage(state, msg("a", "x", "1", t0), UTF8Decoder)
	state = ProcessMessage(state, msg("a", "y", "2", t1), UTF8Decoder)

	require.True(t, pipeline.Done(entry.Pipeline))
	assert.Equal(t, int64(0), *entry.Pipeline[0].DeltaT)
	assert.Equal(t, int64(300), *entry.Pipeline[1].DeltaT)
}

func TestProcessMessage_PipelineIsPerBroker(t *testing.T) {
	state := ProcessMessage(New(), msg("a", "boot", "-", t0), UTF8Decoder)
	state = SetPipeline(state, pipeline.FromTopics([]string{"x"}))

	state = ProcessMessage(state, msg("b", "x", "1", t0), UTF8Decoder)

	entry, _ := state.Broker("a")
	assert.False(t, entry.Pipeline[0].Stamped())
}

func TestUTF8Decoder(t *testing.T) {
	assert.Equal(t, "ok", UTF8Decoder([]byte("ok")))
	assert.Equal(t, "a\uFFFDb", UTF8Decoder([]byte{'a', 0xff, 'b'}))
}

func TestProcessBrokerRemoval(t *testing.T) {
	state := ProcessBrokers(New(), []string{"a", "b"})

	t.Run("unknown key is a noop", func(t *testing.T) {
		state = ProcessBrokerRemoval(state, "x")
		_, ok := state.Broker("x")
		assert.False(t, ok)
		for _, key := range state.BrokerKeys() {
			entry, _ := state.Broker(key)
			assert.False(t, entry.MarkedForDeletion, key)
		}
	})

	t.Run("known key is marked", func(t *testing.T) {
		state = ProcessBrokerRemoval(state, "a")
		a, _ := state.Broker("a")
		b, _ := state.Broker("b")
		assert.True(t, a.MarkedForDeletion)
		assert.False(t, b.MarkedForDeletion)
	})
}

func TestProcessConnectionStatus(t *testing.T) {
	state := ProcessBrokers(New(), []string{"a"})

	state = ProcessConnectionStatus(state, ConnectionStatus{Source: "a", Connected: true})
	a, _ := state.Broker("a")
	assert.True(t, a.Connected)

	state = ProcessConnectionStatus(state, ConnectionStatus{Source: "missing", Connected: true})
	_, ok := state.Broker("missing")
	assert.False(t, ok)
}

func TestProcessBrokers_KeepsExisting(t *testing.T) {
	state := ProcessMessage(New(), msg("a", "t", "1", t0), UTF8Decoder)

	state = ProcessBrokers(state, []string{"a", "b"})

	a, _ := state.Broker("a")
	b, _ := state.Broker("b")
	assert.True(t, a.Connected)
	assert.Len(t, a.Topics, 1)
	assert.False(t, b.Connected)
	assert.Empty(t, b.Topics)
	assert.Equal(t, []string{"a", "b"}, state.BrokerKeys())
}

func TestProcessConfigs(t *testing.T) {
	data := []byte(`[
		{"id":"9","name":"on","topic":"lamp/set","payload":"1"},
		{"id":"3","name":"off","topic":"lamp/set","payload":"0"}
	]`)

	cmds, err := ProcessConfigs(data)
	require.NoError(t, err)
	assert.Equal(t, []Command{
		{ID: "0", Name: "on", Topic: "lamp/set", Payload: "1"},
		{ID: "1", Name: "off", Topic: "lamp/set", Payload: "0"},
	}, cmds)

	_, err = ProcessConfigs([]byte(`{not json`))
	assert.Error(t, err)
}

func TestProcessPipelines(t *testing.T) {
	got := ProcessPipelines([]jsonrpc.PipelineParams{
		{ID: "x", Name: "boot", Pipeline: []jsonrpc.PipelineEntry{{Topic: "a"}, {Topic: "b"}}},
		{Name: "empty"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, SavedPipeline{ID: 0, Name: "boot", Topics: []string{"a", "b"}}, got[0])
	assert.Equal(t, 1, got[1].ID)
	assert.Len(t, got[0].Steps(), 2)
}

func TestSelectTopic(t *testing.T) {
	state := ProcessMessage(New(), msg("a", "x/y", "1", t0), UTF8Decoder)

	state = SelectTopic(state, "x")
	n, ok := state.SelectedNode("a")
	require.True(t, ok)
	assert.Equal(t, "x", n.ID)

	state = SelectTopic(state, "nope")
	_, ok = state.SelectedNode("a")
	assert.False(t, ok)
}

func TestSelectBroker(t *testing.T) {
	state := ProcessBrokers(New(), []string{"a", "b"})

	state = SelectBroker(state, "b")
	assert.Equal(t, "b", state.SelectedBroker)

	state = SelectBroker(state, "zzz")
	assert.Equal(t, "b", state.SelectedBroker)
}

func TestEvictMarked(t *testing.T) {
	state := ProcessBrokers(New(), []string{"a", "b", "c"})
	state = SelectBroker(state, "a")
	state = ProcessBrokerRemoval(state, "a")
	state = ProcessBrokerRemoval(state, "c")

	state = EvictMarked(state)

	assert.Equal(t, []string{"b"}, state.BrokerKeys())
	assert.Equal(t, "b", state.SelectedBroker)

	state = ProcessBrokerRemoval(state, "b")
	state = EvictMarked(state)
	assert.Empty(t, state.BrokerKeys())
	assert.Empty(t, state.SelectedBroker)
}

func TestEvictMarked_KeepsUnrelatedSelection(t *testing.T) {
	tests := []struct {
		name     string
		selected string
	}{
		{name: "no selection", selected: ""},
		{name: "live broker selected", selected: "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := ProcessBrokers(New(), []string{"a", "b", "c"})
			state.SelectedBroker = tt.selected
			state = ProcessBrokerRemoval(state, "b")

			state = EvictMarked(state)

			assert.Equal(t, []string{"a", "c"}, state.BrokerKeys())
			assert.Equal(t, tt.selected, state.SelectedBroker)
		})
	}
}
