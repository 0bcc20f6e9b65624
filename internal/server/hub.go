package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mqview/internal/broker"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/metrics"
)

// Broadcast queue size, large enough to absorb message bursts.
const broadcastQueueSize = 1024

// Bridge is the service the hub replays state from and routes requests to.
type Bridge interface {
	Hosts() []string
	Statuses() []broker.Status
	History() ([]broker.Message, uint64)
	Commands(ctx context.Context) ([]jsonrpc.CommandParams, error)
	Pipelines(ctx context.Context) ([]jsonrpc.PipelineParams, error)

	Connect(ctx context.Context, host string) error
	Remove(ctx context.Context, host string) error
	Publish(ctx context.Context, host, topic, payload string) error
	SaveCommand(ctx context.Context, cmd jsonrpc.CommandParams) error
	RemoveCommand(ctx context.Context, name string) error
	SavePipeline(ctx context.Context, p jsonrpc.PipelineParams) error
	RemovePipeline(ctx context.Context, name string) error
}

// frame is a queued broadcast. seq is the broker message sequence for
// mqtt_message frames and zero for everything else.
type frame struct {
	data []byte
	seq  uint64
}

// Hub tracks connected peers and fans out frames to them. Registration,
// unregistration and broadcasts are all handled by the goroutine running
// Run, so peers never see a live frame before their replay.
type Hub struct {
	log     zerolog.Logger
	bridge  Bridge
	metrics *metrics.Metrics

	peers      map[*Peer]struct{}
	register   chan *Peer
	unregister chan *Peer
	broadcasts chan frame
	done       chan struct{}
	count      atomic.Int64
}

// NewHub creates a hub. m may be nil.
func NewHub(log zerolog.Logger, bridge Bridge, m *metrics.Metrics) *Hub {
	return &Hub{
		log:        log,
		bridge:     bridge,
		metrics:    m,
		peers:      make(map[*Peer]struct{}),
		register:   make(chan *Peer),
		unregister: make(chan *Peer),
		broadcasts: make(chan frame, broadcastQueueSize),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until ctx is cancelled. All peers are closed on
// return.
func (h *Hub) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hub panic: %v\n%s", r, debug.Stack())
		}
		for p := range h.peers {
			p.Close()
			delete(h.peers, p)
		}
		h.count.Store(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-h.register:
			h.handleRegister(ctx, p)
		case p := <-h.unregister:
			h.handleUnregister(p)
		case f := <-h.broadcasts:
			h.doBroadcast(f)
		}
	}
}

// Peers returns the number of registered peers.
func (h *Hub) Peers() int {
	return int(h.count.Load())
}

func (h *Hub) handleRegister(ctx context.Context, p *Peer) {
	p.initial, p.after = h.snapshot(ctx)
	replay := len(p.initial)
	h.peers[p] = struct{}{}
	// p.initial belongs to the write pump once ready is closed.
	close(p.ready)

	n := len(h.peers)
	h.count.Store(int64(n))
	h.metrics.RecordPeers(n)
	h.log.Debug().Str("peer", p.id).Int("replay", replay).Msg("peer registered")
}

func (h *Hub) handleUnregister(p *Peer) {
	if _, ok := h.peers[p]; !ok {
		return
	}
	delete(h.peers, p)
	p.Close()

	n := len(h.peers)
	h.count.Store(int64(n))
	h.metrics.RecordPeers(n)
	h.log.Debug().Str("peer", p.id).Msg("peer unregistered")
}

func (h *Hub) doBroadcast(f frame) {
	for p := range h.peers {
		if f.seq != 0 && f.seq <= p.after {
			continue
		}
		if !p.SafeSend(f.data) {
			h.metrics.RecordDrop()
			h.log.Warn().Str("peer", p.id).Msg("peer send buffer full, frame dropped")
		}
	}
}

// snapshot builds the frames a new peer receives before any live frame:
// broker list, connection states, saved commands, saved pipelines and the
// retained message history oldest first.
func (h *Hub) snapshot(ctx context.Context) ([][]byte, uint64) {
	var frames [][]byte
	add := func(method string, params any) {
		data, err := encode(method, params)
		if err != nil {
			h.log.Error().Err(err).Str("method", method).Msg("encode replay frame")
			return
		}
		frames = append(frames, data)
	}

	add(jsonrpc.MethodBrokers, nonNil(h.bridge.Hosts()))
	for _, s := range h.bridge.Statuses() {
		add(jsonrpc.MethodConnectionStatus, statusParams(s))
	}

	if cmds, err := h.bridge.Commands(ctx); err != nil {
		h.log.Error().Err(err).Msg("load commands for replay")
	} else {
		add(jsonrpc.MethodCommands, cmds)
	}

	if pipelines, err := h.bridge.Pipelines(ctx); err != nil {
		h.log.Error().Err(err).Msg("load pipelines for replay")
	} else {
		add(jsonrpc.MethodPipelines, pipelines)
	}

	history, last := h.bridge.History()
	for _, m := range history {
		add(jsonrpc.MethodMQTTMessage, messageParams(m))
	}

	return frames, last
}

func (h *Hub) enqueue(f frame) {
	select {
	case h.broadcasts <- f:
	case <-h.done:
	}
}

// Broadcast queues a notification for every peer.
func (h *Hub) Broadcast(method string, params any) {
	data, err := encode(method, params)
	if err != nil {
		h.log.Error().Err(err).Str("method", method).Msg("encode broadcast")
		return
	}
	h.enqueue(frame{data: data})
}

// BroadcastBrokers sends the current broker list.
func (h *Hub) BroadcastBrokers() {
	h.Broadcast(jsonrpc.MethodBrokers, nonNil(h.bridge.Hosts()))
}

// BroadcastCommands sends the full set of saved commands.
func (h *Hub) BroadcastCommands(ctx context.Context) {
	cmds, err := h.bridge.Commands(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("load commands")
		return
	}
	h.Broadcast(jsonrpc.MethodCommands, cmds)
}

// BroadcastPipelines sends the full set of saved pipelines.
func (h *Hub) BroadcastPipelines(ctx context.Context) {
	pipelines, err := h.bridge.Pipelines(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("load pipelines")
		return
	}
	h.Broadcast(jsonrpc.MethodPipelines, pipelines)
}

// BrokerMessage implements broker.Listener.
func (h *Hub) BrokerMessage(m broker.Message) {
	data, err := encode(jsonrpc.MethodMQTTMessage, messageParams(m))
	if err != nil {
		h.log.Error().Err(err).Msg("encode message")
		return
	}
	h.enqueue(frame{data: data, seq: m.Seq})
}

// BrokerStatus implements broker.Listener. The broker list is sent first so
// peers know the host before its status arrives.
func (h *Hub) BrokerStatus(s broker.Status) {
	h.BroadcastBrokers()
	h.Broadcast(jsonrpc.MethodConnectionStatus, statusParams(s))
}

var _ broker.Listener = (*Hub)(nil)
