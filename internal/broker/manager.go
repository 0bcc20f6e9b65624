// Package broker holds the bridge's MQTT connections, one per broker host,
// and keeps a bounded per-topic history for replay to late peers.
package broker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mqview/internal/core/config"
	"github.com/hay-kot/mqview/internal/metrics"
	"github.com/hay-kot/mqview/pkg/timestamp"
)

// ErrUnknownBroker is returned for operations on a host that is not
// connected through the manager.
var ErrUnknownBroker = errors.New("unknown broker")

// PayloadLimitFormat replaces payloads above the size limit.
const PayloadLimitFormat = "Payload size limit exceeded: %d.\nThe message is probably fine, but it is too large to be displayed."

// Message is a publish seen on a broker. Seq increases by one for every
// message the manager receives, across all brokers.
type Message struct {
	Seq       uint64
	Source    string
	Topic     string
	Payload   []byte
	Timestamp string
}

// Status is a connection change of a broker.
type Status struct {
	Source    string
	Connected bool
}

// Listener receives broker events. Calls are made without the manager's lock
// held.
type Listener interface {
	BrokerMessage(Message)
	BrokerStatus(Status)
}

type record struct {
	seq       uint64
	payload   []byte
	timestamp string
}

type broker struct {
	host      string
	conn      Conn
	connected bool
	topics    map[string][]record
}

// Manager owns all broker connections.
type Manager struct {
	log     zerolog.Logger
	cfg     config.BridgeConfig
	dial    Dialer
	metrics *metrics.Metrics
	now     func() string

	mu       sync.RWMutex
	brokers  map[string]*broker
	order    []string
	seq      uint64
	listener Listener
}

// NewManager creates a manager. m may be nil.
func NewManager(log zerolog.Logger, cfg config.BridgeConfig, dial Dialer, m *metrics.Metrics) *Manager {
	return &Manager{
		log:     log,
		cfg:     cfg,
		dial:    dial,
		metrics: m,
		now:     timestamp.Now,
		brokers: make(map[string]*broker),
	}
}

// SetListener sets the receiver of broker events.
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// Connect opens a connection to host. Connecting to a known host is a no-op.
// A failed first attempt leaves the host registered as disconnected.
func (m *Manager) Connect(ctx context.Context, host string) error {
	m.mu.Lock()
	if _, ok := m.brokers[host]; ok {
		m.mu.Unlock()
		m.log.Debug().Str("broker", host).Msg("already connected")
		return nil
	}

	conn, err := m.dial(host, Handlers{
		OnConnect:        func() { m.setStatus(host, true) },
		OnConnectionLost: func(err error) { m.connectionLost(host, err) },
		OnMessage:        func(topic string, payload []byte) { m.receive(host, topic, payload) },
	})
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("dial %s: %w", host, err)
	}

	m.brokers[host] = &broker{host: host, conn: conn, topics: make(map[string][]record)}
	m.order = append(m.order, host)
	m.mu.Unlock()

	m.log.Info().Str("broker", host).Msg("connecting")

	if err := conn.Connect(ctx); err != nil {
		m.log.Warn().Err(err).Str("broker", host).Msg("connect failed")
		m.setStatus(host, false)
		return fmt.Errorf("connect %s: %w", host, err)
	}
	return nil
}

// Remove disconnects host and forgets its history.
func (m *Manager) Remove(host string) error {
	m.mu.Lock()
	b, ok := m.brokers[host]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", host, ErrUnknownBroker)
	}
	delete(m.brokers, host)
	m.order = slices.DeleteFunc(m.order, func(h string) bool { return h == host })
	m.mu.Unlock()

	b.conn.Disconnect()
	m.metrics.ForgetBroker(host)
	m.log.Info().Str("broker", host).Msg("removed")
	return nil
}

// Publish sends payload to topic on host.
func (m *Manager) Publish(ctx context.Context, host, topic string, payload []byte) error {
	m.mu.RLock()
	b, ok := m.brokers[host]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", host, ErrUnknownBroker)
	}

	if err := b.conn.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", host, err)
	}
	m.metrics.RecordPublish(host)
	return nil
}

// Hosts returns the connected hosts in the order they were added.
func (m *Manager) Hosts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Connected reports the connection state of host.
func (m *Manager) Connected(host string) (connected bool, known bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.brokers[host]
	if !ok {
		return false, false
	}
	return b.connected, true
}

// Statuses returns the connection state of every host in the order they
// were added.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.order))
	for _, host := range m.order {
		out = append(out, Status{Source: host, Connected: m.brokers[host].connected})
	}
	return out
}

// History returns the retained messages of every broker, grouped by broker in
// host order and oldest first within a broker, along with the Seq of the
// newest message received so far. Messages delivered to the listener with a
// higher Seq are not part of the snapshot.
func (m *Manager) History() ([]Message, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Message
	for _, host := range m.order {
		b := m.brokers[host]

		type item struct {
			topic string
			rec   record
		}
		var items []item
		for topic, recs := range b.topics {
			for _, r := range recs {
				items = append(items, item{topic: topic, rec: r})
			}
		}
		sort.Slice(items, func(i, j int) bool { return items[i].rec.seq < items[j].rec.seq })

		for _, it := range items {
			out = append(out, Message{
				Seq:       it.rec.seq,
				Source:    host,
				Topic:     it.topic,
				Payload:   it.rec.payload,
				Timestamp: it.rec.timestamp,
			})
		}
	}
	return out, m.seq
}

// Close disconnects every broker.
func (m *Manager) Close() {
	m.mu.Lock()
	brokers := make([]*broker, 0, len(m.order))
	for _, host := range m.order {
		brokers = append(brokers, m.brokers[host])
	}
	m.brokers = make(map[string]*broker)
	m.order = nil
	m.mu.Unlock()

	for _, b := range brokers {
		b.conn.Disconnect()
	}
}

func (m *Manager) receive(host, topic string, payload []byte) {
	size := len(payload)
	truncated := size > m.cfg.MaxPayloadBytes
	if truncated {
		payload = fmt.Appendf(nil, PayloadLimitFormat, size)
		m.log.Debug().Str("broker", host).Str("topic", topic).Int("size", size).Msg("payload size limit exceeded")
	}

	ts := m.now()

	m.mu.Lock()
	b, ok := m.brokers[host]
	if !ok {
		m.mu.Unlock()
		return
	}
	b.connected = true
	m.seq++
	seq := m.seq
	if limit := m.cfg.HistoryLimit; limit > 0 {
		recs := append(b.topics[topic], record{seq: seq, payload: payload, timestamp: ts})
		if len(recs) > limit {
			recs = recs[len(recs)-limit:]
		}
		b.topics[topic] = recs
	}
	l := m.listener
	m.mu.Unlock()

	m.metrics.RecordMessage(host, size, truncated)

	if l != nil {
		l.BrokerMessage(Message{Seq: seq, Source: host, Topic: topic, Payload: payload, Timestamp: ts})
	}
}

func (m *Manager) connectionLost(host string, err error) {
	m.log.Warn().Err(err).Str("broker", host).Msg("connection lost")
	m.setStatus(host, false)
}

func (m *Manager) setStatus(host string, connected bool) {
	m.mu.Lock()
	b, ok := m.brokers[host]
	if !ok {
		m.mu.Unlock()
		return
	}
	b.connected = connected
	l := m.listener
	m.mu.Unlock()

	if connected {
		m.log.Info().Str("broker", host).Msg("connected")
	}
	m.metrics.RecordBrokerStatus(host, connected)

	if l != nil {
		l.BrokerStatus(Status{Source: host, Connected: connected})
	}
}
