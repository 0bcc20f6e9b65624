package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/mqview/internal/broker"
	"github.com/hay-kot/mqview/internal/core/config"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/metrics"
)

type fakeBridge struct {
	mu        sync.Mutex
	hosts     []string
	history   []broker.Message
	lastSeq   uint64
	commands  []jsonrpc.CommandParams
	pipelines []jsonrpc.PipelineParams
	published []string
}

func (b *fakeBridge) Hosts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.hosts...)
}

func (b *fakeBridge) Statuses() []broker.Status {
	out := []broker.Status{}
	for _, h := range b.Hosts() {
		out = append(out, broker.Status{Source: h, Connected: true})
	}
	return out
}

func (b *fakeBridge) History() ([]broker.Message, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history, b.lastSeq
}

func (b *fakeBridge) Commands(ctx context.Context) ([]jsonrpc.CommandParams, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]jsonrpc.CommandParams{}, b.commands...), nil
}

func (b *fakeBridge) Pipelines(ctx context.Context) ([]jsonrpc.PipelineParams, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]jsonrpc.PipelineParams{}, b.pipelines...), nil
}

func (b *fakeBridge) Connect(ctx context.Context, host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hosts = append(b.hosts, host)
	return nil
}

func (b *fakeBridge) Remove(ctx context.Context, host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.hosts {
		if h == host {
			b.hosts = append(b.hosts[:i], b.hosts[i+1:]...)
			return nil
		}
	}
	return broker.ErrUnknownBroker
}

func (b *fakeBridge) Publish(ctx context.Context, host, topic, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, host+" "+topic+"="+payload)
	return nil
}

func (b *fakeBridge) SaveCommand(ctx context.Context, cmd jsonrpc.CommandParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, cmd)
	return nil
}

func (b *fakeBridge) RemoveCommand(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = nil
	return nil
}

func (b *fakeBridge) SavePipeline(ctx context.Context, p jsonrpc.PipelineParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipelines = append(b.pipelines, p)
	return nil
}

func (b *fakeBridge) RemovePipeline(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipelines = nil
	return nil
}

type testServer struct {
	srv    *Server
	http   *httptest.Server
	bridge *fakeBridge
}

func newTestServer(t *testing.T, bridge *fakeBridge) *testServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.ServerConfig{Metrics: true}
	srv := New(zerolog.Nop(), cfg, bridge, metrics.New())
	go func() { _ = srv.Hub().Run(ctx) }()

	hs := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(hs.Close)

	return &testServer{srv: srv, http: hs, bridge: bridge}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) jsonrpc.Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	n, err := jsonrpc.Decode(data)
	require.NoError(t, err)
	return n
}

func readReplay(t *testing.T, conn *websocket.Conn, n int) []jsonrpc.Notification {
	t.Helper()
	out := make([]jsonrpc.Notification, n)
	for i := range out {
		out[i] = readFrame(t, conn)
	}
	return out
}

func TestHub_ReplayOrder(t *testing.T) {
	bridge := &fakeBridge{
		hosts:     []string{"a:1883"},
		commands:  []jsonrpc.CommandParams{{Name: "ping", Topic: "p", Payload: "1"}},
		pipelines: []jsonrpc.PipelineParams{{Name: "flow", Pipeline: []jsonrpc.PipelineEntry{{Topic: "x"}}}},
		history: []broker.Message{
			{Seq: 1, Source: "a:1883", Topic: "x", Payload: []byte("1"), Timestamp: "2024-05-01T10:00:00Z"},
			{Seq: 2, Source: "a:1883", Topic: "y", Payload: []byte("2"), Timestamp: "2024-05-01T10:00:01Z"},
		},
		lastSeq: 2,
	}
	ts := newTestServer(t, bridge)
	conn := ts.dial(t)

	frames := readReplay(t, conn, 6)
	methods := make([]string, len(frames))
	for i, f := range frames {
		methods[i] = f.Method
	}
	assert.Equal(t, []string{
		jsonrpc.MethodBrokers,
		jsonrpc.MethodConnectionStatus,
		jsonrpc.MethodCommands,
		jsonrpc.MethodPipelines,
		jsonrpc.MethodMQTTMessage,
		jsonrpc.MethodMQTTMessage,
	}, methods)

	var hosts []string
	require.NoError(t, frames[0].Bind(&hosts))
	assert.Equal(t, []string{"a:1883"}, hosts)

	var first jsonrpc.MessageParams
	require.NoError(t, frames[4].Bind(&first))
	assert.Equal(t, "x", first.Topic)
	assert.Equal(t, []byte("1"), []byte(first.Payload))
}

func TestHub_ConcurrentPeersGetReplay(t *testing.T) {
	bridge := &fakeBridge{
		hosts:   []string{"a:1883"},
		history: []broker.Message{{Seq: 1, Source: "a:1883", Topic: "x", Payload: []byte("1")}},
		lastSeq: 1,
	}
	ts := newTestServer(t, bridge)

	const peers = 8
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conns := make([]*websocket.Conn, peers)
	errs := make([]error, peers)
	var wg sync.WaitGroup
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], _, errs[i] = websocket.DefaultDialer.Dial(url, nil)
		}(i)
	}
	wg.Wait()

	for i, conn := range conns {
		require.NoError(t, errs[i])
		t.Cleanup(func() { _ = conn.Close() })
	}
	for _, conn := range conns {
		frames := readReplay(t, conn, 5)
		assert.Equal(t, jsonrpc.MethodMQTTMessage, frames[4].Method)
	}
}

func TestHub_LiveMessagesSkipReplayed(t *testing.T) {
	bridge := &fakeBridge{
		hosts:   []string{"a:1883"},
		history: []broker.Message{{Seq: 4, Source: "a:1883", Topic: "x", Payload: []byte("old")}},
		lastSeq: 4,
	}
	ts := newTestServer(t, bridge)
	conn := ts.dial(t)
	readReplay(t, conn, 5)

	hub := ts.srv.Hub()
	hub.BrokerMessage(broker.Message{Seq: 4, Source: "a:1883", Topic: "x", Payload: []byte("old")})
	hub.BrokerMessage(broker.Message{Seq: 5, Source: "a:1883", Topic: "x", Payload: []byte("new")})

	n := readFrame(t, conn)
	require.Equal(t, jsonrpc.MethodMQTTMessage, n.Method)

	var msg jsonrpc.MessageParams
	require.NoError(t, n.Bind(&msg))
	assert.Equal(t, "new", string(msg.Payload))
}

func TestHub_StatusFollowsBrokerList(t *testing.T) {
	ts := newTestServer(t, &fakeBridge{})
	conn := ts.dial(t)
	readReplay(t, conn, 3)

	require.NoError(t, ts.bridge.Connect(context.Background(), "b:1883"))
	ts.srv.Hub().BrokerStatus(broker.Status{Source: "b:1883", Connected: true})

	assert.Equal(t, jsonrpc.MethodBrokers, readFrame(t, conn).Method)

	n := readFrame(t, conn)
	require.Equal(t, jsonrpc.MethodConnectionStatus, n.Method)
	var status jsonrpc.ConnectionStatusParams
	require.NoError(t, n.Bind(&status))
	assert.Equal(t, jsonrpc.ConnectionStatusParams{Source: "b:1883", Connected: true}, status)
}

func TestHub_RoutesRequests(t *testing.T) {
	ts := newTestServer(t, &fakeBridge{})
	conn := ts.dial(t)
	readReplay(t, conn, 3)

	send := func(data []byte) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	}

	send(jsonrpc.Connect("c:1883"))
	n := readFrame(t, conn)
	require.Equal(t, jsonrpc.MethodBrokers, n.Method)
	var hosts []string
	require.NoError(t, n.Bind(&hosts))
	assert.Equal(t, []string{"c:1883"}, hosts)

	send([]byte("not json"))
	send([]byte(`{"jsonrpc":"1.0","method":"connect","params":{"hostname":"z:1"}}`))
	send([]byte(`{"jsonrpc":"2.0","method":"bogus"}`))

	send(jsonrpc.SaveCommand("ping", "dev/ping", `{"on":true}`))
	n = readFrame(t, conn)
	require.Equal(t, jsonrpc.MethodCommands, n.Method)
	var cmds []jsonrpc.CommandParams
	require.NoError(t, n.Bind(&cmds))
	require.Len(t, cmds, 1)
	assert.Equal(t, `{"on":true}`, cmds[0].Payload)

	data, err := jsonrpc.SavePipeline("flow", []string{"x", "y"})
	require.NoError(t, err)
	send(data)
	n = readFrame(t, conn)
	require.Equal(t, jsonrpc.MethodPipelines, n.Method)
	var pipelines []jsonrpc.PipelineParams
	require.NoError(t, n.Bind(&pipelines))
	require.Len(t, pipelines, 1)
	assert.Equal(t, []jsonrpc.PipelineEntry{{Topic: "x"}, {Topic: "y"}}, pipelines[0].Pipeline)

	send(jsonrpc.Publish("c:1883", "a/b", "hello"))
	send(jsonrpc.Remove("c:1883"))
	n = readFrame(t, conn)
	require.Equal(t, jsonrpc.MethodBrokerRemoval, n.Method)
	var removed string
	require.NoError(t, n.Bind(&removed))
	assert.Equal(t, "c:1883", removed)

	ts.bridge.mu.Lock()
	defer ts.bridge.mu.Unlock()
	assert.Empty(t, ts.bridge.hosts)
	assert.Equal(t, []string{"c:1883 a/b=hello"}, ts.bridge.published)
}

func TestHub_BroadcastToEveryPeer(t *testing.T) {
	ts := newTestServer(t, &fakeBridge{})
	a := ts.dial(t)
	b := ts.dial(t)
	readReplay(t, a, 3)
	readReplay(t, b, 3)

	ts.srv.Hub().BrokerMessage(broker.Message{Seq: 1, Source: "h:1", Topic: "t", Payload: []byte("x")})

	assert.Equal(t, jsonrpc.MethodMQTTMessage, readFrame(t, a).Method)
	assert.Equal(t, jsonrpc.MethodMQTTMessage, readFrame(t, b).Method)
	assert.Equal(t, 2, ts.srv.Hub().Peers())

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool { return ts.srv.Hub().Peers() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, &fakeBridge{})

	resp, err := http.Get(ts.http.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mqview_")
}
