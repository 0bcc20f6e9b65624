package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
)

// echoServer writes frames to every connection, then echoes whatever the
// client sends back to it.
func echoServer(t *testing.T, frames ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(hs.Close)
	return "ws" + strings.TrimPrefix(hs.URL, "http")
}

func next(t *testing.T, c *Client) jsonrpc.Notification {
	t.Helper()
	select {
	case n, ok := <-c.Events():
		require.True(t, ok, "events closed")
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return jsonrpc.Notification{}
	}
}

func TestClient_DecodesFrames(t *testing.T) {
	url := echoServer(t,
		`{"jsonrpc":"2.0","method":"mqtt_brokers","params":["a:1883"]}`,
		`garbage`,
		`{"jsonrpc":"2.0","method":"mqtt_message","params":{"source":"a:1883","topic":"t","payload":[104,105],"timestamp":"2024-05-01T10:00:00Z"}}`,
	)

	c, err := Dial(context.Background(), zerolog.Nop(), url)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	n := next(t, c)
	assert.Equal(t, jsonrpc.MethodBrokers, n.Method)

	n = next(t, c)
	require.Equal(t, jsonrpc.MethodMQTTMessage, n.Method)
	var msg jsonrpc.MessageParams
	require.NoError(t, n.Bind(&msg))
	assert.Equal(t, "hi", string(msg.Payload))
}

func TestClient_Send(t *testing.T) {
	url := echoServer(t)

	c, err := Dial(context.Background(), zerolog.Nop(), url)
	require.NoError(t, err)

	require.NoError(t, c.Send(jsonrpc.Connect("b:1883")))
	n := next(t, c)
	assert.Equal(t, jsonrpc.MethodConnect, n.Method)

	var p jsonrpc.HostParams
	require.NoError(t, n.Bind(&p))
	assert.Equal(t, "b:1883", p.Hostname)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send(jsonrpc.Connect("b:1883")), ErrClosed)

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop")
	}
	assert.NoError(t, c.Err())
}

func TestDial_Refused(t *testing.T) {
	_, err := Dial(context.Background(), zerolog.Nop(), "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
}
