package broker

import "context"

// Handlers receive events for one connection. They may be called from any
// goroutine, but calls for a single connection are sequential.
type Handlers struct {
	OnConnect        func()
	OnConnectionLost func(err error)
	OnMessage        func(topic string, payload []byte)
}

// Conn is a connection to a single MQTT broker that delivers every topic
// through Handlers.OnMessage once connected.
type Conn interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect()
}

// Dialer creates an unconnected Conn for host.
type Dialer func(host string, h Handlers) (Conn, error)
