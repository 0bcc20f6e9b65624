package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hay-kot/mqview/internal/core/config"
)

// SubscribeAll is the filter every connection subscribes to.
const SubscribeAll = "#"

const (
	disconnectQuiesce = 250 // milliseconds
	retryInterval     = 5 * time.Second
)

// NewPahoDialer returns a Dialer backed by the Eclipse Paho client. Each
// connection gets a random client id and subscribes to every topic whenever
// it (re)connects.
func NewPahoDialer(log zerolog.Logger, cfg config.BridgeConfig) Dialer {
	return func(host string, h Handlers) (Conn, error) {
		url, err := BrokerURL(host)
		if err != nil {
			return nil, err
		}

		pc := &pahoConn{
			host:      host,
			handlers:  h,
			log:       log.With().Str("broker", host).Logger(),
			waitForIt: !cfg.AutoReconnect,
		}

		opts := mqtt.NewClientOptions().
			AddBroker(url).
			SetClientID(uuid.NewString()).
			SetKeepAlive(cfg.KeepAlive).
			SetConnectTimeout(cfg.ConnectTimeout).
			SetCleanSession(true).
			SetOrderMatters(true).
			SetAutoReconnect(cfg.AutoReconnect).
			SetConnectRetry(cfg.AutoReconnect).
			SetConnectRetryInterval(retryInterval).
			SetMaxReconnectInterval(retryInterval).
			SetOnConnectHandler(pc.onConnect).
			SetConnectionLostHandler(func(_ mqtt.Client, err error) {
				if h.OnConnectionLost != nil {
					h.OnConnectionLost(err)
				}
			})

		pc.client = mqtt.NewClient(opts)
		return pc, nil
	}
}

// BrokerURL turns host:port into a paho broker URL. Hosts that already carry
// a scheme are returned unchanged.
func BrokerURL(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("empty broker host")
	}
	if strings.Contains(host, "://") {
		return host, nil
	}
	return "tcp://" + host, nil
}

type pahoConn struct {
	host      string
	client    mqtt.Client
	handlers  Handlers
	log       zerolog.Logger
	waitForIt bool
}

func (c *pahoConn) onConnect(client mqtt.Client) {
	tok := client.Subscribe(SubscribeAll, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(msg.Topic(), msg.Payload())
		}
	})
	if tok.Wait() && tok.Error() != nil {
		c.log.Error().Err(tok.Error()).Msg("subscribe failed")
		return
	}

	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}
}

// Connect starts connecting. With automatic reconnects enabled the client
// retries in the background and Connect returns immediately; otherwise it
// waits for the first attempt.
func (c *pahoConn) Connect(ctx context.Context) error {
	tok := c.client.Connect()
	if !c.waitForIt {
		return nil
	}
	return wait(ctx, tok)
}

func (c *pahoConn) Publish(ctx context.Context, topic string, payload []byte) error {
	return wait(ctx, c.client.Publish(topic, 0, false, payload))
}

func (c *pahoConn) Disconnect() {
	c.client.Disconnect(disconnectQuiesce)
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
