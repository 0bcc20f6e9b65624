package doctor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hay-kot/mqview/internal/broker"
)

const dialTimeout = 3 * time.Second

// BrokerCheck reports whether each broker accepts TCP connections.
type BrokerCheck struct {
	hosts []string
}

// NewBrokerCheck creates a new broker reachability check.
func NewBrokerCheck(hosts []string) *BrokerCheck {
	return &BrokerCheck{hosts: hosts}
}

func (c *BrokerCheck) Name() string {
	return "Brokers"
}

func (c *BrokerCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if len(c.hosts) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "Brokers configured",
			Status: StatusWarn,
			Detail: "no brokers configured or remembered",
		})
		return result
	}

	d := net.Dialer{Timeout: dialTimeout}
	for _, host := range c.hosts {
		item := CheckItem{Label: host, Status: StatusPass, Detail: "reachable"}

		addr, err := tcpAddr(host)
		if err == nil {
			var conn net.Conn
			conn, err = d.DialContext(ctx, "tcp", addr)
			if err == nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			item.Status = StatusWarn
			item.Detail = err.Error()
		}

		result.Items = append(result.Items, item)
	}

	return result
}

func tcpAddr(host string) (string, error) {
	raw, err := broker.BrokerURL(host)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// BridgeCheck reports whether a bridge is answering at the client URL.
type BridgeCheck struct {
	url    string
	client *http.Client
}

// NewBridgeCheck creates a new bridge health check for the given ws:// URL.
func NewBridgeCheck(wsURL string) *BridgeCheck {
	return &BridgeCheck{
		url:    wsURL,
		client: &http.Client{Timeout: dialTimeout},
	}
}

func (c *BridgeCheck) Name() string {
	return "Bridge"
}

func (c *BridgeCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	err := c.probe(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.url,
			Status: StatusWarn,
			Detail: "bridge not reachable: " + err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{Label: c.url, Status: StatusPass, Detail: "healthy"})
	return result
}

func (c *BridgeCheck) probe(ctx context.Context) error {
	health, err := HealthURL(c.url)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, health, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// HealthURL maps a bridge WebSocket URL to its /healthz endpoint.
func HealthURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = "/healthz"
	u.RawQuery = ""
	return u.String(), nil
}
