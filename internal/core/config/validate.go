package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

func (c *Config) fieldErrors() criterio.FieldErrorsBuilder {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}

	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = errs.Append("server.listen", fmt.Errorf("invalid address %q: %w", c.Server.Listen, err))
	}

	if c.Bridge.KeepAlive < time.Second {
		errs = errs.Append("bridge.keep_alive", fmt.Errorf("must be at least 1s, got %s", c.Bridge.KeepAlive))
	}
	if c.Bridge.ConnectTimeout < 0 {
		errs = errs.Append("bridge.connect_timeout", fmt.Errorf("cannot be negative"))
	}
	if c.Bridge.MaxPayloadBytes < 1 {
		errs = errs.Append("bridge.max_payload_bytes", fmt.Errorf("must be at least 1"))
	}
	if c.Bridge.HistoryLimit < 0 {
		errs = errs.Append("bridge.history_limit", fmt.Errorf("cannot be negative"))
	}

	if err := validateWebsocketURL(c.Client.URL); err != nil {
		errs = errs.Append("client.url", err)
	}

	for i, b := range c.Brokers {
		if err := ValidateBrokerAddr(b); err != nil {
			errs = errs.Append(fmt.Sprintf("brokers[%d]", i), err)
		}
	}

	return errs
}

// ValidateDeep performs Validate plus checks against the filesystem: the
// config file, the data directory and the static asset directory.
func (c *Config) ValidateDeep(configPath string) error {
	errs := c.fieldErrors()

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.IsDir() {
				errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
			}
		} else if !os.IsNotExist(err) {
			errs = errs.Append("config", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
		}
	}

	if c.Server.StaticDir != "" {
		info, err := os.Stat(c.Server.StaticDir)
		switch {
		case err != nil:
			errs = errs.Append("server.static_dir", fmt.Errorf("cannot access %s: %w", c.Server.StaticDir, err))
		case !info.IsDir():
			errs = errs.Append("server.static_dir", fmt.Errorf("%s is not a directory", c.Server.StaticDir))
		}
	}

	return errs.ToError()
}

// Warnings returns non-fatal issues with the configuration.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Bridge.HistoryLimit == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Bridge",
			Item:     "history_limit",
			Message:  "history replay is disabled; clients only see messages received after they connect",
		})
	}

	if !c.Bridge.AutoReconnect {
		warnings = append(warnings, ValidationWarning{
			Category: "Bridge",
			Item:     "auto_reconnect",
			Message:  "brokers stay disconnected after a connection loss until re-added",
		})
	}

	seen := make(map[string]bool, len(c.Brokers))
	for _, b := range c.Brokers {
		if seen[b] {
			warnings = append(warnings, ValidationWarning{
				Category: "Brokers",
				Item:     b,
				Message:  "listed more than once",
			})
		}
		seen[b] = true
	}

	return warnings
}

// ValidateBrokerAddr checks that addr is a host:port pair.
func ValidateBrokerAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid broker address %q: %w", addr, err)
	}
	if host == "" || port == "" {
		return fmt.Errorf("invalid broker address %q: expected host:port", addr)
	}
	return nil
}

func validateWebsocketURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
