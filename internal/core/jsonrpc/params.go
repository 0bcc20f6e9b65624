package jsonrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Payload is raw message bytes. It is encoded as an array of numbers, and
// decodes from either that form or a base64 string.
type Payload []byte

func (p Payload) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}

	var buf bytes.Buffer
	buf.Grow(len(p)*4 + 2)
	buf.WriteByte('[')
	for i, b := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%d", b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		*p = raw
		return nil
	}

	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("decode payload: byte %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	*p = out
	return nil
}

// MessageParams carries one MQTT publish seen by the bridge.
type MessageParams struct {
	Source    string  `json:"source"`
	Topic     string  `json:"topic"`
	Payload   Payload `json:"payload"`
	Timestamp string  `json:"timestamp"`
}

// ConnectionStatusParams reports a broker connection change.
type ConnectionStatusParams struct {
	Source    string `json:"source"`
	Connected bool   `json:"connected"`
}

// CommandParams is a saved publish shortcut. ID is assigned by the receiver
// and is usually absent on the wire.
type CommandParams struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// PipelineEntry is one topic of a saved pipeline.
type PipelineEntry struct {
	Topic string `json:"topic"`
}

// PipelineParams is a named, saved pipeline template.
type PipelineParams struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Pipeline []PipelineEntry `json:"pipeline"`
}

// HostParams addresses a broker by host:port.
type HostParams struct {
	Hostname string `json:"hostname"`
}

// PublishParams asks the bridge to publish on a broker.
type PublishParams struct {
	Host    string `json:"host"`
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// NameParams addresses a saved command or pipeline.
type NameParams struct {
	Name string `json:"name"`
}
