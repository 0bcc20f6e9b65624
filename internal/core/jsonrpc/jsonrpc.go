// Package jsonrpc defines the JSON-RPC 2.0 notification frames exchanged
// between the bridge and its peers, along with their parameter shapes.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the only protocol version accepted on the wire.
const Version = "2.0"

// Bridge to peer methods.
const (
	MethodMQTTMessage      = "mqtt_message"
	MethodConnectionStatus = "mqtt_connection_status"
	MethodBrokers          = "mqtt_brokers"
	MethodBrokerRemoval    = "broker_removal"
	MethodCommands         = "commands"
	MethodPipelines        = "pipelines"
)

// Peer to bridge methods.
const (
	MethodConnect        = "connect"
	MethodRemove         = "remove"
	MethodPublish        = "publish"
	MethodSaveCommand    = "save_command"
	MethodRemoveCommand  = "remove_command"
	MethodSavePipeline   = "save_pipeline"
	MethodRemovePipeline = "remove_pipeline"
)

// ErrInvalidFrame is returned by Decode for frames that are not JSON-RPC 2.0
// notifications.
var ErrInvalidFrame = errors.New("invalid json-rpc frame")

// Notification is a JSON-RPC 2.0 request without an id.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// New builds a notification, marshaling params with encoding/json.
func New(method string, params any) (Notification, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Notification{}, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return Notification{JSONRPC: Version, Method: method, Params: raw}, nil
}

// Encode marshals the notification.
func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}

// Bind unmarshals the notification params into v.
func (n Notification) Bind(v any) error {
	if len(n.Params) == 0 {
		return fmt.Errorf("%s: missing params: %w", n.Method, ErrInvalidFrame)
	}
	if err := json.Unmarshal(n.Params, v); err != nil {
		return fmt.Errorf("%s: decode params: %w", n.Method, err)
	}
	return nil
}

// Decode parses a single frame.
func Decode(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if n.JSONRPC != Version {
		return Notification{}, fmt.Errorf("%w: version %q", ErrInvalidFrame, n.JSONRPC)
	}
	if n.Method == "" {
		return Notification{}, fmt.Errorf("%w: missing method", ErrInvalidFrame)
	}
	return n, nil
}
