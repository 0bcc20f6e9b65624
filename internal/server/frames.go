package server

import (
	"github.com/hay-kot/mqview/internal/broker"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
)

func encode(method string, params any) ([]byte, error) {
	n, err := jsonrpc.New(method, params)
	if err != nil {
		return nil, err
	}
	return n.Encode()
}

func messageParams(m broker.Message) jsonrpc.MessageParams {
	return jsonrpc.MessageParams{
		Source:    m.Source,
		Topic:     m.Topic,
		Payload:   m.Payload,
		Timestamp: m.Timestamp,
	}
}

func statusParams(s broker.Status) jsonrpc.ConnectionStatusParams {
	return jsonrpc.ConnectionStatusParams{Source: s.Source, Connected: s.Connected}
}

func nonNil(hosts []string) []string {
	if hosts == nil {
		return []string{}
	}
	return hosts
}
