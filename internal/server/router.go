package server

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
)

// route handles one frame sent by a peer. Malformed frames and failed
// requests are logged and otherwise ignored.
func (h *Hub) route(ctx context.Context, data []byte) {
	if !gjson.ValidBytes(data) {
		h.log.Warn().Int("bytes", len(data)).Msg("ignoring malformed frame")
		return
	}

	frame := gjson.ParseBytes(data)
	if v := frame.Get("jsonrpc").String(); v != jsonrpc.Version {
		h.log.Warn().Str("version", v).Msg("ignoring frame with unsupported version")
		return
	}

	method := frame.Get("method").String()
	params := frame.Get("params")
	h.metrics.RecordFrame(method)

	log := h.log.With().Str("method", method).Logger()

	var err error
	switch method {
	case jsonrpc.MethodConnect:
		host := params.Get("hostname").String()
		if err = h.bridge.Connect(ctx, host); err == nil {
			h.BroadcastBrokers()
		}

	case jsonrpc.MethodRemove:
		host := params.Get("hostname").String()
		if err = h.bridge.Remove(ctx, host); err == nil {
			h.Broadcast(jsonrpc.MethodBrokerRemoval, host)
		}

	case jsonrpc.MethodPublish:
		err = h.bridge.Publish(ctx,
			params.Get("host").String(),
			params.Get("topic").String(),
			params.Get("payload").String(),
		)

	case jsonrpc.MethodSaveCommand:
		cmd := jsonrpc.CommandParams{
			Name:    params.Get("name").String(),
			Topic:   params.Get("topic").String(),
			Payload: params.Get("payload").String(),
		}
		if err = h.bridge.SaveCommand(ctx, cmd); err == nil {
			h.BroadcastCommands(ctx)
		}

	case jsonrpc.MethodRemoveCommand:
		if err = h.bridge.RemoveCommand(ctx, params.Get("name").String()); err == nil {
			h.BroadcastCommands(ctx)
		}

	case jsonrpc.MethodSavePipeline:
		p := jsonrpc.PipelineParams{Name: params.Get("name").String()}
		for _, step := range params.Get("pipeline").Array() {
			p.Pipeline = append(p.Pipeline, jsonrpc.PipelineEntry{Topic: step.Get("topic").String()})
		}
		if err = h.bridge.SavePipeline(ctx, p); err == nil {
			h.BroadcastPipelines(ctx)
		}

	case jsonrpc.MethodRemovePipeline:
		if err = h.bridge.RemovePipeline(ctx, params.Get("name").String()); err == nil {
			h.BroadcastPipelines(ctx)
		}

	default:
		log.Warn().Msg("ignoring unknown method")
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("request failed")
		return
	}
	log.Debug().Msg("request handled")
}
