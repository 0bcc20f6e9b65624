package jsonrpc

import "strings"

// Connect asks the bridge to connect to, and remember, a broker.
func Connect(hostname string) []byte {
	return flat(MethodConnect, "hostname", hostname)
}

// Remove asks the bridge to disconnect and forget a broker.
func Remove(hostname string) []byte {
	return flat(MethodRemove, "hostname", hostname)
}

// Publish asks the bridge to publish payload on topic at host.
func Publish(host, topic, payload string) []byte {
	return flat(MethodPublish, "host", host, "topic", topic, "payload", payload)
}

// SaveCommand stores a named publish shortcut.
func SaveCommand(name, topic, payload string) []byte {
	return flat(MethodSaveCommand, "name", name, "topic", topic, "payload", payload)
}

// RemoveCommand deletes a saved publish shortcut.
func RemoveCommand(name string) []byte {
	return flat(MethodRemoveCommand, "name", name)
}

// RemovePipeline deletes a saved pipeline.
func RemovePipeline(name string) []byte {
	return flat(MethodRemovePipeline, "name", name)
}

// SavePipeline stores a named pipeline made of topics.
func SavePipeline(name string, topics []string) ([]byte, error) {
	entries := make([]PipelineEntry, len(topics))
	for i, t := range topics {
		entries[i] = PipelineEntry{Topic: t}
	}

	n, err := New(MethodSavePipeline, PipelineParams{Name: name, Pipeline: entries})
	if err != nil {
		return nil, err
	}
	return n.Encode()
}

// flat writes a notification whose params object holds only string fields,
// in the order given.
func flat(method string, kv ...string) []byte {
	var b strings.Builder
	b.WriteString(`{"jsonrpc":"2.0","method":"`)
	b.WriteString(method)
	b.WriteString(`","params":{`)
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(kv[i])
		b.WriteString(`":"`)
		b.WriteString(Sanitize(kv[i+1]))
		b.WriteByte('"')
	}
	b.WriteString("}}")
	return []byte(b.String())
}

// Sanitize escapes s for embedding inside a JSON string literal.
// Backslash, slash, quote and control characters are escaped; everything
// else is copied through.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '/':
			b.WriteString(`\/`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case '\b':
			b.WriteString(`\b`)
		default:
			if r < 0x20 {
				const hex = "0123456789abcdef"
				b.WriteString(`\u00`)
				b.WriteByte(hex[r>>4])
				b.WriteByte(hex[r&0xf])
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
