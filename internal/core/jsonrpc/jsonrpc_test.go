package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		method  string
		wantErr bool
	}{
		{name: "notification", frame: `{"jsonrpc":"2.0","method":"connect","params":{"hostname":"h:1883"}}`, method: "connect"},
		{name: "no params", frame: `{"jsonrpc":"2.0","method":"commands"}`, method: "commands"},
		{name: "wrong version", frame: `{"jsonrpc":"1.0","method":"connect"}`, wantErr: true},
		{name: "missing method", frame: `{"jsonrpc":"2.0"}`, wantErr: true},
		{name: "not json", frame: `hello`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Decode([]byte(tt.frame))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.method, n.Method)
		})
	}
}

func TestNotification_RoundTrip(t *testing.T) {
	in := MessageParams{
		Source:    "localhost:1883",
		Topic:     "a/b",
		Payload:   Payload("hi"),
		Timestamp: "2024-05-01T10:00:00Z",
	}

	n, err := New(MethodMQTTMessage, in)
	require.NoError(t, err)
	data, err := n.Encode()
	require.NoError(t, err)

	assert.Contains(t, string(data), `"payload":[104,105]`)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, MethodMQTTMessage, got.Method)

	var out MessageParams
	require.NoError(t, got.Bind(&out))
	assert.Equal(t, in, out)
}

func TestNotification_BindMissingParams(t *testing.T) {
	n, err := Decode([]byte(`{"jsonrpc":"2.0","method":"commands"}`))
	require.NoError(t, err)

	var out []CommandParams
	assert.ErrorIs(t, n.Bind(&out), ErrInvalidFrame)
}

func TestPayload_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Payload
		wantErr bool
	}{
		{name: "number array", raw: `[72, 105]`, want: Payload("Hi")},
		{name: "base64", raw: `"SGk="`, want: Payload("Hi")},
		{name: "empty array", raw: `[]`, want: Payload{}},
		{name: "null", raw: `null`, want: nil},
		{name: "out of range", raw: `[256]`, wantErr: true},
		{name: "negative", raw: `[-1]`, wantErr: true},
		{name: "bad base64", raw: `"%%"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Payload
			err := json.Unmarshal([]byte(tt.raw), &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestPayload_MarshalNil(t *testing.T) {
	data, err := json.Marshal(MessageParams{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payload":[]`)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: `a"b`, want: `a\"b`},
		{in: `a\b`, want: `a\\b`},
		{in: "a/b", want: `a\/b`},
		{in: "l1\nl2\r\t", want: `l1\nl2\r\t`},
		{in: "\f\b", want: `\f\b`},
		{in: "\x01", want: `\u0001`},
		{in: "grüße", want: "grüße"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestFlatRequests_AreValidJSON(t *testing.T) {
	payload := "{\"temp\": 21.5}\n\t\"quoted\" \\ back/slash \x02"

	frames := map[string][]byte{
		MethodConnect:        Connect("localhost:1883"),
		MethodRemove:         Remove("localhost:1883"),
		MethodPublish:        Publish("localhost:1883", "home/temp", payload),
		MethodSaveCommand:    SaveCommand("heat", "home/temp", payload),
		MethodRemoveCommand:  RemoveCommand("heat"),
		MethodRemovePipeline: RemovePipeline("boot"),
	}

	for method, frame := range frames {
		t.Run(method, func(t *testing.T) {
			n, err := Decode(frame)
			require.NoError(t, err, string(frame))
			assert.Equal(t, method, n.Method)
		})
	}

	n, err := Decode(frames[MethodPublish])
	require.NoError(t, err)
	var p PublishParams
	require.NoError(t, n.Bind(&p))
	assert.Equal(t, PublishParams{Host: "localhost:1883", Topic: "home/temp", Payload: payload}, p)
}

func TestSavePipeline(t *testing.T) {
	frame, err := SavePipeline("boot", []string{"a", "b/c"})
	require.NoError(t, err)

	n, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, MethodSavePipeline, n.Method)

	var p PipelineParams
	require.NoError(t, n.Bind(&p))
	assert.Equal(t, "boot", p.Name)
	assert.Equal(t, []PipelineEntry{{Topic: "a"}, {Topic: "b/c"}}, p.Pipeline)
}

func TestPrettyPrint(t *testing.T) {
	t.Run("invalid json is unchanged", func(t *testing.T) {
		for _, in := range []string{"hello world", "{broken", ""} {
			assert.Equal(t, in, PrettyPrint(in))
		}
	})

	t.Run("object is indented", func(t *testing.T) {
		out := PrettyPrint(`{"a":1,"b":{"c":"d"}}`)
		assert.Contains(t, out, "\n  \"a\": 1")
		assert.Contains(t, out, "\n    \"c\": \"d\"")
		assert.NotContains(t, out[len(out)-1:], "\n")
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{
			`{"a":[1,2,{"b":null}],"c":"x"}`,
			`[true,false]`,
			`42`,
			`"str"`,
		}
		for _, in := range inputs {
			once := PrettyPrint(in)
			require.True(t, json.Valid([]byte(once)), once)
			assert.Equal(t, once, PrettyPrint(once), in)
		}
	})
}

func TestIsJSON(t *testing.T) {
	assert.True(t, IsJSON(`{"a":1}`))
	assert.True(t, IsJSON(`[1]`))
	assert.False(t, IsJSON(`1`))
	assert.False(t, IsJSON(`nope`))
}
