package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
)

func TestForm_Frames(t *testing.T) {
	pipelineFrame, err := jsonrpc.SavePipeline("flow", []string{"x", "y"})
	require.NoError(t, err)

	tests := []struct {
		name string
		form func() *Form
		want []string
	}{
		{
			name: "publish",
			form: func() *Form {
				f := NewPublishForm("a:1883", "home/light")
				f.payload = `{"on":true}`
				return f
			},
			want: []string{string(jsonrpc.Publish("a:1883", "home/light", `{"on":true}`))},
		},
		{
			name: "publish and save command",
			form: func() *Form {
				f := NewPublishForm("a:1883", "home/light")
				f.payload = "1"
				f.name = "light on"
				return f
			},
			want: []string{
				string(jsonrpc.Publish("a:1883", "home/light", "1")),
				string(jsonrpc.SaveCommand("light on", "home/light", "1")),
			},
		},
		{
			name: "save pipeline",
			form: func() *Form {
				f := NewSavePipelineForm([]string{"x", "y"})
				f.name = "flow"
				return f
			},
			want: []string{string(pipelineFrame)},
		},
		{
			name: "connect",
			form: func() *Form {
				f := NewConnectForm()
				f.host = "localhost:1883"
				return f
			},
			want: []string{string(jsonrpc.Connect("localhost:1883"))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := tt.form().Frames()
			require.NoError(t, err)

			got := make([]string, len(frames))
			for i, f := range frames {
				got[i] = string(f)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptionalName(t *testing.T) {
	assert.NoError(t, optionalName(""))
	assert.NoError(t, optionalName("light on"))
	assert.Error(t, optionalName("a/b"))
}

func TestPipelineSlot(t *testing.T) {
	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{key: "1", want: 0, ok: true},
		{key: "9", want: 8, ok: true},
		{key: "0", ok: false},
		{key: "a", ok: false},
		{key: "10", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := pipelineSlot(tt.key)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
