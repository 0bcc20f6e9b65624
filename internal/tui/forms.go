package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/hay-kot/mqview/internal/core/config"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/store/jsonfile"
	"github.com/hay-kot/mqview/internal/styles"
)

type formKind int

const (
	formPublish formKind = iota + 1
	formSavePipeline
	formConnect
)

// Form wraps a huh.Form and the request it produces when completed.
type Form struct {
	kind formKind
	form *huh.Form

	host    string
	topic   string
	payload string
	name    string
	topics  []string
}

// NewPublishForm asks for a topic and payload to publish on host. A non-empty
// name also saves the publish as a command.
func NewPublishForm(host, topic string) *Form {
	f := &Form{kind: formPublish, host: host, topic: topic}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Topic").
				Description("Publish on "+host).
				Value(&f.topic).
				Validate(required("topic")),
			huh.NewText().
				Title("Payload").
				Lines(6).
				Value(&f.payload),
			huh.NewInput().
				Title("Save as command").
				Description("Optional name to save this publish").
				Value(&f.name).
				Validate(optionalName),
		),
	).WithTheme(styles.FormTheme())

	return f
}

// NewSavePipelineForm asks for a name to save topics under.
func NewSavePipelineForm(topics []string) *Form {
	f := &Form{kind: formSavePipeline, topics: topics}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pipeline name").
				Description(fmt.Sprintf("%d steps", len(topics))).
				Value(&f.name).
				Validate(jsonfile.ValidateName),
		),
	).WithTheme(styles.FormTheme())

	return f
}

// NewConnectForm asks for a broker host:port.
func NewConnectForm() *Form {
	f := &Form{kind: formConnect}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Broker").
				Placeholder("localhost:1883").
				Value(&f.host).
				Validate(config.ValidateBrokerAddr),
		),
	).WithTheme(styles.FormTheme())

	return f
}

// Frames returns the requests to send once the form is completed.
func (f *Form) Frames() ([][]byte, error) {
	switch f.kind {
	case formPublish:
		frames := [][]byte{jsonrpc.Publish(f.host, f.topic, f.payload)}
		if f.name != "" {
			frames = append(frames, jsonrpc.SaveCommand(f.name, f.topic, f.payload))
		}
		return frames, nil
	case formSavePipeline:
		data, err := jsonrpc.SavePipeline(f.name, f.topics)
		if err != nil {
			return nil, err
		}
		return [][]byte{data}, nil
	case formConnect:
		return [][]byte{jsonrpc.Connect(f.host)}, nil
	}
	return nil, fmt.Errorf("unknown form kind %d", f.kind)
}

// Title names the form in the overlay.
func (f *Form) Title() string {
	switch f.kind {
	case formPublish:
		return "Publish"
	case formSavePipeline:
		return "Save Pipeline"
	case formConnect:
		return "Connect Broker"
	}
	return ""
}

// View renders the form.
func (f *Form) View() string {
	return f.form.View()
}

func required(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func optionalName(s string) error {
	if s == "" {
		return nil
	}
	return jsonfile.ValidateName(s)
}
