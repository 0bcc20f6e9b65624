// Package pipeline tracks an ordered checklist of expected topics and stamps
// each step with the arrival time and stage latency of its matching message.
package pipeline

import (
	"github.com/hay-kot/mqview/pkg/timestamp"
)

// Step is one expected topic. Timestamp and DeltaT are nil until the step is
// satisfied.
type Step struct {
	Topic     string  `json:"topic"`
	Timestamp *string `json:"timestamp,omitempty"`
	DeltaT    *int64  `json:"delta_t,omitempty"`
}

// Stamped reports whether the step has been satisfied.
func (s Step) Stamped() bool {
	return s.Timestamp != nil
}

// Advance stamps the next pending step when its topic equals topic.
//
// Only the first step without a timestamp is eligible. Messages for any other
// topic, including later steps of the same pipeline, are ignored. The first
// step always gets a zero delta; later steps get the milliseconds elapsed since
// the step before them.
func Advance(steps []Step, topic, ts string) {
	idx := Next(steps)
	if idx < 0 || steps[idx].Topic != topic {
		return
	}

	var delta int64
	if idx > 0 && steps[idx-1].Timestamp != nil {
		delta = timestamp.Delta(*steps[idx-1].Timestamp, ts)
	}

	steps[idx].Timestamp = &ts
	steps[idx].DeltaT = &delta
}

// Next returns the index of the first unstamped step, or -1 when every step
// has been stamped.
func Next(steps []Step) int {
	for i := range steps {
		if !steps[i].Stamped() {
			return i
		}
	}
	return -1
}

// Reset clears every stamp so the pipeline can be measured again.
func Reset(steps []Step) {
	for i := range steps {
		steps[i].Timestamp = nil
		steps[i].DeltaT = nil
	}
}

// FromTopics builds an unstamped pipeline.
func FromTopics(topics []string) []Step {
	steps := make([]Step, len(topics))
	for i, t := range topics {
		steps[i] = Step{Topic: t}
	}
	return steps
}

// Topics returns the topic of each step in order.
func Topics(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Topic
	}
	return out
}

// Done reports whether a non-empty pipeline has every step stamped.
func Done(steps []Step) bool {
	return len(steps) > 0 && Next(steps) < 0
}

// Total returns the milliseconds between the first and the last stamped step.
func Total(steps []Step) int64 {
	var total int64
	for _, s := range steps {
		if s.DeltaT == nil {
			break
		}
		total += *s.DeltaT
	}
	return total
}
