// Package appstate folds bridge events into the client's view of every
// broker: its topic tree, selection, pipeline and connection flags.
//
// State is owned by a single writer. Every function here mutates the state it
// is given and returns it; nothing is kept in package variables.
package appstate

import (
	"slices"

	"github.com/hay-kot/mqview/internal/core/pipeline"
	"github.com/hay-kot/mqview/internal/core/topictree"
)

// BrokerEntry is everything known about one broker.
type BrokerEntry struct {
	Topics []*topictree.Node
	// SelectedTopic is a node id, or "" for none. It is re-resolved against
	// Topics whenever the tree changes.
	SelectedTopic     string
	Pipeline          []pipeline.Step
	Connected         bool
	MarkedForDeletion bool
}

// Command is a saved publish shortcut.
type Command struct {
	ID      string
	Name    string
	Topic   string
	Payload string
}

// SavedPipeline is a named pipeline template.
type SavedPipeline struct {
	ID     int
	Name   string
	Topics []string
}

// Steps returns a fresh, unstamped pipeline for the template.
func (p SavedPipeline) Steps() []pipeline.Step {
	return pipeline.FromTopics(p.Topics)
}

// State is the client's application state.
type State struct {
	SelectedBroker string
	Brokers        map[string]*BrokerEntry
	Pipelines      []SavedPipeline
	Commands       []Command

	order []string
}

// New returns an empty state.
func New() *State {
	return &State{Brokers: make(map[string]*BrokerEntry)}
}

// Broker returns the entry for key.
func (s *State) Broker(key string) (*BrokerEntry, bool) {
	b, ok := s.Brokers[key]
	return b, ok
}

// Current returns the entry of the selected broker.
func (s *State) Current() (*BrokerEntry, bool) {
	if s.SelectedBroker == "" {
		return nil, false
	}
	return s.Broker(s.SelectedBroker)
}

// BrokerKeys returns broker keys in the order they were first seen.
func (s *State) BrokerKeys() []string {
	return slices.Clone(s.order)
}

func (s *State) add(key string, entry *BrokerEntry) *BrokerEntry {
	if s.Brokers == nil {
		s.Brokers = make(map[string]*BrokerEntry)
	}
	s.Brokers[key] = entry
	s.order = append(s.order, key)
	return entry
}

// SelectedNode resolves the selected topic of the broker key.
func (s *State) SelectedNode(key string) (*topictree.Node, bool) {
	b, ok := s.Broker(key)
	if !ok || b.SelectedTopic == "" {
		return nil, false
	}
	return topictree.Find(b.Topics, b.SelectedTopic)
}
