// Package topictree maintains the per-broker topic hierarchy: a forest of
// nodes keyed by slash-delimited path segment, each holding its own message
// history and a derived display label.
package topictree

import "strings"

// Separator delimits topic path segments.
const Separator = "/"

// Message is a single payload recorded at a node.
type Message struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
	// DeltaT is the milliseconds elapsed since the previous message recorded
	// at the same node. Zero for the first.
	DeltaT int64 `json:"delta_t"`
}

// Node is one level of the topic hierarchy.
//
// Children is nil when the node has no children. It is never left as an
// empty, non-nil slice, and it is omitted from JSON in that case.
// MessageCount counts the node's own history only; descendants are not
// aggregated into it.
type Node struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Segment      string    `json:"segment"`
	Children     []*Node   `json:"children,omitempty"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

// HasChildren reports whether the node has at least one child.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// TotalMessages returns the number of messages recorded at this node and all
// of its descendants.
func (n *Node) TotalMessages() int {
	total := n.MessageCount
	for _, c := range n.Children {
		total += c.TotalMessages()
	}
	return total
}

// Latest returns the newest message at this node.
func (n *Node) Latest() (Message, bool) {
	if len(n.Messages) == 0 {
		return Message{}, false
	}
	return n.Messages[0], true
}

// Depth returns the number of separators in the node id.
func (n *Node) Depth() int {
	return strings.Count(n.ID, Separator)
}

// Split breaks a topic into its path segments. Only the separator is
// interpreted; empty segments are kept.
func Split(topic string) []string {
	return strings.Split(topic, Separator)
}
