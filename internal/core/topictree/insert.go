package topictree

import (
	"strings"

	"github.com/hay-kot/mqview/pkg/timestamp"
)

// Insert records payload under the topic path described by path and returns
// the (possibly grown) root forest.
//
// Missing nodes along the path are created with an empty history. Only the
// terminal node receives the message; ancestors are linked but their counts
// are untouched. Labels are recomputed on every node along the path, deepest
// first.
func Insert(forest []*Node, path []string, payload, ts string) []*Node {
	if len(path) == 0 {
		return forest
	}
	return insert(forest, path, 0, payload, ts)
}

// InsertTopic is Insert with the topic split on Separator.
func InsertTopic(forest []*Node, topic, payload, ts string) []*Node {
	return Insert(forest, Split(topic), payload, ts)
}

func insert(siblings []*Node, path []string, depth int, payload, ts string) []*Node {
	segment := path[depth]

	node := childBySegment(siblings, segment)
	if node == nil {
		node = &Node{
			ID:      strings.Join(path[:depth+1], Separator),
			Segment: segment,
		}
		siblings = append(siblings, node)
	}

	if depth == len(path)-1 {
		node.record(payload, ts)
	} else {
		node.Children = insert(node.Children, path, depth+1, payload, ts)
	}

	if len(node.Children) == 0 {
		node.Children = nil
	}
	node.Label = Label(node)

	return siblings
}

// record prepends a message, computing its delta against the current newest.
func (n *Node) record(payload, ts string) {
	msg := Message{Timestamp: ts, Text: payload}
	if prev, ok := n.Latest(); ok {
		msg.DeltaT = timestamp.Delta(prev.Timestamp, ts)
	}

	n.Messages = append(n.Messages, Message{})
	copy(n.Messages[1:], n.Messages)
	n.Messages[0] = msg
	n.MessageCount++
}

func childBySegment(siblings []*Node, segment string) *Node {
	for _, n := range siblings {
		if n.Segment == segment {
			return n
		}
	}
	return nil
}
