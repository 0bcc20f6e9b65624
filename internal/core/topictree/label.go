package topictree

import (
	"fmt"
	"strings"
)

// Label derives the display text for a node from its own message count, its
// child count and the number of messages recorded below it.
//
//	sensor                                        no messages, no children
//	sensor (3 messages)
//	sensor (2 subtopics with 5 messages)
//	sensor (1 message, 2 subtopics with 5 messages)
func Label(n *Node) string {
	own := len(n.Messages)
	children := len(n.Children)

	if own == 0 && children == 0 {
		return n.Segment
	}

	var b strings.Builder
	b.WriteString(n.Segment)
	b.WriteString(" (")

	if own > 0 {
		b.WriteString(plural(own, "message"))
		if children > 0 {
			b.WriteString(", ")
		}
	}

	if children > 0 {
		below := n.TotalMessages() - n.MessageCount
		fmt.Fprintf(&b, "%s with %s", plural(children, "subtopic"), plural(below, "message"))
	}

	b.WriteString(")")
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
