package topictree

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Find returns the node whose ID equals id. The search is depth-first and
// pre-order across siblings in insertion order; the first match wins.
func Find(forest []*Node, id string) (*Node, bool) {
	for _, n := range forest {
		if n.ID == id {
			return n, true
		}
		if n.Children != nil {
			if found, ok := Find(n.Children, id); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// Walk visits every node in pre-order. Returning false from fn skips the
// node's children.
func Walk(forest []*Node, fn func(n *Node) bool) {
	for _, n := range forest {
		if fn(n) {
			Walk(n.Children, fn)
		}
	}
}

// All flattens the forest in pre-order.
func All(forest []*Node) []*Node {
	var out []*Node
	Walk(forest, func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Matches reports whether text contains filter, ignoring case. An empty
// filter matches everything.
func Matches(text, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(filter))
}

// MatchGlob reports whether a topic id matches a glob pattern where `*`
// matches within one segment and `**` across segments. Invalid patterns never
// match.
func MatchGlob(pattern, id string) bool {
	ok, err := doublestar.Match(pattern, id)
	return err == nil && ok
}
