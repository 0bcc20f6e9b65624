package topictree

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	t0 = "2024-05-01T10:00:00Z"
	t1 = "2024-05-01T10:00:01.250Z"
	t2 = "2024-05-01T10:00:04Z"
)

func TestInsert_SingleSegmentIntoEmptyTree(t *testing.T) {
	forest := InsertTopic(nil, "topic1", "Hello", t0)

	require.Len(t, forest, 1)
	n := forest[0]
	assert.Equal(t, "topic1", n.ID)
	assert.Equal(t, "topic1", n.Segment)
	assert.Equal(t, 1, n.MessageCount)
	assert.Nil(t, n.Children)
	assert.Equal(t, []Message{{Timestamp: t0, Text: "Hello", DeltaT: 0}}, n.Messages)
	assert.Equal(t, "topic1 (1 message)", n.Label)
}

func TestInsert_NestedPathCreatesChain(t *testing.T) {
	var forest []*Node
	for i := range 3 {
		forest = InsertTopic(forest, "a/b/c", fmt.Sprintf("msg%d", i), t0)
	}

	require.Len(t, forest, 1)
	a := forest[0]
	require.Len(t, a.Children, 1)
	b := a.Children[0]
	require.Len(t, b.Children, 1)
	c := b.Children[0]

	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "a/b", b.ID)
	assert.Equal(t, "a/b/c", c.ID)

	assert.Equal(t, 0, a.MessageCount)
	assert.Equal(t, 0, b.MessageCount)
	assert.Equal(t, 3, c.MessageCount)
	assert.Empty(t, a.Messages)
	assert.Empty(t, b.Messages)
	assert.Nil(t, c.Children)

	assert.Equal(t, "a (1 subtopic with 3 messages)", a.Label)
	assert.Equal(t, "b (1 subtopic with 3 messages)", b.Label)
	assert.Equal(t, "c (3 messages)", c.Label)
}

func TestInsert_ShorterPathCountsLocally(t *testing.T) {
	var forest []*Node
	forest = InsertTopic(forest, "a/b/c", "deep", t0)
	forest = InsertTopic(forest, "a", "root", t1)
	forest = InsertTopic(forest, "a/b", "mid", t1)
	forest = InsertTopic(forest, "a/b", "mid2", t2)

	a, ok := Find(forest, "a")
	require.True(t, ok)
	b, ok := Find(forest, "a/b")
	require.True(t, ok)
	c, ok := Find(forest, "a/b/c")
	require.True(t, ok)

	assert.Equal(t, 1, a.MessageCount)
	assert.Equal(t, 2, b.MessageCount)
	assert.Equal(t, 1, c.MessageCount)
	assert.Equal(t, 4, a.TotalMessages())

	assert.Equal(t, "a (1 message, 1 subtopic with 3 messages)", a.Label)
	assert.Equal(t, "b (2 messages, 1 subtopic with 1 message)", b.Label)
}

func TestInsert_RepublishAppendsToSameNode(t *testing.T) {
	var forest []*Node
	forest = InsertTopic(forest, "x/y", "first", t0)
	forest = InsertTopic(forest, "x/y", "second", t1)

	require.Len(t, forest, 1)
	require.Len(t, forest[0].Children, 1)

	y := forest[0].Children[0]
	assert.Equal(t, 2, y.MessageCount)
	require.Len(t, y.Messages, 2)
	assert.Equal(t, "second", y.Messages[0].Text)
	assert.Equal(t, "first", y.Messages[1].Text)
}

func TestInsert_DeltaT(t *testing.T) {
	var forest []*Node
	forest = InsertTopic(forest, "s", "one", t0)
	forest = InsertTopic(forest, "s", "two", t1)
	forest = InsertTopic(forest, "s", "three", t2)

	msgs := forest[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, t2, msgs[0].Timestamp)
	assert.Equal(t, int64(2750), msgs[0].DeltaT)
	assert.Equal(t, t1, msgs[1].Timestamp)
	assert.Equal(t, int64(1250), msgs[1].DeltaT)
	assert.Equal(t, int64(0), msgs[2].DeltaT)
}

func TestInsert_FirstMessageAtEveryNodeHasZeroDelta(t *testing.T) {
	var forest []*Node
	forest = InsertTopic(forest, "a/b", "x", t0)
	forest = InsertTopic(forest, "a", "y", t2)
	forest = InsertTopic(forest, "a/c", "z", t2)

	Walk(forest, func(n *Node) bool {
		if len(n.Messages) > 0 {
			assert.Equal(t, int64(0), n.Messages[len(n.Messages)-1].DeltaT, n.ID)
		}
		return true
	})
}

func TestInsert_SiblingsKeepInsertionOrder(t *testing.T) {
	var forest []*Node
	for _, topic := range []string{"b/2", "a", "b/1", "c", "b/3"} {
		forest = InsertTopic(forest, topic, "p", t0)
	}

	ids := make([]string, 0)
	for _, n := range All(forest) {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"b", "b/2", "b/1", "b/3", "a", "c"}, ids)
}

func TestInsert_CountsMatchHistory(t *testing.T) {
	topics := []string{"h/a", "h", "h/a/b", "h/a", "z", "h/c", "h/a/b", "z"}
	var forest []*Node
	for i, topic := range topics {
		forest = InsertTopic(forest, topic, fmt.Sprint(i), t0)
	}

	Walk(forest, func(n *Node) bool {
		assert.Equal(t, len(n.Messages), n.MessageCount, n.ID)
		if n.Children != nil {
			assert.NotEmpty(t, n.Children, n.ID)
		}
		assert.Equal(t, Label(n), n.Label, n.ID)
		return true
	})

	h, ok := Find(forest, "h")
	require.True(t, ok)
	assert.Equal(t, 6, h.TotalMessages())
}

func TestInsert_EmptyPathIsNoop(t *testing.T) {
	forest := InsertTopic(nil, "a", "p", t0)
	got := Insert(forest, nil, "p", t1)
	assert.Equal(t, forest, got)
}

func TestNode_ChildrenOmittedFromJSON(t *testing.T) {
	forest := InsertTopic(nil, "leaf", "p", t0)

	data, err := json.Marshal(forest[0])
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "children")
	assert.Equal(t, "leaf", raw["id"])
}
