package tui

import (
	"fmt"
	"strings"

	"github.com/hay-kot/mqview/internal/core/topictree"
)

// treeRow is one visible line of the topic tree.
type treeRow struct {
	Node     *topictree.Node
	Depth    int
	Expanded bool
}

// flattenTree lists the forest in pre-order, skipping the children of
// collapsed nodes. With a filter, every matching node is listed regardless of
// collapse state.
func flattenTree(forest []*topictree.Node, collapsed map[string]bool, filter string) []treeRow {
	var rows []treeRow
	topictree.Walk(forest, func(n *topictree.Node) bool {
		open := !collapsed[n.ID]
		if filter != "" {
			if matchTopic(n.ID, filter) {
				rows = append(rows, treeRow{Node: n, Depth: n.Depth(), Expanded: open})
			}
			return true
		}
		rows = append(rows, treeRow{Node: n, Depth: n.Depth(), Expanded: open})
		return open
	})
	return rows
}

// matchTopic matches id against a glob when filter contains `*`, and as a
// case-insensitive substring otherwise.
func matchTopic(id, filter string) bool {
	if strings.Contains(filter, "*") {
		return topictree.MatchGlob(filter, id)
	}
	return topictree.Matches(id, filter)
}

// TreeView renders a broker's topic tree with a cursor, collapsible nodes
// and an inline filter.
type TreeView struct {
	forest    []*topictree.Node
	rows      []treeRow
	collapsed map[string]bool
	selected  string // node id under the cursor
	cursor    int
	offset    int
	width     int
	height    int
	filtering bool
	filter    string
}

// NewTreeView creates an empty tree view.
func NewTreeView() *TreeView {
	return &TreeView{collapsed: make(map[string]bool)}
}

// SetForest replaces the tree. The cursor follows the previously selected id.
func (v *TreeView) SetForest(forest []*topictree.Node) {
	v.forest = forest
	v.rebuild()
}

// Reset clears collapse state and selection, used when switching brokers.
func (v *TreeView) Reset(forest []*topictree.Node, selected string) {
	v.collapsed = make(map[string]bool)
	v.selected = selected
	v.cursor = 0
	v.offset = 0
	v.SetForest(forest)
}

func (v *TreeView) rebuild() {
	v.rows = flattenTree(v.forest, v.collapsed, v.filter)

	v.cursor = min(v.cursor, max(len(v.rows)-1, 0))
	for i, r := range v.rows {
		if r.Node.ID == v.selected {
			v.cursor = i
			break
		}
	}
	if n := v.Selected(); n != nil {
		v.selected = n.ID
	}
	v.clampOffset()
}

// SetSize sets the viewport dimensions.
func (v *TreeView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampOffset()
}

func (v *TreeView) visibleLines() int {
	reserved := 0
	if v.filtering || v.filter != "" {
		reserved++
	}
	return max(v.height-reserved, 1)
}

func (v *TreeView) clampOffset() {
	visible := v.visibleLines()
	if v.cursor < v.offset {
		v.offset = v.cursor
	} else if v.cursor >= v.offset+visible {
		v.offset = v.cursor - visible + 1
	}
	v.offset = max(min(v.offset, len(v.rows)-visible), 0)
}

// MoveUp moves the cursor up.
func (v *TreeView) MoveUp() {
	if v.cursor > 0 {
		v.cursor--
		v.selected = v.rows[v.cursor].Node.ID
		v.clampOffset()
	}
}

// MoveDown moves the cursor down.
func (v *TreeView) MoveDown() {
	if v.cursor < len(v.rows)-1 {
		v.cursor++
		v.selected = v.rows[v.cursor].Node.ID
		v.clampOffset()
	}
}

// Toggle expands or collapses the node under the cursor. Leaves are ignored.
func (v *TreeView) Toggle() {
	n := v.Selected()
	if n == nil || !n.HasChildren() {
		return
	}
	if v.collapsed[n.ID] {
		delete(v.collapsed, n.ID)
	} else {
		v.collapsed[n.ID] = true
	}
	v.rebuild()
}

// Selected returns the node under the cursor, or nil.
func (v *TreeView) Selected() *topictree.Node {
	if v.cursor < 0 || v.cursor >= len(v.rows) {
		return nil
	}
	return v.rows[v.cursor].Node
}

// StartFilter begins filter input mode.
func (v *TreeView) StartFilter() {
	v.filtering = true
	v.filter = ""
	v.rebuild()
}

// IsFiltering returns true if filter input is active.
func (v *TreeView) IsFiltering() bool {
	return v.filtering
}

// Filter returns the current filter text.
func (v *TreeView) Filter() string {
	return v.filter
}

// AddFilterRune appends r to the filter.
func (v *TreeView) AddFilterRune(r rune) {
	v.filter += string(r)
	v.rebuild()
}

// DeleteFilterRune removes the last rune of the filter.
func (v *TreeView) DeleteFilterRune() {
	if v.filter == "" {
		return
	}
	runes := []rune(v.filter)
	v.filter = string(runes[:len(runes)-1])
	v.rebuild()
}

// ConfirmFilter keeps the filter and leaves input mode.
func (v *TreeView) ConfirmFilter() {
	v.filtering = false
	v.rebuild()
}

// CancelFilter clears the filter and leaves input mode.
func (v *TreeView) CancelFilter() {
	v.filtering = false
	v.filter = ""
	v.rebuild()
}

// View renders the visible rows.
func (v *TreeView) View() string {
	var b strings.Builder

	if v.filtering || v.filter != "" {
		cursor := ""
		if v.filtering {
			cursor = "_"
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("filter: %s%s", v.filter, cursor)))
		b.WriteString("\n")
	}

	if len(v.rows) == 0 {
		b.WriteString(dimStyle.Render("no topics yet"))
		return b.String()
	}

	end := min(v.offset+v.visibleLines(), len(v.rows))
	for i := v.offset; i < end; i++ {
		b.WriteString(v.renderRow(v.rows[i], i == v.cursor))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (v *TreeView) renderRow(r treeRow, selected bool) string {
	icon := iconLeaf
	if r.Node.HasChildren() {
		icon = iconCollapsed
		if r.Expanded {
			icon = iconExpanded
		}
	}

	indent := strings.Repeat("  ", r.Depth)
	if v.filter != "" {
		indent = ""
	}

	text := r.Node.Label
	if v.filter != "" {
		text = r.Node.ID
	}

	line := fmt.Sprintf("%s%s %s", indent, icon, text)
	if v.width > 0 {
		line = truncate(line, v.width)
	}
	if selected {
		return selectedStyle.Render(line)
	}
	return normalStyle.Render(line)
}

// truncate cuts s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
