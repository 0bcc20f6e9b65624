package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/core/topictree"
	"github.com/hay-kot/mqview/pkg/timestamp"
)

// Rows of history shown under the payload preview.
const detailHistoryLimit = 50

// glamour adds gutter space around rendered blocks.
const glamourGutter = 2

// DetailView shows the selected node's latest payload and its history.
type DetailView struct {
	viewport viewport.Model
	width    int
	height   int

	// render cache key
	nodeID string
	count  int
}

// NewDetailView creates an empty detail view.
func NewDetailView() *DetailView {
	return &DetailView{viewport: viewport.New(0, 0)}
}

// SetSize sets the viewport dimensions and forces a re-render.
func (v *DetailView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width
	v.viewport.Height = height
	v.nodeID = ""
}

// SetNode renders n unless it is unchanged since the last call.
func (v *DetailView) SetNode(n *topictree.Node) {
	if n == nil {
		if v.nodeID != "" || v.count != -1 {
			v.viewport.SetContent(dimStyle.Render("select a topic"))
		}
		v.nodeID, v.count = "", -1
		return
	}
	if n.ID == v.nodeID && n.MessageCount == v.count {
		return
	}

	sameNode := n.ID == v.nodeID
	v.nodeID, v.count = n.ID, n.MessageCount

	preview := ""
	if latest, ok := n.Latest(); ok {
		preview = renderPayload(latest.Text, v.width-glamourGutter)
	}
	v.viewport.SetContent(detailContent(n, preview))
	if !sameNode {
		v.viewport.GotoTop()
	}
}

// ScrollUp scrolls the viewport up.
func (v *DetailView) ScrollUp() {
	v.viewport.ScrollUp(1)
}

// ScrollDown scrolls the viewport down.
func (v *DetailView) ScrollDown() {
	v.viewport.ScrollDown(1)
}

// View renders the viewport.
func (v *DetailView) View() string {
	return v.viewport.View()
}

// detailContent lays out the node header, payload preview and history,
// newest first.
func detailContent(n *topictree.Node, preview string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(n.ID))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(n.Label))
	b.WriteString("\n\n")

	if n.MessageCount == 0 {
		b.WriteString(dimStyle.Render("no messages on this topic"))
		return b.String()
	}

	b.WriteString(preview)
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("History (%d)", n.MessageCount)))
	b.WriteString("\n")

	for i, m := range n.Messages {
		if i == detailHistoryLimit {
			b.WriteString(dimStyle.Render(fmt.Sprintf("… %d more", len(n.Messages)-i)))
			break
		}
		b.WriteString(historyLine(m))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// historyLine formats one message as time, delta and a one-line payload.
func historyLine(m topictree.Message) string {
	when := m.Timestamp
	if t := timestamp.Parse(m.Timestamp); !t.IsZero() {
		when = t.Local().Format("15:04:05.000")
	}
	text := strings.ReplaceAll(m.Text, "\n", " ")
	return fmt.Sprintf("%s %s %s",
		dimStyle.Render(when),
		pendingStyle.Render(fmt.Sprintf("%8s", formatDelta(m.DeltaT))),
		truncate(text, 80),
	)
}

// formatDelta renders milliseconds as +Nms below a second and +N.NNs above.
func formatDelta(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("+%dms", ms)
	}
	return fmt.Sprintf("+%.2fs", float64(ms)/1000)
}

// renderPayload pretty prints JSON payloads and renders them through glamour
// as a code block. Anything else is returned as is.
func renderPayload(text string, width int) string {
	if !jsonrpc.IsJSON(text) {
		return text
	}

	pretty := jsonrpc.PrettyPrint(text)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("tokyo-night"),
		glamour.WithWordWrap(max(width, 20)),
	)
	if err != nil {
		return pretty
	}

	rendered, err := renderer.Render("```json\n" + pretty + "\n```")
	if err != nil {
		return pretty
	}

	content := strings.TrimSpace(rendered)
	content = stripLeadingDecorative(content)
	return stripTrailingDecorative(content)
}

// ansiPattern matches ANSI escape sequences.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// isDecorativeLine checks if a line contains only decorative characters
// (horizontal rules, spaces) after stripping ANSI codes.
func isDecorativeLine(line string) bool {
	stripped := strings.TrimSpace(ansiPattern.ReplaceAllString(line, ""))
	if stripped == "" {
		return true
	}
	for _, r := range stripped {
		if r != '─' && r != '━' && r != '-' && r != '=' {
			return false
		}
	}
	return true
}

func stripLeadingDecorative(content string) string {
	lines := strings.Split(content, "\n")
	start := 0
	for start < len(lines) && isDecorativeLine(lines[start]) {
		start++
	}
	return strings.Join(lines[start:], "\n")
}

func stripTrailingDecorative(content string) string {
	lines := strings.Split(content, "\n")
	end := len(lines)
	for end > 0 && isDecorativeLine(lines[end-1]) {
		end--
	}
	return strings.Join(lines[:end], "\n")
}
