package tui

import (
	"fmt"
	"strings"

	"github.com/hay-kot/mqview/internal/core/appstate"
	"github.com/hay-kot/mqview/internal/core/pipeline"
)

// renderPipeline lists the steps with their stamp and delta, marking the step
// the next message must match.
func renderPipeline(steps []pipeline.Step, loaded string) string {
	var b strings.Builder

	title := "Pipeline"
	if loaded != "" {
		title += " " + dimStyle.Render("("+loaded+")")
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if len(steps) == 0 {
		b.WriteString(dimStyle.Render("empty: press a to add the selected topic"))
		return b.String()
	}

	next := pipeline.Next(steps)
	for i, s := range steps {
		marker := " "
		style := dimStyle
		switch {
		case s.Stamped():
			marker = iconStamped
			style = stampedStyle
		case i == next:
			marker = iconNext
			style = pendingStyle
		}

		line := fmt.Sprintf("%s %d. %s", marker, i+1, s.Topic)
		if s.Stamped() {
			delta := ""
			if s.DeltaT != nil && i > 0 {
				delta = " " + formatDelta(*s.DeltaT)
			}
			line += dimStyle.Render(fmt.Sprintf("  %s%s", *s.Timestamp, delta))
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	status := fmt.Sprintf("total %s", formatDelta(pipeline.Total(steps)))
	if pipeline.Done(steps) {
		status += " " + iconDot + " complete"
	}
	b.WriteString(dimStyle.Render(status))
	return b.String()
}

// renderSavedPipelines lists saved pipelines with the digit that loads them.
func renderSavedPipelines(saved []appstate.SavedPipeline) string {
	if len(saved) == 0 {
		return ""
	}
	parts := make([]string, 0, len(saved))
	for i, p := range saved {
		if i == 9 {
			break
		}
		parts = append(parts, fmt.Sprintf("%d %s", i+1, p.Name))
	}
	return dimStyle.Render("saved: " + strings.Join(parts, "  "))
}

// renderCommands lists saved commands with a cursor.
func renderCommands(cmds []appstate.Command, cursor int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Commands"))
	b.WriteString("\n")

	if len(cmds) == 0 {
		b.WriteString(dimStyle.Render("no saved commands: save one from the publish form"))
		return b.String()
	}

	for i, c := range cmds {
		line := fmt.Sprintf("%s  %s", c.Name, dimStyle.Render(c.Topic))
		if i == cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		if i < len(cmds)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
