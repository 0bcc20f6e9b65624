// Package tui implements the Bubble Tea TUI for mqview.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/mqview/internal/styles"
)

// Tokyo Night color palette.
var (
	colorGreen  = styles.ColorGreen
	colorYellow = styles.ColorYellow
	colorBlue   = styles.ColorBlue
	colorRed    = styles.ColorRed
	colorGray   = styles.ColorGray
	colorWhite  = styles.ColorWhite
	colorBorder = lipgloss.Color("#3b4261")
)

var (
	// Pane title.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	// Row under the cursor.
	selectedStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	normalStyle = lipgloss.NewStyle()

	// Secondary text: timestamps, deltas, hints.
	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	connectedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(colorRed)

	stampedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			PaddingLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingLeft(1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	paneFocusedStyle = paneStyle.
				BorderForeground(colorBlue)

	tabSelectedStyle = lipgloss.NewStyle().
				Foreground(colorBlue).
				Bold(true).
				Underline(true)

	tabNormalStyle = lipgloss.NewStyle().
			Foreground(colorWhite)
)

// Icons and symbols.
const (
	iconDot       = "•"
	iconExpanded  = "▾"
	iconCollapsed = "▸"
	iconLeaf      = "·"
	iconStamped   = "✓"
	iconNext      = "▶"
	iconConnected = "●"
)

// bannerStyle styles the ASCII art banner.
var bannerStyle = styles.BannerStyle.
	PaddingLeft(1).
	PaddingBottom(1)

// Modal styles.
var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	modalHelpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			MarginTop(1)

	modalButtonStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(colorBorder).
				Foreground(lipgloss.Color("#a9b1d6"))

	modalButtonSelectedStyle = lipgloss.NewStyle().
					Padding(0, 1).
					Background(colorBlue).
					Foreground(lipgloss.Color("#1a1b26")).
					Bold(true)
)
