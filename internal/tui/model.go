package tui

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/mqview/internal/core/appstate"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/core/pipeline"
	"github.com/hay-kot/mqview/internal/styles"
)

// UIState represents the current state of the TUI.
type UIState int

const (
	stateNormal UIState = iota
	stateForm
	stateConfirming
)

type pane int

const (
	paneTree pane = iota
	paneDetail
	panePipeline
	paneCommands
)

// Key constants for event handling.
const (
	keyEnter = "enter"
	keyEsc   = "esc"
	keyCtrlC = "ctrl+c"
)

// Layout: banner (5) + broker tabs (1) + error (1) + help (1).
const chromeLines = 8

// ErrDisconnected is shown once the bridge connection ends.
var ErrDisconnected = errors.New("connection to bridge lost")

// Sender delivers request frames to the bridge.
type Sender interface {
	Send(frame []byte) error
}

// Options configures the TUI.
type Options struct {
	// Decoder turns payload bytes into text. Defaults to UTF-8.
	Decoder appstate.Decoder
}

// frameMsg carries one notification from the bridge.
type frameMsg struct {
	n jsonrpc.Notification
}

// streamClosedMsg is sent when the event channel closes.
type streamClosedMsg struct{}

// sendResultMsg reports the outcome of sending request frames.
type sendResultMsg struct {
	err error
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	sender Sender
	events <-chan jsonrpc.Notification
	decode appstate.Decoder
	state  *appstate.State
	keys   KeyMap

	tree       *TreeView
	treeBroker string // broker whose forest the tree shows
	detail     *DetailView

	ui    UIState
	focus pane
	form  *Form
	modal Modal

	pendingRemoval string
	showCommands   bool
	commandCursor  int
	loadedPipeline string

	width    int
	height   int
	err      error
	quitting bool
}

// New creates a TUI model reading notifications from events and sending
// requests through sender.
func New(sender Sender, events <-chan jsonrpc.Notification, opts Options) Model {
	return Model{
		sender: sender,
		events: events,
		decode: opts.Decoder,
		state:  appstate.New(),
		keys:   DefaultKeyMap(),
		tree:   NewTreeView(),
		detail: NewDetailView(),
	}
}

// State returns the application state.
func (m Model) State() *appstate.State {
	return m.state
}

// Init starts listening for notifications.
func (m Model) Init() tea.Cmd {
	return waitForFrame(m.events)
}

func waitForFrame(events <-chan jsonrpc.Notification) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return frameMsg{n: n}
	}
}

// send returns a command that writes frames in order, stopping at the first
// failure.
func (m Model) send(frames ...[]byte) tea.Cmd {
	sender := m.sender
	return func() tea.Msg {
		for _, f := range frames {
			if err := sender.Send(f); err != nil {
				return sendResultMsg{err: err}
			}
		}
		return sendResultMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.sync()
		return m, nil

	case frameMsg:
		if err := appstate.Apply(m.state, msg.n, m.decode); err != nil {
			m.err = err
		}
		m.commandCursor = min(m.commandCursor, max(len(m.state.Commands)-1, 0))
		m.sync()
		return m, waitForFrame(m.events)

	case streamClosedMsg:
		m.err = ErrDisconnected
		return m, nil

	case sendResultMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.ui == stateForm && m.form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

// layout sizes the panes from the window dimensions.
func (m *Model) layout() {
	contentHeight := max(m.height-chromeLines, 4)
	leftWidth := m.width * 2 / 5
	rightWidth := m.width - leftWidth

	// border (2) + padding (2) horizontally, border (2) + title (1) vertically
	m.tree.SetSize(max(leftWidth-4, 1), max(contentHeight-3, 1))

	detailHeight := contentHeight * 3 / 5
	m.detail.SetSize(max(rightWidth-4, 1), max(detailHeight-2, 1))
}

// sync pushes the current broker's tree into the views and re-resolves the
// selection by id.
func (m *Model) sync() {
	entry, ok := m.state.Current()
	if !ok {
		m.treeBroker = ""
		m.tree.Reset(nil, "")
		m.detail.SetNode(nil)
		return
	}

	if m.treeBroker != m.state.SelectedBroker {
		m.treeBroker = m.state.SelectedBroker
		m.tree.Reset(entry.Topics, entry.SelectedTopic)
	} else {
		m.tree.SetForest(entry.Topics)
	}
	m.syncSelection()
}

func (m *Model) syncSelection() {
	if n := m.tree.Selected(); n != nil {
		appstate.SelectTopic(m.state, n.ID)
	}
	node, _ := m.state.SelectedNode(m.state.SelectedBroker)
	m.detail.SetNode(node)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()

	switch m.ui {
	case stateForm:
		return m.handleFormKey(msg, keyStr)
	case stateConfirming:
		return m.handleConfirmKey(keyStr)
	}

	if m.tree.IsFiltering() {
		return m.handleFilteringKey(msg, keyStr)
	}
	return m.handleNormalKey(msg)
}

func (m Model) handleFormKey(msg tea.KeyMsg, keyStr string) (tea.Model, tea.Cmd) {
	switch keyStr {
	case keyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case keyEsc:
		m.ui = stateNormal
		m.form = nil
		return m, nil
	}
	return m.updateForm(msg)
}

// updateForm routes a message to the open form and sends its requests once
// it completes.
func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.form.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		m.form.form = f
	}

	switch m.form.form.State {
	case huh.StateCompleted:
		frames, err := m.form.Frames()
		m.ui = stateNormal
		m.form = nil
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, m.send(frames...)
	case huh.StateAborted:
		m.ui = stateNormal
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m Model) openForm(f *Form) (tea.Model, tea.Cmd) {
	m.form = f
	m.ui = stateForm
	return m, f.form.Init()
}

func (m Model) handleConfirmKey(keyStr string) (tea.Model, tea.Cmd) {
	switch keyStr {
	case keyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case "left", "right", "h", "l", "tab":
		m.modal.ToggleSelection()
		return m, nil
	case keyEsc:
		m.ui = stateNormal
		m.pendingRemoval = ""
		return m, nil
	case keyEnter:
		host := m.pendingRemoval
		confirmed := m.modal.ConfirmSelected()
		m.ui = stateNormal
		m.pendingRemoval = ""
		if confirmed && host != "" {
			return m, m.send(jsonrpc.Remove(host))
		}
	}
	return m, nil
}

func (m Model) handleFilteringKey(msg tea.KeyMsg, keyStr string) (tea.Model, tea.Cmd) {
	switch keyStr {
	case keyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case keyEsc:
		m.tree.CancelFilter()
	case keyEnter:
		m.tree.ConfirmFilter()
	case "backspace":
		m.tree.DeleteFilterRune()
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			for _, r := range msg.Runes {
				m.tree.AddFilterRune(r)
			}
		}
	}
	m.syncSelection()
	return m, nil
}

func (m Model) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.NextPane):
		m.focus = m.nextPane()

	case key.Matches(msg, m.keys.NextBroker):
		m.selectNextBroker()

	case key.Matches(msg, m.keys.Filter):
		m.focus = paneTree
		m.tree.StartFilter()
		m.syncSelection()

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.Toggle):
		if m.focus == paneTree {
			m.tree.Toggle()
			m.syncSelection()
		}

	case key.Matches(msg, m.keys.AddStep):
		m.addSelectedStep()

	case key.Matches(msg, m.keys.ResetPipeline):
		if entry, ok := m.state.Current(); ok {
			pipeline.Reset(entry.Pipeline)
		}

	case key.Matches(msg, m.keys.LoadPipeline):
		if i, ok := pipelineSlot(msg.String()); ok && i < len(m.state.Pipelines) {
			saved := m.state.Pipelines[i]
			appstate.SetPipeline(m.state, saved.Steps())
			m.loadedPipeline = saved.Name
		}

	case key.Matches(msg, m.keys.SavePipeline):
		if entry, ok := m.state.Current(); ok && len(entry.Pipeline) > 0 {
			return m.openForm(NewSavePipelineForm(pipeline.Topics(entry.Pipeline)))
		}

	case key.Matches(msg, m.keys.Delete):
		return m.deleteFocused()

	case key.Matches(msg, m.keys.Publish):
		if m.state.SelectedBroker != "" {
			topic := ""
			if n := m.tree.Selected(); n != nil {
				topic = n.ID
			}
			return m.openForm(NewPublishForm(m.state.SelectedBroker, topic))
		}

	case key.Matches(msg, m.keys.ToggleCommands):
		m.showCommands = !m.showCommands
		if m.showCommands {
			m.focus = paneCommands
		} else if m.focus == paneCommands {
			m.focus = paneTree
		}

	case key.Matches(msg, m.keys.RunCommand):
		if m.showCommands && m.state.SelectedBroker != "" && m.commandCursor < len(m.state.Commands) {
			c := m.state.Commands[m.commandCursor]
			return m, m.send(jsonrpc.Publish(m.state.SelectedBroker, c.Topic, c.Payload))
		}

	case key.Matches(msg, m.keys.Connect):
		return m.openForm(NewConnectForm())

	case key.Matches(msg, m.keys.RemoveBroker):
		if host := m.state.SelectedBroker; host != "" {
			m.pendingRemoval = host
			m.modal = NewModal("Remove broker", fmt.Sprintf("Disconnect and forget %s?", host))
			m.ui = stateConfirming
		}
	}
	return m, nil
}

func (m Model) nextPane() pane {
	last := panePipeline
	if m.showCommands {
		last = paneCommands
	}
	if m.focus >= last {
		return paneTree
	}
	return m.focus + 1
}

func (m *Model) moveCursor(delta int) {
	switch m.focus {
	case paneTree:
		if delta < 0 {
			m.tree.MoveUp()
		} else {
			m.tree.MoveDown()
		}
		m.syncSelection()
	case paneDetail:
		if delta < 0 {
			m.detail.ScrollUp()
		} else {
			m.detail.ScrollDown()
		}
	case paneCommands:
		m.commandCursor = max(min(m.commandCursor+delta, len(m.state.Commands)-1), 0)
	}
}

// selectNextBroker moves to the next live broker. Brokers removed by the
// bridge stay visible until the user moves on; they are evicted here.
func (m *Model) selectNextBroker() {
	keys := m.state.BrokerKeys()
	if len(keys) == 0 {
		return
	}

	cur := slices.Index(keys, m.state.SelectedBroker)
	next := ""
	for i := 1; i <= len(keys); i++ {
		k := keys[(cur+i+len(keys))%len(keys)]
		if entry, _ := m.state.Broker(k); !entry.MarkedForDeletion {
			next = k
			break
		}
	}

	appstate.EvictMarked(m.state)
	if next != "" {
		appstate.SelectBroker(m.state, next)
	}
	m.loadedPipeline = ""
	m.sync()
}

func (m *Model) addSelectedStep() {
	entry, ok := m.state.Current()
	n := m.tree.Selected()
	if !ok || n == nil {
		return
	}
	appstate.SetPipeline(m.state, append(entry.Pipeline, pipeline.Step{Topic: n.ID}))
}

func (m Model) deleteFocused() (tea.Model, tea.Cmd) {
	switch m.focus {
	case paneCommands:
		if m.commandCursor < len(m.state.Commands) {
			return m, m.send(jsonrpc.RemoveCommand(m.state.Commands[m.commandCursor].Name))
		}
	case panePipeline:
		if m.loadedPipeline != "" {
			name := m.loadedPipeline
			m.loadedPipeline = ""
			return m, m.send(jsonrpc.RemovePipeline(name))
		}
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	mainView := lipgloss.JoinVertical(
		lipgloss.Left,
		bannerStyle.Render(strings.TrimPrefix(styles.Banner, "\n")),
		m.renderBrokerTabs(),
		m.renderPanes(),
		m.renderStatus(),
		m.renderHelp(),
	)

	switch m.ui {
	case stateForm:
		if m.form != nil {
			box := modalStyle.Render(lipgloss.JoinVertical(
				lipgloss.Left,
				modalTitleStyle.Render(m.form.Title()),
				"",
				m.form.View(),
				modalHelpStyle.Render("enter next  esc cancel"),
			))
			return overlay(box, m.width, m.height)
		}
	case stateConfirming:
		return overlay(m.modal.View(), m.width, m.height)
	}
	return mainView
}

func (m Model) renderBrokerTabs() string {
	keys := m.state.BrokerKeys()
	if len(keys) == 0 {
		return helpStyle.Render("no brokers: press n to connect")
	}

	tabs := make([]string, 0, len(keys))
	for _, k := range keys {
		entry, _ := m.state.Broker(k)
		if entry.MarkedForDeletion {
			tabs = append(tabs, dimStyle.Render(iconConnected+" "+k+" (removed)"))
			continue
		}
		dot := disconnectedStyle.Render(iconConnected)
		if entry.Connected {
			dot = connectedStyle.Render(iconConnected)
		}
		name := tabNormalStyle.Render(k)
		if k == m.state.SelectedBroker {
			name = tabSelectedStyle.Render(k)
		}
		tabs = append(tabs, dot+" "+name)
	}
	return lipgloss.NewStyle().PaddingLeft(1).Render(strings.Join(tabs, "  "))
}

func (m Model) renderPanes() string {
	contentHeight := max(m.height-chromeLines, 4)
	leftWidth := m.width * 2 / 5
	rightWidth := m.width - leftWidth
	detailHeight := contentHeight * 3 / 5
	bottomHeight := contentHeight - detailHeight

	tree := m.pane(paneTree, leftWidth, contentHeight,
		titleStyle.Render("Topics")+"\n"+m.tree.View())

	detail := m.pane(paneDetail, rightWidth, detailHeight, m.detail.View())

	var bottom string
	if m.showCommands {
		bottom = m.pane(paneCommands, rightWidth, bottomHeight,
			renderCommands(m.state.Commands, m.commandCursor))
	} else {
		var steps []pipeline.Step
		if entry, ok := m.state.Current(); ok {
			steps = entry.Pipeline
		}
		content := renderPipeline(steps, m.loadedPipeline)
		if saved := renderSavedPipelines(m.state.Pipelines); saved != "" {
			content += "\n" + saved
		}
		bottom = m.pane(panePipeline, rightWidth, bottomHeight, content)
	}

	right := lipgloss.JoinVertical(lipgloss.Left, detail, bottom)
	return lipgloss.JoinHorizontal(lipgloss.Top, tree, right)
}

// pane frames content, highlighting the focused pane. Width and height
// include the border.
func (m Model) pane(p pane, width, height int, content string) string {
	style := paneStyle
	if m.focus == p {
		style = paneFocusedStyle
	}
	return style.
		Width(max(width-2, 1)).
		Height(max(height-2, 1)).
		MaxHeight(max(height, 1)).
		Render(content)
}

func (m Model) renderStatus() string {
	if m.err != nil {
		return errorStyle.Render("error: " + m.err.Error())
	}
	return ""
}

func (m Model) renderHelp() string {
	bindings := m.keys.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, " "+iconDot+" "))
}
