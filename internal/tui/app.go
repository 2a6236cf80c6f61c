// Package tui provides the terminal chat interface for lumi.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/lumi/internal/config"
	"github.com/xonecas/lumi/internal/constants"
	"github.com/xonecas/lumi/internal/msglog"
	"github.com/xonecas/lumi/internal/provider"
	"github.com/xonecas/lumi/internal/session"
	"github.com/xonecas/lumi/internal/store"
	"github.com/xonecas/lumi/internal/transcript"
)

// View represents the current view mode.
type View int

const (
	ViewChat View = iota
	ViewChatList
)

// Options wires the TUI to its collaborators.
type Options struct {
	Store        *store.Store
	Config       *config.Config
	Provider     provider.Provider
	Runner       session.ToolRunner
	SystemPrompt string

	// InitialChatID opens a chat directly instead of the chat list.
	InitialChatID string
}

// Model is the main TUI model.
type Model struct {
	opts Options

	log      *msglog.Log
	bus      *msglog.EventBus
	logCh    <-chan msglog.Event
	canvas   *transcript.BlockList
	scroller *viewScroller
	engine   *transcript.Engine
	sess     *session.Session

	chats       []*store.Chat
	activeChat  *store.Chat
	selectedIdx int

	view     View
	width    int
	height   int
	showHelp bool

	input    InputModel
	viewport viewport.Model
	ready    bool

	pendingQuestion *transcript.Question
	typing          bool
	rebuilding      bool

	err error
}

// New creates a new TUI model.
func New(opts Options) Model {
	bus := msglog.NewEventBus(constants.MinEventBusBufferSize)
	l := msglog.New(bus)
	canvas := transcript.NewBlockList()
	scroller := &viewScroller{canvas: canvas}

	policy := transcript.DisplayPolicy{
		ShowToolCalls:  opts.Config.Display.ShowToolCalls,
		ShowReasoning:  opts.Config.Display.ShowReasoning,
		ShowTimestamps: opts.Config.Display.ShowTimestamps,
	}
	engine := transcript.NewEngine(l, canvas, scroller, transcript.TickScheduler{}, policy)

	return Model{
		opts:     opts,
		log:      l,
		bus:      bus,
		logCh:    bus.Subscribe(),
		canvas:   canvas,
		scroller: scroller,
		engine:   engine,
		view:     ViewChatList,
		input:    NewInputModel(),
	}
}

// Messages flowing through Update.
type (
	logEventMsg     struct{ event msglog.Event }
	sessionEventMsg struct{ event session.Event }
	rebuildDoneMsg  struct{}
	olderLoadedMsg  struct{ loaded bool }
	chatsLoadedMsg  struct {
		chats []*store.Chat
		err   error
	}
	chatOpenedMsg struct {
		chat *store.Chat
		err  error
	}
)

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.loadChats(),
		m.listenForLogEvents(),
	}
	if m.opts.InitialChatID != "" {
		cmds = append(cmds, m.openChatCmd(m.opts.InitialChatID))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 4)
		vpHeight := msg.Height - 6
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = vpHeight
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case logEventMsg:
		m.handleLogEvent(msg.event)
		return m, m.listenForLogEvents()

	case sessionEventMsg:
		cmd := m.handleSessionEvent(msg.event)
		return m, tea.Batch(cmd, m.listenForSessionEvents())

	case rebuildDoneMsg:
		m.rebuilding = false
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, nil

	case olderLoadedMsg:
		if msg.loaded {
			m.refreshTranscript()
		}
		return m, nil

	case chatsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.chats = msg.chats
		if m.selectedIdx >= len(m.chats) {
			m.selectedIdx = len(m.chats) - 1
		}
		if m.selectedIdx < 0 {
			m.selectedIdx = 0
		}
		return m, nil

	case chatOpenedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m.openChat(msg.chat)
	}

	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return RenderHelp(m.width, m.height)
	}

	var content string
	if m.view == ViewChatList {
		content = m.renderChatList()
	} else {
		content = m.renderChat()
	}

	content += "\n" + m.input.ViewAlways(m.width)

	status := m.statusLine()
	if m.err != nil {
		status = failedStyle.Render(truncateWithEllipsis(fmt.Sprintf("Error: %v", m.err), m.width))
	}
	return content + "\n" + status
}

func (m Model) renderChat() string {
	title := "lumi"
	if m.activeChat != nil {
		title = m.activeChat.Title
	}
	header := renderSectionTitle(truncateWithEllipsis(title, m.width/2), m.width)

	body := m.viewport.View()
	bar := renderScrollbar(m.viewport.Height, m.scroller.lastExtent(), m.viewport.YOffset)

	bodyLines := strings.Split(body, "\n")
	barLines := strings.Split(bar, "\n")
	var joined []string
	for i, line := range bodyLines {
		barChar := ""
		if i < len(barLines) {
			barChar = barLines[i]
		}
		joined = append(joined, padToWidth(line, m.width-2)+barChar)
	}
	return header + "\n" + strings.Join(joined, "\n")
}

func (m Model) renderChatList() string {
	header := renderSectionTitle("Chats", m.width)

	if len(m.chats) == 0 {
		return header + "\n" + dimmedStyle.Render("  No chats yet. Press 'n' to start one.")
	}

	var rows []string
	for i, c := range m.chats {
		label := truncateWithEllipsis(c.Title, m.width-20) +
			"  " + dimmedStyle.Render(c.Model)
		if i == m.selectedIdx {
			rows = append(rows, chatItemSelectedStyle.Render(label))
		} else {
			rows = append(rows, chatItemStyle.Render(label))
		}
	}
	return header + "\n" + chatListStyle.Width(m.width-2).Render(strings.Join(rows, "\n"))
}

func (m Model) statusLine() string {
	parts := []string{}
	if m.typing {
		parts = append(parts, "thinking…")
	}
	if m.rebuilding {
		parts = append(parts, "rebuilding…")
	}
	if n := m.engine.DeferredCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d older messages", n))
	}
	policy := m.engine.Policy()
	toggles := fmt.Sprintf("tools:%s reasoning:%s timestamps:%s",
		onOff(policy.ShowToolCalls), onOff(policy.ShowReasoning), onOff(policy.ShowTimestamps))
	parts = append(parts, toggles)
	return statusBarStyle.Width(m.width).Render(" " + strings.Join(parts, "  ·  "))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func padToWidth(s string, width int) string {
	// lipgloss-rendered lines may be shorter than the viewport width.
	for len(s) < width {
		s += " "
	}
	return s
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle input mode first
	if m.input.IsActive() {
		return m.handleInputKey(msg)
	}

	// Handle help toggle
	if key.Matches(msg, keys.Help) {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Escape):
		if m.view == ViewChat {
			if m.sess != nil {
				m.sess.Stop()
			}
			m.view = ViewChatList
			return m, m.loadChats()
		}
		return m, nil
	}

	if m.view == ViewChatList {
		return m.handleChatListKey(msg)
	}
	return m.handleChatKey(msg)
}

func (m Model) handleChatListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.selectedIdx > 0 {
			m.selectedIdx--
		}

	case key.Matches(msg, keys.Down):
		if m.selectedIdx < len(m.chats)-1 {
			m.selectedIdx++
		}

	case key.Matches(msg, keys.Enter):
		if len(m.chats) > 0 && m.selectedIdx < len(m.chats) {
			return m, m.openChatCmd(m.chats[m.selectedIdx].ID)
		}

	case key.Matches(msg, keys.NewChat):
		m.input.SetMode(InputModeNewChat, "")
		return m, m.input.Focus()

	case key.Matches(msg, keys.Rename):
		if len(m.chats) > 0 && m.selectedIdx < len(m.chats) {
			m.input.SetMode(InputModeRenameChat, m.chats[m.selectedIdx].ID)
			return m, m.input.Focus()
		}

	case key.Matches(msg, keys.Delete):
		if len(m.chats) > 0 && m.selectedIdx < len(m.chats) {
			m.err = m.opts.Store.DeleteChat(m.chats[m.selectedIdx].ID)
			return m, m.loadChats()
		}
	}

	return m, nil
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Insert), key.Matches(msg, keys.Enter):
		mode := InputModeMessage
		target := ""
		if m.pendingQuestion != nil {
			mode = InputModeAnswer
			target = m.pendingQuestion.ID
		}
		m.input.SetMode(mode, target)
		return m, m.input.Focus()

	case key.Matches(msg, keys.ToggleTools):
		return m.togglePolicy(func(p *transcript.DisplayPolicy) { p.ShowToolCalls = !p.ShowToolCalls })

	case key.Matches(msg, keys.ToggleReasoning):
		return m.togglePolicy(func(p *transcript.DisplayPolicy) { p.ShowReasoning = !p.ShowReasoning })

	case key.Matches(msg, keys.ToggleTimestamps):
		return m.togglePolicy(func(p *transcript.DisplayPolicy) { p.ShowTimestamps = !p.ShowTimestamps })
	}

	// Everything else scrolls the viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.scroller.syncFromViewport(m.viewport.YOffset, m.scroller.lastExtent())

	if m.viewport.YOffset < constants.ScrollTopThresholdLines {
		return m, tea.Batch(cmd, m.loadOlderCmd())
	}
	return m, cmd
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.input.Reset()
		return m, nil

	case key.Matches(msg, keys.Enter):
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			m.input.Reset()
			return m, nil
		}

		mode := m.input.Mode()
		target := m.input.TargetID()
		m.input.AddToHistory(value)
		m.input.Reset()

		switch mode {
		case InputModeMessage, InputModeAnswer:
			if m.sess != nil {
				if mode == InputModeAnswer {
					m.pendingQuestion = nil
				}
				m.sess.SendUserMessage(context.Background(), value, nil)
			}
			return m, nil

		case InputModeNewChat:
			chat, err := m.opts.Store.CreateChat(value, m.opts.Provider.Name(), "")
			if err != nil {
				m.err = err
				return m, nil
			}
			return m.openChat(chat)

		case InputModeRenameChat:
			m.err = m.opts.Store.RenameChat(target, value)
			return m, m.loadChats()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) togglePolicy(mutate func(*transcript.DisplayPolicy)) (tea.Model, tea.Cmd) {
	policy := m.engine.Policy()
	mutate(&policy)
	m.engine.SetPolicy(policy)
	m.rebuilding = true
	return m, m.rebuildCmd()
}

// openChat hydrates the log from the store and swaps the session.
func (m Model) openChat(chat *store.Chat) (tea.Model, tea.Cmd) {
	messages, err := m.opts.Store.ListMessages(chat.ID)
	if err != nil {
		m.err = err
		return m, nil
	}

	if m.sess != nil {
		m.sess.Stop()
	}

	m.activeChat = chat
	m.view = ViewChat
	m.log.Load(messages)
	m.sess = session.New(m.log, m.opts.Store, chat.ID, m.opts.Provider, m.opts.Runner, m.opts.SystemPrompt)
	m.pendingQuestion = nil
	m.typing = false
	m.rebuilding = true
	m.err = nil

	return m, tea.Batch(m.rebuildCmd(), m.listenForSessionEvents())
}

// handleLogEvent routes a log mutation into the engine.
func (m *Model) handleLogEvent(e msglog.Event) {
	switch e.Type {
	case msglog.EventAdded:
		m.engine.HandleAdded(e.Message)
	case msglog.EventContentChanged:
		m.engine.HandleContentChanged(e.Message)
	case msglog.EventStatusChanged:
		m.engine.HandleStatusChanged(e.Message)
	case msglog.EventReset:
		// A rebuild follows; nothing to do per event.
		return
	}
	m.refreshTranscript()
	m.viewport.GotoBottom()
}

// handleSessionEvent routes a session notification into the engine.
func (m *Model) handleSessionEvent(e session.Event) tea.Cmd {
	switch e.Kind {
	case session.EventTyping:
		m.typing = e.Typing
		m.engine.SetTyping(e.Typing)

	case session.EventAssistantDone:
		m.engine.AssistantDone(e.Message)

	case session.EventTerminalOutput:
		m.engine.ApplyTerminalOutput(e.ToolCallID, e.Output, e.Replace)

	case session.EventSearchResults:
		m.engine.CollectSearchResults(e.Sources)

	case session.EventFileCreated:
		m.engine.NoteFileCreated(e.Path)

	case session.EventQuestionAsked:
		m.pendingQuestion = e.Question
		m.engine.ShowQuestion(*e.Question)

	case session.EventError:
		m.err = e.Err
		log.Error().Err(e.Err).Msg("session error")
	}
	m.refreshTranscript()
	m.viewport.GotoBottom()
	return nil
}

// refreshTranscript re-renders the canvas into the viewport and reconciles
// scroll state with the engine.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	policy := m.engine.Policy()
	m.scroller.configure(m.viewport.Width-1, policy.ShowTimestamps)
	content := RenderBlocks(m.canvas.Blocks(), m.viewport.Width-1, policy.ShowTimestamps)
	m.viewport.SetContent(content)

	extent := strings.Count(content, "\n") + 1
	m.scroller.syncFromViewport(m.viewport.YOffset, extent)
	if offset, ok := m.scroller.takePending(); ok {
		m.viewport.SetYOffset(offset)
	}
}

// Commands

func (m Model) loadChats() tea.Cmd {
	return func() tea.Msg {
		chats, err := m.opts.Store.ListChats()
		return chatsLoadedMsg{chats: chats, err: err}
	}
}

func (m Model) openChatCmd(id string) tea.Cmd {
	return func() tea.Msg {
		chat, err := m.opts.Store.GetChat(id)
		return chatOpenedMsg{chat: chat, err: err}
	}
}

func (m Model) rebuildCmd() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		engine.Rebuild(context.Background())
		return rebuildDoneMsg{}
	}
}

func (m Model) loadOlderCmd() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		loaded := engine.MaybeLoadOlder(context.Background())
		return olderLoadedMsg{loaded: loaded}
	}
}

func (m Model) listenForLogEvents() tea.Cmd {
	ch := m.logCh
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return logEventMsg{event: event}
	}
}

func (m Model) listenForSessionEvents() tea.Cmd {
	if m.sess == nil {
		return nil
	}
	ch := m.sess.Events()
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return sessionEventMsg{event: event}
	}
}

// Key bindings
var keys = struct {
	Quit             key.Binding
	Help             key.Binding
	Escape           key.Binding
	Enter            key.Binding
	Up               key.Binding
	Down             key.Binding
	Insert           key.Binding
	NewChat          key.Binding
	Rename           key.Binding
	Delete           key.Binding
	ToggleTools      key.Binding
	ToggleReasoning  key.Binding
	ToggleTimestamps key.Binding
}{
	Quit:             key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Help:             key.NewBinding(key.WithKeys("?")),
	Escape:           key.NewBinding(key.WithKeys("esc")),
	Enter:            key.NewBinding(key.WithKeys("enter")),
	Up:               key.NewBinding(key.WithKeys("up", "k")),
	Down:             key.NewBinding(key.WithKeys("down", "j")),
	Insert:           key.NewBinding(key.WithKeys("i")),
	NewChat:          key.NewBinding(key.WithKeys("n")),
	Rename:           key.NewBinding(key.WithKeys("R")),
	Delete:           key.NewBinding(key.WithKeys("d")),
	ToggleTools:      key.NewBinding(key.WithKeys("t")),
	ToggleReasoning:  key.NewBinding(key.WithKeys("e")),
	ToggleTimestamps: key.NewBinding(key.WithKeys("s")),
}
