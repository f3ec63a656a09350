package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mlpierce22/triplechat/internal/chat"
	"github.com/mlpierce22/triplechat/internal/config"
)

const (
	inputCharLimit = 4000
	broadcastAll   = -1
)

// pane couples one configured target with its conversation, session and
// scrollable view.
type pane struct {
	target  config.Target
	conv    *chat.Conversation
	session *chat.Session
	vp      viewport.Model
}

type storeUpdateMsg struct{}

type sendFinishedMsg struct {
	errs []error
}

// Model is the triple-chat TUI: three conversation panes over a shared input.
// A send goes either to the focused pane or to all panes at once.
type Model struct {
	width  int
	height int

	panes  []*pane
	fanout *chat.Fanout

	input   textarea.Model
	spin    spinner.Model
	styles  *styles
	updates chan struct{}

	// broadcastAll or an index into panes
	target  int
	cancel  context.CancelFunc
	lastErr string
}

// New assembles the TUI from the configured chat targets. Conversations are
// seeded with their greetings and wired to the update channel that drives
// re-rendering and scroll-to-latest.
func New(cfg *config.Config) *Model {
	m := &Model{
		styles:  defaultStyles(),
		updates: make(chan struct{}, 1),
		target:  broadcastAll,
	}

	var sessions []*chat.Session
	for _, target := range cfg.ChatTargets() {
		conv := chat.NewConversation(chat.NewAssistantMessage(target.Greeting))
		conv.OnChange(m.notifyUpdate)
		session := chat.NewSession(target.Endpoint, conv)
		if cfg.CharLimit > 0 {
			session.CharLimit = cfg.CharLimit
		}
		m.panes = append(m.panes, &pane{
			target:  target,
			conv:    conv,
			session: session,
			vp:      viewport.New(0, 0),
		})
		sessions = append(sessions, session)
	}
	m.fanout = chat.NewFanout(sessions...)

	ta := textarea.New()
	ta.Placeholder = "Type a message to send to all models..."
	ta.CharLimit = inputCharLimit
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()
	m.input = ta

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m.spin = sp

	return m
}

// notifyUpdate coalesces conversation changes into a single pending wakeup.
// It is called from session goroutines and must not block.
func (m *Model) notifyUpdate() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-m.updates
		return storeUpdateMsg{}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick, m.waitForUpdate())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancelStream()
			return m, tea.Quit
		case "esc":
			m.cancelStream()
			return m, nil
		case "tab":
			m.cycleTarget()
			return m, nil
		case "ctrl+r":
			if !m.loading() {
				m.resetAll()
			}
			return m, nil
		case "enter":
			if cmd := m.send(); cmd != nil {
				return m, cmd
			}
			return m, nil
		}

	case storeUpdateMsg:
		m.refreshPanes()
		cmds = append(cmds, m.waitForUpdate())

	case sendFinishedMsg:
		// The send is settled; release its context.
		m.cancelStream()
		m.lastErr = ""
		for _, err := range msg.errs {
			if err != nil {
				m.lastErr = err.Error()
				break
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// send dispatches the composed message to the focused pane or to every pane.
// Returns nil when there is nothing to do.
func (m *Model) send() tea.Cmd {
	content := strings.TrimSpace(m.input.Value())
	if content == "" || m.loading() {
		return nil
	}
	msg := chat.NewUserMessage(content)
	m.input.Reset()
	m.lastErr = ""

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	if m.target == broadcastAll {
		return func() tea.Msg {
			return sendFinishedMsg{errs: m.fanout.Broadcast(ctx, msg)}
		}
	}

	session := m.panes[m.target].session
	return func() tea.Msg {
		return sendFinishedMsg{errs: []error{session.Send(ctx, msg)}}
	}
}

func (m *Model) loading() bool {
	convs := make([]*chat.Conversation, len(m.panes))
	for i, p := range m.panes {
		convs[i] = p.conv
	}
	return chat.AnyLoading(convs...)
}

func (m *Model) cancelStream() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) cycleTarget() {
	m.target++
	if m.target >= len(m.panes) {
		m.target = broadcastAll
	}
	if m.target == broadcastAll {
		m.input.Placeholder = "Type a message to send to all models..."
	} else {
		m.input.Placeholder = fmt.Sprintf("Message %s...", m.panes[m.target].target.Title)
	}
}

func (m *Model) resetAll() {
	for _, p := range m.panes {
		p.conv.Reset(chat.NewAssistantMessage(p.target.Greeting))
	}
	m.lastErr = ""
}

func (m *Model) layout() {
	if len(m.panes) == 0 {
		return
	}
	paneW := m.width/len(m.panes) - 4
	if paneW < 10 {
		paneW = 10
	}
	paneH := m.height - m.input.Height() - 7
	if paneH < 3 {
		paneH = 3
	}
	for _, p := range m.panes {
		p.vp.Width = paneW
		p.vp.Height = paneH
	}
	m.input.SetWidth(m.width - 4)
	m.refreshPanes()
}

func (m *Model) refreshPanes() {
	for _, p := range m.panes {
		p.vp.SetContent(m.renderConversation(p))
		p.vp.GotoBottom()
	}
}

func (m *Model) renderConversation(p *pane) string {
	wrap := lipgloss.NewStyle().Width(p.vp.Width)
	var b strings.Builder
	for _, msg := range p.conv.Messages() {
		label := p.target.Title
		style := m.styles.assistant
		if msg.Role == chat.RoleUser {
			label = "You"
			style = m.styles.user
		}
		b.WriteString(style.Render(label))
		b.WriteString("\n")
		b.WriteString(wrap.Render(msg.Content))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m *Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	rendered := make([]string, 0, len(m.panes))
	for i, p := range m.panes {
		header := m.styles.title.Width(p.vp.Width).Render(p.target.Title)
		sub := p.target.Model
		if p.conv.Loading() {
			sub = m.spin.View() + "streaming"
		}
		box := lipgloss.JoinVertical(lipgloss.Left,
			header,
			m.styles.subtitle.Width(p.vp.Width).Render(sub),
			p.vp.View(),
		)
		style := m.styles.pane
		if m.target == i {
			style = m.styles.paneFocused
		}
		rendered = append(rendered, style.Render(box))
	}

	status := m.statusLine()
	inputStyle := m.styles.inputBox
	if m.target == broadcastAll {
		inputStyle = m.styles.paneFocused
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, rendered...),
		inputStyle.Width(m.width-2).Render(m.input.View()),
		status,
	)
}

func (m *Model) statusLine() string {
	target := "all models"
	if m.target != broadcastAll {
		target = m.panes[m.target].target.Title
	}
	parts := []string{
		fmt.Sprintf("sending to: %s", target),
		"tab: target",
		"enter: send",
		"ctrl+r: reset",
		"esc: stop",
		"ctrl+c: quit",
	}
	line := m.styles.status.Render(strings.Join(parts, " • "))
	if m.lastErr != "" {
		line += "  " + m.styles.errText.Render(m.lastErr)
	}
	return line
}
