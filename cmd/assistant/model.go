package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/bizjuned/conversational-ai-assistant/core"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	partialStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	micOnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	historyBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

type (
	connectionStateMsg session.ConnectionState
	microphoneMsg      bool
	thinkingMsg        bool
	speakingMsg        bool
	transcriptMsg      []session.TranscriptEntry
	channelErrorMsg    struct{ err error }
	actionErrorMsg     struct{ err error }
	actionDoneMsg      struct{}
)

type model struct {
	cfg        Config
	controller *session.Controller
	events     chan tea.Msg

	input   textinput.Model
	history viewport.Model
	spin    spinner.Model

	state     session.ConnectionState
	micActive bool
	thinking  bool
	speaking  bool
	entries   []session.TranscriptEntry
	lastErr   string

	width  int
	height int
	ready  bool
}

func newModel(cfg Config, controller *session.Controller) model {
	input := textinput.New()
	input.Placeholder = "type a message, or ctrl+t to talk"
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return model{
		cfg:        cfg,
		controller: controller,
		events:     make(chan tea.Msg, 64),
		input:      input,
		spin:       spin,
		state:      session.StateDisconnected,
	}
}

// push hands a session callback over to the bubbletea loop. Callbacks fire on
// channel read goroutines and must never block them.
func (m model) push(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func (m model) sessionOptions() []session.SessionOption {
	return []session.SessionOption{
		session.OnConnectionStateChanged(func(state session.ConnectionState) {
			m.push(connectionStateMsg(state))
		}),
		session.OnMicrophoneStateChanged(func(active bool) { m.push(microphoneMsg(active)) }),
		session.OnThinkingStateChanged(func(active bool) { m.push(thinkingMsg(active)) }),
		session.OnSpeakingStateChanged(func(active bool) { m.push(speakingMsg(active)) }),
		session.OnTranscriptUpdated(func(entries []session.TranscriptEntry) {
			m.push(transcriptMsg(entries))
		}),
		session.OnPlaybackDegraded(func(err error) { m.push(channelErrorMsg{err}) }),
		session.OnChannelError(func(err error) { m.push(channelErrorMsg{err}) }),
	}
}

func (m model) waitForEvent() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m model) connectCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.controller.Connect(context.Background(), m.sessionOptions()...); err != nil {
			return actionErrorMsg{err}
		}
		return actionDoneMsg{}
	}
}

func (m model) toggleMicrophoneCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.controller.ToggleMicrophone(context.Background()); err != nil {
			return actionErrorMsg{err}
		}
		return actionDoneMsg{}
	}
}

func (m model) sendTextCmd(text string) tea.Cmd {
	return func() tea.Msg {
		if err := m.controller.SendText(context.Background(), text); err != nil {
			return actionErrorMsg{err}
		}
		return actionDoneMsg{}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.connectCmd(), m.waitForEvent(), m.spin.Tick, textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			_ = m.controller.Disconnect()
			return m, tea.Quit
		case tea.KeyCtrlT:
			return m, m.toggleMicrophoneCmd()
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.lastErr = ""
			return m, m.sendTextCmd(text)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		historyHeight := m.height - 7
		if historyHeight < 3 {
			historyHeight = 3
		}
		if !m.ready {
			m.history = viewport.New(m.width-4, historyHeight)
			m.ready = true
		} else {
			m.history.Width = m.width - 4
			m.history.Height = historyHeight
		}
		m.history.SetContent(m.renderTranscript())

	case connectionStateMsg:
		m.state = session.ConnectionState(msg)
		cmds = append(cmds, m.waitForEvent())

	case microphoneMsg:
		m.micActive = bool(msg)
		cmds = append(cmds, m.waitForEvent())

	case thinkingMsg:
		m.thinking = bool(msg)
		cmds = append(cmds, m.waitForEvent())

	case speakingMsg:
		m.speaking = bool(msg)
		cmds = append(cmds, m.waitForEvent())

	case transcriptMsg:
		m.entries = msg
		if m.ready {
			m.history.SetContent(m.renderTranscript())
			m.history.GotoBottom()
		}
		cmds = append(cmds, m.waitForEvent())

	case channelErrorMsg:
		m.lastErr = msg.err.Error()
		cmds = append(cmds, m.waitForEvent())

	case actionErrorMsg:
		m.lastErr = msg.err.Error()

	case actionDoneMsg:

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	var historyCmd tea.Cmd
	m.history, historyCmd = m.history.Update(msg)
	cmds = append(cmds, historyCmd)

	return m, tea.Batch(cmds...)
}

func (m model) renderTranscript() string {
	if len(m.entries) == 0 {
		return partialStyle.Render("say something, or type below")
	}

	width := m.history.Width
	if width <= 0 {
		width = 80
	}

	var lines []string
	for _, entry := range m.entries {
		label := userStyle.Render("you")
		if entry.Speaker == session.SpeakerAgent {
			label = agentStyle.Render("assistant")
		}

		text := entry.Text
		if !entry.Final {
			text = partialStyle.Render(text + " …")
		}

		lines = append(lines, label+": "+wordwrap.String(text, width-12))
	}
	return strings.Join(lines, "\n\n")
}

func (m model) statusLine() string {
	parts := []string{string(m.state)}

	if m.micActive {
		parts = append(parts, micOnStyle.Render("● mic"))
	} else {
		parts = append(parts, "○ mic")
	}
	if m.thinking {
		parts = append(parts, m.spin.View()+"thinking")
	}
	if m.speaking {
		parts = append(parts, "♪ speaking")
	}
	if id := m.controller.ConversationID(); id != "" && len(id) >= 8 {
		parts = append(parts, "conversation "+id[:8])
	}

	return statusStyle.Render(strings.Join(parts, "  ·  "))
}

func (m model) View() string {
	if !m.ready {
		return "starting…"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("conversational assistant"))
	b.WriteString("\n")
	b.WriteString(historyBorder.Render(m.history.View()))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.lastErr != "" {
		b.WriteString(errorStyle.Render(m.lastErr))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("ctrl+t mic  ·  enter send  ·  esc quit  ·  %s", m.cfg.Backend.BaseURL)))

	return b.String()
}
