package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Chative-rag-chat/server/internal/agent/model"
	"github.com/Chative-rag-chat/server/internal/session"
)

// ChatPort is the TUI-facing subset of a session.
type ChatPort interface {
	Ask(ctx context.Context, query string) (session.Exchange, error)
	History(ctx context.Context) ([]model.ChatTurn, error)
	ClearHistory(ctx context.Context) error
}

// Reloader reloads the index and chunks after the files change on disk.
type Reloader func(ctx context.Context) error

type answerMsg struct {
	exchange session.Exchange
	err      error
}

// FilesChangedMsg is sent by the file watcher.
type FilesChangedMsg struct{}

type reloadedMsg struct{ err error }

// Model is the Bubble Tea model for the chat transcript.
type Model struct {
	ctx      context.Context
	chat     ChatPort
	reload   Reloader
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	turns    []model.ChatTurn
	summary  string
	status   string
	waiting  bool
	ready    bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, chat ChatPort, reload Reloader, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		chat:     chat,
		reload:   reload,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Chatbot is ready! Ctrl+L clears the history, Ctrl+C quits.",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadHistory)
}

func (m Model) loadHistory() tea.Msg {
	turns, err := m.chat.History(m.ctx)
	if err != nil {
		return answerMsg{err: err}
	}
	return historyMsg(turns)
}

type historyMsg []model.ChatTurn

func (m Model) ask(query string) tea.Cmd {
	return func() tea.Msg {
		ex, err := m.chat.Ask(m.ctx, query)
		return answerMsg{exchange: ex, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case historyMsg:
		m.turns = msg
		m.refresh()
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.turns = append(m.turns, msg.exchange.Turn)
		m.status = replyStatus(msg.exchange.Reply)
		m.refresh()
		return m, nil

	case FilesChangedMsg:
		if m.reload == nil {
			return m, nil
		}
		m.status = "Files changed, reloading..."
		return m, func() tea.Msg { return reloadedMsg{err: m.reload(m.ctx)} }

	case reloadedMsg:
		if msg.err != nil {
			m.status = "Error initializing chatbot: " + msg.err.Error()
		} else {
			m.status = "Reloaded index and chunks."
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlL:
			if m.waiting {
				m.status = "Wait for the current answer before clearing the history."
				return m, nil
			}
			if err := m.chat.ClearHistory(m.ctx); err != nil {
				m.status = "Error: " + err.Error()
			} else {
				m.turns = nil
				m.status = "History cleared."
				m.refresh()
			}
			return m, nil
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.SetValue("")
			m.waiting = true
			m.status = "Thinking..."
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("RAG Chatbot")
	summary := summaryStyle.Render(m.summary)
	transcript := transcriptStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.turns, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderTranscript(turns []model.ChatTurn, width int) string {
	if len(turns) == 0 {
		return summaryStyle.Render("No questions yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(20, width-2))
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString(separatorStyle.Render(strings.Repeat("─", max(3, width-2))) + "\n")
		}
		b.WriteString(wrap.Render(userStyle.Render("You: ")+t.Query) + "\n")
		answer := t.Answer
		if strings.HasPrefix(answer, model.ErrorPrefix) {
			answer = errorStyle.Render(answer)
		}
		b.WriteString(wrap.Render(botStyle.Render("Bot: ")+answer) + "\n")
	}
	return b.String()
}

func replyStatus(r model.Reply) string {
	if !r.OK() {
		return fmt.Sprintf("Answer failed (%s).", r.Kind())
	}
	if r.CostUSD > 0 {
		return fmt.Sprintf("Answered from %d chunks, $%.6f.", len(r.Sources), r.CostUSD)
	}
	return fmt.Sprintf("Answered from %d chunks.", len(r.Sources))
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	separatorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
