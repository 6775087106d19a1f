// Package tui is a terminal chat client running the answering pipeline
// in-process and rendering the token stream as it arrives.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/chain"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// Chain runs one conversational query.
type Chain interface {
	Run(ctx context.Context, req chain.Request) (<-chan chain.Token, <-chan chain.Result, error)
}

type (
	tokenMsg string
	doneMsg  chain.Result
	failMsg  struct{ err error }
)

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	chain    Chain
	input    textinput.Model
	viewport viewport.Model
	history  []domain.ConversationTurn
	lines    []string
	answer   strings.Builder
	tokens   <-chan chain.Token
	results  <-chan chain.Result
	busy     bool
	status   string
	ready    bool
}

// New creates a chat TUI over the given chain.
func New(c Chain) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the document and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{chain: c, input: ti, viewport: vp, status: "Ready."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := chatBoxStyle.GetFrameSize()
		_, inputFrame := inputBoxStyle.GetFrameSize()
		height := msg.Height - frame - inputFrame - 3 // header, status, spacer
		if height < 3 {
			height = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = height
		m.viewport.SetContent(m.transcript())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.busy {
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			return m.ask(question)
		}
	case tokenMsg:
		m.answer.WriteString(string(msg))
		m.viewport.SetContent(m.transcript())
		m.viewport.GotoBottom()
		return m, m.readNext()
	case doneMsg:
		return m.finish(chain.Result(msg)), nil
	case failMsg:
		m.busy = false
		m.status = "Error: " + msg.err.Error()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) (Model, tea.Cmd) {
	tokens, results, err := m.chain.Run(context.Background(), chain.Request{
		Question: question,
		Turns:    m.history,
	})
	if err != nil {
		m.status = "Error: " + err.Error()
		return m, nil
	}
	m.lines = append(m.lines, userStyle.Render("You: ")+question)
	m.history = append(m.history, domain.ConversationTurn{Role: domain.RoleUser, Content: question})
	m.answer.Reset()
	m.tokens = tokens
	m.results = results
	m.busy = true
	m.status = "Thinking..."
	m.input.SetValue("")
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
	return m, m.readNext()
}

// readNext waits for the next token, falling through to the terminal
// result once the token channel closes.
func (m Model) readNext() tea.Cmd {
	tokens, results := m.tokens, m.results
	return func() tea.Msg {
		if tok, ok := <-tokens; ok {
			return tokenMsg(tok.Content)
		}
		res := <-results
		if res.Err != nil {
			return failMsg{err: res.Err}
		}
		return doneMsg(res)
	}
}

func (m Model) finish(res chain.Result) Model {
	m.busy = false
	m.history = append(m.history, domain.ConversationTurn{Role: domain.RoleAssistant, Content: res.Answer})
	line := assistantStyle.Render("Assistant: ") + res.Answer
	if len(res.Sources) > 0 {
		var refs []string
		for _, s := range res.Sources {
			ref := fmt.Sprintf("[%d] %s", s.ID, s.Meta.Source)
			if s.Meta.Page != nil {
				ref += fmt.Sprintf(" p.%d", *s.Meta.Page)
			}
			refs = append(refs, ref)
		}
		line += "\n" + sourceStyle.Render("Sources: "+strings.Join(refs, "  "))
	}
	m.lines = append(m.lines, line)
	m.answer.Reset()
	m.status = fmt.Sprintf("Done. %d sources.", len(res.Sources))
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
	return m
}

func (m Model) transcript() string {
	lines := m.lines
	if m.busy {
		lines = append(lines, assistantStyle.Render("Assistant: ")+m.answer.String())
	}
	if len(lines) == 0 {
		return "No messages yet."
	}
	return strings.Join(lines, "\n\n")
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Chat with PDF")
	transcript := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
