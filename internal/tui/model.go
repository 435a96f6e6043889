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

	"ragchat/internal/domain"
	"ragchat/internal/session"
	"ragchat/internal/textutil"
)

// SessionPort is the TUI-facing subset of a session controller.
type SessionPort interface {
	LoadSource(ctx context.Context, req domain.LoadRequest) (session.Report, error)
	Ask(ctx context.Context, question string) (session.Answer, error)
}

type screen int

const (
	screenMenu screen = iota
	screenParam
	screenChat
)

type loadedMsg struct {
	report session.Report
	err    error
}

type answeredMsg struct {
	question string
	answer   session.Answer
	err      error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	port     SessionPort
	screen   screen
	cursor   int
	source   domain.SourceType
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	busy     bool
	report   *session.Report
	answer   *session.Answer
	question string
	status   string
	failed   bool
	ready    bool
}

// New creates a new TUI model instance.
func New(port SessionPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		port:     port,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Choose a source to load.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + 1 + qh + 1 // header and summary lines, query box, status
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		r := msg.report
		m.report = &r
		m.answer = nil
		m.question = ""
		m.screen = screenChat
		m.setStatus(fmt.Sprintf("Loaded %d documents into %d chunks. Ask a question.", r.Documents, r.Chunks))
		m.input.Reset()
		m.input.Placeholder = "Ask a question and press Enter"
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case answeredMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		a := msg.answer
		m.answer = &a
		m.question = msg.question
		m.setStatus(fmt.Sprintf("Answered from %d chunks. Esc loads another source.", len(a.Sources)))
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch m.screen {
		case screenMenu:
			return m.updateMenu(msg)
		case screenParam:
			return m.updateParam(msg)
		case screenChat:
			return m.updateChat(msg)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		m.cursor = (m.cursor - 1 + len(domain.SourceTypes)) % len(domain.SourceTypes)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(domain.SourceTypes)
	case "enter":
		return m.selectSource(domain.SourceTypes[m.cursor])
	default:
		if st, err := domain.ParseSourceType(key); err == nil {
			return m.selectSource(st)
		}
	}
	return m, nil
}

func (m Model) selectSource(st domain.SourceType) (tea.Model, tea.Cmd) {
	m.source = st
	m.screen = screenParam
	m.input.Reset()
	m.input.Placeholder = st.Prompt()
	m.setStatus(fmt.Sprintf("Enter the %s and press Enter. Esc goes back.", st.Prompt()))
	return m, m.input.Focus()
}

func (m Model) updateParam(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.backToMenu(), nil
	case "enter":
		req := domain.LoadRequest{Type: m.source, Param: strings.TrimSpace(m.input.Value())}
		m.busy = true
		m.setStatus(fmt.Sprintf("Loading %s...", m.source.Label()))
		return m, tea.Batch(m.spinner.Tick, m.loadCmd(req))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.String() {
	case "esc":
		return m.backToMenu(), nil
	case "enter":
		q := strings.TrimSpace(m.input.Value())
		if q == "" {
			return m, nil
		}
		m.busy = true
		m.input.Reset()
		m.setStatus("Thinking...")
		return m, tea.Batch(m.spinner.Tick, m.askCmd(q))
	case "up", "down", "pgup", "pgdown":
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) backToMenu() Model {
	m.screen = screenMenu
	m.input.Blur()
	m.input.Reset()
	if m.report != nil {
		m.setStatus("Choose a source to replace the current one.")
	} else {
		m.setStatus("Choose a source to load.")
	}
	return m
}

func (m Model) loadCmd(req domain.LoadRequest) tea.Cmd {
	port := m.port
	return func() tea.Msg {
		r, err := port.LoadSource(context.Background(), req)
		return loadedMsg{report: r, err: err}
	}
}

func (m Model) askCmd(q string) tea.Cmd {
	port := m.port
	return func() tea.Msg {
		a, err := port.Ask(context.Background(), q)
		return answeredMsg{question: q, answer: a, err: err}
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.failed = false
}

func (m *Model) setError(err error) {
	m.status = domain.UserMessage(err)
	m.failed = true
}

// View renders the TUI layout for the active screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("RAG Chat"))
	b.WriteString("\n")
	if m.report != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s: %s  (%d documents, %d chunks)",
			m.report.Source.Label(), m.report.Param, m.report.Documents, m.report.Chunks)))
	}
	b.WriteString("\n")

	switch m.screen {
	case screenMenu:
		for i, st := range domain.SourceTypes {
			line := fmt.Sprintf("%d. %s", i+1, st.Label())
			if i == m.cursor {
				line = highlightStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
	case screenParam:
		b.WriteString(fmt.Sprintf("%s %s\n", m.source.Label(), dimStyle.Render("("+m.source.Prompt()+")")))
		b.WriteString(queryBoxStyle.Render(m.input.View()) + "\n")
	case screenChat:
		if m.report != nil && m.report.Summary != "" {
			b.WriteString(dimStyle.Render(textutil.Truncate(m.report.Summary, max(20, m.viewport.Width))) + "\n")
		}
		b.WriteString(resultBoxStyle.Render(m.viewport.View()) + "\n")
		b.WriteString(queryBoxStyle.Render(m.input.View()) + "\n")
	}

	status := statusStyle.Render(m.status)
	if m.failed {
		status = errorStyle.Render(m.status)
	}
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(status)
	return b.String()
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(highlightStyle.Render("Q: " + m.question))
	b.WriteString("\n\n")
	b.WriteString(m.answer.Text)
	if len(m.answer.Sources) > 0 {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Sources"))
		for i, ch := range m.answer.Sources {
			fmt.Fprintf(&b, "\n[%d] %s %s", i+1, sourceLabel(ch), highlightBestSentence(ch.Content, m.question))
		}
	}
	return b.String()
}

func sourceLabel(ch domain.Chunk) string {
	if p, ok := ch.Metadata["page"]; ok {
		return dimStyle.Render("(page " + p + ")")
	}
	if t, ok := ch.Metadata["title"]; ok {
		return dimStyle.Render("(" + t + ")")
	}
	return ""
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightBestSentence marks the sentence sharing the most terms with query.
func highlightBestSentence(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	q := textutil.TermSet(query)
	if len(q) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, 0
	for i, s := range sentences {
		score := 0
		for t := range textutil.TermSet(s) {
			if _, ok := q[t]; ok {
				score++
			}
		}
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestScore == 0 {
		return strings.Join(sentences, " ")
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}
