package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"coach/internal/domain"
	"coach/internal/session"
)

// Model is the Bubble Tea model for the coaching console.
type Model struct {
	session   *session.Session
	input     textinput.Model
	viewport  viewport.Model
	lastDebug *session.DebugEvent
	status    string
	showDebug bool
	ready     bool
}

// New creates a console model bound to a session. When showDebug is true a
// per-turn panel shows the retrieved section titles and a context preview.
func New(sess *session.Session, showDebug bool) Model {
	ti := textinput.New()
	ti.Prompt = "Agent> "
	ti.Placeholder = "Describe the customer's question (or /quit)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{
		session:   sess,
		input:     ti,
		viewport:  vp,
		showDebug: showDebug,
		status:    "Session " + sess.ID() + " ready.",
	}
	if showDebug {
		holder := &session.DebugEvent{}
		sess.SetDebugSink(func(ev session.DebugEvent) { *holder = ev })
		m.lastDebug = holder
	}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header + status + input frame + spacer
		if m.showDebug {
			reserved += debugPanelLines
		}
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.session.Terminate()
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.SetValue("")
			if q == "/quit" {
				m.session.Terminate()
				return m, tea.Quit
			}
			turn, err := m.session.Ask(context.Background(), q)
			if err != nil {
				m.status = "Error: " + err.Error()
			} else {
				m.status = fmt.Sprintf("Replied (%d turns).", len(m.session.Turns()))
				_ = turn
			}
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the console layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Support Coach")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	parts := []string{header, transcript}
	if m.showDebug {
		parts = append(parts, m.renderDebugPanel())
	}
	parts = append(parts, input, status)
	return strings.Join(parts, "\n")
}

func (m Model) renderTranscript() string {
	turns := m.session.Turns()
	if len(turns) == 0 {
		return "No conversation yet. Ask about a customer issue."
	}
	var lines []string
	for _, t := range turns {
		switch t.Role {
		case domain.RoleUser:
			lines = append(lines, userStyle.Render("Agent> ")+t.Text)
		case domain.RoleAssistant:
			lines = append(lines, coachStyle.Render("Coach> ")+t.Text)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

const debugPanelLines = 4

func (m Model) renderDebugPanel() string {
	ev := m.lastDebug
	if ev == nil || ev.Question == "" {
		return debugStyle.Render("debug: no retrieval yet")
	}
	preview := strings.ReplaceAll(ev.ContextPreview, "\n", " ")
	if len(preview) > 160 {
		preview = preview[:160]
	}
	return debugStyle.Render(fmt.Sprintf("debug: retrieved [%s]\ndebug: %s", strings.Join(ev.Titles, " | "), preview))
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	coachStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	debugStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
