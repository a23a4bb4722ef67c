package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-prompter/core"
	"github.com/koscakluka/ema-prompter/core/events"
	"github.com/koscakluka/ema-prompter/core/segmentation"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

// promptView is the part of the session the terminal UI reads from.
type promptView interface {
	Segments() []segmentation.Segment
	Buckets() [][]int
	Pointer() int
	SentenceMode() bool
	SetSentenceMode(enabled bool)
}

type promptStyles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Current lipgloss.Style
	Read    lipgloss.Style
	Help    lipgloss.Style
	Error   lipgloss.Style
}

func newPromptStyles() promptStyles {
	return promptStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Padding(0, 1),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		Current: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00ff9f")),
		Read:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87")),
	}
}

// sessionEventMsg wraps session events for bubbletea.
type sessionEventMsg struct{ event events.Event }

type sessionErrMsg struct{ err error }

type segmentsChangedMsg struct{}

type promptModel struct {
	session promptView

	viewport viewport.Model
	styles   promptStyles
	width    int
	height   int
	ready    bool

	segments     []segmentation.Segment
	buckets      [][]int
	pointer      int
	sentenceMode bool

	connection string
	paused     bool
	speaking   bool
	prompting  bool
	transcript string
	lastErr    string
	completed  bool
}

func newPromptModel(session promptView) promptModel {
	m := promptModel{
		session:    session,
		styles:     newPromptStyles(),
		connection: "connecting",
	}
	m.reload()
	return m
}

func (m *promptModel) reload() {
	m.segments = m.session.Segments()
	m.buckets = m.session.Buckets()
	m.pointer = m.session.Pointer()
	m.sentenceMode = m.session.SentenceMode()
	m.completed = false
	m.paused = false
}

func (m promptModel) Init() tea.Cmd {
	return nil
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		case "w":
			session, enabled := m.session, !m.sentenceMode
			return m, func() tea.Msg {
				session.SetSentenceMode(enabled)
				return segmentsChangedMsg{}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		height := max(1, msg.Height-4)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()

	case sessionEventMsg:
		m.apply(msg.event)
		m.refresh()

	case segmentsChangedMsg:
		m.reload()
		m.refresh()

	case sessionErrMsg:
		m.lastErr = msg.err.Error()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *promptModel) apply(event events.Event) {
	switch event := event.(type) {
	case events.SegmentHighlighted:
		m.pointer = event.Index
	case events.ScriptPaused:
		m.paused = true
	case events.ScriptResumed:
		m.paused = false
	case events.ScriptCompleted:
		m.pointer = orchestration.NoSegment
		m.completed = true
	case events.SegmentsChanged:
		m.reload()
	case events.AlignmentStateChanged:
		m.connection = event.State
		if event.Reason != "" {
			m.connection += " (" + event.Reason + ")"
		}
	case events.UserSpeechStarted:
		m.speaking = true
	case events.UserSpeechEnded, events.UserSilenceLong:
		m.speaking = false
	case events.UserTranscriptInterimUpdated:
		if event.Transcript != "" {
			m.transcript = event.Transcript
		}
	case events.UserTranscriptFinal:
		m.transcript = event.Transcript
	case events.PromptStarted:
		m.prompting = true
	case events.PromptEnded, events.PromptStopped:
		m.prompting = false
	case events.PromptFailed:
		m.prompting = false
		m.lastErr = fmt.Sprintf("prompt for segment %d failed: %v", event.Index, event.Err)
	}
}

// refresh renders the script into the viewport and keeps the current segment
// in the upper third of the screen.
func (m *promptModel) refresh() {
	if !m.ready {
		return
	}

	content, line := m.renderScript(max(1, m.viewport.Width-2))
	m.viewport.SetContent(content)
	if line >= 0 {
		m.viewport.SetYOffset(max(0, line-m.viewport.Height/3))
	}
}

// renderScript returns the wrapped script and the first line of the bucket
// holding the pointer, or -1.
func (m promptModel) renderScript(width int) (string, int) {
	var b strings.Builder
	pointerLine := -1
	lines := 0

	for _, bucket := range m.buckets {
		parts := make([]string, 0, len(bucket))
		for _, index := range bucket {
			if index < 0 || index >= len(m.segments) {
				continue
			}
			text := m.segments[index].Text
			switch {
			case index == m.pointer:
				text = m.styles.Current.Render(text)
				pointerLine = lines
			case m.completed || (m.pointer != orchestration.NoSegment && index < m.pointer):
				text = m.styles.Read.Render(text)
			}
			parts = append(parts, text)
		}

		paragraph := wordwrap.String(strings.Join(parts, " "), width)
		b.WriteString(paragraph)
		b.WriteString("\n\n")
		lines += strings.Count(paragraph, "\n") + 2
	}

	return b.String(), pointerLine
}

func (m promptModel) View() string {
	if !m.ready {
		return "loading..."
	}

	mode := "sentences"
	if !m.sentenceMode {
		mode = "words"
	}

	state := []string{m.connection, mode}
	if m.paused {
		state = append(state, "paused")
	}
	if m.speaking {
		state = append(state, "speaking")
	}
	if m.prompting {
		state = append(state, "prompting")
	}
	if m.completed {
		state = append(state, "completed")
	}

	header := m.styles.Title.Render(appName) + " " + m.styles.Status.Render(strings.Join(state, " · "))
	transcript := m.styles.Status.Render(truncate.StringWithTail(m.transcript, uint(max(0, m.width-2)), "…"))

	footer := m.styles.Help.Render("w: toggle word mode · ↑/↓: scroll · q: quit")
	if m.lastErr != "" {
		footer = m.styles.Error.Render(truncate.StringWithTail(m.lastErr, uint(max(0, m.width-2)), "…"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), transcript, footer)
}
