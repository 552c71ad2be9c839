package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const PlaceHolderText = "Type eval statements or /help..."

// ConsoleUI is the BubbleTea model that runs the inspector.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	session      *Session
	entries      []entry
	logViewport  viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int

	// Passage picker state
	showPassageModal bool
	passages         []string
	selectedPassage  int

	// Quit confirmation state
	showQuitModal bool
}

type startedMsg struct {
	entries []entry
}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	passageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(session *Session, passages []string) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 4000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	return ConsoleUI{
		session:      session,
		textarea:     ta,
		logViewport:  logVp,
		metaViewport: viewport.New(20, 20),
		passages:     passages,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	s := m.session
	return tea.Batch(textarea.Blink, func() tea.Msg {
		return startedMsg{entries: s.Start(context.Background())}
	})
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showPassageModal {
		return m.updatePassageModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refresh()

	case startedMsg:
		m.entries = append(m.entries, msg.entries...)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlP:
			if len(m.passages) > 0 {
				m.showPassageModal = true
				return m, nil
			}
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			m.entries = append(m.entries, entry{title: "::", body: input})
			m.entries = append(m.entries, m.session.Handle(context.Background(), input)...)
			m.refresh()
			return m, nil
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) resize() {
	logWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - logWidth - 6

	m.logViewport.Width = logWidth - 2
	m.logViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(logWidth - 4)
}

// refresh rebuilds both panels for the current width.
func (m *ConsoleUI) refresh() {
	width := m.logViewport.Width - 6
	if width < 10 {
		width = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render(m.session.Title()) + "\n\n")
	content.WriteString("Ctrl+P picks a passage. /help lists commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")
	for _, e := range m.entries {
		content.WriteString(renderEntry(e, width) + "\n\n")
	}
	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()

	m.metaViewport.SetContent(titleStyle.Render("ENGINE STATE") + "\n\n" +
		wordwrap.String(m.session.Sidebar(), max(m.metaViewport.Width, 10)))
}

func renderEntry(e entry, width int) string {
	body := wordwrap.String(e.body, width)
	switch {
	case e.title == "::":
		return inputStyle.Render(":: ") + body
	case e.err:
		return headingStyle.Render(e.title) + "\n" + errorStyle.Render(body)
	case body == "":
		return headingStyle.Render(e.title)
	}
	return headingStyle.Render(e.title) + "\n" + passageStyle.Render(body)
}

func (m ConsoleUI) updatePassageModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.showQuitModal = true
		case tea.KeyEsc:
			m.showPassageModal = false
		case tea.KeyUp:
			if m.selectedPassage > 0 {
				m.selectedPassage--
			}
		case tea.KeyDown:
			if m.selectedPassage < len(m.passages)-1 {
				m.selectedPassage++
			}
		case tea.KeyEnter:
			m.showPassageModal = false
			id := m.passages[m.selectedPassage]
			m.entries = append(m.entries, m.session.Handle(context.Background(), "/go "+id)...)
			m.refresh()
		}
	}
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Session state is not kept after the console exits.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderPassageModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Go to Passage"))
	content.WriteString("\n\n")
	for i, id := range m.passages {
		if i == m.selectedPassage {
			content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", id)))
		} else {
			content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", id)))
		}
		content.WriteString("\n")
	}
	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to go, Esc to cancel"))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showPassageModal {
		return m.renderPassageModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(logWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, metaPanel)
}
