package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var promptStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("205")).
	Bold(true)

// Prompt kinds.
const (
	promptSearch  = "search"
	promptOrder   = "order"
	promptCommand = "command"
	promptRequest = "request"
)

// CmdBar is the single-line input used for search, the order number
// prompt, change requests and commands.
type CmdBar struct {
	input  textinput.Model
	kind   string
	label  string
	taskID string
}

// NewCmdBar creates an unfocused bar.
func NewCmdBar() *CmdBar {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 60
	return &CmdBar{input: ti}
}

// Open focuses the bar for kind, optionally bound to a task.
func (m *CmdBar) Open(kind, label, taskID, value string) tea.Cmd {
	m.kind = kind
	m.label = label
	m.taskID = taskID
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

// Close blurs and clears the bar.
func (m *CmdBar) Close() {
	m.kind = ""
	m.label = ""
	m.taskID = ""
	m.input.Blur()
	m.input.SetValue("")
}

// Active reports whether the bar has focus.
func (m *CmdBar) Active() bool { return m.kind != "" }

// Kind returns what the bar is collecting.
func (m *CmdBar) Kind() string { return m.kind }

// TaskID returns the task the bar is bound to, if any.
func (m *CmdBar) TaskID() string { return m.taskID }

// Value returns the current input.
func (m *CmdBar) Value() string { return m.input.Value() }

// SetValue replaces the input, e.g. when a suggestion is accepted.
func (m *CmdBar) SetValue(v string) {
	m.input.SetValue(v)
	m.input.CursorEnd()
}

// SetWidth sizes the input.
func (m *CmdBar) SetWidth(w int) {
	m.input.Width = max(w, 10)
}

// Update forwards msg to the text input.
func (m *CmdBar) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// View renders the bar.
func (m *CmdBar) View() string {
	return promptStyle.Render(m.label+" ") + m.input.View()
}
