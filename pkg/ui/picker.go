// Package ui implements the host pickers: a Bubble Tea TUI and a numbered
// line-oriented menu.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"ssh-session-launcher/pkg/manager"
)

// Options controls the TUI picker.
type Options struct {
	InitialQuery string

	// Theme defaults to LoadTheme("").
	Theme *Theme

	// Input and Output override the terminal; used in tests.
	Input  io.Reader
	Output io.Writer
}

// Pick shows the picker and returns the index of the chosen host in hosts.
// ok is false when the user cancelled.
func Pick(hosts []manager.HostProfile, opts Options) (index int, ok bool, err error) {
	if len(hosts) == 0 {
		return 0, false, errors.New("no hosts to choose from")
	}
	popts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Input != nil {
		popts = append(popts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		popts = append(popts, tea.WithOutput(opts.Output))
	}

	final, err := tea.NewProgram(newModel(hosts, opts), popts...).Run()
	if err != nil {
		return 0, false, errors.Wrap(err, "host picker")
	}
	m, _ := final.(model)
	if m.chosen == nil {
		return 0, false, nil
	}
	return m.chosen.Index, true, nil
}

type model struct {
	candidates []candidate
	filtered   []candidate
	input      textinput.Model
	theme      Theme

	selected int
	scroll   int
	width    int
	height   int

	chosen   *candidate
	quitting bool
}

func newModel(hosts []manager.HostProfile, opts Options) model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter by name or tag..."
	ti.CharLimit = 256
	ti.PromptStyle = ti.PromptStyle.Bold(true)
	ti.SetValue(strings.TrimSpace(opts.InitialQuery))
	// Search is focused so typing filters immediately.
	ti.Focus()

	theme := LoadTheme("")
	if opts.Theme != nil {
		theme = *opts.Theme
	}

	m := model{
		candidates: buildCandidates(hosts),
		input:      ti,
		theme:      theme,
		height:     24,
	}
	m.recomputeFilter()
	return m
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ensureVisible()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if c := m.current(); c != nil {
				chosen := *c
				m.chosen = &chosen
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		case "up", "ctrl+p", "ctrl+k":
			m.move(-1)
			return m, nil
		case "down", "ctrl+n", "ctrl+j":
			m.move(1)
			return m, nil
		case "pgup":
			m.move(-m.listHeight())
			return m, nil
		case "pgdown":
			m.move(m.listHeight())
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.recomputeFilter()
	}
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.theme.Header.Render(fmt.Sprintf("SSH hosts (%d/%d)", len(m.filtered), len(m.candidates))))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(m.theme.Dim.Render("  no hosts match the current filter"))
		b.WriteString("\n")
	}

	grouped := strings.TrimSpace(m.input.Value()) == ""
	end := min(len(m.filtered), m.scroll+m.listHeight())
	for i := m.scroll; i < end; i++ {
		c := m.filtered[i]
		if grouped && (i == m.scroll || m.filtered[i-1].Group != c.Group) {
			b.WriteString(m.theme.Group.Render(groupTitle(c.Group)))
			b.WriteString("\n")
		}
		line := "  " + c.Display
		if i == m.selected {
			line = m.theme.Selected.Render("> " + c.Display)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Help.Render("↑/↓ move • type to filter • enter connect • esc quit"))
	b.WriteString("\n")
	return b.String()
}

func groupTitle(tag string) string {
	if tag == "" {
		return "── UNTAGGED ──"
	}
	return "── " + strings.ToUpper(tag) + " ──"
}

func (m *model) recomputeFilter() {
	m.filtered = rankMatches(m.candidates, m.input.Value())
	if m.selected >= len(m.filtered) {
		m.selected = len(m.filtered) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.scroll = 0
	m.ensureVisible()
}

func (m *model) current() *candidate {
	if m.selected < 0 || m.selected >= len(m.filtered) {
		return nil
	}
	return &m.filtered[m.selected]
}

func (m *model) move(delta int) {
	if len(m.filtered) == 0 {
		return
	}
	m.selected = max(0, min(len(m.filtered)-1, m.selected+delta))
	m.ensureVisible()
}

// listHeight is the number of host rows that fit; group headers may push a
// few rows past it, which the terminal scrolls.
func (m *model) listHeight() int {
	return max(3, m.height-6)
}

func (m *model) ensureVisible() {
	h := m.listHeight()
	if m.selected < m.scroll {
		m.scroll = m.selected
	}
	if m.selected >= m.scroll+h {
		m.scroll = m.selected - h + 1
	}
}
