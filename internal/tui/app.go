package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/impresso/impresso-essentials-go/internal/config"
)

type state int

const (
	stateMenu state = iota
	stateForm
	stateConfirm
	stateSaved
	stateError
)

// Model is the bubbletea model of the configuration editor. The menu lists
// one entry per category followed by the save entry.
type Model struct {
	state      state
	original   *ConfigValues
	values     *ConfigValues
	menuIndex  int
	form       *huh.Form
	problem    *invalidSetting
	err        error
	width      int
	height     int
	path       string
	env        []config.EnvOverride
	saveFunc   func(*config.Config) error
	accessible bool
}

type Options struct {
	Config *config.Config
	// Path is the file SaveFunc writes to.
	Path string
	// Env lists the keys set from the environment, which win over the file.
	Env        []config.EnvOverride
	SaveFunc   func(*config.Config) error
	Accessible bool
}

func NewModel(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	return Model{
		state:      stateMenu,
		original:   FromConfig(cfg),
		values:     FromConfig(cfg),
		path:       opts.Path,
		env:        opts.Env,
		saveFunc:   opts.SaveFunc,
		accessible: opts.Accessible,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) dirty() bool {
	return len(changedSettings(m.original, m.values)) > 0
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == stateForm {
			return m.updateForm(msg)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateForm:
			if msg.String() == "esc" {
				m.state = stateMenu
				return m, nil
			}
			return m.updateForm(msg)
		case stateConfirm:
			return m.updateConfirm(msg)
		case stateSaved, stateError:
			return m, tea.Quit
		}
	}

	if m.state == stateForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		if m.dirty() {
			m.state = stateConfirm
			return m, nil
		}
		return m, tea.Quit

	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}

	case "down", "j":
		if m.menuIndex < len(Categories) {
			m.menuIndex++
		}

	case "enter":
		if m.menuIndex == len(Categories) {
			return m.handleSave()
		}
		m.form = GetFormForCategory(Categories[m.menuIndex].ID, m.values)
		if m.accessible {
			m.form = m.form.WithTheme(formTheme(true)).WithAccessible(true)
		}
		m.state = stateForm
		return m, m.form.Init()

	case "s":
		return m.handleSave()
	}

	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.state = stateMenu
		return m, nil
	}
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		m.problem = nil
		m.state = stateMenu
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return m.handleSave()
	case "n", "N", "esc":
		return m, tea.Quit
	case "c":
		m.state = stateMenu
	}
	return m, nil
}

// handleSave keeps the editor on the menu, cursor on the offending
// category, while a value is invalid.
func (m Model) handleSave() (tea.Model, tea.Cmd) {
	if bad := validateValues(m.values); bad != nil {
		m.problem = bad
		m.state = stateMenu
		if i := categoryIndex(bad.category); i >= 0 {
			m.menuIndex = i
		}
		return m, nil
	}
	m.problem = nil

	cfg, err := m.values.ToConfig()
	if err != nil {
		m.state = stateError
		m.err = err
		return m, nil
	}

	if m.saveFunc != nil {
		if err := m.saveFunc(cfg); err != nil {
			m.state = stateError
			m.err = err
			return m, nil
		}
	}

	saved := *m.values
	m.original = &saved
	m.state = stateSaved
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("impresso config"))
	s.WriteString("  ")
	s.WriteString(pathStyle.Render(m.displayPath()))
	s.WriteString("\n\n")

	switch m.state {
	case stateMenu:
		s.WriteString(m.renderMenu())
	case stateForm:
		if m.form != nil {
			s.WriteString(m.form.View())
		}
	case stateConfirm:
		s.WriteString(confirmBox.Render(fmt.Sprintf(
			"%d unsaved changes.\n\nSave to %s before quitting?\n\n[y] Yes  [n] No  [c] Cancel",
			len(changedSettings(m.original, m.values)), m.displayPath())))
	case stateSaved:
		s.WriteString(savedStyle.Render("Saved " + m.displayPath()))
		if len(m.env) > 0 {
			s.WriteString("\n")
			s.WriteString(envStyle.Render(fmt.Sprintf("%d keys stay overridden by the environment.", len(m.env))))
		}
		s.WriteString("\n\nPress any key to exit.")
	case stateError:
		s.WriteString(problemStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\nPress any key to exit.")
	}

	return s.String()
}

func (m Model) displayPath() string {
	if m.path == "" {
		return "(no configuration file)"
	}
	return m.path
}

func (m Model) overridden(category string) bool {
	for _, o := range m.env {
		if strings.HasPrefix(o.Key, category+".") {
			return true
		}
	}
	return false
}

func (m Model) renderMenu() string {
	var s strings.Builder

	for i, cat := range Categories {
		cursor, style := "  ", entryStyle
		if i == m.menuIndex {
			cursor, style = "> ", cursorStyle
		}
		s.WriteString(style.Render(fmt.Sprintf("%s%-12s", cursor, cat.Name)))
		s.WriteString(" ")
		s.WriteString(summaryStyle.Render(cat.Summary(m.values)))
		if m.overridden(cat.ID) {
			s.WriteString(envStyle.Render(" (env)"))
		}
		s.WriteString("\n")
	}

	cursor, style := "  ", entryStyle
	if m.menuIndex == len(Categories) {
		cursor, style = "> ", cursorStyle
	}
	save := cursor + "Save"
	if m.dirty() {
		save += " *"
	}
	s.WriteString("\n")
	s.WriteString(style.Render(save))
	s.WriteString("\n")

	if len(m.env) > 0 {
		s.WriteString(sectionStyle.Render("Overridden by environment"))
		s.WriteString("\n")
		for _, o := range m.env {
			s.WriteString(envStyle.Render(fmt.Sprintf("  %s <- %s", o.Key, o.Var)))
			s.WriteString("\n")
		}
	}

	if changes := changedSettings(m.original, m.values); len(changes) > 0 {
		s.WriteString(sectionStyle.Render("Pending changes"))
		s.WriteString("\n")
		for _, c := range changes {
			s.WriteString(changeStyle.Render(fmt.Sprintf("  %s: %s -> %s", c.key, orDefault(c.from, "(empty)"), orDefault(c.to, "(empty)"))))
			s.WriteString("\n")
		}
	}

	if m.problem != nil {
		s.WriteString("\n")
		s.WriteString(problemStyle.Render("Cannot save: " + m.problem.Error()))
		s.WriteString("\n")
	}

	s.WriteString(keysStyle.Render("↑/↓ navigate • enter edit • s save • q quit"))

	return s.String()
}

func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
