package tui

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user leaves the picker without choosing.
var ErrCancelled = errors.New("folder selection cancelled")

// PickerModel lets the user choose a directory to convert.
type PickerModel struct {
	fp     filepicker.Model
	styles Styles

	Chosen    string
	Cancelled bool
}

// NewPickerModel starts browsing at dir.
func NewPickerModel(dir string) PickerModel {
	fp := filepicker.New()
	fp.CurrentDirectory = dir
	fp.DirAllowed = true
	fp.FileAllowed = false
	fp.ShowHidden = false
	// esc cancels the picker instead of going up a level.
	fp.KeyMap.Back = key.NewBinding(key.WithKeys("h", "backspace", "left"), key.WithHelp("h", "back"))
	return PickerModel{fp: fp, styles: DefaultStyles()}
}

func (m PickerModel) Init() tea.Cmd { return m.fp.Init() }

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "ctrl+c", "q", "esc":
			m.Cancelled = true
			return m, tea.Quit
		case "c":
			m.Chosen = m.fp.CurrentDirectory
			return m, tea.Quit
		}
	}

	prev := m.fp.Path
	var cmd tea.Cmd
	m.fp, cmd = m.fp.Update(msg)

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "enter" && m.fp.Path != "" && m.fp.Path != prev {
		m.Chosen = m.fp.Path
		return m, tea.Quit
	}
	return m, cmd
}

func (m PickerModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Select a folder to convert"))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(m.fp.CurrentDirectory))
	b.WriteString("\n\n")
	b.WriteString(m.fp.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("enter: choose highlighted folder • c: choose current folder • l/h: open/back • q: cancel"))
	return b.String()
}

// PickDirectory runs the picker starting at start and returns the chosen
// absolute directory.
func PickDirectory(start string, in io.Reader, out io.Writer) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", start, err)
	}
	final, err := tea.NewProgram(NewPickerModel(abs), tea.WithInput(in), tea.WithOutput(out), tea.WithAltScreen()).Run()
	if err != nil {
		return "", fmt.Errorf("running folder picker: %w", err)
	}
	m := final.(PickerModel)
	if m.Cancelled || m.Chosen == "" {
		return "", ErrCancelled
	}
	return m.Chosen, nil
}
