package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	maxBarWidth    = 60
	maxFailuresLog = 5
)

// StartedMsg announces a batch.
type StartedMsg struct {
	Total   int
	Input   string
	Output  string
	Backend string
}

// ProgressMsg reports one finished document.
type ProgressMsg struct {
	Done   int
	Total  int
	File   string
	Status string
	Err    string
}

// FinishedMsg carries the batch summary.
type FinishedMsg struct {
	Converted int
	Skipped   int
	Failed    int
	Output    string
}

// doneMsg is sent by RunProgress when the work function returns.
type doneMsg struct{ err error }

// ProgressModel renders a running conversion batch.
type ProgressModel struct {
	bar    progress.Model
	styles Styles
	cancel context.CancelFunc

	title   string
	input   string
	output  string
	backend string

	total    int
	done     int
	current  string
	failures []string

	summary   *FinishedMsg
	err       error
	finished  bool
	cancelled bool
}

// NewProgressModel creates the view. cancel, when non-nil, is called if the
// user quits before the batch finishes.
func NewProgressModel(title string, cancel context.CancelFunc) ProgressModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return ProgressModel{
		bar:    bar,
		styles: DefaultStyles(),
		cancel: cancel,
		title:  title,
	}
}

func (m ProgressModel) Init() tea.Cmd { return nil }

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.finished {
				return m, tea.Quit
			}
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
		}

	case StartedMsg:
		m.total = msg.Total
		m.input, m.output, m.backend = msg.Input, msg.Output, msg.Backend

	case ProgressMsg:
		m.done, m.total = msg.Done, msg.Total
		m.current = msg.File
		if msg.Err != "" {
			m.failures = append(m.failures, fmt.Sprintf("%s: %s", msg.File, msg.Err))
		}

	case FinishedMsg:
		m.summary = &msg

	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

// Percent returns the completed fraction of the batch.
func (m ProgressModel) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m ProgressModel) View() string {
	var b strings.Builder
	s := m.styles

	b.WriteString(s.Title.Render(m.title))
	b.WriteString("\n\n")
	if m.input != "" {
		fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Input: "), m.input)
		fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Output:"), m.output)
	}
	if m.backend != "" {
		fmt.Fprintf(&b, "%s %s\n", s.Label.Render("Engine:"), m.backend)
	}
	fmt.Fprintf(&b, "Found %d Word documents\n\n", m.total)

	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Processing %d/%d\n", m.done, m.total)
	if m.current != "" {
		b.WriteString(s.Muted.Render("Current: " + m.current))
		b.WriteString("\n")
	}

	if n := len(m.failures); n > 0 {
		b.WriteString("\n")
		b.WriteString(s.Error.Render(fmt.Sprintf("%d failed:", n)))
		b.WriteString("\n")
		shown := m.failures
		if n > maxFailuresLog {
			shown = shown[n-maxFailuresLog:]
		}
		for _, f := range shown {
			b.WriteString(s.Error.Render("  " + f))
			b.WriteString("\n")
		}
	}

	switch {
	case m.summary != nil:
		sum := m.summary
		msg := fmt.Sprintf("Conversion complete!\nConverted: %d\nSkipped: %d\nFailed: %d\nOutput folder: %s",
			sum.Converted, sum.Skipped, sum.Failed, sum.Output)
		style := s.Success
		if sum.Failed > 0 {
			style = s.Warning
		}
		b.WriteString("\n")
		b.WriteString(s.Box.Render(style.Render(msg)))
		b.WriteString("\n")
	case m.err != nil:
		b.WriteString("\n")
		b.WriteString(s.Error.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	case m.cancelled:
		b.WriteString("\n")
		b.WriteString(s.Warning.Render("Cancelling..."))
		b.WriteString("\n")
	default:
		b.WriteString("\n")
		b.WriteString(s.Help.Render("q: cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// RunProgress shows the progress view on out while work runs in the
// background. work reports through send (StartedMsg, ProgressMsg,
// FinishedMsg); quitting the view cancels work's context. The error is
// work's error, or the program's if the terminal failed.
func RunProgress(ctx context.Context, title string, in io.Reader, out io.Writer, work func(ctx context.Context, send func(tea.Msg)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(title, cancel), tea.WithInput(in), tea.WithOutput(out))

	errCh := make(chan error, 1)
	go func() {
		err := work(ctx, p.Send)
		p.Send(doneMsg{err: err})
		errCh <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errCh
		return fmt.Errorf("running progress view: %w", err)
	}
	return <-errCh
}
