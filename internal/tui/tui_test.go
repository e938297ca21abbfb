package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m tea.Model, msg tea.Msg) (ProgressModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(ProgressModel)
	require.True(t, ok)
	return pm, cmd
}

func TestProgressModel_Flow(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	m := NewProgressModel("word2pdf", nil)

	m, _ = update(t, m, StartedMsg{Total: 4, Input: "/docs", Output: "/docs_pdf", Backend: "soffice"})
	view := m.View()
	assert.Contains(t, view, "Found 4 Word documents")
	assert.Contains(t, view, "Processing 0/4")
	assert.Contains(t, view, "/docs_pdf")

	m, _ = update(t, m, ProgressMsg{Done: 1, Total: 4, File: "a.docx", Status: "converted"})
	m, _ = update(t, m, ProgressMsg{Done: 2, Total: 4, File: "b.doc", Status: "failed", Err: "cannot open"})
	assert.InDelta(t, 0.5, m.Percent(), 0.001)

	view = m.View()
	assert.Contains(t, view, "Processing 2/4")
	assert.Contains(t, view, "Current: b.doc")
	assert.Contains(t, view, "1 failed:")
	assert.Contains(t, view, "b.doc: cannot open")

	m, _ = update(t, m, FinishedMsg{Converted: 3, Failed: 1, Output: "/docs_pdf"})
	m, cmd := update(t, m, doneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	view = m.View()
	assert.Contains(t, view, "Conversion complete!")
	assert.Contains(t, view, "Converted: 3")
	assert.Contains(t, view, "Failed: 1")
	assert.Contains(t, view, "Output folder: /docs_pdf")
}

func TestProgressModel_CancelKey(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	cancelled := false
	m := NewProgressModel("word2pdf", func() { cancelled = true })

	m, cmd := update(t, m, keyRunes("q"))
	assert.Nil(t, cmd, "view stays until work returns")
	assert.True(t, cancelled)
	assert.Contains(t, m.View(), "Cancelling")

	m, _ = update(t, m, doneMsg{err: context.Canceled})
	assert.Contains(t, m.View(), "Error: context canceled")
}

func TestProgressModel_WindowSize(t *testing.T) {
	m := NewProgressModel("t", nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 40})
	assert.Equal(t, maxBarWidth, m.bar.Width)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 40})
	assert.Equal(t, 26, m.bar.Width)
}

func TestProgressModel_FailureLogTruncated(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	m := NewProgressModel("t", nil)
	for i := 1; i <= 8; i++ {
		m, _ = update(t, m, ProgressMsg{Done: i, Total: 8, File: string(rune('a'+i-1)) + ".docx", Err: "bad"})
	}
	view := m.View()
	assert.Contains(t, view, "8 failed:")
	assert.NotContains(t, view, "a.docx: bad")
	assert.Contains(t, view, "h.docx: bad")
	assert.Equal(t, maxFailuresLog, strings.Count(view, ": bad"))
}

func TestPercent_Empty(t *testing.T) {
	assert.Zero(t, NewProgressModel("t", nil).Percent())
}

func TestPickerModel_Keys(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name          string
		msg           tea.KeyMsg
		wantChosen    string
		wantCancelled bool
	}{
		{name: "choose current", msg: keyRunes("c"), wantChosen: dir},
		{name: "quit", msg: keyRunes("q"), wantCancelled: true},
		{name: "escape", msg: tea.KeyMsg{Type: tea.KeyEsc}, wantCancelled: true},
		{name: "ctrl+c", msg: tea.KeyMsg{Type: tea.KeyCtrlC}, wantCancelled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmd := NewPickerModel(dir).Update(tt.msg)
			m := next.(PickerModel)
			assert.Equal(t, tt.wantChosen, m.Chosen)
			assert.Equal(t, tt.wantCancelled, m.Cancelled)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
		})
	}
}

func TestPickerModel_View(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	view := NewPickerModel(dir).View()
	assert.Contains(t, view, "Select a folder to convert")
	assert.Contains(t, view, dir)
	assert.Contains(t, view, "c: choose current folder")
}
