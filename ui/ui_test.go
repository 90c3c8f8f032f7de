package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcode/engine"
	"tcode/model"
	"tcode/tools"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConfirmModel(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want bool
		done bool
	}{
		{"yes", keyRunes("y"), true, true},
		{"upper yes", keyRunes("Y"), true, true},
		{"no", keyRunes("n"), false, true},
		{"escape", tea.KeyMsg{Type: tea.KeyEsc}, false, true},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, false, true},
		{"other key", keyRunes("x"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newConfirmModel("Apply?", []string{"create a.txt"}, 80)
			next, cmd := m.Update(tt.msg)
			got := next.(confirmModel)
			assert.Equal(t, tt.done, got.done)
			assert.Equal(t, tt.want, got.answer)
			if tt.done {
				assert.NotNil(t, cmd)
			} else {
				assert.Nil(t, cmd)
			}
		})
	}
}

func TestBatchModelShortcuts(t *testing.T) {
	tests := []struct {
		key  string
		want engine.BatchDecision
	}{
		{"a", engine.BatchApplyAll},
		{"r", engine.BatchReviewEach},
		{"c", engine.BatchCancel},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			next, cmd := newBatchModel("t", nil, 80).Update(keyRunes(tt.key))
			got := next.(batchModel)
			assert.True(t, got.done)
			assert.Equal(t, tt.want, got.decision)
			assert.NotNil(t, cmd)
		})
	}
}

func TestBatchModelCursor(t *testing.T) {
	var m tea.Model = newBatchModel("t", nil, 80)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 1, m.(batchModel).cursor)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 0, m.(batchModel).cursor, "cursor wraps")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 2, m.(batchModel).cursor)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, engine.BatchCancel, m.(batchModel).decision)
}

func TestBatchModelView(t *testing.T) {
	changes := []tools.Change{
		{Path: "a.go", Kind: tools.ChangeCreate, Size: 10},
		{Path: "b.go", Kind: tools.ChangeDelete},
	}
	view := newBatchModel("Two files", FormatChanges(changes, 80), 80).View()

	assert.Contains(t, view, "Two files")
	assert.Contains(t, view, "a.go")
	assert.Contains(t, view, "b.go")
	assert.Contains(t, view, "Apply all")
	assert.Contains(t, view, "Review each")
}

func TestFormatChangeTruncates(t *testing.T) {
	long := strings.Repeat("dir/", 40) + "file.go"
	line := FormatChange(tools.Change{Path: long, Kind: tools.ChangeDelete}, 60)

	assert.Contains(t, line, "delete")
	assert.Contains(t, line, "…")
	assert.NotContains(t, line, "file.go")
}

func TestPrompterConfirmWrite(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("y"), &out, 80)
	p.programOptions = []tea.ProgramOption{tea.WithoutSignalHandler()}

	ok, err := p.ConfirmWrite(context.Background(), tools.Change{Path: "a.txt", Kind: tools.ChangeCreate, Size: 3})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrompterShowPlan(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader(""), &out, 80)

	p.ShowPlan(context.Background(), []tools.Change{
		{Path: "a.txt", Kind: tools.ChangeModify, Size: 2048},
	})

	assert.Contains(t, out.String(), "plan-only")
	assert.Contains(t, out.String(), "a.txt")
	assert.Contains(t, out.String(), "2.0 kB")
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# Title\n\nSee [the docs](https://example.com/docs) for **details**.", 80)

	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "https://example.com/docs")
	assert.NotContains(t, out, "[the docs]")
}

func TestToolPrinter(t *testing.T) {
	var out bytes.Buffer
	p := NewToolPrinter(&out, 80)
	call := model.ToolCall{ID: "1", Name: "read_file", Arguments: map[string]any{"path": "main.go"}}

	p.ToolStarted(call)
	p.ToolFinished(call, "package main\nfunc main() {}")
	p.ToolFinished(call, "Error: file not found")
	p.ToolFinished(call, "Cancelled by user")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "read_file main.go")
	assert.Contains(t, lines[1], "package main")
	assert.NotContains(t, lines[1], "func main")
	assert.Contains(t, lines[2], "file not found")
	assert.Contains(t, lines[3], "Cancelled by user")

	out.Reset()
	p.ToolStarted(model.ToolCall{ID: "2", Name: "write_file", Arguments: map[string]any{"path": "a.txt", "content": "x"}})
	assert.Contains(t, out.String(), "✎ write_file a.txt")
	assert.NotContains(t, out.String(), "→")
}

func TestInputModel(t *testing.T) {
	var m tea.Model = newInputModel("> ", "")
	for _, r := range "hi" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	got := m.(inputModel)
	assert.True(t, got.submitted)
	assert.Equal(t, "hi", got.input.Value())
	assert.NotNil(t, cmd)
	assert.Empty(t, got.View())

	m, _ = newInputModel("> ", "").Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.True(t, m.(inputModel).quit)
}
