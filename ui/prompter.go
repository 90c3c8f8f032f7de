package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"tcode/engine"
	"tcode/tools"
)

type confirmKeys struct {
	Yes key.Binding
	No  key.Binding
}

var defaultConfirmKeys = confirmKeys{
	Yes: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "Yes")),
	No:  key.NewBinding(key.WithKeys("n", "N", "esc", "q", "ctrl+c"), key.WithHelp("n", "No")),
}

// confirmModel asks a single yes/no question.
type confirmModel struct {
	title  string
	body   []string
	width  int
	keys   confirmKeys
	done   bool
	answer bool
}

func newConfirmModel(title string, body []string, width int) confirmModel {
	return confirmModel{title: title, body: body, width: width, keys: defaultConfirmKeys}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Yes):
			m.done, m.answer = true, true
			return m, tea.Quit
		case key.Matches(msg, m.keys.No):
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	footer := FormatFooter(
		m.keys.Yes.Help().Key, m.keys.Yes.Help().Desc,
		m.keys.No.Help().Key, m.keys.No.Help().Desc,
	)
	return renderDialog(m.title, m.body, footer, m.width)
}

type batchKeys struct {
	Apply  key.Binding
	Review key.Binding
	Cancel key.Binding
	Left   key.Binding
	Right  key.Binding
	Enter  key.Binding
}

var defaultBatchKeys = batchKeys{
	Apply:  key.NewBinding(key.WithKeys("a", "A"), key.WithHelp("a", "Apply all")),
	Review: key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "Review each")),
	Cancel: key.NewBinding(key.WithKeys("c", "C", "esc", "q", "ctrl+c"), key.WithHelp("c", "Cancel")),
	Left:   key.NewBinding(key.WithKeys("left", "h", "shift+tab")),
	Right:  key.NewBinding(key.WithKeys("right", "l", "tab")),
	Enter:  key.NewBinding(key.WithKeys("enter")),
}

var batchChoices = []engine.BatchDecision{
	engine.BatchApplyAll,
	engine.BatchReviewEach,
	engine.BatchCancel,
}

// batchModel asks how to handle a multi-file change. Enter picks the
// highlighted choice; the shortcut keys pick directly.
type batchModel struct {
	title    string
	body     []string
	width    int
	keys     batchKeys
	cursor   int
	done     bool
	decision engine.BatchDecision
}

func newBatchModel(title string, body []string, width int) batchModel {
	return batchModel{title: title, body: body, width: width, keys: defaultBatchKeys}
}

func (m batchModel) Init() tea.Cmd { return nil }

func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Apply):
			return m.choose(engine.BatchApplyAll)
		case key.Matches(msg, m.keys.Review):
			return m.choose(engine.BatchReviewEach)
		case key.Matches(msg, m.keys.Cancel):
			return m.choose(engine.BatchCancel)
		case key.Matches(msg, m.keys.Left):
			m.cursor = (m.cursor + len(batchChoices) - 1) % len(batchChoices)
		case key.Matches(msg, m.keys.Right):
			m.cursor = (m.cursor + 1) % len(batchChoices)
		case key.Matches(msg, m.keys.Enter):
			return m.choose(batchChoices[m.cursor])
		}
	}
	return m, nil
}

func (m batchModel) choose(d engine.BatchDecision) (tea.Model, tea.Cmd) {
	m.done = true
	m.decision = d
	return m, tea.Quit
}

func (m batchModel) View() string {
	if m.done {
		return ""
	}

	labels := []key.Binding{m.keys.Apply, m.keys.Review, m.keys.Cancel}
	var choices string
	for i, b := range labels {
		label := "[" + b.Help().Desc + "]"
		if i == m.cursor {
			label = SelectedStyle.Render(label)
		} else {
			label = DimStyle.Render(label)
		}
		if i > 0 {
			choices += "  "
		}
		choices += label
	}

	body := append(append([]string{}, m.body...), "", choices)
	footer := FormatFooter(
		m.keys.Apply.Help().Key, m.keys.Apply.Help().Desc,
		m.keys.Review.Help().Key, m.keys.Review.Help().Desc,
		m.keys.Cancel.Help().Key, m.keys.Cancel.Help().Desc,
	)
	return renderDialog(m.title, body, footer, m.width)
}

// Prompter asks write confirmations on a terminal. It implements
// engine.Confirmer.
type Prompter struct {
	in    io.Reader
	out   io.Writer
	width int

	// programOptions are appended to every confirmation program.
	programOptions []tea.ProgramOption
}

// NewPrompter returns a prompter reading keys from in and drawing to out.
func NewPrompter(in io.Reader, out io.Writer, width int) *Prompter {
	return &Prompter{in: in, out: out, width: width}
}

func (p *Prompter) ConfirmWrite(ctx context.Context, change tools.Change) (bool, error) {
	title := "Apply this change?"
	if change.Kind == tools.ChangeDelete {
		title = "Delete this file?"
	}
	m, err := p.run(ctx, newConfirmModel(title, []string{FormatChange(change, p.width)}, p.width))
	if err != nil {
		return false, err
	}
	return m.(confirmModel).answer, nil
}

func (p *Prompter) ConfirmBatch(ctx context.Context, changes []tools.Change) (engine.BatchDecision, error) {
	title := fmt.Sprintf("The assistant wants to change %d files", len(changes))
	m, err := p.run(ctx, newBatchModel(title, FormatChanges(changes, p.width), p.width))
	if err != nil {
		return engine.BatchCancel, err
	}
	return m.(batchModel).decision, nil
}

// ShowPlan prints the changes plan-only mode kept from running.
func (p *Prompter) ShowPlan(_ context.Context, changes []tools.Change) {
	title := "Planned changes (plan-only mode, nothing written)"
	fmt.Fprintln(p.out, renderDialog(title, FormatChanges(changes, p.width), "", p.width))
}

func (p *Prompter) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	opts := append([]tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	}, p.programOptions...)

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return final, nil
}
