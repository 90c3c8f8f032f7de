package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type inputKeys struct {
	Submit key.Binding
	Quit   key.Binding
}

var defaultInputKeys = inputKeys{
	Submit: key.NewBinding(key.WithKeys("enter")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c", "ctrl+d", "esc")),
}

// inputModel reads a single line.
type inputModel struct {
	input     textinput.Model
	keys      inputKeys
	submitted bool
	quit      bool
}

func newInputModel(prompt, placeholder string) inputModel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.PromptStyle = UserStyle
	ti.Placeholder = placeholder
	ti.CharLimit = 0
	ti.Focus()
	return inputModel{input: ti, keys: defaultInputKeys}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Submit):
			m.submitted = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Quit):
			m.quit = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.submitted || m.quit {
		return ""
	}
	return m.input.View()
}

// ReadLine prompts for one line of input. It returns io.EOF when the
// user quits the prompt.
func (p *Prompter) ReadLine(ctx context.Context, prompt string) (string, error) {
	final, err := p.run(ctx, newInputModel(prompt, "Ask something, or /help"))
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.quit {
		return "", io.EOF
	}
	line := m.input.Value()
	fmt.Fprintln(p.out, UserStyle.Render(prompt)+line)
	return line, nil
}
