package main

// prompt.go: the interactive questions asked by "stubgen init".

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"stubgen/internal/config"
)

// question is one prompt; value pre-fills the answer.
type question struct {
	key    string
	prompt string
	value  string
}

func initQuestions(cfg *config.Config) []question {
	return []question{
		{key: "headers", prompt: "SDK headers directory", value: cfg.Headers},
		{key: "output", prompt: "Output directory", value: cfg.Output},
		{key: "prefix", prompt: "Toolchain prefix", value: cfg.Toolchain.Prefix},
		{key: "features", prompt: "Features (distance, presence)", value: strings.Join(cfg.Features, ",")},
	}
}

// applyAnswers copies non-empty answers into cfg. Features may be cleared.
func applyAnswers(cfg *config.Config, answers map[string]string) {
	if v := strings.TrimSpace(answers["headers"]); v != "" {
		cfg.Headers = v
	}
	if v := strings.TrimSpace(answers["output"]); v != "" {
		cfg.Output = v
	}
	if v := strings.TrimSpace(answers["prefix"]); v != "" {
		cfg.Toolchain.Prefix = v
	}
	cfg.Features = nil
	for _, f := range strings.Split(answers["features"], ",") {
		if f = strings.TrimSpace(f); f != "" {
			cfg.Features = append(cfg.Features, f)
		}
	}
}

// promptModel asks one question at a time. Enter moves on, shift+tab
// returns to the previous answer.
type promptModel struct {
	questions []question
	idx       int
	inputs    []textinput.Model
	done      bool
}

func newPromptModel(questions []question) promptModel {
	inputs := make([]textinput.Model, len(questions))
	for i, q := range questions {
		ti := textinput.New()
		ti.Placeholder = q.prompt
		ti.CharLimit = 512
		ti.SetValue(q.value)
		inputs[i] = ti
	}
	m := promptModel{
		questions: questions,
		inputs:    inputs,
	}
	if len(inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyShiftTab:
			if m.idx > 0 {
				return m.focus(m.idx - 1), textinput.Blink
			}
			return m, nil
		case tea.KeyEnter:
			if m.idx < len(m.inputs)-1 {
				return m.focus(m.idx + 1), textinput.Blink
			}
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)
	return m, cmd
}

func (m promptModel) focus(i int) promptModel {
	m.inputs[m.idx].Blur()
	m.idx = i
	m.inputs[m.idx].Focus()
	return m
}

func (m promptModel) View() string {
	if m.done || len(m.questions) == 0 {
		return ""
	}
	q := m.questions[m.idx]
	return fmt.Sprintf("[%d/%d] %s: %s\n", m.idx+1, len(m.questions), q.prompt, m.inputs[m.idx].View())
}

func (m promptModel) answers() map[string]string {
	out := make(map[string]string, len(m.questions))
	for i, q := range m.questions {
		out[q.key] = m.inputs[i].Value()
	}
	return out
}

// promptQuestions runs the TUI and returns answers keyed by question key.
func promptQuestions(questions []question) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	p := tea.NewProgram(newPromptModel(questions))
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(promptModel)
	if !ok || !final.done {
		return nil, fmt.Errorf("prompt cancelled")
	}
	return final.answers(), nil
}
