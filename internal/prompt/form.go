// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package prompt collects the interactive pieces of the CLI: a small
// field-schema form, a hidden passphrase prompt, and yes/no confirmation.
package prompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vigilcloud/triton-cli/internal/clierr"
)

var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
)

// Field describes one form input.
type Field struct {
	Key         string
	Prompt      string
	Placeholder string
	Default     string
	// Validate rejects a value before the form can be submitted; nil
	// accepts anything.
	Validate func(string) error
}

type formModel struct {
	title      string
	fields     []Field
	inputs     []textinput.Model
	focusIndex int
	err        error
	done       bool
	aborted    bool
}

func newFormModel(title string, fields []Field) formModel {
	m := formModel{
		title:  title,
		fields: fields,
		inputs: make([]textinput.Model, len(fields)),
	}

	width := 0
	for _, f := range fields {
		if len(f.Prompt) > width {
			width = len(f.Prompt)
		}
	}
	for i, f := range fields {
		t := textinput.New()
		t.Cursor.Style = focusedStyle
		t.CharLimit = 256
		t.Width = 40
		t.Prompt = f.Prompt + strings.Repeat(" ", width-len(f.Prompt)+2)
		t.Placeholder = f.Placeholder
		if f.Default != "" {
			t.SetValue(f.Default)
		}
		m.inputs[i] = t
	}
	m.inputs[0].Focus()
	m.inputs[0].TextStyle = focusedStyle
	return m
}

func (m formModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch s := msg.String(); s {
		case "esc", "ctrl+c":
			m.aborted = true
			return m, tea.Quit

		case "tab", "shift+tab", "enter", "up", "down":
			if s == "enter" && m.focusIndex == len(m.inputs) {
				for i, f := range m.fields {
					if f.Validate == nil {
						continue
					}
					if err := f.Validate(strings.TrimSpace(m.inputs[i].Value())); err != nil {
						m.err = fmt.Errorf("%s: %w", f.Key, err)
						return m, nil
					}
				}
				m.done = true
				return m, tea.Quit
			}

			if s == "up" || s == "shift+tab" {
				m.focusIndex--
			} else {
				m.focusIndex++
			}
			if m.focusIndex > len(m.inputs) {
				m.focusIndex = 0
			} else if m.focusIndex < 0 {
				m.focusIndex = len(m.inputs)
			}

			cmds := make([]tea.Cmd, len(m.inputs))
			for i := range m.inputs {
				if i == m.focusIndex {
					cmds[i] = m.inputs[i].Focus()
					m.inputs[i].TextStyle = focusedStyle
					continue
				}
				m.inputs[i].Blur()
				m.inputs[i].TextStyle = lipgloss.NewStyle()
			}
			return m, tea.Batch(cmds...)
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m formModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	for i := range m.inputs {
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	submit := "[ Submit ]"
	if m.focusIndex == len(m.inputs) {
		submit = focusedStyle.Render(submit)
	}
	b.WriteString("\n" + submit + "\n")
	if m.err != nil {
		b.WriteString("\n" + errStyle.Render(m.err.Error()) + "\n")
	}
	return b.String()
}

// RunForm drives a form to completion and returns the values by field key.
// Escape aborts with ErrUserAborted.
func RunForm(title string, fields []Field) (map[string]string, error) {
	final, err := tea.NewProgram(newFormModel(title, fields)).Run()
	if err != nil {
		return nil, err
	}
	m := final.(formModel)
	if m.aborted || !m.done {
		return nil, clierr.ErrUserAborted
	}
	out := make(map[string]string, len(m.fields))
	for i, f := range m.fields {
		out[f.Key] = strings.TrimSpace(m.inputs[i].Value())
	}
	return out, nil
}
