// Package debugger implements an interactive, step-through bytecode
// stepper for a compiled Glass program, built on the same Charm stack
// (bubbletea/bubbles/lipgloss) the rest of this module's CLI tooling
// uses. Unlike the vm package's Run loop, which executes a program to
// completion or failure, the debugger advances one opcode per step and
// renders the instruction about to run, the value stack, the active
// locals and the current call depth after each step. "continue" runs
// the program opcode-by-opcode as a sequence of tea.Cmds rather than a
// blocking loop, with a bubbles/spinner animating while it runs.
package debugger

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glasslang/glass/bytecode"
	"github.com/glasslang/glass/vm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	instructionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#7D56F4")).
				Bold(true)

	stackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAF00"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	helpLine = "step: space/enter   continue: c   quit: q/ctrl+c"
)

// Options controls how the stepper renders.
type Options struct {
	NoColor bool
}

// Start runs the interactive stepper over prog until the program halts,
// errors, or the user quits.
func Start(prog *bytecode.Program, options Options) error {
	p := tea.NewProgram(initialModel(prog, options))
	_, err := p.Run()
	return err
}

// stepResultMsg carries the outcome of one session.Step() run as a
// tea.Cmd, so the "continue" run-loop never blocks the UI between
// opcodes: each step is dispatched as its own command and the spinner
// keeps ticking while steps are still arriving.
type stepResultMsg struct {
	halted bool
	err    error
}

type model struct {
	session *vm.DebugSession
	steps   int
	lastErr error
	halted  bool
	running bool
	spin    spinner.Model
	options Options
}

func initialModel(prog *bytecode.Program, options Options) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		session: vm.NewDebugSession(prog),
		spin:    s,
		options: options,
	}
}

func (m model) Init() tea.Cmd { return nil }

func stepCmd(session *vm.DebugSession) tea.Cmd {
	return func() tea.Msg {
		halted, err := session.Step()
		return stepResultMsg{halted: halted, err: err}
	}
}

func (m model) applyStyle(style lipgloss.Style, text string) string {
	if m.options.NoColor {
		return text
	}
	return style.Render(text)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case stepResultMsg:
		if !m.running {
			return m, nil
		}
		m.steps++
		if msg.err != nil {
			m.lastErr = msg.err
			m.running = false
			return m, nil
		}
		if msg.halted {
			m.halted = true
			m.running = false
			return m, nil
		}
		return m, stepCmd(m.session)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case " ", "enter":
			m.advance()
		case "c":
			if m.halted || m.lastErr != nil || m.running {
				return m, nil
			}
			m.running = true
			return m, tea.Batch(m.spin.Tick, stepCmd(m.session))
		}
	}
	return m, nil
}

func (m *model) advance() {
	if m.halted || m.lastErr != nil || m.running {
		return
	}
	done, err := m.session.Step()
	m.steps++
	if err != nil {
		m.lastErr = err
		return
	}
	if done {
		m.halted = true
	}
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, " Glass bytecode stepper "))
	s.WriteString("\n\n")

	fmt.Fprintf(&s, "step %d, depth %d\n", m.steps, m.session.Depth())

	if m.halted {
		s.WriteString(m.applyStyle(doneStyle, "program halted\n"))
	} else if m.lastErr != nil {
		s.WriteString(m.applyStyle(errorStyle, m.lastErr.Error()))
		s.WriteString("\n")
	} else if m.running {
		s.WriteString(m.spin.View())
		s.WriteString(" running...\n")
	} else {
		s.WriteString(m.applyStyle(instructionStyle, "next: "+m.session.NextInstruction()))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(m.applyStyle(stackStyle, "stack: "+m.session.StackString()))
	s.WriteString("\n")
	s.WriteString(m.applyStyle(stackStyle, "locals: "+m.session.LocalsString()))
	s.WriteString("\n\n")
	s.WriteString(m.applyStyle(dimStyle, helpLine))
	s.WriteString("\n")

	return s.String()
}
