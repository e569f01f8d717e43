// Package tui shows merge progress as a bubbletea program: the current phase,
// a bar fed by the progress scale, and a quit key that cancels the run.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/blobmerge/internal/ui"
)

const (
	tickInterval    = 100 * time.Millisecond
	defaultBarWidth = 40
	minBarWidth     = 10
	// reservedColumns leaves room for the phase label and the percentage.
	reservedColumns = 24
)

// Fractioner reports completion in [0, 1]. *progress.Scale implements it.
type Fractioner interface {
	Fraction() float64
}

// TickMsg triggers a refresh of the progress value.
type TickMsg time.Time

// DoneMsg tells the model the merge finished and the program should exit.
type DoneMsg struct{}

// KeyMap holds the key bindings of the progress view.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "cancel"),
		),
	}
}

// Model is the bubbletea model of the progress view.
type Model struct {
	state    Fractioner
	cancel   context.CancelFunc
	keymap   KeyMap
	theme    ui.Theme
	styles   ui.Styles
	start    time.Time
	width    int
	fraction float64
	done     bool
	canceled bool
}

// NewModel creates a model polling state. cancel is called when the user
// quits before the merge completes.
func NewModel(state Fractioner, cancel context.CancelFunc) Model {
	theme := ui.GetCurrentTheme()
	return Model{
		state:  state,
		cancel: cancel,
		keymap: DefaultKeyMap(),
		theme:  theme,
		styles: ui.NewStyles(theme),
		start:  time.Now(),
		width:  defaultBarWidth,
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles keys, resizes, ticks and completion.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.Quit) && !m.done {
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = max(msg.Width-reservedColumns, minBarWidth)
		return m, nil

	case TickMsg:
		if m.done {
			return m, nil
		}
		m.fraction = m.state.Fraction()
		return m, tickCmd()

	case DoneMsg:
		m.fraction = m.state.Fraction()
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders one status line.
func (m Model) View() string {
	st := m.styles
	label := phase(m.fraction)
	if m.canceled {
		label = "canceled"
	}
	line := fmt.Sprintf("%-9s %s %5.1f%%  %s",
		st.Title.Render(label), m.bar(), m.fraction*100, FormatElapsed(time.Since(m.start)))
	if m.done || m.canceled {
		return line + "\n"
	}
	return line + "\n" + st.Warning.Render(m.keymap.Quit.Help().Key+" "+m.keymap.Quit.Help().Desc) + "\n"
}

func (m Model) bar() string {
	filled := int(m.fraction * float64(m.width))
	filled = min(max(filled, 0), m.width)
	full := lipgloss.NewStyle().Foreground(m.theme.Good).Render(strings.Repeat("█", filled))
	empty := lipgloss.NewStyle().Foreground(m.theme.Dim).Render(strings.Repeat("░", m.width-filled))
	return full + empty
}

// Canceled reports whether the user quit before completion.
func (m Model) Canceled() bool { return m.canceled }

// phase names the stage of a run from its overall completion: reads fill the
// first half of the scale and the merge the second.
func phase(fraction float64) string {
	switch {
	case fraction >= 1:
		return "done"
	case fraction >= 0.5:
		return "merging"
	default:
		return "reading"
	}
}

// FormatElapsed renders d with one decimal of seconds.
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Display runs the progress view on out until the returned stop function is
// called. Input is read from in; nil disables key handling. stop is
// idempotent and waits for the program to restore the terminal.
func Display(state Fractioner, cancel context.CancelFunc, in io.Reader, out io.Writer) (stop func()) {
	opts := []tea.ProgramOption{tea.WithOutput(out), tea.WithoutSignalHandler()}
	if in == nil {
		opts = append(opts, tea.WithInput(nil))
	} else {
		opts = append(opts, tea.WithInput(in))
	}
	p := tea.NewProgram(NewModel(state, cancel), opts...)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = p.Run()
	}()

	stopped := false
	return func() {
		if stopped {
			return
		}
		stopped = true
		p.Send(DoneMsg{})
		<-finished
	}
}
