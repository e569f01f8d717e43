package tui

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agbru/blobmerge/internal/progress"
)

type fixedFraction float64

func (f fixedFraction) Fraction() float64 { return float64(f) }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestDefaultKeyMap_QuitKeys(t *testing.T) {
	keys := DefaultKeyMap().Quit.Keys()
	for _, want := range []string{"q", "ctrl+c"} {
		found := false
		for _, k := range keys {
			if k == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Quit binding lacks %q: %v", want, keys)
		}
	}
}

func TestModel_TickRefreshesFraction(t *testing.T) {
	m := NewModel(fixedFraction(0.75), nil)
	if m.Init() == nil {
		t.Fatal("Init should start the ticker")
	}

	m, cmd := update(t, m, TickMsg{})
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if m.fraction != 0.75 {
		t.Errorf("fraction = %v, want 0.75", m.fraction)
	}
	view := m.View()
	if !strings.Contains(view, "merging") || !strings.Contains(view, "75.0%") {
		t.Errorf("unexpected view %q", view)
	}
	if !strings.Contains(view, "cancel") {
		t.Errorf("running view should show the quit help: %q", view)
	}
}

func TestModel_Phases(t *testing.T) {
	tests := []struct {
		fraction float64
		want     string
	}{
		{0, "reading"},
		{0.3, "reading"},
		{0.5, "merging"},
		{0.99, "merging"},
		{1, "done"},
	}
	for _, tt := range tests {
		if got := phase(tt.fraction); got != tt.want {
			t.Errorf("phase(%v) = %q, want %q", tt.fraction, got, tt.want)
		}
	}
}

func TestModel_QuitCancelsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewModel(fixedFraction(0.2), cancel)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !isQuit(cmd) {
		t.Error("q should quit the program")
	}
	if ctx.Err() == nil {
		t.Error("q should cancel the run context")
	}
	if !m.Canceled() || !strings.Contains(m.View(), "canceled") {
		t.Errorf("model should report cancellation, view %q", m.View())
	}

	_, cmd = update(t, NewModel(fixedFraction(0), nil), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if cmd != nil {
		t.Error("unbound keys should be ignored")
	}
}

func TestModel_DoneQuits(t *testing.T) {
	m := NewModel(fixedFraction(1), nil)
	m, cmd := update(t, m, DoneMsg{})
	if !isQuit(cmd) {
		t.Error("DoneMsg should quit the program")
	}
	if _, cmd = update(t, m, TickMsg{}); cmd != nil {
		t.Error("ticks after completion should not reschedule")
	}
	view := m.View()
	if !strings.Contains(view, "done") || !strings.Contains(view, "100.0%") {
		t.Errorf("unexpected final view %q", view)
	}
	if strings.Contains(view, "cancel") {
		t.Errorf("final view should drop the quit help: %q", view)
	}
}

func TestModel_WindowSizeSetsBarWidth(t *testing.T) {
	m, _ := update(t, NewModel(fixedFraction(0.5), nil), tea.WindowSizeMsg{Width: 100, Height: 20})
	if m.width != 100-reservedColumns {
		t.Errorf("width = %d, want %d", m.width, 100-reservedColumns)
	}
	if got := strings.Count(m.bar(), "█"); got != (100-reservedColumns)/2 {
		t.Errorf("filled cells = %d", got)
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 5})
	if m.width != minBarWidth {
		t.Errorf("narrow terminal width = %d, want %d", m.width, minBarWidth)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDisplay_StopsOnCompletion(t *testing.T) {
	scale := progress.NewScale(100)
	var out syncBuffer

	stop := Display(scale, nil, nil, &out)
	scale.Report(100)
	stop()
	stop()

	if !strings.Contains(out.String(), "100.0%") {
		t.Errorf("final frame missing from output %q", out.String())
	}
}
