package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
)

// FormatExecutionDuration formats a time.Duration for display.
// It shows microseconds below a millisecond, milliseconds below a second,
// and the default string representation otherwise.
func FormatExecutionDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

const (
	// ProgressRefreshRate defines the refresh frequency of the progress bar.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth defines the width in characters of the progress bar.
	ProgressBarWidth = 40
)

// Spinner abstracts a terminal spinner so DisplayProgress can be tested
// without a terminal.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text that is displayed after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner adapts spinner.Spinner to the Spinner interface.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }

func (rs *realSpinner) Stop() { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Lock()
	rs.s.Suffix = suffix
	rs.s.Unlock()
}

var newSpinner = func(out io.Writer) Spinner {
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, spinner.WithWriter(out))
	return &realSpinner{s}
}

// Fractioner reports completion in [0, 1]. *progress.Scale implements it.
type Fractioner interface {
	Fraction() float64
}

// DisplayProgress animates a spinner with a progress bar fed by polling
// state until done is closed, then prints the final bar on its own line.
func DisplayProgress(done <-chan struct{}, state Fractioner, out io.Writer) {
	s := newSpinner(out)
	s.UpdateSuffix(progressSuffix(state.Fraction()))
	s.Start()

	ticker := time.NewTicker(ProgressRefreshRate)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.UpdateSuffix(progressSuffix(state.Fraction()))
		case <-done:
			s.Stop()
			fmt.Fprintln(out, strings.TrimSpace(progressSuffix(state.Fraction())))
			return
		}
	}
}

func progressSuffix(fraction float64) string {
	return fmt.Sprintf(" Merging %6.2f%% [%s]", fraction*100, progressBar(fraction, ProgressBarWidth))
}

// progressBar renders a textual bar of the given width.
func progressBar(progress float64, length int) string {
	if progress > 1.0 {
		progress = 1.0
	}
	if progress < 0.0 {
		progress = 0.0
	}
	count := int(progress * float64(length))
	var builder strings.Builder
	builder.Grow(length * 3)
	for i := 0; i < length; i++ {
		if i < count {
			builder.WriteRune('█')
		} else {
			builder.WriteRune('░')
		}
	}
	return builder.String()
}
