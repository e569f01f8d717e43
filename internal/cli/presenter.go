package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"

	"github.com/agbru/blobmerge/internal/ui"
)

// Digest returns the hex-encoded BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileInfo names one input of a merge.
type FileInfo struct {
	Name string
	Size int64
}

// Summary describes a finished merge for display.
type Summary struct {
	RunID    string
	Carrier  FileInfo
	Cargo    FileInfo
	Order    string
	Strategy string
	Workers  int
	Size     int
	Digest   string
	Location string
	Duration time.Duration
	// Verified is nil when --verify was not requested.
	Verified *bool
}

// FormatSummary renders s as a styled block.
func FormatSummary(s Summary) string {
	st := ui.CurrentStyles()
	row := func(label, value string) string {
		return st.Label.Render(label) + st.Value.Render(value)
	}

	strategy := s.Strategy
	if s.Workers > 0 {
		strategy = fmt.Sprintf("%s, %d workers", s.Strategy, s.Workers)
	}
	rows := []string{
		st.Title.Render("Merge complete"),
		row("Run", s.RunID),
		row("Carrier", fmt.Sprintf("%s (%s)", s.Carrier.Name, humanize.IBytes(uint64(s.Carrier.Size)))),
		row("Cargo", fmt.Sprintf("%s (%s)", s.Cargo.Name, humanize.IBytes(uint64(s.Cargo.Size)))),
		row("Order", s.Order),
		row("Strategy", strategy),
		row("Output", fmt.Sprintf("%s (%s)", s.Location, humanize.IBytes(uint64(s.Size)))),
		row("BLAKE3", s.Digest),
		row("Duration", FormatExecutionDuration(s.Duration)),
	}
	if s.Verified != nil {
		if *s.Verified {
			rows = append(rows, row("Verify", st.Success.Render("direct merge matches")))
		} else {
			rows = append(rows, row("Verify", st.Error.Render("MISMATCH")))
		}
	}
	return st.Box.Render(strings.Join(rows, "\n"))
}

// DisplaySummary writes the styled summary to out.
func DisplaySummary(out io.Writer, s Summary) {
	fmt.Fprintln(out, FormatSummary(s))
}

// DisplayQuietResult prints only the output location, for scripting.
func DisplayQuietResult(out io.Writer, s Summary) {
	fmt.Fprintln(out, s.Location)
}

// DisplayWarning prints a highlighted warning line.
func DisplayWarning(out io.Writer, msg string) {
	fmt.Fprintf(out, "%sWarning:%s %s\n", ui.ColorYellow(), ui.ColorReset(), msg)
}

// DisplayError prints a highlighted error line.
func DisplayError(out io.Writer, err error) {
	fmt.Fprintf(out, "%sError:%s %v\n", ui.ColorRed(), ui.ColorReset(), err)
}
