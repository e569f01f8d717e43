// # Naming Conventions
//
// Functions in this package follow consistent naming patterns based on their behavior:
//
//   - Display* functions write formatted output to an [io.Writer].
//     They handle presentation logic and colorization.
//     Examples: [DisplaySummary], [DisplayQuietResult], [DisplayProgress].
//
//   - Format* functions return a formatted string without performing I/O.
//     They are pure functions suitable for composition.
//     Examples: [FormatSummary], [FormatExecutionDuration].
//
//   - Print* functions write the run configuration before work starts.
//     Examples: [PrintExecutionConfig].

package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/agbru/blobmerge/internal/config"
	"github.com/agbru/blobmerge/internal/ui"
)

// PrintExecutionConfig displays the inputs and engine settings of the run.
func PrintExecutionConfig(cfg config.AppConfig, carrierSize, cargoSize int64, out io.Writer) {
	fmt.Fprintf(out, "--- Execution Configuration ---\n")
	fmt.Fprintf(out, "Merging %s%s%s (%s) and %s%s%s (%s), order %s%s%s, timeout %s%s%s.\n",
		ui.ColorMagenta(), cfg.Carrier, ui.ColorReset(), humanize.IBytes(uint64(carrierSize)),
		ui.ColorMagenta(), cfg.Cargo, ui.ColorReset(), humanize.IBytes(uint64(cargoSize)),
		ui.ColorBlue(), cfg.MergeOrder(), ui.ColorReset(),
		ui.ColorYellow(), cfg.Timeout, ui.ColorReset())
	fmt.Fprintf(out, "Environment: %s%d%s logical processors, Go %s%s%s.\n",
		ui.ColorBlue(), runtime.NumCPU(), ui.ColorReset(), ui.ColorBlue(), runtime.Version(), ui.ColorReset())
	if cfg.Chunked {
		fmt.Fprintf(out, "Engine: chunked, %s%d%s workers, %s slices, parallel from %s.\n",
			ui.ColorBlue(), cfg.Workers, ui.ColorReset(),
			humanize.IBytes(uint64(cfg.ChunkSize)), humanize.IBytes(uint64(cfg.ParallelThreshold)))
	} else {
		fmt.Fprintf(out, "Engine: whole-file read, direct merge.\n")
	}
	fmt.Fprintf(out, "\n--- Starting Execution ---\n")
}
