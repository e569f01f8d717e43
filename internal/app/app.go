package app

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/agbru/blobmerge/internal/cli"
	"github.com/agbru/blobmerge/internal/config"
	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/export"
	"github.com/agbru/blobmerge/internal/logging"
	"github.com/agbru/blobmerge/internal/metrics"
	"github.com/agbru/blobmerge/internal/ui"
)

// Application represents the blobmerge application instance.
type Application struct {
	Config    config.AppConfig
	ErrWriter io.Writer
	// Input feeds key presses to the -tui view. Nil disables them.
	Input    io.Reader
	Exporter export.Exporter
	Logger   logging.Logger
	Metrics  *metrics.Recorder
}

// AppOption configures an Application during construction.
type AppOption func(*Application)

// WithExporter replaces the exporter derived from -out.
func WithExporter(e export.Exporter) AppOption {
	return func(a *Application) { a.Exporter = e }
}

// WithInput replaces standard input as the source of -tui key presses.
func WithInput(r io.Reader) AppOption {
	return func(a *Application) { a.Input = r }
}

// WithLogger replaces the console logger.
func WithLogger(l logging.Logger) AppOption {
	return func(a *Application) { a.Logger = l }
}

// New creates a new Application instance by parsing command-line arguments.
func New(args []string, errWriter io.Writer, opts ...AppOption) (*Application, error) {
	app := &Application{ErrWriter: errWriter, Input: os.Stdin}
	for _, opt := range opts {
		opt(app)
	}

	programName := "blobmerge"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter)
	if err != nil {
		return nil, err
	}
	app.Config = config.ApplyAdaptiveDefaults(cfg)

	if app.Exporter == nil {
		app.Exporter = export.New(app.Config.Output)
	}
	if app.Logger == nil {
		app.Logger = logging.NewConsoleLogger(errWriter, app.Config.NoColor)
	}
	app.Metrics = metrics.NewRecorder()
	return app, nil
}

// Run executes one merge and returns the process exit code.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	zerolog.SetGlobalLevel(a.Config.Level())
	ui.InitTheme(a.Config.NoColor)

	ctx, cancelTimeout := context.WithTimeout(ctx, a.Config.Timeout)
	defer cancelTimeout()
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	err := a.runMerge(ctx, out)

	if a.Config.MetricsFile != "" {
		if werr := a.Metrics.WriteTextfile(a.Config.MetricsFile); werr != nil {
			a.Logger.Error("failed to write metrics", werr, logging.String("path", a.Config.MetricsFile))
		}
	}

	if err != nil {
		cli.DisplayError(a.ErrWriter, err)
		return apperrors.ExitCodeFor(err)
	}
	return apperrors.ExitSuccess
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}

// errVerifyMismatch is returned when the engine output differs from the
// direct merge of the same records.
var errVerifyMismatch = errors.New("output digest does not match direct merge")
