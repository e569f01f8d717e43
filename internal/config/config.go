// Package config defines the application configuration and parses it from
// command-line flags, BLOBMERGE_* environment variables and an optional YAML
// file, in that order of priority.
package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/payload"
)

// EnvPrefix is the prefix for all environment variable overrides.
const EnvPrefix = "BLOBMERGE_"

// Default values for size-like flags.
const (
	DefaultChunkSize      = 1 << 20
	DefaultMaxSize        = 100 << 20
	DefaultSignatureLimit = 1 << 20
	DefaultTimeout        = 5 * time.Minute
)

// AppConfig holds the resolved configuration for one run.
type AppConfig struct {
	Carrier string
	Cargo   string
	Order   string

	// Chunked selects chunked ingestion and the pool-backed merge.
	Chunked bool
	// ChunkSize is the ingestion slice size in bytes.
	ChunkSize int
	// Workers is the pool size. Zero means estimate from the CPU count.
	Workers int
	// ParallelThreshold is the combined input size from which chunked runs
	// use the worker pool. Zero means estimate from the CPU count.
	ParallelThreshold int

	Output    string
	Format    string
	Extension string

	StripEXIF bool
	StripXMP  bool
	StripIPTC bool

	MaxSize         int64
	SignatureLimit  int
	StrictSignature bool
	Verify          bool

	Quiet       bool
	Verbose     bool
	TUI         bool
	NoColor     bool
	LogLevel    string
	Timeout     time.Duration
	MetricsFile string
	ConfigFile  string
}

// MergeOrder returns the parsed merge order. Validate guarantees it parses.
func (c AppConfig) MergeOrder() payload.Order {
	o, _ := payload.ParseOrder(c.Order)
	return o
}

// Level returns the parsed zerolog level, or info when unset.
func (c AppConfig) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// sizeFlag is a flag.Value accepting humanized byte sizes such as "4MiB".
type sizeFlag struct{ v *int64 }

func (s sizeFlag) String() string {
	if s.v == nil {
		return ""
	}
	if *s.v < 0 {
		return "auto"
	}
	return humanize.IBytes(uint64(*s.v))
}

func (s sizeFlag) Set(val string) error {
	n, err := parseSize(val)
	if err != nil {
		return err
	}
	*s.v = n
	return nil
}

func parseSize(val string) (int64, error) {
	n, err := humanize.ParseBytes(val)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", val, err)
	}
	return int64(n), nil
}

// ParseConfig parses args into an AppConfig. Flags take priority over
// environment variables, which take priority over the config file.
func ParseConfig(programName string, args []string, errWriter io.Writer) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errWriter)

	cfg := AppConfig{}
	var chunkSize, threshold int64 = DefaultChunkSize, AutoThreshold
	cfg.MaxSize = DefaultMaxSize

	fs.StringVar(&cfg.Carrier, "carrier", "", "Carrier file (e.g. an image).")
	fs.StringVar(&cfg.Cargo, "cargo", "", "Cargo file (e.g. an archive).")
	fs.StringVar(&cfg.Order, "order", "append", "Merge order: 'append' (carrier first) or 'prepend' (cargo first).")
	fs.BoolVar(&cfg.Chunked, "chunked", false, "Read in chunks and merge on the worker pool.")
	fs.Var(sizeFlag{&chunkSize}, "chunk-size", "Ingestion chunk size (e.g. 1MiB).")
	fs.IntVar(&cfg.Workers, "workers", 0, "Worker pool size (0 = number of CPUs).")
	fs.Var(sizeFlag{&threshold}, "parallel-threshold", "Combined size from which the worker pool is used (0 = always; default estimated from CPUs).")
	fs.StringVar(&cfg.Output, "out", ".", "Output directory or bucket URL (file://, mem://, s3://...).")
	fs.StringVar(&cfg.Format, "format", "original", "Output extension: 'original', 'custom', or an explicit extension.")
	fs.StringVar(&cfg.Extension, "ext", "", "Extension used with -format custom.")
	fs.BoolVar(&cfg.StripEXIF, "strip-exif", false, "Remove EXIF metadata from the carrier.")
	fs.BoolVar(&cfg.StripXMP, "strip-xmp", false, "Remove XMP metadata from the carrier.")
	fs.BoolVar(&cfg.StripIPTC, "strip-iptc", false, "Remove IPTC metadata from the carrier.")
	fs.Var(sizeFlag{&cfg.MaxSize}, "max-size", "Maximum size of each input file.")
	fs.IntVar(&cfg.SignatureLimit, "signature-limit", DefaultSignatureLimit, "Bytes of the cargo scanned for an archive signature.")
	fs.BoolVar(&cfg.StrictSignature, "strict-signature", false, "Reject cargo without an archive signature.")
	fs.BoolVar(&cfg.Verify, "verify", false, "Compare the result against a direct merge.")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Only print the output location.")
	fs.BoolVar(&cfg.Quiet, "q", false, "Shorthand for -quiet.")
	fs.BoolVar(&cfg.Verbose, "v", false, "Show detailed merge statistics.")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Show detailed merge statistics.")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output.")
	fs.BoolVar(&cfg.TUI, "tui", false, "Show an interactive progress view; q cancels the run.")
	fs.StringVar(&cfg.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error.")
	fs.DurationVar(&cfg.Timeout, "timeout", DefaultTimeout, "Maximum duration of the whole run.")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit.")
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML configuration file.")

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}
	cfg.ChunkSize = int(chunkSize)
	cfg.ParallelThreshold = int(threshold)

	if cfg.ConfigFile != "" {
		if err := applyFileOverrides(&cfg, fs, cfg.ConfigFile); err != nil {
			return AppConfig{}, err
		}
	}
	applyEnvOverrides(&cfg, fs)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errWriter, "Error:", err)
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c AppConfig) Validate() error {
	if c.Carrier == "" || c.Cargo == "" {
		return apperrors.NewConfigError("both -carrier and -cargo are required")
	}
	if _, err := payload.ParseOrder(c.Order); err != nil {
		return apperrors.NewConfigError("%v", err)
	}
	if c.ChunkSize <= 0 {
		return apperrors.NewConfigError("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Workers < 0 {
		return apperrors.NewConfigError("worker count cannot be negative, got %d", c.Workers)
	}
	if c.ParallelThreshold < AutoThreshold {
		return apperrors.NewConfigError("parallel threshold cannot be negative")
	}
	if c.SignatureLimit < 0 {
		return apperrors.NewConfigError("signature limit cannot be negative, got %d", c.SignatureLimit)
	}
	if c.MaxSize <= 0 {
		return apperrors.NewConfigError("max size must be positive")
	}
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("timeout must be positive, got %s", c.Timeout)
	}
	if c.Format == "custom" && strings.TrimPrefix(c.Extension, ".") == "" {
		return apperrors.NewConfigError("-format custom requires -ext")
	}
	if c.Format == "" {
		return apperrors.NewConfigError("-format cannot be empty")
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return apperrors.NewConfigError("invalid log level %q", c.LogLevel)
		}
	}
	return nil
}
