// This file contains the environment variable and config file override layers.

package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/agbru/blobmerge/internal/errors"
)

// isFlagSet checks if a flag was explicitly set on the command line.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// isFlagSetAny checks if any of the specified flags were explicitly set.
func isFlagSetAny(fs *flag.FlagSet, names ...string) bool {
	for _, name := range names {
		if isFlagSet(fs, name) {
			return true
		}
	}
	return false
}

// override declares a single setting that can come from the environment
// (BLOBMERGE_<key>) or from the config file (lowercase <key>).
type override struct {
	key   string
	flags []string
	apply func(*AppConfig, string)
}

// fileKey is the YAML key for the override.
func (o override) fileKey() string { return strings.ToLower(o.key) }

// overrides is the declarative table of all environment and file overrides.
var overrides = []override{
	// Numeric overrides
	{"WORKERS", []string{"workers"}, func(c *AppConfig, v string) {
		if parsed, err := strconv.Atoi(v); err == nil {
			c.Workers = parsed
		}
	}},
	{"CHUNK_SIZE", []string{"chunk-size"}, func(c *AppConfig, v string) {
		if parsed, err := parseSize(v); err == nil {
			c.ChunkSize = int(parsed)
		}
	}},
	{"PARALLEL_THRESHOLD", []string{"parallel-threshold"}, func(c *AppConfig, v string) {
		if parsed, err := parseSize(v); err == nil {
			c.ParallelThreshold = int(parsed)
		}
	}},
	{"MAX_SIZE", []string{"max-size"}, func(c *AppConfig, v string) {
		if parsed, err := parseSize(v); err == nil {
			c.MaxSize = parsed
		}
	}},
	{"SIGNATURE_LIMIT", []string{"signature-limit"}, func(c *AppConfig, v string) {
		if parsed, err := strconv.Atoi(v); err == nil {
			c.SignatureLimit = parsed
		}
	}},

	// Duration overrides
	{"TIMEOUT", []string{"timeout"}, func(c *AppConfig, v string) {
		if parsed, err := time.ParseDuration(v); err == nil {
			c.Timeout = parsed
		}
	}},

	// String overrides
	{"ORDER", []string{"order"}, func(c *AppConfig, v string) { c.Order = v }},
	{"OUTPUT", []string{"out"}, func(c *AppConfig, v string) { c.Output = v }},
	{"FORMAT", []string{"format"}, func(c *AppConfig, v string) { c.Format = v }},
	{"EXT", []string{"ext"}, func(c *AppConfig, v string) { c.Extension = v }},
	{"LOG_LEVEL", []string{"log-level"}, func(c *AppConfig, v string) { c.LogLevel = v }},
	{"METRICS_FILE", []string{"metrics-file"}, func(c *AppConfig, v string) { c.MetricsFile = v }},

	// Boolean overrides
	{"CHUNKED", []string{"chunked"}, func(c *AppConfig, v string) { c.Chunked = parseBoolEnv(v, c.Chunked) }},
	{"STRIP_EXIF", []string{"strip-exif"}, func(c *AppConfig, v string) { c.StripEXIF = parseBoolEnv(v, c.StripEXIF) }},
	{"STRIP_XMP", []string{"strip-xmp"}, func(c *AppConfig, v string) { c.StripXMP = parseBoolEnv(v, c.StripXMP) }},
	{"STRIP_IPTC", []string{"strip-iptc"}, func(c *AppConfig, v string) { c.StripIPTC = parseBoolEnv(v, c.StripIPTC) }},
	{"STRICT_SIGNATURE", []string{"strict-signature"}, func(c *AppConfig, v string) {
		c.StrictSignature = parseBoolEnv(v, c.StrictSignature)
	}},
	{"VERIFY", []string{"verify"}, func(c *AppConfig, v string) { c.Verify = parseBoolEnv(v, c.Verify) }},
	{"QUIET", []string{"quiet", "q"}, func(c *AppConfig, v string) { c.Quiet = parseBoolEnv(v, c.Quiet) }},
	{"VERBOSE", []string{"v", "verbose"}, func(c *AppConfig, v string) { c.Verbose = parseBoolEnv(v, c.Verbose) }},
	{"NO_COLOR", []string{"no-color"}, func(c *AppConfig, v string) { c.NoColor = parseBoolEnv(v, c.NoColor) }},
	{"TUI", []string{"tui"}, func(c *AppConfig, v string) { c.TUI = parseBoolEnv(v, c.TUI) }},
}

// parseBoolEnv parses a boolean value.
// Accepts "true", "1", "yes" as true; "false", "0", "no" as false (case-insensitive).
// Returns defaultVal if the value is not recognized.
func parseBoolEnv(val string, defaultVal bool) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultVal
}

// applyEnvOverrides applies environment variable values to the configuration
// for any flags that were not explicitly set on the command line.
func applyEnvOverrides(config *AppConfig, fs *flag.FlagSet) {
	for _, o := range overrides {
		if isFlagSetAny(fs, o.flags...) {
			continue
		}
		if val := os.Getenv(EnvPrefix + o.key); val != "" {
			o.apply(config, val)
		}
	}
}

// applyFileOverrides loads a flat YAML mapping and applies every known key
// whose flag was not set on the command line. Unknown keys are rejected.
func applyFileOverrides(config *AppConfig, fs *flag.FlagSet, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewConfigError("read config file: %v", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return apperrors.NewConfigError("parse config file %s: %v", path, err)
	}

	known := make(map[string]override, len(overrides))
	for _, o := range overrides {
		known[o.fileKey()] = o
	}
	for key, value := range values {
		o, ok := known[key]
		if !ok {
			return apperrors.NewConfigError("unknown key %q in config file %s", key, path)
		}
		if isFlagSetAny(fs, o.flags...) {
			continue
		}
		o.apply(config, fmt.Sprint(value))
	}
	return nil
}
