package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel       string
	LogFormat      string
	LogFile        string
	DebugCodec     bool
	DebugSecure    bool
	DebugDispatch  bool
	DebugSession   bool
	DebugAuth      bool
	DebugRelay     bool
	DebugRing      bool
	DebugMigration bool
	DebugRuntime   bool
	DebugAll       bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	// Debug category flags
	fs.BoolVar(&f.DebugCodec, "debug-codec", false,
		"Enable wire frame codec debugging (header, CRC32, length)")
	fs.BoolVar(&f.DebugSecure, "debug-secure", false,
		"Enable secure-channel envelope debugging")
	fs.BoolVar(&f.DebugDispatch, "debug-dispatch", false,
		"Enable handler dispatch debugging")
	fs.BoolVar(&f.DebugSession, "debug-session", false,
		"Enable session lifecycle debugging (create, join, leave, end)")
	fs.BoolVar(&f.DebugAuth, "debug-auth", false,
		"Enable authentication debugging (signatures, replay window)")
	fs.BoolVar(&f.DebugRelay, "debug-relay", false,
		"Enable SDP/ICE relay debugging")
	fs.BoolVar(&f.DebugRing, "debug-ring", false,
		"Enable ring-consensus debugging (collection, election)")
	fs.BoolVar(&f.DebugMigration, "debug-migration", false,
		"Enable host migration debugging")
	fs.BoolVar(&f.DebugRuntime, "debug-runtime", false,
		"Enable connection and scheduler debugging")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	// Parse log level
	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	// Parse format
	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	// Set output file
	cfg.OutputFile = f.LogFile

	// Enable debug categories
	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		// Force debug level when any debug category is enabled
		cfg.Level = LevelDebug
	} else {
		type toggle struct {
			enabled  bool
			category DebugCategory
		}
		for _, t := range []toggle{
			{f.DebugCodec, DebugCodec},
			{f.DebugSecure, DebugSecure},
			{f.DebugDispatch, DebugDispatch},
			{f.DebugSession, DebugSession},
			{f.DebugAuth, DebugAuth},
			{f.DebugRelay, DebugRelay},
			{f.DebugRing, DebugRing},
			{f.DebugMigration, DebugMigration},
			{f.DebugRuntime, DebugRuntime},
		} {
			if t.enabled {
				cfg.EnableCategory(t.category)
				cfg.Level = LevelDebug
			}
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./acipd

  Enable DEBUG level:
    ./acipd --log-level debug
    ./acipd -l debug

  Log to file:
    ./acipd --log-file acipd.log
    ./acipd -o acipd.log

  JSON format for structured logging:
    ./acipd --log-format json -o acipd.json

  Debug session lifecycle only:
    ./acipd --debug-session

  Debug ring consensus only:
    ./acipd --debug-ring

  Debug multiple categories:
    ./acipd --debug-session --debug-auth --debug-relay

  Debug everything:
    ./acipd --debug-all -o debug.log

  Production logging (WARN level, JSON to file):
    ./acipd -l warn --log-format json -o production.log
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		type toggle struct {
			enabled bool
			name    string
		}
		for _, t := range []toggle{
			{f.DebugCodec, "codec"},
			{f.DebugSecure, "secure"},
			{f.DebugDispatch, "dispatch"},
			{f.DebugSession, "session"},
			{f.DebugAuth, "auth"},
			{f.DebugRelay, "relay"},
			{f.DebugRing, "ring"},
			{f.DebugMigration, "migration"},
			{f.DebugRuntime, "runtime"},
		} {
			if t.enabled {
				debugCategories = append(debugCategories, t.name)
			}
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}
