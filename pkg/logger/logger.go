package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// LogLevel represents the logging verbosity level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// DebugCategory represents specific debug categories for targeted debugging
type DebugCategory string

const (
	DebugCodec     DebugCategory = "codec"
	DebugSecure    DebugCategory = "secure"
	DebugDispatch  DebugCategory = "dispatch"
	DebugSession   DebugCategory = "session"
	DebugAuth      DebugCategory = "auth"
	DebugRelay     DebugCategory = "relay"
	DebugRing      DebugCategory = "ring"
	DebugMigration DebugCategory = "migration"
	DebugRuntime   DebugCategory = "runtime"
	DebugAll       DebugCategory = "all"
)

// Config holds logger configuration
type Config struct {
	Level           LogLevel
	Format          OutputFormat
	OutputFile      string
	EnabledCategories map[DebugCategory]bool
	mu              sync.RWMutex
}

// OutputFormat determines the log output format
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// Global logger instance
var (
	defaultLogger *Logger
	once          sync.Once
)

// Logger wraps slog.Logger with category-based debugging
type Logger struct {
	*slog.Logger
	config *Config
	file   *os.File
}

// NewConfig creates a new logger configuration with defaults
func NewConfig() *Config {
	return &Config{
		Level:             LevelInfo,
		Format:            FormatText,
		OutputFile:        "",
		EnabledCategories: make(map[DebugCategory]bool),
	}
}

// ParseLevel converts a string to LogLevel
func ParseLevel(level string) (LogLevel, error) {
	switch level {
	case "debug", "DEBUG":
		return LevelDebug, nil
	case "info", "INFO":
		return LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn, nil
	case "error", "ERROR":
		return LevelError, nil
	default:
		return "", fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
}

// ParseFormat converts a string to OutputFormat
func ParseFormat(format string) (OutputFormat, error) {
	switch format {
	case "json", "JSON":
		return FormatJSON, nil
	case "text", "TEXT":
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new Logger instance with the given configuration
func New(cfg *Config) (*Logger, error) {
	var writer io.Writer = os.Stdout
	var file *os.File

	// Setup output file if specified
	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.OutputFile, err)
		}
		writer = f
		file = f
	}

	// Create handler based on format
	var handler slog.Handler
	handlerOpts := &slog.HandlerOptions{
		Level: cfg.Level.ToSlogLevel(),
	}

	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, handlerOpts)
	case FormatText:
		handler = slog.NewTextHandler(writer, handlerOpts)
	default:
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	logger := &Logger{
		Logger: slog.New(handler),
		config: cfg,
		file:   file,
	}

	return logger, nil
}

// EnableCategory enables a specific debug category
func (c *Config) EnableCategory(category DebugCategory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if category == DebugAll {
		// Enable all categories
		c.EnabledCategories[DebugCodec] = true
		c.EnabledCategories[DebugSecure] = true
		c.EnabledCategories[DebugDispatch] = true
		c.EnabledCategories[DebugSession] = true
		c.EnabledCategories[DebugAuth] = true
		c.EnabledCategories[DebugRelay] = true
		c.EnabledCategories[DebugRing] = true
		c.EnabledCategories[DebugMigration] = true
		c.EnabledCategories[DebugRuntime] = true
	} else {
		c.EnabledCategories[category] = true
	}
}

// IsCategoryEnabled checks if a debug category is enabled
func (c *Config) IsCategoryEnabled(category DebugCategory) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.EnabledCategories[category]
}

// IsDebugEnabled checks if any debug category is enabled
func (c *Config) IsDebugEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.EnabledCategories) > 0
}

// Close closes the log file if one was opened
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Category-specific logging methods

// DebugCodec logs frame codec details if codec debugging is enabled
func (l *Logger) DebugCodec(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugCodec) {
		args = append([]any{"category", "codec"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugSecure logs secure-channel envelope details if secure debugging is enabled
func (l *Logger) DebugSecure(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugSecure) {
		args = append([]any{"category", "secure"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugDispatch logs handler dispatch details if dispatch debugging is enabled
func (l *Logger) DebugDispatch(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugDispatch) {
		args = append([]any{"category", "dispatch"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugSession logs session lifecycle details if session debugging is enabled
func (l *Logger) DebugSession(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugSession) {
		args = append([]any{"category", "session"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugAuth logs authentication details if auth debugging is enabled
func (l *Logger) DebugAuth(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugAuth) {
		args = append([]any{"category", "auth"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugRelay logs SDP/ICE relay details if relay debugging is enabled
func (l *Logger) DebugRelay(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugRelay) {
		args = append([]any{"category", "relay"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugRing logs ring-consensus details if ring debugging is enabled
func (l *Logger) DebugRing(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugRing) {
		args = append([]any{"category", "ring"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugMigration logs host migration details if migration debugging is enabled
func (l *Logger) DebugMigration(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugMigration) {
		args = append([]any{"category", "migration"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugRuntime logs connection and scheduler details if runtime debugging is enabled
func (l *Logger) DebugRuntime(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugRuntime) {
		args = append([]any{"category", "runtime"}, args...)
		l.Debug(msg, args...)
	}
}

// DebugFrame logs detailed wire-frame information
func (l *Logger) DebugFrame(packetType uint16, length uint32, crc32 uint32) {
	if l.config.IsCategoryEnabled(DebugCodec) {
		l.Debug("ACIP frame",
			"category", "codec",
			"type", packetType,
			"length", length,
			"crc32", crc32)
	}
}

// DebugPayload logs raw payload bytes truncated to a safe preview length
func (l *Logger) DebugPayload(category DebugCategory, label string, payload []byte) {
	if l.config.IsCategoryEnabled(category) {
		maxBytes := 32
		if len(payload) < maxBytes {
			maxBytes = len(payload)
		}
		l.Debug(label,
			"category", string(category),
			"payload_bytes", fmt.Sprintf("% x", payload[:maxBytes]),
			"total_size", len(payload))
	}
}

// WithContext returns a copy of the logger; ctx is not read and no context
// values are added
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		Logger: l.Logger,
		config: l.config,
		file:   l.file,
	}
}

// With returns a new Logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
		file:   l.file,
	}
}

// SetDefault sets the global default logger
func SetDefault(logger *Logger) {
	defaultLogger = logger
	slog.SetDefault(logger.Logger)
}

// Default returns the default logger, creating one if necessary
func Default() *Logger {
	once.Do(func() {
		if defaultLogger != nil {
			return
		}
		cfg := NewConfig()
		logger, err := New(cfg)
		if err != nil {
			// Fallback to basic logger
			logger = &Logger{
				Logger: slog.Default(),
				config: cfg,
			}
		}
		defaultLogger = logger
	})
	return defaultLogger
}

// Package-level convenience functions

// Debug logs at Debug level using the default logger
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at Info level using the default logger
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at Warn level using the default logger
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at Error level using the default logger
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
