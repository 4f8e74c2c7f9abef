package wfdlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Level represents the logging verbosity level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// DebugCategory gates a targeted slice of debug-level logging.
type DebugCategory string

const (
	DebugRTSP    DebugCategory = "rtsp"
	DebugWPA     DebugCategory = "wpa"
	DebugSession DebugCategory = "session"
	DebugMedia   DebugCategory = "media"
	DebugAll     DebugCategory = "all"
)

// OutputFormat determines the log output format.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// Config holds logger configuration.
type Config struct {
	Level             Level
	Format            OutputFormat
	OutputFile        string
	EnabledCategories map[DebugCategory]bool
	mu                sync.RWMutex
}

// NewConfig creates a logger configuration with defaults: info level, text format, stdout.
func NewConfig() *Config {
	return &Config{
		Level:             LevelInfo,
		Format:            FormatText,
		EnabledCategories: make(map[DebugCategory]bool),
	}
}

// ParseLevel converts a string to Level.
func ParseLevel(level string) (Level, error) {
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

// ParseFormat converts a string to OutputFormat.
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

// ToSlogLevel converts Level to slog.Level.
func (l Level) ToSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnableCategory enables a debug category; DebugAll enables every known category.
func (c *Config) EnableCategory(category DebugCategory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if category == DebugAll {
		c.EnabledCategories[DebugRTSP] = true
		c.EnabledCategories[DebugWPA] = true
		c.EnabledCategories[DebugSession] = true
		c.EnabledCategories[DebugMedia] = true
	} else {
		c.EnabledCategories[category] = true
	}
}

// IsCategoryEnabled reports whether category has been enabled.
func (c *Config) IsCategoryEnabled(category DebugCategory) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.EnabledCategories[category]
}

// Logger wraps slog.Logger with category-gated debug helpers.
type Logger struct {
	*slog.Logger
	config *Config
	file   *os.File
}

// New creates a Logger from cfg.
func New(cfg *Config) (*Logger, error) {
	var writer io.Writer = os.Stdout
	var file *os.File

	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("wfdlog: open %s: %w", cfg.OutputFile, err)
		}
		writer = f
		file = f
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.ToSlogLevel()}
	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Logger{Logger: slog.New(handler), config: cfg, file: file}, nil
}

// Close closes the underlying log file, if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// DebugRTSP logs at Debug level if the rtsp category is enabled.
func (l *Logger) DebugRTSP(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugRTSP) {
		l.Debug(msg, append([]any{"category", "rtsp"}, args...)...)
	}
}

// DebugWPA logs at Debug level if the wpa category is enabled.
func (l *Logger) DebugWPA(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugWPA) {
		l.Debug(msg, append([]any{"category", "wpa"}, args...)...)
	}
}

// DebugSession logs at Debug level if the session category is enabled.
func (l *Logger) DebugSession(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugSession) {
		l.Debug(msg, append([]any{"category", "session"}, args...)...)
	}
}

// DebugMedia logs at Debug level if the media category is enabled.
func (l *Logger) DebugMedia(msg string, args ...any) {
	if l.config.IsCategoryEnabled(DebugMedia) {
		l.Debug(msg, append([]any{"category", "media"}, args...)...)
	}
}

// With returns a new Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), config: l.config, file: l.file}
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// SetDefault installs logger as the package default and as slog's global default.
func SetDefault(logger *Logger) {
	defaultLogger = logger
	slog.SetDefault(logger.Logger)
}

// Default returns the process-wide default Logger, creating a stdout/text/info one on first use.
func Default() *Logger {
	once.Do(func() {
		if defaultLogger != nil {
			return
		}
		logger, err := New(NewConfig())
		if err != nil {
			logger = &Logger{Logger: slog.Default(), config: NewConfig()}
		}
		defaultLogger = logger
	})
	return defaultLogger
}
