package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Config configures the logger with rotation settings
type Config struct {
	// Filename is the file to write logs to; empty, "-" or "stdout" logs to stdout
	Filename string

	// MaxSize is the maximum size in megabytes before rotation
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files
	MaxAge int

	// Compress determines if rotated logs should be compressed
	Compress bool

	// Level is the minimum logging level
	Level Level

	// Output allows setting a custom output writer (for testing)
	Output io.Writer
}

// DefaultConfig returns sensible defaults
func DefaultConfig(filename string) Config {
	return Config{
		Filename:   filename,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Level:      INFO,
	}
}

// Logger provides structured logging with rotation
type Logger struct {
	logger  *log.Logger
	level   Level
	fields  map[string]any
	rotator *lumberjack.Logger // nil for stdout/custom writers
}

// NewWithConfig creates a new logger with rotation configuration
func NewWithConfig(cfg Config) (*Logger, error) {
	var writer io.Writer
	var rotator *lumberjack.Logger

	switch {
	case cfg.Output != nil:
		writer = cfg.Output
	case cfg.Filename == "" || cfg.Filename == "-" || cfg.Filename == "stdout":
		writer = os.Stdout
	default:
		logDir := filepath.Dir(cfg.Filename)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}

		rotator = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writer = rotator
	}

	return &Logger{
		logger:  log.New(writer, "", 0),
		level:   cfg.Level,
		fields:  make(map[string]any),
		rotator: rotator,
	}, nil
}

// New creates a new logger with default rotation settings, falling back to
// stdout when the log file cannot be created
func New(logfile string) *Logger {
	l, err := NewWithConfig(DefaultConfig(logfile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create log file %s: %v. Falling back to stdout.\n", logfile, err)
		l, _ = NewWithConfig(Config{Output: os.Stdout, Level: INFO})
	}
	return l
}

// Close closes the log file if using rotation
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// SetLevel sets the minimum logging level
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields map[string]any) *Logger {
	newLogger := &Logger{
		logger:  l.logger,
		level:   l.level,
		fields:  make(map[string]any, len(l.fields)+len(fields)),
		rotator: l.rotator,
	}
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err)
}

// log formats and writes a log message
func (l *Logger) log(level Level, msg string, args ...any) {
	if level < l.level {
		return
	}

	message := fmt.Sprintf(msg, args...)

	var fields []string
	for k, v := range l.fields {
		var formatted string
		switch val := v.(type) {
		case string:
			formatted = val
		case error:
			formatted = val.Error()
		case fmt.Stringer:
			formatted = val.String()
		default:
			formatted = fmt.Sprintf("%v", val)
		}
		fields = append(fields, fmt.Sprintf("%s=%s", k, formatted))
	}
	sort.Strings(fields)

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	entry := fmt.Sprintf("[%s] %s: %s", timestamp, level.String(), message)
	if len(fields) > 0 {
		entry += " | " + strings.Join(fields, " | ")
	}

	l.logger.Println(entry)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.log(DEBUG, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.log(INFO, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.log(WARN, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.log(ERROR, msg, args...)
}

// Global default logger

var defaultLogger *Logger

func init() {
	defaultLogger, _ = NewWithConfig(Config{Output: os.Stdout, Level: INFO})
}

// SetDefault sets the default global logger
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Debug logs using the default logger
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs using the default logger
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs using the default logger
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs using the default logger
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// WithField returns a logger with a field using the default logger
func WithField(key string, value any) *Logger {
	return defaultLogger.WithField(key, value)
}

// WithFields returns a logger with fields using the default logger
func WithFields(fields map[string]any) *Logger {
	return defaultLogger.WithFields(fields)
}

func WithError(err error) *Logger {
	return defaultLogger.WithError(err)
}
