package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ANSI color codes for console output
const (
	ColorReset      = "\033[0m"
	ColorRed        = "\033[31m"
	ColorYellow     = "\033[33m"
	ColorBlue       = "\033[34m"
	ColorGray       = "\033[37m"
	ColorBrightRed  = "\033[91m"
	ColorBrightGray = "\033[90m"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]string
}

// Logger provides structured leveled logging for one component.
type Logger struct {
	component string
	version   string

	mu             sync.RWMutex
	colorEnabled   bool
	disableConsole bool
}

// New creates a new logger instance
func New(component, version string) *Logger {
	return &Logger{
		component:    component,
		version:      version,
		colorEnabled: isTerminal(),
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func (l *Logger) getColorForLevel(level string) string {
	switch level {
	case "ERROR":
		return ColorBrightRed
	case "WARN":
		return ColorYellow
	case "INFO":
		return ColorBlue
	case "DEBUG":
		return ColorBrightGray
	default:
		return ColorGray
	}
}

// DisableConsoleOutput suppresses console printing.
func (l *Logger) DisableConsoleOutput() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disableConsole = true
}

func (l *Logger) log(level, message string, fields map[string]string) {
	l.mu.RLock()
	disabled := l.disableConsole
	colored := l.colorEnabled
	l.mu.RUnlock()

	if disabled {
		return
	}

	entry := LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Fields:  fields,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-20s %-7s %s",
		entry.Time.Format("2006-01-02 15:04:05.000"),
		l.component,
		entry.Level,
		entry.Message,
	)
	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, entry.Fields[k])
		}
	}

	line := b.String()
	if colored {
		line = l.getColorForLevel(level) + line + ColorReset
	}
	fmt.Fprintln(os.Stdout, line)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	l.log("DEBUG", message, nil)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log("DEBUG", fmt.Sprintf(format, args...), nil)
}

// Info logs an info message
func (l *Logger) Info(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	l.log("INFO", message, nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log("INFO", fmt.Sprintf(format, args...), nil)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	l.log("WARN", message, nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log("WARN", fmt.Sprintf(format, args...), nil)
}

// Error logs an error message
func (l *Logger) Error(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	l.log("ERROR", message, nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", fmt.Sprintf(format, args...), nil)
}

// Fatalf logs a formatted error message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log("ERROR", fmt.Sprintf(format, args...), nil)
	os.Exit(1)
}

// LogContext carries preset fields for structured logging.
type LogContext struct {
	logger *Logger
	fields map[string]string
}

// WithFields returns a logging context with preset fields.
func (l *Logger) WithFields(fields map[string]string) *LogContext {
	return &LogContext{logger: l, fields: fields}
}

// Debug logs a debug message with the context fields
func (c *LogContext) Debug(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	c.logger.log("DEBUG", message, c.fields)
}

// Info logs an info message with the context fields
func (c *LogContext) Info(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	c.logger.log("INFO", message, c.fields)
}

// Warn logs a warning message with the context fields
func (c *LogContext) Warn(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	c.logger.log("WARN", message, c.fields)
}

// Error logs an error message with the context fields
func (c *LogContext) Error(message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	c.logger.log("ERROR", message, c.fields)
}
