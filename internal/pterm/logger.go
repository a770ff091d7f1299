package pterm

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

// Level is a log severity
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Hook receives every emitted line, e.g. for the web UI log buffer
type Hook func(level Level, line string)

// Logger provides structured logging with PTerm.
// A nil *Logger is valid and discards everything.
type Logger struct {
	debugEnabled bool
	disabled     bool
	out          io.Writer

	mu    sync.RWMutex
	hooks []Hook
}

// NewLogger creates a new logger instance
func NewLogger(disabled bool) *Logger {
	return &Logger{
		debugEnabled: os.Getenv("STORYBOARD_DEBUG") == "true",
		disabled:     disabled,
		out:          os.Stdout,
	}
}

// Discard returns a plain-text logger that writes nowhere; hooks still fire
func Discard() *Logger {
	return &Logger{disabled: true, out: io.Discard}
}

// SetDebug overrides the STORYBOARD_DEBUG setting
func (l *Logger) SetDebug(enabled bool) {
	if l == nil {
		return
	}
	l.debugEnabled = enabled
}

// AddHook registers a hook called for every line that passes the level gate
func (l *Logger) AddHook(h Hook) {
	if l == nil || h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// Debug logs a debug message (only if STORYBOARD_DEBUG=true)
func (l *Logger) Debug(message string, args ...interface{}) {
	l.emit(LevelDebug, l.formatMessage(message, args...))
}

// Info logs an informational message
func (l *Logger) Info(message string, args ...interface{}) {
	l.emit(LevelInfo, l.formatMessage(message, args...))
}

// Success logs a success message
func (l *Logger) Success(message string, args ...interface{}) {
	l.emit(LevelSuccess, l.formatMessage(message, args...))
}

// Warning logs a warning message
func (l *Logger) Warning(message string, args ...interface{}) {
	l.emit(LevelWarning, l.formatMessage(message, args...))
}

// Error logs an error message
func (l *Logger) Error(message string, args ...interface{}) {
	l.emit(LevelError, l.formatMessage(message, args...))
}

// Debugf logs a formatted debug message (only if STORYBOARD_DEBUG=true)
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.emit(LevelDebug, fmt.Sprintf(format, args...))
}

// Infof logs a formatted informational message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.emit(LevelInfo, fmt.Sprintf(format, args...))
}

// Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.emit(LevelWarning, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) emit(level Level, line string) {
	if l == nil {
		return
	}
	if level == LevelDebug && !l.debugEnabled {
		return
	}

	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()
	for _, h := range hooks {
		h(level, line)
	}

	if l.disabled {
		fmt.Fprintf(l.out, "%s %s\n", plainPrefix(level), line)
		return
	}

	switch level {
	case LevelDebug:
		pterm.Debug.Println(line)
	case LevelSuccess:
		pterm.Success.Println(line)
	case LevelWarning:
		pterm.Warning.Println(line)
	case LevelError:
		pterm.Error.Println(line)
	default:
		pterm.Info.Println(line)
	}
}

func plainPrefix(level Level) string {
	switch level {
	case LevelDebug:
		return "[DEBUG]"
	case LevelSuccess:
		return "[SUCCESS] ✓"
	case LevelWarning:
		return "[WARNING] ⚠"
	case LevelError:
		return "[ERROR] ✗"
	}
	return "[INFO]"
}

// formatMessage formats a message with optional key-value pairs
func (l *Logger) formatMessage(message string, args ...interface{}) string {
	if len(args) == 0 {
		return message
	}

	var pairs []string
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, fmt.Sprintf("%v=%v", args[i], args[i+1]))
	}

	if len(pairs) > 0 {
		return fmt.Sprintf("%s (%s)", message, strings.Join(pairs, ", "))
	}

	return message
}

// IsDebugEnabled returns whether debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	return l != nil && l.debugEnabled
}

// Logger method for PTermManager
func (pm *PTermManager) Logger() *Logger {
	return NewLogger(pm.disabled)
}
