// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"genircon/internal/textformat"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes console lines of the form "[HH:MM:SS] [LABEL] message".
// Format codes in labels and messages become ANSI sequences when ANSI
// output is on and are stripped otherwise. Safe for concurrent use.
type Logger struct {
	level      LogLevel
	output     io.Writer
	mu         sync.Mutex
	ansi       bool
	timestamps bool
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stdout,
		timestamps: true,
	}
}

// SetTimestamps enables or disables the "[HH:MM:SS]" prefix.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	l.timestamps = on
	l.mu.Unlock()
}

// SetANSI switches between coloured and plain output.
func (l *Logger) SetANSI(on bool) {
	l.mu.Lock()
	l.ansi = on
	l.mu.Unlock()
}

// ANSI reports whether coloured output is on.
func (l *Logger) ANSI() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ansi
}

// SetOutput overrides the output writer (default: os.Stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.output = w
	l.mu.Unlock()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERROR", textformat.DarkRed, fmt.Sprintf(format, args...))
}

// Alert prints when verbosity ≥ 1.
func (l *Logger) Alert(format string, args ...interface{}) {
	l.Log(fmt.Sprintf(format, args...), LogNormal, "ALERT", textformat.Red)
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.Log(fmt.Sprintf(format, args...), LogNormal, "WARNING", textformat.Yellow)
}

// Notice prints when verbosity ≥ 1.
func (l *Logger) Notice(format string, args ...interface{}) {
	l.Log(fmt.Sprintf(format, args...), LogNormal, "NOTICE", textformat.Aqua)
}

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(fmt.Sprintf(format, args...), LogNormal, "INFO", textformat.White)
}

// Verbose prints when verbosity ≥ 2.
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.Log(fmt.Sprintf(format, args...), LogVerbose, "VERBOSE", textformat.Gray)
}

// Debug prints when verbosity ≥ 3.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Log(fmt.Sprintf(format, args...), LogDebug, "DEBUG", textformat.Gray)
}

// Log prints message under label in the given colour when the logger's
// verbosity is at least level. The message is not treated as a format
// string.
func (l *Logger) Log(message string, level LogLevel, label, color string) {
	if l.level >= level {
		l.write(label, color, message)
	}
}

// WriteRaw writes s unchanged, e.g. terminal control sequences.
func (l *Logger) WriteRaw(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.output, s) //nolint:errcheck
}

func (l *Logger) write(label, color, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := color + "[" + label + "] " + msg + textformat.Reset
	if l.timestamps {
		line = textformat.Aqua + "[" + time.Now().Format("15:04:05") + "] " + textformat.Reset + line
	}
	if l.ansi {
		line = textformat.ToANSI(line)
	} else {
		line = textformat.Clean(line)
	}
	fmt.Fprintln(l.output, line)
}
