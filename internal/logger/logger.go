// Package logger provides a simple leveled logging utility for the
// enforcement engine. Background persistence paths log here instead of
// propagating errors.
package logger

import (
	"fmt"
	"os"
	"time"
)

// Level represents the logging level.
type Level int

const (
	// LevelOff disables all logging.
	LevelOff Level = iota
	// LevelInfo shows basic progress information.
	LevelInfo
	// LevelDebug shows detailed debugging information.
	LevelDebug
)

var (
	currentLevel = LevelOff
	startTime    = time.Now()
)

// SetLevel sets the global logging level.
func SetLevel(level Level) {
	currentLevel = level
	startTime = time.Now()
}

// GetLevel returns the current logging level.
func GetLevel() Level {
	return currentLevel
}

// IsDebug returns true if debug logging is enabled.
func IsDebug() bool {
	return currentLevel >= LevelDebug
}

// Info logs an informational message.
func Info(format string, args ...any) {
	logAt(LevelInfo, "", format, args...)
}

// Debug logs a debug message.
func Debug(format string, args ...any) {
	logAt(LevelDebug, "[DEBUG] ", format, args...)
}

// Error logs an error message. Shown whenever logging is enabled.
func Error(format string, args ...any) {
	logAt(LevelInfo, "[ERROR] ", format, args...)
}

func logAt(min Level, tag, format string, args ...any) {
	if currentLevel < min {
		return
	}
	elapsed := time.Since(startTime).Round(time.Millisecond)
	fmt.Fprintf(os.Stderr, fmt.Sprintf("[%s] %s", elapsed, tag)+format+"\n", args...)
}
