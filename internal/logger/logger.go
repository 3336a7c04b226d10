package logger

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Level represents a log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLevel Level = LevelInfo
	redactor     func(string) string
	mu           sync.RWMutex
)

// ParseLevel converts a level name into a Level.
// Unknown names map to LevelInfo.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// SetLevel sets the global log level from a string.
// Valid values: "debug", "info", "warn", "error".
func SetLevel(level string) {
	l := ParseLevel(level)

	mu.Lock()
	currentLevel = l
	mu.Unlock()

	log.Printf("[INFO] Log level set to: %s", l)
}

// SetRedactor installs a filter applied to every formatted line before it
// is written. Passing nil removes it.
func SetRedactor(fn func(string) string) {
	mu.Lock()
	defer mu.Unlock()
	redactor = fn
}

func getLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

func output(prefix, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)

	mu.RLock()
	fn := redactor
	mu.RUnlock()
	if fn != nil {
		line = fn(line)
	}

	log.Print(prefix + line)
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	if getLevel() <= LevelDebug {
		output("[DEBUG] ", format, args...)
	}
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	if getLevel() <= LevelInfo {
		output("[INFO] ", format, args...)
	}
}

// Warnf logs a warning message.
func Warnf(format string, args ...interface{}) {
	if getLevel() <= LevelWarn {
		output("[WARN] ", format, args...)
	}
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	output("[ERROR] ", format, args...)
}
