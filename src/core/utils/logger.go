package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Log levels
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is a small leveled printf-style logger writing to stdout and,
// when a directory is configured, a log file.
type Logger struct {
	level int
	out   *log.Logger
}

func parseLevel(s string) int {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// NewLogger creates a logger; dir/file may be empty for stdout only.
func NewLogger(dir, file, level string) *Logger {
	var w io.Writer = os.Stdout
	if dir != "" && file != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			if f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				w = io.MultiWriter(os.Stdout, f)
			}
		}
	}
	return &Logger{
		level: parseLevel(level),
		out:   log.New(w, "", log.LstdFlags),
	}
}

func (l *Logger) logf(level int, tag, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	l.out.Output(3, tag+" "+fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, "[DEBUG]", format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, "[INFO]", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, "[WARN]", format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LevelError, "[ERROR]", format, args...)
}
