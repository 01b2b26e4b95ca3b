package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// RecordingLogger captures log lines for assertions. Safe for concurrent use.
type RecordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", level, msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	l.lines = append(l.lines, b.String())
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args...) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args...) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args...) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args...) }

// Lines returns a copy of everything logged so far.
func (l *RecordingLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.lines...)
}

// Contains reports whether any logged line contains substr.
func (l *RecordingLogger) Contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
