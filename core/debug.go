package core

import (
	"fmt"
	"time"
)

// Level is a log severity.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO ", "WARN ", "ERROR"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "?????"
}

// LogWriter is the platform-specific sink for log messages.
// Targets point it at the debug CDC interface; hosted binaries at log/slog.
type LogWriter func(level Level, msg string)

type logEntry struct {
	level Level
	msg   string
}

var (
	// logWriter is a no-op until platform code installs one
	logWriter LogWriter = func(Level, string) {}

	logLevel = LevelInfo

	// bootTime anchors the uptime stamp in FormatLine
	bootTime = time.Now()

	// logChan is non-nil once InitAsyncLog has started the worker
	logChan chan logEntry
)

// SetLogWriter sets the platform-specific log output function
func SetLogWriter(w LogWriter) {
	if w == nil {
		w = func(Level, string) {}
	}
	logWriter = w
}

// SetLogLevel drops every message below level.
func SetLogLevel(level Level) {
	logLevel = level
}

// LogLevel returns the current minimum level.
func LogLevel() Level {
	return logLevel
}

// InitAsyncLog starts a worker that drains queued messages to the writer.
// After this call logging never blocks: when the queue is full the message is
// dropped, which keeps it usable from interrupt context.
// Call this from main() after SetLogWriter.
func InitAsyncLog(depth int) {
	logChan = make(chan logEntry, depth)
	go logWorker(logChan)
}

func logWorker(ch chan logEntry) {
	for e := range ch {
		logWriter(e.level, e.msg)
	}
}

func logf(level Level, format string, args ...any) {
	if level < logLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if logChan != nil {
		select {
		case logChan <- logEntry{level, msg}:
		default:
		}
		return
	}
	logWriter(level, msg)
}

func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }

// FormatLine renders a message the way the device's debug console shows it:
// "[uptime seconds.millis] LEVEL: message".
func FormatLine(level Level, msg string) string {
	ms := time.Since(bootTime).Milliseconds()
	return fmt.Sprintf("[%6d.%03d] %s: %s", ms/1000, ms%1000, level, msg)
}
