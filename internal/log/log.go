// Package log configures apex/log for dbtsel and provides thin leveled
// helpers.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// EnvVar selects the log level.
const EnvVar = "DBTSEL_LOG"

var traceEnabled bool

// InitFromEnv installs the text handler on w with the level from DBTSEL_LOG.
// The default level is warn so selection warnings are visible.
func InitFromEnv(w io.Writer) {
	Init(w, os.Getenv(EnvVar))
}

// Init installs the text handler on w at the named level.
func Init(w io.Writer, level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	traceEnabled = level == "trace"
	log.SetHandler(NewTextHandler(w))
	log.SetLevel(parseLevel(level))
}

func parseLevel(level string) log.Level {
	switch level {
	case "trace", "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.WarnLevel
	}
}

// Logger returns the process-wide apex logger.
func Logger() log.Interface {
	return log.Log
}

// TextHandler writes "timestamp L message key=value ..." lines.
type TextHandler struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewTextHandler returns a handler writing to w.
func NewTextHandler(w io.Writer) *TextHandler {
	return &TextHandler{w: w, now: time.Now}
}

// HandleLog implements log.Handler.
func (h *TextHandler) HandleLog(e *log.Entry) error {
	message := e.Message
	level := "?"
	if strings.HasPrefix(message, "TRACE: ") {
		level = "T"
		message = message[len("TRACE: "):]
	} else {
		switch e.Level {
		case log.DebugLevel:
			level = "D"
		case log.InfoLevel:
			level = "I"
		case log.WarnLevel:
			level = "W"
		case log.ErrorLevel:
			level = "E"
		case log.FatalLevel:
			level = "F"
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", h.now().Format("2006-01-02 15:04:05"), level, message)
	names := e.Fields.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// Tracef logs at Trace level (below Debug).
func Tracef(format string, args ...any) {
	if traceEnabled {
		log.Debug("TRACE: " + fmt.Sprintf(format, args...))
	}
}

// Debugf logs at Debug level.
func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

// Infof logs at Info level.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
}

// Warnf logs at Warn level.
func Warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

// Errorf logs at Error level.
func Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}
