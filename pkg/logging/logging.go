// Package logging defines the logging behavior consumed by kitforge commands
// and library code, together with an apex/log backed implementation.
package logging

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/kitforge/kitforge/internal/style"
)

const (
	errorLevelText = "ERROR: "
	warnLevelText  = "Warning: "

	// time format used when timestamps are enabled
	timeFmt = "2006/01/02 15:04:05.000000"

	// log level to use when quiet is true
	quietLevel = log.WarnLevel

	// log level to use when verbose is true
	verboseLevel = log.DebugLevel
)

// Logger defines behavior required by kitforge commands and library code.
type Logger interface {
	Debug(msg string)
	Debugf(fmt string, v ...interface{})

	Info(msg string)
	Infof(fmt string, v ...interface{})

	Warn(msg string)
	Warnf(fmt string, v ...interface{})

	Error(msg string)
	Errorf(fmt string, v ...interface{})

	Writer() io.Writer

	IsVerbose() bool
}

// LogWithWriters is a logger used with the kitforge CLI, allowing the
// eventual writer of each entry to be set by log level.
type LogWithWriters struct {
	sync.Mutex
	log.Logger
	wantTime bool
	clock    func() time.Time
	out      io.Writer
	errOut   io.Writer
}

// NewLogWithWriters creates a logger routing error entries to stderr and
// everything else to stdout.
func NewLogWithWriters(stdout, stderr io.Writer, opts ...func(*LogWithWriters)) *LogWithWriters {
	lw := &LogWithWriters{
		clock:  time.Now,
		out:    stdout,
		errOut: stderr,
	}
	lw.Logger.Handler = lw
	lw.Logger.Level = log.InfoLevel
	for _, opt := range opts {
		opt(lw)
	}

	return lw
}

// WithClock overrides the time source used when timestamps are enabled.
func WithClock(clock func() time.Time) func(*LogWithWriters) {
	return func(lw *LogWithWriters) {
		lw.clock = clock
	}
}

// WithVerbose enables debug level logging.
func WithVerbose() func(*LogWithWriters) {
	return func(lw *LogWithWriters) {
		lw.Logger.Level = log.DebugLevel
	}
}

// HandleLog supports behavior that is unique to the kitforge CLI, namely
// routing errors to a separate writer and toggling timestamps.
func (lw *LogWithWriters) HandleLog(e *log.Entry) error {
	lw.Lock()
	defer lw.Unlock()

	writer := lw.writerForLevel(e.Level)

	if lw.wantTime {
		_, _ = fmt.Fprintf(writer, "%s %s%s\n", lw.clock().Format(timeFmt), formatLevel(e.Level), e.Message)
		return nil
	}

	_, _ = fmt.Fprintf(writer, "%s%s\n", formatLevel(e.Level), e.Message)

	return nil
}

func (lw *LogWithWriters) writerForLevel(level log.Level) io.Writer {
	if level >= log.ErrorLevel {
		return lw.errOut
	}
	return lw.out
}

// Writer returns the writer used for raw, unleveled output.
func (lw *LogWithWriters) Writer() io.Writer {
	return lw.out
}

// WantTime enables or disables timestamps on log entries.
func (lw *LogWithWriters) WantTime(f bool) {
	lw.wantTime = f
}

// WantQuiet reduces the logger to warnings and errors.
func (lw *LogWithWriters) WantQuiet(f bool) {
	if f {
		lw.Logger.Level = quietLevel
	}
}

// WantVerbose enables debug entries.
func (lw *LogWithWriters) WantVerbose(f bool) {
	if f {
		lw.Logger.Level = verboseLevel
	}
}

// IsVerbose reports whether debug entries are emitted.
func (lw *LogWithWriters) IsVerbose() bool {
	return lw.Logger.Level == log.DebugLevel
}

func formatLevel(level log.Level) string {
	switch level {
	case log.ErrorLevel:
		return style.Error(errorLevelText)
	case log.WarnLevel:
		return style.Warn(warnLevelText)
	}

	return ""
}
