// Package logging defines the Logger sink the core consumes (spec.md §1,
// "the core consumes a Config record and a Logger sink") and a default
// logrus-backed implementation.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is the sink interface every core component logs through. Remote
// TCP log fan-out and file transports are owned by the caller; the core
// only ever writes through this interface.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// WithField returns a Logger that prefixes subsequent entries with a
	// structured field, e.g. logger.WithField("job", jobID).
	WithField(key string, value interface{}) Logger
}

// logrusLogger adapts *logrus.Entry to Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

// New builds the default Logger, backed by logrus, matching the teacher's
// direct dependency on github.com/sirupsen/logrus.
func New() Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// NewWithLevel builds a Logger at the given level; debug defaults to info.
func NewWithLevel(debug bool) Logger {
	return NewWithLevelAndHooks(debug)
}

// NewWithLevelAndHooks is NewWithLevel plus any logrus.Hook fan-outs the
// caller wants attached (e.g. a hook shipping entries to --remote-log-port,
// since the TUI takes over stdout/stderr and can't print there itself).
func NewWithLevelAndHooks(debug bool, hooks ...logrus.Hook) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	for _, h := range hooks {
		l.AddHook(h)
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

// Nop is a Logger that discards everything, used in tests.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{})       {}
func (nopLogger) Infof(string, ...interface{})        {}
func (nopLogger) Warnf(string, ...interface{})        {}
func (nopLogger) Errorf(string, ...interface{})       {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }

// Nop returns a Logger that discards all entries.
func Nop() Logger { return nopLogger{} }
