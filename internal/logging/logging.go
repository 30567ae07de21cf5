// Package logging provides a small structured logging facade over logrus.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the interface the engine logs through.
type Logger interface {
	Debug(msg string, kvpairs ...interface{})
	Info(msg string, kvpairs ...interface{})
	Error(msg string, kvpairs ...interface{})
	With(key string, val interface{}) Logger
}

// logrusLogger wraps a logrus entry with a fixed context field.
type logrusLogger struct {
	entry *logrus.Entry
}

var _ Logger = (*logrusLogger)(nil)
var _ Logger = (*noopLogger)(nil)

// NewLogger creates a logger scoped to the given context name.
func NewLogger(ctx string) Logger {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if ctx != "" {
		entry = entry.WithField("ctx", ctx)
	}
	return &logrusLogger{entry: entry}
}

// NewLoggerTo creates a logger writing to w, for tests and embedded use.
func NewLoggerTo(ctx string, w io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(w)
	entry := logrus.NewEntry(l)
	if ctx != "" {
		entry = entry.WithField("ctx", ctx)
	}
	return &logrusLogger{entry: entry}
}

// SetVerbosity adjusts the global log level. Unknown levels leave it unchanged.
func SetVerbosity(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	}
}

func (l *logrusLogger) withKVPairs(kvpairs []interface{}) *logrus.Entry {
	if len(kvpairs)%2 != 0 {
		return l.entry
	}
	fields := make(logrus.Fields, len(kvpairs)/2)
	for i := 0; i < len(kvpairs); i += 2 {
		key, ok := kvpairs[i].(string)
		if !ok {
			continue
		}
		fields[key] = kvpairs[i+1]
	}
	if len(fields) == 0 {
		return l.entry
	}
	return l.entry.WithFields(fields)
}

func (l *logrusLogger) Debug(msg string, kvpairs ...interface{}) {
	l.withKVPairs(kvpairs).Debugln(msg)
}

func (l *logrusLogger) Info(msg string, kvpairs ...interface{}) {
	l.withKVPairs(kvpairs).Infoln(msg)
}

func (l *logrusLogger) Error(msg string, kvpairs ...interface{}) {
	l.withKVPairs(kvpairs).Errorln(msg)
}

func (l *logrusLogger) With(key string, val interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, val)}
}

// noopLogger discards everything.
type noopLogger struct{}

// NewNoopLogger returns a logger that does nothing when called.
func NewNoopLogger() Logger { return &noopLogger{} }

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (n noopLogger) With(string, interface{}) Logger {
	return n
}
