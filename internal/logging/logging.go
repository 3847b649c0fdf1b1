// Package logging provides the leveled logger facade consumed by every
// component of the collective engine.
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled logging interface threaded through the engine.
// Any component that wants to report progress, a recoverable anomaly, or a
// fatal misuse takes one of these instead of reaching for the standard
// library's log package directly.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	// Fatal logs and then panics with a *FatalError, keeping the
	// "either the op completes or the process terminates" contract
	// observable without taking the whole host process down via os.Exit,
	// which would make the condition untestable.
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	// ToggleDebug enables or disables Debug/Debugf output and returns the
	// new state.
	ToggleDebug(enabled bool) bool
}

// FatalError is the panic value raised by Logger.Fatal/Fatalf.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string { return e.Message }

// logrusLogger is the default Logger backed by logrus, delegating level
// handling and formatting to a real structured-logging library instead of
// a hand-rolled stdlib-log wrapper.
type logrusLogger struct {
	entry *logrus.Logger
}

// NewDefaultLogger builds the default logrus-backed Logger, writing to
// stderr with a full-timestamp text formatter at Info level.
func NewDefaultLogger() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: l}
}

func (l *logrusLogger) Debug(v ...interface{})                 { l.entry.Debug(v...) }
func (l *logrusLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *logrusLogger) Info(v ...interface{})                  { l.entry.Info(v...) }
func (l *logrusLogger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *logrusLogger) Warn(v ...interface{})                  { l.entry.Warn(v...) }
func (l *logrusLogger) Warnf(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *logrusLogger) Error(v ...interface{})                 { l.entry.Error(v...) }
func (l *logrusLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }

func (l *logrusLogger) Fatal(v ...interface{}) {
	msg := fmt.Sprint(v...)
	l.entry.Error(msg)
	panic(&FatalError{Message: msg})
}

func (l *logrusLogger) Fatalf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.entry.Error(msg)
	panic(&FatalError{Message: msg})
}

func (l *logrusLogger) ToggleDebug(enabled bool) bool {
	if enabled {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return enabled
}
