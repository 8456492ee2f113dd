// Package logging configures the logrus loggers shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"

	"github.com/sirupsen/logrus"
)

var root = New(os.Stderr, logrus.InfoLevel)

// New returns a logger writing caller-annotated text to out.
func New(out io.Writer, level logrus.Level) *logrus.Logger {
	return &logrus.Logger{
		Out: out,
		Formatter: &CustomTextFormatter{
			logrus.TextFormatter{
				CallerPrettyfier: func(*runtime.Frame) (string, string) { return "", "" },
			},
		},
		Hooks:        make(logrus.LevelHooks),
		Level:        level,
		ReportCaller: true,
		ExitFunc:     os.Exit,
	}
}

// NamedLogger creates a named component logger on the shared root logger.
func NamedLogger(name string) *logrus.Entry {
	return Named(root, name)
}

// Named creates a named component logger on l.
func Named(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

// Nop returns a logger that discards everything.
func Nop() *logrus.Entry {
	return Named(New(io.Discard, logrus.PanicLevel), "nop")
}

// SetLevel sets the root level from a name such as "debug" or "warn".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	root.SetLevel(lvl)
	return nil
}

// SetOutput redirects the root logger.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// CustomTextFormatter prefixes each message with the calling file and line.
type CustomTextFormatter struct {
	logrus.TextFormatter
}

// Format renders a single log entry
func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.HasCaller() {
		entry.Message = fmt.Sprintf("[%-15s:%03d]%s", path.Base(entry.Caller.File), entry.Caller.Line, entry.Message)
	}
	return f.TextFormatter.Format(entry)
}
