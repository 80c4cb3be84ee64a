package vlog

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the interface every package in this module logs through.
// Fields follow the vsock-specific vocabulary (socket, addr, state) rather
// than a generic key/value bag, so call sites stay terse.
type Logger interface {
	WithSocket(id uint64) Logger
	WithAddr(field string, a fmt.Stringer) Logger
	WithField(key string, v interface{}) Logger

	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(err error, msg string)
}

type logger struct {
	entry *logrus.Entry
}

var (
	once sync.Once
	base *logrus.Logger
)

func std() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetLevel(InfoLevel.Logrus())
	})
	return base
}

// SetOutput redirects the package-wide logrus instance, e.g. to silence
// output or to point logs at a file.
func SetOutput(w io.Writer) { std().SetOutput(w) }

// SetLevel adjusts the minimum logged level.
func SetLevel(l Level) { std().SetLevel(l.Logrus()) }

// New returns a root Logger for the named component, e.g. vlog.New("stream.dispatcher").
func New(component string) Logger {
	return &logger{entry: std().WithField("component", component)}
}

func (l *logger) WithSocket(id uint64) Logger {
	return &logger{entry: l.entry.WithField("socket", id)}
}

func (l *logger) WithAddr(field string, a fmt.Stringer) Logger {
	return &logger{entry: l.entry.WithField(field, a.String())}
}

func (l *logger) WithField(key string, v interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, v)}
}

func (l *logger) Debug(msg string) { l.entry.Debug(msg) }
func (l *logger) Info(msg string)  { l.entry.Info(msg) }
func (l *logger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *logger) Error(err error, msg string) {
	if err != nil {
		l.entry.WithError(err).Error(msg)
		return
	}
	l.entry.Error(msg)
}
