// Package vlog is the structured-logging ambient layer: a small wrapper
// over logrus, adapted from the teacher's logger package (level naming and
// Logrus() conversion lifted from logger/level.go) but stripped of the
// gorm/hclog/syslog adapters the teacher carries for its own much broader
// surface — nothing in this module talks to a database or a syslog daemon.
package vlog

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is this package's own level enum, decoupled from logrus so that
// call sites never import logrus directly.
type Level uint8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	PanicLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warning"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	case PanicLevel:
		return "panic"
	default:
		return "unknown"
	}
}

// Logrus converts to the equivalent logrus.Level.
func (l Level) Logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	case PanicLevel:
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel returns a valid Level matching s, falling back to InfoLevel
// exactly as the teacher's GetLevelString does.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warning", "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	case "panic":
		return PanicLevel
	default:
		return InfoLevel
	}
}
