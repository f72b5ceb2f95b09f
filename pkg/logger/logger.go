package logger

import (
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the logger handed to every service and package.
type Log struct {
	logr.Logger
}

// New creates a named logger. An empty level keeps the zap preset default
// (info for production, debug otherwise).
func New(name string, level string, production bool) (*Log, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Log{Logger: zapr.NewLogger(z).WithName(name)}, nil
}

// New returns a child logger for a subsystem.
func (l *Log) New(name string) *Log {
	return &Log{Logger: l.Logger.WithName(name)}
}

// Debug logs at verbosity 1, which the production preset suppresses.
func (l *Log) Debug(msg string, keysAndValues ...any) {
	l.V(1).Info(msg, keysAndValues...)
}
