// Package log is the logging facade used across pktcraft. Library code logs
// through GetLogger; the CLI calls Init once with the loaded configuration.
package log

import (
	"os"
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger = mustNew(DefaultConfig(), os.Stderr)
)

// GetLogger returns the process logger. Before Init it writes warnings and
// above to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the process logger.
func SetLogger(l Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Init builds a logger from cfg writing to stderr and, if configured, a
// rotating file, and installs it as the process logger.
func Init(cfg *LoggerConfig) error {
	l, err := initByConfig(cfg)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

func mustNew(cfg *LoggerConfig, out *os.File) Logger {
	l, err := newLogrus(cfg, NewMultiWriter().Add(out))
	if err != nil {
		panic(err)
	}
	return l
}
