// Package aslog is the default as.Logger backend, built on logrus.
package aslog

import (
	"github.com/sirupsen/logrus"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/as"
)

// Logger adapts a *logrus.Logger to as.Logger.
type Logger struct {
	entry *logrus.Entry
}

// New wraps l (or a freshly constructed default logrus.Logger if l is
// nil) as an as.Logger.
func New(l *logrus.Logger) *Logger {
	if l == nil {
		l = logrus.New()
	}
	return &Logger{entry: logrus.NewEntry(l)}
}

func (l *Logger) Log(level as.LogLevel, msg string, keyvals ...any) {
	fields := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fields[key] = keyvals[i+1]
	}
	e := l.entry.WithFields(fields)

	switch level {
	case as.LogLevelError:
		e.Error(msg)
	case as.LogLevelWarn:
		e.Warn(msg)
	case as.LogLevelInfo:
		e.Info(msg)
	case as.LogLevelDebug:
		e.Debug(msg)
	}
}
