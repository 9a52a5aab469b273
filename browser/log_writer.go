package browser

import (
	"bytes"
	"io"

	"go.uber.org/zap"
)

type logWriter zap.Logger

// LogWriter returns an io.Writer that logs each write at debug level. Useful for driver subprocess output.
func LogWriter(logger *zap.Logger) io.Writer {
	return (*logWriter)(logger)
}

func (l *logWriter) Write(p []byte) (n int, err error) {
	msg := string(bytes.TrimSpace(p))
	if msg != "" {
		(*zap.Logger)(l).Debug(msg)
	}
	return len(p), nil
}
