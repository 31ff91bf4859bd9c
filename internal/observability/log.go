package observability

import (
	"io"
	"log/slog"
	"math"
)

var noopLogger *slog.Logger

// NoopLogger returns a disabled Logger
func NoopLogger() *slog.Logger {
	return noopLogger
}

// OrDefault returns log unless it is nil, in which case slog.Default()
// is returned. Client handles expose an optional *slog.Logger field and
// normalize it through OrDefault.
func OrDefault(log *slog.Logger) *slog.Logger {
	if nil == log {
		return slog.Default()
	}
	return log
}

func init() {
	hdlr := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})
	noopLogger = slog.New(hdlr)
}
