package academy

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogLogger backs Logger with a slog.Logger. Messages are formatted
// before they reach slog, so handlers only see the final text.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Named returns a logger tagged with component
func (l *SlogLogger) Named(component string) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(slog.String("component", component))}
}

func (l *SlogLogger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l *SlogLogger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *SlogLogger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *SlogLogger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *SlogLogger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.logger.Log(ctx, level, msg)
}
