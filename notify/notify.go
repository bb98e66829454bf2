// Package notify delivers credential notifications: setup and reset links.
package notify

import (
	"context"
	"errors"

	academy "github.com/goliatone/go-academy"
	"github.com/goliatone/go-print"
)

// Log writes notifications through a logger. Useful in development where
// nobody reads the mail.
type Log struct {
	logger academy.Logger
	debug  bool
}

func NewLog(logger academy.Logger, debug bool) *Log {
	return &Log{logger: logger, debug: debug}
}

func (l *Log) Notify(_ context.Context, n academy.Notification) error {
	if l.logger == nil {
		return nil
	}
	if l.debug {
		l.logger.Debug("notification: %s", print.MaybePrettyJSON(n))
		return nil
	}
	l.logger.Info("notification %s for %s: %s", n.Kind, n.Email, n.Link)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []academy.Notifier

func (m Multi) Notify(ctx context.Context, n academy.Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
