package academy

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Notification is a message about a single use credential
type Notification struct {
	Kind      TokenKind `json:"kind"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Subject returns the subject line for the notification kind
func (n Notification) Subject() string {
	switch n.Kind {
	case TokenKindPasswordSetup:
		return "Set up your password"
	case TokenKindPasswordReset:
		return "Reset your password"
	default:
		return "Account notification"
	}
}

// Notifier delivers credential notifications. A failed delivery never
// fails the operation that triggered it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// RecoveryConfig holds where the links in credential notifications point.
type RecoveryConfig struct {
	PublicURL string
	SetupPath string
	ResetPath string
}

// DefaultRecoveryConfig returns the default link layout for publicURL
func DefaultRecoveryConfig(publicURL string) RecoveryConfig {
	return RecoveryConfig{
		PublicURL: publicURL,
		SetupPath: "/password/setup",
		ResetPath: "/password/reset",
	}
}

// Link builds the link a notification points at. The token travels in the
// query string.
func (c RecoveryConfig) Link(kind TokenKind, token string) string {
	path := c.ResetPath
	if kind == TokenKindPasswordSetup {
		path = c.SetupPath
	}

	q := url.Values{}
	q.Set("token", token)

	base := strings.TrimRight(c.PublicURL, "/")
	return base + "/" + strings.TrimLeft(path, "/") + "?" + q.Encode()
}

type notificationDispatcher struct {
	notifier Notifier
	links    RecoveryConfig
	activity ActivitySink
	logger   Logger
}

// dispatch sends n and turns a failure into a warning.
func (d notificationDispatcher) dispatch(ctx context.Context, user *User, token IssuedToken) []string {
	n := Notification{
		Kind:      token.Kind,
		UserID:    user.GetID(),
		Email:     user.Email,
		Name:      user.FullName(),
		Link:      d.links.Link(token.Kind, token.Token),
		ExpiresAt: token.ExpiresAt,
	}

	if err := normalizeNotifier(d.notifier).Notify(ctx, n); err != nil {
		normalizeLogger(d.logger).Warn("notification %s to %s failed: %v", n.Kind, n.Email, err)
		recordActivity(ctx, d.activity, d.logger, ActivityEvent{
			EventType: ActivityEventNotificationFailed,
			Actor:     SystemActor,
			UserID:    user.GetID(),
			Metadata: map[string]any{
				"kind":  n.Kind,
				"error": err.Error(),
			},
		})
		return []string{"notification could not be delivered: " + err.Error()}
	}

	return nil
}
