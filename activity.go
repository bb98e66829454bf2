package academy

import (
	"context"
	"errors"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserCreated          ActivityEventType = "user.created"
	ActivityEventUserStatusChanged    ActivityEventType = "user.status.changed"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventPasswordSetupSuccess ActivityEventType = "auth.password.setup"
	ActivityEventPasswordChanged      ActivityEventType = "auth.password.changed"
	ActivityEventTaskCompleted        ActivityEventType = "learner.task.completed"
	ActivityEventCatalogNodeCreated   ActivityEventType = "catalog.node.created"
	ActivityEventCatalogNodeDeleted   ActivityEventType = "catalog.node.deleted"
	ActivityEventNotificationFailed   ActivityEventType = "notification.failed"
	ActivityEventAuthorizationDenied  ActivityEventType = "auth.authorization.denied"
	ActivityEventAccessTokenRefreshed ActivityEventType = "auth.token.refreshed"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// SystemActor is used when no identity triggered the action.
var SystemActor = ActorRef{Type: "system"}

// ActorFromUser builds an actor reference for an identity.
func ActorFromUser(u *User) ActorRef {
	if u == nil {
		return SystemActor
	}
	return ActorRef{ID: u.ID.String(), Type: string(u.Role)}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromStatus UserStatus
	ToStatus   UserStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// LogActivitySink writes every event through a Logger.
func LogActivitySink(logger Logger) ActivitySink {
	logger = normalizeLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		logger.Info("activity %s actor=%s:%s user=%s meta=%v",
			event.EventType, event.Actor.Type, event.Actor.ID, event.UserID, event.Metadata)
		return nil
	})
}

// ActivitySinks fans every event out to each sink. All sinks run, their
// errors are joined.
type ActivitySinks []ActivitySink

func (s ActivitySinks) Record(ctx context.Context, event ActivityEvent) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pendingActivity holds events recorded inside a transaction until it
// commits. It is not safe for concurrent use.
type pendingActivity struct {
	events []ActivityEvent
}

func (p *pendingActivity) Record(_ context.Context, event ActivityEvent) error {
	p.events = append(p.events, event)
	return nil
}

// flush forwards the held events to sink and empties p.
func (p *pendingActivity) flush(ctx context.Context, sink ActivitySink, logger Logger) {
	for _, event := range p.events {
		recordActivity(ctx, sink, logger, event)
	}
	p.events = nil
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity stamps and records event, sink failures only log.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = SystemActor
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink error for %s: %v", event.EventType, err)
	}
}
