package academy

import (
	"context"
	"maps"
	"slices"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const textCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// userTransitions lists the statuses each status may move to. Pending only
// leaves through password setup, blocked only back to active.
var userTransitions = map[UserStatus][]UserStatus{
	UserStatusPending:    {UserStatusActive},
	UserStatusActive:     {UserStatusInProgress, UserStatusBlocked},
	UserStatusInProgress: {UserStatusActive, UserStatusBlocked},
	UserStatusBlocked:    {UserStatusActive},
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

func (m TransitionMetadata) activity() map[string]any {
	if m.Reason == "" && len(m.Metadata) == 0 {
		return nil
	}
	out := maps.Clone(m.Metadata)
	if out == nil {
		out = map[string]any{}
	}
	if m.Reason != "" {
		out["reason"] = m.Reason
	}
	return out
}

// TransitionContext is what hooks see of a transition.
type TransitionContext struct {
	Actor ActorRef
	User  *User
	From  UserStatus
	To    UserStatus
	Meta  TransitionMetadata
}

// TransitionHook runs before or after the status is stored. A before hook
// error aborts the transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

type TransitionOption func(*transition)

// UserStateMachine moves identities through their lifecycle.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
	CanTransition(from, to UserStatus) bool
}

type StateMachineOption func(*userStateMachine)

func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink publishes a status changed event per
// transition. Transitions that run on a transaction should record into a
// pendingActivity and flush it once the transaction commits.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

func WithTransitionReason(reason string) TransitionOption {
	return func(t *transition) {
		t.meta.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the recorded event.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(t *transition) {
		if len(metadata) == 0 {
			return
		}
		if t.meta.Metadata == nil {
			t.meta.Metadata = make(map[string]any, len(metadata))
		}
		maps.Copy(t.meta.Metadata, metadata)
	}
}

// WithTransitionTx runs the status update on tx so the transition commits
// together with the caller's other writes.
func WithTransitionTx(tx bun.IDB) TransitionOption {
	return func(t *transition) {
		t.tx = tx
	}
}

func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(t *transition) {
		if h != nil {
			t.before = append(t.before, h)
		}
	}
}

func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(t *transition) {
		if h != nil {
			t.after = append(t.after, h)
		}
	}
}

// NewUserStateMachine returns a state machine that stores statuses through
// users.
func NewUserStateMachine(users Users, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		users:        users,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

type userStateMachine struct {
	users        Users
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

type transition struct {
	meta   TransitionMetadata
	tx     bun.IDB
	before []TransitionHook
	after  []TransitionHook
}

func (sm *userStateMachine) CanTransition(from, to UserStatus) bool {
	return slices.Contains(userTransitions[from], to)
}

// Transition moves user to target. Moving to the current status is a no-op
// that returns user untouched. Entering blocked stamps BlockedAt, leaving
// it clears the stamp.
func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, newError(ErrInvalidTransition, "", map[string]any{"target": target, "reason": "user is nil"})
	}
	if !target.IsValid() {
		return nil, newError(ErrInvalidTransition, "", map[string]any{"target": target, "reason": "unknown target status"})
	}

	user.EnsureStatus()
	from := user.Status
	if from == target {
		return user, nil
	}
	if !sm.CanTransition(from, target) {
		return nil, newError(ErrInvalidTransition, "", map[string]any{"from": from, "to": target})
	}

	t := &transition{}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.meta.Metadata = maps.Clone(t.meta.Metadata)

	tc := TransitionContext{Actor: actor, User: user, From: from, To: target, Meta: t.meta}
	if err := runHooks(ctx, t.before, tc); err != nil {
		return nil, err
	}

	var blockedAt *time.Time
	if target == UserStatusBlocked {
		now := sm.now()
		blockedAt = &now
	}

	update := []StatusUpdateOption{WithBlockedAt(blockedAt), WithExpectedStatus(from)}

	var updated *User
	var err error
	if t.tx != nil {
		updated, err = sm.users.UpdateStatusTx(ctx, t.tx, user.ID, target, update...)
	} else {
		updated, err = sm.users.UpdateStatus(ctx, user.ID, target, update...)
	}
	if err != nil {
		return nil, err
	}

	user.Status = target
	user.BlockedAt = blockedAt
	if updated != nil {
		user.UpdatedAt = updated.UpdatedAt
	}

	if err := runHooks(ctx, t.after, tc); err != nil {
		return nil, err
	}

	recordActivity(ctx, sm.activitySink, sm.logger, ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   t.meta.activity(),
		OccurredAt: sm.now(),
	})

	return user, nil
}

func runHooks(ctx context.Context, hooks []TransitionHook, tc TransitionContext) error {
	for _, hook := range hooks {
		if err := hook(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}
