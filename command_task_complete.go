package academy

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type CompleteTaskMessage struct {
	User       *User  `json:"-"`
	ContentID  string `json:"contentId"`
	OnResponse func(resp *CompleteTaskResponse)
}

func (m CompleteTaskMessage) Type() string { return "learner.task_complete" }

func (m CompleteTaskMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ContentID, validation.Required, validation.Length(1, 64)),
	)
}

type CompleteTaskResponse struct {
	Added          bool     `json:"added"`
	CompletedTasks []string `json:"completedTasks"`
}

// CompleteTaskHandler adds a content item to the learner's completed set.
// Adding an id twice is a no-op.
type CompleteTaskHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewCompleteTaskHandler(repo RepositoryManager) *CompleteTaskHandler {
	return &CompleteTaskHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *CompleteTaskHandler) WithActivitySink(sink ActivitySink) *CompleteTaskHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *CompleteTaskHandler) WithLogger(logger Logger) *CompleteTaskHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CompleteTaskHandler) Execute(ctx context.Context, event CompleteTaskMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during task completion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CompleteTaskHandler) execute(ctx context.Context, event CompleteTaskMessage) error {
	if event.User == nil {
		return newError(ErrUnauthenticated, "")
	}

	event.ContentID = strings.TrimSpace(event.ContentID)
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid task")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &CompleteTaskResponse{}
	user := event.User
	pending := &pendingActivity{}
	var current *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		// the identity the guard loaded may be stale by now
		current, err = h.repo.Users().ResolveIdentityTx(ctx, tx, user.GetID())
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return wrapError(ErrIdentityNotFound, err)
			}
			return storeError(err, "failed to load identity")
		}
		if current.Status == UserStatusBlocked {
			return newError(ErrAccountBlocked, "")
		}

		snapshot, err := h.repo.Catalogs().SnapshotTx(ctx, tx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load catalog")
		}

		if !snapshot.HasLiveItem(event.ContentID) {
			return newError(ErrNotFound, "content item not found", map[string]any{
				"contentId": event.ContentID,
			})
		}

		resp.Added, err = h.repo.Users().AddCompletedTaskTx(ctx, tx, current.ID, event.ContentID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store completed task")
		}

		if resp.Added && current.Status == UserStatusActive {
			sm := NewUserStateMachine(h.repo.Users(),
				WithStateMachineActivitySink(pending),
				WithStateMachineLogger(h.logger),
			)
			if _, err := sm.Transition(ctx, ActorFromUser(current), current, UserStatusInProgress,
				WithTransitionTx(tx),
				WithTransitionReason("first task completed"),
			); err != nil {
				return err
			}
		}

		resp.CompletedTasks, err = h.repo.Users().CompletedTasksTx(ctx, tx, current.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load completed tasks")
		}
		return nil
	})

	if err != nil {
		return asRichError(err, "failed to complete task")
	}

	user.Status = current.Status
	user.CompletedTasks = resp.CompletedTasks

	pending.flush(ctx, h.activity, h.logger)
	if resp.Added {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventTaskCompleted,
			Actor:     ActorFromUser(user),
			UserID:    user.GetID(),
			Metadata:  map[string]any{"contentId": event.ContentID},
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
