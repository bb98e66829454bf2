package academy

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-academy/catalog"
)

type CreateProgramMessage struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (m CreateProgramMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Description, validation.Length(0, 2000)),
	)
}

type CreateModuleMessage struct {
	ProgramID string             `json:"-"`
	Kind      catalog.ModuleKind `json:"kind"`
	Name      string             `json:"name"`
	Position  int                `json:"position"`
}

func (m CreateModuleMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ProgramID, validation.Required, is.UUID),
		validation.Field(&m.Kind, validation.Required,
			validation.In(catalog.KindMaterial, catalog.KindPractical, catalog.KindAssignment)),
		validation.Field(&m.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Position, validation.Min(0)),
	)
}

type CreateItemMessage struct {
	ModuleID  string `json:"-"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	Payload   string `json:"payload"`
}

func (m CreateItemMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ModuleID, validation.Required, is.UUID),
		validation.Field(&m.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.SortOrder, validation.Min(0)),
	)
}

type DeleteCatalogNodeMessage struct {
	Node CatalogNode `json:"-"`
	ID   string      `json:"-"`
}

func (m DeleteCatalogNodeMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Node, validation.Required,
			validation.In(CatalogNodeProgram, CatalogNodeModule, CatalogNodeItem)),
		validation.Field(&m.ID, validation.Required, is.UUID),
	)
}

// CatalogService runs the administrative catalog writes. Item payloads are
// sanitized before they are stored.
type CatalogService struct {
	repo      RepositoryManager
	sanitizer catalog.Sanitizer
	activity  ActivitySink
	logger    Logger
}

func NewCatalogService(repo RepositoryManager) *CatalogService {
	return &CatalogService{
		repo:      repo,
		sanitizer: catalog.NewSanitizer(),
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

func (s *CatalogService) WithSanitizer(sanitizer catalog.Sanitizer) *CatalogService {
	if sanitizer != nil {
		s.sanitizer = sanitizer
	}
	return s
}

func (s *CatalogService) WithActivitySink(sink ActivitySink) *CatalogService {
	s.activity = normalizeActivitySink(sink)
	return s
}

func (s *CatalogService) WithLogger(logger Logger) *CatalogService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Snapshot loads the current catalog
func (s *CatalogService) Snapshot(ctx context.Context) (catalog.Catalog, error) {
	snapshot, err := s.repo.Catalogs().Snapshot(ctx)
	if err != nil {
		return catalog.Catalog{}, storeError(err, "failed to load catalog")
	}
	return snapshot, nil
}

func (s *CatalogService) CreateProgram(ctx context.Context, actor *User, msg CreateProgramMessage) (*Program, error) {
	msg.Name = strings.TrimSpace(msg.Name)
	if err := msg.Validate(); err != nil {
		return nil, validationError(err, "invalid program")
	}

	program := &Program{
		Name:        msg.Name,
		Description: s.sanitizer.Sanitize(msg.Description),
	}

	err := s.write(ctx, func(ctx context.Context, tx bun.Tx) (err error) {
		program, err = s.repo.Catalogs().CreateProgramTx(ctx, tx, program)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, ActivityEventCatalogNodeCreated, CatalogNodeProgram, program.ID)
	return program, nil
}

func (s *CatalogService) CreateModule(ctx context.Context, actor *User, msg CreateModuleMessage) (*Module, error) {
	msg.Name = strings.TrimSpace(msg.Name)
	if err := msg.Validate(); err != nil {
		return nil, validationError(err, "invalid module")
	}

	module := &Module{
		ProgramID: uuid.MustParse(msg.ProgramID),
		Kind:      msg.Kind,
		Name:      msg.Name,
		Position:  msg.Position,
	}

	err := s.write(ctx, func(ctx context.Context, tx bun.Tx) (err error) {
		module, err = s.repo.Catalogs().CreateModuleTx(ctx, tx, module)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, ActivityEventCatalogNodeCreated, CatalogNodeModule, module.ID)
	return module, nil
}

func (s *CatalogService) CreateItem(ctx context.Context, actor *User, msg CreateItemMessage) (*ContentItem, error) {
	msg.Name = strings.TrimSpace(msg.Name)
	if err := msg.Validate(); err != nil {
		return nil, validationError(err, "invalid content item")
	}

	item := &ContentItem{
		ModuleID:  uuid.MustParse(msg.ModuleID),
		Name:      msg.Name,
		SortOrder: msg.SortOrder,
		Payload:   s.sanitizer.Sanitize(msg.Payload),
	}

	err := s.write(ctx, func(ctx context.Context, tx bun.Tx) (err error) {
		item, err = s.repo.Catalogs().CreateItemTx(ctx, tx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, ActivityEventCatalogNodeCreated, CatalogNodeItem, item.ID)
	return item, nil
}

// Delete soft deletes a node. Deleted nodes stay in the snapshot.
func (s *CatalogService) Delete(ctx context.Context, actor *User, msg DeleteCatalogNodeMessage) error {
	if err := msg.Validate(); err != nil {
		return validationError(err, "invalid catalog node")
	}

	id := uuid.MustParse(msg.ID)
	err := s.write(ctx, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Catalogs().SoftDeleteTx(ctx, tx, msg.Node, id)
	})
	if err != nil {
		return err
	}

	s.record(ctx, actor, ActivityEventCatalogNodeDeleted, msg.Node, id)
	return nil
}

func (s *CatalogService) write(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during catalog write")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := s.repo.RunInTx(ctx, nil, fn)
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return wrapError(ErrNotFound, err)
	}
	return asRichError(err, "catalog write failed")
}

func (s *CatalogService) record(ctx context.Context, actor *User, eventType ActivityEventType, node CatalogNode, id uuid.UUID) {
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: eventType,
		Actor:     ActorFromUser(actor),
		Metadata: map[string]any{
			"node": node,
			"id":   id.String(),
		},
	})
}
