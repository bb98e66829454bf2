package academy

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-academy/catalog"
)

// CatalogNode names a level of the catalog tree
type CatalogNode string

const (
	CatalogNodeProgram CatalogNode = "program"
	CatalogNodeModule  CatalogNode = "module"
	CatalogNodeItem    CatalogNode = "item"
)

func (n CatalogNode) table() string {
	switch n {
	case CatalogNodeProgram:
		return "programs"
	case CatalogNodeModule:
		return "program_modules"
	case CatalogNodeItem:
		return "content_items"
	default:
		return ""
	}
}

// Catalogs stores programs, modules and content items and loads them as
// an immutable snapshot.
type Catalogs interface {
	Snapshot(ctx context.Context) (catalog.Catalog, error)
	SnapshotTx(ctx context.Context, tx bun.IDB) (catalog.Catalog, error)

	CreateProgramTx(ctx context.Context, tx bun.IDB, program *Program) (*Program, error)
	CreateModuleTx(ctx context.Context, tx bun.IDB, module *Module) (*Module, error)
	CreateItemTx(ctx context.Context, tx bun.IDB, item *ContentItem) (*ContentItem, error)

	// SoftDeleteTx flags a node as deleted. Children keep their own flag,
	// projections hide them through the parent.
	SoftDeleteTx(ctx context.Context, tx bun.IDB, node CatalogNode, id uuid.UUID) error
}

type catalogs struct {
	db       *bun.DB
	now      func() time.Time
	programs repository.Repository[*Program]
	modules  repository.Repository[*Module]
	items    repository.Repository[*ContentItem]
}

var _ Catalogs = (*catalogs)(nil)

func NewCatalogsRepository(db *bun.DB) Catalogs {
	return &catalogs{
		db:  db,
		now: time.Now,
		programs: repository.NewRepository(db, repository.ModelHandlers[*Program]{
			NewRecord: func() *Program { return &Program{} },
			GetID: func(p *Program) uuid.UUID {
				if p == nil {
					return uuid.Nil
				}
				return p.ID
			},
			SetID:         func(p *Program, id uuid.UUID) { p.ID = id },
			GetIdentifier: func() string { return "name" },
		}),
		modules: repository.NewRepository(db, repository.ModelHandlers[*Module]{
			NewRecord: func() *Module { return &Module{} },
			GetID: func(m *Module) uuid.UUID {
				if m == nil {
					return uuid.Nil
				}
				return m.ID
			},
			SetID:         func(m *Module, id uuid.UUID) { m.ID = id },
			GetIdentifier: func() string { return "name" },
		}),
		items: repository.NewRepository(db, repository.ModelHandlers[*ContentItem]{
			NewRecord: func() *ContentItem { return &ContentItem{} },
			GetID: func(c *ContentItem) uuid.UUID {
				if c == nil {
					return uuid.Nil
				}
				return c.ID
			},
			SetID:         func(c *ContentItem, id uuid.UUID) { c.ID = id },
			GetIdentifier: func() string { return "name" },
		}),
	}
}

func (r *catalogs) Snapshot(ctx context.Context) (catalog.Catalog, error) {
	return r.SnapshotTx(ctx, r.db)
}

// SnapshotTx loads the whole tree, deleted nodes included.
func (r *catalogs) SnapshotTx(ctx context.Context, tx bun.IDB) (catalog.Catalog, error) {
	var programs []*Program
	err := tx.NewSelect().
		Model(&programs).
		Relation("Modules", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.position ASC, ?TableAlias.created_at ASC")
		}).
		Relation("Modules.Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.sort_order ASC, ?TableAlias.created_at ASC")
		}).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil && !repository.IsRecordNotFound(err) {
		return catalog.Catalog{}, err
	}
	return ToCatalog(programs), nil
}

func (r *catalogs) CreateProgramTx(ctx context.Context, tx bun.IDB, program *Program) (*Program, error) {
	if program.ID == uuid.Nil {
		program.ID = uuid.New()
	}
	now := r.now()
	program.CreatedAt = &now
	program.UpdatedAt = &now
	program.Modules = nil
	return r.programs.CreateTx(ctx, tx, program)
}

func (r *catalogs) CreateModuleTx(ctx context.Context, tx bun.IDB, module *Module) (*Module, error) {
	if err := r.requireLive(ctx, tx, CatalogNodeProgram, module.ProgramID); err != nil {
		return nil, err
	}
	if module.ID == uuid.Nil {
		module.ID = uuid.New()
	}
	now := r.now()
	module.CreatedAt = &now
	module.Items = nil
	return r.modules.CreateTx(ctx, tx, module)
}

func (r *catalogs) CreateItemTx(ctx context.Context, tx bun.IDB, item *ContentItem) (*ContentItem, error) {
	if err := r.requireLive(ctx, tx, CatalogNodeModule, item.ModuleID); err != nil {
		return nil, err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := r.now()
	item.CreatedAt = &now
	return r.items.CreateTx(ctx, tx, item)
}

func (r *catalogs) SoftDeleteTx(ctx context.Context, tx bun.IDB, node CatalogNode, id uuid.UUID) error {
	table := node.table()
	if table == "" {
		return newError(ErrValidation, "unknown catalog node", map[string]any{"node": node})
	}

	res, err := tx.NewUpdate().
		Table(table).
		Set("is_deleted = ?", true).
		Where("id = ?", id).
		Where("is_deleted = ?", false).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"node": node,
				"id":   id.String(),
			})
	}
	return nil
}

// requireLive checks that a parent node exists and is not deleted.
func (r *catalogs) requireLive(ctx context.Context, tx bun.IDB, node CatalogNode, id uuid.UUID) error {
	exists, err := tx.NewSelect().
		Table(node.table()).
		Where("id = ?", id).
		Where("is_deleted = ?", false).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"node": node,
				"id":   id.String(),
			})
	}
	return nil
}
