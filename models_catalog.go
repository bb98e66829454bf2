package academy

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-academy/catalog"
)

// Program is the stored root of the catalog tree. Catalog rows use an
// explicit is_deleted flag so snapshots can still load deleted nodes.
type Program struct {
	bun.BaseModel `bun:"table:programs,alias:prg"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name"`
	Description   string     `bun:"description" json:"description,omitempty"`
	IsDeleted     bool       `bun:"is_deleted,notnull,default:false" json:"isDeleted"`
	Modules       []*Module  `bun:"rel:has-many,join:id=program_id" json:"modules,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
}

// Module is a material, practical or assignment of a program
type Module struct {
	bun.BaseModel `bun:"table:program_modules,alias:pmd"`
	ID            uuid.UUID          `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ProgramID     uuid.UUID          `bun:"program_id,notnull,type:uuid" json:"programId"`
	Kind          catalog.ModuleKind `bun:"kind,notnull" json:"kind"`
	Name          string             `bun:"name,notnull" json:"name"`
	Position      int                `bun:"position,notnull,default:0" json:"position"`
	IsDeleted     bool               `bun:"is_deleted,notnull,default:false" json:"isDeleted"`
	Items         []*ContentItem     `bun:"rel:has-many,join:id=module_id" json:"items,omitempty"`
	CreatedAt     *time.Time         `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

// ContentItem is a single unit of content, the target of completed tasks
type ContentItem struct {
	bun.BaseModel `bun:"table:content_items,alias:cit"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ModuleID      uuid.UUID  `bun:"module_id,notnull,type:uuid" json:"moduleId"`
	Name          string     `bun:"name,notnull" json:"name"`
	SortOrder     int        `bun:"sort_order,notnull,default:0" json:"sortOrder"`
	Payload       string     `bun:"payload" json:"payload,omitempty"`
	IsDeleted     bool       `bun:"is_deleted,notnull,default:false" json:"isDeleted"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

// ToCatalog converts loaded rows into the immutable snapshot used by the
// projections. Row order is kept, the projections apply their own sort.
func ToCatalog(programs []*Program) catalog.Catalog {
	out := catalog.Catalog{Programs: make([]catalog.Program, 0, len(programs))}
	for _, p := range programs {
		if p == nil {
			continue
		}
		out.Programs = append(out.Programs, p.toCatalog())
	}
	return out
}

func (p *Program) toCatalog() catalog.Program {
	cp := catalog.Program{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Deleted:     p.IsDeleted,
		Modules:     make([]catalog.Module, 0, len(p.Modules)),
	}
	for _, m := range p.Modules {
		if m == nil {
			continue
		}
		cm := catalog.Module{
			ID:       m.ID.String(),
			Kind:     m.Kind,
			Name:     m.Name,
			Position: m.Position,
			Deleted:  m.IsDeleted,
			Items:    make([]catalog.Item, 0, len(m.Items)),
		}
		for _, it := range m.Items {
			if it == nil {
				continue
			}
			cm.Items = append(cm.Items, catalog.Item{
				ID:        it.ID.String(),
				Name:      it.Name,
				SortOrder: it.SortOrder,
				Payload:   it.Payload,
				Deleted:   it.IsDeleted,
			})
		}
		cp.Modules = append(cp.Modules, cm)
	}
	return cp
}
