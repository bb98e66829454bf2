// Package catalog holds the immutable course catalog snapshot and the pure
// projections built from it.
//
// A Catalog is materialised by the store in one pass (programs, their
// modules and the content items of each module). Nothing in this package
// touches storage, so every projection is a deterministic function of its
// inputs and safe for concurrent use.
package catalog

// ModuleKind identifies the section of a program a module belongs to.
type ModuleKind string

const (
	KindMaterial   ModuleKind = "material"
	KindPractical  ModuleKind = "practical"
	KindAssignment ModuleKind = "assignment"
)

// IsValid reports whether k is one of the known module kinds.
func (k ModuleKind) IsValid() bool {
	switch k {
	case KindMaterial, KindPractical, KindAssignment:
		return true
	default:
		return false
	}
}

// Item is a single piece of content, the unit of learner progress.
type Item struct {
	ID        string
	Name      string
	SortOrder int
	Payload   string
	Deleted   bool
}

// Module groups ordered items under a material, practical or assignment.
type Module struct {
	ID       string
	Kind     ModuleKind
	Name     string
	Position int
	Deleted  bool
	Items    []Item
}

// Program is the root of the catalog tree.
type Program struct {
	ID          string
	Name        string
	Description string
	Deleted     bool
	Modules     []Module
}

// Catalog is a full snapshot, soft deleted nodes included.
type Catalog struct {
	Programs []Program
}

// FindProgram returns the program with the given id, deleted or not.
func (c Catalog) FindProgram(id string) (Program, bool) {
	for _, p := range c.Programs {
		if p.ID == id {
			return p, true
		}
	}
	return Program{}, false
}

// HasLiveItem reports whether id names a content item that is reachable
// through non deleted nodes.
func (c Catalog) HasLiveItem(id string) bool {
	for _, p := range c.Programs {
		if p.Deleted {
			continue
		}
		for _, cid := range ContentIDs(p) {
			if cid == id {
				return true
			}
		}
	}
	return false
}
