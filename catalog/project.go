package catalog

import "sort"

// Audience tells which projection a View carries.
type Audience string

const (
	AudienceAdmin   Audience = "admin"
	AudienceLearner Audience = "learner"
)

// View is either an AdminView or a LearnerView.
type View interface {
	Audience() Audience
}

type AdminItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	Payload   string `json:"payload,omitempty"`
	Deleted   bool   `json:"deleted"`
}

type AdminModule struct {
	ID       string      `json:"id"`
	Kind     ModuleKind  `json:"kind"`
	Name     string      `json:"name"`
	Position int         `json:"position"`
	Deleted  bool        `json:"deleted"`
	Items    []AdminItem `json:"items"`
}

type AdminProgram struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Deleted     bool          `json:"deleted"`
	Modules     []AdminModule `json:"modules"`
}

// AdminView is the full catalog as seen by administrators.
type AdminView struct {
	Programs []AdminProgram `json:"programs"`
}

func (AdminView) Audience() Audience { return AudienceAdmin }

type LearnerItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Payload   string `json:"payload,omitempty"`
	Completed bool   `json:"completed"`
}

type LearnerModule struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Progress float64       `json:"progress"`
	Items    []LearnerItem `json:"items"`
}

type LearnerProgram struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Progress    float64         `json:"progress"`
	Completed   int             `json:"completed"`
	Total       int             `json:"total"`
	Materials   []LearnerModule `json:"materials"`
	Practicals  []LearnerModule `json:"practicals"`
	Assignments []LearnerModule `json:"assignments"`
}

// LearnerView is the catalog filtered for a learner and annotated with
// their progress.
type LearnerView struct {
	Programs []LearnerProgram `json:"programs"`
}

func (LearnerView) Audience() Audience { return AudienceLearner }

// AdminOptions tunes ProjectAdmin.
type AdminOptions struct {
	// HideDeleted drops soft deleted nodes instead of flagging them.
	HideDeleted bool
}

// ProjectAdmin returns every program with full detail. Modules follow their
// position and items their sort order, ties keep snapshot order.
func ProjectAdmin(c Catalog, opts ...AdminOptions) AdminView {
	var o AdminOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	view := AdminView{Programs: []AdminProgram{}}
	for _, p := range c.Programs {
		if p.Deleted && o.HideDeleted {
			continue
		}
		view.Programs = append(view.Programs, projectAdminProgram(p, o))
	}
	return view
}

// ProjectAdminProgram projects a single program for administrators.
func ProjectAdminProgram(p Program, opts ...AdminOptions) AdminProgram {
	var o AdminOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return projectAdminProgram(p, o)
}

func projectAdminProgram(p Program, o AdminOptions) AdminProgram {
	out := AdminProgram{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Deleted:     p.Deleted,
		Modules:     []AdminModule{},
	}

	for _, m := range orderedModules(p.Modules) {
		if m.Deleted && o.HideDeleted {
			continue
		}
		am := AdminModule{
			ID:       m.ID,
			Kind:     m.Kind,
			Name:     m.Name,
			Position: m.Position,
			Deleted:  m.Deleted,
			Items:    []AdminItem{},
		}
		for _, it := range orderedItems(m.Items) {
			if it.Deleted && o.HideDeleted {
				continue
			}
			am.Items = append(am.Items, AdminItem{
				ID:        it.ID,
				Name:      it.Name,
				SortOrder: it.SortOrder,
				Payload:   it.Payload,
				Deleted:   it.Deleted,
			})
		}
		out.Modules = append(out.Modules, am)
	}

	return out
}

// ProjectLearner returns the live programs with completion flags and
// progress computed against completed.
func ProjectLearner(completed TaskSet, c Catalog) LearnerView {
	view := LearnerView{Programs: []LearnerProgram{}}
	for _, p := range c.Programs {
		if p.Deleted {
			continue
		}
		view.Programs = append(view.Programs, ProjectLearnerProgram(completed, p))
	}
	return view
}

// ProjectLearnerProgram projects one program. Callers must not pass a
// deleted program, the store filters those before lookup.
func ProjectLearnerProgram(completed TaskSet, p Program) LearnerProgram {
	out := LearnerProgram{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Materials:   []LearnerModule{},
		Practicals:  []LearnerModule{},
		Assignments: []LearnerModule{},
	}

	for _, m := range orderedModules(p.Modules) {
		if m.Deleted || !m.Kind.IsValid() {
			continue
		}

		lm := LearnerModule{ID: m.ID, Name: m.Name, Items: []LearnerItem{}}
		done := 0
		for _, it := range orderedItems(m.Items) {
			if it.Deleted {
				continue
			}
			hit := completed.Has(it.ID)
			if hit {
				done++
			}
			lm.Items = append(lm.Items, LearnerItem{
				ID:        it.ID,
				Name:      it.Name,
				Payload:   it.Payload,
				Completed: hit,
			})
		}

		if len(lm.Items) == 0 {
			continue
		}

		lm.Progress = ratio(done, len(lm.Items))
		out.Completed += done
		out.Total += len(lm.Items)

		switch m.Kind {
		case KindMaterial:
			out.Materials = append(out.Materials, lm)
		case KindPractical:
			out.Practicals = append(out.Practicals, lm)
		case KindAssignment:
			out.Assignments = append(out.Assignments, lm)
		}
	}

	out.Progress = ratio(out.Completed, out.Total)
	return out
}

// Progress is |completed ∩ ContentIDs(p)| / |ContentIDs(p)|, zero for a
// program without live items.
func Progress(completed TaskSet, p Program) float64 {
	ids := ContentIDs(p)
	done := 0
	for _, id := range ids {
		if completed.Has(id) {
			done++
		}
	}
	return ratio(done, len(ids))
}

// ContentIDs lists the live item ids of p in display order, across every
// module kind.
func ContentIDs(p Program) []string {
	ids := []string{}
	if p.Deleted {
		return ids
	}
	for _, m := range orderedModules(p.Modules) {
		if m.Deleted || !m.Kind.IsValid() {
			continue
		}
		for _, it := range orderedItems(m.Items) {
			if it.Deleted {
				continue
			}
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func ratio(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func orderedModules(in []Module) []Module {
	out := make([]Module, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

func orderedItems(in []Item) []Item {
	out := make([]Item, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}
