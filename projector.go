package academy

import (
	"github.com/goliatone/go-academy/catalog"
)

// Project builds the catalog view for role. Administrators get the full
// view with deleted nodes flagged, learners get the filtered view with
// their progress. opts only apply to the admin view.
func Project(role Role, completed []string, c catalog.Catalog, opts ...catalog.AdminOptions) catalog.View {
	if role.IsAdministrative() {
		return catalog.ProjectAdmin(c, opts...)
	}
	return catalog.ProjectLearner(catalog.NewTaskSet(completed...), c)
}

// ProjectProgram projects a single program. Learners never see deleted
// programs, those are NotFound for them.
func ProjectProgram(role Role, completed []string, c catalog.Catalog, programID string, opts ...catalog.AdminOptions) (any, error) {
	p, ok := c.FindProgram(programID)
	if !ok || (p.Deleted && !role.IsAdministrative()) {
		return nil, newError(ErrNotFound, "program not found", map[string]any{
			"programId": programID,
		})
	}

	if role.IsAdministrative() {
		return catalog.ProjectAdminProgram(p, opts...), nil
	}
	return catalog.ProjectLearnerProgram(catalog.NewTaskSet(completed...), p), nil
}
