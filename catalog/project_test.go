package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-academy/catalog"
)

func sampleCatalog() catalog.Catalog {
	return catalog.Catalog{
		Programs: []catalog.Program{
			{
				ID:   "p1",
				Name: "Go Basics",
				Modules: []catalog.Module{
					{
						ID:       "m2",
						Kind:     catalog.KindPractical,
						Name:     "Lab",
						Position: 2,
						Items: []catalog.Item{
							{ID: "x1", Name: "Lab 1", SortOrder: 1},
						},
					},
					{
						ID:       "m1",
						Kind:     catalog.KindMaterial,
						Name:     "Intro",
						Position: 1,
						Items: []catalog.Item{
							{ID: "c3", Name: "Three", SortOrder: 3},
							{ID: "c1", Name: "One", SortOrder: 1},
							{ID: "c2", Name: "Two", SortOrder: 2},
							{ID: "cx", Name: "Gone", SortOrder: 0, Deleted: true},
						},
					},
					{
						ID:       "m3",
						Kind:     catalog.KindAssignment,
						Name:     "Old homework",
						Position: 3,
						Deleted:  true,
						Items: []catalog.Item{
							{ID: "a1", Name: "Essay", SortOrder: 1},
						},
					},
				},
			},
			{
				ID:      "p2",
				Name:    "Retired",
				Deleted: true,
			},
		},
	}
}

func TestProjectLearner(t *testing.T) {
	t.Run("progress over materials", func(t *testing.T) {
		c := catalog.Catalog{Programs: []catalog.Program{{
			ID: "p1",
			Modules: []catalog.Module{{
				ID:   "m1",
				Kind: catalog.KindMaterial,
				Items: []catalog.Item{
					{ID: "c1", SortOrder: 1},
					{ID: "c2", SortOrder: 2},
					{ID: "c3", SortOrder: 3},
				},
			}},
		}}}

		view := catalog.ProjectLearner(catalog.NewTaskSet("c1"), c)
		require.Len(t, view.Programs, 1)

		p := view.Programs[0]
		assert.InDelta(t, 1.0/3.0, p.Progress, 1e-9)
		require.Len(t, p.Materials, 1)
		items := p.Materials[0].Items
		require.Len(t, items, 3)
		assert.True(t, items[0].Completed)
		assert.False(t, items[1].Completed)
		assert.False(t, items[2].Completed)
	})

	t.Run("deleted nodes never appear", func(t *testing.T) {
		view := catalog.ProjectLearner(catalog.NewTaskSet(), sampleCatalog())
		require.Len(t, view.Programs, 1)

		p := view.Programs[0]
		assert.Equal(t, "p1", p.ID)
		assert.Empty(t, p.Assignments)

		var ids []string
		for _, m := range p.Materials {
			for _, it := range m.Items {
				ids = append(ids, it.ID)
			}
		}
		assert.Equal(t, []string{"c1", "c2", "c3"}, ids)
	})

	t.Run("counts every module kind", func(t *testing.T) {
		view := catalog.ProjectLearner(catalog.NewTaskSet("c1", "x1"), sampleCatalog())
		p := view.Programs[0]
		assert.Equal(t, 4, p.Total)
		assert.Equal(t, 2, p.Completed)
		assert.InDelta(t, 0.5, p.Progress, 1e-9)
		require.Len(t, p.Practicals, 1)
		assert.Equal(t, 1.0, p.Practicals[0].Progress)
	})

	t.Run("stale completed ids are ignored", func(t *testing.T) {
		completed := catalog.NewTaskSet("c1", "cx", "a1", "unknown")
		view := catalog.ProjectLearner(completed, sampleCatalog())
		p := view.Programs[0]
		assert.Equal(t, 1, p.Completed)
		assert.InDelta(t, 0.25, p.Progress, 1e-9)
	})

	t.Run("empty program", func(t *testing.T) {
		c := catalog.Catalog{Programs: []catalog.Program{{ID: "empty"}}}
		view := catalog.ProjectLearner(catalog.NewTaskSet("c1"), c)
		require.Len(t, view.Programs, 1)

		p := view.Programs[0]
		assert.Equal(t, 0.0, p.Progress)
		assert.NotNil(t, p.Materials)
		assert.Empty(t, p.Materials)
	})

	t.Run("module with only deleted items is omitted", func(t *testing.T) {
		c := catalog.Catalog{Programs: []catalog.Program{{
			ID: "p",
			Modules: []catalog.Module{{
				ID:    "m",
				Kind:  catalog.KindMaterial,
				Items: []catalog.Item{{ID: "gone", Deleted: true}},
			}},
		}}}
		p := catalog.ProjectLearner(catalog.NewTaskSet("gone"), c).Programs[0]
		assert.Empty(t, p.Materials)
		assert.Equal(t, 0.0, p.Progress)
	})
}

func TestProjectAdmin(t *testing.T) {
	t.Run("keeps deleted nodes flagged", func(t *testing.T) {
		view := catalog.ProjectAdmin(sampleCatalog())
		require.Len(t, view.Programs, 2)
		assert.True(t, view.Programs[1].Deleted)

		p := view.Programs[0]
		require.Len(t, p.Modules, 3)
		assert.Equal(t, []string{"m1", "m2", "m3"}, []string{p.Modules[0].ID, p.Modules[1].ID, p.Modules[2].ID})
		assert.True(t, p.Modules[2].Deleted)

		items := p.Modules[0].Items
		require.Len(t, items, 4)
		assert.Equal(t, "cx", items[0].ID)
		assert.True(t, items[0].Deleted)
		assert.Equal(t, "c1", items[1].ID)
		assert.Equal(t, 1, items[1].SortOrder)
	})

	t.Run("hide deleted", func(t *testing.T) {
		view := catalog.ProjectAdmin(sampleCatalog(), catalog.AdminOptions{HideDeleted: true})
		require.Len(t, view.Programs, 1)

		p := view.Programs[0]
		require.Len(t, p.Modules, 2)
		items := p.Modules[0].Items
		require.Len(t, items, 3)
		assert.Equal(t, "c1", items[0].ID)
		assert.Equal(t, "c3", items[2].ID)
	})

	t.Run("stable tie break", func(t *testing.T) {
		c := catalog.Catalog{Programs: []catalog.Program{{
			ID: "p",
			Modules: []catalog.Module{{
				ID:   "m",
				Kind: catalog.KindMaterial,
				Items: []catalog.Item{
					{ID: "b", SortOrder: 1},
					{ID: "a", SortOrder: 1},
					{ID: "z", SortOrder: 0},
				},
			}},
		}}}

		items := catalog.ProjectAdmin(c).Programs[0].Modules[0].Items
		assert.Equal(t, []string{"z", "b", "a"}, []string{items[0].ID, items[1].ID, items[2].ID})
	})

	t.Run("does not mutate the snapshot", func(t *testing.T) {
		c := sampleCatalog()
		catalog.ProjectAdmin(c)
		assert.Equal(t, "c3", c.Programs[0].Modules[1].Items[0].ID)
		assert.Equal(t, "m2", c.Programs[0].Modules[0].ID)
	})
}

func TestProgress(t *testing.T) {
	c := sampleCatalog()
	p := c.Programs[0]

	tests := []struct {
		name      string
		completed catalog.TaskSet
		want      float64
	}{
		{"none", catalog.NewTaskSet(), 0},
		{"all", catalog.NewTaskSet("c1", "c2", "c3", "x1"), 1},
		{"superset", catalog.NewTaskSet("c1", "c2", "c3", "x1", "a1", "zzz"), 1},
		{"half", catalog.NewTaskSet("c2", "c3"), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := catalog.Progress(tt.completed, p)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}

	assert.Equal(t, 0.0, catalog.Progress(catalog.NewTaskSet("c1"), catalog.Program{ID: "empty"}))
	assert.Equal(t, []string{"c1", "c2", "c3", "x1"}, catalog.ContentIDs(p))
}

func TestProjectLearnerProgram_UnknownKind(t *testing.T) {
	p := catalog.Program{
		ID: "p1",
		Modules: []catalog.Module{
			{ID: "m1", Kind: catalog.KindMaterial, Items: []catalog.Item{{ID: "c1"}, {ID: "c2"}}},
			{ID: "m9", Kind: catalog.ModuleKind("quiz"), Items: []catalog.Item{{ID: "q1"}, {ID: "q2"}}},
		},
	}
	done := catalog.NewTaskSet("c1")

	view := catalog.ProjectLearnerProgram(done, p)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 1, view.Completed)
	assert.InDelta(t, catalog.Progress(done, p), view.Progress, 1e-9)
	assert.InDelta(t, 0.5, view.Progress, 1e-9)
	assert.Len(t, view.Materials, 1)
	assert.Empty(t, view.Practicals)
	assert.Empty(t, view.Assignments)

	c := catalog.Catalog{Programs: []catalog.Program{p}}
	assert.False(t, c.HasLiveItem("q1"))
}

func TestCatalogLookups(t *testing.T) {
	c := sampleCatalog()

	p, ok := c.FindProgram("p2")
	require.True(t, ok)
	assert.True(t, p.Deleted)

	_, ok = c.FindProgram("nope")
	assert.False(t, ok)

	assert.True(t, c.HasLiveItem("c2"))
	assert.False(t, c.HasLiveItem("cx"))
	assert.False(t, c.HasLiveItem("a1"))
	assert.False(t, c.HasLiveItem("nope"))
}
