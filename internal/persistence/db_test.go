package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/catplanet/internal/curve"
	"github.com/talgya/catplanet/internal/engine"
	"github.com/talgya/catplanet/internal/layout"
	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/spawn"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLayout(name string) *layout.Layout {
	return &layout.Layout{
		Version:   layout.Version,
		ID:        uuid.New(),
		Name:      name,
		Radius:    7,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC),
		Placements: []layout.Placement{
			{Class: "ordinary", Template: "tree", LocalPosition: mgl64.Vec3{0, 0.5, 0},
				LocalRotation: layout.Quat{1, 0, 0, 0}, Blocking: true, Owner: layout.NoOwner, Curve: locomotion.NoCurve},
			{Class: "container", Template: "box", LocalPosition: mgl64.Vec3{0.5, 0, 0},
				LocalRotation: layout.Quat{1, 0, 0, 0}, Style: "hiding", Owner: layout.NoOwner, Curve: locomotion.NoCurve},
			{Class: "collectible", Template: "cat", LocalPosition: mgl64.Vec3{0, 0, 0.5}, LocalOffset: 0.01,
				LocalRotation: layout.Quat{1, 0, 0, 0}, Owner: layout.NoOwner, Curve: 0,
				Motion: &layout.Motion{Speed: 2, WalkRadius: 0.1, Circular: false}},
			{Class: "attachment", Template: "cat", LocalPosition: mgl64.Vec3{0.52, 0, 0},
				LocalRotation: layout.Quat{1, 0, 0, 0}, Owner: 1, Curve: locomotion.NoCurve},
		},
		Curves: []layout.CurveData{{
			Closed: true,
			Points: []curve.Point{
				{Position: mgl64.Vec3{0.5, 0, 0}, Normal: mgl64.Vec3{1, 0, 0}, Size: 1, Color: curve.Yellow},
				{Position: mgl64.Vec3{0, 0, 0.5}, Normal: mgl64.Vec3{0, 0, 1}, Size: 1, Color: curve.Yellow},
				{Position: mgl64.Vec3{-0.5, 0, 0}, Normal: mgl64.Vec3{-1, 0, 0}, Size: 1, Color: curve.Yellow},
			},
		}},
	}
}

func TestSaveLoadLayout(t *testing.T) {
	db := openTestDB(t)
	want := testLayout("meadow")
	require.NoError(t, db.SaveLayout(want))

	got, err := db.LoadLayout(want.ID)
	require.NoError(t, err)
	assert.Equal(t, "meadow", got.Name)
	assert.Equal(t, 7.0, got.Radius)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt), "created at %v, want %v", got.CreatedAt, want.CreatedAt)

	require.Len(t, got.Placements, len(want.Placements))
	for i := range want.Placements {
		w, g := want.Placements[i], got.Placements[i]
		assert.Equal(t, w.Class, g.Class, "placement %d", i)
		assert.Equal(t, w.Template, g.Template, "placement %d", i)
		assert.Equal(t, w.Owner, g.Owner, "placement %d", i)
		assert.Equal(t, w.Curve, g.Curve, "placement %d", i)
		assert.Equal(t, w.Style, g.Style, "placement %d", i)
		assert.InDelta(t, 0, g.LocalPosition.Sub(w.LocalPosition).Len(), 1e-9, "placement %d position = %v, want %v", i, g.LocalPosition, w.LocalPosition)
	}

	m := got.Placements[2].Motion
	require.NotNil(t, m)
	assert.Equal(t, 2.0, m.Speed)
	assert.Equal(t, 0.1, m.WalkRadius)
	assert.Nil(t, got.Placements[0].Motion, "static placement gained motion")

	require.Len(t, got.Curves, 1)
	assert.True(t, got.Curves[0].Closed)
	require.Len(t, got.Curves[0].Points, 3)
	assert.Equal(t, mgl64.Vec3{0, 0, 0.5}, got.Curves[0].Points[1].Position)
}

func TestSaveLayoutReplaces(t *testing.T) {
	db := openTestDB(t)
	l := testLayout("first")
	require.NoError(t, db.SaveLayout(l))
	l.Name = "second"
	l.Placements = l.Placements[:1]
	l.Curves = nil
	require.NoError(t, db.SaveLayout(l))

	got, err := db.LoadLayout(l.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
	assert.Len(t, got.Placements, 1)
	assert.Empty(t, got.Curves)

	list, err := db.ListLayouts()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLatestAndList(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LatestLayout()
	require.ErrorIs(t, err, ErrNotFound)

	a, b := testLayout("a"), testLayout("b")
	require.NoError(t, db.SaveLayout(a))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, db.SaveLayout(b))

	latest, err := db.LatestLayout()
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)

	list, err := db.ListLayouts()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
	assert.Equal(t, 4, list[0].Placements)
}

func TestDeleteLayout(t *testing.T) {
	db := openTestDB(t)
	l := testLayout("gone")
	require.NoError(t, db.SaveLayout(l))
	require.NoError(t, db.DeleteLayout(l.ID))

	_, err := db.LoadLayout(l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteLayout(l.ID), ErrNotFound)
}

func TestEventsAndMeta(t *testing.T) {
	db := openTestDB(t)
	events := []engine.Event{
		{Tick: 1, Description: "first", Category: "generation"},
		{Tick: 2, Description: "second", Category: "discovery"},
	}
	require.NoError(t, db.SaveEvents(events))

	got, err := db.RecentEvents(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Description)

	require.NoError(t, db.SaveMeta("k", "v1"))
	require.NoError(t, db.SaveMeta("k", "v2"))
	v, err := db.GetMeta("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func newTestSim(t *testing.T) *engine.Simulation {
	t.Helper()
	sim, err := engine.NewSimulation(engine.Options{
		Radius: 5,
		Specs: []spawn.Spec{{
			Class: placement.ClassOrdinary, Template: "rock", Count: 3, MinDistanceFromOthers: 1, BlocksOthers: true,
		}},
		Spawn: spawn.Config{Seed: 1},
	})
	require.NoError(t, err)
	sim.Generate(1)
	return sim
}

func TestSaveWorldState(t *testing.T) {
	db := openTestDB(t)
	sim := newTestSim(t)

	saved, err := db.SaveWorldState(sim, "autosave")
	require.NoError(t, err)
	v, _ := db.GetMeta("last_layout")
	assert.Equal(t, saved.ID.String(), v)

	loaded, err := db.LoadLayout(saved.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Placements, sim.Registry.Len())

	events, _ := db.RecentEvents(10)
	assert.NotEmpty(t, events, "generation event was not persisted")
}

func TestAutosaveReplacesOneLayout(t *testing.T) {
	db := openTestDB(t)
	sim := newTestSim(t)

	first, err := db.Autosave(sim, "autosave-10")
	require.NoError(t, err)
	second, err := db.Autosave(sim, "autosave-20")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := db.ListLayouts()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "autosave-20", list[0].Name)

	manual, err := db.SaveWorldState(sim, "manual")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, manual.ID)
	third, err := db.Autosave(sim, "autosave-30")
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)

	list, err = db.ListLayouts()
	require.NoError(t, err)
	assert.Len(t, list, 2)
	v, _ := db.GetMeta("last_layout")
	assert.Equal(t, third.ID.String(), v)
}

func TestFailedSaveKeepsEvents(t *testing.T) {
	db := openTestDB(t)
	sim := newTestSim(t)
	require.NoError(t, db.Close())

	_, err := db.SaveWorldState(sim, "lost")
	require.Error(t, err)

	_, events := sim.Snapshot("retry")
	assert.NotEmpty(t, events, "events dropped by a failed save")
}
