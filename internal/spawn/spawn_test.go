package spawn

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
	"github.com/talgya/catplanet/internal/surface"
)

func newSpawner(seed int64, radius float64) *Spawner {
	cfg := DefaultConfig()
	cfg.Seed = seed
	return NewSpawner(cfg, surface.Planet{Radius: radius})
}

func TestSpawnBatchPlacesExactCountWhenRoomy(t *testing.T) {
	s := newSpawner(42, 5)
	reg := registry.New()
	spec := Spec{
		Class:                    placement.ClassOrdinary,
		Template:                 "A",
		MinCount:                 3,
		MaxCount:                 3,
		MinDistanceFromOthers:    1,
		MinDistanceFromSameClass: 1,
		BlocksOthers:             true,
	}

	placed := s.SpawnBatch(spec, reg)
	require.Len(t, placed, 3)
	assert.Equal(t, 3, reg.Len())
	for i := range placed {
		assert.InDelta(t, 5, placed[i].Position.Len(), 1e-9, "entity %d", i)
		for j := i + 1; j < len(placed); j++ {
			assert.GreaterOrEqual(t, placed[i].Position.Sub(placed[j].Position).Len(), 1.0,
				"entities %d and %d too close", i, j)
		}
	}
}

func TestSpawnBatchTerminatesOnCrowdedPlanet(t *testing.T) {
	s := newSpawner(7, 1)
	reg := registry.New()
	spec := Spec{
		Class:                    placement.ClassOrdinary,
		Template:                 "boulder",
		Count:                    10,
		MinDistanceFromOthers:    5,
		MinDistanceFromSameClass: 5,
		BlocksOthers:             true,
	}

	// Every chord on a unit sphere is at most 2, so only the first fits.
	assert.Len(t, s.SpawnBatch(spec, reg), 1)
}

func TestStackingAcceptsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stacking = true
	s := NewSpawner(cfg, surface.Planet{Radius: 1})

	placed := s.SpawnBatch(Spec{Template: "boulder", Count: 10, MinDistanceFromSameClass: 5}, registry.New())
	assert.Len(t, placed, 10)
}

func TestNoSameClassBlockersTooClose(t *testing.T) {
	const minDist = 1.2
	for seed := int64(0); seed < 20; seed++ {
		s := newSpawner(seed, 3)
		reg := registry.New()
		s.SpawnBatch(Spec{
			Template:                 "tree",
			Count:                    40,
			MinDistanceFromSameClass: minDist,
			BlocksOthers:             true,
		}, reg)

		all := reg.All()
		for i := range all {
			for j := i + 1; j < len(all); j++ {
				d := all[i].Position.Sub(all[j].Position).Len()
				require.GreaterOrEqual(t, d, minDist, "seed %d: entities %d and %d", seed, all[i].ID, all[j].ID)
			}
		}
	}
}

func TestContainerAttachmentBijection(t *testing.T) {
	s := newSpawner(3, 10)
	reg := registry.New()
	spec := Spec{
		Class:                    placement.ClassContainer,
		Template:                 "basket",
		AttachmentTemplate:       "cat",
		AttachmentOffset:         mgl64.Vec3{0, 0.3, 0},
		Style:                    registry.StyleHiding,
		Count:                    6,
		MinDistanceFromSameClass: 1,
		BlocksOthers:             true,
		SurfaceOffset:            0.1,
	}

	containers := s.SpawnContainers(spec, reg)
	require.NotEmpty(t, containers)
	require.Len(t, reg.AllOfClass(placement.ClassAttachment), len(containers))

	seen := make(map[registry.ID]bool)
	for _, c := range containers {
		ck := c.Kind.(registry.Container)
		a, ok := reg.Get(ck.Attachment)
		require.True(t, ok, "container %d points at missing attachment %d", c.ID, ck.Attachment)

		ak := a.Kind.(registry.Attachment)
		assert.Equal(t, c.ID, ak.Container)
		assert.True(t, ak.Hidden, "attachment %d of a hiding container is visible", a.ID)
		assert.False(t, seen[a.ID], "attachment %d shared between containers", a.ID)
		seen[a.ID] = true

		assert.InDelta(t, 10.4, a.Position.Len(), 1e-6)
	}
}

func TestSpawnContainerWithAttachmentFailsQuietly(t *testing.T) {
	s := newSpawner(1, 1)
	reg := registry.New()
	spec := Spec{Template: "basket", AttachmentTemplate: "cat", MinDistanceFromSameClass: 5}

	_, ok := s.SpawnContainerWithAttachment(spec, reg)
	require.True(t, ok, "first container should always fit")
	_, ok = s.SpawnContainerWithAttachment(spec, reg)
	assert.False(t, ok, "second container should not fit")
	assert.Equal(t, 2, reg.Len(), "registry should hold one pair")
}

func TestCollectiblesKeepBothDistances(t *testing.T) {
	const fromRocks, fromCats = 1.5, 0.8
	for seed := int64(0); seed < 10; seed++ {
		s := newSpawner(seed, 4)
		reg := registry.New()
		s.SpawnBatch(Spec{Template: "rock", Count: 12, MinDistanceFromSameClass: 1, BlocksOthers: true}, reg)
		s.SpawnBatch(Spec{Template: "flower", Count: 12}, reg)

		cats := s.SpawnCollectibles(Spec{
			Class:                    placement.ClassCollectible,
			Template:                 "cat",
			Count:                    30,
			MinDistanceFromOthers:    fromRocks,
			MinDistanceFromSameClass: fromCats,
		}, reg)

		for _, c := range cats {
			for _, o := range reg.All() {
				if o.ID == c.ID {
					continue
				}
				d := o.Position.Sub(c.Position).Len()
				if o.Class() == placement.ClassCollectible {
					require.GreaterOrEqual(t, d, fromCats, "seed %d: cats %d and %d", seed, c.ID, o.ID)
				}
				if o.Class() == placement.ClassOrdinary && o.Blocking {
					require.GreaterOrEqual(t, d, fromRocks, "seed %d: cat %d near rock %d", seed, c.ID, o.ID)
				}
			}
		}
	}
}

func TestMaskThresholds(t *testing.T) {
	reg := registry.New()
	closed := DefaultMask(5)
	closed.Threshold = 1.1
	assert.Empty(t, newSpawner(1, 5).SpawnBatch(Spec{Template: "moss", Count: 20, Mask: &closed}, reg),
		"mask above max density should place nothing")

	open := DefaultMask(5)
	open.Threshold = 0
	assert.Len(t, newSpawner(1, 5).SpawnBatch(Spec{Template: "moss", Count: 20, Mask: &open}, reg), 20)

	half := DefaultMask(5)
	smp := newSampler(half)
	for _, e := range newSpawner(2, 5).SpawnBatch(Spec{Template: "moss", Count: 20, Mask: &half}, registry.New()) {
		assert.GreaterOrEqual(t, smp.Density(surface.Direction(e.Position)), half.Threshold,
			"entity %d placed below threshold", e.ID)
	}
}

func TestMobileSpecGetsLocomotion(t *testing.T) {
	s := newSpawner(9, 5)
	reg := registry.New()
	placed := s.SpawnBatch(Spec{
		Template: "dog",
		Count:    2,
		Motion:   &MotionSpec{Speed: 1, WalkRadius: 0.5, Circular: true},
	}, reg)

	for _, e := range placed {
		require.NotNil(t, e.Motion, "entity %d has no motion", e.ID)
		assert.Equal(t, locomotion.ModeCircular, e.Motion.Mode)
	}
	assert.Len(t, reg.Mobile(), len(placed))
}

func TestWalkersStartAtSeededPhases(t *testing.T) {
	spec := Spec{
		Template: "dog",
		Count:    4,
		Motion:   &MotionSpec{Speed: 1, WalkRadius: 0.5, Circular: true},
	}
	phases := func(seed int64) []float64 {
		var out []float64
		for _, e := range newSpawner(seed, 8).SpawnBatch(spec, registry.New()) {
			require.NotNil(t, e.Motion)
			out = append(out, e.Motion.Phase)
		}
		return out
	}

	first := phases(21)
	require.GreaterOrEqual(t, len(first), 2)
	assert.Equal(t, first, phases(21), "same seed gave different phases")
	distinct := map[float64]bool{}
	for _, p := range first {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.Less(t, p, 2*math.Pi)
		distinct[p] = true
	}
	assert.Greater(t, len(distinct), 1, "walkers share one phase: %v", first)
}

func TestPopulateOrderAndReport(t *testing.T) {
	s := newSpawner(11, 6)
	reg := registry.New()
	specs := []Spec{
		{Class: placement.ClassCollectible, Template: "cat", Count: 4, MinDistanceFromOthers: 1, MinDistanceFromSameClass: 1},
		{Class: placement.ClassContainer, Template: "box", AttachmentTemplate: "kitten", Count: 2, MinDistanceFromSameClass: 1, BlocksOthers: true},
		{Class: placement.ClassOrdinary, Template: "tree", Count: 3, MinDistanceFromSameClass: 1, BlocksOthers: true},
	}

	report := s.Populate(specs, reg)
	require.Len(t, report.Outcomes, 3)
	var order []string
	for _, o := range report.Outcomes {
		order = append(order, o.Template)
	}
	assert.Equal(t, []string{"tree", "box", "cat"}, order)
	assert.Equal(t, 9, report.Requested())
	// Pairs add their attachment on top of what the report counts.
	assert.Equal(t, report.Placed()+report.Outcomes[1].Placed, reg.Len())
}

func TestCountRange(t *testing.T) {
	s := newSpawner(4, 5)
	for i := 0; i < 200; i++ {
		n := s.count(Spec{MinCount: 2, MaxCount: 5})
		require.True(t, n >= 2 && n <= 5, "count = %d outside [2,5]", n)
	}
	assert.Equal(t, 7, s.count(Spec{Count: 7, MinCount: 1, MaxCount: 2}))
}
