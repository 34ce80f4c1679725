// Package spawn populates the planet by rejection sampling: random surface
// points are drawn and tested against already-placed entities until one
// passes or the attempt ceiling is reached.
package spawn

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
	"github.com/talgya/catplanet/internal/surface"
)

// DefaultMaxAttempts bounds how many candidates are drawn per unit.
const DefaultMaxAttempts = 5

// Config controls a Spawner.
type Config struct {
	Seed        int64
	MaxAttempts int  // Candidates drawn per unit before it is skipped
	Stacking    bool // Accept every candidate
}

// DefaultConfig returns the standard spawn configuration.
func DefaultConfig() Config {
	return Config{
		Seed:        0,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// MotionSpec makes spawned entities mobile.
type MotionSpec struct {
	Speed      float64 `json:"speed"`
	WalkRadius float64 `json:"walk_radius"`
	Circular   bool    `json:"circular"`
	Curve      *int    `json:"curve,omitempty"`
}

// Spec describes one batch of objects to place.
type Spec struct {
	Class    placement.Class `json:"-"`
	Template string          `json:"template"`

	// Container specs only.
	AttachmentTemplate string         `json:"attachment_template,omitempty"`
	AttachmentOffset   mgl64.Vec3     `json:"attachment_offset"`
	Style              registry.Style `json:"-"`

	// Count wins over MinCount/MaxCount when positive.
	Count    int `json:"count,omitempty"`
	MinCount int `json:"min_count,omitempty"`
	MaxCount int `json:"max_count,omitempty"`

	MinDistanceFromOthers    float64 `json:"min_distance_from_others"`
	MinDistanceFromSameClass float64 `json:"min_distance_from_same_class"`
	BlocksOthers             bool    `json:"blocks_others"`
	SurfaceOffset            float64 `json:"surface_offset"`

	Mask   *Mask       `json:"mask,omitempty"`
	Motion *MotionSpec `json:"motion,omitempty"`
}

// Rules returns the distance rules a candidate from this spec must keep.
func (s Spec) Rules() placement.Rules {
	return placement.Rules{
		SameClass:  s.MinDistanceFromSameClass,
		OtherClass: s.MinDistanceFromOthers,
	}
}

// Spawner places batches of entities into a registry.
type Spawner struct {
	cfg       Config
	planet    surface.Planet
	rng       *rand.Rand
	validator placement.Validator
	logger    *slog.Logger

	// Curves and Controller initialise the locomotion of mobile entities.
	Curves     locomotion.Curves
	Controller locomotion.Controller
}

// NewSpawner creates a spawner for planet.
func NewSpawner(cfg Config, planet surface.Planet) *Spawner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Spawner{
		cfg:        cfg,
		planet:     planet,
		rng:        rand.New(rand.NewSource(cfg.Seed + 300)),
		validator:  placement.Validator{Stacking: cfg.Stacking},
		logger:     slog.With("component", "spawn"),
		Controller: locomotion.NewController(0),
	}
}

// SetPlanet changes the sphere subsequent batches are placed on.
func (s *Spawner) SetPlanet(p surface.Planet) {
	s.planet = p
}

// count draws the number of units a spec asks for.
func (s *Spawner) count(spec Spec) int {
	if spec.Count > 0 {
		return spec.Count
	}
	lo, hi := spec.MinCount, spec.MaxCount
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

type candidate struct {
	dir      mgl64.Vec3
	position mgl64.Vec3
}

// sample draws candidates until accept passes or the attempt ceiling is hit.
func (s *Spawner) sample(spec Spec, mask *sampler, accept func(mgl64.Vec3) bool) (candidate, bool) {
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		dir := surface.RandomDirection(s.rng)
		if mask != nil && !mask.Allows(dir) {
			continue
		}
		pos := s.planet.SurfacePoint(dir, spec.SurfaceOffset)
		if accept(pos) {
			return candidate{dir: dir, position: pos}, true
		}
	}
	return candidate{}, false
}

func maskFor(spec Spec) *sampler {
	if spec.Mask == nil {
		return nil
	}
	return newSampler(*spec.Mask)
}

// orientation stands an entity upright on the surface with a random heading.
func (s *Spawner) orientation(dir mgl64.Vec3) mgl64.Quat {
	return surface.Turn(surface.Upright(dir), dir, s.rng.Float64()*360)
}

func (s *Spawner) motion(spec Spec, pos mgl64.Vec3) *locomotion.State {
	if spec.Motion == nil {
		return nil
	}
	m := spec.Motion
	st := locomotion.NewState(m.Speed, m.WalkRadius, spec.SurfaceOffset, m.Circular)
	st.Phase = s.rng.Float64() * 2 * math.Pi
	if m.Curve != nil {
		st.Curve = *m.Curve
	}
	s.Controller.Init(st, pos, s.Curves)
	return st
}

func newKind(class placement.Class) registry.Kind {
	if class == placement.ClassCollectible {
		return registry.Collectible{}
	}
	return registry.Ordinary{}
}

// SpawnBatch places the units of an ordinary spec. Each accepted unit is
// registered before the next is sampled. Units that find no valid spot within
// the attempt ceiling are skipped.
func (s *Spawner) SpawnBatch(spec Spec, reg *registry.Registry) []registry.Entity {
	n := s.count(spec)
	mask := maskFor(spec)
	rules := spec.Rules()

	placed := make([]registry.Entity, 0, n)
	for i := 0; i < n; i++ {
		c, ok := s.sample(spec, mask, func(pos mgl64.Vec3) bool {
			return s.validator.IsValid(pos, spec.Class, reg.Neighbors(0), rules)
		})
		if !ok {
			continue
		}
		e := reg.Add(registry.Entity{
			Template: spec.Template,
			Kind:     newKind(spec.Class),
			Position: c.position,
			Rotation: s.orientation(c.dir),
			Blocking: spec.BlocksOthers,
			Offset:   spec.SurfaceOffset,
			Motion:   s.motion(spec, c.position),
		})
		placed = append(placed, e)
	}
	return placed
}

// SpawnContainerWithAttachment places one container and binds an attachment
// to it. The attachment inherits the container's validated spot and is not
// checked on its own.
func (s *Spawner) SpawnContainerWithAttachment(spec Spec, reg *registry.Registry) (registry.Entity, bool) {
	return s.spawnPair(spec, maskFor(spec), reg)
}

func (s *Spawner) spawnPair(spec Spec, mask *sampler, reg *registry.Registry) (registry.Entity, bool) {
	rules := spec.Rules()
	c, ok := s.sample(spec, mask, func(pos mgl64.Vec3) bool {
		return s.validator.IsValid(pos, placement.ClassContainer, reg.Neighbors(0), rules)
	})
	if !ok {
		return registry.Entity{}, false
	}

	rot := s.orientation(c.dir)
	container, _ := reg.AddPair(
		registry.Entity{
			Template: spec.Template,
			Kind:     registry.Container{Style: spec.Style},
			Position: c.position,
			Rotation: rot,
			Blocking: spec.BlocksOthers,
			Offset:   spec.SurfaceOffset,
		},
		registry.Entity{
			Template: spec.AttachmentTemplate,
			Kind:     registry.Attachment{Hidden: spec.Style == registry.StyleHiding},
			Position: c.position.Add(rot.Rotate(spec.AttachmentOffset)),
			Rotation: rot,
			Offset:   spec.SurfaceOffset,
		},
	)
	return container, true
}

// SpawnContainers places the containers of a pair spec.
func (s *Spawner) SpawnContainers(spec Spec, reg *registry.Registry) []registry.Entity {
	n := s.count(spec)
	mask := maskFor(spec)
	placed := make([]registry.Entity, 0, n)
	for i := 0; i < n; i++ {
		if e, ok := s.spawnPair(spec, mask, reg); ok {
			placed = append(placed, e)
		}
	}
	return placed
}

// SpawnCollectibles places free-standing collectibles. A candidate must keep
// MinDistanceFromOthers from blocking non-collectibles and
// MinDistanceFromSameClass from other collectibles.
func (s *Spawner) SpawnCollectibles(spec Spec, reg *registry.Registry) []registry.Entity {
	n := s.count(spec)
	mask := maskFor(spec)
	obstacles := placement.Rules{OtherClass: spec.MinDistanceFromOthers}
	flock := placement.Rules{SameClass: spec.MinDistanceFromSameClass}

	placed := make([]registry.Entity, 0, n)
	for i := 0; i < n; i++ {
		c, ok := s.sample(spec, mask, func(pos mgl64.Vec3) bool {
			var others, same []placement.Neighbor
			for _, nb := range reg.Neighbors(0) {
				if nb.Class == placement.ClassCollectible {
					same = append(same, nb)
				} else {
					others = append(others, nb)
				}
			}
			return s.validator.IsValid(pos, placement.ClassCollectible, others, obstacles) &&
				s.validator.IsValid(pos, placement.ClassCollectible, same, flock)
		})
		if !ok {
			continue
		}
		e := reg.Add(registry.Entity{
			Template: spec.Template,
			Kind:     registry.Collectible{},
			Position: c.position,
			Rotation: s.orientation(c.dir),
			Blocking: spec.BlocksOthers,
			Offset:   spec.SurfaceOffset,
			Motion:   s.motion(spec, c.position),
		})
		placed = append(placed, e)
	}
	return placed
}

// Spawn dispatches spec to the loop for its class.
func (s *Spawner) Spawn(spec Spec, reg *registry.Registry) []registry.Entity {
	switch spec.Class {
	case placement.ClassContainer:
		return s.SpawnContainers(spec, reg)
	case placement.ClassCollectible:
		return s.SpawnCollectibles(spec, reg)
	default:
		return s.SpawnBatch(spec, reg)
	}
}
