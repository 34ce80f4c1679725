// Simulation ties the planet, its entities and their curves together and
// runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/catplanet/internal/curve"
	"github.com/talgya/catplanet/internal/editor"
	"github.com/talgya/catplanet/internal/layout"
	"github.com/talgya/catplanet/internal/locomotion"
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
	"github.com/talgya/catplanet/internal/spawn"
	"github.com/talgya/catplanet/internal/surface"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 500

// Event is a notable occurrence on the planet.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "generation", "discovery", "edit", "layout"
}

// Options configures a Simulation.
type Options struct {
	Radius            float64
	Specs             []spawn.Spec
	Spawn             spawn.Config
	CurveLengthScale  float64
	LoopCloseDistance float64
	PathOffset        float64
}

// Stats is a snapshot of planet statistics.
type Stats struct {
	Radius   float64        `json:"radius"`
	Entities int            `json:"entities"`
	ByClass  map[string]int `json:"by_class"`
	Mobile   int            `json:"mobile"`
	Curves   int            `json:"curves"`
	Progress Progress       `json:"progress"`
	Elapsed  float64        `json:"elapsed_seconds"`
}

// Simulation holds the complete planet state. Its methods serialise every
// mutation behind one mutex; the registry and curve set are also safe to
// read concurrently.
type Simulation struct {
	mu sync.Mutex

	planet     surface.Planet
	Registry   *registry.Registry
	Curves     *curve.Set
	controller locomotion.Controller
	opts       Options

	env       *editor.Env
	selection *editor.Selection
	paths     *editor.PathSession

	LastTick uint64  // Most recent tick processed
	elapsed  float64 // Simulated seconds since start

	queue       []registry.ID
	discoveries []Discovery
	animations  []*Animation

	events  []Event // Recent events, newest last
	pending []Event // Events not yet persisted
}

// NewSimulation creates an empty planet.
func NewSimulation(opts Options) (*Simulation, error) {
	planet := surface.Planet{Radius: opts.Radius}
	if err := planet.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		planet:     planet,
		Registry:   registry.New(),
		Curves:     curve.NewSet(),
		controller: locomotion.NewController(opts.CurveLengthScale),
		opts:       opts,
	}
	s.env = &editor.Env{
		Registry:   s.Registry,
		Query:      editor.QueryFunc(s.raycast),
		Planet:     func() surface.Planet { return s.planet },
		Validator:  placement.Validator{Stacking: opts.Spawn.Stacking},
		Curves:     s.Curves,
		Controller: s.controller,
	}
	s.selection = editor.NewSelection(s.env, placement.Rules{})
	s.paths = editor.NewPathSession(s.env, s.Curves, opts.LoopCloseDistance, opts.PathOffset)
	return s, nil
}

func (s *Simulation) raycast(r editor.Ray) (editor.Hit, bool) {
	return editor.SphereQuery{Radius: s.planet.Radius}.Raycast(r)
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastTick
}

// Planet returns the current planet.
func (s *Simulation) Planet() surface.Planet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planet
}

// Specs returns the spawn specs used for generation.
func (s *Simulation) Specs() []spawn.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spawn.Spec(nil), s.opts.Specs...)
}

// emit records an event. Callers hold s.mu.
func (s *Simulation) emit(category, format string, args ...any) {
	e := Event{Tick: s.LastTick, Description: fmt.Sprintf(format, args...), Category: category}
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	s.pending = append(s.pending, e)
}

// RecentEvents returns up to n of the newest events, newest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]Event, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		out = append(out, s.events[i])
	}
	return out
}

// Generate clears the planet and repopulates it from the spawn specs.
// Authored curves are kept so mobile specs can refer to them.
func (s *Simulation) Generate(seed int64) spawn.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := s.Registry.Clear()
	s.resetInteractions()

	cfg := s.opts.Spawn
	cfg.Seed = seed
	sp := spawn.NewSpawner(cfg, s.planet)
	sp.Curves = s.Curves
	sp.Controller = s.controller
	report := sp.Populate(s.opts.Specs, s.Registry)

	slog.Info("planet generated",
		"seed", seed,
		"radius", s.planet.Radius,
		"cleared", cleared,
		"requested", report.Requested(),
		"placed", report.Placed(),
	)
	if report.Short() {
		slog.Warn("planet under-populated", "missing", report.Requested()-report.Placed())
	}
	s.emit("generation", "Planet generated with %s objects", humanize.Comma(int64(s.Registry.Len())))
	return report
}

// SetRadius resizes the planet. Every entity and curve keeps its angular
// position; nothing is destroyed.
func (s *Simulation) SetRadius(radius float64) error {
	planet := surface.Planet{Radius: radius}
	if err := planet.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.planet.Radius
	if old == radius {
		return nil
	}
	s.Registry.Rescale(old, radius)
	s.Curves.Rescale(old, radius)
	f := radius / old
	for _, a := range s.animations {
		a.From = a.From.Mul(f)
		a.To = a.To.Mul(f)
	}
	s.planet = planet

	slog.Info("planet resized", "from", old, "to", radius)
	s.emit("edit", "Planet resized from %.2f to %.2f", old, radius)
	return nil
}

// LoadLayout replaces the planet with a stored layout, including its radius.
func (s *Simulation) LoadLayout(l *layout.Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.planet = surface.Planet{Radius: l.Radius}
	s.resetInteractions()
	s.paths.Cancel()
	s.selection.Clear()
	layout.Restore(l, s.planet, s.Registry, s.Curves, s.controller)

	slog.Info("layout loaded", "id", l.ID, "name", l.Name, "entities", s.Registry.Len(), "curves", s.Curves.Len())
	s.emit("layout", "Layout %q loaded", l.Name)
	return nil
}

// Snapshot captures the planet as a layout and hands over the events
// recorded since the previous snapshot.
func (s *Simulation) Snapshot(name string) (*layout.Layout, []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := layout.Capture(name, s.planet, s.Registry, s.Curves)
	events := s.pending
	s.pending = nil
	return l, events
}

// Requeue returns events taken by Snapshot that were not persisted. They go
// ahead of anything recorded since.
func (s *Simulation) Requeue(events []Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(append([]Event(nil), events...), s.pending...)
}

// Tick advances the planet by dt simulated seconds: queued interactions are
// resolved, mobile entities move and animations progress.
func (s *Simulation) Tick(tick uint64, dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	s.elapsed += dt

	s.drainInteractions()

	planet := s.planet
	s.Registry.Each(func(e *registry.Entity) {
		if e.Motion == nil {
			return
		}
		if pose, moved := s.controller.Step(e.Motion, dt, planet, s.Curves); moved {
			e.Position = pose.Position
			e.Rotation = pose.Rotation
		}
	})

	s.advanceAnimations()
}

// Stats returns planet statistics.
func (s *Simulation) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byClass := make(map[string]int)
	for c, n := range s.Registry.CountByClass() {
		byClass[c.String()] = n
	}
	return Stats{
		Radius:   s.planet.Radius,
		Entities: s.Registry.Len(),
		ByClass:  byClass,
		Mobile:   len(s.Registry.Mobile()),
		Curves:   s.Curves.Len(),
		Progress: s.progress(),
		Elapsed:  s.elapsed,
	}
}
