package spawn

import (
	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
)

// Outcome is how one spec fared.
type Outcome struct {
	Template  string          `json:"template"`
	Class     placement.Class `json:"-"`
	Requested int             `json:"requested"`
	Placed    int             `json:"placed"`
}

// Report summarises a Populate run.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Requested returns the total number of units asked for.
func (r Report) Requested() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Requested
	}
	return n
}

// Placed returns the total number of units placed.
func (r Report) Placed() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Placed
	}
	return n
}

// Short reports whether any spec came up short.
func (r Report) Short() bool {
	return r.Placed() < r.Requested()
}

// populateOrder is the class order of a full generation: obstacles first so
// that containers and collectibles are placed around them.
var populateOrder = []placement.Class{
	placement.ClassOrdinary,
	placement.ClassContainer,
	placement.ClassCollectible,
}

// Populate spawns every spec into reg, grouped by class. The registry should
// be cleared beforehand. Under-placement is reported, never treated as an error.
func (s *Spawner) Populate(specs []Spec, reg *registry.Registry) Report {
	var report Report
	for _, class := range populateOrder {
		for _, spec := range specs {
			if spec.Class != class {
				continue
			}
			// Draw the count once so the report compares like with like.
			n := s.count(spec)
			fixed := spec
			fixed.Count = n
			placed := 0
			if n > 0 {
				placed = len(s.Spawn(fixed, reg))
			}

			report.Outcomes = append(report.Outcomes, Outcome{
				Template:  spec.Template,
				Class:     class,
				Requested: n,
				Placed:    placed,
			})
			if placed < n {
				s.logger.Debug("under-placed spec",
					"template", spec.Template,
					"class", class.String(),
					"requested", n,
					"placed", placed,
				)
			}
		}
	}
	return report
}
