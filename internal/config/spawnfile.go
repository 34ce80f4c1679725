package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/catplanet/internal/placement"
	"github.com/talgya/catplanet/internal/registry"
	"github.com/talgya/catplanet/internal/spawn"
)

// specEntry is one spec as written in a spawn file.
type specEntry struct {
	Class              string            `json:"class" jsonschema:"enum=ordinary,enum=collectible,enum=container,description=Placement class; empty means ordinary"`
	Template           string            `json:"template" jsonschema:"required,minLength=1,description=Template name handed to the renderer"`
	AttachmentTemplate string            `json:"attachment_template" jsonschema:"description=Template of the attachment a container owns"`
	AttachmentOffset   [3]float64        `json:"attachment_offset" jsonschema:"description=Attachment position in the container frame"`
	Style              string            `json:"style" jsonschema:"enum=companion,enum=hiding"`
	Count              int               `json:"count" jsonschema:"minimum=0,description=Exact count; 0 draws from min_count..max_count"`
	MinCount           int               `json:"min_count" jsonschema:"minimum=0"`
	MaxCount           int               `json:"max_count" jsonschema:"minimum=0"`
	MinDistanceOthers  float64           `json:"min_distance_from_others" jsonschema:"minimum=0"`
	MinDistanceSame    float64           `json:"min_distance_from_same_class" jsonschema:"minimum=0"`
	BlocksOthers       bool              `json:"blocks_others"`
	SurfaceOffset      *float64          `json:"surface_offset" jsonschema:"description=Height above the surface; defaults to SPAWN_SURFACE_OFFSET"`
	Mask               *spawn.Mask       `json:"mask"`
	Motion             *spawn.MotionSpec `json:"motion"`
}

type spawnFile struct {
	Specs []specEntry `json:"specs" jsonschema:"required"`
}

// LoadSpawnFile reads and validates spawn specs. Entries without a surface
// offset get defaultOffset.
func LoadSpawnFile(path string, defaultOffset float64) ([]spawn.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn file: %w", err)
	}
	return ParseSpawnSpecs(data, defaultOffset)
}

// ParseSpawnSpecs decodes and validates a spawn file's contents.
func ParseSpawnSpecs(data []byte, defaultOffset float64) ([]spawn.Spec, error) {
	var f spawnFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode spawn file: %w", err)
	}
	specs := make([]spawn.Spec, 0, len(f.Specs))
	for i, e := range f.Specs {
		s, err := e.spec(defaultOffset)
		if err != nil {
			return nil, fmt.Errorf("spec %d (%s): %w", i, e.Template, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func (e specEntry) spec(defaultOffset float64) (spawn.Spec, error) {
	class, ok := placement.ParseClass(e.Class)
	if e.Class == "" {
		class, ok = placement.ClassOrdinary, true
	}
	if !ok {
		return spawn.Spec{}, fmt.Errorf("%w: unknown class %q", ErrInvalid, e.Class)
	}
	if class == placement.ClassAttachment {
		return spawn.Spec{}, fmt.Errorf("%w: attachments are spawned by their container", ErrInvalid)
	}
	if e.Template == "" {
		return spawn.Spec{}, fmt.Errorf("%w: template is required", ErrInvalid)
	}
	if class == placement.ClassContainer && e.AttachmentTemplate == "" {
		return spawn.Spec{}, fmt.Errorf("%w: container needs an attachment_template", ErrInvalid)
	}
	if e.Count < 0 || e.MinCount < 0 || e.MaxCount < 0 {
		return spawn.Spec{}, fmt.Errorf("%w: counts must not be negative", ErrInvalid)
	}
	if e.Count == 0 && e.MaxCount < e.MinCount {
		return spawn.Spec{}, fmt.Errorf("%w: max_count %d is below min_count %d", ErrInvalid, e.MaxCount, e.MinCount)
	}
	if e.MinDistanceOthers < 0 || e.MinDistanceSame < 0 {
		return spawn.Spec{}, fmt.Errorf("%w: distances must not be negative", ErrInvalid)
	}
	switch e.Style {
	case "", "companion", "hiding":
	default:
		return spawn.Spec{}, fmt.Errorf("%w: unknown style %q", ErrInvalid, e.Style)
	}
	if m := e.Motion; m != nil && (m.Speed < 0 || m.WalkRadius < 0) {
		return spawn.Spec{}, fmt.Errorf("%w: motion speed and walk_radius must not be negative", ErrInvalid)
	}

	offset := defaultOffset
	if e.SurfaceOffset != nil {
		offset = *e.SurfaceOffset
	}
	return spawn.Spec{
		Class:                    class,
		Template:                 e.Template,
		AttachmentTemplate:       e.AttachmentTemplate,
		AttachmentOffset:         mgl64.Vec3(e.AttachmentOffset),
		Style:                    registry.ParseStyle(e.Style),
		Count:                    e.Count,
		MinCount:                 e.MinCount,
		MaxCount:                 e.MaxCount,
		MinDistanceFromOthers:    e.MinDistanceOthers,
		MinDistanceFromSameClass: e.MinDistanceSame,
		BlocksOthers:             e.BlocksOthers,
		SurfaceOffset:            offset,
		Mask:                     e.Mask,
		Motion:                   e.Motion,
	}, nil
}

// DefaultSpecs is the built-in population: scenery, a few walkers, baskets
// and boxes with cats, and free-roaming cats.
func DefaultSpecs(offset float64) []spawn.Spec {
	return []spawn.Spec{
		{Class: placement.ClassOrdinary, Template: "tree", MinCount: 6, MaxCount: 10,
			MinDistanceFromOthers: 1, MinDistanceFromSameClass: 2, BlocksOthers: true, SurfaceOffset: offset},
		{Class: placement.ClassOrdinary, Template: "rock", MinCount: 4, MaxCount: 8,
			MinDistanceFromOthers: 1, MinDistanceFromSameClass: 1, BlocksOthers: true, SurfaceOffset: offset},
		{Class: placement.ClassOrdinary, Template: "flower", MinCount: 10, MaxCount: 20,
			MinDistanceFromSameClass: 0.5, SurfaceOffset: offset, Mask: &spawn.Mask{Seed: 7, Frequency: 1.5, Octaves: 3, Persistence: 0.5, Threshold: 0.5}},
		{Class: placement.ClassOrdinary, Template: "person", MinCount: 1, MaxCount: 3,
			MinDistanceFromOthers: 1, MinDistanceFromSameClass: 3, SurfaceOffset: offset,
			Motion: &spawn.MotionSpec{Speed: 1, WalkRadius: 2, Circular: true}},
		{Class: placement.ClassContainer, Template: "basket", AttachmentTemplate: "cat",
			AttachmentOffset: mgl64.Vec3{0.4, 0, 0}, Style: registry.StyleCompanion, Count: 2,
			MinDistanceFromOthers: 1, MinDistanceFromSameClass: 1, BlocksOthers: true, SurfaceOffset: offset},
		{Class: placement.ClassContainer, Template: "box", AttachmentTemplate: "cat",
			AttachmentOffset: mgl64.Vec3{0, 0.2, 0}, Style: registry.StyleHiding, Count: 3,
			MinDistanceFromOthers: 1, MinDistanceFromSameClass: 1, BlocksOthers: true, SurfaceOffset: offset},
		{Class: placement.ClassCollectible, Template: "cat", Count: 5,
			MinDistanceFromOthers: 1, MinDistanceFromSameClass: 0.5, SurfaceOffset: offset},
	}
}
