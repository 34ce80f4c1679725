package spawn

import (
	"github.com/go-gl/mathgl/mgl64"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Mask thins out a spec with layered simplex noise sampled on the unit
// sphere, so objects gather in patches instead of spreading evenly.
type Mask struct {
	Seed        int64   `json:"seed"`
	Frequency   float64 `json:"frequency"`
	Octaves     int     `json:"octaves"`
	Persistence float64 `json:"persistence"`
	Threshold   float64 `json:"threshold"` // Density below this rejects the candidate (0.0–1.0)
}

// DefaultMask returns a mask that keeps roughly half of the surface.
func DefaultMask(seed int64) Mask {
	return Mask{
		Seed:        seed,
		Frequency:   1.5,
		Octaves:     3,
		Persistence: 0.5,
		Threshold:   0.5,
	}
}

type sampler struct {
	mask  Mask
	noise opensimplex.Noise
}

func newSampler(m Mask) *sampler {
	return &sampler{mask: m, noise: opensimplex.NewNormalized(m.Seed)}
}

// Density returns the normalized noise value for a unit direction.
func (s *sampler) Density(dir mgl64.Vec3) float64 {
	octaves := s.mask.Octaves
	if octaves < 1 {
		octaves = 1
	}
	freq := s.mask.Frequency
	if freq <= 0 {
		freq = 1
	}
	persistence := s.mask.Persistence
	if persistence <= 0 {
		persistence = 0.5
	}
	return octaveNoise(s.noise, dir, octaves, freq, persistence)
}

// Allows reports whether dir falls inside a dense patch.
func (s *sampler) Allows(dir mgl64.Vec3) bool {
	return s.Density(dir) >= s.mask.Threshold
}

// octaveNoise layers several frequencies of 3D noise.
func octaveNoise(noise opensimplex.Noise, p mgl64.Vec3, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval3(p.X()*frequency, p.Y()*frequency, p.Z()*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
