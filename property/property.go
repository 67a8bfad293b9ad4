// Package property declares the per-particle property manager
// consumed by the refinement serializer and the timestep driver, plus
// ScalarTracer, a minimal concrete implementation.
package property

import (
	"encoding/binary"
	"math"

	"github.com/notargets/goparticles/particle"
)

// UpdateFrequency is how often a property manager wants its particles
// refreshed from the host solution.
type UpdateFrequency int

const (
	Never UpdateFrequency = iota
	PerTimestep
)

// Manager owns the semantics of a particle's opaque property payload:
// its size, and how to fill or refresh it from sampled field values.
type Manager interface {
	// ParticleSize is the configured payload size P.
	ParticleSize() int
	// DataLen is the payload size used at deserialization time; equal
	// to ParticleSize for every manager in this package, but kept
	// distinct per spec.md §6 since a manager could in principle size
	// itself from what it reads rather than a fixed constant.
	DataLen() int
	InitializeParticle(p *particle.Particle, values, gradients []float64)
	UpdateParticle(p *particle.Particle, values, gradients []float64)
	NeedUpdate() UpdateFrequency
}

// ScalarTracer carries one float64 of opaque payload per particle,
// seeded from the host solution's first component and refreshed every
// timestep from that component plus its gradient norm.
type ScalarTracer struct{}

func (ScalarTracer) ParticleSize() int { return 8 }
func (ScalarTracer) DataLen() int      { return 8 }

func (ScalarTracer) InitializeParticle(p *particle.Particle, values, gradients []float64) {
	p.Data = make([]byte, 8)
	binary.LittleEndian.PutUint64(p.Data, math.Float64bits(values[0]))
}

func (ScalarTracer) UpdateParticle(p *particle.Particle, values, gradients []float64) {
	if len(p.Data) != 8 {
		p.Data = make([]byte, 8)
	}
	binary.LittleEndian.PutUint64(p.Data, math.Float64bits(values[0]+gradNorm(gradients)))
}

func (ScalarTracer) NeedUpdate() UpdateFrequency { return PerTimestep }

func gradNorm(g []float64) float64 {
	sum := 0.0
	for _, c := range g {
		sum += c * c
	}
	return math.Sqrt(sum)
}
