// Package integrator declares the multi-stage ODE stepper consumed by
// the timestep driver and the migration wire protocol. Its own
// numerics are an external collaborator's concern; Euler and RK2 below
// are minimal concrete steppers used to exercise the interface.
package integrator

import "github.com/notargets/goparticles/particle"

// Integrator advances particle positions through a possibly
// multi-stage explicit scheme. DataLength/WriteData/ReadData frame the
// integrator's per-particle scratch state adjacent to the particle
// record on the wire, so a particle that migrates mid-integration
// arrives with its stage state intact.
type Integrator interface {
	DataLength() int
	WriteData(buf []byte, id particle.ID)
	ReadData(buf []byte, id particle.ID)
	// LocalIntegrateStep advances every particle in ps by one stage
	// using velocity samples taken at each particle's current location
	// (vOld from the previous solution, vNew from the current one).
	LocalIntegrateStep(ps []*particle.Particle, vOld, vNew [][]float64, dt float64)
	AdvanceStage()
	ContinueIntegration() bool
}

// Euler is a one-stage explicit Euler stepper: local_integrate_step
// advances position by v*dt and starts a fresh cycle, advance_stage
// marks that single stage complete, and continue_integration reports
// false once advance_stage has followed a step — grounded on the constant-time-step tracker's single-sample update
// (EulerTime.track).
type Euler struct {
	finished bool
}

// NewEuler returns a ready-to-use Euler stepper.
func NewEuler() *Euler { return &Euler{} }

func (e *Euler) DataLength() int { return 0 }

func (e *Euler) WriteData(buf []byte, id particle.ID) {}

func (e *Euler) ReadData(buf []byte, id particle.ID) {}

func (e *Euler) LocalIntegrateStep(ps []*particle.Particle, vOld, vNew [][]float64, dt float64) {
	for i, p := range ps {
		v := vNew[i]
		for d := range p.Loc {
			p.Loc[d] += v[d] * dt
		}
	}
	e.finished = false
}

func (e *Euler) AdvanceStage() { e.finished = true }

func (e *Euler) ContinueIntegration() bool { return !e.finished }

// RK2 is a two-stage midpoint method: stage 0 predicts the midpoint
// using the old velocity and a half step, remembering each particle's
// original location; stage 1 uses the velocity resampled at the
// midpoint to take the full step from that remembered origin —
// grounded on the multi-stage trial() shape in RungeKutta.go, cut down
// to two stages so advance_stage/continue_integration drive a genuine
// multi-iteration loop.
type RK2 struct {
	dim      int
	stage    int
	finished bool
	orig     map[particle.ID][]float64
}

// NewRK2 returns a ready-to-use RK2 stepper for particles of the given
// spatial dimension.
func NewRK2(dim int) *RK2 {
	return &RK2{dim: dim, orig: make(map[particle.ID][]float64)}
}

func (r *RK2) DataLength() int { return 8 * r.dim }

func (r *RK2) WriteData(buf []byte, id particle.ID) {
	loc := r.orig[id]
	for i := 0; i < r.dim; i++ {
		var c float64
		if i < len(loc) {
			c = loc[i]
		}
		putFloat64(buf[i*8:], c)
	}
}

func (r *RK2) ReadData(buf []byte, id particle.ID) {
	loc := make([]float64, r.dim)
	for i := 0; i < r.dim; i++ {
		loc[i] = getFloat64(buf[i*8:])
	}
	r.orig[id] = loc
}

func (r *RK2) LocalIntegrateStep(ps []*particle.Particle, vOld, vNew [][]float64, dt float64) {
	switch r.stage {
	case 0:
		for i, p := range ps {
			r.orig[p.ID] = append([]float64(nil), p.Loc...)
			v := vOld[i]
			for d := range p.Loc {
				p.Loc[d] += v[d] * dt / 2
			}
		}
	default:
		for i, p := range ps {
			orig, ok := r.orig[p.ID]
			if !ok {
				orig = p.Loc
			}
			v := vNew[i]
			for d := range p.Loc {
				p.Loc[d] = orig[d] + v[d]*dt
			}
			delete(r.orig, p.ID)
		}
	}
	r.finished = false
}

func (r *RK2) AdvanceStage() {
	r.stage = (r.stage + 1) % 2
	if r.stage == 0 {
		r.finished = true
	}
}

func (r *RK2) ContinueIntegration() bool { return !r.finished }
