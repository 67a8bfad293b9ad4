// Package world implements C8, the timestep driver: it wires the
// particle store, the host mesh, MPI migration, refinement
// serialization, the integrator, and the property manager into the
// single orchestrator a caller drives one timestep at a time.
package world

import (
	"fmt"

	"github.com/notargets/goparticles/cellkey"
	"github.com/notargets/goparticles/integrator"
	"github.com/notargets/goparticles/mesh"
	"github.com/notargets/goparticles/migrate"
	"github.com/notargets/goparticles/neighbor"
	"github.com/notargets/goparticles/particle"
	"github.com/notargets/goparticles/property"
	"github.com/notargets/goparticles/rebin"
	"github.com/notargets/goparticles/refine"
	"github.com/notargets/goparticles/store"
)

// VelocityField samples a velocity vector at each of a cell's given
// unit-cell points. It stands in for the host solver's FE evaluator
// (spec.md §4.8): a consumed interface, not implemented here.
type VelocityField interface {
	SampleVelocity(cell mesh.Cell, unitPoints [][]float64) [][]float64
}

// ScalarField samples a value and its gradient at each of a cell's
// unit-cell points, for property updates.
type ScalarField interface {
	SampleValueAndGradient(cell mesh.Cell, unitPoints [][]float64) (values [][]float64, gradients [][]float64)
}

// World is the tracker's central orchestrator, the Go analogue of the
// host solver's particle-tracking component.
type World struct {
	Store      *store.Store
	Tri        mesh.Triangulation
	Mapping    mesh.Mapping
	Comm       migrate.Comm
	Integrator integrator.Integrator
	Property   property.Manager
	Dim        int
	Nmax       int

	neighbors  []mesh.SubdomainID
	serializer *refine.Serializer
}

// New constructs a World and its refinement serializer.
func New(s *store.Store, tri mesh.Triangulation, mapping mesh.Mapping, comm migrate.Comm, integ integrator.Integrator, prop property.Manager, dim, nmax int) *World {
	w := &World{
		Store: s, Tri: tri, Mapping: mapping, Comm: comm,
		Integrator: integ, Property: prop, Dim: dim, Nmax: nmax,
	}
	w.serializer = &refine.Serializer{
		Store: s, Tri: tri, Mapping: mapping, Comm: comm,
		Dim: dim, PropLen: prop.DataLen(), Nmax: nmax,
	}
	w.RefreshNeighbors()
	return w
}

// RefreshNeighbors re-runs neighbor discovery (C4) against the current
// triangulation. Callers must call this after any mesh adaptation that
// could change the ghost boundary.
func (w *World) RefreshNeighbors() {
	w.neighbors = neighbor.Discover(w.Tri)
}

// AddParticle inserts p under the cell that currently contains its
// location. Adding a particle whose location is not locally owned is a
// precondition violation (spec.md §7): fatal, not a recoverable error.
func (w *World) AddParticle(p particle.Particle) {
	cell, found := w.Tri.FindActiveCellAroundPoint(w.Mapping, p.Loc)
	if !found || !cell.IsLocallyOwned() {
		panic(fmt.Sprintf("world: AddParticle at %v is not in a locally owned cell", p.Loc))
	}
	w.Store.Insert(cellkey.Located(cell.Level(), cell.Index()), p)
}

// Rebind runs C5 (rebinning) followed by C6 (MPI migration and
// reinsertion) exactly once. Called between integrator stages and
// whenever the caller otherwise needs the store brought back into
// local-locality (invariant 1).
func (w *World) Rebind() {
	res := rebin.FindAllCells(w.Store, w.Tri, w.Mapping)
	if w.Comm.Size() <= 1 {
		return
	}
	incoming := migrate.SendRecv(w.Comm, w.neighbors, res.Lost, w.Dim, w.Property.DataLen(), w.Integrator)
	for _, ps := range incoming {
		migrate.Reinsert(w.Store, w.Tri, w.Mapping, ps, w.Nmax, w.Dim)
	}
}

// AdvanceTimestep runs the integrator to completion for one timestep
// (spec.md §4.8): repeatedly stepping every locally owned cell's
// particles, rebinding, and advancing the integrator's stage, until it
// reports done. If the property manager wants a per-timestep refresh,
// it runs last.
func (w *World) AdvanceTimestep(dt float64, oldV, newV VelocityField, scalar ScalarField) {
	for {
		w.forEachOwnedCellWithParticles(func(cell mesh.Cell, ps []*particle.Particle, unitPts [][]float64) {
			vOld := oldV.SampleVelocity(cell, unitPts)
			vNew := newV.SampleVelocity(cell, unitPts)
			w.Integrator.LocalIntegrateStep(ps, vOld, vNew, dt)
		})
		w.Rebind()
		w.Integrator.AdvanceStage()
		if !w.Integrator.ContinueIntegration() {
			break
		}
	}

	if scalar != nil && w.Property.NeedUpdate() == property.PerTimestep {
		w.forEachOwnedCellWithParticles(func(cell mesh.Cell, ps []*particle.Particle, unitPts [][]float64) {
			values, gradients := scalar.SampleValueAndGradient(cell, unitPts)
			for i, p := range ps {
				w.Property.UpdateParticle(p, values[i], gradients[i])
			}
		})
	}
}

// PreAdapt and PostAdapt bracket a host-driven mesh adaptation with
// the refinement serializer's pack/unpack registration (C7).
func (w *World) PreAdapt()  { w.serializer.PreAdapt() }
func (w *World) PostAdapt() { w.serializer.PostAdapt(); w.RefreshNeighbors() }

// forEachOwnedCellWithParticles visits every locally owned active cell
// that currently holds at least one particle, computing each
// particle's unit-cell coordinates as the synthetic quadrature points
// the host FE evaluator needs to interpolate at (spec.md §4.8; the
// per-point weights the host API expects are unused here and so are
// not computed).
func (w *World) forEachOwnedCellWithParticles(fn func(cell mesh.Cell, ps []*particle.Particle, unitPts [][]float64)) {
	for _, cell := range w.Tri.ActiveCells() {
		if !cell.IsLocallyOwned() {
			continue
		}
		k := cellkey.Located(cell.Level(), cell.Index())
		if w.Store.Count(k) == 0 {
			continue
		}
		entries := w.Store.EqualRange(k)
		ps := make([]*particle.Particle, len(entries))
		unitPts := make([][]float64, len(entries))
		for i := range entries {
			ps[i] = &entries[i]
			unit, _, err := w.Mapping.TransformRealToUnitCell(cell, entries[i].Loc)
			if err != nil {
				unit = nil
			}
			unitPts[i] = unit
		}
		fn(cell, ps, unitPts)
		w.Store.EraseRange(k)
		for _, p := range ps {
			w.Store.Insert(k, *p)
		}
	}
}
