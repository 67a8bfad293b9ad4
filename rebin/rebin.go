// Package rebin implements the rebinning engine: after advection, it
// relocates each particle to its new cell or stages it for MPI
// hand-off.
package rebin

import (
	"github.com/notargets/goparticles/cellkey"
	"github.com/notargets/goparticles/mesh"
	"github.com/notargets/goparticles/particle"
	"github.com/notargets/goparticles/store"
)

// Result reports the outcome of FindAllCells. Lost holds particles
// whose new cell is owned by another rank, staged under the owning
// subdomain ID for migrate.SendRecv. Dropped counts particles that left
// the domain entirely (spec.md §7, "Lost particle").
type Result struct {
	Lost    map[mesh.SubdomainID][]particle.Particle
	Dropped int
}

// FindAllCells relocates every particle in s to its current cell. A
// particle whose stored key still contains it is left in place; one
// that moved is either reinserted locally or staged in the returned
// Result for MPI migration; one found nowhere is silently dropped.
//
// The traversal is erase-safe: s is drained onto a snapshot taken up
// front (store.All), processed read-only, and rebuilt in one bulk
// insert pass — the two-pass structure spec.md §9 prescribes in place
// of iterator-invalidating erase during traversal.
func FindAllCells(s *store.Store, tri mesh.Triangulation, mapping mesh.Mapping) Result {
	entries := s.All()
	moved := make(map[cellkey.Key][]particle.Particle)
	lost := make(map[mesh.SubdomainID][]particle.Particle)
	dropped := 0

	for _, e := range entries {
		if stillContained(e, tri, mapping) {
			moved[e.Key] = append(moved[e.Key], e.P)
			continue
		}

		cell, found := tri.FindActiveCellAroundPoint(mapping, e.P.Loc)
		if !found {
			dropped++
			continue
		}

		if cell.IsLocallyOwned() {
			k := cellkey.Located(cell.Level(), cell.Index())
			moved[k] = append(moved[k], e.P)
		} else {
			lost[cell.SubdomainID()] = append(lost[cell.SubdomainID()], e.P)
		}
	}

	s.Clear()
	for k, ps := range moved {
		s.InsertAll(k, ps)
	}

	// Reserved extension point: snap escaped particles back into the
	// mesh at the nearest point. A no-op today, it must still run here
	// so a future implementation has a stable place to act.
	MoveParticlesBackInMesh(lost)

	return Result{Lost: lost, Dropped: dropped}
}

func stillContained(e store.Entry, tri mesh.Triangulation, mapping mesh.Mapping) bool {
	if !e.Key.IsLocated() {
		return false
	}
	cell, ok := tri.CellAt(e.Key.Level, e.Key.Index)
	if !ok {
		return false
	}
	_, inside, err := mapping.TransformRealToUnitCell(cell, e.P.Loc)
	if err != nil {
		// FE mapping failure: treated as "not in this cell", never
		// fatal (spec.md §7).
		return false
	}
	return inside
}

// MoveParticlesBackInMesh is reserved for a future "nearest point in
// mesh" snap for particles that fell outside the global domain. It is
// a deliberate no-op; see spec.md §4.5 and §9.
func MoveParticlesBackInMesh(lost map[mesh.SubdomainID][]particle.Particle) {
}
