package migrate

import (
	"github.com/notargets/goparticles/cellkey"
	"github.com/notargets/goparticles/mesh"
	"github.com/notargets/goparticles/particle"
	"github.com/notargets/goparticles/store"
)

// Reinsert locates each arrived particle's containing cell and inserts
// it into s, subject to the per-cell density cap: if a destination
// cell already holds exactly nmax particles, only every
// coarsenFactor-th arrival destined for that cell is kept (spec.md
// §4.6). This is a soft cap — it can still push the cell over nmax,
// since the stride is applied to the incoming batch, not to the
// combined total. Particles whose containing cell turns out not to be
// locally owned, or that match no cell at all, are discarded: the
// sender's view of ownership may be one step stale, and the
// receiver's view is authoritative.
func Reinsert(s *store.Store, tri mesh.Triangulation, mapping mesh.Mapping, arrivals []particle.Particle, nmax, dim int) (kept, dropped int) {
	coarsenFactor := 1 << dim
	byCell := make(map[cellkey.Key][]particle.Particle)
	for _, p := range arrivals {
		cell, found := tri.FindActiveCellAroundPoint(mapping, p.Loc)
		if !found || !cell.IsLocallyOwned() {
			dropped++
			continue
		}
		k := cellkey.Located(cell.Level(), cell.Index())
		byCell[k] = append(byCell[k], p)
	}

	for k, ps := range byCell {
		if nmax > 0 && s.Count(k) == nmax {
			var stride []particle.Particle
			for i, p := range ps {
				if i%coarsenFactor == 0 {
					stride = append(stride, p)
				}
			}
			dropped += len(ps) - len(stride)
			ps = stride
		}
		s.InsertAll(k, ps)
		kept += len(ps)
	}
	return kept, dropped
}
