// Package refine implements C7: packing particles into opaque per-cell
// byte buffers around a mesh adapt operation, and unpacking them
// after — dispersing a refined parent's particles across its children,
// merging a coarsened parent's children with density-reducing
// downsampling.
package refine

import (
	"encoding/binary"
	"fmt"

	"github.com/notargets/goparticles/cellkey"
	"github.com/notargets/goparticles/mesh"
	"github.com/notargets/goparticles/migrate"
	"github.com/notargets/goparticles/particle"
	"github.com/notargets/goparticles/store"
)

// Serializer is the pack/unpack contract the mesh layer drives through
// RegisterDataAttach/NotifyReadyToUnpack.
type Serializer struct {
	Store   *store.Store
	Tri     mesh.Triangulation
	Mapping mesh.Mapping
	Comm    migrate.Comm
	Dim     int
	PropLen int // property payload size P; each record is particle.RecordSize(Dim, PropLen) bytes
	Nmax    int

	token mesh.Token
}

// PreAdapt computes Mmax, the global maximum particle count held by
// any single cell, and — unless every rank reports zero — registers a
// data-attach slot sized to let a coarsen target absorb up to Mmax
// particles from each of 2^Dim children (spec.md §4.7).
func (s *Serializer) PreAdapt() {
	localMax := 0
	for _, k := range s.Store.Keys() {
		if n := s.Store.Count(k); n > localMax {
			localMax = n
		}
	}
	mmax := s.Comm.AllreduceMaxInt(localMax)
	if mmax == 0 {
		return
	}
	coarsenFactor := 1 << s.Dim
	recSize := particle.RecordSize(s.Dim, s.PropLen)
	transferSize := 4 + recSize*mmax*coarsenFactor
	s.token = s.Tri.RegisterDataAttach(transferSize, s.storeCallback)
}

// PostAdapt enforces the post-adapt precondition — every particle must
// already have been handed to the mesh layer by the store callback —
// then drives the load callback over every destination cell and
// invalidates the registration. A no-op if PreAdapt skipped
// registration.
func (s *Serializer) PostAdapt() {
	if s.token == 0 {
		return
	}
	if s.Store.Size() != 0 {
		panic(fmt.Sprintf("refine: store not empty at post-adapt entry: %d particles remain", s.Store.Size()))
	}
	s.Tri.NotifyReadyToUnpack(s.token, s.loadCallback)
	s.token = 0
}

func (s *Serializer) storeCallback(cell mesh.Cell, status mesh.CellStatus, out []byte) {
	var ps []particle.Particle
	switch status {
	case mesh.Persist, mesh.Refine:
		k := cellkey.Located(cell.Level(), cell.Index())
		ps = s.Store.EqualRange(k)
		s.Store.EraseRange(k)
	case mesh.Coarsen:
		for _, child := range cell.Children() {
			k := cellkey.Located(child.Level(), child.Index())
			ps = append(ps, s.Store.EqualRange(k)...)
			s.Store.EraseRange(k)
		}
		if s.Nmax > 0 && len(ps) > s.Nmax {
			coarsenFactor := 1 << s.Dim
			var kept []particle.Particle
			for i, p := range ps {
				if i%coarsenFactor == 0 {
					kept = append(kept, p)
				}
			}
			ps = kept
		}
	}
	writeCountedParticles(out, ps)
}

func (s *Serializer) loadCallback(cell mesh.Cell, status mesh.CellStatus, in []byte) {
	ps := readCountedParticles(in, s.Dim, s.PropLen)
	k := cellkey.Located(cell.Level(), cell.Index())
	switch status {
	case mesh.Persist, mesh.Coarsen:
		s.Store.InsertAll(k, ps)
	case mesh.Refine:
		// The buffer here is the parent's payload, delivered unchanged
		// to every child by the mesh layer. Disperse without
		// duplication: keep only particles this child's unit-cell test
		// actually accepts.
		for _, p := range ps {
			_, inside, err := s.Mapping.TransformRealToUnitCell(cell, p.Loc)
			if err != nil || !inside {
				continue
			}
			s.Store.Insert(k, p)
		}
	}
}

// writeCountedParticles writes the refinement buffer layout:
// [uint32 count][count x particle record]. The destination buffer may
// be larger than needed (it is sized for the global worst case);
// unused trailing bytes are left untouched.
func writeCountedParticles(out []byte, ps []particle.Particle) {
	binary.LittleEndian.PutUint32(out, uint32(len(ps)))
	offset := 4
	for _, p := range ps {
		offset = p.WriteTo(out, offset)
	}
}

func readCountedParticles(in []byte, dim, propLen int) []particle.Particle {
	count := int(binary.LittleEndian.Uint32(in))
	offset := 4
	ps := make([]particle.Particle, count)
	for i := 0; i < count; i++ {
		ps[i], offset = particle.ReadFrom(in, offset, dim, propLen)
	}
	return ps
}
