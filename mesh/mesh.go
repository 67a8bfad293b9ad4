// Package mesh declares the host finite-element solver's interfaces as
// consumed by the tracker: triangulation, mapping, and the pack/unpack
// attach mechanism mesh adaptation drives. The solver itself, and the
// mesh it owns, are external collaborators — nothing in this package
// implements a mesh.
package mesh

// CellStatus is the state of a cell at a refinement-adapt callback.
type CellStatus uint8

const (
	Persist CellStatus = iota
	Refine
	Coarsen
)

func (s CellStatus) String() string {
	switch s {
	case Persist:
		return "persist"
	case Refine:
		return "refine"
	case Coarsen:
		return "coarsen"
	default:
		return "unknown"
	}
}

// SubdomainID is the owning rank of a cell.
type SubdomainID int32

// Token identifies a registered data-attach slot; it is invalidated
// (by the caller setting it back to its zero value) once consumed by
// NotifyReadyToUnpack.
type Token int

// Cell is a cell of the local triangulation: either locally owned,
// a ghost whose primary owner is another rank, or — during an adapt
// callback — the parent or child of a refinement event.
type Cell interface {
	Level() int
	Index() int
	IsLocallyOwned() bool
	IsGhost() bool
	SubdomainID() SubdomainID
	// Status is only meaningful inside a Store/Load callback.
	Status() CellStatus
	// Children is only meaningful for a Coarsen parent (Store side) or
	// a Refine parent (Load side); it is nil otherwise.
	Children() []Cell
}

// Mapping is the bijection between a cell's physical shape and its
// canonical unit cell.
type Mapping interface {
	// TransformRealToUnitCell reports the unit-cell coordinates of loc
	// within cell, and whether loc actually falls inside cell. A
	// mapping failure (loc nowhere near cell) is reported as
	// (nil, false, err); callers must treat that as "not in this cell"
	// and fall through to a global search, never as fatal.
	TransformRealToUnitCell(cell Cell, loc []float64) (unit []float64, inside bool, err error)
}

// StoreFunc packs a cell's transient data before adaptation.
type StoreFunc func(cell Cell, status CellStatus, out []byte)

// LoadFunc unpacks a cell's transient data after adaptation.
type LoadFunc func(cell Cell, status CellStatus, in []byte)

// Triangulation is the process-local view of the adaptively refined,
// MPI-partitioned mesh.
type Triangulation interface {
	Dim() int
	ActiveCells() []Cell
	// GhostCells returns the ghost cells touching the local subdomain,
	// in a deterministic, rank-identical order.
	GhostCells() []Cell
	// CellAt constructs the cell at (level, index) directly, the O(1)
	// lookup a real triangulation supports without a spatial search.
	CellAt(level, index int) (Cell, bool)
	// FindActiveCellAroundPoint performs the global spatial search used
	// when a particle's last-known cell no longer contains it.
	FindActiveCellAroundPoint(mapping Mapping, loc []float64) (Cell, bool)
	RegisterDataAttach(transferSize int, store StoreFunc) Token
	NotifyReadyToUnpack(tok Token, load LoadFunc)
}
