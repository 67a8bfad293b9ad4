// Package fakemesh is an in-memory axis-aligned triangulation used to
// test the tracker without a real finite-element solver, in the spirit
// of the teacher's own GetStandardTestMeshes test double
// (DG3D/mesh/mesh_test_helpers.go).
package fakemesh

import (
	"fmt"
	"sort"

	"github.com/notargets/goparticles/cellkey"
	"github.com/notargets/goparticles/mesh"
)

// Box is an axis-aligned cell extent.
type Box struct {
	Min, Max []float64
}

type cellRec struct {
	level, index int
	box          Box
	owner        mesh.SubdomainID
	status       mesh.CellStatus
	children     []cellkey.Key
	// maxBoundary[i] marks this cell as the last along axis i, so its
	// upper face is inclusive rather than exclusive — the deterministic
	// tie-break spec.md §4.5 requires for shared-face containment.
	maxBoundary []bool
}

type handle struct {
	m   *Mesh
	rec *cellRec
}

func (h *handle) Level() int                   { return h.rec.level }
func (h *handle) Index() int                    { return h.rec.index }
func (h *handle) IsLocallyOwned() bool          { return h.rec.owner == h.m.rank }
func (h *handle) IsGhost() bool                 { return h.rec.owner != h.m.rank }
func (h *handle) SubdomainID() mesh.SubdomainID { return h.rec.owner }
func (h *handle) Status() mesh.CellStatus       { return h.rec.status }
func (h *handle) Box() Box                      { return h.rec.box }

func (h *handle) Children() []mesh.Cell {
	out := make([]mesh.Cell, 0, len(h.rec.children))
	for _, ck := range h.rec.children {
		if c := h.m.handleFor(ck); c != nil {
			out = append(out, c)
		}
	}
	return out
}

type pendingLoad struct {
	cell   *handle
	status mesh.CellStatus
	buf    []byte
}

// Mesh is a flat collection of axis-aligned cells, partitioned across
// simulated ranks by SubdomainID. Structural changes (Refine, Coarsen,
// PersistCell) are driven explicitly by tests — there is no actual
// adaptive refinement algorithm here, only the pack/unpack contract a
// real one would exercise.
type Mesh struct {
	dim       int
	rank      mesh.SubdomainID
	cells     map[cellkey.Key]*cellRec
	nextIndex int

	registered bool
	attachSize int
	storeFn    mesh.StoreFunc
	pending    []pendingLoad
}

// New returns an empty mesh of the given dimension, local to rank.
func New(dim int, rank mesh.SubdomainID) *Mesh {
	return &Mesh{dim: dim, rank: rank, cells: make(map[cellkey.Key]*cellRec)}
}

// AddCell registers a cell (locally owned if owner equals the mesh's
// rank, a ghost otherwise) and returns its key.
func (m *Mesh) AddCell(level, index int, box Box, owner mesh.SubdomainID, maxBoundary []bool) cellkey.Key {
	m.cells[cellkey.Located(level, index)] = &cellRec{
		level: level, index: index, box: box, owner: owner, maxBoundary: maxBoundary,
	}
	if index >= m.nextIndex {
		m.nextIndex = index + 1
	}
	return cellkey.Located(level, index)
}

func (m *Mesh) handleFor(k cellkey.Key) *handle {
	rec, ok := m.cells[k]
	if !ok {
		return nil
	}
	return &handle{m: m, rec: rec}
}

// Dim implements mesh.Triangulation.
func (m *Mesh) Dim() int { return m.dim }

func (m *Mesh) sortedKeys() []cellkey.Key {
	keys := make([]cellkey.Key, 0, len(m.cells))
	for k := range m.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// ActiveCells implements mesh.Triangulation.
func (m *Mesh) ActiveCells() []mesh.Cell {
	keys := m.sortedKeys()
	out := make([]mesh.Cell, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.handleFor(k))
	}
	return out
}

// GhostCells implements mesh.Triangulation.
func (m *Mesh) GhostCells() []mesh.Cell {
	var out []mesh.Cell
	for _, k := range m.sortedKeys() {
		if rec := m.cells[k]; rec.owner != m.rank {
			out = append(out, m.handleFor(k))
		}
	}
	return out
}

// CellAt implements mesh.Triangulation.
func (m *Mesh) CellAt(level, index int) (mesh.Cell, bool) {
	h := m.handleFor(cellkey.Located(level, index))
	if h == nil {
		return nil, false
	}
	return h, true
}

// FindActiveCellAroundPoint implements mesh.Triangulation.
func (m *Mesh) FindActiveCellAroundPoint(mapping mesh.Mapping, loc []float64) (mesh.Cell, bool) {
	for _, cell := range m.ActiveCells() {
		_, inside, err := mapping.TransformRealToUnitCell(cell, loc)
		if err != nil {
			continue
		}
		if inside {
			return cell, true
		}
	}
	return nil, false
}

// RegisterDataAttach implements mesh.Triangulation.
func (m *Mesh) RegisterDataAttach(transferSize int, store mesh.StoreFunc) mesh.Token {
	m.registered = true
	m.attachSize = transferSize
	m.storeFn = store
	return mesh.Token(1)
}

// NotifyReadyToUnpack implements mesh.Triangulation. It invokes load for
// every cell that received a buffer during the adapt operation that ran
// since RegisterDataAttach, then clears the registration.
func (m *Mesh) NotifyReadyToUnpack(tok mesh.Token, load mesh.LoadFunc) {
	if !m.registered || tok == 0 {
		return
	}
	for _, pl := range m.pending {
		load(pl.cell, pl.status, pl.buf)
	}
	m.pending = nil
	m.registered = false
}

// PersistCell simulates an adapt cycle that leaves key unchanged: the
// store callback is invoked with Persist, and the resulting buffer is
// queued to be handed straight back on the next NotifyReadyToUnpack.
func (m *Mesh) PersistCell(k cellkey.Key) {
	h := m.handleFor(k)
	if h == nil {
		panic(fmt.Sprintf("fakemesh: PersistCell on unknown key %s", k))
	}
	buf := make([]byte, m.attachSize)
	if m.storeFn != nil {
		m.storeFn(h, mesh.Persist, buf)
	}
	m.pending = append(m.pending, pendingLoad{cell: h, status: mesh.Persist, buf: buf})
}

// Refine replaces the parent cell with the given children, copying the
// parent's store buffer to every child for the subsequent load step —
// the mesh layer's documented REFINE behavior (spec.md §4.6).
func (m *Mesh) Refine(parent cellkey.Key, childBoxes []Box, childMaxBoundary [][]bool) []cellkey.Key {
	rec, ok := m.cells[parent]
	if !ok {
		panic(fmt.Sprintf("fakemesh: Refine on unknown key %s", parent))
	}
	buf := make([]byte, m.attachSize)
	if m.storeFn != nil {
		m.storeFn(m.handleFor(parent), mesh.Refine, buf)
	}
	delete(m.cells, parent)

	childKeys := make([]cellkey.Key, len(childBoxes))
	for i, box := range childBoxes {
		idx := m.nextIndex
		m.nextIndex++
		ck := cellkey.Located(rec.level+1, idx)
		m.cells[ck] = &cellRec{level: rec.level + 1, index: idx, box: box, owner: rec.owner, maxBoundary: childMaxBoundary[i]}
		childKeys[i] = ck
	}
	for _, ck := range childKeys {
		m.pending = append(m.pending, pendingLoad{cell: m.handleFor(ck), status: mesh.Refine, buf: buf})
	}
	return childKeys
}

// Coarsen merges children into a new parent cell covering parentBox.
// The store callback is invoked once, on a detached cell handle whose
// Children() resolves to the (still-present) child cells, mirroring the
// mesh layer's CELL_COARSEN contract (spec.md §4.6, §4.7).
func (m *Mesh) Coarsen(children []cellkey.Key, parentBox Box, parentMaxBoundary []bool) cellkey.Key {
	if len(children) == 0 {
		panic("fakemesh: Coarsen requires at least one child")
	}
	first, ok := m.cells[children[0]]
	if !ok {
		panic(fmt.Sprintf("fakemesh: Coarsen on unknown key %s", children[0]))
	}
	parentIdx := m.nextIndex
	parentRec := &cellRec{level: first.level - 1, index: parentIdx, box: parentBox, owner: first.owner, children: children, maxBoundary: parentMaxBoundary}

	buf := make([]byte, m.attachSize)
	if m.storeFn != nil {
		m.storeFn(&handle{m: m, rec: parentRec}, mesh.Coarsen, buf)
	}
	for _, ck := range children {
		delete(m.cells, ck)
	}

	m.nextIndex++
	parentRec.children = nil
	ck := cellkey.Located(parentRec.level, parentIdx)
	m.cells[ck] = parentRec
	m.pending = append(m.pending, pendingLoad{cell: m.handleFor(ck), status: mesh.Coarsen, buf: buf})
	return ck
}

// AffineMapping is the identity-style mapping for axis-aligned Mesh
// cells: real-to-unit transform is a per-axis linear rescale.
type AffineMapping struct{}

// TransformRealToUnitCell implements mesh.Mapping.
func (AffineMapping) TransformRealToUnitCell(cell mesh.Cell, loc []float64) ([]float64, bool, error) {
	h, ok := cell.(*handle)
	if !ok {
		return nil, false, fmt.Errorf("fakemesh: AffineMapping requires a fakemesh cell, got %T", cell)
	}
	box := h.rec.box
	if len(loc) != len(box.Min) {
		return nil, false, fmt.Errorf("fakemesh: location has %d components, cell has %d", len(loc), len(box.Min))
	}
	unit := make([]float64, len(loc))
	inside := true
	for i, c := range loc {
		lo, hi := box.Min[i], box.Max[i]
		if hi <= lo {
			return nil, false, fmt.Errorf("fakemesh: degenerate cell extent on axis %d", i)
		}
		u := (c - lo) / (hi - lo)
		unit[i] = u
		maxInclusive := i < len(h.rec.maxBoundary) && h.rec.maxBoundary[i]
		if u < 0 || u > 1 || (u == 1 && !maxInclusive) {
			inside = false
		}
	}
	return unit, inside, nil
}
