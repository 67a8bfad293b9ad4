// Package particle defines the self-serializing tracer particle record.
package particle

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ID uniquely identifies a particle across the entire distributed
// population, stable across migration and refinement.
type ID uint64

// Particle is a location in d-dimensional space, a global identifier,
// and an opaque property payload owned by the property manager.
type Particle struct {
	ID   ID
	Loc  []float64 // len(Loc) == dim
	Data []byte    // len(Data) == P, opaque to this package
}

// RecordSize returns the number of bytes WriteTo/ReadFrom consume for a
// particle with the given dimension and property-payload length: the
// identity, the location, and the opaque payload.
func RecordSize(dim, propLen int) int {
	return 8 + 8*dim + propLen
}

// WriteTo serializes p into buf starting at offset, advancing it by
// exactly RecordSize(len(p.Loc), len(p.Data)) bytes. It panics if buf is
// too short, matching the framing-is-fatal policy used throughout the
// migration and refinement wire protocols.
func (p Particle) WriteTo(buf []byte, offset int) int {
	size := RecordSize(len(p.Loc), len(p.Data))
	if offset+size > len(buf) {
		panic(fmt.Sprintf("particle.WriteTo: buffer too short, need %d bytes at offset %d, have %d", size, offset, len(buf)))
	}
	binary.LittleEndian.PutUint64(buf[offset:], uint64(p.ID))
	offset += 8
	for _, c := range p.Loc {
		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(c))
		offset += 8
	}
	copy(buf[offset:offset+len(p.Data)], p.Data)
	offset += len(p.Data)
	return offset
}

// ReadFrom is the inverse of WriteTo: it decodes one particle of the
// given dimension and property-payload length starting at offset, and
// returns the advanced offset. The caller owns the returned Data slice
// (a fresh copy, independent of buf).
func ReadFrom(buf []byte, offset, dim, propLen int) (Particle, int) {
	size := RecordSize(dim, propLen)
	if offset+size > len(buf) {
		panic(fmt.Sprintf("particle.ReadFrom: buffer too short, need %d bytes at offset %d, have %d", size, offset, len(buf)))
	}
	p := Particle{
		ID:  ID(binary.LittleEndian.Uint64(buf[offset:])),
		Loc: make([]float64, dim),
	}
	offset += 8
	for i := 0; i < dim; i++ {
		p.Loc[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset:]))
		offset += 8
	}
	p.Data = make([]byte, propLen)
	copy(p.Data, buf[offset:offset+propLen])
	offset += propLen
	return p, offset
}

// Clone returns a deep copy of p, so callers can hold onto a particle
// independent of any buffer it was decoded from.
func (p Particle) Clone() Particle {
	c := Particle{ID: p.ID}
	c.Loc = append([]float64(nil), p.Loc...)
	c.Data = append([]byte(nil), p.Data...)
	return c
}
