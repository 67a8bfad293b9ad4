package refine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goparticles/cellkey"
	"github.com/notargets/goparticles/mesh"
	"github.com/notargets/goparticles/mesh/fakemesh"
	"github.com/notargets/goparticles/migrate"
	"github.com/notargets/goparticles/particle"
	"github.com/notargets/goparticles/store"
)

func unitSquare() (*fakemesh.Mesh, cellkey.Key) {
	m := fakemesh.New(2, 0)
	k := m.AddCell(0, 0, fakemesh.Box{Min: []float64{0, 0}, Max: []float64{1, 1}}, 0, []bool{true, true})
	return m, k
}

// S1: single rank, single cell, persist.
func TestSerializer_PersistRoundTrip(t *testing.T) {
	m, k := unitSquare()
	s := store.New()
	s.Insert(k, particle.Particle{ID: 1, Loc: []float64{0.25, 0.75}})

	ser := &Serializer{Store: s, Tri: m, Mapping: fakemesh.AffineMapping{}, Comm: migrate.NewComm(), Dim: 2, PropLen: 0}
	ser.PreAdapt()
	m.PersistCell(k)
	ser.PostAdapt()

	require.Equal(t, 1, s.Count(k))
	assert.Equal(t, particle.ID(1), s.EqualRange(k)[0].ID)
}

// S2: refine dispersal, d=2.
func TestSerializer_RefineDisperses(t *testing.T) {
	m, parent := unitSquare()
	s := store.New()
	s.Insert(parent, particle.Particle{ID: 1, Loc: []float64{0.25, 0.25}})
	s.Insert(parent, particle.Particle{ID: 2, Loc: []float64{0.75, 0.25}})
	s.Insert(parent, particle.Particle{ID: 3, Loc: []float64{0.25, 0.75}})
	s.Insert(parent, particle.Particle{ID: 4, Loc: []float64{0.75, 0.75}})

	ser := &Serializer{Store: s, Tri: m, Mapping: fakemesh.AffineMapping{}, Comm: migrate.NewComm(), Dim: 2, PropLen: 0}
	ser.PreAdapt()

	children := m.Refine(parent,
		[]fakemesh.Box{
			{Min: []float64{0, 0}, Max: []float64{0.5, 0.5}},
			{Min: []float64{0.5, 0}, Max: []float64{1, 0.5}},
			{Min: []float64{0, 0.5}, Max: []float64{0.5, 1}},
			{Min: []float64{0.5, 0.5}, Max: []float64{1, 1}},
		},
		[][]bool{
			{false, false},
			{true, false},
			{false, true},
			{true, true},
		},
	)
	ser.PostAdapt()

	require.Len(t, children, 4)
	total := 0
	for _, ck := range children {
		n := s.Count(ck)
		assert.Equal(t, 1, n, "child %s should hold exactly one particle", ck)
		total += n
	}
	assert.Equal(t, 4, total)
}

// S3: coarsen merge, Nmax=4, d=2.
func TestSerializer_CoarsenDownsamplesToCap(t *testing.T) {
	m := fakemesh.New(2, 0)
	var children []cellkey.Key
	boxes := []fakemesh.Box{
		{Min: []float64{0, 0}, Max: []float64{0.5, 0.5}},
		{Min: []float64{0.5, 0}, Max: []float64{1, 0.5}},
		{Min: []float64{0, 0.5}, Max: []float64{0.5, 1}},
		{Min: []float64{0.5, 0.5}, Max: []float64{1, 1}},
	}
	s := store.New()
	id := particle.ID(1)
	for i, box := range boxes {
		ck := m.AddCell(1, i, box, 0, []bool{true, true})
		children = append(children, ck)
		mid := []float64{(box.Min[0] + box.Max[0]) / 2, (box.Min[1] + box.Max[1]) / 2}
		for j := 0; j < 4; j++ {
			s.Insert(ck, particle.Particle{ID: id, Loc: mid})
			id++
		}
	}
	require.Equal(t, 16, s.Size())

	ser := &Serializer{Store: s, Tri: m, Mapping: fakemesh.AffineMapping{}, Comm: migrate.NewComm(), Dim: 2, PropLen: 0, Nmax: 4}
	ser.PreAdapt()
	parentKey := m.Coarsen(children, fakemesh.Box{Min: []float64{0, 0}, Max: []float64{1, 1}}, []bool{true, true})
	ser.PostAdapt()

	assert.Equal(t, 4, s.Count(parentKey))
}

// Registration is skipped entirely when every rank reports an empty store.
func TestSerializer_SkipsRegistrationWhenEmpty(t *testing.T) {
	m, k := unitSquare()
	s := store.New()
	ser := &Serializer{Store: s, Tri: m, Mapping: fakemesh.AffineMapping{}, Comm: migrate.NewComm(), Dim: 2, PropLen: 0}
	ser.PreAdapt()
	assert.Equal(t, mesh.Token(0), ser.token)
	ser.PostAdapt() // must not panic even though nothing was registered
	_ = k
}
