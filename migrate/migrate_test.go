package migrate_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goparticles/integrator"
	"github.com/notargets/goparticles/mesh"
	"github.com/notargets/goparticles/mesh/fakemesh"
	"github.com/notargets/goparticles/migrate"
	"github.com/notargets/goparticles/migrate/simcomm"
	"github.com/notargets/goparticles/particle"
	"github.com/notargets/goparticles/store"
)

// TestSendRecv_CarriesIntegratorScratch confirms a particle's
// in-flight integrator stage state (RK2's remembered origin) survives
// migration framed adjacent to the particle record, per the wire-size
// resolution in SPEC_FULL.md §3.
func TestSendRecv_CarriesIntegratorScratch(t *testing.T) {
	hub := simcomm.NewHub(2)
	const dim, propLen = 1, 0

	sendInteg := integrator.NewRK2(dim)
	ps := []*particle.Particle{{ID: 9, Loc: []float64{0.5}}}
	sendInteg.LocalIntegrateStep(ps, [][]float64{{2}}, nil, 1.0) // stage 0: remembers origin 0.5, advances to 1.5

	var wg sync.WaitGroup
	var got map[mesh.SubdomainID][]particle.Particle
	recvInteg := integrator.NewRK2(dim)
	wg.Add(2)
	go func() {
		defer wg.Done()
		outgoing := map[mesh.SubdomainID][]particle.Particle{1: {*ps[0]}}
		migrate.SendRecv(hub.Comm(0), []mesh.SubdomainID{1}, outgoing, dim, propLen, sendInteg)
	}()
	go func() {
		defer wg.Done()
		got = migrate.SendRecv(hub.Comm(1), []mesh.SubdomainID{0}, nil, dim, propLen, recvInteg)
	}()
	wg.Wait()

	require.Len(t, got[0], 1)
	arrived := &got[0][0]
	// Advance recvInteg to stage 1, the same point in the shared
	// per-timestep stage sequence the sender had already reached, then
	// complete the step from the recovered pre-stage-0 origin (0.5),
	// not from the mid-flight location the wire carried (1.5).
	recvInteg.AdvanceStage()
	recvInteg.LocalIntegrateStep([]*particle.Particle{arrived}, nil, [][]float64{{4}}, 1.0)
	assert.Equal(t, []float64{4.5}, arrived.Loc)
}

// TestSendRecv_TwoRankCrossing exercises S4: a particle that crossed
// from rank 0's subdomain into rank 1's is handed off by one call to
// SendRecv on each side, running concurrently over simcomm.
func TestSendRecv_TwoRankCrossing(t *testing.T) {
	hub := simcomm.NewHub(2)
	const dim, propLen = 2, 0

	var (
		wg        sync.WaitGroup
		recv0, recv1 map[mesh.SubdomainID][]particle.Particle
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		comm := hub.Comm(0)
		outgoing := map[mesh.SubdomainID][]particle.Particle{
			1: {{ID: 42, Loc: []float64{0.51, 0.5}}},
		}
		recv0 = migrate.SendRecv(comm, []mesh.SubdomainID{1}, outgoing, dim, propLen, nil)
	}()
	go func() {
		defer wg.Done()
		comm := hub.Comm(1)
		outgoing := map[mesh.SubdomainID][]particle.Particle{}
		recv1 = migrate.SendRecv(comm, []mesh.SubdomainID{0}, outgoing, dim, propLen, nil)
	}()
	wg.Wait()

	assert.Empty(t, recv0)
	require.Len(t, recv1[0], 1)
	assert.Equal(t, particle.ID(42), recv1[0][0].ID)
	assert.Equal(t, []float64{0.51, 0.5}, recv1[0][0].Loc)
}

// TestReinsert_StridesArrivalsAtCap exercises S6 end to end over
// simcomm: rank 0 sends 8 particles to rank 1, whose destination cell
// already holds exactly Nmax, and the arrival is reinserted through
// Reinsert — which must keep only every (1<<dim)-th particle.
func TestReinsert_StridesArrivalsAtCap(t *testing.T) {
	hub := simcomm.NewHub(2)
	const dim, propLen, nmax = 1, 0, 2

	m1 := fakemesh.New(dim, 1)
	k := m1.AddCell(0, 0, fakemesh.Box{Min: []float64{0}, Max: []float64{1}}, 1, []bool{true})
	s1 := store.New()
	s1.Insert(k, particle.Particle{ID: 100, Loc: []float64{0.1}})
	s1.Insert(k, particle.Particle{ID: 101, Loc: []float64{0.2}})
	require.Equal(t, nmax, s1.Count(k))

	var (
		wg  sync.WaitGroup
		got map[mesh.SubdomainID][]particle.Particle
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		outgoing := map[mesh.SubdomainID][]particle.Particle{1: make([]particle.Particle, 8)}
		for i := range outgoing[1] {
			outgoing[1][i] = particle.Particle{ID: particle.ID(i), Loc: []float64{0.01 * float64(i)}}
		}
		migrate.SendRecv(hub.Comm(0), []mesh.SubdomainID{1}, outgoing, dim, propLen, nil)
	}()
	go func() {
		defer wg.Done()
		got = migrate.SendRecv(hub.Comm(1), []mesh.SubdomainID{0}, nil, dim, propLen, nil)
	}()
	wg.Wait()

	require.Len(t, got[0], 8)
	kept, dropped := migrate.Reinsert(s1, m1, fakemesh.AffineMapping{}, got[0], nmax, dim)
	assert.Equal(t, 4, kept)
	assert.Equal(t, 4, dropped)
	assert.Equal(t, nmax+4, s1.Count(k))
}

// TestSendRecv_EmptyExchangeIsANoop confirms two ranks with nothing to
// trade still complete a round (no deadlock on an empty payload).
func TestSendRecv_EmptyExchangeIsANoop(t *testing.T) {
	hub := simcomm.NewHub(2)
	var wg sync.WaitGroup
	wg.Add(2)
	for r := 0; r < 2; r++ {
		r := r
		go func() {
			defer wg.Done()
			comm := hub.Comm(r)
			other := mesh.SubdomainID(1 - r)
			recv := migrate.SendRecv(comm, []mesh.SubdomainID{other}, nil, 2, 0, nil)
			assert.Empty(t, recv)
		}()
	}
	wg.Wait()
}

func TestAllreduceMaxInt_AcrossRanks(t *testing.T) {
	hub := simcomm.NewHub(3)
	results := make([]int, 3)
	var wg sync.WaitGroup
	wg.Add(3)
	inputs := []int{3, 7, 1}
	for r := 0; r < 3; r++ {
		r := r
		go func() {
			defer wg.Done()
			results[r] = hub.Comm(r).AllreduceMaxInt(inputs[r])
		}()
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, 7, got)
	}
}

func TestReduceSumInt_AcrossRanks(t *testing.T) {
	hub := simcomm.NewHub(4)
	results := make([]int, 4)
	var wg sync.WaitGroup
	wg.Add(4)
	for r := 0; r < 4; r++ {
		r := r
		go func() {
			defer wg.Done()
			results[r] = hub.Comm(r).ReduceSumInt(r + 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, results[0])
}
