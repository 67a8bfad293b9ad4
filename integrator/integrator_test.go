package integrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goparticles/particle"
)

func TestEuler_SingleStepThenDone(t *testing.T) {
	e := NewEuler()
	ps := []*particle.Particle{{ID: 1, Loc: []float64{0, 0}}}
	vNew := [][]float64{{1, 2}}

	e.LocalIntegrateStep(ps, nil, vNew, 0.5)
	assert.Equal(t, []float64{0.5, 1.0}, ps[0].Loc)

	e.AdvanceStage()
	assert.False(t, e.ContinueIntegration())

	// Next timestep starts a fresh cycle.
	e.LocalIntegrateStep(ps, nil, vNew, 0.5)
	assert.True(t, e.ContinueIntegration())
}

func TestRK2_TwoStageMidpoint(t *testing.T) {
	r := NewRK2(1)
	ps := []*particle.Particle{{ID: 7, Loc: []float64{0}}}

	r.LocalIntegrateStep(ps, [][]float64{{2}}, nil, 1.0)
	assert.Equal(t, []float64{1.0}, ps[0].Loc)
	r.AdvanceStage()
	require.True(t, r.ContinueIntegration())

	r.LocalIntegrateStep(ps, nil, [][]float64{{4}}, 1.0)
	assert.Equal(t, []float64{4.0}, ps[0].Loc) // orig (0) + vNew*dt
	r.AdvanceStage()
	assert.False(t, r.ContinueIntegration())
}

func TestRK2_ScratchSurvivesWriteReadRoundTrip(t *testing.T) {
	r := NewRK2(2)
	ps := []*particle.Particle{{ID: 3, Loc: []float64{1, 2}}}
	r.LocalIntegrateStep(ps, [][]float64{{0, 0}}, nil, 1.0)

	buf := make([]byte, r.DataLength())
	r.WriteData(buf, 3)

	r2 := NewRK2(2)
	r2.ReadData(buf, 3)
	assert.Equal(t, r.orig[3], r2.orig[3])
}
