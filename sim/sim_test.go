package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sifanexisted/macflow/boundary"
	"github.com/sifanexisted/macflow/grid"
	"github.com/sifanexisted/macflow/momentum"
	"github.com/sifanexisted/macflow/timestep"
)

func periodicSetup(t *testing.T, n int) Setup {
	t.Helper()
	per := boundary.Pair{
		Lo: boundary.Condition{Kind: boundary.Periodic},
		Hi: boundary.Condition{Kind: boundary.Periodic},
	}
	ax, err := grid.Uniform(n, 0, 2*math.Pi)
	require.NoError(t, err)
	return Setup{
		Axes:   []grid.Axis{ax, ax},
		BCs:    boundary.Set{per, per},
		Nu:     0.01,
		Solver: SolverSpectral,
		Dt:     0.01,
		TEnd:   0.05,
	}
}

func TestSetupValidation(t *testing.T) {
	good := periodicSetup(t, 8)
	require.NoError(t, good.Validate())

	bad := good
	bad.Axes = good.Axes[:1]
	var ce *ConfigError
	require.ErrorAs(t, bad.Validate(), &ce)
	assert.Equal(t, "Axes", ce.Field)

	bad = good
	bad.Nu = 0
	require.ErrorAs(t, bad.Validate(), &ce)
	assert.Equal(t, "Nu", ce.Field)

	bad = good
	bad.Dt = 0
	require.ErrorAs(t, bad.Validate(), &ce)
	assert.Equal(t, "Dt", ce.Field)

	bad = good
	bad.BCs = good.BCs[:1]
	require.ErrorAs(t, bad.Validate(), &ce)
	assert.Equal(t, "BCs", ce.Field)

	bad = good
	bad.Method = timestep.Tableau{Name: "broken", A: [][]float64{{0}}, B: []float64{2}, C: []float64{0}}
	require.ErrorAs(t, bad.Validate(), &ce)
	assert.Equal(t, "Method", ce.Field)
}

func TestMismatchedPeriodicPairIsConfigError(t *testing.T) {
	s := periodicSetup(t, 8)
	s.BCs = boundary.Set{
		{Lo: boundary.Condition{Kind: boundary.Periodic}, Hi: boundary.Condition{Kind: boundary.Dirichlet}},
		s.BCs[1],
	}
	_, err := New(s)
	require.Error(t, err)
}

func TestInitialConditionsDivergenceFree(t *testing.T) {
	s, err := New(periodicSetup(t, 16))
	require.NoError(t, err)

	err = s.InitialConditions([]boundary.ScalarFunc{
		func(x []float64, _ float64) float64 { return math.Sin(x[0]) * math.Cos(x[1]) },
		func(x []float64, _ float64) float64 { return -math.Cos(x[0]) * math.Sin(x[1]) },
	}, nil, 0)
	require.NoError(t, err)
	// The staggered samples are discretely divergence-free already.
	assert.False(t, s.Projected)
	assert.Less(t, s.Monitor().MaxDivergence(s.V, 0), 1e-12)
}

func TestInitialConditionsProjectWhenNeeded(t *testing.T) {
	s, err := New(periodicSetup(t, 16))
	require.NoError(t, err)

	// u = sin(x) alone has nonzero divergence and must be projected.
	err = s.InitialConditions([]boundary.ScalarFunc{
		func(x []float64, _ float64) float64 { return math.Sin(x[0]) },
	}, nil, 0)
	require.NoError(t, err)
	assert.True(t, s.Projected)
	assert.Less(t, s.Monitor().MaxDivergence(s.V, 0), 1e-10)
}

func TestRunDecaysTaylorGreen(t *testing.T) {
	s, err := New(periodicSetup(t, 16))
	require.NoError(t, err)
	require.NoError(t, s.InitialConditions([]boundary.ScalarFunc{
		func(x []float64, _ float64) float64 { return math.Sin(x[0]) * math.Cos(x[1]) },
		func(x []float64, _ float64) float64 { return -math.Cos(x[0]) * math.Sin(x[1]) },
	}, nil, 0))

	e0 := s.Monitor().KineticEnergy(s.V)
	res, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, 5, res.Steps)
	assert.Less(t, res.Final.Energy, e0)
	assert.Less(t, res.Final.MaxDiv, 1e-10)
	assert.InDelta(t, 0.05, s.T, 1e-12)
}

func TestStepAdvancesClosureScalars(t *testing.T) {
	cfg := periodicSetup(t, 8)
	cfg.Solver = SolverDirect

	g, err := grid.New(cfg.Axes, cfg.BCs)
	require.NoError(t, err)
	cfg.Closure = momentum.NewKEpsilon(g, 0.1, 0.2)

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.InitialConditions([]boundary.ScalarFunc{
		func(x []float64, _ float64) float64 { return math.Sin(x[0]) * math.Cos(x[1]) },
		func(x []float64, _ float64) float64 { return -math.Cos(x[0]) * math.Sin(x[1]) },
	}, nil, 0))

	cl := cfg.Closure.(*momentum.KEpsilon)
	k0 := append([]float64(nil), cl.K...)
	require.NoError(t, s.Step(0.005))
	changed := false
	for i := range cl.K {
		if cl.K[i] != k0[i] {
			changed = true
			break
		}
	}
	assert.True(t, changed, "transported scalars advance with the step")
}

func TestCGSolverConfiguration(t *testing.T) {
	cfg := periodicSetup(t, 8)
	cfg.Solver = SolverCG
	cfg.CGMaxIter = 800
	cfg.CGTol = 1e-11
	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.InitialConditions([]boundary.ScalarFunc{
		func(x []float64, _ float64) float64 { return math.Sin(x[0]) * math.Cos(x[1]) },
		func(x []float64, _ float64) float64 { return -math.Cos(x[0]) * math.Sin(x[1]) },
	}, nil, 0))
	require.NoError(t, s.Step(0.01))
	assert.Less(t, s.Monitor().MaxDivergence(s.V, s.T), 1e-8)
}
