package colony

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hive/internal/optimization"
)

// testConfig returns the end-to-end configuration used across the tests
func testConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.MaxIter = 40
	cfg.RandomSeed = seed
	return cfg
}

// newTestOptimizer builds an optimizer or fails the test
func newTestOptimizer(t testing.TB, cfg Config, opts ...Option) *Optimizer {
	t.Helper()
	o, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

// setPopulation overwrites the food sources and clears the trial counters
func setPopulation(o *Optimizer, xs ...float64) {
	o.state = newState(len(xs))
	for i, x := range xs {
		o.state.set(i, x, o.objective(x))
	}
}

// seededSource returns a deterministic source
func seededSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// assertStateInvariants checks bounds and fitness consistency for a snapshot
func assertStateInvariants(t *testing.T, cfg Config, snap optimization.Snapshot) {
	t.Helper()

	require.Len(t, snap.Population, cfg.NumBees)
	require.Len(t, snap.Fitness, cfg.NumBees)
	require.Len(t, snap.Trials, cfg.NumBees)

	for i, x := range snap.Population {
		require.GreaterOrEqual(t, x, cfg.Lower, "slot %d below lower bound", i)
		require.LessOrEqual(t, x, cfg.Upper, "slot %d above upper bound", i)
		require.Equal(t, 1/(1+cfg.Objective(x)), snap.Fitness[i], "slot %d has stale fitness", i)
		require.GreaterOrEqual(t, snap.Trials[i], 0)
	}
}

// minObjective returns the lowest objective value over a population
func minObjective(obj optimization.Objective, population []float64) float64 {
	best := math.Inf(1)
	for _, x := range population {
		best = math.Min(best, obj(x))
	}
	return best
}
