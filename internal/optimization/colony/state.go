package colony

import (
	"github.com/copyleftdev/hive/internal/optimization"
)

// state holds the food sources. The four slices are parallel and share the
// slot index; values caches objective(population[i]) so acceptance never
// re-evaluates the incumbent.
type state struct {
	population []float64
	fitness    []float64
	trials     []int
	values     []float64
}

func newState(n int) *state {
	return &state{
		population: make([]float64, n),
		fitness:    make([]float64, n),
		trials:     make([]int, n),
		values:     make([]float64, n),
	}
}

// set overwrites slot i. Fitness is always derived here so it can never
// go stale.
func (s *state) set(i int, x, value float64) {
	s.population[i] = x
	s.values[i] = value
	s.fitness[i] = optimization.Fitness(value)
}

func (s *state) size() int {
	return len(s.population)
}

func (s *state) snapshot() optimization.Snapshot {
	return optimization.Snapshot{
		Population: append([]float64(nil), s.population...),
		Fitness:    append([]float64(nil), s.fitness...),
		Trials:     append([]int(nil), s.trials...),
	}
}
