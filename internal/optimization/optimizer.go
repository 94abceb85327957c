// Package optimization holds the types shared by the optimizers and the
// services that drive them.
package optimization

import (
	"encoding/json"
	"math"
)

// Optimizer defines the interface for a single optimization run
type Optimizer interface {
	// Run executes the full run and returns its result
	Run() (*Result, error)

	// Snapshot returns a copy of the current search state
	Snapshot() Snapshot
}

// Observer receives a report after every completed iteration.
// Observers are called synchronously on the goroutine driving the run.
type Observer interface {
	Observe(it Iteration)
}

// ObserverFunc adapts a plain function to the Observer interface
type ObserverFunc func(it Iteration)

// Observe calls f(it)
func (f ObserverFunc) Observe(it Iteration) {
	f(it)
}

// Solution is a point in the search interval and its objective value
type Solution struct {
	X     float64 `json:"x"`
	Value float64 `json:"value"`
}

// MarshalJSON encodes a NaN or infinite value as null, which JSON has no
// number for.
func (s Solution) MarshalJSON() ([]byte, error) {
	type wire struct {
		X     *float64 `json:"x"`
		Value *float64 `json:"value"`
	}
	return json.Marshal(wire{X: finite(s.X), Value: finite(s.Value)})
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Snapshot is a deep copy of the population state at one observation point
type Snapshot struct {
	Population []float64 `json:"population"`
	Fitness    []float64 `json:"fitness"`
	Trials     []int     `json:"trials"`
}

// PhaseStats counts the outcome of greedy selections in one phase
type PhaseStats struct {
	Improvements int `json:"improvements"`
	Rejections   int `json:"rejections"`
}

// Iteration is the progress report emitted after each full phase cycle
type Iteration struct {
	// Number is 1-based
	Number      int        `json:"iteration"`
	Best        Solution   `json:"best"`
	Employed    PhaseStats `json:"employed"`
	Onlooker    PhaseStats `json:"onlooker"`
	ScoutResets int        `json:"scout_resets"`
	State       Snapshot   `json:"-"`
}

// Result contains the result of an optimization run
type Result struct {
	Best        Solution    `json:"best"`
	History     []Iteration `json:"history"`
	Iterations  int         `json:"iterations"`
	Evaluations int         `json:"evaluations"`
}
