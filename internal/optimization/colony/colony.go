// Package colony implements the Artificial Bee Colony algorithm for
// minimizing a scalar objective over a closed interval.
//
// A run is a fixed number of iterations, each made of three phases:
// employed bees refine every food source once, onlooker bees refine sources
// chosen in proportion to their fitness, and scouts replace sources that
// failed to improve Limit times in a row. The run is single threaded and
// all randomness comes from one injectable source.
package colony

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/hive/internal/optimization"
)

// ErrAlreadyRun is returned by Run on an optimizer that has finished.
var ErrAlreadyRun = errors.New("colony: optimizer already ran")

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithSource sets the random source. It overrides Config.RandomSeed.
func WithSource(src rand.Source) Option {
	return func(o *Optimizer) {
		if src != nil {
			o.src = src
		}
	}
}

// WithObserver registers an observer notified after every iteration.
func WithObserver(obs optimization.Observer) Option {
	return func(o *Optimizer) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger used for phase level debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Optimizer implements the Artificial Bee Colony algorithm
type Optimizer struct {
	cfg       Config
	objective optimization.Objective

	// One linear stream feeds every draw of the run.
	src    rand.Source
	rng    *rand.Rand
	bounds distuv.Uniform
	phi    distuv.Uniform

	state *state

	observers []optimization.Observer
	logger    *zap.Logger

	evaluations int
	done        bool
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// New validates cfg and returns an optimizer with an initialized population.
func New(cfg Config, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Objective == nil {
		cfg.Objective = optimization.Sphere
	}

	o := &Optimizer{
		cfg:       cfg,
		objective: cfg.Objective,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.src == nil {
		seed := cfg.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		o.src = rand.NewPCG(uint64(seed), uint64(seed))
	}
	o.rng = rand.New(o.src)
	o.bounds = distuv.Uniform{Min: cfg.Lower, Max: cfg.Upper, Src: o.src}
	o.phi = distuv.Uniform{Min: -1, Max: 1, Src: o.src}

	o.initialize()
	return o, nil
}

// Config returns the parameters the optimizer was built with.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// Snapshot returns a deep copy of the current food sources.
func (o *Optimizer) Snapshot() optimization.Snapshot {
	return o.state.snapshot()
}

// Evaluations returns the number of objective evaluations so far.
func (o *Optimizer) Evaluations() int {
	return o.evaluations
}

// Run executes all MaxIter iterations and returns the best food source of
// the final population. It can be called once.
func (o *Optimizer) Run() (*optimization.Result, error) {
	if o.done {
		return nil, ErrAlreadyRun
	}
	o.done = true

	history := make([]optimization.Iteration, 0, o.cfg.MaxIter)
	best := o.best()

	for it := 1; it <= o.cfg.MaxIter; it++ {
		employed := o.employedPhase()
		onlooker := o.onlookerPhase()
		resets := o.scoutPhase()
		best = o.best()

		report := optimization.Iteration{
			Number:      it,
			Best:        best,
			Employed:    employed,
			Onlooker:    onlooker,
			ScoutResets: resets,
		}
		history = append(history, report)

		if len(o.observers) > 0 {
			report.State = o.state.snapshot()
			for _, obs := range o.observers {
				obs.Observe(report)
			}
		}
	}

	return &optimization.Result{
		Best:        best,
		History:     history,
		Iterations:  o.cfg.MaxIter,
		Evaluations: o.evaluations,
	}, nil
}

// Run minimizes objective over [lb, ub] with a clock seeded source and
// returns the best point and its objective value.
func Run(numBees, maxIter, limit int, lb, ub float64, objective optimization.Objective) (float64, float64, error) {
	o, err := New(Config{
		NumBees:   numBees,
		MaxIter:   maxIter,
		Limit:     limit,
		Lower:     lb,
		Upper:     ub,
		Objective: objective,
	})
	if err != nil {
		return 0, 0, err
	}
	res, err := o.Run()
	if err != nil {
		return 0, 0, err
	}
	return res.Best.X, res.Best.Value, nil
}

func (o *Optimizer) initialize() {
	o.state = newState(o.cfg.NumBees)
	for i := 0; i < o.cfg.NumBees; i++ {
		x := o.bounds.Rand()
		o.state.set(i, x, o.evaluate(x))
	}
}

func (o *Optimizer) evaluate(x float64) float64 {
	o.evaluations++
	return o.objective(x)
}

// mutate returns a candidate near source i, moved relative to a random
// partner k != i and clamped to the search interval.
func (o *Optimizer) mutate(i int) float64 {
	k := o.rng.IntN(o.state.size() - 1)
	if k >= i {
		k++
	}
	phi := o.phi.Rand()
	xi := o.state.population[i]
	v := xi + phi*(xi-o.state.population[k])
	return math.Max(o.cfg.Lower, math.Min(o.cfg.Upper, v))
}

// accept applies greedy selection between source i and candidate v.
func (o *Optimizer) accept(i int, v float64) bool {
	value := o.evaluate(v)
	if optimization.Improves(value, o.state.values[i]) {
		o.state.set(i, v, value)
		o.state.trials[i] = 0
		return true
	}
	o.state.trials[i]++
	return false
}

func (o *Optimizer) refine(i int, stats *optimization.PhaseStats) {
	if o.accept(i, o.mutate(i)) {
		stats.Improvements++
	} else {
		stats.Rejections++
	}
}

func (o *Optimizer) employedPhase() optimization.PhaseStats {
	var stats optimization.PhaseStats
	for i := 0; i < o.state.size(); i++ {
		o.refine(i, &stats)
	}
	return stats
}

// onlookerPhase draws NumBees sources with replacement. Probabilities are
// fixed at the start of the phase.
func (o *Optimizer) onlookerPhase() optimization.PhaseStats {
	n := o.state.size()
	pick := func() int { return o.rng.IntN(n) }
	if probs := o.selectionProbabilities(); probs != nil {
		wheel := distuv.NewCategorical(probs, o.src)
		pick = func() int { return int(wheel.Rand()) }
	} else {
		o.logger.Debug("degenerate fitness, onlookers select uniformly",
			zap.Float64s("fitness", o.state.fitness))
	}

	var stats optimization.PhaseStats
	for d := 0; d < n; d++ {
		o.refine(pick(), &stats)
	}
	return stats
}

// selectionProbabilities normalizes fitness into a categorical
// distribution. It returns nil when the sum cannot be used as a divisor.
func (o *Optimizer) selectionProbabilities() []float64 {
	total := floats.Sum(o.state.fitness)
	if !(total > 0) || math.IsInf(total, 0) {
		return nil
	}
	scale := 1 / total
	if math.IsInf(scale, 0) {
		return nil
	}
	probs := make([]float64, len(o.state.fitness))
	floats.ScaleTo(probs, scale, o.state.fitness)
	return probs
}

func (o *Optimizer) scoutPhase() int {
	resets := 0
	for i := 0; i < o.state.size(); i++ {
		if o.state.trials[i] < o.cfg.Limit {
			continue
		}
		o.logger.Debug("scout abandons food source",
			zap.Int("slot", i),
			zap.Int("trials", o.state.trials[i]),
			zap.Float64("x", o.state.population[i]))

		x := o.bounds.Rand()
		o.state.set(i, x, o.evaluate(x))
		o.state.trials[i] = 0
		resets++
	}
	return resets
}

// best returns the source with the lowest objective value. NaN values are
// skipped; the first of equal minima wins.
func (o *Optimizer) best() optimization.Solution {
	bi := -1
	for i, v := range o.state.values {
		if math.IsNaN(v) {
			continue
		}
		if bi < 0 || v < o.state.values[bi] {
			bi = i
		}
	}
	if bi < 0 {
		bi = 0
	}
	return optimization.Solution{X: o.state.population[bi], Value: o.state.values[bi]}
}
