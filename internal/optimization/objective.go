package optimization

import (
	"math"
	"sort"
)

// Objective is a scalar function to be minimized. It must be deterministic
// and free of side effects; nothing else is assumed about it.
type Objective func(x float64) float64

// Sphere is the default objective, f(x) = x².
func Sphere(x float64) float64 {
	return x * x
}

// DefaultObjective is the catalog name of Sphere.
const DefaultObjective = "sphere"

var catalog = map[string]struct {
	fn   Objective
	desc string
}{
	"sphere": {Sphere, "x^2, minimum 0 at x=0"},
	"shifted-sphere": {func(x float64) float64 {
		d := x - 3
		return d * d
	}, "(x-3)^2, minimum 0 at x=3"},
	"abs": {math.Abs, "|x|, minimum 0 at x=0, not differentiable at the optimum"},
	"rastrigin": {func(x float64) float64 {
		return 10 + x*x - 10*math.Cos(2*math.Pi*x)
	}, "10 + x^2 - 10cos(2πx), multimodal, minimum 0 at x=0"},
	"forrester": {func(x float64) float64 {
		a := 6*x - 2
		return a * a * math.Sin(12*x-4)
	}, "(6x-2)^2 sin(12x-4), minimum ≈ -6.0207 at x≈0.7572 on [0,1]"},
}

// LookupObjective returns the catalog objective registered under name.
// An empty name selects Sphere.
func LookupObjective(name string) (Objective, error) {
	if name == "" {
		name = DefaultObjective
	}
	entry, ok := catalog[name]
	if !ok {
		return nil, WrapErrorf(ErrUnknownObjective, "objective %q", name).WithOperation("lookup")
	}
	return entry.fn, nil
}

// ObjectiveNames returns the catalog names in sorted order.
func ObjectiveNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DescribeObjective returns a one-line description of a catalog objective.
func DescribeObjective(name string) string {
	return catalog[name].desc
}

// Fitness maps an objective value to a selection weight, 1/(1+f).
// Values for which that is undefined, non-finite or negative (NaN, ±Inf,
// f <= -1) get weight 0 so they can never attract onlookers.
func Fitness(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= -1 {
		return 0
	}
	return 1 / (1 + f)
}

// Improves reports whether candidate strictly improves on current.
// A non-finite candidate never improves; any finite candidate improves on
// a NaN current value. Equal values are not an improvement.
func Improves(candidate, current float64) bool {
	if math.IsNaN(candidate) || math.IsInf(candidate, 0) {
		return false
	}
	if math.IsNaN(current) {
		return true
	}
	return candidate < current
}
