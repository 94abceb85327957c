package colony

import (
	"math"

	"github.com/copyleftdev/hive/internal/optimization"
)

// Default parameter values.
const (
	DefaultNumBees = 10
	DefaultMaxIter = 50
	DefaultLimit   = 5
	DefaultLower   = -10.0
	DefaultUpper   = 10.0
)

// Config contains the parameters of one colony run.
type Config struct {
	// NumBees is the number of food sources. It must be at least 2 because
	// every mutation needs a partner other than the source itself.
	NumBees int

	// MaxIter is the number of full employed/onlooker/scout cycles.
	MaxIter int

	// Limit is the number of consecutive failed improvements after which a
	// scout abandons a food source.
	Limit int

	// Lower and Upper bound the closed search interval.
	Lower float64
	Upper float64

	// Objective is minimized. Nil means optimization.Sphere.
	Objective optimization.Objective

	// RandomSeed seeds the default random source. Zero seeds from the clock.
	RandomSeed int64
}

// DefaultConfig returns the recognized default parameters.
func DefaultConfig() Config {
	return Config{
		NumBees:   DefaultNumBees,
		MaxIter:   DefaultMaxIter,
		Limit:     DefaultLimit,
		Lower:     DefaultLower,
		Upper:     DefaultUpper,
		Objective: optimization.Sphere,
	}
}

// Validate checks the parameters. Every returned error matches
// optimization.ErrInvalidConfig.
func (c Config) Validate() error {
	var err *optimization.Error
	switch {
	case c.NumBees < 2:
		err = optimization.InvalidConfigf("num_bees", "must be at least 2, got %d", c.NumBees)
	case c.MaxIter < 0:
		err = optimization.InvalidConfigf("max_iter", "must not be negative, got %d", c.MaxIter)
	case c.Limit < 1:
		err = optimization.InvalidConfigf("limit", "must be at least 1, got %d", c.Limit)
	case math.IsNaN(c.Lower) || math.IsInf(c.Lower, 0):
		err = optimization.InvalidConfigf("lb", "must be finite, got %v", c.Lower)
	case math.IsNaN(c.Upper) || math.IsInf(c.Upper, 0):
		err = optimization.InvalidConfigf("ub", "must be finite, got %v", c.Upper)
	case c.Lower >= c.Upper:
		err = optimization.InvalidConfigf("lb", "must be below ub, got lb=%v ub=%v", c.Lower, c.Upper)
	case math.IsInf(c.Upper-c.Lower, 0):
		// Uniform draws scale by ub-lb, which must itself be finite.
		err = optimization.InvalidConfigf("ub", "interval width overflows, got lb=%v ub=%v", c.Lower, c.Upper)
	default:
		return nil
	}
	return err.WithComponent("colony").WithOperation("validate")
}
