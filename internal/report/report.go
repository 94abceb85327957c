// Package report turns iteration reports into human readable progress
// output and structured log entries.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/copyleftdev/hive/internal/logging"
	"github.com/copyleftdev/hive/internal/optimization"
)

// TextReporter writes one progress line per iteration.
type TextReporter struct {
	w   io.Writer
	err error
}

// NewTextReporter returns a reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Observe implements optimization.Observer.
func (r *TextReporter) Observe(it optimization.Iteration) {
	r.printf("Iteration %3d | Best x = %.5f | f(x) = %.6f\n", it.Number, it.Best.X, it.Best.Value)
}

// Final writes the closing summary for a finished run.
func (r *TextReporter) Final(best optimization.Solution) error {
	r.printf("\nFinal Best Solution: %s\n", formatFloat(best.X))
	r.printf("Objective Value: %s\n", formatFloat(best.Value))
	return r.err
}

// Err returns the first write error, if any.
func (r *TextReporter) Err() error {
	return r.err
}

func (r *TextReporter) printf(format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

// formatFloat prints the shortest digits that round-trip. Decimal exponents
// in [-4, 16) use fixed notation, with ".0" on whole numbers; everything else
// is scientific.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}

	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(fixed, ".") {
		fixed += ".0"
	}
	return fixed
}

// LogObserver logs progress through a structured logger: each iteration at
// debug level, the final result at info level.
type LogObserver struct {
	logger *logging.Logger
}

// NewLogObserver returns an observer logging through logger.
func NewLogObserver(logger *logging.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Observe implements optimization.Observer.
func (o *LogObserver) Observe(it optimization.Iteration) {
	if !o.logger.Enabled(logging.DebugLevel) {
		return
	}
	o.logger.Debug("iteration completed", map[string]interface{}{
		"iteration":             it.Number,
		"best_x":                it.Best.X,
		"best_f":                it.Best.Value,
		"employed_improvements": it.Employed.Improvements,
		"onlooker_improvements": it.Onlooker.Improvements,
		"scout_resets":          it.ScoutResets,
	})
}

// Finished logs the outcome of a run.
func (o *LogObserver) Finished(res *optimization.Result) {
	o.logger.Info("optimization finished", map[string]interface{}{
		"best_x":      res.Best.X,
		"best_f":      res.Best.Value,
		"iterations":  res.Iterations,
		"evaluations": res.Evaluations,
	})
}
