package report

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/hive/internal/logging"
	"github.com/copyleftdev/hive/internal/optimization"
	"github.com/copyleftdev/hive/internal/optimization/colony"
)

func TestTextReporterFormat(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf)

	r.Observe(optimization.Iteration{Number: 1, Best: optimization.Solution{X: 0.123456789, Value: 0.015241578}})
	r.Observe(optimization.Iteration{Number: 40, Best: optimization.Solution{X: -0.00001, Value: 1e-10}})
	require.NoError(t, r.Final(optimization.Solution{X: -0.00001, Value: 1e-10}))

	want := "Iteration   1 | Best x = 0.12346 | f(x) = 0.015242\n" +
		"Iteration  40 | Best x = -0.00001 | f(x) = 0.000000\n" +
		"\nFinal Best Solution: -1e-05\n" +
		"Objective Value: 1e-10\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{2, "2.0"},
		{0.5, "0.5"},
		{-3.25, "-3.25"},
		{123456789, "123456789.0"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{1.5e-7, "1.5e-07"},
		{1e15, "1000000000000000.0"},
		{1e16, "1e+16"},
		{1.5e300, "1.5e+300"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
		{math.NaN(), "nan"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFloat(tt.in))
		})
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("disk full")
}

func TestTextReporterStopsAfterWriteError(t *testing.T) {
	w := &failingWriter{}
	r := NewTextReporter(w)

	r.Observe(optimization.Iteration{Number: 1})
	r.Observe(optimization.Iteration{Number: 2})

	assert.EqualError(t, r.Final(optimization.Solution{}), "disk full")
	assert.Equal(t, 1, w.n)
}

func TestTextReporterWithColony(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf)

	cfg := colony.DefaultConfig()
	cfg.MaxIter = 5
	cfg.RandomSeed = 3
	o, err := colony.New(cfg, colony.WithObserver(r))
	require.NoError(t, err)

	res, err := o.Run()
	require.NoError(t, err)
	require.NoError(t, r.Final(res.Best))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	// 5 progress lines, a blank line and two summary lines
	assert.Len(t, lines, 8)
	assert.True(t, bytes.HasPrefix(lines[4], []byte("Iteration   5 | Best x = ")))
}

func TestLogObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := NewLogObserver(logging.New(zap.New(core)))

	obs.Observe(optimization.Iteration{
		Number:      3,
		Best:        optimization.Solution{X: 0.5, Value: 0.25},
		Employed:    optimization.PhaseStats{Improvements: 4, Rejections: 6},
		ScoutResets: 2,
	})
	obs.Finished(&optimization.Result{Best: optimization.Solution{X: 0.5, Value: 0.25}, Iterations: 3, Evaluations: 70})

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.EqualValues(t, 3, ctx["iteration"])
	assert.Equal(t, 0.25, ctx["best_f"])
	assert.EqualValues(t, 4, ctx["employed_improvements"])
	assert.EqualValues(t, 2, ctx["scout_resets"])

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.EqualValues(t, 70, entries[1].ContextMap()["evaluations"])
}

func TestLogObserverSkipsWhenDebugDisabled(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs := NewLogObserver(logging.New(zap.New(core)))

	obs.Observe(optimization.Iteration{Number: 1})
	assert.Zero(t, logs.Len())
}
