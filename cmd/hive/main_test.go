package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hive/internal/optimization"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--iters", "3", "--seed", "7")
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "Iteration "))
	assert.Contains(t, out, "Iteration   1 | Best x = ")
	assert.Contains(t, out, "\nFinal Best Solution: ")
	assert.Contains(t, out, "\nObjective Value: ")
}

func TestRunCommandDeterministic(t *testing.T) {
	first, err := execute(t, "run", "--iters", "10", "--seed", "42", "--objective", "rastrigin")
	require.NoError(t, err)
	second, err := execute(t, "run", "--iters", "10", "--seed", "42", "--objective", "rastrigin")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunCommandQuiet(t *testing.T) {
	out, err := execute(t, "run", "--iters", "5", "--seed", "3", "--quiet")
	require.NoError(t, err)

	assert.NotContains(t, out, "Iteration")
	assert.Contains(t, out, "Final Best Solution: ")
}

func TestRunCommandInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"one bee", []string{"run", "--bees", "1"}, optimization.ErrInvalidConfig},
		{"inverted bounds", []string{"run", "--lower", "5", "--upper", "-5"}, optimization.ErrInvalidConfig},
		{"unknown objective", []string{"run", "--objective", "ackley"}, optimization.ErrUnknownObjective},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, out)
		})
	}
}

func TestEnvFile(t *testing.T) {
	if _, ok := os.LookupEnv("ABC_MAX_ITER"); ok {
		t.Skip("ABC_MAX_ITER already set")
	}
	t.Cleanup(func() { os.Unsetenv("ABC_MAX_ITER") })

	path := filepath.Join(t.TempDir(), "hive.env")
	require.NoError(t, os.WriteFile(path, []byte("ABC_MAX_ITER=2\n"), 0o600))

	out, err := execute(t, "--env-file", path, "run", "--seed", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Iteration "))

	_, err = execute(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "run")
	assert.Error(t, err)
}

func TestObjectivesCommand(t *testing.T) {
	out, err := execute(t, "objectives")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(optimization.ObjectiveNames()))
	for i, name := range optimization.ObjectiveNames() {
		assert.True(t, strings.HasPrefix(lines[i], name), "line %d: %q", i, lines[i])
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "hive "+version+"\n", out)
}
