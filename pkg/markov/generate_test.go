package markov

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand returns its configured value clamped to [0, n). With zero it
// always selects the highest-count transition, since Lookup orders
// successors by descending count.
type fixedRand struct {
	n int
}

func (r fixedRand) IntN(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

func TestGenerateDeterministic(t *testing.T) {
	m, err := Build([]string{"a", "b", "a", "b", "a", "c"}, 1)
	require.NoError(t, err)

	out, err := m.Generate([]string{"a"}, WithMaxTokens(1), WithRand(fixedRand{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, out)
}

func TestGenerateFromSeed(t *testing.T) {
	m, err := Build(strings.Fields("one fish two fish red fish blue fish"), 2)
	require.NoError(t, err)

	tests := []struct {
		name string
		seed []string
		want []string
	}{
		{
			name: "seed exactly state size",
			seed: []string{"one", "fish"},
			want: []string{"two", "fish", "red"},
		},
		{
			name: "seed longer than state size uses trailing window",
			seed: []string{"ignored", "one", "fish"},
			want: []string{"two", "fish", "red"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := m.Generate(tc.seed, WithMaxTokens(3), WithRand(fixedRand{}))
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestGenerateRejectsShortSeed(t *testing.T) {
	m, err := Build(strings.Fields("one fish two fish"), 2)
	require.NoError(t, err)

	_, err = m.Generate([]string{"one"}, WithMaxTokens(5))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGenerateEarlyTermination(t *testing.T) {
	// "c" is a dead end, so the run stops well short of the budget.
	m, err := Build([]string{"a", "b", "c"}, 1)
	require.NoError(t, err)

	out, err := m.Generate([]string{"a"}, WithMaxTokens(10), WithRand(fixedRand{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, out)
}

func TestGenerateEmptyModel(t *testing.T) {
	m, err := Build([]string{"x"}, 2)
	require.NoError(t, err)

	out, err := m.Generate([]string{"x", "y"}, WithMaxTokens(10))
	require.NoError(t, err)
	assert.Empty(t, out)

	// An empty seed on an empty model is also a no-op, not an error.
	out, err = m.Generate(nil, WithMaxTokens(10))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenerateEmptySeedStartsFromRandomState(t *testing.T) {
	m, err := Build(strings.Fields("one fish two fish red fish blue fish"), 2)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(42, 7))
	out, err := m.Generate(nil, WithMaxTokens(5), WithRand(rng))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(out), 2)
	assert.LessOrEqual(t, len(out), 5)

	// The random start must be a state the model knows.
	_, _, ok := m.Lookup(out[:2])
	assert.True(t, ok)
}

func TestGenerateZeroBudget(t *testing.T) {
	m, err := Build([]string{"a", "b", "c"}, 1)
	require.NoError(t, err)

	out, err := m.Generate([]string{"a"}, WithMaxTokens(0))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWeightedSamplingBias(t *testing.T) {
	// State "s" has successors A:3 and B:1; over many draws A should be
	// picked about three quarters of the time.
	m, err := Build([]string{"s", "A", "s", "A", "s", "A", "s", "B"}, 1)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	const draws = 20000
	var pickedA int
	for range draws {
		out, err := m.Generate([]string{"s"}, WithMaxTokens(1), WithRand(rng))
		require.NoError(t, err)
		require.Len(t, out, 1)
		if out[0] == "A" {
			pickedA++
		}
	}

	assert.InDelta(t, 0.75, float64(pickedA)/draws, 0.02)
}
