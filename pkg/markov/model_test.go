package markov

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRejectsZeroStateSize(t *testing.T) {
	_, err := Build([]string{"a", "b"}, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBuildConcreteTable(t *testing.T) {
	m, err := Build([]string{"a", "b", "a", "b", "a", "c"}, 1)
	require.NoError(t, err)

	// "c" never appears as a state: nothing follows it.
	assert.Equal(t, 2, m.Len())

	transitions, total, ok := m.Lookup([]string{"a"})
	require.True(t, ok)
	assert.Equal(t, 3, total)
	assert.Equal(t, []Transition{{Token: "b", Count: 2}, {Token: "c", Count: 1}}, transitions)

	transitions, total, ok = m.Lookup([]string{"b"})
	require.True(t, ok)
	assert.Equal(t, 2, total)
	assert.Equal(t, []Transition{{Token: "a", Count: 2}}, transitions)
}

func TestBuildDeterminism(t *testing.T) {
	tokens := strings.Fields("the quick brown fox jumps over the lazy dog the quick red fox")

	m1, err := Build(tokens, 2)
	require.NoError(t, err)
	m2, err := Build(tokens, 2)
	require.NoError(t, err)

	assert.Equal(t, m1.states, m2.states)
}

func TestCountConservation(t *testing.T) {
	tests := []struct {
		name   string
		corpus string
		order  int
	}{
		{"order one", "a b a b a c", 1},
		{"order two", "one fish two fish red fish blue fish", 2},
		{"order three", "to be or not to be that is the question", 3},
		{"corpus equals state size", "x y", 2},
		{"corpus shorter than state size", "x", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tokens := strings.Fields(tc.corpus)
			m, err := Build(tokens, tc.order)
			require.NoError(t, err)

			want := len(tokens) - tc.order
			if want < 0 {
				want = 0
			}
			assert.Equal(t, want, m.Stats().TotalFrequency)
		})
	}
}

func TestLookupMissingState(t *testing.T) {
	m, err := Build(strings.Fields("a b c"), 1)
	require.NoError(t, err)

	transitions, total, ok := m.Lookup([]string{"z"})
	assert.False(t, ok)
	assert.Nil(t, transitions)
	assert.Zero(t, total)

	// A window of the wrong width can never be a state.
	_, _, ok = m.Lookup([]string{"a", "b"})
	assert.False(t, ok)
}

func TestStateKeyCollisionResistance(t *testing.T) {
	// The windows ["ab", "c"] and ["a", "bc"] must map to distinct states.
	assert.NotEqual(t, stateKey([]string{"ab", "c"}), stateKey([]string{"a", "bc"}))
	assert.NotEqual(t, stateKey([]string{"a", "b"}), stateKey([]string{"b", "a"}))
}

func TestEmptyModelWhenCorpusTooShort(t *testing.T) {
	m, err := Build([]string{"x"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, ModelStats{}, m.Stats())
}

func TestStats(t *testing.T) {
	m, err := Build([]string{"a", "b", "a", "b", "a", "c"}, 1)
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, 2, stats.States)
	assert.Equal(t, 3, stats.Transitions)
	assert.Equal(t, 5, stats.TotalFrequency)
	assert.Equal(t, 3, stats.VocabSize)
}

func TestPrune(t *testing.T) {
	m, err := Build([]string{"a", "b", "a", "b", "a", "c"}, 1)
	require.NoError(t, err)

	removed := m.Prune(1)
	assert.Equal(t, 1, removed) // only a->c is seen once

	transitions, _, ok := m.Lookup([]string{"a"})
	require.True(t, ok)
	assert.Equal(t, []Transition{{Token: "b", Count: 2}}, transitions)

	// Pruning everything must also drop the emptied states.
	removed = m.Prune(2)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, m.Len())
}
