package markov

import (
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
)

// Rand is the source of randomness used during generation. It is satisfied
// by *math/rand/v2.Rand, so tests can inject a seeded or fully
// deterministic implementation.
type Rand interface {
	// IntN returns a non-negative pseudo-random number in [0, n).
	IntN(n int) int
}

// globalRand draws from the shared math/rand/v2 source. It is the default
// when no Rand is injected.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// generateOptions is used by Generate to configure default options.
type generateOptions struct {
	maxTokens int
	rng       Rand
}

// GenerateOption is a function that configures generation parameters. It's
// used as a variadic argument to Generate.
type GenerateOption func(*generateOptions)

// WithMaxTokens sets the maximum number of tokens to generate. Generation
// may stop earlier if the chain reaches a state with no known successors.
// The default is 200.
func WithMaxTokens(n int) GenerateOption {
	return func(o *generateOptions) { o.maxTokens = n }
}

// WithRand sets the randomness source for generation. Passing nil keeps
// the default shared source.
func WithRand(r Rand) GenerateOption {
	return func(o *generateOptions) {
		if r != nil {
			o.rng = r
		}
	}
}

// Generate produces a sequence of tokens continuing from seed by repeated
// weighted-random draws over the transition table. Each draw picks a
// successor with probability proportional to its observed count, then
// slides the state window forward by one token.
//
// Only newly generated tokens are returned; callers that want the seed in
// the visible output prepend it themselves. The trailing Order() tokens of
// the seed form the starting state. A non-empty seed shorter than Order()
// is rejected with ErrInvalidConfig. An empty seed starts from a uniformly
// random state whose tokens are included in (and counted against) the
// output.
//
// Reaching a state the model has never seen ends generation early; the
// tokens produced so far are returned with a nil error. Callers must
// handle output shorter than requested, including an empty slice from a
// model with no states.
func (m *Model) Generate(seed []string, opts ...GenerateOption) ([]string, error) {
	options := &generateOptions{
		maxTokens: 200,
		rng:       globalRand{},
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.maxTokens < 0 {
		options.maxTokens = 0
	}

	out := make([]string, 0, options.maxTokens)
	var cursor []string

	switch {
	case len(seed) == 0:
		start, ok := m.randomState(options.rng)
		if !ok {
			m.logger.Debug("Generation produced no tokens, model has no states")
			return out, nil
		}
		cursor = slices.Clone(start)
		out = append(out, start...)
	case len(seed) < m.order:
		return nil, fmt.Errorf("%w: seed phrase has %d tokens, model state size is %d", ErrInvalidConfig, len(seed), m.order)
	default:
		cursor = slices.Clone(seed[len(seed)-m.order:])
	}

	for len(out) < options.maxTokens {
		choices, total, ok := m.Lookup(cursor)
		if !ok { // Dead end in chain
			m.logger.Debug("Generation terminated at dead-end state",
				slog.String("state", strings.Join(cursor, " ")),
				slog.Int("generated_length", len(out)),
			)
			break
		}

		next := pickTransition(choices, total, options.rng)
		out = append(out, next)
		cursor = append(cursor[1:], next)
	}

	// A random starting state can overshoot a small token budget.
	if len(out) > options.maxTokens {
		out = out[:options.maxTokens]
	}
	return out, nil
}

// randomState picks a uniformly random state from the model. States are
// indexed in sorted key order so an injected Rand stays deterministic.
func (m *Model) randomState(rng Rand) ([]string, bool) {
	if len(m.states) == 0 {
		return nil, false
	}
	keys := slices.Sorted(maps.Keys(m.states))
	return m.states[keys[rng.IntN(len(keys))]].tokens, true
}

// pickTransition performs the weighted draw: a uniform value in
// [0, total) walked down the cumulative counts of the choices.
func pickTransition(choices []Transition, total int, rng Rand) string {
	n := rng.IntN(total)
	for _, choice := range choices {
		n -= choice.Count
		if n < 0 {
			return choice.Token
		}
	}
	return choices[len(choices)-1].Token
}
