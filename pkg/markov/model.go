package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidConfig is returned when a model is built or used with
// parameters that can never work, such as a state size of zero or a seed
// phrase shorter than the state size.
var ErrInvalidConfig = errors.New("markov: invalid configuration")

// Model is a word-level Markov chain: a transition table mapping each
// state (a window of `order` consecutive tokens) to the tokens observed
// to follow it, weighted by how often each one was seen. A Model is built
// once and is read-only during generation.
type Model struct {
	order  int
	states map[string]*stateEntry
	logger *slog.Logger
}

// stateEntry holds one state's token window and its successor multiset.
type stateEntry struct {
	tokens     []string
	successors map[string]int
}

// Transition is a possible next token for some state, together with the
// number of times that transition was observed during training.
type Transition struct {
	Token string
	Count int
}

// ModelStats holds aggregated statistics for a model.
type ModelStats struct {
	States         int // The number of distinct states.
	Transitions    int // The number of unique state->token links.
	TotalFrequency int // The sum of all transition counts; the total number of trained transitions.
	VocabSize      int // The number of unique tokens across states and successors.
}

func newModel(order int) *Model {
	return &Model{
		order:  order,
		states: make(map[string]*stateEntry),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Build scans tokens once and counts every state -> next-token transition,
// where a state is a window of `order` consecutive tokens. Tokens are
// matched exactly: case-sensitive and punctuation-inclusive. A sequence no
// longer than order yields a model with zero states; such a model
// generates nothing but still round-trips through the binary codec.
func Build(tokens []string, order int) (*Model, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: state size must be at least 1, got %d", ErrInvalidConfig, order)
	}

	m := newModel(order)
	for i := 0; i+order < len(tokens); i++ {
		window := tokens[i : i+order]
		next := tokens[i+order]

		key := stateKey(window)
		entry, ok := m.states[key]
		if !ok {
			entry = &stateEntry{
				tokens:     slices.Clone(window),
				successors: make(map[string]int),
			}
			m.states[key] = entry
		}
		entry.successors[next]++
	}
	return m, nil
}

// BuildFromReader tokenizes r and builds a model from the result. It is a
// convenience wrapper around Tokenize and Build.
func BuildFromReader(r io.Reader, order int) (*Model, error) {
	tokens, err := Tokenize(r)
	if err != nil {
		return nil, fmt.Errorf("markov: tokenizing training data: %w", err)
	}
	return Build(tokens, order)
}

// Order returns the state size the model was built with.
func (m *Model) Order() int {
	return m.order
}

// Len returns the number of distinct states in the model.
func (m *Model) Len() int {
	return len(m.states)
}

// SetLogger sets the logger for the model. By default, all logs are
// discarded.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Lookup returns the possible successors of a state together with the sum
// of their counts. The slice is ordered by descending count, ties broken
// by token text, so a deterministic Rand yields deterministic output.
// A state the model has never seen returns ok == false; this is a normal
// condition, not an error. Lookup is a pure read.
func (m *Model) Lookup(state []string) (transitions []Transition, total int, ok bool) {
	if len(state) != m.order {
		return nil, 0, false
	}
	entry, found := m.states[stateKey(state)]
	if !found {
		return nil, 0, false
	}
	transitions, total = sortedTransitions(entry.successors)
	return transitions, total, true
}

// Stats returns a snapshot of aggregate statistics for the model.
func (m *Model) Stats() ModelStats {
	stats := ModelStats{States: len(m.states)}
	vocab := make(map[string]struct{})
	for _, entry := range m.states {
		for _, token := range entry.tokens {
			vocab[token] = struct{}{}
		}
		for token, count := range entry.successors {
			vocab[token] = struct{}{}
			stats.Transitions++
			stats.TotalFrequency += count
		}
	}
	stats.VocabSize = len(vocab)
	return stats
}

// Prune removes all transitions with a count less than or equal to
// minCount. This is useful for reducing the size of a model by removing
// rare, and often noisy, transitions. States left with no successors are
// removed entirely, so every remaining state keeps at least one successor.
// It returns the number of transitions removed.
func (m *Model) Prune(minCount int) int {
	var removed, emptied int
	for key, entry := range m.states {
		for token, count := range entry.successors {
			if count <= minCount {
				delete(entry.successors, token)
				removed++
			}
		}
		if len(entry.successors) == 0 {
			delete(m.states, key)
			emptied++
		}
	}

	m.logger.Info("Model pruned",
		slog.Int("min_count", minCount),
		slog.Int("transitions_removed", removed),
		slog.Int("states_removed", emptied),
	)
	return removed
}

// stateKey builds an order-sensitive composite key from a token window.
// Each token is length-prefixed, so differently split windows can never
// collide, whatever bytes the tokens contain.
func stateKey(tokens []string) string {
	var keyBuf []byte
	for _, token := range tokens {
		keyBuf = strconv.AppendInt(keyBuf, int64(len(token)), 10)
		keyBuf = append(keyBuf, ':')
		keyBuf = append(keyBuf, token...)
	}
	return string(keyBuf)
}

// sortedTransitions flattens a successor multiset into a deterministically
// ordered slice: descending count, then ascending token text.
func sortedTransitions(successors map[string]int) ([]Transition, int) {
	transitions := make([]Transition, 0, len(successors))
	var total int
	for token, count := range successors {
		transitions = append(transitions, Transition{Token: token, Count: count})
		total += count
	}
	slices.SortFunc(transitions, func(a, b Transition) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Token, b.Token)
	})
	return transitions, total
}
