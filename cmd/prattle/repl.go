package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"

	"github.com/prattle-dev/prattle/pkg/markov"
)

// runREPL reads seed phrases line by line and prints a generated
// continuation for each. An empty line starts from a random state.
func runREPL(m *markov.Model, outputSize int, logger *slog.Logger) error {
	rl, err := readline.New("prattle> ")
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	logger.Info("Interactive mode, Ctrl-D to exit",
		slog.Int("state_size", m.Order()),
		slog.Int("output_size", outputSize),
	)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		seed, err := markov.Tokenize(strings.NewReader(line))
		if err != nil {
			return err
		}
		generated, err := m.Generate(seed, markov.WithMaxTokens(outputSize))
		if err != nil {
			if errors.Is(err, markov.ErrInvalidConfig) {
				fmt.Printf("seed phrase needs at least %d tokens\n", m.Order())
				continue
			}
			return err
		}

		output := append(seed, generated...)
		if len(output) == 0 {
			fmt.Println("(no output, model has no matching transitions)")
			continue
		}
		fmt.Println(strings.Join(output, " "))
	}
}
