package markov

import (
	"bufio"
	"errors"
	"io"
)

// maxTokenSize bounds a single token read from a stream, so pathological
// input without any whitespace cannot grow the scanner buffer unbounded.
const maxTokenSize = 1 << 20

// TokenStream is a stateful tokenizer that splits an io.Reader into
// whitespace-delimited tokens, returning one token per Next call.
type TokenStream struct {
	scanner *bufio.Scanner
}

// NewTokenStream returns a TokenStream reading from r. Tokens are split on
// runs of whitespace (space, tab, newline, carriage return); no case
// normalization or punctuation stripping is performed, so "Hamlet," and
// "Hamlet" are distinct tokens.
func NewTokenStream(r io.Reader) *TokenStream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTokenSize)
	scanner.Split(bufio.ScanWords)
	return &TokenStream{scanner: scanner}
}

// Next returns the next token from the stream. It returns io.EOF as the
// error when the stream is fully consumed. Any other error indicates a
// problem reading from the underlying stream.
func (s *TokenStream) Next() (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

// Tokenize drains r into an ordered slice of non-empty tokens. Empty or
// all-whitespace input yields an empty slice.
func Tokenize(r io.Reader) ([]string, error) {
	stream := NewTokenStream(r)
	tokens := []string{}
	for {
		token, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return tokens, nil
			}
			return nil, err
		}
		tokens = append(tokens, token)
	}
}
