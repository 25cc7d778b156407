/*
Package markov implements a word-level Markov chain text model: a
whitespace tokenizer, a frequency-counting transition table, a
weighted-random generator with injectable randomness, and a compact,
self-describing binary encoding for persistence.

A model is trained in a single pass over a token sequence and is read-only
afterwards; generation never mutates the table. Raw integer counts are
stored instead of normalized probabilities, so serialization round-trips
exactly with no floating-point drift.

For usage examples, see the README.md file.
*/
package markov
