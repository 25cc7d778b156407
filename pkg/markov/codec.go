package markov

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// ErrCorruptModel is returned by UnmarshalModel when a buffer is
// truncated, internally inconsistent, or not a serialized model at all.
var ErrCorruptModel = errors.New("markov: corrupt model data")

// modelMagic prefixes every serialized model, so saved files can be told
// apart from plain text corpora by sniffing the first few bytes.
var modelMagic = [4]byte{'P', 'R', 'T', 'M'}

// codecVersion is the current binary format version. UnmarshalModel
// rejects buffers written by any other version.
const codecVersion = 1

// The binary layout, all integers little-endian:
//
//	magic "PRTM" | version u8 | state size u32 | state count u32
//	per state:     state size * (u32 length + token bytes)
//	               successor count u32
//	per successor: u32 length + token bytes | count u32
//
// Token strings are length-prefixed rather than delimited, so the format
// stays valid even for tokens containing whitespace or control bytes.
// States are written in sorted key order and successors in descending
// count order, making the encoding independent of map insertion order.

// IsModelData reports whether data begins with the serialized-model magic
// bytes.
func IsModelData(data []byte) bool {
	return len(data) >= len(modelMagic) && bytes.Equal(data[:len(modelMagic)], modelMagic[:])
}

// MarshalBinary encodes the model, including its state size, into a
// self-describing binary buffer. The encoding is deterministic: two models
// with the same contents produce identical buffers regardless of how they
// were built. It implements encoding.BinaryMarshaler.
func (m *Model) MarshalBinary() ([]byte, error) {
	if m.order < 1 || uint64(m.order) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: state size %d not encodable", ErrInvalidConfig, m.order)
	}
	if uint64(len(m.states)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d states not encodable", ErrInvalidConfig, len(m.states))
	}

	var buf bytes.Buffer
	buf.Write(modelMagic[:])
	buf.WriteByte(codecVersion)
	writeUint32(&buf, uint32(m.order))
	writeUint32(&buf, uint32(len(m.states)))

	for _, key := range slices.Sorted(maps.Keys(m.states)) {
		entry := m.states[key]
		for _, token := range entry.tokens {
			if err := writeString(&buf, token); err != nil {
				return nil, err
			}
		}

		writeUint32(&buf, uint32(len(entry.successors)))
		transitions, _ := sortedTransitions(entry.successors)
		for _, tr := range transitions {
			if err := writeString(&buf, tr.Token); err != nil {
				return nil, err
			}
			if tr.Count < 1 || uint64(tr.Count) > math.MaxUint32 {
				return nil, fmt.Errorf("%w: transition count %d for token %q not encodable", ErrInvalidConfig, tr.Count, tr.Token)
			}
			writeUint32(&buf, uint32(tr.Count))
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalModel decodes a buffer produced by MarshalBinary. It either
// returns a complete, internally consistent model or an error wrapping
// ErrCorruptModel; a partially populated model is never returned.
func UnmarshalModel(data []byte) (*Model, error) {
	r := &modelReader{data: data}

	magic, err := r.take(len(modelMagic))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, modelMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic bytes", ErrCorruptModel)
	}
	version, err := r.uint8()
	if err != nil {
		return nil, err
	}
	if version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptModel, version)
	}

	order, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if order == 0 {
		return nil, fmt.Errorf("%w: state size is zero", ErrCorruptModel)
	}
	stateCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	// Every state needs at least its token length prefixes, a successor
	// count, and one successor. Reject counts the buffer cannot hold
	// before allocating for them; dividing instead of multiplying keeps
	// a hostile order+count pair from overflowing the comparison.
	minStateBytes := 4*uint64(order) + 4 + 8
	if stateCount > 0 && uint64(r.remaining())/minStateBytes < uint64(stateCount) {
		return nil, fmt.Errorf("%w: state count %d exceeds buffer size", ErrCorruptModel, stateCount)
	}

	m := newModel(int(order))
	for range stateCount {
		tokens := make([]string, order)
		for i := range tokens {
			if tokens[i], err = r.str(); err != nil {
				return nil, err
			}
		}
		key := stateKey(tokens)
		if _, exists := m.states[key]; exists {
			return nil, fmt.Errorf("%w: duplicate state %q", ErrCorruptModel, key)
		}

		succCount, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if succCount == 0 {
			return nil, fmt.Errorf("%w: state %q has no successors", ErrCorruptModel, key)
		}
		// Each successor needs at least a length prefix and a count.
		if uint64(succCount) > uint64(r.remaining())/8 {
			return nil, fmt.Errorf("%w: successor count %d for state %q exceeds buffer size", ErrCorruptModel, succCount, key)
		}
		successors := make(map[string]int, succCount)
		for range succCount {
			token, err := r.str()
			if err != nil {
				return nil, err
			}
			count, err := r.uint32()
			if err != nil {
				return nil, err
			}
			if count == 0 {
				return nil, fmt.Errorf("%w: zero count for successor %q of state %q", ErrCorruptModel, token, key)
			}
			if _, exists := successors[token]; exists {
				return nil, fmt.Errorf("%w: duplicate successor %q for state %q", ErrCorruptModel, token, key)
			}
			successors[token] = int(count)
		}
		m.states[key] = &stateEntry{tokens: tokens, successors: successors}
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after model body", ErrCorruptModel, r.remaining())
	}
	return m, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) error {
	if uint64(len(s)) > math.MaxUint32 {
		return fmt.Errorf("%w: token of %d bytes not encodable", ErrInvalidConfig, len(s))
	}
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
	return nil
}

// modelReader walks a byte buffer with bounds checking, turning every
// overrun into an ErrCorruptModel.
type modelReader struct {
	data []byte
	off  int
}

func (r *modelReader) remaining() int {
	return len(r.data) - r.off
}

func (r *modelReader) take(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrCorruptModel, n, r.off, r.remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *modelReader) uint8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *modelReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *modelReader) str() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
