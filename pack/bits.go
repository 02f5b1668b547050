package pack

import (
	"fmt"
	"strings"
)

// BitOrder selects where the first pixel of a row lands within a byte and
// which bit of each index is written first.
type BitOrder int

const (
	// MSBFirst puts the first pixel in the most significant bits and
	// writes each index most significant bit first.
	MSBFirst BitOrder = iota
	// LSBFirst puts the first pixel in the least significant bits and
	// writes each index least significant bit first.
	LSBFirst
)

var bitOrderNames = map[BitOrder]string{
	MSBFirst: "msb",
	LSBFirst: "lsb",
}

func (o BitOrder) String() string {
	if s, ok := bitOrderNames[o]; ok {
		return s
	}
	return fmt.Sprintf("BitOrder(%d)", int(o))
}

// ParseBitOrder accepts "msb" or "lsb", optionally suffixed with "-first",
// in any case.
func ParseBitOrder(s string) (BitOrder, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "-first")
	for o, name := range bitOrderNames {
		if s == name {
			return o, nil
		}
	}
	return 0, fmt.Errorf("pack: unknown bit order %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (o BitOrder) MarshalText() ([]byte, error) {
	if _, ok := bitOrderNames[o]; !ok {
		return nil, fmt.Errorf("pack: unknown bit order %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *BitOrder) UnmarshalText(text []byte) error {
	v, err := ParseBitOrder(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// bitWriter appends values to a zeroed byte slice one bit at a time.
type bitWriter struct {
	b     []byte
	pos   int
	order BitOrder
}

func newBitWriter(b []byte, order BitOrder) *bitWriter {
	return &bitWriter{b: b, order: order}
}

func (w *bitWriter) write(v uint8, n int) {
	for i := 0; i < n; i++ {
		var bit uint8
		if w.order == MSBFirst {
			bit = v >> (n - 1 - i) & 1
			w.b[w.pos>>3] |= bit << (7 - w.pos&7)
		} else {
			bit = v >> i & 1
			w.b[w.pos>>3] |= bit << (w.pos & 7)
		}
		w.pos++
	}
}

type bitReader struct {
	b     []byte
	pos   int
	order BitOrder
}

func newBitReader(b []byte, order BitOrder) *bitReader {
	return &bitReader{b: b, order: order}
}

func (r *bitReader) read(n int) (v uint8) {
	for i := 0; i < n; i++ {
		if r.order == MSBFirst {
			bit := r.b[r.pos>>3] >> (7 - r.pos&7) & 1
			v |= bit << (n - 1 - i)
		} else {
			bit := r.b[r.pos>>3] >> (r.pos & 7) & 1
			v |= bit << i
		}
		r.pos++
	}
	return
}
