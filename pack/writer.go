package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

const headerSize = 16

const (
	flagLSBFirst = 1 << iota
	flagInverted
)

var magic = [4]byte{'E', 'P', 'D', '1'}

type header struct {
	Magic        [4]byte
	Width        uint16
	Height       uint16
	BitsPerPixel uint8
	Flags        uint8
	Stride       uint16
	Checksum     uint32
}

func (h *header) flags(b *Buffer) {
	h.Flags = 0
	if b.Order == LSBFirst {
		h.Flags |= flagLSBFirst
	}
	if b.Inverted {
		h.Flags |= flagInverted
	}
}

type encoder struct {
	w io.Writer
}

func (e *encoder) encode(b *Buffer) error {
	if err := b.validate(); err != nil {
		return err
	}
	if b.Width > math.MaxUint16 || b.Height > math.MaxUint16 || b.Stride > math.MaxUint16 {
		return fmt.Errorf("%w: %dx%d is too large to encode", ErrBadBuffer, b.Width, b.Height)
	}

	h := header{
		Magic:        magic,
		Width:        uint16(b.Width),
		Height:       uint16(b.Height),
		BitsPerPixel: uint8(b.BitsPerPixel),
		Stride:       uint16(b.Stride),
		Checksum:     crc32.ChecksumIEEE(b.Pix),
	}
	h.flags(b)

	if err := binary.Write(e.w, binary.LittleEndian, &h); err != nil {
		return err
	}

	if _, err := e.w.Write(b.Pix); err != nil {
		return err
	}

	return nil
}

// Encode writes b to w in container format.
func Encode(w io.Writer, b *Buffer) error {
	e := encoder{w: w}
	return e.encode(b)
}

// MarshalBinary encodes the buffer in container format and returns the
// result.
func (b *Buffer) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := Encode(buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
