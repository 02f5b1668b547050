package pack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

var (
	// ErrNotEnough is returned when the container is truncated.
	ErrNotEnough = errors.New("pack: not enough data")
	// ErrTooMuch is returned when data follows the packed rows.
	ErrTooMuch = errors.New("pack: too much data")
	// ErrBadMagic is returned when the container does not start with the
	// expected magic bytes.
	ErrBadMagic = errors.New("pack: bad magic")
	// ErrBadHeader is returned when the header fields are inconsistent.
	ErrBadHeader = errors.New("pack: bad header")
	// ErrChecksum is returned when the packed rows do not match the
	// checksum in the header.
	ErrChecksum = errors.New("pack: checksum mismatch")
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Config describes a container without its packed rows.
type Config struct {
	Width        int
	Height       int
	BitsPerPixel int
	Stride       int
	Order        BitOrder
	Inverted     bool
}

type decoder struct {
	r io.Reader

	h      header
	buffer *Buffer

	tmp [headerSize]byte
}

func (d *decoder) readHeader() error {
	if err := readFull(d.r, d.tmp[:]); err != nil {
		return err
	}

	if err := binary.Read(bytes.NewReader(d.tmp[:]), binary.LittleEndian, &d.h); err != nil {
		return err
	}

	if d.h.Magic != magic {
		return ErrBadMagic
	}

	if d.h.Flags&^(flagLSBFirst|flagInverted) != 0 {
		return fmt.Errorf("%w: unknown flags %#02x", ErrBadHeader, d.h.Flags)
	}

	if bpp := int(d.h.BitsPerPixel); bpp < 1 || bpp > MaxBitsPerPixel {
		return fmt.Errorf("%w: %d bits per pixel", ErrBadHeader, bpp)
	}

	if want := Stride(int(d.h.Width), int(d.h.BitsPerPixel)); int(d.h.Stride) != want {
		return fmt.Errorf("%w: stride %d, expected %d", ErrBadHeader, d.h.Stride, want)
	}

	return nil
}

func (d *decoder) config() Config {
	c := Config{
		Width:        int(d.h.Width),
		Height:       int(d.h.Height),
		BitsPerPixel: int(d.h.BitsPerPixel),
		Stride:       int(d.h.Stride),
		Order:        MSBFirst,
		Inverted:     d.h.Flags&flagInverted != 0,
	}
	if d.h.Flags&flagLSBFirst != 0 {
		c.Order = LSBFirst
	}
	return c
}

func (d *decoder) decode(r io.Reader, configOnly bool) error {
	d.r = r

	if err := d.readHeader(); err != nil {
		if err != io.ErrUnexpectedEOF {
			return err
		}
		return ErrNotEnough
	}

	if configOnly {
		return nil
	}

	c := d.config()

	// Pix grows with the data read, never with the size the header claims
	size := c.Stride * c.Height
	var pix bytes.Buffer
	if _, err := pix.ReadFrom(io.LimitReader(d.r, int64(size))); err != nil {
		return err
	}
	if pix.Len() < size {
		return ErrNotEnough
	}

	d.buffer = &Buffer{
		Pix:          pix.Bytes(),
		Width:        c.Width,
		Height:       c.Height,
		BitsPerPixel: c.BitsPerPixel,
		Stride:       c.Stride,
		Order:        c.Order,
		Inverted:     c.Inverted,
	}

	if n, err := r.Read(d.tmp[:1]); n != 0 || (err != io.EOF && err != io.ErrUnexpectedEOF) {
		if err != nil {
			return err
		}
		return ErrTooMuch
	}

	if crc32.ChecksumIEEE(d.buffer.Pix) != d.h.Checksum {
		return ErrChecksum
	}

	return nil
}

// Decode reads a container from r and returns the packed buffer. r must
// hold exactly one container.
func Decode(r io.Reader) (*Buffer, error) {
	var d decoder
	if err := d.decode(r, false); err != nil {
		return nil, err
	}
	return d.buffer, nil
}

// DecodeConfig returns the layout of a container without reading the
// packed rows.
func DecodeConfig(r io.Reader) (Config, error) {
	var d decoder
	if err := d.decode(r, true); err != nil {
		return Config{}, err
	}
	return d.config(), nil
}

// UnmarshalBinary decodes a container, replacing the contents of b.
func (b *Buffer) UnmarshalBinary(data []byte) error {
	nb, err := Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*b = *nb
	return nil
}
