/*
Package pack converts palette index buffers to and from the packed bit layout
expected by limited-color display controllers.

Each index occupies BitsPerPixel bits. Rows always start on a byte boundary so
a row of Width pixels takes Stride = ceil(Width*BitsPerPixel/8) bytes and any
unused bits at the end of a row are zero. With MSBFirst the first pixel of a
row lands in the most significant bits of the first byte, with LSBFirst it
lands in the least significant bits. When BitsPerPixel does not divide eight,
as with 3 bits per pixel, an index may straddle two bytes.

A Buffer can also be stored on its own using a small container: a 16 byte
little-endian header followed by the packed rows.

	offset  size  field
	     0     4  magic "EPD1"
	     4     2  width
	     6     2  height
	     8     1  bits per pixel
	     9     1  flags (bit 0 LSB first, bit 1 inverted)
	    10     2  stride
	    12     4  CRC-32 (IEEE) of the packed rows
*/
package pack

import (
	"errors"
	"fmt"
	"image"

	"github.com/bodgit/epaper/diffuse"
	"github.com/bodgit/epaper/palette"
)

// MaxBitsPerPixel is the widest index Pack will accept.
const MaxBitsPerPixel = 8

var (
	// ErrInvalidIndex is returned when an index does not fit in the
	// requested number of bits, or is outside the palette.
	ErrInvalidIndex = errors.New("pack: invalid index")
	// ErrInvalidDepth is returned for a bits per pixel value outside
	// 1 to MaxBitsPerPixel.
	ErrInvalidDepth = errors.New("pack: invalid bits per pixel")
	// ErrBadBuffer is returned when a Buffer's fields disagree with each
	// other or with the length of Pix.
	ErrBadBuffer = errors.New("pack: malformed buffer")
)

// BitsPerPixel returns the number of bits needed to store an index into a
// palette of n colors, with a minimum of 1.
func BitsPerPixel(n int) int {
	return palette.Depth(n)
}

// Stride returns the number of bytes used by a row of width pixels.
func Stride(width, bitsPerPixel int) int {
	return (width*bitsPerPixel + 7) >> 3
}

// Buffer holds packed index rows.
type Buffer struct {
	Pix          []byte
	Width        int
	Height       int
	BitsPerPixel int
	Stride       int
	Order        BitOrder
	// Inverted is set when every index was XORed with the all-ones mask
	// before packing.
	Inverted bool
}

func (b *Buffer) mask() uint8 {
	return uint8(1<<b.BitsPerPixel - 1)
}

func (b *Buffer) validate() error {
	switch {
	case b == nil:
		return fmt.Errorf("%w: nil buffer", ErrBadBuffer)
	case b.BitsPerPixel < 1 || b.BitsPerPixel > MaxBitsPerPixel:
		return fmt.Errorf("%w: %d", ErrInvalidDepth, b.BitsPerPixel)
	case b.Order != MSBFirst && b.Order != LSBFirst:
		return fmt.Errorf("%w: unknown bit order %d", ErrBadBuffer, b.Order)
	case b.Width < 0 || b.Height < 0:
		return fmt.Errorf("%w: negative size %dx%d", ErrBadBuffer, b.Width, b.Height)
	case b.Stride != Stride(b.Width, b.BitsPerPixel):
		return fmt.Errorf("%w: stride %d, expected %d", ErrBadBuffer, b.Stride, Stride(b.Width, b.BitsPerPixel))
	case len(b.Pix) != b.Stride*b.Height:
		return fmt.Errorf("%w: %d bytes, expected %d", ErrBadBuffer, len(b.Pix), b.Stride*b.Height)
	}
	return nil
}

// Bounds returns the buffer size as a rectangle anchored at (0, 0).
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// Paletted unpacks b and renders it with p. Every index must be a valid
// entry in p.
func (b *Buffer) Paletted(p *palette.Palette) (*image.Paletted, error) {
	ib, err := Unpack(b)
	if err != nil {
		return nil, err
	}
	for _, i := range ib.Pix {
		if int(i) >= p.Len() {
			return nil, fmt.Errorf("%w: %d is outside a palette of %d colors", ErrInvalidIndex, i, p.Len())
		}
	}
	return ib.Paletted(p), nil
}

type options struct {
	invert bool
	colors int
}

// Option configures Pack.
type Option func(*options)

// WithInvert XORs every index with (1<<bitsPerPixel)-1 before packing, for
// panels whose native pixel format is inverted.
func WithInvert() Option {
	return func(o *options) {
		o.invert = true
	}
}

// WithPaletteSize rejects any index that is not a valid entry in a palette
// of n colors, not just those too wide for the bit depth.
func WithPaletteSize(n int) Option {
	return func(o *options) {
		o.colors = n
	}
}

// Pack packs the indices in ib using bitsPerPixel bits each. Every index
// must be less than 1<<bitsPerPixel. That alone lets through an index past
// the end of a palette whose size is not a power of two, such as 6 with
// five colors at 3 bits; pass WithPaletteSize to reject those as well.
// Nothing is returned on error.
func Pack(ib *diffuse.IndexBuffer, bitsPerPixel int, order BitOrder, opts ...Option) (*Buffer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if bitsPerPixel < 1 || bitsPerPixel > MaxBitsPerPixel {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, bitsPerPixel)
	}
	if order != MSBFirst && order != LSBFirst {
		return nil, fmt.Errorf("%w: unknown bit order %d", ErrBadBuffer, order)
	}
	if ib == nil || ib.Width < 0 || ib.Height < 0 || len(ib.Pix) != ib.Width*ib.Height {
		return nil, fmt.Errorf("%w: malformed index buffer", diffuse.ErrDimensionMismatch)
	}

	b := &Buffer{
		Width:        ib.Width,
		Height:       ib.Height,
		BitsPerPixel: bitsPerPixel,
		Stride:       Stride(ib.Width, bitsPerPixel),
		Order:        order,
		Inverted:     o.invert,
	}

	mask := b.mask()
	for i, v := range ib.Pix {
		if v > mask {
			return nil, fmt.Errorf("%w: %d at (%d, %d) does not fit in %d bits", ErrInvalidIndex, v, i%ib.Width, i/ib.Width, bitsPerPixel)
		}
		if o.colors > 0 && int(v) >= o.colors {
			return nil, fmt.Errorf("%w: %d at (%d, %d) is outside a palette of %d colors", ErrInvalidIndex, v, i%ib.Width, i/ib.Width, o.colors)
		}
	}

	b.Pix = make([]byte, b.Stride*b.Height)

	for y := 0; y < ib.Height; y++ {
		w := newBitWriter(b.Pix[y*b.Stride:(y+1)*b.Stride], order)
		for _, v := range ib.Pix[y*ib.Width : (y+1)*ib.Width] {
			if o.invert {
				v ^= mask
			}
			w.write(v, bitsPerPixel)
		}
	}

	return b, nil
}

// Unpack is the inverse of Pack.
func Unpack(b *Buffer) (*diffuse.IndexBuffer, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	ib := diffuse.NewIndexBuffer(b.Width, b.Height)
	mask := b.mask()

	for y := 0; y < b.Height; y++ {
		r := newBitReader(b.Pix[y*b.Stride:(y+1)*b.Stride], b.Order)
		row := ib.Pix[y*ib.Width : (y+1)*ib.Width]
		for x := range row {
			v := r.read(b.BitsPerPixel)
			if b.Inverted {
				v ^= mask
			}
			row[x] = v
		}
	}

	return ib, nil
}
