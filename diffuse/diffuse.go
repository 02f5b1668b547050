/*
Package diffuse maps full color pixels onto a palette using Floyd-Steinberg
error diffusion.

Pixels are visited left to right, top to bottom. The difference between each
pixel's error-adjusted color and the palette color chosen for it is pushed
onto the four neighbours that have not been visited yet:

	        *    7/16
	3/16  5/16   1/16

Error that would land outside the image is dropped. Error-adjusted colors are
clamped to 0-255 before matching, which loses some error energy in saturated
areas.
*/
package diffuse

import (
	"errors"
	"fmt"

	"github.com/bodgit/epaper/palette"
)

// ErrDimensionMismatch is returned when the source and destination buffers
// are not the same size, or a buffer's pixel slice does not match its size.
var ErrDimensionMismatch = errors.New("diffuse: dimension mismatch")

// Error is stored in sixteenths so every kernel weight applies exactly.
const (
	fracBits = 4
	unit     = 1 << fracBits
	half     = unit >> 1
)

var floydSteinberg = [...]struct {
	dx, dy int
	w      int32
}{
	{1, 0, 7},
	{-1, 1, 3},
	{0, 1, 5},
	{1, 1, 1},
}

type channels [3]int32

// accumulator is the per-conversion error grid, addressed y*width+x.
type accumulator struct {
	width, height int
	e             []channels
}

func newAccumulator(width, height int) *accumulator {
	return &accumulator{
		width:  width,
		height: height,
		e:      make([]channels, width*height),
	}
}

// effective returns c adjusted by the error accumulated at (x, y), rounded
// to the nearest whole value and clamped to the channel range.
func (a *accumulator) effective(x, y int, c palette.Color) palette.Color {
	e := &a.e[y*a.width+x]
	return palette.Color{
		R: clamp((int32(c.R)<<fracBits + e[0] + half) >> fracBits),
		G: clamp((int32(c.G)<<fracBits + e[1] + half) >> fracBits),
		B: clamp((int32(c.B)<<fracBits + e[2] + half) >> fracBits),
	}
}

// diffuse spreads err from (x, y) onto the unvisited neighbours and returns
// the total weight, in sixteenths, that fell outside the grid.
func (a *accumulator) diffuse(x, y int, err channels) (dropped int32) {
	for _, k := range floydSteinberg {
		nx, ny := x+k.dx, y+k.dy
		if nx < 0 || nx >= a.width || ny >= a.height {
			dropped += k.w
			continue
		}
		e := &a.e[ny*a.width+nx]
		e[0] += err[0] * k.w
		e[1] += err[1] * k.w
		e[2] += err[2] * k.w
	}
	return
}

func clamp(v int32) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 0xff:
		return 0xff
	}
	return uint8(v)
}

func validate(dst *IndexBuffer, src *PixelBuffer, p *palette.Palette) error {
	if p.Len() == 0 {
		return fmt.Errorf("%w: no colors", palette.ErrInvalidPalette)
	}
	if !src.valid() {
		return fmt.Errorf("%w: malformed source buffer", ErrDimensionMismatch)
	}
	if !dst.valid() {
		return fmt.Errorf("%w: malformed destination buffer", ErrDimensionMismatch)
	}
	if dst.Width != src.Width || dst.Height != src.Height {
		return fmt.Errorf("%w: source is %dx%d, destination is %dx%d", ErrDimensionMismatch, src.Width, src.Height, dst.Width, dst.Height)
	}
	return nil
}

// Quantize returns the palette indices for src with the quantization error
// diffused.
func Quantize(src *PixelBuffer, p *palette.Palette) (*IndexBuffer, error) {
	if !src.valid() {
		return nil, fmt.Errorf("%w: malformed source buffer", ErrDimensionMismatch)
	}
	dst := NewIndexBuffer(src.Width, src.Height)
	if err := QuantizeInto(dst, src, p); err != nil {
		return nil, err
	}
	return dst, nil
}

// QuantizeInto is like Quantize but writes into dst, which must be the same
// size as src.
func QuantizeInto(dst *IndexBuffer, src *PixelBuffer, p *palette.Palette) error {
	if err := validate(dst, src, p); err != nil {
		return err
	}

	acc := newAccumulator(src.Width, src.Height)

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			c := acc.effective(x, y, src.Pix[y*src.Width+x])
			i := p.NearestIndex(c)
			pc := p.At(i)

			acc.diffuse(x, y, channels{
				int32(c.R) - int32(pc.R),
				int32(c.G) - int32(pc.G),
				int32(c.B) - int32(pc.B),
			})

			dst.Pix[y*dst.Width+x] = uint8(i)
		}
	}

	return nil
}

// Nearest maps every pixel of src to its nearest palette index without any
// error diffusion.
func Nearest(src *PixelBuffer, p *palette.Palette) (*IndexBuffer, error) {
	if !src.valid() {
		return nil, fmt.Errorf("%w: malformed source buffer", ErrDimensionMismatch)
	}
	dst := NewIndexBuffer(src.Width, src.Height)
	if err := validate(dst, src, p); err != nil {
		return nil, err
	}
	for i, c := range src.Pix {
		dst.Pix[i] = uint8(p.NearestIndex(c))
	}
	return dst, nil
}
