/*
Package palette implements the fixed set of colors a limited-color display
can physically render, together with the nearest-color rule used to map any
other color onto it.

A Palette holds between 1 and 16 distinct entries. Entries are addressed by
their position so the order passed to New must match the order the display
firmware expects.
*/
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math/bits"
)

const (
	// MaxBitDepth is the deepest supported index, giving 16 colors
	MaxBitDepth = 4
	// MaxColors is the largest palette that can be created
	MaxColors = 1 << MaxBitDepth
)

// ErrInvalidPalette is returned when a palette is empty, holds more colors
// than the configured bit depth can address or contains duplicate colors.
var ErrInvalidPalette = errors.New("palette: invalid palette")

// Palette is an ordered, immutable set of colors. It is safe for concurrent
// use.
type Palette struct {
	colors []Color
	metric Metric
}

type config struct {
	bitDepth int
	metric   Metric
}

// Option configures a Palette created with New.
type Option func(*config) error

// WithBitDepth limits the palette to 1<<bits colors. The default is
// MaxBitDepth.
func WithBitDepth(bits int) Option {
	return func(c *config) error {
		if bits < 1 || bits > MaxBitDepth {
			return fmt.Errorf("%w: bit depth %d out of range 1-%d", ErrInvalidPalette, bits, MaxBitDepth)
		}
		c.bitDepth = bits
		return nil
	}
}

// WithMetric replaces the default SquaredEuclidean distance used by
// NearestIndex.
func WithMetric(m Metric) Option {
	return func(c *config) error {
		if m == nil {
			return fmt.Errorf("%w: nil metric", ErrInvalidPalette)
		}
		c.metric = m
		return nil
	}
}

// New returns a palette containing colors, in order.
func New(colors []Color, opts ...Option) (*Palette, error) {
	c := config{
		bitDepth: MaxBitDepth,
		metric:   SquaredEuclidean,
	}
	for _, o := range opts {
		if err := o(&c); err != nil {
			return nil, err
		}
	}

	if len(colors) == 0 {
		return nil, fmt.Errorf("%w: no colors", ErrInvalidPalette)
	}
	if limit := 1 << c.bitDepth; len(colors) > limit {
		return nil, fmt.Errorf("%w: %d colors exceeds %d for %d-bit depth", ErrInvalidPalette, len(colors), limit, c.bitDepth)
	}

	seen := make(map[Color]int, len(colors))
	for i, col := range colors {
		if j, ok := seen[col]; ok {
			return nil, fmt.Errorf("%w: color %v at index %d duplicates index %d", ErrInvalidPalette, col, i, j)
		}
		seen[col] = i
	}

	return &Palette{
		colors: append([]Color(nil), colors...),
		metric: c.metric,
	}, nil
}

// FromColorPalette converts a standard library palette, see New.
func FromColorPalette(p color.Palette, opts ...Option) (*Palette, error) {
	colors := make([]Color, len(p))
	for i, c := range p {
		colors[i] = ColorFrom(c)
	}
	return New(colors, opts...)
}

// Len returns the number of colors.
func (p *Palette) Len() int {
	if p == nil {
		return 0
	}
	return len(p.colors)
}

// At returns the color at index i.
func (p *Palette) At(i int) Color {
	return p.colors[i]
}

// Colors returns a copy of the colors in index order.
func (p *Palette) Colors() []Color {
	return append([]Color(nil), p.colors...)
}

// BitDepth returns the minimum number of bits needed to address every
// color, never less than one.
func (p *Palette) BitDepth() int {
	return Depth(p.Len())
}

// Depth returns ceil(log2(n)) with a minimum of one.
func Depth(n int) int {
	if n <= 2 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

// NearestIndex returns the index of the color closest to c. Ties go to the
// lowest index.
func (p *Palette) NearestIndex(c Color) int {
	best, bestDist := 0, uint32(1<<32-1)
	for i, pc := range p.colors {
		if d := p.metric(c, pc); d < bestDist {
			if d == 0 {
				return i
			}
			best, bestDist = i, d
		}
	}
	return best
}

// ColorPalette returns the palette as a color.Palette, suitable for
// image.Paletted.
func (p *Palette) ColorPalette() color.Palette {
	cp := make(color.Palette, len(p.colors))
	for i, c := range p.colors {
		cp[i] = c
	}
	return cp
}
