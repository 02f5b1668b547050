package palette

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ericpauley/go-quantize/quantize"
)

// FromImage derives a palette of at most n colors from m using median cut.
// Colors that collapse to the same 8-bit value are merged so the result may
// be smaller than n.
func FromImage(m image.Image, n int, opts ...Option) (*Palette, error) {
	if n < 1 || n > MaxColors {
		return nil, fmt.Errorf("%w: cannot derive %d colors", ErrInvalidPalette, n)
	}

	q := quantize.MedianCutQuantizer{}
	cp := q.Quantize(make(color.Palette, 0, n), m)

	colors := make([]Color, 0, len(cp))
	seen := make(map[Color]struct{}, len(cp))
	for _, c := range cp {
		pc := ColorFrom(c)
		if _, ok := seen[pc]; ok {
			continue
		}
		seen[pc] = struct{}{}
		colors = append(colors, pc)
	}

	return New(colors, opts...)
}
