/*
Package epaper converts images into packed frames for limited-color displays
such as e-paper panels and grayscale OLEDs.

A Converter resizes an image to the panel, maps every pixel onto the panel
palette, dithering by default, and packs the resulting palette indices into
the bit layout the panel controller expects. Converted frames can be kept in
a FrameDB and a whole directory of images can be converted at once with
Scan.
*/
package epaper

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/bodgit/epaper/diffuse"
	"github.com/bodgit/epaper/pack"
	"github.com/bodgit/epaper/palette"
	"github.com/bodgit/epaper/profile"
)

// Options configures a Converter.
type Options struct {
	// Width and Height of the panel. Zero keeps the image size.
	Width  int
	Height int

	// Palette is the fixed panel palette. If nil, a palette of Adaptive
	// colors is derived from each image.
	Palette  *palette.Palette
	Adaptive int

	// BitsPerPixel overrides the depth implied by the palette size.
	BitsPerPixel int
	BitOrder     pack.BitOrder
	Invert       bool

	Dither Dither
	Resize Resize
	// Background fills any area not covered by the image. Defaults to
	// white.
	Background color.Color

	// Profile is the name recorded with stored frames.
	Profile string

	// Workers is the number of images Scan converts at once. Defaults
	// to 10.
	Workers int
}

// Converter turns images into packed frames.
type Converter struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Converter. A nil logger discards everything.
func New(opts Options, logger *slog.Logger) (*Converter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var err error
	if opts.Dither, err = ParseDither(string(opts.Dither)); err != nil {
		return nil, err
	}
	if opts.Resize, err = ParseResize(string(opts.Resize)); err != nil {
		return nil, err
	}

	if opts.Width < 0 || opts.Height < 0 || (opts.Width == 0) != (opts.Height == 0) {
		return nil, fmt.Errorf("epaper: invalid size %dx%d", opts.Width, opts.Height)
	}

	colors := opts.Adaptive
	switch {
	case opts.Palette != nil && opts.Palette.Len() > 0:
		colors = opts.Palette.Len()
	case opts.Adaptive < 1 || opts.Adaptive > palette.MaxColors:
		return nil, fmt.Errorf("%w: need a palette or between 1 and %d adaptive colors", palette.ErrInvalidPalette, palette.MaxColors)
	}

	if opts.BitsPerPixel != 0 {
		if opts.BitsPerPixel < pack.BitsPerPixel(colors) || opts.BitsPerPixel > pack.MaxBitsPerPixel {
			return nil, fmt.Errorf("%w: %d bits per pixel for %d colors", pack.ErrInvalidDepth, opts.BitsPerPixel, colors)
		}
	}

	if opts.Background == nil {
		opts.Background = color.White
	}
	if opts.Workers <= 0 {
		opts.Workers = 10
	}

	return &Converter{
		opts:   opts,
		logger: logger,
	}, nil
}

// OptionsFromProfile returns the Options described by p.
func OptionsFromProfile(p *profile.Profile) (Options, error) {
	if err := p.Validate(); err != nil {
		return Options{}, err
	}

	pal, err := p.Palette()
	if err != nil {
		return Options{}, err
	}

	return Options{
		Width:        p.Width,
		Height:       p.Height,
		Palette:      pal,
		BitsPerPixel: p.BitsPerPixel,
		BitOrder:     p.BitOrder,
		Invert:       p.Invert,
		Dither:       Dither(p.Dither),
		Resize:       Resize(p.Resize),
		Profile:      p.Name,
	}, nil
}

// Options returns the options in use, with defaults applied.
func (c *Converter) Options() Options {
	return c.opts
}

func (c *Converter) quantize(m image.Image) (*diffuse.IndexBuffer, *palette.Palette, error) {
	if m == nil {
		return nil, nil, errors.New("epaper: nil image")
	}

	rgba := resize(m, c.opts.Width, c.opts.Height, c.opts.Resize, c.opts.Background)

	p := c.opts.Palette
	if p == nil {
		var err error
		if p, err = palette.FromImage(rgba, c.opts.Adaptive); err != nil {
			return nil, nil, err
		}
		c.logger.Debug("derived palette", "colors", p.Len())
	}

	ib, err := quantize(rgba, p, c.opts.Dither)
	if err != nil {
		return nil, nil, err
	}

	return ib, p, nil
}

func (c *Converter) depth(p *palette.Palette) int {
	if c.opts.BitsPerPixel != 0 {
		return c.opts.BitsPerPixel
	}
	return pack.BitsPerPixel(p.Len())
}

// Convert resizes, quantizes and packs m.
func (c *Converter) Convert(m image.Image) (*pack.Buffer, error) {
	b, _, err := c.convert(m)
	return b, err
}

func (c *Converter) convert(m image.Image) (*pack.Buffer, *palette.Palette, error) {
	ib, p, err := c.quantize(m)
	if err != nil {
		return nil, nil, err
	}

	opts := []pack.Option{pack.WithPaletteSize(p.Len())}
	if c.opts.Invert {
		opts = append(opts, pack.WithInvert())
	}

	b, err := pack.Pack(ib, c.depth(p), c.opts.BitOrder, opts...)
	if err != nil {
		return nil, nil, err
	}

	c.logger.Debug("converted image",
		"width", b.Width,
		"height", b.Height,
		"colors", p.Len(),
		"bits_per_pixel", b.BitsPerPixel,
		"dither", c.opts.Dither)

	return b, p, nil
}

// Preview returns m as it would appear on the panel.
func (c *Converter) Preview(m image.Image) (*image.Paletted, error) {
	ib, p, err := c.quantize(m)
	if err != nil {
		return nil, err
	}
	return ib.Paletted(p), nil
}
