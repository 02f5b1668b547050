package epaper

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/bodgit/epaper/diffuse"
	"github.com/bodgit/epaper/palette"
	"github.com/makeworld-the-better-one/dither/v2"
)

// Dither selects how colors outside the palette are approximated.
type Dither string

// Supported dither modes.
const (
	FloydSteinberg    Dither = "floyd-steinberg"
	NoDither          Dither = "none"
	Atkinson          Dither = "atkinson"
	Burkes            Dither = "burkes"
	JarvisJudiceNinke Dither = "jarvis-judice-ninke"
	Sierra            Dither = "sierra"
	SierraLite        Dither = "sierra-lite"
	Stucki            Dither = "stucki"
	Bayer             Dither = "bayer"
)

var matrices = map[Dither]dither.ErrorDiffusionMatrix{
	Atkinson:          dither.Atkinson,
	Burkes:            dither.Burkes,
	JarvisJudiceNinke: dither.JarvisJudiceNinke,
	Sierra:            dither.Sierra,
	SierraLite:        dither.SierraLite,
	Stucki:            dither.Stucki,
}

// DitherNames returns every accepted dither mode, sorted.
func DitherNames() []string {
	names := []string{string(FloydSteinberg), string(NoDither), string(Bayer)}
	for d := range matrices {
		names = append(names, string(d))
	}
	sort.Strings(names)
	return names
}

// ParseDither returns the dither mode called s. An empty string selects
// FloydSteinberg.
func ParseDither(s string) (Dither, error) {
	d := Dither(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case "":
		return FloydSteinberg, nil
	case FloydSteinberg, NoDither, Bayer:
		return d, nil
	}
	if _, ok := matrices[d]; ok {
		return d, nil
	}
	return "", fmt.Errorf("epaper: unknown dither mode %q", s)
}

func (d Dither) String() string {
	return string(d)
}

// quantize maps m onto p using mode d. Only FloydSteinberg and NoDither use
// the palette's own metric; the other modes match colors themselves.
func quantize(m image.Image, p *palette.Palette, d Dither) (*diffuse.IndexBuffer, error) {
	switch d {
	case FloydSteinberg:
		return diffuse.Quantize(diffuse.NewPixelBufferFromImage(m), p)
	case NoDither:
		return diffuse.Nearest(diffuse.NewPixelBufferFromImage(m), p)
	}

	if p.Len() == 0 {
		return nil, fmt.Errorf("%w: no colors", palette.ErrInvalidPalette)
	}

	dd := dither.NewDitherer(p.ColorPalette())
	if dd == nil {
		// Fewer than two colors, nothing to dither between
		return diffuse.Nearest(diffuse.NewPixelBufferFromImage(m), p)
	}

	switch d {
	case Bayer:
		dd.Mapper = dither.Bayer(8, 8, 1.0)
	default:
		matrix, ok := matrices[d]
		if !ok {
			return nil, fmt.Errorf("epaper: unknown dither mode %q", d)
		}
		dd.Matrix = matrix
	}

	pm := dd.DitherPaletted(m)

	// Map back through the colors rather than trusting the ditherer's
	// index order
	b := pm.Bounds()
	ib := diffuse.NewIndexBuffer(b.Dx(), b.Dy())
	for y := 0; y < ib.Height; y++ {
		for x := 0; x < ib.Width; x++ {
			c := palette.ColorFrom(pm.At(b.Min.X+x, b.Min.Y+y))
			ib.Set(x, y, uint8(p.NearestIndex(c)))
		}
	}
	return ib, nil
}
