package epaper

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/bodgit/epaper/pack"
	"github.com/bodgit/epaper/palette"
	"github.com/bodgit/epaper/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	black = palette.Color{}
	white = palette.Color{R: 255, G: 255, B: 255}
)

func mustPalette(t *testing.T, colors ...palette.Color) *palette.Palette {
	t.Helper()
	p, err := palette.New(colors)
	require.NoError(t, err)
	return p
}

func uniform(w, h int, c color.Color) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(m, m.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return m
}

func TestNewErrors(t *testing.T) {
	bw := mustPalette(t, black, white)
	five := mustPalette(t, black, white, palette.Color{R: 255}, palette.Color{G: 255}, palette.Color{B: 255})

	tests := []struct {
		name string
		opts Options
	}{
		{"no palette", Options{}},
		{"too many adaptive colors", Options{Adaptive: 17}},
		{"bad dither", Options{Palette: bw, Dither: "random"}},
		{"bad resize", Options{Palette: bw, Resize: "stretch"}},
		{"width only", Options{Palette: bw, Width: 10}},
		{"negative size", Options{Palette: bw, Width: -1, Height: -1}},
		{"depth too small", Options{Palette: five, BitsPerPixel: 2}},
		{"depth too large", Options{Palette: bw, BitsPerPixel: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts, nil)
			assert.Error(t, err)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Options{Palette: mustPalette(t, black, white)}, nil)
	require.NoError(t, err)

	opts := c.Options()
	assert.Equal(t, FloydSteinberg, opts.Dither)
	assert.Equal(t, Fit, opts.Resize)
	assert.Equal(t, color.White, opts.Background)
	assert.Equal(t, 10, opts.Workers)
}

func TestConvertMidGray(t *testing.T) {
	c, err := New(Options{Palette: mustPalette(t, black, white)}, nil)
	require.NoError(t, err)

	b, err := c.Convert(uniform(2, 2, color.RGBA{128, 128, 128, 255}))
	require.NoError(t, err)

	assert.Equal(t, 2, b.Width)
	assert.Equal(t, 2, b.Height)
	assert.Equal(t, 1, b.BitsPerPixel)
	assert.Equal(t, []byte{0x80, 0x40}, b.Pix)
}

func TestConvertFit(t *testing.T) {
	c, err := New(Options{
		Palette: mustPalette(t, black, white),
		Width:   8,
		Height:  4,
		Dither:  NoDither,
	}, nil)
	require.NoError(t, err)

	b, err := c.Convert(uniform(2, 2, color.Black))
	require.NoError(t, err)

	assert.Equal(t, []byte{0xc3, 0xc3, 0xc3, 0xc3}, b.Pix)
}

func TestConvertInvert(t *testing.T) {
	c, err := New(Options{
		Palette: mustPalette(t, black, white),
		Invert:  true,
	}, nil)
	require.NoError(t, err)

	b, err := c.Convert(uniform(8, 1, color.White))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, b.Pix)
	assert.True(t, b.Inverted)

	ib, err := pack.Unpack(b)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 1, 1, 1, 1, 1, 1, 1}, ib.Pix)
}

func TestConvertProfile(t *testing.T) {
	p, err := profile.Preset("inky-impression-7")
	require.NoError(t, err)

	opts, err := OptionsFromProfile(p)
	require.NoError(t, err)
	assert.Equal(t, "inky-impression-7", opts.Profile)

	c, err := New(opts, nil)
	require.NoError(t, err)

	b, err := c.Convert(uniform(40, 24, color.RGBA{245, 80, 34, 255}))
	require.NoError(t, err)

	assert.Equal(t, 800, b.Width)
	assert.Equal(t, 480, b.Height)
	assert.Equal(t, 4, b.BitsPerPixel)
	assert.Equal(t, pack.MSBFirst, b.Order)
	assert.Len(t, b.Pix, 400*480)

	// The image exactly fills the panel so every pixel is red, index 4
	for _, v := range b.Pix {
		require.Equal(t, byte(0x44), v)
	}
}

func TestOptionsFromProfileInvalid(t *testing.T) {
	_, err := OptionsFromProfile(&profile.Profile{Name: "broken"})
	assert.ErrorIs(t, err, profile.ErrInvalidProfile)
}

func TestConvertAdaptive(t *testing.T) {
	m := image.NewRGBA(image.Rect(0, 0, 8, 8))
	draw.Draw(m, image.Rect(0, 0, 4, 8), image.NewUniform(color.RGBA{255, 0, 0, 255}), image.Point{}, draw.Src)
	draw.Draw(m, image.Rect(4, 0, 8, 8), image.NewUniform(color.RGBA{0, 0, 255, 255}), image.Point{}, draw.Src)

	c, err := New(Options{Adaptive: 4}, nil)
	require.NoError(t, err)

	pm, err := c.Preview(m)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(pm.Palette), 4)
	assert.NotEqual(t, pm.ColorIndexAt(0, 0), pm.ColorIndexAt(7, 7))

	left := palette.ColorFrom(pm.At(0, 0))
	assert.Greater(t, left.R, left.B)
	right := palette.ColorFrom(pm.At(7, 7))
	assert.Greater(t, right.B, right.R)

	b, err := c.Convert(m)
	require.NoError(t, err)
	assert.LessOrEqual(t, b.BitsPerPixel, 2)
}

func TestConvertNil(t *testing.T) {
	c, err := New(Options{Palette: mustPalette(t, black, white)}, nil)
	require.NoError(t, err)

	_, err = c.Convert(nil)
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	c, err := New(Options{Palette: mustPalette(t, black, white), Width: 4, Height: 4}, nil)
	require.NoError(t, err)

	pm, err := c.Preview(uniform(16, 16, color.Black))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), pm.Bounds())
	assert.Len(t, pm.Palette, 2)
	for _, v := range pm.Pix {
		assert.Equal(t, uint8(0), v)
	}
}
