package profile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bodgit/epaper/pack"
	"github.com/bodgit/epaper/palette"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
name: badge
width: 296
height: 128
palette:
  - "#000000"
  - "#ffffff"
  - "#f00"
bit_order: lsb
invert: true
metric: weighted
dither: atkinson
`

func TestLoad(t *testing.T) {
	p, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "badge", p.Name)
	assert.Equal(t, 296, p.Width)
	assert.Equal(t, 128, p.Height)
	assert.Equal(t, pack.LSBFirst, p.BitOrder)
	assert.True(t, p.Invert)
	assert.Equal(t, "atkinson", p.Dither)
	assert.Equal(t, 2, p.Depth())

	pal, err := p.Palette()
	require.NoError(t, err)
	assert.Equal(t, 3, pal.Len())
	assert.Equal(t, palette.Color{R: 255}, pal.At(2))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"unknown field", sample + "contrast: 3\n"},
		{"missing name", "width: 1\nheight: 1\npalette: [\"#000000\"]\n"},
		{"zero width", "name: a\nwidth: 0\nheight: 1\npalette: [\"#000000\"]\n"},
		{"no colors", "name: a\nwidth: 1\nheight: 1\npalette: []\n"},
		{"bad color", "name: a\nwidth: 1\nheight: 1\npalette: [\"red\"]\n"},
		{"duplicate color", "name: a\nwidth: 1\nheight: 1\npalette: [\"#000000\", \"#000000\"]\n"},
		{"same color spelled differently", "name: a\nwidth: 1\nheight: 1\npalette: [\"#000\", \"#000000\"]\n"},
		{"bad bit order", "name: a\nwidth: 1\nheight: 1\npalette: [\"#000000\"]\nbit_order: middle\n"},
		{"bad dither", "name: a\nwidth: 1\nheight: 1\npalette: [\"#000000\"]\ndither: random\n"},
		{"depth too small", "name: a\nwidth: 1\nheight: 1\npalette: [\"#000000\", \"#ffffff\", \"#ff0000\"]\nbits_per_pixel: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestPresets(t *testing.T) {
	names := Presets()
	assert.Equal(t, []string{"ez-sign-4c", "gray16", "gray4", "inky-impression-7", "waveshare-bw", "waveshare-bwr"}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			p, err := Preset(name)
			require.NoError(t, err)
			assert.Equal(t, name, p.Name)
			require.NoError(t, p.Validate())

			// Presets survive a round trip through YAML
			buf := new(bytes.Buffer)
			require.NoError(t, Save(buf, p))
			q, err := Load(buf)
			require.NoError(t, err)
			assert.Equal(t, p, q)
		})
	}

	_, err := Preset("nope")
	assert.Error(t, err)
}

func TestPresetIsCopy(t *testing.T) {
	p, err := Preset("gray4")
	require.NoError(t, err)
	p.Colors[0] = "#123456"

	q, err := Preset("gray4")
	require.NoError(t, err)
	assert.Equal(t, "#000000", q.Colors[0])
}

func TestInkyDepth(t *testing.T) {
	p, err := Preset("inky-impression-7")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Depth())

	pal, err := p.Palette()
	require.NoError(t, err)
	assert.Equal(t, 7, pal.Len())
}

func TestLookup(t *testing.T) {
	p, err := Lookup("waveshare-bw")
	require.NoError(t, err)
	assert.True(t, p.Invert)

	file := filepath.Join(t.TempDir(), "badge.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sample), 0o644))

	p, err = Lookup(file)
	require.NoError(t, err)
	assert.Equal(t, "badge", p.Name)

	_, err = Lookup(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
