package palette

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	black  = Color{0, 0, 0}
	white  = Color{255, 255, 255}
	red    = Color{255, 0, 0}
	green  = Color{0, 255, 0}
	blue   = Color{0, 0, 255}
	yellow = Color{255, 255, 0}
	orange = Color{255, 165, 0}
)

func TestNew(t *testing.T) {
	sixteen := make([]Color, 16)
	for i := range sixteen {
		sixteen[i] = Color{uint8(i * 17), uint8(i * 17), uint8(i * 17)}
	}

	tests := []struct {
		name    string
		colors  []Color
		opts    []Option
		wantErr bool
	}{
		{"single color", []Color{black}, nil, false},
		{"black and white", []Color{black, white}, nil, false},
		{"sixteen grays", sixteen, nil, false},
		{"empty", nil, nil, true},
		{"seventeen colors", append(sixteen, red), nil, true},
		{"duplicate", []Color{black, white, black}, nil, true},
		{"three colors at 1 bit", []Color{black, white, red}, []Option{WithBitDepth(1)}, true},
		{"four colors at 2 bits", []Color{black, white, red, yellow}, []Option{WithBitDepth(2)}, false},
		{"bit depth zero", []Color{black}, []Option{WithBitDepth(0)}, true},
		{"bit depth five", []Color{black}, []Option{WithBitDepth(5)}, true},
		{"nil metric", []Color{black}, []Option{WithMetric(nil)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.colors, tt.opts...)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPalette)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.colors), p.Len())
			assert.Equal(t, tt.colors, p.Colors())
		})
	}
}

func TestNewCopiesColors(t *testing.T) {
	colors := []Color{black, white}
	p, err := New(colors)
	require.NoError(t, err)

	colors[0] = red
	assert.Equal(t, black, p.At(0))

	out := p.Colors()
	out[1] = red
	assert.Equal(t, white, p.At(1))
}

func TestDepth(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{7, 3},
		{8, 3},
		{9, 4},
		{16, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Depth(tt.n), "Depth(%d)", tt.n)
	}
}

func TestNearestIndex(t *testing.T) {
	p, err := New([]Color{black, white, green, blue, red, yellow, orange})
	require.NoError(t, err)

	tests := []struct {
		name string
		c    Color
		want int
	}{
		{"exact black", black, 0},
		{"exact orange", orange, 6},
		{"dark gray", Color{40, 40, 40}, 0},
		{"light gray", Color{220, 220, 220}, 1},
		{"dark red", Color{200, 30, 20}, 4},
		{"olive yellow", Color{230, 230, 40}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.NearestIndex(tt.c))
		})
	}
}

func TestNearestIndexTieBreak(t *testing.T) {
	// 128 is equidistant from 127 and 129
	p, err := New([]Color{{129, 129, 129}, {127, 127, 127}})
	require.NoError(t, err)
	assert.Equal(t, 0, p.NearestIndex(Color{128, 128, 128}))

	p, err = New([]Color{{127, 127, 127}, {129, 129, 129}})
	require.NoError(t, err)
	assert.Equal(t, 0, p.NearestIndex(Color{128, 128, 128}))
}

func TestNearestIndexExhaustive(t *testing.T) {
	p, err := New([]Color{black, white, red, yellow})
	require.NoError(t, err)

	// Compare against a brute force minimum over a coarse grid.
	for r := 0; r < 256; r += 15 {
		for g := 0; g < 256; g += 15 {
			for b := 0; b < 256; b += 15 {
				c := Color{uint8(r), uint8(g), uint8(b)}
				got := p.NearestIndex(c)
				for i := 0; i < p.Len(); i++ {
					require.LessOrEqual(t, SquaredEuclidean(c, p.At(got)), SquaredEuclidean(c, p.At(i)), "color %v", c)
				}
			}
		}
	}
}

func TestWithMetric(t *testing.T) {
	// Equal squared distance but green differences weigh more
	c := Color{100, 100, 100}
	a := Color{110, 100, 100}
	b := Color{100, 110, 100}
	assert.Equal(t, SquaredEuclidean(c, a), SquaredEuclidean(c, b))

	p, err := New([]Color{b, a}, WithMetric(WeightedEuclidean))
	require.NoError(t, err)
	assert.Equal(t, 1, p.NearestIndex(c))
}

func TestMetricByName(t *testing.T) {
	m, err := MetricByName("")
	require.NoError(t, err)
	assert.Equal(t, uint32(3*255*255), m(black, white))

	m, err = MetricByName("Weighted")
	require.NoError(t, err)
	assert.Equal(t, uint32(9*255*255), m(black, white))

	_, err = MetricByName("cie2000")
	assert.Error(t, err)

	assert.Equal(t, []string{"euclidean", "weighted"}, MetricNames())
}

func TestColor(t *testing.T) {
	r, g, b, a := Color{0x12, 0x80, 0xff}.RGBA()
	assert.Equal(t, []uint32{0x1212, 0x8080, 0xffff, 0xffff}, []uint32{r, g, b, a})

	assert.Equal(t, Color{0x12, 0x80, 0xff}, ColorFrom(color.RGBA{0x12, 0x80, 0xff, 0xff}))
	assert.Equal(t, white, ColorFrom(color.White))
	assert.Equal(t, "#1280ff", Color{0x12, 0x80, 0xff}.String())
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#000000", black, false},
		{"ffffff", white, false},
		{"#F50", Color{0xff, 0x55, 0x00}, false},
		{" #d9f2ff ", Color{0xd9, 0xf2, 0xff}, false},
		{"#12345", Color{}, true},
		{"#gggggg", Color{}, true},
		{"", Color{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseHex(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}

	assert.Panics(t, func() { MustParseHex("nope") })
}

func TestColorPalette(t *testing.T) {
	p, err := New([]Color{black, white, red})
	require.NoError(t, err)

	cp := p.ColorPalette()
	require.Len(t, cp, 3)
	assert.Equal(t, 2, cp.Index(color.RGBA{250, 10, 10, 255}))

	q, err := FromColorPalette(cp)
	require.NoError(t, err)
	assert.Equal(t, p.Colors(), q.Colors())
}

func TestFromImage(t *testing.T) {
	m := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				m.Set(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				m.Set(x, y, color.RGBA{0, 0, 255, 255})
			}
		}
	}

	p, err := FromImage(m, 4)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Len(), 4)
	assert.Contains(t, p.Colors(), red)
	assert.Contains(t, p.Colors(), blue)

	_, err = FromImage(m, 0)
	assert.ErrorIs(t, err, ErrInvalidPalette)
	_, err = FromImage(m, 17)
	assert.ErrorIs(t, err, ErrInvalidPalette)
}

func TestNewBitDepthLimit(t *testing.T) {
	_, err := New([]Color{black, white, red}, WithBitDepth(1))
	assert.ErrorIs(t, err, ErrInvalidPalette)
	assert.ErrorContains(t, err, "3 colors exceeds 2 for 1-bit depth")
}
