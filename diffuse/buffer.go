package diffuse

import (
	"image"

	"github.com/bodgit/epaper/palette"
)

// PixelBuffer is a width by height grid of colors stored row-major with the
// origin at the top-left. The pixel at (x, y) is Pix[y*Width+x].
type PixelBuffer struct {
	Pix    []palette.Color
	Width  int
	Height int
}

// NewPixelBuffer returns a black PixelBuffer of the given size.
func NewPixelBuffer(width, height int) *PixelBuffer {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &PixelBuffer{
		Pix:    make([]palette.Color, width*height),
		Width:  width,
		Height: height,
	}
}

// NewPixelBufferFromImage copies m into a new PixelBuffer. The top-left
// corner of m's bounds becomes (0, 0).
func NewPixelBufferFromImage(m image.Image) *PixelBuffer {
	b := m.Bounds()
	pb := NewPixelBuffer(b.Dx(), b.Dy())

	switch src := m.(type) {
	case *image.RGBA:
		for y := 0; y < pb.Height; y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := pb.Pix[y*pb.Width : (y+1)*pb.Width]
			for x := range row {
				row[x] = palette.Color{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2]}
				i += 4
			}
		}
	default:
		for y := 0; y < pb.Height; y++ {
			for x := 0; x < pb.Width; x++ {
				pb.Pix[y*pb.Width+x] = palette.ColorFrom(m.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}

	return pb
}

// At returns the color at (x, y).
func (pb *PixelBuffer) At(x, y int) palette.Color {
	return pb.Pix[y*pb.Width+x]
}

// Set sets the color at (x, y).
func (pb *PixelBuffer) Set(x, y int, c palette.Color) {
	pb.Pix[y*pb.Width+x] = c
}

func (pb *PixelBuffer) valid() bool {
	return pb != nil && pb.Width >= 0 && pb.Height >= 0 && len(pb.Pix) == pb.Width*pb.Height
}

// IndexBuffer is a width by height grid of palette indices laid out the
// same way as PixelBuffer.
type IndexBuffer struct {
	Pix    []uint8
	Width  int
	Height int
}

// NewIndexBuffer returns an IndexBuffer of the given size with every index
// set to zero.
func NewIndexBuffer(width, height int) *IndexBuffer {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &IndexBuffer{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

// At returns the index at (x, y).
func (ib *IndexBuffer) At(x, y int) uint8 {
	return ib.Pix[y*ib.Width+x]
}

// Set sets the index at (x, y).
func (ib *IndexBuffer) Set(x, y int, i uint8) {
	ib.Pix[y*ib.Width+x] = i
}

// Bounds returns the buffer size as a rectangle anchored at (0, 0).
func (ib *IndexBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, ib.Width, ib.Height)
}

// Paletted returns an image.Paletted that shares nothing with ib, using p
// for the color lookup.
func (ib *IndexBuffer) Paletted(p *palette.Palette) *image.Paletted {
	m := image.NewPaletted(ib.Bounds(), p.ColorPalette())
	for y := 0; y < ib.Height; y++ {
		copy(m.Pix[y*m.Stride:], ib.Pix[y*ib.Width:(y+1)*ib.Width])
	}
	return m
}

// NewIndexBufferFromPaletted copies the indices of m.
func NewIndexBufferFromPaletted(m *image.Paletted) *IndexBuffer {
	b := m.Bounds()
	ib := NewIndexBuffer(b.Dx(), b.Dy())
	for y := 0; y < ib.Height; y++ {
		i := m.PixOffset(b.Min.X, b.Min.Y+y)
		copy(ib.Pix[y*ib.Width:(y+1)*ib.Width], m.Pix[i:i+ib.Width])
	}
	return ib
}

func (ib *IndexBuffer) valid() bool {
	return ib != nil && ib.Width >= 0 && ib.Height >= 0 && len(ib.Pix) == ib.Width*ib.Height
}
