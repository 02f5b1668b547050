package epaper

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

// Resize selects how an image is fitted to the panel.
type Resize string

// Supported resize modes.
const (
	// Fit scales the image to fit inside the panel, keeping its aspect
	// ratio, and centers it on the background color.
	Fit Resize = "fit"
	// Fill scales the image to cover the whole panel, keeping its aspect
	// ratio, and crops the excess equally from both sides.
	Fill Resize = "fill"
	// NoResize places the image at the top-left corner unscaled, cropping
	// or padding with the background color.
	NoResize Resize = "none"
)

// ParseResize returns the resize mode called s. An empty string selects
// Fit.
func ParseResize(s string) (Resize, error) {
	switch r := Resize(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return Fit, nil
	case Fit, Fill, NoResize:
		return r, nil
	}
	return "", fmt.Errorf("epaper: unknown resize mode %q", s)
}

func (r Resize) String() string {
	return string(r)
}

// scaleRect returns where an image of size src lands in a w by h canvas.
func scaleRect(src image.Point, w, h int, mode Resize) image.Rectangle {
	var dw, dh int
	wider := src.X*h > src.Y*w

	switch mode {
	case NoResize:
		return image.Rectangle{Max: src}
	case Fill:
		if wider {
			dw, dh = src.X*h/src.Y, h
		} else {
			dw, dh = w, src.Y*w/src.X
		}
	default:
		if wider {
			dw, dh = w, src.Y*w/src.X
		} else {
			dw, dh = src.X*h/src.Y, h
		}
	}

	dw, dh = max(dw, 1), max(dh, 1)
	x, y := (w-dw)/2, (h-dh)/2

	return image.Rect(x, y, x+dw, y+dh)
}

// resize returns m fitted to a w by h canvas. A zero size keeps the
// original dimensions. The result always has its origin at (0, 0).
func resize(m image.Image, w, h int, mode Resize, bg color.Color) *image.RGBA {
	sr := m.Bounds()

	if w == 0 || h == 0 {
		w, h = sr.Dx(), sr.Dy()
		mode = NoResize
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	if sr.Empty() {
		return dst
	}

	dr := scaleRect(sr.Size(), w, h, mode)
	if mode == NoResize {
		draw.Draw(dst, dr, m, sr.Min, draw.Over)
		return dst
	}

	draw.CatmullRom.Scale(dst, dr, m, sr, draw.Over, nil)

	return dst
}
