// Package profile describes display panels: their size, the colors they can
// show and how they expect pixels to be packed.
package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bodgit/epaper/pack"
	"github.com/bodgit/epaper/palette"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidProfile is returned when a profile fails validation.
var ErrInvalidProfile = errors.New("profile: invalid profile")

// Profile describes a display panel.
type Profile struct {
	Name   string `yaml:"name" validate:"required"`
	Width  int    `yaml:"width" validate:"min=1,max=65535"`
	Height int    `yaml:"height" validate:"min=1,max=65535"`
	// Colors lists the panel colors in index order as "#rrggbb" strings.
	Colors []string `yaml:"palette" validate:"min=1,max=16,unique,dive,hexcolor"`
	// BitsPerPixel forces a wider index than the palette needs, for
	// controllers that expect e.g. a nibble per pixel with 7 colors.
	BitsPerPixel int           `yaml:"bits_per_pixel,omitempty" validate:"omitempty,min=1,max=8"`
	BitOrder     pack.BitOrder `yaml:"bit_order"`
	Invert       bool          `yaml:"invert,omitempty"`
	Dither       string        `yaml:"dither,omitempty" validate:"omitempty,oneof=floyd-steinberg none atkinson burkes jarvis-judice-ninke sierra sierra-lite stucki bayer"`
	Metric       string        `yaml:"metric,omitempty" validate:"omitempty,oneof=euclidean weighted"`
	Resize       string        `yaml:"resize,omitempty" validate:"omitempty,oneof=fit fill none"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the profile is usable.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, validationMessage(err))
	}
	if _, err := p.Palette(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if p.BitsPerPixel != 0 && p.BitsPerPixel < pack.BitsPerPixel(len(p.Colors)) {
		return fmt.Errorf("%w: %d bits per pixel cannot index %d colors", ErrInvalidProfile, p.BitsPerPixel, len(p.Colors))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		switch ve.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", ve.Field()))
		case "hexcolor":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a hex color", ve.Field(), ve.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", ve.Field(), ve.Param()))
		case "unique":
			msgs = append(msgs, fmt.Sprintf("%s contains duplicates", ve.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", ve.Field(), ve.Tag(), ve.Param()))
		}
	}
	return strings.Join(msgs, ", ")
}

// Palette builds the panel palette.
func (p *Profile) Palette() (*palette.Palette, error) {
	colors := make([]palette.Color, len(p.Colors))
	for i, s := range p.Colors {
		c, err := palette.ParseHex(s)
		if err != nil {
			return nil, err
		}
		colors[i] = c
	}

	var opts []palette.Option
	if p.Metric != "" {
		m, err := palette.MetricByName(p.Metric)
		if err != nil {
			return nil, err
		}
		opts = append(opts, palette.WithMetric(m))
	}

	return palette.New(colors, opts...)
}

// Depth returns the number of bits used for each packed pixel.
func (p *Profile) Depth() int {
	if p.BitsPerPixel != 0 {
		return p.BitsPerPixel
	}
	return pack.BitsPerPixel(len(p.Colors))
}

// Load reads a single YAML profile from r and validates it.
func Load(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	p := new(Profile)
	if err := dec.Decode(p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidProfile)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// LoadFile is like Load but reads the named file.
func LoadFile(file string) (*Profile, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

// Lookup returns the preset called name, or if there isn't one, loads name
// as a file.
func Lookup(name string) (*Profile, error) {
	if p, err := Preset(name); err == nil {
		return p, nil
	}
	return LoadFile(name)
}

// Save writes p to w as YAML.
func Save(w io.Writer, p *Profile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}
