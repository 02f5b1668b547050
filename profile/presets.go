package profile

import (
	"fmt"
	"sort"

	"github.com/bodgit/epaper/pack"
)

var presets = map[string]Profile{
	// Pimoroni Inky Impression 7.3", ACeP 7-color at a nibble per pixel
	"inky-impression-7": {
		Width:  800,
		Height: 480,
		Colors: []string{
			"#000000",
			"#d9f2ff",
			"#037c4c",
			"#1b2ec6",
			"#f55022",
			"#ffff44",
			"#ef792c",
		},
		BitsPerPixel: 4,
		BitOrder:     pack.MSBFirst,
		Resize:       "fit",
	},
	"waveshare-bw": {
		Width:    800,
		Height:   480,
		Colors:   []string{"#000000", "#ffffff"},
		BitOrder: pack.MSBFirst,
		Invert:   true,
		Resize:   "fit",
	},
	"waveshare-bwr": {
		Width:    800,
		Height:   480,
		Colors:   []string{"#000000", "#ffffff", "#ff0000"},
		BitOrder: pack.MSBFirst,
		Resize:   "fit",
	},
	// EZ-Sign 4.2" four color
	"ez-sign-4c": {
		Width:    400,
		Height:   300,
		Colors:   []string{"#000000", "#ffffff", "#ffff00", "#ff0000"},
		BitOrder: pack.MSBFirst,
		Resize:   "fill",
	},
	"gray4": {
		Width:    256,
		Height:   64,
		Colors:   []string{"#000000", "#555555", "#aaaaaa", "#ffffff"},
		BitOrder: pack.MSBFirst,
		Resize:   "fit",
	},
	// SSD1322 class OLED, 16 gray levels
	"gray16": {
		Width:  256,
		Height: 64,
		Colors: []string{
			"#000000", "#111111", "#222222", "#333333",
			"#444444", "#555555", "#666666", "#777777",
			"#888888", "#999999", "#aaaaaa", "#bbbbbb",
			"#cccccc", "#dddddd", "#eeeeee", "#ffffff",
		},
		BitOrder: pack.MSBFirst,
		Resize:   "fit",
	},
}

// Presets returns the names of the built-in profiles, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of the built-in profile called name.
func Preset(name string) (*Profile, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("profile: unknown preset %q", name)
	}
	p.Name = name
	p.Colors = append([]string(nil), p.Colors...)
	return &p, nil
}
