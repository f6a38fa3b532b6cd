// Package badge renders shields.io-style SVG status badges.
package badge

import (
	"fmt"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// defaultSize is the point size of badge text.
const defaultSize = 11

// Metrics holds measured glyph widths and the font data embedded in badges.
type Metrics struct {
	family   string
	size     float64
	data     []byte
	advances map[rune]float64 // printable ASCII
	fallback float64          // average width for unmapped runes
}

// TextWidth returns the pixel width of s.
func (m *Metrics) TextWidth(s string) float64 {
	var w float64
	for _, r := range s {
		if adv, ok := m.advances[r]; ok {
			w += adv
		} else {
			w += m.fallback
		}
	}
	return w
}

// LoadFont parses a TTF/OTF font and measures printable ASCII at size points.
func LoadFont(name string, data []byte, size float64) (*Metrics, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", name, err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72})
	if err != nil {
		return nil, fmt.Errorf("creating face for %s: %w", name, err)
	}
	defer face.Close()

	m := &Metrics{
		family:   name,
		size:     size,
		data:     data,
		advances: make(map[rune]float64, 95),
		fallback: size * 0.6,
	}

	var total float64
	for r := rune(32); r <= 126; r++ {
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			continue
		}
		px := float64(adv) / 64 // fixed.Int26_6
		m.advances[r] = px
		total += px
	}
	if n := len(m.advances); n > 0 {
		m.fallback = total / float64(n)
	}

	if family, err := f.Name(&sfnt.Buffer{}, sfnt.NameIDFamily); err == nil && family != "" {
		m.family = family
	}
	return m, nil
}

// DefaultFont returns metrics for the Go Regular font bundled with x/image.
func DefaultFont() (*Metrics, error) {
	return LoadFont("Go", goregular.TTF, defaultSize)
}
