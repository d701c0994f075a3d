// Package bitfont holds bitmap fonts in the layout the KS0108 driver draws:
// for each character, column by column, each column holding its 8-row page
// bands from top to bottom, bit 0 on top.
package bitfont

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Font is a fixed-width bitmap font covering the codes First..First+n-1.
type Font struct {
	W, H  int    // glyph cell in pixels
	First byte   // code of the first glyph in Data
	Data  []byte // W*Pages() bytes per glyph
}

// New returns a Font after checking that data holds whole glyphs.
func New(w, h int, first byte, data []byte) (*Font, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.New("bitfont: glyph size must be positive")
	}
	f := &Font{W: w, H: h, First: first, Data: data}
	if n := f.glyphSize(); len(data)%n != 0 {
		return nil, fmt.Errorf("bitfont: %d bytes is not a multiple of the %d byte glyph size", len(data), n)
	}
	if int(first)+f.Len() > 256 {
		return nil, errors.New("bitfont: glyphs past code 255")
	}
	return f, nil
}

// Width returns the glyph cell width.
func (f *Font) Width() int { return f.W }

// Height returns the glyph cell height, which is also the line advance.
func (f *Font) Height() int { return f.H }

// Pages returns the number of 8-row bands per glyph.
func (f *Font) Pages() int { return (f.H + 7) / 8 }

// Len returns the number of glyphs.
func (f *Font) Len() int { return len(f.Data) / f.glyphSize() }

func (f *Font) glyphSize() int { return f.W * f.Pages() }

// Glyph returns the bitmap of c, or false if c is outside the font.
func (f *Font) Glyph(c byte) ([]byte, bool) {
	if c < f.First {
		return nil, false
	}
	n := f.glyphSize()
	i := int(c-f.First) * n
	if i+n > len(f.Data) {
		return nil, false
	}
	return f.Data[i : i+n : i+n], true
}

// FromFace rasterizes the codes first..last of face into a w x h cell. The
// baseline is placed at the face's ascent. Pixels with at least half coverage
// are lit.
func FromFace(face font.Face, w, h int, first, last byte) (*Font, error) {
	if last < first {
		return nil, errors.New("bitfont: last code before first")
	}
	f := &Font{W: w, H: h, First: first}
	if w <= 0 || h <= 0 {
		return nil, errors.New("bitfont: glyph size must be positive")
	}
	pages := f.Pages()
	ascent := face.Metrics().Ascent.Ceil()

	f.Data = make([]byte, 0, (int(last)-int(first)+1)*w*pages)
	for c := int(first); c <= int(last); c++ {
		img := image.NewAlpha(image.Rect(0, 0, w, pages*8))
		dr := font.Drawer{
			Dst:  img,
			Src:  image.Opaque,
			Face: face,
			Dot:  fixed.P(0, ascent),
		}
		dr.DrawString(string(rune(c)))
		for x := 0; x < w; x++ {
			for p := 0; p < pages; p++ {
				var b byte
				for k := 0; k < 8; k++ {
					if y := p*8 + k; y < h && img.AlphaAt(x, y).A >= 0x80 {
						b |= 1 << k
					}
				}
				f.Data = append(f.Data, b)
			}
		}
	}
	return f, nil
}

// Pad returns a copy of f with cols blank columns added to the right of every
// glyph.
func (f *Font) Pad(cols int) *Font {
	pages := f.Pages()
	n := f.glyphSize()
	out := &Font{W: f.W + cols, H: f.H, First: f.First}
	out.Data = make([]byte, 0, f.Len()*out.glyphSize())
	for i := 0; i+n <= len(f.Data); i += n {
		out.Data = append(out.Data, f.Data[i:i+n]...)
		out.Data = append(out.Data, make([]byte, cols*pages)...)
	}
	return out
}
