// Package rgb565 provides the 16-bit RGB565 pixel format used by the lcdkit panels.
//
// Each pixel is 5 bits red, 6 bits green and 5 bits blue packed in a uint16.
// Image stores pixels big-endian, two bytes per pixel, which is the order the
// panel expects on the wire, so a row of an Image can be streamed unchanged.
package rgb565

import (
	"image"
	"image/color"
)

// Color is a 16-bit RGB565 color: rrrrrggggggbbbbb.
type Color uint16

// Common colors.
const (
	Black Color = 0x0000
	White Color = 0xFFFF
	Red   Color = 0xF800
	Green Color = 0x07E0
	Blue  Color = 0x001F
)

// RGB builds a Color from 8-bit components, dropping the low bits.
func RGB(r, g, b uint8) Color {
	return Color(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// RGBA converts the color to 16-bit per channel RGBA.
// The 5 and 6 bit channels are replicated into the low bits so that
// full intensity maps to 0xFFFF.
func (c Color) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c>>11) & 0x1F
	g6 := uint32(c>>5) & 0x3F
	b5 := uint32(c) & 0x1F
	r = (r5<<11 | r5<<6 | r5<<1 | r5>>4)
	g = (g6<<10 | g6<<4 | g6>>2)
	b = (b5<<11 | b5<<6 | b5<<1 | b5>>4)
	return r, g, b, 0xFFFF
}

// Bytes returns the big-endian wire representation of the color.
func (c Color) Bytes() (hi, lo byte) {
	return byte(c >> 8), byte(c)
}

func toRGB565(c color.Color) color.Color {
	if v, ok := c.(Color); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	return RGB(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Model converts colors to Color.
var Model = color.ModelFunc(toRGB565)

// Image is an in-memory image of RGB565 pixels stored big-endian.
type Image struct {
	Pix    []byte          // Pixel data, 2 bytes per pixel
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// NewImage returns an Image with the given bounds.
func NewImage(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]byte, 2*w*h),
		Stride: 2 * w,
		Rect:   r,
	}
}

// ColorModel returns Model.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At implements image.Image.
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the pixel at (x, y), or Black outside the bounds.
func (p *Image) RGB565At(x, y int) Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Black
	}
	i := p.PixOffset(x, y)
	return Color(uint16(p.Pix[i])<<8 | uint16(p.Pix[i+1]))
}

// Set implements draw.Image.
func (p *Image) Set(x, y int, c color.Color) {
	p.SetRGB565(x, y, Model.Convert(c).(Color))
}

// SetRGB565 sets the pixel at (x, y). Writes outside the bounds are ignored.
func (p *Image) SetRGB565(x, y int, c Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	p.Pix[i], p.Pix[i+1] = c.Bytes()
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

// Fill sets every pixel to c.
func (p *Image) Fill(c Color) {
	hi, lo := c.Bytes()
	for i := 0; i+1 < len(p.Pix); i += 2 {
		p.Pix[i], p.Pix[i+1] = hi, lo
	}
}
