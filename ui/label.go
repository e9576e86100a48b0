package ui

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/flavioheleno/lcdkit"
	"github.com/flavioheleno/lcdkit/rgb565"
)

// face is the font used by all text widgets.
var face font.Face = basicfont.Face7x13

// textPadding is the horizontal inset of text inside its box.
const textPadding = 2

// LabelOpts are the presentation parameters of a Label.
type LabelOpts struct {
	Text   string
	FG, BG rgb565.Color // Both zero: white on black
}

// Label shows one line of text.
type Label struct {
	Base
	text   string
	fg, bg rgb565.Color
	img    *rgb565.Image
}

// NewLabel adds a label covering r to win.
func NewLabel(win *Window, r image.Rectangle, opts LabelOpts) (*Label, error) {
	if opts.FG == 0 && opts.BG == 0 {
		opts.FG, opts.BG = rgb565.White, rgb565.Black
	}
	l := &Label{text: opts.Text, fg: opts.FG, bg: opts.BG, img: rgb565.NewImage(r)}
	l.Init(win, r)
	if err := win.add(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Text returns the label text.
func (l *Label) Text() string {
	return l.text
}

// SetText replaces the text and runs the TextChanged callback. Setting the
// current text again does nothing.
func (l *Label) SetText(s string) error {
	if s == l.text {
		return nil
	}
	l.text = s
	l.Invalidate()
	_, err := l.Fire(TextChanged)
	return err
}

// Draw renders the label.
func (l *Label) Draw(c *lcdkit.Context) error {
	l.img.Fill(l.bg)
	drawText(l.img, l.rect, l.text, l.fg)
	return c.Draw(l.rect, l.img, l.rect.Min)
}

// drawText draws s left aligned and vertically centered in r, cut to fit.
func drawText(dst draw.Image, r image.Rectangle, s string, fg rgb565.Color) {
	s = fitText(s, r.Dx()-2*textPadding)
	if s == "" {
		return
	}
	m := face.Metrics()
	asc, desc := m.Ascent.Ceil(), m.Descent.Ceil()
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(r.Min.X+textPadding, r.Min.Y+(r.Dy()+asc-desc)/2),
	}
	d.DrawString(s)
}

// fitText returns the longest prefix of s no wider than width pixels.
func fitText(s string, width int) string {
	limit := fixed.I(width)
	if font.MeasureString(face, s) <= limit {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		if font.MeasureString(face, string(runes[:n])) <= limit {
			return string(runes[:n])
		}
	}
	return ""
}
