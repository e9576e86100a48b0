package lcdkit

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	"github.com/flavioheleno/lcdkit/driver"
	"github.com/flavioheleno/lcdkit/rgb565"
)

// Context grants exclusive access to draw on a Dev.
//
// At most one Context is open per Dev. Operations issued through it reach
// the panel in program order. A Context must not be held across a blocking
// wait for input.
type Context struct {
	d        *Dev
	released bool
}

// Acquire opens a drawing context, blocking while another one is open.
func (d *Dev) Acquire() (*Context, error) {
	d.mu.Lock()
	if d.halted {
		d.mu.Unlock()
		return nil, ErrHalted
	}
	return &Context{d: d}, nil
}

// TryAcquire opens a drawing context or returns ErrBusy if one is open.
func (d *Dev) TryAcquire() (*Context, error) {
	if !d.mu.TryLock() {
		return nil, ErrBusy
	}
	if d.halted {
		d.mu.Unlock()
		return nil, ErrHalted
	}
	return &Context{d: d}, nil
}

// Release closes the context. Only the first call has an effect.
func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	c.d.mu.Unlock()
}

// Bounds returns the panel bounds.
func (c *Context) Bounds() image.Rectangle {
	return c.d.rect
}

// Fill sets every pixel of r to col.
func (c *Context) Fill(r image.Rectangle, col rgb565.Color) error {
	if err := c.check(r); err != nil {
		return err
	}
	hi, lo := col.Bytes()
	next := c.d.next
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := next.PixOffset(r.Min.X, y)
		row := next.Pix[i : i+2*r.Dx()]
		for j := 0; j < len(row); j += 2 {
			row[j], row[j+1] = hi, lo
		}
	}
	return c.flush(r)
}

// WritePixels writes pix row by row into r. len(pix) must be r.Dx()*r.Dy().
func (c *Context) WritePixels(r image.Rectangle, pix []rgb565.Color) error {
	if err := c.check(r); err != nil {
		return err
	}
	if len(pix) != r.Dx()*r.Dy() {
		return fmt.Errorf("%w: %d pixels for a %dx%d region", driver.ErrInvalidParameter, len(pix), r.Dx(), r.Dy())
	}
	next := c.d.next
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			next.SetRGB565(x, y, pix[0])
			pix = pix[1:]
		}
	}
	return c.flush(r)
}

// Draw draws src onto dst with differential update optimization: only the
// smallest rectangle of pixels that actually changed is sent to the panel.
func (c *Context) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if err := c.check(dst); err != nil {
		return err
	}
	d := c.d

	draw.Draw(d.next, dst, src, sp, draw.Src)

	changed := calculateDiff(d.frame, d.next, dst)
	if changed.Empty() {
		return nil
	}
	return c.flush(changed)
}

// check validates r and the context state.
func (c *Context) check(r image.Rectangle) error {
	if c.released {
		return ErrReleased
	}
	return ValidateRegion(r, c.d.rect)
}

// flush sends r from the pending frame to the panel and records it as shown.
// On failure the pending pixels of r are rolled back so the two frames agree.
func (c *Context) flush(r image.Rectangle) error {
	if c.released {
		return ErrReleased
	}
	d := c.d
	if err := d.writeRect(r, d.next); err != nil {
		copyRegion(d.next, d.frame, r)
		return err
	}
	copyRegion(d.frame, d.next, r)
	return nil
}

// copyRegion copies the pixels of r from src to dst. Both images share bounds.
func copyRegion(dst, src *rgb565.Image, r image.Rectangle) {
	n := 2 * r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := src.PixOffset(r.Min.X, y)
		copy(dst.Pix[i:i+n], src.Pix[i:i+n])
	}
}

// calculateDiff compares cur and next inside area and returns the smallest
// rectangle containing every changed pixel, or an empty rectangle.
func calculateDiff(cur, next *rgb565.Image, area image.Rectangle) image.Rectangle {
	minX, maxX := area.Max.X, area.Min.X-1
	minY, maxY := area.Max.Y, area.Min.Y-1
	n := 2 * area.Dx()

	// Scan row by row to find differences
	for y := area.Min.Y; y < area.Max.Y; y++ {
		i := cur.PixOffset(area.Min.X, y)
		a, b := cur.Pix[i:i+n], next.Pix[i:i+n]
		if bytes.Equal(a, b) {
			continue
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		// Scan pixels within this row for precise boundaries
		for j := 0; j < n; j += 2 {
			if a[j] != b[j] || a[j+1] != b[j+1] {
				x := area.Min.X + j/2
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
			}
		}
	}

	if maxY < minY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
