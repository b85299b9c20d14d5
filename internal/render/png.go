package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// Raster draws the scene into an RGBA image, legend included.
func Raster(s Scene) *image.RGBA {
	w := int(math.Ceil(s.Surface.Width)) + LegendWidth
	h := int(math.Ceil(s.Surface.Height))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	surface := image.Rect(0, 0, int(s.Surface.Width), int(s.Surface.Height))
	strokeRect(img, surface, Unassigned)

	for _, m := range s.Markers {
		fillDisc(img, m.Center.X, m.Center.Y, m.Radius, m.Fill)
		drawLabel(img, int(math.Round(m.LabelPos.X)), int(math.Round(m.LabelPos.Y)), m.Label)
	}

	if s.Band != nil {
		band := image.Rect(
			int(math.Floor(s.Band.X)), int(math.Floor(s.Band.Y)),
			int(math.Ceil(s.Band.X+s.Band.Width)), int(math.Ceil(s.Band.Y+s.Band.Height)),
		)
		draw.Draw(img, band.Intersect(surface), image.NewUniform(BandFill), image.Point{}, draw.Over)
		strokeRect(img, band.Intersect(surface), BandStroke)
	}

	lx := surface.Max.X + 16
	for i, e := range s.Legend {
		y := 24 + i*22
		swatch := image.Rect(lx, y-11, lx+14, y+3)
		draw.Draw(img, swatch, image.NewUniform(e.Color), image.Point{}, draw.Src)
		if e.Active {
			strokeRect(img, swatch, Outline)
		}
		drawLabel(img, lx+22, y, fmt.Sprintf("Row %d (%d)", e.Row, e.Members))
	}
	return img
}

// WritePNG encodes the rasterized scene as PNG.
func WritePNG(w io.Writer, s Scene) error {
	return png.Encode(w, Raster(s))
}

// fillDisc rasterizes an anti-aliased disc into a small box around the
// center. Discs whose box leaves the image are skipped.
func fillDisc(dst *image.RGBA, cx, cy, r float64, c color.RGBA) {
	size := int(math.Ceil(2*r)) + 2
	minX := int(math.Floor(cx - r - 1))
	minY := int(math.Floor(cy - r - 1))
	box := image.Rect(minX, minY, minX+size, minY+size)
	if !box.In(dst.Bounds()) {
		return
	}

	// path coordinates are relative to the box origin
	x := float32(cx - float64(minX))
	y := float32(cy - float64(minY))
	rr := float32(r)
	k := float32(kappa) * rr

	z := vector.NewRasterizer(size, size)
	z.MoveTo(x+rr, y)
	z.CubeTo(x+rr, y+k, x+k, y+rr, x, y+rr)
	z.CubeTo(x-k, y+rr, x-rr, y+k, x-rr, y)
	z.CubeTo(x-rr, y-k, x-k, y-rr, x, y-rr)
	z.CubeTo(x+k, y-rr, x+rr, y-k, x+rr, y)
	z.ClosePath()
	z.Draw(dst, box, image.NewUniform(c), image.Point{})
}

func drawLabel(dst *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(LabelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// strokeRect draws a one pixel outline.
func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	u := image.NewUniform(c)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
}
