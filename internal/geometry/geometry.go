// ============================================================================
// rowplan Geometry - data space to drawing surface transform
// ============================================================================
//
// Package: internal/geometry
// File: geometry.go
// Function: Maps hole coordinates (arbitrary units, arbitrary range) onto a
//           fixed-size logical drawing surface, and pointer positions on the
//           rendered surface back into that same logical space.
//
// Coordinate systems:
//   data space     - hole X/Y as uploaded, Y grows "north"
//   surface space  - Width x Height logical units, origin top-left, Y grows
//                    downward, with a uniform Padding inset on all sides
//   client space   - pointer position in whatever pixel size the surface is
//                    actually displayed at
//
// Projection:
//   Each axis is normalized independently against the bounding box
//   (0 at the minimum, 1 at the maximum). A zero-width or zero-height axis is
//   treated as span 1. The vertical axis is flipped so data "up" renders
//   toward the top of the surface.
//
// There is no inverse projection. Hit testing projects every hole forward
// and compares in surface space.
//
// ============================================================================

package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Default logical surface size and inset.
const (
	DefaultWidth   = 900
	DefaultHeight  = 650
	DefaultPadding = 40
)

// Point is a 2D point with floating-point coordinates.
type Point struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// NormalizeRect returns the rectangle spanned by two corner points, whatever
// direction the drag went in.
func NormalizeRect(a, b Point) Rect {
	x1, x2 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y1, y2 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Contains reports whether p lies inside the closed rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Max returns the bottom-right corner.
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Bounds is the axis-aligned bounding box of a point set in data space.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// ComputeBounds returns the bounding box of the points. ok is false for an
// empty set, in which case there is nothing to draw.
func ComputeBounds(points []Point) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return Bounds{
		MinX: floats.Min(xs),
		MaxX: floats.Max(xs),
		MinY: floats.Min(ys),
		MaxY: floats.Max(ys),
	}, true
}

// Contains reports whether p lies within the bounding box.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// spanX and spanY substitute 1 for a degenerate axis.
func (b Bounds) spanX() float64 {
	if s := b.MaxX - b.MinX; s != 0 {
		return s
	}
	return 1
}

func (b Bounds) spanY() float64 {
	if s := b.MaxY - b.MinY; s != 0 {
		return s
	}
	return 1
}

// Surface is the fixed-size logical drawing surface.
type Surface struct {
	Width   float64
	Height  float64
	Padding float64
}

// DefaultSurface returns the 900x650 surface with a 40 unit inset.
func DefaultSurface() Surface {
	return Surface{Width: DefaultWidth, Height: DefaultHeight, Padding: DefaultPadding}
}

// Inner returns the inset drawing area every projected point falls in.
func (s Surface) Inner() Rect {
	return Rect{
		X:      s.Padding,
		Y:      s.Padding,
		Width:  s.Width - 2*s.Padding,
		Height: s.Height - 2*s.Padding,
	}
}

// Project maps a data-space point into surface coordinates.
func (s Surface) Project(p Point, b Bounds) Point {
	nx := (p.X - b.MinX) / b.spanX()
	ny := (p.Y - b.MinY) / b.spanY()
	return Point{
		X: s.Padding + nx*(s.Width-2*s.Padding),
		Y: s.Height - (s.Padding + ny*(s.Height-2*s.Padding)),
	}
}

// FromClient scales a pointer position, given relative to the rendered
// surface's on-screen rectangle, into logical surface units.
func (s Surface) FromClient(client Point, rendered Rect) Point {
	w, h := rendered.Width, rendered.Height
	if w == 0 {
		w = s.Width
	}
	if h == 0 {
		h = s.Height
	}
	return Point{
		X: (client.X - rendered.X) / w * s.Width,
		Y: (client.Y - rendered.Y) / h * s.Height,
	}
}
