// Package selection turns pointer gestures on the drawing surface into sets
// of hole ids.
//
// A drag records a start point and a live end point in logical surface
// coordinates. Releasing resolves the rubber band to every hole whose
// projected position lies in the closed rectangle. A release without any
// movement is abandoned. The transient rectangle is cleared either way.
package selection

import (
	"github.com/ChuLiYu/rowplan/internal/geometry"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

// Drag is the rubber-band gesture state.
type Drag struct {
	active bool
	moved  bool
	start  geometry.Point
	end    geometry.Point
}

// Begin starts a gesture at p. Gestures on an empty surface are ignored and
// Begin returns false.
func (d *Drag) Begin(p geometry.Point, haveHoles bool) bool {
	if !haveHoles {
		return false
	}
	*d = Drag{active: true, start: p}
	return true
}

// Move records the live end point. It returns false when no gesture is in
// progress.
func (d *Drag) Move(p geometry.Point) bool {
	if !d.active {
		return false
	}
	d.end = p
	d.moved = true
	return true
}

// Active reports whether a gesture is in progress.
func (d *Drag) Active() bool {
	return d.active
}

// Rect returns the rubber band to draw while dragging.
func (d *Drag) Rect() (geometry.Rect, bool) {
	if !d.active || !d.moved {
		return geometry.Rect{}, false
	}
	return geometry.NormalizeRect(d.start, d.end), true
}

// End finishes the gesture and returns the final rectangle. ok is false when
// no gesture was active or the pointer never moved. The gesture state is
// reset in all cases.
func (d *Drag) End() (r geometry.Rect, ok bool) {
	r, ok = d.Rect()
	*d = Drag{}
	return r, ok
}

// InRect returns, in hole order, the ids of every hole whose projected
// position lies inside the closed rectangle.
func InRect(holes []types.Hole, surface geometry.Surface, rect geometry.Rect) []int {
	b, ok := Bounds(holes)
	if !ok {
		return nil
	}
	var ids []int
	for _, h := range holes {
		p := surface.Project(geometry.Point{X: h.X, Y: h.Y}, b)
		if rect.Contains(p) {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

// AtPoint returns the hole whose marker disc of the given radius contains p.
// Markers are drawn in hole order, so when discs overlap the last one wins,
// matching what is visible on top.
func AtPoint(holes []types.Hole, surface geometry.Surface, p geometry.Point, radius float64) (int, bool) {
	b, ok := Bounds(holes)
	if !ok {
		return 0, false
	}
	hit, found := 0, false
	for _, h := range holes {
		c := surface.Project(geometry.Point{X: h.X, Y: h.Y}, b)
		if c.Distance(p) <= radius {
			hit, found = h.ID, true
		}
	}
	return hit, found
}

// Bounds computes the data-space bounding box of the holes.
func Bounds(holes []types.Hole) (geometry.Bounds, bool) {
	pts := make([]geometry.Point, len(holes))
	for i, h := range holes {
		pts[i] = geometry.Point{X: h.X, Y: h.Y}
	}
	return geometry.ComputeBounds(pts)
}
