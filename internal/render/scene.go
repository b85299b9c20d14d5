// ============================================================================
// rowplan Render Engine - scene construction
// ============================================================================
//
// Package: internal/render
// File: scene.go
// Function: Projects the assignment model and the selected optimizer option
//           onto the drawing surface as a display list (Scene). Encoders in
//           svg.go and png.go turn a Scene into an image.
//
// Every redraw rebuilds the whole scene. There is no incremental diffing.
//
// Per hole:
//   - center    projected through geometry.Surface
//   - fill      RowColor(owner) or Unassigned
//   - label     "<id>" or "<id> (<delay>ms)" when the selected option has a
//               delay for the hole
//
// Legend:
//   one entry per row (id, swatch, member count), in row order.
//
// ============================================================================

package render

import (
	"image/color"
	"strconv"

	"github.com/ChuLiYu/rowplan/internal/geometry"
	"github.com/ChuLiYu/rowplan/internal/selection"
	"github.com/ChuLiYu/rowplan/pkg/types"
)

// DefaultMarkerRadius is the hole marker radius in surface units.
const DefaultMarkerRadius = 7

// Label placement relative to the marker center.
const (
	labelDX = 10
	labelDY = -8
)

// Input is everything a redraw depends on.
type Input struct {
	Surface      geometry.Surface
	MarkerRadius float64
	Holes        []types.Hole
	Rows         []types.Row
	ActiveRow    types.RowID
	Option       *types.Option  // selected optimizer option, may be nil
	Band         *geometry.Rect // rubber band in progress, may be nil
}

// Marker is one drawn hole.
type Marker struct {
	HoleID   int
	Center   geometry.Point
	Radius   float64
	Fill     color.RGBA
	Row      types.RowID // 0 when unassigned
	Label    string
	LabelPos geometry.Point
}

// LegendEntry describes one row in the side legend.
type LegendEntry struct {
	Row     types.RowID
	Color   color.RGBA
	Members int
	Active  bool
}

// Scene is the display list for one redraw.
type Scene struct {
	Surface geometry.Surface
	Markers []Marker
	Legend  []LegendEntry
	Band    *geometry.Rect
}

// Empty reports whether there is nothing to draw on the surface.
func (s Scene) Empty() bool {
	return len(s.Markers) == 0
}

// Build projects the input into a scene.
func Build(in Input) Scene {
	radius := in.MarkerRadius
	if radius <= 0 {
		radius = DefaultMarkerRadius
	}

	scene := Scene{
		Surface: in.Surface,
		Legend:  buildLegend(in.Rows, in.ActiveRow),
	}
	if in.Band != nil {
		band := *in.Band
		scene.Band = &band
	}

	b, ok := selection.Bounds(in.Holes)
	if !ok {
		return scene
	}

	owners := make(map[int]types.RowID)
	for _, r := range in.Rows {
		for _, id := range r.HoleIDs {
			owners[id] = r.ID
		}
	}

	delays := make(map[int]float64)
	if in.Option != nil {
		for _, t := range in.Option.Timing {
			if _, dup := delays[t.HoleID]; !dup {
				delays[t.HoleID] = t.DelayMs
			}
		}
	}

	scene.Markers = make([]Marker, 0, len(in.Holes))
	for _, h := range in.Holes {
		c := in.Surface.Project(geometry.Point{X: h.X, Y: h.Y}, b)
		m := Marker{
			HoleID:   h.ID,
			Center:   c,
			Radius:   radius,
			Fill:     Unassigned,
			LabelPos: geometry.Point{X: c.X + labelDX, Y: c.Y + labelDY},
		}
		if row, owned := owners[h.ID]; owned {
			m.Row = row
			m.Fill = RowColor(row)
		}
		if d, has := delays[h.ID]; has {
			m.Label = HoleLabel(h.ID, &d)
		} else {
			m.Label = HoleLabel(h.ID, nil)
		}
		scene.Markers = append(scene.Markers, m)
	}
	return scene
}

func buildLegend(rows []types.Row, active types.RowID) []LegendEntry {
	legend := make([]LegendEntry, 0, len(rows))
	for _, r := range rows {
		legend = append(legend, LegendEntry{
			Row:     r.ID,
			Color:   RowColor(r.ID),
			Members: len(r.HoleIDs),
			Active:  r.ID == active,
		})
	}
	return legend
}

// HoleLabel formats a marker label.
func HoleLabel(holeID int, delayMs *float64) string {
	id := strconv.Itoa(holeID)
	if delayMs == nil {
		return id
	}
	return id + " (" + FormatMs(*delayMs) + "ms)"
}

// FormatMs prints a millisecond value without trailing zeros.
func FormatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
