// Package types defines the domain model shared by the rowplan packages.
//
// These are internal entity types. Wire-format records for the optimization
// service live in internal/workflow and are converted at that boundary.
package types

import "encoding/json"

// RowID identifies a firing row. Row ids start at 1 and are never reused
// within a session.
type RowID int

// DefaultStartFromPrevHole is the sequencing flag a new row starts with.
const DefaultStartFromPrevHole = 1

// Hole is a single blast point at a fixed data-space position.
type Hole struct {
	ID int     // unique, stable for the session
	X  float64 // data-space easting
	Y  float64 // data-space northing

	// Attributes carries extra columns of the uploaded file as the service
	// sent them, passed back to the optimizer byte for byte.
	Attributes map[string]json.RawMessage
}

// Row is an ordered firing group of holes.
type Row struct {
	ID      RowID
	HoleIDs []int // membership set; insertion order is kept for display only

	// StartFromPrevHole tells the optimizer which hole of the previous row
	// this row's firing sequence is timed from.
	StartFromPrevHole int
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	ids := make([]int, len(r.HoleIDs))
	copy(ids, r.HoleIDs)
	r.HoleIDs = ids
	return r
}

// Contains reports whether the row owns the hole.
func (r Row) Contains(holeID int) bool {
	for _, id := range r.HoleIDs {
		if id == holeID {
			return true
		}
	}
	return false
}

// Constraints bound the delays the optimizer may choose, in milliseconds.
type Constraints struct {
	HoleToHoleMin float64
	HoleToHoleMax float64
	RowToRowMin   float64
	RowToRowMax   float64
}

// HoleTiming is one hole's firing delay within an option.
type HoleTiming struct {
	HoleID  int
	DelayMs float64

	// Optional columns some optimizer versions emit. They are echoed back on
	// export unchanged.
	RowID            *int
	PositionInRow    *int
	RowReferenceHole *int
}

// Window is the number of holes firing in one time window.
type Window struct {
	StartMs   float64
	EndMs     float64
	HoleCount int
}

// OptionMetrics are the density metrics derived for an option.
type OptionMetrics struct {
	MaxHolesPer8ms int
	HolesPer8ms    []Window
}

// Option is one candidate timing solution returned by the optimizer.
type Option struct {
	ID           string
	HoleToHoleMs float64
	RowToRowMs   float64
	Timing       []HoleTiming
	Metrics      OptionMetrics
}

// DelayFor returns the delay the option assigns to a hole.
func (o *Option) DelayFor(holeID int) (float64, bool) {
	if o == nil {
		return 0, false
	}
	for _, t := range o.Timing {
		if t.HoleID == holeID {
			return t.DelayMs, true
		}
	}
	return 0, false
}

// SummaryRow is one line of the tabular summary sent with an export.
type SummaryRow struct {
	Section string
	Name    string
	Value   float64
}

// Snapshot is a point-in-time copy of the assignment model, used as the
// optimize request body.
type Snapshot struct {
	Holes []Hole
	Rows  []Row
}
