package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ChuLiYu/rowplan/pkg/types"
)

// ============================================================================
// Wire format
// ============================================================================
//
// Records exchanged with the optimization service. The service parses hole
// ids out of CSV text, so ids and the optional integer timing columns may
// arrive either as JSON numbers or as numeric strings. Option ids are kept
// as text whichever form they take.

// flexInt decodes a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		n, err := strconv.Atoi(s)
		if err != nil {
			fv, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || fv != float64(int(fv)) {
				return fmt.Errorf("not an integer: %q", s)
			}
			n = int(fv)
		}
		*f = flexInt(n)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v != float64(int(v)) {
		return fmt.Errorf("not an integer: %v", v)
	}
	*f = flexInt(v)
	return nil
}

func (f *flexInt) ptr() *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

func flexPtr(p *int) *flexInt {
	if p == nil {
		return nil
	}
	v := flexInt(*p)
	return &v
}

// flexString decodes a JSON string or number into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexString(strconv.FormatFloat(v, 'f', -1, 64))
	return nil
}

type wireHole struct {
	ID         flexInt                    `json:"id"`
	X          float64                    `json:"x"`
	Y          float64                    `json:"y"`
	Attributes map[string]json.RawMessage `json:"attributes,omitempty"`
}

type wireRow struct {
	RowID             int   `json:"row_id"`
	HoleIDs           []int `json:"hole_ids"`
	StartFromPrevHole int   `json:"start_from_prev_hole"`
}

type wireConstraints struct {
	HoleToHoleMin float64 `json:"hole_to_hole_min"`
	HoleToHoleMax float64 `json:"hole_to_hole_max"`
	RowToRowMin   float64 `json:"row_to_row_min"`
	RowToRowMax   float64 `json:"row_to_row_max"`
}

type wireTiming struct {
	HoleID           flexInt  `json:"hole_id"`
	RowID            *flexInt `json:"row_id,omitempty"`
	PositionInRow    *flexInt `json:"position_in_row,omitempty"`
	DelayMs          float64  `json:"delay_ms"`
	RowReferenceHole *flexInt `json:"row_reference_hole,omitempty"`
}

type wireWindow struct {
	StartMs   float64 `json:"window_start_ms"`
	EndMs     float64 `json:"window_end_ms"`
	HoleCount int     `json:"hole_count"`
}

type wireOptionMetrics struct {
	MaxHolesPer8ms int          `json:"max_holes_per_8ms"`
	HolesPer8ms    []wireWindow `json:"holes_per_8ms"`
}

type wireOption struct {
	OptionID     flexString        `json:"option_id"`
	HoleToHoleMs float64           `json:"hole_to_hole_ms"`
	RowToRowMs   float64           `json:"row_to_row_ms"`
	Timing       []wireTiming      `json:"timing"`
	Metrics      wireOptionMetrics `json:"metrics"`
}

type wireSummaryRow struct {
	Section string  `json:"section"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
}

type uploadResponse struct {
	Holes []wireHole `json:"holes"`
	Count int        `json:"count"`
}

type optimizeRequest struct {
	Holes       []wireHole      `json:"holes"`
	Rows        []wireRow       `json:"rows"`
	Constraints wireConstraints `json:"constraints"`
}

type optimizeResponse struct {
	Options []wireOption    `json:"options"`
	Metrics json.RawMessage `json:"metrics,omitempty"`

	// Older service builds answer with a single timing list instead of
	// an options collection.
	Timing []wireTiming `json:"timing,omitempty"`
}

type exportRequest struct {
	Timing  []wireTiming     `json:"timing"`
	Summary []wireSummaryRow `json:"summary"`
}

type exportResponse struct {
	CSV string `json:"csv"`
}

type validateRequest struct {
	Holes []wireHole `json:"holes"`
	Rows  []wireRow  `json:"rows"`
}

type validateResponse struct {
	Status string   `json:"status"`
	Errors []string `json:"errors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ============================================================================
// Conversion
// ============================================================================

func holesFromWire(in []wireHole) []types.Hole {
	out := make([]types.Hole, len(in))
	for i, h := range in {
		out[i] = types.Hole{ID: int(h.ID), X: h.X, Y: h.Y}
		if len(h.Attributes) > 0 {
			out[i].Attributes = h.Attributes
		}
	}
	return out
}

func holesToWire(in []types.Hole) []wireHole {
	out := make([]wireHole, len(in))
	for i, h := range in {
		out[i] = wireHole{ID: flexInt(h.ID), X: h.X, Y: h.Y, Attributes: h.Attributes}
	}
	return out
}

func rowsToWire(in []types.Row) []wireRow {
	out := make([]wireRow, len(in))
	for i, r := range in {
		ids := r.HoleIDs
		if ids == nil {
			ids = []int{}
		}
		out[i] = wireRow{RowID: int(r.ID), HoleIDs: ids, StartFromPrevHole: r.StartFromPrevHole}
	}
	return out
}

func constraintsToWire(c types.Constraints) wireConstraints {
	return wireConstraints{
		HoleToHoleMin: c.HoleToHoleMin,
		HoleToHoleMax: c.HoleToHoleMax,
		RowToRowMin:   c.RowToRowMin,
		RowToRowMax:   c.RowToRowMax,
	}
}

func timingFromWire(in []wireTiming) []types.HoleTiming {
	out := make([]types.HoleTiming, len(in))
	for i, t := range in {
		out[i] = types.HoleTiming{
			HoleID:           int(t.HoleID),
			DelayMs:          t.DelayMs,
			RowID:            t.RowID.ptr(),
			PositionInRow:    t.PositionInRow.ptr(),
			RowReferenceHole: t.RowReferenceHole.ptr(),
		}
	}
	return out
}

func timingToWire(in []types.HoleTiming) []wireTiming {
	out := make([]wireTiming, len(in))
	for i, t := range in {
		out[i] = wireTiming{
			HoleID:           flexInt(t.HoleID),
			DelayMs:          t.DelayMs,
			RowID:            flexPtr(t.RowID),
			PositionInRow:    flexPtr(t.PositionInRow),
			RowReferenceHole: flexPtr(t.RowReferenceHole),
		}
	}
	return out
}

func optionsFromWire(in []wireOption) []types.Option {
	out := make([]types.Option, len(in))
	for i, o := range in {
		windows := make([]types.Window, len(o.Metrics.HolesPer8ms))
		for j, w := range o.Metrics.HolesPer8ms {
			windows[j] = types.Window{StartMs: w.StartMs, EndMs: w.EndMs, HoleCount: w.HoleCount}
		}
		out[i] = types.Option{
			ID:           string(o.OptionID),
			HoleToHoleMs: o.HoleToHoleMs,
			RowToRowMs:   o.RowToRowMs,
			Timing:       timingFromWire(o.Timing),
			Metrics: types.OptionMetrics{
				MaxHolesPer8ms: o.Metrics.MaxHolesPer8ms,
				HolesPer8ms:    windows,
			},
		}
	}
	return out
}

func summaryToWire(in []types.SummaryRow) []wireSummaryRow {
	out := make([]wireSummaryRow, len(in))
	for i, s := range in {
		out[i] = wireSummaryRow{Section: s.Section, Name: s.Name, Value: s.Value}
	}
	return out
}
