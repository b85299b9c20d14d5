package workflow

import (
	"strconv"

	"github.com/ChuLiYu/rowplan/pkg/types"
)

// Summary sections sent with an export.
const (
	SectionTimings     = "timings"
	SectionHolesPer8ms = "holes_per_8ms"
)

// SummaryRows derives the export summary for an option: the three timing
// rows followed by one row per density window.
func SummaryRows(o types.Option) []types.SummaryRow {
	rows := []types.SummaryRow{
		{Section: SectionTimings, Name: "row_1_hole_to_hole_ms", Value: o.HoleToHoleMs},
		{Section: SectionTimings, Name: "row_2_row_to_row_ms", Value: o.RowToRowMs},
		{Section: SectionTimings, Name: "row_3_max_holes_per_8ms", Value: float64(o.Metrics.MaxHolesPer8ms)},
	}
	for _, w := range o.Metrics.HolesPer8ms {
		rows = append(rows, types.SummaryRow{
			Section: SectionHolesPer8ms,
			Name:    formatMs(w.StartMs) + "-" + formatMs(w.EndMs),
			Value:   float64(w.HoleCount),
		})
	}
	return rows
}

func formatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
