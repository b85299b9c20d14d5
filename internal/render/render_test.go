package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/ChuLiYu/rowplan/internal/geometry"
	"github.com/ChuLiYu/rowplan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func sampleInput() Input {
	return Input{
		Surface: geometry.DefaultSurface(),
		Holes: []types.Hole{
			{ID: 1, X: 0, Y: 0},
			{ID: 2, X: 10, Y: 0},
			{ID: 3, X: 10, Y: 10},
		},
		Rows: []types.Row{
			{ID: 1, HoleIDs: []int{1, 2}, StartFromPrevHole: 1},
			{ID: 2, HoleIDs: []int{3}, StartFromPrevHole: 1},
		},
		ActiveRow: 2,
	}
}

func markerByID(t *testing.T, s Scene, id int) Marker {
	t.Helper()
	for _, m := range s.Markers {
		if m.HoleID == id {
			return m
		}
	}
	t.Fatalf("no marker for hole %d", id)
	return Marker{}
}

// ============================================================================
// Palette
// ============================================================================

func TestRowColor_Cycles(t *testing.T) {
	assert.Equal(t, Palette[0], RowColor(1))
	assert.Equal(t, Palette[7], RowColor(8))
	assert.Equal(t, RowColor(1), RowColor(9), "palette wraps after eight rows")
	assert.Equal(t, "#175cd3", Hex(RowColor(1)))
}

// ============================================================================
// Scene
// ============================================================================

func TestHoleLabel(t *testing.T) {
	assert.Equal(t, "5", HoleLabel(5, nil))

	d := 25.0
	assert.Equal(t, "5 (25ms)", HoleLabel(5, &d))

	d = 12.5
	assert.Equal(t, "5 (12.5ms)", HoleLabel(5, &d))
}

func TestBuild_Empty(t *testing.T) {
	s := Build(Input{Surface: geometry.DefaultSurface()})

	assert.True(t, s.Empty())
	assert.Empty(t, s.Legend)
}

func TestBuild_ColorsAndLegend(t *testing.T) {
	in := sampleInput()
	in.Holes = append(in.Holes, types.Hole{ID: 4, X: 0, Y: 10})

	s := Build(in)

	require.Len(t, s.Markers, 4)
	assert.Equal(t, RowColor(1), markerByID(t, s, 1).Fill)
	assert.Equal(t, RowColor(1), markerByID(t, s, 2).Fill)
	assert.Equal(t, RowColor(2), markerByID(t, s, 3).Fill)
	assert.Equal(t, Unassigned, markerByID(t, s, 4).Fill)
	assert.Equal(t, types.RowID(0), markerByID(t, s, 4).Row)

	require.Len(t, s.Legend, 2)
	assert.Equal(t, 2, s.Legend[0].Members)
	assert.Equal(t, 1, s.Legend[1].Members)
	assert.False(t, s.Legend[0].Active)
	assert.True(t, s.Legend[1].Active)
}

func TestBuild_MarkerPlacement(t *testing.T) {
	s := Build(sampleInput())

	m := markerByID(t, s, 1)
	assert.InDelta(t, 40, m.Center.X, 1e-9)
	assert.InDelta(t, 610, m.Center.Y, 1e-9)
	assert.Equal(t, float64(DefaultMarkerRadius), m.Radius)
	assert.InDelta(t, 50, m.LabelPos.X, 1e-9)
	assert.InDelta(t, 602, m.LabelPos.Y, 1e-9)
}

func TestBuild_OptionSwitchChangesLabelsOnly(t *testing.T) {
	in := sampleInput()
	in.Option = &types.Option{
		ID: "a",
		Timing: []types.HoleTiming{
			{HoleID: 1, DelayMs: 0},
			{HoleID: 2, DelayMs: 25},
		},
	}
	a := Build(in)

	in.Option = &types.Option{
		ID: "b",
		Timing: []types.HoleTiming{
			{HoleID: 1, DelayMs: 0},
			{HoleID: 2, DelayMs: 42},
		},
	}
	b := Build(in)

	assert.Equal(t, "2 (25ms)", markerByID(t, a, 2).Label)
	assert.Equal(t, "2 (42ms)", markerByID(t, b, 2).Label)
	assert.Equal(t, "3", markerByID(t, b, 3).Label, "hole without timing keeps its plain label")
	for i := range a.Markers {
		assert.Equal(t, a.Markers[i].Fill, b.Markers[i].Fill)
		assert.Equal(t, a.Markers[i].Center, b.Markers[i].Center)
	}
}

func TestBuild_FirstTimingWins(t *testing.T) {
	in := sampleInput()
	in.Option = &types.Option{Timing: []types.HoleTiming{
		{HoleID: 1, DelayMs: 8},
		{HoleID: 1, DelayMs: 99},
	}}

	s := Build(in)
	assert.Equal(t, "1 (8ms)", markerByID(t, s, 1).Label)
}

func TestBuild_CopiesBand(t *testing.T) {
	in := sampleInput()
	band := geometry.Rect{X: 10, Y: 10, Width: 50, Height: 20}
	in.Band = &band

	s := Build(in)
	band.Width = 999

	require.NotNil(t, s.Band)
	assert.Equal(t, 50.0, s.Band.Width)
}

// ============================================================================
// Encoders
// ============================================================================

func TestWriteSVG(t *testing.T) {
	in := sampleInput()
	in.Band = &geometry.Rect{X: 1, Y: 2, Width: 3, Height: 4}
	var buf bytes.Buffer

	require.NoError(t, WriteSVG(&buf, Build(in)))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Equal(t, 3, strings.Count(out, "<circle"))
	assert.Contains(t, out, `data-hole="3"`)
	assert.Contains(t, out, `id="selection-box"`)
	assert.Contains(t, out, "Row 1 (2)")
	assert.Contains(t, out, "Row 2 (1)")
	assert.Contains(t, out, Hex(RowColor(2)))
}

func TestWriteSVG_UnassignedClass(t *testing.T) {
	in := sampleInput()
	in.Rows = nil
	var buf bytes.Buffer

	require.NoError(t, WriteSVG(&buf, Build(in)))
	assert.Equal(t, 3, strings.Count(buf.String(), `class="hole unassigned"`))
	assert.NotContains(t, buf.String(), `id="legend"`)
}

func TestWritePNG(t *testing.T) {
	in := sampleInput()
	var buf bytes.Buffer

	require.NoError(t, WritePNG(&buf, Build(in)))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 900+LegendWidth, img.Bounds().Dx())
	assert.Equal(t, 650, img.Bounds().Dy())

	// center of hole 1 carries the row 1 color
	r, g, b, _ := img.At(40, 610).RGBA()
	want := RowColor(1)
	assert.Equal(t, uint32(want.R), r>>8)
	assert.Equal(t, uint32(want.G), g>>8)
	assert.Equal(t, uint32(want.B), b>>8)
}
