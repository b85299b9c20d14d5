package render

import (
	"fmt"
	"image/color"

	"github.com/ChuLiYu/rowplan/pkg/types"
)

// Palette is the cyclic row color table.
var Palette = []color.RGBA{
	{R: 0x17, G: 0x5c, B: 0xd3, A: 0xff}, // blue
	{R: 0x16, G: 0xa3, B: 0x4a, A: 0xff}, // green
	{R: 0xdc, G: 0x68, B: 0x03, A: 0xff}, // orange
	{R: 0x7a, G: 0x5a, B: 0xf8, A: 0xff}, // violet
	{R: 0x08, G: 0x74, B: 0x43, A: 0xff}, // dark green
	{R: 0xc1, G: 0x15, B: 0x74, A: 0xff}, // magenta
	{R: 0x34, G: 0x40, B: 0x54, A: 0xff}, // slate
	{R: 0x0e, G: 0x70, B: 0x90, A: 0xff}, // teal
}

// Fixed non-row colors.
var (
	Unassigned = color.RGBA{R: 0xd0, G: 0xd5, B: 0xdd, A: 0xff}
	Background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	LabelColor = color.RGBA{R: 0x10, G: 0x18, B: 0x28, A: 0xff}
	Outline    = color.RGBA{R: 0x34, G: 0x40, B: 0x54, A: 0xff}
	BandStroke = color.RGBA{R: 0x17, G: 0x5c, B: 0xd3, A: 0xff}
	BandFill   = color.RGBA{R: 0x17, G: 0x5c, B: 0xd3, A: 0x20}
)

// RowColor returns the palette entry for a row: (id-1) mod len(Palette).
func RowColor(id types.RowID) color.RGBA {
	i := (int(id) - 1) % len(Palette)
	if i < 0 {
		i += len(Palette)
	}
	return Palette[i]
}

// Hex formats a color as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
