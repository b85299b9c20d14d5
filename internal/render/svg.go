package render

import (
	"bufio"
	"fmt"
	"html"
	"io"
)

// LegendWidth is the extra width reserved to the right of the surface for the
// row legend.
const LegendWidth = 180

// WriteSVG encodes the scene as a standalone SVG document. The drawing
// surface keeps its logical coordinates; the legend sits to its right.
func WriteSVG(w io.Writer, s Scene) error {
	bw := bufio.NewWriter(w)
	width := s.Surface.Width + LegendWidth
	height := s.Surface.Height

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n",
		width, height, width, height)
	fmt.Fprintf(bw, `  <rect x="0" y="0" width="%g" height="%g" fill="%s" stroke="%s"/>`+"\n",
		s.Surface.Width, s.Surface.Height, Hex(Background), Hex(Unassigned))

	bw.WriteString(`  <g id="plot">` + "\n")
	for _, m := range s.Markers {
		class := "hole"
		if m.Row == 0 {
			class = "hole unassigned"
		}
		fmt.Fprintf(bw, `    <circle class="%s" data-hole="%d" cx="%g" cy="%g" r="%g" fill="%s"/>`+"\n",
			class, m.HoleID, m.Center.X, m.Center.Y, m.Radius, Hex(m.Fill))
		fmt.Fprintf(bw, `    <text x="%g" y="%g" font-size="11" fill="%s">%s</text>`+"\n",
			m.LabelPos.X, m.LabelPos.Y, Hex(LabelColor), html.EscapeString(m.Label))
	}
	if s.Band != nil {
		fmt.Fprintf(bw, `    <rect id="selection-box" class="selection" x="%g" y="%g" width="%g" height="%g" fill="%s" fill-opacity="0.12" stroke="%s" stroke-dasharray="4 2"/>`+"\n",
			s.Band.X, s.Band.Y, s.Band.Width, s.Band.Height, Hex(BandFill), Hex(BandStroke))
	}
	bw.WriteString("  </g>\n")

	if len(s.Legend) > 0 {
		lx := s.Surface.Width + 16
		bw.WriteString(`  <g id="legend">` + "\n")
		for i, e := range s.Legend {
			y := 24 + float64(i)*22
			stroke := "none"
			if e.Active {
				stroke = Hex(Outline)
			}
			fmt.Fprintf(bw, `    <rect x="%g" y="%g" width="14" height="14" fill="%s" stroke="%s"/>`+"\n",
				lx, y-11, Hex(e.Color), stroke)
			fmt.Fprintf(bw, `    <text x="%g" y="%g" font-size="12" fill="%s">Row %d (%d)</text>`+"\n",
				lx+22, y, Hex(LabelColor), e.Row, e.Members)
		}
		bw.WriteString("  </g>\n")
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}
