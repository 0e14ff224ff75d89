/*
Copyright © 2019 the canopyflux authors.
This file is part of canopyflux.

canopyflux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

canopyflux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with canopyflux.  If not, see <http://www.gnu.org/licenses/>.
*/

package canopyflux

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// TracePlot writes a PNG image to w showing the leaf temperature and
// Monin-Obukhov length after each stability iteration of e. The element
// must have been solved with RecordTrace set.
func (e *Element) TracePlot(w io.Writer) error {
	if len(e.State.Trace) == 0 {
		return fmt.Errorf("canopyflux: element %s has no iteration trace", e.Name)
	}
	tveg := make(plotter.XYs, len(e.State.Trace))
	obu := make(plotter.XYs, len(e.State.Trace))
	for i, it := range e.State.Trace {
		tveg[i].X = float64(i + 1)
		tveg[i].Y = it.TVeg
		obu[i].X = float64(i + 1)
		obu[i].Y = it.Obu
	}

	pT, err := tracePanel(tveg, "Leaf temperature (K)")
	if err != nil {
		return err
	}
	pT.Title.Text = fmt.Sprintf("%s: %d iterations, converged=%v", e.Name, e.State.Iterations, e.State.Converged)
	pL, err := tracePanel(obu, "Monin-Obukhov length (m)")
	if err != nil {
		return err
	}
	pL.X.Label.Text = "Iteration"

	img := vgimg.New(6*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	plots := [][]*plot.Plot{{pT}, {pL}}
	canvases := plot.Align(plots, draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(4)}, dc)
	pT.Draw(canvases[0][0])
	pL.Draw(canvases[1][0])

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("canopyflux: writing trace plot: %v", err)
	}
	return nil
}

func tracePanel(xy plotter.XYs, ylabel string) (*plot.Plot, error) {
	p := plot.New()
	p.Y.Label.Text = ylabel
	l, err := plotter.NewLine(xy)
	if err != nil {
		return nil, fmt.Errorf("canopyflux: trace plot: %v", err)
	}
	s, err := plotter.NewScatter(xy)
	if err != nil {
		return nil, fmt.Errorf("canopyflux: trace plot: %v", err)
	}
	p.Add(l, s, plotter.NewGrid())
	return p, nil
}
