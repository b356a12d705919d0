// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trsconv

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Renders the given traces as overlaid lines. The image format follows the
// extension of filename (.png, .svg, .pdf, ...).
func PlotTraces(ts *TraceSet, indices []int, filename string) error {
	if len(indices) == 0 {
		return fmt.Errorf("no traces to plot")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", filepath.Base(ts.TracesPath), ts.Manifest.Format)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Value"

	for n, i := range indices {
		samples, err := ts.Trace(i)
		if err != nil {
			return err
		}
		pts := make(plotter.XYs, len(samples))
		for j, s := range samples {
			pts[j] = plotter.XY{X: float64(j), Y: s}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plotting trace %d: %w", i, err)
		}
		line.Color = plotutil.Color(n)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("trace %d", i), line)
	}

	if err := p.Save(14*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("saving %s: %w", filename, err)
	}
	return nil
}
