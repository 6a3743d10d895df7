package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/backmassage/layerlapse/internal/frames"
)

var (
	colorFrame     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorLow       = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorMedian    = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorThreshold = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// SizeChart writes a PNG (or any extension plot supports) plotting each
// slot's size, with horizontal median and threshold lines. Slots below the
// threshold are drawn in red.
func SizeChart(path, title string, slots []frames.Slot, median, threshold float64) error {
	if len(slots) == 0 {
		return errors.New("size chart: no frames")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame slot"
	p.Y.Label.Text = "Size (bytes)"
	p.Y.Min = 0

	ok := make(plotter.XYs, 0, len(slots))
	var low plotter.XYs
	for _, s := range slots {
		pt := plotter.XY{X: float64(s.Index), Y: float64(s.Size)}
		if frames.Corrupt(s.Size, threshold) {
			low = append(low, pt)
		} else {
			ok = append(ok, pt)
		}
	}

	if len(ok) > 0 {
		sc, err := plotter.NewScatter(ok)
		if err != nil {
			return fmt.Errorf("size chart: %w", err)
		}
		sc.GlyphStyle.Color = colorFrame
		sc.GlyphStyle.Radius = vg.Points(1.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add("frame", sc)
	}
	if len(low) > 0 {
		sc, err := plotter.NewScatter(low)
		if err != nil {
			return fmt.Errorf("size chart: %w", err)
		}
		sc.GlyphStyle.Color = colorLow
		sc.GlyphStyle.Radius = vg.Points(2.5)
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		p.Add(sc)
		p.Legend.Add("below threshold", sc)
	}

	first, last := float64(slots[0].Index), float64(slots[len(slots)-1].Index)
	for _, h := range []struct {
		label string
		y     float64
		c     color.Color
		dash  bool
	}{
		{"median", median, colorMedian, false},
		{"threshold", threshold, colorThreshold, true},
	} {
		line, err := plotter.NewLine(plotter.XYs{{X: first, Y: h.y}, {X: last, Y: h.y}})
		if err != nil {
			return fmt.Errorf("size chart: %w", err)
		}
		line.Color = h.c
		line.Width = vg.Points(1)
		if h.dash {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		}
		p.Add(line)
		p.Legend.Add(h.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save size chart: %w", err)
	}
	return nil
}
