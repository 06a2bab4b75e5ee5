// Package chart renders YES-price history as PNG line charts.
package chart

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// Palette holds the colors used by the renderer.
type Palette struct {
	Background drawing.Color
	Text       drawing.Color
	Lines      []drawing.Color
}

// DefaultPalette is a light theme with a repeating line cycle.
var DefaultPalette = Palette{
	Background: drawing.ColorWhite,
	Text:       drawing.ColorFromHex("333333"),
	Lines: []drawing.Color{
		drawing.ColorFromHex("1f77b4"),
		drawing.ColorFromHex("ff7f0e"),
		drawing.ColorFromHex("2ca02c"),
		drawing.ColorFromHex("d62728"),
		drawing.ColorFromHex("9467bd"),
		drawing.ColorFromHex("8c564b"),
		drawing.ColorFromHex("e377c2"),
		drawing.ColorFromHex("7f7f7f"),
	},
}

// Renderer draws price history charts.
type Renderer struct {
	Width   int
	Height  int
	Palette Palette
}

// NewRenderer returns a Renderer with the default size and palette.
func NewRenderer() *Renderer {
	return &Renderer{Width: 1000, Height: 500, Palette: DefaultPalette}
}

// PriceHistory draws one line per display title. A placeholder image is
// returned when the history spans fewer than two observation times.
func (r *Renderer) PriceHistory(title string, history []domain.MarketSnapshot) ([]byte, error) {
	series, span := groupByTitle(history)
	if !span {
		return r.placeholder(fmt.Sprintf("%s: not enough price history", title))
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []chart.Series
	for i, name := range names {
		pts := series[name]
		xs := make([]time.Time, len(pts))
		ys := make([]float64, len(pts))
		for j, s := range pts {
			xs[j] = s.ObservedAt
			ys[j] = s.YesPrice
		}
		color := r.Palette.Lines[i%len(r.Palette.Lines)]
		all = append(all, chart.TimeSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
				DotWidth:    2,
				DotColor:    color,
			},
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  r.Width,
		Height: r.Height,
		TitleStyle: chart.Style{
			FontColor: r.Palette.Text,
		},
		Background: chart.Style{
			FillColor: r.Palette.Background,
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{
			FillColor: r.Palette.Background,
		},
		XAxis: chart.XAxis{
			Name:           "Observed",
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
			Style:          chart.Style{FontColor: r.Palette.Text},
		},
		YAxis: chart.YAxis{
			Name:  "YES price",
			Style: chart.Style{FontColor: r.Palette.Text},
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: all,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart: render %s: %w", title, err)
	}
	return buf.Bytes(), nil
}

// groupByTitle buckets snapshots per display title in observation order and
// reports whether they cover at least two distinct observation times.
func groupByTitle(history []domain.MarketSnapshot) (map[string][]domain.MarketSnapshot, bool) {
	out := make(map[string][]domain.MarketSnapshot)
	var first time.Time
	span := false
	for i, s := range history {
		if i == 0 {
			first = s.ObservedAt
		} else if !s.ObservedAt.Equal(first) {
			span = true
		}
		out[s.DisplayTitle] = append(out[s.DisplayTitle], s)
	}
	for _, pts := range out {
		sort.SliceStable(pts, func(a, b int) bool { return pts[a].ObservedAt.Before(pts[b].ObservedAt) })
	}
	return out, span
}

func (r *Renderer) placeholder(msg string) ([]byte, error) {
	graph := chart.Chart{
		Width:  r.Width / 2,
		Height: r.Height / 2,
		Background: chart.Style{
			FillColor: r.Palette.Background,
		},
		Canvas: chart.Style{
			FillColor: r.Palette.Background,
		},
		XAxis: chart.XAxis{Style: chart.Hidden()},
		YAxis: chart.YAxis{Style: chart.Hidden()},
		// go-chart needs one visible series with a non-zero x range.
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style:   chart.Style{StrokeColor: drawing.ColorTransparent},
				XValues: []float64{0, 1},
				YValues: []float64{0, 1},
			},
		},
		Elements: []chart.Renderable{
			func(rd chart.Renderer, cb chart.Box, _ chart.Style) {
				rd.SetFontColor(r.Palette.Text)
				rd.SetFontSize(12.0)
				tb := rd.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				rd.Text(msg, x, y)
			},
		},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart: render placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
