// Package charts renders the dashboard and report graphs as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"expenso/internal/catalog"
	"expenso/internal/core"
)

// ErrNoData means there is nothing to plot; handlers show an empty state.
var ErrNoData = errors.New("no data to chart")

var (
	incomeColor  = drawing.ColorFromHex("43A047")
	expenseColor = drawing.ColorFromHex("E53935")
	darkFill     = drawing.ColorFromHex("1F2937")
	darkText     = drawing.ColorFromHex("F3F4F6")
)

type Generator struct {
	Width  int
	Height int
}

func NewGenerator() *Generator {
	return &Generator{Width: 800, Height: 360}
}

// TrendSeries splits monthly points into plottable slices.
func TrendSeries(points []core.MonthlyPoint) (labels []string, income, expenses []float64) {
	labels = make([]string, len(points))
	income = make([]float64, len(points))
	expenses = make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.Month
		income[i] = p.Income.Float()
		expenses[i] = p.Expenses.Float()
	}
	return labels, income, expenses
}

func (g *Generator) style(dark bool) (bg chart.Style, text chart.Style) {
	bg = chart.Style{
		Padding:   chart.Box{Top: 30, Left: 20, Right: 20, Bottom: 20},
		FillColor: chart.ColorWhite,
	}
	text = chart.Style{FontSize: 10, FontColor: chart.ColorBlack}
	if dark {
		bg.FillColor = darkFill
		text.FontColor = darkText
	}
	return bg, text
}

// Trend draws income and expenses per month as two lines.
func (g *Generator) Trend(points []core.MonthlyPoint, dark bool) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	labels, income, expenses := TrendSeries(points)
	xs := make([]float64, len(points))
	ticks := make([]chart.Tick, len(points))
	for i := range points {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: labels[i]}
	}
	// A single month is drawn as a flat segment; a zero-width range cannot render.
	if len(points) == 1 {
		xs = append(xs, 1)
		income = append(income, income[0])
		expenses = append(expenses, expenses[0])
		ticks = append(ticks, chart.Tick{Value: 1, Label: ""})
	}

	top := 1.0
	for i := range income {
		top = max(top, income[i], expenses[i])
	}

	bg, text := g.style(dark)
	graph := chart.Chart{
		Width:      g.Width,
		Height:     g.Height,
		Background: bg,
		Canvas:     chart.Style{FillColor: bg.FillColor},
		XAxis: chart.XAxis{
			Ticks: ticks,
			Style: text,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
			Style: text,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Income",
				XValues: xs,
				YValues: income,
				Style:   chart.Style{StrokeColor: incomeColor, StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "Expenses",
				XValues: xs,
				YValues: expenses,
				Style:   chart.Style{StrokeColor: expenseColor, StrokeWidth: 2},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph, text)}

	buffer := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("render trend chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// Categories draws the expense breakdown as a pie, coloured in palette order.
// Entries with a zero or negative value are skipped.
func (g *Generator) Categories(items []core.CategoryAmount, dark bool) ([]byte, error) {
	values := make([]chart.Value, 0, len(items))
	for _, it := range items {
		if it.Value.Cents <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", it.Name, it.Value.String()),
			Value: it.Value.Float(),
			Style: chart.Style{
				FillColor:   hexColor(catalog.Color(len(values))),
				StrokeColor: chart.ColorWhite,
				FontSize:    10,
				FontColor:   chart.ColorWhite,
			},
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	bg, _ := g.style(dark)
	pie := chart.PieChart{
		Width:      g.Height,
		Height:     g.Height,
		Background: bg,
		Canvas:     chart.Style{FillColor: bg.FillColor},
		Values:     values,
	}
	buffer := bytes.NewBuffer(nil)
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("render category chart: %w", err)
	}
	return buffer.Bytes(), nil
}

func hexColor(s string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}
