package report

import (
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"gas-weather-analytics/internal/align"
	"gas-weather-analytics/internal/analysis"
)

func renderFile(path string, render func(w io.Writer) error) error {
	file, err := create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := render(file); err != nil {
		return err
	}
	return file.Close()
}

// paddedRange spans values with a small margin so flat series still render.
func paddedRange(values ...[]float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, vs := range values {
		for _, v := range vs {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// WriteCorrelationPNG renders the price row of the matrix as a bar chart of
// coefficients in [-1, 1].
func WriteCorrelationPNG(path string, m analysis.Matrix) error {
	return renderFile(path, func(w io.Writer) error {
		return RenderCorrelation(w, m)
	})
}

// RenderCorrelation writes the correlation bar chart as PNG to w.
func RenderCorrelation(w io.Writer, m analysis.Matrix) error {
	bars := make([]chart.Value, 0, len(m.Vars))
	for _, name := range m.Vars {
		if name == "price" {
			continue
		}
		r, ok := m.At("price", name)
		if !ok {
			continue
		}
		bars = append(bars, chart.Value{Label: fmt.Sprintf("%s %.2f", name, r), Value: r})
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w: matrix has no price correlations", ErrTooFewPoints)
	}

	graph := chart.BarChart{
		Title:        "Correlation with natural gas price",
		Width:        1024,
		Height:       640,
		BarWidth:     80,
		BarSpacing:   60,
		UseBaseValue: true,
		BaseValue:    0,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: -1, Max: 1},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}

// WriteSeasonalPNG renders mean price against mean cdd and hdd per month.
func WriteSeasonalPNG(path string, months []analysis.MonthStat) error {
	return renderFile(path, func(w io.Writer) error {
		return RenderSeasonal(w, months)
	})
}

// RenderSeasonal writes the seasonal chart as PNG to w.
func RenderSeasonal(w io.Writer, months []analysis.MonthStat) error {
	if len(months) == 0 {
		return fmt.Errorf("%w: no months", ErrTooFewPoints)
	}

	x := make([]float64, len(months))
	price := make([]float64, len(months))
	cdd := make([]float64, len(months))
	hdd := make([]float64, len(months))
	for i, m := range months {
		x[i] = float64(m.Month)
		price[i] = m.MeanPrice
		cdd[i] = m.MeanCDD
		hdd[i] = m.MeanHDD
	}

	ticks := make([]chart.Tick, 0, 12)
	for m := time.January; m <= time.December; m++ {
		ticks = append(ticks, chart.Tick{Value: float64(m), Label: m.String()[:3]})
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  "Seasonal patterns: natural gas price vs degree days",
		Width:  1280,
		Height: 640,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Month",
			Range: &chart.ContinuousRange{Min: 1, Max: 12},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:           "Average price",
			Range:          paddedRange(price),
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Degree days",
			Range:          paddedRange(cdd, hdd),
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "Price", XValues: x, YValues: price},
			chart.ContinuousSeries{Name: "CDD", XValues: x, YValues: cdd, YAxis: chart.YAxisSecondary},
			chart.ContinuousSeries{Name: "HDD", XValues: x, YValues: hdd, YAxis: chart.YAxisSecondary},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// WriteSeriesPNG renders price and average temperature over time.
func WriteSeriesPNG(path string, records []align.Record) error {
	return renderFile(path, func(w io.Writer) error {
		return RenderSeries(w, records)
	})
}

// RenderSeries writes the aligned series chart as PNG to w.
func RenderSeries(w io.Writer, records []align.Record) error {
	if len(records) < 2 {
		return fmt.Errorf("%w: got %d records", ErrTooFewPoints, len(records))
	}

	x := make([]time.Time, len(records))
	price := make([]float64, len(records))
	avg := make([]float64, len(records))
	for i, r := range records {
		x[i] = r.Date
		price[i] = r.Price
		avg[i] = r.AvgTemp
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "Price",
			Range: paddedRange(price),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.3f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name:  "Avg temp (C)",
			Range: paddedRange(avg),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: "Price", XValues: x, YValues: price},
			chart.TimeSeries{Name: "Avg temp", XValues: x, YValues: avg, YAxis: chart.YAxisSecondary},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}
