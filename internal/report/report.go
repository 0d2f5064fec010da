package report

import (
	"errors"
	"math"
	"os"
	"path/filepath"
)

// ErrTooFewPoints reports a chart that needs at least two distinct x values.
var ErrTooFewPoints = errors.New("report: at least two points required")

// Standard artifact names written by Write.
const (
	SeriesCSV      = "aligned_series.csv"
	CorrelationCSV = "correlation_matrix.csv"
	SeasonalCSV    = "seasonal_patterns.csv"
	ExtremesCSV    = "extreme_weather.csv"
	CorrelationPNG = "correlation_heatmap.png"
	SeasonalPNG    = "seasonal_patterns.png"
	SeriesPNG      = "aligned_series.png"
)

// Downsample keeps at most max evenly spaced items, always including the
// first and last one.
func Downsample[T any](items []T, max int) []T {
	if max <= 0 || len(items) <= max {
		return items
	}
	if max == 1 {
		return items[:1]
	}

	result := make([]T, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func create(path string) (*os.File, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return os.Create(path)
}
