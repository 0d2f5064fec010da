package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"gas-weather-analytics/internal/align"
)

func rec(y int, m time.Month, d int, price, avg float64) align.Record {
	ref := 18.33
	return align.Record{
		Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		HighTemp: avg + 5,
		LowTemp:  avg - 3,
		AvgTemp:  avg,
		CDD:      math.Max(0, avg-ref),
		HDD:      math.Max(0, ref-avg),
		Price:    price,
		Symbol:   "HHG4",
	}
}

func TestCorrelationSingleRecord(t *testing.T) {
	_, err := Correlation([]align.Record{rec(2024, 1, 1, 3, 2)})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Correlation(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCorrelationMatrix(t *testing.T) {
	records := []align.Record{
		rec(2024, 1, 1, 3.1, -2),
		rec(2024, 1, 2, 2.9, 4),
		rec(2024, 7, 1, 2.2, 27),
		rec(2024, 7, 2, 2.6, 22),
		rec(2024, 4, 3, 2.4, 15),
	}

	m, err := Correlation(records)
	require.NoError(t, err)
	assert.Equal(t, Variables, m.Vars)
	assert.Equal(t, 5, m.Records)
	require.Len(t, m.Values, len(Variables))

	for i := range m.Values {
		assert.Equal(t, 1.0, m.Values[i][i])
		for j := range m.Values[i] {
			assert.False(t, math.IsNaN(m.Values[i][j]))
			assert.Equal(t, m.Values[i][j], m.Values[j][i])
			assert.LessOrEqual(t, math.Abs(m.Values[i][j]), 1.0+1e-12)
		}
	}

	// avg, high and low move in lockstep in this fixture.
	r, ok := m.At("avg_temp", "high_temp")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	price := []float64{3.1, 2.9, 2.2, 2.6, 2.4}
	avg := []float64{-2, 4, 27, 22, 15}
	r, ok = m.At("price", "avg_temp")
	require.True(t, ok)
	assert.InDelta(t, stat.Correlation(price, avg, nil), r, 1e-12)
	assert.Less(t, r, 0.0)

	_, ok = m.At("price", "humidity")
	assert.False(t, ok)
}

func TestCorrelationConstantVariable(t *testing.T) {
	// All winter days: cdd is zero everywhere, the other pairs stay defined.
	records := []align.Record{rec(2024, 1, 1, 3.1, -2), rec(2024, 1, 2, 2.9, 4), rec(2024, 1, 3, 3.3, 1)}
	m, err := Correlation(records)
	require.NoError(t, err)
	assert.Equal(t, []string{"cdd"}, m.Constant)

	_, ok := m.At("price", "cdd")
	assert.False(t, ok)
	_, ok = m.At("cdd", "cdd")
	assert.False(t, ok)

	r, ok := m.At("price", "hdd")
	require.True(t, ok)
	assert.InDelta(t, stat.Correlation([]float64{3.1, 2.9, 3.3}, []float64{20.33, 14.33, 17.33}, nil), r, 1e-9)

	for i := range m.Values {
		for j := range m.Values[i] {
			assert.False(t, math.IsNaN(m.Values[i][j]))
		}
	}
}

func TestCorrelationTooFewVaryingVariables(t *testing.T) {
	// Same temperature both days: only price varies.
	records := []align.Record{rec(2024, 1, 1, 3.1, 2), rec(2024, 1, 2, 2.9, 2)}
	_, err := Correlation(records)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "hdd")
}

func TestCorrelationNonFinite(t *testing.T) {
	records := []align.Record{rec(2024, 1, 1, math.NaN(), -2), rec(2024, 7, 2, 2.9, 24)}
	_, err := Correlation(records)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSeasonal(t *testing.T) {
	records := []align.Record{
		rec(2023, 1, 15, 3.0, 0),
		rec(2024, 1, 15, 5.0, 4),
		rec(2024, 7, 4, 2.0, 28.33),
	}

	got := Seasonal(records)
	require.Len(t, got, 2)

	assert.Equal(t, time.January, got[0].Month)
	assert.Equal(t, 2, got[0].Records)
	assert.InDelta(t, 4.0, got[0].MeanPrice, 1e-12)
	assert.InDelta(t, (18.33+14.33)/2, got[0].MeanHDD, 1e-9)
	assert.Zero(t, got[0].MeanCDD)

	assert.Equal(t, time.July, got[1].Month)
	assert.InDelta(t, 10.0, got[1].MeanCDD, 1e-9)

	for _, m := range got {
		assert.NotEqual(t, time.March, m.Month)
	}
	assert.Empty(t, Seasonal(nil))
}

func TestQuantile(t *testing.T) {
	values := []float64{0, 0, 0, 0, 0, 1, 2, 3, 4, 10}
	assert.InDelta(t, 4.6, Quantile(values, 0.9), 1e-12)
	assert.InDelta(t, 0.5, Quantile(values, 0.5), 1e-12)
	assert.Equal(t, 0.0, Quantile(values, 0))
	assert.Equal(t, 10.0, Quantile(values, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.9))
	assert.True(t, math.IsNaN(Quantile(nil, 0.9)))
}

func TestPctChange(t *testing.T) {
	got, err := PctChange([]float64{2, 3, 1.5})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 0.5, got[1], 1e-12)
	assert.InDelta(t, -0.5, got[2], 1e-12)

	_, err = PctChange([]float64{0, 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// extremeFixture: prices with cdd/hdd picked so that at p=0.5 the cdd subset
// is {4,5,7} and the hdd subset is {0,1,2,6}.
func extremeFixture() []align.Record {
	prices := []float64{2, 2.2, 2.0, 2.5, 3.0, 2.4, 2.4, 3.6}
	cdd := []float64{0, 0, 0, 0, 3, 6, 0, 9}
	hdd := []float64{8, 10, 4, 1, 0, 0, 2, 0}
	out := make([]align.Record, len(prices))
	for i := range prices {
		out[i] = align.Record{
			Date:  time.Date(2024, 3, i+1, 0, 0, 0, 0, time.UTC),
			Price: prices[i],
			CDD:   cdd[i],
			HDD:   hdd[i],
		}
	}
	// Shuffle input order; analysis must sort by date itself.
	out[0], out[7] = out[7], out[0]
	return out
}

func TestExtremesFullSeries(t *testing.T) {
	input := extremeFixture()
	before := make([]align.Record, len(input))
	copy(before, input)

	report, err := Extremes(input, ExtremeOptions{Percentile: 0.5})
	require.NoError(t, err)
	assert.Equal(t, before, input, "input must not be reordered")

	assert.Equal(t, 0.0, report.CDDThreshold)
	assert.InDelta(t, 1.5, report.HDDThreshold, 1e-12)

	assert.Equal(t, 8, report.Overall.Records)
	assert.InDelta(t, 20.1/8, report.Overall.MeanPrice, 1e-12)

	assert.Equal(t, 3, report.HighCDD.Records)
	assert.InDelta(t, 3.0, report.HighCDD.MeanPrice, 1e-12)
	assert.InDelta(t, stat.StdDev([]float64{0.2, -0.2, 0.5}, nil), report.HighCDD.Volatility, 1e-12)

	assert.Equal(t, 4, report.HighHDD.Records)
	assert.InDelta(t, 2.15, report.HighHDD.MeanPrice, 1e-12)
	assert.InDelta(t, stat.StdDev([]float64{0.1, -0.2 / 2.2, 0}, nil), report.HighHDD.Volatility, 1e-12)

	overall := []float64{0.1, -0.2 / 2.2, 0.25, 0.2, -0.2, 0, 0.5}
	assert.InDelta(t, stat.StdDev(overall, nil), report.Overall.Volatility, 1e-12)
}

func TestExtremesZeroPercentileUsesDefault(t *testing.T) {
	// Days 0-9 are heating days, 10-19 cooling days; p90 keeps two of each.
	records := make([]align.Record, 20)
	for i := range records {
		r := align.Record{
			Date:  time.Date(2024, 6, i+1, 0, 0, 0, 0, time.UTC),
			Price: 2 + float64(i%7)/10,
		}
		if i < 10 {
			r.HDD = float64(i + 1)
		} else {
			r.CDD = float64(i - 9)
		}
		records[i] = r
	}

	unset, err := Extremes(records, ExtremeOptions{})
	require.NoError(t, err)
	explicit, err := Extremes(records, ExtremeOptions{Percentile: DefaultPercentile})
	require.NoError(t, err)

	assert.Equal(t, DefaultPercentile, unset.Percentile)
	assert.Equal(t, explicit, unset)
	assert.Equal(t, 2, unset.HighCDD.Records)
	assert.Equal(t, 2, unset.HighHDD.Records)
}

func TestExtremesWithinSubset(t *testing.T) {
	full, err := Extremes(extremeFixture(), ExtremeOptions{Percentile: 0.5, Mode: VolatilityFullSeries})
	require.NoError(t, err)
	within, err := Extremes(extremeFixture(), ExtremeOptions{Percentile: 0.5, Mode: VolatilityWithinSubset})
	require.NoError(t, err)

	assert.InDelta(t, stat.StdDev([]float64{-0.2, 0.5}, nil), within.HighCDD.Volatility, 1e-12)
	assert.NotEqual(t, full.HighCDD.Volatility, within.HighCDD.Volatility)
	assert.InDelta(t, full.Overall.Volatility, within.Overall.Volatility, 1e-12)
	assert.Equal(t, full.HighCDD.MeanPrice, within.HighCDD.MeanPrice)
}

func TestExtremesBoundaryExcluded(t *testing.T) {
	// p90 of cdd lands on the maximum (two tied maxima), so nothing is strictly above it.
	cdd := []float64{0, 0, 0, 0, 0, 0, 0, 0, 5, 5}
	hdd := []float64{9, 8, 7, 6, 5, 4, 3, 2, 0, 0}
	records := make([]align.Record, len(cdd))
	for i := range cdd {
		records[i] = align.Record{
			Date:  time.Date(2024, 5, i+1, 0, 0, 0, 0, time.UTC),
			Price: 2 + float64(i)/10,
			CDD:   cdd[i],
			HDD:   hdd[i],
		}
	}

	_, err := Extremes(records, ExtremeOptions{})
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "high_cdd")
}

func TestExtremesInconsistentDegreeDays(t *testing.T) {
	records := extremeFixture()
	for i := range records {
		if records[i].CDD == 9 {
			records[i].HDD = 50
		}
	}
	_, err := Extremes(records, ExtremeOptions{Percentile: 0.5})
	assert.ErrorIs(t, err, ErrInconsistentDegreeDays)
}

func TestExtremesInvalid(t *testing.T) {
	_, err := Extremes(nil, ExtremeOptions{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Extremes(extremeFixture(), ExtremeOptions{Percentile: 1.5})
	assert.ErrorIs(t, err, ErrInvalidInput)

	records := extremeFixture()
	records[3].Price = 0
	_, err = Extremes(records, ExtremeOptions{Percentile: 0.5})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseVolatilityMode(t *testing.T) {
	m, err := ParseVolatilityMode("")
	require.NoError(t, err)
	assert.Equal(t, VolatilityFullSeries, m)
	m, err = ParseVolatilityMode("within_subset")
	require.NoError(t, err)
	assert.Equal(t, VolatilityWithinSubset, m)
	_, err = ParseVolatilityMode("ewma")
	assert.Error(t, err)
}
