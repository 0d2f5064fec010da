package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"gas-weather-analytics/internal/align"
)

var (
	// ErrInsufficientData reports a statistic whose minimum cardinality is not met.
	ErrInsufficientData = errors.New("analysis: insufficient data")
	// ErrInvalidInput reports non-finite values or a zero price base.
	ErrInvalidInput = errors.New("analysis: invalid input")
	// ErrInconsistentDegreeDays reports a record that is both extreme-cdd and extreme-hdd.
	ErrInconsistentDegreeDays = errors.New("analysis: record above both cdd and hdd thresholds")
)

// Variables lists the correlation matrix axes in order.
var Variables = []string{"price", "high_temp", "low_temp", "avg_temp", "cdd", "hdd"}

// Matrix is a symmetric Pearson correlation matrix over Variables.
type Matrix struct {
	Vars    []string
	Values  [][]float64
	Records int
	// Constant lists variables with zero variance. Their coefficients are
	// undefined: stored as 0 and reported as absent by At.
	Constant []string
}

// At returns the coefficient for two variable names. ok is false for an
// unknown name or a pair involving a constant variable.
func (m Matrix) At(a, b string) (float64, bool) {
	i, j := indexOf(m.Vars, a), indexOf(m.Vars, b)
	if i < 0 || j < 0 {
		return 0, false
	}
	if indexOf(m.Constant, a) >= 0 || indexOf(m.Constant, b) >= 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

// Correlation computes pairwise Pearson coefficients. It needs at least two
// records and at least two non-constant variables; pairs with a constant
// variable are marked undefined instead of failing the whole matrix.
func Correlation(records []align.Record) (Matrix, error) {
	if len(records) < 2 {
		return Matrix{}, fmt.Errorf("%w: correlation needs at least 2 records, got %d", ErrInsufficientData, len(records))
	}

	cols := columns(records)
	n := len(Variables)
	constant := make([]bool, n)
	var constNames []string
	for i, col := range cols {
		if err := checkFinite(Variables[i], col); err != nil {
			return Matrix{}, err
		}
		if stat.Variance(col, nil) == 0 {
			constant[i] = true
			constNames = append(constNames, Variables[i])
		}
	}
	if n-len(constNames) < 2 {
		return Matrix{}, fmt.Errorf("%w: %v constant across %d records", ErrInsufficientData, constNames, len(records))
	}

	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		if !constant[i] {
			values[i][i] = 1
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if constant[i] || constant[j] {
				continue
			}
			r := stat.Correlation(cols[i], cols[j], nil)
			values[i][j] = r
			values[j][i] = r
		}
	}

	vars := make([]string, n)
	copy(vars, Variables)
	return Matrix{Vars: vars, Values: values, Records: len(records), Constant: constNames}, nil
}

// MonthStat holds per calendar month means pooled across years.
type MonthStat struct {
	Month     time.Month
	Records   int
	MeanPrice float64
	MeanCDD   float64
	MeanHDD   float64
}

// Seasonal groups records by month of year. Months without records are omitted.
func Seasonal(records []align.Record) []MonthStat {
	type bucket struct {
		price, cdd, hdd []float64
	}
	var buckets [12]*bucket
	for _, r := range records {
		idx := int(r.Date.Month()) - 1
		if buckets[idx] == nil {
			buckets[idx] = &bucket{}
		}
		b := buckets[idx]
		b.price = append(b.price, r.Price)
		b.cdd = append(b.cdd, r.CDD)
		b.hdd = append(b.hdd, r.HDD)
	}

	out := make([]MonthStat, 0, 12)
	for i, b := range buckets {
		if b == nil {
			continue
		}
		out = append(out, MonthStat{
			Month:     time.Month(i + 1),
			Records:   len(b.price),
			MeanPrice: stat.Mean(b.price, nil),
			MeanCDD:   stat.Mean(b.cdd, nil),
			MeanHDD:   stat.Mean(b.hdd, nil),
		})
	}
	return out
}

// VolatilityMode selects how percentage changes are based for subsets.
type VolatilityMode string

const (
	// VolatilityFullSeries computes changes on the whole date-sorted series,
	// then picks the subset's values.
	VolatilityFullSeries VolatilityMode = "full_series"
	// VolatilityWithinSubset re-bases changes on consecutive subset members.
	VolatilityWithinSubset VolatilityMode = "within_subset"
)

// ParseVolatilityMode validates a configured mode name.
func ParseVolatilityMode(v string) (VolatilityMode, error) {
	switch VolatilityMode(v) {
	case "", VolatilityFullSeries:
		return VolatilityFullSeries, nil
	case VolatilityWithinSubset:
		return VolatilityWithinSubset, nil
	default:
		return "", fmt.Errorf("unknown volatility mode %q", v)
	}
}

// DefaultPercentile marks the top decile as extreme.
const DefaultPercentile = 0.9

// ExtremeOptions tunes extreme-weather analysis. A zero Percentile means
// unset and selects DefaultPercentile; use a small positive value for a
// near-minimum threshold. A zero Mode selects VolatilityFullSeries.
type ExtremeOptions struct {
	Percentile float64
	Mode       VolatilityMode
}

// Regime summarises prices for a set of records.
type Regime struct {
	Records    int
	MeanPrice  float64
	Volatility float64
}

// ExtremeReport compares price behaviour overall and on extreme degree-day days.
type ExtremeReport struct {
	Percentile   float64
	CDDThreshold float64
	HDDThreshold float64
	Overall      Regime
	HighCDD      Regime
	HighHDD      Regime
}

// Extremes computes mean price and volatility overall and for days whose cdd
// or hdd is strictly above its percentile threshold.
func Extremes(records []align.Record, opts ExtremeOptions) (ExtremeReport, error) {
	p := opts.Percentile
	if p == 0 {
		p = DefaultPercentile
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		return ExtremeReport{}, fmt.Errorf("%w: percentile %v outside [0,1]", ErrInvalidInput, p)
	}
	if len(records) == 0 {
		return ExtremeReport{}, fmt.Errorf("%w: no records", ErrInsufficientData)
	}

	sorted := make([]align.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	prices := make([]float64, len(sorted))
	cdd := make([]float64, len(sorted))
	hdd := make([]float64, len(sorted))
	for i, r := range sorted {
		prices[i], cdd[i], hdd[i] = r.Price, r.CDD, r.HDD
	}
	for name, col := range map[string][]float64{"price": prices, "cdd": cdd, "hdd": hdd} {
		if err := checkFinite(name, col); err != nil {
			return ExtremeReport{}, err
		}
	}

	changes, err := PctChange(prices)
	if err != nil {
		return ExtremeReport{}, err
	}

	report := ExtremeReport{
		Percentile:   p,
		CDDThreshold: Quantile(sortedCopy(cdd), p),
		HDDThreshold: Quantile(sortedCopy(hdd), p),
	}

	all := make([]int, len(sorted))
	var highCDD, highHDD []int
	for i := range sorted {
		all[i] = i
		aboveCDD := cdd[i] > report.CDDThreshold
		aboveHDD := hdd[i] > report.HDDThreshold
		if aboveCDD && aboveHDD {
			return ExtremeReport{}, fmt.Errorf("%w: %s has cdd %.2f and hdd %.2f",
				ErrInconsistentDegreeDays, sorted[i].Date.Format(time.DateOnly), cdd[i], hdd[i])
		}
		if aboveCDD {
			highCDD = append(highCDD, i)
		}
		if aboveHDD {
			highHDD = append(highHDD, i)
		}
	}

	if report.Overall, err = regime("overall", all, prices, changes, opts.Mode); err != nil {
		return ExtremeReport{}, err
	}
	if report.HighCDD, err = regime("high_cdd", highCDD, prices, changes, opts.Mode); err != nil {
		return ExtremeReport{}, err
	}
	if report.HighHDD, err = regime("high_hdd", highHDD, prices, changes, opts.Mode); err != nil {
		return ExtremeReport{}, err
	}
	return report, nil
}

func regime(name string, idx []int, prices, changes []float64, mode VolatilityMode) (Regime, error) {
	if len(idx) == 0 {
		return Regime{}, fmt.Errorf("%w: %s subset is empty", ErrInsufficientData, name)
	}

	subset := make([]float64, len(idx))
	for k, i := range idx {
		subset[k] = prices[i]
	}

	var defined []float64
	if mode == VolatilityWithinSubset {
		rebased, err := PctChange(subset)
		if err != nil {
			return Regime{}, err
		}
		defined = dropNaN(rebased)
	} else {
		picked := make([]float64, len(idx))
		for k, i := range idx {
			picked[k] = changes[i]
		}
		defined = dropNaN(picked)
	}
	if len(defined) < 2 {
		return Regime{}, fmt.Errorf("%w: %s volatility needs 2 price changes, got %d", ErrInsufficientData, name, len(defined))
	}

	return Regime{
		Records:    len(idx),
		MeanPrice:  stat.Mean(subset, nil),
		Volatility: stat.StdDev(defined, nil),
	}, nil
}

// Quantile returns the p-quantile of ascending-sorted values using linear
// interpolation between closest ranks: h = (n-1)p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// PctChange returns (v[i]-v[i-1])/v[i-1]; the first element is NaN.
func PctChange(values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		if values[i-1] == 0 {
			return nil, fmt.Errorf("%w: zero price at position %d", ErrInvalidInput, i-1)
		}
		out[i] = (values[i] - values[i-1]) / values[i-1]
	}
	return out, nil
}

func columns(records []align.Record) [][]float64 {
	cols := make([][]float64, len(Variables))
	for i := range cols {
		cols[i] = make([]float64, len(records))
	}
	for k, r := range records {
		cols[0][k] = r.Price
		cols[1][k] = r.HighTemp
		cols[2][k] = r.LowTemp
		cols[3][k] = r.AvgTemp
		cols[4][k] = r.CDD
		cols[5][k] = r.HDD
	}
	return cols
}

func checkFinite(name string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s[%d] is not finite", ErrInvalidInput, name, i)
		}
	}
	return nil
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func indexOf(vars []string, name string) int {
	for i, v := range vars {
		if v == name {
			return i
		}
	}
	return -1
}
