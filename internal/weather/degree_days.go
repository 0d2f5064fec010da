package weather

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultReferenceTemp is the degree-day base in Celsius (65°F).
const DefaultReferenceTemp = 18.33

// ErrInvalidInput reports a malformed or non-finite temperature.
var ErrInvalidInput = errors.New("weather: invalid input")

// DailyTemperature is one day of raw archive readings in Celsius.
type DailyTemperature struct {
	Date time.Time
	High float64
	Low  float64
	Mean float64
}

// Observation is a persisted daily weather record with derived degree days.
type Observation struct {
	Date     time.Time
	HighTemp float64
	LowTemp  float64
	AvgTemp  float64
	CDD      float64
	HDD      float64
}

// Config parameterises the calculator.
type Config struct {
	ReferenceTemp float64 `mapstructure:"reference_temp"`
}

// Calculator derives cooling and heating degree days.
type Calculator struct {
	reference float64
}

// NewCalculator builds a calculator. A zero reference falls back to DefaultReferenceTemp.
func NewCalculator(cfg Config) *Calculator {
	ref := cfg.ReferenceTemp
	if ref == 0 {
		ref = DefaultReferenceTemp
	}
	return &Calculator{reference: ref}
}

// Reference returns the configured base temperature.
func (c *Calculator) Reference() float64 {
	return c.reference
}

// ComputeDegreeDays converts daily readings into observations, one per input day.
func (c *Calculator) ComputeDegreeDays(days []DailyTemperature) ([]Observation, error) {
	if !isFinite(c.reference) {
		return nil, fmt.Errorf("%w: reference temperature %v", ErrInvalidInput, c.reference)
	}

	out := make([]Observation, 0, len(days))
	for _, day := range days {
		if !isFinite(day.Mean) || !isFinite(day.High) || !isFinite(day.Low) {
			return nil, fmt.Errorf("%w: non-finite temperature on %s", ErrInvalidInput, day.Date.Format(time.DateOnly))
		}
		out = append(out, Observation{
			Date:     CivilDate(day.Date),
			HighTemp: day.High,
			LowTemp:  day.Low,
			AvgTemp:  day.Mean,
			CDD:      CDD(day.Mean, c.reference),
			HDD:      HDD(day.Mean, c.reference),
		})
	}
	return out, nil
}

// CDD returns max(0, mean-ref).
func CDD(mean, ref float64) float64 {
	return math.Max(0, mean-ref)
}

// HDD returns max(0, ref-mean).
func HDD(mean, ref float64) float64 {
	return math.Max(0, ref-mean)
}

// Validate checks the degree-day invariants of a stored observation.
func (o Observation) Validate() error {
	for name, v := range map[string]float64{
		"high_temp": o.HighTemp,
		"low_temp":  o.LowTemp,
		"avg_temp":  o.AvgTemp,
		"cdd":       o.CDD,
		"hdd":       o.HDD,
	} {
		if !isFinite(v) {
			return fmt.Errorf("%w: %s is not finite on %s", ErrInvalidInput, name, o.Date.Format(time.DateOnly))
		}
	}
	if o.CDD < 0 || o.HDD < 0 {
		return fmt.Errorf("%w: negative degree days on %s", ErrInvalidInput, o.Date.Format(time.DateOnly))
	}
	if o.CDD*o.HDD != 0 {
		return fmt.Errorf("%w: both cdd and hdd set on %s", ErrInvalidInput, o.Date.Format(time.DateOnly))
	}
	return nil
}

// CivilDate drops the clock part of t, keeping its calendar day in t's location, at midnight UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
