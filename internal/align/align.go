package align

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gas-weather-analytics/internal/market"
	"gas-weather-analytics/internal/weather"
)

// ErrEmptyResult is returned when the join yields no rows.
var ErrEmptyResult = errors.New("align: join produced no records")

// TieBreak selects one eligible contract when several trade on the same date.
type TieBreak string

const (
	// TieBreakNearestExpiry prefers the earliest unexpired delivery month, then
	// the lexicographically smallest symbol, then the lower instrument id.
	TieBreakNearestExpiry TieBreak = "nearest_expiry"
	// TieBreakLexicographic prefers the smallest symbol, then the lower instrument id.
	TieBreakLexicographic TieBreak = "lexicographic"
)

// ParseTieBreak validates a configured policy name.
func ParseTieBreak(v string) (TieBreak, error) {
	switch TieBreak(v) {
	case "", TieBreakNearestExpiry:
		return TieBreakNearestExpiry, nil
	case TieBreakLexicographic:
		return TieBreakLexicographic, nil
	default:
		return "", fmt.Errorf("unknown tie-break policy %q", v)
	}
}

// Options controls instrument selection and the calendar key.
type Options struct {
	Root     string
	Location *time.Location
	TieBreak TieBreak
	// ReferenceDate, when set, excludes dates after it.
	ReferenceDate time.Time
}

// Record is one weather observation joined with one selected price.
type Record struct {
	Date     time.Time
	HighTemp float64
	LowTemp  float64
	AvgTemp  float64
	CDD      float64
	HDD      float64
	Price    float64
	// Symbol is the selected contract, or the pipeline for settlement joins.
	Symbol string
}

// Stats describes what the join dropped or resolved.
type Stats struct {
	WeatherDates     int
	PriceDates       int
	Joined           int
	DuplicateWeather int
	Ineligible       int
	TieBreaks        int
	AfterReference   int
}

// Series joins observations with eligible futures ticks on calendar date.
func Series(obs []weather.Observation, ticks []market.PriceTick, opts Options) ([]Record, error) {
	records, _, err := SeriesWithStats(obs, ticks, opts)
	return records, err
}

// SeriesWithStats is Series plus join diagnostics.
func SeriesWithStats(obs []weather.Observation, ticks []market.PriceTick, opts Options) ([]Record, Stats, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	filter := market.NewSymbolFilter(opts.Root)

	var stats Stats
	byDate := make(map[time.Time][]market.PriceTick)
	for _, tick := range ticks {
		if !filter.Eligible(tick.Symbol) {
			stats.Ineligible++
			continue
		}
		date := weather.CivilDate(tick.Timestamp.In(loc))
		byDate[date] = addCandidate(byDate[date], tick)
	}

	prices := make(map[time.Time]selection, len(byDate))
	for date, cands := range byDate {
		if len(cands) > 1 {
			stats.TieBreaks++
		}
		best := pick(cands, date, filter, opts.TieBreak)
		prices[date] = selection{price: best.Close.InexactFloat64(), symbol: best.Symbol}
	}

	records, err := join(obs, prices, opts.ReferenceDate, &stats)
	return records, stats, err
}

// Settlements joins observations with settlement prices for one pipeline.
// With an empty pipeline, dates carrying several pipelines resolve to the
// lexicographically smallest name.
func Settlements(obs []weather.Observation, settlements []market.SettlementPrice, pipeline string, opts Options) ([]Record, Stats, error) {
	var stats Stats
	prices := make(map[time.Time]selection)
	for _, sp := range settlements {
		if pipeline != "" && sp.Pipeline != pipeline {
			stats.Ineligible++
			continue
		}
		date := weather.CivilDate(sp.Date)
		current, ok := prices[date]
		if ok {
			if current.symbol != sp.Pipeline {
				stats.TieBreaks++
			}
			if current.symbol <= sp.Pipeline {
				continue
			}
		}
		prices[date] = selection{price: sp.Price.InexactFloat64(), symbol: sp.Pipeline}
	}

	records, err := join(obs, prices, opts.ReferenceDate, &stats)
	return records, stats, err
}

type selection struct {
	price  float64
	symbol string
}

// addCandidate keeps one tick per (symbol, instrument) and date, the latest one.
func addCandidate(cands []market.PriceTick, tick market.PriceTick) []market.PriceTick {
	for i, c := range cands {
		if c.Symbol == tick.Symbol && c.InstrumentID == tick.InstrumentID {
			if tick.Timestamp.After(c.Timestamp) {
				cands[i] = tick
			}
			return cands
		}
	}
	return append(cands, tick)
}

func pick(cands []market.PriceTick, date time.Time, filter *market.SymbolFilter, policy TieBreak) market.PriceTick {
	if len(cands) == 1 {
		return cands[0]
	}
	sorted := make([]market.PriceTick, len(cands))
	copy(sorted, cands)

	tradeMonth := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if policy != TieBreakLexicographic {
			am, _ := filter.ContractMonth(a.Symbol, date)
			bm, _ := filter.ContractMonth(b.Symbol, date)
			aExpired, bExpired := am.Before(tradeMonth), bm.Before(tradeMonth)
			if aExpired != bExpired {
				return !aExpired
			}
			if !am.Equal(bm) {
				return am.Before(bm)
			}
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.InstrumentID < b.InstrumentID
	})
	return sorted[0]
}

func join(obs []weather.Observation, prices map[time.Time]selection, reference time.Time, stats *Stats) ([]Record, error) {
	var cutoff time.Time
	if !reference.IsZero() {
		cutoff = weather.CivilDate(reference)
	}

	seen := make(map[time.Time]struct{}, len(obs))
	records := make([]Record, 0, len(obs))
	for _, o := range obs {
		date := weather.CivilDate(o.Date)
		if _, dup := seen[date]; dup {
			stats.DuplicateWeather++
			continue
		}
		seen[date] = struct{}{}

		if !cutoff.IsZero() && date.After(cutoff) {
			stats.AfterReference++
			continue
		}
		sel, ok := prices[date]
		if !ok {
			continue
		}
		records = append(records, Record{
			Date:     date,
			HighTemp: o.HighTemp,
			LowTemp:  o.LowTemp,
			AvgTemp:  o.AvgTemp,
			CDD:      o.CDD,
			HDD:      o.HDD,
			Price:    sel.price,
			Symbol:   sel.symbol,
		})
	}

	stats.WeatherDates = len(seen)
	stats.PriceDates = len(prices)
	stats.Joined = len(records)
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}
