package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"gas-weather-analytics/internal/align"
	"gas-weather-analytics/internal/analysis"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSVFile(path string, write func(w *csv.Writer) error) error {
	file, err := create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := write(writer); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

// WriteSeriesCSV writes aligned records, one row per date.
func WriteSeriesCSV(path string, records []align.Record) error {
	return writeCSVFile(path, func(w *csv.Writer) error {
		return encodeSeries(w, records)
	})
}

// EncodeSeriesCSV writes aligned records to w.
func EncodeSeriesCSV(w io.Writer, records []align.Record) error {
	writer := csv.NewWriter(w)
	if err := encodeSeries(writer, records); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func encodeSeries(w *csv.Writer, records []align.Record) error {
	header := []string{"date", "symbol", "price", "high_temp", "low_temp", "avg_temp", "cdd", "hdd"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Date.Format(time.DateOnly),
			r.Symbol,
			formatFloat(r.Price),
			formatFloat(r.HighTemp),
			formatFloat(r.LowTemp),
			formatFloat(r.AvgTemp),
			formatFloat(r.CDD),
			formatFloat(r.HDD),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteCorrelationCSV writes the matrix with variable names on both axes.
func WriteCorrelationCSV(path string, m analysis.Matrix) error {
	return writeCSVFile(path, func(w *csv.Writer) error {
		header := append([]string{""}, m.Vars...)
		if err := w.Write(header); err != nil {
			return err
		}
		for _, name := range m.Vars {
			row := make([]string, 0, len(m.Vars)+1)
			row = append(row, name)
			for _, other := range m.Vars {
				v, ok := m.At(name, other)
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteSeasonalCSV writes per-month means.
func WriteSeasonalCSV(path string, months []analysis.MonthStat) error {
	return writeCSVFile(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"month", "records", "mean_price", "mean_cdd", "mean_hdd"}); err != nil {
			return err
		}
		for _, m := range months {
			row := []string{
				strconv.Itoa(int(m.Month)),
				strconv.Itoa(m.Records),
				formatFloat(m.MeanPrice),
				formatFloat(m.MeanCDD),
				formatFloat(m.MeanHDD),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteExtremesCSV writes one row per regime with its threshold.
func WriteExtremesCSV(path string, r analysis.ExtremeReport) error {
	return writeCSVFile(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"regime", "threshold", "records", "mean_price", "volatility"}); err != nil {
			return err
		}
		rows := []struct {
			name      string
			threshold string
			regime    analysis.Regime
		}{
			{"overall", "", r.Overall},
			{"high_cdd", formatFloat(r.CDDThreshold), r.HighCDD},
			{"high_hdd", formatFloat(r.HDDThreshold), r.HighHDD},
		}
		for _, row := range rows {
			if err := w.Write([]string{
				row.name,
				row.threshold,
				strconv.Itoa(row.regime.Records),
				formatFloat(row.regime.MeanPrice),
				formatFloat(row.regime.Volatility),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
