package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedSettlement flags a settlement CSV row that cannot be parsed.
var ErrMalformedSettlement = errors.New("market: malformed settlement row")

var settlementHeader = []string{"date", "pipeline", "settlement_price"}

// ReadSettlementsFile parses a settlement CSV file.
func ReadSettlementsFile(path string) ([]SettlementPrice, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open settlements: %w", err)
	}
	defer file.Close()
	return ReadSettlements(file)
}

// ReadSettlements parses rows of date,pipeline,settlement_price with a header line.
func ReadSettlements(r io.Reader) ([]SettlementPrice, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(settlementHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read settlements header: %w", err)
	}
	for i, name := range settlementHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("%w: unexpected header %q", ErrMalformedSettlement, strings.Join(header, ","))
		}
	}

	prices := make([]SettlementPrice, 0)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedSettlement, line, err)
		}

		date, err := time.Parse(time.DateOnly, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: date: %v", ErrMalformedSettlement, line, err)
		}
		pipeline := strings.TrimSpace(record[1])
		if pipeline == "" {
			return nil, fmt.Errorf("%w: line %d: empty pipeline", ErrMalformedSettlement, line)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: price: %v", ErrMalformedSettlement, line, err)
		}

		prices = append(prices, SettlementPrice{Date: date, Pipeline: pipeline, Price: price})
	}
	return prices, nil
}
