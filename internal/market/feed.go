package market

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxFeedLine = 1 << 20

// ErrEmptyFeed is returned when a feed yields no valid records.
var ErrEmptyFeed = errors.New("market: feed contains no valid records")

// FeedStats summarises a decode pass.
type FeedStats struct {
	Lines     int
	Decoded   int
	Malformed int
}

// FeedDecoder turns line-delimited OHLCV JSON into price ticks.
type FeedDecoder struct {
	logger zerolog.Logger
}

// NewFeedDecoder constructs a decoder.
func NewFeedDecoder(logger zerolog.Logger) *FeedDecoder {
	return &FeedDecoder{logger: logger.With().Str("component", "feed_decoder").Logger()}
}

// DecodeFile reads path, transparently decompressing .zst files.
func (d *FeedDecoder) DecodeFile(path string) ([]PriceTick, FeedStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, FeedStats{}, fmt.Errorf("open feed: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, FeedStats{}, fmt.Errorf("open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	d.logger.Info().Str("path", path).Msg("decoding tick feed")
	return d.Decode(r)
}

// Decode parses one JSON record per line. Malformed lines are logged and skipped.
func (d *FeedDecoder) Decode(r io.Reader) ([]PriceTick, FeedStats, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFeedLine)

	var stats FeedStats
	ticks := make([]PriceTick, 0, 1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		tick, err := parseFeedLine(line)
		if err != nil {
			stats.Malformed++
			d.logger.Warn().Err(err).Int("line", stats.Lines).Msg("skipping malformed feed line")
			continue
		}
		ticks = append(ticks, tick)
		stats.Decoded++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read feed: %w", err)
	}
	if len(ticks) == 0 {
		return nil, stats, ErrEmptyFeed
	}

	d.logger.Info().Int("decoded", stats.Decoded).Int("malformed", stats.Malformed).Msg("tick feed decoded")
	return ticks, stats, nil
}

type feedRecord struct {
	Header struct {
		TsEvent      feedTimestamp `json:"ts_event"`
		InstrumentID flexUint      `json:"instrument_id"`
	} `json:"hd"`
	Symbol string           `json:"symbol"`
	Open   *decimal.Decimal `json:"open"`
	High   *decimal.Decimal `json:"high"`
	Low    *decimal.Decimal `json:"low"`
	Close  *decimal.Decimal `json:"close"`
	Volume flexUint         `json:"volume"`
}

func parseFeedLine(line []byte) (PriceTick, error) {
	var rec feedRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return PriceTick{}, fmt.Errorf("decode record: %w", err)
	}
	if rec.Symbol == "" {
		return PriceTick{}, errors.New("record missing symbol")
	}
	if rec.Header.TsEvent.IsZero() {
		return PriceTick{}, errors.New("record missing hd.ts_event")
	}
	if rec.Open == nil || rec.High == nil || rec.Low == nil || rec.Close == nil {
		return PriceTick{}, errors.New("record missing ohlc field")
	}
	if rec.Header.InstrumentID > 1<<32-1 {
		return PriceTick{}, fmt.Errorf("instrument_id %d out of range", rec.Header.InstrumentID)
	}
	// Volume is stored as a signed bigint.
	if rec.Volume > math.MaxInt64 {
		return PriceTick{}, fmt.Errorf("volume %d out of range", rec.Volume)
	}

	return PriceTick{
		Timestamp:    rec.Header.TsEvent.Time,
		InstrumentID: uint32(rec.Header.InstrumentID),
		Symbol:       rec.Symbol,
		Open:         *rec.Open,
		High:         *rec.High,
		Low:          *rec.Low,
		Close:        *rec.Close,
		Volume:       uint64(rec.Volume),
	}, nil
}

// feedTimestamp accepts nanoseconds since epoch (number or string) or RFC3339.
type feedTimestamp struct {
	time.Time
}

func (t *feedTimestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t.Time = time.Unix(0, nanos).UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("parse ts_event %q: %w", raw, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// flexUint accepts an unsigned integer encoded as a JSON number or string.
type flexUint uint64

func (u *flexUint) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return errors.New("missing integer value")
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", raw, err)
	}
	*u = flexUint(v)
	return nil
}
