package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one OHLCV bar for a single instrument.
type PriceTick struct {
	Timestamp    time.Time
	InstrumentID uint32
	Symbol       string
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	Volume       uint64
}

// SettlementPrice is the official daily close at a physical delivery point.
type SettlementPrice struct {
	Date     time.Time
	Pipeline string
	Price    decimal.Decimal
}
