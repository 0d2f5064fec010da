package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TickQuery filters stored futures ticks. Zero bounds are open.
type TickQuery struct {
	From time.Time
	To   time.Time
	// SymbolPattern is a POSIX regular expression applied in SQL to cut the
	// rows shipped to the aligner; eligibility is still decided in Go.
	SymbolPattern string
}

// AnalysisRun records the outcome of one analyze invocation.
type AnalysisRun struct {
	ID        uuid.UUID
	Variant   string
	Records   int
	From      time.Time
	To        time.Time
	Summary   json.RawMessage
	CreatedAt time.Time
}
