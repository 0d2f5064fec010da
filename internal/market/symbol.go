package market

import (
	"regexp"
	"strings"
	"time"
)

// DefaultRoot is the Henry Hub natural gas futures root code.
const DefaultRoot = "HH"

// spreadSeparators mark calendar-spread and strategy products.
const spreadSeparators = "-:_/ "

var monthCodes = map[byte]time.Month{
	'F': time.January,
	'G': time.February,
	'H': time.March,
	'J': time.April,
	'K': time.May,
	'M': time.June,
	'N': time.July,
	'Q': time.August,
	'U': time.September,
	'V': time.October,
	'X': time.November,
	'Z': time.December,
}

// SymbolFilter selects outright front-month style contracts for one root.
type SymbolFilter struct {
	root    string
	pattern *regexp.Regexp
}

// NewSymbolFilter compiles the outright pattern for root, e.g. HH -> ^HH[FGHJKMNQUVXZ]\d$.
func NewSymbolFilter(root string) *SymbolFilter {
	if root == "" {
		root = DefaultRoot
	}
	return &SymbolFilter{
		root:    root,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(root) + `[FGHJKMNQUVXZ]\d$`),
	}
}

// Root returns the contract root code.
func (f *SymbolFilter) Root() string {
	return f.root
}

// Pattern returns the outright regular expression. It is valid in both Go and
// PostgreSQL advanced regex syntax.
func (f *SymbolFilter) Pattern() string {
	return f.pattern.String()
}

// Eligible reports whether symbol is a single outright contract and not a spread.
func (f *SymbolFilter) Eligible(symbol string) bool {
	if strings.ContainsAny(symbol, spreadSeparators) {
		return false
	}
	return f.pattern.MatchString(symbol)
}

// IsEligibleSymbol is a convenience wrapper around SymbolFilter.Eligible.
func IsEligibleSymbol(symbol, root string) bool {
	return NewSymbolFilter(root).Eligible(symbol)
}

// ContractMonth decodes the delivery month of an eligible symbol traded on tradeDate.
// The single year digit resolves to the first year not earlier than the year
// before tradeDate whose last digit matches.
func (f *SymbolFilter) ContractMonth(symbol string, tradeDate time.Time) (time.Time, bool) {
	if !f.Eligible(symbol) {
		return time.Time{}, false
	}
	code := symbol[len(f.root)]
	month, ok := monthCodes[code]
	if !ok {
		return time.Time{}, false
	}
	digit := int(symbol[len(f.root)+1] - '0')

	year := tradeDate.Year() - 1
	for year%10 != digit {
		year++
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}
