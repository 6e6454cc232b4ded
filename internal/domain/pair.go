package domain

import (
	"fmt"
	"strings"
)

// TradingPair identifies a base/quote market, e.g. BTC/USDT.
type TradingPair struct {
	Base  string
	Quote string
}

// ParsePair parses a "BASE/QUOTE" symbol into a TradingPair. Both legs are
// upper-cased; an error is returned when the symbol is not exactly two
// non-empty segments.
func ParsePair(symbol string) (TradingPair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TradingPair{}, fmt.Errorf("domain: malformed pair %q (want BASE/QUOTE)", symbol)
	}
	return TradingPair{
		Base:  strings.ToUpper(strings.TrimSpace(parts[0])),
		Quote: strings.ToUpper(strings.TrimSpace(parts[1])),
	}, nil
}

// String returns the canonical "BASE/QUOTE" form.
func (p TradingPair) String() string {
	return p.Base + "/" + p.Quote
}

// IsZero reports whether the pair is unset.
func (p TradingPair) IsZero() bool {
	return p.Base == "" && p.Quote == ""
}
