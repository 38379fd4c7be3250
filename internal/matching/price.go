package matching

import (
	"math"

	"github.com/shopspring/decimal"
)

// Ticks is a fixed-point price representation: ticks = round(price * 100).
// Prices are rejected by ParsePrice unless they already round-trip through
// this representation exactly, so the scaled value below is never actually
// rounded in practice — it is simply the integer price*100.
type Ticks int64

const (
	// bidSentinel is best_bid when the bid book is empty: -infinity.
	bidSentinel Ticks = math.MinInt64
	// askSentinel is best_ask when the ask book is empty: +infinity.
	askSentinel Ticks = math.MaxInt64

	pricePrecision = 2
)

// ParsePrice validates a price per spec and converts it to ticks. Rejects
// non-positive prices and prices with more than two fractional digits.
func ParsePrice(price decimal.Decimal) (Ticks, error) {
	if price.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}
	scaled := price.Shift(pricePrecision)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrInvalidPrice
	}
	return Ticks(scaled.IntPart()), nil
}

// Decimal converts ticks back to a display price. Sentinels have no
// meaningful decimal value; callers should check BestBid/BestAsk against
// math.Inf before calling this on a cached best.
func (t Ticks) Decimal() decimal.Decimal {
	return decimal.New(int64(t), -pricePrecision)
}

// Float64 converts ticks to a float64 price, mapping the sentinels to
// +/-Inf so callers can treat best_bid/best_ask as spec's "real or
// sentinel" pair without a separate boolean.
func (t Ticks) Float64() float64 {
	switch t {
	case bidSentinel:
		return math.Inf(-1)
	case askSentinel:
		return math.Inf(1)
	default:
		f, _ := t.Decimal().Float64()
		return f
	}
}
