// Package matching implements a single-symbol, in-memory continuous
// limit-order-book matching engine: two price/time priority books (bids,
// asks), marketable limit and market order crossing, and per-order
// cancellation. A Book is not internally synchronized; callers must
// serialize all mutating calls to a given Book (see Registry for a
// symbol-routed collection of independent Books).
package matching

// Side identifies which book an order rests on or matches against.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	if s == SideBid {
		return "bid"
	}
	return "ask"
}

// opposite returns the side a marketable order on s matches against.
func opposite(s Side) Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}
