package matching

import "github.com/shopspring/decimal"

// Order is a resting order at one price level. It is created by a Book on
// resting insertion, mutated only by its owning PriceLevel (quantity
// decremented on partial fill), and destroyed on full fill or cancel.
type Order struct {
	ID       uint64
	Quantity decimal.Decimal
}
