package matching

import (
	"container/list"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// PriceLevel is one price rung: a FIFO of resting orders keyed by arrival
// (ids are monotonic, so FIFO order is time priority) plus the aggregate
// resting quantity. The FIFO is a doubly linked list with an id index for
// O(1) removal-by-id, which is strictly better than the O(log k) the spec
// requires at minimum; original_source's Rust reference instead keeps an
// id-ordered BTreeMap per level, which gives the same ordering guarantee at
// a higher asymptotic cost.
//
// PriceLevel also implements btree.Item so a Book can index levels
// directly in its per-side google/btree.BTree without a separate wrapper
// type; ordering is delegated to PriceLevelKey.
type PriceLevel struct {
	key      PriceLevelKey
	quantity decimal.Decimal
	orders   *list.List
	index    map[uint64]*list.Element
}

func newPriceLevel(side Side, ticks Ticks) *PriceLevel {
	return &PriceLevel{
		key:      PriceLevelKey{Side: side, Ticks: ticks},
		quantity: decimal.Zero,
		orders:   list.New(),
		index:    make(map[uint64]*list.Element),
	}
}

// searchKey builds a throwaway PriceLevel carrying only a key, sufficient
// for btree Get/Delete lookups that compare by Less.
func searchKey(side Side, ticks Ticks) *PriceLevel {
	return &PriceLevel{key: PriceLevelKey{Side: side, Ticks: ticks}}
}

// Less implements btree.Item.
func (l *PriceLevel) Less(other btree.Item) bool {
	return l.key.Less(other.(*PriceLevel).key)
}

// Price returns the level's price in ticks.
func (l *PriceLevel) Price() Ticks { return l.key.Ticks }

// Quantity returns the level's aggregate resting quantity.
func (l *PriceLevel) Quantity() decimal.Decimal { return l.quantity }

// OrderCount returns the number of resting orders at this level.
func (l *PriceLevel) OrderCount() int { return l.orders.Len() }

// IsEmpty reports whether the level has no resting orders. Per invariant
// L3, a level with zero orders (and so zero aggregate quantity, by B2) may
// linger in its side's tree; callers decide whether to prune it.
func (l *PriceLevel) IsEmpty() bool { return l.orders.Len() == 0 }

// AddOrder appends order to the FIFO tail. Callers guarantee ids are
// strictly increasing within a level.
func (l *PriceLevel) AddOrder(o *Order) {
	elem := l.orders.PushBack(o)
	l.index[o.ID] = elem
	l.quantity = l.quantity.Add(o.Quantity)
}

// PeekFrontOrder returns the FIFO head, or nil if the level is empty. The
// returned order may be mutated in place (quantity decremented) by the
// caller during a partial fill.
func (l *PriceLevel) PeekFrontOrder() *Order {
	front := l.orders.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*Order)
}

// RemoveFrontOrder pops the FIFO head and subtracts its remaining quantity
// from the aggregate. No-op if the level is empty.
func (l *PriceLevel) RemoveFrontOrder() {
	front := l.orders.Front()
	if front == nil {
		return
	}
	o := front.Value.(*Order)
	l.quantity = l.quantity.Sub(o.Quantity)
	delete(l.index, o.ID)
	l.orders.Remove(front)
}

// ReduceFrontOrder shaves qty off the FIFO head's remaining quantity,
// keeping it resting (a partial fill). Callers must ensure qty is strictly
// less than the head's quantity.
func (l *PriceLevel) ReduceFrontOrder(qty decimal.Decimal) {
	front := l.orders.Front()
	if front == nil {
		return
	}
	o := front.Value.(*Order)
	o.Quantity = o.Quantity.Sub(qty)
	l.quantity = l.quantity.Sub(qty)
}

// CancelOrder removes the order with the given id from anywhere in the
// FIFO and subtracts its quantity from the aggregate. No-op if absent.
func (l *PriceLevel) CancelOrder(id uint64) {
	elem, ok := l.index[id]
	if !ok {
		return
	}
	o := elem.Value.(*Order)
	l.quantity = l.quantity.Sub(o.Quantity)
	delete(l.index, id)
	l.orders.Remove(elem)
}
