package matching

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const btreeDegree = 32

// location is the id index's value type: a value-typed pointer back to the
// owning level, re-looked-up through the side's tree rather than holding a
// direct *PriceLevel reference, so the index never aliases a level that
// has since been pruned and replaced.
type location struct {
	side  Side
	ticks Ticks
}

// Book is the matching kernel for one symbol: two ordered price-level
// trees (bids, asks), a hash index from order id to (side, price), cached
// best-bid/best-ask scalars, and the crossing algorithm. A Book is not
// internally synchronized; callers must serialize all mutating calls to a
// given Book. Multiple independent Books (Registry) may run on different
// goroutines/threads without coordination.
type Book struct {
	symbol      string
	totalOrders uint64

	bestBid Ticks
	bestAsk Ticks

	bids *btree.BTree // PriceLevelKey{Side: SideBid}, best = smallest key
	asks *btree.BTree // PriceLevelKey{Side: SideAsk}, best = smallest key

	index map[uint64]location
}

// NewBook constructs an empty Book for symbol with both sides empty:
// best_bid = -Inf, best_ask = +Inf.
func NewBook(symbol string) *Book {
	return &Book{
		symbol:  symbol,
		bestBid: bidSentinel,
		bestAsk: askSentinel,
		bids:    btree.New(btreeDegree),
		asks:    btree.New(btreeDegree),
		index:   make(map[uint64]location),
	}
}

func (b *Book) Symbol() string { return b.symbol }

// BestBid returns the highest resting buy price, or -Inf if the bid side
// is empty.
func (b *Book) BestBid() float64 { return b.bestBid.Float64() }

// BestAsk returns the lowest resting sell price, or +Inf if the ask side
// is empty.
func (b *Book) BestAsk() float64 { return b.bestAsk.Float64() }

// OrderExists reports whether id currently names a resting order.
func (b *Book) OrderExists(id uint64) bool {
	_, ok := b.index[id]
	return ok
}

// OrderQuantity returns the remaining resting quantity for id, or false if
// id does not name a resting order. Read-only observer, used by the
// command gateway to measure how much of an IOC order filled before it
// cancels any resting remainder.
func (b *Book) OrderQuantity(id uint64) (decimal.Decimal, bool) {
	loc, ok := b.index[id]
	if !ok {
		return decimal.Zero, false
	}
	tree := b.treeFor(loc.side)
	item := tree.Get(searchKey(loc.side, loc.ticks))
	if item == nil {
		return decimal.Zero, false
	}
	level := item.(*PriceLevel)
	for e := level.orders.Front(); e != nil; e = e.Next() {
		o := e.Value.(*Order)
		if o.ID == id {
			return o.Quantity, true
		}
	}
	return decimal.Zero, false
}

func (b *Book) treeFor(side Side) *btree.BTree {
	if side == SideBid {
		return b.bids
	}
	return b.asks
}

func (b *Book) nextOrderID() uint64 {
	b.totalOrders++
	return b.totalOrders
}

func (b *Book) setSentinel(side Side) {
	if side == SideBid {
		b.bestBid = bidSentinel
	} else {
		b.bestAsk = askSentinel
	}
}

func (b *Book) setBest(side Side, ticks Ticks) {
	if side == SideBid {
		b.bestBid = ticks
	} else {
		b.bestAsk = ticks
	}
}

func (b *Book) getOrCreateLevel(side Side, ticks Ticks) *PriceLevel {
	tree := b.treeFor(side)
	if item := tree.Get(searchKey(side, ticks)); item != nil {
		return item.(*PriceLevel)
	}
	level := newPriceLevel(side, ticks)
	tree.ReplaceOrInsert(level)
	return level
}

// AddLimitBid submits a limit buy. Marketable (price >= best_ask) volume
// crosses the ask book first; any remainder rests. Returns the resting
// order's id, or 0 if the order was fully filled on arrival, or
// ErrInvalidPrice if price is non-positive or not a multiple of 0.01.
func (b *Book) AddLimitBid(price, quantity decimal.Decimal) (uint64, error) {
	return b.addLimit(SideBid, price, quantity)
}

// AddLimitAsk submits a limit sell. Marketable (price <= best_bid) volume
// crosses the bid book first; any remainder rests.
func (b *Book) AddLimitAsk(price, quantity decimal.Decimal) (uint64, error) {
	return b.addLimit(SideAsk, price, quantity)
}

func (b *Book) addLimit(side Side, price, quantity decimal.Decimal) (uint64, error) {
	ticks, err := ParsePrice(price)
	if err != nil {
		return 0, err
	}

	remaining := quantity
	if b.marketable(side, ticks) {
		remaining = b.cross(side, quantity, &ticks)
	}

	if !remaining.IsPositive() {
		return 0, nil
	}

	id := b.nextOrderID()
	if side == SideBid {
		if b.bestBid == bidSentinel || ticks > b.bestBid {
			b.bestBid = ticks
		}
	} else {
		if b.bestAsk == askSentinel || ticks < b.bestAsk {
			b.bestAsk = ticks
		}
	}

	level := b.getOrCreateLevel(side, ticks)
	level.AddOrder(&Order{ID: id, Quantity: remaining})
	b.index[id] = location{side: side, ticks: ticks}

	return id, nil
}

// marketable reports whether a limit order of side at ticks would cross
// the opposite book: a bid is marketable at price >= best_ask, an ask at
// price <= best_bid.
func (b *Book) marketable(side Side, ticks Ticks) bool {
	if side == SideBid {
		return ticks >= b.bestAsk
	}
	return ticks <= b.bestBid
}

// AddMarketBid submits a market buy for quantity. Returns whether it was
// fully filled and the quantity left unfilled (0 if fully filled). Never
// rests. If the ask side is empty, returns (false, quantity) unmodified.
func (b *Book) AddMarketBid(quantity decimal.Decimal) (bool, decimal.Decimal) {
	if b.bestAsk == askSentinel {
		return false, quantity
	}
	remaining := b.cross(SideBid, quantity, nil)
	return remaining.IsZero(), remaining
}

// AddMarketAsk submits a market sell for quantity, symmetric to
// AddMarketBid.
func (b *Book) AddMarketAsk(quantity decimal.Decimal) (bool, decimal.Decimal) {
	if b.bestBid == bidSentinel {
		return false, quantity
	}
	remaining := b.cross(SideAsk, quantity, nil)
	return remaining.IsZero(), remaining
}

// CancelLimitOrder removes a resting order by id. Returns false if id is
// unknown (not an error). Repairs the cached best on that side if the
// cancelled order sat at the current best price.
func (b *Book) CancelLimitOrder(id uint64) bool {
	loc, ok := b.index[id]
	if !ok {
		return false
	}

	tree := b.treeFor(loc.side)
	item := tree.Get(searchKey(loc.side, loc.ticks))
	if item != nil {
		level := item.(*PriceLevel)
		level.CancelOrder(id)
	}

	wasBest := (loc.side == SideBid && loc.ticks == b.bestBid) ||
		(loc.side == SideAsk && loc.ticks == b.bestAsk)
	if wasBest {
		b.repairBest(loc.side)
	}

	delete(b.index, id)
	return true
}

// cross walks the opposite side's tree in best-first order (ascending
// keys under that side's own comparator), consuming resting liquidity
// against a taker of takerSide for qty, bounded by bound (nil means a
// market order: no price bound). Returns quantity left unfilled and
// repairs the opposite side's cached best before returning.
func (b *Book) cross(takerSide Side, qty decimal.Decimal, bound *Ticks) decimal.Decimal {
	oppSide := opposite(takerSide)
	tree := b.treeFor(oppSide)
	remaining := qty

	for remaining.IsPositive() {
		item := tree.Min()
		if item == nil {
			b.setSentinel(oppSide)
			return remaining
		}

		level := item.(*PriceLevel)
		if level.IsEmpty() {
			tree.Delete(level)
			continue
		}

		if bound != nil && !withinBound(oppSide, level.Price(), *bound) {
			break
		}

		matchLevel(b, level, &remaining)

		if level.IsEmpty() {
			tree.Delete(level)
		}
	}

	b.repairBest(oppSide)
	return remaining
}

// withinBound reports whether a resting level at levelTicks on oppSide is
// still acceptable to a taker whose limit is bound: an ask level must be
// <= bound (a bid taker's limit), a bid level must be >= bound (an ask
// taker's limit).
func withinBound(oppSide Side, levelTicks, bound Ticks) bool {
	if oppSide == SideAsk {
		return levelTicks <= bound
	}
	return levelTicks >= bound
}

// matchLevel consumes resting FIFO orders at level until remaining is
// exhausted or the level empties, removing fully-filled orders from the
// book's id index as they're consumed.
func matchLevel(b *Book, level *PriceLevel, remaining *decimal.Decimal) {
	for remaining.IsPositive() {
		front := level.PeekFrontOrder()
		if front == nil {
			return
		}

		if front.Quantity.LessThanOrEqual(*remaining) {
			*remaining = remaining.Sub(front.Quantity)
			delete(b.index, front.ID)
			level.RemoveFrontOrder()
		} else {
			level.ReduceFrontOrder(*remaining)
			*remaining = decimal.Zero
		}
	}
}

// repairBest scans side's tree from the true best (ascending, under that
// side's own comparator) for the first level with positive quantity,
// skipping lingering empty levels (invariant L3), and caches it as the
// new best. Sets the sentinel if no such level exists.
func (b *Book) repairBest(side Side) {
	tree := b.treeFor(side)
	var found *PriceLevel

	tree.Ascend(func(item btree.Item) bool {
		level := item.(*PriceLevel)
		if level.IsEmpty() {
			return true
		}
		found = level
		return false
	})

	if found == nil {
		b.setSentinel(side)
		return
	}
	b.setBest(side, found.Price())
}

// LevelView is a read-only snapshot of one price rung, used by Snapshot.
type LevelView struct {
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	OrderCount int
}

// Snapshot returns up to depth price levels per side, best-first,
// skipping empty (lingering) levels. It does not mutate the book.
func (b *Book) Snapshot(depth int) (bids, asks []LevelView) {
	bids = collectLevels(b.bids, depth)
	asks = collectLevels(b.asks, depth)
	return bids, asks
}

func collectLevels(tree *btree.BTree, depth int) []LevelView {
	if depth <= 0 {
		return nil
	}
	views := make([]LevelView, 0, depth)
	tree.Ascend(func(item btree.Item) bool {
		level := item.(*PriceLevel)
		if level.IsEmpty() {
			return true
		}
		views = append(views, LevelView{
			Price:      level.Price().Decimal(),
			Quantity:   level.Quantity(),
			OrderCount: level.OrderCount(),
		})
		return len(views) < depth
	})
	return views
}
