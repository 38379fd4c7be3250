package matching

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Scenario 1: a fresh Book starts fully uncrossed with sentinel bests.
func TestBook_InitialState(t *testing.T) {
	b := NewBook("BTCUSD")

	assert.Equal(t, "BTCUSD", b.Symbol())
	assert.Equal(t, math.Inf(-1), b.BestBid())
	assert.Equal(t, math.Inf(1), b.BestAsk())
}

// Scenario 2: resting multiple bid levels tracks the highest as best_bid.
func TestBook_BestBidTracksHighestLevel(t *testing.T) {
	b := NewBook("BTCUSD")

	_, err := b.AddLimitBid(d("100.0"), d("10"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, b.BestBid())

	_, err = b.AddLimitBid(d("101.0"), d("10"))
	require.NoError(t, err)
	assert.Equal(t, 101.0, b.BestBid())
}

// Scenario 3: a marketable limit ask crosses two levels before resting,
// and best_bid repairs to the next surviving level.
func TestBook_MarketableLimitAskCrossesTwoLevels(t *testing.T) {
	b := NewBook("BTCUSD")

	for _, p := range []string{"101", "102", "103", "104"} {
		_, err := b.AddLimitBid(d(p), d("5"))
		require.NoError(t, err)
	}

	id, err := b.AddLimitAsk(d("100.0"), d("10.0"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id, "fully filled ask should not rest")
	assert.Equal(t, 102.0, b.BestBid())
	assert.False(t, b.OrderExists(id))
}

// Scenario 4: a market bid consumes liquidity across levels, leaving a
// partial remainder resting at the level it stopped at, then a second
// market bid finishes that level and partially fills the next one, which
// becomes the new best ask.
func TestBook_MarketBidConsumesAcrossLevels(t *testing.T) {
	b := NewBook("BTCUSD")

	for _, p := range []string{"99", "100", "101", "102", "103"} {
		_, err := b.AddLimitAsk(d(p), d("5"))
		require.NoError(t, err)
	}

	filled, remaining := b.AddMarketBid(d("14.99"))
	assert.True(t, filled)
	assert.True(t, remaining.IsZero())
	assert.Equal(t, 101.0, b.BestAsk())

	filled, remaining = b.AddMarketBid(d("5.00"))
	assert.True(t, filled)
	assert.True(t, remaining.IsZero())
	assert.Equal(t, 102.0, b.BestAsk())
	assert.Equal(t, math.Inf(-1), b.BestBid())
}

// Scenario 5: cancelling the order at the current best repairs best_bid
// to the next surviving level.
func TestBook_CancelUpdatesBest(t *testing.T) {
	b := NewBook("BTCUSD")

	id1, err := b.AddLimitBid(d("100"), d("10"))
	require.NoError(t, err)
	id2, err := b.AddLimitBid(d("101"), d("10"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.Equal(t, 101.0, b.BestBid())

	ok := b.CancelLimitOrder(id2)
	assert.True(t, ok)
	assert.Equal(t, 100.0, b.BestBid())
}

// Scenario 6: a partial fill rests the remainder and keeps best_bid at
// the resting price; the returned id still names a live order.
func TestBook_PartialFillRestsRemainder(t *testing.T) {
	b := NewBook("BTCUSD")

	_, err := b.AddLimitAsk(d("100.0"), d("5"))
	require.NoError(t, err)

	id, err := b.AddLimitBid(d("100.0"), d("10.0"))
	require.NoError(t, err)
	require.NotZero(t, id)

	assert.Equal(t, 100.0, b.BestBid())
	assert.True(t, b.OrderExists(id))
}

// Boundary: three decimal places is rejected as InvalidPrice.
func TestBook_InvalidPrice_ThreeDecimals(t *testing.T) {
	b := NewBook("BTCUSD")

	_, err := b.AddLimitBid(d("100.001"), d("1"))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

// Boundary: non-positive price is rejected.
func TestBook_InvalidPrice_NonPositive(t *testing.T) {
	b := NewBook("BTCUSD")

	_, err := b.AddLimitAsk(d("0"), d("1"))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = b.AddLimitAsk(d("-5.00"), d("1"))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

// Boundary: a market order against an empty opposite side reports no
// fill and returns the input quantity untouched, without mutating state.
func TestBook_MarketOrder_EmptyBook(t *testing.T) {
	b := NewBook("BTCUSD")

	filled, remaining := b.AddMarketBid(d("10"))
	assert.False(t, filled)
	assert.True(t, remaining.Equal(d("10")))
	assert.Equal(t, math.Inf(1), b.BestAsk())
}

// Boundary: a limit order exactly at the opposite best fully crosses
// that level before resting any remainder.
func TestBook_LimitAtOppositeBest_FullyCrosses(t *testing.T) {
	b := NewBook("BTCUSD")

	_, err := b.AddLimitAsk(d("100.00"), d("5"))
	require.NoError(t, err)

	id, err := b.AddLimitBid(d("100.00"), d("5"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
	assert.Equal(t, math.Inf(1), b.BestAsk())
}

// (P1) Every id reported present by order_exists names exactly one
// resting order, and cancelling it makes it disappear.
func TestBook_Property_IdIndexConsistency(t *testing.T) {
	b := NewBook("BTCUSD")

	var ids []uint64
	for _, p := range []string{"90", "91", "92", "93"} {
		id, err := b.AddLimitBid(d(p), d("1"))
		require.NoError(t, err)
		require.NotZero(t, id)
		ids = append(ids, id)
	}

	for _, id := range ids {
		assert.True(t, b.OrderExists(id))
	}

	for _, id := range ids {
		ok := b.CancelLimitOrder(id)
		assert.True(t, ok)
		assert.False(t, b.OrderExists(id))
	}
}

// (P2) After any sequence of operations the book is never crossed: either
// best_bid < best_ask, or one side is the empty sentinel.
func TestBook_Property_NeverCrossed(t *testing.T) {
	b := NewBook("BTCUSD")

	_, err := b.AddLimitBid(d("100"), d("5"))
	require.NoError(t, err)
	_, err = b.AddLimitAsk(d("105"), d("5"))
	require.NoError(t, err)

	assert.True(t, b.BestBid() < b.BestAsk())

	_, err = b.AddLimitAsk(d("100"), d("5"))
	require.NoError(t, err)
	assert.Equal(t, 105.0, b.BestAsk())
	assert.Equal(t, math.Inf(-1), b.BestBid())
}

// (P4) Order ids returned by successful resting insertions increase
// strictly over the book's lifetime, with no reuse across cancels.
func TestBook_Property_IdsStrictlyIncreasing(t *testing.T) {
	b := NewBook("BTCUSD")

	id1, err := b.AddLimitBid(d("100"), d("1"))
	require.NoError(t, err)
	id2, err := b.AddLimitBid(d("99"), d("1"))
	require.NoError(t, err)

	require.True(t, b.CancelLimitOrder(id1))

	id3, err := b.AddLimitBid(d("98"), d("1"))
	require.NoError(t, err)

	assert.True(t, id1 < id2)
	assert.True(t, id2 < id3)
}

// (P5) Adding then cancelling a non-marketable limit order restores
// best_bid/best_ask to their pre-add values.
func TestBook_Property_AddCancelRoundTrip(t *testing.T) {
	b := NewBook("BTCUSD")

	_, err := b.AddLimitBid(d("100"), d("5"))
	require.NoError(t, err)
	_, err = b.AddLimitAsk(d("110"), d("5"))
	require.NoError(t, err)

	preBid, preAsk := b.BestBid(), b.BestAsk()

	id, err := b.AddLimitBid(d("105"), d("3"))
	require.NoError(t, err)
	require.NotZero(t, id)
	assert.Equal(t, 105.0, b.BestBid())

	ok := b.CancelLimitOrder(id)
	require.True(t, ok)

	assert.Equal(t, preBid, b.BestBid())
	assert.Equal(t, preAsk, b.BestAsk())
}

// (P6) Cancelling an unknown id twice returns false both times and does
// not mutate book state.
func TestBook_Property_CancelUnknownIdIsNoop(t *testing.T) {
	b := NewBook("BTCUSD")

	_, err := b.AddLimitBid(d("100"), d("5"))
	require.NoError(t, err)
	preBid := b.BestBid()

	assert.False(t, b.CancelLimitOrder(999))
	assert.False(t, b.CancelLimitOrder(999))
	assert.Equal(t, preBid, b.BestBid())
}

// Open question resolution: an order fully consumed during cross has its
// id removed from the index before the call returns, so a subsequent
// cancel correctly reports false rather than stale-succeeding.
func TestBook_CancelAfterFullFill_ReturnsFalse(t *testing.T) {
	b := NewBook("BTCUSD")

	id, err := b.AddLimitAsk(d("100"), d("5"))
	require.NoError(t, err)

	filledID, crossErr := b.AddLimitBid(d("100"), d("5"))
	require.NoError(t, crossErr)
	assert.Equal(t, uint64(0), filledID)

	assert.False(t, b.OrderExists(id))
	assert.False(t, b.CancelLimitOrder(id))
}

func TestBook_OrderQuantity_ReflectsPartialFillAndAbsence(t *testing.T) {
	b := NewBook("BTCUSD")

	id, err := b.AddLimitAsk(d("100"), d("5"))
	require.NoError(t, err)

	qty, ok := b.OrderQuantity(id)
	require.True(t, ok)
	assert.True(t, qty.Equal(d("5")))

	_, err = b.AddLimitBid(d("100"), d("2"))
	require.NoError(t, err)

	qty, ok = b.OrderQuantity(id)
	require.True(t, ok)
	assert.True(t, qty.Equal(d("3")))

	b.CancelLimitOrder(id)
	_, ok = b.OrderQuantity(id)
	assert.False(t, ok)

	_, ok = b.OrderQuantity(999999)
	assert.False(t, ok)
}

func TestBook_Snapshot_RespectsDepthAndSkipsEmptyLevels(t *testing.T) {
	b := NewBook("BTCUSD")

	for _, p := range []string{"100", "99", "98"} {
		_, err := b.AddLimitBid(d(p), d("2"))
		require.NoError(t, err)
	}

	bids, _ := b.Snapshot(2)
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Price.Equal(d("100")))
	assert.True(t, bids[1].Price.Equal(d("99")))

	bids, asks := b.Snapshot(0)
	assert.Nil(t, bids)
	assert.Nil(t, asks)
}

func TestParsePrice_RejectsThreeDecimals(t *testing.T) {
	_, err := ParsePrice(d("1.005"))
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestParsePrice_AcceptsTwoDecimals(t *testing.T) {
	ticks, err := ParsePrice(d("1.05"))
	require.NoError(t, err)
	assert.Equal(t, Ticks(105), ticks)
}
