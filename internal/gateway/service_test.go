package gateway

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/matchcore/internal/config"
	"github.com/quantforge/matchcore/internal/matching"
	"github.com/quantforge/matchcore/pkg/observability"
)

func newTestService() *Service {
	registry := matching.NewRegistry()
	logger := observability.NewLogger(config.ObservabilityConfig{ServiceName: "matchcore-test", LogLevel: "error"})
	return NewService(registry, nil, nil, logger, nil, ServiceConfig{SnapshotDepth: 10})
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestService_SubmitLimitOrder_GTCRestsNormally(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	resp, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		ClientCommandID: uuid.New(),
		Symbol:          "BTC-USD",
		Side:            SideBuy,
		Price:           d("100.00"),
		Quantity:        d("1"),
		TimeInForce:     TimeInForceGTC,
	})

	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Resting)
	assert.NotZero(t, resp.OrderID)
	assert.True(t, resp.FilledQuantity.IsZero())

	top := svc.TopOfBook("BTC-USD")
	assert.Equal(t, 100.0, top.BestBid)
}

func TestService_SubmitLimitOrder_IOCCancelsRemainder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideSell, Price: d("100.00"), Quantity: d("1"), TimeInForce: TimeInForceGTC,
	})
	require.NoError(t, err)

	resp, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.00"), Quantity: d("3"), TimeInForce: TimeInForceIOC,
	})
	require.NoError(t, err)

	assert.True(t, resp.Accepted)
	assert.False(t, resp.Resting)
	assert.Zero(t, resp.OrderID)
	assert.True(t, resp.FilledQuantity.Equal(d("1")))

	depth := svc.Depth("BTC-USD", 10)
	assert.Empty(t, depth.Bids)
	assert.Empty(t, depth.Asks)
}

func TestService_SubmitLimitOrder_FOKRejectsWhenDepthInsufficient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideSell, Price: d("100.00"), Quantity: d("1"), TimeInForce: TimeInForceGTC,
	})
	require.NoError(t, err)

	resp, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.00"), Quantity: d("5"), TimeInForce: TimeInForceFOK,
	})
	require.NoError(t, err)

	assert.False(t, resp.Accepted)
	assert.Equal(t, "insufficient resting depth to fill order completely", resp.Reason)

	depth := svc.Depth("BTC-USD", 10)
	require.Len(t, depth.Asks, 1)
	assert.True(t, depth.Asks[0].Quantity.Equal(d("1")))
}

func TestService_SubmitLimitOrder_FOKFillsWhenDepthSufficient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideSell, Price: d("100.00"), Quantity: d("5"), TimeInForce: TimeInForceGTC,
	})
	require.NoError(t, err)

	resp, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.00"), Quantity: d("5"), TimeInForce: TimeInForceFOK,
	})
	require.NoError(t, err)

	assert.True(t, resp.Accepted)
	assert.False(t, resp.Resting)
	assert.True(t, resp.FilledQuantity.Equal(d("5")))
}

func TestService_SubmitLimitOrder_RejectsUnsupportedTimeInForce(t *testing.T) {
	svc := newTestService()

	_, err := svc.SubmitLimitOrder(context.Background(), LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.00"), Quantity: d("1"), TimeInForce: "GTD",
	})

	assert.Error(t, err)
}

func TestService_SubmitLimitOrder_InvalidPriceReturnsError(t *testing.T) {
	svc := newTestService()

	_, err := svc.SubmitLimitOrder(context.Background(), LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.123"), Quantity: d("1"),
	})

	assert.ErrorIs(t, err, matching.ErrInvalidPrice)
}

func TestService_SubmitMarketOrder_ConsumesRestingLiquidity(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideSell, Price: d("100.00"), Quantity: d("2"), TimeInForce: TimeInForceGTC,
	})
	require.NoError(t, err)

	resp, err := svc.SubmitMarketOrder(ctx, MarketOrderRequest{Symbol: "BTC-USD", Side: SideBuy, Quantity: d("2")})
	require.NoError(t, err)

	assert.True(t, resp.FullyFilled)
	assert.True(t, resp.UnfilledRemainder.IsZero())
}

func TestService_SubmitMarketOrder_EmptyBookReturnsUnfilled(t *testing.T) {
	svc := newTestService()

	resp, err := svc.SubmitMarketOrder(context.Background(), MarketOrderRequest{Symbol: "BTC-USD", Side: SideBuy, Quantity: d("2")})
	require.NoError(t, err)

	assert.False(t, resp.FullyFilled)
	assert.True(t, resp.UnfilledRemainder.Equal(d("2")))
}

func TestService_CancelOrder_KnownAndUnknownIDs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	resp, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.00"), Quantity: d("1"), TimeInForce: TimeInForceGTC,
	})
	require.NoError(t, err)

	cancelResp := svc.CancelOrder(ctx, CancelRequest{Symbol: "BTC-USD", OrderID: resp.OrderID})
	assert.True(t, cancelResp.Cancelled)

	noopResp := svc.CancelOrder(ctx, CancelRequest{Symbol: "BTC-USD", OrderID: 999999})
	assert.False(t, noopResp.Cancelled)
}

func TestService_TopOfBook_EmptyBookReportsSentinels(t *testing.T) {
	svc := newTestService()

	top := svc.TopOfBook("ETH-USD")
	assert.True(t, top.BestBid < 0)
	assert.True(t, top.BestAsk > 0)
}

func TestService_Depth_DefaultsToConfiguredSnapshotDepth(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := svc.SubmitLimitOrder(ctx, LimitOrderRequest{
			Symbol:      "BTC-USD",
			Side:        SideBuy,
			Price:       decimal.New(int64(9000+i), -2),
			Quantity:    d("1"),
			TimeInForce: TimeInForceGTC,
		})
		require.NoError(t, err)
	}

	depth := svc.Depth("BTC-USD", 0)
	assert.LessOrEqual(t, len(depth.Bids), 10)
}

func TestSideToMatching_RejectsUnknownSide(t *testing.T) {
	_, err := sideToMatching(Side("HOLD"))
	assert.Error(t, err)
}

func newTestServiceWithMinQty(minQty decimal.Decimal) *Service {
	registry := matching.NewRegistry()
	logger := observability.NewLogger(config.ObservabilityConfig{ServiceName: "matchcore-test", LogLevel: "error"})
	return NewService(registry, nil, nil, logger, nil, ServiceConfig{SnapshotDepth: 10, MinOrderQty: minQty})
}

func TestService_SubmitLimitOrder_RejectsQuantityBelowMinimum(t *testing.T) {
	svc := newTestServiceWithMinQty(d("0.01"))

	_, err := svc.SubmitLimitOrder(context.Background(), LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.00"), Quantity: d("0.001"), TimeInForce: TimeInForceGTC,
	})

	assert.Error(t, err)
}

func TestService_SubmitMarketOrder_RejectsQuantityBelowMinimum(t *testing.T) {
	svc := newTestServiceWithMinQty(d("0.01"))

	_, err := svc.SubmitMarketOrder(context.Background(), MarketOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Quantity: d("0.001"),
	})

	assert.Error(t, err)
}
