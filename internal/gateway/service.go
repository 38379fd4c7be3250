package gateway

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/matchcore/internal/feed"
	"github.com/quantforge/matchcore/internal/matching"
	"github.com/quantforge/matchcore/pkg/observability"
)

// Service composes the matching kernel, the feed publisher, and
// observability into the command-level operations the HTTP handlers
// expose. It holds no book state of its own; internal/matching.Registry
// remains the single source of truth.
type Service struct {
	registry      *matching.Registry
	feed          *feed.Publisher
	metrics       *observability.MetricsProvider
	logger        *observability.Logger
	perf          *observability.PerformanceMonitor
	snapshotDepth int
	minOrderQty   decimal.Decimal
}

// ServiceConfig carries the Service options that aren't themselves
// collaborators (registry, feed, metrics, logger, perf monitor).
type ServiceConfig struct {
	SnapshotDepth int
	MinOrderQty   decimal.Decimal
}

// NewService builds a Service. feed and perf may be nil, in which case
// book updates are simply not published and command timings are not
// recorded (used in tests and in deployments without those collaborators
// configured).
func NewService(registry *matching.Registry, publisher *feed.Publisher, metrics *observability.MetricsProvider, logger *observability.Logger, perf *observability.PerformanceMonitor, cfg ServiceConfig) *Service {
	return &Service{
		registry:      registry,
		feed:          publisher,
		metrics:       metrics,
		logger:        logger,
		perf:          perf,
		snapshotDepth: cfg.SnapshotDepth,
		minOrderQty:   cfg.MinOrderQty,
	}
}

func sideToMatching(s Side) (matching.Side, error) {
	switch s {
	case SideBuy:
		return matching.SideBid, nil
	case SideSell:
		return matching.SideAsk, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// SubmitLimitOrder routes a limit command to its symbol's Book, applying
// TimeInForce policy around the kernel's plain AddLimitBid/AddLimitAsk:
//
//   - GTC rests normally, exactly as the kernel already behaves.
//   - IOC submits the order, then immediately cancels any quantity left
//     resting, reporting how much filled before the cancel.
//   - FOK pre-checks fillability against the opposite side's resting
//     depth, without mutating the book, and rejects instead of resting a
//     partial when the book cannot fully satisfy it.
func (s *Service) SubmitLimitOrder(ctx context.Context, req LimitOrderRequest) (*LimitOrderResponse, error) {
	cmdStart := time.Now()

	side, err := sideToMatching(req.Side)
	if err != nil {
		s.recordCommand(ctx, "submit_limit", http.StatusBadRequest, time.Since(cmdStart))
		return nil, err
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = TimeInForceGTC
	}
	if tif != TimeInForceGTC && tif != TimeInForceIOC && tif != TimeInForceFOK {
		s.recordCommand(ctx, "submit_limit", http.StatusBadRequest, time.Since(cmdStart))
		return nil, fmt.Errorf("unsupported time in force %q", tif)
	}

	if req.Quantity.LessThan(s.minOrderQty) {
		s.recordRejected(ctx, req.Symbol, "below_min_qty")
		s.recordCommand(ctx, "submit_limit", http.StatusBadRequest, time.Since(cmdStart))
		return nil, fmt.Errorf("quantity %s below minimum order size %s", req.Quantity, s.minOrderQty)
	}

	book := s.registry.Book(req.Symbol)
	s.recordSubmitted(ctx, req.Symbol, req.Side, "limit")

	if tif == TimeInForceFOK {
		if !s.wouldFullyFill(book, side, req.Price, req.Quantity) {
			s.recordRejected(ctx, req.Symbol, "fok_insufficient_depth")
			s.logger.Info(ctx, "fok order rejected: insufficient depth", map[string]interface{}{
				"symbol": req.Symbol, "side": req.Side, "quantity": req.Quantity.String(),
			})
			s.recordCommand(ctx, "submit_limit", http.StatusOK, time.Since(cmdStart))
			return &LimitOrderResponse{
				ClientCommandID: req.ClientCommandID,
				Accepted:        false,
				Reason:          "insufficient resting depth to fill order completely",
				Timestamp:       time.Now(),
				FilledQuantity:  decimal.Zero,
			}, nil
		}
	}

	start := time.Now()
	id, err := s.addLimit(book, side, req.Price, req.Quantity)
	s.recordCrossDuration(ctx, req.Symbol, time.Since(start))
	if err != nil {
		s.recordRejected(ctx, req.Symbol, "invalid_price")
		s.logger.Warn(ctx, "limit order rejected", map[string]interface{}{
			"symbol": req.Symbol, "side": req.Side, "error": err.Error(),
		})
		s.recordCommand(ctx, "submit_limit", http.StatusBadRequest, time.Since(cmdStart))
		return nil, err
	}

	filled := req.Quantity
	resting := false

	if id != 0 {
		if restingQty, ok := book.OrderQuantity(id); ok {
			filled = req.Quantity.Sub(restingQty)
		}

		if tif == TimeInForceIOC || tif == TimeInForceFOK {
			book.CancelLimitOrder(id)
			id = 0
		} else {
			resting = true
		}
	}

	s.recordFilled(ctx, req.Symbol, req.Side, filled)
	s.publishBookUpdate(ctx, book, req.Symbol, req.Side, req.Price, req.Quantity, id, resting)
	s.recordRestingDepth(ctx, book, req.Symbol)

	s.logger.Info(ctx, "limit order accepted", map[string]interface{}{
		"symbol": req.Symbol, "side": req.Side, "order_id": id,
		"resting": resting, "filled_quantity": filled.String(),
	})
	s.recordCommand(ctx, "submit_limit", http.StatusOK, time.Since(cmdStart))

	return &LimitOrderResponse{
		ClientCommandID: req.ClientCommandID,
		OrderID:         id,
		Accepted:        true,
		Resting:         resting,
		Timestamp:       time.Now(),
		FilledQuantity:  filled,
	}, nil
}

func (s *Service) addLimit(book *matching.Book, side matching.Side, price, quantity decimal.Decimal) (uint64, error) {
	if side == matching.SideBid {
		return book.AddLimitBid(price, quantity)
	}
	return book.AddLimitAsk(price, quantity)
}

// wouldFullyFill reports whether a limit order of side at price for
// quantity would fully cross against the opposite side's currently
// resting depth, without mutating book. It walks Snapshot's best-first
// levels and sums quantity at prices the taker would accept.
func (s *Service) wouldFullyFill(book *matching.Book, side matching.Side, price, quantity decimal.Decimal) bool {
	bids, asks := book.Snapshot(depthCeiling)

	var levels []matching.LevelView
	if side == matching.SideBid {
		levels = asks
	} else {
		levels = bids
	}

	available := decimal.Zero
	for _, level := range levels {
		if side == matching.SideBid && level.Price.GreaterThan(price) {
			break
		}
		if side == matching.SideAsk && level.Price.LessThan(price) {
			break
		}
		available = available.Add(level.Quantity)
		if available.GreaterThanOrEqual(quantity) {
			return true
		}
	}
	return available.GreaterThanOrEqual(quantity)
}

// depthCeiling bounds how many price levels wouldFullyFill inspects; a FOK
// order larger than this many resting levels deep is vanishingly rare for
// a single symbol and the bound keeps the pre-check cheap.
const depthCeiling = 10000

// SubmitMarketOrder routes a market command to its symbol's Book.
func (s *Service) SubmitMarketOrder(ctx context.Context, req MarketOrderRequest) (*MarketOrderResponse, error) {
	cmdStart := time.Now()

	side, err := sideToMatching(req.Side)
	if err != nil {
		s.recordCommand(ctx, "submit_market", http.StatusBadRequest, time.Since(cmdStart))
		return nil, err
	}

	if req.Quantity.LessThan(s.minOrderQty) {
		s.recordRejected(ctx, req.Symbol, "below_min_qty")
		s.recordCommand(ctx, "submit_market", http.StatusBadRequest, time.Since(cmdStart))
		return nil, fmt.Errorf("quantity %s below minimum order size %s", req.Quantity, s.minOrderQty)
	}

	book := s.registry.Book(req.Symbol)
	s.recordSubmitted(ctx, req.Symbol, req.Side, "market")

	start := time.Now()
	var fullyFilled bool
	var remainder decimal.Decimal
	if side == matching.SideBid {
		fullyFilled, remainder = book.AddMarketBid(req.Quantity)
	} else {
		fullyFilled, remainder = book.AddMarketAsk(req.Quantity)
	}
	s.recordCrossDuration(ctx, req.Symbol, time.Since(start))

	filled := req.Quantity.Sub(remainder)
	s.recordFilled(ctx, req.Symbol, req.Side, filled)
	s.publishBookUpdate(ctx, book, req.Symbol, req.Side, decimal.Zero, req.Quantity, 0, false)
	s.recordRestingDepth(ctx, book, req.Symbol)

	s.logger.Info(ctx, "market order processed", map[string]interface{}{
		"symbol": req.Symbol, "side": req.Side,
		"fully_filled": fullyFilled, "unfilled_remainder": remainder.String(),
	})
	s.recordCommand(ctx, "submit_market", http.StatusOK, time.Since(cmdStart))

	return &MarketOrderResponse{
		ClientCommandID:   req.ClientCommandID,
		FullyFilled:       fullyFilled,
		UnfilledRemainder: remainder,
		Timestamp:         time.Now(),
	}, nil
}

// CancelOrder cancels a resting order by id on its symbol's book.
func (s *Service) CancelOrder(ctx context.Context, req CancelRequest) *CancelResponse {
	cmdStart := time.Now()

	book := s.registry.Book(req.Symbol)
	cancelled := book.CancelLimitOrder(req.OrderID)

	if cancelled && s.metrics != nil {
		s.metrics.RecordOrderCancelled(ctx, req.Symbol)
	}
	if cancelled {
		s.feedPublish(ctx, feed.BookUpdate{
			Symbol:    req.Symbol,
			Type:      feed.UpdateTypeCancel,
			OrderID:   req.OrderID,
			Timestamp: time.Now(),
			BestBid:   book.BestBid(),
			BestAsk:   book.BestAsk(),
		})
	}

	s.logger.Debug(ctx, "cancel order processed", map[string]interface{}{
		"symbol": req.Symbol, "order_id": req.OrderID, "cancelled": cancelled,
	})
	s.recordCommand(ctx, "cancel", http.StatusOK, time.Since(cmdStart))

	return &CancelResponse{
		OrderID:   req.OrderID,
		Cancelled: cancelled,
		Timestamp: time.Now(),
	}
}

// TopOfBook returns the current best bid/ask for symbol.
func (s *Service) TopOfBook(symbol string) TopOfBookResponse {
	book := s.registry.Book(symbol)
	return TopOfBookResponse{
		Symbol:  symbol,
		BestBid: book.BestBid(),
		BestAsk: book.BestAsk(),
	}
}

// Depth returns up to depth resting levels per side for symbol. depth <= 0
// falls back to the service's configured default.
func (s *Service) Depth(symbol string, depth int) DepthResponse {
	if depth <= 0 {
		depth = s.snapshotDepth
	}
	book := s.registry.Book(symbol)
	bids, asks := book.Snapshot(depth)

	return DepthResponse{
		Symbol: symbol,
		Bids:   toDepthLevels(bids),
		Asks:   toDepthLevels(asks),
	}
}

func toDepthLevels(views []matching.LevelView) []DepthLevel {
	out := make([]DepthLevel, 0, len(views))
	for _, v := range views {
		out = append(out, DepthLevel{Price: v.Price, Quantity: v.Quantity, OrderCount: v.OrderCount})
	}
	return out
}

func (s *Service) recordSubmitted(ctx context.Context, symbol string, side Side, orderType string) {
	if s.metrics != nil {
		s.metrics.RecordOrderSubmitted(ctx, symbol, string(side), orderType)
	}
}

func (s *Service) recordRejected(ctx context.Context, symbol, reason string) {
	if s.metrics != nil {
		s.metrics.RecordOrderRejected(ctx, symbol, reason)
	}
}

func (s *Service) recordCrossDuration(ctx context.Context, symbol string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordCrossDuration(ctx, symbol, d)
	}
}

// recordFilled records RecordOrderFilled once per command that actually
// crossed, skipping commands that rested or were rejected without
// consuming any opposite-side quantity.
func (s *Service) recordFilled(ctx context.Context, symbol string, side Side, filled decimal.Decimal) {
	if s.metrics == nil || filled.IsZero() {
		return
	}
	s.metrics.RecordOrderFilled(ctx, symbol, string(side))
}

// recordCommand feeds the command's outcome into the polled performance
// monitor, independent of the push-on-event OTel metrics above.
func (s *Service) recordCommand(ctx context.Context, operation string, statusCode int, d time.Duration) {
	if s.perf == nil {
		return
	}
	s.perf.RecordCommand(&observability.CommandMetrics{
		Operation:  operation,
		StatusCode: statusCode,
		Duration:   d,
		Timestamp:  time.Now(),
	})
}

// recordRestingDepth publishes aggregate resting quantity and best price
// gauges for symbol after a mutating command. Sentinel best prices
// (+/-Inf) are skipped, per MetricsProvider.UpdateBestPrice's contract.
func (s *Service) recordRestingDepth(ctx context.Context, book *matching.Book, symbol string) {
	if s.metrics == nil {
		return
	}

	bids, asks := book.Snapshot(depthCeiling)
	bidQty, askQty := decimal.Zero, decimal.Zero
	for _, l := range bids {
		bidQty = bidQty.Add(l.Quantity)
	}
	for _, l := range asks {
		askQty = askQty.Add(l.Quantity)
	}

	bidQtyF, _ := bidQty.Float64()
	askQtyF, _ := askQty.Float64()
	s.metrics.UpdateRestingQuantity(ctx, symbol, "bid", bidQtyF)
	s.metrics.UpdateRestingQuantity(ctx, symbol, "ask", askQtyF)

	if bestBid := book.BestBid(); !math.IsInf(bestBid, 0) {
		s.metrics.UpdateBestPrice(ctx, symbol, "bid", bestBid)
	}
	if bestAsk := book.BestAsk(); !math.IsInf(bestAsk, 0) {
		s.metrics.UpdateBestPrice(ctx, symbol, "ask", bestAsk)
	}
}

func (s *Service) publishBookUpdate(ctx context.Context, book *matching.Book, symbol string, side Side, price, quantity decimal.Decimal, orderID uint64, resting bool) {
	updateType := feed.UpdateTypeFill
	if resting {
		updateType = feed.UpdateTypeRest
	}

	s.feedPublish(ctx, feed.BookUpdate{
		Symbol:    symbol,
		Type:      updateType,
		Side:      string(side),
		Price:     price,
		Quantity:  quantity,
		OrderID:   orderID,
		Timestamp: time.Now(),
		BestBid:   book.BestBid(),
		BestAsk:   book.BestAsk(),
	})
}

func (s *Service) feedPublish(ctx context.Context, update feed.BookUpdate) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(ctx, update)
}
