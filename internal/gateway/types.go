// Package gateway is the command-level collaborator spec.md §1/§6 hands the
// matching kernel's contract to: it turns HTTP commands into calls against
// an internal/matching.Registry, and recovers the teacher's GTC/IOC/FOK
// order-routing vocabulary (internal/hft.TimeInForce) as a policy layered
// on top of the kernel's plain limit/market primitives, never as a kernel
// feature.
package gateway

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TimeInForce mirrors the teacher's internal/hft.TimeInForce vocabulary.
// Only GTC, IOC, and FOK are implemented; GTD (good-till-date) has no
// kernel primitive to compose onto (the kernel never expires resting
// orders) and is rejected by Service.SubmitLimitOrder.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// Side mirrors matching.Side for the gateway's wire types, so callers
// never need to import internal/matching directly.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// LimitOrderRequest is the wire shape for POST /orders/limit.
type LimitOrderRequest struct {
	ClientCommandID uuid.UUID       `json:"client_command_id"`
	Symbol          string          `json:"symbol" binding:"required"`
	Side            Side            `json:"side" binding:"required"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	TimeInForce     TimeInForce     `json:"time_in_force"`
}

// LimitOrderResponse reports how a limit command was handled: the
// resting order id (0 if none rests, per spec.md's "no resting order
// created" convention), and whether IOC/FOK policy rejected or
// partially/fully filled it.
type LimitOrderResponse struct {
	ClientCommandID uuid.UUID       `json:"client_command_id"`
	OrderID         uint64          `json:"order_id"`
	Accepted        bool            `json:"accepted"`
	Resting         bool            `json:"resting"`
	Reason          string          `json:"reason,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	FilledQuantity  decimal.Decimal `json:"filled_quantity"`
}

// MarketOrderRequest is the wire shape for POST /orders/market.
type MarketOrderRequest struct {
	ClientCommandID uuid.UUID       `json:"client_command_id"`
	Symbol          string          `json:"symbol" binding:"required"`
	Side            Side            `json:"side" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
}

// MarketOrderResponse reports a market command's outcome.
type MarketOrderResponse struct {
	ClientCommandID   uuid.UUID       `json:"client_command_id"`
	FullyFilled       bool            `json:"fully_filled"`
	UnfilledRemainder decimal.Decimal `json:"unfilled_remainder"`
	Timestamp         time.Time       `json:"timestamp"`
}

// CancelRequest is the wire shape for DELETE /orders/:symbol/:id.
type CancelRequest struct {
	Symbol  string `json:"symbol" binding:"required"`
	OrderID uint64 `json:"order_id" binding:"required"`
}

// CancelResponse reports whether id was a known resting order.
type CancelResponse struct {
	OrderID   uint64    `json:"order_id"`
	Cancelled bool      `json:"cancelled"`
	Timestamp time.Time `json:"timestamp"`
}

// DepthLevel is one rung of a depth response, mirroring matching.LevelView.
type DepthLevel struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderCount int             `json:"order_count"`
}

// DepthResponse is the wire shape for GET /books/:symbol/depth.
type DepthResponse struct {
	Symbol string       `json:"symbol"`
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
}

// TopOfBookResponse is the wire shape for GET /books/:symbol.
type TopOfBookResponse struct {
	Symbol  string  `json:"symbol"`
	BestBid float64 `json:"best_bid"`
	BestAsk float64 `json:"best_ask"`
}
