// Package feed fans out book state changes to external subscribers over
// Redis pub/sub. It is the out-of-process analogue of an in-process
// subscriber broadcast: where a single-process collaborator could
// range over a slice of channels, a remote one needs a transport, and
// Redis pub/sub is the lightest one that fits the "fire and forget,
// slow subscribers get skipped" semantics the matching kernel wants
// (the kernel itself never blocks on this).
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/quantforge/matchcore/internal/config"
	"github.com/quantforge/matchcore/pkg/observability"
)

// UpdateType identifies what changed on a book.
type UpdateType string

const (
	UpdateTypeRest   UpdateType = "REST"
	UpdateTypeFill   UpdateType = "FILL"
	UpdateTypeCancel UpdateType = "CANCEL"
)

// BookUpdate is one fan-out event: an order resting, a fill (full or
// partial), or a cancellation, plus the resulting top-of-book.
type BookUpdate struct {
	Symbol    string          `json:"symbol"`
	Type      UpdateType      `json:"type"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	OrderID   uint64          `json:"order_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	BestBid   float64         `json:"best_bid"`
	BestAsk   float64         `json:"best_ask"`
}

// redisClient is the slice of *redis.Client that Publisher needs, so
// tests can swap in a fake instead of a live connection.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Publisher fans BookUpdate events out over a Redis channel named
// "<prefix>:<symbol>" per symbol, so subscribers can follow a single
// instrument without filtering.
type Publisher struct {
	client  redisClient
	prefix  string
	timeout time.Duration
	logger  *observability.Logger
}

// NewPublisher builds a Publisher from FeedConfig.
func NewPublisher(cfg config.FeedConfig, logger *observability.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing feed redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff

	return &Publisher{
		client:  redis.NewClient(opts),
		prefix:  cfg.Channel,
		timeout: cfg.PublishTimeout,
		logger:  logger,
	}, nil
}

// Publish fans update out to its symbol's channel. Publish failures are
// logged and swallowed: a subscriber outage must never affect matching,
// which is why this lives outside internal/matching entirely.
func (p *Publisher) Publish(ctx context.Context, update BookUpdate) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := json.Marshal(update)
	if err != nil {
		p.logger.Error(ctx, "marshal book update", err, map[string]interface{}{"symbol": update.Symbol})
		return
	}

	channel := fmt.Sprintf("%s:%s", p.prefix, update.Symbol)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn(ctx, "publish book update failed", map[string]interface{}{
			"symbol":  update.Symbol,
			"channel": channel,
			"error":   err.Error(),
		})
	}
}

// Ping checks Redis connectivity, for wiring into a health check.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (p *Publisher) Close() error {
	return p.client.Close()
}
