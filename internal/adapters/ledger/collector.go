package ledger

import (
	"context"
	"time"

	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/okian/holdsnap/pkg/logger"
	"github.com/okian/holdsnap/pkg/metrics"
)

// CollectorOption applies a configuration option to the Collector.
type CollectorOption func(*Collector)

// WithCollectorLogger sets the logger used for fetch failures.
func WithCollectorLogger(l logger.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCollectorMetrics sets the metrics manager.
func WithCollectorMetrics(m *metrics.Manager) CollectorOption {
	return func(c *Collector) {
		c.metrics = m
	}
}

// Collector reads one direction of a holder's transfers at a time.
//
// A failed query is logged and degraded to an empty event set so a single
// RPC error does not stop the batch. Callers must count the degraded
// fetches: the minimum computed for that holder may be overstated.
type Collector struct {
	source  Source
	logger  logger.Logger
	metrics *metrics.Manager
}

// NewCollector wraps source.
func NewCollector(source Source, opts ...CollectorOption) *Collector {
	c := &Collector{
		source: source,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the events for holder in direction dir over [from, to].
// ok is false when the query failed and the result was degraded to empty.
func (c *Collector) Fetch(ctx context.Context, holder string, dir model.Direction, from, to uint64) ([]model.TransferEvent, bool) {
	start := time.Now()
	events, err := c.source.TransferEvents(ctx, holder, dir, from, to)
	if err != nil {
		c.metrics.RecordFetchFailure(string(dir))
		c.logger.Warn(ctx, "transfer query failed, treating as no events",
			logger.String("address", holder),
			logger.String("direction", string(dir)),
			logger.Uint64("fromBlock", from),
			logger.Uint64("toBlock", to),
			logger.Error(err),
		)
		return nil, false
	}
	c.metrics.RecordFetch(string(dir), len(events), time.Since(start))

	for _, e := range events {
		c.logger.Debug(ctx, "transfer",
			logger.String("address", holder),
			logger.String("direction", string(e.Direction)),
			logger.Uint64("block", e.BlockNumber),
			logger.Stringer("value", e.Value),
		)
	}
	return events, true
}

// HeadBlock returns the current chain height from the underlying source.
func (c *Collector) HeadBlock(ctx context.Context) (uint64, error) {
	return c.source.HeadBlock(ctx)
}
