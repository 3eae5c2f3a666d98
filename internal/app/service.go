// Package service drives an airdrop run: it walks the holder list, replays
// each holder's transfers, and checkpoints the results after every holder.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/holdsnap/internal/adapters/checkpoint"
	"github.com/okian/holdsnap/internal/domain/allocation"
	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/okian/holdsnap/internal/domain/replay"
	"github.com/okian/holdsnap/pkg/logger"
	"github.com/okian/holdsnap/pkg/metrics"
)

// Fetcher returns one direction of a holder's transfers. ok is false when
// the query failed and the events were degraded to none.
type Fetcher interface {
	Fetch(ctx context.Context, holder string, dir model.Direction, from, to uint64) ([]model.TransferEvent, bool)
}

// Store persists the run state after each holder.
type Store interface {
	Commit(ctx context.Context, st checkpoint.State) error
	Load(ctx context.Context) ([]model.HolderRecord, bool, error)
}

// Service implements the sequential per-holder pipeline.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	fetcher   Fetcher
	store     Store
	replayer  *replay.Replayer
	allocator *allocation.Allocator

	// Configuration
	fromBlock uint64
	toBlock   uint64
	resume    bool
	runID     string

	// State
	processed     int
	total         int
	fetchFailures int
	started       time.Time
	running       bool
	done          bool

	logger  logger.Logger
	metrics *metrics.Manager
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBlockRange sets the inclusive block window replayed for each holder.
func WithBlockRange(from, to uint64) Option {
	return func(s *Service) {
		if from <= to {
			s.fromBlock = from
			s.toBlock = to
		}
	}
}

// WithReplayer sets the balance replayer.
func WithReplayer(r *replay.Replayer) Option {
	return func(s *Service) {
		if r != nil {
			s.replayer = r
		}
	}
}

// WithAllocator sets the airdrop allocator.
func WithAllocator(a *allocation.Allocator) Option {
	return func(s *Service) {
		if a != nil {
			s.allocator = a
		}
	}
}

// WithResume makes Run continue from the store's previous log.
func WithResume(resume bool) Option {
	return func(s *Service) {
		s.resume = resume
	}
}

// WithRunID tags logs and stats with id.
func WithRunID(id string) Option {
	return func(s *Service) {
		s.runID = id
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service reading transfers from fetcher and persisting
// to store.
func New(fetcher Fetcher, store Store, opts ...Option) *Service {
	s := &Service{
		fetcher:   fetcher,
		store:     store,
		replayer:  replay.New(),
		allocator: allocation.New(),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes holders in order. Holder i+1 is not started before holder
// i's checkpoint has been committed. A malformed record or a failed commit
// stops the run; failed ledger queries do not.
func (s *Service) Run(ctx context.Context, holders []model.Contributor) (model.RunAggregate, error) {
	var (
		agg      model.RunAggregate
		st       checkpoint.State
		restored map[string]int
	)

	s.begin(len(holders))
	defer s.finish()
	s.metrics.SetHoldersTotal(len(holders))

	if s.resume {
		var err error
		if restored, err = s.restore(ctx, &st, &agg); err != nil {
			return agg, err
		}
	}

	s.logger.Info(ctx, "starting airdrop run",
		logger.String("runId", s.runID),
		logger.Int("holders", len(holders)),
		logger.Uint64("fromBlock", s.fromBlock),
		logger.Uint64("toBlock", s.toBlock),
		logger.Stringer("percent", s.allocator.Percent()),
		logger.String("collisionPolicy", string(s.replayer.Policy())),
	)
	if s.replayer.Policy() == replay.Preserve {
		s.logger.Warn(ctx, "same-block transfers are all applied; results differ from overwrite runs")
	}

	for i, h := range holders {
		if err := ctx.Err(); err != nil {
			return agg, err
		}
		if err := h.Validate(); err != nil {
			s.logger.Error(ctx, "malformed holder record", logger.Int("index", i), logger.Error(err))
			return agg, fmt.Errorf("%w: holder %d: %v", ErrMalformedRecord, i, err)
		}

		// Each restored record covers one occurrence of its address, so a
		// resumed run ends with the same log as an uninterrupted one.
		if restored[h.Address] > 0 {
			restored[h.Address]--
			agg.Skipped++
			s.metrics.RecordHolderSkipped()
			s.advance(0)
			s.logger.Debug(ctx, "holder already in checkpoint", logger.String("address", h.Address))
			continue
		}

		rec, eligible, failures := s.process(ctx, h)
		// A fetch interrupted by cancellation was degraded to empty; do not
		// persist a record built from it.
		if err := ctx.Err(); err != nil {
			return agg, err
		}

		st.Records = append(st.Records, rec)
		if eligible {
			st.Distribution.Append(rec.Address, s.allocator.ToSmallestUnits(rec.AirdropAmount))
		}
		agg.Add(rec, eligible)
		agg.FetchFailures += failures

		if err := s.store.Commit(ctx, st); err != nil {
			return agg, err
		}
		s.metrics.RecordHolderProcessed(eligible)
		s.advance(failures)

		s.logger.Info(ctx, "holder processed",
			logger.String("progress", fmt.Sprintf("%d/%d", i+1, len(holders))),
			logger.String("address", rec.Address),
			logger.Stringer("initialAmount", rec.InitialAmount),
			logger.Stringer("minimumValue", rec.MinimumValue),
			logger.Stringer("airdropAmount", rec.AirdropAmount),
			logger.Bool("eligible", eligible),
		)
	}

	s.logger.Info(ctx, "airdrop run finished",
		logger.String("runId", s.runID),
		logger.Int("holders", agg.Holders),
		logger.Int("eligible", agg.Eligible),
		logger.Int("skipped", agg.Skipped),
		logger.Stringer("totalInitial", agg.TotalInitial),
		logger.Stringer("totalHeld", agg.TotalHeld),
		logger.Stringer("totalAirdrop", agg.TotalAirdrop),
	)
	if agg.FetchFailures > 0 {
		s.logger.Warn(ctx, "some transfer queries failed; affected minimums may be overstated",
			logger.Int("fetchFailures", agg.FetchFailures),
		)
	}
	return agg, nil
}

// process computes one holder's record and the number of failed fetches.
func (s *Service) process(ctx context.Context, h model.Contributor) (model.HolderRecord, bool, int) {
	failures := 0
	out, ok := s.fetcher.Fetch(ctx, h.Address, model.Out, s.fromBlock, s.toBlock)
	if !ok {
		failures++
	}
	in, ok := s.fetcher.Fetch(ctx, h.Address, model.In, s.fromBlock, s.toBlock)
	if !ok {
		failures++
	}

	// OUT is merged before IN so an IN wins a same-block collision under
	// the overwrite policy.
	res := s.replayer.Replay(h.InitialAmount, out, in)
	s.metrics.RecordEventsOverwritten(res.Overwritten)
	if res.Overwritten > 0 {
		s.logger.Warn(ctx, "same-block transfers collapsed",
			logger.String("address", h.Address),
			logger.Int("dropped", res.Overwritten),
		)
	}

	rec := model.HolderRecord{
		Address:       h.Address,
		InitialAmount: h.InitialAmount,
		MinimumValue:  res.Minimum,
		AirdropAmount: s.allocator.Allocate(res.Minimum),
		Transactions:  res.Timeline,
	}
	return rec, allocation.Eligible(res.Minimum), failures
}

// restore seeds st and agg from the store's previous log and returns how
// many records each address already has.
func (s *Service) restore(ctx context.Context, st *checkpoint.State, agg *model.RunAggregate) (map[string]int, error) {
	records, ok, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(records))
	if !ok {
		return counts, nil
	}
	for _, r := range records {
		eligible := allocation.Eligible(r.MinimumValue)
		st.Records = append(st.Records, r)
		if eligible {
			st.Distribution.Append(r.Address, s.allocator.ToSmallestUnits(r.AirdropAmount))
		}
		agg.Add(r, eligible)
		counts[r.Address]++
	}
	s.logger.Info(ctx, "resuming from checkpoint", logger.Int("restored", len(records)))
	return counts, nil
}

func (s *Service) begin(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = 0
	s.total = total
	s.fetchFailures = 0
	s.started = time.Now()
	s.running = true
	s.done = false
}

func (s *Service) advance(failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.fetchFailures += failures
}

func (s *Service) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.done = true
}

// GetStats returns run progress for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"runId":         s.runID,
		"processed":     s.processed,
		"total":         s.total,
		"fetchFailures": s.fetchFailures,
		"running":       s.running,
		"done":          s.done,
	}
	if !s.started.IsZero() {
		stats["started"] = s.started.UTC().Format(time.RFC3339)
	}
	return stats
}
