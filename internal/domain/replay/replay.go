// Package replay rebuilds a holder's balance history from transfer events
// and finds the lowest balance reached.
package replay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Policy decides what happens when two events land on the same block.
type Policy string

const (
	// Overwrite keeps one event per block; the one merged last wins.
	Overwrite Policy = "overwrite"
	// Preserve keeps every event and applies same-block events in log order.
	Preserve Policy = "preserve"
)

// ParsePolicy parses a policy name; empty means Overwrite.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Overwrite:
		return Overwrite, nil
	case Preserve:
		return Preserve, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Option applies a configuration option to the Replayer.
type Option func(*Replayer)

// WithPolicy sets the same-block collision policy.
func WithPolicy(p Policy) Option {
	return func(r *Replayer) {
		if p == Overwrite || p == Preserve {
			r.policy = p
		}
	}
}

// Result is the outcome of replaying one holder.
type Result struct {
	Timeline model.Timeline
	// Balances is the running balance after each event, seeded with the
	// initial amount at index 0.
	Balances []decimal.Decimal
	Minimum  decimal.Decimal
	// Overwritten counts events lost to same-block collisions.
	Overwritten int
}

// Replayer merges event sets and replays them against a starting balance.
type Replayer struct {
	policy Policy
}

// New creates a Replayer. The default policy is Overwrite.
func New(opts ...Option) *Replayer {
	r := &Replayer{policy: Overwrite}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the active collision policy.
func (r *Replayer) Policy() Policy { return r.policy }

// Replay merges sets in the order given and computes the minimum balance.
func (r *Replayer) Replay(initial decimal.Decimal, sets ...[]model.TransferEvent) Result {
	tl, dropped := Merge(r.policy, sets...)
	balances := Balances(initial, tl)
	return Result{
		Timeline:    tl,
		Balances:    balances,
		Minimum:     minOf(balances),
		Overwritten: dropped,
	}
}

// Merge builds a block-ordered timeline from event sets. It also returns
// how many events were discarded by the Overwrite policy.
func Merge(policy Policy, sets ...[]model.TransferEvent) (model.Timeline, int) {
	if policy == Preserve {
		return mergePreserve(sets), 0
	}
	return mergeOverwrite(sets)
}

func mergeOverwrite(sets [][]model.TransferEvent) (model.Timeline, int) {
	byBlock := make(map[uint64]model.TransferEvent)
	dropped := 0
	for _, set := range sets {
		for _, e := range set {
			if _, ok := byBlock[e.BlockNumber]; ok {
				dropped++
			}
			byBlock[e.BlockNumber] = e
		}
	}

	blocks := make([]uint64, 0, len(byBlock))
	for b := range byBlock {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	tl := make(model.Timeline, 0, len(blocks))
	for _, b := range blocks {
		tl = append(tl, byBlock[b])
	}
	return tl, dropped
}

func mergePreserve(sets [][]model.TransferEvent) model.Timeline {
	var tl model.Timeline
	for _, set := range sets {
		tl = append(tl, set...)
	}
	// Stable: merge order breaks ties between legs of a self-transfer.
	sort.SliceStable(tl, func(i, j int) bool {
		if tl[i].BlockNumber != tl[j].BlockNumber {
			return tl[i].BlockNumber < tl[j].BlockNumber
		}
		return tl[i].LogIndex < tl[j].LogIndex
	})
	return tl
}

// Balances returns the running-balance prefix sequence, starting with initial.
func Balances(initial decimal.Decimal, tl model.Timeline) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(tl)+1)
	running := initial
	out = append(out, running)
	for _, e := range tl {
		running = running.Add(e.Signed())
		out = append(out, running)
	}
	return out
}

// ComputeMinimum returns the lowest running balance of tl seeded at initial.
func ComputeMinimum(initial decimal.Decimal, tl model.Timeline) decimal.Decimal {
	return minOf(Balances(initial, tl))
}

func minOf(seq []decimal.Decimal) decimal.Decimal {
	m := seq[0]
	for _, v := range seq[1:] {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}
