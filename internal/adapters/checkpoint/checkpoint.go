// Package checkpoint persists the accumulated results of an airdrop run.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/okian/holdsnap/pkg/logger"
	"github.com/okian/holdsnap/pkg/metrics"
	"github.com/shopspring/decimal"
)

// State is everything a run has accumulated so far.
type State struct {
	// Records holds one entry per processed holder, in processing order.
	Records []model.HolderRecord
	// Distribution holds the eligible holders and their smallest-unit amounts.
	Distribution model.Distribution
}

// Paths lists the artifact files of one run.
type Paths struct {
	MinValue     string
	AirdropMap   string
	AirdropArray string
	Transactions string
}

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithDistribution enables or disables the distribution array artifact.
func WithDistribution(enabled bool) Option {
	return func(w *Writer) { w.emitDistribution = enabled }
}

// WithLogger sets the writer's logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(w *Writer) { w.metrics = m }
}

// Writer rewrites every artifact from the full state on each commit. Each
// file is replaced through a rename, so a reader sees either the previous
// or the new version, never a partial one.
type Writer struct {
	paths            Paths
	emitDistribution bool
	logger           logger.Logger
	metrics          *metrics.Manager
}

// NewWriter prepares dir for the artifacts of a run over [ref, head].
func NewWriter(dir string, ref, head uint64, opts ...Option) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrCommit, dir, err)
	}
	name := func(kind string) string {
		return filepath.Join(dir, fmt.Sprintf("%s_%d_%d_.json", kind, ref, head))
	}
	w := &Writer{
		paths: Paths{
			MinValue:     name("minvalue"),
			AirdropMap:   name("airdrop_map"),
			AirdropArray: name("airdrop_array"),
			Transactions: name("transactions"),
		},
		emitDistribution: true,
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Paths returns the artifact locations.
func (w *Writer) Paths() Paths { return w.paths }

// Commit rewrites all artifacts from st. Any error is fatal to the run.
// Cancellation is not observed here so the files never disagree.
func (w *Writer) Commit(ctx context.Context, st State) (err error) {
	start := time.Now()
	defer func() { w.metrics.RecordCommit(time.Since(start), err) }()

	minValues := make(map[string]decimal.Decimal, len(st.Records))
	airdrops := make(map[string]decimal.Decimal, len(st.Records))
	for _, r := range st.Records {
		minValues[r.Address] = r.MinimumValue
		airdrops[r.Address] = r.AirdropAmount
	}

	records := st.Records
	if records == nil {
		records = []model.HolderRecord{}
	}
	artifacts := []struct {
		path string
		v    any
	}{
		{w.paths.MinValue, minValues},
		{w.paths.AirdropMap, airdrops},
	}
	if w.emitDistribution {
		artifacts = append(artifacts, struct {
			path string
			v    any
		}{w.paths.AirdropArray, normalize(st.Distribution)})
	}
	artifacts = append(artifacts, struct {
		path string
		v    any
	}{w.paths.Transactions, records})

	for _, a := range artifacts {
		if err := writeJSON(a.path, a.v); err != nil {
			w.logger.Error(ctx, "checkpoint write failed", logger.String("path", a.path), logger.Error(err))
			return fmt.Errorf("%w: %s: %v", ErrCommit, filepath.Base(a.path), err)
		}
	}

	w.logger.Debug(ctx, "checkpoint committed",
		logger.Int("holders", len(st.Records)),
		logger.Int("eligible", st.Distribution.Len()),
	)
	return nil
}

// Load reads the per-holder log of a previous run. ok is false when no
// log exists yet.
func (w *Writer) Load(ctx context.Context) ([]model.HolderRecord, bool, error) {
	b, err := os.ReadFile(w.paths.Transactions)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	var records []model.HolderRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrLoad, filepath.Base(w.paths.Transactions), err)
	}
	w.logger.Info(ctx, "loaded previous checkpoint",
		logger.String("path", w.paths.Transactions),
		logger.Int("holders", len(records)),
	)
	return records, true, nil
}

// normalize keeps empty sequences as [] rather than null.
func normalize(d model.Distribution) model.Distribution {
	if d.Accounts == nil {
		d.Accounts = []string{}
	}
	if d.Amounts == nil {
		d.Amounts = []string{}
	}
	return d
}

// writeJSON replaces path with the indented encoding of v.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
