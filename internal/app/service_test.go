package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/okian/holdsnap/internal/adapters/checkpoint"
	"github.com/okian/holdsnap/internal/adapters/holders"
	"github.com/okian/holdsnap/internal/adapters/ledger"
	service "github.com/okian/holdsnap/internal/app"
	"github.com/okian/holdsnap/internal/domain/allocation"
	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeSource serves canned transfers and records every query.
type fakeSource struct {
	mu      sync.Mutex
	events  map[string][]model.TransferEvent
	failing map[string]bool
	queries []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: map[string][]model.TransferEvent{}, failing: map[string]bool{}}
}

func key(holder string, dir model.Direction) string { return holder + "/" + string(dir) }

func (f *fakeSource) add(holder string, block uint64, dir model.Direction, value string) {
	k := key(holder, dir)
	f.events[k] = append(f.events[k], model.TransferEvent{
		BlockNumber: block,
		Direction:   dir,
		Value:       decimal.RequireFromString(value),
	})
}

func (f *fakeSource) TransferEvents(_ context.Context, holder string, dir model.Direction, from, to uint64) ([]model.TransferEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(holder, dir)
	f.queries = append(f.queries, k)
	if f.failing[k] {
		return nil, errors.New("rpc unavailable")
	}
	var out []model.TransferEvent
	for _, e := range f.events[k] {
		if e.BlockNumber >= from && e.BlockNumber <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeSource) HeadBlock(context.Context) (uint64, error) { return 1010, nil }

func (f *fakeSource) queried(holder string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.queries {
		if q == key(holder, model.In) || q == key(holder, model.Out) {
			return true
		}
	}
	return false
}

// failingStore rejects every commit.
type failingStore struct{ commits int }

func (s *failingStore) Commit(context.Context, checkpoint.State) error {
	s.commits++
	return checkpoint.ErrCommit
}

func (s *failingStore) Load(context.Context) ([]model.HolderRecord, bool, error) {
	return nil, false, nil
}

func holder(addr, amount string) model.Contributor {
	return model.NewContributor(addr, decimal.RequireFromString(amount))
}

func readJSON(path string, v any) {
	b, err := os.ReadFile(path)
	So(err, ShouldBeNil)
	So(json.Unmarshal(b, v), ShouldBeNil)
}

func TestService_EndToEnd(t *testing.T) {
	Convey("Given one holder with an incoming and an outgoing transfer", t, func() {
		src := newFakeSource()
		src.add("0xA", 1002, model.In, "20")
		src.add("0xA", 1005, model.Out, "50")

		dir := t.TempDir()
		w, err := checkpoint.NewWriter(dir, 1000, 1010)
		So(err, ShouldBeNil)
		svc := service.New(ledger.NewCollector(src), w,
			service.WithBlockRange(1000, 1010),
			service.WithRunID("run-1"),
		)

		Convey("When the run completes", func() {
			agg, err := svc.Run(context.Background(), []model.Contributor{holder("0xA", "100")})
			So(err, ShouldBeNil)

			Convey("Then the minimum and airdrop should be exact", func() {
				So(agg.Holders, ShouldEqual, 1)
				So(agg.Eligible, ShouldEqual, 1)
				So(agg.TotalHeld.String(), ShouldEqual, "70")
				So(agg.TotalAirdrop.String(), ShouldEqual, "1.05")
			})

			Convey("Then every artifact should contain the holder", func() {
				var mins, drops map[string]string
				readJSON(w.Paths().MinValue, &mins)
				readJSON(w.Paths().AirdropMap, &drops)
				So(mins["0xA"], ShouldEqual, "70")
				So(drops["0xA"], ShouldEqual, "1.05")

				var d model.Distribution
				readJSON(w.Paths().AirdropArray, &d)
				So(d.Accounts, ShouldResemble, []string{"0xA"})
				So(d.Amounts, ShouldResemble, []string{"1050000000000000000"})

				var records []model.HolderRecord
				readJSON(w.Paths().Transactions, &records)
				So(len(records), ShouldEqual, 1)
				So(records[0].InitialAmount.String(), ShouldEqual, "100")
				So(len(records[0].Transactions), ShouldEqual, 2)
				So(records[0].Transactions[0].BlockNumber, ShouldEqual, 1002)
				So(records[0].Transactions[1].Direction, ShouldEqual, model.Out)
			})

			Convey("Then stats should report a finished run", func() {
				stats := svc.GetStats()
				So(stats["runId"], ShouldEqual, "run-1")
				So(stats["processed"], ShouldEqual, 1)
				So(stats["total"], ShouldEqual, 1)
				So(stats["done"], ShouldEqual, true)
			})
		})
	})
}

func TestService_Aggregate(t *testing.T) {
	Convey("Given several holders with mixed outcomes", t, func() {
		src := newFakeSource()
		src.add("0xB", 10, model.Out, "30")
		src.add("0xC", 12, model.Out, "15")

		w, err := checkpoint.NewWriter(t.TempDir(), 1, 100)
		So(err, ShouldBeNil)
		svc := service.New(ledger.NewCollector(src), w,
			service.WithBlockRange(1, 100),
			service.WithAllocator(allocation.New(allocation.WithDecimals(6))),
		)
		list := []model.Contributor{
			holder("0xA", "1000"),
			holder("0xB", "50"),
			holder("0xC", "10"),
		}

		agg, err := svc.Run(context.Background(), list)
		So(err, ShouldBeNil)

		Convey("Then totals should equal the per-holder sums", func() {
			So(agg.Holders, ShouldEqual, 3)
			So(agg.TotalInitial.String(), ShouldEqual, "1060")
			So(agg.TotalHeld.String(), ShouldEqual, "1015")
			So(agg.TotalAirdrop.String(), ShouldEqual, "15.225")
		})

		Convey("Then a negative minimum should stay out of the distribution", func() {
			So(agg.Eligible, ShouldEqual, 2)
			var d model.Distribution
			readJSON(w.Paths().AirdropArray, &d)
			So(d.Accounts, ShouldResemble, []string{"0xA", "0xB"})
			So(d.Amounts, ShouldResemble, []string{"15000000", "300000"})

			var drops map[string]string
			readJSON(w.Paths().AirdropMap, &drops)
			So(drops["0xC"], ShouldEqual, "-0.075")
		})
	})
}

func TestService_FetchFailure(t *testing.T) {
	Convey("Given a holder whose incoming query fails", t, func() {
		src := newFakeSource()
		src.add("0xA", 5, model.Out, "40")
		src.failing[key("0xA", model.In)] = true

		w, err := checkpoint.NewWriter(t.TempDir(), 1, 10)
		So(err, ShouldBeNil)
		svc := service.New(ledger.NewCollector(src), w, service.WithBlockRange(1, 10))

		agg, err := svc.Run(context.Background(), []model.Contributor{holder("0xA", "100")})

		Convey("Then the run should continue and count the failure", func() {
			So(err, ShouldBeNil)
			So(agg.FetchFailures, ShouldEqual, 1)
			So(agg.TotalHeld.String(), ShouldEqual, "60")
			So(svc.GetStats()["fetchFailures"], ShouldEqual, 1)
		})
	})
}

func TestService_MalformedRecord(t *testing.T) {
	Convey("Given a holder list with a record missing its amount", t, func() {
		src := newFakeSource()
		w, err := checkpoint.NewWriter(t.TempDir(), 1, 10)
		So(err, ShouldBeNil)
		svc := service.New(ledger.NewCollector(src), w, service.WithBlockRange(1, 10))

		list := []model.Contributor{holder("0xA", "5"), {Address: "0xB"}, holder("0xC", "7")}
		_, err = svc.Run(context.Background(), list)

		Convey("Then the run should stop at that record", func() {
			So(errors.Is(err, service.ErrMalformedRecord), ShouldBeTrue)
			So(src.queried("0xC"), ShouldBeFalse)
		})

		Convey("Then holders before it should already be committed", func() {
			var records []model.HolderRecord
			readJSON(w.Paths().Transactions, &records)
			So(len(records), ShouldEqual, 1)
			So(records[0].Address, ShouldEqual, "0xA")
		})
	})
}

func TestService_UnparsableAmount(t *testing.T) {
	Convey("Given a holder file whose second amount cannot be parsed", t, func() {
		list, err := holders.Decode([]byte(`[{"address":"0xA","amount":"100"},{"address":"0xB","amount":""}]`))
		So(err, ShouldBeNil)

		src := newFakeSource()
		w, err := checkpoint.NewWriter(t.TempDir(), 1, 10)
		So(err, ShouldBeNil)
		svc := service.New(ledger.NewCollector(src), w, service.WithBlockRange(1, 10))

		_, err = svc.Run(context.Background(), list)

		Convey("Then the run should fail at that record", func() {
			So(errors.Is(err, service.ErrMalformedRecord), ShouldBeTrue)
			So(src.queried("0xB"), ShouldBeFalse)
		})

		Convey("Then the first holder should already be committed", func() {
			var records []model.HolderRecord
			readJSON(w.Paths().Transactions, &records)
			So(len(records), ShouldEqual, 1)
			So(records[0].Address, ShouldEqual, "0xA")
		})
	})
}

func TestService_CommitFailure(t *testing.T) {
	Convey("Given a store that cannot persist", t, func() {
		store := &failingStore{}
		svc := service.New(ledger.NewCollector(newFakeSource()), store)

		_, err := svc.Run(context.Background(), []model.Contributor{holder("0xA", "1"), holder("0xB", "2")})

		Convey("Then the run should stop after the first holder", func() {
			So(errors.Is(err, checkpoint.ErrCommit), ShouldBeTrue)
			So(store.commits, ShouldEqual, 1)
		})
	})
}

func TestService_Cancelled(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		src := newFakeSource()
		store := &failingStore{}
		svc := service.New(ledger.NewCollector(src), store)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Run(ctx, []model.Contributor{holder("0xA", "1")})

		Convey("Then no holder should be processed", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(store.commits, ShouldEqual, 0)
			So(src.queried("0xA"), ShouldBeFalse)
		})
	})
}

func TestService_Resume(t *testing.T) {
	Convey("Given a previous run that covered the first holder", t, func() {
		dir := t.TempDir()
		first := newFakeSource()
		first.add("0xA", 3, model.Out, "10")

		w, err := checkpoint.NewWriter(dir, 1, 10)
		So(err, ShouldBeNil)
		_, err = service.New(ledger.NewCollector(first), w, service.WithBlockRange(1, 10)).
			Run(context.Background(), []model.Contributor{holder("0xA", "100")})
		So(err, ShouldBeNil)

		Convey("When resuming over the full list", func() {
			second := newFakeSource()
			svc := service.New(ledger.NewCollector(second), w,
				service.WithBlockRange(1, 10),
				service.WithResume(true),
			)
			agg, err := svc.Run(context.Background(), []model.Contributor{holder("0xA", "100"), holder("0xB", "20")})
			So(err, ShouldBeNil)

			Convey("Then the covered holder should not be queried again", func() {
				So(second.queried("0xA"), ShouldBeFalse)
				So(second.queried("0xB"), ShouldBeTrue)
				So(agg.Skipped, ShouldEqual, 1)
			})

			Convey("Then the artifacts should hold both holders", func() {
				var mins map[string]string
				readJSON(w.Paths().MinValue, &mins)
				So(mins["0xA"], ShouldEqual, "90")
				So(mins["0xB"], ShouldEqual, "20")

				var d model.Distribution
				readJSON(w.Paths().AirdropArray, &d)
				So(d.Accounts, ShouldResemble, []string{"0xA", "0xB"})
				So(agg.TotalHeld.String(), ShouldEqual, "110")
			})
		})

		Convey("When resuming over a list that repeats the covered holder", func() {
			second := newFakeSource()
			second.add("0xA", 3, model.Out, "10")
			svc := service.New(ledger.NewCollector(second), w,
				service.WithBlockRange(1, 10),
				service.WithResume(true),
			)
			agg, err := svc.Run(context.Background(), []model.Contributor{
				holder("0xA", "100"), holder("0xB", "20"), holder("0xA", "100"),
			})
			So(err, ShouldBeNil)

			Convey("Then only the first occurrence should be skipped", func() {
				So(agg.Skipped, ShouldEqual, 1)
				So(second.queried("0xA"), ShouldBeTrue)
				So(second.queried("0xB"), ShouldBeTrue)
			})

			Convey("Then the log should match an uninterrupted run", func() {
				records, ok, err := w.Load(context.Background())
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(len(records), ShouldEqual, 3)
				So(records[0].Address, ShouldEqual, "0xA")
				So(records[1].Address, ShouldEqual, "0xB")
				So(records[2].Address, ShouldEqual, "0xA")
			})
		})
	})
}
