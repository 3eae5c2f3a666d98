package replay_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/okian/holdsnap/internal/domain/replay"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func ev(block uint64, dir model.Direction, value string) model.TransferEvent {
	return model.TransferEvent{BlockNumber: block, Direction: dir, Value: decimal.RequireFromString(value)}
}

func TestReplay(t *testing.T) {
	Convey("Given a replayer with the default policy", t, func() {
		r := replay.New()
		initial := decimal.NewFromInt(100)

		So(r.Policy(), ShouldEqual, replay.Overwrite)

		Convey("When there are no events", func() {
			res := r.Replay(initial)

			Convey("Then the minimum should be the initial amount", func() {
				So(res.Minimum.Equal(initial), ShouldBeTrue)
				So(len(res.Timeline), ShouldEqual, 0)
				So(len(res.Balances), ShouldEqual, 1)
			})
		})

		Convey("When events arrive out of block order", func() {
			out := []model.TransferEvent{ev(1005, model.Out, "50")}
			in := []model.TransferEvent{ev(1002, model.In, "20")}
			res := r.Replay(initial, out, in)

			Convey("Then they should be replayed in ascending block order", func() {
				So(res.Timeline[0].BlockNumber, ShouldEqual, 1002)
				So(res.Timeline[1].BlockNumber, ShouldEqual, 1005)
				So(res.Balances[0].String(), ShouldEqual, "100")
				So(res.Balances[1].String(), ShouldEqual, "120")
				So(res.Balances[2].String(), ShouldEqual, "70")
				So(res.Minimum.String(), ShouldEqual, "70")
			})
		})

		Convey("When numeric order differs from lexical order", func() {
			in := []model.TransferEvent{ev(999, model.Out, "90"), ev(1000, model.In, "90")}
			res := r.Replay(initial, in)

			Convey("Then block 999 should be applied first", func() {
				So(res.Minimum.String(), ShouldEqual, "10")
			})
		})

		Convey("When the balance only grows", func() {
			res := r.Replay(initial, []model.TransferEvent{ev(1, model.In, "5"), ev(2, model.In, "7")})

			Convey("Then the minimum should stay at the seed", func() {
				So(res.Minimum.String(), ShouldEqual, "100")
			})
		})

		Convey("When outgoing transfers exceed what was observed", func() {
			res := r.Replay(decimal.NewFromInt(10), []model.TransferEvent{ev(3, model.Out, "15")})

			Convey("Then the minimum may go negative", func() {
				So(res.Minimum.String(), ShouldEqual, "-5")
			})
		})

		Convey("When an IN and an OUT share a block", func() {
			in := []model.TransferEvent{ev(10, model.In, "50")}
			out := []model.TransferEvent{ev(10, model.Out, "5")}
			res := r.Replay(initial, in, out)

			Convey("Then only the last merged event should be kept", func() {
				So(len(res.Timeline), ShouldEqual, 1)
				So(res.Timeline[0].Direction, ShouldEqual, model.Out)
				So(res.Overwritten, ShouldEqual, 1)
				So(res.Minimum.String(), ShouldEqual, "95")
			})
		})
	})

	Convey("Given a replayer that preserves same-block events", t, func() {
		r := replay.New(replay.WithPolicy(replay.Preserve))
		initial := decimal.NewFromInt(100)

		Convey("When an IN and an OUT share a block", func() {
			in := []model.TransferEvent{{BlockNumber: 10, Direction: model.In, Value: decimal.NewFromInt(50), LogIndex: 2}}
			out := []model.TransferEvent{{BlockNumber: 10, Direction: model.Out, Value: decimal.NewFromInt(5), LogIndex: 1}}
			res := r.Replay(initial, in, out)

			Convey("Then both legs should be applied in log order", func() {
				So(len(res.Timeline), ShouldEqual, 2)
				So(res.Overwritten, ShouldEqual, 0)
				So(res.Timeline[0].Direction, ShouldEqual, model.Out)
				So(res.Minimum.String(), ShouldEqual, "95")
				So(res.Balances[2].String(), ShouldEqual, "145")
			})
		})
	})
}

func TestMinimumMatchesPrefixMinimum(t *testing.T) {
	Convey("Given random event sequences", t, func() {
		rng := rand.New(rand.NewSource(7))

		for round := 0; round < 50; round++ {
			initial := decimal.NewFromInt(rng.Int63n(1000))
			var events []model.TransferEvent
			n := rng.Intn(20)
			for i := 0; i < n; i++ {
				dir := model.In
				if rng.Intn(2) == 0 {
					dir = model.Out
				}
				events = append(events, model.TransferEvent{
					BlockNumber: uint64(i*3 + 1),
					Direction:   dir,
					Value:       decimal.New(rng.Int63n(100000), -3),
				})
			}

			want := initial
			running := initial
			for _, e := range events {
				if e.Direction == model.In {
					running = running.Add(e.Value)
				} else {
					running = running.Sub(e.Value)
				}
				if running.LessThan(want) {
					want = running
				}
			}

			got := replay.New().Replay(initial, events).Minimum
			So(got.Equal(want), ShouldBeTrue)
			So(replay.ComputeMinimum(initial, events).Equal(want), ShouldBeTrue)
		}
	})
}

func TestParsePolicy(t *testing.T) {
	Convey("Given policy names", t, func() {
		p, err := replay.ParsePolicy("")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, replay.Overwrite)

		p, err = replay.ParsePolicy("Preserve")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, replay.Preserve)

		_, err = replay.ParsePolicy("sum")
		So(errors.Is(err, replay.ErrUnknownPolicy), ShouldBeTrue)
	})
}
