package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
	errs "github.com/NastyaGoryachaya/coin-dashboard/internal/errors"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/repository/favorites"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/scheduler"
	schedmocks "github.com/NastyaGoryachaya/coin-dashboard/internal/scheduler/mocks"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/service/dashboard"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/service/history"
	"github.com/golang/mock/gomock"
)

var settings = scheduler.Settings{
	DefaultInterval: 30 * time.Second,
	MaxInterval:     300 * time.Second,
	SinkTimeout:     time.Second,
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// helper to build scheduler with a real state and a mocked gateway
func setup(t *testing.T, sinks ...scheduler.SnapshotSink) (*gomock.Controller, *schedmocks.MockGateway, *dashboard.State, *scheduler.Scheduler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	gw := schedmocks.NewMockGateway(ctrl)
	store := favorites.NewStore(t.TempDir(), "favorites.txt")
	state := dashboard.NewState(store, history.NewTracker(history.DefaultMaxPoints), settings.DefaultInterval, discard())
	return ctrl, gw, state, scheduler.NewScheduler(gw, state, settings, discard(), sinks...)
}

var market = []domain.Coin{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Price: 70000},
	{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", Price: 3500},
}

func TestNextInterval(t *testing.T) {
	t.Parallel()
	def, max := 30*time.Second, 300*time.Second

	for prev := time.Duration(0); prev <= 400*time.Second; prev += 15 * time.Second {
		want := 2 * prev
		if prev == 0 {
			want = 2 * def
		}
		if want > max {
			want = max
		}
		if got := scheduler.NextInterval(scheduler.OutcomeRateLimited, prev, def, max); got != want {
			t.Fatalf("rate limited, prev=%v: got %v want %v", prev, got, want)
		}
		for _, o := range []scheduler.Outcome{scheduler.OutcomeSuccess, scheduler.OutcomeFailure} {
			if got := scheduler.NextInterval(o, prev, def, max); got != def {
				t.Fatalf("%s, prev=%v: got %v want %v", o, prev, got, def)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want scheduler.Outcome
	}{
		{"nil", nil, scheduler.OutcomeSuccess},
		{"http 429", errs.NewStatusError(429), scheduler.OutcomeRateLimited},
		{"wrapped 429", errors.Join(errors.New("fetch"), errs.NewStatusError(429)), scheduler.OutcomeRateLimited},
		{"limit message", errors.New("API Limit reached"), scheduler.OutcomeRateLimited},
		{"http 503", errs.NewStatusError(503), scheduler.OutcomeFailure},
		{"empty body", &errs.FetchError{Kind: errs.ErrEmptyBody}, scheduler.OutcomeFailure},
		{"unreachable", &errs.FetchError{Kind: errs.ErrUnreachable, Err: errors.New("dial tcp: no such host")}, scheduler.OutcomeFailure},
	}
	for _, tc := range cases {
		if got := scheduler.Classify(tc.err); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

// Success: монеты заменены, история дописана, статус с текущим интервалом, интервал сброшен.
func TestTick_Success(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ctrl, gw, state, sched := setup(t)
	defer ctrl.Finish()

	gw.EXPECT().FetchTopCoins(gomock.Any()).Return(market, nil).Times(1)

	next := sched.Tick(ctx, 120*time.Second)
	if next != 30*time.Second {
		t.Fatalf("interval must reset to default, got %v", next)
	}

	snap := state.Snapshot()
	if len(snap.Coins) != 2 || snap.Coins[0] != market[0] || snap.Coins[1] != market[1] {
		t.Fatalf("coins must equal the fetched list: %+v", snap.Coins)
	}
	if snap.Status != "Live data: refreshed every 120s" {
		t.Fatalf("unexpected status: %q", snap.Status)
	}
	if snap.Interval != 30*time.Second {
		t.Fatalf("interval not published: %v", snap.Interval)
	}
	if h := state.GetHistory("BTC"); len(h) != 1 || h[0] != 70000 {
		t.Fatalf("history not recorded: %v", h)
	}
}

// Повторные 429: 30 → 60 → 120 → 240 → 300 → 300, монеты не меняются.
func TestTick_RateLimitBackoffSequence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ctrl, gw, state, sched := setup(t)
	defer ctrl.Finish()

	gomock.InOrder(
		gw.EXPECT().FetchTopCoins(gomock.Any()).Return(market, nil),
		gw.EXPECT().FetchTopCoins(gomock.Any()).Return(nil, errs.NewStatusError(429)).Times(5),
		gw.EXPECT().FetchTopCoins(gomock.Any()).Return(market[:1], nil),
	)

	interval := sched.Tick(ctx, settings.DefaultInterval)
	before := state.Snapshot().Coins

	want := []time.Duration{60, 120, 240, 300, 300}
	for i, w := range want {
		interval = sched.Tick(ctx, interval)
		if interval != w*time.Second {
			t.Fatalf("step %d: got %v want %vs", i, interval, w)
		}
		snap := state.Snapshot()
		if snap.Interval != interval {
			t.Fatalf("step %d: published interval %v, want %v", i, snap.Interval, interval)
		}
		if len(snap.Coins) != len(before) || snap.Coins[0] != before[0] {
			t.Fatalf("step %d: coins changed on rate limit", i)
		}
	}
	if got := state.Snapshot().Status; got != "Rate limited by API, retrying in 300s" {
		t.Fatalf("unexpected status: %q", got)
	}

	if interval = sched.Tick(ctx, interval); interval != settings.DefaultInterval {
		t.Fatalf("success must reset interval, got %v", interval)
	}
	if got := state.Snapshot().Status; got != "Live data: refreshed every 300s" {
		t.Fatalf("unexpected status after recovery: %q", got)
	}
}

// Пустое тело: статус про empty body, монеты прежние, интервал 30.
func TestTick_EmptyBody(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ctrl, gw, state, sched := setup(t)
	defer ctrl.Finish()

	gomock.InOrder(
		gw.EXPECT().FetchTopCoins(gomock.Any()).Return(market, nil),
		gw.EXPECT().FetchTopCoins(gomock.Any()).Return(nil, &errs.FetchError{Kind: errs.ErrEmptyBody}),
	)

	sched.Tick(ctx, settings.DefaultInterval)
	next := sched.Tick(ctx, 240*time.Second)

	snap := state.Snapshot()
	if next != 30*time.Second || snap.Interval != 30*time.Second {
		t.Fatalf("interval must reset to 30s, got %v / %v", next, snap.Interval)
	}
	if !strings.Contains(snap.Status, "empty response body") {
		t.Fatalf("status must mention empty body: %q", snap.Status)
	}
	if len(snap.Coins) != 2 {
		t.Fatalf("coins must be unchanged, got %+v", snap.Coins)
	}
	if h := state.GetHistory("BTC"); len(h) != 1 {
		t.Fatalf("failed fetch must not touch history: %v", h)
	}
}

func TestTick_SinksReceiveSuccessfulSnapshots(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	archive := schedmocks.NewMockSnapshotSink(ctrl)
	cache := schedmocks.NewMockSnapshotSink(ctrl)
	_, gw, _, sched := setupWithCtrl(t, ctrl, archive, cache)

	gomock.InOrder(
		gw.EXPECT().FetchTopCoins(gomock.Any()).Return(market, nil),
		gw.EXPECT().FetchTopCoins(gomock.Any()).Return(nil, errs.NewStatusError(500)),
	)

	// ошибка одного получателя не мешает другому
	archive.EXPECT().SaveSnapshot(gomock.Any(), gomock.AssignableToTypeOf(domain.Snapshot{})).
		Return(errors.New("db down")).Times(1)
	cache.EXPECT().SaveSnapshot(gomock.Any(), gomock.AssignableToTypeOf(domain.Snapshot{})).
		DoAndReturn(func(ctx context.Context, snap domain.Snapshot) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Errorf("sink context must carry a deadline")
			}
			if len(snap.Coins) != 2 || snap.Interval != settings.DefaultInterval {
				t.Errorf("unexpected snapshot: %+v", snap)
			}
			return nil
		}).Times(1)

	sched.Tick(ctx, settings.DefaultInterval)
	sched.Tick(ctx, settings.DefaultInterval) // 500: получатели не вызываются
}

// Остановка во время запроса: в состояние ничего не пишется.
func TestTick_CancelledFetchIsNotPublished(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gw := schedmocks.NewMockGateway(ctrl)
	pub := schedmocks.NewMockPublisher(ctrl)
	pub.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	pub.EXPECT().Fail(gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(context.Background())
	gw.EXPECT().FetchTopCoins(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]domain.Coin, error) {
		cancel()
		return nil, &errs.FetchError{Kind: errs.ErrUnreachable, Err: ctx.Err()}
	})

	sched := scheduler.NewScheduler(gw, pub, settings, discard())
	if next := sched.Tick(ctx, 60*time.Second); next != 60*time.Second {
		t.Fatalf("cancelled tick must keep interval, got %v", next)
	}
}

func TestTick_PublishesFailureStatus(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gw := schedmocks.NewMockGateway(ctrl)
	pub := schedmocks.NewMockPublisher(ctrl)

	gw.EXPECT().FetchTopCoins(gomock.Any()).Return(nil, &errs.FetchError{Kind: errs.ErrMalformedSchema})
	pub.EXPECT().Fail("Error: malformed response schema", 30*time.Second).Times(1)

	sched := scheduler.NewScheduler(gw, pub, settings, discard())
	sched.Tick(context.Background(), 120*time.Second)
}

// Ожидание прерывается отменой контекста, а не длится до конца интервала.
func TestStart_StopsDuringWait(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	long := scheduler.Settings{DefaultInterval: time.Hour, MaxInterval: 2 * time.Hour}
	gw := schedmocks.NewMockGateway(ctrl)
	sink := schedmocks.NewMockSnapshotSink(ctrl)
	store := favorites.NewStore(t.TempDir(), "favorites.txt")
	state := dashboard.NewState(store, history.NewTracker(10), long.DefaultInterval, discard())
	sched := scheduler.NewScheduler(gw, state, long, discard(), sink)

	// получатель вызывается после публикации, дальше планировщик только ждёт
	fetched := make(chan struct{})
	gw.EXPECT().FetchTopCoins(gomock.Any()).Return(market, nil).Times(1)
	sink.EXPECT().SaveSnapshot(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, domain.Snapshot) error {
		close(fetched)
		return nil
	}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	<-fetched
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after cancellation")
	}
	if len(state.Snapshot().Coins) != 2 {
		t.Fatalf("first fetch must run immediately")
	}
}

func TestStart_RepeatsAtInterval(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fast := scheduler.Settings{DefaultInterval: 5 * time.Millisecond, MaxInterval: 20 * time.Millisecond}
	gw := schedmocks.NewMockGateway(ctrl)
	store := favorites.NewStore(t.TempDir(), "favorites.txt")
	state := dashboard.NewState(store, history.NewTracker(10), fast.DefaultInterval, discard())
	sched := scheduler.NewScheduler(gw, state, fast, discard())

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	gw.EXPECT().FetchTopCoins(gomock.Any()).DoAndReturn(func(context.Context) ([]domain.Coin, error) {
		if calls.Add(1) == 3 {
			cancel()
		}
		return market, nil
	}).MinTimes(3)

	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatalf("scheduler did not reach three cycles")
	}
	// третий fetch отменён — его результат не опубликован
	if h := state.GetHistory("BTC"); len(h) != 2 {
		t.Fatalf("expected 2 published cycles, got %d", len(h))
	}
}

func setupWithCtrl(t *testing.T, ctrl *gomock.Controller, sinks ...scheduler.SnapshotSink) (*gomock.Controller, *schedmocks.MockGateway, *dashboard.State, *scheduler.Scheduler) {
	t.Helper()
	gw := schedmocks.NewMockGateway(ctrl)
	store := favorites.NewStore(t.TempDir(), "favorites.txt")
	state := dashboard.NewState(store, history.NewTracker(history.DefaultMaxPoints), settings.DefaultInterval, discard())
	return ctrl, gw, state, scheduler.NewScheduler(gw, state, settings, discard(), sinks...)
}
