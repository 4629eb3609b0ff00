package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"txguardmon/internal/ledger"
	"txguardmon/internal/model"
)

type fakeSource struct {
	mu       sync.Mutex
	registry ledger.Registry
	catalog  ledger.FailureCatalog
	usage    ledger.TierUsage
	err      error
}

func (f *fakeSource) set(s model.StatsSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry = ledger.Registry{
		TxCount:      s.TxCount,
		SuccessCount: s.SuccessCount,
		FailureCount: s.FailureCount,
	}
	counts := make(map[model.FailureType]uint64, model.NumFailureTypes)
	for _, ft := range model.FailureTypes {
		counts[ft] = s.FailureCountFor(ft)
	}
	f.catalog = ledger.FailureCatalog{Counts: counts}
	f.usage = ledger.TierUsage{Counts: s.TierCounts}
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) Registry(context.Context) (ledger.Registry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registry, f.err
}

func (f *fakeSource) FailureCatalog(context.Context) (ledger.FailureCatalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalog, f.err
}

func (f *fakeSource) TierUsage(context.Context) (ledger.TierUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage, f.err
}

func newTestPoller(src Source) *Poller {
	p := New(src, zap.NewNop())
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p
}

func TestSynthesizeEventCounts(t *testing.T) {
	cases := []struct {
		prev, cur model.StatsSnapshot
	}{
		{
			prev: model.StatsSnapshot{TxCount: 0},
			cur:  model.StatsSnapshot{TxCount: 5, SuccessCount: 3, FailureCount: 2},
		},
		{
			prev: model.StatsSnapshot{TxCount: 10, SuccessCount: 8, FailureCount: 2},
			cur:  model.StatsSnapshot{TxCount: 17, SuccessCount: 12, FailureCount: 5},
		},
		{
			prev: model.StatsSnapshot{TxCount: 4, SuccessCount: 4},
			cur:  model.StatsSnapshot{TxCount: 4, SuccessCount: 4},
		},
	}

	for i, tc := range cases {
		events := SynthesizeEvents(tc.prev, tc.cur)
		wantTotal := int(tc.cur.TxCount - tc.prev.TxCount)
		if len(events) != wantTotal {
			t.Fatalf("case %d: %d events, want %d", i, len(events), wantTotal)
		}

		successes := 0
		for j, ev := range events {
			if ev.SequenceIndex != j {
				t.Fatalf("case %d: sequence index %d at position %d", i, ev.SequenceIndex, j)
			}
			if ev.Success {
				successes++
			}
		}
		if wantSuccess := int(tc.cur.SuccessCount - tc.prev.SuccessCount); successes != wantSuccess {
			t.Fatalf("case %d: %d successes, want %d", i, successes, wantSuccess)
		}
	}
}

func TestSynthesizeSingleSuccessWithTier(t *testing.T) {
	prev := model.StatsSnapshot{}
	cur := model.StatsSnapshot{
		TxCount:      1,
		SuccessCount: 1,
		TierCounts:   [model.NumTiers]uint64{0, 0, 1, 0, 0},
	}

	events := SynthesizeEvents(prev, cur)
	if len(events) != 1 {
		t.Fatalf("%d events, want 1", len(events))
	}
	ev := events[0]
	if !ev.Success || ev.TierGuess != model.TierMedium || ev.SequenceIndex != 0 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSynthesizeFailureAttribution(t *testing.T) {
	prev := model.StatsSnapshot{TxCount: 1, SuccessCount: 1}
	cur := model.StatsSnapshot{
		TxCount:      2,
		SuccessCount: 1,
		FailureCount: 1,
		FailureCounts: map[model.FailureType]uint64{
			model.FailureSlippageExceeded: 1,
		},
	}

	events := SynthesizeEvents(prev, cur)
	if len(events) != 1 {
		t.Fatalf("%d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Success || ev.FailureType != model.FailureSlippageExceeded || ev.SequenceIndex != 0 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSynthesizeFailureWithoutCategoryMovement(t *testing.T) {
	prev := model.StatsSnapshot{TxCount: 2, SuccessCount: 2}
	cur := model.StatsSnapshot{TxCount: 3, SuccessCount: 2, FailureCount: 1}

	events := SynthesizeEvents(prev, cur)
	if len(events) != 1 {
		t.Fatalf("%d events, want 1", len(events))
	}
	if events[0].Success || events[0].FailureType != model.FailureOther {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if events[0].TierGuess != model.TierMedium {
		t.Fatalf("tier guess %v, want medium default", events[0].TierGuess)
	}
}

func TestSynthesizeConsumesCategoriesInOrder(t *testing.T) {
	prev := model.StatsSnapshot{TxCount: 10, SuccessCount: 8, FailureCount: 2}
	cur := model.StatsSnapshot{
		TxCount:      13,
		SuccessCount: 9,
		FailureCount: 4,
		FailureCounts: map[model.FailureType]uint64{
			model.FailureMevDetected: 1,
			model.FailureDroppedTx:   1,
		},
		TierCounts: [model.NumTiers]uint64{1, 0, 0, 0, 2},
	}
	prevWithTiers := prev
	prevWithTiers.TierCounts = [model.NumTiers]uint64{0, 0, 0, 0, 0}

	events := SynthesizeEvents(prevWithTiers, cur)
	if len(events) != 3 {
		t.Fatalf("%d events, want 3", len(events))
	}

	if !events[0].Success {
		t.Fatalf("first event should be the success: %+v", events[0])
	}
	if events[1].FailureType != model.FailureMevDetected {
		t.Fatalf("second event failure type %s, want mev", events[1].FailureType)
	}
	if events[2].FailureType != model.FailureDroppedTx {
		t.Fatalf("third event failure type %s, want dropped", events[2].FailureType)
	}

	if events[0].TierGuess != model.TierFree {
		t.Fatalf("first tier guess %v, want free", events[0].TierGuess)
	}
	if events[1].TierGuess != model.TierPremium || events[2].TierGuess != model.TierPremium {
		t.Fatalf("remaining tier guesses %v/%v, want premium", events[1].TierGuess, events[2].TierGuess)
	}
}

func TestPollerFirstPollNotifiesStatsOnly(t *testing.T) {
	src := &fakeSource{}
	src.set(model.StatsSnapshot{TxCount: 3, SuccessCount: 2, FailureCount: 1})
	p := newTestPoller(src)

	var statsCalls, eventCalls int
	p.OnStatsUpdate(func(model.DerivedStats) { statsCalls++ })
	p.OnTxRecorded(func(model.InferredEvent) { eventCalls++ })

	if _, ok := p.CurrentStats(); ok {
		t.Fatalf("expected no stats before first poll")
	}

	stats, err := p.ForcePoll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if statsCalls != 1 || eventCalls != 0 {
		t.Fatalf("stats=%d events=%d, want 1/0 on first poll", statsCalls, eventCalls)
	}
	if stats.SuccessRate < 66.6 || stats.SuccessRate > 66.7 {
		t.Fatalf("success rate %v, want ~66.67", stats.SuccessRate)
	}

	if _, ok := p.CurrentStats(); !ok {
		t.Fatalf("expected stats after first poll")
	}
}

func TestPollerNoChangeNoNotification(t *testing.T) {
	src := &fakeSource{}
	src.set(model.StatsSnapshot{TxCount: 5, SuccessCount: 5})
	p := newTestPoller(src)

	var statsCalls int
	p.OnStatsUpdate(func(model.DerivedStats) { statsCalls++ })

	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if statsCalls != 1 {
		t.Fatalf("stats notifications %d, want 1 for unchanged state", statsCalls)
	}
}

func TestPollerSynthesizesAcrossPolls(t *testing.T) {
	src := &fakeSource{}
	src.set(model.StatsSnapshot{TxCount: 1, SuccessCount: 1})
	p := newTestPoller(src)

	var events []model.InferredEvent
	p.OnTxRecorded(func(ev model.InferredEvent) { events = append(events, ev) })

	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src.set(model.StatsSnapshot{
		TxCount:      2,
		SuccessCount: 1,
		FailureCount: 1,
		FailureCounts: map[model.FailureType]uint64{
			model.FailureSlippageExceeded: 1,
		},
	})
	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("%d events, want 1", len(events))
	}
	if events[0].Success || events[0].FailureType != model.FailureSlippageExceeded {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestPollerFetchFailure(t *testing.T) {
	src := &fakeSource{}
	src.set(model.StatsSnapshot{TxCount: 1, SuccessCount: 1})
	p := newTestPoller(src)

	var gotErr error
	p.OnError(func(err error) { gotErr = err })

	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("rpc unreachable")
	src.fail(boom)

	if _, err := p.ForcePoll(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}

	if p.ErrorCount() != 1 {
		t.Fatalf("error count %d, want 1", p.ErrorCount())
	}
	if p.LastError() == nil || !errors.Is(p.LastError(), boom) {
		t.Fatalf("last error %v, want wrapped rpc error", p.LastError())
	}
	if gotErr == nil || !errors.Is(gotErr, boom) {
		t.Fatalf("error subscriber got %v", gotErr)
	}

	// The previously adopted snapshot stays current.
	stats, ok := p.CurrentStats()
	if !ok || stats.Snapshot.TxCount != 1 {
		t.Fatalf("current stats lost after fetch failure: %+v ok=%v", stats, ok)
	}
}

func TestPollerDiscontinuity(t *testing.T) {
	src := &fakeSource{}
	src.set(model.StatsSnapshot{TxCount: 10, SuccessCount: 8, FailureCount: 2})
	p := newTestPoller(src)

	var events int
	var gotErr error
	p.OnTxRecorded(func(model.InferredEvent) { events++ })
	p.OnError(func(err error) { gotErr = err })

	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src.set(model.StatsSnapshot{TxCount: 2, SuccessCount: 2})
	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("discontinuity must not fail the tick: %v", err)
	}

	if events != 0 {
		t.Fatalf("%d events synthesized across a reset, want 0", events)
	}

	var disc *DiscontinuityError
	if !errors.As(gotErr, &disc) {
		t.Fatalf("error subscriber got %v, want DiscontinuityError", gotErr)
	}
	if disc.PrevTxCount != 10 || disc.CurTxCount != 2 {
		t.Fatalf("unexpected discontinuity payload: %+v", disc)
	}

	stats, ok := p.CurrentStats()
	if !ok || stats.Snapshot.TxCount != 2 {
		t.Fatalf("reset snapshot not adopted: %+v ok=%v", stats, ok)
	}
}

func TestPollerSubscriberPanicIsolated(t *testing.T) {
	src := &fakeSource{}
	src.set(model.StatsSnapshot{TxCount: 1, SuccessCount: 1})
	p := newTestPoller(src)

	var secondCalled bool
	p.OnStatsUpdate(func(model.DerivedStats) { panic("bad subscriber") })
	p.OnStatsUpdate(func(model.DerivedStats) { secondCalled = true })

	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("tick aborted by subscriber panic: %v", err)
	}
	if !secondCalled {
		t.Fatalf("panic was not isolated, second subscriber skipped")
	}
}

func TestPollerRemoveSubscription(t *testing.T) {
	src := &fakeSource{}
	src.set(model.StatsSnapshot{TxCount: 1, SuccessCount: 1})
	p := newTestPoller(src)

	var calls int
	id := p.OnStatsUpdate(func(model.DerivedStats) { calls++ })

	if !p.RemoveStatsUpdate(id) {
		t.Fatalf("remove failed for live subscription")
	}
	if p.RemoveStatsUpdate(id) {
		t.Fatalf("remove succeeded twice for the same id")
	}

	if _, err := p.ForcePoll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("removed subscriber was called %d times", calls)
	}
}

func TestPollerStartStop(t *testing.T) {
	src := &fakeSource{}
	src.set(model.StatsSnapshot{TxCount: 1, SuccessCount: 1})
	p := newTestPoller(src)

	ctx := context.Background()
	p.Start(ctx, time.Hour)
	if !p.Running() {
		t.Fatalf("poller not running after start")
	}

	// Second start is a warning no-op.
	p.Start(ctx, time.Hour)
	if !p.Running() {
		t.Fatalf("duplicate start broke the running loop")
	}

	// The immediate poll already captured stats.
	if _, ok := p.CurrentStats(); !ok {
		t.Fatalf("no stats after immediate poll on start")
	}

	p.Stop()
	p.Stop()
	if p.Running() {
		t.Fatalf("poller still running after stop")
	}
}
