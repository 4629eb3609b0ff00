// Package poller maintains a polling cadence against the ledger's aggregate
// accounts, detects meaningful change between snapshots, and converts counter
// movement into a synthesized per-transaction event stream for subscribers.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"txguardmon/internal/ledger"
	"txguardmon/internal/model"
)

// Source exposes the three ledger reads a poll tick needs. *ledger.Client
// satisfies it; tests substitute a fake.
type Source interface {
	Registry(ctx context.Context) (ledger.Registry, error)
	FailureCatalog(ctx context.Context) (ledger.FailureCatalog, error)
	TierUsage(ctx context.Context) (ledger.TierUsage, error)
}

// DiscontinuityError signals that ledger counters moved backwards, which
// means the external state was reset. The new snapshot is still adopted, but
// no events can soundly be synthesized across the reset.
type DiscontinuityError struct {
	PrevTxCount uint64
	CurTxCount  uint64
}

func (e *DiscontinuityError) Error() string {
	return fmt.Sprintf("ledger counters decreased (tx count %d -> %d): external state reset", e.PrevTxCount, e.CurTxCount)
}

// Poller owns the only mutable engine state: the last adopted snapshot and
// the fetch error counters. Ticks are serialized; an interval tick firing
// while a forced poll is in flight waits for it.
type Poller struct {
	source Source
	logger *zap.Logger
	now    func() time.Time
	subs   subscriberRegistry

	tickMu sync.Mutex

	stateMu    sync.RWMutex
	current    *model.DerivedStats
	errorCount uint64
	lastErr    error

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
}

// New builds a Poller around a ledger source.
func New(source Source, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins periodic polling. One immediate poll runs before the interval
// loop, so the first observable snapshot is never older than the call. If the
// poller is already running this is a warning-level no-op, not an error.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		p.logger.Warn("poller already running, start ignored")
		return
	}
	p.running = true
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.runMu.Unlock()

	p.logger.Info("poller start", zap.Duration("interval", interval))

	if _, err := p.poll(ctx); err != nil {
		p.logger.Warn("initial poll failed", zap.Error(err))
	}

	go p.loop(ctx, interval, stopCh)
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, stopCh chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-stopCh:
				return
			default:
			}
			// A failed tick waits for the next scheduled one; the interval
			// itself is the backoff.
			if _, err := p.poll(ctx); err != nil {
				p.logger.Warn("poll tick failed", zap.Error(err))
			}
		}
	}
}

// Stop halts the interval loop. Idempotent. A tick already in flight is
// allowed to complete; no further ticks fire afterwards.
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)
	p.logger.Info("poller stop")
}

// Running reports whether the interval loop is active.
func (p *Poller) Running() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.running
}

// ForcePoll performs one out-of-band poll and returns the current derived
// stats view. It participates in the same change detection and event
// synthesis as interval ticks.
func (p *Poller) ForcePoll(ctx context.Context) (model.DerivedStats, error) {
	return p.poll(ctx)
}

// CurrentStats returns the last adopted derived view. The second return is
// false before the first successful poll, which is distinct from real
// all-zero counters.
func (p *Poller) CurrentStats() (model.DerivedStats, bool) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	if p.current == nil {
		return model.DerivedStats{}, false
	}
	return *p.current, true
}

// ErrorCount returns the number of failed fetch attempts since creation.
func (p *Poller) ErrorCount() uint64 {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.errorCount
}

// LastError returns the most recent fetch error, or nil.
func (p *Poller) LastError() error {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.lastErr
}

// OnStatsUpdate registers a handler for adopted snapshot changes.
func (p *Poller) OnStatsUpdate(fn StatsHandler) SubscriptionID {
	return p.subs.addStats(fn)
}

// OnTxRecorded registers a handler for synthesized transaction events.
func (p *Poller) OnTxRecorded(fn EventHandler) SubscriptionID {
	return p.subs.addEvents(fn)
}

// OnError registers a handler for fetch failures and discontinuities.
func (p *Poller) OnError(fn ErrorHandler) SubscriptionID {
	return p.subs.addErrors(fn)
}

// RemoveStatsUpdate unregisters a stats handler.
func (p *Poller) RemoveStatsUpdate(id SubscriptionID) bool { return p.subs.removeStats(id) }

// RemoveTxRecorded unregisters an event handler.
func (p *Poller) RemoveTxRecorded(id SubscriptionID) bool { return p.subs.removeEvents(id) }

// RemoveError unregisters an error handler.
func (p *Poller) RemoveError(id SubscriptionID) bool { return p.subs.removeErrors(id) }

func (p *Poller) poll(ctx context.Context) (model.DerivedStats, error) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	snapshot, err := p.fetchSnapshot(ctx)
	if err != nil {
		p.stateMu.Lock()
		p.errorCount++
		p.lastErr = err
		p.stateMu.Unlock()

		p.notifyError(err)
		return model.DerivedStats{}, err
	}

	p.stateMu.RLock()
	prev := p.current
	p.stateMu.RUnlock()

	if prev != nil && prev.Snapshot.Equal(snapshot) {
		return *prev, nil
	}

	derived := model.Derive(snapshot)
	p.stateMu.Lock()
	p.current = &derived
	p.stateMu.Unlock()

	p.notifyStats(derived)

	if prev != nil {
		delta := model.Diff(prev.Snapshot, snapshot)
		if delta.Discontinuous() {
			discErr := &DiscontinuityError{PrevTxCount: prev.Snapshot.TxCount, CurTxCount: snapshot.TxCount}
			p.logger.Warn("snapshot discontinuity", zap.Error(discErr))
			p.notifyError(discErr)
		} else if delta.TxCount > 0 {
			for _, event := range SynthesizeEvents(prev.Snapshot, snapshot) {
				p.notifyEvent(event)
			}
		}
	}

	return derived, nil
}

// fetchSnapshot reads all three aggregate accounts. Any failure fails the
// whole tick so a half-updated state is never adopted as current.
func (p *Poller) fetchSnapshot(ctx context.Context) (model.StatsSnapshot, error) {
	registry, err := p.source.Registry(ctx)
	if err != nil {
		return model.StatsSnapshot{}, fmt.Errorf("registry: %w", err)
	}
	catalog, err := p.source.FailureCatalog(ctx)
	if err != nil {
		return model.StatsSnapshot{}, fmt.Errorf("failure catalog: %w", err)
	}
	usage, err := p.source.TierUsage(ctx)
	if err != nil {
		return model.StatsSnapshot{}, fmt.Errorf("tier usage: %w", err)
	}

	counts := make(map[model.FailureType]uint64, model.NumFailureTypes)
	for _, ft := range model.FailureTypes {
		counts[ft] = catalog.Counts[ft]
	}

	return model.StatsSnapshot{
		TxCount:       registry.TxCount,
		SuccessCount:  registry.SuccessCount,
		FailureCount:  registry.FailureCount,
		FailureCounts: counts,
		TierCounts:    usage.Counts,
		CapturedAt:    p.now().UTC(),
	}, nil
}

func (p *Poller) notifyStats(stats model.DerivedStats) {
	for _, sub := range p.subs.statsCopy() {
		p.safeCall(string(sub.id), "stats", func() { sub.fn(stats) })
	}
}

func (p *Poller) notifyEvent(event model.InferredEvent) {
	for _, sub := range p.subs.eventsCopy() {
		p.safeCall(string(sub.id), "tx", func() { sub.fn(event) })
	}
}

func (p *Poller) notifyError(err error) {
	for _, sub := range p.subs.errorsCopy() {
		p.safeCall(string(sub.id), "error", func() { sub.fn(err) })
	}
}

// safeCall isolates a panicking subscriber so the remaining handlers and the
// tick itself still run.
func (p *Poller) safeCall(id, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("subscriber panicked",
				zap.String("subscription", id),
				zap.String("kind", kind),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
