// Package monitor composes the poller, classifier, fee-tier analyzer and
// delivery gateway behind the single API surface consumed by the CLI, the
// dashboard and the REST routes.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"txguardmon/internal/classify"
	"txguardmon/internal/delivery"
	"txguardmon/internal/feetier"
	"txguardmon/internal/model"
	"txguardmon/internal/poller"
	"txguardmon/internal/storage"
)

// ErrNoData is returned by operations that need at least one completed poll.
var ErrNoData = fmt.Errorf("no stats captured yet")

// Service is the monitoring facade.
type Service struct {
	poller   *poller.Poller
	analyzer *feetier.Analyzer
	gateway  *delivery.Gateway
	logger   *zap.Logger
}

// NewService wires the facade together.
func NewService(p *poller.Poller, analyzer *feetier.Analyzer, gateway *delivery.Gateway, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if analyzer == nil {
		analyzer = feetier.NewAnalyzer()
	}
	if gateway == nil {
		gateway = delivery.NewGateway(false, "")
	}
	return &Service{poller: p, analyzer: analyzer, gateway: gateway, logger: logger}
}

// StartMonitoring begins background polling at the given interval.
func (s *Service) StartMonitoring(ctx context.Context, interval time.Duration) {
	s.poller.Start(ctx, interval)
}

// StopMonitoring halts background polling. Idempotent.
func (s *Service) StopMonitoring() {
	s.poller.Stop()
}

// Stats returns the last derived stats view; ok is false before the first
// successful poll.
func (s *Service) Stats() (model.DerivedStats, bool) {
	return s.poller.CurrentStats()
}

// RefreshStats forces one poll and returns the refreshed view.
func (s *Service) RefreshStats(ctx context.Context) (model.DerivedStats, error) {
	return s.poller.ForcePoll(ctx)
}

// ClassifyFailure maps an error message onto the failure taxonomy.
func (s *Service) ClassifyFailure(text string) model.FailureClassification {
	return classify.Classify(text)
}

// ClassifyFailures classifies a batch of error messages, preserving order.
func (s *Service) ClassifyFailures(texts []string) []model.FailureClassification {
	return classify.ClassifyBatch(texts)
}

// AnalyzePriorityFees analyzes tier effectiveness for the given snapshot, or
// for the current one when snapshot is nil. ErrNoData if neither exists.
func (s *Service) AnalyzePriorityFees(snapshot *model.StatsSnapshot) (model.TierAnalysis, error) {
	if snapshot == nil {
		current, ok := s.poller.CurrentStats()
		if !ok {
			return model.TierAnalysis{}, ErrNoData
		}
		snapshot = &current.Snapshot
	}
	return s.analyzer.AnalyzeFromStats(*snapshot), nil
}

// RecommendedPriorityTier suggests a tier from current network conditions,
// defaulting to the medium tier before any data exists.
func (s *Service) RecommendedPriorityTier() model.Tier {
	current, ok := s.poller.CurrentStats()
	if !ok {
		return model.TierMedium
	}
	return s.analyzer.SuggestTierForNetworkConditions(current.Snapshot)
}

// SetTierThresholds replaces the analyzer's fee threshold table.
func (s *Service) SetTierThresholds(thresholds [model.NumTiers]uint64) error {
	return s.analyzer.SetThresholds(thresholds)
}

// TierForFee returns the tier a fee qualifies for.
func (s *Service) TierForFee(fee uint64) model.Tier {
	return s.analyzer.TierForFee(fee)
}

// RecommendedFeeForTier returns the fee to bid for a tier.
func (s *Service) RecommendedFeeForTier(tier model.Tier) uint64 {
	return s.analyzer.RecommendedFeeForTier(tier)
}

// OnTxRecorded subscribes to synthesized transaction events.
func (s *Service) OnTxRecorded(fn poller.EventHandler) poller.SubscriptionID {
	return s.poller.OnTxRecorded(fn)
}

// OnStatsUpdate subscribes to adopted snapshot changes.
func (s *Service) OnStatsUpdate(fn poller.StatsHandler) poller.SubscriptionID {
	return s.poller.OnStatsUpdate(fn)
}

// OnError subscribes to fetch failures and discontinuities.
func (s *Service) OnError(fn poller.ErrorHandler) poller.SubscriptionID {
	return s.poller.OnError(fn)
}

// RemoveTxRecorded unsubscribes an event handler.
func (s *Service) RemoveTxRecorded(id poller.SubscriptionID) bool {
	return s.poller.RemoveTxRecorded(id)
}

// RemoveStatsUpdate unsubscribes a stats handler.
func (s *Service) RemoveStatsUpdate(id poller.SubscriptionID) bool {
	return s.poller.RemoveStatsUpdate(id)
}

// RemoveError unsubscribes an error handler.
func (s *Service) RemoveError(id poller.SubscriptionID) bool {
	return s.poller.RemoveError(id)
}

// AttachEventSink persists every synthesized event into the sink. Sink errors
// are logged and surfaced to error subscribers; they never abort a tick.
func (s *Service) AttachEventSink(sink storage.Storage) poller.SubscriptionID {
	return s.poller.OnTxRecorded(func(event model.InferredEvent) {
		record := model.EventRecord{InferredEvent: event, ObservedAt: time.Now().UTC()}
		if current, ok := s.poller.CurrentStats(); ok {
			record.ObservedAt = current.Snapshot.CapturedAt
			record.TxCountAfter = current.Snapshot.TxCount
		}
		if err := sink.PutEventBatch([]model.EventRecord{record}); err != nil {
			s.logger.Warn("event sink write failed", zap.Error(err))
		}
	})
}

// Report aggregates everything the dashboard needs in one call. Stats is nil
// before the first poll so consumers can tell "no data yet" from real zeros.
type Report struct {
	Stats         *model.DerivedStats `json:"stats,omitempty"`
	TierAnalysis  *model.TierAnalysis `json:"tier_analysis,omitempty"`
	SuggestedTier model.Tier          `json:"suggested_tier"`
	CostBenefit   []model.CostBenefit `json:"cost_benefit,omitempty"`
	ErrorCount    uint64              `json:"error_count"`
	LastError     string              `json:"last_error,omitempty"`
	Delivery      delivery.Status     `json:"delivery"`
	GeneratedAt   time.Time           `json:"generated_at"`
}

// AnalysisReport builds the combined report from the current state. It never
// polls; call RefreshStats first for a fresh view.
func (s *Service) AnalysisReport() Report {
	report := Report{
		SuggestedTier: s.RecommendedPriorityTier(),
		ErrorCount:    s.poller.ErrorCount(),
		Delivery:      s.gateway.Status(),
		GeneratedAt:   time.Now().UTC(),
	}
	if err := s.poller.LastError(); err != nil {
		report.LastError = err.Error()
	}

	current, ok := s.poller.CurrentStats()
	if !ok {
		return report
	}
	report.Stats = &current

	analysis := s.analyzer.AnalyzeFromStats(current.Snapshot)
	report.TierAnalysis = &analysis
	report.CostBenefit = s.analyzer.CostBenefit(analysis.TierEffectiveness, current.SuccessRate)

	return report
}
