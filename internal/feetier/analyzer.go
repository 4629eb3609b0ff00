// Package feetier estimates priority-fee tier effectiveness from aggregate
// stats and recommends a tier under current network conditions.
package feetier

import (
	"fmt"
	"math"
	"sync"
	"time"

	"txguardmon/internal/model"
)

// tierMultipliers encode the simplifying assumption that higher tiers land
// more reliably. To be replaced by true per-tier outcome tracking once the
// ledger program exposes it.
var tierMultipliers = [model.NumTiers]float64{0.70, 0.80, 0.90, 0.95, 0.98}

// defaultThresholds map each tier to its fee threshold in micro-lamports per
// compute unit.
var defaultThresholds = [model.NumTiers]uint64{0, 1000, 5000, 10000, 50000}

// minSampleSize is the tx count below which network-condition suggestions
// fall back to the medium tier.
const minSampleSize = 10

// Analyzer holds the tier fee thresholds. All analysis operations are pure
// over their inputs; only SetThresholds mutates state, and it affects
// subsequent calls only.
type Analyzer struct {
	mu         sync.RWMutex
	thresholds [model.NumTiers]uint64
}

// NewAnalyzer builds an Analyzer with the default fee thresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{thresholds: defaultThresholds}
}

// Thresholds returns a copy of the current tier fee thresholds.
func (a *Analyzer) Thresholds() [model.NumTiers]uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thresholds
}

// SetThresholds replaces the tier fee thresholds. The table must be
// monotonically non-decreasing across tiers.
func (a *Analyzer) SetThresholds(thresholds [model.NumTiers]uint64) error {
	for i := 1; i < model.NumTiers; i++ {
		if thresholds[i] < thresholds[i-1] {
			return fmt.Errorf("thresholds must be non-decreasing: tier %d (%d) < tier %d (%d)",
				i, thresholds[i], i-1, thresholds[i-1])
		}
	}
	a.mu.Lock()
	a.thresholds = thresholds
	a.mu.Unlock()
	return nil
}

// AnalyzeFromStats estimates per-tier effectiveness for a snapshot and picks
// the recommended tier. Tiers with zero usage get effectiveness 0; ties break
// toward the lowest tier; if everything is zero the medium tier is returned.
func (a *Analyzer) AnalyzeFromStats(snapshot model.StatsSnapshot) model.TierAnalysis {
	thresholds := a.Thresholds()
	overallRate := snapshot.SuccessRate()

	effectiveness := make(map[model.Tier]float64, model.NumTiers)
	for i := 0; i < model.NumTiers; i++ {
		tier := model.Tier(i)
		if snapshot.TierCounts[i] == 0 {
			effectiveness[tier] = 0
			continue
		}
		effectiveness[tier] = overallRate / 100 * tierMultipliers[i] * 100
	}

	recommended := model.TierMedium
	best := 0.0
	for i := 0; i < model.NumTiers; i++ {
		tier := model.Tier(i)
		if effectiveness[tier] > best {
			best = effectiveness[tier]
			recommended = tier
		}
	}

	var weightedFees, totalWeight float64
	for i := 0; i < model.NumTiers; i++ {
		weight := float64(snapshot.TierCounts[i]) * effectiveness[model.Tier(i)] / 100
		weightedFees += weight * float64(thresholds[i])
		totalWeight += weight
	}
	averageFee := 0.0
	if totalWeight > 0 {
		averageFee = weightedFees / totalWeight
	}

	return model.TierAnalysis{
		RecommendedTier:   recommended,
		TierEffectiveness: effectiveness,
		AverageFee:        averageFee,
		ComputedAt:        time.Now().UTC(),
	}
}

// SuggestTierForNetworkConditions maps the observed success rate onto a tier
// using fixed bands, first match wins. Below minSampleSize transactions the
// medium tier is suggested regardless of rate.
func (a *Analyzer) SuggestTierForNetworkConditions(snapshot model.StatsSnapshot) model.Tier {
	if snapshot.TxCount < minSampleSize {
		return model.TierMedium
	}

	rate := snapshot.SuccessRate()
	switch {
	case rate < 50:
		return model.TierPremium
	case rate < 70:
		return model.TierHigh
	case rate < 85:
		return model.TierMedium
	case rate < 95:
		return model.TierLow
	default:
		return model.TierFree
	}
}

// TierForFee returns the highest tier whose threshold the fee meets.
func (a *Analyzer) TierForFee(fee uint64) model.Tier {
	thresholds := a.Thresholds()
	tier := model.TierFree
	for i := 0; i < model.NumTiers; i++ {
		if fee >= thresholds[i] {
			tier = model.Tier(i)
		}
	}
	return tier
}

// RecommendedFeeForTier returns the fee to bid for a tier: the threshold plus
// a 20% margin, floored. Tier 0 stays at its threshold (0).
func (a *Analyzer) RecommendedFeeForTier(tier model.Tier) uint64 {
	if !tier.Valid() {
		tier = model.TierMedium
	}
	thresholds := a.Thresholds()
	if tier == model.TierFree {
		return thresholds[tier]
	}
	return uint64(math.Floor(float64(thresholds[tier]) * 1.2))
}

// CostBenefit compares each tier's estimated effectiveness against a baseline
// success rate and rates the trade-off.
func (a *Analyzer) CostBenefit(effectiveness map[model.Tier]float64, baseline float64) []model.CostBenefit {
	thresholds := a.Thresholds()

	out := make([]model.CostBenefit, 0, model.NumTiers)
	for i := 0; i < model.NumTiers; i++ {
		tier := model.Tier(i)
		improvement := effectiveness[tier] - baseline

		costPerImprovement := math.Inf(1)
		if improvement > 0 {
			costPerImprovement = float64(thresholds[i]) / improvement
		}

		rating := model.RatingPoor
		switch {
		case improvement > 10 && costPerImprovement < 1000:
			rating = model.RatingRecommended
		case improvement > 5:
			rating = model.RatingGood
		}

		out = append(out, model.CostBenefit{
			Tier:               tier,
			Fee:                thresholds[i],
			Improvement:        improvement,
			CostPerImprovement: costPerImprovement,
			Rating:             rating,
		})
	}
	return out
}
