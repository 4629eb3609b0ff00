package feetier

import (
	"math"
	"testing"

	"txguardmon/internal/model"
)

func TestAnalyzeFromStatsEmptySnapshot(t *testing.T) {
	a := NewAnalyzer()
	analysis := a.AnalyzeFromStats(model.StatsSnapshot{})

	if analysis.AverageFee != 0 {
		t.Fatalf("average fee %v, want 0", analysis.AverageFee)
	}
	if analysis.RecommendedTier != model.TierMedium {
		t.Fatalf("recommended tier %v, want medium default", analysis.RecommendedTier)
	}
	for tier, eff := range analysis.TierEffectiveness {
		if eff != 0 {
			t.Fatalf("tier %v effectiveness %v, want 0", tier, eff)
		}
	}
}

func TestAnalyzeFromStats(t *testing.T) {
	a := NewAnalyzer()
	snapshot := model.StatsSnapshot{
		TxCount:      100,
		SuccessCount: 80,
		FailureCount: 20,
		TierCounts:   [model.NumTiers]uint64{10, 0, 20, 0, 0},
	}

	analysis := a.AnalyzeFromStats(snapshot)

	if got := analysis.TierEffectiveness[model.TierFree]; math.Abs(got-56) > 1e-9 {
		t.Fatalf("free tier effectiveness %v, want 56", got)
	}
	if got := analysis.TierEffectiveness[model.TierMedium]; math.Abs(got-72) > 1e-9 {
		t.Fatalf("medium tier effectiveness %v, want 72", got)
	}
	if got := analysis.TierEffectiveness[model.TierLow]; got != 0 {
		t.Fatalf("unused tier effectiveness %v, want 0", got)
	}
	if analysis.RecommendedTier != model.TierMedium {
		t.Fatalf("recommended tier %v, want medium", analysis.RecommendedTier)
	}

	// weight(free) = 10*0.56 = 5.6 at fee 0, weight(medium) = 20*0.72 = 14.4
	// at fee 5000 -> 72000 / 20 = 3600.
	if math.Abs(analysis.AverageFee-3600) > 1e-9 {
		t.Fatalf("average fee %v, want 3600", analysis.AverageFee)
	}
}

func TestSuggestTierBands(t *testing.T) {
	a := NewAnalyzer()

	cases := []struct {
		success uint64
		want    model.Tier
	}{
		{40, model.TierPremium},
		{60, model.TierHigh},
		{80, model.TierMedium},
		{85, model.TierLow},
		{90, model.TierLow},
		{95, model.TierFree},
		{100, model.TierFree},
	}

	prev := model.TierPremium
	for _, tc := range cases {
		snapshot := model.StatsSnapshot{TxCount: 100, SuccessCount: tc.success}
		got := a.SuggestTierForNetworkConditions(snapshot)
		if got != tc.want {
			t.Fatalf("success rate %d: tier %v, want %v", tc.success, got, tc.want)
		}
		if got > prev {
			t.Fatalf("suggestion not monotonic: rate %d gave %v after %v", tc.success, got, prev)
		}
		prev = got
	}
}

func TestSuggestTierInsufficientData(t *testing.T) {
	a := NewAnalyzer()
	snapshot := model.StatsSnapshot{TxCount: 9, SuccessCount: 1}

	if got := a.SuggestTierForNetworkConditions(snapshot); got != model.TierMedium {
		t.Fatalf("tier %v, want medium below sample threshold", got)
	}
}

func TestFeeLookupsRoundTrip(t *testing.T) {
	a := NewAnalyzer()

	for i := 0; i < model.NumTiers; i++ {
		tier := model.Tier(i)
		fee := a.RecommendedFeeForTier(tier)
		if got := a.TierForFee(fee); got < tier {
			t.Fatalf("tier %v: recommended fee %d maps back to lower tier %v", tier, fee, got)
		}
	}

	if got := a.RecommendedFeeForTier(model.TierFree); got != 0 {
		t.Fatalf("free tier fee %d, want 0", got)
	}
	if got := a.RecommendedFeeForTier(model.TierLow); got != 1200 {
		t.Fatalf("low tier fee %d, want 1200", got)
	}
	if got := a.TierForFee(49999); got != model.TierHigh {
		t.Fatalf("fee 49999 maps to %v, want high", got)
	}
}

func TestSetThresholdsRejectsNonMonotonic(t *testing.T) {
	a := NewAnalyzer()

	err := a.SetThresholds([model.NumTiers]uint64{0, 2000, 1000, 10000, 50000})
	if err == nil {
		t.Fatalf("expected error for decreasing thresholds")
	}

	if err := a.SetThresholds([model.NumTiers]uint64{0, 2000, 4000, 10000, 60000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := a.RecommendedFeeForTier(model.TierLow); got != 2400 {
		t.Fatalf("low tier fee %d after update, want 2400", got)
	}
}

func TestCostBenefit(t *testing.T) {
	a := NewAnalyzer()
	effectiveness := map[model.Tier]float64{
		model.TierFree:    50,
		model.TierLow:     55.5,
		model.TierMedium:  61,
		model.TierHigh:    70,
		model.TierPremium: 0,
	}

	results := a.CostBenefit(effectiveness, 50)
	if len(results) != model.NumTiers {
		t.Fatalf("got %d results, want %d", len(results), model.NumTiers)
	}

	if results[model.TierFree].Rating != model.RatingPoor {
		t.Fatalf("free tier rating %s, want poor", results[model.TierFree].Rating)
	}
	if !math.IsInf(results[model.TierFree].CostPerImprovement, 1) {
		t.Fatalf("zero improvement should cost +inf")
	}
	if results[model.TierLow].Rating != model.RatingGood {
		t.Fatalf("low tier rating %s, want good", results[model.TierLow].Rating)
	}
	if results[model.TierHigh].Rating != model.RatingRecommended {
		t.Fatalf("high tier rating %s, want recommended", results[model.TierHigh].Rating)
	}
	if results[model.TierPremium].Rating != model.RatingPoor {
		t.Fatalf("premium tier rating %s, want poor", results[model.TierPremium].Rating)
	}
}
