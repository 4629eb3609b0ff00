package model

import "time"

// TierAnalysis is the result of one priority-fee effectiveness pass over a
// stats snapshot. Computed fresh per call, never cached.
type TierAnalysis struct {
	RecommendedTier   Tier             `json:"recommended_tier"`
	TierEffectiveness map[Tier]float64 `json:"tier_effectiveness"`
	AverageFee        float64          `json:"average_fee"`
	ComputedAt        time.Time        `json:"computed_at"`
}

// CostBenefitRating labels a tier's cost/benefit trade-off.
type CostBenefitRating string

const (
	RatingRecommended CostBenefitRating = "recommended"
	RatingGood        CostBenefitRating = "good"
	RatingPoor        CostBenefitRating = "poor"
)

// CostBenefit describes one tier's improvement over a baseline success rate
// and what that improvement costs.
type CostBenefit struct {
	Tier               Tier              `json:"tier"`
	Fee                uint64            `json:"fee"`
	Improvement        float64           `json:"improvement"`
	CostPerImprovement float64           `json:"cost_per_improvement"`
	Rating             CostBenefitRating `json:"rating"`
}
