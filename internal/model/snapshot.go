package model

import "time"

// StatsSnapshot is an immutable capture of the ledger's aggregate counters at
// one poll tick. The engine trusts txCount == successCount + failureCount from
// the ledger but must tolerate brief violations without crashing.
type StatsSnapshot struct {
	TxCount       uint64                 `json:"tx_count"`
	SuccessCount  uint64                 `json:"success_count"`
	FailureCount  uint64                 `json:"failure_count"`
	FailureCounts map[FailureType]uint64 `json:"failure_counts"`
	TierCounts    [NumTiers]uint64       `json:"tier_counts"`
	CapturedAt    time.Time              `json:"captured_at"`
}

// FailureCountFor returns the counter for one category, treating a missing map
// entry as zero.
func (s StatsSnapshot) FailureCountFor(ft FailureType) uint64 {
	if s.FailureCounts == nil {
		return 0
	}
	return s.FailureCounts[ft]
}

// Equal compares all counter fields of two snapshots. CapturedAt is excluded:
// two polls observing identical counters are the same state.
func (s StatsSnapshot) Equal(other StatsSnapshot) bool {
	if s.TxCount != other.TxCount ||
		s.SuccessCount != other.SuccessCount ||
		s.FailureCount != other.FailureCount ||
		s.TierCounts != other.TierCounts {
		return false
	}
	for _, ft := range FailureTypes {
		if s.FailureCountFor(ft) != other.FailureCountFor(ft) {
			return false
		}
	}
	return true
}

// SuccessRate returns the success percentage, defined as 0 when txCount is 0.
func (s StatsSnapshot) SuccessRate() float64 {
	if s.TxCount == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.TxCount) * 100
}

// DerivedStats is the fully derived view handed to subscribers and API readers.
type DerivedStats struct {
	Snapshot    StatsSnapshot `json:"snapshot"`
	SuccessRate float64       `json:"success_rate"`
}

// Derive builds the derived view for a snapshot.
func Derive(s StatsSnapshot) DerivedStats {
	return DerivedStats{Snapshot: s, SuccessRate: s.SuccessRate()}
}

// Delta is the field-wise difference between two snapshots (current minus
// previous). Negative fields signal a discontinuity, never normal movement.
type Delta struct {
	TxCount       int64                 `json:"tx_count"`
	SuccessCount  int64                 `json:"success_count"`
	FailureCount  int64                 `json:"failure_count"`
	FailureCounts map[FailureType]int64 `json:"failure_counts"`
	TierCounts    [NumTiers]int64       `json:"tier_counts"`
}

// Diff computes cur minus prev.
func Diff(prev, cur StatsSnapshot) Delta {
	d := Delta{
		TxCount:       int64(cur.TxCount) - int64(prev.TxCount),
		SuccessCount:  int64(cur.SuccessCount) - int64(prev.SuccessCount),
		FailureCount:  int64(cur.FailureCount) - int64(prev.FailureCount),
		FailureCounts: make(map[FailureType]int64, NumFailureTypes),
	}
	for _, ft := range FailureTypes {
		d.FailureCounts[ft] = int64(cur.FailureCountFor(ft)) - int64(prev.FailureCountFor(ft))
	}
	for i := 0; i < NumTiers; i++ {
		d.TierCounts[i] = int64(cur.TierCounts[i]) - int64(prev.TierCounts[i])
	}
	return d
}

// Discontinuous reports whether any counter moved backwards, which signals an
// external state reset.
func (d Delta) Discontinuous() bool {
	if d.TxCount < 0 || d.SuccessCount < 0 || d.FailureCount < 0 {
		return true
	}
	for _, v := range d.FailureCounts {
		if v < 0 {
			return true
		}
	}
	for _, v := range d.TierCounts {
		if v < 0 {
			return true
		}
	}
	return false
}
