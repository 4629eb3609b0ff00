package poller

import "txguardmon/internal/model"

// SynthesizeEvents reconstructs a best-effort ordered list of per-transaction
// events from the aggregate movement between two snapshots. The first
// successDelta events are successes, the rest failures. Failure types are
// attributed by scanning the category deltas in taxonomy order and consuming
// one increment per event; tiers likewise, scanning left to right. An event
// with nothing left to consume falls back to Other / the medium tier. This is
// a deterministic policy over ambiguous aggregates, not true attribution.
func SynthesizeEvents(prev, cur model.StatsSnapshot) []model.InferredEvent {
	n := int64(cur.TxCount) - int64(prev.TxCount)
	if n <= 0 {
		return nil
	}
	successes := int64(cur.SuccessCount) - int64(prev.SuccessCount)

	failureBudget := make(map[model.FailureType]int64, model.NumFailureTypes)
	for _, ft := range model.FailureTypes {
		d := int64(cur.FailureCountFor(ft)) - int64(prev.FailureCountFor(ft))
		if d > 0 {
			failureBudget[ft] = d
		}
	}

	var tierBudget [model.NumTiers]int64
	for i := 0; i < model.NumTiers; i++ {
		d := int64(cur.TierCounts[i]) - int64(prev.TierCounts[i])
		if d > 0 {
			tierBudget[i] = d
		}
	}

	events := make([]model.InferredEvent, 0, n)
	for i := int64(0); i < n; i++ {
		event := model.InferredEvent{SequenceIndex: int(i)}

		if i < successes {
			event.Success = true
		} else {
			event.FailureType = model.FailureOther
			for _, ft := range model.FailureTypes {
				if failureBudget[ft] > 0 {
					event.FailureType = ft
					failureBudget[ft]--
					break
				}
			}
		}

		event.TierGuess = model.TierMedium
		for t := 0; t < model.NumTiers; t++ {
			if tierBudget[t] > 0 {
				event.TierGuess = model.Tier(t)
				tierBudget[t]--
				break
			}
		}

		events = append(events, event)
	}
	return events
}
