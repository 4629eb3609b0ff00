package model

import "time"

// InferredEvent is a best-effort reconstruction of one discrete transaction
// outcome from aggregate counter movement. It carries no ledger-visible
// transaction identity; none exists in the source data.
type InferredEvent struct {
	Success       bool        `json:"success"`
	FailureType   FailureType `json:"failure_type,omitempty"`
	TierGuess     Tier        `json:"tier_guess"`
	SequenceIndex int         `json:"sequence_index"`
}

// EventRecord is the storage representation of an inferred event.
type EventRecord struct {
	InferredEvent
	ObservedAt   time.Time `json:"observed_at"`
	TxCountAfter uint64    `json:"tx_count_after"`
}
