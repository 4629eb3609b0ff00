package storage

import "txguardmon/internal/model"

// Storage defines a sink for synthesized transaction events. Snapshots are
// never persisted; only the inferred event stream is.
type Storage interface {
	PutEventBatch(events []model.EventRecord) error
}
