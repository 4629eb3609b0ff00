package poller

import (
	"sync"

	"github.com/google/uuid"

	"txguardmon/internal/model"
)

// SubscriptionID identifies one registered handler for later removal.
type SubscriptionID string

// StatsHandler receives the derived stats view after each adopted snapshot.
type StatsHandler func(model.DerivedStats)

// EventHandler receives synthesized transaction events in sequence order.
type EventHandler func(model.InferredEvent)

// ErrorHandler receives fetch failures, discontinuity signals, and isolated
// subscriber panics.
type ErrorHandler func(error)

type statsSub struct {
	id SubscriptionID
	fn StatsHandler
}

type eventSub struct {
	id SubscriptionID
	fn EventHandler
}

type errorSub struct {
	id SubscriptionID
	fn ErrorHandler
}

// subscriberRegistry keeps insertion-ordered handler lists. Notification
// loops iterate over a copy, so add/remove during a tick's fanout is safe.
type subscriberRegistry struct {
	mu     sync.RWMutex
	stats  []statsSub
	events []eventSub
	errors []errorSub
}

func newSubscriberID() SubscriptionID {
	return SubscriptionID(uuid.NewString())
}

func (r *subscriberRegistry) addStats(fn StatsHandler) SubscriptionID {
	id := newSubscriberID()
	r.mu.Lock()
	r.stats = append(r.stats, statsSub{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

func (r *subscriberRegistry) addEvents(fn EventHandler) SubscriptionID {
	id := newSubscriberID()
	r.mu.Lock()
	r.events = append(r.events, eventSub{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

func (r *subscriberRegistry) addErrors(fn ErrorHandler) SubscriptionID {
	id := newSubscriberID()
	r.mu.Lock()
	r.errors = append(r.errors, errorSub{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

func (r *subscriberRegistry) removeStats(id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.stats {
		if sub.id == id {
			r.stats = append(r.stats[:i:i], r.stats[i+1:]...)
			return true
		}
	}
	return false
}

func (r *subscriberRegistry) removeEvents(id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.events {
		if sub.id == id {
			r.events = append(r.events[:i:i], r.events[i+1:]...)
			return true
		}
	}
	return false
}

func (r *subscriberRegistry) removeErrors(id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.errors {
		if sub.id == id {
			r.errors = append(r.errors[:i:i], r.errors[i+1:]...)
			return true
		}
	}
	return false
}

func (r *subscriberRegistry) statsCopy() []statsSub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]statsSub(nil), r.stats...)
}

func (r *subscriberRegistry) eventsCopy() []eventSub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]eventSub(nil), r.events...)
}

func (r *subscriberRegistry) errorsCopy() []errorSub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]errorSub(nil), r.errors...)
}
