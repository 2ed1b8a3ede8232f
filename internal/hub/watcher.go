package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/moarbaz01/aiexch-livefeed/internal/topic"
)

// Watcher is a typed consumer adapter: one per logical consumer. It
// registers itself with the registry, seeds its exposed value from the
// cache, and keeps Value up to date as dispatches arrive. Watchers
// never share callback handles; the registry's refcounting is what
// collapses equal keys onto one wire subscription.
//
// Value is the best known payload so far, not authoritative: it may
// already be stale by the time the caller reads it, and during an
// outage it simply stays at its last state until resubscription
// republishes fresh data.
type Watcher struct {
	hub *Hub
	id  string

	mu        sync.RWMutex
	topicType topic.Type
	scope     topic.Scope
	enabled   bool
	closed    bool
	value     json.RawMessage
	hasValue  bool
}

var errWatcherClosed = errors.New("watcher is closed")

func (h *Hub) newWatcher(t topic.Type, scope topic.Scope) (*Watcher, error) {
	if err := topic.Validate(t, scope); err != nil {
		return nil, err
	}
	w := &Watcher{
		hub:       h,
		id:        uuid.NewString(),
		topicType: t,
		scope:     scope.Clone(),
		enabled:   true,
	}
	cached, ok := h.registry.Register(t, w.scope, w)
	if ok {
		w.seed(cached)
	}
	return w, nil
}

// seed installs a cached payload unless a live dispatch already beat it
func (w *Watcher) seed(cached json.RawMessage) {
	w.mu.Lock()
	if !w.hasValue {
		w.value = cached
		w.hasValue = true
	}
	w.mu.Unlock()
}

// ID implements registry.Subscriber
func (w *Watcher) ID() string {
	return w.id
}

// Deliver implements registry.Subscriber
func (w *Watcher) Deliver(payload json.RawMessage) {
	w.mu.Lock()
	w.value = payload
	w.hasValue = true
	w.mu.Unlock()
}

// Value returns the best known payload so far, if any
func (w *Watcher) Value() (json.RawMessage, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value, w.hasValue
}

// Topic returns the watcher's topic type
func (w *Watcher) Topic() topic.Type {
	return w.topicType
}

// Scope returns a copy of the watcher's current scope
func (w *Watcher) Scope() topic.Scope {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.scope.Clone()
}

// Retarget switches the watcher to a new scope. The scope is part of
// the subscription key, so the old (type, scope) is fully unregistered
// before the new one is registered; the exposed value resets and is
// reseeded from the cache for the new key.
func (w *Watcher) Retarget(scope topic.Scope) error {
	if err := topic.Validate(w.topicType, scope); err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errWatcherClosed
	}
	old := w.scope
	enabled := w.enabled
	w.scope = scope.Clone()
	w.value = nil
	w.hasValue = false
	next := w.scope
	w.mu.Unlock()

	if !enabled {
		return nil
	}
	w.hub.registry.Unregister(w.topicType, old, w)
	cached, ok := w.hub.registry.Register(w.topicType, next, w)
	if ok {
		w.seed(cached)
	}
	return nil
}

// Disable unregisters the watcher without discarding it. No-op while
// already disabled or closed.
func (w *Watcher) Disable() {
	w.mu.Lock()
	if w.closed || !w.enabled {
		w.mu.Unlock()
		return
	}
	w.enabled = false
	scope := w.scope
	w.mu.Unlock()

	w.hub.registry.Unregister(w.topicType, scope, w)
}

// Enable re-registers a disabled watcher. No-op while already enabled
// or closed.
func (w *Watcher) Enable() {
	w.mu.Lock()
	if w.closed || w.enabled {
		w.mu.Unlock()
		return
	}
	w.enabled = true
	scope := w.scope
	w.mu.Unlock()

	cached, ok := w.hub.registry.Register(w.topicType, scope, w)
	if ok {
		w.seed(cached)
	}
}

// Close unregisters the watcher for good. Idempotent.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	wasEnabled := w.enabled
	w.enabled = false
	scope := w.scope
	w.mu.Unlock()

	if wasEnabled {
		w.hub.registry.Unregister(w.topicType, scope, w)
	}
}

// WatchOdds watches live odds for the given event category and markets.
func (h *Hub) WatchOdds(eventTypeID string, marketIDs []string) (*Watcher, error) {
	return h.newWatcher(topic.TypeOdds, topic.Scope{EventTypeID: eventTypeID, MarketIDs: marketIDs})
}

// WatchBookmakers watches bookmaker markets for the given event
// category and markets.
func (h *Hub) WatchBookmakers(eventTypeID string, marketIDs []string) (*Watcher, error) {
	return h.newWatcher(topic.TypeBookmakers, topic.Scope{EventTypeID: eventTypeID, MarketIDs: marketIDs})
}

// WatchSessions watches session markets for one match.
func (h *Hub) WatchSessions(eventTypeID, matchID string) (*Watcher, error) {
	return h.newWatcher(topic.TypeSessions, topic.Scope{EventTypeID: eventTypeID, MatchID: matchID})
}

// WatchScore watches the live score for one match.
func (h *Hub) WatchScore(eventTypeID, matchID string) (*Watcher, error) {
	return h.newWatcher(topic.TypeScore, topic.Scope{EventTypeID: eventTypeID, MatchID: matchID})
}

// WatchPremium watches premium markets for one match.
func (h *Hub) WatchPremium(eventTypeID, matchID string) (*Watcher, error) {
	return h.newWatcher(topic.TypePremium, topic.Scope{EventTypeID: eventTypeID, MatchID: matchID})
}

// WatchMatchDetails watches match details for one match.
func (h *Hub) WatchMatchDetails(eventTypeID, matchID string) (*Watcher, error) {
	return h.newWatcher(topic.TypeMatchDetails, topic.Scope{EventTypeID: eventTypeID, MatchID: matchID})
}

// WatchSeries watches the series list for an event category.
func (h *Hub) WatchSeries(eventTypeID string) (*Watcher, error) {
	return h.newWatcher(topic.TypeSeries, topic.Scope{EventTypeID: eventTypeID})
}
