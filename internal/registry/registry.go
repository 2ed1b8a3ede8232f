package registry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/moarbaz01/aiexch-livefeed/internal/cache"
	"github.com/moarbaz01/aiexch-livefeed/internal/topic"
)

// Subscriber receives payloads for one subscription. The registry holds
// subscribers only for dispatch; their lifecycle is owned by whoever
// registered them, and removal is always subscriber-initiated.
type Subscriber interface {
	// ID uniquely identifies this subscriber within its key
	ID() string

	// Deliver hands the subscriber a freshly dispatched payload
	Deliver(payload json.RawMessage)
}

// Subscription is one live (topic type, scope) pair. The scope is the
// original, non-normalized one so replayed subscribe frames reproduce
// the caller's field values exactly.
type Subscription struct {
	Type  topic.Type
	Scope topic.Scope
}

// Action is the verb of an outbound wire message
type Action string

const (
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
)

// Sender writes subscribe/unsubscribe messages to the feed connection.
// Send is fire-and-forget: it is a no-op while the connection is not
// open, and no acknowledgement is ever awaited.
type Sender interface {
	Send(action Action, t topic.Type, scope topic.Scope)
}

type nopSender struct{}

func (nopSender) Send(Action, topic.Type, topic.Scope) {}

// entry holds the subscribers for one active subscription key
type entry struct {
	sub  Subscription
	subs map[string]Subscriber
}

// Registry is the single source of truth for active subscriptions: it
// maps subscription keys to subscriber sets, refcounts them so N
// independent consumers of the same key produce exactly one wire
// subscribe (and one unsubscribe, when the last of them leaves), and
// fans inbound payloads out to every registered subscriber.
//
// One mutex guards the entries and the cache as a unit, so replaying
// all subscriptions after a reconnect cannot race a consumer
// unregistering mid-replay.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	store   cache.Store
	sender  Sender
	online  bool

	logger zerolog.Logger
}

// New creates a registry over the given last-value store. The sender is
// a no-op until Bind is called.
func New(store cache.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		store:   store,
		sender:  nopSender{},
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// Bind attaches the outbound sender. Called once during wiring, before
// consumers start registering.
func (r *Registry) Bind(s Sender) {
	r.mu.Lock()
	r.sender = s
	r.mu.Unlock()
}

// Register adds sub under the key derived from (t, scope) and returns
// the last cached payload for that key, if any. The first registration
// for a key sends one subscribe message; while the connection is not
// open no message is sent, but the registration is still recorded so it
// is replayed on the next successful connect. Register never blocks on
// the network.
//
// The send happens inside the registry lock: entry creation and its
// wire message are one atomic step with respect to Resume, so a replay
// can never double up with a registration's own subscribe.
func (r *Registry) Register(t topic.Type, scope topic.Scope, sub Subscriber) (json.RawMessage, bool) {
	key := topic.Key(t, scope)

	r.mu.Lock()
	e, exists := r.entries[key]
	if !exists {
		e = &entry{
			sub:  Subscription{Type: t, Scope: scope.Clone()},
			subs: make(map[string]Subscriber),
		}
		r.entries[key] = e
		if r.online {
			r.sender.Send(ActionSubscribe, t, scope)
		}
	}
	e.subs[sub.ID()] = sub
	cached, ok := r.store.Get(key)
	r.mu.Unlock()

	if exists {
		r.logger.Debug().Str("key", key).Str("subscriber", sub.ID()).Msg("joined existing subscription")
	} else {
		r.logger.Info().Str("key", key).Str("subscriber", sub.ID()).Msg("created subscription")
	}
	return cached, ok
}

// Unregister removes sub from the key derived from (t, scope). Removing
// the last subscriber sends one unsubscribe message and deletes both
// the entry and its cache entry. Unregistering a subscriber that is not
// registered is a no-op.
func (r *Registry) Unregister(t topic.Type, scope topic.Scope, sub Subscriber) {
	r.remove(t, scope, sub.ID())
}

// UnregisterAll drops every subscriber for (t, scope) unconditionally.
// Used for bulk teardown.
func (r *Registry) UnregisterAll(t topic.Type, scope topic.Scope) {
	r.remove(t, scope, "")
}

func (r *Registry) remove(t topic.Type, scope topic.Scope, subID string) {
	key := topic.Key(t, scope)

	r.mu.Lock()
	e, exists := r.entries[key]
	if !exists {
		r.mu.Unlock()
		return
	}
	if subID == "" {
		e.subs = make(map[string]Subscriber)
	} else {
		if _, ok := e.subs[subID]; !ok {
			r.mu.Unlock()
			return
		}
		delete(e.subs, subID)
	}
	if len(e.subs) > 0 {
		remaining := len(e.subs)
		r.mu.Unlock()
		r.logger.Debug().Str("key", key).Str("subscriber", subID).Int("remaining", remaining).Msg("subscriber removed")
		return
	}
	delete(r.entries, key)
	r.store.Delete(key)
	if r.online {
		r.sender.Send(ActionUnsubscribe, e.sub.Type, e.sub.Scope)
	}
	r.mu.Unlock()

	r.logger.Info().Str("key", key).Msg("closed subscription (no more subscribers)")
}

// Dispatch stores payload as the last value for the key derived from
// (t, scope) and delivers it to every registered subscriber, in the
// order frames arrived on the connection. A key with no live entry is a
// no-op: a topic may legitimately have no listener for a window of
// time, and nothing is cached for it.
func (r *Registry) Dispatch(t topic.Type, scope topic.Scope, payload json.RawMessage) {
	key := topic.Key(t, scope)

	r.mu.Lock()
	e, exists := r.entries[key]
	if !exists {
		r.mu.Unlock()
		return
	}
	r.store.Set(key, payload)
	subs := make([]Subscriber, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		start := time.Now()
		s.Deliver(payload)
		if d := time.Since(start); d > time.Second {
			r.logger.Warn().Str("key", key).Str("subscriber", s.ID()).Dur("duration", d).Msg("subscriber delivery slow")
		}
	}
}

// Resume marks the connection open and invokes send for every live
// subscription with its original scope. The registry lock is held
// across the whole replay, so a concurrent register or unregister
// cannot interleave its own wire traffic with the replayed frames: per
// connection, each key gets at most one subscribe. Sends are
// fire-and-forget, so holding the lock across them is safe.
func (r *Registry) Resume(send func(Subscription)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = true
	for _, e := range r.entries {
		send(e.sub)
	}
	r.logger.Info().Int("count", len(r.entries)).Msg("subscriptions resumed")
}

// Suspend marks the connection unusable, so register/unregister stop
// producing wire traffic until the next Resume. A non-nil send is
// invoked for every live subscription inside the same critical
// section; teardown uses this to issue unsubscribes that cannot double
// up with a concurrent unregister.
func (r *Registry) Suspend(send func(Subscription)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = false
	if send == nil {
		return
	}
	for _, e := range r.entries {
		send(e.sub)
	}
}

// ReplayAll returns a snapshot of every live subscription with its
// original scope.
func (r *Registry) ReplayAll() []Subscription {
	r.mu.Lock()
	out := make([]Subscription, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.sub)
	}
	r.mu.Unlock()
	return out
}

// Len returns the number of live subscription keys
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close drops all entries and purges the cache.
func (r *Registry) Close() {
	r.mu.Lock()
	r.entries = make(map[string]*entry)
	r.store.Purge()
	r.online = false
	r.mu.Unlock()
	r.logger.Info().Msg("registry closed")
}
