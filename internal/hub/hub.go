package hub

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/moarbaz01/aiexch-livefeed/internal/cache"
	"github.com/moarbaz01/aiexch-livefeed/internal/config"
	"github.com/moarbaz01/aiexch-livefeed/internal/feed"
	"github.com/moarbaz01/aiexch-livefeed/internal/registry"
	"github.com/moarbaz01/aiexch-livefeed/internal/topic"
)

// Hub wires the cache, registry, feed client and lifecycle gate into
// one explicitly constructed unit. It is the only thing consumers
// touch: raw Subscribe/Unsubscribe for callers managing their own
// callbacks, and typed Watch* adapters for everyone else. One hub per
// process is the intended use, but nothing here is package-global.
type Hub struct {
	cfg    *config.Config
	logger zerolog.Logger

	store    cache.Store
	registry *registry.Registry
	client   *feed.Client
	gate     *feed.Gate

	routeMu sync.RWMutex
	route   string
}

// New builds a hub from the configuration and starts its lifecycle
// gate. The connection itself is only opened once the current route
// enters the live-data section.
func New(cfg *config.Config, logger zerolog.Logger) (*Hub, error) {
	endpoint, err := cfg.FeedEndpoint()
	if err != nil {
		return nil, err
	}

	var store cache.Store
	if cfg.CacheSize > 0 {
		store, err = cache.NewMemory(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
	} else {
		store = cache.NewNoop()
	}

	h := &Hub{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
	h.registry = registry.New(store, logger)
	h.client = feed.NewClient(feed.Config{
		URL:                endpoint,
		HandshakeTimeout:   cfg.HandshakeTimeout,
		ReconnectBaseDelay: cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.ReconnectMaxDelay,
	}, h.registry, logger)
	h.registry.Bind(h.client)
	h.gate = feed.NewGate(h.client, h.shouldConnect, cfg.GateInterval, logger)
	h.gate.Start()

	return h, nil
}

func (h *Hub) shouldConnect() bool {
	h.routeMu.RLock()
	route := h.route
	h.routeMu.RUnlock()

	for _, prefix := range h.cfg.LiveRoutes {
		if strings.HasPrefix(route, prefix) {
			return true
		}
	}
	return false
}

// SetRoute records the current navigation route and re-evaluates the
// gate immediately. Call it from every discrete navigation event; the
// gate's periodic check covers whatever slips through.
func (h *Hub) SetRoute(route string) {
	h.routeMu.Lock()
	h.route = route
	h.routeMu.Unlock()
	h.gate.Check()
}

// Route returns the last recorded navigation route
func (h *Hub) Route() string {
	h.routeMu.RLock()
	defer h.routeMu.RUnlock()
	return h.route
}

// State returns the current feed connection state
func (h *Hub) State() feed.State {
	return h.client.State()
}

// Subscribe registers sub for (t, scope) and returns the last cached
// payload for that key, if any. Fails fast on invalid local arguments;
// everything transport-related is absorbed internally.
func (h *Hub) Subscribe(t topic.Type, scope topic.Scope, sub registry.Subscriber) (json.RawMessage, bool, error) {
	if err := topic.Validate(t, scope); err != nil {
		return nil, false, err
	}
	payload, ok := h.registry.Register(t, scope, sub)
	return payload, ok, nil
}

// Unsubscribe removes sub from (t, scope). Idempotent.
func (h *Hub) Unsubscribe(t topic.Type, scope topic.Scope, sub registry.Subscriber) {
	h.registry.Unregister(t, scope, sub)
}

// Close tears the hub down: the gate stops, the client sends an
// explicit unsubscribe for every live subscription and closes the
// connection, then the registry and cache are cleared.
func (h *Hub) Close() {
	h.gate.Stop()
	h.registry.Close()
	h.logger.Info().Msg("live feed hub closed")
}
