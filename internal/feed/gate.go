package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Switch is the client surface the gate drives
type Switch interface {
	SetDesired(on bool)
}

// Gate decides whether the feed connection should exist at all, based
// on a should-connect predicate over the current navigation context.
// Check runs (a) once on Start, (b) on every discrete navigation event
// via the Check hook, and (c) on a periodic interval as a backstop for
// navigation mechanisms that emit no discrete event — missing a
// transition would leak an open connection or a stuck reconnect loop.
type Gate struct {
	client   Switch
	should   func() bool
	interval time.Duration
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGate creates a gate over the given predicate. A zero interval
// falls back to 10s.
func NewGate(client Switch, should func() bool, interval time.Duration, logger zerolog.Logger) *Gate {
	if interval == 0 {
		interval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		client:   client,
		should:   should,
		interval: interval,
		logger:   logger.With().Str("component", "gate").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start evaluates the predicate once immediately, then keeps
// re-evaluating it on the configured interval until Stop.
func (g *Gate) Start() {
	g.Check()
	g.wg.Add(1)
	go g.loop()
}

func (g *Gate) loop() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.Check()
		}
	}
}

// Check evaluates the predicate and pushes the result to the client.
// Safe to call from navigation event handlers; SetDesired is idempotent
// so redundant checks are cheap.
func (g *Gate) Check() {
	g.client.SetDesired(g.should())
}

// Stop halts the periodic check and turns the connection off.
func (g *Gate) Stop() {
	g.cancel()
	g.wg.Wait()
	g.client.SetDesired(false)
	g.logger.Info().Msg("gate stopped")
}
