package feed

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockSwitch struct {
	calls chan bool
}

func newMockSwitch() *mockSwitch {
	return &mockSwitch{calls: make(chan bool, 32)}
}

func (m *mockSwitch) SetDesired(on bool) {
	select {
	case m.calls <- on:
	default:
	}
}

func (m *mockSwitch) wait(t *testing.T) bool {
	t.Helper()
	select {
	case v := <-m.calls:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SetDesired call")
		return false
	}
}

func TestGate_ChecksOnStart(t *testing.T) {
	sw := newMockSwitch()
	var want atomic.Bool
	want.Store(true)

	g := NewGate(sw, want.Load, time.Hour, zerolog.Nop())
	g.Start()
	defer g.Stop()

	if v := sw.wait(t); !v {
		t.Error("startup check should have desired the connection")
	}
}

func TestGate_DiscreteCheck(t *testing.T) {
	sw := newMockSwitch()
	var want atomic.Bool

	g := NewGate(sw, want.Load, time.Hour, zerolog.Nop())
	g.Start()
	defer g.Stop()
	sw.wait(t) // startup check, false

	want.Store(true)
	g.Check()
	if v := sw.wait(t); !v {
		t.Error("discrete check should have desired the connection")
	}

	want.Store(false)
	g.Check()
	if v := sw.wait(t); v {
		t.Error("discrete check should have released the connection")
	}
}

func TestGate_PeriodicBackstop(t *testing.T) {
	sw := newMockSwitch()
	var want atomic.Bool

	g := NewGate(sw, want.Load, 10*time.Millisecond, zerolog.Nop())
	g.Start()
	defer g.Stop()
	sw.wait(t)

	// no discrete event: the ticker alone must pick this up
	want.Store(true)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sw.wait(t) {
			return
		}
	}
	t.Fatal("periodic check never desired the connection")
}

func TestGate_StopReleasesConnection(t *testing.T) {
	sw := newMockSwitch()
	var want atomic.Bool
	want.Store(true)

	g := NewGate(sw, want.Load, time.Hour, zerolog.Nop())
	g.Start()
	sw.wait(t)

	g.Stop()

	// drain: the last observed call must be the release
	last := true
	for {
		select {
		case v := <-sw.calls:
			last = v
			continue
		default:
		}
		break
	}
	if last {
		t.Error("Stop should end with SetDesired(false)")
	}
}
