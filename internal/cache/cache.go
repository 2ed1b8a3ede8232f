package cache

import (
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store holds the most recently received payload per subscription key.
// Payloads are immutable once stored; a new dispatch replaces the entry
// wholesale rather than patching it.
type Store interface {
	// Get returns the last payload for key, if any
	Get(key string) (json.RawMessage, bool)

	// Set stores the last payload for key
	Set(key string, payload json.RawMessage)

	// Delete removes the entry for key
	Delete(key string)

	// Purge removes all entries
	Purge()

	// Len returns the number of cached entries
	Len() int
}

// Memory is a bounded in-memory last-value store backed by an LRU so a
// long-lived process cannot accumulate entries without limit.
type Memory struct {
	lru *lru.Cache[string, json.RawMessage]
}

// NewMemory creates a Memory store holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	l, err := lru.New[string, json.RawMessage](size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: l}, nil
}

func (m *Memory) Get(key string) (json.RawMessage, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(key string, payload json.RawMessage) {
	m.lru.Add(key, payload)
}

func (m *Memory) Delete(key string) {
	m.lru.Remove(key)
}

func (m *Memory) Purge() {
	m.lru.Purge()
}

func (m *Memory) Len() int {
	return m.lru.Len()
}

// Noop is a Store that retains nothing (used when caching is disabled).
type Noop struct{}

// NewNoop creates a new no-op store
func NewNoop() *Noop { return &Noop{} }

func (*Noop) Get(string) (json.RawMessage, bool) { return nil, false }

func (*Noop) Set(string, json.RawMessage) {}

func (*Noop) Delete(string) {}

func (*Noop) Purge() {}

func (*Noop) Len() int { return 0 }
