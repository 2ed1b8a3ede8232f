package topic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Type represents the category of live data a subscription covers
type Type string

const (
	TypeOdds         Type = "odds"
	TypeBookmakers   Type = "bookmakers"
	TypeSessions     Type = "sessions"
	TypeScore        Type = "score"
	TypePremium      Type = "premium"
	TypeMatchDetails Type = "match-details"
	TypeSeries       Type = "series"
)

// All lists every known topic type.
var All = []Type{
	TypeOdds,
	TypeBookmakers,
	TypeSessions,
	TypeScore,
	TypePremium,
	TypeMatchDetails,
	TypeSeries,
}

// Valid reports whether t is one of the known topic types
func (t Type) Valid() bool {
	switch t {
	case TypeOdds, TypeBookmakers, TypeSessions, TypeScore, TypePremium, TypeMatchDetails, TypeSeries:
		return true
	}
	return false
}

// Scope narrows a topic type to one specific feed instance.
// EventTypeID is always present; MarketIDs applies to odds/bookmakers,
// MatchID to the per-match topics. Field names match the wire protocol.
type Scope struct {
	EventTypeID string   `json:"eventTypeId"`
	MarketIDs   []string `json:"marketIds,omitempty"`
	MatchID     string   `json:"matchId,omitempty"`
}

// Clone returns a copy of s with its own market-id slice, so callers
// mutating the original cannot affect retained scopes.
func (s Scope) Clone() Scope {
	out := s
	if s.MarketIDs != nil {
		out.MarketIDs = append([]string(nil), s.MarketIDs...)
	}
	return out
}

// Key derives the canonical subscription key for (t, s). Two scopes
// that are semantically identical always yield the same key: market-id
// lists are sorted before joining, and an empty list is an explicit
// "[]" marker rather than an absent segment. The same derivation is
// applied to scopes echoed back in inbound frames, so a local
// subscription and a server-echoed one collide onto one registry entry.
func Key(t Type, s Scope) string {
	switch t {
	case TypeOdds, TypeBookmakers:
		ids := append([]string(nil), s.MarketIDs...)
		sort.Strings(ids)
		return string(t) + ":" + s.EventTypeID + ":[" + strings.Join(ids, ",") + "]"
	case TypeSessions, TypeScore, TypePremium, TypeMatchDetails:
		return string(t) + ":" + s.EventTypeID + ":" + s.MatchID
	default:
		// series and anything future that scopes by event type only
		return string(t) + ":" + s.EventTypeID
	}
}

// Validate checks that s carries the identifying fields t requires.
// It guards local construction only; inbound frames are never validated
// here (they are dropped silently by the feed client instead).
func Validate(t Type, s Scope) error {
	if !t.Valid() {
		return fmt.Errorf("unknown topic type %q", t)
	}
	if s.EventTypeID == "" {
		return errors.New("eventTypeId is required")
	}
	switch t {
	case TypeSessions, TypeScore, TypePremium, TypeMatchDetails:
		if s.MatchID == "" {
			return fmt.Errorf("matchId is required for %s", t)
		}
	}
	return nil
}
