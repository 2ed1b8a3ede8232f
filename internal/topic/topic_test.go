package topic

import "testing"

func TestKey_MarketIDsOrderIndependent(t *testing.T) {
	a := Key(TypeOdds, Scope{EventTypeID: "4", MarketIDs: []string{"B", "A"}})
	b := Key(TypeOdds, Scope{EventTypeID: "4", MarketIDs: []string{"A", "B"}})
	if a != b {
		t.Errorf("keys differ for reordered market ids: %q vs %q", a, b)
	}
}

func TestKey_EmptyMarketListIsExplicit(t *testing.T) {
	empty := Key(TypeOdds, Scope{EventTypeID: "4"})
	if empty != "odds:4:[]" {
		t.Errorf("empty market list key = %q, want odds:4:[]", empty)
	}
	nonEmpty := Key(TypeOdds, Scope{EventTypeID: "4", MarketIDs: []string{"m1"}})
	if empty == nonEmpty {
		t.Error("empty and non-empty market lists collide")
	}
}

func TestKey_DoesNotMutateScope(t *testing.T) {
	s := Scope{EventTypeID: "4", MarketIDs: []string{"B", "A"}}
	Key(TypeOdds, s)
	if s.MarketIDs[0] != "B" || s.MarketIDs[1] != "A" {
		t.Errorf("Key mutated caller slice: %v", s.MarketIDs)
	}
}

func TestKey_PerTopicShapes(t *testing.T) {
	tests := []struct {
		topicType Type
		scope     Scope
		want      string
	}{
		{TypeScore, Scope{EventTypeID: "4", MatchID: "m1"}, "score:4:m1"},
		{TypeSessions, Scope{EventTypeID: "4", MatchID: "m1"}, "sessions:4:m1"},
		{TypePremium, Scope{EventTypeID: "4", MatchID: "m1"}, "premium:4:m1"},
		{TypeMatchDetails, Scope{EventTypeID: "4", MatchID: "m1"}, "match-details:4:m1"},
		{TypeSeries, Scope{EventTypeID: "4"}, "series:4"},
		{TypeBookmakers, Scope{EventTypeID: "4", MarketIDs: []string{"x"}}, "bookmakers:4:[x]"},
	}
	for _, tt := range tests {
		if got := Key(tt.topicType, tt.scope); got != tt.want {
			t.Errorf("Key(%s) = %q, want %q", tt.topicType, got, tt.want)
		}
	}
}

func TestKey_DistinctAcrossTypes(t *testing.T) {
	s := Scope{EventTypeID: "4", MatchID: "m1"}
	seen := make(map[string]Type)
	for _, typ := range []Type{TypeSessions, TypeScore, TypePremium, TypeMatchDetails} {
		key := Key(typ, s)
		if prev, dup := seen[key]; dup {
			t.Errorf("key collision between %s and %s: %q", prev, typ, key)
		}
		seen[key] = typ
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		topicType Type
		scope     Scope
		wantErr   bool
	}{
		{"odds ok", TypeOdds, Scope{EventTypeID: "4", MarketIDs: []string{"m"}}, false},
		{"odds empty markets ok", TypeOdds, Scope{EventTypeID: "4"}, false},
		{"missing event type", TypeOdds, Scope{}, true},
		{"score ok", TypeScore, Scope{EventTypeID: "4", MatchID: "m1"}, false},
		{"score missing match", TypeScore, Scope{EventTypeID: "4"}, true},
		{"match-details missing match", TypeMatchDetails, Scope{EventTypeID: "4"}, true},
		{"series ok", TypeSeries, Scope{EventTypeID: "4"}, false},
		{"unknown type", Type("bogus"), Scope{EventTypeID: "4"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.topicType, tt.scope)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%s, %+v) error = %v, wantErr %v", tt.topicType, tt.scope, err, tt.wantErr)
			}
		})
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range All {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("odds:update").Valid() {
		t.Error("tag with suffix should not be a valid type")
	}
}
