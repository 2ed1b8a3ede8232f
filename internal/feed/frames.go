package feed

import (
	"encoding/json"
	"strings"

	"github.com/moarbaz01/aiexch-livefeed/internal/registry"
	"github.com/moarbaz01/aiexch-livefeed/internal/topic"
)

// outboundFrame is the wire form of a subscribe/unsubscribe message.
// The scope fields are flattened into the frame alongside action/type.
type outboundFrame struct {
	Action      registry.Action `json:"action"`
	Type        topic.Type      `json:"type"`
	EventTypeID string          `json:"eventTypeId"`
	MarketIDs   []string        `json:"marketIds,omitempty"`
	MatchID     string          `json:"matchId,omitempty"`
}

func encodeOutbound(action registry.Action, t topic.Type, scope topic.Scope) ([]byte, error) {
	return json.Marshal(outboundFrame{
		Action:      action,
		Type:        t,
		EventTypeID: scope.EventTypeID,
		MarketIDs:   scope.MarketIDs,
		MatchID:     scope.MatchID,
	})
}

// inboundFrame is the envelope of every message the feed server sends.
// Type is either an acknowledgement tag ("subscribed"/"unsubscribed")
// or "<topicType>:update" carrying data plus the echoed scope.
type inboundFrame struct {
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data"`
	Subscription *topic.Scope    `json:"subscription"`
}

const updateSuffix = ":update"

const (
	ackSubscribed   = "subscribed"
	ackUnsubscribed = "unsubscribed"
)

// updateTopic extracts the topic type from an update tag. Returns false
// for acknowledgements, unknown topics, and anything else.
func updateTopic(tag string) (topic.Type, bool) {
	if !strings.HasSuffix(tag, updateSuffix) {
		return "", false
	}
	t := topic.Type(strings.TrimSuffix(tag, updateSuffix))
	if !t.Valid() {
		return "", false
	}
	return t, true
}
