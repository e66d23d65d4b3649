package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope delivered to every audience.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventType names a broadcast event.
type EventType string

const (
	EventTypeStateInit         EventType = "state:init"
	EventTypeStateUpdate       EventType = "state:update"
	EventTypeEffectQueue       EventType = "effect:queue"
	EventTypeTimerStart        EventType = "timer:start"
	EventTypeTimerTick         EventType = "timer:tick"
	EventTypeTimerPause        EventType = "timer:pause"
	EventTypeTimerDone         EventType = "timer:done"
	EventTypePauseShow         EventType = "pause:show"
	EventTypePauseHide         EventType = "pause:hide"
	EventTypeStatusAggregating EventType = "status:aggregating"
	EventTypeSCStart           EventType = "sc:start"
	EventTypeSCNotice          EventType = "sc:notice"
	EventTypeSCMissionStart    EventType = "sc:missionStart"
	EventTypeSCMissionTick     EventType = "sc:missionTick"
	EventTypeSCMissionEnd      EventType = "sc:missionEnd"
	EventTypeSCSuccess         EventType = "sc:success"
	EventTypeSCFail            EventType = "sc:fail"
	EventTypeSCBonusStart      EventType = "sc:bonusStart"
	EventTypeSCBonusTick       EventType = "sc:bonusTick"
	EventTypeSCBonusEnd        EventType = "sc:bonusEnd"
	EventTypeSCEnd             EventType = "sc:end"
	EventTypeViewNotify        EventType = "viewnotify"
	EventTypeHideNotify        EventType = "hidenotify"
	EventTypeNotify            EventType = "notify"
	EventTypeMatchResult       EventType = "match:result"
	EventTypeResultShow        EventType = "result:show"
)

// Audience is one of the broadcast channels.
type Audience string

const (
	AudienceAdmin Audience = "admin"
	AudienceHUD   Audience = "hud"
	AudienceInput Audience = "input"
)

var (
	// AllAudiences receive the public state projection.
	AllAudiences = []Audience{AudienceAdmin, AudienceHUD, AudienceInput}
	// DisplayAudiences receive discrete match events.
	DisplayAudiences = []Audience{AudienceAdmin, AudienceHUD}
	// OperatorAudience receives notifications.
	OperatorAudience = []Audience{AudienceAdmin}
)

// ParseAudience validates a channel name.
func ParseAudience(s string) (Audience, bool) {
	switch a := Audience(s); a {
	case AudienceAdmin, AudienceHUD, AudienceInput:
		return a, true
	default:
		return "", false
	}
}

// New builds an event envelope. A nil payload produces an event without data.
func New(eventType EventType, payload any, at time.Time) (*Event, error) {
	ev := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at,
	}
	if payload == nil {
		return ev, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ev.Data = data
	return ev, nil
}

// Decode unmarshals the event data into out.
func (e *Event) Decode(out any) error {
	return json.Unmarshal(e.Data, out)
}
