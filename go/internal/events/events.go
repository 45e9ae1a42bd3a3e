package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies the kind of push message received over a socket.
type EventType string

const (
	EventTypeLaneUpdate         EventType = "lane.update"
	EventTypeRCLaneUpdate       EventType = "rclane.update"
	EventTypeRoundUpdate        EventType = "round_update"
	EventTypePenaltyQueueUpdate EventType = "penalty_queue_update"
	EventTypePenaltyServed      EventType = "penalty_served"
	EventTypePenaltyCompleted   EventType = "penalty_completed"
	EventTypeFenceStatus        EventType = "fence_status"
	EventTypeEmptyTeamsList     EventType = "empty_teams_list"
	EventTypeSystemMessage      EventType = "system_message"
)

// ErrUnknownEvent is returned by Parse for message types this client does
// not handle. Callers log and move on; an unknown push is never fatal.
var ErrUnknownEvent = errors.New("events: unknown event type")

// Event is implemented by every parsed push message variant.
type Event interface {
	Type() EventType
}

// envelope is the minimal shape shared by all push messages.
type envelope struct {
	Type EventType `json:"type"`
}

// LaneUpdate carries a replacement HTML fragment for one pit lane.
type LaneUpdate struct {
	LaneHTML string `json:"lane_html"`
}

func (LaneUpdate) Type() EventType { return EventTypeLaneUpdate }

// RCLaneUpdate is the race-control variant of a lane fragment update.
type RCLaneUpdate struct {
	LaneHTML string `json:"lane_html"`
}

func (RCLaneUpdate) Type() EventType { return EventTypeRCLaneUpdate }

// RoundUpdate is pushed on the round socket for both global race state
// changes and per-driver session changes. SessionUpdate selects which
// half of the payload is meaningful.
type RoundUpdate struct {
	IsPaused         bool     `json:"is_paused"`
	RemainingSeconds *float64 `json:"remaining_seconds,omitempty"`
	SessionUpdate    bool     `json:"session_update"`
	DriverID         int64    `json:"driver_id,omitempty"`
	DriverStatus     string   `json:"driver_status,omitempty"`
	TimeSpent        float64  `json:"time_spent,omitempty"`
}

func (RoundUpdate) Type() EventType { return EventTypeRoundUpdate }

// ActivePenalty identifies the queue entry currently offered to the
// stop-and-go station.
type ActivePenalty struct {
	QueueID   int64 `json:"queue_id"`
	PenaltyID int64 `json:"penalty_id"`
}

// PenaltyQueueUpdate replaces the penalty queue view wholesale.
type PenaltyQueueUpdate struct {
	ActivePenalty *ActivePenalty `json:"active_penalty,omitempty"`
	ServingTeam   *int64         `json:"serving_team"`
	QueueCount    int            `json:"queue_count"`
}

func (PenaltyQueueUpdate) Type() EventType { return EventTypePenaltyQueueUpdate }

// PenaltyServed reports that the station confirmed a team served its penalty.
type PenaltyServed struct {
	Team    int64 `json:"team"`
	QueueID int64 `json:"queue_id,omitempty"`
}

func (PenaltyServed) Type() EventType { return EventTypePenaltyServed }

// PenaltyCompleted reports that a queue entry was marked completed upstream.
type PenaltyCompleted struct {
	QueueID int64 `json:"queue_id"`
}

func (PenaltyCompleted) Type() EventType { return EventTypePenaltyCompleted }

// FenceStatus reports the stop-and-go station barrier state.
type FenceStatus struct {
	Raised bool `json:"raised"`
}

func (FenceStatus) Type() EventType { return EventTypeFenceStatus }

// EmptyTeam is one registered team with no drivers attached.
type EmptyTeam struct {
	ID               int64  `json:"id"`
	TeamName         string `json:"team_name"`
	Number           int    `json:"number"`
	ChampionshipName string `json:"championship_name"`
}

// EmptyTeamsList replaces the list of empty teams shown before the race.
type EmptyTeamsList struct {
	Teams []EmptyTeam `json:"teams"`
}

func (EmptyTeamsList) Type() EventType { return EventTypeEmptyTeamsList }

// SystemMessage is a human-readable notice pushed by the backend.
type SystemMessage struct {
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

func (SystemMessage) Type() EventType { return EventTypeSystemMessage }

// Parse decodes a raw push message into its typed variant.
func Parse(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}

	switch env.Type {
	case EventTypeLaneUpdate:
		return unmarshalEvent[LaneUpdate](data)
	case EventTypeRCLaneUpdate:
		return unmarshalEvent[RCLaneUpdate](data)
	case EventTypeRoundUpdate:
		return unmarshalEvent[RoundUpdate](data)
	case EventTypePenaltyQueueUpdate:
		return unmarshalEvent[PenaltyQueueUpdate](data)
	case EventTypePenaltyServed:
		return unmarshalEvent[PenaltyServed](data)
	case EventTypePenaltyCompleted:
		return unmarshalEvent[PenaltyCompleted](data)
	case EventTypeFenceStatus:
		return unmarshalEvent[FenceStatus](data)
	case EventTypeEmptyTeamsList:
		return unmarshalEvent[EmptyTeamsList](data)
	case EventTypeSystemMessage:
		return unmarshalEvent[SystemMessage](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func unmarshalEvent[E Event](data []byte) (Event, error) {
	var e E
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", e.Type(), err)
	}
	return e, nil
}
