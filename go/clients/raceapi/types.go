package raceapi

import "encoding/json"

// StringList tolerates the backend's habit of sending either a single
// string or a list of strings in its error fields.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*s = StringList{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		// Mixed-type lists show up occasionally; keep the strings. The
		// failed decode may have partially filled the slice, start over.
		many = nil
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for _, item := range raw {
			var str string
			if json.Unmarshal(item, &str) == nil {
				many = append(many, str)
			}
		}
	}
	*s = many
	return nil
}

// ActionResponse is the JSON body returned by every race action endpoint.
type ActionResponse struct {
	Status       string     `json:"status,omitempty"`
	Result       *bool      `json:"result,omitempty"`
	Message      string     `json:"message,omitempty"`
	Error        StringList `json:"error,omitempty"`
	Errors       StringList `json:"errors,omitempty"`
	Ready        *bool      `json:"ready,omitempty"`
	PenaltyCount *int       `json:"penalty_count,omitempty"`
}

// Failed reports whether the backend signalled logical failure despite a
// 2xx status: an explicit false result, a non-empty error list, or an
// error status field.
func (r *ActionResponse) Failed() bool {
	if r.Result != nil && !*r.Result {
		return true
	}
	if len(r.Errors) > 0 || len(r.Error) > 0 {
		return true
	}
	return r.Status == "error"
}

// FailureMessages returns every backend-reported error, falling back to
// the message field when no explicit error list was sent.
func (r *ActionResponse) FailureMessages() []string {
	msgs := make([]string, 0, len(r.Errors)+len(r.Error))
	msgs = append(msgs, r.Errors...)
	msgs = append(msgs, r.Error...)
	if len(msgs) == 0 && r.Message != "" {
		msgs = append(msgs, r.Message)
	}
	return msgs
}

// Lane identifies one pit lane known to the backend.
type Lane struct {
	Lane int `json:"lane"`
}

type raceLanesResponse struct {
	Lanes []Lane `json:"lanes"`
}

// StopGoPenalty is one entry of the championship's stop-and-go catalogue.
type StopGoPenalty struct {
	ID          int64   `json:"id"`
	PenaltyName string  `json:"penalty_name"`
	Value       float64 `json:"value"`
	Option      string  `json:"option"`
	Sanction    string  `json:"sanction"`
}

type stopGoPenaltiesResponse struct {
	Penalties []StopGoPenalty `json:"penalties"`
}

// ActivePenalty identifies the queue entry currently at the station.
type ActivePenalty struct {
	QueueID   int64 `json:"queue_id"`
	PenaltyID int64 `json:"penalty_id"`
}

// QueueStatus is the server-side penalty queue snapshot.
type QueueStatus struct {
	ActivePenalty *ActivePenalty `json:"active_penalty,omitempty"`
	ServingTeam   *int64         `json:"serving_team"`
	QueueCount    int            `json:"queue_count"`
}

// QueuePenaltyRequest enqueues a penalty for a team.
type QueuePenaltyRequest struct {
	RoundID   int64 `json:"round_id"`
	TeamID    int64 `json:"team_id"`
	PenaltyID int64 `json:"penalty_id"`
}

// QueueOpRequest addresses one existing queue entry.
type QueueOpRequest struct {
	QueueID int64 `json:"queue_id"`
}

// QueueOpResponse only accepts or rejects the request; the resulting
// queue state arrives separately as a push update.
type QueueOpResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
