package racecontrol

// State is the race-control panel's current phase. Exactly one state is
// current at any time.
type State string

const (
	StateInitial State = "initial"
	StateReady   State = "ready"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// Action is a race-control operation bound to a backend endpoint.
type Action string

const (
	ActionPreCheck     Action = "pre_check"
	ActionStart        Action = "start"
	ActionPause        Action = "pause"
	ActionResume       Action = "resume"
	ActionEnd          Action = "end"
	ActionFalseStart   Action = "false_start"
	ActionFalseRestart Action = "false_restart"
)

// Transient is a temporarily offered action sub-mode with a fixed expiry.
type Transient string

const (
	TransientNone         Transient = ""
	TransientFalseStart   Transient = "falseStart"
	TransientFalseRestart Transient = "falseRestart"
)

// transition describes the outcome of a backend-confirmed action.
type transition struct {
	next      State
	transient Transient
}

// transitions is the action table. State only moves through it, and only
// after the backend confirms success.
var transitions = map[Action]transition{
	ActionPreCheck:     {next: StateReady},
	ActionStart:        {next: StateRunning, transient: TransientFalseStart},
	ActionPause:        {next: StatePaused},
	ActionResume:       {next: StateRunning, transient: TransientFalseRestart},
	ActionEnd:          {next: StateEnded},
	ActionFalseStart:   {next: StateReady},
	ActionFalseRestart: {next: StatePaused},
}

// ButtonSet is the snapshot of action buttons the display should show.
type ButtonSet struct {
	Visible []Action
	// Enabled is false while an action request is in flight; all buttons
	// are disabled together so only one action can be attempted at a time.
	Enabled bool
}

// buttonsFor derives the visible button set from the state and any
// active transient sub-mode.
func buttonsFor(state State, transient Transient) []Action {
	switch state {
	case StateInitial:
		return []Action{ActionPreCheck}
	case StateReady:
		return []Action{ActionStart}
	case StateRunning:
		if transient == TransientFalseStart {
			return []Action{ActionFalseStart, ActionPause, ActionEnd}
		}
		return []Action{ActionPause, ActionEnd}
	case StatePaused:
		if transient == TransientFalseRestart {
			return []Action{ActionFalseRestart, ActionResume, ActionEnd}
		}
		return []Action{ActionResume, ActionEnd}
	default:
		return nil
	}
}

// InitialStateFromButtons recovers the panel state from the buttons the
// backend rendered visible at page load.
func InitialStateFromButtons(visible []Action) State {
	for _, a := range visible {
		switch a {
		case ActionPreCheck:
			return StateInitial
		case ActionStart:
			return StateReady
		case ActionPause:
			return StateRunning
		case ActionResume:
			return StatePaused
		}
	}
	return StateEnded
}
