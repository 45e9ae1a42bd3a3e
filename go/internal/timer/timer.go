package timer

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Direction is the counting direction of a timer.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Type distinguishes the three timer roles on the control panel.
type Type string

const (
	// TypeCountdown is the race's global remaining-time clock.
	TypeCountdown Type = "countdownDisplay"
	// TypeTotalTime accumulates a driver's cumulative time across stints.
	TypeTotalTime Type = "totaltime"
	// TypeSessionTime tracks a driver's current stint, restarting from zero.
	TypeSessionTime Type = "sessiontime"
)

// Session status values pushed by the backend for driver-bound timers.
const (
	StatusStart    = "start"
	StatusEnd      = "end"
	StatusRegister = "register"
)

// Config mirrors the serialized timer configuration the backend renders
// into each timer placeholder.
type Config struct {
	ElementID      string    `json:"elementId" yaml:"element_id"`
	TimerType      Type      `json:"timerType" yaml:"timer_type"`
	StartValue     float64   `json:"startValue" yaml:"start_value"`
	CountDirection Direction `json:"countDirection" yaml:"count_direction"`
	InitialPaused  bool      `json:"initialPaused" yaml:"initial_paused"`
	TargetID       int64     `json:"targetId,omitempty" yaml:"target_id"`
	RoundID        int64     `json:"roundId,omitempty" yaml:"round_id"`
	ShowHours      bool      `json:"showHours" yaml:"show_hours"`
	ShowMinutes    bool      `json:"showMinutes" yaml:"show_minutes"`
	Limit          *float64  `json:"limit,omitempty" yaml:"limit"`
	Precision      int       `json:"precision,omitempty" yaml:"precision"`
}

// ParseConfig decodes a serialized timer configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse timer config: %w", err)
	}
	if cfg.ElementID == "" {
		return Config{}, fmt.Errorf("timer config missing elementId")
	}
	if cfg.CountDirection == "" {
		cfg.CountDirection = DirectionUp
	}
	return cfg, nil
}

// Flags carries the styling state a display applies to a rendered timer.
type Flags struct {
	Active bool
	Paused bool
	// Frozen marks a count-up timer halted mid-run (driver off track or
	// race paused) as opposed to one that never started.
	Frozen bool
	// Ended marks a down timer that has reached zero.
	Ended bool
	// Over marks a timer that crossed its configured limit, direction
	// aware: exceeding it counting up, dropping below it counting down.
	Over   bool
	Hidden bool
}

// Timer is one visual clock. All time bookkeeping is float seconds;
// rounding happens only at render time.
type Timer struct {
	mu sync.Mutex

	id        string
	timerType Type
	direction Direction
	value     float64
	precision int

	// bound is true for timers carrying an associational key. Unbound
	// timers (the countdown display) are always eligible to run.
	bound    bool
	targetID int64
	roundID  int64

	active bool
	paused bool
	hidden bool
	// ran records that the timer accumulated time at least once, which
	// separates "frozen" from "never started" styling.
	ran bool

	limit       *float64
	showHours   bool
	showMinutes bool
}

// New builds a timer from its placeholder configuration.
func New(cfg Config) *Timer {
	bound := cfg.TimerType != TypeCountdown && cfg.TargetID != 0
	return &Timer{
		id:          cfg.ElementID,
		timerType:   cfg.TimerType,
		direction:   cfg.CountDirection,
		value:       cfg.StartValue,
		precision:   cfg.Precision,
		bound:       bound,
		targetID:    cfg.TargetID,
		roundID:     cfg.RoundID,
		active:      !cfg.InitialPaused,
		paused:      cfg.InitialPaused,
		hidden:      cfg.TimerType == TypeSessionTime && cfg.InitialPaused,
		limit:       cfg.Limit,
		showHours:   cfg.ShowHours,
		showMinutes: cfg.ShowMinutes,
	}
}

// ID returns the timer's element identity.
func (t *Timer) ID() string { return t.id }

// TargetID returns the owning driver/session id, zero when unbound.
func (t *Timer) TargetID() int64 { return t.targetID }

// TimerType returns the timer's role.
func (t *Timer) TimerType() Type { return t.timerType }

// Value returns the current value in seconds.
func (t *Timer) Value() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Activate marks a driver-bound timer as live. Unbound timers are always
// active and ignore the call.
func (t *Timer) Activate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound {
		return
	}
	t.active = true
}

// Deactivate marks a driver-bound timer as not live.
func (t *Timer) Deactivate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound {
		return
	}
	t.active = false
}

// Start clears the paused flag so the shared clock resumes accumulation.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
}

// Pause halts accumulation without losing the current value.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
}

// Resume is Start under its pause/resume name; accumulation remains
// gated on the active flag for driver-bound timers.
func (t *Timer) Resume() {
	t.Start()
}

// Reset overwrites the value, zeroing it when no value is supplied.
func (t *Timer) Reset(value ...float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(value) > 0 {
		t.value = value[0]
	} else {
		t.value = 0
	}
	t.ran = false
}

// Update applies one shared-clock delta. A timer only accumulates when
// it is active and not paused. A down timer crossing zero clamps to zero
// and pauses itself.
func (t *Timer) Update(deltaSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused || !t.isActiveLocked() {
		return
	}
	t.ran = true
	switch t.direction {
	case DirectionDown:
		t.value -= deltaSeconds
		if t.value <= 0 {
			t.value = 0
			t.paused = true
		}
	default:
		t.value += deltaSeconds
	}
}

// UpdatePauseState applies the global race pause toggle.
func (t *Timer) UpdatePauseState(isPaused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = isPaused
}

// UpdateRemainingTime overwrites a down timer's value with the server's
// authoritative remaining time, reconciling client-side drift. Up timers
// ignore the call.
func (t *Timer) UpdateRemainingTime(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.direction != DirectionDown {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	t.value = seconds
}

// HandleSessionUpdate applies a driver session push to this timer
// according to its role.
func (t *Timer) HandleSessionUpdate(status string, elapsed float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.timerType {
	case TypeSessionTime:
		switch status {
		case StatusStart:
			t.value = 0
			t.active = true
			t.paused = false
			t.hidden = false
			t.ran = false
		case StatusEnd:
			t.active = false
			t.hidden = true
		case StatusRegister:
			// Late join: show the clock without running it.
			t.value = 0
			t.hidden = false
			t.ran = false
		default:
			t.active = false
			t.value = 0
			t.hidden = true
			t.ran = false
		}
	case TypeTotalTime:
		switch status {
		case StatusStart:
			t.active = true
			t.value = elapsed
			t.paused = false
		case StatusEnd:
			t.active = false
		case StatusRegister:
			t.value = elapsed
			t.ran = false
		default:
			t.active = false
			t.value = 0
			t.ran = false
		}
	}
}

// Hidden reports whether the display should suppress this timer.
func (t *Timer) Hidden() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hidden
}

func (t *Timer) isActiveLocked() bool {
	if !t.bound {
		return true
	}
	return t.active
}

// Render formats the current value and derives the styling flags.
func (t *Timer) Render() (string, Flags) {
	t.mu.Lock()
	defer t.mu.Unlock()

	flags := Flags{
		Active: t.isActiveLocked(),
		Paused: t.paused,
		Frozen: t.paused && t.direction == DirectionUp && t.ran,
		Ended:  t.direction == DirectionDown && t.value <= 0,
		Hidden: t.hidden,
	}
	if t.limit != nil {
		switch t.direction {
		case DirectionUp:
			flags.Over = t.value > *t.limit
		case DirectionDown:
			flags.Over = t.value < *t.limit
		}
	}
	return FormatSeconds(t.value, t.showHours, t.showMinutes, t.precision), flags
}
