package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Display receives rendered timer frames. The console implements this;
// tests use a recording fake.
type Display interface {
	RenderTimer(id string, text string, flags Flags)
	RemoveTimer(id string)
}

// RegistryConfig holds tuning knobs for a Registry.
type RegistryConfig struct {
	// FrameInterval is the shared tick period. Every registered timer
	// receives the same wall-clock delta once per frame.
	FrameInterval time.Duration
	Clock         clockwork.Clock
}

// DefaultRegistryConfig returns the production registry configuration.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		FrameInterval: 100 * time.Millisecond,
		Clock:         clockwork.NewRealClock(),
	}
}

// Registry owns every timer on the panel and drives them from one shared
// scheduling loop, so all clocks stay mutually consistent. The loop
// starts when the first timer registers and runs until Close.
type Registry struct {
	config  RegistryConfig
	display Display

	mu       sync.Mutex
	timers   map[string]*Timer
	byTarget map[int64][]*Timer
	started  bool
	closed   bool
	stopCh   chan struct{}
}

// NewRegistry creates an empty registry rendering to display.
func NewRegistry(display Display, config RegistryConfig) *Registry {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultRegistryConfig().FrameInterval
	}
	return &Registry{
		config:   config,
		display:  display,
		timers:   make(map[string]*Timer),
		byTarget: make(map[int64][]*Timer),
		stopCh:   make(chan struct{}),
	}
}

// Register creates a timer from cfg and adds it to the shared loop.
// Registering the first timer starts the loop.
func (r *Registry) Register(cfg Config) (*Timer, error) {
	t := New(cfg)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("timer registry is closed")
	}
	if _, exists := r.timers[t.id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("timer %q already registered", t.id)
	}
	r.timers[t.id] = t
	if t.targetID != 0 {
		r.byTarget[t.targetID] = append(r.byTarget[t.targetID], t)
	}
	startLoop := !r.started
	if startLoop {
		r.started = true
	}
	r.mu.Unlock()

	if startLoop {
		go r.run()
		log.Debug().Str("timer_id", t.id).Msg("first timer registered, scheduler started")
	}

	r.renderOne(t)
	return t, nil
}

// Deregister removes a timer whose backing element disappeared. The
// shared loop keeps running even when the registry empties out.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	t, ok := r.timers[id]
	if ok {
		delete(r.timers, id)
		if t.targetID != 0 {
			peers := r.byTarget[t.targetID][:0]
			for _, p := range r.byTarget[t.targetID] {
				if p != t {
					peers = append(peers, p)
				}
			}
			if len(peers) == 0 {
				delete(r.byTarget, t.targetID)
			} else {
				r.byTarget[t.targetID] = peers
			}
		}
	}
	r.mu.Unlock()

	if ok && r.display != nil {
		r.display.RemoveTimer(id)
	}
}

// Get returns a registered timer by element id.
func (r *Registry) Get(id string) (*Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[id]
	return t, ok
}

// ForTarget returns the timers bound to one driver/session id.
func (r *Registry) ForTarget(targetID int64) []*Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Timer(nil), r.byTarget[targetID]...)
}

// run is the single scheduling loop. It computes elapsed real time once
// per frame and applies the same delta to every timer.
func (r *Registry) run() {
	ticker := r.config.Clock.NewTicker(r.config.FrameInterval)
	defer ticker.Stop()

	last := r.config.Clock.Now()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.Chan():
			now := r.config.Clock.Now()
			delta := now.Sub(last).Seconds()
			last = now
			r.Tick(delta)
		}
	}
}

// Tick applies one frame delta to every timer and renders the results.
// The shared loop calls this; tests drive it directly.
func (r *Registry) Tick(deltaSeconds float64) {
	for _, t := range r.snapshot() {
		t.Update(deltaSeconds)
		r.renderOne(t)
	}
}

// HandleSessionUpdate routes a driver session push to the timers bound
// to that driver.
func (r *Registry) HandleSessionUpdate(targetID int64, status string, elapsed float64) {
	targets := r.ForTarget(targetID)
	if len(targets) == 0 {
		log.Debug().Int64("target_id", targetID).Str("status", status).Msg("session update for unknown driver")
		return
	}
	for _, t := range targets {
		t.HandleSessionUpdate(status, elapsed)
		r.renderOne(t)
	}
}

// UpdatePauseState applies the global race pause toggle to every timer.
func (r *Registry) UpdatePauseState(isPaused bool) {
	for _, t := range r.snapshot() {
		t.UpdatePauseState(isPaused)
		r.renderOne(t)
	}
}

// UpdateRemainingTime reconciles every countdown timer against the
// server's authoritative remaining time.
func (r *Registry) UpdateRemainingTime(seconds float64) {
	for _, t := range r.snapshot() {
		if t.TimerType() != TypeCountdown {
			continue
		}
		t.UpdateRemainingTime(seconds)
		r.renderOne(t)
	}
}

// RenderAll re-renders every registered timer.
func (r *Registry) RenderAll() {
	for _, t := range r.snapshot() {
		r.renderOne(t)
	}
}

// Close stops the scheduling loop on page teardown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.stopCh)
}

func (r *Registry) snapshot() []*Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Timer, 0, len(r.timers))
	for _, t := range r.timers {
		out = append(out, t)
	}
	return out
}

func (r *Registry) renderOne(t *Timer) {
	if r.display == nil {
		return
	}
	text, flags := t.Render()
	r.display.RenderTimer(t.id, text, flags)
}
