package racecontrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/openkart/pitwall/go/clients"
	"github.com/openkart/pitwall/go/clients/raceapi"
	"github.com/openkart/pitwall/go/internal/events"
	"github.com/openkart/pitwall/go/internal/timer"
	"github.com/openkart/pitwall/go/internal/transport"
)

// TransientWindow is how long a false start/restart stays on offer
// before the button set reverts on its own.
const TransientWindow = 15 * time.Second

// Display is the render surface the panel drives. The console implements
// it; tests use a recording fake.
type Display interface {
	ShowMessage(text, tag string)
	UpdateButtons(buttons ButtonSet)
	UpdateLane(lane int, html string)
	UpdateEmptyTeams(teams []events.EmptyTeam)
}

// Socket is the slice of transport.Socket the panel uses, narrowed so
// tests can substitute fakes.
type Socket interface {
	Send(v any)
	Close()
	State() transport.State
}

// SocketOpener opens a resilient socket. Production wires transport.Open.
type SocketOpener func(url string, handlers transport.Handlers) Socket

// Config wires a Panel to its collaborators.
type Config struct {
	API        *raceapi.Client
	Display    Display
	Registry   *timer.Registry
	RoundID    int64
	WSBaseURL  string
	ActionURLs map[Action]string
	// InitialButtons are the buttons the backend rendered visible, which
	// seed the state machine.
	InitialButtons []Action
	Clock          clockwork.Clock
	OpenSocket     SocketOpener
}

// transientHandle pairs a running transient-expiry timer with its cancel
// channel so a superseded window never reverts the wrong sub-mode.
type transientHandle struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// Panel is the race-control state machine. It issues authenticated
// action requests, transitions only on backend-confirmed success, and
// owns the lane and round sockets.
type Panel struct {
	api      *raceapi.Client
	display  Display
	registry *timer.Registry
	clock    clockwork.Clock
	open     SocketOpener

	roundID    int64
	wsBase     string
	actionURLs map[Action]string

	mu               sync.Mutex
	state            State
	transient        Transient
	transientTimer   *transientHandle
	inFlight         bool
	lanesConnected   bool
	laneSockets      []Socket
	roundSocket      Socket
	emptyTeamsSocket Socket
}

// NewPanel builds a panel seeded from the server-rendered button set.
func NewPanel(cfg Config) *Panel {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.OpenSocket == nil {
		cfg.OpenSocket = func(url string, handlers transport.Handlers) Socket {
			return transport.Open(url, handlers)
		}
	}
	p := &Panel{
		api:        cfg.API,
		display:    cfg.Display,
		registry:   cfg.Registry,
		clock:      cfg.Clock,
		open:       cfg.OpenSocket,
		roundID:    cfg.RoundID,
		wsBase:     cfg.WSBaseURL,
		actionURLs: cfg.ActionURLs,
		state:      InitialStateFromButtons(cfg.InitialButtons),
	}
	return p
}

// State returns the current race-control state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Buttons returns the current button snapshot.
func (p *Panel) Buttons() ButtonSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buttonsLocked()
}

func (p *Panel) buttonsLocked() ButtonSet {
	return ButtonSet{
		Visible: buttonsFor(p.state, p.transient),
		Enabled: !p.inFlight,
	}
}

func (p *Panel) publishButtons() {
	p.mu.Lock()
	buttons := p.buttonsLocked()
	p.mu.Unlock()
	if p.display != nil {
		p.display.UpdateButtons(buttons)
	}
}

// PerformAction runs one race-control action end to end: disable the
// buttons, POST to the backend, classify the response, and transition
// only on confirmed success. At most one action is in flight at a time;
// a second call while one is pending is dropped.
func (p *Panel) PerformAction(ctx context.Context, action Action) {
	url, ok := p.actionURLs[action]
	if !ok {
		p.showMessage(fmt.Sprintf("Error: no endpoint configured for action '%s'.", action), "danger")
		return
	}

	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		log.Warn().Str("action", string(action)).Msg("action already in flight, ignoring")
		return
	}
	p.inFlight = true
	stateAtSend := p.state
	p.mu.Unlock()
	p.publishButtons()

	requestID := uuid.New()
	log.Info().
		Str("action", string(action)).
		Str("request_id", requestID.String()).
		Str("state", string(stateAtSend)).
		Msg("sending race action")

	resp, err := p.api.PostAction(ctx, url)
	p.settleAction(ctx, action, requestID, stateAtSend, resp, err)
}

// settleAction applies the response of an action request. Failure paths
// all end with the buttons restored and no state transition.
func (p *Panel) settleAction(ctx context.Context, action Action, requestID uuid.UUID, stateAtSend State, resp *raceapi.ActionResponse, err error) {
	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
		p.publishButtons()
	}()

	if err != nil {
		p.reportActionError(action, err)
		return
	}

	if resp.Failed() {
		msgs := resp.FailureMessages()
		if len(msgs) == 0 {
			msgs = []string{"Action failed according to backend."}
		}
		for _, msg := range msgs {
			p.showMessage(msg, "warning")
		}
		log.Warn().Str("action", string(action)).Strs("errors", msgs).Msg("action failed logically")
		return
	}

	p.mu.Lock()
	if p.state != stateAtSend {
		// The state moved through a push update while this request was in
		// flight; applying the stale response now would fight the server.
		p.mu.Unlock()
		log.Warn().
			Str("action", string(action)).
			Str("request_id", requestID.String()).
			Str("state_at_send", string(stateAtSend)).
			Msg("discarding stale action response")
		return
	}
	tr, ok := transitions[action]
	if !ok {
		p.mu.Unlock()
		log.Warn().Str("action", string(action)).Msg("no transition for action")
		return
	}
	p.state = tr.next
	p.setTransientLocked(tr.transient)
	p.mu.Unlock()

	tag := resp.Status
	if tag == "" {
		tag = "success"
	}
	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("Action '%s' successful.", action)
	}
	p.showMessage(msg, tag)

	p.applySideEffects(ctx, action)
}

// reportActionError surfaces transport-level failures per the error
// taxonomy: HTTP non-2xx and network errors are dismissable danger
// messages, an unparseable 2xx body is a non-fatal warning. None of them
// transition state and none retry.
func (p *Panel) reportActionError(action Action, err error) {
	var statusErr *clients.StatusError
	switch {
	case errors.As(err, &statusErr):
		msg := fmt.Sprintf("Error performing action '%s'. Status: %d", action, statusErr.Code)
		var detail raceapi.ActionResponse
		if json.Unmarshal(statusErr.Body, &detail) == nil {
			if errs := detail.FailureMessages(); len(errs) > 0 {
				msg = errs[0]
			}
		}
		p.showMessage(msg, "danger")
	case isMalformedResponse(err):
		p.showMessage("Action succeeded but received invalid response from server.", "warning")
	default:
		p.showMessage(fmt.Sprintf("Network error: %v. Please check connection.", err), "danger")
	}
	log.Error().Err(err).Str("action", string(action)).Msg("race action failed")
}

func isMalformedResponse(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// applySideEffects runs the per-action consequences of a confirmed
// transition: socket wiring and timer engine toggles.
func (p *Panel) applySideEffects(ctx context.Context, action Action) {
	switch action {
	case ActionPreCheck:
		p.ConnectLanes(ctx)
	case ActionStart, ActionResume:
		if p.registry != nil {
			p.registry.UpdatePauseState(false)
		}
	case ActionPause, ActionEnd, ActionFalseStart, ActionFalseRestart:
		if p.registry != nil {
			p.registry.UpdatePauseState(true)
		}
	}
}

// setTransientLocked arms or clears the transient sub-mode, debouncing
// the expiry timer. Caller holds p.mu.
func (p *Panel) setTransientLocked(t Transient) {
	p.cancelTransientLocked()
	p.transient = t
	if t == TransientNone {
		return
	}

	handle := &transientHandle{
		timer:  p.clock.NewTimer(TransientWindow),
		cancel: make(chan struct{}),
	}
	p.transientTimer = handle

	go func() {
		select {
		case <-handle.timer.Chan():
		case <-handle.cancel:
			return
		}
		p.mu.Lock()
		if p.transientTimer != handle {
			p.mu.Unlock()
			return
		}
		p.transient = TransientNone
		p.transientTimer = nil
		p.mu.Unlock()
		log.Debug().Str("transient", string(t)).Msg("transient window expired")
		p.publishButtons()
	}()
}

// cancelTransientLocked stops a pending expiry timer. Caller holds p.mu.
func (p *Panel) cancelTransientLocked() {
	if p.transientTimer == nil {
		return
	}
	if !p.transientTimer.timer.Stop() {
		select {
		case <-p.transientTimer.timer.Chan():
		default:
		}
	}
	close(p.transientTimer.cancel)
	p.transientTimer = nil
	p.transient = TransientNone
}

// HandleRoundEvent applies a round-socket push to the timer engine and,
// for pause-state changes, keeps the FSM aligned with the server.
func (p *Panel) HandleRoundEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.RoundUpdate:
		if e.SessionUpdate {
			if p.registry != nil {
				p.registry.HandleSessionUpdate(e.DriverID, e.DriverStatus, e.TimeSpent)
			}
			return
		}
		if p.registry != nil {
			p.registry.UpdatePauseState(e.IsPaused)
			if e.RemainingSeconds != nil {
				p.registry.UpdateRemainingTime(*e.RemainingSeconds)
			}
		}
		p.reconcilePauseState(e.IsPaused)
	case events.SystemMessage:
		p.showMessage(e.Message, e.Tag)
	case events.EmptyTeamsList:
		if p.display != nil {
			p.display.UpdateEmptyTeams(e.Teams)
		}
	default:
		log.Debug().Str("type", string(ev.Type())).Msg("unhandled round event")
	}
}

// reconcilePauseState moves running<->paused when a server push reports
// a pause-state change that did not originate from this panel.
func (p *Panel) reconcilePauseState(isPaused bool) {
	p.mu.Lock()
	changed := false
	if isPaused && p.state == StateRunning {
		p.state = StatePaused
		p.cancelTransientLocked()
		changed = true
	} else if !isPaused && p.state == StatePaused {
		p.state = StateRunning
		p.cancelTransientLocked()
		changed = true
	}
	p.mu.Unlock()
	if changed {
		log.Info().Bool("is_paused", isPaused).Msg("state reconciled from round push")
		p.publishButtons()
	}
}

// ConnectRound opens the round socket feeding timer and state pushes.
func (p *Panel) ConnectRound() {
	url := fmt.Sprintf("%s/ws/round/%d/", p.wsBase, p.roundID)
	socket := p.open(url, transport.Handlers{
		OnMessage: func(data []byte) {
			ev, err := events.Parse(data)
			if err != nil {
				log.Warn().Err(err).Msg("dropping unparseable round push")
				return
			}
			p.HandleRoundEvent(ev)
		},
	})

	p.mu.Lock()
	p.roundSocket = socket
	p.mu.Unlock()
}

// Close tears the panel down on navigation: sockets closed, timers
// cancelled.
func (p *Panel) Close() {
	p.mu.Lock()
	p.cancelTransientLocked()
	sockets := append([]Socket(nil), p.laneSockets...)
	if p.roundSocket != nil {
		sockets = append(sockets, p.roundSocket)
		p.roundSocket = nil
	}
	if p.emptyTeamsSocket != nil {
		sockets = append(sockets, p.emptyTeamsSocket)
		p.emptyTeamsSocket = nil
	}
	p.laneSockets = nil
	p.lanesConnected = false
	p.mu.Unlock()

	for _, s := range sockets {
		s.Close()
	}
}

func (p *Panel) showMessage(text, tag string) {
	if p.display != nil {
		p.display.ShowMessage(text, tag)
	}
}
