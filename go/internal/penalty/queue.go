package penalty

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/openkart/pitwall/go/clients/raceapi"
	"github.com/openkart/pitwall/go/internal/events"
	"github.com/openkart/pitwall/go/internal/transport"
)

// View mirrors the server-side penalty queue. It is mutated only by push
// updates and explicit reloads, never inferred locally.
type View struct {
	ServingTeam     *int64
	QueueCount      int
	ActiveQueueID   *int64
	ActivePenaltyID *int64
	FenceRaised     bool
}

// HasActive reports whether a queue entry is currently actionable.
func (v View) HasActive() bool {
	return v.ActiveQueueID != nil
}

// Display renders the penalty queue card.
type Display interface {
	UpdatePenaltyQueue(view View)
	ShowMessage(text, tag string)
}

// Socket is the transport surface the client needs, narrowed for tests.
type Socket interface {
	Send(v any)
	Close()
	State() transport.State
}

// SocketOpener opens a resilient socket. Production wires transport.Open.
type SocketOpener func(url string, handlers transport.Handlers) Socket

// Config wires a queue client to its collaborators.
type Config struct {
	API        *raceapi.Client
	Display    Display
	Signer     *Signer
	RoundID    int64
	WSBaseURL  string
	Clock      clockwork.Clock
	OpenSocket SocketOpener
}

// Client mirrors the stop-and-go penalty queue and exposes the act-on-
// queue operations. The POST responses only accept or reject a request;
// every visible state change is driven by the subsequent push update.
type Client struct {
	api     *raceapi.Client
	display Display
	signer  *Signer
	clock   clockwork.Clock
	open    SocketOpener
	roundID int64
	wsBase  string

	mu        sync.Mutex
	view      View
	catalogue []raceapi.StopGoPenalty
	socket    Socket
}

// NewClient builds a penalty queue client.
func NewClient(cfg Config) *Client {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.OpenSocket == nil {
		cfg.OpenSocket = func(url string, handlers transport.Handlers) Socket {
			return transport.Open(url, handlers)
		}
	}
	if cfg.Signer == nil {
		cfg.Signer = NewSigner("")
	}
	return &Client{
		api:     cfg.API,
		display: cfg.Display,
		signer:  cfg.Signer,
		clock:   cfg.Clock,
		open:    cfg.OpenSocket,
		roundID: cfg.RoundID,
		wsBase:  cfg.WSBaseURL,
	}
}

// View returns a copy of the current queue mirror.
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Catalogue returns the stop-and-go penalty catalogue for the round.
func (c *Client) Catalogue() []raceapi.StopGoPenalty {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]raceapi.StopGoPenalty(nil), c.catalogue...)
}

// Connect opens the station socket and performs the initial status load.
func (c *Client) Connect(ctx context.Context) {
	url := fmt.Sprintf("%s/ws/stopandgo/", c.wsBase)
	socket := c.open(url, transport.Handlers{
		OnMessage: func(data []byte) {
			ev, err := events.Parse(data)
			if err != nil {
				log.Warn().Err(err).Msg("dropping unparseable station push")
				return
			}
			c.HandlePush(ev)
		},
		OnOpen: func() {
			c.sendSigned(map[string]any{"type": "status_request"})
		},
	})

	c.mu.Lock()
	c.socket = socket
	c.mu.Unlock()

	if err := c.Reload(ctx); err != nil {
		c.showMessage(fmt.Sprintf("Failed to load penalty queue: %v", err), "danger")
	}
}

// Reload replaces the mirror from the backend's snapshot endpoints.
func (c *Client) Reload(ctx context.Context) error {
	status, err := c.api.GetPenaltyQueueStatus(ctx, c.roundID)
	if err != nil {
		return fmt.Errorf("failed to fetch queue status: %w", err)
	}
	catalogue, err := c.api.GetStopGoPenalties(ctx, c.roundID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch penalty catalogue")
	}

	c.mu.Lock()
	c.view.ServingTeam = status.ServingTeam
	c.view.QueueCount = status.QueueCount
	if status.ActivePenalty != nil {
		c.view.ActiveQueueID = &status.ActivePenalty.QueueID
		c.view.ActivePenaltyID = &status.ActivePenalty.PenaltyID
	} else {
		c.view.ActiveQueueID = nil
		c.view.ActivePenaltyID = nil
	}
	if catalogue != nil {
		c.catalogue = catalogue
	}
	view := c.view
	c.mu.Unlock()

	c.render(view)
	return nil
}

// HandlePush applies one station push. Queue updates replace the view
// wholesale: server state always wins.
func (c *Client) HandlePush(ev events.Event) {
	switch e := ev.(type) {
	case events.PenaltyQueueUpdate:
		c.mu.Lock()
		c.view.ServingTeam = e.ServingTeam
		c.view.QueueCount = e.QueueCount
		if e.ActivePenalty != nil {
			c.view.ActiveQueueID = &e.ActivePenalty.QueueID
			c.view.ActivePenaltyID = &e.ActivePenalty.PenaltyID
		} else {
			c.view.ActiveQueueID = nil
			c.view.ActivePenaltyID = nil
		}
		view := c.view
		c.mu.Unlock()
		c.render(view)
	case events.PenaltyServed:
		c.showMessage(fmt.Sprintf("Team %d served its penalty.", e.Team), "success")
	case events.PenaltyCompleted:
		c.showMessage("Penalty completed.", "success")
	case events.FenceStatus:
		c.mu.Lock()
		c.view.FenceRaised = e.Raised
		view := c.view
		c.mu.Unlock()
		c.render(view)
	default:
		log.Debug().Str("type", string(ev.Type())).Msg("unhandled station event")
	}
}

// Queue enqueues a catalogue penalty for a team.
func (c *Client) Queue(ctx context.Context, teamID, penaltyID int64) {
	resp, err := c.api.QueuePenalty(ctx, raceapi.QueuePenaltyRequest{
		RoundID:   c.roundID,
		TeamID:    teamID,
		PenaltyID: penaltyID,
	})
	c.settleOp("queue", resp, err)
}

// Serve marks the active queue entry as served.
func (c *Client) Serve(ctx context.Context) {
	queueID, ok := c.activeQueueID()
	if !ok {
		c.showMessage("No active penalty to serve.", "warning")
		return
	}
	resp, err := c.api.ServePenalty(ctx, queueID)
	c.settleOp("serve", resp, err)
}

// Cancel removes the active queue entry.
func (c *Client) Cancel(ctx context.Context) {
	queueID, ok := c.activeQueueID()
	if !ok {
		c.showMessage("No active penalty to cancel.", "warning")
		return
	}
	resp, err := c.api.CancelPenalty(ctx, queueID)
	c.settleOp("cancel", resp, err)
}

// Delay moves the active queue entry to the end of the queue.
func (c *Client) Delay(ctx context.Context) {
	queueID, ok := c.activeQueueID()
	if !ok {
		c.showMessage("No active penalty to delay.", "warning")
		return
	}
	resp, err := c.api.DelayPenalty(ctx, queueID)
	c.settleOp("delay", resp, err)
}

// SetFence sends a signed fence control message to the station.
func (c *Client) SetFence(raised bool) {
	c.sendSigned(map[string]any{"type": "fence_control", "raised": raised})
}

// settleOp reports the accept/reject outcome of a queue operation. The
// view itself is only updated by the push that follows a success.
func (c *Client) settleOp(op string, resp *raceapi.QueueOpResponse, err error) {
	if err != nil {
		c.showMessage(fmt.Sprintf("Penalty %s failed: %v", op, err), "danger")
		log.Error().Err(err).Str("op", op).Msg("penalty queue op failed")
		return
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("Penalty %s rejected by backend.", op)
		}
		c.showMessage(msg, "warning")
		return
	}
	if resp.Message != "" {
		c.showMessage(resp.Message, "success")
	}
}

// sendSigned signs and sends one station control message; the message is
// only sent once signing has completed.
func (c *Client) sendSigned(msg map[string]any) {
	c.mu.Lock()
	socket := c.socket
	c.mu.Unlock()
	if socket == nil {
		log.Warn().Msg("station socket not connected, dropping message")
		return
	}

	payload, err := c.signer.SignedPayload(msg, c.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to sign station message")
		return
	}
	socket.Send(payload)
}

func (c *Client) activeQueueID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view.ActiveQueueID == nil {
		return 0, false
	}
	return *c.view.ActiveQueueID, true
}

// Close tears down the station socket.
func (c *Client) Close() {
	c.mu.Lock()
	socket := c.socket
	c.socket = nil
	c.mu.Unlock()
	if socket != nil {
		socket.Close()
	}
}

func (c *Client) render(view View) {
	if c.display != nil {
		c.display.UpdatePenaltyQueue(view)
	}
}

func (c *Client) showMessage(text, tag string) {
	if c.display != nil {
		c.display.ShowMessage(text, tag)
	}
}
