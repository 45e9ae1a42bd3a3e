package raceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/openkart/pitwall/go/clients"
)

// Client talks to the race timing backend's HTTP surface. Every POST
// carries the CSRF token and the XMLHttpRequest marker the backend
// requires for its AJAX views.
type Client struct {
	*clients.BaseClient
}

// New creates a backend client rooted at baseURL authenticating with
// csrfToken.
func New(baseURL, csrfToken string) *Client {
	client := &Client{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(CSRFTokenHeader, csrfToken)
	client.SetHeader(RequestedWithHeader, RequestedWithValue)
	client.SetHeader(ContentTypeHeader, ContentTypeJSONValue)

	return client
}

// PostAction performs one race-control action POST. A non-2xx response
// surfaces as *clients.StatusError; a 2xx body that is not valid JSON
// surfaces as a wrapped json error so the caller can treat it as a
// non-fatal warning.
func (c *Client) PostAction(ctx context.Context, actionEndpoint string) (*ActionResponse, error) {
	body, err := c.Post(ctx, actionEndpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp ActionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse action response: %w", err)
	}
	return &resp, nil
}

// GetRaceLanes returns the pit lanes configured for the current round.
func (c *Client) GetRaceLanes(ctx context.Context) ([]Lane, error) {
	body, err := c.Get(ctx, RaceLanesEndpoint)
	if err != nil {
		return nil, err
	}
	var resp raceLanesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse race lanes response: %w", err)
	}
	return resp.Lanes, nil
}

// GetPitLaneDetail fetches the rendered fragment for one pit lane.
func (c *Client) GetPitLaneDetail(ctx context.Context, lane int) (string, error) {
	body, err := c.Get(ctx, fmt.Sprintf(PitLaneDetailEndpoint, lane))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetStopGoPenalties returns the championship's stop-and-go penalty
// catalogue for the round.
func (c *Client) GetStopGoPenalties(ctx context.Context, roundID int64) ([]StopGoPenalty, error) {
	body, err := c.Get(ctx, fmt.Sprintf(StopGoPenaltiesEndpoint, roundID))
	if err != nil {
		return nil, err
	}
	var resp stopGoPenaltiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse stop-go penalties response: %w", err)
	}
	return resp.Penalties, nil
}

// GetPenaltyQueueStatus returns the server-side penalty queue snapshot.
func (c *Client) GetPenaltyQueueStatus(ctx context.Context, roundID int64) (*QueueStatus, error) {
	body, err := c.Get(ctx, fmt.Sprintf(PenaltyQueueStatusEndpoint, roundID))
	if err != nil {
		return nil, err
	}
	var status QueueStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse penalty queue status: %w", err)
	}
	return &status, nil
}

// QueuePenalty enqueues a stop-and-go penalty for a team.
func (c *Client) QueuePenalty(ctx context.Context, req QueuePenaltyRequest) (*QueueOpResponse, error) {
	return c.postQueueOp(ctx, QueuePenaltyEndpoint, req)
}

// ServePenalty marks the addressed queue entry as served.
func (c *Client) ServePenalty(ctx context.Context, queueID int64) (*QueueOpResponse, error) {
	return c.postQueueOp(ctx, ServePenaltyEndpoint, QueueOpRequest{QueueID: queueID})
}

// CancelPenalty removes the addressed queue entry.
func (c *Client) CancelPenalty(ctx context.Context, queueID int64) (*QueueOpResponse, error) {
	return c.postQueueOp(ctx, CancelPenaltyEndpoint, QueueOpRequest{QueueID: queueID})
}

// DelayPenalty moves the addressed queue entry to the end of the queue.
func (c *Client) DelayPenalty(ctx context.Context, queueID int64) (*QueueOpResponse, error) {
	return c.postQueueOp(ctx, DelayPenaltyEndpoint, QueueOpRequest{QueueID: queueID})
}

func (c *Client) postQueueOp(ctx context.Context, endpoint string, req any) (*QueueOpResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	body, err := c.Post(ctx, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	var resp QueueOpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse queue op response: %w", err)
	}
	return &resp, nil
}
