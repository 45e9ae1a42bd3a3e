package racecontrol

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openkart/pitwall/go/internal/events"
	"github.com/openkart/pitwall/go/internal/transport"
)

// ConnectLanes opens one resilient socket per pit lane and loads each
// lane's initial fragment. The connected flag makes the whole operation
// idempotent: a second call while lanes are up (or being brought up) is
// a no-op. A failed lane query clears the flag so a later attempt can
// retry.
func (p *Panel) ConnectLanes(ctx context.Context) {
	p.mu.Lock()
	if p.lanesConnected {
		p.mu.Unlock()
		log.Debug().Msg("lane sockets already connected")
		return
	}
	p.lanesConnected = true
	p.mu.Unlock()

	lanes, err := p.api.GetRaceLanes(ctx)
	if err != nil {
		p.mu.Lock()
		p.lanesConnected = false
		p.mu.Unlock()
		p.showMessage(fmt.Sprintf("Failed to load pit lanes: %v", err), "danger")
		log.Error().Err(err).Msg("failed to fetch race lanes")
		return
	}
	if len(lanes) == 0 {
		p.mu.Lock()
		p.lanesConnected = false
		p.mu.Unlock()
		log.Warn().Msg("no lanes returned, skipping lane sockets")
		return
	}

	log.Info().Int("lanes", len(lanes)).Msg("connecting pit lane sockets")
	for _, lane := range lanes {
		p.connectLane(ctx, lane.Lane)
	}
}

// connectLane wires one lane: a push socket for fragment updates plus an
// initial detail fetch so the lane is populated before the first push.
func (p *Panel) connectLane(ctx context.Context, lane int) {
	url := fmt.Sprintf("%s/ws/pitlanes/%d/", p.wsBase, lane)
	socket := p.open(url, transport.Handlers{
		OnMessage: func(data []byte) {
			ev, err := events.Parse(data)
			if err != nil {
				log.Warn().Err(err).Int("lane", lane).Msg("dropping unparseable lane push")
				return
			}
			switch e := ev.(type) {
			case events.LaneUpdate:
				p.display.UpdateLane(lane, e.LaneHTML)
			case events.RCLaneUpdate:
				p.display.UpdateLane(lane, e.LaneHTML)
			default:
				log.Debug().Int("lane", lane).Str("type", string(ev.Type())).Msg("unhandled lane event")
			}
		},
		OnError: func(err error) {
			log.Error().Err(err).Int("lane", lane).Msg("lane socket error")
		},
		OnClose: func(code int) {
			log.Info().Int("lane", lane).Int("code", code).Msg("lane socket closed")
		},
	})

	p.mu.Lock()
	p.laneSockets = append(p.laneSockets, socket)
	p.mu.Unlock()

	html, err := p.api.GetPitLaneDetail(ctx, lane)
	if err != nil {
		log.Error().Err(err).Int("lane", lane).Msg("initial lane detail load failed")
		p.display.UpdateLane(lane, fmt.Sprintf("Error loading Lane %d", lane))
		return
	}
	p.display.UpdateLane(lane, html)
}

// LanesConnected reports whether the lane socket set is up.
func (p *Panel) LanesConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lanesConnected
}
