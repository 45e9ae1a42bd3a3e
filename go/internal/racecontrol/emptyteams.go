package racecontrol

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openkart/pitwall/go/internal/events"
	"github.com/openkart/pitwall/go/internal/transport"
)

// deleteTeamMessage is the outbound command on the empty-teams socket.
type deleteTeamMessage struct {
	Action string `json:"action"`
	TeamID int64  `json:"team_id"`
}

// ConnectEmptyTeams opens the empty-teams socket. The backend pushes the
// full list on connect and after every change; the panel never infers
// the list locally.
func (p *Panel) ConnectEmptyTeams() {
	url := fmt.Sprintf("%s/ws/empty_teams/", p.wsBase)
	socket := p.open(url, transport.Handlers{
		OnMessage: func(data []byte) {
			ev, err := events.Parse(data)
			if err != nil {
				log.Warn().Err(err).Msg("dropping unparseable empty-teams push")
				return
			}
			switch e := ev.(type) {
			case events.EmptyTeamsList:
				p.display.UpdateEmptyTeams(e.Teams)
			case events.SystemMessage:
				p.showMessage(e.Message, e.Tag)
			default:
				log.Debug().Str("type", string(ev.Type())).Msg("unhandled empty-teams event")
			}
		},
	})

	p.mu.Lock()
	p.emptyTeamsSocket = socket
	p.mu.Unlock()
}

// DeleteEmptyTeam asks the backend to remove one memberless team. The
// updated list arrives as a push; nothing changes locally here.
func (p *Panel) DeleteEmptyTeam(teamID int64) {
	p.mu.Lock()
	socket := p.emptyTeamsSocket
	p.mu.Unlock()
	if socket == nil {
		log.Warn().Int64("team_id", teamID).Msg("empty-teams socket not connected")
		return
	}
	socket.Send(deleteTeamMessage{Action: "delete_single_team", TeamID: teamID})
}
