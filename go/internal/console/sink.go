package console

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/openkart/pitwall/go/internal/events"
	"github.com/openkart/pitwall/go/internal/penalty"
	"github.com/openkart/pitwall/go/internal/racecontrol"
	"github.com/openkart/pitwall/go/internal/timer"
)

// Messages forwarded into the bubbletea program. The runtime packages
// call the Sink from socket and scheduler goroutines; Program.Send is
// the only crossing point into the UI loop.

type timerFrameMsg struct {
	ID    string
	Text  string
	Flags timer.Flags
}

type timerRemovedMsg struct {
	ID string
}

type buttonsMsg struct {
	Buttons racecontrol.ButtonSet
}

type laneMsg struct {
	Lane int
	HTML string
}

type emptyTeamsMsg struct {
	Teams []events.EmptyTeam
}

type queueMsg struct {
	View penalty.View
}

type systemMsg struct {
	Text string
	Tag  string
}

type messageExpiredMsg struct {
	Seq int
}

type actionDispatchedMsg struct{}

// Sink adapts the runtime display interfaces onto a tea.Program. It
// satisfies timer.Display, racecontrol.Display, and penalty.Display.
type Sink struct {
	program *tea.Program
}

// NewSink wraps program as the runtime's render surface.
func NewSink(program *tea.Program) *Sink {
	return &Sink{program: program}
}

func (s *Sink) RenderTimer(id string, text string, flags timer.Flags) {
	s.program.Send(timerFrameMsg{ID: id, Text: text, Flags: flags})
}

func (s *Sink) RemoveTimer(id string) {
	s.program.Send(timerRemovedMsg{ID: id})
}

func (s *Sink) ShowMessage(text, tag string) {
	s.program.Send(systemMsg{Text: text, Tag: tag})
}

func (s *Sink) UpdateButtons(buttons racecontrol.ButtonSet) {
	s.program.Send(buttonsMsg{Buttons: buttons})
}

func (s *Sink) UpdateLane(lane int, html string) {
	s.program.Send(laneMsg{Lane: lane, HTML: html})
}

func (s *Sink) UpdateEmptyTeams(teams []events.EmptyTeam) {
	s.program.Send(emptyTeamsMsg{Teams: teams})
}

func (s *Sink) UpdatePenaltyQueue(view penalty.View) {
	s.program.Send(queueMsg{View: view})
}
