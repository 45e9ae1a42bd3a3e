package console

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openkart/pitwall/go/internal/events"
	"github.com/openkart/pitwall/go/internal/penalty"
	"github.com/openkart/pitwall/go/internal/racecontrol"
	"github.com/openkart/pitwall/go/internal/timer"
)

const messageLifetime = 7 * time.Second

// Color Guide
// 15   White
// 12   Blue
// 9    Red
// 8    Gray
// 3    Yellow
// 10   Green

var (
	titleStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("3")).
			Padding(0, 1).
			Foreground(lipgloss.Color("3")).
			SetString("Pit Wall")

	countdownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Bold(true)

	endedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))

	overStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	inactiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	dangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	layoutStyle = lipgloss.NewStyle().
			Margin(1, 2)
)

// Controller exposes the runtime operations the keyboard drives. Fields
// are bound after the program is constructed, before it runs.
type Controller struct {
	Panel     *racecontrol.Panel
	Penalties *penalty.Client
}

type timerFrame struct {
	text  string
	flags timer.Flags
}

type message struct {
	seq  int
	text string
	tag  string
}

// Model is the bubbletea model for the operator console.
type Model struct {
	ctrl *Controller

	timers  map[string]timerFrame
	order   []string
	buttons racecontrol.ButtonSet
	lanes   map[int]string
	teams   []events.EmptyTeam
	queue   penalty.View

	messages []message
	seq      int
}

// NewModel creates an empty console model bound to ctrl.
func NewModel(ctrl *Controller) Model {
	return Model{
		ctrl:   ctrl,
		timers: make(map[string]timerFrame),
		lanes:  make(map[int]string),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case timerFrameMsg:
		if _, seen := m.timers[msg.ID]; !seen {
			m.order = append(m.order, msg.ID)
			sort.Strings(m.order)
		}
		m.timers[msg.ID] = timerFrame{text: msg.Text, flags: msg.Flags}
		return m, nil

	case timerRemovedMsg:
		delete(m.timers, msg.ID)
		for i, id := range m.order {
			if id == msg.ID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
		return m, nil

	case buttonsMsg:
		m.buttons = msg.Buttons
		return m, nil

	case laneMsg:
		m.lanes[msg.Lane] = msg.HTML
		return m, nil

	case emptyTeamsMsg:
		m.teams = msg.Teams
		return m, nil

	case queueMsg:
		m.queue = msg.View
		return m, nil

	case systemMsg:
		m.seq++
		entry := message{seq: m.seq, text: msg.Text, tag: msg.Tag}
		m.messages = append([]message{entry}, m.messages...)
		seq := m.seq
		return m, tea.Tick(messageLifetime, func(time.Time) tea.Msg {
			return messageExpiredMsg{Seq: seq}
		})

	case messageExpiredMsg:
		for i, entry := range m.messages {
			if entry.seq == msg.Seq {
				m.messages = append(m.messages[:i], m.messages[i+1:]...)
				break
			}
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "c":
		return m, m.dispatch(racecontrol.ActionPreCheck)
	case "s":
		return m, m.dispatch(racecontrol.ActionStart)
	case "p":
		return m, m.dispatch(racecontrol.ActionPause)
	case "r":
		return m, m.dispatch(racecontrol.ActionResume)
	case "e":
		return m, m.dispatch(racecontrol.ActionEnd)
	case "f":
		if m.visible(racecontrol.ActionFalseStart) {
			return m, m.dispatch(racecontrol.ActionFalseStart)
		}
		return m, m.dispatch(racecontrol.ActionFalseRestart)
	case "v":
		return m, m.penaltyCmd(func(ctx context.Context, c *penalty.Client) { c.Serve(ctx) })
	case "x":
		return m, m.penaltyCmd(func(ctx context.Context, c *penalty.Client) { c.Cancel(ctx) })
	case "d":
		return m, m.penaltyCmd(func(ctx context.Context, c *penalty.Client) { c.Delay(ctx) })
	case "g":
		if m.ctrl.Penalties != nil {
			raised := m.queue.FenceRaised
			return m, func() tea.Msg {
				m.ctrl.Penalties.SetFence(!raised)
				return actionDispatchedMsg{}
			}
		}
	}
	return m, nil
}

// dispatch runs a race action off the UI loop. Buttons not currently
// visible or enabled are ignored, matching the rendered panel.
func (m Model) dispatch(action racecontrol.Action) tea.Cmd {
	if m.ctrl.Panel == nil || !m.buttons.Enabled || !m.visible(action) {
		return nil
	}
	panel := m.ctrl.Panel
	return func() tea.Msg {
		panel.PerformAction(context.Background(), action)
		return actionDispatchedMsg{}
	}
}

func (m Model) penaltyCmd(op func(context.Context, *penalty.Client)) tea.Cmd {
	if m.ctrl.Penalties == nil {
		return nil
	}
	client := m.ctrl.Penalties
	return func() tea.Msg {
		op(context.Background(), client)
		return actionDispatchedMsg{}
	}
}

func (m Model) visible(action racecontrol.Action) bool {
	for _, a := range m.buttons.Visible {
		if a == action {
			return true
		}
	}
	return false
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render())
	b.WriteString("\n\n")
	b.WriteString(m.renderTimers())
	b.WriteString("\n")
	b.WriteString(m.renderButtons())
	b.WriteString("\n\n")
	if len(m.lanes) > 0 {
		b.WriteString(m.renderLanes())
		b.WriteString("\n\n")
	}
	b.WriteString(m.renderQueue())
	if len(m.teams) > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.renderEmptyTeams())
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderMessages())
	b.WriteString("\nPress q to quit.")

	return layoutStyle.Render(b.String())
}

func (m Model) renderTimers() string {
	var b strings.Builder
	for _, id := range m.order {
		frame := m.timers[id]
		if frame.flags.Hidden {
			continue
		}
		b.WriteString(fmt.Sprintf("%-24s %s\n", id, styleFor(frame.flags).Render(frame.text)))
	}
	if b.Len() == 0 {
		return inactiveStyle.Render("no timers registered")
	}
	return strings.TrimRight(b.String(), "\n")
}

func styleFor(flags timer.Flags) lipgloss.Style {
	switch {
	case flags.Ended:
		return endedStyle
	case flags.Over:
		return overStyle
	case flags.Frozen, flags.Paused:
		return pausedStyle
	case flags.Active:
		return activeStyle
	}
	return countdownStyle
}

func (m Model) renderButtons() string {
	if len(m.buttons.Visible) == 0 {
		return inactiveStyle.Render("race ended")
	}
	labels := make([]string, 0, len(m.buttons.Visible))
	for _, a := range m.buttons.Visible {
		labels = append(labels, string(a))
	}
	line := strings.Join(labels, "  ")
	if !m.buttons.Enabled {
		return inactiveStyle.Render(line + "  (busy)")
	}
	return line
}

func (m Model) renderLanes() string {
	numbers := make([]int, 0, len(m.lanes))
	for lane := range m.lanes {
		numbers = append(numbers, lane)
	}
	sort.Ints(numbers)

	var b strings.Builder
	b.WriteString("Pit lanes\n")
	for _, lane := range numbers {
		b.WriteString(fmt.Sprintf("  Lane %d: %s\n", lane, stripMarkup(m.lanes[lane])))
	}
	return strings.TrimRight(b.String(), "\n")
}

// stripMarkup flattens a pushed lane fragment to its text content. The
// backend sends rendered table rows; only the text is meaningful here.
func stripMarkup(fragment string) string {
	var b strings.Builder
	inTag := false
	for _, r := range fragment {
		switch {
		case r == '<':
			inTag = true
			if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func (m Model) renderQueue() string {
	var b strings.Builder
	b.WriteString("Stop & Go queue: ")
	b.WriteString(fmt.Sprintf("%d waiting", m.queue.QueueCount))
	if m.queue.ServingTeam != nil {
		b.WriteString(fmt.Sprintf(", team %d serving", *m.queue.ServingTeam))
	}
	if m.queue.FenceRaised {
		b.WriteString("  ")
		b.WriteString(warningStyle.Render("[fence raised]"))
	}
	if !m.queue.HasActive() {
		b.WriteString("\n")
		b.WriteString(inactiveStyle.Render("serve/cancel/delay unavailable"))
	}
	return b.String()
}

func (m Model) renderEmptyTeams() string {
	var b strings.Builder
	b.WriteString("Empty teams\n")
	for _, t := range m.teams {
		b.WriteString(fmt.Sprintf("  %s (#%d) - %s\n", t.TeamName, t.Number, t.ChampionshipName))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, entry := range m.messages {
		style := successStyle
		switch entry.tag {
		case "danger":
			style = dangerStyle
		case "warning":
			style = warningStyle
		}
		b.WriteString(style.Render(entry.text))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
