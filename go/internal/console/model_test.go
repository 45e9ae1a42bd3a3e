package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkart/pitwall/go/internal/penalty"
	"github.com/openkart/pitwall/go/internal/racecontrol"
	"github.com/openkart/pitwall/go/internal/timer"
)

func applyMsg(t *testing.T, m Model, msg any) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	next, ok := updated.(Model)
	require.True(t, ok)
	return next
}

func TestTimerFramesRenderInStableOrder(t *testing.T) {
	m := NewModel(&Controller{})
	m = applyMsg(t, m, timerFrameMsg{ID: "total-7", Text: "05:00"})
	m = applyMsg(t, m, timerFrameMsg{ID: "countdown", Text: "59:59"})

	view := m.View()
	countdownAt := strings.Index(view, "countdown")
	totalAt := strings.Index(view, "total-7")
	require.NotEqual(t, -1, countdownAt)
	require.NotEqual(t, -1, totalAt)
	assert.Less(t, countdownAt, totalAt, "timers render sorted by id")
}

func TestHiddenTimerIsNotRendered(t *testing.T) {
	m := NewModel(&Controller{})
	m = applyMsg(t, m, timerFrameMsg{ID: "session-7", Text: "00:10", Flags: timer.Flags{Hidden: true}})

	assert.NotContains(t, m.View(), "session-7")
}

func TestTimerRemovalDropsFrame(t *testing.T) {
	m := NewModel(&Controller{})
	m = applyMsg(t, m, timerFrameMsg{ID: "session-7", Text: "00:10"})
	m = applyMsg(t, m, timerRemovedMsg{ID: "session-7"})

	assert.NotContains(t, m.View(), "session-7")
	assert.Empty(t, m.order)
}

func TestSystemMessageSchedulesExpiry(t *testing.T) {
	m := NewModel(&Controller{})
	updated, cmd := m.Update(systemMsg{Text: "Race started", Tag: "success"})
	m = updated.(Model)
	require.NotNil(t, cmd, "a shown message must schedule its own expiry")
	assert.Contains(t, m.View(), "Race started")

	m = applyMsg(t, m, messageExpiredMsg{Seq: m.seq})
	assert.NotContains(t, m.View(), "Race started")
}

func TestExpiryOnlyRemovesItsOwnMessage(t *testing.T) {
	m := NewModel(&Controller{})
	m = applyMsg(t, m, systemMsg{Text: "first", Tag: "success"})
	firstSeq := m.seq
	m = applyMsg(t, m, systemMsg{Text: "second", Tag: "success"})

	m = applyMsg(t, m, messageExpiredMsg{Seq: firstSeq})
	assert.NotContains(t, m.View(), "first")
	assert.Contains(t, m.View(), "second")
}

func TestDispatchIgnoresHiddenOrDisabledActions(t *testing.T) {
	panel := &racecontrol.Panel{}
	m := NewModel(&Controller{Panel: panel})

	// No buttons published yet: nothing is visible, nothing dispatches.
	assert.Nil(t, m.dispatch(racecontrol.ActionStart))

	m = applyMsg(t, m, buttonsMsg{Buttons: racecontrol.ButtonSet{
		Visible: []racecontrol.Action{racecontrol.ActionStart},
		Enabled: false,
	}})
	assert.Nil(t, m.dispatch(racecontrol.ActionStart), "disabled buttons must not dispatch")

	m = applyMsg(t, m, buttonsMsg{Buttons: racecontrol.ButtonSet{
		Visible: []racecontrol.Action{racecontrol.ActionStart},
		Enabled: true,
	}})
	assert.NotNil(t, m.dispatch(racecontrol.ActionStart))
	assert.Nil(t, m.dispatch(racecontrol.ActionPause), "invisible action must not dispatch")
}

func TestLaneFragmentsRenderAsText(t *testing.T) {
	m := NewModel(&Controller{})
	m = applyMsg(t, m, laneMsg{Lane: 2, HTML: "<tr><td>Kart 14</td><td>boxed</td></tr>"})

	view := m.View()
	assert.Contains(t, view, "Lane 2")
	assert.Contains(t, view, "Kart 14")
	assert.NotContains(t, view, "<td>")
}

func TestQueueCardShowsServingTeamAndFence(t *testing.T) {
	m := NewModel(&Controller{})
	team := int64(5)
	queueID := int64(11)
	m = applyMsg(t, m, queueMsg{View: penalty.View{
		ServingTeam:   &team,
		QueueCount:    2,
		ActiveQueueID: &queueID,
		FenceRaised:   true,
	}})

	view := m.View()
	assert.Contains(t, view, "2 waiting")
	assert.Contains(t, view, "team 5 serving")
	assert.Contains(t, view, "fence raised")
}
