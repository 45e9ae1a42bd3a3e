package timer

import (
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDisplay struct {
	mu      sync.Mutex
	frames  map[string]string
	flags   map[string]Flags
	removed []string
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{frames: make(map[string]string), flags: make(map[string]Flags)}
}

func (d *fakeDisplay) RenderTimer(id, text string, flags Flags) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames[id] = text
	d.flags[id] = flags
}

func (d *fakeDisplay) RemoveTimer(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, id)
}

func (d *fakeDisplay) frame(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames[id]
}

func newTestRegistry(t *testing.T) (*Registry, *fakeDisplay) {
	t.Helper()
	display := newFakeDisplay()
	// A fake clock keeps the shared loop idle so tests drive Tick directly.
	registry := NewRegistry(display, RegistryConfig{Clock: clockwork.NewFakeClock()})
	t.Cleanup(registry.Close)
	return registry, display
}

func TestRegisterRendersInitialFrame(t *testing.T) {
	registry, display := newTestRegistry(t)

	_, err := registry.Register(Config{
		ElementID:      "countdown",
		TimerType:      TypeCountdown,
		StartValue:     3600,
		CountDirection: DirectionDown,
		ShowHours:      true,
		ShowMinutes:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "01:00:00", display.frame("countdown"))
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Register(Config{ElementID: "countdown", TimerType: TypeCountdown})
	require.NoError(t, err)
	_, err = registry.Register(Config{ElementID: "countdown", TimerType: TypeCountdown})
	assert.Error(t, err)
}

func TestSharedTickAppliesOneDeltaToAllTimers(t *testing.T) {
	registry, display := newTestRegistry(t)

	_, err := registry.Register(Config{
		ElementID:      "countdown",
		TimerType:      TypeCountdown,
		StartValue:     10,
		CountDirection: DirectionDown,
	})
	require.NoError(t, err)
	_, err = registry.Register(Config{
		ElementID:      "total-7",
		TimerType:      TypeTotalTime,
		CountDirection: DirectionUp,
		TargetID:       7,
	})
	require.NoError(t, err)

	registry.Tick(2.5)
	assert.Equal(t, "07", display.frame("countdown"))
	assert.Equal(t, "02", display.frame("total-7"))
}

func TestSessionUpdateRoutesByTarget(t *testing.T) {
	registry, _ := newTestRegistry(t)

	session, err := registry.Register(Config{
		ElementID:      "session-7",
		TimerType:      TypeSessionTime,
		CountDirection: DirectionUp,
		TargetID:       7,
		InitialPaused:  true,
	})
	require.NoError(t, err)
	other, err := registry.Register(Config{
		ElementID:      "session-9",
		TimerType:      TypeSessionTime,
		CountDirection: DirectionUp,
		TargetID:       9,
		InitialPaused:  true,
	})
	require.NoError(t, err)

	registry.HandleSessionUpdate(7, StatusStart, 0)
	assert.False(t, session.Hidden())
	assert.True(t, other.Hidden())
}

func TestUpdateRemainingTimeSkipsNonCountdownTimers(t *testing.T) {
	registry, display := newTestRegistry(t)

	_, err := registry.Register(Config{
		ElementID:      "countdown",
		TimerType:      TypeCountdown,
		StartValue:     300,
		CountDirection: DirectionDown,
		ShowMinutes:    true,
	})
	require.NoError(t, err)
	total, err := registry.Register(Config{
		ElementID:      "total-7",
		TimerType:      TypeTotalTime,
		StartValue:     50,
		CountDirection: DirectionDown,
		TargetID:       7,
	})
	require.NoError(t, err)

	registry.UpdateRemainingTime(90)
	assert.Equal(t, "01:30", display.frame("countdown"))
	assert.Equal(t, 50.0, total.Value())
}

func TestUpdatePauseStateTogglesEveryTimer(t *testing.T) {
	registry, _ := newTestRegistry(t)

	countdown, err := registry.Register(Config{
		ElementID:      "countdown",
		TimerType:      TypeCountdown,
		StartValue:     300,
		CountDirection: DirectionDown,
	})
	require.NoError(t, err)

	registry.UpdatePauseState(true)
	registry.Tick(5)
	assert.Equal(t, 300.0, countdown.Value())

	registry.UpdatePauseState(false)
	registry.Tick(5)
	assert.Equal(t, 295.0, countdown.Value())
}

func TestDeregisterRemovesFromDisplay(t *testing.T) {
	registry, display := newTestRegistry(t)

	_, err := registry.Register(Config{ElementID: "session-7", TimerType: TypeSessionTime, TargetID: 7})
	require.NoError(t, err)

	registry.Deregister("session-7")
	assert.Contains(t, display.removed, "session-7")
	assert.Empty(t, registry.ForTarget(7))
}
