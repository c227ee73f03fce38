package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var seen []string
	bus.Subscribe(func(ev Event) {
		seen = append(seen, ev.Type)
	})

	bus.Publish(TypeCapabilityOpened, "c-1", map[string]interface{}{"capabilityId": "notes"})
	bus.Publish(TypeWindowFocused, "c-1", nil)
	bus.Publish(TypeWindowClosed, "c-1", nil)

	assert.Equal(t, []string{TypeCapabilityOpened, TypeWindowFocused, TypeWindowClosed}, seen)
}

func TestPublishRetainsEvents(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bus := NewBus().WithClock(func() time.Time { return now })

	ev := bus.Publish(TypeSpaceSwitched, "c-2", map[string]interface{}{"spaceId": "work"})
	require.NotEmpty(t, ev.ID)
	assert.Equal(t, now, ev.At)

	log := bus.Events()
	require.Len(t, log, 1)
	assert.Equal(t, TypeSpaceSwitched, log[0].Type)
	assert.Equal(t, "c-2", log[0].CorrelationID)
}

func TestSubscribeOnlySeesSubsequentEvents(t *testing.T) {
	bus := NewBus()
	bus.Publish(TypeSessionChanged, "c-3", nil)

	var count int
	bus.Subscribe(func(Event) { count++ })
	bus.Publish(TypeSessionChanged, "c-3", nil)

	assert.Equal(t, 1, count)
	assert.Len(t, bus.Events(), 2)
}

func TestReset(t *testing.T) {
	bus := NewBus()
	var count int
	bus.Subscribe(func(Event) { count++ })
	bus.Publish(TypeStepUpRequired, "c-4", nil)
	require.Equal(t, 1, count)

	bus.Reset()
	bus.Publish(TypeStepUpRequired, "c-5", nil)
	assert.Equal(t, 1, count)
	assert.Len(t, bus.Events(), 1)
}
