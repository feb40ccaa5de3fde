package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusSince(t *testing.T) {
	bus := NewBus(3)
	bus.Publish(Event{Type: TypeItemUpdated, Message: "1"})
	bus.Publish(Event{Type: TypeItemUpdated, Message: "2"})
	bus.Publish(Event{Type: TypeItemUpdated, Message: "3"})

	events := bus.Since(1)
	require.Len(t, events, 2)
	require.Equal(t, int64(2), events[0].Seq)
	require.Equal(t, int64(3), events[1].Seq)
	require.False(t, events[0].Timestamp.IsZero())
	require.Equal(t, int64(3), bus.LastSeq())
}

func TestBusCapsHistory(t *testing.T) {
	bus := NewBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	require.Len(t, events, 2)
	require.Equal(t, "2", events[0].Message)
	require.Equal(t, "3", events[1].Message)
}

func TestBusFansOutToSubscribers(t *testing.T) {
	bus := NewBus(10)
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Publish(Event{Type: "episode_transcription_started", EpisodeID: "ep-1"})
	got := <-ch
	require.Equal(t, "episode_transcription_started", got.Type)
	require.Equal(t, "ep-1", got.EpisodeID)
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()
	require.Equal(t, 0, bus.Subscribers())
	_, open := <-ch
	require.False(t, open)
}

func TestBusDropsSlowSubscriberWithoutBlocking(t *testing.T) {
	bus := NewBus(10)
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(Event{Message: "fits"})
	bus.Publish(Event{Message: "overflows"})

	require.Equal(t, 0, bus.Subscribers())
	first, open := <-ch
	require.True(t, open)
	require.Equal(t, "fits", first.Message)
	_, open = <-ch
	require.False(t, open)
	require.Len(t, bus.Since(0), 2)
}
