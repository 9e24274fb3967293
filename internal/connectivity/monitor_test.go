package connectivity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/pocketbook/internal/connectivity"
)

func TestMonitor_InitialState(t *testing.T) {
	assert.True(t, connectivity.NewMonitor(true).Online())
	assert.False(t, connectivity.NewMonitor(false).Online())
}

func TestMonitor_NotifiesOnTransitionOnly(t *testing.T) {
	m := connectivity.NewMonitor(true)

	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })

	m.SetOnline(true) // unchanged, no notification
	m.SetOnline(false)
	m.SetOnline(false) // unchanged again
	m.SetOnline(true)

	assert.Equal(t, []bool{false, true}, got)
	assert.True(t, m.Online())
}

func TestMonitor_MultipleSubscribers(t *testing.T) {
	m := connectivity.NewMonitor(false)

	first, second := 0, 0
	m.Subscribe(func(bool) { first++ })
	m.Subscribe(func(bool) { second++ })

	m.SetOnline(true)
	m.SetOnline(false)

	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second)
}

func TestMonitor_CancelStopsNotifications(t *testing.T) {
	m := connectivity.NewMonitor(false)

	calls := 0
	cancel := m.Subscribe(func(bool) { calls++ })

	m.SetOnline(true)
	cancel()
	cancel() // idempotent
	m.SetOnline(false)

	assert.Equal(t, 1, calls)
}

func TestMonitor_SubscriberMayFlipStateAgain(t *testing.T) {
	m := connectivity.NewMonitor(false)

	var got []bool
	m.Subscribe(func(online bool) {
		got = append(got, online)
		if online {
			// Re-entrant flip must not deadlock.
			m.SetOnline(false)
		}
	})

	m.SetOnline(true)

	assert.Equal(t, []bool{true, false}, got)
	assert.False(t, m.Online())
}
