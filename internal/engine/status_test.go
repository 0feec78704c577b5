package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusStore_GetReturnsInitial(t *testing.T) {
	s := NewStatusStore(Status{Online: true, CacheState: CacheReady})

	st := s.Get()
	assert.True(t, st.Online)
	assert.Equal(t, CacheReady, st.CacheState)
}

func TestStatusStore_DefaultCacheState(t *testing.T) {
	s := NewStatusStore(Status{})
	assert.Equal(t, CacheNone, s.Get().CacheState)
}

func TestStatusStore_UpdatePublishes(t *testing.T) {
	s := NewStatusStore(Status{})
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Update(func(st *Status) { st.PendingCount = 3 })

	got := <-ch
	assert.Equal(t, 3, got.PendingCount)
	assert.Equal(t, 3, s.Get().PendingCount)
}

func TestStatusStore_SlowSubscriberKeepsNewest(t *testing.T) {
	s := NewStatusStore(Status{})
	ch, cancel := s.Subscribe()
	defer cancel()

	// Nobody reading: intermediate snapshots are dropped, not queued.
	s.Update(func(st *Status) { st.PendingCount = 1 })
	s.Update(func(st *Status) { st.PendingCount = 2 })
	s.Update(func(st *Status) { st.PendingCount = 3 })

	got := <-ch
	assert.Equal(t, 3, got.PendingCount, "subscriber sees the newest snapshot")
}

func TestStatusStore_CancelStopsDelivery(t *testing.T) {
	s := NewStatusStore(Status{})
	ch, cancel := s.Subscribe()
	cancel()

	s.Update(func(st *Status) { st.PendingCount = 1 })

	select {
	case got := <-ch:
		require.Fail(t, "unexpected delivery after cancel", "got %+v", got)
	default:
	}
}
