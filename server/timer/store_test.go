package timer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(clock.Now), clock
}

func TestStartRejectsShortDurations(t *testing.T) {
	store, _ := newTestStore()

	for _, seconds := range []int{-10, 0, 1, 4} {
		t.Run(fmt.Sprintf("%v seconds", seconds), func(t *testing.T) {
			_, err := store.Start("u1", seconds)
			assert.ErrorIs(t, err, ErrInvalidDuration)
		})
	}

	_, err := store.Status("u1")
	assert.ErrorIs(t, err, ErrNotFound, "Rejected starts should not create a record")
}

func TestStartAndStatus(t *testing.T) {
	store, clock := newTestStore()

	for _, seconds := range []int{5, 30, 3600} {
		endsAt, err := store.Start("u1", seconds)
		require.Nil(t, err)
		assert.Equal(t, clock.Now().Add(time.Duration(seconds)*time.Second), endsAt)

		status, err := store.Status("u1")
		require.Nil(t, err)
		assert.True(t, status.Active)
		assert.Equal(t, seconds, status.RemainingSeconds)
	}

	clock.Advance(1500 * time.Millisecond)
	status, err := store.Status("u1")
	require.Nil(t, err)
	assert.Equal(t, 3598, status.RemainingSeconds, "Remaining seconds should be truncated")
}

func TestStatusOfExpiredTimerIsZero(t *testing.T) {
	store, clock := newTestStore()

	_, err := store.Start("u1", 5)
	require.Nil(t, err)
	clock.Advance(10 * time.Second)

	status, err := store.Status("u1")
	require.Nil(t, err)
	assert.True(t, status.Active, "Only the watcher deactivates an expired timer")
	assert.Equal(t, 0, status.RemainingSeconds)
}

func TestStatusUnknownUser(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.Status("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelIsIdempotent(t *testing.T) {
	store, _ := newTestStore()

	store.Cancel("ghost")
	_, err := store.Status("ghost")
	assert.ErrorIs(t, err, ErrNotFound, "Cancel should not create a record")

	_, err = store.Start("u1", 10)
	require.Nil(t, err)

	store.Cancel("u1")
	store.Cancel("u1")

	status, err := store.Status("u1")
	require.Nil(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, 0, status.RemainingSeconds)
}

func TestDrainExpired(t *testing.T) {
	store, clock := newTestStore()

	_, err := store.Start("early", 5)
	require.Nil(t, err)
	_, err = store.Start("late", 60)
	require.Nil(t, err)
	_, err = store.Start("cancelled", 5)
	require.Nil(t, err)
	store.Cancel("cancelled")

	assert.Empty(t, store.DrainExpired(clock.Now()))

	clock.Advance(5 * time.Second)
	assert.ElementsMatch(t, []string{"early"}, store.DrainExpired(clock.Now()),
		"A timer is expired once now reaches its end time")
	assert.Empty(t, store.DrainExpired(clock.Now()), "An expired timer should only be drained once")
	assert.Equal(t, 1, store.ActiveCount())

	clock.Advance(time.Hour)
	assert.ElementsMatch(t, []string{"late"}, store.DrainExpired(clock.Now()))
	assert.Empty(t, store.DrainExpired(clock.Now()))
	assert.Equal(t, 0, store.ActiveCount())
}

func TestRestartAfterExpiryFiresAgain(t *testing.T) {
	store, clock := newTestStore()

	_, err := store.Start("u1", 5)
	require.Nil(t, err)
	clock.Advance(6 * time.Second)
	assert.Equal(t, []string{"u1"}, store.DrainExpired(clock.Now()))

	_, err = store.Start("u1", 5)
	require.Nil(t, err)
	assert.Empty(t, store.DrainExpired(clock.Now()))

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"u1"}, store.DrainExpired(clock.Now()))
}

func TestRestartReplacesPreviousTimer(t *testing.T) {
	store, clock := newTestStore()

	_, err := store.Start("u1", 5)
	require.Nil(t, err)
	_, err = store.Start("u1", 60)
	require.Nil(t, err)

	clock.Advance(10 * time.Second)
	assert.Empty(t, store.DrainExpired(clock.Now()), "The 5 second timer was replaced")
}

func TestCancelBeforeDrainIsAlwaysObserved(t *testing.T) {
	store, clock := newTestStore()

	for i := 0; i < 200; i++ {
		userID := fmt.Sprintf("user-%v", i)
		_, err := store.Start(userID, 5)
		require.Nil(t, err)
	}
	clock.Advance(time.Minute)

	var wg sync.WaitGroup
	cancelled := make(chan string, 200)
	for i := 0; i < 200; i += 2 {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			store.Cancel(userID)
			cancelled <- userID
		}(fmt.Sprintf("user-%v", i))
	}
	wg.Wait()
	close(cancelled)

	drained := store.DrainExpired(clock.Now())
	assert.Len(t, drained, 100)
	for userID := range cancelled {
		assert.NotContains(t, drained, userID)
	}
}

func TestConcurrentDrainsFireAtMostOnce(t *testing.T) {
	store, clock := newTestStore()

	for i := 0; i < 100; i++ {
		_, err := store.Start(fmt.Sprintf("user-%v", i), 5)
		require.Nil(t, err)
	}
	clock.Advance(time.Minute)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]int)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, userID := range store.DrainExpired(clock.Now()) {
				mu.Lock()
				seen[userID]++
				mu.Unlock()
			}
		}()
	}

	// Cancels and status reads racing with the drains must not corrupt the map
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			store.Cancel(userID)
			_, _ = store.Status(userID)
		}(fmt.Sprintf("user-%v", i))
	}
	wg.Wait()

	for userID, count := range seen {
		assert.Equal(t, 1, count, "%v should be drained at most once", userID)
	}
	assert.Equal(t, 0, store.ActiveCount())
}

func TestReset(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.Start("u1", 5)
	require.Nil(t, err)
	store.Reset()

	_, err = store.Status("u1")
	assert.ErrorIs(t, err, ErrNotFound)
}
