package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventscout/common/logging"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGetSetExpiry(t *testing.T) {
	clk := newClock()
	c := New[string](300*time.Second, WithClock[string](clk.Now))

	c.Set("a", "short", 50*time.Second)
	c.Set("b", "default", 0)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "short", v)

	clk.Advance(49 * time.Second)
	_, ok = c.Get("a")
	require.True(t, ok)

	clk.Advance(time.Second)
	_, ok = c.Get("a")
	require.False(t, ok, "expired exactly at ttl")

	v, ok = c.Get("b")
	require.True(t, ok)
	require.Equal(t, "default", v)

	clk.Advance(250 * time.Second)
	_, ok = c.Get("b")
	require.False(t, ok)
}

func TestKeysAreDistinct(t *testing.T) {
	c := New[int](time.Minute)
	c.Set(Key("event", "x"), 1, 0)
	c.Set(Key("event", "y"), 2, 0)

	x, _ := c.Get(Key("event", "x"))
	y, _ := c.Get(Key("event", "y"))
	require.Equal(t, 1, x)
	require.Equal(t, 2, y)
	require.Equal(t, "event:x", Key("event", "x"))
}

func TestDeleteAndPurge(t *testing.T) {
	clk := newClock()
	c := New[int](time.Minute, WithClock[int](clk.Now))
	c.Set("keep", 1, time.Hour)
	c.Set("drop", 2, time.Second)
	c.Set("gone", 3, time.Hour)
	c.Delete("gone")

	clk.Advance(2 * time.Second)
	require.Equal(t, 2, c.Len())
	require.Equal(t, 1, c.Purge())
	require.Equal(t, 1, c.Len())
	_, ok := c.Get("keep")
	require.True(t, ok)
}

func TestSweeper(t *testing.T) {
	clk := newClock()
	c := New[int](time.Minute, WithClock[int](clk.Now))
	c.Set("old", 1, time.Millisecond)
	clk.Advance(time.Second)

	s, err := StartSweeper(c, "@every 1s", logging.Discard())
	require.NoError(t, err)
	defer s.Stop()

	require.Eventually(t, func() bool { return c.Len() == 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestSweeperBadSchedule(t *testing.T) {
	_, err := StartSweeper(New[int](time.Minute), "whenever", logging.Discard())
	require.ErrorContains(t, err, "whenever")
}
