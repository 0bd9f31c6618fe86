package fake

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestClockAdvance(t *testing.T) {
	is := is.New(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(start)

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	stopped := c.AfterFunc(time.Second, func() { fired = append(fired, "x") })
	is.Equal(c.Pending(), 3)

	is.True(stopped.Stop())
	is.True(!stopped.Stop()) // second stop is a no-op

	c.Advance(1500 * time.Millisecond)
	is.Equal(fired, []string{"a"})
	is.Equal(c.Now(), start.Add(1500*time.Millisecond))

	c.Advance(time.Second)
	is.Equal(fired, []string{"a", "b"})
	is.Equal(c.Pending(), 0)
}

func TestClockCallbackSchedulesTimer(t *testing.T) {
	is := is.New(t)
	c := NewClock(time.Unix(0, 0))

	var fired int
	c.AfterFunc(time.Second, func() {
		fired++
		c.AfterFunc(time.Second, func() { fired++ })
	})

	c.Advance(3 * time.Second)
	is.Equal(fired, 2) // nested timer became due within the same advance
}

func TestStopAfterFire(t *testing.T) {
	is := is.New(t)
	c := NewClock(time.Unix(0, 0))
	tm := c.AfterFunc(time.Millisecond, func() {})
	c.Advance(time.Millisecond)
	is.True(!tm.Stop())
}
