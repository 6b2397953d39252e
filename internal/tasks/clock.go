package tasks

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so progress simulation and polling can run on virtual time in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock returns a [Clock] backed by the wall clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FakeClock is a virtual clock: Sleep advances time instantly.
//
// OnSleep, when set, runs after every advance and lets callers interleave actions (such as a reset)
// at a precise point of a conversion.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  int
	OnSleep func(n int, now time.Time)
}

// NewFakeClock creates a virtual clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	n, now, hook := c.sleeps, c.now, c.OnSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n, now)
	}
	return ctx.Err()
}

// Advance moves virtual time forward without counting as a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleeps reports how many times Sleep was called.
func (c *FakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}
