// Package ratelimit paces calls to external services with an adaptive
// cooldown: a floor interval between calls that doubles on every rate-limit
// signal (up to a ceiling) and halves back toward the floor after a run of
// consecutive successes.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"castsync/internal/services"
)

// Settings configures a Cooldown.
type Settings struct {
	Floor        time.Duration
	Ceiling      time.Duration
	RecoverAfter int
}

// Cooldown is safe for concurrent use.
type Cooldown struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	floor        time.Duration
	ceiling      time.Duration
	recoverAfter int
	interval     time.Duration
	successes    int
}

// New builds a Cooldown starting at the floor interval.
func New(s Settings) *Cooldown {
	if s.Floor <= 0 {
		s.Floor = time.Millisecond
	}
	if s.Ceiling < s.Floor {
		s.Ceiling = s.Floor
	}
	if s.RecoverAfter <= 0 {
		s.RecoverAfter = 1
	}
	return &Cooldown{
		limiter:      rate.NewLimiter(rate.Every(s.Floor), 1),
		floor:        s.Floor,
		ceiling:      s.Ceiling,
		recoverAfter: s.RecoverAfter,
		interval:     s.Floor,
	}
}

// Wait blocks until the next call may proceed or ctx is done. A nil Cooldown
// never blocks.
func (c *Cooldown) Wait(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Interval reports the current spacing between calls.
func (c *Cooldown) Interval() time.Duration {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// OnRateLimited doubles the interval, capped at the ceiling.
func (c *Cooldown) OnRateLimited() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successes = 0
	next := c.interval * 2
	if next > c.ceiling {
		next = c.ceiling
	}
	c.setInterval(next)
}

// OnSuccess counts a successful call; after RecoverAfter in a row the
// interval is halved, never below the floor.
func (c *Cooldown) OnSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interval == c.floor {
		c.successes = 0
		return
	}
	c.successes++
	if c.successes < c.recoverAfter {
		return
	}
	c.successes = 0
	next := c.interval / 2
	if next < c.floor {
		next = c.floor
	}
	c.setInterval(next)
}

// Observe feeds the outcome of one call back into the cooldown. Errors other
// than rate limits leave the pacing unchanged.
func (c *Cooldown) Observe(err error) {
	switch {
	case err == nil:
		c.OnSuccess()
	case errors.Is(err, services.ErrRateLimited):
		c.OnRateLimited()
	}
}

func (c *Cooldown) setInterval(d time.Duration) {
	if d == c.interval {
		return
	}
	c.interval = d
	c.limiter.SetLimit(rate.Every(d))
}
