package store

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing UTC timestamps at millisecond
// precision, the finest precision every supported database keeps. Records
// created in quick succession therefore sort in creation order.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock creates a Clock over time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Stamp returns the next timestamp.
func (c *Clock) Stamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
