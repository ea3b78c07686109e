package main

import "time"

// clock measures frame time. Long stalls are clamped so a paused window does not
// integrate one huge step.
type clock struct {
	start time.Time
	last  time.Time
}

const maxFrameTime = 100 * time.Millisecond

func newClock() *clock {
	now := time.Now()
	return &clock{start: now, last: now}
}

func (c *clock) tick() (dt, elapsed float32) {
	now := time.Now()
	d := now.Sub(c.last)
	c.last = now
	if d > maxFrameTime {
		d = maxFrameTime
	}
	return float32(d.Seconds()), float32(now.Sub(c.start).Seconds())
}
