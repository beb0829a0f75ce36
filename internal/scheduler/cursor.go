package scheduler

import "cloud.google.com/go/civil"

// Cursor is the crawl position: the next day to mine. It is owned by the caller and
// mutated only by Scheduler.Step.
type Cursor struct {
	Date civil.Date

	// failed index fetches for Date
	attempts int
}

// NewCursor starts a crawl at day.
func NewCursor(day civil.Date) *Cursor {
	return &Cursor{Date: day}
}

// Attempts reports how many index fetches for the current day have failed.
func (c *Cursor) Attempts() int { return c.attempts }

func (c *Cursor) advance() {
	c.Date = c.Date.AddDays(1)
	c.attempts = 0
}
