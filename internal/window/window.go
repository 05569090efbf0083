// Package window computes the lower time bound used to select new stories.
package window

import "time"

// DefaultSkew tolerates indexing lag between publication and searchability.
const DefaultSkew = 5 * time.Hour

// Clock yields the search window lower bound for the current invocation.
type Clock struct {
	now  func() time.Time
	skew time.Duration
}

// New creates a Clock. A nil now uses time.Now; a non-positive skew uses DefaultSkew.
func New(now func() time.Time, skew time.Duration) *Clock {
	if now == nil {
		now = time.Now
	}
	if skew <= 0 {
		skew = DefaultSkew
	}
	return &Clock{now: now, skew: skew}
}

// LowerBound returns the current Unix time in seconds minus the skew allowance.
func (c *Clock) LowerBound() int64 {
	return c.now().Unix() - int64(c.skew/time.Second)
}
