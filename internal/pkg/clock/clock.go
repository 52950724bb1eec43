// Package clock provides time utilities for the application
package clock

import "time"

//go:generate mockgen -destination=mock/mock.go -package=mockclock github.com/KirkDiggler/rpg-sheet/internal/pkg/clock Clock

// Clock provides time functionality
type Clock interface {
	Now() time.Time
}

// Real implements Clock using actual system time
type Real struct{}

// Now returns the current time
func (c *Real) Now() time.Time {
	return time.Now()
}

// New returns a new real clock
func New() Clock {
	return &Real{}
}

// Stamp returns the Unix millisecond timestamp for now that is strictly
// greater than previous. Two mutations inside the same millisecond still
// produce increasing stamps.
func Stamp(c Clock, previous int64) int64 {
	now := c.Now().UnixMilli()
	if now <= previous {
		return previous + 1
	}
	return now
}
