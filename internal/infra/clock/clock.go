package clock

import (
	"context"
	"time"
)

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type Real struct{}

func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (Real) Now() time.Time                         { return time.Now() }

// Sleep waits for d on c, returning early with ctx's error if it is cancelled.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}
