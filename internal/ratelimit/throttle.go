package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between two provider calls.
const DefaultInterval = 30 * time.Second

// Throttle paces outbound provider calls.
type Throttle interface {
	Wait(ctx context.Context) error
}

var _ Throttle = (*SpacingThrottle)(nil)

// SpacingThrottle is a token bucket with a burst of one that refills one
// token per interval, so consecutive Wait returns are at least interval
// apart. It is safe for concurrent use.
type SpacingThrottle struct {
	interval time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewSpacingThrottle(interval time.Duration) *SpacingThrottle {
	return newSpacingThrottle(interval, time.Now, sleepWithContext)
}

func newSpacingThrottle(
	interval time.Duration,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) *SpacingThrottle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &SpacingThrottle{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		now:      nowFn,
		sleep:    sleepFn,
	}
}

// Wait reserves the next call slot and blocks until it is due. A canceled ctx
// aborts the wait and hands the reserved slot back to the limiter.
func (t *SpacingThrottle) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	now := t.now()
	r := t.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("throttle: reservation exceeds limiter burst")
	}

	delay := r.DelayFrom(now).Round(time.Millisecond)
	if delay <= 0 {
		return nil
	}

	if err := t.sleep(ctx, delay); err != nil {
		r.CancelAt(t.now())
		return err
	}
	return nil
}

func (t *SpacingThrottle) Interval() time.Duration {
	return t.interval
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
