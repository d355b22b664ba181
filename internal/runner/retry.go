package runner

import (
	"context"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	// Tries is the total number of attempts, at least 1.
	Tries int

	// Delay is the pause between attempts. No pause follows the last attempt.
	Delay time.Duration
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry runs cmd until done reports true or the policy is exhausted.
//
// It returns the last result and the number of attempts made. A runner
// error or a cancelled sleep aborts the loop and is returned as is.
func Retry(ctx context.Context, r Runner, cmd Command, p Policy, sleep Sleeper, done func(Result) bool) (Result, int, error) {
	if p.Tries < 1 {
		p.Tries = 1
	}
	if sleep == nil {
		sleep = Sleep
	}

	var last Result
	for attempt := 1; attempt <= p.Tries; attempt++ {
		res, err := r.Run(ctx, cmd)
		if err != nil {
			return res, attempt, err
		}
		last = res
		if done(res) {
			return res, attempt, nil
		}
		if attempt < p.Tries {
			if err := sleep(ctx, p.Delay); err != nil {
				return last, attempt, err
			}
		}
	}
	return last, p.Tries, nil
}
