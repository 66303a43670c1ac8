// Package retry implements the fixed-delay retry loop shared by the uploader
// and the update poller. The delay between attempts is constant; there is no
// exponential growth and no jitter.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second
)

// Policy configures Do. A zero Attempts value is treated as a single attempt.
type Policy struct {
	Attempts int
	Delay    time.Duration
	// Sleep waits for d or until ctx is done. Defaults to a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Permanent marks err so that Do stops retrying and returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// Wait blocks for d unless ctx is cancelled first.
func Wait(ctx context.Context, d time.Duration) error {
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

// sleepTimer drives backoff's wait through a Sleep function.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	go func() {
		if err := t.sleep(t.ctx, d); err != nil && t.ctx.Err() != nil {
			return
		}
		t.c <- time.Now()
	}()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }

// Do calls fn until it succeeds, returns a permanent error, or the policy's
// attempts are exhausted. It returns the number of attempts made and the last
// error (unwrapped from Permanent). One warning is logged per failed attempt.
// If ctx ends while waiting, the context error is returned.
func Do(ctx context.Context, p Policy, name string, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx, attempt)
		if err != nil {
			glog.Warningf("%s: attempt %d/%d failed: %s", name, attempt, attempts, err)
		}
		return err
	}
	notify := func(_ error, next time.Duration) {
		glog.V(1).Infof("%s: retrying in %s", name, next)
	}

	var timer backoff.Timer
	if p.Sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: p.Sleep, c: make(chan time.Time, 1)}
	}
	err := backoff.RetryNotifyWithTimer(op, b, notify, timer)
	return attempt, err
}
