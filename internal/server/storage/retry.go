package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how long finalize waits for a freshly PUT object to
// become visible. Attempt n (n >= 1) is followed by a pause of n*Backoff.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is three attempts with 250ms, 500ms pauses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 250 * time.Millisecond}
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var n int64
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return p.Backoff * time.Duration(n), false
	})

	return retry.WithMaxRetries(uint64(attempts-1), linear)
}

// HeadWithRetry looks the object up until it is visible or the policy is
// exhausted. The last error (ErrNotFound or a gateway error) is returned.
func HeadWithRetry(ctx context.Context, gw Gateway, key string, p RetryPolicy) (*ObjectInfo, error) {
	var info *ObjectInfo

	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		obj, err := gw.HeadObject(ctx, key)
		if err == nil {
			info = obj
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}

	return info, nil
}
