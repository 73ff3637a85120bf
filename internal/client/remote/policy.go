package remote

import "time"

// RetryPolicy bounds batch retries. The delay before retry k (k >= 1) is
// min(BaseDelay * 2^(k-1), MaxDelay). Deadline caps the whole PushBatch call
// as measured on the injected clock; once the next delay would cross it the
// remaining records are pushed one by one instead. Every transport call is
// also bounded by the time left, and the single-record pushes share a fresh
// Deadline window.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Deadline    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		MaxAttempts: 3,
		Deadline:    30 * time.Second,
	}
}

// Delay returns the wait before retry number attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return min(d, p.MaxDelay)
}
