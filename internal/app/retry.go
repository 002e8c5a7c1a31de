package app

import "time"

// RetryPolicy bounds how often a failing auction is retried before dead-lettering
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxDelay    time.Duration
}

const (
	defaultMaxAttempts = 10
	defaultBackoff     = time.Minute
	defaultMaxDelay    = time.Hour
)

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.Backoff {
		p.MaxDelay = p.Backoff
	}
	return p
}

// Next returns when attempt number 'attempts' may be followed by another one,
// or dead=true when the budget is spent
func (p RetryPolicy) Next(attempts int, now time.Time) (next *time.Time, dead bool) {
	p = p.normalized()
	if attempts >= p.MaxAttempts {
		return nil, true
	}
	delay := p.Backoff
	for i := 1; i < attempts && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	at := now.Add(delay)
	return &at, false
}
