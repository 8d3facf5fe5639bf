package notify

import "time"

const (
	// Reconnect backoff defaults
	DefaultReconnectBase        = 1 * time.Second
	DefaultReconnectCap         = 30 * time.Second
	DefaultReconnectMaxAttempts = 10
)

// Backoff computes reconnect delays as min(Base * 2^attempts, Cap)
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultBackoff returns the 1s/30s/10 policy
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        DefaultReconnectBase,
		Cap:         DefaultReconnectCap,
		MaxAttempts: DefaultReconnectMaxAttempts,
	}
}

// Delay returns the wait before reconnect number attempts+1
func (b Backoff) Delay(attempts int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	delay := b.Base
	for i := 0; i < attempts; i++ {
		if b.Cap > 0 && delay >= b.Cap {
			break
		}
		delay *= 2
	}
	if b.Cap > 0 && delay > b.Cap {
		delay = b.Cap
	}
	return delay
}

// Next returns the delay for the next reconnect, or false once attempts
// has reached MaxAttempts and no further reconnect may be scheduled.
func (b Backoff) Next(attempts int) (time.Duration, bool) {
	if attempts >= b.MaxAttempts {
		return 0, false
	}
	return b.Delay(attempts), true
}
