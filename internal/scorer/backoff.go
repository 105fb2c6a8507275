package scorer

import (
	"math/rand"
	"time"
)

// BackoffPolicy computes how long to sleep between remote scoring attempts.
// Delays double from Base up to MaxDelay, with up to MaxJitter of random
// spread so concurrent retries do not synchronize against the upstream.
type BackoffPolicy struct {
	Base      time.Duration
	MaxDelay  time.Duration
	MaxJitter time.Duration
}

// Delay returns the sleep before retry number attempt (1-based: attempt 1 is
// the wait after the first failure). The result never exceeds MaxDelay.
func (p BackoffPolicy) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.MaxJitter > 0 && rng != nil {
		delay += time.Duration(rng.Int63n(int64(p.MaxJitter)))
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
