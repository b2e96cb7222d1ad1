package push

import "time"

// ReconnectConfig bounds automatic reconnection after a connection is lost
// or a dial fails.
type ReconnectConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts:  10,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Delay returns the wait before reconnect attempt n, counting from 1.
// Formula: min(InitialDelay * Multiplier^(n-1), MaxDelay)
func (c ReconnectConfig) Delay(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.Multiplier)
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}
