package sqlkit

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// PoolConfig configures the bounded connection pool. The zero value is
// not usable; use DefaultPoolConfig and override fields.
type PoolConfig struct {
	MinSize            int
	MaxSize            int
	AcquireTimeout     time.Duration
	MaxIdleTime        time.Duration
	MaxLifetime        time.Duration
	TransactionTimeout time.Duration

	// KeepAliveInterval is the sleep between keep-alive scans. Zero
	// disables the background probe entirely.
	KeepAliveInterval time.Duration

	// Clock is the injectable millisecond clock the out-of-scope design
	// note asks for; every PooledConnection timestamp is read from it,
	// so tests can fast-forward health windows without real sleeps.
	Clock clockwork.Clock
}

// DefaultPoolConfig returns conservative defaults suitable for a small
// service: 2-10 connections, 5s acquire timeout, 30s keep-alive.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSize:            2,
		MaxSize:            10,
		AcquireTimeout:      5 * time.Second,
		MaxIdleTime:        10 * time.Minute,
		MaxLifetime:        time.Hour,
		TransactionTimeout: 30 * time.Second,
		KeepAliveInterval:  30 * time.Second,
		Clock:              clockwork.NewRealClock(),
	}
}

func (c PoolConfig) normalized() PoolConfig {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 10
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	return c
}

// PoolStats is a cheap snapshot of pool occupancy, taken under the two
// pool locks. InTransaction may be approximate under concurrent access.
type PoolStats struct {
	Total         int
	Active        int
	Idle          int
	InTransaction int
}
