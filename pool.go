package sqlkit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PooledConnection wraps a live driver Conn with pool-management state.
// Every flag transition happens under connLock except where noted; the
// population list and idle stack are never mutated through this type
// directly (see Pool.stateLock / Pool.idleLock).
type PooledConnection struct {
	connLock sync.Mutex

	conn Conn
	id   int64

	inUse         bool
	inTransaction bool
	pinging       bool
	broken        bool
	borrowed      bool

	createdAt   time.Time
	lastUsedAt  time.Time
	txStartedAt time.Time
}

// IsHealthy reports whether the connection satisfies every age/idle/tx
// bound in cfg, evaluated against now.
func (pc *PooledConnection) IsHealthy(cfg PoolConfig, now time.Time) bool {
	pc.connLock.Lock()
	defer pc.connLock.Unlock()
	return pc.isHealthyLocked(cfg, now)
}

func (pc *PooledConnection) isHealthyLocked(cfg PoolConfig, now time.Time) bool {
	if pc.broken {
		return false
	}
	if cfg.MaxLifetime > 0 && now.Sub(pc.createdAt) > cfg.MaxLifetime {
		return false
	}
	if !pc.inUse && cfg.MaxIdleTime > 0 && now.Sub(pc.lastUsedAt) > cfg.MaxIdleTime {
		return false
	}
	if pc.inTransaction && cfg.TransactionTimeout > 0 && now.Sub(pc.txStartedAt) > cfg.TransactionTimeout {
		return false
	}
	return true
}

// Pool is a bounded pool of live connections, leased one at a time to
// callers. State is split across two locks to keep keep-alive off the
// hot acquire/release path: idleLock guards the LIFO idle stack;
// stateLock guards the population list, the closed flag, and the
// condition variable that wakes blocked acquirers.
type Pool struct {
	cfg    PoolConfig
	dialer Dialer
	logger Logger

	idleLock sync.Mutex
	idle     []*PooledConnection

	stateLock  sync.Mutex
	stateCond  *sync.Cond
	population []*PooledConnection
	closed     bool

	nextID int64

	keepAliveDone chan struct{}
	keepAliveWG   sync.WaitGroup
}

// NewPool constructs a pool and starts its keep-alive goroutine (unless
// cfg.KeepAliveInterval is zero).
func NewPool(cfg PoolConfig, dialer Dialer, logger Logger) *Pool {
	cfg = cfg.normalized()
	if logger == nil {
		logger = defaultLogger()
	}
	p := &Pool{
		cfg:           cfg,
		dialer:        dialer,
		logger:        logger,
		keepAliveDone: make(chan struct{}),
	}
	p.stateCond = sync.NewCond(&p.stateLock)

	if cfg.KeepAliveInterval > 0 {
		p.keepAliveWG.Add(1)
		go p.keepAliveLoop()
	}

	return p
}

func (p *Pool) newConn(ctx context.Context) (*PooledConnection, error) {
	conn, err := p.dialer(ctx)
	if err != nil {
		return nil, err
	}
	now := p.cfg.Clock.Now()
	return &PooledConnection{
		conn:       conn,
		id:         atomic.AddInt64(&p.nextID, 1),
		createdAt:  now,
		lastUsedAt: now,
	}, nil
}

// Acquire leases a connection: pop a healthy idle candidate; replace an
// unhealthy one outside any lock; optimistically grow the pool below
// MaxSize; or block on the state condition up to AcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	deadline := p.cfg.Clock.Now().Add(p.cfg.AcquireTimeout)

	for {
		if pc := p.popIdleCandidate(); pc != nil {
			now := p.cfg.Clock.Now()
			if pc.IsHealthy(p.cfg, now) {
				pc.connLock.Lock()
				pc.inUse = true
				pc.borrowed = true
				pc.lastUsedAt = now
				pc.connLock.Unlock()
				return pc, nil
			}

			// Unhealthy: destroy and try to build a replacement without
			// holding any pool lock, so slow dials never stall acquirers.
			_ = pc.conn.Close()
			replacement, err := p.newConn(ctx)
			if err != nil {
				p.removeFromPopulation(pc)
				continue
			}
			p.swapInPopulation(pc, replacement)
			replacement.connLock.Lock()
			replacement.inUse = true
			replacement.borrowed = true
			replacement.connLock.Unlock()
			return replacement, nil
		}

		if pc, created, err := p.tryOptimisticCreate(ctx); created {
			if err != nil {
				return nil, err
			}
			return pc, nil
		}

		remaining := deadline.Sub(p.cfg.Clock.Now())
		if remaining <= 0 {
			return nil, wrapSqlError(newSqlError(ErrAcquireTimeout,
				"timed out waiting for a free connection", "", "", "", "", "acquire", p.cfg.AcquireTimeout))
		}

		if !p.waitForSignal(remaining) {
			return nil, wrapSqlError(newSqlError(ErrAcquireTimeout,
				"timed out waiting for a free connection", "", "", "", "", "acquire", p.cfg.AcquireTimeout))
		}
	}
}

// popIdleCandidate pops the most-recently-used idle connection whose
// pinging and borrowed flags are both false.
func (p *Pool) popIdleCandidate() *PooledConnection {
	p.idleLock.Lock()
	defer p.idleLock.Unlock()

	for i := len(p.idle) - 1; i >= 0; i-- {
		pc := p.idle[i]
		pc.connLock.Lock()
		eligible := !pc.pinging && !pc.borrowed
		pc.connLock.Unlock()
		if eligible {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			return pc
		}
	}
	return nil
}

// tryOptimisticCreate grows the population if it is below MaxSize. The
// dial happens with no lock held; on return the capacity check is
// redone, and a connection created during a lost race is torn down
// rather than leaked into an over-full pool.
func (p *Pool) tryOptimisticCreate(ctx context.Context) (pc *PooledConnection, created bool, err error) {
	p.stateLock.Lock()
	if p.closed {
		p.stateLock.Unlock()
		return nil, true, wrapSqlError(newSqlError(ErrPoolClosed, "pool is closed", "", "", "", "", "acquire", 0))
	}
	if len(p.population) >= p.cfg.MaxSize {
		p.stateLock.Unlock()
		return nil, false, nil
	}
	p.stateLock.Unlock()

	newPC, dialErr := p.newConn(ctx)

	p.stateLock.Lock()
	defer p.stateLock.Unlock()
	if dialErr != nil {
		return nil, true, dialErr
	}
	if p.closed {
		_ = newPC.conn.Close()
		return nil, true, wrapSqlError(newSqlError(ErrPoolClosed, "pool is closed", "", "", "", "", "acquire", 0))
	}
	if len(p.population) >= p.cfg.MaxSize {
		// Lost the race: another acquirer filled the pool while we dialed.
		_ = newPC.conn.Close()
		return nil, false, nil
	}

	newPC.inUse = true
	newPC.borrowed = true
	p.population = append(p.population, newPC)
	return newPC, true, nil
}

func (p *Pool) waitForSignal(timeout time.Duration) bool {
	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		p.stateLock.Lock()
		close(done)
		p.stateCond.Broadcast()
		p.stateLock.Unlock()
	})
	defer timer.Stop()

	p.stateLock.Lock()
	defer p.stateLock.Unlock()
	select {
	case <-done:
		return false
	default:
	}
	p.stateCond.Wait()
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (p *Pool) removeFromPopulation(pc *PooledConnection) {
	p.stateLock.Lock()
	defer p.stateLock.Unlock()
	for i, c := range p.population {
		if c == pc {
			p.population = append(p.population[:i], p.population[i+1:]...)
			break
		}
	}
	p.stateCond.Broadcast()
}

func (p *Pool) swapInPopulation(old, replacement *PooledConnection) {
	p.stateLock.Lock()
	defer p.stateLock.Unlock()
	for i, c := range p.population {
		if c == old {
			p.population[i] = replacement
			return
		}
	}
	p.population = append(p.population, replacement)
}

// Release returns a connection to the idle stack, rolling back any
// unfinished transaction first. A broken connection is destroyed and
// removed from the population instead of being returned to idle.
func (p *Pool) Release(ctx context.Context, pc *PooledConnection) {
	pc.connLock.Lock()
	if pc.inTransaction {
		_ = pc.conn.Rollback(ctx)
		pc.inTransaction = false
	}
	pc.inUse = false
	pc.borrowed = false
	pc.lastUsedAt = p.cfg.Clock.Now()
	broken := pc.broken
	pc.connLock.Unlock()

	if broken {
		_ = pc.conn.Close()
		p.removeFromPopulation(pc)
		return
	}

	p.idleLock.Lock()
	p.idle = append(p.idle, pc)
	p.idleLock.Unlock()

	p.stateLock.Lock()
	p.stateCond.Broadcast()
	p.stateLock.Unlock()
}

// MarkBroken flags pc so the next Release destroys it instead of
// recycling it, used by the SQL error layer when IsConnectionError(kind)
// is true.
func (p *Pool) MarkBroken(pc *PooledConnection) {
	pc.connLock.Lock()
	pc.broken = true
	pc.connLock.Unlock()
}

const keepAliveBatch = 16

// keepAliveLoop scans at most keepAliveBatch idle, non-pinging
// connections per tick, probes each outside any pool lock, and adjusts
// LastUsedAt so a failed probe makes the connection look stale enough
// that the next Acquire's IsHealthy check rejects it.
func (p *Pool) keepAliveLoop() {
	defer p.keepAliveWG.Done()
	ticker := p.cfg.Clock.NewTicker(p.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.keepAliveDone:
			return
		case <-ticker.Chan():
			p.keepAliveOnce()
		}
	}
}

func (p *Pool) keepAliveOnce() {
	candidates := p.claimKeepAliveCandidates()
	for _, pc := range candidates {
		err := pc.conn.Ping(context.Background())
		pc.connLock.Lock()
		if err != nil {
			pc.lastUsedAt = time.Time{}
		} else {
			pc.lastUsedAt = p.cfg.Clock.Now()
		}
		pc.pinging = false
		pc.connLock.Unlock()
	}
}

func (p *Pool) claimKeepAliveCandidates() []*PooledConnection {
	p.idleLock.Lock()
	defer p.idleLock.Unlock()

	var out []*PooledConnection
	for _, pc := range p.idle {
		if len(out) >= keepAliveBatch {
			break
		}
		pc.connLock.Lock()
		if !pc.pinging && !pc.borrowed {
			pc.pinging = true
			out = append(out, pc)
		}
		pc.connLock.Unlock()
	}
	return out
}

// Stats returns a cheap occupancy snapshot under both locks.
func (p *Pool) Stats() PoolStats {
	p.stateLock.Lock()
	total := len(p.population)
	p.stateLock.Unlock()

	p.idleLock.Lock()
	idle := len(p.idle)
	p.idleLock.Unlock()

	var inTx int
	p.stateLock.Lock()
	for _, pc := range p.population {
		pc.connLock.Lock()
		if pc.inTransaction {
			inTx++
		}
		pc.connLock.Unlock()
	}
	p.stateLock.Unlock()

	return PoolStats{
		Total:         total,
		Idle:          idle,
		Active:        total - idle,
		InTransaction: inTx,
	}
}

// Close stops the keep-alive loop and destroys every connection in the
// population.
func (p *Pool) Close() error {
	p.stateLock.Lock()
	if p.closed {
		p.stateLock.Unlock()
		return nil
	}
	p.closed = true
	population := p.population
	p.population = nil
	p.stateCond.Broadcast()
	p.stateLock.Unlock()

	close(p.keepAliveDone)
	p.keepAliveWG.Wait()

	var firstErr error
	for _, pc := range population {
		if err := pc.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
