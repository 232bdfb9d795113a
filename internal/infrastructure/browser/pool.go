package browser

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shipquote/backend/internal/domain"
	"github.com/shirou/gopsutil/v4/process"
)

// Launcher starts a fresh browser with one open tab
type Launcher interface {
	Launch(ctx context.Context) (Conn, error)
}

// Conn is a running browser process and its tab.
type Conn interface {
	Page() Page
	PID() int
	// Alive returns nil when the tab still answers.
	Alive(ctx context.Context) error
	Close() error
}

// Authenticator logs a fresh tab into a partner's site. Partners provide it.
type Authenticator interface {
	Login(ctx context.Context, page Page) error
	// Check loads a signed-in page and returns an error when the site no
	// longer accepts the session. It may navigate.
	Check(ctx context.Context, page Page) error
}

// PoolConfig holds session pool configuration
type PoolConfig struct {
	MaxSize          int
	LoginAttempts    int
	LoginTimeout     time.Duration
	HealthTimeout    time.Duration
	MaxLifetime      time.Duration
	MaxFailures      int
	MaxMemoryMB      int
	WatchdogInterval time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxSize <= 0 {
		c.MaxSize = 1
	}
	if c.LoginAttempts <= 0 {
		c.LoginAttempts = 3
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 10 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 5 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = time.Minute
	}
	return c
}

// Session is an authenticated browser leased from a Pool.
type Session struct {
	ID        string
	conn      Conn
	createdAt time.Time
	lastUsed  time.Time
	uses      int
	failures  int
}

func (s *Session) Page() Page { return s.conn.Page() }

// PoolStats is a snapshot of the pool occupancy
type PoolStats struct {
	Idle    int `json:"idle"`
	Busy    int `json:"busy"`
	MaxSize int `json:"maxSize"`
}

// PoolOption customizes a Pool
type PoolOption func(*Pool)

// WithClock replaces time.Now
func WithClock(now func() time.Time) PoolOption {
	return func(p *Pool) { p.now = now }
}

// WithMemoryProbe replaces the gopsutil based resident memory lookup
func WithMemoryProbe(probe func(pid int) (uint64, error)) PoolOption {
	return func(p *Pool) { p.memoryOf = probe }
}

// Pool keeps authenticated browser sessions for one partner. A session is
// leased by exactly one quote attempt at a time; at most MaxSize sessions
// exist at once.
type Pool struct {
	name     string
	cfg      PoolConfig
	launcher Launcher
	auth     Authenticator
	logger   zerolog.Logger

	slots chan struct{}

	mu     sync.Mutex
	idle   []*Session
	busy   map[string]*Session
	closed bool

	memoryOf func(pid int) (uint64, error)
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool creates an empty pool. Sessions are launched lazily by Acquire.
func NewPool(name string, cfg PoolConfig, launcher Launcher, auth Authenticator, logger zerolog.Logger, opts ...PoolOption) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		name:     name,
		cfg:      cfg,
		launcher: launcher,
		auth:     auth,
		logger:   logger.With().Str("component", "session_pool").Str("partner", name).Logger(),
		slots:    make(chan struct{}, cfg.MaxSize),
		busy:     make(map[string]*Session),
		memoryOf: processTreeRSS,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns an exclusive, logged-in session, reusing a healthy idle one
// when possible.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for a free browser session: %w", domain.ErrTimeout, ctx.Err())
	}

	s, err := p.acquireSlot(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return s, nil
}

func (p *Pool) acquireSlot(ctx context.Context) (*Session, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: pool closed", domain.ErrSessionUnavailable)
		}
		if len(p.idle) == 0 {
			p.mu.Unlock()
			break
		}
		s := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if reason := p.recycleReason(s); reason != "" {
			p.destroy(s, reason)
			continue
		}
		if err := p.healthy(ctx, s); err != nil {
			p.destroy(s, "failed health check: "+err.Error())
			continue
		}
		p.markBusy(s)
		return s, nil
	}

	s, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	p.markBusy(s)
	return s, nil
}

func (p *Pool) markBusy(s *Session) {
	p.mu.Lock()
	p.busy[s.ID] = s
	p.mu.Unlock()
}

// open launches a browser and logs it in, retrying the login up to
// LoginAttempts times. The browser is relaunched only if it died.
func (p *Pool) open(ctx context.Context) (*Session, error) {
	var (
		conn    Conn
		lastErr error
	)
	for attempt := 1; attempt <= p.cfg.LoginAttempts && ctx.Err() == nil; attempt++ {
		if conn == nil {
			c, err := p.launcher.Launch(ctx)
			if err != nil {
				lastErr = err
				p.logger.Warn().Err(err).Int("attempt", attempt).Msg("Browser launch failed")
				continue
			}
			conn = c
		}

		loginCtx, cancel := context.WithTimeout(ctx, p.cfg.LoginTimeout)
		err := p.auth.Login(loginCtx, conn.Page())
		cancel()
		if err == nil {
			now := p.now()
			s := &Session{ID: uuid.NewString(), conn: conn, createdAt: now, lastUsed: now}
			p.logger.Info().Str("session_id", s.ID).Int("attempt", attempt).Msg("Session logged in")
			return s, nil
		}

		lastErr = err
		p.logger.Warn().Err(err).Int("attempt", attempt).Msg("Login failed")
		if aliveErr := conn.Alive(ctx); aliveErr != nil {
			_ = conn.Close()
			conn = nil
		}
	}

	if conn != nil {
		_ = conn.Close()
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: opening browser session: %w", domain.ErrTimeout, ctx.Err())
	}
	return nil, fmt.Errorf("%w: login failed after %d attempts: %v", domain.ErrSessionUnavailable, p.cfg.LoginAttempts, lastErr)
}

func (p *Pool) healthy(ctx context.Context, s *Session) error {
	hctx, cancel := context.WithTimeout(ctx, p.cfg.HealthTimeout)
	defer cancel()

	if err := s.conn.Alive(hctx); err != nil {
		return err
	}
	err := p.auth.Check(hctx, s.Page())
	if err == nil {
		return nil
	}

	// The browser is fine but the vendor dropped the session; sign in again
	// on the same tab.
	p.logger.Info().Err(err).Str("session_id", s.ID).Msg("Idle session signed out, logging in again")
	loginCtx, cancelLogin := context.WithTimeout(ctx, p.cfg.LoginTimeout)
	defer cancelLogin()
	if lerr := p.auth.Login(loginCtx, s.Page()); lerr != nil {
		return fmt.Errorf("%v; login again: %w", err, lerr)
	}
	return nil
}

// Release returns a leased session. err is the outcome of the attempt that
// used it; sessions that broke, failed too often or aged out are destroyed
// instead of going back to the idle list. Releasing twice is a no-op.
func (p *Pool) Release(s *Session, err error) {
	if s == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.busy[s.ID]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.busy, s.ID)

	s.lastUsed = p.now()
	s.uses++
	if err != nil {
		s.failures++
	} else {
		s.failures = 0
	}

	reason := ""
	switch {
	case p.closed:
		reason = "pool closed"
	case err != nil && domain.KindOf(err) == domain.KindSessionUnavailable:
		reason = "session lost"
	case s.failures >= p.cfg.MaxFailures:
		reason = fmt.Sprintf("%d consecutive failures", s.failures)
	case p.expired(s):
		reason = "max lifetime reached"
	default:
		p.idle = append(p.idle, s)
	}
	p.mu.Unlock()

	if reason != "" {
		p.destroy(s, reason)
	}
	<-p.slots
}

func (p *Pool) expired(s *Session) bool {
	return p.cfg.MaxLifetime > 0 && p.now().Sub(s.createdAt) >= p.cfg.MaxLifetime
}

func (p *Pool) recycleReason(s *Session) string {
	if p.expired(s) {
		return "max lifetime reached"
	}
	if p.cfg.MaxMemoryMB <= 0 || p.memoryOf == nil {
		return ""
	}
	rss, err := p.memoryOf(s.conn.PID())
	if err != nil {
		p.logger.Debug().Err(err).Str("session_id", s.ID).Msg("Memory probe failed")
		return ""
	}
	if mb := rss / (1024 * 1024); mb > uint64(p.cfg.MaxMemoryMB) {
		return fmt.Sprintf("resident memory %dMB over limit", mb)
	}
	return ""
}

func (p *Pool) destroy(s *Session, reason string) {
	p.logger.Info().Str("session_id", s.ID).Int("uses", s.uses).Str("reason", reason).Msg("Recycling browser session")
	if err := s.conn.Close(); err != nil {
		p.logger.Debug().Err(err).Str("session_id", s.ID).Msg("Browser close returned error")
	}
}

// Alive reports whether the pool holds at least one live session.
func (p *Pool) Alive(ctx context.Context) bool {
	p.mu.Lock()
	if len(p.busy) > 0 {
		p.mu.Unlock()
		return true
	}
	idle := slices.Clone(p.idle)
	p.mu.Unlock()

	for _, s := range idle {
		hctx, cancel := context.WithTimeout(ctx, p.cfg.HealthTimeout)
		err := s.conn.Alive(hctx)
		cancel()
		if err == nil {
			return true
		}
	}
	return false
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Idle: len(p.idle), Busy: len(p.busy), MaxSize: p.cfg.MaxSize}
}

// StartWatchdog periodically recycles idle sessions that aged out or grew
// past the memory limit. It stops when the pool is closed.
func (p *Pool) StartWatchdog() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.WatchdogInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.RecycleIdle()
			case <-p.stop:
				return
			}
		}
	}()
}

// RecycleIdle destroys idle sessions due for recycling and returns how many
// were removed.
func (p *Pool) RecycleIdle() int {
	p.mu.Lock()
	candidates := slices.Clone(p.idle)
	p.mu.Unlock()

	stale := make(map[*Session]string)
	for _, s := range candidates {
		if reason := p.recycleReason(s); reason != "" {
			stale[s] = reason
		}
	}
	if len(stale) == 0 {
		return 0
	}

	// Sessions leased while probing are left alone.
	var removed []*Session
	p.mu.Lock()
	p.idle = slices.DeleteFunc(p.idle, func(s *Session) bool {
		if _, ok := stale[s]; ok {
			removed = append(removed, s)
			return true
		}
		return false
	})
	p.mu.Unlock()

	for _, s := range removed {
		p.destroy(s, stale[s])
	}
	return len(removed)
}

// Close destroys idle sessions. Leased sessions are destroyed on release.
func (p *Pool) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()

	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, s := range idle {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// processTreeRSS sums the resident memory of a browser and its renderers
func processTreeRSS(pid int) (uint64, error) {
	if pid <= 0 {
		return 0, nil
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	return treeRSS(proc, 0), nil
}

func treeRSS(proc *process.Process, depth int) uint64 {
	var total uint64
	if mem, err := proc.MemoryInfo(); err == nil {
		total += mem.RSS
	}
	if depth > 3 {
		return total
	}
	children, err := proc.Children()
	if err != nil {
		return total
	}
	for _, child := range children {
		total += treeRSS(child, depth+1)
	}
	return total
}
