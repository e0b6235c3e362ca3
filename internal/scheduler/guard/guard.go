package guard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrJobRunning = errors.New("job_already_running")
	ErrLockHeld   = errors.New("job_lock_held")
)

// Locker is a cross-process mutual exclusion primitive. TryLock returns a
// token that must be presented to Release.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// RunGuard keeps a job from overlapping itself. The in-process mutex covers
// goroutines; the optional Locker covers other processes.
type RunGuard struct {
	mu      sync.Mutex
	running map[string]bool
	locker  Locker
	log     *zap.Logger
	prefix  string
	ttl     time.Duration
}

func NewRunGuard(locker Locker, prefix string, ttl time.Duration, log *zap.Logger) *RunGuard {
	if log == nil {
		log = zap.NewNop()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "posledger:scheduler"
	}
	return &RunGuard{
		running: map[string]bool{},
		locker:  locker,
		log:     log,
		prefix:  prefix,
		ttl:     ttl,
	}
}

// Acquire claims job. The returned release func is never nil on success and
// must be called once the job finishes.
func (g *RunGuard) Acquire(ctx context.Context, job string) (func(), error) {
	g.mu.Lock()
	if g.running[job] {
		g.mu.Unlock()
		return nil, ErrJobRunning
	}
	g.running[job] = true
	g.mu.Unlock()

	local := func() {
		g.mu.Lock()
		delete(g.running, job)
		g.mu.Unlock()
	}
	if g.locker == nil {
		return local, nil
	}

	key := g.prefix + ":" + job
	token, ok, err := g.locker.TryLock(ctx, key, g.ttl)
	if err != nil {
		local()
		return nil, err
	}
	if !ok {
		local()
		return nil, ErrLockHeld
	}
	return func() {
		// The job context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.locker.Release(releaseCtx, key, token); err != nil {
			g.log.Warn("scheduler lock release failed, held until ttl",
				zap.String("key", key),
				zap.Duration("ttl", g.ttl),
				zap.Error(err),
			)
		}
		local()
	}, nil
}
