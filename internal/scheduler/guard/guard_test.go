package guard

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memoryLocker struct {
	mu         sync.Mutex
	held       map[string]string
	seq        int
	fail       error
	releaseErr error
	calls      int
}

func (l *memoryLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.fail != nil {
		return "", false, l.fail
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.seq++
	token := strconv.Itoa(l.seq)
	l.held[key] = token
	return token, true, nil
}

func (l *memoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.releaseErr != nil {
		return l.releaseErr
	}
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func TestRunGuard_InProcess(t *testing.T) {
	g := NewRunGuard(nil, "", time.Minute, nil)

	release, err := g.Acquire(context.Background(), "recurring_entries")
	require.NoError(t, err)

	_, err = g.Acquire(context.Background(), "recurring_entries")
	assert.ErrorIs(t, err, ErrJobRunning)

	other, err := g.Acquire(context.Background(), "another_job")
	require.NoError(t, err)
	other()

	release()
	again, err := g.Acquire(context.Background(), "recurring_entries")
	require.NoError(t, err)
	again()
}

func TestRunGuard_DistributedLock(t *testing.T) {
	locker := &memoryLocker{held: map[string]string{}}
	first := NewRunGuard(locker, "test", time.Minute, zap.NewNop())
	second := NewRunGuard(locker, "test", time.Minute, zap.NewNop())

	release, err := first.Acquire(context.Background(), "recurring_entries")
	require.NoError(t, err)
	assert.Contains(t, locker.held, "test:recurring_entries")

	_, err = second.Acquire(context.Background(), "recurring_entries")
	assert.ErrorIs(t, err, ErrLockHeld)

	release()
	assert.Empty(t, locker.held)

	release, err = second.Acquire(context.Background(), "recurring_entries")
	require.NoError(t, err)
	release()
}

func TestRunGuard_LockerErrorFreesLocalSlot(t *testing.T) {
	locker := &memoryLocker{held: map[string]string{}, fail: errors.New("redis down")}
	g := NewRunGuard(locker, "", time.Minute, zap.NewNop())

	_, err := g.Acquire(context.Background(), "recurring_entries")
	assert.EqualError(t, err, "redis down")

	locker.fail = nil
	release, err := g.Acquire(context.Background(), "recurring_entries")
	require.NoError(t, err)
	release()
	assert.Equal(t, 2, locker.calls)
}

func TestRunGuard_ReleaseErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	locker := &memoryLocker{held: map[string]string{}, releaseErr: errors.New("redis timeout")}
	g := NewRunGuard(locker, "test", time.Minute, zap.New(core))

	release, err := g.Acquire(context.Background(), "recurring_entries")
	require.NoError(t, err)
	release()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "test:recurring_entries", entry.ContextMap()["key"])
	assert.Equal(t, "redis timeout", entry.ContextMap()["error"])

	_, err = g.Acquire(context.Background(), "recurring_entries")
	assert.ErrorIs(t, err, ErrLockHeld, "the remote lock stays until its ttl")
}
