package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceKeeper/internal/resolver"
)

type fakeTarget struct {
	mu          sync.Mutex
	sweeps      int
	cleanupDays []int
	refreshes   int
	cleanupErr  error
	release     chan struct{}
}

func (f *fakeTarget) CleanupExpiredCache() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 2
}

func (f *fakeTarget) CleanupOldData(_ context.Context, days int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupDays = append(f.cleanupDays, days)
	return 5, f.cleanupErr
}

func (f *fakeTarget) RefreshSymbols(_ context.Context, syms []string) (resolver.RefreshReport, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return resolver.RefreshReport{Updated: len(syms)}, nil
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeTarget{}, 30)

	require.NoError(t, s.RegisterAll("0 0 * * * *", "0 30 3 * * *", "0 0 22 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 3)
}

func TestRegisterAll_EmptySpecDisablesTask(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeTarget{}, 30)

	require.NoError(t, s.RegisterAll("0 0 * * * *", "", ""))
	assert.Len(t, s.Cron.Entries(), 1)
}

func TestRegisterAll_InvalidSpec(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeTarget{}, 30)

	err := s.RegisterAll("0 0 * * * *", "every night", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register cleanup task")
}

func TestRunAllNow(t *testing.T) {
	target := &fakeTarget{}
	s := NewScheduler(context.Background(), target, 365)

	s.RunAllNow()
	assert.Equal(t, 1, target.sweeps)
	assert.Equal(t, []int{365}, target.cleanupDays)
	assert.Equal(t, 1, target.refreshes)
}

func TestCleanupSkippedWithoutRetention(t *testing.T) {
	target := &fakeTarget{}
	s := NewScheduler(context.Background(), target, 0)

	s.cleanupTask()
	assert.Empty(t, target.cleanupDays, "zero retention must never wipe the store")
}

func TestCleanupErrorIsLogged(t *testing.T) {
	target := &fakeTarget{cleanupErr: errors.New("disk full")}
	s := NewScheduler(context.Background(), target, 7)

	assert.NotPanics(t, s.cleanupTask)
	assert.Equal(t, []int{7}, target.cleanupDays)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeTarget{}, 30)
	require.NoError(t, s.RegisterAll("0 0 * * * *", "", ""))

	s.Start()
	s.Stop()
}

func TestStopWaitsForTrigger(t *testing.T) {
	target := &fakeTarget{release: make(chan struct{})}
	s := NewScheduler(context.Background(), target, 30)
	s.Start()
	s.Trigger()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the triggered run was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(target.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop never returned")
	}
	assert.Equal(t, 1, target.refreshes)
}
