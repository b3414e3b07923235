package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmill/tdxscan/pkg/logger"
)

func fastScheduler() *Scheduler {
	s := New(logger.NewNop())
	s.retryDelay = time.Millisecond
	return s
}

func TestAddJob_Duplicate(t *testing.T) {
	s := fastScheduler()

	job := NewFuncJob("scan", "0 0 18 * * 1-5", func(ctx context.Context) error { return nil })
	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
}

func TestAddJob_BadSpec(t *testing.T) {
	s := fastScheduler()

	job := NewFuncJob("scan", "not a cron spec", func(ctx context.Context) error { return nil })
	assert.Error(t, s.AddJob(job))
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := fastScheduler()

	var runs int32
	job := NewFuncJob("rank", "@daily", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("rank"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	history, err := s.History("rank")
	require.NoError(t, err)
	latest, ok := history.Latest()
	require.True(t, ok)
	assert.True(t, latest.Success)
}

func TestRunJob_RetriesThenFails(t *testing.T) {
	s := fastScheduler()

	var runs int32
	job := NewFuncJob("scan", "@daily", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("store busy")
	})
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("scan"))

	// 1 initial run + 2 retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&runs))

	history, err := s.History("scan")
	require.NoError(t, err)
	latest, ok := history.Latest()
	require.True(t, ok)
	assert.False(t, latest.Success)
	assert.Contains(t, latest.Error, "store busy")
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := fastScheduler()

	started := make(chan struct{})
	job := NewFuncJob("scan", "@daily", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, s.AddJob(job))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.RunJob("scan")
	}()

	<-started
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe scheduler shutdown")
	}

	history, err := s.History("scan")
	require.NoError(t, err)
	latest, ok := history.Latest()
	require.True(t, ok)
	assert.False(t, latest.Success)
	assert.Contains(t, latest.Error, context.Canceled.Error())
}

func TestRunJob_Unknown(t *testing.T) {
	s := fastScheduler()
	assert.Error(t, s.RunJob("nothing"))

	_, err := s.History("nothing")
	assert.Error(t, err)
}

func TestJobHistory_Capped(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: "scan", Success: true})
	}
	assert.Len(t, h.Results, 100)
}
