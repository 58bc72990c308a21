package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestScheduler() *Scheduler {
	return NewScheduler().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestScheduler()
	var runs atomic.Int32
	require.NoError(t, s.AddJob("tick", "* * * * * *", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "tick", jobs[0].Name)
	assert.Equal(t, "* * * * * *", jobs[0].Schedule)
	assert.GreaterOrEqual(t, jobs[0].Runs, 1)
	assert.False(t, jobs[0].LastRun.IsZero())
	assert.Empty(t, jobs[0].LastError)
}

func TestScheduler_AddJobValidation(t *testing.T) {
	s := newTestScheduler()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddJob("refresh", "@hourly", noop))
	assert.ErrorIs(t, s.AddJob("refresh", "@daily", noop), ErrJobExists)
	assert.Error(t, s.AddJob("bad", "not a cron", noop))
	assert.Len(t, s.Jobs(), 1)
}

func TestScheduler_Trigger(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("fetch failed")
	calls := 0
	require.NoError(t, s.AddJob("refresh", "0 0 * * *", func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		if calls == 1 {
			return boom
		}
		return nil
	}))

	assert.ErrorIs(t, s.Trigger(context.Background(), "refresh"), boom)
	st := s.Jobs()[0]
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, "fetch failed", st.LastError)

	require.NoError(t, s.Trigger(context.Background(), "refresh"))
	st = s.Jobs()[0]
	assert.Equal(t, 2, st.Runs)
	assert.Empty(t, st.LastError)

	assert.ErrorIs(t, s.Trigger(context.Background(), "missing"), ErrJobNotFound)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := newTestScheduler()
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, s.AddJob("slow", "@hourly", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
		return nil
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	j := s.jobs["slow"]
	go s.run(j)
	<-started
	s.run(j)
	assert.Equal(t, int32(1), runs.Load())
	close(release)
}

func TestParseCron(t *testing.T) {
	next, err := ParseCron("*/5 * * * *")
	require.NoError(t, err)
	assert.True(t, next.After(time.Now()))

	_, err = ParseCron("61 * * * *")
	assert.Error(t, err)
}
