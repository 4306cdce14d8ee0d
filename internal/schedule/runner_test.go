package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunner_RunsOnInterval(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := NewRunner(nil, logger.NewNop())
	require.NoError(t, r.Add(Job{Name: "tick", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		calls.Add(1)
		return nil
	}}))
	r.Start(t.Context())

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	r.Stop()
}

func TestRunner_SkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	r := NewRunner(nil, logger.NewNop())
	require.NoError(t, r.Add(Job{Name: "slow", Interval: 2 * time.Millisecond, RunOnStart: true, Run: func(ctx context.Context) error {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}))
	r.Start(t.Context())

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load(), "ticks during a run are skipped")

	close(release)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 2*time.Millisecond)
	r.Stop()
}

func TestRunner_StopWaitsForRunningJob(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var finished atomic.Bool
	r := NewRunner(nil, logger.NewNop())
	require.NoError(t, r.Add(Job{Name: "wait", Interval: time.Hour, RunOnStart: true, Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}}))
	r.Start(t.Context())

	<-started
	r.Stop()
	assert.True(t, finished.Load())
}

func TestRunner_SurvivesFailuresAndPanics(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := NewRunner(nil, logger.NewNop())
	require.NoError(t, r.Add(Job{Name: "flaky", Interval: 2 * time.Millisecond, Run: func(context.Context) error {
		switch calls.Add(1) {
		case 1:
			panic("boom")
		case 2:
			return errors.New("transient")
		}
		return nil
	}}))
	r.Start(t.Context())

	assert.Eventually(t, func() bool { return calls.Load() >= 4 }, 2*time.Second, 2*time.Millisecond)
	r.Stop()
}

func TestRunner_Add(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, logger.NewNop())
	noop := func(context.Context) error { return nil }
	require.Error(t, r.Add(Job{Interval: time.Second, Run: noop}))
	require.Error(t, r.Add(Job{Name: "x", Run: noop}))
	require.Error(t, r.Add(Job{Name: "x", Interval: time.Second}))

	require.NoError(t, r.Add(Job{Name: "x", Interval: time.Hour, Run: noop}))
	r.Start(t.Context())
	require.Error(t, r.Add(Job{Name: "late", Interval: time.Hour, Run: noop}))
	r.Stop()
	r.Stop()
}

func TestRunner_StopWithoutStart(t *testing.T) {
	t.Parallel()
	NewRunner(nil, logger.NewNop()).Stop()
}
