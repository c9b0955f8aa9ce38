package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/internal/metrics"
	"github.com/admi-n/auditbot/src/internal/scheduler"
)

// fakeClock Sleep 直接推进时间，达到 limit 次后取消 ctx
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
	limit  int
	cancel context.CancelFunc
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps++
	if c.sleeps > c.limit {
		c.mu.Unlock()
		c.cancel()
		return ctx.Err()
	}
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

type recorder struct {
	mu   sync.Mutex
	runs []string
}

func (r *recorder) job(name string, interval time.Duration, err error) scheduler.Job {
	return scheduler.Job{
		Name:     name,
		Interval: interval,
		Run: func(context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.runs = append(r.runs, name)
			return err
		},
	}
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, run := range r.runs {
		if run == name {
			n++
		}
	}
	return n
}

func TestRunOnceRunsJobsInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New([]scheduler.Job{
		rec.job("discover", 3*time.Hour, nil),
		rec.job("audit", 10*time.Minute, nil),
		rec.job("mentions", 10*time.Minute, nil),
	})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"discover", "audit", "mentions"}, rec.runs)
}

func TestRunOnceReportsEveryFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	rec := &recorder{}
	s := scheduler.New([]scheduler.Job{
		rec.job("audit", time.Minute, boom),
		rec.job("mentions", time.Minute, nil),
	})

	err := s.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "audit")
	assert.Equal(t, 1, rec.count("mentions"), "a failing job does not stop the others")
}

func TestRunFollowsEachJobInterval(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 18 次等待正好覆盖 3 小时
	clk := &fakeClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), limit: 18, cancel: cancel}
	reg := prometheus.NewRegistry()
	m := metrics.NewBotMetrics(reg)

	rec := &recorder{}
	s := scheduler.New([]scheduler.Job{
		rec.job("audit", 10*time.Minute, nil),
		rec.job("discover", 3*time.Hour, errors.New("coingecko down")),
	}, scheduler.WithClock(clk), scheduler.WithMetrics(m), scheduler.WithJobTimeout(time.Minute))

	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 19, rec.count("audit"), "startup run plus one per 10 minutes")
	assert.Equal(t, 2, rec.count("discover"), "startup run plus one after 3 hours")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("discover", "error")))
	assert.Equal(t, 19.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("audit", "ok")))
}

func TestRunWithoutIntervalsExitsAfterStartup(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := scheduler.New([]scheduler.Job{rec.job("audit", 0, nil)})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, rec.count("audit"))
}

func TestRunRequiresJobs(t *testing.T) {
	t.Parallel()

	require.Error(t, scheduler.New(nil).Run(context.Background()))
}

func TestJobTimeoutIsApplied(t *testing.T) {
	t.Parallel()

	var deadline time.Time
	s := scheduler.New([]scheduler.Job{{
		Name: "audit",
		Run: func(ctx context.Context) error {
			deadline, _ = ctx.Deadline()
			return nil
		},
	}}, scheduler.WithJobTimeout(time.Hour))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.WithinDuration(t, time.Now().Add(time.Hour), deadline, time.Minute)
}
