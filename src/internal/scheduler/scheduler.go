// Package scheduler 在单个 goroutine 中串行运行全部任务
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/admi-n/auditbot/src/internal/clock"
	"github.com/admi-n/auditbot/src/internal/metrics"
)

// Job 一个周期任务。Interval <= 0 的任务只在启动时运行一次
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler 所有任务共用一个 goroutine，同一时刻只有一个任务在运行，账本只有一个写入者
type Scheduler struct {
	jobs       []Job
	jobTimeout time.Duration
	clock      clock.Clock
	metrics    *metrics.BotMetrics
}

// Option 调度器选项
type Option func(*Scheduler)

// WithJobTimeout 单次任务运行的超时
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

// WithClock 替换时间来源（测试用）
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithMetrics 记录任务耗时和结果
func WithMetrics(m *metrics.BotMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New 创建调度器，任务按传入顺序运行
func New(jobs []Job, opts ...Option) *Scheduler {
	s := &Scheduler{jobs: jobs, clock: clock.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce 依次运行每个任务一次，返回全部任务的错误
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runJob(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run 启动时先运行全部任务，之后每个任务按自己的间隔运行，直到 ctx 被取消。
// 任务出错只记录日志，下一次到期时重新开始
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return errors.New("没有可运行的任务")
	}

	slog.Info("⏰ 调度器启动", "jobs", len(s.jobs))
	_ = s.RunOnce(ctx)

	next := make([]time.Time, len(s.jobs))
	now := s.clock.Now()
	for i, job := range s.jobs {
		if job.Interval > 0 {
			next[i] = now.Add(job.Interval)
		}
	}

	for {
		due, ok := earliest(next)
		if !ok {
			slog.Info("⏹️  没有周期任务，调度器退出")
			return nil
		}

		if err := s.clock.Sleep(ctx, due.Sub(s.clock.Now())); err != nil {
			slog.Info("⏹️  调度器停止")
			return nil
		}

		for i, job := range s.jobs {
			if next[i].IsZero() || s.clock.Now().Before(next[i]) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			_ = s.runJob(ctx, job)
			next[i] = s.clock.Now().Add(job.Interval)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	slog.Info("▶️  开始运行任务", "job", job.Name)
	start := s.clock.Now()
	err := job.Run(ctx)
	elapsed := s.clock.Now().Sub(start)
	s.metrics.ObserveJob(job.Name, elapsed, err)

	if err != nil {
		slog.Error("❌ 任务运行失败", "job", job.Name, "elapsed", elapsed, "error", err)
		return err
	}
	slog.Info("✅ 任务运行完成", "job", job.Name, "elapsed", elapsed)
	return nil
}

func earliest(next []time.Time) (time.Time, bool) {
	var (
		first time.Time
		ok    bool
	)
	for _, t := range next {
		if t.IsZero() {
			continue
		}
		if !ok || t.Before(first) {
			first, ok = t, true
		}
	}
	return first, ok
}
