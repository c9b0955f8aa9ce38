// Package metrics Prometheus 指标
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 条目处理结果标签
const (
	OutcomePublished = "published"
	OutcomeSkipped   = "skipped"
	OutcomeNoFinding = "no_findings"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
)

// BotMetrics 所有方法对 nil 接收者安全，未启用指标时直接传 nil
type BotMetrics struct {
	JobRuns            *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	ItemsProcessed     *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GenerationFailures prometheus.Counter
	ChunksPublished    *prometheus.CounterVec
	ChunkFailures      *prometheus.CounterVec
	ResolveMisses      *prometheus.CounterVec
	LedgerKeys         *prometheus.GaugeVec
}

// NewBotMetrics 创建指标并注册到 reg
func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbot_job_runs_total",
			Help: "Total number of scheduled job runs by job and result",
		}, []string{"job", "result"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditbot_job_duration_seconds",
			Help:    "Duration of a full job run in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"job"}),
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbot_items_processed_total",
			Help: "Total number of work items handled by job and outcome",
		}, []string{"job", "outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auditbot_report_generation_duration_seconds",
			Help:    "Time taken by the language model to produce a report",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		GenerationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditbot_report_generation_failures_total",
			Help: "Total number of failed report generations",
		}),
		ChunksPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbot_chunks_published_total",
			Help: "Total number of message chunks delivered per channel",
		}, []string{"channel"}),
		ChunkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbot_chunk_failures_total",
			Help: "Total number of aborted chunked publications per channel",
		}, []string{"channel"}),
		ResolveMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditbot_resolve_misses_total",
			Help: "Total number of addresses no explorer could resolve, by reason",
		}, []string{"reason"}),
		LedgerKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "auditbot_ledger_keys",
			Help: "Number of keys recorded in each ledger namespace",
		}, []string{"namespace"}),
	}

	reg.MustRegister(
		m.JobRuns, m.JobDuration, m.ItemsProcessed,
		m.GenerationDuration, m.GenerationFailures,
		m.ChunksPublished, m.ChunkFailures,
		m.ResolveMisses, m.LedgerKeys,
	)
	return m
}

// ObserveJob 记录一次任务运行
func (m *BotMetrics) ObserveJob(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// Item 记录一个条目的处理结果
func (m *BotMetrics) Item(job, outcome string) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(job, outcome).Inc()
}

// ObserveGeneration 记录一次报告生成
func (m *BotMetrics) ObserveGeneration(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.GenerationFailures.Inc()
		return
	}
	m.GenerationDuration.Observe(d.Seconds())
}

// Chunks 记录发布结果
func (m *BotMetrics) Chunks(channel string, delivered int, failed bool) {
	if m == nil {
		return
	}
	m.ChunksPublished.WithLabelValues(channel).Add(float64(delivered))
	if failed {
		m.ChunkFailures.WithLabelValues(channel).Inc()
	}
}

// ResolveMiss 记录未解析到源码的地址
func (m *BotMetrics) ResolveMiss(reason string) {
	if m == nil {
		return
	}
	m.ResolveMisses.WithLabelValues(reason).Inc()
}

// SetLedgerKeys 更新账本键数量
func (m *BotMetrics) SetLedgerKeys(namespace string, n int) {
	if m == nil {
		return
	}
	m.LedgerKeys.WithLabelValues(namespace).Set(float64(n))
}

// Serve 在 addr 上暴露 /metrics，ctx 取消时关闭
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("📈 Metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
