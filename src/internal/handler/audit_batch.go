package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/ai/parser"
	"github.com/admi-n/auditbot/src/internal/clock"
	"github.com/admi-n/auditbot/src/internal/contracts"
	"github.com/admi-n/auditbot/src/internal/ledger"
	"github.com/admi-n/auditbot/src/internal/metrics"
	"github.com/admi-n/auditbot/src/internal/publish"
	"github.com/admi-n/auditbot/src/internal/report"
)

// AuditBatchConfig 趋势审计流程的依赖
type AuditBatchConfig struct {
	Store      contracts.Store
	Ledger     ledger.Ledger
	Generator  ReportGenerator
	Summarizer Summarizer
	Reporter   ReportPublisher
	Publisher  publish.Publisher
	// Mirror 可选的镜像频道（Telegram），失败只记录日志
	Mirror  publish.Publisher
	Clock   clock.Clock
	Delay   time.Duration
	Metrics *metrics.BotMetrics
}

// AuditBatch 遍历本地合约记录，逐个审计并发布
type AuditBatch struct {
	cfg AuditBatchConfig
}

// NewAuditBatch 创建趋势审计流程
func NewAuditBatch(cfg AuditBatchConfig) (*AuditBatch, error) {
	if cfg.Store == nil || cfg.Ledger == nil || cfg.Generator == nil ||
		cfg.Summarizer == nil || cfg.Reporter == nil || cfg.Publisher == nil {
		return nil, errors.New("趋势审计流程缺少依赖")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock{}
	}
	return &AuditBatch{cfg: cfg}, nil
}

// Name 任务名
func (b *AuditBatch) Name() string {
	return JobAudit
}

// Run 执行一次完整的批处理。单个合约的失败只记录日志，账本写入失败结束本次运行
func (b *AuditBatch) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	// 1. 加载账本
	if err := b.cfg.Ledger.Load(ctx); err != nil {
		return stats, fmt.Errorf("加载账本失败: %w", err)
	}
	b.cfg.Metrics.SetLedgerKeys(ledger.NamespaceContracts, b.cfg.Ledger.Len())

	// 2. 读取合约记录
	records, err := b.cfg.Store.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("读取合约记录失败: %w", err)
	}
	stats.Total = len(records)
	if len(records) == 0 {
		slog.Info("⚠️  没有找到待审计的合约记录")
		return stats, nil
	}

	slog.Info("🎯 开始趋势审计", "records", len(records))

	// 3. 逐个处理
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key := internal.ContractKey(rec.Address)
		if b.cfg.Ledger.Has(key) {
			stats.Skipped++
			b.cfg.Metrics.Item(JobAudit, metrics.OutcomeSkipped)
			continue
		}
		if !rec.Auditable() {
			slog.Warn("⚠️  合约记录缺少 handle、代币名或源码，跳过", "address", rec.Address, "platform", rec.Platform)
			stats.Skipped++
			b.cfg.Metrics.Item(JobAudit, metrics.OutcomeSkipped)
			continue
		}

		slog.Info(fmt.Sprintf("[%d/%d] 🔍 审计合约", i+1, len(records)), "address", key, "coin", rec.Coin.Name)

		outcome, err := b.auditOne(ctx, key, rec)
		b.cfg.Metrics.Item(JobAudit, outcome)
		switch outcome {
		case metrics.OutcomePublished:
			stats.Published++
		case metrics.OutcomeNoFinding:
			stats.NoFindings++
		default:
			stats.Failed++
		}
		if err != nil {
			if errors.Is(err, errLedgerWrite) {
				return stats, err
			}
			slog.Error("❌ 审计失败", "address", key, "error", err)
			continue
		}
		if outcome != metrics.OutcomePublished {
			continue
		}

		if err := b.cfg.Clock.Sleep(ctx, b.cfg.Delay); err != nil {
			return stats, err
		}
	}

	slog.Info("✅ 趋势审计完成", "stats", stats.String())
	return stats, nil
}

func (b *AuditBatch) auditOne(ctx context.Context, key string, rec internal.ContractRecord) (string, error) {
	body, err := b.cfg.Generator.Generate(ctx, rec.SourceCode)
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	summary, err := b.cfg.Summarizer.Summarize(body)
	if errors.Is(err, parser.ErrNoFindings) {
		slog.Warn("⚠️  报告中没有可统计的问题，跳过发布", "address", key)
		return metrics.OutcomeNoFinding, nil
	}
	if err != nil {
		return metrics.OutcomeFailed, err
	}
	slog.Info("📊 严重程度统计", "address", key, "summary", summary.String(), "simulated", summary.Simulated)

	r := report.NewReport(key, body, b.cfg.Clock.Now())
	r.Platform = rec.Platform
	r.CoinName = rec.Coin.Name
	r.Handle = rec.TwitterHandle
	r.Summary = &summary

	link, err := b.cfg.Reporter.Publish(ctx, r)
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	post := report.TrendingPost(rec.TwitterHandle, rec.Coin.Name, summary, link)
	postID, err := b.cfg.Publisher.Post(ctx, post)
	if err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("发布审计结果失败: %w", err)
	}
	slog.Info("🐦 审计结果已发布", "address", key, "id", postID)

	if b.cfg.Mirror != nil {
		if _, err := b.cfg.Mirror.Post(ctx, post); err != nil {
			slog.Warn("⚠️  镜像频道发送失败", "address", key, "error", err)
		}
	}

	if err := b.cfg.Ledger.Record(ctx, key); err != nil {
		return metrics.OutcomePublished, fmt.Errorf("%w: %w", errLedgerWrite, err)
	}
	b.cfg.Metrics.SetLedgerKeys(ledger.NamespaceContracts, b.cfg.Ledger.Len())
	return metrics.OutcomePublished, nil
}

var errLedgerWrite = errors.New("账本写入失败")
