package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/chain"
	"github.com/admi-n/auditbot/src/internal/clock"
	"github.com/admi-n/auditbot/src/internal/explorer"
	"github.com/admi-n/auditbot/src/internal/ledger"
	"github.com/admi-n/auditbot/src/internal/metrics"
	"github.com/admi-n/auditbot/src/internal/publish"
	"github.com/admi-n/auditbot/src/internal/report"
)

// MentionWindow 每次运行只看最近一小时的提及
const MentionWindow = time.Hour

var addressToken = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)

// MentionsConfig 提及回复流程的依赖
type MentionsConfig struct {
	Handle     string
	Source     MentionSource
	Ledger     ledger.Ledger
	Resolver   SourceResolver
	Classifier NotFoundClassifier
	Generator  ReportGenerator
	Reporter   ReportPublisher
	Publisher  publish.Publisher
	Clock      clock.Clock
	Delay      time.Duration
	Metrics    *metrics.BotMetrics
}

// Mentions 回复请求审计的提及推文
type Mentions struct {
	cfg MentionsConfig
}

// NewMentions 创建提及回复流程
func NewMentions(cfg MentionsConfig) (*Mentions, error) {
	cfg.Handle = strings.TrimPrefix(strings.TrimSpace(cfg.Handle), "@")
	if cfg.Handle == "" {
		return nil, errors.New("提及回复流程需要 twitter handle")
	}
	if cfg.Source == nil || cfg.Ledger == nil || cfg.Resolver == nil ||
		cfg.Generator == nil || cfg.Reporter == nil || cfg.Publisher == nil {
		return nil, errors.New("提及回复流程缺少依赖")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock{}
	}
	return &Mentions{cfg: cfg}, nil
}

// Name 任务名
func (m *Mentions) Name() string {
	return JobMentions
}

// Mention 一条有效的审计请求
type Mention struct {
	TweetID string
	Address string
	Handle  string
}

// ExtractAddress 推文同时包含地址和 "audit" 时返回地址
func ExtractAddress(text string) (string, bool) {
	if !strings.Contains(strings.ToLower(text), "audit") {
		return "", false
	}
	addr := addressToken.FindString(text)
	return addr, addr != ""
}

// Run 执行一次提及回复
func (m *Mentions) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	if err := m.cfg.Ledger.Load(ctx); err != nil {
		return stats, fmt.Errorf("加载账本失败: %w", err)
	}

	since := m.cfg.Clock.Now().Add(-MentionWindow)
	tweets, err := m.cfg.Source.SearchRecent(ctx, "@"+m.cfg.Handle, since)
	if err != nil {
		return stats, fmt.Errorf("搜索提及失败: %w", err)
	}
	slog.Info("📬 获取到提及", "count", len(tweets), "since", since.Format(time.RFC3339))

	for _, tw := range tweets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		addr, ok := ExtractAddress(tw.Text)
		if !ok {
			continue
		}
		stats.Total++

		mention, err := m.toMention(ctx, tw, addr)
		if err != nil {
			slog.Error("❌ 获取提及作者失败", "tweet", tw.ID, "error", err)
			stats.Failed++
			m.cfg.Metrics.Item(JobMentions, metrics.OutcomeFailed)
			continue
		}

		key := internal.MentionKey(mention.Address, mention.Handle)
		if m.cfg.Ledger.Has(key) {
			stats.Skipped++
			m.cfg.Metrics.Item(JobMentions, metrics.OutcomeSkipped)
			continue
		}

		slog.Info("🔍 处理审计请求", "address", mention.Address, "handle", mention.Handle, "tweet", mention.TweetID)

		outcome, err := m.handle(ctx, mention)
		m.cfg.Metrics.Item(JobMentions, outcome)
		if err != nil {
			stats.Failed++
			slog.Error("❌ 回复审计请求失败", "address", mention.Address, "tweet", mention.TweetID, "error", err)
			continue
		}
		if outcome == metrics.OutcomeNotFound {
			stats.NotFound++
		} else {
			stats.Published++
		}

		if err := m.cfg.Ledger.Record(ctx, key); err != nil {
			return stats, fmt.Errorf("%w: %w", errLedgerWrite, err)
		}
		m.cfg.Metrics.SetLedgerKeys(ledger.NamespaceContracts, m.cfg.Ledger.Len())

		if err := m.cfg.Clock.Sleep(ctx, m.cfg.Delay); err != nil {
			return stats, err
		}
	}

	slog.Info("✅ 提及回复完成", "stats", stats.String())
	return stats, nil
}

func (m *Mentions) toMention(ctx context.Context, tw publish.Tweet, addr string) (Mention, error) {
	handle := tw.AuthorUsername
	if handle == "" {
		u, err := m.cfg.Source.User(ctx, tw.AuthorID)
		if err != nil {
			return Mention{}, err
		}
		handle = u.Username
	}
	return Mention{
		TweetID: tw.ID,
		Address: internal.NormalizeAddress(addr),
		Handle:  handle,
	}, nil
}

// handle 成功（包括不支持的链）时返回 nil，调用方负责记账
func (m *Mentions) handle(ctx context.Context, mention Mention) (string, error) {
	res, err := m.cfg.Resolver.Resolve(ctx, mention.Address)
	if errors.Is(err, explorer.ErrContractNotFound) {
		reason := chain.ReasonUnknown
		if m.cfg.Classifier != nil {
			reason = m.cfg.Classifier.Classify(ctx, mention.Address)
		}
		m.cfg.Metrics.ResolveMiss(reason)
		slog.Warn("⚠️  所有浏览器均未找到源码", "address", mention.Address, "reason", reason)

		if _, err := m.cfg.Publisher.Reply(ctx, report.UnsupportedReply(mention.Handle), mention.TweetID); err != nil {
			return metrics.OutcomeFailed, fmt.Errorf("回复不支持的链失败: %w", err)
		}
		return metrics.OutcomeNotFound, nil
	}
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	body, err := m.cfg.Generator.Generate(ctx, res.SourceCode)
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	r := report.NewReport(mention.Address, body, m.cfg.Clock.Now())
	r.Platform = res.Platform
	r.Handle = mention.Handle
	link, err := m.cfg.Reporter.Publish(ctx, r)
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	id, err := m.cfg.Publisher.Reply(ctx, report.MentionReply(mention.Handle, link), mention.TweetID)
	if err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("回复提及失败: %w", err)
	}
	slog.Info("💬 已回复审计请求", "address", mention.Address, "reply", id)
	return metrics.OutcomePublished, nil
}
