// Package handler 三个工作流：趋势审计、提及回复、趋势代币发现
package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/ai/parser"
	"github.com/admi-n/auditbot/src/internal/coingecko"
	"github.com/admi-n/auditbot/src/internal/explorer"
	"github.com/admi-n/auditbot/src/internal/publish"
	"github.com/admi-n/auditbot/src/internal/report"
)

// 任务名，同时用作日志字段和指标标签
const (
	JobAudit    = "audit"
	JobMentions = "mentions"
	JobDiscover = "discover"
)

// ReportGenerator 源码 -> 审计报告原文
type ReportGenerator interface {
	Generate(ctx context.Context, sourceCode string) (string, error)
}

// Summarizer 报告原文 -> 严重程度统计
type Summarizer interface {
	Summarize(report string) (parser.AuditSummary, error)
}

// ReportPublisher 上传报告并返回公开链接
type ReportPublisher interface {
	Publish(ctx context.Context, r *report.Report) (string, error)
}

// SourceResolver 在区块浏览器上查找已验证源码
type SourceResolver interface {
	Resolve(ctx context.Context, address string) (explorer.Resolution, error)
	ResolveOn(ctx context.Context, platform, address string) (explorer.Resolution, error)
}

// MentionSource 最近的提及推文
type MentionSource interface {
	SearchRecent(ctx context.Context, query string, since time.Time) ([]publish.Tweet, error)
	User(ctx context.Context, id string) (publish.User, error)
}

// NotFoundClassifier 为找不到源码的地址打标签
type NotFoundClassifier interface {
	Classify(ctx context.Context, address string) string
}

// TrendingSource 趋势代币来源
type TrendingSource interface {
	Trending(ctx context.Context) ([]coingecko.Coin, error)
	Details(ctx context.Context, id string) (internal.CoinDetails, error)
}

// RunStats 单次运行的统计
type RunStats struct {
	Total      int
	Skipped    int
	Published  int
	NoFindings int
	NotFound   int
	Failed     int
}

func (s RunStats) String() string {
	return fmt.Sprintf("total=%d published=%d skipped=%d no_findings=%d not_found=%d failed=%d",
		s.Total, s.Published, s.Skipped, s.NoFindings, s.NotFound, s.Failed)
}
