package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/clock"
	"github.com/admi-n/auditbot/src/internal/coingecko"
	"github.com/admi-n/auditbot/src/internal/contracts"
	"github.com/admi-n/auditbot/src/internal/explorer"
	"github.com/admi-n/auditbot/src/internal/ledger"
	"github.com/admi-n/auditbot/src/internal/metrics"
)

// DiscoverConfig 趋势代币发现流程的依赖
type DiscoverConfig struct {
	Trending TrendingSource
	// Coins 已处理代币的账本（coins 命名空间）
	Coins    ledger.Ledger
	Resolver SourceResolver
	Store    contracts.Store
	// Order 浏览器查询顺序，为空时使用默认顺序
	Order   []string
	Clock   clock.Clock
	Delay   time.Duration
	Metrics *metrics.BotMetrics
}

// Discover 把 CoinGecko 趋势代币的合约源码写入本地记录，供趋势审计使用
type Discover struct {
	cfg DiscoverConfig
}

// NewDiscover 创建趋势代币发现流程
func NewDiscover(cfg DiscoverConfig) (*Discover, error) {
	if cfg.Trending == nil || cfg.Coins == nil || cfg.Resolver == nil || cfg.Store == nil {
		return nil, errors.New("趋势代币发现流程缺少依赖")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.SystemClock{}
	}
	return &Discover{cfg: cfg}, nil
}

// Name 任务名
func (d *Discover) Name() string {
	return JobDiscover
}

// Run 执行一次发现。没有找到源码的代币同样记账，不会重复查询
func (d *Discover) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	if err := d.cfg.Coins.Load(ctx); err != nil {
		return stats, fmt.Errorf("加载代币账本失败: %w", err)
	}
	d.cfg.Metrics.SetLedgerKeys(ledger.NamespaceCoins, d.cfg.Coins.Len())

	coins, err := d.cfg.Trending.Trending(ctx)
	if err != nil {
		return stats, fmt.Errorf("获取趋势代币失败: %w", err)
	}
	stats.Total = len(coins)
	slog.Info("📈 获取到趋势代币", "count", len(coins))

	for i, coin := range coins {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if coin.ID == "" || d.cfg.Coins.Has(coin.ID) {
			stats.Skipped++
			d.cfg.Metrics.Item(JobDiscover, metrics.OutcomeSkipped)
			continue
		}

		slog.Info(fmt.Sprintf("[%d/%d] 🪙 处理趋势代币", i+1, len(coins)), "coin", coin.ID, "name", coin.Name)

		outcome, err := d.discoverOne(ctx, coin)
		d.cfg.Metrics.Item(JobDiscover, outcome)
		if err != nil {
			stats.Failed++
			slog.Error("❌ 处理趋势代币失败", "coin", coin.ID, "error", err)
			continue
		}
		if outcome == metrics.OutcomeNotFound {
			stats.NotFound++
		} else {
			stats.Published++
		}

		if err := d.cfg.Coins.Record(ctx, coin.ID); err != nil {
			return stats, fmt.Errorf("%w: %w", errLedgerWrite, err)
		}
		d.cfg.Metrics.SetLedgerKeys(ledger.NamespaceCoins, d.cfg.Coins.Len())

		if err := d.cfg.Clock.Sleep(ctx, d.cfg.Delay); err != nil {
			return stats, err
		}
	}

	slog.Info("✅ 趋势代币发现完成", "stats", stats.String())
	return stats, nil
}

func (d *Discover) discoverOne(ctx context.Context, coin coingecko.Coin) (string, error) {
	details, err := d.cfg.Trending.Details(ctx, coin.ID)
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	candidates := coingecko.Candidates(details, d.cfg.Order)
	if len(candidates) == 0 {
		slog.Info("⏭️  代币不在支持的链上", "coin", coin.ID)
		d.cfg.Metrics.ResolveMiss("unsupported")
		return metrics.OutcomeNotFound, nil
	}

	for _, c := range candidates {
		res, err := d.cfg.Resolver.ResolveOn(ctx, c.Platform, c.Address)
		if err != nil {
			if !errors.Is(err, explorer.ErrContractNotFound) {
				slog.Warn("⚠️  查询合约源码失败", "coin", coin.ID, "platform", c.Platform, "error", err)
			}
			if ctx.Err() != nil {
				return metrics.OutcomeFailed, ctx.Err()
			}
			continue
		}

		rec := internal.ContractRecord{
			Address:       internal.NormalizeAddress(c.Address),
			SourceCode:    res.SourceCode,
			Platform:      res.Platform,
			TwitterHandle: details.TwitterHandle,
			Coin:          details,
		}
		if err := d.cfg.Store.Save(ctx, rec); err != nil {
			return metrics.OutcomeFailed, fmt.Errorf("保存合约记录失败: %w", err)
		}
		slog.Info("💾 合约记录已保存", "coin", coin.ID, "platform", rec.Platform, "address", rec.Address)
		return metrics.OutcomePublished, nil
	}

	d.cfg.Metrics.ResolveMiss("unverified")
	slog.Info("⏭️  所有候选链上都没有已验证源码", "coin", coin.ID)
	return metrics.OutcomeNotFound, nil
}
