package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrContractNotFound 所有支持的链上都没有已验证源码，属于常规结果而不是故障
var ErrContractNotFound = errors.New("在所有支持的链上均未找到已验证源码")

// Resolution 解析结果
type Resolution struct {
	Platform   string
	SourceCode string
}

// SourceFetcher 获取单个浏览器上的源码
type SourceFetcher interface {
	GetContractSource(ctx context.Context, b Backend, address string) (string, error)
}

// Resolver 按固定顺序依次查询浏览器，第一个返回非空源码的获胜
type Resolver struct {
	fetcher  SourceFetcher
	backends []Backend
}

// NewResolver backends 的顺序即查询顺序
func NewResolver(fetcher SourceFetcher, backends []Backend) *Resolver {
	return &Resolver{fetcher: fetcher, backends: backends}
}

// Platforms 返回配置的平台顺序
func (r *Resolver) Platforms() []string {
	out := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		out = append(out, b.Platform)
	}
	return out
}

// Resolve 查询全部浏览器。未配置 key 的浏览器被跳过，单个浏览器出错只记录日志
func (r *Resolver) Resolve(ctx context.Context, address string) (Resolution, error) {
	for _, b := range r.backends {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}

		res, err := r.try(ctx, b, address)
		if err != nil {
			continue
		}
		if res.SourceCode != "" {
			return res, nil
		}
	}
	return Resolution{}, fmt.Errorf("%w: %s", ErrContractNotFound, address)
}

// ResolveOn 只在指定平台上查询
func (r *Resolver) ResolveOn(ctx context.Context, platform, address string) (Resolution, error) {
	for _, b := range r.backends {
		if !strings.EqualFold(b.Platform, platform) {
			continue
		}
		res, err := r.try(ctx, b, address)
		if err != nil {
			return Resolution{}, err
		}
		if res.SourceCode != "" {
			return res, nil
		}
		break
	}
	return Resolution{}, fmt.Errorf("%w: %s on %s", ErrContractNotFound, address, platform)
}

func (r *Resolver) try(ctx context.Context, b Backend, address string) (Resolution, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		slog.Debug("⏭️  未配置浏览器 API key，跳过", "platform", b.Platform)
		return Resolution{}, nil
	}

	source, err := r.fetcher.GetContractSource(ctx, b, address)
	if err != nil {
		slog.Warn("⚠️  浏览器查询失败", "platform", b.Platform, "address", address, "error", err)
		return Resolution{}, err
	}
	if source == "" {
		slog.Debug("浏览器上没有已验证源码", "platform", b.Platform, "address", address)
		return Resolution{}, nil
	}

	slog.Info("✅ 找到合约源码", "platform", b.Platform, "address", address)
	return Resolution{Platform: b.Platform, SourceCode: source}, nil
}
