package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// 未找到源码时的分类
const (
	ReasonUnverified  = "unverified"  // 以太坊上有字节码但浏览器没有源码
	ReasonUnsupported = "unsupported" // 以太坊上没有字节码，可能在不支持的链上
	ReasonUnknown     = "unknown"     // 未配置 RPC 或查询失败
)

// CodeReader ethclient.Client 的子集
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Inspector 通过 RPC 检查地址上是否部署了合约
type Inspector struct {
	reader CodeReader
	closer func()
}

// NewInspector 使用已有的 CodeReader
func NewInspector(reader CodeReader) *Inspector {
	return &Inspector{reader: reader}
}

// Dial 连接以太坊节点
func Dial(ctx context.Context, rpcURL string) (*Inspector, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	slog.Info("✅ 成功连接到以太坊节点", "rpc", redact(rpcURL))
	return &Inspector{reader: client, closer: client.Close}, nil
}

// HasCode 地址在最新区块上是否有字节码
func (i *Inspector) HasCode(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("无效的地址: %s", address)
	}
	code, err := i.reader.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, fmt.Errorf("获取合约字节码失败: %w", err)
	}
	return len(code) > 0, nil
}

// Classify 为 NotFound 结果打标签；i 为 nil 时返回 ReasonUnknown
func (i *Inspector) Classify(ctx context.Context, address string) string {
	if i == nil {
		return ReasonUnknown
	}
	ok, err := i.HasCode(ctx, address)
	if err != nil {
		slog.Debug("字节码检查失败", "address", address, "error", err)
		return ReasonUnknown
	}
	if ok {
		return ReasonUnverified
	}
	return ReasonUnsupported
}

// Close 关闭 RPC 连接
func (i *Inspector) Close() {
	if i != nil && i.closer != nil {
		i.closer()
	}
}

// redact 隐藏 RPC URL 路径中的 key
func redact(rpcURL string) string {
	if idx := strings.Index(rpcURL, "://"); idx >= 0 {
		rest := rpcURL[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			return rpcURL[:idx+3+slash] + "/***"
		}
	}
	return rpcURL
}
