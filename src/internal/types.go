package internal

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// 支持的区块浏览器平台（同时也是 data/<platform>/ 目录名）
const (
	PlatformEtherscan   = "etherscan.io"
	PlatformBscscan     = "bscscan.com"
	PlatformPolygonscan = "polygonscan.com"
	PlatformBasescan    = "basescan.org"
)

// DefaultPlatforms 默认的浏览器查询顺序
var DefaultPlatforms = []string{
	PlatformEtherscan,
	PlatformBasescan,
	PlatformBscscan,
	PlatformPolygonscan,
}

// CoinDetails CoinGecko 代币元数据
type CoinDetails struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	TwitterHandle string            `json:"twitterHandle,omitempty"`
	Platforms     map[string]string `json:"platforms,omitempty"`
}

// ContractRecord 已解析到源码的合约记录，写入后不再修改
type ContractRecord struct {
	Address       string      `json:"contractAddress"`
	SourceCode    string      `json:"contractSourceCode"`
	Platform      string      `json:"platform,omitempty"`
	TwitterHandle string      `json:"twitterHandle"`
	Coin          CoinDetails `json:"coinDetails"`
}

// Auditable 记录是否具备审计和发布所需的全部字段
func (r ContractRecord) Auditable() bool {
	return strings.TrimSpace(r.TwitterHandle) != "" &&
		strings.TrimSpace(r.Coin.Name) != "" &&
		strings.TrimSpace(r.SourceCode) != ""
}

// NormalizeAddress 将地址转为 EIP-55 校验和格式，非十六进制地址原样返回（去空白）
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}

// ContractKey 趋势审计流程的去重键
func ContractKey(addr string) string {
	return NormalizeAddress(addr)
}

// MentionKey 提及回复流程的去重键: address-handle
func MentionKey(addr, handle string) string {
	return fmt.Sprintf("%s-%s", NormalizeAddress(addr), strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@")))
}

// CanonicalKey 把任意来源的去重键规范成 ContractKey/MentionKey 的形式。
// 旧账本文件里原始大小写的 address 或 address-handle 也会映射到同一个键，其他键原样返回
func CanonicalKey(key string) string {
	key = strings.TrimSpace(key)
	if common.IsHexAddress(key) {
		return NormalizeAddress(key)
	}
	i := strings.LastIndex(key, "-")
	if i <= 0 || !common.IsHexAddress(key[:i]) {
		return key
	}
	return MentionKey(key[:i], key[i+1:])
}
