package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/admi-n/auditbot/src/internal"
)

// Backend 单个区块浏览器（Etherscan 兼容 API）
type Backend struct {
	Platform string // 例如 etherscan.io
	APIKey   string
	BaseURL  string // 为空时使用 https://api.<platform>
}

// Endpoint 返回 /api 的完整地址
func (b Backend) Endpoint() (*url.URL, error) {
	base := strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if base == "" {
		base = "https://api." + b.Platform
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("解析 %s BaseURL 失败: %w", b.Platform, err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api"
	return u, nil
}

// SourceResponse getsourcecode 接口的响应
type SourceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		SourceCode      string `json:"SourceCode"`
		ABI             string `json:"ABI"`
		ContractName    string `json:"ContractName"`
		CompilerVersion string `json:"CompilerVersion"`
		Proxy           string `json:"Proxy"`
		Implementation  string `json:"Implementation"`
	} `json:"result"`
}

// Client 浏览器 HTTP 客户端
type Client struct {
	httpClient *http.Client
}

// NewClient 使用默认 20s 超时的 http.Client
func NewClient() *Client {
	return NewClientWithHTTP(&http.Client{Timeout: 20 * time.Second})
}

// NewClientWithHTTP 使用调用方提供的 http.Client（代理、测试）
func NewClientWithHTTP(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// GetContractSource 查询合约源码；未验证的合约返回空字符串和 nil 错误
func (c *Client) GetContractSource(ctx context.Context, b Backend, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("空的地址传入 GetContractSource")
	}

	u, err := b.Endpoint()
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", address)
	q.Set("apikey", strings.TrimSpace(b.APIKey))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("创建 %s 请求失败: %w", b.Platform, err)
	}
	req.Header.Set("User-Agent", internal.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求 %s API 失败: %w", b.Platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取 %s 响应失败: %w", b.Platform, err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		return "", fmt.Errorf("%s 返回非 200 状态: %d, body: %s", b.Platform, resp.StatusCode, snippet)
	}

	var sr SourceResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("解析 %s JSON 失败: %w", b.Platform, err)
	}

	// status != "1" 表示未验证或业务层面的问题，不是网络错误
	if sr.Status != "1" || len(sr.Result) == 0 {
		return "", nil
	}

	return strings.TrimSpace(sr.Result[0].SourceCode), nil
}
