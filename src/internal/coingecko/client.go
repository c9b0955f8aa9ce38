// Package coingecko 趋势代币与代币详情
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/admi-n/auditbot/src/internal"
)

// DefaultBaseURL 公共 API 地址
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko 平台 id → 区块浏览器
var platformExplorers = map[string]string{
	"ethereum":            internal.PlatformEtherscan,
	"binance-smart-chain": internal.PlatformBscscan,
	"polygon-pos":         internal.PlatformPolygonscan,
	"matic-network":       internal.PlatformPolygonscan,
	"base":                internal.PlatformBasescan,
}

// Coin 趋势列表中的代币
type Coin struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Candidate 可以在某个浏览器上查询源码的合约
type Candidate struct {
	Platform string // 浏览器平台，如 etherscan.io
	Address  string
}

// Client CoinGecko API 客户端
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient apiKey 可为空（公共限额）
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, httpClient: httpClient}
}

// Trending 当前趋势代币
func (c *Client) Trending(ctx context.Context) ([]Coin, error) {
	var out struct {
		Coins []struct {
			Item Coin `json:"item"`
		} `json:"coins"`
	}
	if err := c.get(ctx, "/search/trending", nil, &out); err != nil {
		return nil, err
	}

	coins := make([]Coin, 0, len(out.Coins))
	for _, entry := range out.Coins {
		if entry.Item.ID == "" {
			continue
		}
		coins = append(coins, entry.Item)
	}
	return coins, nil
}

// Details 代币详情：推特账号以及各链上的合约地址
func (c *Client) Details(ctx context.Context, id string) (internal.CoinDetails, error) {
	q := url.Values{}
	for _, k := range []string{"localization", "tickers", "market_data", "community_data", "developer_data", "sparkline"} {
		q.Set(k, "false")
	}

	var out struct {
		ID        string            `json:"id"`
		Name      string            `json:"name"`
		Platforms map[string]string `json:"platforms"`
		Links     struct {
			TwitterScreenName string `json:"twitter_screen_name"`
		} `json:"links"`
	}
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), q, &out); err != nil {
		return internal.CoinDetails{}, err
	}

	platforms := make(map[string]string, len(out.Platforms))
	for k, v := range out.Platforms {
		if v = strings.TrimSpace(v); v != "" {
			platforms[strings.ToLower(k)] = v
		}
	}

	return internal.CoinDetails{
		ID:            out.ID,
		Name:          out.Name,
		TwitterHandle: strings.TrimSpace(out.Links.TwitterScreenName),
		Platforms:     platforms,
	}, nil
}

// Candidates 按浏览器查询顺序返回受支持链上的合约，不支持的链被忽略
func Candidates(details internal.CoinDetails, order []string) []Candidate {
	if len(order) == 0 {
		order = internal.DefaultPlatforms
	}

	var out []Candidate
	seen := make(map[string]bool)
	for _, explorer := range order {
		keys := make([]string, 0, len(details.Platforms))
		for k := range details.Platforms {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			if platformExplorers[k] != explorer || seen[explorer] {
				continue
			}
			out = append(out, Candidate{Platform: explorer, Address: details.Platforms[k]})
			seen[explorer] = true
		}
	}
	return out
}

// ExplorerFor CoinGecko 平台 id 对应的浏览器
func ExplorerFor(platform string) (string, bool) {
	e, ok := platformExplorers[strings.ToLower(platform)]
	return e, ok
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read coingecko response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode coingecko response: %w", err)
	}
	return nil
}
