package internal

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UserAgent 所有出站 HTTP 请求使用的 User-Agent
const UserAgent = "auditbot/1.0 (+https://certaik.xyz)"

// ProxyManager 为各个 API 客户端创建共享配置的 HTTP 客户端
type ProxyManager struct {
	proxy *url.URL
}

// NewProxyManager proxyURL 为空表示直连
func NewProxyManager(proxyURL string) (*ProxyManager, error) {
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return &ProxyManager{}, nil
	}
	if err := ValidateProxyURL(proxyURL); err != nil {
		return nil, err
	}
	u, _ := url.Parse(proxyURL)
	return &ProxyManager{proxy: u}, nil
}

// CreateHTTPClient 创建带代理和 User-Agent 的 HTTP 客户端
func (pm *ProxyManager) CreateHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: pm.CreateHTTPTransport()},
	}
}

// CreateHTTPTransport 创建带代理的HTTP Transport
func (pm *ProxyManager) CreateHTTPTransport() *http.Transport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     30 * time.Second,
		MaxIdleConnsPerHost: 4,
	}
	if pm.proxy != nil {
		transport.Proxy = http.ProxyURL(pm.proxy)
	}
	return transport
}

// IsEnabled 检查代理是否启用
func (pm *ProxyManager) IsEnabled() bool {
	return pm.proxy != nil
}

// GetProxyURL 获取代理URL（隐藏密码）
func (pm *ProxyManager) GetProxyURL() string {
	if pm.proxy == nil {
		return ""
	}
	return pm.proxy.Redacted()
}

// ValidateProxyURL 验证代理URL格式
func ValidateProxyURL(proxyURL string) error {
	if strings.TrimSpace(proxyURL) == "" {
		return nil // 空字符串表示不使用代理
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5" {
		return fmt.Errorf("unsupported proxy scheme: %s (supported: http, https, socks5)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy host cannot be empty")
	}
	return nil
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.base.RoundTrip(req)
}
