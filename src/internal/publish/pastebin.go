package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PastebinClient 上传完整报告
type PastebinClient struct {
	devKey     string
	expireDate string
	endpoint   string
	httpClient *http.Client
}

// NewPastebinClient endpoint 为空时使用官方 api_post.php
func NewPastebinClient(devKey, expireDate, endpoint string, httpClient *http.Client) (*PastebinClient, error) {
	if devKey == "" {
		return nil, fmt.Errorf("pastebin api key is required")
	}
	if expireDate == "" {
		expireDate = "N"
	}
	if endpoint == "" {
		endpoint = "https://pastebin.com/api/api_post.php"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PastebinClient{devKey: devKey, expireDate: expireDate, endpoint: endpoint, httpClient: httpClient}, nil
}

// Upload 创建公开 paste 并返回 raw 链接
func (c *PastebinClient) Upload(ctx context.Context, title, content string) (string, error) {
	form := url.Values{}
	form.Set("api_dev_key", c.devKey)
	form.Set("api_option", "paste")
	form.Set("api_paste_code", content)
	form.Set("api_paste_name", title)
	form.Set("api_paste_expire_date", c.expireDate)
	form.Set("api_paste_private", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pastebin request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read pastebin response: %w", err)
	}
	text := strings.TrimSpace(string(body))

	if resp.StatusCode != http.StatusOK || strings.HasPrefix(text, "Bad API request") {
		return "", fmt.Errorf("pastebin upload failed (status %d): %s", resp.StatusCode, text)
	}
	if !strings.HasPrefix(text, "http") {
		return "", fmt.Errorf("unexpected pastebin response: %s", text)
	}
	return RawURL(text), nil
}

// RawURL https://pastebin.com/<id> → https://pastebin.com/raw/<id>
func RawURL(pasteURL string) string {
	if strings.HasPrefix(pasteURL, "https://pastebin.com/raw/") {
		return pasteURL
	}
	return strings.Replace(pasteURL, "https://pastebin.com/", "https://pastebin.com/raw/", 1)
}
