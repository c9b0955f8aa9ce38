package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Llama3PromptTemplate Llama 3 instruct 模型的对话模板
const Llama3PromptTemplate = "<|begin_of_text|><|start_header_id|>system<|end_header_id|>\n\n{system_prompt}<|eot_id|><|start_header_id|>user<|end_header_id|>\n\n{prompt}<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n"

// Replicate 预测状态
const (
	predictionSucceeded = "succeeded"
	predictionFailed    = "failed"
	predictionCanceled  = "canceled"
)

// ReplicateClient 调用 Replicate 官方模型预测接口
type ReplicateClient struct {
	apiToken     string
	baseURL      string
	model        string
	pollInterval time.Duration
	httpClient   *http.Client
}

// ReplicateConfig 配置结构
type ReplicateConfig struct {
	APIToken     string
	BaseURL      string // 默认 "https://api.replicate.com"
	Model        string // owner/name，默认 "meta/meta-llama-3-70b-instruct"
	Timeout      time.Duration
	PollInterval time.Duration
	HTTPClient   *http.Client
}

type replicateInput struct {
	Prompt         string `json:"prompt"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	MaxNewTokens   int    `json:"max_new_tokens,omitempty"`
	PromptTemplate string `json:"prompt_template"`
}

type replicateRequest struct {
	Input replicateInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
	Detail string `json:"detail"` // 错误响应
}

// NewReplicateClient 创建 Replicate 客户端
func NewReplicateClient(cfg ReplicateConfig) (*ReplicateClient, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("Replicate API token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.replicate.com"
	}
	if cfg.Model == "" {
		cfg.Model = "meta/meta-llama-3-70b-instruct"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if !strings.Contains(cfg.Model, "/") {
		return nil, fmt.Errorf("Replicate model must be owner/name, got %q", cfg.Model)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ReplicateClient{
		apiToken:     cfg.APIToken,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		pollInterval: cfg.PollInterval,
		httpClient:   httpClient,
	}, nil
}

// Analyze 创建预测（Prefer: wait），未完成时轮询 urls.get 直到终态
func (c *ReplicateClient) Analyze(ctx context.Context, r Request) (string, error) {
	body, err := json.Marshal(replicateRequest{Input: replicateInput{
		Prompt:         r.Prompt,
		SystemPrompt:   r.SystemPrompt,
		MaxNewTokens:   r.MaxNewTokens,
		PromptTemplate: Llama3PromptTemplate,
	}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s/predictions", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	p, err := c.do(req)
	if err != nil {
		return "", err
	}

	for !terminal(p.Status) {
		if p.URLs.Get == "" {
			return "", fmt.Errorf("prediction %s is %s but has no poll url", p.ID, p.Status)
		}
		slog.Debug("⏳ 等待 Replicate 预测完成", "id", p.ID, "status", p.Status)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URLs.Get, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create poll request: %w", err)
		}
		if p, err = c.do(req); err != nil {
			return "", err
		}
	}

	if p.Status != predictionSucceeded {
		return "", fmt.Errorf("prediction %s %s: %v", p.ID, p.Status, p.Error)
	}

	out, err := joinOutput(p.Output)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

func (c *ReplicateClient) do(req *http.Request) (*prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Replicate API returned status %d: %s", resp.StatusCode, string(body))
	}

	var p prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}
	return &p, nil
}

func terminal(status string) bool {
	return status == predictionSucceeded || status == predictionFailed || status == predictionCanceled
}

// joinOutput 输出可能是字符串，也可能是 token 数组
func joinOutput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unexpected prediction output: %s", string(raw))
	}
	return strings.Join(parts, ""), nil
}

// GetName 返回客户端名称
func (c *ReplicateClient) GetName() string {
	return fmt.Sprintf("Replicate (%s)", c.model)
}

// Close 清理资源
func (c *ReplicateClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
