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

// ChatClient OpenAI 兼容的 chat/completions 客户端（OpenAI、DeepSeek）
type ChatClient struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// ChatConfig 配置结构
type ChatConfig struct {
	Name       string // 日志中显示的名称，例如 "OpenAI"
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client // 可选，带代理的客户端
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Usage   Usage     `json:"usage"`
	Error   *APIError `json:"error,omitempty"`
}

// NewOpenAIClient OpenAI 默认配置
func NewOpenAIClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.Name == "" {
		cfg.Name = "OpenAI"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4-turbo"
	}
	return newChatClient(cfg)
}

// NewDeepSeekClient DeepSeek 默认配置（与 OpenAI 兼容）
func NewDeepSeekClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.Name == "" {
		cfg.Name = "DeepSeek"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	return newChatClient(cfg)
}

func newChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Name)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ChatClient{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
	}, nil
}

// Analyze 发送 system + user 消息并返回第一条回复
func (c *ChatClient) Analyze(ctx context.Context, r Request) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: r.SystemPrompt},
			{Role: "user", Content: r.Prompt},
		},
		Temperature: 0.1,
		MaxTokens:   r.MaxNewTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("%s API error: %s (type: %s, code: %s)",
			c.name, apiResp.Error.Message, apiResp.Error.Type, apiResp.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	slog.Debug("📊 Token 使用",
		"prompt", apiResp.Usage.PromptTokens,
		"completion", apiResp.Usage.CompletionTokens,
		"total", apiResp.Usage.TotalTokens)

	content := apiResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// GetName 返回客户端名称
func (c *ChatClient) GetName() string {
	return fmt.Sprintf("%s (%s)", c.name, c.model)
}

// Close 清理资源
func (c *ChatClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
