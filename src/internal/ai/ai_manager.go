package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/admi-n/auditbot/src/config"
	"github.com/admi-n/auditbot/src/internal/ai/client"
	"github.com/admi-n/auditbot/src/internal/metrics"
)

// Manager 管理 AI 客户端：限速、串行化请求、记录耗时
type Manager struct {
	client       AIClient
	limiter      *rate.Limiter
	maxNewTokens int
	metrics      *metrics.BotMetrics
	mu           sync.Mutex
}

// ManagerConfig 管理器配置
type ManagerConfig struct {
	Client         AIClient
	RequestsPerMin int
	MaxNewTokens   int
	Metrics        *metrics.BotMetrics
}

// NewManager 创建新的 AI 管理器
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("AI client is required")
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 20
	}

	return &Manager{
		client:       cfg.Client,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMin)), 1),
		maxNewTokens: cfg.MaxNewTokens,
		metrics:      cfg.Metrics,
	}, nil
}

// NewManagerFromSettings 根据配置选择 provider 并创建管理器
func NewManagerFromSettings(s *config.Settings, httpClient *http.Client, m *metrics.BotMetrics) (*Manager, error) {
	if err := s.ValidateAI(); err != nil {
		return nil, err
	}

	cc := AIClientConfig{Provider: s.AI.Provider, Timeout: s.AI.Timeout, HTTPClient: httpClient}
	switch s.AI.Provider {
	case ProviderReplicate:
		cc.APIKey, cc.BaseURL, cc.Model = s.AI.Replicate.APIToken, s.AI.Replicate.BaseURL, s.AI.Replicate.Model
	case ProviderOpenAI:
		cc.APIKey, cc.BaseURL, cc.Model = s.AI.OpenAI.APIKey, s.AI.OpenAI.BaseURL, s.AI.OpenAI.Model
	case ProviderDeepSeek:
		cc.APIKey, cc.BaseURL, cc.Model = s.AI.DeepSeek.APIKey, s.AI.DeepSeek.BaseURL, s.AI.DeepSeek.Model
	case ProviderOllama:
		cc.BaseURL, cc.Model = s.AI.LocalLLM.BaseURL, s.AI.LocalLLM.Model
	}

	c, err := NewAIClient(cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	return NewManager(ManagerConfig{
		Client:         c,
		RequestsPerMin: s.AI.RequestsPerMin,
		MaxNewTokens:   s.AI.MaxNewTokens,
		Metrics:        m,
	})
}

// Complete 等待限速令牌后发送一次补全请求
func (m *Manager) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	slog.Info("🤖 正在生成审计报告", "client", m.client.GetName(), "prompt_chars", len(prompt))

	start := time.Now()
	out, err := m.client.Analyze(ctx, client.Request{
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		MaxNewTokens: m.maxNewTokens,
	})
	duration := time.Since(start)
	m.metrics.ObserveGeneration(duration, err)
	if err != nil {
		return "", fmt.Errorf("AI analysis failed: %w", err)
	}

	slog.Info("✅ 生成完成", "duration", duration.Round(time.Millisecond), "chars", len(out))
	return out, nil
}

// GetClientInfo 当前客户端名称
func (m *Manager) GetClientInfo() string {
	return m.client.GetName()
}

// Close 释放客户端
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// TestConnection 发送一条探测请求
func (m *Manager) TestConnection(ctx context.Context) error {
	slog.Info("🔍 测试 AI 客户端连接...")

	if _, err := m.Complete(ctx, "", "Please respond with 'OK' if you can read this message."); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	slog.Info("✅ AI 客户端连接成功!")
	return nil
}
