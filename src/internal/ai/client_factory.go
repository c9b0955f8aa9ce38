package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/admi-n/auditbot/src/internal/ai/client"
)

// 支持的 provider
const (
	ProviderReplicate = "replicate"
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderOllama    = "ollama"
)

// AIClient 定义所有 AI 客户端必须实现的接口
type AIClient interface {
	Analyze(ctx context.Context, r client.Request) (string, error)
	GetName() string
	Close() error
}

// AIClientConfig 客户端配置
type AIClientConfig struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewAIClient 根据 provider 创建对应的 AI 客户端
func NewAIClient(cfg AIClientConfig) (AIClient, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	switch cfg.Provider {
	case ProviderReplicate, "":
		return client.NewReplicateClient(client.ReplicateConfig{
			APIToken:   cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
		})

	case ProviderOpenAI, "chatgpt5", "gpt4":
		return client.NewOpenAIClient(client.ChatConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
		})

	case ProviderDeepSeek:
		return client.NewDeepSeekClient(client.ChatConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
		})

	case ProviderOllama, "local-llm":
		return client.NewLocalLLMClient(client.LocalLLMConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s (supported: replicate, openai, deepseek, ollama)", cfg.Provider)
	}
}

// ValidateProvider 验证提供商名称是否有效
func ValidateProvider(provider string) error {
	switch provider {
	case ProviderReplicate, ProviderOpenAI, ProviderDeepSeek, ProviderOllama, "chatgpt5", "gpt4", "local-llm":
		return nil
	}
	return fmt.Errorf("invalid provider '%s', must be one of: replicate, openai, deepseek, ollama", provider)
}
