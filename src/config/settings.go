package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrConfigMissing 缺少必需的凭据或配置项
var ErrConfigMissing = errors.New("缺少必需配置")

// DefaultSettingsPath 默认配置文件位置
const DefaultSettingsPath = "src/config/settings.yaml"

// AIConfig AI 相关配置
type AIConfig struct {
	Provider       string        `yaml:"provider" env:"AI_PROVIDER"` // replicate | openai | deepseek | ollama
	RequestsPerMin int           `yaml:"requests_per_min" env:"AI_REQUESTS_PER_MIN"`
	Timeout        time.Duration `yaml:"timeout" env:"AI_TIMEOUT"`
	MaxNewTokens   int           `yaml:"max_new_tokens" env:"AI_MAX_NEW_TOKENS"`

	Replicate struct {
		APIToken string `yaml:"api_token" env:"REPLICATE_API_TOKEN"`
		BaseURL  string `yaml:"base_url"`
		Model    string `yaml:"model" env:"REPLICATE_MODEL"` // 默认 meta/meta-llama-3-70b-instruct
	} `yaml:"replicate"`

	OpenAI struct {
		APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"openai"`

	DeepSeek struct {
		APIKey  string `yaml:"api_key" env:"DEEPSEEK_API_KEY"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"deepseek"`

	LocalLLM struct {
		BaseURL string `yaml:"base_url" env:"OLLAMA_BASE_URL"`
		Model   string `yaml:"model"`
	} `yaml:"local_llm"`
}

// ExplorerKey 单个浏览器的 key 与可选的自定义地址
type ExplorerKey struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"` // 为空时使用 https://api.<platform>
}

// ExplorerConfig 区块浏览器配置
type ExplorerConfig struct {
	Order       []string      `yaml:"order"`
	Timeout     time.Duration `yaml:"timeout"`
	Etherscan   ExplorerKey   `yaml:"etherscan" envPrefix:"ETHERSCAN_"`
	Bscscan     ExplorerKey   `yaml:"bscscan" envPrefix:"BSCSCAN_"`
	Polygonscan ExplorerKey   `yaml:"polygonscan" envPrefix:"POLYGONSCAN_"`
	Basescan    ExplorerKey   `yaml:"basescan" envPrefix:"BASESCAN_"`
}

// TwitterConfig Twitter v2 凭据（OAuth 1.0a 用户上下文）
type TwitterConfig struct {
	APIKey       string `yaml:"api_key" env:"TWITTER_API_KEY"`
	APISecret    string `yaml:"api_secret" env:"TWITTER_API_SECRET"`
	AccessToken  string `yaml:"access_token" env:"TWITTER_ACCESS_TOKEN"`
	AccessSecret string `yaml:"access_secret" env:"TWITTER_ACCESS_SECRET"`
	Handle       string `yaml:"handle" env:"TWITTER_HANDLE"`
	BaseURL      string `yaml:"base_url"`
	ChunkLimit   int    `yaml:"chunk_limit"`
}

// PastebinConfig 报告托管
type PastebinConfig struct {
	APIKey     string `yaml:"api_key" env:"PASTEBIN_API_KEY"`
	BaseURL    string `yaml:"base_url"`
	ExpireDate string `yaml:"expire_date"` // N | 10M | 1H | 1D | 1W | 2W | 1M | 6M | 1Y
}

// TelegramConfig 趋势审计结果的镜像频道，可选
type TelegramConfig struct {
	BotToken   string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID     string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	BaseURL    string `yaml:"base_url"`
	ChunkLimit int    `yaml:"chunk_limit"`
}

// CoinGeckoConfig 趋势代币来源
type CoinGeckoConfig struct {
	APIKey  string `yaml:"api_key" env:"COINGECKO_API_KEY"`
	BaseURL string `yaml:"base_url"`
}

// StorageConfig 去重账本与合约记录存储
type StorageConfig struct {
	LedgerBackend    string `yaml:"ledger_backend" env:"LEDGER_BACKEND"` // file | sqlite | mysql | postgres
	LedgerDSN        string `yaml:"ledger_dsn" env:"LEDGER_DSN"`
	LedgerDir        string `yaml:"ledger_dir"`
	ContractsBackend string `yaml:"contracts_backend" env:"CONTRACTS_BACKEND"` // file | sqlite | mysql
	ContractsDSN     string `yaml:"contracts_dsn" env:"CONTRACTS_DSN"`
	DataDir          string `yaml:"data_dir"`
	ReportsDir       string `yaml:"reports_dir"`
}

// ScheduleConfig 各任务的运行间隔以及每个单元之后的固定延迟
type ScheduleConfig struct {
	AuditInterval    time.Duration `yaml:"audit_interval"`
	MentionsInterval time.Duration `yaml:"mentions_interval"`
	DiscoverInterval time.Duration `yaml:"discover_interval"`
	ItemDelay        time.Duration `yaml:"item_delay"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
}

// SummarizerConfig 报告解析方言需与提示词模板保持一致
type SummarizerConfig struct {
	Dialect          string `yaml:"dialect"` // atx | bold
	TemplatePath     string `yaml:"template_path"`
	MaxInputChars    int    `yaml:"max_input_chars"`
	SimulateFindings bool   `yaml:"simulate_findings" env:"SIMULATE_FINDINGS"`
}

// Settings 全局配置结构
type Settings struct {
	AI         AIConfig         `yaml:"ai"`
	Explorer   ExplorerConfig   `yaml:"explorer"`
	Twitter    TwitterConfig    `yaml:"twitter"`
	Pastebin   PastebinConfig   `yaml:"pastebin"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	CoinGecko  CoinGeckoConfig  `yaml:"coingecko"`
	Storage    StorageConfig    `yaml:"storage"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Summarizer SummarizerConfig `yaml:"summarizer"`

	RPC struct {
		Ethereum string `yaml:"ethereum" env:"ETH_RPC_URL"`
	} `yaml:"rpc"`

	Log struct {
		Level         string `yaml:"level" env:"LOG_LEVEL"`
		HumanFriendly bool   `yaml:"human_friendly" env:"LOG_HUMAN_FRIENDLY"`
	} `yaml:"log"`

	Metrics struct {
		Addr string `yaml:"addr" env:"METRICS_ADDR"` // 为空时不启动 /metrics
	} `yaml:"metrics"`

	Proxy string `yaml:"proxy" env:"HTTP_PROXY_URL"`
}

// LoadSettings 读取 yaml 配置并用环境变量覆盖；path 为空时只使用默认值和环境变量。
// 文件不存在时返回的错误满足 errors.Is(err, os.ErrNotExist)
func LoadSettings(path string) (*Settings, error) {
	var s Settings

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	s.ApplyDefaults()
	return &s, nil
}

// ApplyDefaults 填充未配置的字段
func (s *Settings) ApplyDefaults() {
	if s.AI.Provider == "" {
		s.AI.Provider = "replicate"
	}
	if s.AI.RequestsPerMin <= 0 {
		s.AI.RequestsPerMin = 20
	}
	if s.AI.Timeout == 0 {
		s.AI.Timeout = 5 * time.Minute
	}
	if s.AI.MaxNewTokens <= 0 {
		s.AI.MaxNewTokens = 1024
	}
	if s.AI.Replicate.Model == "" {
		s.AI.Replicate.Model = "meta/meta-llama-3-70b-instruct"
	}

	if len(s.Explorer.Order) == 0 {
		s.Explorer.Order = []string{"etherscan.io", "basescan.org", "bscscan.com", "polygonscan.com"}
	}
	if s.Explorer.Timeout == 0 {
		s.Explorer.Timeout = 20 * time.Second
	}

	if s.Twitter.ChunkLimit <= 0 {
		s.Twitter.ChunkLimit = 280
	}
	if s.Telegram.ChunkLimit <= 0 {
		s.Telegram.ChunkLimit = 4096
	}
	if s.Pastebin.ExpireDate == "" {
		s.Pastebin.ExpireDate = "N"
	}

	if s.Storage.LedgerBackend == "" {
		s.Storage.LedgerBackend = "file"
	}
	if s.Storage.LedgerDir == "" {
		s.Storage.LedgerDir = "data"
	}
	if s.Storage.ContractsBackend == "" {
		s.Storage.ContractsBackend = "file"
	}
	if s.Storage.DataDir == "" {
		s.Storage.DataDir = "data"
	}
	if s.Storage.ReportsDir == "" {
		s.Storage.ReportsDir = "reports"
	}

	if s.Schedule.AuditInterval == 0 {
		s.Schedule.AuditInterval = 10 * time.Minute
	}
	if s.Schedule.MentionsInterval == 0 {
		s.Schedule.MentionsInterval = 10 * time.Minute
	}
	if s.Schedule.DiscoverInterval == 0 {
		s.Schedule.DiscoverInterval = 3 * time.Hour
	}
	if s.Schedule.ItemDelay == 0 {
		s.Schedule.ItemDelay = 2 * time.Second
	}
	if s.Schedule.JobTimeout == 0 {
		s.Schedule.JobTimeout = time.Hour
	}

	if s.Summarizer.Dialect == "" {
		s.Summarizer.Dialect = "atx"
	}
	if s.Summarizer.TemplatePath == "" {
		s.Summarizer.TemplatePath = "src/strategy/prompts/audit/atx.md"
	}
	if s.Summarizer.MaxInputChars <= 0 {
		s.Summarizer.MaxInputChars = 25000
	}

	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
}

// ExplorerBackend 按查询顺序展开后的单个浏览器配置
type ExplorerBackend struct {
	Platform string
	APIKey   string
	BaseURL  string
}

// ExplorerBackends 按 Order 返回浏览器列表，未知平台被忽略
func (s *Settings) ExplorerBackends() []ExplorerBackend {
	keys := map[string]ExplorerKey{
		"etherscan.io":    s.Explorer.Etherscan,
		"bscscan.com":     s.Explorer.Bscscan,
		"polygonscan.com": s.Explorer.Polygonscan,
		"basescan.org":    s.Explorer.Basescan,
	}

	var out []ExplorerBackend
	for _, p := range s.Explorer.Order {
		p = strings.ToLower(strings.TrimSpace(p))
		k, ok := keys[p]
		if !ok {
			continue
		}
		out = append(out, ExplorerBackend{Platform: p, APIKey: strings.TrimSpace(k.APIKey), BaseURL: k.BaseURL})
	}
	return out
}

// HasExplorerKey 至少配置了一个浏览器 key
func (s *Settings) HasExplorerKey() bool {
	for _, b := range s.ExplorerBackends() {
		if b.APIKey != "" {
			return true
		}
	}
	return false
}

// ValidateAI 检查所选 AI 提供商的凭据
func (s *Settings) ValidateAI() error {
	switch s.AI.Provider {
	case "replicate":
		if s.AI.Replicate.APIToken == "" {
			return missing("ai.replicate.api_token", "REPLICATE_API_TOKEN")
		}
	case "openai":
		if s.AI.OpenAI.APIKey == "" {
			return missing("ai.openai.api_key", "OPENAI_API_KEY")
		}
	case "deepseek":
		if s.AI.DeepSeek.APIKey == "" {
			return missing("ai.deepseek.api_key", "DEEPSEEK_API_KEY")
		}
	case "ollama":
	default:
		return fmt.Errorf("不支持的 AI 提供商: %s", s.AI.Provider)
	}
	return nil
}

// ValidateTwitter 检查发推所需的四个凭据
func (s *Settings) ValidateTwitter() error {
	switch {
	case s.Twitter.APIKey == "":
		return missing("twitter.api_key", "TWITTER_API_KEY")
	case s.Twitter.APISecret == "":
		return missing("twitter.api_secret", "TWITTER_API_SECRET")
	case s.Twitter.AccessToken == "":
		return missing("twitter.access_token", "TWITTER_ACCESS_TOKEN")
	case s.Twitter.AccessSecret == "":
		return missing("twitter.access_secret", "TWITTER_ACCESS_SECRET")
	}
	return nil
}

// ValidateAudit 趋势审计流程
func (s *Settings) ValidateAudit() error {
	if err := s.ValidateAI(); err != nil {
		return err
	}
	if err := s.ValidateTwitter(); err != nil {
		return err
	}
	if s.Pastebin.APIKey == "" {
		return missing("pastebin.api_key", "PASTEBIN_API_KEY")
	}
	return nil
}

// ValidateMentions 提及回复流程
func (s *Settings) ValidateMentions() error {
	if err := s.ValidateAudit(); err != nil {
		return err
	}
	if s.Twitter.Handle == "" {
		return missing("twitter.handle", "TWITTER_HANDLE")
	}
	if !s.HasExplorerKey() {
		return missing("explorer.<platform>.api_key", "ETHERSCAN_API_KEY")
	}
	return nil
}

// ValidateDiscover 趋势代币发现流程
func (s *Settings) ValidateDiscover() error {
	if !s.HasExplorerKey() {
		return missing("explorer.<platform>.api_key", "ETHERSCAN_API_KEY")
	}
	return nil
}

func missing(field, envName string) error {
	return fmt.Errorf("%w: %s (或环境变量 %s)", ErrConfigMissing, field, envName)
}
