package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/admi-n/auditbot/src/config"
	"github.com/admi-n/auditbot/src/internal/logger"
	"github.com/admi-n/auditbot/src/internal/metrics"
	"github.com/admi-n/auditbot/src/internal/scheduler"
)

// loadSettings 读取配置并应用命令行覆盖。未显式指定且默认文件不存在时只使用环境变量
func loadSettings(cfg *CLIConfig) (*config.Settings, error) {
	path := cfg.ConfigPath
	if path == "" {
		path = config.DefaultSettingsPath
	}

	settings, err := config.LoadSettings(path)
	if errors.Is(err, os.ErrNotExist) && cfg.ConfigPath == "" {
		fmt.Printf("⚠️  警告: 无法加载配置文件: %v\n", err)
		fmt.Println("将尝试从环境变量读取配置...")
		settings, err = config.LoadSettings("")
	}
	if err != nil {
		return nil, err
	}

	if cfg.Proxy != "" {
		settings.Proxy = cfg.Proxy
	}
	if cfg.Metrics != "" {
		settings.Metrics.Addr = cfg.Metrics
	}
	if cfg.Verbose {
		settings.Log.Level = "debug"
	}
	return settings, nil
}

// validate 检查所选任务需要的凭据
func validate(cfg *CLIConfig, s *config.Settings) error {
	checks := map[string]func() error{
		RunAudit:    s.ValidateAudit,
		RunMentions: s.ValidateMentions,
		RunDiscover: s.ValidateDiscover,
	}
	for _, job := range cfg.Jobs {
		if err := checks[job](); err != nil {
			return fmt.Errorf("任务 %s: %w", job, err)
		}
	}
	if cfg.TestAI {
		if err := s.ValidateAI(); err != nil {
			return fmt.Errorf("-test-ai: %w", err)
		}
	}
	return nil
}

// Execute 执行主命令逻辑
func Execute(cfg *CLIConfig) error {
	settings, err := loadSettings(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(logger.NewFromConfig(logger.Config{
		Level:         settings.Log.Level,
		HumanFriendly: settings.Log.HumanFriendly,
	}))

	if cfg.Verbose {
		fmt.Printf("使用配置运行 auditbot: jobs=%v once=%v config=%s\n", cfg.Jobs, cfg.Once, cfg.ConfigPath)
	}

	if err := validate(cfg, settings); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.BotMetrics
	if settings.Metrics.Addr != "" {
		m = metrics.NewBotMetrics(prometheus.DefaultRegisterer)
		go func() {
			if err := metrics.Serve(ctx, settings.Metrics.Addr, prometheus.DefaultGatherer); err != nil {
				slog.Error("❌ 指标服务退出", "error", err)
			}
		}()
	}

	app, err := newApp(ctx, settings, m)
	if err != nil {
		return err
	}
	defer app.Close()

	jobs, err := app.jobs(cfg)
	if err != nil {
		return err
	}

	sched := scheduler.New(jobs,
		scheduler.WithJobTimeout(settings.Schedule.JobTimeout),
		scheduler.WithMetrics(m),
	)

	if cfg.Once {
		fmt.Println("🚀 运行一次所选任务...")
		return sched.RunOnce(ctx)
	}

	fmt.Println("🚀 auditbot 已启动，按 Ctrl+C 退出")
	return sched.Run(ctx)
}
