package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/admi-n/auditbot/src/config"
	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/ai"
	"github.com/admi-n/auditbot/src/internal/ai/parser"
	"github.com/admi-n/auditbot/src/internal/chain"
	"github.com/admi-n/auditbot/src/internal/coingecko"
	"github.com/admi-n/auditbot/src/internal/contracts"
	"github.com/admi-n/auditbot/src/internal/core"
	"github.com/admi-n/auditbot/src/internal/explorer"
	"github.com/admi-n/auditbot/src/internal/handler"
	"github.com/admi-n/auditbot/src/internal/ledger"
	"github.com/admi-n/auditbot/src/internal/metrics"
	"github.com/admi-n/auditbot/src/internal/publish"
	"github.com/admi-n/auditbot/src/internal/report"
	"github.com/admi-n/auditbot/src/internal/scheduler"
	"github.com/admi-n/auditbot/src/internal/storage"
	"github.com/admi-n/auditbot/src/strategy/prompts"
)

// app 按所选任务懒加载各组件，并负责统一关闭
type app struct {
	ctx      context.Context
	settings *config.Settings
	metrics  *metrics.BotMetrics
	proxy    *internal.ProxyManager

	dbs     map[string]*sql.DB
	pools   map[string]*pgxpool.Pool
	ledgers map[string]ledger.Ledger
	closers []func()

	aiManager *ai.Manager
	generator *core.Generator
	reporter  *report.Reporter
	twitter   *publish.TwitterClient
	store     contracts.Store
	resolver  *explorer.Resolver
}

func newApp(ctx context.Context, s *config.Settings, m *metrics.BotMetrics) (*app, error) {
	pm, err := internal.NewProxyManager(s.Proxy)
	if err != nil {
		return nil, fmt.Errorf("代理配置无效: %w", err)
	}
	if pm.IsEnabled() {
		slog.Info("🌐 使用 HTTP 代理", "proxy", pm.GetProxyURL())
	}

	return &app{
		ctx:      ctx,
		settings: s,
		metrics:  m,
		proxy:    pm,
		dbs:      make(map[string]*sql.DB),
		pools:    make(map[string]*pgxpool.Pool),
		ledgers:  make(map[string]ledger.Ledger),
	}, nil
}

// Close 按创建的相反顺序释放资源
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) httpClient(timeout time.Duration) *http.Client {
	return a.proxy.CreateHTTPClient(timeout)
}

// sqlDB 同一个驱动和 DSN 只打开一次
func (a *app) sqlDB(backend, dsn string) (*sql.DB, storage.Dialect, error) {
	var (
		driver  string
		dialect storage.Dialect
	)
	switch backend {
	case "sqlite":
		driver, dialect = config.DriverSQLite, storage.DialectSQLite
	case "mysql":
		driver, dialect = config.DriverMySQL, storage.DialectMySQL
	default:
		return nil, "", fmt.Errorf("不支持的存储后端: %s", backend)
	}

	key := driver + "|" + dsn
	if db, ok := a.dbs[key]; ok {
		return db, dialect, nil
	}

	db, err := config.InitDB(a.ctx, driver, dsn)
	if err != nil {
		return nil, "", err
	}
	slog.Info("✅ 数据库连接成功", "driver", driver)
	a.dbs[key] = db
	a.closers = append(a.closers, func() { db.Close() })
	return db, dialect, nil
}

func (a *app) pgPool(dsn string) (*pgxpool.Pool, error) {
	if pool, ok := a.pools[dsn]; ok {
		return pool, nil
	}
	pool, err := config.InitPool(a.ctx, dsn)
	if err != nil {
		return nil, err
	}
	slog.Info("✅ PostgreSQL 连接成功")
	a.pools[dsn] = pool
	a.closers = append(a.closers, pool.Close)
	return pool, nil
}

// ledger 同一命名空间只打开一次，趋势审计与提及回复共用 contracts 账本
func (a *app) ledger(namespace string) (ledger.Ledger, error) {
	if l, ok := a.ledgers[namespace]; ok {
		return l, nil
	}
	l, err := a.openLedger(namespace)
	if err != nil {
		return nil, err
	}
	a.ledgers[namespace] = l
	a.closers = append(a.closers, func() { l.Close() })
	return l, nil
}

func (a *app) openLedger(namespace string) (ledger.Ledger, error) {
	st := a.settings.Storage
	switch st.LedgerBackend {
	case "file":
		path := filepath.Join(st.LedgerDir, ledger.FileName(namespace))
		slog.Debug("📒 使用文件账本", "namespace", namespace, "path", path)
		return ledger.NewFileLedger(path), nil
	case "sqlite", "mysql":
		db, dialect, err := a.sqlDB(st.LedgerBackend, st.LedgerDSN)
		if err != nil {
			return nil, err
		}
		return ledger.NewSQLLedger(db, dialect, namespace)
	case "postgres":
		pool, err := a.pgPool(st.LedgerDSN)
		if err != nil {
			return nil, err
		}
		return ledger.NewPGLedger(pool, namespace)
	default:
		return nil, fmt.Errorf("不支持的账本后端: %s (可选: file, sqlite, mysql, postgres)", st.LedgerBackend)
	}
}

func (a *app) contractStore() (contracts.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	st := a.settings.Storage
	switch st.ContractsBackend {
	case "file":
		a.store = contracts.NewFileStore(st.DataDir)
	case "sqlite", "mysql":
		db, dialect, err := a.sqlDB(st.ContractsBackend, st.ContractsDSN)
		if err != nil {
			return nil, err
		}
		store, err := contracts.NewSQLStore(db, dialect)
		if err != nil {
			return nil, err
		}
		a.store = store
	default:
		return nil, fmt.Errorf("不支持的合约记录后端: %s (可选: file, sqlite, mysql)", st.ContractsBackend)
	}
	return a.store, nil
}

func (a *app) explorerResolver() *explorer.Resolver {
	if a.resolver != nil {
		return a.resolver
	}

	var backends []explorer.Backend
	for _, b := range a.settings.ExplorerBackends() {
		backends = append(backends, explorer.Backend{Platform: b.Platform, APIKey: b.APIKey, BaseURL: b.BaseURL})
	}
	a.resolver = explorer.NewResolver(explorer.NewClientWithHTTP(a.httpClient(a.settings.Explorer.Timeout)), backends)
	slog.Info("🔗 区块浏览器查询顺序", "platforms", strings.Join(a.resolver.Platforms(), ","))
	return a.resolver
}

// aiClient 生成器和 -test-ai 共用同一个 AI 管理器
func (a *app) aiClient() (*ai.Manager, error) {
	if a.aiManager != nil {
		return a.aiManager, nil
	}

	s := a.settings
	mgr, err := ai.NewManagerFromSettings(s, a.httpClient(s.AI.Timeout), a.metrics)
	if err != nil {
		return nil, fmt.Errorf("创建 AI 管理器失败: %w", err)
	}
	a.closers = append(a.closers, func() { mgr.Close() })
	a.aiManager = mgr
	slog.Info("🤖 AI 客户端就绪", "client", mgr.GetClientInfo())
	return mgr, nil
}

// reportGenerator AI 管理器 + 已校验的提示词模板
func (a *app) reportGenerator() (*core.Generator, error) {
	if a.generator != nil {
		return a.generator, nil
	}

	s := a.settings
	tmpl, err := prompts.LoadAuditTemplate(s.Summarizer.TemplatePath)
	if err != nil {
		if names, lerr := prompts.ListTemplates(filepath.Dir(s.Summarizer.TemplatePath)); lerr == nil {
			slog.Error("❌ 模板加载失败", "path", s.Summarizer.TemplatePath, "available", names)
		}
		return nil, err
	}
	if err := checkTemplateDialect(s.Summarizer.TemplatePath, s.Summarizer.Dialect); err != nil {
		return nil, err
	}

	mgr, err := a.aiClient()
	if err != nil {
		return nil, err
	}
	slog.Info("📝 审计模板已加载", "template", tmpl.Path)

	a.generator = core.NewGenerator(mgr, tmpl, core.WithMaxInputChars(s.Summarizer.MaxInputChars))
	return a.generator, nil
}

// checkTemplateDialect 以方言命名的模板（atx.md、bold.md）必须与解析方言一致
func checkTemplateDialect(path, dialect string) error {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fromName, err := parser.ParseDialect(name)
	if err != nil {
		return nil
	}
	want, err := parser.ParseDialect(dialect)
	if err != nil {
		return err
	}
	if fromName != want {
		return fmt.Errorf("提示词模板 %s 与解析方言 %s 不一致", path, want)
	}
	return nil
}

func (a *app) summarizer() (*parser.Summarizer, error) {
	d, err := parser.ParseDialect(a.settings.Summarizer.Dialect)
	if err != nil {
		return nil, err
	}
	simulate := a.settings.Summarizer.SimulateFindings
	if simulate {
		slog.Warn("⚠️  simulate_findings 已开启：无问题的报告将使用随机占位统计")
	}
	return parser.NewSummarizer(d, parser.WithSimulatedFindings(simulate)), nil
}

func (a *app) reportPublisher() (*report.Reporter, error) {
	if a.reporter != nil {
		return a.reporter, nil
	}
	s := a.settings
	paste, err := publish.NewPastebinClient(s.Pastebin.APIKey, s.Pastebin.ExpireDate, s.Pastebin.BaseURL, a.httpClient(30*time.Second))
	if err != nil {
		return nil, err
	}
	a.reporter = report.NewReporter(report.NewMarkdownGenerator(), report.NewFileStorage(s.Storage.ReportsDir), paste, nil)
	return a.reporter, nil
}

func (a *app) twitterClient() (*publish.TwitterClient, error) {
	if a.twitter != nil {
		return a.twitter, nil
	}
	t := a.settings.Twitter
	tw, err := publish.NewTwitterClient(publish.TwitterConfig{
		APIKey:       t.APIKey,
		APISecret:    t.APISecret,
		AccessToken:  t.AccessToken,
		AccessSecret: t.AccessSecret,
		BaseURL:      t.BaseURL,
		HTTPClient:   a.httpClient(30 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	a.twitter = tw
	return tw, nil
}

func (a *app) twitterPublisher() (*publish.ChunkedPublisher, error) {
	tw, err := a.twitterClient()
	if err != nil {
		return nil, err
	}
	return publish.NewChunkedPublisher(tw, a.settings.Twitter.ChunkLimit, publish.Threaded(), publish.WithMetrics(a.metrics)), nil
}

// telegramMirror 未配置 bot token 时返回 nil
func (a *app) telegramMirror() publish.Publisher {
	t := a.settings.Telegram
	if t.BotToken == "" {
		return nil
	}
	tg, err := publish.NewTelegramClient(t.BotToken, t.ChatID, t.BaseURL, a.httpClient(30*time.Second))
	if err != nil {
		slog.Warn("⚠️  Telegram 配置不完整，跳过镜像频道", "error", err)
		return nil
	}
	slog.Info("📣 已启用 Telegram 镜像频道")
	return publish.NewChunkedPublisher(tg, t.ChunkLimit, publish.WithMetrics(a.metrics))
}

// classifier 配置了 RPC 时用字节码区分未验证合约和不支持的链
func (a *app) classifier() handler.NotFoundClassifier {
	rpc := a.settings.RPC.Ethereum
	if rpc == "" {
		return nil
	}
	insp, err := chain.Dial(a.ctx, rpc)
	if err != nil {
		slog.Warn("⚠️  连接以太坊节点失败，NotFound 不再细分原因", "error", err)
		return nil
	}
	a.closers = append(a.closers, insp.Close)
	return insp
}

func (a *app) auditJob() (scheduler.Job, error) {
	s := a.settings
	store, err := a.contractStore()
	if err != nil {
		return scheduler.Job{}, err
	}
	l, err := a.ledger(ledger.NamespaceContracts)
	if err != nil {
		return scheduler.Job{}, err
	}
	gen, err := a.reportGenerator()
	if err != nil {
		return scheduler.Job{}, err
	}
	sum, err := a.summarizer()
	if err != nil {
		return scheduler.Job{}, err
	}
	rep, err := a.reportPublisher()
	if err != nil {
		return scheduler.Job{}, err
	}
	pub, err := a.twitterPublisher()
	if err != nil {
		return scheduler.Job{}, err
	}

	batch, err := handler.NewAuditBatch(handler.AuditBatchConfig{
		Store:      store,
		Ledger:     l,
		Generator:  gen,
		Summarizer: sum,
		Reporter:   rep,
		Publisher:  pub,
		Mirror:     a.telegramMirror(),
		Delay:      s.Schedule.ItemDelay,
		Metrics:    a.metrics,
	})
	if err != nil {
		return scheduler.Job{}, err
	}
	return scheduler.Job{
		Name:     batch.Name(),
		Interval: s.Schedule.AuditInterval,
		Run: func(ctx context.Context) error {
			_, err := batch.Run(ctx)
			return err
		},
	}, nil
}

func (a *app) mentionsJob() (scheduler.Job, error) {
	s := a.settings
	l, err := a.ledger(ledger.NamespaceContracts)
	if err != nil {
		return scheduler.Job{}, err
	}
	gen, err := a.reportGenerator()
	if err != nil {
		return scheduler.Job{}, err
	}
	rep, err := a.reportPublisher()
	if err != nil {
		return scheduler.Job{}, err
	}
	tw, err := a.twitterClient()
	if err != nil {
		return scheduler.Job{}, err
	}
	pub, err := a.twitterPublisher()
	if err != nil {
		return scheduler.Job{}, err
	}

	m, err := handler.NewMentions(handler.MentionsConfig{
		Handle:     s.Twitter.Handle,
		Source:     tw,
		Ledger:     l,
		Resolver:   a.explorerResolver(),
		Classifier: a.classifier(),
		Generator:  gen,
		Reporter:   rep,
		Publisher:  pub,
		Delay:      s.Schedule.ItemDelay,
		Metrics:    a.metrics,
	})
	if err != nil {
		return scheduler.Job{}, err
	}
	return scheduler.Job{
		Name:     m.Name(),
		Interval: s.Schedule.MentionsInterval,
		Run: func(ctx context.Context) error {
			_, err := m.Run(ctx)
			return err
		},
	}, nil
}

func (a *app) discoverJob() (scheduler.Job, error) {
	s := a.settings
	store, err := a.contractStore()
	if err != nil {
		return scheduler.Job{}, err
	}
	coins, err := a.ledger(ledger.NamespaceCoins)
	if err != nil {
		return scheduler.Job{}, err
	}

	d, err := handler.NewDiscover(handler.DiscoverConfig{
		Trending: coingecko.NewClient(s.CoinGecko.BaseURL, s.CoinGecko.APIKey, a.httpClient(20*time.Second)),
		Coins:    coins,
		Resolver: a.explorerResolver(),
		Store:    store,
		Order:    s.Explorer.Order,
		Delay:    s.Schedule.ItemDelay,
		Metrics:  a.metrics,
	})
	if err != nil {
		return scheduler.Job{}, err
	}
	return scheduler.Job{
		Name:     d.Name(),
		Interval: s.Schedule.DiscoverInterval,
		Run: func(ctx context.Context) error {
			_, err := d.Run(ctx)
			return err
		},
	}, nil
}

// jobs 按 CLI 选择构建任务，顺序为 discover → audit → mentions
func (a *app) jobs(cfg *CLIConfig) ([]scheduler.Job, error) {
	builders := map[string]func() (scheduler.Job, error){
		RunDiscover: a.discoverJob,
		RunAudit:    a.auditJob,
		RunMentions: a.mentionsJob,
	}

	var jobs []scheduler.Job
	for _, name := range cfg.Jobs {
		job, err := builders[name]()
		if err != nil {
			return nil, fmt.Errorf("初始化任务 %s 失败: %w", name, err)
		}
		jobs = append(jobs, job)
	}

	// 只选了 discover 时也要测试，此时管理器在这里才创建
	if cfg.TestAI {
		mgr, err := a.aiClient()
		if err != nil {
			return nil, err
		}
		if err := mgr.TestConnection(a.ctx); err != nil {
			return nil, fmt.Errorf("AI 连接测试失败: %w", err)
		}
	}
	return jobs, nil
}
