package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// 可选的任务集合
const (
	RunAll      = "all"
	RunAudit    = "audit"
	RunMentions = "mentions"
	RunDiscover = "discover"
)

// CLIConfig 保存解析好的 CLI 选项
type CLIConfig struct {
	Jobs       []string // 规范化后的任务列表，按运行顺序
	Once       bool     // 每个任务只运行一次后退出
	ConfigPath string
	Verbose    bool
	Proxy      string // HTTP 代理 (例如 http://127.0.0.1:7897)，覆盖配置文件
	Metrics    string // /metrics 监听地址，覆盖配置文件
	TestAI     bool   // 启动前发送一条探测请求
}

// parseJobs 解析 -run 的值，支持逗号分隔，返回去重后的固定顺序
func parseJobs(s string) ([]string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == RunAll {
		return []string{RunDiscover, RunAudit, RunMentions}, nil
	}

	selected := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case RunAudit, RunMentions, RunDiscover:
			selected[part] = true
		case RunAll:
			return []string{RunDiscover, RunAudit, RunMentions}, nil
		case "":
		default:
			return nil, fmt.Errorf("-run 不支持的任务: %s (可选: all, audit, mentions, discover)", part)
		}
	}

	var jobs []string
	for _, j := range []string{RunDiscover, RunAudit, RunMentions} {
		if selected[j] {
			jobs = append(jobs, j)
		}
	}
	if len(jobs) == 0 {
		return nil, errors.New("-run 不能为空")
	}
	return jobs, nil
}

// showHelp 显示帮助信息
func showHelp(topic string) {
	switch topic {
	case "run":
		showRunHelp()
	case "config":
		showConfigHelp()
	default:
		showGeneralHelp()
	}
}

// showGeneralHelp 显示通用帮助
func showGeneralHelp() {
	fmt.Println("🛡️  auditbot - 趋势代币合约审计机器人")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  auditbot [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  -run <jobs>       运行的任务: all | audit | mentions | discover (可逗号分隔)")
	fmt.Println("  -once             每个任务只运行一次后退出")
	fmt.Println("  -config <path>    配置文件路径 (默认 src/config/settings.yaml)")
	fmt.Println("  -proxy <url>      HTTP 代理")
	fmt.Println("  -metrics <addr>   Prometheus /metrics 监听地址，例如 :9100")
	fmt.Println("  -test-ai          启动前测试 AI 连接")
	fmt.Println("  -v                输出调试日志")
	fmt.Println()
	fmt.Println("获取特定选项的帮助:")
	fmt.Println("  auditbot -run --help       # 任务说明")
	fmt.Println("  auditbot -config --help    # 配置说明")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  auditbot                                   # 运行全部任务并按计划重复")
	fmt.Println("  auditbot -run audit -once                  # 只跑一次趋势审计")
	fmt.Println("  auditbot -run mentions,discover -v")
}

// showRunHelp 显示任务帮助
func showRunHelp() {
	fmt.Println("🎯 任务 (-run)")
	fmt.Println()
	fmt.Println("支持的任务:")
	fmt.Println("  discover     从 CoinGecko 趋势榜发现代币，查询合约源码并写入 data/<platform>/")
	fmt.Println("  audit        审计 data/ 下尚未审计的合约，上传报告并发推 (默认每 10 分钟)")
	fmt.Println("  mentions     回复最近一小时内请求审计的提及 (默认每 10 分钟)")
	fmt.Println("  all          以上全部 (默认)")
	fmt.Println()
	fmt.Println("所有任务在同一个调度器中串行运行，启动时各运行一次。")
	fmt.Println("已处理的合约/代币记录在去重账本中，不会重复发布。")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  auditbot -run discover -once")
	fmt.Println("  auditbot -run audit,mentions")
}

// showConfigHelp 显示配置帮助
func showConfigHelp() {
	fmt.Println("⚙️  配置 (-config)")
	fmt.Println()
	fmt.Println("配置文件为 yaml，环境变量优先于文件中的值。常用环境变量:")
	fmt.Println("  REPLICATE_API_TOKEN / OPENAI_API_KEY / DEEPSEEK_API_KEY   AI 提供商凭据")
	fmt.Println("  ETHERSCAN_API_KEY / BASESCAN_API_KEY / BSCSCAN_API_KEY / POLYGONSCAN_API_KEY")
	fmt.Println("  TWITTER_API_KEY / TWITTER_API_SECRET / TWITTER_ACCESS_TOKEN / TWITTER_ACCESS_SECRET")
	fmt.Println("  TWITTER_HANDLE                                            提及回复使用的账号")
	fmt.Println("  PASTEBIN_API_KEY                                          完整报告托管")
	fmt.Println("  TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID                     可选的镜像频道")
	fmt.Println("  LEDGER_BACKEND / LEDGER_DSN                               去重账本: file | sqlite | mysql | postgres")
	fmt.Println("  CONTRACTS_BACKEND / CONTRACTS_DSN                         合约记录: file | sqlite | mysql")
	fmt.Println("  ETH_RPC_URL                                               可选，区分未验证合约与不支持的链")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  auditbot -config ./settings.yaml")
}

// ParseFlags 解析 args（不含程序名）并返回 CLIConfig。帮助请求返回 flag.ErrHelp
func ParseFlags(args []string) (*CLIConfig, error) {
	// 处理特定选项的帮助请求 (如 -run --help)
	for i := 0; i < len(args)-1; i++ {
		if args[i+1] == "--help" || args[i+1] == "-h" {
			showHelp(strings.TrimLeft(args[i], "-"))
			return nil, flag.ErrHelp
		}
	}

	fs := flag.NewFlagSet("auditbot", flag.ContinueOnError)
	fs.Usage = func() {
		showGeneralHelp()
	}

	run := fs.String("run", RunAll, "Jobs to run: all | audit | mentions | discover (comma separated)")
	once := fs.Bool("once", false, "Run the selected jobs once and exit")
	configPath := fs.String("config", "", "Path to settings.yaml")
	verbose := fs.Bool("v", false, "Verbose output")
	proxy := fs.String("proxy", "", "可选 HTTP 代理，例如 http://127.0.0.1:7897")
	metricsAddr := fs.String("metrics", "", "Prometheus listen address, e.g. :9100")
	testAI := fs.Bool("test-ai", false, "Send a probe request to the AI provider before starting")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("无法识别的参数: %s", strings.Join(fs.Args(), " "))
	}

	jobs, err := parseJobs(*run)
	if err != nil {
		return nil, err
	}

	return &CLIConfig{
		Jobs:       jobs,
		Once:       *once,
		ConfigPath: strings.TrimSpace(*configPath),
		Verbose:    *verbose,
		Proxy:      strings.TrimSpace(*proxy),
		Metrics:    strings.TrimSpace(*metricsAddr),
		TestAI:     *testAI,
	}, nil
}

// Run 是一个便利包装，解析 flags 并执行
func Run() error {
	cfg, err := ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return Execute(cfg)
}

// PrintFatal 将错误打印到 stderr 并以非零代码退出。
func PrintFatal(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "错误:", err)
	os.Exit(1)
}
