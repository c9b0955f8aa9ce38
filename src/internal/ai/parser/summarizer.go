package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"
)

// ErrNoFindings 报告中没有可计数的发现（包括完全没有识别到标题）
var ErrNoFindings = errors.New("审计报告中未发现可统计的问题")

// Dialect 报告标题方言，必须与生成报告时使用的提示词模板一致
type Dialect string

const (
	// DialectATX 形如 "### 🔴 High" 的 markdown 标题
	DialectATX Dialect = "atx"
	// DialectBold 形如 "**High Severity Findings:**" 的加粗行
	DialectBold Dialect = "bold"
)

// ParseDialect 解析配置中的方言名
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectATX, "":
		return DialectATX, nil
	case DialectBold:
		return DialectBold, nil
	default:
		return "", fmt.Errorf("未知的报告方言: %s (支持: atx, bold)", s)
	}
}

var levelEmoji = map[SeverityLevel]string{
	SeverityCritical:      "🚨",
	SeverityHigh:          "🔴",
	SeverityMedium:        "🟠",
	SeverityLow:           "🟢",
	SeverityInformational: "🔵",
}

// findingLine 行首的编号列表项，嵌套的子项目符号不计数
var findingLine = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)

func headingPattern(d Dialect, level SeverityLevel) *regexp.Regexp {
	emoji := regexp.QuoteMeta(levelEmoji[level])
	label := string(level)

	var expr string
	switch d {
	case DialectBold:
		expr = `(?im)^[ \t]*(?:[-*][ \t]+)?\*\*[ \t]*(?:` + emoji + `[ \t]*)?` + label +
			`[ \t]+severity(?:[ \t]+(?:findings?|issues?))?[ \t]*:?[ \t]*\*\*[ \t]*:?[ \t\r]*$`
	default:
		expr = `(?im)^[ \t]*#{1,6}[ \t]*(?:` + emoji + `[ \t]*)?[*_]*[ \t]*` + label +
			`(?:[ \t]+(?:severity|findings?|issues?))*[ \t]*:?[ \t]*[*_]*[ \t\r]*$`
	}
	return regexp.MustCompile(expr)
}

type detector struct {
	level   SeverityLevel
	pattern *regexp.Regexp
}

// HeadingPosition 标题在报告中的位置，仅在解析过程中使用
type HeadingPosition struct {
	Level SeverityLevel
	Start int
	End   int
}

// Summarizer 将 LLM 输出的 markdown 审计报告解析为严重等级直方图
type Summarizer struct {
	dialect   Dialect
	detectors []detector
	simulate  bool
	rng       *rand.Rand
}

// Option Summarizer 的可选配置
type Option func(*Summarizer)

// WithSimulatedFindings 没有发现时生成占位计数而不是返回 ErrNoFindings。
// 结果会被标记为 Simulated
func WithSimulatedFindings(enabled bool) Option {
	return func(s *Summarizer) {
		s.simulate = enabled
	}
}

// WithRand 替换随机数源（测试用）
func WithRand(r *rand.Rand) Option {
	return func(s *Summarizer) {
		s.rng = r
	}
}

// NewSummarizer 创建指定方言的解析器
func NewSummarizer(d Dialect, opts ...Option) *Summarizer {
	if d == "" {
		d = DialectATX
	}
	s := &Summarizer{dialect: d}
	for _, level := range Levels {
		s.detectors = append(s.detectors, detector{level: level, pattern: headingPattern(d, level)})
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Dialect 返回解析器使用的方言
func (s *Summarizer) Dialect() Dialect {
	return s.dialect
}

// Headings 找到每个等级第一次出现的标题，按位置升序
func (s *Summarizer) Headings(report string) []HeadingPosition {
	var found []HeadingPosition
	for _, d := range s.detectors {
		loc := d.pattern.FindStringIndex(report)
		if loc == nil {
			continue
		}
		found = append(found, HeadingPosition{Level: d.level, Start: loc[0], End: loc[1]})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Start < found[j].Start })
	return found
}

// Sections 每个标题的正文: 从标题匹配结束处到下一个标题开始处（或文本结尾）
func (s *Summarizer) Sections(report string) map[SeverityLevel]string {
	headings := s.Headings(report)
	sections := make(map[SeverityLevel]string, len(headings))
	for i, h := range headings {
		end := len(report)
		if i+1 < len(headings) {
			end = headings[i+1].Start
		}
		// 两个等级的标题相同时（理论上不会）避免越界
		if end < h.End {
			end = h.End
		}
		sections[h.Level] = report[h.End:end]
	}
	return sections
}

// Summarize 解析报告；critical/high/medium/low 都为 0 时返回 ErrNoFindings，
// 除非开启了 simulate_findings
func (s *Summarizer) Summarize(report string) (AuditSummary, error) {
	var summary AuditSummary
	for level, body := range s.Sections(report) {
		summary.set(level, len(findingLine.FindAllStringIndex(body, -1)))
	}

	if summary.HasFindings() {
		return summary, nil
	}

	if !s.simulate {
		return AuditSummary{}, ErrNoFindings
	}

	simulated := AuditSummary{
		Critical:  s.rng.IntN(2),
		High:      1 + s.rng.IntN(2),
		Medium:    1 + s.rng.IntN(3),
		Low:       2 + s.rng.IntN(3),
		Simulated: true,
	}
	slog.Warn("⚠️  报告中未识别到发现，已生成模拟计数（simulate_findings 已开启）", "summary", simulated.String())
	return simulated, nil
}
