package report

import (
	"time"

	"github.com/admi-n/auditbot/src/internal/ai/parser"
	"github.com/admi-n/auditbot/src/internal/report/renderers"
)

// Report 一份完整的审计报告及其上下文
type Report struct {
	Address  string
	Platform string
	CoinName string
	Handle   string
	// Body 模型原文，上传到粘贴站点的内容
	Body string
	// Summary 提及流程不做统计，可为 nil
	Summary *parser.AuditSummary
	// Link 上传成功后回填
	Link      string
	CreatedAt time.Time
}

// Generator 归档内容生成器接口
type Generator interface {
	Generate(report *Report) (string, error)
}

// MarkdownGenerator markdown格式归档生成器
type MarkdownGenerator struct {
	renderer *renderers.MarkdownRenderer
}

// NewMarkdownGenerator 创建markdown报告生成器
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{renderer: renderers.NewMarkdownRenderer()}
}

// Generate 生成markdown格式归档
func (g *MarkdownGenerator) Generate(report *Report) (string, error) {
	return g.renderer.RenderArchive(renderers.ArchiveHeader{
		Address:   report.Address,
		Platform:  report.Platform,
		CoinName:  report.CoinName,
		Handle:    report.Handle,
		Link:      report.Link,
		CreatedAt: report.CreatedAt,
		Summary:   report.Summary,
	}, report.Body), nil
}
