package renderers

import (
	"fmt"
	"strings"
	"time"

	"github.com/admi-n/auditbot/src/internal/ai/parser"
)

// MarkdownRenderer markdown渲染器
type MarkdownRenderer struct{}

// NewMarkdownRenderer 创建markdown渲染器
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// RenderSeverityLines 四行严重等级统计，不含末尾换行
func (r *MarkdownRenderer) RenderSeverityLines(s parser.AuditSummary) string {
	lines := []string{
		r.severityLine(parser.SeverityCritical, s.Critical),
		r.severityLine(parser.SeverityHigh, s.High),
		r.severityLine(parser.SeverityMedium, s.Medium),
		r.severityLine(parser.SeverityLow, s.Low),
	}
	return strings.Join(lines, "\n")
}

func (r *MarkdownRenderer) severityLine(level parser.SeverityLevel, n int) string {
	return fmt.Sprintf("%s %s Severity Issues: %d", getSeverityIcon(string(level)), level, n)
}

// ArchiveHeader 归档报告的头部信息
type ArchiveHeader struct {
	Address   string
	Platform  string
	CoinName  string
	Handle    string
	Link      string
	CreatedAt time.Time
	Summary   *parser.AuditSummary
}

// RenderArchive 渲染归档文件：元数据 + 统计 + 模型原文
func (r *MarkdownRenderer) RenderArchive(h ArchiveHeader, body string) string {
	var result strings.Builder

	// 合约地址作为一级标题
	result.WriteString(fmt.Sprintf("# 合约地址: %s\n\n", h.Address))
	if h.Platform != "" {
		result.WriteString(fmt.Sprintf("**平台**: %s\n", h.Platform))
	}
	if h.CoinName != "" {
		result.WriteString(fmt.Sprintf("**代币**: %s\n", h.CoinName))
	}
	if h.Handle != "" {
		result.WriteString(fmt.Sprintf("**Twitter**: @%s\n", strings.TrimPrefix(h.Handle, "@")))
	}
	if h.Link != "" {
		result.WriteString(fmt.Sprintf("**报告链接**: %s\n", h.Link))
	}
	result.WriteString(fmt.Sprintf("**生成时间**: %s\n\n", h.CreatedAt.Format("2006-01-02 15:04:05")))

	if h.Summary != nil {
		result.WriteString("### 漏洞统计\n\n")
		result.WriteString(r.RenderSeverityLines(*h.Summary))
		result.WriteString("\n")
		if h.Summary.Simulated {
			result.WriteString("\n> ⚠️ 统计为模拟数据\n")
		}
		result.WriteString("\n")
	}

	result.WriteString("### AI原始响应\n\n")
	result.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		result.WriteString("\n")
	}

	return result.String()
}

// getSeverityIcon 获取严重等级对应的图标
func getSeverityIcon(severity string) string {
	switch severity {
	case "Critical":
		return "🔴"
	case "High":
		return "🟠"
	case "Medium":
		return "🟡"
	case "Low":
		return "🟢"
	default:
		return "⚪"
	}
}
