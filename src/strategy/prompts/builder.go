package prompts

import "strings"

const (
	// DefaultMaxInputChars 送入模型的源码上限（按字符计）
	DefaultMaxInputChars = 25000
	// TruncationMarker 源码被截断时追加，让模型知道输入不完整
	TruncationMarker = "\n// [Content truncated due to length]"
)

// SystemPrompt 审计任务的系统提示词
const SystemPrompt = `You are an expert smart contract security auditor specialized in finding vulnerabilities in Solidity code.
Follow the requested report format exactly and list every finding as a numbered item under its severity heading.`

// CapSource 按字符数截断源码，返回截断后的内容以及是否发生了截断
func CapSource(source string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	runes := []rune(source)
	if len(runes) <= maxChars {
		return source, false
	}
	return string(runes[:maxChars]) + TruncationMarker, true
}

// Build 将源码放进模板的空代码块中（只替换第一个占位符）
func (t *AuditTemplate) Build(source string) string {
	return strings.Replace(t.content, Placeholder, "```\n"+source+"\n```", 1)
}
