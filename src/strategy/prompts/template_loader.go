package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Placeholder 模板中用于放置合约源码的空代码块
const Placeholder = "```\n\n```"

// ErrPlaceholderMissing 模板中找不到空代码块占位符
var ErrPlaceholderMissing = errors.New("提示词模板缺少空代码块占位符")

// AuditTemplate 已校验过占位符的审计提示词模板
type AuditTemplate struct {
	Path    string
	content string
}

// ParseAuditTemplate 校验模板内容；CRLF 会先统一为 LF
func ParseAuditTemplate(name, content string) (*AuditTemplate, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.Contains(content, Placeholder) {
		return nil, fmt.Errorf("%w: %s", ErrPlaceholderMissing, name)
	}
	return &AuditTemplate{Path: name, content: content}, nil
}

// LoadAuditTemplate 读取并校验审计提示词模板
func LoadAuditTemplate(path string) (*AuditTemplate, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", path, err)
	}
	return ParseAuditTemplate(path, string(content))
}

// ListTemplates 列出目录下所有 .md 模板（不含扩展名）
func ListTemplates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".md" {
			names = append(names, strings.TrimSuffix(entry.Name(), ".md"))
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}
	return names, nil
}
