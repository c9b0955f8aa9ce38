// Package core 审计报告生成
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/admi-n/auditbot/src/strategy/prompts"
)

// ErrGenerationFailed 模型调用失败或返回空文本，调用方应跳过该条目
var ErrGenerationFailed = errors.New("report generation failed")

// Completer LLM 补全能力
type Completer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Generator 截断源码 → 填入模板 → 调用模型
type Generator struct {
	completer     Completer
	template      *prompts.AuditTemplate
	systemPrompt  string
	maxInputChars int
}

// GeneratorOption 可选项
type GeneratorOption func(*Generator)

// WithSystemPrompt 覆盖默认系统提示词
func WithSystemPrompt(s string) GeneratorOption {
	return func(g *Generator) { g.systemPrompt = s }
}

// WithMaxInputChars 覆盖源码字符上限
func WithMaxInputChars(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxInputChars = n
		}
	}
}

// NewGenerator 模板必须已通过加载校验
func NewGenerator(c Completer, tmpl *prompts.AuditTemplate, opts ...GeneratorOption) *Generator {
	g := &Generator{
		completer:     c,
		template:      tmpl,
		systemPrompt:  prompts.SystemPrompt,
		maxInputChars: prompts.DefaultMaxInputChars,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate 为一份合约源码生成审计报告
func (g *Generator) Generate(ctx context.Context, sourceCode string) (string, error) {
	capped, truncated := prompts.CapSource(sourceCode, g.maxInputChars)
	if truncated {
		slog.Warn("✂️  源码超过长度上限，已截断", "max_chars", g.maxInputChars)
	}

	report, err := g.completer.Complete(ctx, g.systemPrompt, g.template.Build(capped))
	if err != nil {
		slog.Error("❌ 报告生成失败", "err", err)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if strings.TrimSpace(report) == "" {
		slog.Error("❌ 模型返回空报告")
		return "", fmt.Errorf("%w: empty completion", ErrGenerationFailed)
	}
	return report, nil
}
