package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/admi-n/auditbot/src/internal/clock"
)

// Uploader 粘贴站点，返回可公开访问的链接
type Uploader interface {
	Upload(ctx context.Context, title, content string) (string, error)
}

// Reporter 报告器：上传原文拿到链接，再写本地归档
type Reporter struct {
	generator Generator
	storage   Storage
	uploader  Uploader
	clock     clock.Clock
}

// NewReporter 创建报告器，storage 为 nil 时不归档
func NewReporter(generator Generator, storage Storage, uploader Uploader, clk clock.Clock) *Reporter {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Reporter{
		generator: generator,
		storage:   storage,
		uploader:  uploader,
		clock:     clk,
	}
}

// Publish 上传报告并返回链接；上传失败返回错误，归档失败只记录日志
func (r *Reporter) Publish(ctx context.Context, report *Report) (string, error) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = r.clock.Now()
	}

	link, err := r.uploader.Upload(ctx, PasteTitle(report.Address), report.Body)
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}
	report.Link = link
	slog.Info("📤 报告已上传", "address", report.Address, "link", link)

	if r.storage != nil {
		if path, err := r.archive(report); err != nil {
			slog.Warn("⚠️  本地归档失败", "address", report.Address, "err", err)
		} else {
			slog.Debug("💾 报告已归档", "path", path)
		}
	}

	return link, nil
}

func (r *Reporter) archive(report *Report) (string, error) {
	content, err := r.generator.Generate(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}
	return r.storage.Save(report, content)
}

// NewReport 创建新的报告实例
func NewReport(address, body string, now time.Time) *Report {
	return &Report{
		Address:   address,
		Body:      body,
		CreatedAt: now,
	}
}
