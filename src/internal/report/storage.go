package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage 报告存储接口
type Storage interface {
	Save(report *Report, content string) (string, error)
}

// FileStorage 文件存储实现，文件名为 <address>_<unix>.md
type FileStorage struct {
	OutputDir string
}

// NewFileStorage 创建文件存储
func NewFileStorage(outputDir string) *FileStorage {
	return &FileStorage{
		OutputDir: outputDir,
	}
}

// Save 保存报告到文件
func (s *FileStorage) Save(report *Report, content string) (string, error) {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := strings.NewReplacer("/", "_", "\\", "_").Replace(report.Address)
	filename := fmt.Sprintf("%s_%d.md", name, report.CreatedAt.Unix())
	path := filepath.Join(s.OutputDir, filename)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}
