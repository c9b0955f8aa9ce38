// Package contracts 已解析合约记录的存储，按平台分目录保存
package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/admi-n/auditbot/src/internal"
)

// Store 合约记录存储
type Store interface {
	// List 返回全部记录，顺序稳定（平台, 地址）
	List(ctx context.Context) ([]internal.ContractRecord, error)
	// Save 保存一条记录，已存在的地址不会被覆盖
	Save(ctx context.Context, rec internal.ContractRecord) error
}

// FileStore 以 <dir>/<platform>/<address>.json 形式保存记录
type FileStore struct {
	dir string
}

// NewFileStore 创建文件存储
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir 根目录
func (s *FileStore) Dir() string {
	return s.dir
}

// List 遍历所有平台目录；损坏的文件记录警告后跳过
func (s *FileStore) List(ctx context.Context) ([]internal.ContractRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取合约目录失败: %w", err)
	}

	var records []internal.ContractRecord
	for _, platformDir := range entries {
		if !platformDir.IsDir() {
			continue
		}
		platform := platformDir.Name()

		files, err := os.ReadDir(filepath.Join(s.dir, platform))
		if err != nil {
			return nil, fmt.Errorf("读取平台目录 %s 失败: %w", platform, err)
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(s.dir, platform, f.Name())
			rec, err := readRecord(path)
			if err != nil {
				slog.Warn("⚠️  跳过无法解析的合约记录", "path", path, "err", err)
				continue
			}
			if rec.Platform == "" {
				rec.Platform = platform
			}
			// 旧记录可能缺少 contractAddress，地址以文件名为准
			if strings.TrimSpace(rec.Address) == "" {
				rec.Address = strings.TrimSuffix(f.Name(), ".json")
			}
			records = append(records, rec)
		}
	}

	sortRecords(records)
	return records, nil
}

// Save 写入记录，文件已存在时直接返回
func (s *FileStore) Save(_ context.Context, rec internal.ContractRecord) error {
	if rec.Platform == "" || rec.Address == "" {
		return fmt.Errorf("合约记录缺少 platform 或 address")
	}

	dir := filepath.Join(s.dir, rec.Platform)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建平台目录失败: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化合约记录失败: %w", err)
	}

	path := filepath.Join(dir, rec.Address+".json")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		slog.Debug("合约记录已存在", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("创建合约记录文件失败: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("写入合约记录失败: %w", err)
	}
	return f.Close()
}

func readRecord(path string) (internal.ContractRecord, error) {
	var rec internal.ContractRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func sortRecords(records []internal.ContractRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Platform != records[j].Platform {
			return records[i].Platform < records[j].Platform
		}
		return records[i].Address < records[j].Address
	})
}
