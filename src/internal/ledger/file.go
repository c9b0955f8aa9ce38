package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileLedger 以 JSON 数组文件保存的账本。
// 每次 Record 都会重新读取文件、加入新键，再写临时文件并原子替换
type FileLedger struct {
	path string
	mu   sync.Mutex // 串行化本进程内的读-改-写
	keys *keySet
}

// NewFileLedger 创建文件账本，不会读取文件
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path, keys: newKeySet()}
}

// FileName 命名空间对应的默认文件名
func FileName(namespace string) string {
	switch namespace {
	case NamespaceContracts:
		return "auditedContracts.json"
	case NamespaceCoins:
		return "processedCoins.json"
	default:
		return namespace + ".json"
	}
}

// Path 账本文件路径
func (l *FileLedger) Path() string {
	return l.path
}

// Load 读取文件；文件不存在视为空集合
func (l *FileLedger) Load(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys, err := l.read()
	if err != nil {
		return err
	}
	l.keys.replace(keys)
	slog.Debug("📒 已加载账本", "path", l.path, "keys", len(keys))
	return nil
}

// Has 只查询内存
func (l *FileLedger) Has(key string) bool {
	return l.keys.has(key)
}

// Record 读取当前文件 → 加入键 → 原子覆盖文件 → 刷新内存
func (l *FileLedger) Record(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.read()
	if err != nil {
		return err
	}

	fresh := newKeySet()
	fresh.replace(current)
	fresh.add(key)

	if err := l.write(fresh.order); err != nil {
		return err
	}
	l.keys.replace(fresh.order)
	return nil
}

// Len 内存中的键数量
func (l *FileLedger) Len() int {
	return l.keys.len()
}

// Close 文件账本无需释放资源
func (l *FileLedger) Close() error {
	return nil
}

func (l *FileLedger) read() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取账本文件失败: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("解析账本文件 %s 失败: %w", l.path, err)
	}
	return keys, nil
}

func (l *FileLedger) write(keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化账本失败: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建账本目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时账本文件失败: %w", err)
	}
	tmpName := tmp.Name()

	// CreateTemp 默认 0600，沿用原文件权限，新文件用 0644
	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(l.path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("设置账本文件权限失败: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入临时账本文件失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("同步临时账本文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("关闭临时账本文件失败: %w", err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("替换账本文件失败: %w", err)
	}
	return nil
}
