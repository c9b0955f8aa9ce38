package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/storage"
)

// PGLedger PostgreSQL 账本
type PGLedger struct {
	pool      *pgxpool.Pool
	namespace string
	keys      *keySet
}

// NewPGLedger 创建账本并执行迁移
func NewPGLedger(pool *pgxpool.Pool, namespace string) (*PGLedger, error) {
	if _, err := storage.MigratePool(pool); err != nil {
		return nil, err
	}
	return &PGLedger{pool: pool, namespace: namespace, keys: newKeySet()}, nil
}

// Load 读取该命名空间下的全部键
func (l *PGLedger) Load(ctx context.Context) error {
	rows, err := l.pool.Query(ctx,
		"SELECT dedup_key FROM ledger_keys WHERE namespace = $1 ORDER BY recorded_at, dedup_key", l.namespace)
	if err != nil {
		return fmt.Errorf("查询账本失败: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("读取账本失败: %w", err)
	}

	l.keys.replace(keys)
	slog.Debug("📒 已加载账本", "namespace", l.namespace, "keys", len(keys))
	return nil
}

// Has 只查询内存
func (l *PGLedger) Has(key string) bool {
	return l.keys.has(key)
}

// Record 幂等插入
func (l *PGLedger) Record(ctx context.Context, key string) error {
	key = internal.CanonicalKey(key)
	_, err := l.pool.Exec(ctx,
		"INSERT INTO ledger_keys (namespace, dedup_key) VALUES ($1, $2) ON CONFLICT (namespace, dedup_key) DO NOTHING",
		l.namespace, key)
	if err != nil {
		return fmt.Errorf("写入账本失败: %w", err)
	}
	l.keys.add(key)
	return nil
}

// Len 内存中的键数量
func (l *PGLedger) Len() int {
	return l.keys.len()
}

// Close 连接池由调用方管理
func (l *PGLedger) Close() error {
	return nil
}
