package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/storage"
)

// SQLLedger 基于 ledger_keys 表的账本（SQLite 或 MySQL）。
// 唯一约束保证同一个键只会写入一次，Record 是幂等插入
type SQLLedger struct {
	db        *sql.DB
	dialect   storage.Dialect
	namespace string
	keys      *keySet
}

// NewSQLLedger 创建账本并执行迁移
func NewSQLLedger(db *sql.DB, dialect storage.Dialect, namespace string) (*SQLLedger, error) {
	if dialect != storage.DialectSQLite && dialect != storage.DialectMySQL {
		return nil, fmt.Errorf("SQLLedger 不支持方言 %s", dialect)
	}
	if _, err := storage.Migrate(db, dialect); err != nil {
		return nil, err
	}
	return &SQLLedger{db: db, dialect: dialect, namespace: namespace, keys: newKeySet()}, nil
}

// Load 读取该命名空间下的全部键
func (l *SQLLedger) Load(ctx context.Context) error {
	rows, err := l.db.QueryContext(ctx,
		"SELECT dedup_key FROM ledger_keys WHERE namespace = ? ORDER BY recorded_at, dedup_key", l.namespace)
	if err != nil {
		return fmt.Errorf("查询账本失败: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return fmt.Errorf("读取账本行失败: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("读取账本失败: %w", err)
	}

	l.keys.replace(keys)
	slog.Debug("📒 已加载账本", "namespace", l.namespace, "keys", len(keys))
	return nil
}

// Has 只查询内存
func (l *SQLLedger) Has(key string) bool {
	return l.keys.has(key)
}

// Record 幂等插入
func (l *SQLLedger) Record(ctx context.Context, key string) error {
	key = internal.CanonicalKey(key)
	query := "INSERT OR IGNORE INTO ledger_keys (namespace, dedup_key, recorded_at) VALUES (?, ?, ?)"
	if l.dialect == storage.DialectMySQL {
		query = "INSERT IGNORE INTO ledger_keys (namespace, dedup_key, recorded_at) VALUES (?, ?, ?)"
	}

	if _, err := l.db.ExecContext(ctx, query, l.namespace, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("写入账本失败: %w", err)
	}
	l.keys.add(key)
	return nil
}

// Len 内存中的键数量
func (l *SQLLedger) Len() int {
	return l.keys.len()
}

// Close 连接由调用方管理
func (l *SQLLedger) Close() error {
	return nil
}
