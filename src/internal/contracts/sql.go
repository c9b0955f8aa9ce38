package contracts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/storage"
)

// SQLStore contract_records 表存储（SQLite 或 MySQL）
type SQLStore struct {
	db      *sql.DB
	dialect storage.Dialect
}

// NewSQLStore 创建存储并执行迁移
func NewSQLStore(db *sql.DB, dialect storage.Dialect) (*SQLStore, error) {
	if dialect != storage.DialectSQLite && dialect != storage.DialectMySQL {
		return nil, fmt.Errorf("SQLStore 不支持方言 %s", dialect)
	}
	if _, err := storage.Migrate(db, dialect); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// List 按 (platform, address) 排序返回全部记录
func (s *SQLStore) List(ctx context.Context) ([]internal.ContractRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT address, platform, source_code, twitter_handle, coin_details
	FROM contract_records
	ORDER BY platform, address`)
	if err != nil {
		return nil, fmt.Errorf("查询合约记录失败: %w", err)
	}
	defer rows.Close()

	var records []internal.ContractRecord
	for rows.Next() {
		var (
			rec  internal.ContractRecord
			coin []byte
		)
		if err := rows.Scan(&rec.Address, &rec.Platform, &rec.SourceCode, &rec.TwitterHandle, &coin); err != nil {
			return nil, fmt.Errorf("读取合约记录失败: %w", err)
		}
		if len(coin) > 0 {
			if err := json.Unmarshal(coin, &rec.Coin); err != nil {
				return nil, fmt.Errorf("解析 coin_details (%s) 失败: %w", rec.Address, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Save 插入记录，地址冲突时忽略
func (s *SQLStore) Save(ctx context.Context, rec internal.ContractRecord) error {
	if rec.Platform == "" || rec.Address == "" {
		return fmt.Errorf("合约记录缺少 platform 或 address")
	}

	coin, err := json.Marshal(rec.Coin)
	if err != nil {
		return fmt.Errorf("序列化 coin_details 失败: %w", err)
	}

	query := `INSERT OR IGNORE INTO contract_records (address, platform, source_code, twitter_handle, coin_details)
	VALUES (?, ?, ?, ?, ?)`
	if s.dialect == storage.DialectMySQL {
		query = `INSERT IGNORE INTO contract_records (address, platform, source_code, twitter_handle, coin_details)
	VALUES (?, ?, ?, ?, ?)`
	}

	if _, err := s.db.ExecContext(ctx, query, rec.Address, rec.Platform, rec.SourceCode, rec.TwitterHandle, string(coin)); err != nil {
		return fmt.Errorf("保存合约记录失败: %w", err)
	}
	return nil
}
