package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore はPostgreSQLのkv_recordsテーブルを使用したレコードストア。
// 複数プロセスで同じストアを共有する場合に使用する。
// テーブルはdatabase.RunMigrationsで作成される。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get はキーに対応する値を返す。
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_records WHERE key = $1`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return value, nil
}

// Put はキーの値をUPSERTする。
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

// CompareAndSwap は行ロックを取得して現在値を比較してから書き込む。
func (s *PostgresStore) CompareAndSwap(ctx context.Context, key string, old, new []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if old == nil {
		// 新規作成: 既に存在する場合は競合
		result, err := tx.ExecContext(ctx,
			`INSERT INTO kv_records (key, value, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (key) DO NOTHING`,
			key, new,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrConflict
		}
		return commit(tx)
	}

	var current []byte
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM kv_records WHERE key = $1 FOR UPDATE`,
		key,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to lock record: %w", err)
	}

	if !sameValue(current, old) {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE kv_records SET value = $2, updated_at = now() WHERE key = $1`,
		key, new,
	); err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	return commit(tx)
}

// Scan はプレフィックスで始まる全レコードをキー昇順で返す。
func (s *PostgresStore) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv_records WHERE starts_with(key, $1) ORDER BY key`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return entries, nil
}

// Close は基盤となるDB接続を閉じる。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
