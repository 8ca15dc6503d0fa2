package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig はBadgerDBバックエンドの設定。
type BadgerConfig struct {
	// Path はデータディレクトリ。InMemoryがtrueの場合は無視される。
	Path string

	// InMemory はディスクに永続化しないモード。テスト用。
	InMemory bool

	// SyncWrites は書き込みごとにfsyncする。
	SyncWrites bool

	// GCInterval はvalue logのGC間隔。0で無効。
	GCInterval time.Duration

	// GCDiscardRatio はGCを実行する破棄可能データの最小比率。
	GCDiscardRatio float64

	// Logger はBadgerDB内部ログの出力先。nilの場合は出力しない。
	Logger *slog.Logger
}

// DefaultBadgerConfig は本番向けのデフォルト設定を返す。
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig はテスト向けのインメモリ設定を返す。
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger はslog.LoggerをBadgerDBのLoggerインターフェースに適合させる。
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore はBadgerDBを使用したレコードストア。
// 単一プロセスでの運用とテストで使用する。
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenBadger はBadgerDBを開き、設定されていればGCループを開始する。
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent badger store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	s := &BadgerStore{db: db, logger: cfg.Logger}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// Get はキーに対応する値を返す。
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Put はキーの値を上書きする。
func (s *BadgerStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap は1トランザクション内で現在値を比較してから書き込む。
// 同一キーへの並行トランザクションはBadgerの楽観的並行制御によりErrConflictとなる。
func (s *BadgerStore) CompareAndSwap(ctx context.Context, key string, old, new []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		var current []byte
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			current = nil
		case err != nil:
			return err
		default:
			current, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
		}

		if !sameValue(current, old) {
			return ErrConflict
		}
		return txn.Set([]byte(key), new)
	})
	if errors.Is(err, ErrConflict) || errors.Is(err, badger.ErrConflict) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to compare-and-swap %s: %w", key, err)
	}
	return nil
}

// Scan はプレフィックスで始まる全エントリをキー昇順で返す。
func (s *BadgerStore) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	p := []byte(prefix)
	var entries []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{Key: string(item.KeyCopy(nil)), Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	return entries, nil
}

// Close はGCループを停止してからデータベースを閉じる。
func (s *BadgerStore) Close() error {
	if s.stopCh != nil {
		close(s.stopCh)
		<-s.doneCh
		s.stopCh = nil
	}
	return s.db.Close()
}

// gcLoop は定期的にvalue logのGCを実行する。
func (s *BadgerStore) gcLoop(interval time.Duration, ratio float64) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewriteはGC不要を意味する
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				if s.logger != nil {
					s.logger.Warn("badger value log GC failed", slog.String("error", err.Error()))
				}
			}
		}
	}
}

// compile-time interface check
var _ Store = (*BadgerStore)(nil)
