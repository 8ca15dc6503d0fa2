// Package kvstore はレコードストアの抽象化とバックエンド実装を提供する。
//
// ストアはキー完全一致での取得・書き込みと、プレフィックスによる走査のみを提供する。
// 単一キーの読み取り-変更-書き込みはCompareAndSwapでアトミックに行えるが、
// 複数キーにまたがるトランザクションは提供しない。
package kvstore

import (
	"bytes"
	"context"
	"errors"
)

var (
	// ErrNotFound はキーが存在しない場合に返される。
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrConflict はCompareAndSwapの期待値が現在値と一致しない場合に返される。
	ErrConflict = errors.New("kvstore: compare-and-swap conflict")
)

// Entry はプレフィックス走査で返されるキーと値の組。
type Entry struct {
	Key   string
	Value []byte
}

// Store はレコードストアのインターフェース。
type Store interface {
	// Get はキーに対応する値を返す。存在しない場合はErrNotFoundを返す。
	Get(ctx context.Context, key string) ([]byte, error)

	// Put はキーの値を無条件に上書きする。
	Put(ctx context.Context, key string, value []byte) error

	// CompareAndSwap は現在値がoldと一致する場合のみnewを書き込む。
	// oldがnilの場合は「キーが存在しないこと」を期待値とする。
	// 一致しない場合はErrConflictを返す。
	CompareAndSwap(ctx context.Context, key string, old, new []byte) error

	// Scan はprefixで始まる全エントリをキー昇順で返す。
	Scan(ctx context.Context, prefix string) ([]Entry, error)

	// Close はストアを閉じる。
	Close() error
}

// sameValue はCAS比較用に現在値と期待値を比較する。
// currentがnilの場合はキーが存在しないことを表す。
func sameValue(current, old []byte) bool {
	if old == nil || current == nil {
		return old == nil && current == nil
	}
	return bytes.Equal(current, old)
}
