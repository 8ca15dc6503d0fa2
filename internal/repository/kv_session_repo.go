package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/reviewloop/internal/kvstore"
	"github.com/hitoshi/reviewloop/internal/model"
)

// KVSessionRepo はレコードストアを使用したセッションリポジトリ。
// 書き込みはすべてCompareAndSwapで行い、古いスナップショットによる上書きを防ぐ。
type KVSessionRepo struct {
	store kvstore.Store
}

// NewKVSessionRepo はKVSessionRepoを生成する。
func NewKVSessionRepo(store kvstore.Store) *KVSessionRepo {
	return &KVSessionRepo{store: store}
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *KVSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	raw, err := r.store.Get(ctx, SessionKey(id))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return decodeSession(raw)
}

// Create はセッションを作成する。
func (r *KVSessionRepo) Create(ctx context.Context, session *model.Session) error {
	next := *session
	next.Version = 1

	raw, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	err = r.store.CompareAndSwap(ctx, SessionKey(session.ID), nil, raw)
	if errors.Is(err, kvstore.ErrConflict) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	session.Version = next.Version
	return nil
}

// Update は保存済みのVersionがsession.Versionと一致する場合のみ上書きする。
func (r *KVSessionRepo) Update(ctx context.Context, session *model.Session) error {
	key := SessionKey(session.ID)

	current, err := r.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	stored, err := decodeSession(current)
	if err != nil {
		return err
	}
	if stored.Version != session.Version {
		return ErrVersionConflict
	}

	next := *session
	next.Version = session.Version + 1

	raw, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	err = r.store.CompareAndSwap(ctx, key, current, raw)
	if errors.Is(err, kvstore.ErrConflict) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	session.Version = next.Version
	return nil
}

// List は全セッションを返す。
func (r *KVSessionRepo) List(ctx context.Context) ([]*model.Session, error) {
	entries, err := r.store.Scan(ctx, sessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*model.Session, 0, len(entries))
	for _, e := range entries {
		s, err := decodeSession(e.Value)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func decodeSession(raw []byte) (*model.Session, error) {
	s := &model.Session{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return s, nil
}

// compile-time interface check
var _ SessionRepository = (*KVSessionRepo)(nil)
