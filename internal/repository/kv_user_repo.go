package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/reviewloop/internal/kvstore"
	"github.com/hitoshi/reviewloop/internal/model"
)

// KVUserRepo はレコードストアを使用したユーザーリポジトリ。
type KVUserRepo struct {
	store kvstore.Store
}

// NewKVUserRepo はKVUserRepoを生成する。
func NewKVUserRepo(store kvstore.Store) *KVUserRepo {
	return &KVUserRepo{store: store}
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *KVUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	raw, err := r.store.Get(ctx, UserKey(email))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user := &model.User{}
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return user, nil
}

// Create はキーが存在しない場合のみユーザーを書き込む。
// ユーザーは作成後に変更されないため、競合時は既存の値をそのまま返す。
func (r *KVUserRepo) Create(ctx context.Context, user *model.User) (*model.User, bool, error) {
	user.Email = NormalizeEmail(user.Email)

	raw, err := json.Marshal(user)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode user: %w", err)
	}

	err = r.store.CompareAndSwap(ctx, UserKey(user.Email), nil, raw)
	if errors.Is(err, kvstore.ErrConflict) {
		existing, findErr := r.FindByEmail(ctx, user.Email)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing == nil {
			return nil, false, fmt.Errorf("user %s vanished after conflict", user.Email)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	return user, true, nil
}

// compile-time interface check
var _ UserRepository = (*KVUserRepo)(nil)
