package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/reviewloop/internal/kvstore"
	"github.com/hitoshi/reviewloop/internal/model"
)

// KVReflectionRepo はレコードストアを使用した振り返りリポジトリ。
type KVReflectionRepo struct {
	store kvstore.Store
}

// NewKVReflectionRepo はKVReflectionRepoを生成する。
func NewKVReflectionRepo(store kvstore.Store) *KVReflectionRepo {
	return &KVReflectionRepo{store: store}
}

// Find は(sessionID, email)の振り返りを取得する。見つからない場合はnilを返す。
func (r *KVReflectionRepo) Find(ctx context.Context, sessionID, email string) (*model.Reflection, error) {
	raw, err := r.store.Get(ctx, ReflectionKey(sessionID, email))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reflection: %w", err)
	}
	return decodeReflection(raw)
}

// Save は振り返りを上書き保存する。キーは作成者1人が専有するため無条件に書き込む。
func (r *KVReflectionRepo) Save(ctx context.Context, reflection *model.Reflection) error {
	reflection.ParticipantEmail = NormalizeEmail(reflection.ParticipantEmail)

	raw, err := json.Marshal(reflection)
	if err != nil {
		return fmt.Errorf("failed to encode reflection: %w", err)
	}

	if err := r.store.Put(ctx, ReflectionKey(reflection.SessionID, reflection.ParticipantEmail), raw); err != nil {
		return fmt.Errorf("failed to save reflection: %w", err)
	}
	return nil
}

// ListBySession はセッション内の全振り返りを返す。
func (r *KVReflectionRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Reflection, error) {
	entries, err := r.store.Scan(ctx, ReflectionPrefix(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list reflections: %w", err)
	}

	reflections := make([]*model.Reflection, 0, len(entries))
	for _, e := range entries {
		ref, err := decodeReflection(e.Value)
		if err != nil {
			return nil, err
		}
		reflections = append(reflections, ref)
	}
	return reflections, nil
}

func decodeReflection(raw []byte) (*model.Reflection, error) {
	ref := &model.Reflection{}
	if err := json.Unmarshal(raw, ref); err != nil {
		return nil, fmt.Errorf("failed to decode reflection: %w", err)
	}
	return ref, nil
}

// compile-time interface check
var _ ReflectionRepository = (*KVReflectionRepo)(nil)
