package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/reviewloop/internal/kvstore"
	"github.com/hitoshi/reviewloop/internal/model"
)

// KVFeedbackRepo はレコードストアを使用したフィードバックリポジトリ。
type KVFeedbackRepo struct {
	store kvstore.Store
}

// NewKVFeedbackRepo はKVFeedbackRepoを生成する。
func NewKVFeedbackRepo(store kvstore.Store) *KVFeedbackRepo {
	return &KVFeedbackRepo{store: store}
}

// Save はフィードバックを上書き保存する。
// 同じ(送信者, 受信者)の組への再送信は1件に収束する。
func (r *KVFeedbackRepo) Save(ctx context.Context, feedback *model.Feedback) error {
	feedback.AuthorEmail = NormalizeEmail(feedback.AuthorEmail)
	feedback.RecipientEmail = NormalizeEmail(feedback.RecipientEmail)

	raw, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}

	key := FeedbackKey(feedback.SessionID, feedback.AuthorEmail, feedback.RecipientEmail)
	if err := r.store.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// ListBySession はセッション内の全フィードバックを返す。
func (r *KVFeedbackRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Feedback, error) {
	entries, err := r.store.Scan(ctx, FeedbackPrefix(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	list := make([]*model.Feedback, 0, len(entries))
	for _, e := range entries {
		fb := &model.Feedback{}
		if err := json.Unmarshal(e.Value, fb); err != nil {
			return nil, fmt.Errorf("failed to decode feedback: %w", err)
		}
		list = append(list, fb)
	}
	return list, nil
}

// compile-time interface check
var _ FeedbackRepository = (*KVFeedbackRepo)(nil)
