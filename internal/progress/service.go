// Package progress はセッションの進捗集計を提供する。
// 集計は呼び出しのたびに振り返りとフィードバックの全件走査から再計算する。
package progress

import (
	"context"
	"fmt"

	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/repository"
)

// SessionFinder はセッションの参照インターフェース。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// Service は進捗集計のサービス層。
type Service struct {
	sessions    SessionFinder
	reflections repository.ReflectionRepository
	feedbacks   repository.FeedbackRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sessions SessionFinder, reflections repository.ReflectionRepository, feedbacks repository.FeedbackRepository) *Service {
	return &Service{
		sessions:    sessions,
		reflections: reflections,
		feedbacks:   feedbacks,
	}
}

// Compute はセッションの進捗を集計する。セッション作成者のみ実行できる。
func (s *Service) Compute(ctx context.Context, caller *model.Identity, sessionID string) (*model.Progress, error) {
	sess, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if sess == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	if !sess.IsOwner(caller) {
		return nil, model.NewNotOwnerError()
	}

	reflections, err := s.reflections.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("振り返りの集計に失敗しました: %w", err)
	}
	feedbacks, err := s.feedbacks.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("フィードバックの集計に失敗しました: %w", err)
	}

	return aggregate(sess, reflections, feedbacks), nil
}

// aggregate はロスターを基準に振り返りとフィードバックを集計する。
// ロスター外の振り返りは完了数に含めないが、フィードバック総数には全件を含める。
func aggregate(sess *model.Session, reflections []*model.Reflection, feedbacks []*model.Feedback) *model.Progress {
	completed := make(map[string]bool, len(reflections))
	for _, ref := range reflections {
		if ref.Completed {
			completed[repository.NormalizeEmail(ref.ParticipantEmail)] = true
		}
	}

	given := make(map[string]int)
	received := make(map[string]int)
	for _, fb := range feedbacks {
		given[repository.NormalizeEmail(fb.AuthorEmail)]++
		received[repository.NormalizeEmail(fb.RecipientEmail)]++
	}

	p := &model.Progress{
		SessionID:           sess.ID,
		Status:              sess.Status,
		TotalStudents:       len(sess.Roster),
		FeedbackSubmissions: len(feedbacks),
		Students:            make([]model.StudentProgress, 0, len(sess.Roster)),
	}

	for _, entry := range sess.Roster {
		email := repository.NormalizeEmail(entry.Email)
		if completed[email] {
			p.CompletedReflections++
		}
		p.Students = append(p.Students, model.StudentProgress{
			Email:                 email,
			DisplayName:           entry.DisplayName,
			ReflectionComplete:    completed[email],
			FeedbackGivenCount:    given[email],
			FeedbackReceivedCount: received[email],
		})
	}

	return p
}
