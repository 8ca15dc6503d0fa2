// Package feedback はセッション内の参加者同士のフィードバックを管理する。
package feedback

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/reviewloop/internal/metrics"
	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/repository"
	"github.com/hitoshi/reviewloop/internal/security"
)

const (
	// MaxCritiqueLength は講評の最大文字数。
	MaxCritiqueLength = 5000
	// MaxQuestionsLength は質問の最大文字数。
	MaxQuestionsLength = 2000
)

var validate = validator.New()

// SessionFinder はセッションの参照インターフェース。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// SubmitInput はフィードバック送信の入力。
type SubmitInput struct {
	RecipientEmail string
	Critique       string
	Questions      string
}

// Service はフィードバックのサービス層。
type Service struct {
	sessions  SessionFinder
	feedbacks repository.FeedbackRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sessions SessionFinder, feedbacks repository.FeedbackRepository, sanitizer security.TextSanitizer, collector metrics.MetricsCollector) *Service {
	return &Service{
		sessions:  sessions,
		feedbacks: feedbacks,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// Submit は呼び出し元から受信者へのフィードバックを保存する。
// 同じ受信者への再送信は以前の内容を上書きする。
//
// 検証順序: 受信者メールアドレスの形式、自己宛て、文字数、セッションの存在、
// 送信者の参加登録、受信者の参加登録、critiqueフェーズであること。
func (s *Service) Submit(ctx context.Context, caller *model.Identity, sessionID string, input SubmitInput) (*model.Feedback, error) {
	if caller == nil {
		return nil, model.NewUnauthenticatedError("呼び出し元が不明です")
	}

	recipient := repository.NormalizeEmail(input.RecipientEmail)
	if err := validate.Var(recipient, "required,email,max=254"); err != nil {
		return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidEmail,
			fmt.Sprintf("受信者のメールアドレスが不正です: %q", input.RecipientEmail))
	}

	author := repository.NormalizeEmail(caller.Email)
	if recipient == author {
		return nil, model.NewInvalidArgumentError(model.ErrCodeSelfFeedback,
			"自分自身にフィードバックを送ることはできません。")
	}

	if utf8.RuneCountInString(input.Critique) > MaxCritiqueLength {
		return nil, model.NewInvalidArgumentError(model.ErrCodeTextTooLong,
			fmt.Sprintf("講評は%d文字以内で入力してください。", MaxCritiqueLength))
	}
	if utf8.RuneCountInString(input.Questions) > MaxQuestionsLength {
		return nil, model.NewInvalidArgumentError(model.ErrCodeTextTooLong,
			fmt.Sprintf("質問は%d文字以内で入力してください。", MaxQuestionsLength))
	}

	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsEnrolledCaller(caller) {
		return nil, sess.EnrollmentError(caller)
	}
	if !sess.IsEnrolled(recipient) {
		return nil, model.NewInvalidArgumentError(model.ErrCodeRecipientNotEnroll,
			fmt.Sprintf("受信者はこのセッションに参加していません: %s", recipient))
	}
	if sess.Status != model.StatusCritique {
		return nil, model.NewInvalidTransitionError("submitFeedback", sess.Status)
	}

	fb := &model.Feedback{
		SessionID:      sess.ID,
		AuthorEmail:    author,
		RecipientEmail: recipient,
		Critique:       s.sanitizer.Clean(input.Critique, MaxCritiqueLength),
		Questions:      s.sanitizer.Clean(input.Questions, MaxQuestionsLength),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.feedbacks.Save(ctx, fb); err != nil {
		return nil, fmt.Errorf("フィードバックの保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordFeedbackSubmitted()
	}
	return fb, nil
}

// ListFor は受信者宛てのフィードバックを返す。受信者本人とセッション作成者のみ参照できる。
func (s *Service) ListFor(ctx context.Context, caller *model.Identity, sessionID, recipientEmail string) ([]*model.Feedback, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	recipient := repository.NormalizeEmail(recipientEmail)
	if !sess.IsOwner(caller) {
		if caller == nil || repository.NormalizeEmail(caller.Email) != recipient {
			return nil, model.NewForbiddenError(model.ErrCodeNotRecipient,
				"このフィードバックを参照できるのは受信者本人とセッションの主催者のみです。")
		}
		if !caller.EmailVerified {
			return nil, model.NewEmailNotVerifiedError()
		}
	}

	return s.list(ctx, sess.ID, func(fb *model.Feedback) bool {
		return fb.RecipientEmail == recipient
	})
}

// ListBy は呼び出し元が送信したフィードバックを返す。
func (s *Service) ListBy(ctx context.Context, caller *model.Identity, sessionID string) ([]*model.Feedback, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.CanView(caller) {
		return nil, sess.EnrollmentError(caller)
	}

	author := repository.NormalizeEmail(caller.Email)
	return s.list(ctx, sess.ID, func(fb *model.Feedback) bool {
		return fb.AuthorEmail == author
	})
}

// list はセッション内のフィードバックを絞り込み、作成日時、送信者の順に並べる。
func (s *Service) list(ctx context.Context, sessionID string, keep func(fb *model.Feedback) bool) ([]*model.Feedback, error) {
	all, err := s.feedbacks.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("フィードバック一覧の取得に失敗しました: %w", err)
	}

	result := make([]*model.Feedback, 0, len(all))
	for _, fb := range all {
		if keep(fb) {
			result = append(result, fb)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].AuthorEmail < result[j].AuthorEmail
	})
	return result, nil
}

func (s *Service) loadSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if sess == nil {
		return nil, model.NewSessionNotFoundError(id)
	}
	return sess, nil
}
