// Package user はユーザー登録のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/repository"
)

// MaxDisplayNameLength は表示名の最大文字数。
const MaxDisplayNameLength = 100

// Service はユーザー登録のサービス層。
type Service struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
		now:      time.Now,
	}
}

// Signup は呼び出し元のユーザーを登録する。
// displayNameが空の場合はIdPから得た名前を使う。
// ユーザーは作成後に変更されないため、登録済みの場合は保存済みのユーザーをそのまま返す。
func (s *Service) Signup(ctx context.Context, caller *model.Identity, displayName string, role model.Role) (*model.User, error) {
	if caller == nil {
		return nil, model.NewUnauthenticatedError("no identity")
	}

	existing, err := s.userRepo.FindByEmail(ctx, caller.Email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if !role.Valid() {
		return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidRole,
			"役割は organizer または participant を指定してください。")
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = strings.TrimSpace(caller.DisplayName)
	}
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxDisplayNameLength {
		return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidName,
			fmt.Sprintf("表示名は1〜%d文字で入力してください。", MaxDisplayNameLength))
	}

	user := &model.User{
		ID:          caller.ID,
		Email:       caller.Email,
		DisplayName: name,
		Role:        role,
		CreatedAt:   s.now().UTC(),
	}

	stored, created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	if created {
		slog.Info("user signed up",
			slog.String("user_id", stored.ID),
			slog.String("email", stored.Email),
			slog.String("role", string(stored.Role)),
		)
	}

	return stored, nil
}

// Me は呼び出し元の登録済みユーザーを返す。未登録の場合はNOT_FOUND。
func (s *Service) Me(ctx context.Context, caller *model.Identity) (*model.User, error) {
	if caller == nil {
		return nil, model.NewUnauthenticatedError("no identity")
	}

	user, err := s.userRepo.FindByEmail(ctx, caller.Email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
