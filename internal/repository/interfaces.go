// Package repository はデータ永続化のインターフェースを定義する。
// 実装はkvstore.Store上にJSONドキュメントとしてレコードを保存する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/reviewloop/internal/model"
)

// ErrVersionConflict はセッションの並行更新を検出した場合に返される。
var ErrVersionConflict = errors.New("repository: session version conflict")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// 既に同じメールアドレスのユーザーが存在する場合は既存ユーザーを返し、createdはfalseになる。
	Create(ctx context.Context, user *model.User) (stored *model.User, created bool, err error)
}

// SessionRepository はレビューセッションの永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// Create はセッションを作成する。Versionは1から始まる。
	Create(ctx context.Context, session *model.Session) error

	// Update はsession.Versionが保存済みの値と一致する場合のみ上書きし、Versionを1増やす。
	// 一致しない場合はErrVersionConflictを返す。
	Update(ctx context.Context, session *model.Session) error

	// List は全セッションを返す。
	List(ctx context.Context) ([]*model.Session, error)
}

// ReflectionRepository は振り返り記録の永続化インターフェース。
type ReflectionRepository interface {
	// Find は(sessionID, email)の振り返りを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, sessionID, email string) (*model.Reflection, error)

	// Save は振り返りを上書き保存する。
	Save(ctx context.Context, reflection *model.Reflection) error

	// ListBySession はセッション内の全振り返りを返す。
	ListBySession(ctx context.Context, sessionID string) ([]*model.Reflection, error)
}

// FeedbackRepository はフィードバックの永続化インターフェース。
type FeedbackRepository interface {
	// Save はフィードバックを上書き保存する。
	Save(ctx context.Context, feedback *model.Feedback) error

	// ListBySession はセッション内の全フィードバックを返す。
	ListBySession(ctx context.Context, sessionID string) ([]*model.Feedback, error)
}
