// Package identity は受信した認証情報を呼び出し元のIdentityに解決する。
//
// 認証情報の管理は行わず、IdPに検証を委ねた結果と、
// サインアップ済みユーザーの役割を組み合わせてIdentityを構築する。
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/repository"
)

const bearerPrefix = "bearer "

// UserFinder はIdentity解決に必要なユーザー検索インターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// Resolver は認証情報をIdentityに解決する。
type Resolver struct {
	verifier TokenVerifier
	users    UserFinder
}

// NewResolver はResolverを生成する。
func NewResolver(verifier TokenVerifier, users UserFinder) *Resolver {
	return &Resolver{verifier: verifier, users: users}
}

// Resolve はAuthorizationヘッダーの値からIdentityを解決する。
// 認証情報の欠落・形式不正・IdPによる拒否はUNAUTHENTICATED、
// IdPやストアへの到達失敗はUPSTREAM_UNAVAILABLEとなる。
func (r *Resolver) Resolve(ctx context.Context, credential string) (*model.Identity, error) {
	token, ok := parseBearer(credential)
	if !ok {
		return nil, model.NewUnauthenticatedError("missing or malformed credential")
	}

	claims, err := r.verifier.Verify(ctx, token)
	if errors.Is(err, ErrTokenRejected) {
		return nil, model.NewUnauthenticatedError("credential rejected")
	}
	if err != nil {
		slog.Warn("identity provider unavailable", slog.String("error", err.Error()))
		return nil, model.NewUpstreamUnavailableError(model.ErrCodeIdentityUpstream, "identity")
	}

	id := &model.Identity{
		ID:            claims.Subject,
		Email:         repository.NormalizeEmail(claims.Email),
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.Name,
	}

	user, err := r.users.FindByEmail(ctx, id.Email)
	if err != nil {
		slog.Error("failed to look up user for identity",
			slog.String("email", id.Email),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamUnavailableError(model.ErrCodeIdentityUpstream, "store")
	}
	if user != nil {
		id.Role = user.Role
		if user.DisplayName != "" {
			id.DisplayName = user.DisplayName
		}
	}

	return id, nil
}

// parseBearer は "Bearer <token>" 形式からトークンを取り出す。
func parseBearer(credential string) (string, bool) {
	credential = strings.TrimSpace(credential)
	if len(credential) <= len(bearerPrefix) || !strings.EqualFold(credential[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(credential[len(bearerPrefix):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
