// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/reviewloop/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// identityContextKey はリクエストコンテキストに呼び出し元を格納するためのキー。
	identityContextKey = contextKey("identity")
	// requestLogContextKey はアクセスログ用の記録先を格納するためのキー。
	requestLogContextKey = contextKey("request_log")
)

// IdentityResolver は認証情報を呼び出し元に解決するインターフェース。
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*model.Identity, error)
}

// NewIdentityMiddleware はAuthorizationヘッダーから呼び出し元を解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 解決できないリクエストには統一エラーフォーマットで応答する。
func NewIdentityMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteAPIError(w, apiErr)
					return
				}
				slog.Error("failed to resolve identity", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}

			if entry, ok := r.Context().Value(requestLogContextKey).(*requestLogEntry); ok {
				entry.callerEmail = identity.Email
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから呼び出し元を取得する。
// Identityミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストに呼び出し元を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
