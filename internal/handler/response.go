// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reviewloop/internal/middleware"
	"github.com/hitoshi/reviewloop/internal/model"
)

// maxRequestBodySize はリクエストボディの上限バイト数。
const maxRequestBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとして読み込む。
// 解析に失敗した場合はエラーレスポンスを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidArgumentError(
			model.ErrCodeInvalidRequest,
			"リクエストボディの解析に失敗しました。",
		))
		return false
	}
	return true
}

// callerFrom はコンテキストから呼び出し元を取り出す。
// 取り出せない場合は401を書き込みnilを返す。
func callerFrom(w http.ResponseWriter, r *http.Request) *model.Identity {
	caller, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError("呼び出し元を特定できません"))
		return nil
	}
	return caller
}

// emailParam はURLパスからメールアドレスのパラメータを取り出す。
// クライアントが@をエスケープして送った場合に備えてデコードする。
func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// handleServiceError はサービス層から返されたエラーを種別に応じたHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
