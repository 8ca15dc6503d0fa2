package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/reviewloop/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 機械可読な種別と詳細コード、原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Kind     model.ErrorKind `json:"kind"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Category string          `json:"category"`
	Action   string          `json:"action"`
}

// StatusForKind はエラー種別に対応するHTTPステータスコードを返す。
// 未知の種別は500として扱う。
func StatusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindUnauthenticated:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindInvalidArgument, model.KindInvalidTransition:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	case model.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Kind:     apiErr.Kind,
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteAPIError は種別から決まるステータスコードでエラーレスポンスを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForKind(apiErr.Kind), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
