// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの機械可読な種別を表す。
// HTTPステータスへの変換はhandler層で一括して行う。
type ErrorKind string

const (
	KindUnauthenticated     ErrorKind = "UNAUTHENTICATED"
	KindForbidden           ErrorKind = "FORBIDDEN"
	KindInvalidArgument     ErrorKind = "INVALID_ARGUMENT"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindInvalidTransition   ErrorKind = "INVALID_TRANSITION"
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
	KindConflict            ErrorKind = "CONFLICT"
	KindRateLimited         ErrorKind = "RATE_LIMITED"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー種別
	Code     string    // 詳細エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, session, system
	Action   string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeNotOwner            = "NOT_OWNER"
	ErrCodeNotEnrolled         = "NOT_ENROLLED"
	ErrCodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	ErrCodeNotOrganizer        = "NOT_ORGANIZER"
	ErrCodeNotRecipient        = "NOT_RECIPIENT"
	ErrCodeReflectionNotShared = "REFLECTION_NOT_SHARED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInvalidName         = "INVALID_NAME"
	ErrCodeInvalidEmail        = "INVALID_EMAIL"
	ErrCodeInvalidRoster       = "INVALID_ROSTER"
	ErrCodeInvalidRole         = "INVALID_ROLE"
	ErrCodeInvalidPhase        = "INVALID_PHASE"
	ErrCodeSelfFeedback        = "SELF_FEEDBACK"
	ErrCodeRecipientNotEnroll  = "RECIPIENT_NOT_IN_SESSION"
	ErrCodeTextTooLong         = "TEXT_TOO_LONG"
	ErrCodeTooManyScreenshots  = "TOO_MANY_SCREENSHOTS"
	ErrCodeInvalidScreenshot   = "INVALID_SCREENSHOT"
	ErrCodeInvalidResponses    = "INVALID_RESPONSES"
	ErrCodeInvalidTranscript   = "INVALID_TRANSCRIPT"
	ErrCodeEmptyRoster         = "EMPTY_ROSTER"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeVersionConflict     = "VERSION_CONFLICT"
	ErrCodeIdentityUpstream    = "IDENTITY_UPSTREAM"
	ErrCodeRateLimited         = "RATE_LIMITED"
)

// KindOf はエラーチェーンからAPIErrorの種別を取り出す。
// APIErrorを含まない場合は空文字列を返す。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsKind はエラーが指定した種別のAPIErrorかどうかを判定する。
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError(reason string) *APIError {
	return &APIError{
		Kind:     KindUnauthenticated,
		Code:     ErrCodeUnauthenticated,
		Message:  fmt.Sprintf("認証が必要です: %s", reason),
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(code, message string) *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     code,
		Message:  message,
		Category: "auth",
		Action:   "このセッションの主催者に参加状況を確認してください。",
	}
}

// NewNotOwnerError はセッション主催者以外による操作のエラーを生成する。
func NewNotOwnerError() *APIError {
	return NewForbiddenError(ErrCodeNotOwner, "この操作はセッションの主催者のみ実行できます。")
}

// NewNotEnrolledError はロスターに含まれない利用者による操作のエラーを生成する。
func NewNotEnrolledError() *APIError {
	return NewForbiddenError(ErrCodeNotEnrolled, "このセッションに参加登録されていません。")
}

// NewEmailNotVerifiedError はメールアドレス未確認の利用者による参加者操作のエラーを生成する。
func NewEmailNotVerifiedError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeEmailNotVerified,
		Message:  "メールアドレスが確認されていないため、参加者として操作できません。",
		Category: "auth",
		Action:   "認証プロバイダーでメールアドレスを確認してから再度ログインしてください。",
	}
}

// NewInvalidArgumentError は入力不正エラーを生成する。
func NewInvalidArgumentError(code, message string) *APIError {
	return &APIError{
		Kind:     KindInvalidArgument,
		Code:     code,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してから再度お試しください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: "session",
		Action:   "セッションIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが登録されていません。",
		Category: "auth",
		Action:   "先にユーザー登録を行ってください。",
	}
}

// NewInvalidTransitionError はフェーズ遷移のガード違反エラーを生成する。
func NewInvalidTransitionError(action string, from SessionStatus) *APIError {
	return &APIError{
		Kind:     KindInvalidTransition,
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("現在のフェーズ(%s)では %s を実行できません。", from, action),
		Category: "session",
		Action:   "セッションのフェーズを確認してください。",
	}
}

// NewConflictError は同一セッションへの並行更新を検出した場合のエラーを生成する。
func NewConflictError(sessionID string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeVersionConflict,
		Message:  fmt.Sprintf("セッションが他の操作によって更新されました: %s", sessionID),
		Category: "session",
		Action:   "最新の状態を再取得してから再度お試しください。",
	}
}

// NewUpstreamUnavailableError は外部サービスの障害エラーを生成する。
func NewUpstreamUnavailableError(code, service string) *APIError {
	return &APIError{
		Kind:     KindUpstreamUnavailable,
		Code:     code,
		Message:  fmt.Sprintf("外部サービス(%s)に接続できません。", service),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Kind:     KindRateLimited,
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}
