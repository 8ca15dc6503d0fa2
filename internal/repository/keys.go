package repository

import "strings"

// レコードキーのプレフィックス
const (
	userPrefix       = "user:"
	sessionPrefix    = "session:"
	reflectionPrefix = "reflection:"
	feedbackPrefix   = "feedback:"
)

// NormalizeEmail はメールアドレスをキー・比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserKey は user:{email} を返す。
func UserKey(email string) string {
	return userPrefix + NormalizeEmail(email)
}

// SessionKey は session:{id} を返す。
func SessionKey(id string) string {
	return sessionPrefix + id
}

// ReflectionKey は reflection:{sessionId}:{email} を返す。
func ReflectionKey(sessionID, email string) string {
	return ReflectionPrefix(sessionID) + NormalizeEmail(email)
}

// ReflectionPrefix はセッション内の全振り返りを走査するプレフィックスを返す。
// 末尾の区切り文字により "s1" と "s10" のような前方一致の衝突を防ぐ。
func ReflectionPrefix(sessionID string) string {
	return reflectionPrefix + sessionID + ":"
}

// FeedbackKey は feedback:{sessionId}:{authorEmail}:{recipientEmail} を返す。
func FeedbackKey(sessionID, authorEmail, recipientEmail string) string {
	return FeedbackPrefix(sessionID) + NormalizeEmail(authorEmail) + ":" + NormalizeEmail(recipientEmail)
}

// FeedbackPrefix はセッション内の全フィードバックを走査するプレフィックスを返す。
func FeedbackPrefix(sessionID string) string {
	return feedbackPrefix + sessionID + ":"
}
