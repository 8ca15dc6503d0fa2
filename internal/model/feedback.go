// Package model はドメインモデルを定義する。
package model

import "time"

// Feedback はセッション内で参加者が別の参加者へ送るフィードバックを表す。
// (SessionID, AuthorEmail, RecipientEmail) ごとに最大1件で、再送信は上書きになる。
type Feedback struct {
	SessionID      string    `json:"sessionId"`
	AuthorEmail    string    `json:"authorEmail"`
	RecipientEmail string    `json:"recipientEmail"`
	Critique       string    `json:"critique"`
	Questions      string    `json:"questions"`
	CreatedAt      time.Time `json:"createdAt"`
}

// StudentProgress はロスター1件ごとの進捗を表す。
type StudentProgress struct {
	Email                 string `json:"email"`
	DisplayName           string `json:"displayName"`
	ReflectionComplete    bool   `json:"reflectionComplete"`
	FeedbackGivenCount    int    `json:"feedbackGivenCount"`
	FeedbackReceivedCount int    `json:"feedbackReceivedCount"`
}

// Progress はセッションの集計結果を表す。
type Progress struct {
	SessionID            string            `json:"sessionId"`
	Status               SessionStatus     `json:"status"`
	TotalStudents        int               `json:"totalStudents"`
	CompletedReflections int               `json:"completedReflections"`
	FeedbackSubmissions  int               `json:"feedbackSubmissions"`
	Students             []StudentProgress `json:"students"`
}
