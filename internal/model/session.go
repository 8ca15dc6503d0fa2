// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// SessionStatus はレビューセッションのフェーズを表す。
type SessionStatus string

const (
	// StatusSetup はロスター準備中のフェーズ。
	StatusSetup SessionStatus = "setup"
	// StatusReflection は振り返り記入フェーズ。
	StatusReflection SessionStatus = "reflection"
	// StatusCritique は相互フィードバックフェーズ。
	StatusCritique SessionStatus = "critique"
	// StatusComplete は終了したフェーズ。
	StatusComplete SessionStatus = "complete"
	// StatusArchived はアーカイブ済み。セッションは削除されずこの状態で残る。
	StatusArchived SessionStatus = "archived"
)

// Valid は定義済みのフェーズかどうかを返す。
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusSetup, StatusReflection, StatusCritique, StatusComplete, StatusArchived:
		return true
	default:
		return false
	}
}

// RosterEntry はロスターの1件を表す。
type RosterEntry struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Session はピアレビューの1回分の実施単位を表す。
// 作成者(OwnerID)のみがフェーズ遷移とロスター更新を行える。
type Session struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"ownerId"`
	OwnerEmail  string        `json:"ownerEmail"`
	Name        string        `json:"name"`
	Status      SessionStatus `json:"status"`
	Roster      []RosterEntry `json:"roster"`
	CreatedAt   time.Time     `json:"createdAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	AdvancedAt  *time.Time    `json:"advancedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	ArchivedAt  *time.Time    `json:"archivedAt,omitempty"`
	ReopenedAt  *time.Time    `json:"reopenedAt,omitempty"`

	// Version は書き込みのたびに1ずつ増える。並行更新の検出に使う。
	Version int64 `json:"version"`
}

// IsOwner は呼び出し元がセッションの作成者かどうかを返す。
func (s *Session) IsOwner(caller *Identity) bool {
	return caller != nil && s.OwnerID == caller.ID
}

// RosterEntryFor はメールアドレス（大文字小文字を区別しない）に一致するロスター項目を返す。
func (s *Session) RosterEntryFor(email string) (RosterEntry, bool) {
	for _, e := range s.Roster {
		if strings.EqualFold(e.Email, email) {
			return e, true
		}
	}
	return RosterEntry{}, false
}

// IsEnrolled はメールアドレスがロスターに含まれるかどうかを返す。
func (s *Session) IsEnrolled(email string) bool {
	_, ok := s.RosterEntryFor(email)
	return ok
}

// IsEnrolledCaller は呼び出し元を参加者として扱えるかどうかを返す。
// メールアドレスが未確認の呼び出し元は、ロスターに一致しても参加者とみなさない。
func (s *Session) IsEnrolledCaller(caller *Identity) bool {
	return caller != nil && caller.EmailVerified && s.IsEnrolled(caller.Email)
}

// EnrollmentError はIsEnrolledCallerを満たさない呼び出し元に返すエラーを生成する。
func (s *Session) EnrollmentError(caller *Identity) *APIError {
	if caller != nil && !caller.EmailVerified {
		return NewEmailNotVerifiedError()
	}
	return NewNotEnrolledError()
}

// CanView は呼び出し元がセッション詳細を参照できるかどうかを返す。
func (s *Session) CanView(caller *Identity) bool {
	return s.IsOwner(caller) || s.IsEnrolledCaller(caller)
}
