// Package model はドメインモデルを定義する。
package model

import "time"

// Role は利用者の役割を表す。
type Role string

const (
	// RoleOrganizer はセッションを作成・運営できる主催者。
	RoleOrganizer Role = "organizer"
	// RoleParticipant はセッションに参加する受講者。
	RoleParticipant Role = "participant"
)

// Valid は定義済みの役割かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RoleParticipant
}

// User はサービス利用ユーザーを表す。
// サインアップ時に作成され、以後は更新しない。
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"` // 小文字に正規化済み
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Identity は認証情報から解決された呼び出し元を表す。
// 認可判定はすべてこの値に基づいて行う。
type Identity struct {
	ID            string
	Email         string // 小文字に正規化済み
	EmailVerified bool
	DisplayName   string
	Role          Role // 未サインアップの場合は空
}

// IsOrganizer は主催者としてセッションを作成できるかどうかを返す。
func (i *Identity) IsOrganizer() bool {
	return i != nil && i.Role == RoleOrganizer
}
