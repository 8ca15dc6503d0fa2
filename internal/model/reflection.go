// Package model はドメインモデルを定義する。
package model

import "time"

// SummaryResponseKey は振り返り回答のうち要約を格納するキー。
const SummaryResponseKey = "summary"

// Reflection は参加者1人の振り返り記録を表す。
// (SessionID, ParticipantEmail) ごとに1件で、後の書き込みが上書きする。
type Reflection struct {
	SessionID        string            `json:"sessionId"`
	ParticipantEmail string            `json:"participantEmail"`
	Responses        map[string]string `json:"responses"`
	Screenshots      []string          `json:"screenshots"`
	Completed        bool              `json:"completed"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Summary は要約回答を返す。
func (r *Reflection) Summary() string {
	if r == nil {
		return ""
	}
	return r.Responses[SummaryResponseKey]
}

// Project は他の参加者に公開される完了済み振り返りの射影。
type Project struct {
	Email       string            `json:"email"`
	DisplayName string            `json:"displayName"`
	Summary     string            `json:"summary"`
	Screenshots []string          `json:"screenshots"`
	Responses   map[string]string `json:"responses"`
}
