package session

import (
	"time"

	"github.com/hitoshi/reviewloop/internal/model"
)

// Action はセッションに対する状態変更操作を表す。
type Action string

const (
	ActionReplaceRoster Action = "replaceRoster"
	ActionStart         Action = "start"
	ActionAdvance       Action = "advance"
	ActionComplete      Action = "complete"
	ActionReopen        Action = "reopen"
	ActionArchive       Action = "archive"
)

// transition はフェーズ遷移表の1行を表す。
type transition struct {
	// from は遷移元として許可するフェーズ。nilの場合は全フェーズから許可する。
	from []model.SessionStatus
	// to は遷移先。空の場合は呼び出し側が指定する（reopen）か、フェーズを変えない。
	to model.SessionStatus
	// stamp は遷移時に記録するタイムスタンプ。nilの場合は記録しない。
	stamp func(s *model.Session, at time.Time)
}

// transitions はセッションのフェーズ遷移表。
var transitions = map[Action]transition{
	ActionReplaceRoster: {
		from: []model.SessionStatus{model.StatusSetup},
	},
	ActionStart: {
		from:  []model.SessionStatus{model.StatusSetup},
		to:    model.StatusReflection,
		stamp: func(s *model.Session, at time.Time) { s.StartedAt = &at },
	},
	ActionAdvance: {
		from:  []model.SessionStatus{model.StatusReflection},
		to:    model.StatusCritique,
		stamp: func(s *model.Session, at time.Time) { s.AdvancedAt = &at },
	},
	ActionComplete: {
		from:  []model.SessionStatus{model.StatusCritique},
		to:    model.StatusComplete,
		stamp: func(s *model.Session, at time.Time) { s.CompletedAt = &at },
	},
	ActionReopen: {
		from:  []model.SessionStatus{model.StatusComplete, model.StatusArchived},
		stamp: func(s *model.Session, at time.Time) { s.ReopenedAt = &at },
	},
	ActionArchive: {
		to:    model.StatusArchived,
		stamp: func(s *model.Session, at time.Time) { s.ArchivedAt = &at },
	},
}

// reopenTargets はreopenで指定できるフェーズ。
var reopenTargets = map[model.SessionStatus]bool{
	model.StatusReflection: true,
	model.StatusCritique:   true,
}

// allows は現在のフェーズから遷移できるかどうかを返す。
func (t transition) allows(current model.SessionStatus) bool {
	if t.from == nil {
		return true
	}
	for _, s := range t.from {
		if s == current {
			return true
		}
	}
	return false
}

// apply は遷移表に従ってセッションのフェーズとタイムスタンプを更新する。
// target はreopenの遷移先で、それ以外の操作では無視される。
func apply(s *model.Session, action Action, target model.SessionStatus, at time.Time) error {
	t, ok := transitions[action]
	if !ok || !t.allows(s.Status) {
		return model.NewInvalidTransitionError(string(action), s.Status)
	}

	to := t.to
	if action == ActionReopen {
		to = target
	}
	if to != "" {
		s.Status = to
	}
	if t.stamp != nil {
		t.stamp(s, at)
	}
	return nil
}
