// Package session はレビューセッションのライフサイクルを管理する。
//
// セッションの作成、ロスターの置き換え、フェーズ遷移を担当し、
// 遷移はtransitions表に定義された行のみを許可する。
// セッションへの書き込みはすべてバージョン比較付きで行い、
// 並行更新はCONFLICTとして呼び出し元に返す。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/reviewloop/internal/metrics"
	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/repository"
)

// WarningEmptyRoster は空のロスターでセッションを開始した場合の警告。
const WarningEmptyRoster = "EMPTY_ROSTER"

// Config はセッションサービスの動作設定。
type Config struct {
	// RequireRosterOnStart がtrueの場合、空のロスターでの開始をINVALID_ARGUMENTで拒否する。
	RequireRosterOnStart bool
}

// Service はセッションライフサイクルのサービス層。
type Service struct {
	sessionRepo repository.SessionRepository
	metrics     metrics.MetricsCollector
	config      Config
	now         func() time.Time
	newID       func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(sessionRepo repository.SessionRepository, collector metrics.MetricsCollector, config Config) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		metrics:     collector,
		config:      config,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Create はセッションを作成する。主催者のみ実行できる。
func (s *Service) Create(ctx context.Context, caller *model.Identity, name string) (*model.Session, error) {
	if !caller.IsOrganizer() {
		return nil, model.NewForbiddenError(model.ErrCodeNotOrganizer, "セッションを作成できるのは主催者のみです。")
	}

	trimmed, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	sess := &model.Session{
		ID:         s.newID(),
		OwnerID:    caller.ID,
		OwnerEmail: caller.Email,
		Name:       trimmed,
		Status:     model.StatusSetup,
		Roster:     []model.RosterEntry{},
		CreatedAt:  s.now().UTC(),
	}

	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, model.NewConflictError(sess.ID)
		}
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("session created",
		slog.String("session_id", sess.ID),
		slog.String("owner_email", sess.OwnerEmail),
	)

	return sess, nil
}

// List は呼び出し元が作成者またはロスター参加者であるセッションを新しい順に返す。
func (s *Service) List(ctx context.Context, caller *model.Identity) ([]*model.Session, error) {
	all, err := s.sessionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("セッション一覧の取得に失敗しました: %w", err)
	}

	visible := make([]*model.Session, 0, len(all))
	for _, sess := range all {
		if sess.CanView(caller) {
			visible = append(visible, sess)
		}
	}

	sort.SliceStable(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt)
		}
		return visible[i].ID < visible[j].ID
	})

	return visible, nil
}

// Get はセッション詳細を返す。作成者またはロスター参加者のみ参照できる。
func (s *Service) Get(ctx context.Context, caller *model.Identity, id string) (*model.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.CanView(caller) {
		return nil, sess.EnrollmentError(caller)
	}
	return sess, nil
}

// ReplaceRoster はロスターを丸ごと置き換える。setupフェーズでのみ実行できる。
// 外れた参加者の振り返りとフィードバックは削除されずに残る。
func (s *Service) ReplaceRoster(ctx context.Context, caller *model.Identity, id string, entries []model.RosterEntry) (*model.Session, error) {
	return s.mutate(ctx, caller, id, ActionReplaceRoster, func(sess *model.Session) error {
		if err := apply(sess, ActionReplaceRoster, "", s.now().UTC()); err != nil {
			return err
		}

		roster, err := normalizeRoster(entries)
		if err != nil {
			return err
		}
		sess.Roster = roster

		slog.Info("roster replaced",
			slog.String("session_id", sess.ID),
			slog.Int("roster_size", len(roster)),
		)
		return nil
	})
}

// Start はsetupからreflectionへ遷移する。
// ロスターが空の場合は警告を返す。RequireRosterOnStartが有効な場合は拒否する。
func (s *Service) Start(ctx context.Context, caller *model.Identity, id string) (*model.Session, []string, error) {
	var warnings []string

	sess, err := s.mutate(ctx, caller, id, ActionStart, func(sess *model.Session) error {
		if err := apply(sess, ActionStart, "", s.now().UTC()); err != nil {
			return err
		}
		if len(sess.Roster) == 0 {
			if s.config.RequireRosterOnStart {
				return model.NewInvalidArgumentError(model.ErrCodeEmptyRoster,
					"ロスターが空のためセッションを開始できません。")
			}
			warnings = append(warnings, WarningEmptyRoster)
			slog.Warn("session started with empty roster", slog.String("session_id", sess.ID))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, warnings, nil
}

// Advance はreflectionからcritiqueへ遷移する。
func (s *Service) Advance(ctx context.Context, caller *model.Identity, id string) (*model.Session, error) {
	return s.transition(ctx, caller, id, ActionAdvance, "")
}

// Complete はcritiqueからcompleteへ遷移する。
func (s *Service) Complete(ctx context.Context, caller *model.Identity, id string) (*model.Session, error) {
	return s.transition(ctx, caller, id, ActionComplete, "")
}

// Archive は任意のフェーズからarchivedへ遷移する。
func (s *Service) Archive(ctx context.Context, caller *model.Identity, id string) (*model.Session, error) {
	return s.transition(ctx, caller, id, ActionArchive, "")
}

// Reopen はcompleteまたはarchivedからreflectionまたはcritiqueへ戻す。
func (s *Service) Reopen(ctx context.Context, caller *model.Identity, id string, phase model.SessionStatus) (*model.Session, error) {
	return s.mutate(ctx, caller, id, ActionReopen, func(sess *model.Session) error {
		if !transitions[ActionReopen].allows(sess.Status) {
			return model.NewInvalidTransitionError(string(ActionReopen), sess.Status)
		}
		if !reopenTargets[phase] {
			return model.NewInvalidArgumentError(model.ErrCodeInvalidPhase,
				fmt.Sprintf("再開できるフェーズは reflection または critique です: %q", phase))
		}
		return apply(sess, ActionReopen, phase, s.now().UTC())
	})
}

// transition は遷移表に従う単純なフェーズ遷移を実行する。
func (s *Service) transition(ctx context.Context, caller *model.Identity, id string, action Action, target model.SessionStatus) (*model.Session, error) {
	return s.mutate(ctx, caller, id, action, func(sess *model.Session) error {
		return apply(sess, action, target, s.now().UTC())
	})
}

// mutate はセッションを読み込み、作成者であることを確認してからfnで変更し、
// 読み込んだバージョンに対する比較付き書き込みで保存する。
// fnがエラーを返した場合は何も書き込まない。
func (s *Service) mutate(ctx context.Context, caller *model.Identity, id string, action Action, fn func(sess *model.Session) error) (*model.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsOwner(caller) {
		return nil, model.NewNotOwnerError()
	}

	from := sess.Status
	if err := fn(sess); err != nil {
		return nil, err
	}

	if err := s.sessionRepo.Update(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			slog.Warn("concurrent session update rejected", slog.String("session_id", id))
			return nil, model.NewConflictError(id)
		}
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	if action != ActionReplaceRoster {
		s.recordTransition(sess, from)
	}

	return sess, nil
}

func (s *Service) recordTransition(sess *model.Session, from model.SessionStatus) {
	slog.Info("session phase changed",
		slog.String("session_id", sess.ID),
		slog.String("from", string(from)),
		slog.String("to", string(sess.Status)),
	)
	if s.metrics != nil {
		s.metrics.RecordTransition(string(sess.Status))
	}
}

// load はセッションを取得する。存在しない場合はNOT_FOUNDを返す。
func (s *Service) load(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if sess == nil {
		return nil, model.NewSessionNotFoundError(id)
	}
	return sess, nil
}
