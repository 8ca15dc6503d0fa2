// Package reflection は参加者ごとの振り返り記録を管理する。
//
// 振り返りは(セッションID, 参加者メールアドレス)ごとに1件で、保存のたびに上書きされる。
// 完了判定は対話フロー側の責務であり、ここでは渡されたcompletedをそのまま記録する。
package reflection

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/reviewloop/internal/metrics"
	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/repository"
	"github.com/hitoshi/reviewloop/internal/security"
)

const (
	// MaxResponses は1件の振り返りに含められる回答の最大数。
	MaxResponses = 20
	// MaxResponseLength は回答1件の最大文字数。超過分は切り詰める。
	MaxResponseLength = 5000
	// MaxScreenshots はスクリーンショット参照の最大数。
	MaxScreenshots = 10
	// MaxScreenshotRefLength はスクリーンショット参照1件の最大文字数。
	MaxScreenshotRefLength = 2048
)

// PeerVisibility は未完了の振り返りを他の参加者に公開するかどうかのポリシー。
type PeerVisibility string

const (
	// VisibilityCompletedOnly は完了済みの振り返りのみ他の参加者に公開する。
	VisibilityCompletedOnly PeerVisibility = "completed-only"
	// VisibilityAll は未完了の振り返りも公開する。
	VisibilityAll PeerVisibility = "all"
)

var responseKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SessionFinder はセッションの参照インターフェース。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// URLValidator はスクリーンショット参照URLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Config は振り返りサービスの動作設定。
type Config struct {
	Visibility PeerVisibility
}

// SaveInput は振り返り保存の入力。
type SaveInput struct {
	Responses   map[string]string
	Screenshots []string
	Completed   bool
}

// Service は振り返り記録のサービス層。
type Service struct {
	sessions    SessionFinder
	reflections repository.ReflectionRepository
	sanitizer   security.TextSanitizer
	urlGuard    URLValidator
	metrics     metrics.MetricsCollector
	config      Config
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// Visibilityが未指定の場合はVisibilityCompletedOnlyとして扱う。
func NewService(
	sessions SessionFinder,
	reflections repository.ReflectionRepository,
	sanitizer security.TextSanitizer,
	urlGuard URLValidator,
	collector metrics.MetricsCollector,
	config Config,
) *Service {
	if config.Visibility == "" {
		config.Visibility = VisibilityCompletedOnly
	}
	return &Service{
		sessions:    sessions,
		reflections: reflections,
		sanitizer:   sanitizer,
		urlGuard:    urlGuard,
		metrics:     collector,
		config:      config,
		now:         time.Now,
	}
}

// Save は呼び出し元自身の振り返りを上書き保存する。
// ロスターに含まれる参加者のみ、reflectionまたはcritiqueフェーズで実行できる。
func (s *Service) Save(ctx context.Context, caller *model.Identity, sessionID string, input SaveInput) (*model.Reflection, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsEnrolledCaller(caller) {
		return nil, sess.EnrollmentError(caller)
	}
	if sess.Status != model.StatusReflection && sess.Status != model.StatusCritique {
		return nil, model.NewInvalidTransitionError("saveReflection", sess.Status)
	}

	responses, err := s.cleanResponses(input.Responses)
	if err != nil {
		return nil, err
	}
	screenshots, err := s.checkScreenshots(input.Screenshots)
	if err != nil {
		return nil, err
	}

	ref := &model.Reflection{
		SessionID:        sess.ID,
		ParticipantEmail: repository.NormalizeEmail(caller.Email),
		Responses:        responses,
		Screenshots:      screenshots,
		Completed:        input.Completed,
		UpdatedAt:        s.now().UTC(),
	}
	if err := s.reflections.Save(ctx, ref); err != nil {
		return nil, fmt.Errorf("振り返りの保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordReflectionSaved(ref.Completed)
	}
	if ref.Completed {
		slog.Info("reflection completed",
			slog.String("session_id", sess.ID),
			slog.String("participant_email", ref.ParticipantEmail),
		)
	}

	return ref, nil
}

// Get は指定参加者の振り返りを返す。存在しない場合は(nil, nil)を返す。
//
// セッションの作成者と振り返りの作成者本人（メールアドレス確認済み）は常に参照できる。
// その他のロスター参加者は完了済みの振り返りを参照でき、
// 未完了の振り返りはVisibilityAllの場合のみ参照できる。
func (s *Service) Get(ctx context.Context, caller *model.Identity, sessionID, email string) (*model.Reflection, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	target := repository.NormalizeEmail(email)
	privileged := sess.IsOwner(caller) ||
		(caller != nil && caller.EmailVerified && repository.NormalizeEmail(caller.Email) == target)
	if !privileged && !sess.IsEnrolledCaller(caller) {
		return nil, sess.EnrollmentError(caller)
	}

	ref, err := s.reflections.Find(ctx, sess.ID, target)
	if err != nil {
		return nil, fmt.Errorf("振り返りの取得に失敗しました: %w", err)
	}
	if ref == nil {
		return nil, nil
	}

	if !privileged && !ref.Completed && s.config.Visibility != VisibilityAll {
		return nil, model.NewForbiddenError(model.ErrCodeReflectionNotShared,
			"この振り返りはまだ完了していないため参照できません。")
	}
	return ref, nil
}

// ListProjects は呼び出し元以外のロスター参加者の完了済み振り返りをロスター順に返す。
// ロスターから外れた参加者の振り返りは含まない。
func (s *Service) ListProjects(ctx context.Context, caller *model.Identity, sessionID string) ([]model.Project, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.CanView(caller) {
		return nil, sess.EnrollmentError(caller)
	}

	all, err := s.reflections.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("振り返り一覧の取得に失敗しました: %w", err)
	}
	byEmail := make(map[string]*model.Reflection, len(all))
	for _, ref := range all {
		byEmail[ref.ParticipantEmail] = ref
	}

	self := repository.NormalizeEmail(caller.Email)
	projects := make([]model.Project, 0, len(sess.Roster))
	for _, entry := range sess.Roster {
		email := repository.NormalizeEmail(entry.Email)
		if email == self {
			continue
		}
		ref, ok := byEmail[email]
		if !ok || !ref.Completed {
			continue
		}
		projects = append(projects, model.Project{
			Email:       email,
			DisplayName: entry.DisplayName,
			Summary:     ref.Summary(),
			Screenshots: ref.Screenshots,
			Responses:   ref.Responses,
		})
	}

	return projects, nil
}

// cleanResponses は回答のキーを検証し、値をサニタイズして切り詰める。
func (s *Service) cleanResponses(raw map[string]string) (map[string]string, error) {
	if len(raw) > MaxResponses {
		return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidResponses,
			fmt.Sprintf("回答は最大%d件までです（%d件が指定されました）。", MaxResponses, len(raw)))
	}

	cleaned := make(map[string]string, len(raw))
	for key, value := range raw {
		if !responseKeyPattern.MatchString(key) {
			return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidResponses,
				fmt.Sprintf("回答のキーが不正です: %q", key))
		}
		cleaned[key] = s.sanitizer.Clean(value, MaxResponseLength)
	}
	return cleaned, nil
}

// checkScreenshots はスクリーンショット参照を検証する。
// 絶対URLとして解釈できる参照はhttpsかつ内部ネットワークを指さないものに限る。
func (s *Service) checkScreenshots(refs []string) ([]string, error) {
	if len(refs) > MaxScreenshots {
		return nil, model.NewInvalidArgumentError(model.ErrCodeTooManyScreenshots,
			fmt.Sprintf("スクリーンショットは最大%d件までです（%d件が指定されました）。", MaxScreenshots, len(refs)))
	}

	checked := make([]string, 0, len(refs))
	for i, raw := range refs {
		ref := strings.TrimSpace(raw)
		if n := utf8.RuneCountInString(ref); n == 0 || n > MaxScreenshotRefLength {
			return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidScreenshot,
				fmt.Sprintf("%d件目のスクリーンショット参照は1〜%d文字で指定してください。", i+1, MaxScreenshotRefLength))
		}

		parsed, err := url.Parse(ref)
		if err != nil {
			return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidScreenshot,
				fmt.Sprintf("%d件目のスクリーンショット参照を解釈できません。", i+1))
		}
		if parsed.IsAbs() {
			if err := s.urlGuard.ValidateURL(ref); err != nil {
				slog.Warn("screenshot reference rejected",
					slog.String("reference", ref),
					slog.String("error", err.Error()),
				)
				return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidScreenshot,
					fmt.Sprintf("%d件目のスクリーンショットURLは使用できません。", i+1))
			}
		}
		checked = append(checked, ref)
	}
	return checked, nil
}

// loadSession はセッションを取得する。存在しない場合はNOT_FOUNDを返す。
func (s *Service) loadSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if sess == nil {
		return nil, model.NewSessionNotFoundError(id)
	}
	return sess, nil
}
