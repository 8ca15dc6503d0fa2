package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reviewloop/internal/dialogue"
	"github.com/hitoshi/reviewloop/internal/feedback"
	"github.com/hitoshi/reviewloop/internal/middleware"
	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/reflection"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	signupFn func(ctx context.Context, caller *model.Identity, displayName string, role model.Role) (*model.User, error)
	meFn     func(ctx context.Context, caller *model.Identity) (*model.User, error)
}

func (m *mockUserService) Signup(ctx context.Context, caller *model.Identity, displayName string, role model.Role) (*model.User, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, caller, displayName, role)
	}
	return &model.User{Email: caller.Email, DisplayName: displayName, Role: role}, nil
}

func (m *mockUserService) Me(ctx context.Context, caller *model.Identity) (*model.User, error) {
	if m.meFn != nil {
		return m.meFn(ctx, caller)
	}
	return nil, model.NewUserNotFoundError()
}

// mockSessionService はSessionServiceInterfaceのモック実装。
// 未設定のメソッドはidだけを持つセッションを返す。
type mockSessionService struct {
	createFn   func(ctx context.Context, caller *model.Identity, name string) (*model.Session, error)
	listFn     func(ctx context.Context, caller *model.Identity) ([]*model.Session, error)
	getFn      func(ctx context.Context, caller *model.Identity, id string) (*model.Session, error)
	rosterFn   func(ctx context.Context, caller *model.Identity, id string, entries []model.RosterEntry) (*model.Session, error)
	startFn    func(ctx context.Context, caller *model.Identity, id string) (*model.Session, []string, error)
	advanceFn  func(ctx context.Context, caller *model.Identity, id string) (*model.Session, error)
	completeFn func(ctx context.Context, caller *model.Identity, id string) (*model.Session, error)
	archiveFn  func(ctx context.Context, caller *model.Identity, id string) (*model.Session, error)
	reopenFn   func(ctx context.Context, caller *model.Identity, id string, phase model.SessionStatus) (*model.Session, error)
}

func (m *mockSessionService) Create(ctx context.Context, caller *model.Identity, name string) (*model.Session, error) {
	if m.createFn != nil {
		return m.createFn(ctx, caller, name)
	}
	return &model.Session{ID: "s1", Name: name, Status: model.StatusSetup}, nil
}

func (m *mockSessionService) List(ctx context.Context, caller *model.Identity) ([]*model.Session, error) {
	if m.listFn != nil {
		return m.listFn(ctx, caller)
	}
	return nil, nil
}

func (m *mockSessionService) Get(ctx context.Context, caller *model.Identity, id string) (*model.Session, error) {
	if m.getFn != nil {
		return m.getFn(ctx, caller, id)
	}
	return &model.Session{ID: id}, nil
}

func (m *mockSessionService) ReplaceRoster(ctx context.Context, caller *model.Identity, id string, entries []model.RosterEntry) (*model.Session, error) {
	if m.rosterFn != nil {
		return m.rosterFn(ctx, caller, id, entries)
	}
	return &model.Session{ID: id, Roster: entries}, nil
}

func (m *mockSessionService) Start(ctx context.Context, caller *model.Identity, id string) (*model.Session, []string, error) {
	if m.startFn != nil {
		return m.startFn(ctx, caller, id)
	}
	return &model.Session{ID: id, Status: model.StatusReflection}, nil, nil
}

func (m *mockSessionService) Advance(ctx context.Context, caller *model.Identity, id string) (*model.Session, error) {
	if m.advanceFn != nil {
		return m.advanceFn(ctx, caller, id)
	}
	return &model.Session{ID: id, Status: model.StatusCritique}, nil
}

func (m *mockSessionService) Complete(ctx context.Context, caller *model.Identity, id string) (*model.Session, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, caller, id)
	}
	return &model.Session{ID: id, Status: model.StatusComplete}, nil
}

func (m *mockSessionService) Archive(ctx context.Context, caller *model.Identity, id string) (*model.Session, error) {
	if m.archiveFn != nil {
		return m.archiveFn(ctx, caller, id)
	}
	return &model.Session{ID: id, Status: model.StatusArchived}, nil
}

func (m *mockSessionService) Reopen(ctx context.Context, caller *model.Identity, id string, phase model.SessionStatus) (*model.Session, error) {
	if m.reopenFn != nil {
		return m.reopenFn(ctx, caller, id, phase)
	}
	return &model.Session{ID: id, Status: phase}, nil
}

// mockProgressService はProgressServiceInterfaceのモック実装。
type mockProgressService struct {
	computeFn func(ctx context.Context, caller *model.Identity, sessionID string) (*model.Progress, error)
}

func (m *mockProgressService) Compute(ctx context.Context, caller *model.Identity, sessionID string) (*model.Progress, error) {
	if m.computeFn != nil {
		return m.computeFn(ctx, caller, sessionID)
	}
	return &model.Progress{SessionID: sessionID, Students: []model.StudentProgress{}}, nil
}

// mockReflectionService はReflectionServiceInterfaceのモック実装。
type mockReflectionService struct {
	saveFn         func(ctx context.Context, caller *model.Identity, sessionID string, input reflection.SaveInput) (*model.Reflection, error)
	getFn          func(ctx context.Context, caller *model.Identity, sessionID, email string) (*model.Reflection, error)
	listProjectsFn func(ctx context.Context, caller *model.Identity, sessionID string) ([]model.Project, error)
}

func (m *mockReflectionService) Save(ctx context.Context, caller *model.Identity, sessionID string, input reflection.SaveInput) (*model.Reflection, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, caller, sessionID, input)
	}
	return &model.Reflection{SessionID: sessionID, ParticipantEmail: caller.Email}, nil
}

func (m *mockReflectionService) Get(ctx context.Context, caller *model.Identity, sessionID, email string) (*model.Reflection, error) {
	if m.getFn != nil {
		return m.getFn(ctx, caller, sessionID, email)
	}
	return nil, nil
}

func (m *mockReflectionService) ListProjects(ctx context.Context, caller *model.Identity, sessionID string) ([]model.Project, error) {
	if m.listProjectsFn != nil {
		return m.listProjectsFn(ctx, caller, sessionID)
	}
	return nil, nil
}

// mockFeedbackService はFeedbackServiceInterfaceのモック実装。
type mockFeedbackService struct {
	submitFn  func(ctx context.Context, caller *model.Identity, sessionID string, input feedback.SubmitInput) (*model.Feedback, error)
	listForFn func(ctx context.Context, caller *model.Identity, sessionID, recipientEmail string) ([]*model.Feedback, error)
	listByFn  func(ctx context.Context, caller *model.Identity, sessionID string) ([]*model.Feedback, error)
}

func (m *mockFeedbackService) Submit(ctx context.Context, caller *model.Identity, sessionID string, input feedback.SubmitInput) (*model.Feedback, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, caller, sessionID, input)
	}
	return &model.Feedback{SessionID: sessionID, AuthorEmail: caller.Email, RecipientEmail: input.RecipientEmail}, nil
}

func (m *mockFeedbackService) ListFor(ctx context.Context, caller *model.Identity, sessionID, recipientEmail string) ([]*model.Feedback, error) {
	if m.listForFn != nil {
		return m.listForFn(ctx, caller, sessionID, recipientEmail)
	}
	return nil, nil
}

func (m *mockFeedbackService) ListBy(ctx context.Context, caller *model.Identity, sessionID string) ([]*model.Feedback, error) {
	if m.listByFn != nil {
		return m.listByFn(ctx, caller, sessionID)
	}
	return nil, nil
}

// mockDialogueDriver はDialogueDriverInterfaceのモック実装。
type mockDialogueDriver struct {
	nextFn func(ctx context.Context, turns []dialogue.Turn) (*dialogue.Reply, error)
}

func (m *mockDialogueDriver) Next(ctx context.Context, turns []dialogue.Turn) (*dialogue.Reply, error) {
	if m.nextFn != nil {
		return m.nextFn(ctx, turns)
	}
	return &dialogue.Reply{Text: "次の質問です。"}, nil
}

// --- テストヘルパー ---

var (
	organizer = &model.Identity{ID: "u-owner", Email: "owner@example.com", EmailVerified: true, DisplayName: "Owner", Role: model.RoleOrganizer}
	alice     = &model.Identity{ID: "u-alice", Email: "a@x.com", EmailVerified: true, DisplayName: "Alice", Role: model.RoleParticipant}
)

// withIdentity はテスト用にコンテキストへ呼び出し元を注入するヘルパー。
func withIdentity(r *http.Request, identity *model.Identity) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), identity))
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
// kvはキーと値を交互に並べる。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorBody はエラーレスポンスのボディを読み込む。
func decodeErrorBody(t *testing.T, body []byte) middleware.ErrorResponseBody {
	t.Helper()
	var got middleware.ErrorResponseBody
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode error body %q: %v", body, err)
	}
	return got
}
