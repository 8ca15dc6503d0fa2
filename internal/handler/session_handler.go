package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reviewloop/internal/model"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	Create(ctx context.Context, caller *model.Identity, name string) (*model.Session, error)
	List(ctx context.Context, caller *model.Identity) ([]*model.Session, error)
	Get(ctx context.Context, caller *model.Identity, id string) (*model.Session, error)
	ReplaceRoster(ctx context.Context, caller *model.Identity, id string, entries []model.RosterEntry) (*model.Session, error)
	Start(ctx context.Context, caller *model.Identity, id string) (*model.Session, []string, error)
	Advance(ctx context.Context, caller *model.Identity, id string) (*model.Session, error)
	Complete(ctx context.Context, caller *model.Identity, id string) (*model.Session, error)
	Archive(ctx context.Context, caller *model.Identity, id string) (*model.Session, error)
	Reopen(ctx context.Context, caller *model.Identity, id string, phase model.SessionStatus) (*model.Session, error)
}

// ProgressServiceInterface は進捗集計のサービスインターフェース。
type ProgressServiceInterface interface {
	Compute(ctx context.Context, caller *model.Identity, sessionID string) (*model.Progress, error)
}

// SessionHandler はセッション管理のHTTPハンドラー。
type SessionHandler struct {
	service  SessionServiceInterface
	progress ProgressServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface, progress ProgressServiceInterface) *SessionHandler {
	return &SessionHandler{
		service:  service,
		progress: progress,
	}
}

// createSessionRequest はセッション作成リクエストのボディ。
type createSessionRequest struct {
	Name string `json:"name"`
}

// rosterRequest はロスター置換リクエストのボディ。
type rosterRequest struct {
	Roster []model.RosterEntry `json:"roster"`
}

// reopenRequest は再開リクエストのボディ。
type reopenRequest struct {
	Phase model.SessionStatus `json:"phase"`
}

// startResponse は開始時のレスポンス。セッションに警告を添える。
type startResponse struct {
	*model.Session
	Warnings []string `json:"warnings,omitempty"`
}

// Create はセッションを作成する。
// POST /session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.Create(r.Context(), caller, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// List は呼び出し元が閲覧できるセッション一覧を返す。
// GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	sessions, err := h.service.List(r.Context(), caller)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

// Get はセッションのスナップショットを返す。
// GET /session/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	sess, err := h.service.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// ReplaceRoster はロスターを置き換える。
// POST /session/{id}/roster
func (h *SessionHandler) ReplaceRoster(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	var req rosterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.ReplaceRoster(r.Context(), caller, chi.URLParam(r, "id"), req.Roster)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// Start はセッションを開始する。
// POST /session/{id}/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	sess, warnings, err := h.service.Start(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, startResponse{Session: sess, Warnings: warnings})
}

// Advance は相互レビューフェーズへ進める。
// POST /session/{id}/advance
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Advance)
}

// Complete はセッションを完了する。
// POST /session/{id}/complete
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete)
}

// Archive はセッションをアーカイブする。
// POST /session/{id}/archive
func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Archive)
}

// Reopen は終了したセッションを指定フェーズで再開する。
// POST /session/{id}/reopen
func (h *SessionHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	var req reopenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.Reopen(r.Context(), caller, chi.URLParam(r, "id"), req.Phase)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// Progress はセッションの進捗を返す。
// GET /session/{id}/progress
func (h *SessionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	progress, err := h.progress.Compute(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

func (h *SessionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, caller *model.Identity, id string) (*model.Session, error),
) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	sess, err := fn(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}
