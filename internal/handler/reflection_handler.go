package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/reflection"
)

// ReflectionServiceInterface は振り返りハンドラーが必要とするサービスインターフェース。
type ReflectionServiceInterface interface {
	// Save は呼び出し元自身の振り返りを保存する。
	Save(ctx context.Context, caller *model.Identity, sessionID string, input reflection.SaveInput) (*model.Reflection, error)
	// Get は指定参加者の振り返りを返す。未保存の場合はnil。
	Get(ctx context.Context, caller *model.Identity, sessionID, email string) (*model.Reflection, error)
	// ListProjects は呼び出し元以外の完了済み振り返りを返す。
	ListProjects(ctx context.Context, caller *model.Identity, sessionID string) ([]model.Project, error)
}

// ReflectionHandler は振り返りのHTTPハンドラー。
type ReflectionHandler struct {
	service ReflectionServiceInterface
}

// NewReflectionHandler はReflectionHandlerを生成する。
func NewReflectionHandler(service ReflectionServiceInterface) *ReflectionHandler {
	return &ReflectionHandler{service: service}
}

// saveReflectionRequest は振り返り保存リクエストのボディ。
type saveReflectionRequest struct {
	Responses   map[string]string `json:"responses"`
	Screenshots []string          `json:"screenshots"`
	Completed   bool              `json:"completed"`
}

// Save は振り返りを保存する。
// POST /reflection/{sessionId}
func (h *ReflectionHandler) Save(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	var req saveReflectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	saved, err := h.service.Save(r.Context(), caller, chi.URLParam(r, "sessionId"), reflection.SaveInput{
		Responses:   req.Responses,
		Screenshots: req.Screenshots,
		Completed:   req.Completed,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// Get は指定参加者の振り返りを返す。未保存の場合はnullを返す。
// GET /reflection/{sessionId}/{email}
func (h *ReflectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	found, err := h.service.Get(r.Context(), caller, chi.URLParam(r, "sessionId"), emailParam(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, found)
}

// ListProjects は他の参加者の完了済み振り返りを返す。
// GET /projects/{sessionId}
func (h *ReflectionHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	projects, err := h.service.ListProjects(r.Context(), caller, chi.URLParam(r, "sessionId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}

	writeJSON(w, http.StatusOK, projects)
}
