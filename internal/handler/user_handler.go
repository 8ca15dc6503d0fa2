package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/reviewloop/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Signup は呼び出し元をユーザーとして登録する。
	Signup(ctx context.Context, caller *model.Identity, displayName string, role model.Role) (*model.User, error)
	// Me は呼び出し元のユーザー情報を返す。
	Me(ctx context.Context, caller *model.Identity) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// signupRequest はサインアップリクエストのボディ。
type signupRequest struct {
	DisplayName string     `json:"displayName"`
	Role        model.Role `json:"role"`
}

// Signup はユーザー登録を処理する。
// POST /signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Signup(r.Context(), caller, req.DisplayName, req.Role)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Me は呼び出し元のユーザー情報を返す。
// GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	user, err := h.service.Me(r.Context(), caller)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
