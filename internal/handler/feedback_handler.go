package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reviewloop/internal/feedback"
	"github.com/hitoshi/reviewloop/internal/model"
)

// FeedbackServiceInterface はフィードバックハンドラーが必要とするサービスインターフェース。
type FeedbackServiceInterface interface {
	Submit(ctx context.Context, caller *model.Identity, sessionID string, input feedback.SubmitInput) (*model.Feedback, error)
	ListFor(ctx context.Context, caller *model.Identity, sessionID, recipientEmail string) ([]*model.Feedback, error)
	ListBy(ctx context.Context, caller *model.Identity, sessionID string) ([]*model.Feedback, error)
}

// FeedbackHandler はフィードバックのHTTPハンドラー。
type FeedbackHandler struct {
	service FeedbackServiceInterface
}

// NewFeedbackHandler はFeedbackHandlerを生成する。
func NewFeedbackHandler(service FeedbackServiceInterface) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// submitFeedbackRequest はフィードバック送信リクエストのボディ。
type submitFeedbackRequest struct {
	RecipientEmail string `json:"recipientEmail"`
	Critique       string `json:"critique"`
	Questions      string `json:"questions"`
}

// Submit はフィードバックを送信する。同じ宛先への再送信は上書きになる。
// POST /feedback/{sessionId}
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	var req submitFeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	saved, err := h.service.Submit(r.Context(), caller, chi.URLParam(r, "sessionId"), feedback.SubmitInput{
		RecipientEmail: req.RecipientEmail,
		Critique:       req.Critique,
		Questions:      req.Questions,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// ListFor は指定した宛先が受け取ったフィードバックを返す。
// GET /feedback/{sessionId}/{email}
func (h *FeedbackHandler) ListFor(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	list, err := h.service.ListFor(r.Context(), caller, chi.URLParam(r, "sessionId"), emailParam(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeFeedbackList(w, list)
}

// ListGiven は呼び出し元が送信したフィードバックを返す。
// GET /feedback/{sessionId}/given
func (h *FeedbackHandler) ListGiven(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(w, r)
	if caller == nil {
		return
	}

	list, err := h.service.ListBy(r.Context(), caller, chi.URLParam(r, "sessionId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeFeedbackList(w, list)
}

func writeFeedbackList(w http.ResponseWriter, list []*model.Feedback) {
	if list == nil {
		list = []*model.Feedback{}
	}
	writeJSON(w, http.StatusOK, list)
}
