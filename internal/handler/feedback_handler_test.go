package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/reviewloop/internal/feedback"
	"github.com/hitoshi/reviewloop/internal/model"
)

func TestFeedbackHandler_Submit_PassesInput(t *testing.T) {
	var got feedback.SubmitInput
	svc := &mockFeedbackService{
		submitFn: func(ctx context.Context, caller *model.Identity, sessionID string, input feedback.SubmitInput) (*model.Feedback, error) {
			got = input
			return &model.Feedback{SessionID: sessionID, AuthorEmail: caller.Email, RecipientEmail: input.RecipientEmail}, nil
		},
	}
	h := NewFeedbackHandler(svc)

	body := `{"recipientEmail":"b@x.com","critique":"よかった","questions":"次は？"}`
	req := httptest.NewRequest(http.MethodPost, "/feedback/s1", strings.NewReader(body))
	req = withIdentity(req, alice)
	req = withChiURLParams(req, "sessionId", "s1")
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.RecipientEmail != "b@x.com" || got.Critique != "よかった" || got.Questions != "次は？" {
		t.Errorf("input = %+v", got)
	}
}

func TestFeedbackHandler_Submit_SelfFeedback(t *testing.T) {
	svc := &mockFeedbackService{
		submitFn: func(ctx context.Context, caller *model.Identity, sessionID string, input feedback.SubmitInput) (*model.Feedback, error) {
			return nil, model.NewInvalidArgumentError(model.ErrCodeSelfFeedback, "自分自身には送れません。")
		},
	}
	h := NewFeedbackHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/feedback/s1", strings.NewReader(`{"recipientEmail":"a@x.com"}`))
	req = withIdentity(req, alice)
	req = withChiURLParams(req, "sessionId", "s1")
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w.Body.Bytes()); body.Code != model.ErrCodeSelfFeedback {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeSelfFeedback)
	}
}

func TestFeedbackHandler_ListFor(t *testing.T) {
	var gotEmail string
	svc := &mockFeedbackService{
		listForFn: func(ctx context.Context, caller *model.Identity, sessionID, recipientEmail string) ([]*model.Feedback, error) {
			gotEmail = recipientEmail
			return []*model.Feedback{
				{SessionID: sessionID, AuthorEmail: "b@x.com", RecipientEmail: recipientEmail, Critique: "良い"},
			}, nil
		},
	}
	h := NewFeedbackHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/feedback/s1/a@x.com", nil)
	req = withIdentity(req, alice)
	req = withChiURLParams(req, "sessionId", "s1", "email", "a@x.com")
	w := httptest.NewRecorder()

	h.ListFor(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotEmail != "a@x.com" {
		t.Errorf("recipient = %q, want a@x.com", gotEmail)
	}
	var got []model.Feedback
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].AuthorEmail != "b@x.com" {
		t.Errorf("feedback = %+v", got)
	}
}

func TestFeedbackHandler_ListFor_NotRecipient(t *testing.T) {
	svc := &mockFeedbackService{
		listForFn: func(ctx context.Context, caller *model.Identity, sessionID, recipientEmail string) ([]*model.Feedback, error) {
			return nil, model.NewForbiddenError(model.ErrCodeNotRecipient, "閲覧できません。")
		},
	}
	h := NewFeedbackHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/feedback/s1/b@x.com", nil)
	req = withIdentity(req, alice)
	req = withChiURLParams(req, "sessionId", "s1", "email", "b@x.com")
	w := httptest.NewRecorder()

	h.ListFor(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestFeedbackHandler_ListGiven_EmptyIsArray(t *testing.T) {
	called := false
	svc := &mockFeedbackService{
		listByFn: func(ctx context.Context, caller *model.Identity, sessionID string) ([]*model.Feedback, error) {
			called = true
			return nil, nil
		},
	}
	h := NewFeedbackHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/feedback/s1/given", nil)
	req = withIdentity(req, alice)
	req = withChiURLParams(req, "sessionId", "s1")
	w := httptest.NewRecorder()

	h.ListGiven(w, req)

	if !called {
		t.Fatal("expected ListBy to be called")
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}
