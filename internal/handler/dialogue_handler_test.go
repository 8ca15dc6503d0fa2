package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/reviewloop/internal/dialogue"
	"github.com/hitoshi/reviewloop/internal/model"
)

func TestDialogueHandler_Next_ReturnsReply(t *testing.T) {
	var gotTurns []dialogue.Turn
	driver := &mockDialogueDriver{
		nextFn: func(ctx context.Context, turns []dialogue.Turn) (*dialogue.Reply, error) {
			gotTurns = turns
			return &dialogue.Reply{Text: "まとめます。", IsComplete: true, Fallback: true}, nil
		},
	}
	h := NewDialogueHandler(driver)

	body := `{"transcript":[{"speaker":"assistant","text":"何を作りましたか？"},{"speaker":"user","text":"家計簿アプリ"}]}`
	req := httptest.NewRequest(http.MethodPost, "/ai-reflection", strings.NewReader(body))
	req = withIdentity(req, alice)
	w := httptest.NewRecorder()

	h.Next(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(gotTurns) != 2 || gotTurns[1].Speaker != dialogue.SpeakerUser || gotTurns[1].Text != "家計簿アプリ" {
		t.Errorf("turns = %+v", gotTurns)
	}

	var got struct {
		Reply      string `json:"reply"`
		IsComplete bool   `json:"isComplete"`
		Fallback   bool   `json:"fallback"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Reply != "まとめます。" || !got.IsComplete || !got.Fallback {
		t.Errorf("reply = %+v", got)
	}
}

func TestDialogueHandler_Next_InvalidTranscript(t *testing.T) {
	driver := &mockDialogueDriver{
		nextFn: func(ctx context.Context, turns []dialogue.Turn) (*dialogue.Reply, error) {
			return nil, dialogue.ValidateTranscript(turns)
		},
	}
	h := NewDialogueHandler(driver)

	req := httptest.NewRequest(http.MethodPost, "/ai-reflection", strings.NewReader(`{"transcript":[]}`))
	req = withIdentity(req, alice)
	w := httptest.NewRecorder()

	h.Next(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w.Body.Bytes()); body.Code != model.ErrCodeInvalidTranscript {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidTranscript)
	}
}
