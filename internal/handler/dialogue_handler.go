package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/reviewloop/internal/dialogue"
)

// DialogueDriverInterface は対話ハンドラーが必要とするインターフェース。
type DialogueDriverInterface interface {
	Next(ctx context.Context, turns []dialogue.Turn) (*dialogue.Reply, error)
}

// DialogueHandler は振り返り対話のHTTPハンドラー。
type DialogueHandler struct {
	driver DialogueDriverInterface
}

// NewDialogueHandler はDialogueHandlerを生成する。
func NewDialogueHandler(driver DialogueDriverInterface) *DialogueHandler {
	return &DialogueHandler{driver: driver}
}

// dialogueRequest は対話リクエストのボディ。
type dialogueRequest struct {
	Transcript []dialogue.Turn `json:"transcript"`
}

// Next は対話記録を受け取り、次の発話を返す。
// 外部サービスが利用できない場合も台本による応答で200を返す。
// POST /ai-reflection
func (h *DialogueHandler) Next(w http.ResponseWriter, r *http.Request) {
	if callerFrom(w, r) == nil {
		return
	}

	var req dialogueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.driver.Next(r.Context(), req.Transcript)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
