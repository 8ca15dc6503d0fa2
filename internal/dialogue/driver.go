// Package dialogue は振り返りの聞き取り対話を進める。
//
// 対話の状態は保持せず、呼び出しのたびに渡された対話記録から次の発話を決める。
// 外部対話サービスが使えない場合は台本(ScriptReply)に切り替え、エラーは返さない。
package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/reviewloop/internal/metrics"
	"github.com/hitoshi/reviewloop/internal/security"
)

// Reply は対話の1ターン分の応答。
type Reply struct {
	Text       string `json:"reply"`
	IsComplete bool   `json:"isComplete"`
	Fallback   bool   `json:"fallback"`
}

// Driver は対話記録を外部対話サービスへ中継する。
type Driver struct {
	upstream  Upstream
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	timeout   time.Duration
}

// NewDriver はDriverを生成する。
// upstreamがnilの場合は常に台本で応答する。timeoutが0以下の場合は呼び出し元のcontextのみで打ち切る。
func NewDriver(upstream Upstream, sanitizer security.TextSanitizer, collector metrics.MetricsCollector, timeout time.Duration) *Driver {
	return &Driver{
		upstream:  upstream,
		sanitizer: sanitizer,
		metrics:   collector,
		timeout:   timeout,
	}
}

// Next は対話記録を検証し、次のassistant発話を返す。
// 返すエラーは対話記録の検証エラーのみ。
func (d *Driver) Next(ctx context.Context, turns []Turn) (*Reply, error) {
	if err := ValidateTranscript(turns); err != nil {
		return nil, err
	}

	cleaned := make([]Turn, len(turns))
	for i, turn := range turns {
		cleaned[i] = Turn{Speaker: turn.Speaker, Text: d.sanitizer.Clean(turn.Text, MaxTurnLength)}
	}

	if d.upstream == nil {
		return d.fallback(cleaned, ErrUpstreamMisconfigured), nil
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := d.upstream.Complete(callCtx, Instruction, cleaned)
	if d.metrics != nil {
		d.metrics.RecordDialogueLatency(time.Since(start))
	}
	if err != nil {
		return d.fallback(cleaned, err), nil
	}
	if strings.TrimSpace(text) == "" {
		return d.fallback(cleaned, ErrEmptyReply), nil
	}

	if d.metrics != nil {
		d.metrics.RecordDialogueTurn(metrics.DialogueOutcomeUpstream)
	}
	return parseReply(text), nil
}

// fallback は台本の応答を返し、切り替えの理由を記録する。
func (d *Driver) fallback(turns []Turn, cause error) *Reply {
	level := slog.LevelWarn
	if errors.Is(cause, ErrUpstreamMisconfigured) {
		level = slog.LevelDebug
	}
	slog.Log(context.Background(), level, "dialogue fell back to script",
		slog.String("error", cause.Error()),
		slog.Int("turns", len(turns)),
	)

	if d.metrics != nil {
		d.metrics.RecordDialogueTurn(metrics.DialogueOutcomeFallback)
	}
	return ScriptReply(turns)
}

// parseReply は完了の目印を取り除き、完了フラグを設定する。
func parseReply(text string) *Reply {
	complete := strings.Contains(text, CompletionSentinel)
	if complete {
		text = strings.ReplaceAll(text, CompletionSentinel, "")
	}
	return &Reply{Text: strings.TrimSpace(text), IsComplete: complete}
}
