package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// HealthChecker は依存先の疎通確認を行うインターフェース。
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc は関数をHealthCheckerとして扱うためのアダプタ。
type HealthCheckerFunc func(ctx context.Context) error

// CheckHealth はf(ctx)を呼び出す。
func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

type healthResponse struct {
	Status string `json:"status"`
}

// newHealthHandler はヘルスチェックのハンドラーを返す。
// checkerがnilの場合は常に正常を返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.CheckHealth(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
