package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reviewloop/internal/metrics"
	"github.com/hitoshi/reviewloop/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	IdentityResolver  middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメイン
	UserService       UserServiceInterface
	SessionService    SessionServiceInterface
	ProgressService   ProgressServiceInterface
	ReflectionService ReflectionServiceInterface
	FeedbackService   FeedbackServiceInterface
	DialogueDriver    DialogueDriverInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → SecurityHeaders → Logging → Metrics → Identity → RateLimit(General)
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	userHandler := NewUserHandler(deps.UserService)
	sessionHandler := NewSessionHandler(deps.SessionService, deps.ProgressService)
	reflectionHandler := NewReflectionHandler(deps.ReflectionService)
	feedbackHandler := NewFeedbackHandler(deps.FeedbackService)
	dialogueHandler := NewDialogueHandler(deps.DialogueDriver)

	// --- 認証不要のルート ---
	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.IdentityResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー
		r.Post("/signup", userHandler.Signup)
		r.Get("/me", userHandler.Me)

		// セッション
		r.Post("/session", sessionHandler.Create)
		r.Get("/sessions", sessionHandler.List)
		r.Route("/session/{id}", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/roster", sessionHandler.ReplaceRoster)
			r.Post("/start", sessionHandler.Start)
			r.Post("/advance", sessionHandler.Advance)
			r.Post("/complete", sessionHandler.Complete)
			r.Post("/archive", sessionHandler.Archive)
			r.Post("/reopen", sessionHandler.Reopen)
			r.Get("/progress", sessionHandler.Progress)
		})

		// 振り返り
		r.Post("/reflection/{sessionId}", reflectionHandler.Save)
		r.Get("/reflection/{sessionId}/{email}", reflectionHandler.Get)
		r.Get("/projects/{sessionId}", reflectionHandler.ListProjects)

		// フィードバック
		r.Route("/feedback/{sessionId}", func(r chi.Router) {
			r.Post("/", feedbackHandler.Submit)
			r.Get("/given", feedbackHandler.ListGiven)
			r.Get("/{email}", feedbackHandler.ListFor)
		})

		// POST /ai-reflection - 対話（対話専用レート制限を追加）
		r.With(deps.RateLimiter.DialogueMiddleware()).Post("/ai-reflection", dialogueHandler.Next)
	})

	return r
}
