// Package app は設定の読み込み、依存関係のワイヤリング、サブコマンドの実行を行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/reviewloop/internal/config"
	"github.com/hitoshi/reviewloop/internal/database"
	"github.com/hitoshi/reviewloop/internal/dialogue"
	"github.com/hitoshi/reviewloop/internal/feedback"
	"github.com/hitoshi/reviewloop/internal/handler"
	"github.com/hitoshi/reviewloop/internal/identity"
	"github.com/hitoshi/reviewloop/internal/kvstore"
	"github.com/hitoshi/reviewloop/internal/logger"
	"github.com/hitoshi/reviewloop/internal/metrics"
	"github.com/hitoshi/reviewloop/internal/middleware"
	"github.com/hitoshi/reviewloop/internal/progress"
	"github.com/hitoshi/reviewloop/internal/reflection"
	"github.com/hitoshi/reviewloop/internal/repository"
	"github.com/hitoshi/reviewloop/internal/security"
	"github.com/hitoshi/reviewloop/internal/session"
	"github.com/hitoshi/reviewloop/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("store_backend", cfg.StoreBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openStore は設定に応じたレコードストアを開く。
// 返すHealthCheckerはバックエンドの疎通確認を行う。Badgerの場合はnil。
func openStore(cfg *config.Config) (kvstore.Store, handler.HealthChecker, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		checker := handler.HealthCheckerFunc(func(ctx context.Context) error {
			return database.Ping(ctx, db, 2*time.Second)
		})
		return kvstore.NewPostgresStore(db), checker, nil

	default:
		var bcfg kvstore.BadgerConfig
		if cfg.BadgerInMemory {
			bcfg = kvstore.InMemoryBadgerConfig()
		} else {
			bcfg = kvstore.DefaultBadgerConfig(cfg.BadgerPath)
			bcfg.GCInterval = cfg.BadgerGCInterval
		}
		bcfg.Logger = slog.Default()

		store, err := kvstore.OpenBadger(bcfg)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("badger store opened",
			slog.String("path", cfg.BadgerPath),
			slog.Bool("in_memory", cfg.BadgerInMemory),
		)
		return store, nil, nil
	}
}

// server はワイヤリング済みのHTTPハンドラーと停止が必要な依存を保持する。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// newServer はストアの上に全サービスを組み立て、ルーターを構築する。
func newServer(cfg *config.Config, store kvstore.Store, checker handler.HealthChecker) (*server, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewKVUserRepo(store)
	sessionRepo := repository.NewKVSessionRepo(store)
	reflectionRepo := repository.NewKVReflectionRepo(store)
	feedbackRepo := repository.NewKVFeedbackRepo(store)

	// 2. メトリクスの初期化
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. セキュリティサービスの初期化
	sanitizer := security.NewTextSanitizer()
	screenshotGuard := security.NewSSRFGuard("https")
	egressGuard := security.NewSSRFGuard("https")

	// 4. 認証
	verifier := identity.NewUserInfoVerifier(cfg.IdentityUserInfoURL, egressGuard.NewSafeClient(cfg.IdentityTimeout))
	resolver := identity.NewResolver(verifier, userRepo)

	// 5. 対話AI（APIキー未設定の場合は台本で応答する）
	var upstream dialogue.Upstream
	if cfg.DialogueEnabled() {
		openaiUpstream, err := dialogue.NewOpenAIUpstream(dialogue.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure dialogue upstream: %w", err)
		}
		upstream = openaiUpstream
	} else {
		slog.Warn("OPENAI_API_KEY is not set; dialogue will use the scripted fallback")
	}

	// 6. ドメインサービスの初期化
	userService := user.NewService(userRepo)
	sessionService := session.NewService(sessionRepo, collector, session.Config{
		RequireRosterOnStart: cfg.RequireRosterOnStart,
	})
	reflectionService := reflection.NewService(
		sessionRepo, reflectionRepo, sanitizer, screenshotGuard, collector,
		reflection.Config{Visibility: reflection.PeerVisibility(cfg.PeerReflectionVisibility)},
	)
	feedbackService := feedback.NewService(sessionRepo, feedbackRepo, sanitizer, collector)
	progressService := progress.NewService(sessionRepo, reflectionRepo, feedbackRepo)
	driver := dialogue.NewDriver(upstream, sanitizer, collector, cfg.DialogueTimeout)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitDialogue),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		IdentityResolver:  resolver,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,

		HealthChecker:  checker,
		MetricsHandler: metrics.Handler(reg),

		UserService:       userService,
		SessionService:    sessionService,
		ProgressService:   progressService,
		ReflectionService: reflectionService,
		FeedbackService:   feedbackService,
		DialogueDriver:    driver,
	})

	return &server{handler: router, rateLimiter: rateLimiter}, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	store, checker, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	srv, err := newServer(cfg, store, checker)
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.DialogueTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// Badgerバックエンドではスキーマがないため何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.StoreBackendPostgres {
		slog.Info("store backend has no schema; skipping migrations",
			slog.String("store_backend", cfg.StoreBackend),
		)
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	before, _, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("from_version", uint64(before)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
