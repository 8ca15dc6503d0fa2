package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// newChainRouter はRecovery、Logging、Identity、RateLimitの順にミドルウェアを組んだルーターを生成する。
func newChainRouter(t *testing.T, buf *bytes.Buffer) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		DialogueRate:    1,
		DialogueBurst:   1,
		CleanupInterval: time.Minute,
		Now:             newFakeClock().Now,
	})
	t.Cleanup(rl.Stop)

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewLoggingMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(NewIdentityMiddleware(tokenResolver()))
		r.Use(rl.GeneralMiddleware())

		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			identity, _ := IdentityFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"email": identity.Email})
		})
	})
	return r
}

func TestMiddlewareChain_PublicRouteSkipsIdentity(t *testing.T) {
	var buf bytes.Buffer
	router := newChainRouter(t, &buf)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestMiddlewareChain_AuthenticatedThenRateLimited(t *testing.T) {
	var buf bytes.Buffer
	router := newChainRouter(t, &buf)

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := call()
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", first.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(first.Body).Decode(&body); err != nil || body["email"] != "a@x.com" {
		t.Errorf("body = %v, err = %v", body, err)
	}

	if second := call(); second.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", second.Code)
	}
}

func TestMiddlewareChain_Unauthenticated(t *testing.T) {
	var buf bytes.Buffer
	router := newChainRouter(t, &buf)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
