// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ストアのバックエンド種別
const (
	StoreBackendBadger   = "badger"
	StoreBackendPostgres = "postgres"
)

// 他の参加者の未完了振り返りの公開ポリシー
const (
	VisibilityCompletedOnly = "completed-only"
	VisibilityAll           = "all"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreBackend     string `validate:"oneof=badger postgres"`
	DatabaseURL      string
	BadgerPath       string
	BadgerInMemory   bool
	BadgerGCInterval time.Duration `validate:"gte=0"`

	// Identity
	IdentityUserInfoURL string        `validate:"url"`
	IdentityTimeout     time.Duration `validate:"gt=0"`

	// Rate Limit (req/min)
	RateLimitGeneral  int `validate:"gt=0"`
	RateLimitDialogue int `validate:"gt=0"`

	// Dialogue
	OpenAIAPIKey    string
	OpenAIModel     string        `validate:"required"`
	OpenAIBaseURL   string        `validate:"omitempty,url"`
	DialogueTimeout time.Duration `validate:"gt=0"`

	// Policy
	PeerReflectionVisibility string `validate:"oneof=completed-only all"`
	RequireRosterOnStart     bool

	// Server
	ServerPort string
	BaseURL    string `validate:"url"`
	LogLevel   string `validate:"oneof=debug info warn error"`

	// CORS
	CORSAllowedOrigin string
}

var validate = validator.New()

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.IdentityUserInfoURL = os.Getenv("IDENTITY_USERINFO_URL")
	if cfg.IdentityUserInfoURL == "" {
		missing = append(missing, "IDENTITY_USERINFO_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.StoreBackend = strings.ToLower(getEnvString("STORE_BACKEND", StoreBackendBadger))
	cfg.BadgerInMemory = getEnvBool("BADGER_IN_MEMORY", false)

	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreBackendBadger:
		cfg.BadgerPath = os.Getenv("BADGER_PATH")
		if cfg.BadgerPath == "" && !cfg.BadgerInMemory {
			missing = append(missing, "BADGER_PATH")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.BadgerGCInterval = getEnvDuration("BADGER_GC_INTERVAL", 5*time.Minute)
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 5*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitDialogue = getEnvInt("RATE_LIMIT_DIALOGUE", 20)
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.DialogueTimeout = getEnvDuration("DIALOGUE_TIMEOUT", 20*time.Second)
	cfg.PeerReflectionVisibility = strings.ToLower(getEnvString("PEER_REFLECTION_VISIBILITY", VisibilityCompletedOnly))
	cfg.RequireRosterOnStart = getEnvBool("REQUIRE_ROSTER_ON_START", false)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DialogueEnabled は対話AIの呼び出しに必要な設定が揃っているかどうかを返す。
func (c *Config) DialogueEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
