package dialogue

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrUpstreamMisconfigured は外部対話サービスの設定が不足している場合に返される。
	ErrUpstreamMisconfigured = errors.New("dialogue: upstream is not configured")
	// ErrEmptyReply は外部対話サービスが応答を返さなかった場合に返される。
	ErrEmptyReply = errors.New("dialogue: upstream returned no choices")
)

// Upstream は外部対話サービスのインターフェース。
type Upstream interface {
	// Complete は指示文と対話記録を送信し、次のassistant発話を返す。
	Complete(ctx context.Context, instruction string, turns []Turn) (string, error)
}

// OpenAIConfig はOpenAIUpstreamの設定。
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string       // 空の場合はライブラリの既定値
	HTTPClient *http.Client // nilの場合はライブラリの既定値
}

// OpenAIUpstream はOpenAI互換のChat Completions APIを使用するUpstream実装。
type OpenAIUpstream struct {
	client *openai.Client
	model  string
}

// NewOpenAIUpstream はOpenAIUpstreamを生成する。APIキーが空の場合はErrUpstreamMisconfiguredを返す。
func NewOpenAIUpstream(cfg OpenAIConfig) (*OpenAIUpstream, error) {
	if cfg.APIKey == "" {
		return nil, ErrUpstreamMisconfigured
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIUpstream{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

// Complete はChat Completions APIを呼び出す。
func (u *OpenAIUpstream) Complete(ctx context.Context, instruction string, turns []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: instruction,
	})
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Speaker == SpeakerAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}

	resp, err := u.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    u.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

// compile-time interface check
var _ Upstream = (*OpenAIUpstream)(nil)
