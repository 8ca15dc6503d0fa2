package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrTokenRejected はIdPがトークンを受け付けなかった場合に返される。
var ErrTokenRejected = errors.New("identity: token rejected by provider")

// maxUserInfoSize はuserinfoレスポンスの読み取り上限。
const maxUserInfoSize = 64 * 1024

// Claims はIdPが返す利用者情報。
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// TokenVerifier はBearerトークンを検証して利用者情報を返す。
// トークンが無効な場合はErrTokenRejectedを、IdPに到達できない場合はそれ以外のエラーを返す。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// userInfoResponse はOpenID Connect userinfoエンドポイントのレスポンス。
type userInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// UserInfoVerifier はuserinfoエンドポイントへの問い合わせでトークンを検証する。
type UserInfoVerifier struct {
	url    string
	client *http.Client
}

// NewUserInfoVerifier はUserInfoVerifierを生成する。
// 本番ではSSRF防止付きのクライアントを渡す。
func NewUserInfoVerifier(userInfoURL string, client *http.Client) *UserInfoVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &UserInfoVerifier{url: userInfoURL, client: client}
}

// Verify はアクセストークンでuserinfoを取得する。
func (v *UserInfoVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrTokenRejected
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("user info fetch failed with status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrTokenRejected, resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: malformed user info: %v", ErrTokenRejected, err)
	}

	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: user info lacks sub or email", ErrTokenRejected)
	}

	return &Claims{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}

// compile-time interface check
var _ TokenVerifier = (*UserInfoVerifier)(nil)
