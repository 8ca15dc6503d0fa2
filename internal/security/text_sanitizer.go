// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力した自由記述テキストからHTMLを取り除き、
// 保存・転送して安全なプレーンテキストに正規化する。
package security

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// TextSanitizer は自由記述テキストのサニタイズ機能のインターフェースを定義する。
// 振り返り回答、フィードバック本文、対話トランスクリプトの保存前に使用される。
type TextSanitizer interface {
	// Clean はHTMLタグを除去しエンティティを復元した上で、
	// 改行とタブ以外の制御文字を取り除き、maxRunes文字に切り詰める。
	// maxRunesが0以下の場合は切り詰めない。
	Clean(raw string, maxRunes int) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyは全タグを除去し、script/style等は中身ごと捨てる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean は入力テキストを正規化する。
func (s *textSanitizer) Clean(raw string, maxRunes int) string {
	if raw == "" {
		return ""
	}

	text := strings.ToValidUTF8(raw, "")

	// StrictPolicyは出力をHTMLエスケープするため、プレーンテキストに戻す
	text = html.UnescapeString(s.policy.Sanitize(text))

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	text = strings.TrimSpace(text)
	return Truncate(text, maxRunes)
}

// Truncate は文字列をmaxRunes文字（ルーン数）に切り詰める。
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
