package session

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/reviewloop/internal/model"
	"github.com/hitoshi/reviewloop/internal/repository"
)

const (
	// MaxRosterSize はロスターの最大人数。
	MaxRosterSize = 500
	// MaxRosterNameLength はロスター表示名の最大文字数。
	MaxRosterNameLength = 100
	// MaxSessionNameLength はセッション名の最大文字数。
	MaxSessionNameLength = 200
)

var validate = validator.New()

// normalizeRoster はロスターを検証し、メールアドレスを小文字に、表示名を前後空白除去に正規化する。
// 重複するメールアドレス（大文字小文字を区別しない）は拒否する。
func normalizeRoster(entries []model.RosterEntry) ([]model.RosterEntry, error) {
	if len(entries) > MaxRosterSize {
		return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidRoster,
			fmt.Sprintf("ロスターは最大%d名までです（%d名が指定されました）。", MaxRosterSize, len(entries)))
	}

	seen := make(map[string]int, len(entries))
	roster := make([]model.RosterEntry, 0, len(entries))

	for i, e := range entries {
		email := repository.NormalizeEmail(e.Email)
		if err := validate.Var(email, "required,email,max=254"); err != nil {
			return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidEmail,
				fmt.Sprintf("%d件目のメールアドレスが不正です: %q", i+1, e.Email))
		}

		name := strings.TrimSpace(e.DisplayName)
		if n := utf8.RuneCountInString(name); n == 0 || n > MaxRosterNameLength {
			return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidRoster,
				fmt.Sprintf("%d件目の表示名は1〜%d文字で入力してください。", i+1, MaxRosterNameLength))
		}

		if prev, dup := seen[email]; dup {
			return nil, model.NewInvalidArgumentError(model.ErrCodeInvalidRoster,
				fmt.Sprintf("%d件目のメールアドレスが%d件目と重複しています: %s", i+1, prev+1, email))
		}
		seen[email] = i

		roster = append(roster, model.RosterEntry{Email: email, DisplayName: name})
	}

	return roster, nil
}

// normalizeName はセッション名を検証し、前後の空白を除去して返す。
func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if n := utf8.RuneCountInString(trimmed); n == 0 || n > MaxSessionNameLength {
		return "", model.NewInvalidArgumentError(model.ErrCodeInvalidName,
			fmt.Sprintf("セッション名は1〜%d文字で入力してください。", MaxSessionNameLength))
	}
	return trimmed, nil
}
