package dialogue

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/reviewloop/internal/model"
)

const (
	// SpeakerUser は参加者の発話。
	SpeakerUser = "user"
	// SpeakerAssistant は対話相手(外部サービスまたは台本)の発話。
	SpeakerAssistant = "assistant"

	// MaxTurns は1回の呼び出しで受け付ける発話数の上限。
	MaxTurns = 50
	// MaxTurnLength は発話1件の最大文字数。
	MaxTurnLength = 2000
)

// Turn は対話記録の1発話を表す。
type Turn struct {
	Speaker string `json:"speaker" validate:"required,oneof=user assistant"`
	Text    string `json:"text" validate:"max=2000"`
}

var validate = validator.New()

// ValidateTranscript は対話記録の件数と各発話を検証する。
func ValidateTranscript(turns []Turn) error {
	if len(turns) == 0 || len(turns) > MaxTurns {
		return model.NewInvalidArgumentError(model.ErrCodeInvalidTranscript,
			fmt.Sprintf("対話記録は1〜%d件で指定してください（%d件が指定されました）。", MaxTurns, len(turns)))
	}

	for i := range turns {
		if err := validate.Struct(turns[i]); err != nil {
			var verrs validator.ValidationErrors
			field := "turn"
			if errors.As(err, &verrs) && len(verrs) > 0 {
				field = verrs[0].Field()
			}
			return model.NewInvalidArgumentError(model.ErrCodeInvalidTranscript,
				fmt.Sprintf("%d件目の発話が不正です（%s）。speakerはuserまたはassistant、textは%d文字以内です。",
					i+1, field, MaxTurnLength))
		}
	}
	return nil
}
