package dialogue

import "unicode/utf8"

// MinAnswerLength は掘り下げ質問をせずに次の話題へ進む回答の最小文字数。
const MinAnswerLength = 40

// scriptStep は台本の1話題分の質問と掘り下げ質問。
type scriptStep struct {
	prompt   string
	followUp string
}

var scriptSteps = []scriptStep{
	{
		prompt:   "今回作ったプロジェクトについて、どんなものか教えてください。",
		followUp: "もう少し詳しく教えてください。主な機能や画面の構成はどうなっていますか？",
	},
	{
		prompt:   "このプロジェクトの目的と、どんな人に使ってほしいかを教えてください。",
		followUp: "その人たちはどんな場面で使うことを想定していますか？",
	},
	{
		prompt:   "作っている途中で苦労したことや、つまずいたことはありましたか？",
		followUp: "そのとき、どうやって解決しましたか？",
	},
	{
		prompt:   "このプロジェクトを通して学んだことは何ですか？",
		followUp: "特に印象に残っている学びを1つ挙げるとしたら何ですか？",
	},
	{
		prompt:   "次に改善したいことや、挑戦してみたいことはありますか？",
		followUp: "それを実現するために、まず何から始めますか？",
	},
}

const scriptClosing = "ありがとうございました。振り返りの聞き取りはこれで終わりです。最後に要約を確認し、スクリーンショットを3枚添付して完了してください。"

// ScriptReply は対話記録から台本上の現在位置を復元し、次の発話を返す。
//
// 最初のassistant発話より後のuser発話を回答として数える。
// MinAnswerLength以上の回答で次の話題へ進み、短い回答には一度だけ掘り下げ質問を返す。
// 掘り下げ質問の後はどんな回答でも次の話題へ進む。
func ScriptReply(turns []Turn) *Reply {
	step, followed := 0, false
	prompted := false

	for _, turn := range turns {
		if turn.Speaker == SpeakerAssistant {
			prompted = true
			continue
		}
		if !prompted || step >= len(scriptSteps) {
			continue
		}
		if followed || utf8.RuneCountInString(turn.Text) >= MinAnswerLength {
			step++
			followed = false
			continue
		}
		followed = true
	}

	if step >= len(scriptSteps) {
		return &Reply{Text: scriptClosing, IsComplete: true, Fallback: true}
	}
	if followed {
		return &Reply{Text: scriptSteps[step].followUp, Fallback: true}
	}
	return &Reply{Text: scriptSteps[step].prompt, Fallback: true}
}
