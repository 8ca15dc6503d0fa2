// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 対話ターンの結果ラベル
const (
	DialogueOutcomeUpstream = "upstream"
	DialogueOutcomeFallback = "fallback"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordTransition(to string)
	RecordReflectionSaved(completed bool)
	RecordFeedbackSubmitted()
	RecordDialogueTurn(outcome string)
	RecordDialogueLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	transitions      *prometheus.CounterVec
	reflectionsSaved *prometheus.CounterVec
	feedbackSubmit   prometheus.Counter
	dialogueTurns    *prometheus.CounterVec
	dialogueLatency  prometheus.Histogram
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewloop_phase_transitions_total",
			Help: "遷移先フェーズ別のセッションフェーズ遷移数",
		}, []string{"to"}),
		reflectionsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewloop_reflections_saved_total",
			Help: "完了フラグ別の振り返り保存数",
		}, []string{"completed"}),
		feedbackSubmit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewloop_feedback_submitted_total",
			Help: "フィードバック送信の合計数",
		}),
		dialogueTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewloop_dialogue_turns_total",
			Help: "応答元別の対話ターン数",
		}, []string{"outcome"}),
		dialogueLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewloop_dialogue_latency_seconds",
			Help:    "対話AI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewloop_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.transitions,
		c.reflectionsSaved,
		c.feedbackSubmit,
		c.dialogueTurns,
		c.dialogueLatency,
		c.httpStatus,
	)

	return c
}

// RecordTransition はフェーズ遷移を記録する。
func (c *Collector) RecordTransition(to string) {
	c.transitions.WithLabelValues(to).Inc()
}

// RecordReflectionSaved は振り返りの保存を記録する。
func (c *Collector) RecordReflectionSaved(completed bool) {
	c.reflectionsSaved.WithLabelValues(strconv.FormatBool(completed)).Inc()
}

// RecordFeedbackSubmitted はフィードバック送信を記録する。
func (c *Collector) RecordFeedbackSubmitted() {
	c.feedbackSubmit.Inc()
}

// RecordDialogueTurn は対話ターンの応答元を記録する。
func (c *Collector) RecordDialogueTurn(outcome string) {
	c.dialogueTurns.WithLabelValues(outcome).Inc()
}

// RecordDialogueLatency は対話AI呼び出しのレイテンシを記録する。
func (c *Collector) RecordDialogueLatency(duration time.Duration) {
	c.dialogueLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
